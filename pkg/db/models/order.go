package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/aurellebeauty/aurelle-backend/pkg/enums"
	"github.com/aurellebeauty/aurelle-backend/pkg/types"
)

// Order is the customer order produced by checkout (online or COD).
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber     int64               `gorm:"column:order_number;not null;uniqueIndex:ux_orders_order_number"`
	UserID          uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	Status          enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending_payment'"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	PaymentIntentID *uuid.UUID          `gorm:"column:payment_intent_id;type:uuid;uniqueIndex:ux_orders_payment_intent"`
	Currency        string              `gorm:"column:currency;type:text;not null;default:'INR'"`
	SubtotalCents   int                 `gorm:"column:subtotal_cents;not null"`
	DiscountCents   int                 `gorm:"column:discount_cents;not null;default:0"`
	ShippingCents   int                 `gorm:"column:shipping_cents;not null;default:0"`
	TaxCents        int                 `gorm:"column:tax_cents;not null;default:0"`
	TotalCents      int                 `gorm:"column:total_cents;not null"`
	ShippingAddress types.Address       `gorm:"column:shipping_address;type:jsonb;serializer:json"`
	InvoiceSent     bool                `gorm:"column:invoice_sent;not null;default:false"`
	InvoiceSentAt   *time.Time          `gorm:"column:invoice_sent_at"`
	InvoiceNumber   *string             `gorm:"column:invoice_number"`
	Notes           *string             `gorm:"column:notes"`
	CancelledAt     *time.Time          `gorm:"column:cancelled_at"`
	DeliveredAt     *time.Time          `gorm:"column:delivered_at"`
	Items           []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Shipment        *Shipment           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PaymentIntent   *PaymentIntent      `gorm:"foreignKey:ID;references:PaymentIntentID"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
