package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/aurellebeauty/aurelle-backend/pkg/enums"
)

// PaymentIntent records a Razorpay order awaiting verification. A row may
// back at most one order; Consumed flips exactly once when the order is created.
type PaymentIntent struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	GatewayOrderID   string              `gorm:"column:gateway_order_id;not null;uniqueIndex:ux_payment_intents_gateway_order"`
	GatewayPaymentID *string             `gorm:"column:gateway_payment_id"`
	Status           enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'created'"`
	AmountCents      int                 `gorm:"column:amount_cents;not null"`
	Currency         string              `gorm:"column:currency;type:text;not null;default:'INR'"`
	CartSnapshot     []byte              `gorm:"column:cart_snapshot;type:jsonb;not null"`
	Consumed         bool                `gorm:"column:consumed;not null;default:false"`
	ConsumedAt       *time.Time          `gorm:"column:consumed_at"`
	FailureReason    *string             `gorm:"column:failure_reason"`
	VerifiedAt       *time.Time          `gorm:"column:verified_at"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
