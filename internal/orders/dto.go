package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/aurellebeauty/aurelle-backend/pkg/enums"
	"github.com/aurellebeauty/aurelle-backend/pkg/types"
)

// OrderFilters describe the inputs supported by the customer orders list.
type OrderFilters struct {
	Status   *enums.OrderStatus
	DateFrom *time.Time
	DateTo   *time.Time
}

// OrderItemSummary is one purchased line in an order listing.
type OrderItemSummary struct {
	ProductID      uuid.UUID `json:"product_id"`
	SKU            string    `json:"sku"`
	Name           string    `json:"name"`
	Qty            int       `json:"qty"`
	UnitPriceCents int       `json:"unit_price_cents"`
	TotalCents     int       `json:"total_cents"`
}

// OrderSummary exposes the aggregated fields returned in the customer list.
type OrderSummary struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   int64               `json:"order_number"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	TotalCents    int                 `json:"total_cents"`
	Currency      string              `json:"currency"`
	TotalItems    int                 `json:"total_items"`
	CreatedAt     time.Time           `json:"created_at"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// OrderDetail is the full order view returned by the detail endpoint.
type OrderDetail struct {
	ID              uuid.UUID           `json:"id"`
	OrderNumber     int64               `json:"order_number"`
	Status          enums.OrderStatus   `json:"status"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	Currency        string              `json:"currency"`
	SubtotalCents   int                 `json:"subtotal_cents"`
	DiscountCents   int                 `json:"discount_cents"`
	ShippingCents   int                 `json:"shipping_cents"`
	TaxCents        int                 `json:"tax_cents"`
	TotalCents      int                 `json:"total_cents"`
	ShippingAddress types.Address       `json:"shipping_address"`
	InvoiceSent     bool                `json:"invoice_sent"`
	InvoiceNumber   *string             `json:"invoice_number,omitempty"`
	Items           []OrderItemSummary  `json:"items"`
	Shipment        *ShipmentSummary    `json:"shipment,omitempty"`
	Notes           *string             `json:"notes,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time          `json:"cancelled_at,omitempty"`
}

// ShipmentSummary is the courier view embedded in the order detail.
type ShipmentSummary struct {
	Status      enums.ShipmentStatus `json:"status"`
	AWBCode     *string              `json:"awb_code,omitempty"`
	CourierName *string              `json:"courier_name,omitempty"`
	TrackingURL *string              `json:"tracking_url,omitempty"`
}
