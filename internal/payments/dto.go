package payments

import (
	"github.com/google/uuid"

	"github.com/aurellebeauty/aurelle-backend/pkg/types"
)

// SnapshotItem is one cart line frozen into the intent at checkout time.
type SnapshotItem struct {
	ProductID      uuid.UUID `json:"product_id"`
	SKU            string    `json:"sku"`
	Name           string    `json:"name"`
	Qty            int       `json:"qty"`
	UnitPriceCents int       `json:"unit_price_cents"`
}

// CartSnapshot is the full cart captured when the gateway order was created.
// The order is built from this snapshot, never from a replayed request body.
type CartSnapshot struct {
	Items           []SnapshotItem `json:"items"`
	ShippingAddress types.Address  `json:"shipping_address"`
	Currency        string         `json:"currency"`
	DiscountCents   int            `json:"discount_cents"`
	ShippingCents   int            `json:"shipping_cents"`
	TaxCents        int            `json:"tax_cents"`
	Notes           *string        `json:"notes,omitempty"`
}

// CheckoutInput carries the customer's cart into checkout initiation.
type CheckoutInput struct {
	UserID          uuid.UUID
	Items           []SnapshotItem
	ShippingAddress types.Address
	Currency        string
	DiscountCents   int
	ShippingCents   int
	TaxCents        int
	Notes           *string
}

// CheckoutSession is what the storefront needs to open the gateway widget.
type CheckoutSession struct {
	PaymentIntentID uuid.UUID `json:"payment_intent_id"`
	GatewayOrderID  string    `json:"gateway_order_id"`
	GatewayKeyID    string    `json:"gateway_key_id"`
	AmountCents     int       `json:"amount_cents"`
	Currency        string    `json:"currency"`
}

// VerifyInput carries the checkout callback fields from the storefront.
type VerifyInput struct {
	UserID           uuid.UUID
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}
