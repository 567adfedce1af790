package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/aurellebeauty/aurelle-backend/pkg/enums"
)

// OrderCreatedEvent signals a newly created order, COD or paid online.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   int64               `json:"order_number"`
	UserID        uuid.UUID           `json:"user_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	TotalCents    int                 `json:"total_cents"`
	Currency      string              `json:"currency"`
}

// OrderStatusChangedEvent is emitted on every order status transition.
type OrderStatusChangedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber int64             `json:"order_number"`
	FromStatus  enums.OrderStatus `json:"from_status"`
	ToStatus    enums.OrderStatus `json:"to_status"`
	Reason      string            `json:"reason,omitempty"`
}

// PaymentCapturedEvent reports a verified and consumed payment.
type PaymentCapturedEvent struct {
	PaymentIntentID  uuid.UUID `json:"payment_intent_id"`
	OrderID          uuid.UUID `json:"order_id"`
	GatewayOrderID   string    `json:"gateway_order_id"`
	GatewayPaymentID string    `json:"gateway_payment_id"`
	AmountCents      int       `json:"amount_cents"`
	CapturedAt       time.Time `json:"captured_at"`
}

// PaymentFailedEvent reports a failed or rejected gateway payment.
type PaymentFailedEvent struct {
	PaymentIntentID uuid.UUID `json:"payment_intent_id"`
	GatewayOrderID  string    `json:"gateway_order_id"`
	Reason          string    `json:"reason,omitempty"`
	FailedAt        time.Time `json:"failed_at"`
}

// InvoiceSentEvent records the one-time invoice dispatch for an order.
type InvoiceSentEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	OrderNumber   int64     `json:"order_number"`
	InvoiceNumber string    `json:"invoice_number"`
	RecipientHint string    `json:"recipient_hint,omitempty"`
	SentAt        time.Time `json:"sent_at"`
}

// ShipmentCreatedEvent signals a carrier order was registered for an order.
type ShipmentCreatedEvent struct {
	ShipmentID     uuid.UUID `json:"shipment_id"`
	OrderID        uuid.UUID `json:"order_id"`
	CarrierOrderID string    `json:"carrier_order_id,omitempty"`
}

// AWBAssignedEvent is emitted once an air waybill is secured.
type AWBAssignedEvent struct {
	ShipmentID  uuid.UUID `json:"shipment_id"`
	OrderID     uuid.UUID `json:"order_id"`
	AWBCode     string    `json:"awb_code"`
	CourierName string    `json:"courier_name,omitempty"`
	TrackingURL string    `json:"tracking_url,omitempty"`
}

// AWBAssignmentFailedEvent reports an assignment attempt that did not yield an AWB.
type AWBAssignmentFailedEvent struct {
	ShipmentID uuid.UUID `json:"shipment_id"`
	OrderID    uuid.UUID `json:"order_id"`
	RetryCount int       `json:"retry_count"`
	ErrorCode  string    `json:"error_code,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// ShipmentStatusChangedEvent mirrors carrier tracking transitions.
type ShipmentStatusChangedEvent struct {
	ShipmentID    uuid.UUID            `json:"shipment_id"`
	OrderID       uuid.UUID            `json:"order_id"`
	FromStatus    enums.ShipmentStatus `json:"from_status"`
	ToStatus      enums.ShipmentStatus `json:"to_status"`
	CarrierStatus string               `json:"carrier_status,omitempty"`
}

// NotificationRequestedEvent tells downstream systems to alert a customer.
type NotificationRequestedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber int64     `json:"order_number"`
	UserID      uuid.UUID `json:"user_id"`
	Type        string    `json:"type"`
}
