package razorpaywebhook

import (
	"context"
	"encoding/json"

	pkgerrors "github.com/aurellebeauty/aurelle-backend/pkg/errors"
)

const (
	eventPaymentCaptured = "payment.captured"
	eventPaymentFailed   = "payment.failed"
)

// Event is the Razorpay webhook envelope. Only the payment entity is used.
type Event struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
	CreatedAt int64 `json:"created_at"`
}

type paymentEntity struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Status           string `json:"status"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
}

type paymentProcessor interface {
	HandleCaptured(ctx context.Context, gatewayOrderID, gatewayPaymentID string) error
	HandleFailed(ctx context.Context, gatewayOrderID, reason string) error
}

type Service struct {
	payments paymentProcessor
}

func NewService(payments paymentProcessor) (*Service, error) {
	if payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments service required")
	}
	return &Service{payments: payments}, nil
}

// HandleEvent decodes a verified webhook body and applies the payment
// outcome. Event types outside the payment lifecycle are acknowledged
// without action.
func (s *Service) HandleEvent(ctx context.Context, body []byte) error {
	if len(body) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "webhook body required")
	}
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook event")
	}

	switch event.Event {
	case eventPaymentCaptured:
		payment := event.Payload.Payment.Entity
		if payment.OrderID == "" || payment.ID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment entity missing order or payment id")
		}
		return s.payments.HandleCaptured(ctx, payment.OrderID, payment.ID)
	case eventPaymentFailed:
		payment := event.Payload.Payment.Entity
		if payment.OrderID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment entity missing order id")
		}
		reason := payment.ErrorDescription
		if reason == "" {
			reason = payment.ErrorCode
		}
		if reason == "" {
			reason = "payment failed"
		}
		return s.payments.HandleFailed(ctx, payment.OrderID, reason)
	default:
		return nil
	}
}
