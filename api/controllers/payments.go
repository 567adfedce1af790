package controllers

import (
	"net/http"

	"github.com/aurellebeauty/aurelle-backend/api/responses"
	"github.com/aurellebeauty/aurelle-backend/api/validators"
	"github.com/aurellebeauty/aurelle-backend/internal/payments"
	pkgerrors "github.com/aurellebeauty/aurelle-backend/pkg/errors"
	"github.com/aurellebeauty/aurelle-backend/pkg/logger"
)

// PaymentsVerify settles the gateway callback and returns the created order.
func PaymentsVerify(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload paymentVerifyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.VerifyPayment(r.Context(), payments.VerifyInput{
			UserID:           act.UserID,
			GatewayOrderID:   payload.GatewayOrderID,
			GatewayPaymentID: payload.GatewayPaymentID,
			Signature:        payload.Signature,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, paymentVerifyResponse{
			OrderID:     order.ID.String(),
			OrderNumber: order.OrderNumber,
			Status:      string(order.Status),
			TotalCents:  order.TotalCents,
			Currency:    order.Currency,
		})
	}
}

type paymentVerifyRequest struct {
	GatewayOrderID   string `json:"razorpay_order_id" validate:"required"`
	GatewayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature        string `json:"razorpay_signature" validate:"required"`
}

type paymentVerifyResponse struct {
	OrderID     string `json:"order_id"`
	OrderNumber int64  `json:"order_number"`
	Status      string `json:"status"`
	TotalCents  int    `json:"total_cents"`
	Currency    string `json:"currency"`
}
