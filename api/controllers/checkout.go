package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/aurellebeauty/aurelle-backend/api/responses"
	"github.com/aurellebeauty/aurelle-backend/api/validators"
	"github.com/aurellebeauty/aurelle-backend/internal/orders"
	"github.com/aurellebeauty/aurelle-backend/internal/payments"
	"github.com/aurellebeauty/aurelle-backend/pkg/enums"
	pkgerrors "github.com/aurellebeauty/aurelle-backend/pkg/errors"
	"github.com/aurellebeauty/aurelle-backend/pkg/logger"
	"github.com/aurellebeauty/aurelle-backend/pkg/types"
)

// Checkout freezes the submitted cart. Online payments open a gateway
// session; cash on delivery creates the order immediately.
func Checkout(ordersSvc orders.Service, paymentsSvc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ordersSvc == nil || paymentsSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout services unavailable"))
			return
		}

		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method := enums.PaymentMethodOnline
		if payload.PaymentMethod != "" {
			method, err = enums.ParsePaymentMethod(payload.PaymentMethod)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method"))
				return
			}
		}

		notes := payload.Notes
		if notes != nil {
			clean := validators.SanitizeString(*notes, 500)
			notes = &clean
		}

		if method == enums.PaymentMethodCOD {
			items := make([]orders.ItemInput, 0, len(payload.Items))
			for _, item := range payload.Items {
				items = append(items, orders.ItemInput{
					ProductID:      item.ProductID,
					SKU:            validators.SanitizeString(item.SKU, 64),
					Name:           validators.SanitizeString(item.Name, 200),
					Qty:            item.Qty,
					UnitPriceCents: item.UnitPriceCents,
				})
			}
			order, err := ordersSvc.CreateCODOrder(r.Context(), orders.CreateOrderInput{
				UserID:          act.UserID,
				Items:           items,
				ShippingAddress: payload.ShippingAddress,
				Currency:        payload.Currency,
				DiscountCents:   payload.DiscountCents,
				ShippingCents:   payload.ShippingCents,
				TaxCents:        payload.TaxCents,
				Notes:           notes,
				ActorRole:       act.Role,
			})
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccessStatus(w, http.StatusCreated, codOrderResponse{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				Status:        order.Status,
				PaymentMethod: order.PaymentMethod,
				TotalCents:    order.TotalCents,
				Currency:      order.Currency,
			})
			return
		}

		items := make([]payments.SnapshotItem, 0, len(payload.Items))
		for _, item := range payload.Items {
			items = append(items, payments.SnapshotItem{
				ProductID:      item.ProductID,
				SKU:            validators.SanitizeString(item.SKU, 64),
				Name:           validators.SanitizeString(item.Name, 200),
				Qty:            item.Qty,
				UnitPriceCents: item.UnitPriceCents,
			})
		}

		session, err := paymentsSvc.InitiateCheckout(r.Context(), payments.CheckoutInput{
			UserID:          act.UserID,
			Items:           items,
			ShippingAddress: payload.ShippingAddress,
			Currency:        payload.Currency,
			DiscountCents:   payload.DiscountCents,
			ShippingCents:   payload.ShippingCents,
			TaxCents:        payload.TaxCents,
			Notes:           notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

type checkoutRequest struct {
	Items           []checkoutItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingAddress types.Address         `json:"shipping_address" validate:"required"`
	PaymentMethod   string                `json:"payment_method,omitempty"`
	Currency        string                `json:"currency,omitempty" validate:"omitempty,len=3"`
	DiscountCents   int                   `json:"discount_cents,omitempty" validate:"omitempty,min=0"`
	ShippingCents   int                   `json:"shipping_cents,omitempty" validate:"omitempty,min=0"`
	TaxCents        int                   `json:"tax_cents,omitempty" validate:"omitempty,min=0"`
	Notes           *string               `json:"notes,omitempty"`
}

type checkoutItemRequest struct {
	ProductID      uuid.UUID `json:"product_id" validate:"required,uuid4"`
	SKU            string    `json:"sku" validate:"required"`
	Name           string    `json:"name" validate:"required"`
	Qty            int       `json:"qty" validate:"required,min=1"`
	UnitPriceCents int       `json:"unit_price_cents" validate:"required,min=1"`
}

type codOrderResponse struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   int64               `json:"order_number"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	TotalCents    int                 `json:"total_cents"`
	Currency      string              `json:"currency"`
}
