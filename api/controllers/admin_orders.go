package controllers

import (
	"net/http"

	"github.com/aurellebeauty/aurelle-backend/api/responses"
	"github.com/aurellebeauty/aurelle-backend/api/validators"
	"github.com/aurellebeauty/aurelle-backend/internal/orders"
	"github.com/aurellebeauty/aurelle-backend/pkg/enums"
	pkgerrors "github.com/aurellebeauty/aurelle-backend/pkg/errors"
	"github.com/aurellebeauty/aurelle-backend/pkg/logger"
)

// AdminOrderStatusUpdate applies a guarded status transition on behalf of ops.
func AdminOrderStatusUpdate(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adminOrderStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		target := enums.OrderStatus(payload.Status)
		if !target.IsValid() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status").WithDetails(map[string]any{"status": payload.Status}))
			return
		}

		if err := svc.UpdateStatus(r.Context(), orders.UpdateStatusInput{
			OrderID:     orderID,
			Target:      target,
			Reason:      payload.Reason,
			ActorUserID: act.UserID,
			ActorRole:   act.Role,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": string(target)})
	}
}

type adminOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}
