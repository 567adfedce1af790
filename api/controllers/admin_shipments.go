package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aurellebeauty/aurelle-backend/api/responses"
	"github.com/aurellebeauty/aurelle-backend/api/validators"
	"github.com/aurellebeauty/aurelle-backend/internal/shipping"
	pkgerrors "github.com/aurellebeauty/aurelle-backend/pkg/errors"
	"github.com/aurellebeauty/aurelle-backend/pkg/logger"
)

// AdminShipmentCreate registers an order with the carrier. A repeat call for
// the same order answers 200 with the existing shipment flagged.
func AdminShipmentCreate(svc shipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
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

		var payload shipmentCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateShipment(r.Context(), shipping.CreateShipmentInput{
			OrderID:     orderID,
			ActorUserID: act.UserID,
			ActorRole:   act.Role,
			WeightKG:    payload.WeightKG,
			LengthCM:    payload.LengthCM,
			BreadthCM:   payload.BreadthCM,
			HeightCM:    payload.HeightCM,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusCreated
		if result.AlreadyExists {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, newShipmentResponse(result))
	}
}

// AdminAssignAWB requests an air waybill, bypassing the automatic retry cap.
func AdminAssignAWB(svc shipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		act, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		shipmentID, err := parseShipmentID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.AssignAWB(r.Context(), shipping.AssignAWBInput{
			ShipmentID:  shipmentID,
			Manual:      true,
			ActorUserID: act.UserID,
			ActorRole:   act.Role,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newShipmentResponse(result))
	}
}

// AdminGenerateLabel fetches (or returns the cached) shipping label URL.
func AdminGenerateLabel(svc shipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		shipmentID, err := parseShipmentID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		labelURL, err := svc.GenerateLabel(r.Context(), shipmentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"label_url": labelURL})
	}
}

// AdminStatusSync runs a carrier reconciliation pass on demand.
func AdminStatusSync(svc shipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}

		updated, err := svc.SyncStatuses(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"shipments_updated": updated})
	}
}

type shipmentCreateRequest struct {
	WeightKG  float64 `json:"weight_kg" validate:"required,gt=0"`
	LengthCM  float64 `json:"length_cm,omitempty" validate:"omitempty,gt=0"`
	BreadthCM float64 `json:"breadth_cm,omitempty" validate:"omitempty,gt=0"`
	HeightCM  float64 `json:"height_cm,omitempty" validate:"omitempty,gt=0"`
}

type shipmentResponse struct {
	ID            uuid.UUID `json:"id"`
	OrderID       uuid.UUID `json:"order_id"`
	Status        string    `json:"status"`
	AlreadyExists bool      `json:"already_exists"`
	AWBCode       *string   `json:"awb_code,omitempty"`
	CourierName   *string   `json:"courier_name,omitempty"`
	TrackingURL   *string   `json:"tracking_url,omitempty"`
	LabelURL      *string   `json:"label_url,omitempty"`
	AWBRetryCount int       `json:"awb_retry_count"`
	AWBError      *string   `json:"awb_error,omitempty"`
}

func newShipmentResponse(result *shipping.ShipmentResult) shipmentResponse {
	if result == nil || result.Shipment == nil {
		return shipmentResponse{}
	}
	shipment := result.Shipment
	return shipmentResponse{
		ID:            shipment.ID,
		OrderID:       shipment.OrderID,
		Status:        string(shipment.Status),
		AlreadyExists: result.AlreadyExists,
		AWBCode:       shipment.AWBCode,
		CourierName:   shipment.CourierName,
		TrackingURL:   shipment.TrackingURL,
		LabelURL:      shipment.LabelURL,
		AWBRetryCount: shipment.AWBRetryCount,
		AWBError:      shipment.AWBError,
	}
}

func parseShipmentID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "shipmentId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "shipment id is required")
	}
	shipmentID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipment id")
	}
	return shipmentID, nil
}
