package shipping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/aurellebeauty/aurelle-backend/internal/orders"
	"github.com/aurellebeauty/aurelle-backend/pkg/config"
	"github.com/aurellebeauty/aurelle-backend/pkg/db"
	"github.com/aurellebeauty/aurelle-backend/pkg/db/models"
	"github.com/aurellebeauty/aurelle-backend/pkg/enums"
	pkgerrors "github.com/aurellebeauty/aurelle-backend/pkg/errors"
	"github.com/aurellebeauty/aurelle-backend/pkg/logger"
	"github.com/aurellebeauty/aurelle-backend/pkg/metrics"
	"github.com/aurellebeauty/aurelle-backend/pkg/outbox"
	"github.com/aurellebeauty/aurelle-backend/pkg/outbox/payloads"
	"github.com/aurellebeauty/aurelle-backend/pkg/shiprocket"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type carrier interface {
	CreateOrder(ctx context.Context, params shiprocket.OrderCreateParams) (*shiprocket.OrderResult, error)
	AssignAWB(ctx context.Context, carrierShipmentID string) (*shiprocket.AWBResult, error)
	GenerateLabel(ctx context.Context, carrierShipmentID string) (string, error)
	Track(ctx context.Context, awb string) (*shiprocket.TrackingResult, error)
	TrackingURL(awb string) string
}

// CreateShipmentInput registers an order with the carrier.
type CreateShipmentInput struct {
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.UserRole
	WeightKG    float64
	LengthCM    float64
	BreadthCM   float64
	HeightCM    float64
}

// AssignAWBInput requests an air waybill for a shipment. Manual attempts
// come from admins and ignore the automatic retry cap.
type AssignAWBInput struct {
	ShipmentID  uuid.UUID
	Manual      bool
	ActorUserID uuid.UUID
	ActorRole   enums.UserRole
}

// TrackingView is the customer-facing tracking summary.
type TrackingView struct {
	AWB           string               `json:"awb"`
	Status        enums.ShipmentStatus `json:"status"`
	CarrierStatus string               `json:"carrier_status"`
	CourierName   string               `json:"courier_name"`
	ETD           string               `json:"etd,omitempty"`
	TrackingURL   string               `json:"tracking_url,omitempty"`
}

// ShipmentResult pairs a shipment with whether the call was a replay of an
// earlier successful one.
type ShipmentResult struct {
	Shipment      *models.Shipment
	AlreadyExists bool
}

// Service drives the shipment lifecycle against the carrier.
type Service interface {
	CreateShipment(ctx context.Context, input CreateShipmentInput) (*ShipmentResult, error)
	AssignAWB(ctx context.Context, input AssignAWBInput) (*ShipmentResult, error)
	GenerateLabel(ctx context.Context, shipmentID uuid.UUID) (string, error)
	RetryPendingAWBs(ctx context.Context) (int, error)
	SyncStatuses(ctx context.Context) (int, error)
	TrackByAWB(ctx context.Context, awb string) (*TrackingView, error)
}

type service struct {
	repo       Repository
	ordersRepo orders.Repository
	carrier    carrier
	tx         txRunner
	outbox     outboxPublisher
	cfg        config.ShippingConfig
	metrics    *metrics.FulfillmentMetrics
	logg       *logger.Logger
}

// NewService builds a shipping service with the required dependencies.
func NewService(
	repo Repository,
	ordersRepo orders.Repository,
	courier carrier,
	tx txRunner,
	outboxSvc outboxPublisher,
	cfg config.ShippingConfig,
	m *metrics.FulfillmentMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("shipments repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if courier == nil {
		return nil, fmt.Errorf("carrier client required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       repo,
		ordersRepo: ordersRepo,
		carrier:    courier,
		tx:         tx,
		outbox:     outboxSvc,
		cfg:        cfg,
		metrics:    m,
		logg:       logg,
	}, nil
}

// canCreateShipment rejects orders that must never ship: cancelled, refunded
// and failed orders, plus online orders still awaiting payment. Anything else
// (on_hold included) is shippable at the admin's discretion.
func canCreateShipment(order *models.Order) bool {
	switch order.Status {
	case enums.OrderStatusCancelled, enums.OrderStatusRefunded, enums.OrderStatusFailed:
		return false
	case enums.OrderStatusPendingPayment:
		return order.PaymentMethod != enums.PaymentMethodOnline
	}
	return true
}

// CreateShipment registers the order with the carrier and records the
// shipment in pending_awb. A second call for the same order returns the
// existing shipment flagged as a replay.
func (s *service) CreateShipment(ctx context.Context, input CreateShipmentInput) (*ShipmentResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.ordersRepo.FindByID(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !canCreateShipment(order) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot ship order in status %s", order.Status))
	}

	if existing, err := s.repo.FindByOrderID(ctx, order.ID); err == nil {
		return &ShipmentResult{Shipment: existing, AlreadyExists: true}, nil
	} else if err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipment")
	}

	items := make([]shiprocket.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, shiprocket.OrderItem{
			Name:           item.Name,
			SKU:            item.SKU,
			Units:          item.Qty,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	paymentMode := "Prepaid"
	if order.PaymentMethod == enums.PaymentMethodCOD {
		paymentMode = "COD"
	}

	carrierOrder, err := s.carrier.CreateOrder(ctx, shiprocket.OrderCreateParams{
		OrderNumber:   fmt.Sprintf("AUR-%d", order.OrderNumber),
		OrderDate:     order.CreatedAt,
		Address:       order.ShippingAddress,
		Items:         items,
		SubtotalCents: order.SubtotalCents,
		PaymentMode:   paymentMode,
		WeightKG:      input.WeightKG,
		LengthCM:      input.LengthCM,
		BreadthCM:     input.BreadthCM,
		HeightCM:      input.HeightCM,
	})
	if err != nil {
		return nil, err
	}

	carrierOrderID := fmt.Sprintf("%d", carrierOrder.OrderID)
	carrierShipmentID := fmt.Sprintf("%d", carrierOrder.ShipmentID)
	shipment := &models.Shipment{
		OrderID:           order.ID,
		Status:            enums.ShipmentStatusPendingAWB,
		CarrierOrderID:    &carrierOrderID,
		CarrierShipmentID: &carrierShipmentID,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).Create(ctx, shipment); err != nil {
			return err
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventShipmentCreated,
			AggregateType: enums.AggregateShipment,
			AggregateID:   shipment.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole},
			Data: payloads.ShipmentCreatedEvent{
				ShipmentID:     shipment.ID,
				OrderID:        order.ID,
				CarrierOrderID: carrierOrderID,
			},
		}
		return s.outbox.EmitIfNotExists(ctx, tx, event)
	})
	if err != nil {
		// A concurrent call won the unique order constraint; use its row.
		if db.IsUniqueViolation(err, "ux_shipments_order") {
			winner, err := s.repo.FindByOrderID(ctx, order.ID)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipment")
			}
			return &ShipmentResult{Shipment: winner, AlreadyExists: true}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create shipment")
	}

	ctx = s.logg.WithShipmentID(ctx, shipment.ID.String())
	s.logg.Info(ctx, fmt.Sprintf("shipment created for order %d", order.OrderNumber))
	return &ShipmentResult{Shipment: shipment}, nil
}

// AssignAWB asks the carrier for an air waybill. Carrier refusals are
// recorded against the shipment and retried later; automatic retries stop at
// the configured cap, manual ones do not.
func (s *service) AssignAWB(ctx context.Context, input AssignAWBInput) (*ShipmentResult, error) {
	if input.ShipmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipment id required")
	}

	shipment, err := s.repo.FindByID(ctx, input.ShipmentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipment")
	}
	if shipment.AWBCode != nil {
		return &ShipmentResult{Shipment: shipment, AlreadyExists: true}, nil
	}
	if shipment.Status != enums.ShipmentStatusPendingAWB {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("cannot assign awb in status %s", shipment.Status))
	}
	if shipment.CarrierShipmentID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "shipment has no carrier registration")
	}
	if !input.Manual && shipment.AWBRetryCount >= s.cfg.AWBMaxAutoRetries {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "automatic awb retries exhausted")
	}

	now := time.Now()
	result, err := s.carrier.AssignAWB(ctx, *shipment.CarrierShipmentID)
	if err != nil {
		return nil, s.recordAWBFailure(ctx, shipment, input, err, now)
	}

	trackingURL := s.carrier.TrackingURL(result.AWBCode)
	updates := map[string]any{
		"status":              enums.ShipmentStatusReady,
		"awb_code":            result.AWBCode,
		"courier_name":        result.CourierName,
		"tracking_url":        trackingURL,
		"awb_error":           nil,
		"awb_error_code":      nil,
		"last_awb_attempt_at": now,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Update(ctx, shipment.ID, updates); err != nil {
			return err
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventAWBAssigned,
			AggregateType: enums.AggregateShipment,
			AggregateID:   shipment.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole},
			Data: payloads.AWBAssignedEvent{
				ShipmentID:  shipment.ID,
				OrderID:     shipment.OrderID,
				AWBCode:     result.AWBCode,
				CourierName: result.CourierName,
				TrackingURL: trackingURL,
			},
		}
		return s.outbox.EmitIfNotExists(ctx, tx, event)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record awb assignment")
	}

	s.metrics.IncAWBAssignment("assigned")
	ctx = s.logg.WithShipmentID(ctx, shipment.ID.String())
	s.logg.Info(ctx, fmt.Sprintf("awb %s assigned via %s", result.AWBCode, result.CourierName))
	fresh, err := s.repo.FindByID(ctx, shipment.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipment")
	}
	return &ShipmentResult{Shipment: fresh}, nil
}

func (s *service) recordAWBFailure(ctx context.Context, shipment *models.Shipment, input AssignAWBInput, cause error, now time.Time) error {
	retryCount := shipment.AWBRetryCount + 1
	message := cause.Error()
	updates := map[string]any{
		"awb_retry_count":     retryCount,
		"awb_error":           message,
		"last_awb_attempt_at": now,
	}
	var assignErr *shiprocket.AWBAssignmentError
	errorCode := ""
	if errors.As(cause, &assignErr) {
		errorCode = assignErr.Code
		message = assignErr.Message
		updates["awb_error"] = assignErr.Message
		updates["awb_error_code"] = assignErr.Code
	}

	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Update(ctx, shipment.ID, updates); err != nil {
			return err
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventAWBAssignmentFailed,
			AggregateType: enums.AggregateShipment,
			AggregateID:   shipment.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole},
			Data: payloads.AWBAssignmentFailedEvent{
				ShipmentID: shipment.ID,
				OrderID:    shipment.OrderID,
				RetryCount: retryCount,
				ErrorCode:  errorCode,
				Error:      message,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if txErr != nil {
		s.logg.Error(ctx, "record awb failure", txErr)
	}

	s.metrics.IncAWBAssignment("failed")
	details := map[string]any{"awb_retry_count": retryCount}
	if errorCode != "" {
		details["awb_error_code"] = errorCode
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "carrier refused awb assignment").
		WithDetails(details)
}

// GenerateLabel fetches the shipping label for a shipment with an AWB.
func (s *service) GenerateLabel(ctx context.Context, shipmentID uuid.UUID) (string, error) {
	if shipmentID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "shipment id required")
	}
	shipment, err := s.repo.FindByID(ctx, shipmentID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipment")
	}
	if shipment.LabelURL != nil {
		return *shipment.LabelURL, nil
	}
	if shipment.AWBCode == nil || shipment.CarrierShipmentID == nil {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "label requires an assigned awb")
	}

	url, err := s.carrier.GenerateLabel(ctx, *shipment.CarrierShipmentID)
	if err != nil {
		return "", err
	}
	if err := s.repo.Update(ctx, shipment.ID, map[string]any{"label_url": url}); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record label url")
	}
	return url, nil
}

// RetryPendingAWBs walks pending shipments whose backoff has elapsed and
// retries assignment. It returns how many shipments gained an AWB.
func (s *service) RetryPendingAWBs(ctx context.Context) (int, error) {
	pending, err := s.repo.ListPendingAWB(ctx, s.cfg.AWBMaxAutoRetries, s.cfg.StatusSyncBatch)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending shipments")
	}

	now := time.Now()
	assigned := 0
	for i := range pending {
		shipment := &pending[i]
		if !awbRetryDue(shipment, now, s.cfg.AWBRetryBase, s.cfg.AWBRetryCap) {
			continue
		}
		if _, err := s.AssignAWB(ctx, AssignAWBInput{ShipmentID: shipment.ID}); err != nil {
			continue
		}
		assigned++
	}
	return assigned, nil
}

// SyncStatuses pulls carrier tracking for active shipments and applies the
// status table. Unknown carrier statuses are recorded but change nothing.
// A failure on one shipment does not stop the sweep; the combined errors
// come back alongside the update count.
func (s *service) SyncStatuses(ctx context.Context) (int, error) {
	active, err := s.repo.ListActiveForSync(ctx, s.cfg.StatusSyncBatch)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active shipments")
	}

	updated := 0
	var errs []error
	for i := range active {
		shipment := &active[i]
		if shipment.AWBCode == nil {
			continue
		}
		tracking, err := s.carrier.Track(ctx, *shipment.AWBCode)
		if err != nil {
			s.logg.Error(ctx, fmt.Sprintf("track awb %s", *shipment.AWBCode), err)
			errs = append(errs, fmt.Errorf("track awb %s: %w", *shipment.AWBCode, err))
			continue
		}
		changed, err := s.applyCarrierStatus(ctx, shipment, tracking.CurrentStatus)
		if err != nil {
			s.logg.Error(ctx, fmt.Sprintf("sync shipment %s", shipment.ID), err)
			errs = append(errs, fmt.Errorf("sync shipment %s: %w", shipment.ID, err))
			continue
		}
		if changed {
			updated++
		}
	}
	s.metrics.AddStatusSyncUpdates(updated)
	return updated, multierr.Combine(errs...)
}

// applyCarrierStatus records the raw carrier text and derives the coarse
// shipment status. Order status stays with its own owners (payment promotion
// and the admin endpoint); reconciliation never touches it.
func (s *service) applyCarrierStatus(ctx context.Context, shipment *models.Shipment, carrierStatus string) (bool, error) {
	coarse, known := MapCarrierStatus(carrierStatus)
	if !known || coarse == shipment.Status {
		if shipment.CarrierStatus == nil || *shipment.CarrierStatus != carrierStatus {
			return false, s.repo.Update(ctx, shipment.ID, map[string]any{"carrier_status": carrierStatus})
		}
		return false, nil
	}

	now := time.Now()
	updates := map[string]any{
		"status":         coarse,
		"carrier_status": carrierStatus,
	}
	switch coarse {
	case enums.ShipmentStatusShipped:
		if shipment.ShippedAt == nil {
			updates["shipped_at"] = now
		}
	case enums.ShipmentStatusDelivered:
		if shipment.DeliveredAt == nil {
			updates["delivered_at"] = now
		}
	case enums.ShipmentStatusCancelled:
		if shipment.CancelledAt == nil {
			updates["cancelled_at"] = now
		}
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Update(ctx, shipment.ID, updates); err != nil {
			return err
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventShipmentStatusChanged,
			AggregateType: enums.AggregateShipment,
			AggregateID:   shipment.ID,
			Version:       1,
			Data: payloads.ShipmentStatusChangedEvent{
				ShipmentID:    shipment.ID,
				OrderID:       shipment.OrderID,
				FromStatus:    shipment.Status,
				ToStatus:      coarse,
				CarrierStatus: carrierStatus,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// TrackByAWB resolves public tracking for a known AWB.
func (s *service) TrackByAWB(ctx context.Context, awb string) (*TrackingView, error) {
	if awb == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "awb required")
	}
	shipment, err := s.repo.FindByAWB(ctx, awb)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipment")
	}

	view := &TrackingView{
		AWB:    awb,
		Status: shipment.Status,
	}
	if shipment.CourierName != nil {
		view.CourierName = *shipment.CourierName
	}
	if shipment.CarrierStatus != nil {
		view.CarrierStatus = *shipment.CarrierStatus
	}
	if shipment.TrackingURL != nil {
		view.TrackingURL = *shipment.TrackingURL
	}

	tracking, err := s.carrier.Track(ctx, awb)
	if err == nil {
		view.CarrierStatus = tracking.CurrentStatus
		view.ETD = tracking.ETD
		if tracking.CourierName != "" {
			view.CourierName = tracking.CourierName
		}
	}
	return view, nil
}

// awbBackoff doubles the base delay per prior attempt, capped.
func awbBackoff(base, cap time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return base
	}
	if attempt > 20 {
		return cap
	}
	delay := base << uint(attempt)
	if delay <= 0 || delay > cap {
		return cap
	}
	return delay
}

// awbRetryDue reports whether a pending shipment's backoff has elapsed.
func awbRetryDue(shipment *models.Shipment, now time.Time, base, cap time.Duration) bool {
	if shipment.LastAWBAttemptAt == nil {
		return true
	}
	wait := awbBackoff(base, cap, shipment.AWBRetryCount-1)
	return !now.Before(shipment.LastAWBAttemptAt.Add(wait))
}
