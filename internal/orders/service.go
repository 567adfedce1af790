package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aurellebeauty/aurelle-backend/internal/invoices"
	"github.com/aurellebeauty/aurelle-backend/pkg/db/models"
	"github.com/aurellebeauty/aurelle-backend/pkg/enums"
	pkgerrors "github.com/aurellebeauty/aurelle-backend/pkg/errors"
	"github.com/aurellebeauty/aurelle-backend/pkg/logger"
	"github.com/aurellebeauty/aurelle-backend/pkg/metrics"
	"github.com/aurellebeauty/aurelle-backend/pkg/outbox"
	"github.com/aurellebeauty/aurelle-backend/pkg/outbox/payloads"
	"github.com/aurellebeauty/aurelle-backend/pkg/pagination"
	"github.com/aurellebeauty/aurelle-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type invoiceDispatcher interface {
	SendInvoice(ctx context.Context, input invoices.SendInput) (*invoices.SendResult, error)
}

// Requester identifies who is asking for an order.
type Requester struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// ItemInput is one purchased product line at checkout time.
type ItemInput struct {
	ProductID      uuid.UUID
	SKU            string
	Name           string
	Qty            int
	UnitPriceCents int
}

// CreateOrderInput carries everything needed to persist an order.
type CreateOrderInput struct {
	UserID          uuid.UUID
	PaymentMethod   enums.PaymentMethod
	PaymentIntentID *uuid.UUID
	Items           []ItemInput
	ShippingAddress types.Address
	Currency        string
	DiscountCents   int
	ShippingCents   int
	TaxCents        int
	Notes           *string
	ActorRole       enums.UserRole
}

// UpdateStatusInput captures an admin-driven status transition.
type UpdateStatusInput struct {
	OrderID     uuid.UUID
	Target      enums.OrderStatus
	Reason      string
	ActorUserID uuid.UUID
	ActorRole   enums.UserRole
}

// Service defines order-level operations beyond repository reads.
type Service interface {
	CreateCODOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	CreateOrderTx(ctx context.Context, tx *gorm.DB, input CreateOrderInput, status enums.OrderStatus) (*models.Order, error)
	Get(ctx context.Context, requester Requester, orderID uuid.UUID) (*OrderDetail, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) error
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	invoices invoiceDispatcher
	metrics  *metrics.FulfillmentMetrics
	logg     *logger.Logger
}

// NewService builds an orders service with the required dependencies. The
// invoice dispatcher may be nil; COD creation then skips the async invoice
// send.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, inv invoiceDispatcher, m *metrics.FulfillmentMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
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
		repo:     repo,
		tx:       tx,
		outbox:   outboxSvc,
		invoices: inv,
		metrics:  m,
		logg:     logg,
	}, nil
}

func (s *service) CreateCODOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	input.PaymentMethod = enums.PaymentMethodCOD
	input.PaymentIntentID = nil

	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.CreateOrderTx(ctx, tx, input, enums.OrderStatusProcessing)
		if err != nil {
			return err
		}
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.dispatchInvoice(created)
	return created, nil
}

// dispatchInvoice sends the invoice in the background after order creation.
// The send-once claim makes it safe against the customer-triggered endpoint;
// a failed send is logged and never fails order creation.
func (s *service) dispatchInvoice(order *models.Order) {
	if s.invoices == nil || order == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		ctx = s.logg.WithOrderID(ctx, order.ID.String())
		if _, err := s.invoices.SendInvoice(ctx, invoices.SendInput{
			OrderID:     order.ID,
			ActorUserID: order.UserID,
			ActorRole:   enums.UserRoleCustomer,
		}); err != nil {
			s.logg.Error(ctx, "invoice dispatch after cod order", err)
		}
	}()
}

// CreateOrderTx persists an order and queues its creation events inside the
// caller's transaction. Payment-gated callers pass the consumed intent id.
func (s *service) CreateOrderTx(ctx context.Context, tx *gorm.DB, input CreateOrderInput, status enums.OrderStatus) (*models.Order, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	if input.ShippingAddress.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	subtotal := 0
	items := make([]models.OrderItem, 0, len(input.Items))
	for _, item := range input.Items {
		if item.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if item.UnitPriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item price cannot be negative")
		}
		lineTotal := item.Qty * item.UnitPriceCents
		subtotal += lineTotal
		items = append(items, models.OrderItem{
			ProductID:      item.ProductID,
			SKU:            item.SKU,
			Name:           item.Name,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     lineTotal,
		})
	}

	total := subtotal - input.DiscountCents + input.ShippingCents + input.TaxCents
	if total < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total cannot be negative")
	}

	currency := input.Currency
	if currency == "" {
		currency = "INR"
	}

	repo := s.repo.WithTx(tx)
	orderNumber, err := repo.NextOrderNumber(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
	}

	order := &models.Order{
		OrderNumber:     orderNumber,
		UserID:          input.UserID,
		Status:          status,
		PaymentMethod:   input.PaymentMethod,
		PaymentIntentID: input.PaymentIntentID,
		Currency:        currency,
		SubtotalCents:   subtotal,
		DiscountCents:   input.DiscountCents,
		ShippingCents:   input.ShippingCents,
		TaxCents:        input.TaxCents,
		TotalCents:      total,
		ShippingAddress: input.ShippingAddress,
		Notes:           input.Notes,
		Items:           items,
	}
	if _, err := repo.CreateOrder(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	actor := &outbox.ActorRef{UserID: input.UserID, Role: input.ActorRole}
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         actor,
		Data: payloads.OrderCreatedEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			UserID:        order.UserID,
			PaymentMethod: order.PaymentMethod,
			TotalCents:    order.TotalCents,
			Currency:      order.Currency,
		},
	}
	if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
		return nil, err
	}

	notify := outbox.DomainEvent{
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateNotification,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         actor,
		Data: payloads.NotificationRequestedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			UserID:      order.UserID,
			Type:        "order_confirmation",
		},
	}
	if err := s.outbox.EmitIfNotExists(ctx, tx, notify); err != nil {
		return nil, err
	}

	s.metrics.IncOrderCreated(order.PaymentMethod.String())
	return order, nil
}

func (s *service) Get(ctx context.Context, requester Requester, orderID uuid.UUID) (*OrderDetail, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if requester.Role != enums.UserRoleAdmin && order.UserID != requester.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return buildDetail(order), nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	list, err := s.repo.ListUserOrders(ctx, userID, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Target.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == input.Target {
			return nil
		}

		// Admins may set any known status, including moves off terminal
		// states. Only unknown status strings are rejected, above.
		extra := map[string]any{}
		switch input.Target {
		case enums.OrderStatusCancelled:
			extra["cancelled_at"] = time.Now()
		case enums.OrderStatusDelivered:
			extra["delivered_at"] = time.Now()
		}
		if err := repo.UpdateStatus(ctx, order.ID, input.Target, extra); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		actor := &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole}
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				FromStatus:  order.Status,
				ToStatus:    input.Target,
				Reason:      input.Reason,
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

func buildDetail(order *models.Order) *OrderDetail {
	detail := &OrderDetail{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		Status:          order.Status,
		PaymentMethod:   order.PaymentMethod,
		Currency:        order.Currency,
		SubtotalCents:   order.SubtotalCents,
		DiscountCents:   order.DiscountCents,
		ShippingCents:   order.ShippingCents,
		TaxCents:        order.TaxCents,
		TotalCents:      order.TotalCents,
		ShippingAddress: order.ShippingAddress,
		InvoiceSent:     order.InvoiceSent,
		InvoiceNumber:   order.InvoiceNumber,
		Notes:           order.Notes,
		CreatedAt:       order.CreatedAt,
		DeliveredAt:     order.DeliveredAt,
		CancelledAt:     order.CancelledAt,
	}
	for _, item := range order.Items {
		detail.Items = append(detail.Items, OrderItemSummary{
			ProductID:      item.ProductID,
			SKU:            item.SKU,
			Name:           item.Name,
			Qty:            item.Qty,
			UnitPriceCents: item.UnitPriceCents,
			TotalCents:     item.TotalCents,
		})
	}
	if order.Shipment != nil {
		detail.Shipment = &ShipmentSummary{
			Status:      order.Shipment.Status,
			AWBCode:     order.Shipment.AWBCode,
			CourierName: order.Shipment.CourierName,
			TrackingURL: order.Shipment.TrackingURL,
		}
	}
	return detail
}
