package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aurellebeauty/aurelle-backend/internal/invoices"
	"github.com/aurellebeauty/aurelle-backend/internal/orders"
	"github.com/aurellebeauty/aurelle-backend/pkg/db/models"
	"github.com/aurellebeauty/aurelle-backend/pkg/enums"
	pkgerrors "github.com/aurellebeauty/aurelle-backend/pkg/errors"
	"github.com/aurellebeauty/aurelle-backend/pkg/logger"
	"github.com/aurellebeauty/aurelle-backend/pkg/metrics"
	"github.com/aurellebeauty/aurelle-backend/pkg/outbox"
	"github.com/aurellebeauty/aurelle-backend/pkg/outbox/payloads"
	"github.com/aurellebeauty/aurelle-backend/pkg/razorpay"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type gateway interface {
	CreateOrder(ctx context.Context, params razorpay.OrderCreateParams) (*razorpay.Order, error)
	VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) error
	KeyID() string
}

type orderCreator interface {
	CreateOrderTx(ctx context.Context, tx *gorm.DB, input orders.CreateOrderInput, status enums.OrderStatus) (*models.Order, error)
}

type orderFinder interface {
	FindByPaymentIntent(ctx context.Context, paymentIntentID uuid.UUID) (*models.Order, error)
}

type invoiceDispatcher interface {
	SendInvoice(ctx context.Context, input invoices.SendInput) (*invoices.SendResult, error)
}

// Service defines payment-gated checkout operations.
type Service interface {
	InitiateCheckout(ctx context.Context, input CheckoutInput) (*CheckoutSession, error)
	VerifyPayment(ctx context.Context, input VerifyInput) (*models.Order, error)
	HandleCaptured(ctx context.Context, gatewayOrderID, gatewayPaymentID string) error
	HandleFailed(ctx context.Context, gatewayOrderID, reason string) error
}

type service struct {
	repo      Repository
	orderRepo orderFinder
	orderSvc  orderCreator
	gateway   gateway
	tx        txRunner
	outbox    outboxPublisher
	invoices  invoiceDispatcher
	metrics   *metrics.FulfillmentMetrics
	logg      *logger.Logger
}

// NewService builds a payments service with the required dependencies. The
// invoice dispatcher may be nil; captures then skip the async invoice send.
func NewService(
	repo Repository,
	orderRepo orderFinder,
	orderSvc orderCreator,
	gw gateway,
	tx txRunner,
	outboxSvc outboxPublisher,
	inv invoiceDispatcher,
	m *metrics.FulfillmentMetrics,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if gw == nil {
		return nil, fmt.Errorf("payment gateway required")
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
		repo:      repo,
		orderRepo: orderRepo,
		orderSvc:  orderSvc,
		gateway:   gw,
		tx:        tx,
		outbox:    outboxSvc,
		invoices:  inv,
		metrics:   m,
		logg:      logg,
	}, nil
}

// InitiateCheckout registers a gateway order for the cart total and freezes
// the cart into a payment intent. The intent, not the verify request, is the
// source of truth for what the order will contain.
func (s *service) InitiateCheckout(ctx context.Context, input CheckoutInput) (*CheckoutSession, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart must contain at least one item")
	}
	if input.ShippingAddress.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}

	subtotal := 0
	for _, item := range input.Items {
		if item.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if item.UnitPriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item price cannot be negative")
		}
		subtotal += item.Qty * item.UnitPriceCents
	}
	total := subtotal - input.DiscountCents + input.ShippingCents + input.TaxCents
	if total <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payable amount must be positive")
	}

	currency := input.Currency
	if currency == "" {
		currency = "INR"
	}

	snapshot := CartSnapshot{
		Items:           input.Items,
		ShippingAddress: input.ShippingAddress,
		Currency:        currency,
		DiscountCents:   input.DiscountCents,
		ShippingCents:   input.ShippingCents,
		TaxCents:        input.TaxCents,
		Notes:           input.Notes,
	}
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding cart snapshot")
	}

	intentID := uuid.New()
	gwOrder, err := s.gateway.CreateOrder(ctx, razorpay.OrderCreateParams{
		AmountCents: total,
		Currency:    currency,
		Receipt:     intentID.String(),
	})
	if err != nil {
		return nil, err
	}

	intent := &models.PaymentIntent{
		ID:             intentID,
		UserID:         input.UserID,
		GatewayOrderID: gwOrder.ID,
		Status:         enums.PaymentStatusCreated,
		AmountCents:    total,
		Currency:       currency,
		CartSnapshot:   encoded,
	}
	if _, err := s.repo.Create(ctx, intent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}

	ctx = s.logg.WithUserID(ctx, input.UserID.String())
	s.logg.Info(ctx, fmt.Sprintf("checkout initiated intent=%s amount=%d", intent.ID, total))

	return &CheckoutSession{
		PaymentIntentID: intent.ID,
		GatewayOrderID:  gwOrder.ID,
		GatewayKeyID:    s.gateway.KeyID(),
		AmountCents:     total,
		Currency:        currency,
	}, nil
}

// VerifyPayment validates the checkout callback signature, consumes the
// intent, and creates the order in one transaction. Replays return the
// already-created order.
func (s *service) VerifyPayment(ctx context.Context, input VerifyInput) (*models.Order, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.GatewayOrderID == "" || input.GatewayPaymentID == "" || input.Signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order, payment, and signature are required")
	}

	intent, err := s.repo.FindByGatewayOrderID(ctx, input.GatewayOrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment intent")
	}
	if intent.UserID != input.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
	}

	if err := s.gateway.VerifyPaymentSignature(input.GatewayOrderID, input.GatewayPaymentID, input.Signature); err != nil {
		s.metrics.IncPaymentVerification("signature_mismatch")
		return nil, err
	}

	order, err := s.settleIntent(ctx, intent, input.GatewayPaymentID)
	if err != nil {
		s.metrics.IncPaymentVerification("failed")
		return nil, err
	}
	s.metrics.IncPaymentVerification("verified")
	return order, nil
}

// HandleCaptured settles an intent from a gateway capture webhook. It covers
// the customer who paid and then closed the tab before the verify call.
func (s *service) HandleCaptured(ctx context.Context, gatewayOrderID, gatewayPaymentID string) error {
	if gatewayOrderID == "" || gatewayPaymentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway order and payment are required")
	}
	intent, err := s.repo.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment intent")
	}
	if _, err := s.settleIntent(ctx, intent, gatewayPaymentID); err != nil {
		return err
	}
	return nil
}

// HandleFailed records a gateway payment failure against the intent. The
// intent stays unconsumed so the customer can retry checkout.
func (s *service) HandleFailed(ctx context.Context, gatewayOrderID, reason string) error {
	if gatewayOrderID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "gateway order is required")
	}
	intent, err := s.repo.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "payment intent not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment intent")
	}
	if intent.Consumed {
		return nil
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.MarkFailed(ctx, intent.ID, reason); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePaymentIntent,
			AggregateID:   intent.ID,
			Version:       1,
			Data: payloads.PaymentFailedEvent{
				PaymentIntentID: intent.ID,
				GatewayOrderID:  intent.GatewayOrderID,
				Reason:          reason,
				FailedAt:        time.Now(),
			},
		}
		return s.outbox.EmitIfNotExists(ctx, tx, event)
	})
}

// settleIntent consumes the intent and creates the order atomically. When the
// intent is already consumed it resolves the existing order instead.
func (s *service) settleIntent(ctx context.Context, intent *models.PaymentIntent, gatewayPaymentID string) (*models.Order, error) {
	var created *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		claimed, err := repo.Consume(ctx, intent.ID, gatewayPaymentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume payment intent")
		}
		if !claimed {
			return nil
		}

		var snapshot CartSnapshot
		if err := json.Unmarshal(intent.CartSnapshot, &snapshot); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decoding cart snapshot")
		}

		items := make([]orders.ItemInput, 0, len(snapshot.Items))
		for _, item := range snapshot.Items {
			items = append(items, orders.ItemInput{
				ProductID:      item.ProductID,
				SKU:            item.SKU,
				Name:           item.Name,
				Qty:            item.Qty,
				UnitPriceCents: item.UnitPriceCents,
			})
		}
		intentID := intent.ID
		order, err := s.orderSvc.CreateOrderTx(ctx, tx, orders.CreateOrderInput{
			UserID:          intent.UserID,
			PaymentMethod:   enums.PaymentMethodOnline,
			PaymentIntentID: &intentID,
			Items:           items,
			ShippingAddress: snapshot.ShippingAddress,
			Currency:        snapshot.Currency,
			DiscountCents:   snapshot.DiscountCents,
			ShippingCents:   snapshot.ShippingCents,
			TaxCents:        snapshot.TaxCents,
			Notes:           snapshot.Notes,
			ActorRole:       enums.UserRoleCustomer,
		}, enums.OrderStatusProcessing)
		if err != nil {
			return err
		}
		created = order

		event := outbox.DomainEvent{
			EventType:     enums.EventPaymentCaptured,
			AggregateType: enums.AggregatePaymentIntent,
			AggregateID:   intent.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: intent.UserID, Role: enums.UserRoleCustomer},
			Data: payloads.PaymentCapturedEvent{
				PaymentIntentID:  intent.ID,
				OrderID:          order.ID,
				GatewayOrderID:   intent.GatewayOrderID,
				GatewayPaymentID: gatewayPaymentID,
				AmountCents:      intent.AmountCents,
				CapturedAt:       time.Now(),
			},
		}
		return s.outbox.EmitIfNotExists(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}
	if created != nil {
		ctx = s.logg.WithOrderID(ctx, created.ID.String())
		s.logg.Info(ctx, fmt.Sprintf("payment captured intent=%s order=%d", intent.ID, created.OrderNumber))
		s.dispatchInvoice(created)
		return created, nil
	}

	// Intent was consumed by an earlier verify or webhook.
	existing, err := s.orderRepo.FindByPaymentIntent(ctx, intent.ID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment intent already consumed")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load existing order")
	}
	return existing, nil
}

// dispatchInvoice sends the invoice in the background after a capture. The
// send-once claim makes it safe against the customer-triggered endpoint; a
// failed send is logged and never fails the payment flow.
func (s *service) dispatchInvoice(order *models.Order) {
	if s.invoices == nil {
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
			s.logg.Error(ctx, "invoice dispatch after capture", err)
		}
	}()
}
