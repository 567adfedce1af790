package invoices

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/aurellebeauty/aurelle-backend/pkg/config"
	"github.com/aurellebeauty/aurelle-backend/pkg/db/models"
	"github.com/aurellebeauty/aurelle-backend/pkg/enums"
	pkgerrors "github.com/aurellebeauty/aurelle-backend/pkg/errors"
	"github.com/aurellebeauty/aurelle-backend/pkg/logger"
	"github.com/aurellebeauty/aurelle-backend/pkg/mailer"
	"github.com/aurellebeauty/aurelle-backend/pkg/metrics"
	"github.com/aurellebeauty/aurelle-backend/pkg/outbox"
	"github.com/aurellebeauty/aurelle-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type ordersStore interface {
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ClaimInvoiceSend(ctx context.Context, orderID uuid.UUID, invoiceNumber string) (bool, error)
	ReleaseInvoiceClaim(ctx context.Context, orderID uuid.UUID) error
}

type mailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// SendInput identifies the order and who asked for the invoice.
type SendInput struct {
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.UserRole
}

// SendResult reports the outcome of an invoice send.
type SendResult struct {
	InvoiceNumber string `json:"invoice_number"`
	AlreadySent   bool   `json:"already_sent"`
}

// Service sends the tax invoice for a paid order exactly once.
type Service interface {
	SendInvoice(ctx context.Context, input SendInput) (*SendResult, error)
}

type service struct {
	orders     ordersStore
	mail       mailSender
	tx         txRunner
	outbox     outboxPublisher
	cfg        config.InvoiceConfig
	gstPercent decimal.Decimal
	metrics    *metrics.FulfillmentMetrics
	logg       *logger.Logger
}

// NewService builds an invoices service with the required dependencies.
func NewService(
	ordersRepo ordersStore,
	mail mailSender,
	tx txRunner,
	outboxSvc outboxPublisher,
	cfg config.InvoiceConfig,
	m *metrics.FulfillmentMetrics,
	logg *logger.Logger,
) (Service, error) {
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if mail == nil {
		return nil, fmt.Errorf("mail sender required")
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
	percent, err := decimal.NewFromString(strings.TrimSpace(cfg.GSTPercent))
	if err != nil {
		return nil, fmt.Errorf("invalid gst percent %q: %w", cfg.GSTPercent, err)
	}
	if percent.IsNegative() {
		return nil, fmt.Errorf("gst percent cannot be negative")
	}
	return &service{
		orders:     ordersRepo,
		mail:       mail,
		tx:         tx,
		outbox:     outboxSvc,
		cfg:        cfg,
		gstPercent: percent,
		metrics:    m,
		logg:       logg,
	}, nil
}

// SendInvoice claims the order's send-once flag, emails the rendered invoice,
// and queues the invoice_sent event. A lost claim means the invoice already
// went out and the call is a no-op. A failed send releases the claim so the
// invoice can be retried.
func (s *service) SendInvoice(ctx context.Context, input SendInput) (*SendResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.orders.FindByID(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	switch order.Status {
	case enums.OrderStatusPendingPayment:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invoice available only after payment")
	case enums.OrderStatusCancelled, enums.OrderStatusFailed:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("no invoice for %s order", order.Status))
	}

	recipient := strings.TrimSpace(order.ShippingAddress.Email)
	if recipient == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no recipient email")
	}

	invoiceNumber := invoiceNumberFor(s.cfg.NumberPrefix, order.OrderNumber)
	claimed, err := s.orders.ClaimInvoiceSend(ctx, order.ID, invoiceNumber)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim invoice send")
	}
	if !claimed {
		s.metrics.IncInvoiceSend("duplicate")
		if order.InvoiceNumber != nil {
			invoiceNumber = *order.InvoiceNumber
		}
		return &SendResult{InvoiceNumber: invoiceNumber, AlreadySent: true}, nil
	}

	tax := computeGST(order.TotalCents, s.gstPercent)
	inv := buildInvoice(order, invoiceNumber, s.cfg, tax)
	html, err := renderHTML(inv)
	if err != nil {
		s.release(ctx, order.ID)
		s.metrics.IncInvoiceSend("failed")
		return nil, err
	}

	msg := mailer.Message{
		To:       recipient,
		ToName:   order.ShippingAddress.Name,
		Subject:  fmt.Sprintf("Your %s invoice for order #%d", s.cfg.SellerName, order.OrderNumber),
		HTMLBody: html,
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		s.release(ctx, order.ID)
		s.metrics.IncInvoiceSend("failed")
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		event := outbox.DomainEvent{
			EventType:     enums.EventInvoiceSent,
			AggregateType: enums.AggregateInvoice,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: input.ActorRole},
			Data: payloads.InvoiceSentEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				InvoiceNumber: invoiceNumber,
				RecipientHint: maskEmail(recipient),
				SentAt:        time.Now(),
			},
		}
		return s.outbox.EmitIfNotExists(ctx, tx, event)
	})
	if err != nil {
		// Mail went out; keep the claim and surface the event failure.
		s.metrics.IncInvoiceSend("sent")
		return nil, err
	}

	s.metrics.IncInvoiceSend("sent")
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(ctx, fmt.Sprintf("invoice %s sent for order %d", invoiceNumber, order.OrderNumber))
	return &SendResult{InvoiceNumber: invoiceNumber}, nil
}

func (s *service) release(ctx context.Context, orderID uuid.UUID) {
	if err := s.orders.ReleaseInvoiceClaim(ctx, orderID); err != nil {
		s.logg.Error(ctx, "release invoice claim", err)
	}
}

// maskEmail keeps the first character and the domain for event payloads.
func maskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
