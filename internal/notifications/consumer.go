package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/aurellebeauty/aurelle-backend/pkg/db/models"
	"github.com/aurellebeauty/aurelle-backend/pkg/enums"
	"github.com/aurellebeauty/aurelle-backend/pkg/logger"
	"github.com/aurellebeauty/aurelle-backend/pkg/mailer"
	"github.com/aurellebeauty/aurelle-backend/pkg/outbox"
	"github.com/aurellebeauty/aurelle-backend/pkg/outbox/idempotency"
	"github.com/aurellebeauty/aurelle-backend/pkg/outbox/payloads"
)

const consumerName = "notification-worker"

type orderFinder interface {
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type mailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// Consumer turns notification_requested outbox events into customer email.
type Consumer struct {
	orders       orderFinder
	mail         mailSender
	subscription *pubsub.Subscriber
	dedupe       *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer wires the notification consumer. The dedupe manager is optional;
// without it duplicate deliveries fall through to the mailer.
func NewConsumer(orders orderFinder, mail mailSender, subscription *pubsub.Subscriber, dedupe *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if orders == nil {
		return nil, errors.New("orders repository is required")
	}
	if mail == nil {
		return nil, errors.New("mail sender is required")
	}
	if subscription == nil {
		return nil, errors.New("notification subscription is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		orders:       orders,
		mail:         mail,
		subscription: subscription,
		dedupe:       dedupe,
		logg:         logg,
	}, nil
}

// Run processes notification events until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Attributes, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether the message should be acked. Malformed messages are
// acked so they do not poison the subscription; transient failures nack for
// redelivery.
func (c *Consumer) process(ctx context.Context, msgID string, attrs map[string]string, data []byte) bool {
	logCtx := c.logg.WithField(ctx, "message_id", msgID)

	if eventType := attrs["event_type"]; eventType != string(enums.EventNotificationRequested) {
		c.logg.Info(c.logg.WithField(logCtx, "event_type", eventType), "skipping non-notification event")
		return true
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return true
	}
	var event payloads.NotificationRequestedEvent
	if err := json.Unmarshal(envelope.Data, &event); err != nil {
		c.logg.Error(logCtx, "failed to decode notification payload", err)
		return true
	}
	if event.OrderID == uuid.Nil {
		c.logg.Error(logCtx, "notification payload missing order id", errors.New("empty order_id"))
		return true
	}

	if c.dedupe != nil {
		eventID, err := uuid.Parse(envelope.EventID)
		if err != nil {
			c.logg.Error(logCtx, "invalid event id in envelope", err)
			return true
		}
		processed, err := c.dedupe.CheckAndMarkProcessed(ctx, consumerName, eventID)
		if err != nil {
			c.logg.Error(logCtx, "failed to check event idempotency", err)
			return false
		}
		if processed {
			c.logg.Info(c.logg.WithField(logCtx, "event_id", envelope.EventID), "skipping already processed event")
			return true
		}
	}

	logCtx = c.logg.WithOrderID(logCtx, event.OrderID.String())

	order, err := c.orders.FindByID(ctx, event.OrderID)
	if err != nil {
		c.logg.Error(logCtx, "failed to load order for notification", err)
		c.releaseDedupe(logCtx, envelope.EventID)
		return false
	}
	recipient := order.ShippingAddress.Email
	if recipient == "" {
		c.logg.Warn(logCtx, "order has no recipient email, dropping notification")
		return true
	}

	msg := buildMessage(recipient, order, event)
	if err := c.mail.Send(ctx, msg); err != nil {
		c.logg.Error(logCtx, "failed to send notification email", err)
		c.releaseDedupe(logCtx, envelope.EventID)
		return false
	}

	c.logg.Info(c.logg.WithField(logCtx, "notification_type", event.Type), "notification email sent")
	return true
}

// releaseDedupe clears the processed mark so a nacked message can retry.
func (c *Consumer) releaseDedupe(ctx context.Context, rawEventID string) {
	if c.dedupe == nil {
		return
	}
	eventID, err := uuid.Parse(rawEventID)
	if err != nil {
		return
	}
	if err := c.dedupe.Delete(ctx, consumerName, eventID); err != nil {
		c.logg.Error(ctx, "failed to release event idempotency mark", err)
	}
}

func buildMessage(recipient string, order *models.Order, event payloads.NotificationRequestedEvent) mailer.Message {
	subject, body := notificationCopy(event.Type, event.OrderNumber)
	return mailer.Message{
		To:        recipient,
		ToName:    order.ShippingAddress.Name,
		Subject:   subject,
		PlainBody: body,
	}
}

func notificationCopy(kind string, orderNumber int64) (string, string) {
	switch kind {
	case "order_confirmation":
		return fmt.Sprintf("Your Aurelle Beauty order #%d is confirmed", orderNumber),
			fmt.Sprintf("Thank you for your order #%d. We will email you again when it ships.", orderNumber)
	case "order_shipped":
		return fmt.Sprintf("Your Aurelle Beauty order #%d has shipped", orderNumber),
			fmt.Sprintf("Order #%d is on its way. Track it from your orders page.", orderNumber)
	case "order_delivered":
		return fmt.Sprintf("Your Aurelle Beauty order #%d was delivered", orderNumber),
			fmt.Sprintf("Order #%d has been delivered. We hope you love it.", orderNumber)
	default:
		return fmt.Sprintf("Update on your Aurelle Beauty order #%d", orderNumber),
			fmt.Sprintf("There is an update on order #%d. Visit your orders page for details.", orderNumber)
	}
}
