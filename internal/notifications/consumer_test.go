package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aurellebeauty/aurelle-backend/pkg/db/models"
	"github.com/aurellebeauty/aurelle-backend/pkg/enums"
	"github.com/aurellebeauty/aurelle-backend/pkg/logger"
	"github.com/aurellebeauty/aurelle-backend/pkg/mailer"
	"github.com/aurellebeauty/aurelle-backend/pkg/outbox"
	"github.com/aurellebeauty/aurelle-backend/pkg/outbox/idempotency"
	"github.com/aurellebeauty/aurelle-backend/pkg/outbox/payloads"
	"github.com/aurellebeauty/aurelle-backend/pkg/types"
)

type stubOrderFinder struct {
	order *models.Order
	err   error
}

func (s *stubOrderFinder) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

type stubMailSender struct {
	sent []mailer.Message
	err  error
}

func (s *stubMailSender) Send(ctx context.Context, msg mailer.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func testConsumer(t *testing.T, orders orderFinder, mail mailSender) *Consumer {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "notifications-test", Output: io.Discard})
	return &Consumer{orders: orders, mail: mail, logg: logg}
}

type fakeIdemStore struct {
	values map[string]string
}

func newFakeIdemStore() *fakeIdemStore {
	return &fakeIdemStore{values: map[string]string{}}
}

func (f *fakeIdemStore) Get(ctx context.Context, key string) (string, error) {
	return f.values[key], nil
}

func (f *fakeIdemStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = "1"
	return true, nil
}

func (f *fakeIdemStore) IdempotencyKey(scope, id string) string {
	return "aur:idempotency:" + scope + ":" + id
}

func (f *fakeIdemStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func notificationData(t *testing.T, event payloads.NotificationRequestedEvent) []byte {
	return notificationDataWithEventID(t, event, uuid.NewString())
}

func notificationDataWithEventID(t *testing.T, event payloads.NotificationRequestedEvent, eventID string) []byte {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return payload
}

func notificationAttrs() map[string]string {
	return map[string]string{"event_type": string(enums.EventNotificationRequested)}
}

func TestConsumerSendsOrderConfirmation(t *testing.T) {
	orderID := uuid.New()
	finder := &stubOrderFinder{order: &models.Order{
		ID:          orderID,
		OrderNumber: 10042,
		ShippingAddress: types.Address{
			Name:  "Priya Nair",
			Email: "priya@example.com",
		},
	}}
	mail := &stubMailSender{}
	consumer := testConsumer(t, finder, mail)

	data := notificationData(t, payloads.NotificationRequestedEvent{
		OrderID:     orderID,
		OrderNumber: 10042,
		UserID:      uuid.New(),
		Type:        "order_confirmation",
	})

	if !consumer.process(context.Background(), "m1", notificationAttrs(), data) {
		t.Fatal("expected ack")
	}
	if len(mail.sent) != 1 {
		t.Fatalf("expected one email got %d", len(mail.sent))
	}
	msg := mail.sent[0]
	if msg.To != "priya@example.com" || msg.ToName != "Priya Nair" {
		t.Fatalf("unexpected recipient %+v", msg)
	}
	if msg.Subject != "Your Aurelle Beauty order #10042 is confirmed" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
}

func TestConsumerSkipsForeignEventTypes(t *testing.T) {
	mail := &stubMailSender{}
	consumer := testConsumer(t, &stubOrderFinder{}, mail)

	attrs := map[string]string{"event_type": string(enums.EventOrderCreated)}
	if !consumer.process(context.Background(), "m2", attrs, []byte(`{}`)) {
		t.Fatal("foreign events must be acked")
	}
	if len(mail.sent) != 0 {
		t.Fatal("foreign events must not send mail")
	}
}

func TestConsumerAcksMalformedPayload(t *testing.T) {
	mail := &stubMailSender{}
	consumer := testConsumer(t, &stubOrderFinder{}, mail)

	if !consumer.process(context.Background(), "m3", notificationAttrs(), []byte(`{not json`)) {
		t.Fatal("malformed payloads must be acked")
	}
	if len(mail.sent) != 0 {
		t.Fatal("malformed payloads must not send mail")
	}
}

func TestConsumerNacksWhenSendFails(t *testing.T) {
	orderID := uuid.New()
	finder := &stubOrderFinder{order: &models.Order{
		ID:              orderID,
		OrderNumber:     10043,
		ShippingAddress: types.Address{Email: "priya@example.com"},
	}}
	mail := &stubMailSender{err: errors.New("sendgrid unavailable")}
	consumer := testConsumer(t, finder, mail)

	data := notificationData(t, payloads.NotificationRequestedEvent{
		OrderID:     orderID,
		OrderNumber: 10043,
		Type:        "order_confirmation",
	})

	if consumer.process(context.Background(), "m4", notificationAttrs(), data) {
		t.Fatal("send failures must nack for redelivery")
	}
}

func TestConsumerSkipsDuplicateDeliveries(t *testing.T) {
	orderID := uuid.New()
	finder := &stubOrderFinder{order: &models.Order{
		ID:              orderID,
		OrderNumber:     10045,
		ShippingAddress: types.Address{Email: "priya@example.com"},
	}}
	mail := &stubMailSender{}
	consumer := testConsumer(t, finder, mail)

	dedupe, err := idempotency.NewManager(newFakeIdemStore(), time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	consumer.dedupe = dedupe

	data := notificationDataWithEventID(t, payloads.NotificationRequestedEvent{
		OrderID:     orderID,
		OrderNumber: 10045,
		Type:        "order_confirmation",
	}, uuid.NewString())

	if !consumer.process(context.Background(), "m6", notificationAttrs(), data) {
		t.Fatal("first delivery must ack")
	}
	if !consumer.process(context.Background(), "m6-redelivery", notificationAttrs(), data) {
		t.Fatal("duplicate delivery must ack")
	}
	if len(mail.sent) != 1 {
		t.Fatalf("expected one email across deliveries, got %d", len(mail.sent))
	}
}

func TestConsumerReleasesDedupeOnSendFailure(t *testing.T) {
	orderID := uuid.New()
	finder := &stubOrderFinder{order: &models.Order{
		ID:              orderID,
		OrderNumber:     10046,
		ShippingAddress: types.Address{Email: "priya@example.com"},
	}}
	mail := &stubMailSender{err: errors.New("sendgrid unavailable")}
	consumer := testConsumer(t, finder, mail)

	dedupe, err := idempotency.NewManager(newFakeIdemStore(), time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	consumer.dedupe = dedupe

	data := notificationDataWithEventID(t, payloads.NotificationRequestedEvent{
		OrderID:     orderID,
		OrderNumber: 10046,
		Type:        "order_confirmation",
	}, uuid.NewString())

	if consumer.process(context.Background(), "m7", notificationAttrs(), data) {
		t.Fatal("send failure must nack")
	}

	mail.err = nil
	if !consumer.process(context.Background(), "m7-redelivery", notificationAttrs(), data) {
		t.Fatal("redelivery after failure must ack")
	}
	if len(mail.sent) != 1 {
		t.Fatalf("expected one email after retry, got %d", len(mail.sent))
	}
}

func TestConsumerDropsOrdersWithoutEmail(t *testing.T) {
	orderID := uuid.New()
	finder := &stubOrderFinder{order: &models.Order{ID: orderID, OrderNumber: 10044}}
	mail := &stubMailSender{}
	consumer := testConsumer(t, finder, mail)

	data := notificationData(t, payloads.NotificationRequestedEvent{
		OrderID:     orderID,
		OrderNumber: 10044,
		Type:        "order_confirmation",
	})

	if !consumer.process(context.Background(), "m5", notificationAttrs(), data) {
		t.Fatal("orders without email must ack")
	}
	if len(mail.sent) != 0 {
		t.Fatal("no mail expected")
	}
}
