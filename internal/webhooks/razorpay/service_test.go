package razorpaywebhook

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	pkgerrors "github.com/aurellebeauty/aurelle-backend/pkg/errors"
)

type stubPaymentProcessor struct {
	capturedOrderID   string
	capturedPaymentID string
	failedOrderID     string
	failedReason      string
	capturedCalls     int
	failedCalls       int
	err               error
}

func (s *stubPaymentProcessor) HandleCaptured(ctx context.Context, gatewayOrderID, gatewayPaymentID string) error {
	s.capturedCalls++
	s.capturedOrderID = gatewayOrderID
	s.capturedPaymentID = gatewayPaymentID
	return s.err
}

func (s *stubPaymentProcessor) HandleFailed(ctx context.Context, gatewayOrderID, reason string) error {
	s.failedCalls++
	s.failedOrderID = gatewayOrderID
	s.failedReason = reason
	return s.err
}

func capturedBody(orderID, paymentID string) []byte {
	return []byte(fmt.Sprintf(`{
		"event": "payment.captured",
		"payload": {"payment": {"entity": {"id": %q, "order_id": %q, "status": "captured"}}}
	}`, paymentID, orderID))
}

func TestHandleEventPaymentCaptured(t *testing.T) {
	processor := &stubPaymentProcessor{}
	svc, err := NewService(processor)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	body := capturedBody("order_R5x1", "pay_R5x2")
	if err := svc.HandleEvent(context.Background(), body); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if processor.capturedCalls != 1 {
		t.Fatalf("expected one captured call, got %d", processor.capturedCalls)
	}
	if processor.capturedOrderID != "order_R5x1" || processor.capturedPaymentID != "pay_R5x2" {
		t.Fatalf("unexpected dispatch %q %q", processor.capturedOrderID, processor.capturedPaymentID)
	}
}

func TestHandleEventPaymentFailed(t *testing.T) {
	processor := &stubPaymentProcessor{}
	svc, _ := NewService(processor)

	body := []byte(`{
		"event": "payment.failed",
		"payload": {"payment": {"entity": {"id": "pay_1", "order_id": "order_1", "status": "failed", "error_description": "card declined"}}}
	}`)
	if err := svc.HandleEvent(context.Background(), body); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if processor.failedCalls != 1 {
		t.Fatalf("expected one failed call, got %d", processor.failedCalls)
	}
	if processor.failedOrderID != "order_1" || processor.failedReason != "card declined" {
		t.Fatalf("unexpected dispatch %q %q", processor.failedOrderID, processor.failedReason)
	}
}

func TestHandleEventPaymentFailedFallbackReason(t *testing.T) {
	processor := &stubPaymentProcessor{}
	svc, _ := NewService(processor)

	body := []byte(`{
		"event": "payment.failed",
		"payload": {"payment": {"entity": {"id": "pay_1", "order_id": "order_1", "status": "failed", "error_code": "BAD_REQUEST_ERROR"}}}
	}`)
	if err := svc.HandleEvent(context.Background(), body); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if processor.failedReason != "BAD_REQUEST_ERROR" {
		t.Fatalf("expected error code fallback, got %q", processor.failedReason)
	}
}

func TestHandleEventIgnoresUnknownEvents(t *testing.T) {
	processor := &stubPaymentProcessor{}
	svc, _ := NewService(processor)

	body := []byte(`{"event": "order.paid", "payload": {}}`)
	if err := svc.HandleEvent(context.Background(), body); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if processor.capturedCalls != 0 || processor.failedCalls != 0 {
		t.Fatal("unknown events must not dispatch")
	}
}

func TestHandleEventRejectsMalformedBody(t *testing.T) {
	svc, _ := NewService(&stubPaymentProcessor{})

	for name, body := range map[string][]byte{
		"empty":            nil,
		"invalid json":     []byte(`{`),
		"missing order id": []byte(`{"event": "payment.captured", "payload": {"payment": {"entity": {"id": "pay_1"}}}}`),
	} {
		err := svc.HandleEvent(context.Background(), body)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestHandleEventPropagatesProcessorError(t *testing.T) {
	processor := &stubPaymentProcessor{err: errors.New("settle failed")}
	svc, _ := NewService(processor)

	if err := svc.HandleEvent(context.Background(), capturedBody("order_1", "pay_1")); err == nil {
		t.Fatal("expected processor error to propagate")
	}
}

type stubIdemStore struct {
	data map[string]string
	err  error
}

func (s *stubIdemStore) Get(ctx context.Context, key string) (string, error) {
	return s.data[key], nil
}

func (s *stubIdemStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if _, exists := s.data[key]; exists {
		return false, nil
	}
	s.data[key] = fmt.Sprint(value)
	return true, nil
}

func (s *stubIdemStore) IdempotencyKey(scope, id string) string {
	return "aur:idempotency:" + scope + ":" + id
}

func (s *stubIdemStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func TestIdempotencyGuardCheckAndMark(t *testing.T) {
	store := &stubIdemStore{data: map[string]string{}}
	guard, err := NewIdempotencyGuard(store, time.Hour, "razorpay-webhook")
	if err != nil {
		t.Fatalf("NewIdempotencyGuard: %v", err)
	}

	seen, err := guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil {
		t.Fatalf("CheckAndMark: %v", err)
	}
	if seen {
		t.Fatal("first delivery must not be marked seen")
	}

	seen, err = guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil {
		t.Fatalf("CheckAndMark: %v", err)
	}
	if !seen {
		t.Fatal("second delivery must be marked seen")
	}

	if err := guard.Delete(context.Background(), "evt_1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	seen, err = guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil {
		t.Fatalf("CheckAndMark: %v", err)
	}
	if seen {
		t.Fatal("delete must allow redelivery")
	}
}

func TestIdempotencyGuardStoreError(t *testing.T) {
	guard, err := NewIdempotencyGuard(&stubIdemStore{err: errors.New("redis down")}, time.Hour, "razorpay-webhook")
	if err != nil {
		t.Fatalf("NewIdempotencyGuard: %v", err)
	}
	if _, err := guard.CheckAndMark(context.Background(), "evt_1"); err == nil {
		t.Fatal("expected store error")
	}
}
