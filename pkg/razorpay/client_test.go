package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/aurellebeauty/aurelle-backend/pkg/errors"
	"github.com/aurellebeauty/aurelle-backend/pkg/logger"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	return &Client{
		httpClient:    http.DefaultClient,
		keyID:         "rzp_test_abc123",
		keySecret:     "secret123",
		webhookSecret: "whsecret456",
		environment:   testEnv,
		baseURL:       defaultBaseURL,
		logger:        logger.New(logger.Options{Output: io.Discard}),
	}
}

func sign(t *testing.T, payload, secret string) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyPaymentSignature(t *testing.T) {
	c := newTestClient(t)

	orderID := "order_ABC"
	paymentID := "pay_XYZ"
	good := sign(t, orderID+"|"+paymentID, c.keySecret)

	if err := c.VerifyPaymentSignature(orderID, paymentID, good); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}

	err := c.VerifyPaymentSignature(orderID, paymentID, "deadbeef")
	if err == nil {
		t.Fatal("expected signature mismatch")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeSignature {
		t.Fatalf("expected signature code, got %v", err)
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	c := newTestClient(t)

	body := []byte(`{"event":"payment.captured"}`)
	good := sign(t, string(body), c.webhookSecret)

	if err := c.VerifyWebhookSignature(body, good); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
	if err := c.VerifyWebhookSignature(body, "bad"); err == nil {
		t.Fatal("expected signature mismatch")
	}
	if err := c.VerifyWebhookSignature(nil, good); err == nil {
		t.Fatal("expected error for empty body")
	}
}

func TestCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/orders" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_test_abc123" || pass != "secret123" {
			t.Errorf("unexpected basic auth %q %q", user, pass)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"order_ABC","entity":"order","amount":129900,"currency":"INR","status":"created"}`))
	}))
	defer srv.Close()

	c := newTestClient(t)
	c.SetBaseURL(srv.URL)

	order, err := c.CreateOrder(context.Background(), OrderCreateParams{
		AmountCents: 129900,
		Currency:    "INR",
		Receipt:     "AUR-10042",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.ID != "order_ABC" || order.Amount != 129900 {
		t.Fatalf("unexpected order %+v", order)
	}
}

func TestCreateOrderAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount exceeds maximum"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t)
	c.SetBaseURL(srv.URL)

	_, err := c.CreateOrder(context.Background(), OrderCreateParams{AmountCents: 100})
	if err == nil {
		t.Fatal("expected error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation code, got %v", err)
	}
}

func TestCreateOrderRejectsNonPositiveAmount(t *testing.T) {
	c := newTestClient(t)
	if _, err := c.CreateOrder(context.Background(), OrderCreateParams{AmountCents: 0}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestNormalizeEnv(t *testing.T) {
	if env, err := normalizeEnv(""); err != nil || env != testEnv {
		t.Fatalf("expected default test env, got %q %v", env, err)
	}
	if _, err := normalizeEnv("staging"); err == nil {
		t.Fatal("expected invalid env error")
	}
}

func TestValidateKeyID(t *testing.T) {
	if err := validateKeyID(testEnv, "rzp_test_abc"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := validateKeyID(liveEnv, "rzp_test_abc"); err == nil {
		t.Fatal("expected live env to reject test key")
	}
}

func TestRedact(t *testing.T) {
	c := newTestClient(t)
	if out := c.redact("signature", "abc"); out != "[REDACTED]" {
		t.Fatalf("expected redacted value, got %v", out)
	}
	if out := c.redact("order_id", "order_1"); out != "order_1" {
		t.Fatalf("unexpected redaction for safe key")
	}
}
