package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/aurellebeauty/aurelle-backend/api/middleware"
	"github.com/aurellebeauty/aurelle-backend/internal/payments"
	"github.com/aurellebeauty/aurelle-backend/pkg/db/models"
	"github.com/aurellebeauty/aurelle-backend/pkg/enums"
	pkgerrors "github.com/aurellebeauty/aurelle-backend/pkg/errors"
)

type stubPaymentsService struct {
	checkoutInput *payments.CheckoutInput
	session       *payments.CheckoutSession
	verifyInput   *payments.VerifyInput
	order         *models.Order
	err           error
}

func (s *stubPaymentsService) InitiateCheckout(ctx context.Context, input payments.CheckoutInput) (*payments.CheckoutSession, error) {
	s.checkoutInput = &input
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

func (s *stubPaymentsService) VerifyPayment(ctx context.Context, input payments.VerifyInput) (*models.Order, error) {
	s.verifyInput = &input
	if s.err != nil {
		return nil, s.err
	}
	return s.order, nil
}

func (s *stubPaymentsService) HandleCaptured(ctx context.Context, gatewayOrderID, gatewayPaymentID string) error {
	return s.err
}

func (s *stubPaymentsService) HandleFailed(ctx context.Context, gatewayOrderID, reason string) error {
	return s.err
}

func authedRequest(method, target, body string, userID uuid.UUID, role enums.UserRole) *http.Request {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithRole(ctx, string(role))
	return req.WithContext(ctx)
}

func TestCheckoutCreatesSession(t *testing.T) {
	userID := uuid.New()
	intentID := uuid.New()
	svc := &stubPaymentsService{
		session: &payments.CheckoutSession{
			PaymentIntentID: intentID,
			GatewayOrderID:  "order_R1",
			GatewayKeyID:    "rzp_test_key",
			AmountCents:     219800,
			Currency:        "INR",
		},
	}

	body := `{
		"items": [{"product_id": "` + uuid.NewString() + `", "sku": "AUR-SER-30", "name": "Radiance Serum 30ml", "qty": 2, "unit_price_cents": 109900}],
		"shipping_address": {"name": "Priya Nair", "phone": "+919800000001", "email": "priya@example.com", "line1": "14 Lake Rd", "city": "Bengaluru", "state": "KA", "postal_code": "560001", "country": "IN"}
	}`
	resp := httptest.NewRecorder()
	Checkout(&stubOrdersService{}, svc, nil)(resp, authedRequest(http.MethodPost, "/api/v1/checkout", body, userID, enums.UserRoleCustomer))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.checkoutInput == nil {
		t.Fatal("expected service call")
	}
	if svc.checkoutInput.UserID != userID {
		t.Fatalf("expected user %s got %s", userID, svc.checkoutInput.UserID)
	}
	if len(svc.checkoutInput.Items) != 1 || svc.checkoutInput.Items[0].Qty != 2 {
		t.Fatalf("unexpected items %+v", svc.checkoutInput.Items)
	}

	var envelope struct {
		Data payments.CheckoutSession `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.GatewayOrderID != "order_R1" || envelope.Data.GatewayKeyID != "rzp_test_key" {
		t.Fatalf("unexpected session %+v", envelope.Data)
	}
}

func TestCheckoutCODCreatesOrder(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	paymentsSvc := &stubPaymentsService{}
	ordersSvc := &stubOrdersService{codOrder: &models.Order{
		ID:            orderID,
		OrderNumber:   10042,
		Status:        enums.OrderStatusProcessing,
		PaymentMethod: enums.PaymentMethodCOD,
		TotalCents:    219800,
		Currency:      "INR",
	}}

	body := `{
		"items": [{"product_id": "` + uuid.NewString() + `", "sku": "AUR-SER-30", "name": "Radiance Serum 30ml", "qty": 2, "unit_price_cents": 109900}],
		"shipping_address": {"name": "Priya Nair", "phone": "+919800000001", "email": "priya@example.com", "line1": "14 Lake Rd", "city": "Bengaluru", "state": "KA", "postal_code": "560001", "country": "IN"},
		"payment_method": "cash_on_delivery"
	}`
	resp := httptest.NewRecorder()
	Checkout(ordersSvc, paymentsSvc, nil)(resp, authedRequest(http.MethodPost, "/api/v1/checkout", body, userID, enums.UserRoleCustomer))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if paymentsSvc.checkoutInput != nil {
		t.Fatal("cod checkout must not open a gateway session")
	}
	if ordersSvc.codInput == nil || ordersSvc.codInput.UserID != userID {
		t.Fatalf("unexpected cod input %+v", ordersSvc.codInput)
	}

	var envelope struct {
		Data codOrderResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.OrderID != orderID || envelope.Data.PaymentMethod != enums.PaymentMethodCOD {
		t.Fatalf("unexpected order payload %+v", envelope.Data)
	}
}

func TestCheckoutRejectsUnknownPaymentMethod(t *testing.T) {
	svc := &stubPaymentsService{}
	ordersSvc := &stubOrdersService{}
	body := `{
		"items": [{"product_id": "` + uuid.NewString() + `", "sku": "AUR-SER-30", "name": "Radiance Serum 30ml", "qty": 1, "unit_price_cents": 109900}],
		"shipping_address": {"name": "Priya Nair", "phone": "+919800000001", "line1": "14 Lake Rd", "city": "Bengaluru", "state": "KA", "postal_code": "560001", "country": "IN"},
		"payment_method": "barter"
	}`
	resp := httptest.NewRecorder()
	Checkout(ordersSvc, svc, nil)(resp, authedRequest(http.MethodPost, "/api/v1/checkout", body, uuid.New(), enums.UserRoleCustomer))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.checkoutInput != nil || ordersSvc.codInput != nil {
		t.Fatal("no service may be called for an unknown payment method")
	}
}

func TestCheckoutRejectsEmptyCart(t *testing.T) {
	svc := &stubPaymentsService{}
	body := `{
		"items": [],
		"shipping_address": {"name": "Priya Nair", "phone": "+919800000001", "line1": "14 Lake Rd", "city": "Bengaluru", "state": "KA", "postal_code": "560001", "country": "IN"}
	}`
	resp := httptest.NewRecorder()
	Checkout(&stubOrdersService{}, svc, nil)(resp, authedRequest(http.MethodPost, "/api/v1/checkout", body, uuid.New(), enums.UserRoleCustomer))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.checkoutInput != nil {
		t.Fatal("service must not be called on validation failure")
	}
}

func TestCheckoutRequiresAuthContext(t *testing.T) {
	svc := &stubPaymentsService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	Checkout(&stubOrdersService{}, svc, nil)(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestPaymentsVerifyReturnsOrder(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	svc := &stubPaymentsService{
		order: &models.Order{
			ID:          orderID,
			OrderNumber: 10042,
			Status:      enums.OrderStatusProcessing,
			TotalCents:  219800,
			Currency:    "INR",
		},
	}

	body := `{"razorpay_order_id": "order_R1", "razorpay_payment_id": "pay_R2", "razorpay_signature": "sig"}`
	resp := httptest.NewRecorder()
	PaymentsVerify(svc, nil)(resp, authedRequest(http.MethodPost, "/api/v1/payments/verify", body, userID, enums.UserRoleCustomer))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.verifyInput == nil || svc.verifyInput.GatewayPaymentID != "pay_R2" {
		t.Fatalf("unexpected verify input %+v", svc.verifyInput)
	}

	var envelope struct {
		Data paymentVerifyResponse `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.OrderNumber != 10042 || envelope.Data.Status != "processing" {
		t.Fatalf("unexpected order payload %+v", envelope.Data)
	}
}

func TestPaymentsVerifyPropagatesSignatureError(t *testing.T) {
	svc := &stubPaymentsService{err: pkgerrors.New(pkgerrors.CodeSignature, "payment signature mismatch")}
	body := `{"razorpay_order_id": "order_R1", "razorpay_payment_id": "pay_R2", "razorpay_signature": "bad"}`
	resp := httptest.NewRecorder()
	PaymentsVerify(svc, nil)(resp, authedRequest(http.MethodPost, "/api/v1/payments/verify", body, uuid.New(), enums.UserRoleCustomer))

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeSignature) {
		t.Fatalf("expected signature error code got %s", payload.Error.Code)
	}
}
