package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aurellebeauty/aurelle-backend/pkg/config"
	pkgerrors "github.com/aurellebeauty/aurelle-backend/pkg/errors"
	"github.com/aurellebeauty/aurelle-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	defaultBaseURL = "https://api.razorpay.com"
	requestTimeout = 15 * time.Second
)

var (
	errKeyIDRequired         = errors.New("razorpay key id is required")
	errKeySecretRequired     = errors.New("razorpay key secret is required")
	errWebhookSecretRequired = errors.New("razorpay webhook secret is required")
	errInvalidRazorpayEnv    = fmt.Errorf("razorpay environment must be %q or %q", testEnv, liveEnv)
	errLoggerRequired        = errors.New("razorpay logger is required")
)

// Client exposes the Razorpay order and payment primitives with centralized
// auth, logging, and error mapping.
type Client struct {
	httpClient    *http.Client
	keyID         string
	keySecret     string
	webhookSecret string
	environment   string
	baseURL       string
	logger        *logger.Logger
}

// Order is the gateway order created ahead of checkout.
type Order struct {
	ID        string `json:"id"`
	Entity    string `json:"entity"`
	Amount    int    `json:"amount"`
	Currency  string `json:"currency"`
	Receipt   string `json:"receipt"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

// Payment mirrors the gateway payment resource.
type Payment struct {
	ID               string `json:"id"`
	Entity           string `json:"entity"`
	Amount           int    `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	OrderID          string `json:"order_id"`
	Method           string `json:"method"`
	Email            string `json:"email"`
	Contact          string `json:"contact"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
	CreatedAt        int64  `json:"created_at"`
}

// OrderCreateParams carries the fields for creating a gateway order.
type OrderCreateParams struct {
	AmountCents int
	Currency    string
	Receipt     string
	Notes       map[string]string
}

type apiErrorBody struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// NewClient initializes the Razorpay wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errKeySecretRequired
	}
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}
	if err := validateKeyID(env, keyID); err != nil {
		return nil, err
	}

	c := &Client{
		httpClient:    &http.Client{Timeout: requestTimeout},
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		environment:   env,
		baseURL:       defaultBaseURL,
	}
	c.logger = logg

	logg.Info(ctx, fmt.Sprintf("razorpay client initialized (%s)", env))
	return c, nil
}

// Environment reports the normalized Razorpay environment.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// KeyID reports the public key id handed to the checkout widget.
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// SetBaseURL overrides the API host, primarily for tests.
func (c *Client) SetBaseURL(url string) {
	if c == nil {
		return
	}
	c.baseURL = strings.TrimRight(url, "/")
}

// CreateOrder registers a gateway order for the given amount.
func (c *Client) CreateOrder(ctx context.Context, params OrderCreateParams) (*Order, error) {
	if params.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order amount must be positive")
	}
	currency := strings.TrimSpace(params.Currency)
	if currency == "" {
		currency = "INR"
	}

	body := map[string]any{
		"amount":   params.AmountCents,
		"currency": currency,
	}
	if params.Receipt != "" {
		body["receipt"] = params.Receipt
	}
	if len(params.Notes) > 0 {
		body["notes"] = params.Notes
	}

	c.log(ctx, "request", "create_order", map[string]any{
		"amount":   params.AmountCents,
		"currency": currency,
		"receipt":  params.Receipt,
	})

	var order Order
	if err := c.doJSON(ctx, http.MethodPost, "/v1/orders", body, &order); err != nil {
		c.log(ctx, "error", "create_order", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_order", map[string]any{
		"order_id": order.ID,
		"status":   order.Status,
	})
	return &order, nil
}

// FetchPayment retrieves a payment resource by id.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}

	c.log(ctx, "request", "fetch_payment", map[string]any{"payment_id": paymentID})

	var payment Payment
	if err := c.doJSON(ctx, http.MethodGet, "/v1/payments/"+paymentID, nil, &payment); err != nil {
		c.log(ctx, "error", "fetch_payment", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "fetch_payment", map[string]any{
		"payment_id": payment.ID,
		"status":     payment.Status,
	})
	return &payment, nil
}

// VerifyPaymentSignature checks the checkout callback signature computed over
// "<order_id>|<payment_id>" with the key secret.
func (c *Client) VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) error {
	if gatewayOrderID == "" || gatewayPaymentID == "" || signature == "" {
		return pkgerrors.New(pkgerrors.CodeSignature, "payment signature fields are required")
	}
	payload := gatewayOrderID + "|" + gatewayPaymentID
	if !verifyHMAC([]byte(payload), signature, c.keySecret) {
		return pkgerrors.New(pkgerrors.CodeSignature, "payment signature mismatch")
	}
	return nil
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header against the raw body.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) error {
	if len(body) == 0 || signature == "" {
		return pkgerrors.New(pkgerrors.CodeSignature, "webhook signature fields are required")
	}
	if !verifyHMAC(body, signature, c.webhookSecret) {
		return pkgerrors.New(pkgerrors.CodeSignature, "webhook signature mismatch")
	}
	return nil
}

func verifyHMAC(payload []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding razorpay request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building razorpay request")
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling razorpay")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading razorpay response")
	}

	if resp.StatusCode >= 400 {
		return c.mapAPIError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding razorpay response")
	}
	return nil
}

func (c *Client) mapAPIError(status int, raw []byte) error {
	var parsed apiErrorBody
	description := "razorpay request failed"
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Description != "" {
		description = parsed.Error.Description
	}
	cause := fmt.Errorf("razorpay status %d: %s", status, description)
	return pkgerrors.Wrap(domainCodeForStatus(status), cause, description)
}

func domainCodeForStatus(status int) pkgerrors.Code {
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.CodeUnauthorized
	case http.StatusForbidden:
		return pkgerrors.CodeForbidden
	case http.StatusNotFound:
		return pkgerrors.CodeNotFound
	case http.StatusConflict:
		return pkgerrors.CodeConflict
	case http.StatusTooManyRequests:
		return pkgerrors.CodeRateLimit
	case http.StatusBadRequest:
		return pkgerrors.CodeValidation
	case http.StatusPaymentRequired:
		return pkgerrors.CodePaymentFailed
	default:
		if status >= 400 && status < 500 {
			return pkgerrors.CodeValidation
		}
		return pkgerrors.CodeDependency
	}
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("razorpay %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("razorpay %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"secret", "signature", "email", "contact", "card", "token"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidRazorpayEnv
	}
}

func validateKeyID(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "rzp_test_") {
			return nil
		}
		return fmt.Errorf("razorpay environment %q requires a test key id (rzp_test_)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "rzp_live_") {
			return nil
		}
		return fmt.Errorf("razorpay environment %q requires a live key id (rzp_live_)", liveEnv)
	default:
		return errInvalidRazorpayEnv
	}
}
