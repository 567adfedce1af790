package shiprocket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aurellebeauty/aurelle-backend/pkg/config"
	pkgerrors "github.com/aurellebeauty/aurelle-backend/pkg/errors"
	"github.com/aurellebeauty/aurelle-backend/pkg/logger"
	"github.com/aurellebeauty/aurelle-backend/pkg/types"
)

const (
	loginPath       = "/v1/external/auth/login"
	createOrderPath = "/v1/external/orders/create/adhoc"
	assignAWBPath   = "/v1/external/courier/assign/awb"
	labelPath       = "/v1/external/courier/generate/label"
	trackAWBPath    = "/v1/external/courier/track/awb/"

	orderDateLayout = "2006-01-02 15:04"
)

var (
	errEmailRequired    = errors.New("shiprocket email is required")
	errPasswordRequired = errors.New("shiprocket password is required")
	errLoggerRequired   = errors.New("shiprocket logger is required")
)

// Client wraps the Shiprocket external API with token caching, logging, and
// error mapping.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	email           string
	password        string
	pickupLocation  string
	channelID       string
	trackingBaseURL string
	tokenTTL        time.Duration
	logger          *logger.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// OrderItem is one product line registered with the carrier.
type OrderItem struct {
	Name           string
	SKU            string
	Units          int
	UnitPriceCents int
}

// OrderCreateParams carries the fields for an adhoc carrier order.
type OrderCreateParams struct {
	OrderNumber   string
	OrderDate     time.Time
	Address       types.Address
	Items         []OrderItem
	SubtotalCents int
	// PaymentMode is "Prepaid" or "COD" in carrier terms.
	PaymentMode string
	WeightKG    float64
	LengthCM    float64
	BreadthCM   float64
	HeightCM    float64
}

// OrderResult is the carrier's handle for a registered order.
type OrderResult struct {
	OrderID    int64  `json:"order_id"`
	ShipmentID int64  `json:"shipment_id"`
	Status     string `json:"status"`
}

// AWBResult holds the assigned air waybill details.
type AWBResult struct {
	AWBCode     string
	CourierName string
}

// TrackingResult is the subset of carrier tracking data the platform uses.
type TrackingResult struct {
	AWB           string
	CurrentStatus string
	CourierName   string
	ETD           string
}

// AWBAssignmentError reports a failed assignment with the carrier's reason.
type AWBAssignmentError struct {
	Code    string
	Message string
}

// Error implements error.
func (e *AWBAssignmentError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("awb assignment failed (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("awb assignment failed: %s", e.Message)
}

// NewClient initializes the Shiprocket wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.ShiprocketConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	email := strings.TrimSpace(cfg.Email)
	if email == "" {
		return nil, errEmailRequired
	}
	password := strings.TrimSpace(cfg.Password)
	if password == "" {
		return nil, errPasswordRequired
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	tokenTTL := cfg.TokenTTL
	if tokenTTL <= 0 {
		tokenTTL = 216 * time.Hour
	}

	c := &Client{
		httpClient:      &http.Client{Timeout: timeout},
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		email:           email,
		password:        password,
		pickupLocation:  cfg.PickupLocation,
		channelID:       cfg.ChannelID,
		trackingBaseURL: strings.TrimRight(cfg.TrackingBaseURL, "/"),
		tokenTTL:        tokenTTL,
		logger:          logg,
	}

	logg.Info(ctx, "shiprocket client initialized")
	return c, nil
}

// SetBaseURL overrides the API host, primarily for tests.
func (c *Client) SetBaseURL(url string) {
	if c == nil {
		return
	}
	c.baseURL = strings.TrimRight(url, "/")
}

// TrackingURL returns the public tracking page for an AWB.
func (c *Client) TrackingURL(awb string) string {
	if c == nil || c.trackingBaseURL == "" || awb == "" {
		return ""
	}
	return c.trackingBaseURL + "/" + awb
}

// CreateOrder registers an adhoc order with the carrier.
func (c *Client) CreateOrder(ctx context.Context, params OrderCreateParams) (*OrderResult, error) {
	if params.OrderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number is required")
	}
	if len(params.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one order item is required")
	}
	orderDate := params.OrderDate
	if orderDate.IsZero() {
		orderDate = time.Now()
	}
	paymentMode := params.PaymentMode
	if paymentMode == "" {
		paymentMode = "Prepaid"
	}

	items := make([]map[string]any, 0, len(params.Items))
	for _, item := range params.Items {
		items = append(items, map[string]any{
			"name":          item.Name,
			"sku":           item.SKU,
			"units":         item.Units,
			"selling_price": centsToRupees(item.UnitPriceCents),
		})
	}

	body := map[string]any{
		"order_id":              params.OrderNumber,
		"order_date":            orderDate.Format(orderDateLayout),
		"pickup_location":       c.pickupLocation,
		"billing_customer_name": params.Address.Name,
		"billing_address":       params.Address.Line1,
		"billing_address_2":     params.Address.Line2,
		"billing_city":          params.Address.City,
		"billing_state":         params.Address.State,
		"billing_pincode":       params.Address.PostalCode,
		"billing_country":       params.Address.Country,
		"billing_email":         params.Address.Email,
		"billing_phone":         params.Address.Phone,
		"shipping_is_billing":   true,
		"order_items":           items,
		"payment_method":        paymentMode,
		"sub_total":             centsToRupees(params.SubtotalCents),
		"weight":                params.WeightKG,
		"length":                params.LengthCM,
		"breadth":               params.BreadthCM,
		"height":                params.HeightCM,
	}
	if c.channelID != "" {
		body["channel_id"] = c.channelID
	}

	c.log(ctx, "request", "create_order", map[string]any{
		"order_number": params.OrderNumber,
		"items":        len(params.Items),
	})

	var result OrderResult
	if err := c.doJSON(ctx, http.MethodPost, createOrderPath, body, &result); err != nil {
		c.log(ctx, "error", "create_order", map[string]any{"error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "create_order", map[string]any{
		"carrier_order_id":    result.OrderID,
		"carrier_shipment_id": result.ShipmentID,
		"status":              result.Status,
	})
	return &result, nil
}

// AssignAWB requests an air waybill for a carrier shipment. A carrier-side
// refusal is returned as *AWBAssignmentError so callers can record the reason.
func (c *Client) AssignAWB(ctx context.Context, carrierShipmentID string) (*AWBResult, error) {
	carrierShipmentID = strings.TrimSpace(carrierShipmentID)
	if carrierShipmentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "carrier shipment id is required")
	}

	c.log(ctx, "request", "assign_awb", map[string]any{"carrier_shipment_id": carrierShipmentID})

	var resp struct {
		AWBAssignStatus int `json:"awb_assign_status"`
		Response        struct {
			Data struct {
				AWBCode        string `json:"awb_code"`
				CourierName    string `json:"courier_name"`
				AWBAssignError string `json:"awb_assign_error"`
			} `json:"data"`
		} `json:"response"`
		Message string `json:"message"`
	}
	body := map[string]any{"shipment_id": carrierShipmentID}
	if err := c.doJSON(ctx, http.MethodPost, assignAWBPath, body, &resp); err != nil {
		c.log(ctx, "error", "assign_awb", map[string]any{"error": err.Error()})
		return nil, err
	}

	if resp.AWBAssignStatus != 1 || resp.Response.Data.AWBCode == "" {
		message := resp.Response.Data.AWBAssignError
		if message == "" {
			message = resp.Message
		}
		if message == "" {
			message = "carrier did not assign an awb"
		}
		assignErr := &AWBAssignmentError{Code: "AWB_UNAVAILABLE", Message: message}
		c.log(ctx, "error", "assign_awb", map[string]any{"error": assignErr.Error()})
		return nil, assignErr
	}

	result := &AWBResult{
		AWBCode:     resp.Response.Data.AWBCode,
		CourierName: resp.Response.Data.CourierName,
	}
	c.log(ctx, "response", "assign_awb", map[string]any{
		"awb_code":     result.AWBCode,
		"courier_name": result.CourierName,
	})
	return result, nil
}

// GenerateLabel produces a shipping label PDF for the given carrier shipment.
func (c *Client) GenerateLabel(ctx context.Context, carrierShipmentID string) (string, error) {
	carrierShipmentID = strings.TrimSpace(carrierShipmentID)
	if carrierShipmentID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "carrier shipment id is required")
	}

	c.log(ctx, "request", "generate_label", map[string]any{"carrier_shipment_id": carrierShipmentID})

	var resp struct {
		LabelCreated int    `json:"label_created"`
		LabelURL     string `json:"label_url"`
	}
	body := map[string]any{"shipment_id": []string{carrierShipmentID}}
	if err := c.doJSON(ctx, http.MethodPost, labelPath, body, &resp); err != nil {
		c.log(ctx, "error", "generate_label", map[string]any{"error": err.Error()})
		return "", err
	}
	if resp.LabelCreated != 1 || resp.LabelURL == "" {
		err := pkgerrors.New(pkgerrors.CodeDependency, "carrier did not produce a label")
		c.log(ctx, "error", "generate_label", map[string]any{"error": err.Error()})
		return "", err
	}

	c.log(ctx, "response", "generate_label", map[string]any{"label_url": resp.LabelURL})
	return resp.LabelURL, nil
}

// Track fetches the current carrier status for an AWB.
func (c *Client) Track(ctx context.Context, awb string) (*TrackingResult, error) {
	awb = strings.TrimSpace(awb)
	if awb == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "awb is required")
	}

	c.log(ctx, "request", "track", map[string]any{"awb": awb})

	var resp struct {
		TrackingData struct {
			TrackStatus   int    `json:"track_status"`
			ETD           string `json:"etd"`
			ShipmentTrack []struct {
				CurrentStatus string `json:"current_status"`
				CourierName   string `json:"courier_name"`
			} `json:"shipment_track"`
		} `json:"tracking_data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, trackAWBPath+awb, nil, &resp); err != nil {
		c.log(ctx, "error", "track", map[string]any{"error": err.Error()})
		return nil, err
	}

	result := &TrackingResult{AWB: awb, ETD: resp.TrackingData.ETD}
	if len(resp.TrackingData.ShipmentTrack) > 0 {
		result.CurrentStatus = resp.TrackingData.ShipmentTrack[0].CurrentStatus
		result.CourierName = resp.TrackingData.ShipmentTrack[0].CourierName
	}

	c.log(ctx, "response", "track", map[string]any{
		"awb":            awb,
		"current_status": result.CurrentStatus,
	})
	return result, nil
}

func (c *Client) authToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	body := map[string]any{"email": c.email, "password": c.password}
	encoded, err := json.Marshal(body)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding shiprocket login")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, bytes.NewReader(encoded))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building shiprocket login request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling shiprocket login")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading shiprocket login response")
	}
	if resp.StatusCode >= 400 {
		return "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized,
			fmt.Errorf("shiprocket login status %d", resp.StatusCode), "shiprocket login failed")
	}

	var parsed struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.Token == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "shiprocket login returned no token")
	}

	c.token = parsed.Token
	c.tokenExpiry = time.Now().Add(c.tokenTTL)
	return c.token, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	token, err := c.authToken(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding shiprocket request")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building shiprocket request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling shiprocket")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading shiprocket response")
	}

	if resp.StatusCode == http.StatusUnauthorized {
		// token may have been revoked server-side; drop the cache
		c.mu.Lock()
		c.token = ""
		c.mu.Unlock()
	}
	if resp.StatusCode >= 400 {
		return c.mapAPIError(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding shiprocket response")
	}
	return nil
}

func (c *Client) mapAPIError(status int, raw []byte) error {
	var parsed struct {
		Message string `json:"message"`
	}
	message := "shiprocket request failed"
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Message != "" {
		message = parsed.Message
	}
	cause := fmt.Errorf("shiprocket status %d: %s", status, message)
	switch status {
	case http.StatusUnauthorized:
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, cause, message)
	case http.StatusNotFound:
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, cause, message)
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return pkgerrors.Wrap(pkgerrors.CodeValidation, cause, message)
	case http.StatusTooManyRequests:
		return pkgerrors.Wrap(pkgerrors.CodeRateLimit, cause, message)
	default:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, message)
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
		c.logger.Error(ctx, fmt.Sprintf("shiprocket %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("shiprocket %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"password", "token", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func centsToRupees(cents int) float64 {
	return float64(cents) / 100.0
}
