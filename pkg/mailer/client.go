package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
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
	defaultBaseURL = "https://api.sendgrid.com"
	sendPath       = "/v3/mail/send"
	requestTimeout = 15 * time.Second
)

var (
	errAPIKeyRequired = errors.New("sendgrid api key is required")
	errFromRequired   = errors.New("sendgrid from address is required")
	errLoggerRequired = errors.New("mailer logger is required")
)

// Attachment is an optional file included with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a single transactional email.
type Message struct {
	To          string
	ToName      string
	Subject     string
	HTMLBody    string
	PlainBody   string
	Attachments []Attachment
}

// Client sends transactional mail through SendGrid's v3 API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	from       string
	fromName   string
	logger     *logger.Logger
}

// NewClient initializes the mailer and validates the credentials.
func NewClient(ctx context.Context, cfg config.SendgridConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	from := strings.TrimSpace(cfg.DefaultFrom)
	if from == "" {
		return nil, errFromRequired
	}

	c := &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		from:       from,
		fromName:   cfg.FromName,
		logger:     logg,
	}

	logg.Info(ctx, "sendgrid mailer initialized")
	return c, nil
}

// SetBaseURL overrides the API host, primarily for tests.
func (c *Client) SetBaseURL(url string) {
	if c == nil {
		return
	}
	c.baseURL = strings.TrimRight(url, "/")
}

// Send dispatches one message. SendGrid accepts with 202; anything else is an error.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient address is required")
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subject is required")
	}
	if msg.HTMLBody == "" && msg.PlainBody == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "message body is required")
	}

	payload := c.buildPayload(msg)
	encoded, err := json.Marshal(payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding mail payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sendPath, bytes.NewReader(encoded))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building mail request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	c.log(ctx, "request", "send_mail", map[string]any{
		"to":          msg.To,
		"subject":     msg.Subject,
		"attachments": len(msg.Attachments),
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log(ctx, "error", "send_mail", map[string]any{"error": err.Error()})
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling sendgrid")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		raw, _ := io.ReadAll(resp.Body)
		cause := fmt.Errorf("sendgrid status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		c.log(ctx, "error", "send_mail", map[string]any{"error": cause.Error()})
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, cause, "mail rejected")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "mail delivery failed")
	}

	c.log(ctx, "response", "send_mail", map[string]any{"to": msg.To})
	return nil
}

func (c *Client) buildPayload(msg Message) map[string]any {
	to := map[string]any{"email": msg.To}
	if msg.ToName != "" {
		to["name"] = msg.ToName
	}
	from := map[string]any{"email": c.from}
	if c.fromName != "" {
		from["name"] = c.fromName
	}

	content := []map[string]any{}
	if msg.PlainBody != "" {
		content = append(content, map[string]any{"type": "text/plain", "value": msg.PlainBody})
	}
	if msg.HTMLBody != "" {
		content = append(content, map[string]any{"type": "text/html", "value": msg.HTMLBody})
	}

	payload := map[string]any{
		"personalizations": []map[string]any{{"to": []map[string]any{to}}},
		"from":             from,
		"subject":          msg.Subject,
		"content":          content,
	}

	if len(msg.Attachments) > 0 {
		attachments := make([]map[string]any, 0, len(msg.Attachments))
		for _, att := range msg.Attachments {
			contentType := att.ContentType
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			attachments = append(attachments, map[string]any{
				"content":     base64.StdEncoding.EncodeToString(att.Data),
				"type":        contentType,
				"filename":    att.Filename,
				"disposition": "attachment",
			})
		}
		payload["attachments"] = attachments
	}
	return payload
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
		c.logger.Error(ctx, fmt.Sprintf("sendgrid %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("sendgrid %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"key", "to", "email"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
