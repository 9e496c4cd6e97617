package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// SignatureHeader carries the hex HMAC of "<timestamp>\n<body>".
const (
	SignatureHeader = "X-Payouts-Signature"
	TimestampHeader = "X-Payouts-Timestamp"
)

type webhookPayload struct {
	MsgType string            `json:"msgtype"`
	Text    webhookText       `json:"text"`
	Kind    string            `json:"kind"`
	Meta    map[string]string `json:"meta,omitempty"`
}

type webhookText struct {
	Content string `json:"content"`
}

// WebhookChannel posts admin notifications to a chat-style webhook.
type WebhookChannel struct {
	url    string
	secret []byte
	client *http.Client
	now    func() time.Time
}

// WebhookOption configures the webhook channel.
type WebhookOption func(*WebhookChannel)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(ch *WebhookChannel) {
		if client != nil {
			ch.client = client
		}
	}
}

// WithSigningSecret signs each request body with HMAC-SHA256.
func WithSigningSecret(secret string) WebhookOption {
	return func(ch *WebhookChannel) {
		ch.secret = []byte(secret)
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) WebhookOption {
	return func(ch *WebhookChannel) {
		if d > 0 {
			ch.client.Timeout = d
		}
	}
}

// NewWebhookChannel constructs a webhook channel.
func NewWebhookChannel(url string, opts ...WebhookOption) (*WebhookChannel, error) {
	if url == "" {
		return nil, errors.New("webhook channel: empty url")
	}
	channel := &WebhookChannel{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(channel)
	}
	return channel, nil
}

// Name implements Channel.
func (w *WebhookChannel) Name() string { return "webhook" }

// Accepts implements Channel. The webhook is an internal admin channel.
func (w *WebhookChannel) Accepts(audience Audience) bool { return audience == AudienceAdmin }

// Send posts the message.
func (w *WebhookChannel) Send(ctx context.Context, msg Message) error {
	if w == nil || w.url == "" {
		return errors.New("webhook channel: empty url")
	}
	content := msg.Body
	if msg.Subject != "" {
		content = msg.Subject + "\n" + msg.Body
	}
	body, err := json.Marshal(webhookPayload{
		MsgType: "text",
		Text:    webhookText{Content: content},
		Kind:    msg.Kind,
		Meta:    msg.Meta,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if len(w.secret) > 0 {
		timestamp := strconv.FormatInt(w.now().Unix(), 10)
		req.Header.Set(TimestampHeader, timestamp)
		req.Header.Set(SignatureHeader, Sign(w.secret, timestamp, body))
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook channel: non-2xx response %d", resp.StatusCode)
	}
	return nil
}

// Sign computes the webhook signature for a timestamp and body.
func Sign(secret []byte, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("\n"))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
