package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Severity orders messages for queue and rate-limit decisions
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Message is a single outbound notification
type Message struct {
	Symbol    string    `json:"symbol,omitempty"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier delivers message batches to one channel
type Notifier interface {
	Send(ctx context.Context, messages []Message) error
	Name() string
	IsEnabled() bool
}

// WebhookNotifier posts message batches as JSON to a generic webhook URL.
// Transient failures are retried with exponential backoff.
type WebhookNotifier struct {
	name    string
	url     string
	enabled bool
	client  *http.Client
}

// NewWebhookNotifier creates a webhook channel. An empty URL leaves the
// channel disabled.
func NewWebhookNotifier(name, url string, enabled bool) *WebhookNotifier {
	return &WebhookNotifier{
		name:    name,
		url:     url,
		enabled: enabled && url != "",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookNotifier) Name() string {
	return w.name
}

func (w *WebhookNotifier) IsEnabled() bool {
	return w.enabled
}

// Send posts the batch, retrying transient failures for up to 30 seconds
func (w *WebhookNotifier) Send(ctx context.Context, messages []Message) error {
	if !w.enabled {
		return nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"channel":  w.name,
		"count":    len(messages),
		"messages": messages,
	})
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return w.post(ctx, payload)
	}, backoff.WithContext(policy, ctx))
}

func (w *WebhookNotifier) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return backoff.Permanent(fmt.Errorf("webhook rejected batch: status %d", resp.StatusCode))
	default:
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
}
