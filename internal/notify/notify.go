// Package notify delivers operational events (budget warnings, cancellations,
// cleanup summaries) to external channels.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Event kinds emitted by the engine.
const (
	KindBudgetApproaching = "budget_approaching"
	KindJobCancelled      = "job_cancelled"
	KindCleanupSummary    = "cleanup_summary"
)

// Event is one notification payload.
type Event struct {
	Kind       string            `json:"kind"`
	JobID      string            `json:"job_id,omitempty"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Notifier delivers events. Delivery failures are reported to the caller but
// must never block or abort the operation that produced the event.
type Notifier interface {
	Send(ctx context.Context, event Event) error
}

// Nop is a Notifier that discards everything.
type Nop struct{}

func (Nop) Send(context.Context, Event) error { return nil }

// WebhookNotifier posts events as JSON to a configured URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
	logger zerolog.Logger
}

// NewWebhook creates a webhook notifier.
func NewWebhook(url string, timeout time.Duration, logger zerolog.Logger) *WebhookNotifier {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "notify").Logger(),
	}
}

// Send posts the event.
func (n *WebhookNotifier) Send(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver %s: %w", event.Kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("deliver %s: HTTP %d", event.Kind, resp.StatusCode)
	}
	n.logger.Debug().Str("kind", event.Kind).Str("job_id", event.JobID).Msg("notification delivered")
	return nil
}
