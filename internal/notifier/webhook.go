package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chitechevents/eventsync/internal/reconcile"
)

// WebhookNotifier posts the digest as {"text": ...} to an incoming-webhook
// URL (Slack, Discord and Mattermost accept this shape).
type WebhookNotifier struct {
	url      string
	client   *http.Client
	heading  string
	location *time.Location
}

// NewWebhookNotifier creates a notifier for url.
func NewWebhookNotifier(url, heading string, loc *time.Location, timeout time.Duration) (*WebhookNotifier, error) {
	if url == "" {
		return nil, fmt.Errorf("missing webhook URL for notifications")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WebhookNotifier{
		url:      url,
		client:   &http.Client{Timeout: timeout},
		heading:  heading,
		location: loc,
	}, nil
}

type webhookMessage struct {
	Text string `json:"text"`
}

// Notify posts one message for all rows. An empty batch sends nothing.
func (n *WebhookNotifier) Notify(ctx context.Context, rows []reconcile.Row) error {
	if len(rows) == 0 {
		return nil
	}

	body, err := json.Marshal(webhookMessage{Text: FormatDigest(rows, n.heading, n.location)})
	if err != nil {
		return fmt.Errorf("encoding digest: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post digest: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("failed to post digest: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
