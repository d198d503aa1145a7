// Webhook delivery for fired alerts.
//
// Delivery uses hashicorp/go-retryablehttp with linear jittered
// backoff; a webhook that stays down only costs a warning log, never a
// missed journal tick.
package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Notifier delivers fired alerts somewhere. The recorder holds one.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// WebhookNotifier POSTs alerts as JSON to a configured URL.
type WebhookNotifier struct {
	url    string
	client *retryablehttp.Client
	logger *slog.Logger
}

// NewWebhookNotifier creates a notifier for the given URL.
func NewWebhookNotifier(url string, logger *slog.Logger) *WebhookNotifier {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 1 * time.Second
	client.RetryWaitMax = 10 * time.Second
	client.Backoff = retryablehttp.LinearJitterBackoff
	client.HTTPClient.Timeout = 15 * time.Second
	client.Logger = nil // use our slog logger instead

	return &WebhookNotifier{
		url:    url,
		client: client,
		logger: logger.With(slog.String("component", "alert-webhook")),
	}
}

// Notify POSTs one alert. The request body is the Alert JSON.
func (n *WebhookNotifier) Notify(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, "POST", n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver alert webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode)
	}

	n.logger.Debug("alert delivered",
		slog.String("metric", alert.Metric),
		slog.String("url", n.url),
	)
	return nil
}
