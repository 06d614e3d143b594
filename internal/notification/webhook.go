package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// WebhookNotifier posts alerts to a generic HTTP endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
	log    *logrus.Entry
}

// NewWebhookNotifier creates a webhook notifier.
// url: the HTTP endpoint to POST alerts to.
func NewWebhookNotifier(url string, log *logrus.Entry) *WebhookNotifier {
	return &WebhookNotifier{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	payload := map[string]interface{}{
		"pair":      alert.Pair,
		"kind":      alert.Kind,
		"title":     alert.Title,
		"message":   alert.Message,
		"detection": alert.Detection,
		"ts":        alert.TriggeredAt.UTC().Format(time.RFC3339Nano),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}

	w.log.WithFields(logrus.Fields{"pair": alert.Pair, "kind": alert.Kind}).
		Debug("webhook alert delivered")
	return nil
}
