package notification

import (
	"context"
	"log"
	"time"
)

// WebhookNotifier POSTs alerts as JSON to an HTTP endpoint.
type WebhookNotifier struct {
	url string
	poster
}

type webhookPayload struct {
	Alert
	TS time.Time `json:"ts"`
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{url: url, poster: newPoster()}
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	err := w.postJSON(ctx, "webhook", w.url, webhookPayload{Alert: alert, TS: time.Now().UTC()})
	if err != nil {
		return err
	}
	log.Printf("[webhook] delivered %s alert: %s", alert.Level, alert.Title)
	return nil
}
