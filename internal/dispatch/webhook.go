package dispatch

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/gyaneshwarpardhi/revnorm/internal/apperr"
	"github.com/gyaneshwarpardhi/revnorm/internal/event"
)

const ModeWebhook = "webhook"

// Webhook posts events verbatim as JSON to a fixed URL.
type Webhook struct {
	url  string
	http *resty.Client
}

// NewWebhook is the Factory for ModeWebhook.
func NewWebhook(s Settings) (Sink, error) {
	if s.WebhookURL == "" {
		return nil, apperr.Validationf("dispatch", "Missing webhookUrl in settings.")
	}
	return &Webhook{url: s.WebhookURL, http: newHTTPClient(s.Timeout)}, nil
}

func (w *Webhook) Mode() string { return ModeWebhook }

func (w *Webhook) Track(ctx context.Context, ev *event.Event) error {
	return w.post(ctx, ev)
}

type identifyPayload struct {
	Type   string                 `json:"type"`
	UserID string                 `json:"userId"`
	Traits map[string]interface{} `json:"traits"`
}

func (w *Webhook) Identify(ctx context.Context, id event.Identify) error {
	traits := id.Traits
	if traits == nil {
		traits = map[string]interface{}{}
	}
	return w.post(ctx, identifyPayload{Type: "identify", UserID: id.UserID, Traits: traits})
}

func (w *Webhook) post(ctx context.Context, body interface{}) error {
	resp, err := w.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(w.url)
	return checkResponse("dispatch.webhook", "Webhook", resp, err)
}
