package dispatch

import (
	"context"
	"time"

	"github.com/gyaneshwarpardhi/revnorm/internal/event"
)

// Sink delivers enriched events to one external destination. Each call is a
// single synchronous attempt.
type Sink interface {
	// Mode returns the configuration key this sink is registered under.
	Mode() string
	// Track forwards an enriched track event.
	Track(ctx context.Context, ev *event.Event) error
	// Identify forwards user traits.
	Identify(ctx context.Context, id event.Identify) error
}

// Settings configures the outbound side. Only the fields of the selected
// mode are required.
type Settings struct {
	Mode                      string
	WebhookURL                string
	AmplitudeAPIKey           string
	AmplitudeEndpoint         string
	AmplitudeIdentifyEndpoint string
	Timeout                   time.Duration
}

// Factory builds a Sink from settings, returning a validation error when a
// required field is missing.
type Factory func(s Settings) (Sink, error)
