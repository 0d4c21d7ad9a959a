package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/gyaneshwarpardhi/revnorm/internal/apperr"
	"github.com/gyaneshwarpardhi/revnorm/internal/event"
)

const (
	ModeAmplitude = "amplitude"

	DefaultAmplitudeEndpoint         = "https://api2.amplitude.com/2/httpapi"
	DefaultAmplitudeIdentifyEndpoint = "https://api2.amplitude.com/identify"
)

// Amplitude forwards events to the Amplitude HTTP V2 API.
type Amplitude struct {
	apiKey           string
	endpoint         string
	identifyEndpoint string
	http             *resty.Client
	now              func() time.Time
}

// NewAmplitude is the Factory for ModeAmplitude.
func NewAmplitude(s Settings) (Sink, error) {
	if s.AmplitudeAPIKey == "" {
		return nil, apperr.Validationf("dispatch", "Missing amplitudeApiKey in settings.")
	}
	a := &Amplitude{
		apiKey:           s.AmplitudeAPIKey,
		endpoint:         s.AmplitudeEndpoint,
		identifyEndpoint: s.AmplitudeIdentifyEndpoint,
		http:             newHTTPClient(s.Timeout),
		now:              time.Now,
	}
	if a.endpoint == "" {
		a.endpoint = DefaultAmplitudeEndpoint
	}
	if a.identifyEndpoint == "" {
		a.identifyEndpoint = DefaultAmplitudeIdentifyEndpoint
	}
	return a, nil
}

func (a *Amplitude) Mode() string { return ModeAmplitude }

type amplitudeEvent struct {
	UserID          string                 `json:"user_id,omitempty"`
	DeviceID        string                 `json:"device_id,omitempty"`
	EventType       string                 `json:"event_type"`
	Time            int64                  `json:"time"`
	EventProperties map[string]interface{} `json:"event_properties"`
	UserProperties  map[string]interface{} `json:"user_properties"`
}

type amplitudeBatch struct {
	APIKey string           `json:"api_key"`
	Events []amplitudeEvent `json:"events"`
}

func (a *Amplitude) Track(ctx context.Context, ev *event.Event) error {
	out := amplitudeEvent{
		UserID:          ev.UserID,
		DeviceID:        ev.AnonymousID,
		EventType:       ev.Event,
		Time:            a.now().UnixMilli(),
		EventProperties: ev.Properties,
		UserProperties:  ev.Traits(),
	}
	if out.EventType == "" {
		out.EventType = "Track"
	}
	if ev.Timestamp != nil {
		out.Time = ev.Timestamp.UnixMilli()
	}
	if out.EventProperties == nil {
		out.EventProperties = map[string]interface{}{}
	}
	if out.UserProperties == nil {
		out.UserProperties = map[string]interface{}{}
	}

	resp, err := a.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(amplitudeBatch{APIKey: a.apiKey, Events: []amplitudeEvent{out}}).
		Post(a.endpoint)
	return checkResponse("dispatch.amplitude", "Amplitude", resp, err)
}

type amplitudeIdentification struct {
	UserID         string                 `json:"user_id"`
	UserProperties map[string]interface{} `json:"user_properties"`
}

func (a *Amplitude) Identify(ctx context.Context, id event.Identify) error {
	traits := id.Traits
	if traits == nil {
		traits = map[string]interface{}{}
	}
	identification, err := json.Marshal([]amplitudeIdentification{{UserID: id.UserID, UserProperties: traits}})
	if err != nil {
		return fmt.Errorf("encode identification: %w", err)
	}
	resp, err := a.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"api_key":        a.apiKey,
			"identification": string(identification),
		}).
		Post(a.identifyEndpoint)
	return checkResponse("dispatch.amplitude", "Amplitude", resp, err)
}

func newHTTPClient(timeout time.Duration) *resty.Client {
	c := resty.New().SetRetryCount(0)
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return c
}

// checkResponse turns a transport error or non-2xx response into a tagged
// error carrying the body as diagnostic text.
func checkResponse(op, label string, resp *resty.Response, err error) error {
	if err != nil {
		return apperr.Wrap(apperr.Retryable, op, err, label+" request failed")
	}
	if resp.IsSuccess() {
		return nil
	}
	kind := apperr.Permanent
	if resp.StatusCode() >= 500 || resp.StatusCode() == 429 {
		kind = apperr.Retryable
	}
	return &apperr.Error{
		Kind: kind,
		Op:   op,
		Msg:  fmt.Sprintf("%s HTTP %d: %s", label, resp.StatusCode(), resp.String()),
	}
}
