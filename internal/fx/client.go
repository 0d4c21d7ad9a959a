package fx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/gyaneshwarpardhi/revnorm/internal/apperr"
	"github.com/gyaneshwarpardhi/revnorm/internal/metrics"
)

// DefaultEndpoint is the exchangeratesapi.io latest-rates endpoint.
const DefaultEndpoint = "https://api.exchangeratesapi.io/v1/latest"

// RateProvider fetches a fresh rate table.
type RateProvider interface {
	FetchRates(ctx context.Context, apiKey string) (RateTable, error)
}

// Client is a RateProvider backed by an HTTP rate API.
type Client struct {
	endpoint string
	http     *resty.Client
}

// NewClient builds a Client. The resty client never retries on its own;
// retry decisions belong to the caller, driven by the error kind.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		http: resty.New().
			SetTimeout(timeout).
			SetHeader("Accept", "application/json").
			SetRetryCount(0),
	}
}

// FetchRates issues GET <endpoint>?access_key=<apiKey>&format=1.
//
// Transport failures (including timeouts), 5xx and 429 are Retryable.
// Any other non-2xx status, or a body without a "rates" object, is Permanent.
func (c *Client) FetchRates(ctx context.Context, apiKey string) (RateTable, error) {
	start := time.Now()
	rates, err := c.fetch(ctx, apiKey)
	metrics.FXFetchDuration.WithLabelValues(apperr.KindOf(err).String()).
		Observe(float64(time.Since(start).Milliseconds()))
	return rates, err
}

func (c *Client) fetch(ctx context.Context, apiKey string) (RateTable, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"access_key": apiKey,
			"format":     "1",
		}).
		Get(c.endpoint)
	if err != nil {
		return nil, apperr.Wrap(apperr.Retryable, "fx.fetch", err, "FX fetch connection error")
	}

	status := resp.StatusCode()
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		return nil, apperr.Retryablef("fx.fetch", "FX fetch retryable status: %d", status)
	}
	if status < 200 || status > 299 {
		return nil, apperr.Permanentf("fx.fetch", "FX fetch failed with status %d: %s", status, resp.String())
	}

	node := gjson.GetBytes(resp.Body(), "rates")
	if !node.IsObject() {
		return nil, apperr.Permanentf("fx.fetch", "Invalid FX API response structure.")
	}
	rates := make(RateTable)
	node.ForEach(func(code, rate gjson.Result) bool {
		if rate.Type == gjson.Number {
			rates[code.String()] = rate.Float()
		}
		return true
	})
	return rates, nil
}
