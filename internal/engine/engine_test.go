package engine

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/revnorm/internal/apperr"
	"github.com/gyaneshwarpardhi/revnorm/internal/config"
	"github.com/gyaneshwarpardhi/revnorm/internal/dispatch"
	"github.com/gyaneshwarpardhi/revnorm/internal/event"
	"github.com/gyaneshwarpardhi/revnorm/internal/fx"
	"github.com/gyaneshwarpardhi/revnorm/internal/normalizer"
)

// flakyRates fails with the given errors in order, then serves the table.
type flakyRates struct {
	mu    sync.Mutex
	errs  []error
	calls atomic.Int32
}

func (f *flakyRates) FetchRates(context.Context, string) (fx.RateTable, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return fx.RateTable{"USD": 1.1, "EUR": 1.0}, nil
}

type hook struct {
	mu     sync.Mutex
	bodies []map[string]interface{}
	status int
}

func newHook(t *testing.T, status int) (*hook, string) {
	t.Helper()
	h := &hook{status: status}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		_ = json.Unmarshal(raw, &body)
		h.mu.Lock()
		h.bodies = append(h.bodies, body)
		h.mu.Unlock()
		w.WriteHeader(h.status)
	}))
	t.Cleanup(srv.Close)
	return h, srv.URL
}

func (h *hook) received() []map[string]interface{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]map[string]interface{}(nil), h.bodies...)
}

func testConfig(t *testing.T, webhookURL string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
version: v1
normalizer:
  api_key: k
  source_minor: true
dispatch:
  mode: webhook
  webhook_url: ` + webhookURL + `
engine:
  workers: 2
  queue_depth: 4
  fx_max_retries: 2
  fx_retry_base_ms: 1
`))
	require.NoError(t, err)
	require.NoError(t, config.Validate(cfg))
	return cfg
}

func newTestEngine(t *testing.T, rates fx.RateProvider, cfg *config.Config) *Engine {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	e, err := New(ctx, normalizer.New(rates), dispatch.DefaultRegistry(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		cancel()
		e.Shutdown()
	})
	return e
}

func order() *event.Event {
	return &event.Event{
		Event:      "Order Completed",
		UserID:     "u1",
		MessageID:  "m-1",
		Properties: map[string]interface{}{"amount_total": float64(2000), "currency": "eur"},
	}
}

func TestEngine_Process(t *testing.T) {
	t.Run("Should normalize then forward the enriched event", func(t *testing.T) {
		h, url := newHook(t, http.StatusOK)
		e := newTestEngine(t, &flakyRates{}, testConfig(t, url))

		res, err := e.Process(context.Background(), order(), nil)
		require.NoError(t, err)
		assert.Equal(t, "converted", res.Outcome)
		assert.Equal(t, "webhook", res.Mode)
		assert.Equal(t, 1, res.Attempts)

		got := h.received()
		require.Len(t, got, 1)
		props := got[0]["properties"].(map[string]interface{})
		assert.Equal(t, 22.0, props["revenue_usd"])
		assert.Equal(t, 20.0, props["original_amount"])
		assert.Equal(t, "USD", props["fx_base"])
	})

	t.Run("Should retry retryable FX failures", func(t *testing.T) {
		_, url := newHook(t, http.StatusOK)
		rates := &flakyRates{errs: []error{
			apperr.Retryablef("fx.fetch", "FX fetch retryable status: 503"),
			apperr.Retryablef("fx.fetch", "FX fetch retryable status: 429"),
		}}
		e := newTestEngine(t, rates, testConfig(t, url))

		res, err := e.Process(context.Background(), order(), nil)
		require.NoError(t, err)
		assert.Equal(t, 3, res.Attempts)
		assert.EqualValues(t, 3, rates.calls.Load())
	})

	t.Run("Should give up after the retry budget", func(t *testing.T) {
		h, url := newHook(t, http.StatusOK)
		down := apperr.Retryablef("fx.fetch", "FX fetch retryable status: 503")
		rates := &flakyRates{errs: []error{down, down, down, down}}
		e := newTestEngine(t, rates, testConfig(t, url))

		_, err := e.Process(context.Background(), order(), nil)
		require.Error(t, err)
		assert.True(t, apperr.IsRetryable(err))
		assert.EqualValues(t, 3, rates.calls.Load())
		assert.Empty(t, h.received())
	})

	t.Run("Should not retry permanent failures", func(t *testing.T) {
		h, url := newHook(t, http.StatusOK)
		rates := &flakyRates{errs: []error{apperr.Permanentf("fx.fetch", "Invalid FX API response structure.")}}
		e := newTestEngine(t, rates, testConfig(t, url))

		_, err := e.Process(context.Background(), order(), nil)
		require.Error(t, err)
		assert.True(t, apperr.IsPermanent(err))
		assert.EqualValues(t, 1, rates.calls.Load())
		assert.Empty(t, h.received())
	})

	t.Run("Should forward skipped events unchanged", func(t *testing.T) {
		h, url := newHook(t, http.StatusOK)
		rates := &flakyRates{}
		e := newTestEngine(t, rates, testConfig(t, url))

		ev := &event.Event{Event: "Page Viewed", AnonymousID: "a", Properties: map[string]interface{}{"path": "/"}}
		res, err := e.Process(context.Background(), ev, nil)
		require.NoError(t, err)
		assert.Equal(t, "skipped", res.Outcome)
		assert.EqualValues(t, 0, rates.calls.Load())
		require.Len(t, h.received(), 1)
		assert.Equal(t, map[string]interface{}{"path": "/"}, h.received()[0]["properties"])
	})

	t.Run("Should send identify after track", func(t *testing.T) {
		h, url := newHook(t, http.StatusOK)
		e := newTestEngine(t, &flakyRates{}, testConfig(t, url))

		id := &event.Identify{UserID: "u1", Traits: map[string]interface{}{"plan": "pro"}}
		_, err := e.Process(context.Background(), order(), id)
		require.NoError(t, err)
		got := h.received()
		require.Len(t, got, 2)
		assert.Equal(t, "identify", got[1]["type"])
	})

	t.Run("Should surface sink failures", func(t *testing.T) {
		_, url := newHook(t, http.StatusBadRequest)
		e := newTestEngine(t, &flakyRates{}, testConfig(t, url))

		_, err := e.Process(context.Background(), order(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Webhook HTTP 400")
	})
}

func TestEngine_Apply(t *testing.T) {
	_, url := newHook(t, http.StatusOK)
	cfg := testConfig(t, url)
	e := newTestEngine(t, &flakyRates{}, cfg)
	assert.Equal(t, "webhook", e.Mode())

	t.Run("Should swap the sink", func(t *testing.T) {
		next := *cfg
		next.Dispatch.Mode = "amplitude"
		next.Dispatch.AmplitudeAPIKey = "amp"
		require.NoError(t, e.Apply(&next))
		assert.Equal(t, "amplitude", e.Mode())
	})

	t.Run("Should keep the running config when the new one is invalid", func(t *testing.T) {
		bad := *cfg
		bad.Dispatch.Mode = "carrier-pigeon"
		err := e.Apply(&bad)
		require.Error(t, err)
		assert.True(t, apperr.IsValidation(err))
		assert.Equal(t, "amplitude", e.Mode())
	})
}

func TestWorkerPool(t *testing.T) {
	t.Run("Should reject work when the queue is full", func(t *testing.T) {
		block := make(chan struct{})
		var started sync.WaitGroup
		started.Add(1)
		var once sync.Once
		p := newWorkerPool[int](context.Background(), 1, 1, func(context.Context, int) {
			once.Do(started.Done)
			<-block
		})

		require.True(t, p.Submit(1))
		started.Wait()
		require.True(t, p.Submit(2))
		assert.False(t, p.Submit(3))
		assert.Equal(t, 1, p.QueueLen())
		assert.Equal(t, 1, p.QueueCap())

		close(block)
		p.Drain()
		p.Drain()
	})
}
