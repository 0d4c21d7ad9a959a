package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/gyaneshwarpardhi/revnorm/internal/apperr"
	"github.com/gyaneshwarpardhi/revnorm/internal/config"
	"github.com/gyaneshwarpardhi/revnorm/internal/dispatch"
	"github.com/gyaneshwarpardhi/revnorm/internal/event"
	"github.com/gyaneshwarpardhi/revnorm/internal/metrics"
	"github.com/gyaneshwarpardhi/revnorm/internal/normalizer"
)

// ErrQueueFull is returned when the worker pool cannot accept more events.
var ErrQueueFull = apperr.Retryablef("engine", "event queue full")

// EventResult is the outcome of processing a single event.
type EventResult struct {
	MessageID  string       `json:"message_id,omitempty"`
	Outcome    string       `json:"outcome"`
	Mode       string       `json:"mode"`
	Attempts   int          `json:"fx_attempts"`
	DurationMs int64        `json:"duration_ms"`
	Event      *event.Event `json:"event"`
}

// Engine runs normalize → dispatch for each event on a bounded worker pool.
type Engine struct {
	normalizer *normalizer.Normalizer
	registry   *dispatch.Registry
	rt         atomic.Pointer[runtime]
	pool       *workerPool[*eventWork]
	timeout    time.Duration
}

// runtime is the hot-swappable part of the engine, rebuilt on config reload.
type runtime struct {
	settings   normalizer.Settings
	sink       dispatch.Sink
	maxRetries uint64
	retryBase  time.Duration
}

type eventWork struct {
	ctx      context.Context
	ev       *event.Event
	identify *event.Identify
	resultC  chan workResult
}

type workResult struct {
	res *EventResult
	err error
}

// New creates an Engine from cfg and starts its worker pool.
func New(ctx context.Context, n *normalizer.Normalizer, reg *dispatch.Registry, cfg *config.Config) (*Engine, error) {
	e := &Engine{
		normalizer: n,
		registry:   reg,
		timeout:    time.Duration(cfg.Engine.EventTimeoutMs) * time.Millisecond,
	}
	if err := e.Apply(cfg); err != nil {
		return nil, err
	}
	e.pool = newWorkerPool[*eventWork](ctx, cfg.Engine.Workers, cfg.Engine.QueueDepth,
		func(_ context.Context, w *eventWork) {
			res, err := e.processEvent(w.ctx, w.ev, w.identify)
			w.resultC <- workResult{res: res, err: err}
		},
	)
	return e, nil
}

// Apply atomically swaps normalizer settings and the sink (used on hot-reload).
// Pool sizing is fixed at startup.
func (e *Engine) Apply(cfg *config.Config) error {
	sink, err := e.registry.Build(cfg.Dispatch.Settings())
	if err != nil {
		return err
	}
	settings := cfg.Normalizer.Settings()
	if err := settings.Validate(); err != nil {
		return err
	}
	retries := cfg.Engine.FXMaxRetries
	if retries < 0 {
		retries = 0
	}
	base := time.Duration(cfg.Engine.FXRetryBaseMs) * time.Millisecond
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	e.rt.Store(&runtime{
		settings:   settings,
		sink:       sink,
		maxRetries: uint64(retries),
		retryBase:  base,
	})
	return nil
}

// Mode returns the active dispatch mode.
func (e *Engine) Mode() string {
	return e.rt.Load().sink.Mode()
}

// Process normalizes and dispatches ev, plus an optional identify call,
// waiting for the result. It fails fast with ErrQueueFull when saturated.
func (e *Engine) Process(ctx context.Context, ev *event.Event, identify *event.Identify) (*EventResult, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	w := &eventWork{ctx: ctx, ev: ev, identify: identify, resultC: make(chan workResult, 1)}
	if !e.pool.Submit(w) {
		metrics.EventsRejected.Inc()
		return nil, ErrQueueFull
	}

	select {
	case r := <-w.resultC:
		return r.res, r.err
	case <-ctx.Done():
		return nil, apperr.Wrap(apperr.Retryable, "engine", ctx.Err(), "event processing aborted")
	}
}

// QueueUtilization returns queue used / capacity (0–1).
func (e *Engine) QueueUtilization() float64 {
	if e.pool.QueueCap() == 0 {
		return 0
	}
	return float64(e.pool.QueueLen()) / float64(e.pool.QueueCap())
}

func (e *Engine) processEvent(ctx context.Context, ev *event.Event, identify *event.Identify) (*EventResult, error) {
	start := time.Now()
	rt := e.rt.Load()
	defer func() {
		metrics.EventProcessingDuration.Observe(float64(time.Since(start).Milliseconds()))
	}()

	outcome, attempts, err := e.normalizeWithRetry(ctx, ev, rt)
	if err != nil {
		metrics.EventsNormalized.WithLabelValues("failed").Inc()
		metrics.NormalizeErrors.WithLabelValues(apperr.KindOf(err).String()).Inc()
		slog.Warn("normalization failed", "event", ev.Event, "message_id", ev.MessageID,
			"kind", apperr.KindOf(err), "attempts", attempts, "err", err)
		return nil, fmt.Errorf("normalize: %w", err)
	}
	metrics.EventsNormalized.WithLabelValues(outcome.String()).Inc()

	mode := rt.sink.Mode()
	if err := rt.sink.Track(ctx, ev); err != nil {
		metrics.DispatchResults.WithLabelValues(mode, "track", "error").Inc()
		return nil, fmt.Errorf("dispatch track: %w", err)
	}
	metrics.DispatchResults.WithLabelValues(mode, "track", "ok").Inc()

	if identify != nil {
		if err := rt.sink.Identify(ctx, *identify); err != nil {
			metrics.DispatchResults.WithLabelValues(mode, "identify", "error").Inc()
			return nil, fmt.Errorf("dispatch identify: %w", err)
		}
		metrics.DispatchResults.WithLabelValues(mode, "identify", "ok").Inc()
	}

	return &EventResult{
		MessageID:  ev.MessageID,
		Outcome:    outcome.String(),
		Mode:       mode,
		Attempts:   attempts,
		DurationMs: time.Since(start).Milliseconds(),
		Event:      ev,
	}, nil
}

// normalizeWithRetry re-invokes the normalizer while it reports retryable
// failures, with exponential backoff. Permanent and validation errors stop
// immediately.
func (e *Engine) normalizeWithRetry(ctx context.Context, ev *event.Event, rt *runtime) (normalizer.Outcome, int, error) {
	var (
		outcome  normalizer.Outcome
		attempts int
	)
	backoff := retry.WithMaxRetries(rt.maxRetries, retry.NewExponential(rt.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if attempts > 0 {
			metrics.FXRetries.Inc()
		}
		attempts++
		var err error
		outcome, err = e.normalizer.Normalize(ctx, ev, rt.settings)
		if apperr.IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && apperr.KindOf(err) == apperr.Unknown && ctx.Err() != nil {
		err = apperr.Wrap(apperr.Retryable, "engine", err, "normalization aborted")
	}
	return outcome, attempts, err
}

// Shutdown drains the pool gracefully.
func (e *Engine) Shutdown() {
	e.pool.Drain()
}
