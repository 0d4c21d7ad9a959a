package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "revnorm_events_received_total",
		Help: "Total number of track events accepted by the inbound adapter.",
	})

	EventsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "revnorm_events_rejected_total",
		Help: "Total number of events rejected because the worker pool was saturated.",
	})

	EventsNormalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "revnorm_events_normalized_total",
		Help: "Normalizer outcomes, labelled converted, usd, skipped or failed.",
	}, []string{"outcome"})

	NormalizeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "revnorm_normalize_errors_total",
		Help: "Normalizer failures, labelled by error kind.",
	}, []string{"kind"})

	FXFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "revnorm_fx_fetch_duration_ms",
		Help:    "Rate provider round-trip latency in milliseconds, labelled by error kind.",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"kind"})

	FXRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "revnorm_fx_retries_total",
		Help: "Total number of normalization re-attempts after a retryable FX failure.",
	})

	DispatchResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "revnorm_dispatch_total",
		Help: "Outbound deliveries, labelled by sink mode, call type and status.",
	}, []string{"mode", "call", "status"})

	EventProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "revnorm_event_processing_duration_ms",
		Help:    "End-to-end normalize and dispatch latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	PoolUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "revnorm_pool_utilization_ratio",
		Help: "Current worker pool queue utilization (0–1).",
	})
)
