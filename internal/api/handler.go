package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/revnorm/internal/apperr"
	"github.com/gyaneshwarpardhi/revnorm/internal/config"
	"github.com/gyaneshwarpardhi/revnorm/internal/engine"
	"github.com/gyaneshwarpardhi/revnorm/internal/event"
	"github.com/gyaneshwarpardhi/revnorm/internal/metrics"
)

const maxBodyBytes = 1 << 20

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng      *engine.Engine
	loader   *config.Loader
	validate *validator.Validate
	mux      *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(eng *engine.Engine, loader *config.Loader) http.Handler {
	h := &Handler{
		eng:      eng,
		loader:   loader,
		validate: validator.New(),
		mux:      http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /v1/track", h.track)
	h.mux.HandleFunc("GET /v1/config", h.showConfig)
	h.mux.HandleFunc("POST /v1/config/reload", h.reloadConfig)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

// trackRequest is the raw inbound payload.
type trackRequest struct {
	Event       string                 `json:"event" validate:"required"`
	UserID      string                 `json:"userId" validate:"required_without=AnonymousID"`
	AnonymousID string                 `json:"anonymousId" validate:"required_without=UserID"`
	MessageID   string                 `json:"messageId"`
	Timestamp   string                 `json:"timestamp"`
	Properties  map[string]interface{} `json:"properties"`
	Context     map[string]interface{} `json:"context"`
	Identify    *event.Identify        `json:"identify"`
}

// toEvent shapes a validated request into a track event.
func (r *trackRequest) toEvent() (*event.Event, error) {
	ev := &event.Event{
		Event:       r.Event,
		UserID:      r.UserID,
		AnonymousID: r.AnonymousID,
		MessageID:   r.MessageID,
		Properties:  r.Properties,
		Context:     r.Context,
	}
	if ev.MessageID == "" {
		ev.MessageID = uuid.New().String()
	}
	if ev.Properties == nil {
		ev.Properties = map[string]interface{}{}
	}
	if ev.Context == nil {
		ev.Context = map[string]interface{}{}
	}
	if ts := strings.TrimSpace(r.Timestamp); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, err
		}
		ev.Timestamp = &t
	}
	return ev, nil
}

// POST /v1/track: validate, normalize and forward one event synchronously.
func (h *Handler) track(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Missing required fields: event and userId/anonymousId")
		return
	}
	ev, err := req.toEvent()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid timestamp: expected RFC 3339")
		return
	}
	var identify *event.Identify
	if req.Identify != nil && req.Identify.UserID != "" {
		identify = req.Identify
	}
	metrics.EventsReceived.Inc()

	res, err := h.eng.Process(r.Context(), ev, identify)
	if err != nil {
		writeProcessError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// statusFor maps error kinds onto HTTP statuses.
func statusFor(err error) int {
	if errors.Is(err, engine.ErrQueueFull) {
		return http.StatusTooManyRequests
	}
	switch apperr.KindOf(err) {
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.Retryable:
		return http.StatusServiceUnavailable
	case apperr.Permanent:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// GET /v1/config: current config with credentials masked.
func (h *Handler) showConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.loader.Config().Redacted())
}

// POST /v1/config/reload: re-read the config file and swap it in.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := config.Validate(cfg); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := h.eng.Apply(cfg); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded": true,
		"mode":     h.eng.Mode(),
	})
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 if the worker queue is >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.eng.QueueUtilization()
	metrics.PoolUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
	})
}
