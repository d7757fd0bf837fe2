// Package api exposes the generation engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/tripgen/engine"
	"github.com/c360studio/tripgen/itinerary"
	"github.com/c360studio/tripgen/model"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Engine is the part of engine.Engine the handlers use.
type Engine interface {
	GenerateItinerary(ctx context.Context, req *itinerary.Request, opts engine.GenerateOptions) engine.Result
	RegenerateItinerary(ctx context.Context, current *itinerary.Itinerary, history []itinerary.ChatMessage) engine.Result
	Registry() *model.Registry
}

// GenerateBody is the JSON body for POST /itineraries.
type GenerateBody struct {
	Request *itinerary.Request     `json:"request"`
	Options engine.GenerateOptions `json:"options"`
}

// RegenerateBody is the JSON body for POST /itineraries/regenerate.
type RegenerateBody struct {
	Itinerary *itinerary.Itinerary    `json:"itinerary"`
	History   []itinerary.ChatMessage `json:"history"`
}

// HealthResponse is the JSON response for GET /healthz.
type HealthResponse struct {
	Status     string   `json:"status"`
	Configured []string `json:"configured"`
	Primary    string   `json:"primary,omitempty"`
}

// Handler serves the generation API.
type Handler struct {
	engine   Engine
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	mux      *http.ServeMux

	// timeout bounds a generation after it is detached from the request.
	timeout time.Duration
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithGatherer serves /metrics from gatherer instead of the default registry.
func WithGatherer(gatherer prometheus.Gatherer) Option {
	return func(h *Handler) {
		h.gatherer = gatherer
	}
}

// WithGenerationTimeout bounds each generation. Zero leaves it unbounded.
func WithGenerationTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.timeout = d
	}
}

// NewHandler creates a handler for eng.
func NewHandler(eng Engine, opts ...Option) *Handler {
	h := &Handler{
		engine:   eng,
		gatherer: prometheus.DefaultGatherer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.mux = http.NewServeMux()
	h.RegisterHTTPHandlers(h.mux)
	return h
}

// RegisterHTTPHandlers registers every route on mux.
func (h *Handler) RegisterHTTPHandlers(mux *http.ServeMux) {
	mux.HandleFunc("POST /itineraries", h.handleGenerate)
	mux.HandleFunc("POST /itineraries/regenerate", h.handleRegenerate)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
}

// ServeHTTP makes Handler usable directly as an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// handleGenerate handles POST /itineraries.
func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var body GenerateBody
	if err := decode(w, r, &body); err != nil {
		writeResult(w, engine.Failure(err))
		return
	}

	ctx, cancel := h.generationContext(r)
	defer cancel()

	started := time.Now()
	res := h.engine.GenerateItinerary(ctx, body.Request, body.Options)
	h.discardIfGone(r, "generate")
	h.logger.Info("Generate request served",
		"success", res.Success,
		"duration", time.Since(started),
		"error", res.Error)
	writeResult(w, res)
}

// handleRegenerate handles POST /itineraries/regenerate.
func (h *Handler) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	var body RegenerateBody
	if err := decode(w, r, &body); err != nil {
		writeResult(w, engine.Failure(err))
		return
	}

	ctx, cancel := h.generationContext(r)
	defer cancel()

	started := time.Now()
	res := h.engine.RegenerateItinerary(ctx, body.Itinerary, body.History)
	h.discardIfGone(r, "regenerate")
	h.logger.Info("Regenerate request served",
		"success", res.Success,
		"duration", time.Since(started),
		"error", res.Error)
	writeResult(w, res)
}

// generationContext keeps the request's values but not its cancellation. An
// abandoned generation runs to completion and its result is discarded.
func (h *Handler) generationContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx := context.WithoutCancel(r.Context())
	if h.timeout > 0 {
		return context.WithTimeout(ctx, h.timeout)
	}
	return context.WithCancel(ctx)
}

func (h *Handler) discardIfGone(r *http.Request, op string) {
	if err := r.Context().Err(); err != nil {
		h.logger.Info("Client gone before generation finished, discarding result",
			"operation", op,
			"reason", err)
	}
}

// handleHealth handles GET /healthz.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	reg := h.engine.Registry()
	if reg == nil {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unconfigured"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Configured: reg.Configured(),
		Primary:    reg.PrimaryName(),
	}
	status := http.StatusOK
	if resp.Primary == "" {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %w", itinerary.ErrInvalidRequest, err)
	}
	return nil
}

// statusFor maps a result onto an HTTP status.
func statusFor(res engine.Result) int {
	err := res.Err()
	switch {
	case res.Success:
		return http.StatusOK
	case errors.Is(err, itinerary.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrConfiguration):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func writeResult(w http.ResponseWriter, res engine.Result) {
	writeJSON(w, statusFor(res), res)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
