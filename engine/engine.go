// Package engine wires complexity evaluation, model selection, strategy
// orchestration, chunked day generation, continuity, self-correction and
// metrics into the two public entry points.
package engine

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/c360studio/tripgen/chunk"
	"github.com/c360studio/tripgen/correction"
	"github.com/c360studio/tripgen/itinerary"
	"github.com/c360studio/tripgen/llm"
	"github.com/c360studio/tripgen/metrics"
	"github.com/c360studio/tripgen/model"
	"github.com/c360studio/tripgen/retrieval"
	"github.com/c360studio/tripgen/strategy"
)

// PromptVersion tags metrics records with the prompt set in use.
const PromptVersion = "v3"

// SpotValidator checks generated activities against a place database.
type SpotValidator interface {
	Validate(ctx context.Context, it *itinerary.Itinerary) ([]itinerary.FailedSpot, error)
}

// GenerateOptions tunes one GenerateItinerary call.
type GenerateOptions struct {
	// TopK is the number of retrieval articles to request.
	TopK int `json:"top_k,omitempty"`

	// FetchHeroImage enables the decorative image lookup.
	FetchHeroImage bool `json:"fetch_hero_image,omitempty"`

	// Verbose raises phase progress logs from debug to info.
	Verbose bool `json:"verbose,omitempty"`
}

// Result is the discriminated outcome of an entry point. Itinerary is set
// only when Success is true; Error only when it is false.
type Result struct {
	Success   bool                 `json:"success"`
	Itinerary *itinerary.Itinerary `json:"itinerary,omitempty"`
	Error     string               `json:"error,omitempty"`

	err error
}

// Failure builds the failed Result for err.
func Failure(err error) Result {
	return Result{Error: err.Error(), err: err}
}

// Err returns the failure cause for errors.Is checks, or nil on success.
func (r Result) Err() error {
	return r.err
}

// Engine runs generations. It is safe for concurrent use.
type Engine struct {
	registry atomic.Pointer[model.Registry]

	orchestrator *strategy.Orchestrator
	chunks       *chunk.Coordinator
	corrector    *correction.Corrector
	retriever    *retrieval.Retriever
	images       retrieval.ImageLookup
	validator    SpotValidator
	flusher      *metrics.Flusher
	recorder     *metrics.Recorder

	strategyConfig strategy.Config
	chunkConfig    chunk.Config
	searcher       retrieval.Searcher
	defaultTopK    int

	logger *slog.Logger
	newID  func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithStrategyConfig sets the strategy policy.
func WithStrategyConfig(cfg strategy.Config) Option {
	return func(e *Engine) {
		e.strategyConfig = cfg
	}
}

// WithChunkConfig sets chunk size and concurrency.
func WithChunkConfig(cfg chunk.Config) Option {
	return func(e *Engine) {
		e.chunkConfig = cfg
	}
}

// WithDefaultTopK sets the retrieval size used when a call does not name one.
func WithDefaultTopK(n int) Option {
	return func(e *Engine) {
		e.defaultTopK = n
	}
}

// WithSearcher enables retrieval context.
func WithSearcher(s retrieval.Searcher) Option {
	return func(e *Engine) {
		e.searcher = s
	}
}

// WithImageLookup enables hero images.
func WithImageLookup(l retrieval.ImageLookup) Option {
	return func(e *Engine) {
		e.images = l
	}
}

// WithSpotValidator enables validation and self-correction.
func WithSpotValidator(v SpotValidator) Option {
	return func(e *Engine) {
		e.validator = v
	}
}

// WithFlusher sends finalized metrics to f.
func WithFlusher(f *metrics.Flusher) Option {
	return func(e *Engine) {
		e.flusher = f
	}
}

// WithRecorder exports step and chunk metrics to Prometheus.
func WithRecorder(r *metrics.Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// New creates an engine over an immutable registry snapshot.
func New(reg *model.Registry, client llm.Completer, opts ...Option) *Engine {
	e := &Engine{
		logger: slog.Default(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.orchestrator = strategy.NewOrchestrator(client, e.strategyConfig, strategy.WithLogger(e.logger))
	e.chunks = chunk.NewCoordinator(e.chunkConfig, chunk.WithLogger(e.logger))
	e.corrector = correction.New(client, correction.WithLogger(e.logger))
	e.retriever = retrieval.NewRetriever(e.searcher, e.logger)
	e.registry.Store(reg)
	return e
}

// SetRegistry swaps the registry used by generations started afterwards.
func (e *Engine) SetRegistry(reg *model.Registry) {
	e.registry.Store(reg)
	e.logger.Info("Provider registry replaced",
		"primary", reg.PrimaryName(),
		"configured", reg.Configured())
}

// Registry returns the current registry snapshot.
func (e *Engine) Registry() *model.Registry {
	return e.registry.Load()
}

// Orchestrator exposes strategy selection for diagnostics.
func (e *Engine) Orchestrator() *strategy.Orchestrator {
	return e.orchestrator
}

// flush hands a finalized collector to the flusher, if any.
// noteMetrics logs a rejected collector record. Metrics never fail a generation.
func (e *Engine) noteMetrics(err error) {
	if err != nil {
		e.logger.Debug("Metrics record skipped", "error", err)
	}
}

func (e *Engine) flush(c *metrics.Collector, success bool) {
	m, err := c.Finalize(success)
	if err != nil {
		e.logger.Debug("Metrics finalize skipped", "error", err)
		return
	}
	if e.flusher == nil {
		e.recorder.ObserveGeneration(m)
		return
	}
	e.flusher.Flush(c)
}
