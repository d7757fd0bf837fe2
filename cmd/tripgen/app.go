package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/c360studio/tripgen/config"
	"github.com/c360studio/tripgen/engine"
	"github.com/c360studio/tripgen/llm"
	"github.com/c360studio/tripgen/llm/providers"
	"github.com/c360studio/tripgen/metrics"
	"github.com/c360studio/tripgen/model"
	"github.com/c360studio/tripgen/retrieval"
)

// App is the main application that wires together all components.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	health   *model.Health
	promReg  *prometheus.Registry
	recorder *metrics.Recorder
	flusher  *metrics.Flusher
	engine   *engine.Engine

	completer llm.Completer
}

// AppOption configures an App.
type AppOption func(*App)

// withCompleter replaces the provider client, for tests.
func withCompleter(c llm.Completer) AppOption {
	return func(a *App) {
		a.completer = c
	}
}

// NewApp creates a new application instance.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...AppOption) (*App, error) {
	a := &App{
		cfg:     cfg,
		logger:  logger,
		health:  model.NewHealth(cfg.Providers.Health),
		promReg: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.recorder = metrics.NewRecorder(a.promReg)

	if a.completer == nil {
		a.completer = llm.NewClient(
			llm.WithProviders(providers.All(nil)...),
			llm.WithRetryConfig(cfg.Providers.Retry),
			llm.WithRateLimit(cfg.Providers.RateLimit),
			llm.WithHealthTracker(a.health),
			llm.WithLogger(logger),
		)
	}

	store, err := newStore(ctx, cfg.Metrics, logger)
	if err != nil {
		return nil, fmt.Errorf("open metrics store: %w", err)
	}

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithStrategyConfig(cfg.Generation.StrategyConfig()),
		engine.WithChunkConfig(cfg.Generation.ChunkConfig()),
		engine.WithRecorder(a.recorder),
		engine.WithDefaultTopK(cfg.Generation.TopK),
	}
	if store != nil {
		a.flusher = metrics.NewFlusher(store, cfg.Metrics.QueueSize,
			metrics.WithLogger(logger),
			metrics.WithRecorder(a.recorder))
		engineOpts = append(engineOpts, engine.WithFlusher(a.flusher))
	}

	httpClient := &http.Client{Timeout: cfg.Retrieval.Timeout}
	if cfg.Retrieval.SearchURL != "" {
		engineOpts = append(engineOpts, engine.WithSearcher(retrieval.NewHTTPSearcher(cfg.Retrieval.SearchURL, httpClient)))
	}
	if cfg.Retrieval.ImageURL != "" {
		engineOpts = append(engineOpts, engine.WithImageLookup(retrieval.NewHTTPImageLookup(cfg.Retrieval.ImageURL, httpClient)))
	}

	a.engine = engine.New(cfg.Registry(a.health), a.completer, engineOpts...)

	logger.Debug("Application wired",
		"primary", a.engine.Registry().PrimaryName(),
		"configured", a.engine.Registry().Configured(),
		"metrics_store", cfg.Metrics.Store,
		"retrieval", cfg.Retrieval.SearchURL != "")
	return a, nil
}

// newStore opens the configured metrics sink. StoreNone yields nil.
func newStore(ctx context.Context, cfg config.MetricsConfig, logger *slog.Logger) (metrics.Store, error) {
	switch cfg.Store {
	case config.StoreNone, "":
		return nil, nil
	case config.StoreLog:
		return metrics.NewLogStore(logger), nil
	case config.StoreNATS:
		store, err := metrics.DialNATS(cfg.NATSURL, cfg.Subject)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoreSQLite:
		store, err := metrics.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown metrics store %q", cfg.Store)
	}
}

// ApplyConfig swaps in the providers of a reloaded configuration. Strategy
// and chunk settings apply on restart only.
func (a *App) ApplyConfig(cfg *config.Config) {
	a.engine.SetRegistry(cfg.Registry(a.health))
}

// Shutdown drains pending metrics records.
func (a *App) Shutdown(ctx context.Context) error {
	if a.flusher == nil {
		return nil
	}
	if err := a.flusher.Close(ctx); err != nil {
		return fmt.Errorf("flush metrics: %w", err)
	}
	return nil
}
