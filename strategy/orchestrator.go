package strategy

import (
	"log/slog"
	"time"

	"github.com/c360studio/tripgen/itinerary"
	"github.com/c360studio/tripgen/llm"
	"github.com/c360studio/tripgen/model"
)

// Mode is the configured strategy policy. ModeAuto lets provider availability decide.
type Mode string

const (
	ModeAuto        Mode = "auto"
	ModeSingle      Mode = NameSingle
	ModeRace        Mode = NameRace
	ModePipeline    Mode = NamePipeline
	ModeCrossReview Mode = NameCrossReview
	ModeFull        Mode = NameFull
)

// IsValid checks if a mode string is known.
func (m Mode) IsValid() bool {
	switch m {
	case ModeAuto, ModeSingle, ModeRace, ModePipeline, ModeCrossReview, ModeFull:
		return true
	}
	return false
}

// Config configures strategy selection.
type Config struct {
	// Mode is the default policy when a request names none.
	Mode Mode

	// RaceTimeout is the per-contender budget in a race.
	RaceTimeout time.Duration

	// QualityFloor is the review score under which a corrective pass runs.
	QualityFloor int
}

// Orchestrator chooses a strategy once per generation.
type Orchestrator struct {
	caller
	config Config
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// NewOrchestrator creates an orchestrator issuing calls through client.
func NewOrchestrator(client llm.Completer, cfg Config, opts ...Option) *Orchestrator {
	if !cfg.Mode.IsValid() {
		cfg.Mode = ModeAuto
	}
	if cfg.QualityFloor <= 0 {
		cfg.QualityFloor = DefaultQualityFloor
	}
	o := &Orchestrator{
		caller: caller{llm: client, logger: slog.Default()},
		config: cfg,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Choose returns the strategy for one generation. An explicit request
// strategy beats the configured mode; any two-provider strategy degrades to
// Single when both providers are not available.
func (o *Orchestrator) Choose(reg *model.Registry, req *itinerary.Request) Strategy {
	mode := o.config.Mode
	if req != nil && req.Strategy != "" {
		mode = Mode(req.Strategy)
	}
	var pinned string
	if req != nil {
		pinned = req.Provider
	}

	single := &Single{caller: o.caller, registry: reg, pinned: pinned}

	if _, err := reg.Resolve(model.TaskOutline); err != nil {
		o.logger.Warn("Provider resolution failed, using single strategy", "error", err)
		return single
	}

	both := reg.BothProvidersAvailable()
	if mode == ModeAuto {
		mode = ModeSingle
		if both {
			mode = ModeFull
		}
	}
	if mode != ModeSingle && !both {
		o.logger.Info("Second provider unavailable, using single strategy", "requested", mode)
		return single
	}

	switch mode {
	case ModeRace:
		return o.race(reg, pinned)
	case ModePipeline:
		return &Pipeline{caller: o.caller, registry: reg}
	case ModeCrossReview:
		return o.crossReview(reg, pinned, single, NameCrossReview)
	case ModeFull:
		return o.crossReview(reg, pinned, o.race(reg, pinned), NameFull)
	default:
		return single
	}
}

func (o *Orchestrator) race(reg *model.Registry, pinned string) *Race {
	return &Race{caller: o.caller, registry: reg, pinned: pinned, timeout: o.config.RaceTimeout}
}

func (o *Orchestrator) crossReview(reg *model.Registry, pinned string, producer Strategy, name string) *CrossReview {
	return &CrossReview{
		caller:       o.caller,
		registry:     reg,
		pinned:       pinned,
		producer:     producer,
		name:         name,
		qualityFloor: o.config.QualityFloor,
	}
}
