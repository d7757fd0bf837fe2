package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c360studio/tripgen/chunk"
	"github.com/c360studio/tripgen/continuity"
	"github.com/c360studio/tripgen/correction"
	"github.com/c360studio/tripgen/itinerary"
	"github.com/c360studio/tripgen/metrics"
	"github.com/c360studio/tripgen/model"
	"github.com/c360studio/tripgen/retrieval"
	"github.com/c360studio/tripgen/strategy"
)

// ErrConfiguration marks failures that prevent a generation from starting.
var ErrConfiguration = errors.New("configuration error")

// modelTracker remembers which model produced the outline. Observe callbacks
// arrive from several goroutines.
type modelTracker struct {
	mu    sync.Mutex
	model string
}

func (t *modelTracker) observe(o strategy.Outcome) {
	if o.Phase != model.TaskOutline || o.Step == strategy.StepReview || o.Model == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.model = o.Model
}

func (t *modelTracker) get() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.model
}

// GenerateItinerary runs a full generation. It never returns a Go error:
// every failure is reported through Result.
func (e *Engine) GenerateItinerary(ctx context.Context, req *itinerary.Request, opts GenerateOptions) Result {
	if req == nil {
		return Failure(fmt.Errorf("%w: nil request", itinerary.ErrInvalidRequest))
	}
	if err := req.Validate(); err != nil {
		return Failure(err)
	}

	reg := e.registry.Load()
	primary, err := e.primary(reg, req)
	if err != nil {
		e.logger.Error("Generation cannot start", "error", err)
		return Failure(err)
	}

	id := e.newID()
	logger := e.logger.With("generation_id", id)
	progress := slog.LevelDebug
	if opts.Verbose {
		progress = slog.LevelInfo
	}

	collector := metrics.NewCollector()
	e.noteMetrics(collector.Start(id, req.Destination(), req.Days, PromptVersion))

	it, err := e.generate(ctx, reg, req, opts, primary, collector, logger, progress)
	if err != nil {
		logger.Error("Generation failed", "error", err)
		e.flush(collector, false)
		return Failure(err)
	}

	it.ID = id
	e.flush(collector, true)
	logger.Log(ctx, progress, "Generation complete",
		"days", len(it.Days),
		"strategy", it.Strategy,
		"model", it.Model)
	return Result{Success: true, Itinerary: it}
}

// primary resolves the endpoint that owns the generation. Missing providers
// for either phase are configuration errors.
func (e *Engine) primary(reg *model.Registry, req *itinerary.Request) (model.Handle, error) {
	if reg == nil {
		return model.Handle{}, fmt.Errorf("%w: no provider registry", ErrConfiguration)
	}
	for _, task := range []model.Task{model.TaskOutline, model.TaskDetails} {
		if _, err := reg.Resolve(task); err != nil {
			return model.Handle{}, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
	}
	if req.Provider != "" && reg.IsConfigured(req.Provider) {
		h, _ := reg.Endpoint(req.Provider)
		return h, nil
	}
	return reg.Resolve(model.TaskOutline)
}

func (e *Engine) generate(ctx context.Context, reg *model.Registry, req *itinerary.Request, opts GenerateOptions,
	primary model.Handle, collector *metrics.Collector, logger *slog.Logger, progress slog.Level) (*itinerary.Itinerary, error) {

	complexity := itinerary.ComplexityOf(req)
	selector := model.NewSelector(primary.Name)
	selectFor := func(phase model.Task) model.Selection {
		return selector.Select(model.SelectParams{
			Entitlement:    req.Entitlement,
			Complexity:     complexity,
			Phase:          phase,
			PrefersPremium: req.PrefersPremium,
		})
	}

	started := time.Now()
	topK := opts.TopK
	if topK <= 0 {
		topK = e.defaultTopK
	}
	refs := e.retriever.Gather(ctx, retrieval.Query(req), topK)
	e.noteMetrics(collector.RecordStep("retrieval", time.Since(started)))
	e.noteMetrics(collector.RecordRAGArticles(refs.Count()))

	strat := e.orchestrator.Choose(reg, req)
	tracker := &modelTracker{}
	observe := func(o strategy.Outcome) {
		tracker.observe(o)
		e.recorder.ObserveStep(o.Strategy, o.Step, o.Provider)
	}

	outlineSel := selectFor(model.TaskOutline)
	logger.Log(ctx, progress, "Generating outline",
		"strategy", strat.Name(),
		"tier", outlineSel.Tier,
		"reason", outlineSel.Reason,
		"complexity", complexity.Level,
		"references", refs.Count())

	started = time.Now()
	outline, err := strat.ProduceOutline(ctx, strategy.GenContext{
		Request:    req,
		Selection:  outlineSel,
		References: refs.Text,
		Observe:    observe,
	})
	e.noteMetrics(collector.RecordOutline(time.Since(started)))
	if err != nil {
		return nil, fmt.Errorf("outline: %w", err)
	}

	logger.Log(ctx, progress, "Generating day details", "days", req.Days)
	started = time.Now()
	days, err := e.chunks.Generate(ctx, chunk.Job{
		Strategy:  strat,
		Outline:   outline,
		TotalDays: req.Days,
		NewGen: func(itinerary.Chunk) strategy.GenContext {
			return strategy.GenContext{
				Request:    req,
				Selection:  selectFor(model.TaskDetails),
				References: refs.Text,
				Observe:    observe,
			}
		},
		OnChunk: func(c itinerary.Chunk, elapsed time.Duration, err error) {
			e.recorder.ObserveChunk(elapsed, err)
			e.noteMetrics(collector.RecordStep(fmt.Sprintf("details:%d-%d", c.Start, c.End), elapsed))
		},
	})
	e.noteMetrics(collector.RecordDetails(time.Since(started)))
	if err != nil {
		return nil, fmt.Errorf("day details: %w", err)
	}

	destination := outline.Destination
	if destination == "" {
		destination = req.Destination()
	}
	it := &itinerary.Itinerary{
		Destination: destination,
		Description: outline.Description,
		Days:        continuity.Apply(days, outline, req.TransitOverrides),
		References:  refs.References,
		Model:       tracker.get(),
		Strategy:    strat.Name(),
		CreatedAt:   time.Now().UTC(),
	}

	it = e.validateAndCorrect(ctx, it, primary, outlineSel.Tier, refs.Text, collector, logger)

	if opts.FetchHeroImage {
		it.HeroImage = retrieval.HeroImage(ctx, e.images, req.Destination(), refs.Image, logger)
	}
	e.noteMetrics(collector.RecordCitationRate(CitationRate(it)))
	e.noteMetrics(collector.RecordModel(it.Model, it.Strategy))
	return it, nil
}

// validateAndCorrect runs the spot validator and, when spots fail, one
// self-correction pass on the tier the generation used.
func (e *Engine) validateAndCorrect(ctx context.Context, it *itinerary.Itinerary, primary model.Handle, tier model.Tier,
	references string, collector *metrics.Collector, logger *slog.Logger) *itinerary.Itinerary {

	if e.validator == nil {
		return it
	}

	started := time.Now()
	failed, err := e.validator.Validate(ctx, it)
	e.noteMetrics(collector.RecordStep("validation", time.Since(started)))
	if err != nil {
		logger.Warn("Spot validation failed, skipping correction", "error", err)
		return it
	}

	total := ActivityCount(it)
	if len(failed) == 0 {
		e.noteMetrics(collector.RecordValidation(1, 0))
		return it
	}

	started = time.Now()
	res := e.corrector.Correct(ctx, correction.Input{
		Itinerary:  it,
		Failed:     failed,
		References: references,
		Provider:   primary,
		Selection: model.NewSelector(primary.Name).Select(model.SelectParams{
			Phase:      model.TaskModify,
			ForcedTier: tier,
		}),
	})
	e.noteMetrics(collector.RecordStep("correction", time.Since(started)))

	passRate := 0.0
	if total > 0 {
		passRate = float64(total-min(len(failed), total)) / float64(total)
	}
	e.noteMetrics(collector.RecordValidation(passRate, res.Corrected))
	return res.Itinerary
}

// ActivityCount returns the number of activities across all days.
func ActivityCount(it *itinerary.Itinerary) int {
	n := 0
	for _, d := range it.Days {
		n += len(d.Activities)
	}
	return n
}

// CitationRate returns the share of activities carrying a source tag.
func CitationRate(it *itinerary.Itinerary) float64 {
	total := ActivityCount(it)
	if total == 0 {
		return 0
	}
	cited := 0
	for _, d := range it.Days {
		for _, a := range d.Activities {
			if a.Source != "" {
				cited++
			}
		}
	}
	return float64(cited) / float64(total)
}
