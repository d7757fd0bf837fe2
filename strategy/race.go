package strategy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/c360studio/tripgen/itinerary"
	"github.com/c360studio/tripgen/llm"
	"github.com/c360studio/tripgen/model"
)

// Race sends the same request to the primary and alternate providers at once,
// waits for both and keeps the better-scoring result.
type Race struct {
	caller
	registry *model.Registry
	pinned   string

	// timeout is the equal budget each contender gets. Zero leaves the
	// endpoint's own timeout in charge.
	timeout time.Duration
}

// Name implements Strategy.
func (r *Race) Name() string { return NameRace }

// ProduceOutline implements Strategy.
func (r *Race) ProduceOutline(ctx context.Context, g GenContext) (*itinerary.Outline, error) {
	produce := func(ctx context.Context, h model.Handle) (*itinerary.Outline, *llm.Response, error) {
		return r.outline(ctx, h, g, nil)
	}
	score := func(out *itinerary.Outline) float64 {
		return ScoreOutline(g.Request, out)
	}
	return runRace(ctx, r, g, model.TaskOutline, produce, score)
}

// ProduceDayDetails implements Strategy.
func (r *Race) ProduceDayDetails(ctx context.Context, g GenContext, d DayRequest) ([]itinerary.DayPlan, error) {
	produce := func(ctx context.Context, h model.Handle) ([]itinerary.DayPlan, *llm.Response, error) {
		return r.days(ctx, h, g, d, nil)
	}
	score := func(days []itinerary.DayPlan) float64 {
		return ScoreDays(g.Request, d, days)
	}
	return runRace(ctx, r, g, model.TaskDetails, produce, score)
}

type contender[T any] struct {
	handle model.Handle
	value  T
	resp   *llm.Response
	err    error
}

func runRace[T any](
	ctx context.Context,
	r *Race,
	g GenContext,
	task model.Task,
	produce func(context.Context, model.Handle) (T, *llm.Response, error),
	score func(T) float64,
) (T, error) {
	var zero T

	primary, err := resolve(r.registry, r.pinned, task)
	if err != nil {
		return zero, err
	}
	alternate, ok := r.registry.Alternate(primary.Name)
	if !ok {
		r.logger.Debug("Race has no alternate, running primary only", "provider", primary.Name, "task", task)
		value, resp, err := produce(ctx, primary)
		if err != nil {
			return zero, err
		}
		g.observe(Outcome{Phase: task, Strategy: NameRace, Step: StepProduce, Provider: primary.Name, Model: resp.Model})
		return value, nil
	}

	results := [2]contender[T]{{handle: primary}, {handle: alternate}}
	var wg sync.WaitGroup
	for i := range results {
		wg.Go(func() {
			callCtx := ctx
			if r.timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, r.timeout)
				defer cancel()
			}
			results[i].value, results[i].resp, results[i].err = produce(callCtx, results[i].handle)
		})
	}
	wg.Wait()

	p, a := results[0], results[1]
	switch {
	case p.err != nil && a.err != nil:
		r.logger.Warn("Race failed on both providers",
			"task", task,
			"primary", primary.Name,
			"primary_error", p.err,
			"alternate", alternate.Name,
			"alternate_error", a.err)
		return zero, fmt.Errorf("race %s: %w", task, p.err)
	case p.err != nil:
		r.logger.Info("Race primary failed, using alternate", "task", task, "provider", alternate.Name, "error", p.err)
		g.observe(Outcome{Phase: task, Strategy: NameRace, Step: StepProduce, Provider: alternate.Name, Model: a.resp.Model})
		return a.value, nil
	case a.err != nil:
		r.logger.Info("Race alternate failed, using primary", "task", task, "provider", primary.Name, "error", a.err)
		g.observe(Outcome{Phase: task, Strategy: NameRace, Step: StepProduce, Provider: primary.Name, Model: p.resp.Model})
		return p.value, nil
	}

	ps, as := score(p.value), score(a.value)
	winner, winScore := p, ps
	if as > ps {
		winner, winScore = a, as
	}
	r.logger.Debug("Race decided",
		"task", task,
		"winner", winner.handle.Name,
		"primary_score", ps,
		"alternate_score", as)
	g.observe(Outcome{Phase: task, Strategy: NameRace, Step: StepProduce, Provider: winner.handle.Name, Model: winner.resp.Model, Score: winScore})
	return winner.value, nil
}
