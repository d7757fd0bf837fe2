package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/c360studio/tripgen/continuity"
	"github.com/c360studio/tripgen/itinerary"
	"github.com/c360studio/tripgen/metrics"
	"github.com/c360studio/tripgen/model"
)

// RegenerateItinerary applies a refinement conversation to an itinerary.
// Identity, hero image, references and user transit legs carry over.
func (e *Engine) RegenerateItinerary(ctx context.Context, current *itinerary.Itinerary, history []itinerary.ChatMessage) Result {
	if current == nil || len(current.Days) == 0 {
		return Failure(fmt.Errorf("%w: no itinerary to refine", itinerary.ErrInvalidRequest))
	}
	if len(history) == 0 {
		return Failure(fmt.Errorf("%w: empty refinement conversation", itinerary.ErrInvalidRequest))
	}

	reg := e.registry.Load()
	if reg == nil {
		return Failure(fmt.Errorf("%w: no provider registry", ErrConfiguration))
	}
	h, err := reg.Resolve(model.TaskModify)
	if err != nil {
		return Failure(fmt.Errorf("%w: %w", ErrConfiguration, err))
	}

	collector := metrics.NewCollector()
	e.noteMetrics(collector.Start(e.newID(), current.Destination, len(current.Days), PromptVersion))

	sel := model.NewSelector(h.Name).Select(model.SelectParams{
		Phase:      model.TaskModify,
		ForcedTier: model.TierStandard,
	})

	started := time.Now()
	updated, resp, err := e.orchestrator.Modify(ctx, h, sel, current, history)
	e.noteMetrics(collector.RecordStep("modify", time.Since(started)))
	if err != nil {
		e.logger.Error("Regeneration failed", "itinerary_id", current.ID, "provider", h.Name, "error", err)
		e.flush(collector, false)
		return Failure(fmt.Errorf("modify: %w", err))
	}
	if err := checkSequence(updated.Days); err != nil {
		e.flush(collector, false)
		return Failure(err)
	}

	out := current.Clone()
	out.Days = continuity.Apply(updated.Days, nil, userTransits(current))
	if updated.Description != "" {
		out.Description = updated.Description
	}
	if updated.Destination != "" {
		out.Destination = updated.Destination
	}
	if resp != nil && resp.Model != "" {
		out.Model = resp.Model
	}

	e.noteMetrics(collector.RecordCitationRate(CitationRate(out)))
	e.noteMetrics(collector.RecordModel(out.Model, "modify"))
	e.flush(collector, true)

	e.logger.Info("Itinerary regenerated", "itinerary_id", out.ID, "days", len(out.Days), "provider", h.Name)
	return Result{Success: true, Itinerary: out}
}

// userTransits collects legs the traveller set by hand so a refinement
// cannot silently drop them.
func userTransits(it *itinerary.Itinerary) map[int]itinerary.Transit {
	out := make(map[int]itinerary.Transit)
	for _, d := range it.Days {
		if d.Transit != nil && d.Transit.Origin == itinerary.TransitFromUser {
			out[d.Day] = *d.Transit
		}
	}
	return out
}

// checkSequence verifies day numbers run 1..N without gaps.
func checkSequence(days []itinerary.DayPlan) error {
	for i, d := range days {
		if d.Day != i+1 {
			return errors.New("refined itinerary days are not numbered 1..N")
		}
	}
	return nil
}
