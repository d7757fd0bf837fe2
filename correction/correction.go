// Package correction repairs individual activities that failed external
// validation without regenerating the rest of the itinerary.
package correction

import (
	"context"
	"log/slog"

	"github.com/c360studio/tripgen/itinerary"
	"github.com/c360studio/tripgen/llm"
	"github.com/c360studio/tripgen/model"
	"github.com/c360studio/tripgen/prompts"
)

// Corrector runs the self-correction pass. It is best-effort: every failure
// yields an unmodified copy of the input.
type Corrector struct {
	llm    llm.Completer
	logger *slog.Logger
}

// Option configures a Corrector.
type Option func(*Corrector)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Corrector) {
		c.logger = logger
	}
}

// New creates a corrector.
func New(client llm.Completer, opts ...Option) *Corrector {
	c := &Corrector{llm: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Input is one correction request.
type Input struct {
	Itinerary  *itinerary.Itinerary
	Failed     []itinerary.FailedSpot
	References string

	// Provider is the endpoint that produced the itinerary.
	Provider model.Handle

	// Selection carries the original generation's tier and the modify temperature.
	Selection model.Selection
}

// Result is the outcome of Correct.
type Result struct {
	Itinerary *itinerary.Itinerary

	// Corrected counts activities that were replaced.
	Corrected int
}

// Correct asks the provider for replacements of the failed activities and
// applies only those. Replaced activities whose name differs from the failed
// one are stamped with itinerary.SourceCorrected.
func (c *Corrector) Correct(ctx context.Context, in Input) Result {
	out := in.Itinerary.Clone()
	if out == nil || len(in.Failed) == 0 {
		return Result{Itinerary: out}
	}

	temperature := in.Selection.Temperature
	resp, err := c.llm.Complete(ctx, llm.Request{
		Target:      in.Provider.Target(in.Selection.Tier),
		Messages:    prompts.SelfCorrection(in.Itinerary, in.Failed, in.References),
		Temperature: &temperature,
		JSON:        true,
	})
	if err != nil {
		c.logger.Warn("Self-correction call failed, keeping original",
			"provider", in.Provider.Name,
			"failed_spots", len(in.Failed),
			"error", err)
		return Result{Itinerary: out}
	}

	fixed, err := itinerary.ParseItinerary(resp.Content)
	if err != nil {
		c.logger.Warn("Self-correction response unusable, keeping original",
			"provider", in.Provider.Name,
			"error", err)
		return Result{Itinerary: out}
	}

	corrected := 0
	for _, f := range in.Failed {
		orig := activityAt(out, f.Day, f.ActivityIndex)
		if orig == nil {
			c.logger.Debug("Failed spot does not exist in itinerary", "day", f.Day, "index", f.ActivityIndex)
			continue
		}
		replacement := activityAt(fixed, f.Day, f.ActivityIndex)
		if replacement == nil {
			continue
		}

		before := f.ActivityName
		if before == "" {
			before = orig.Name
		}
		if replacement.Name == before {
			continue
		}

		r := *replacement
		r.Source = itinerary.SourceCorrected
		*orig = r
		corrected++
	}

	c.logger.Info("Self-correction applied",
		"failed_spots", len(in.Failed),
		"corrected", corrected)
	return Result{Itinerary: out, Corrected: corrected}
}

// activityAt returns a pointer into it for (day, index), or nil.
func activityAt(it *itinerary.Itinerary, day, index int) *itinerary.Activity {
	for i := range it.Days {
		if it.Days[i].Day != day {
			continue
		}
		if index < 0 || index >= len(it.Days[i].Activities) {
			return nil
		}
		return &it.Days[i].Activities[index]
	}
	return nil
}
