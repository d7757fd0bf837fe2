// Package strategy implements the ways of obtaining an outline or a chunk of
// day plans from one or two providers, and the orchestrator that picks one
// per generation.
package strategy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360studio/tripgen/itinerary"
	"github.com/c360studio/tripgen/llm"
	"github.com/c360studio/tripgen/model"
	"github.com/c360studio/tripgen/prompts"
)

// Strategy names.
const (
	NameSingle      = "single"
	NameRace        = "race"
	NamePipeline    = "pipeline"
	NameCrossReview = "cross-review"
	NameFull        = "full"
)

// Outcome steps.
const (
	StepProduce = "produce"
	StepReview  = "review"
	StepCorrect = "correct"
)

// Strategy produces outlines and day plans.
type Strategy interface {
	// Name identifies the strategy in logs and metrics.
	Name() string

	// ProduceOutline returns the whole-trip skeleton.
	ProduceOutline(ctx context.Context, g GenContext) (*itinerary.Outline, error)

	// ProduceDayDetails returns the day plans for one chunk.
	ProduceDayDetails(ctx context.Context, g GenContext, d DayRequest) ([]itinerary.DayPlan, error)
}

// GenContext carries what every call of one phase invocation needs.
type GenContext struct {
	Request    *itinerary.Request
	Selection  model.Selection
	References string

	// Observe, if set, receives one Outcome per provider step. It may be
	// called from several goroutines.
	Observe func(Outcome)
}

func (g GenContext) observe(o Outcome) {
	if g.Observe != nil {
		g.Observe(o)
	}
}

// DayRequest describes one chunk of day plans to produce.
type DayRequest struct {
	Outline *itinerary.Outline
	Chunk   itinerary.Chunk

	// OutlineDays is the outline slice covering Chunk.
	OutlineDays []itinerary.OutlineDay

	// StartingLocation is the prior day's overnight location, if any.
	StartingLocation string
}

// Outcome reports one provider step of a strategy.
type Outcome struct {
	Phase    model.Task
	Strategy string
	Step     string
	Provider string
	Model    string

	// Score is the race score or review score, zero when not applicable.
	Score float64
}

// maxFormatRetries bounds the parse-failure conversation per call.
const maxFormatRetries = 2

// caller issues provider calls and parses their responses.
type caller struct {
	llm    llm.Completer
	logger *slog.Logger
}

// complete sends messages to target and parses the response. A parse failure
// earns one format-correction turn before it is reported.
func complete[T any](ctx context.Context, c caller, target llm.Target, temperature float64, messages []llm.Message, shape string, parse func(string) (T, error)) (T, *llm.Response, error) {
	var zero T
	var lastErr error

	for attempt := range maxFormatRetries {
		resp, err := c.llm.Complete(ctx, llm.Request{
			Target:      target,
			Messages:    messages,
			Temperature: &temperature,
			JSON:        true,
		})
		if err != nil {
			return zero, nil, fmt.Errorf("%s completion: %w", target.Name, err)
		}

		value, parseErr := parse(resp.Content)
		if parseErr == nil {
			return value, resp, nil
		}
		lastErr = parseErr

		if attempt+1 >= maxFormatRetries {
			break
		}

		c.logger.Warn("Provider format retry",
			"provider", target.Name,
			"attempt", attempt+1,
			"error", parseErr)

		messages = append(messages[:len(messages):len(messages)],
			llm.Message{Role: llm.RoleAssistant, Content: resp.Content},
			llm.Message{Role: llm.RoleUser, Content: prompts.FormatCorrection(parseErr, shape)},
		)
	}

	return zero, nil, fmt.Errorf("%s response: %w", target.Name, lastErr)
}

// outline produces an outline on one endpoint. Nil messages use the
// standard outline prompt.
func (c caller) outline(ctx context.Context, h model.Handle, g GenContext, messages []llm.Message) (*itinerary.Outline, *llm.Response, error) {
	if messages == nil {
		messages = prompts.Outline(g.Request, g.References)
	}
	return complete(ctx, c, h.Target(g.Selection.Tier), g.Selection.Temperature, messages, prompts.OutlineShape,
		func(content string) (*itinerary.Outline, error) {
			return itinerary.ParseOutline(content, g.Request.Days)
		})
}

// days produces one chunk on one endpoint. Nil messages use the standard
// details prompt.
func (c caller) days(ctx context.Context, h model.Handle, g GenContext, d DayRequest, messages []llm.Message) ([]itinerary.DayPlan, *llm.Response, error) {
	if messages == nil {
		messages = detailsPrompt(g, d)
	}
	return complete(ctx, c, h.Target(g.Selection.Tier), g.Selection.Temperature, messages, prompts.DaysShape,
		func(content string) ([]itinerary.DayPlan, error) {
			return itinerary.ParseDayPlans(content, d.Chunk)
		})
}

func detailsPrompt(g GenContext, d DayRequest) []llm.Message {
	return prompts.DayDetails(prompts.DetailsParams{
		Request:          g.Request,
		Outline:          d.Outline,
		Chunk:            d.Chunk,
		OutlineDays:      d.OutlineDays,
		StartingLocation: d.StartingLocation,
		References:       g.References,
	})
}

// resolve returns the pinned endpoint when it is configured, otherwise the
// registry's choice for the task.
func resolve(reg *model.Registry, pinned string, task model.Task) (model.Handle, error) {
	if pinned != "" && reg.IsConfigured(pinned) {
		h, _ := reg.Endpoint(pinned)
		return h, nil
	}
	return reg.Resolve(task)
}
