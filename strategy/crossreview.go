package strategy

import (
	"context"

	"github.com/c360studio/tripgen/itinerary"
	"github.com/c360studio/tripgen/llm"
	"github.com/c360studio/tripgen/model"
	"github.com/c360studio/tripgen/prompts"
)

// DefaultQualityFloor is the review score under which a corrective pass runs.
const DefaultQualityFloor = 70

// CrossReview has the alternate provider review what the producer made and
// asks the primary for at most one corrective pass.
type CrossReview struct {
	caller
	registry *model.Registry
	pinned   string

	// producer makes the first draft; Single for cross-review, Race for full.
	producer     Strategy
	name         string
	qualityFloor int
}

// Name implements Strategy.
func (c *CrossReview) Name() string { return c.name }

// ProduceOutline implements Strategy.
func (c *CrossReview) ProduceOutline(ctx context.Context, g GenContext) (*itinerary.Outline, error) {
	draft, err := c.producer.ProduceOutline(ctx, g)
	if err != nil {
		return nil, err
	}

	primary, reviewer, ok := c.pair(model.TaskOutline)
	if !ok {
		return draft, nil
	}
	review, ok := c.review(ctx, g, reviewer, model.TaskOutline, "outline", draft)
	if !ok || !c.needsCorrection(review) {
		return draft, nil
	}

	messages := prompts.WithReviewFeedback(prompts.Outline(g.Request, g.References), review)
	corrected, resp, err := c.outline(ctx, primary, g, messages)
	if err != nil {
		c.logger.Warn("Corrective outline pass failed, keeping draft", "provider", primary.Name, "error", err)
		return draft, nil
	}
	g.observe(Outcome{Phase: model.TaskOutline, Strategy: c.name, Step: StepCorrect, Provider: primary.Name, Model: resp.Model})
	return corrected, nil
}

// ProduceDayDetails implements Strategy.
func (c *CrossReview) ProduceDayDetails(ctx context.Context, g GenContext, d DayRequest) ([]itinerary.DayPlan, error) {
	draft, err := c.producer.ProduceDayDetails(ctx, g, d)
	if err != nil {
		return nil, err
	}

	primary, reviewer, ok := c.pair(model.TaskDetails)
	if !ok {
		return draft, nil
	}
	review, ok := c.review(ctx, g, reviewer, model.TaskDetails, "day plans", draft)
	if !ok || !c.needsCorrection(review) {
		return draft, nil
	}

	messages := prompts.WithReviewFeedback(detailsPrompt(g, d), review)
	corrected, resp, err := c.days(ctx, primary, g, d, messages)
	if err != nil {
		c.logger.Warn("Corrective details pass failed, keeping draft",
			"provider", primary.Name,
			"chunk_start", d.Chunk.Start,
			"error", err)
		return draft, nil
	}
	g.observe(Outcome{Phase: model.TaskDetails, Strategy: c.name, Step: StepCorrect, Provider: primary.Name, Model: resp.Model})
	return corrected, nil
}

// pair returns the producing primary and the reviewing alternate.
func (c *CrossReview) pair(task model.Task) (primary, reviewer model.Handle, ok bool) {
	primary, err := resolve(c.registry, c.pinned, task)
	if err != nil {
		return model.Handle{}, model.Handle{}, false
	}
	reviewer, ok = c.registry.Alternate(primary.Name)
	if !ok {
		c.logger.Debug("No reviewer available, skipping cross-review", "task", task, "primary", primary.Name)
	}
	return primary, reviewer, ok
}

// review runs the reviewer. Review failures are findings-free: the draft stands.
func (c *CrossReview) review(ctx context.Context, g GenContext, reviewer model.Handle, task model.Task, kind string, artifact any) (*itinerary.ReviewResult, bool) {
	target := reviewer.Target(g.Selection.Tier)
	messages := prompts.Review(g.Request, kind, artifact)

	review, resp, err := complete(ctx, c.caller, target, model.PhaseTemperature(model.TaskReview), messages, prompts.ReviewShape,
		itinerary.ParseReview)
	if err != nil {
		c.logger.Warn("Review failed, keeping draft", "task", task, "reviewer", reviewer.Name, "error", err)
		return nil, false
	}

	c.logger.Debug("Review received",
		"task", task,
		"reviewer", reviewer.Name,
		"score", review.OverallScore,
		"issues", len(review.Issues),
		"critical", review.HasCritical())
	g.observe(Outcome{
		Phase:    task,
		Strategy: c.name,
		Step:     StepReview,
		Provider: reviewer.Name,
		Model:    modelOf(resp),
		Score:    float64(review.OverallScore),
	})
	return review, true
}

func (c *CrossReview) needsCorrection(r *itinerary.ReviewResult) bool {
	return r.OverallScore < c.qualityFloor || r.HasCritical()
}

func modelOf(resp *llm.Response) string {
	if resp == nil {
		return ""
	}
	return resp.Model
}
