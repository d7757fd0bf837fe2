package strategy

import (
	"context"

	"github.com/c360studio/tripgen/itinerary"
	"github.com/c360studio/tripgen/model"
)

// Pipeline runs each phase on the provider assigned to it by configuration.
type Pipeline struct {
	caller
	registry *model.Registry
}

// Name implements Strategy.
func (p *Pipeline) Name() string { return NamePipeline }

// ProduceOutline implements Strategy.
func (p *Pipeline) ProduceOutline(ctx context.Context, g GenContext) (*itinerary.Outline, error) {
	h, err := p.registry.ResolvePipeline(model.TaskOutline)
	if err != nil {
		return nil, err
	}
	out, resp, err := p.outline(ctx, h, g, nil)
	if err != nil {
		return nil, err
	}
	g.observe(Outcome{Phase: model.TaskOutline, Strategy: NamePipeline, Step: StepProduce, Provider: h.Name, Model: resp.Model})
	return out, nil
}

// ProduceDayDetails implements Strategy.
func (p *Pipeline) ProduceDayDetails(ctx context.Context, g GenContext, d DayRequest) ([]itinerary.DayPlan, error) {
	h, err := p.registry.ResolvePipeline(model.TaskDetails)
	if err != nil {
		return nil, err
	}
	days, resp, err := p.days(ctx, h, g, d, nil)
	if err != nil {
		return nil, err
	}
	g.observe(Outcome{Phase: model.TaskDetails, Strategy: NamePipeline, Step: StepProduce, Provider: h.Name, Model: resp.Model})
	return days, nil
}
