package strategy

import (
	"context"

	"github.com/c360studio/tripgen/itinerary"
	"github.com/c360studio/tripgen/model"
)

// Single uses one provider with no coordination.
type Single struct {
	caller
	registry *model.Registry
	pinned   string
}

// Name implements Strategy.
func (s *Single) Name() string { return NameSingle }

// ProduceOutline implements Strategy.
func (s *Single) ProduceOutline(ctx context.Context, g GenContext) (*itinerary.Outline, error) {
	h, err := resolve(s.registry, s.pinned, model.TaskOutline)
	if err != nil {
		return nil, err
	}
	out, resp, err := s.outline(ctx, h, g, nil)
	if err != nil {
		return nil, err
	}
	g.observe(Outcome{Phase: model.TaskOutline, Strategy: NameSingle, Step: StepProduce, Provider: h.Name, Model: resp.Model})
	return out, nil
}

// ProduceDayDetails implements Strategy.
func (s *Single) ProduceDayDetails(ctx context.Context, g GenContext, d DayRequest) ([]itinerary.DayPlan, error) {
	h, err := resolve(s.registry, s.pinned, model.TaskDetails)
	if err != nil {
		return nil, err
	}
	days, resp, err := s.days(ctx, h, g, d, nil)
	if err != nil {
		return nil, err
	}
	g.observe(Outcome{Phase: model.TaskDetails, Strategy: NameSingle, Step: StepProduce, Provider: h.Name, Model: resp.Model})
	return days, nil
}
