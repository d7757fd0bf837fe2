package strategy

import (
	"context"

	"github.com/c360studio/tripgen/itinerary"
	"github.com/c360studio/tripgen/llm"
	"github.com/c360studio/tripgen/model"
	"github.com/c360studio/tripgen/prompts"
)

// Modify runs one refinement turn on a single endpoint. Refinement is never
// raced or reviewed.
func (o *Orchestrator) Modify(ctx context.Context, h model.Handle, sel model.Selection, current *itinerary.Itinerary, history []itinerary.ChatMessage) (*itinerary.Itinerary, *llm.Response, error) {
	return complete(ctx, o.caller, h.Target(sel.Tier), sel.Temperature, prompts.Modify(current, history), prompts.ItineraryShape,
		itinerary.ParseItinerary)
}
