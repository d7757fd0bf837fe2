package model

import (
	"fmt"

	"github.com/c360studio/tripgen/itinerary"
)

// Phase temperatures. They never vary with tier.
const (
	OutlineTemperature = 0.3
	DetailsTemperature = 0.1
	ModifyTemperature  = 0.1
	ReviewTemperature  = 0.1
)

// PhaseTemperature returns the fixed sampling temperature for a phase.
func PhaseTemperature(phase Task) float64 {
	switch phase {
	case TaskOutline:
		return OutlineTemperature
	case TaskModify:
		return ModifyTemperature
	case TaskReview:
		return ReviewTemperature
	default:
		return DetailsTemperature
	}
}

// Selection is the outcome of model selection for one phase invocation.
type Selection struct {
	Tier        Tier    `json:"tier"`
	Provider    string  `json:"provider"`
	Temperature float64 `json:"temperature"`
	Reason      string  `json:"reason"`
}

// SelectParams are the inputs to Select.
type SelectParams struct {
	Entitlement    itinerary.EntitlementStatus
	Complexity     itinerary.Complexity
	Phase          Task
	PrefersPremium bool

	// ForcedTier bypasses the entitlement gate. Self-correction uses it to
	// stay on the tier the original generation ran on.
	ForcedTier Tier
}

// Selector picks the tier and temperature for a phase. It performs no I/O.
type Selector struct {
	provider string
}

// NewSelector creates a selector that reports provider in its selections.
func NewSelector(provider string) Selector {
	return Selector{provider: provider}
}

// Select maps entitlement, complexity and phase to a Selection.
func (s Selector) Select(p SelectParams) Selection {
	sel := Selection{
		Provider:    s.provider,
		Temperature: PhaseTemperature(p.Phase),
	}

	switch {
	case p.ForcedTier.IsValid():
		sel.Tier = p.ForcedTier
		sel.Reason = fmt.Sprintf("tier %s forced by caller", p.ForcedTier)
	case !p.Entitlement.GrantsPremium():
		sel.Tier = TierStandard
		sel.Reason = fmt.Sprintf("plan %q has no premium access", p.Entitlement.Tier)
	case p.PrefersPremium:
		sel.Tier = TierPremium
		sel.Reason = "premium requested by user"
	case p.Complexity.Level == itinerary.LevelHigh:
		sel.Tier = TierPremium
		sel.Reason = fmt.Sprintf("high complexity request (score %d)", p.Complexity.Score)
	default:
		sel.Tier = TierStandard
		sel.Reason = fmt.Sprintf("%s complexity request, standard tier suffices", p.Complexity.Level)
	}
	return sel
}
