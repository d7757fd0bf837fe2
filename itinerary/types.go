// Package itinerary defines the data model shared by every stage of itinerary
// generation: the immutable request, the coarse outline, per-day plans and the
// review and validation findings that repair steps consume.
package itinerary

import "time"

// Provenance tags stamped on activities.
const (
	SourceCorrected = "corrected"
	SourceRAG       = "rag"
)

// TransitOrigin records where a day's transit came from.
// Priority when several exist: user > ai > inferred.
type TransitOrigin string

const (
	TransitFromAI       TransitOrigin = "ai"
	TransitFromInferred TransitOrigin = "inferred"
	TransitFromUser     TransitOrigin = "user"
)

// TransitMode is the classified travel method.
type TransitMode string

const (
	ModeFlight TransitMode = "flight"
	ModeTrain  TransitMode = "train"
	ModeBus    TransitMode = "bus"
	ModeShip   TransitMode = "ship"
	ModeCar    TransitMode = "car"
	ModeOther  TransitMode = "other"
)

// EntitlementStatus is supplied by the billing side and only read here.
type EntitlementStatus struct {
	// Tier is the plan name ("free", "premium", ...).
	Tier string `json:"tier"`

	// HasAccess reports whether the plan grants premium model access.
	HasAccess bool `json:"has_access"`

	// Remaining is the premium quota left in the current period.
	Remaining int `json:"remaining"`

	// IsUnlimited means Remaining is not enforced.
	IsUnlimited bool `json:"is_unlimited"`
}

// GrantsPremium reports whether premium-tier models may be used.
func (e EntitlementStatus) GrantsPremium() bool {
	if !e.HasAccess {
		return false
	}
	return e.IsUnlimited || e.Remaining > 0
}

// Request is one itinerary generation request. It is never mutated once a
// generation has started.
type Request struct {
	// Destinations is the ordered list of places to visit.
	Destinations []string `json:"destinations" yaml:"destinations" validate:"required,min=1,dive,required"`

	// Days is the trip length.
	Days int `json:"days" yaml:"days" validate:"required,min=1,max=30"`

	// Companion is the free-text companion category ("family with toddler", "solo", ...).
	Companion string `json:"companion,omitempty" yaml:"companion"`

	Themes []string `json:"themes,omitempty" yaml:"themes"`

	Budget string `json:"budget,omitempty" yaml:"budget" validate:"omitempty,oneof=low medium high luxury"`

	Pace string `json:"pace,omitempty" yaml:"pace" validate:"omitempty,oneof=relaxed balanced packed"`

	// Notes is free text from the traveller.
	Notes string `json:"notes,omitempty" yaml:"notes"`

	// TransitOverrides are user-supplied transit legs keyed by day number.
	TransitOverrides map[int]Transit `json:"transit_overrides,omitempty" yaml:"transit_overrides"`

	Entitlement EntitlementStatus `json:"entitlement" yaml:"entitlement"`

	// PrefersPremium is the user's explicit premium request.
	PrefersPremium bool `json:"prefers_premium,omitempty" yaml:"prefers_premium"`

	// Strategy optionally forces a coordination strategy.
	Strategy string `json:"strategy,omitempty" yaml:"strategy" validate:"omitempty,oneof=single race pipeline cross-review full"`

	// Provider optionally pins the primary provider.
	Provider string `json:"provider,omitempty" yaml:"provider"`
}

// Destination returns the destinations joined for display and prompting.
func (r *Request) Destination() string {
	return joinDestinations(r.Destinations)
}

// Complexity is the derived structural difficulty of a request.
type Complexity struct {
	Days                   int    `json:"days"`
	IsMultiCity            bool   `json:"is_multi_city"`
	CompanionType          string `json:"companion_type"`
	HasSpecialRequirements bool   `json:"has_special_requirements"`
	Score                  int    `json:"score"`
	Level                  Level  `json:"level"`
}

// Level buckets a complexity score.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// OutlineDay is one day of the outline skeleton.
type OutlineDay struct {
	Day                int    `json:"day"`
	OvernightLocation  string `json:"overnight_location"`
	TravelMethodToNext string `json:"travel_method_to_next,omitempty"`
	Summary            string `json:"summary,omitempty"`
}

// Outline is the whole-trip skeleton produced before day details.
type Outline struct {
	Destination string       `json:"destination"`
	Description string       `json:"description"`
	Days        []OutlineDay `json:"days"`
}

// Day returns the outline entry for a day number.
func (o *Outline) Day(n int) (OutlineDay, bool) {
	if o == nil {
		return OutlineDay{}, false
	}
	for _, d := range o.Days {
		if d.Day == n {
			return d, true
		}
	}
	return OutlineDay{}, false
}

// Slice returns the outline days within [start, end].
func (o *Outline) Slice(start, end int) []OutlineDay {
	if o == nil {
		return nil
	}
	var out []OutlineDay
	for _, d := range o.Days {
		if d.Day >= start && d.Day <= end {
			out = append(out, d)
		}
	}
	return out
}

// Chunk is a contiguous range of trip days generated by one provider call.
type Chunk struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of days in the chunk.
func (c Chunk) Len() int {
	return c.End - c.Start + 1
}

// Endpoint is a departure or arrival.
type Endpoint struct {
	Place string `json:"place"`
	Time  string `json:"time"`
}

// Transit is an inter-city leg attached to a day.
type Transit struct {
	Mode      TransitMode   `json:"mode"`
	Departure Endpoint      `json:"departure"`
	Arrival   Endpoint      `json:"arrival"`
	Duration  string        `json:"duration,omitempty"`
	Memo      string        `json:"memo,omitempty"`
	Origin    TransitOrigin `json:"origin,omitempty"`
}

// Activity is one scheduled item of a day.
type Activity struct {
	Time        string `json:"time"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// Source is an optional provenance or citation tag.
	Source string `json:"source,omitempty"`
}

// DayPlan is the detailed plan for a single day.
type DayPlan struct {
	Day        int        `json:"day"`
	Title      string     `json:"title"`
	Activities []Activity `json:"activities"`
	Transit    *Transit   `json:"transit,omitempty"`
}

// Image is a decorative picture for the itinerary.
type Image struct {
	URL             string `json:"url"`
	Photographer    string `json:"photographer,omitempty"`
	PhotographerURL string `json:"photographer_url,omitempty"`
}

// Reference is a retrieval article that informed the plan.
type Reference struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Itinerary is the final generation output.
type Itinerary struct {
	ID          string      `json:"id"`
	Destination string      `json:"destination"`
	Description string      `json:"description"`
	Days        []DayPlan   `json:"days"`
	HeroImage   *Image      `json:"hero_image,omitempty"`
	References  []Reference `json:"references,omitempty"`
	Model       string      `json:"model,omitempty"`
	Strategy    string      `json:"strategy,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Clone returns a deep copy so repair steps never alias the caller's value.
func (it *Itinerary) Clone() *Itinerary {
	if it == nil {
		return nil
	}
	cp := *it
	cp.Days = CloneDays(it.Days)
	if it.HeroImage != nil {
		img := *it.HeroImage
		cp.HeroImage = &img
	}
	if it.References != nil {
		cp.References = append([]Reference(nil), it.References...)
	}
	return &cp
}

// CloneDays deep-copies a slice of day plans.
func CloneDays(days []DayPlan) []DayPlan {
	if days == nil {
		return nil
	}
	out := make([]DayPlan, len(days))
	for i, d := range days {
		out[i] = d
		out[i].Activities = append([]Activity(nil), d.Activities...)
		if d.Transit != nil {
			t := *d.Transit
			out[i].Transit = &t
		}
	}
	return out
}

// Review categories and severities.
const (
	CategoryGeographic = "geographic"
	CategoryTiming     = "timing"
	CategoryQuality    = "quality"
	CategoryAccuracy   = "accuracy"
	CategoryDiversity  = "diversity"

	SeverityCritical = "critical"
	SeverityMajor    = "major"
	SeverityMinor    = "minor"
)

// ReviewIssue is one finding of a cross-review.
type ReviewIssue struct {
	Day         *int   `json:"day,omitempty"`
	Category    string `json:"category"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion,omitempty"`
}

// ReviewResult is the alternate provider's assessment of an artifact.
type ReviewResult struct {
	OverallScore int           `json:"overall_score"`
	Issues       []ReviewIssue `json:"issues"`
	Strengths    []string      `json:"strengths,omitempty"`
}

// HasCritical reports whether any issue is critical.
func (r *ReviewResult) HasCritical() bool {
	for _, is := range r.Issues {
		if is.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// FailedSpot is a validator finding for a single activity.
type FailedSpot struct {
	Day                  int    `json:"day"`
	ActivityIndex        int    `json:"activity_index"`
	ActivityName         string `json:"activity_name"`
	Reason               string `json:"reason"`
	SuggestedReplacement string `json:"suggested_replacement,omitempty"`
}

// ChatMessage is one turn of a refinement conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
