package strategy

import (
	"strings"

	"github.com/c360studio/tripgen/itinerary"
)

// Race score weights: structure > alignment > day count.
const (
	weightStructure = 0.5
	weightAlignment = 0.3
	weightDayCount  = 0.2
)

// ScoreOutline rates an outline between 0 and 1.
func ScoreOutline(req *itinerary.Request, out *itinerary.Outline) float64 {
	if out == nil || len(out.Days) == 0 {
		return 0
	}

	complete := 0
	var text strings.Builder
	text.WriteString(out.Destination + " " + out.Description)
	for _, d := range out.Days {
		if d.OvernightLocation != "" {
			complete++
		}
		text.WriteString(" " + d.OvernightLocation + " " + d.Summary)
	}
	structure := float64(complete) / float64(len(out.Days))
	if out.Description == "" {
		structure *= 0.8
	}

	return weightStructure*structure +
		weightAlignment*alignment(req.Destinations, text.String()) +
		weightDayCount*dayCountMatch(len(out.Days), req.Days)
}

// ScoreDays rates one chunk of day plans between 0 and 1.
func ScoreDays(req *itinerary.Request, d DayRequest, days []itinerary.DayPlan) float64 {
	if len(days) == 0 {
		return 0
	}

	var filled, total int
	var text strings.Builder
	for _, day := range days {
		text.WriteString(" " + day.Title)
		for _, a := range day.Activities {
			total++
			if a.Time != "" && a.Name != "" && a.Description != "" {
				filled++
			}
			text.WriteString(" " + a.Name + " " + a.Description)
		}
	}
	structure := 0.0
	if total > 0 {
		structure = float64(filled) / float64(total)
	}

	// Prefer the outline's overnight places; fall back to the destinations.
	targets := make([]string, 0, len(d.OutlineDays))
	for _, od := range d.OutlineDays {
		if od.OvernightLocation != "" {
			targets = append(targets, od.OvernightLocation)
		}
	}
	if len(targets) == 0 {
		targets = req.Destinations
	}

	return weightStructure*structure +
		weightAlignment*alignment(targets, text.String()) +
		weightDayCount*dayCountMatch(len(days), d.Chunk.Len())
}

// alignment is the share of places mentioned in text.
func alignment(places []string, text string) float64 {
	lower := strings.ToLower(text)
	var n, hit int
	for _, p := range places {
		for _, part := range splitPlaces(p) {
			n++
			if strings.Contains(lower, strings.ToLower(part)) {
				hit++
			}
		}
	}
	if n == 0 {
		return 1
	}
	return float64(hit) / float64(n)
}

func splitPlaces(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case ',', '、', '・', '/', ';', '→', '>', '&':
			return true
		}
		return false
	})
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimSpace(strings.Trim(strings.TrimSpace(f), "-="))
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func dayCountMatch(got, want int) float64 {
	if want <= 0 {
		return 1
	}
	if got == want {
		return 1
	}
	diff := got - want
	if diff < 0 {
		diff = -diff
	}
	return max(0, 1-float64(diff)/float64(want))
}
