package itinerary

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/c360studio/tripgen/llm"
)

// ErrNoJSON is returned when a model response carries no JSON payload.
var ErrNoJSON = errors.New("no JSON found in response")

// ParseOutline validates an outline response. Day numbers missing from the
// response are assigned by position.
func ParseOutline(content string, totalDays int) (*Outline, error) {
	raw := llm.ExtractJSON(content)
	if raw == "" {
		return nil, ErrNoJSON
	}

	var out Outline
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("parse outline JSON: %w (content: %s)", err, preview(raw))
	}
	if len(out.Days) == 0 {
		return nil, fmt.Errorf("outline has no days")
	}

	for i := range out.Days {
		if out.Days[i].Day == 0 {
			out.Days[i].Day = i + 1
		}
		d := out.Days[i].Day
		if d < 1 || (totalDays > 0 && d > totalDays) {
			return nil, fmt.Errorf("outline day %d outside 1..%d", d, totalDays)
		}
		out.Days[i].OvernightLocation = strings.TrimSpace(out.Days[i].OvernightLocation)
		out.Days[i].TravelMethodToNext = strings.TrimSpace(out.Days[i].TravelMethodToNext)
	}
	sort.SliceStable(out.Days, func(i, j int) bool { return out.Days[i].Day < out.Days[j].Day })

	return &out, nil
}

// ParseDayPlans validates a day-details response for one chunk. The response
// may be a bare array or an object with a "days" array.
func ParseDayPlans(content string, chunk Chunk) ([]DayPlan, error) {
	days, err := decodeDays(content)
	if err != nil {
		return nil, err
	}
	if len(days) != chunk.Len() {
		return nil, fmt.Errorf("expected %d day plans for days %d-%d, got %d", chunk.Len(), chunk.Start, chunk.End, len(days))
	}

	seen := make(map[int]bool, len(days))
	for i := range days {
		if days[i].Day == 0 {
			days[i].Day = chunk.Start + i
		}
		d := days[i].Day
		if d < chunk.Start || d > chunk.End {
			return nil, fmt.Errorf("day %d outside chunk %d-%d", d, chunk.Start, chunk.End)
		}
		if seen[d] {
			return nil, fmt.Errorf("duplicate day %d in chunk %d-%d", d, chunk.Start, chunk.End)
		}
		seen[d] = true
		if err := checkDay(&days[i]); err != nil {
			return nil, err
		}
	}
	return days, nil
}

// ParseItinerary validates a whole-itinerary response (modify phase).
func ParseItinerary(content string) (*Itinerary, error) {
	raw := llm.ExtractJSON(content)
	if raw == "" {
		return nil, ErrNoJSON
	}

	var it Itinerary
	if err := json.Unmarshal([]byte(raw), &it); err != nil {
		return nil, fmt.Errorf("parse itinerary JSON: %w (content: %s)", err, preview(raw))
	}
	if len(it.Days) == 0 {
		return nil, fmt.Errorf("itinerary has no days")
	}
	for i := range it.Days {
		if it.Days[i].Day == 0 {
			it.Days[i].Day = i + 1
		}
		if err := checkDay(&it.Days[i]); err != nil {
			return nil, err
		}
	}
	sort.SliceStable(it.Days, func(i, j int) bool { return it.Days[i].Day < it.Days[j].Day })
	return &it, nil
}

// ParseReview validates a cross-review response. Unknown severities are
// downgraded to minor; the score must be within 0..100.
func ParseReview(content string) (*ReviewResult, error) {
	raw := llm.ExtractJSON(content)
	if raw == "" {
		return nil, ErrNoJSON
	}

	var r ReviewResult
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("parse review JSON: %w (content: %s)", err, preview(raw))
	}
	if r.OverallScore < 0 || r.OverallScore > 100 {
		return nil, fmt.Errorf("overall_score %d outside 0..100", r.OverallScore)
	}

	for i := range r.Issues {
		is := &r.Issues[i]
		is.Severity = strings.ToLower(strings.TrimSpace(is.Severity))
		switch is.Severity {
		case SeverityCritical, SeverityMajor, SeverityMinor:
		default:
			is.Severity = SeverityMinor
		}
		is.Category = strings.ToLower(strings.TrimSpace(is.Category))
		switch is.Category {
		case CategoryGeographic, CategoryTiming, CategoryQuality, CategoryAccuracy, CategoryDiversity:
		default:
			is.Category = CategoryQuality
		}
	}
	return &r, nil
}

func decodeDays(content string) ([]DayPlan, error) {
	trimmed := strings.TrimSpace(content)

	// A bare array is only trusted when it is the first JSON value in the text.
	if arr := llm.ExtractJSONArray(content); arr != "" && strings.Index(trimmed, "[") < indexOrMax(trimmed, "{") {
		var days []DayPlan
		if err := json.Unmarshal([]byte(arr), &days); err == nil {
			return days, nil
		}
	}

	raw := llm.ExtractJSON(content)
	if raw == "" {
		return nil, ErrNoJSON
	}

	var wrapped struct {
		Days []DayPlan `json:"days"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
		return nil, fmt.Errorf("parse day plans JSON: %w (content: %s)", err, preview(raw))
	}
	if wrapped.Days != nil {
		return wrapped.Days, nil
	}

	// Single day object.
	var single DayPlan
	if err := json.Unmarshal([]byte(raw), &single); err != nil {
		return nil, fmt.Errorf("parse day plan JSON: %w", err)
	}
	if len(single.Activities) == 0 {
		return nil, fmt.Errorf("response has neither days nor activities")
	}
	return []DayPlan{single}, nil
}

func checkDay(d *DayPlan) error {
	if len(d.Activities) == 0 {
		return fmt.Errorf("day %d has no activities", d.Day)
	}
	for i, a := range d.Activities {
		if strings.TrimSpace(a.Name) == "" {
			return fmt.Errorf("day %d activity %d has no name", d.Day, i)
		}
	}
	if d.Transit != nil && d.Transit.Origin == "" {
		d.Transit.Origin = TransitFromAI
	}
	return nil
}

func indexOrMax(s, sub string) int {
	if i := strings.Index(s, sub); i >= 0 {
		return i
	}
	return len(s) + 1
}

// previewRunes bounds the raw content quoted in parse errors.
const previewRunes = 200

// preview truncates s on a rune boundary.
func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	return string([]rune(s)[:previewRunes])
}
