// Package continuity fills transit legs the day generator left out and applies
// user transit overrides, after chunks have been merged.
package continuity

import (
	"regexp"
	"strings"

	"github.com/c360studio/tripgen/itinerary"
)

// Default times for inferred transit. They are placeholders, not a schedule.
const (
	DefaultDepartureTime = "09:00"
	DefaultArrivalTime   = "12:00"
)

// Durations estimates travel time per mode.
var Durations = map[itinerary.TransitMode]string{
	itinerary.ModeFlight: "2h",
	itinerary.ModeTrain:  "3h",
	itinerary.ModeBus:    "4h",
	itinerary.ModeShip:   "5h",
	itinerary.ModeCar:    "3h",
	itinerary.ModeOther:  "2h",
}

type modeMatcher struct {
	mode  itinerary.TransitMode
	words *regexp.Regexp
	cjk   []string
}

var modeMatchers = []modeMatcher{
	{
		mode:  itinerary.ModeFlight,
		words: regexp.MustCompile(`(?i)\b(?:flight|flights|fly|flying|plane|airplane|airline|domestic air)\b`),
		cjk:   []string{"飛行機", "空路", "航空", "フライト"},
	},
	{
		mode:  itinerary.ModeTrain,
		words: regexp.MustCompile(`(?i)\b(?:train|trains|rail|railway|shinkansen|bullet train|jr|subway|metro|tram)\b`),
		cjk:   []string{"電車", "新幹線", "鉄道", "特急", "在来線", "列車"},
	},
	{
		mode:  itinerary.ModeBus,
		words: regexp.MustCompile(`(?i)\b(?:bus|buses|coach|shuttle)\b`),
		cjk:   []string{"バス"},
	},
	{
		mode:  itinerary.ModeShip,
		words: regexp.MustCompile(`(?i)\b(?:ferry|ship|boat|cruise|hydrofoil)\b`),
		cjk:   []string{"フェリー", "船", "高速艇"},
	},
	{
		mode:  itinerary.ModeCar,
		words: regexp.MustCompile(`(?i)\b(?:car|drive|driving|taxi|rental car|road trip)\b`),
		cjk:   []string{"車", "レンタカー", "タクシー", "ドライブ"},
	},
}

// stayWords mean there is no inter-city move.
var stayWords = []string{"none", "stay", "n/a", "-", "なし", "滞在", "連泊"}

// ClassifyMode maps a free-text travel method to a mode. When several modes
// are mentioned the earliest mention wins; nothing recognised is ModeOther.
func ClassifyMode(method string) itinerary.TransitMode {
	best, bestAt := itinerary.ModeOther, -1
	for _, m := range modeMatchers {
		at := -1
		if loc := m.words.FindStringIndex(method); loc != nil {
			at = loc[0]
		}
		for _, kw := range m.cjk {
			if i := strings.Index(method, kw); i >= 0 && (at < 0 || i < at) {
				at = i
			}
		}
		if at >= 0 && (bestAt < 0 || at < bestAt) {
			best, bestAt = m.mode, at
		}
	}
	return best
}

// Infer synthesizes the transit for the day after prev from prev's travel method.
// It returns nil when prev names no move.
func Infer(prev, cur itinerary.OutlineDay) *itinerary.Transit {
	method := strings.TrimSpace(prev.TravelMethodToNext)
	if method == "" || isStay(method) {
		return nil
	}

	mode := ClassifyMode(method)
	return &itinerary.Transit{
		Mode:      mode,
		Departure: itinerary.Endpoint{Place: prev.OvernightLocation, Time: DefaultDepartureTime},
		Arrival:   itinerary.Endpoint{Place: cur.OvernightLocation, Time: DefaultArrivalTime},
		Duration:  Durations[mode],
		Memo:      method,
		Origin:    itinerary.TransitFromInferred,
	}
}

func isStay(method string) bool {
	lower := strings.ToLower(method)
	for _, w := range stayWords {
		if lower == w {
			return true
		}
	}
	return false
}

// Apply returns a copy of days where every day lacking transit gets one
// inferred from the outline, and user overrides replace whatever is there.
// The input slice is not modified.
func Apply(days []itinerary.DayPlan, outline *itinerary.Outline, overrides map[int]itinerary.Transit) []itinerary.DayPlan {
	out := itinerary.CloneDays(days)

	for i := range out {
		d := &out[i]

		if d.Transit == nil {
			if prev, ok := outline.Day(d.Day - 1); ok {
				cur, _ := outline.Day(d.Day)
				d.Transit = Infer(prev, cur)
			}
		}

		if o, ok := overrides[d.Day]; ok {
			t := o
			t.Origin = itinerary.TransitFromUser
			d.Transit = &t
		}
	}
	return out
}
