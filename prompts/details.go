package prompts

import (
	"fmt"
	"strings"

	"github.com/c360studio/tripgen/itinerary"
	"github.com/c360studio/tripgen/llm"
)

// DaysShape is the JSON structure expected from the details phase.
const DaysShape = `{
  "days": [
    {
      "day": 1,
      "title": "short title",
      "activities": [
        {"time": "09:00", "name": "exact place name", "description": "what to do there", "source": "reference number if taken from the reference material"}
      ],
      "transit": {
        "mode": "flight | train | bus | ship | car | other",
        "departure": {"place": "string", "time": "HH:MM"},
        "arrival": {"place": "string", "time": "HH:MM"},
        "duration": "e.g. 2h30m",
        "memo": "optional note"
      }
    }
  ]
}`

// DetailsParams are the inputs of one chunk's details request.
type DetailsParams struct {
	Request *itinerary.Request
	Outline *itinerary.Outline
	Chunk   itinerary.Chunk

	// OutlineDays is the outline slice covering Chunk.
	OutlineDays []itinerary.OutlineDay

	// StartingLocation is where the traveller wakes up on Chunk.Start.
	StartingLocation string

	References string
}

// DayDetails builds the request for one chunk of day plans.
func DayDetails(p DetailsParams) []llm.Message {
	var skeleton strings.Builder
	for _, d := range p.OutlineDays {
		fmt.Fprintf(&skeleton, "- Day %d: overnight in %s", d.Day, orUnknown(d.OvernightLocation))
		if d.TravelMethodToNext != "" {
			fmt.Fprintf(&skeleton, ", then travel by %s", d.TravelMethodToNext)
		}
		if d.Summary != "" {
			fmt.Fprintf(&skeleton, " (%s)", d.Summary)
		}
		skeleton.WriteString("\n")
	}

	var overview string
	if p.Outline != nil && p.Outline.Description != "" {
		overview = "\n## Trip Overview\n\n" + p.Outline.Description + "\n"
	}

	var start string
	if p.StartingLocation != "" {
		start = fmt.Sprintf("\nThe traveller starts day %d in %s. The first activity must be reachable from there.\n",
			p.Chunk.Start, p.StartingLocation)
	}

	user := fmt.Sprintf(`Plan days %d to %d of the trip in detail.

## Request

%s%s
## Outline For These Days

%s%s%s
## Output Format (REQUIRED)

%sjson
%s
%s

## Rules

1. Return exactly %d day objects, numbered %d..%d.
2. Each day has at least three activities in chronological order.
3. Include "transit" only on days with an inter-city move.
`, p.Chunk.Start, p.Chunk.End,
		requestBrief(p.Request), overview,
		skeleton.String(), start, referencesSection(p.References),
		fence, DaysShape, fence,
		p.Chunk.Len(), p.Chunk.Start, p.Chunk.End)

	return conversation(user)
}

func orUnknown(s string) string {
	if s == "" {
		return "(not decided)"
	}
	return s
}
