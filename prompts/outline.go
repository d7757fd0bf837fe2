package prompts

import (
	"fmt"

	"github.com/c360studio/tripgen/itinerary"
	"github.com/c360studio/tripgen/llm"
)

// OutlineShape is the JSON structure expected from the outline phase.
const OutlineShape = `{
  "destination": "string",
  "description": "one paragraph overview of the trip",
  "days": [
    {
      "day": 1,
      "overnight_location": "city or area where the traveller sleeps",
      "travel_method_to_next": "how the traveller reaches the next day's area, empty if staying",
      "summary": "one line theme of the day"
    }
  ]
}`

// Outline builds the whole-trip skeleton request.
func Outline(req *itinerary.Request, references string) []llm.Message {
	user := fmt.Sprintf(`Create the outline of a %d-day trip.

## Request

%s%s
## Output Format (REQUIRED)

%sjson
%s
%s

## Rules

1. Return exactly %d days numbered 1..%d.
2. Visit multi-city destinations in a sensible geographic order.
3. Leave travel_method_to_next empty on days where the next night is spent in the same place.
`, req.Days, requestBrief(req), referencesSection(references), fence, OutlineShape, fence, req.Days, req.Days)

	return conversation(user)
}
