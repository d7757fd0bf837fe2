package prompts

import (
	"fmt"
	"strings"

	"github.com/c360studio/tripgen/itinerary"
	"github.com/c360studio/tripgen/llm"
)

// ItineraryShape is the JSON structure expected from the modify phase.
const ItineraryShape = `{
  "destination": "string",
  "description": "string",
  "days": [ /* same day objects as before */ ]
}`

// Modify builds a refinement conversation: the current itinerary is the
// assistant's previous answer and history carries the user's requests.
func Modify(current *itinerary.Itinerary, history []itinerary.ChatMessage) []llm.Message {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: SystemPrompt()},
		{Role: llm.RoleUser, Content: "Here is the current itinerary. I will ask for changes."},
		{Role: llm.RoleAssistant, Content: mustJSON(current)},
	}
	for _, m := range history {
		role := llm.RoleUser
		if m.Role == llm.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: m.Content})
	}
	messages = append(messages, llm.Message{
		Role: llm.RoleUser,
		Content: fmt.Sprintf("Apply the requested changes and return the COMPLETE updated itinerary.\n\n%sjson\n%s\n%s",
			fence, ItineraryShape, fence),
	})
	return messages
}

// SelfCorrection asks for replacements of activities that failed validation.
// Only the listed activities may change.
func SelfCorrection(current *itinerary.Itinerary, failed []itinerary.FailedSpot, references string) []llm.Message {
	var sb strings.Builder
	sb.WriteString("Some places in the itinerary could not be verified. Replace ONLY these activities with real, verifiable places nearby that fit the same time slot:\n\n")
	for _, f := range failed {
		fmt.Fprintf(&sb, "- Day %d, activity #%d \"%s\": %s", f.Day, f.ActivityIndex+1, f.ActivityName, f.Reason)
		if f.SuggestedReplacement != "" {
			fmt.Fprintf(&sb, " (suggested replacement: %s)", f.SuggestedReplacement)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nKeep every other activity, time and transit exactly as it is.\n")
	sb.WriteString(referencesSection(references))

	return Modify(current, []itinerary.ChatMessage{{Role: llm.RoleUser, Content: sb.String()}})
}
