// Package prompts builds the provider conversations for each generation
// phase. Every builder returns the full message list so callers can append
// correction turns.
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/c360studio/tripgen/itinerary"
	"github.com/c360studio/tripgen/llm"
)

const fence = "```"

// SystemPrompt frames every generation call.
func SystemPrompt() string {
	return `You are an experienced travel planner. You design realistic, geographically coherent itineraries.

Rules:
1. Respect opening hours and realistic travel times between places.
2. Never send the traveller back and forth across a city or region without reason.
3. Prefer places that appear in the reference material when it is provided, and keep their names exact.
4. Output ONLY valid JSON in the format requested. No commentary outside the JSON.`
}

// requestBrief renders the traveller's request as a bullet list.
func requestBrief(req *itinerary.Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "- Destination: %s\n", req.Destination())
	fmt.Fprintf(&sb, "- Duration: %d days\n", req.Days)
	if req.Companion != "" {
		fmt.Fprintf(&sb, "- Travelling with: %s\n", req.Companion)
	}
	if len(req.Themes) > 0 {
		fmt.Fprintf(&sb, "- Themes: %s\n", strings.Join(req.Themes, ", "))
	}
	if req.Budget != "" {
		fmt.Fprintf(&sb, "- Budget: %s\n", req.Budget)
	}
	if req.Pace != "" {
		fmt.Fprintf(&sb, "- Pace: %s\n", req.Pace)
	}
	if req.Notes != "" {
		fmt.Fprintf(&sb, "- Notes: %s\n", req.Notes)
	}
	return sb.String()
}

func referencesSection(references string) string {
	if strings.TrimSpace(references) == "" {
		return ""
	}
	return "\n## Reference Material\n\n" + references + "\n"
}

func conversation(user string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: SystemPrompt()},
		{Role: llm.RoleUser, Content: user},
	}
}

func mustJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}

// FormatCorrection asks the model to resend its previous answer as valid JSON.
func FormatCorrection(err error, shape string) string {
	return fmt.Sprintf(
		"Your response could not be parsed. Error: %s\n\n"+
			"Please respond with ONLY a valid JSON value matching this structure:\n"+
			"%sjson\n%s\n%s\n\n"+
			"Do not include any text outside the JSON.",
		err, fence, shape, fence)
}
