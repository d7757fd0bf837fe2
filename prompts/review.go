package prompts

import (
	"fmt"
	"strings"

	"github.com/c360studio/tripgen/itinerary"
	"github.com/c360studio/tripgen/llm"
)

// ReviewShape is the JSON structure expected from a cross-review.
const ReviewShape = `{
  "overall_score": 0,
  "issues": [
    {
      "day": 1,
      "category": "geographic | timing | quality | accuracy | diversity",
      "severity": "critical | major | minor",
      "description": "what is wrong",
      "suggestion": "how to fix it"
    }
  ],
  "strengths": ["string"]
}`

func reviewerSystemPrompt() string {
	return `You are a strict travel itinerary reviewer. You check plans written by another planner.

Score 0-100. Mark an issue critical only when the plan is impossible or unsafe to follow
(for example a day that crosses the country twice, or a closed venue as the main activity).
Output ONLY valid JSON.`
}

// Review asks the reviewer to assess an artifact (an outline or day plans).
func Review(req *itinerary.Request, artifactKind string, artifact any) []llm.Message {
	user := fmt.Sprintf(`Review this %s for the request below.

## Request

%s
## %s

%sjson
%s
%s

## Output Format (REQUIRED)

%sjson
%s
%s
`, artifactKind, requestBrief(req), titleCase(artifactKind), fence, mustJSON(artifact), fence, fence, ReviewShape, fence)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: reviewerSystemPrompt()},
		{Role: llm.RoleUser, Content: user},
	}
}

// WithReviewFeedback appends the reviewer's issues as extra constraints to a
// generation conversation, for the single corrective pass.
func WithReviewFeedback(messages []llm.Message, review *itinerary.ReviewResult) []llm.Message {
	var sb strings.Builder
	sb.WriteString("A reviewer found problems with a previous draft of this plan. Produce a new version that fixes them.\n\n## Issues To Fix\n\n")
	for _, is := range review.Issues {
		sb.WriteString("- [")
		sb.WriteString(is.Severity)
		sb.WriteString("/")
		sb.WriteString(is.Category)
		sb.WriteString("] ")
		if is.Day != nil {
			fmt.Fprintf(&sb, "Day %d: ", *is.Day)
		}
		sb.WriteString(is.Description)
		if is.Suggestion != "" {
			sb.WriteString(" Suggestion: ")
			sb.WriteString(is.Suggestion)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nKeep everything the reviewer did not flag. Use the same output format as before.")

	out := append([]llm.Message(nil), messages...)
	return append(out, llm.Message{Role: llm.RoleUser, Content: sb.String()})
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
