// Package model resolves generation tasks to configured provider endpoints and
// selects the model tier and sampling temperature for each generation phase.
package model

// Task is a logical unit of provider work. Tasks double as generation phases
// for model selection.
type Task string

const (
	// TaskOutline produces the whole-trip skeleton.
	TaskOutline Task = "outline"

	// TaskDetails produces day plans for one chunk.
	TaskDetails Task = "details"

	// TaskReview critiques an artifact produced by another provider.
	TaskReview Task = "review"

	// TaskModify rewrites an existing itinerary (self-correction, chat edits).
	TaskModify Task = "modify"
)

// Tasks lists every task in pipeline order.
var Tasks = []Task{TaskOutline, TaskDetails, TaskReview, TaskModify}

// IsValid checks if a task string is a known task.
func (t Task) IsValid() bool {
	switch t {
	case TaskOutline, TaskDetails, TaskReview, TaskModify:
		return true
	}
	return false
}

// String returns the string representation of the task.
func (t Task) String() string {
	return string(t)
}

// ParseTask converts a string to a Task, returning empty for invalid values.
func ParseTask(s string) Task {
	t := Task(s)
	if t.IsValid() {
		return t
	}
	return ""
}

// Tier is a cost/quality level of model access.
type Tier string

const (
	TierStandard Tier = "standard"
	TierPremium  Tier = "premium"
)

// IsValid checks if a tier string is a known tier.
func (t Tier) IsValid() bool {
	return t == TierStandard || t == TierPremium
}
