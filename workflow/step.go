package workflow

import "github.com/austere-albatross/eventstore/valueobject"

// Default life-cycle step labels of a new workflow
const (
	StepCommitted = "committed"
	StepInProcess = "in-process"
	StepCompleted = "completed"
)

// Step is a labelled life-cycle step of a workflow
type Step struct {
	Label string `json:"label"`
}

// NewStep validates and wraps a step label
func NewStep(label string) (Step, error) {
	if err := valueobject.NotBlank("workflow step label", label); err != nil {
		return Step{}, err
	}

	return Step{Label: label}, nil
}

// Equals reports whether both steps carry the same label
func (s Step) Equals(other Step) bool { return s.Label == other.Label }

// DefaultSteps returns the ordered steps every new workflow starts with
func DefaultSteps() []Step {
	return []Step{
		{Label: StepCommitted},
		{Label: StepInProcess},
		{Label: StepCompleted},
	}
}
