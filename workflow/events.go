package workflow

import "slices"

const (
	// EventTypeWorkflowCreated is the type of the event starting a workflow stream
	EventTypeWorkflowCreated = "WorkflowCreated"

	// EventTypeWorkflowStepRenamed is the type of the event relabelling a step
	EventTypeWorkflowStepRenamed = "WorkflowStepRenamed"
)

// WorkflowCreated is the payload of a WorkflowCreated event
type WorkflowCreated struct {
	Name           string `json:"name"`
	OrganizationID string `json:"organizationId"`
	Steps          []Step `json:"steps"`
}

// Clone copies the steps so that the payload can be handed out safely
func (e WorkflowCreated) Clone() any {
	e.Steps = slices.Clone(e.Steps)

	return e
}

// WorkflowStepRenamed is the payload of a WorkflowStepRenamed event
type WorkflowStepRenamed struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Payloads lists every payload type of this package, for encoder registration
func Payloads() []any {
	return []any{WorkflowCreated{}, WorkflowStepRenamed{}}
}
