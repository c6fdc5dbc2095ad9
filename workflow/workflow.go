// Package workflow implements the workflow aggregate, which always belongs to
// exactly one organization, and its command handlers.
package workflow

import (
	"errors"
	"fmt"
	"slices"

	"github.com/austere-albatross/eventstore"
	"github.com/austere-albatross/eventstore/aggregate"
	"github.com/austere-albatross/eventstore/organization"
	"github.com/austere-albatross/eventstore/valueobject"
)

var (
	// ErrStepNotFound is returned when renaming a step the workflow does not have
	ErrStepNotFound = errors.New("workflow step not found")

	// ErrDuplicateStep is returned when a rename would produce two steps with the same label
	ErrDuplicateStep = errors.New("workflow step already exists")
)

// Create creates a new workflow attached to the organization, starting
// with the default steps
func Create(id ID, name Name, organizationID organization.ID) (*Workflow, error) {
	if err := valueobject.NotBlank("organization id", organizationID.Value()); err != nil {
		return nil, err
	}

	var wf Workflow

	if err := wf.Rehydrate(&wf); err != nil {
		return nil, err
	}

	err := wf.Raise(id.Value(), EventTypeWorkflowCreated, WorkflowCreated{
		Name:           name.Value(),
		OrganizationID: organizationID.Value(),
		Steps:          DefaultSteps(),
	})
	if err != nil {
		return nil, err
	}

	return &wf, nil
}

// Rehydrated reconstructs a workflow from its history
func Rehydrated(events ...eventstore.Event) (*Workflow, error) {
	var wf Workflow

	if err := wf.Rehydrate(&wf, events...); err != nil {
		return nil, err
	}

	return &wf, nil
}

// Workflow represents a workflow aggregate
type Workflow struct {
	aggregate.Root

	id             ID
	name           Name
	organizationID organization.ID
	steps          []Step
}

func (w *Workflow) ID() ID                          { return w.id }
func (w *Workflow) Name() Name                      { return w.name }
func (w *Workflow) OrganizationID() organization.ID { return w.organizationID }

// Steps returns the workflow steps in order
func (w *Workflow) Steps() []Step { return slices.Clone(w.steps) }

// RenameStep relabels the step currently labelled from
func (w *Workflow) RenameStep(from, to string) error {
	step, err := NewStep(to)
	if err != nil {
		return err
	}

	if !slices.ContainsFunc(w.steps, func(s Step) bool { return s.Label == from }) {
		return fmt.Errorf("%w: %q", ErrStepNotFound, from)
	}

	if from == step.Label {
		return nil
	}

	if slices.ContainsFunc(w.steps, step.Equals) {
		return fmt.Errorf("%w: %q", ErrDuplicateStep, step.Label)
	}

	return w.Raise(w.id.Value(), EventTypeWorkflowStepRenamed, WorkflowStepRenamed{
		From: from,
		To:   step.Label,
	})
}

// OnWorkflowCreated handler
func (w *Workflow) OnWorkflowCreated(evt WorkflowCreated) error {
	orgID, err := organization.ParseID(evt.OrganizationID)
	if err != nil {
		return fmt.Errorf("workflow %s: %w", w.StreamID(), err)
	}

	w.id = ID{value: w.StreamID()}
	w.name = Name{value: evt.Name}
	w.organizationID = orgID
	w.steps = slices.Clone(evt.Steps)

	return nil
}

// OnWorkflowStepRenamed handler
func (w *Workflow) OnWorkflowStepRenamed(evt WorkflowStepRenamed) {
	for i := range w.steps {
		if w.steps[i].Label == evt.From {
			w.steps[i].Label = evt.To

			return
		}
	}
}
