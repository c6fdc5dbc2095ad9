package workflow

import (
	"context"

	"github.com/austere-albatross/eventstore"
	"github.com/austere-albatross/eventstore/aggregate"
	"github.com/austere-albatross/eventstore/organization"
)

// CreateCommand requests a new workflow within an organization
type CreateCommand struct {
	Name           string
	OrganizationID string
}

// NewCreateHandler constructs the CreateCommand handler
func NewCreateHandler(store eventstore.EventStore, publisher *aggregate.Publisher) *CreateHandler {
	return &CreateHandler{store: store, publisher: publisher}
}

// CreateHandler creates workflows
type CreateHandler struct {
	store     eventstore.EventStore
	publisher *aggregate.Publisher
}

// Handle creates the workflow and returns its id
func (h *CreateHandler) Handle(ctx context.Context, cmd CreateCommand) (ID, error) {
	name, err := NewName(cmd.Name)
	if err != nil {
		return ID{}, err
	}

	orgID, err := organization.ParseID(cmd.OrganizationID)
	if err != nil {
		return ID{}, err
	}

	id := NewID()

	wf, err := Create(id, name, orgID)
	if err != nil {
		return ID{}, err
	}

	tracked := h.publisher.MergeObjectContext(wf)

	err = h.store.AppendEvents(ctx, id.Value(), tracked.UncommittedEvents())
	if err != nil {
		return ID{}, err
	}

	return id, tracked.Commit()
}

// RenameStepCommand requests relabelling a workflow step
type RenameStepCommand struct {
	WorkflowID string
	From       string
	To         string
}

// NewRenameStepHandler constructs the RenameStepCommand handler
func NewRenameStepHandler(store *aggregate.Store[*Workflow], opts ...aggregate.ExecOption) *RenameStepHandler {
	return &RenameStepHandler{
		exec: aggregate.NewExecutor(store, func() *Workflow { return &Workflow{} }, opts...),
	}
}

// RenameStepHandler renames steps of existing workflows. The workflow is
// re-read and the rename retried when another writer got there first.
type RenameStepHandler struct {
	exec aggregate.Executor[*Workflow]
}

// Handle renames the step
func (h *RenameStepHandler) Handle(ctx context.Context, cmd RenameStepCommand) error {
	id, err := ParseID(cmd.WorkflowID)
	if err != nil {
		return err
	}

	return h.exec(ctx, id.Value(), func(_ context.Context, wf *Workflow) error {
		return wf.RenameStep(cmd.From, cmd.To)
	})
}
