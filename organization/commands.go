package organization

import (
	"context"

	"github.com/austere-albatross/eventstore"
	"github.com/austere-albatross/eventstore/aggregate"
)

// CreateCommand requests a new organization
type CreateCommand struct {
	Name string
}

// NewCreateHandler constructs the CreateCommand handler
func NewCreateHandler(store eventstore.EventStore, publisher *aggregate.Publisher) *CreateHandler {
	return &CreateHandler{store: store, publisher: publisher}
}

// CreateHandler creates organizations without a uniqueness check
type CreateHandler struct {
	store     eventstore.EventStore
	publisher *aggregate.Publisher
}

// Handle creates the organization and returns its id
func (h *CreateHandler) Handle(ctx context.Context, cmd CreateCommand) (ID, error) {
	name, err := NewName(cmd.Name)
	if err != nil {
		return ID{}, err
	}

	id := NewID()

	org, err := Create(id, name)
	if err != nil {
		return ID{}, err
	}

	return id, persist(ctx, h.store, h.publisher, org)
}

// RegisterCommand requests a new organization with a unique name
type RegisterCommand struct {
	Name string
}

// NewRegisterHandler constructs the RegisterCommand handler
func NewRegisterHandler(
	store eventstore.EventStore,
	publisher *aggregate.Publisher,
	uniqueness *UniquenessService) *RegisterHandler {

	return &RegisterHandler{
		store:      store,
		publisher:  publisher,
		uniqueness: uniqueness,
	}
}

// RegisterHandler creates organizations after checking that the name is not taken
type RegisterHandler struct {
	store      eventstore.EventStore
	publisher  *aggregate.Publisher
	uniqueness *UniquenessService
}

// Handle registers the organization and returns its id
func (h *RegisterHandler) Handle(ctx context.Context, cmd RegisterCommand) (ID, error) {
	name, err := NewName(cmd.Name)
	if err != nil {
		return ID{}, err
	}

	if err := h.uniqueness.EnsureNameIsUnique(ctx, name); err != nil {
		return ID{}, err
	}

	id := NewID()

	org, err := Register(id, name)
	if err != nil {
		return ID{}, err
	}

	return id, persist(ctx, h.store, h.publisher, org)
}

// persist appends the new stream and commits through the publisher once
// the append succeeded. No expected version is passed, the creation event
// already carries version 0.
func persist(ctx context.Context, store eventstore.EventStore, publisher *aggregate.Publisher, org *Organization) error {
	tracked := publisher.MergeObjectContext(org)

	err := store.AppendEvents(
		ctx,
		org.ID().Value(),
		tracked.UncommittedEvents(),
	)
	if err != nil {
		return err
	}

	return tracked.Commit()
}
