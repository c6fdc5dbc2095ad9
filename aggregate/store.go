package aggregate

import (
	"context"
	"errors"

	"github.com/austere-albatross/eventstore"
)

// ErrAggregateNotFound is returned when the aggregate stream has no events
var ErrAggregateNotFound = errors.New("aggregate not found")

// Rooter is implemented by aggregates embedding Root
type Rooter interface {
	EventSourced

	StreamID() string
	Version() int
	Rehydrate(aggregatePtr any, events ...eventstore.Event) error
}

// NewStore constructs new event sourced aggregate store
func NewStore[T Rooter](eventStore eventstore.EventStore, opts ...StoreOption) *Store[T] {
	var cfg StoreCfg

	for _, opt := range opts {
		cfg = opt(cfg)
	}

	return &Store[T]{
		eventStore: eventStore,
		publisher:  cfg.Publisher,
	}
}

// StoreCfg represents aggregate store configuration
type StoreCfg struct {
	Publisher *Publisher
}

// StoreOption represents aggregate store configuration option
type StoreOption func(StoreCfg) StoreCfg

// WithPublisher makes the store dispatch saved events through the publisher
func WithPublisher(p *Publisher) StoreOption {
	return func(cfg StoreCfg) StoreCfg {
		cfg.Publisher = p

		return cfg
	}
}

// Store represents event sourced aggregate store
type Store[T Rooter] struct {
	eventStore eventstore.EventStore
	publisher  *Publisher
}

// Save appends the aggregate's uncommitted events expecting the stream to be
// at the aggregate's committed version and commits the aggregate on success
func (s *Store[T]) Save(ctx context.Context, aggregate T) error {
	var a EventSourced = aggregate

	if s.publisher != nil {
		a = s.publisher.MergeObjectContext(aggregate)
	}

	events := a.UncommittedEvents()

	if len(events) == 0 {
		return nil
	}

	err := s.eventStore.AppendEvents(
		ctx,
		aggregate.StreamID(),
		events,
		eventstore.ExpectVersion(aggregate.Version()),
	)
	if err != nil {
		return err
	}

	return a.Commit()
}

// ByID reads the aggregate's stream and rehydrates the provided aggregate
func (s *Store[T]) ByID(ctx context.Context, id string, aggregate T) error {
	events, err := s.eventStore.GetEvents(ctx, id)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		return ErrAggregateNotFound
	}

	return aggregate.Rehydrate(aggregate, events...)
}
