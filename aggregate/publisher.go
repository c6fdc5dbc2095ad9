package aggregate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/austere-albatross/eventstore"
	"github.com/austere-albatross/eventstore/internal/logger"
)

// Handler observes events dispatched by the Publisher (projections,
// integration events, side effects)
type Handler interface {
	Handle(ctx context.Context, evt eventstore.Event) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, evt eventstore.Event) error

// Handle calls f
func (f HandlerFunc) Handle(ctx context.Context, evt eventstore.Event) error { return f(ctx, evt) }

// DispatchError collects the handler failures of a single commit
type DispatchError struct {
	Errs []error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch failed: %v", errors.Join(e.Errs...))
}

// Unwrap exposes the individual handler errors to errors.Is / errors.As
func (e *DispatchError) Unwrap() []error { return e.Errs }

// NewPublisher constructs new event publisher
func NewPublisher(opts ...PublisherOption) *Publisher {
	cfg := PublisherCfg{
		Log: logger.Nop(),
	}

	for _, opt := range opts {
		cfg = opt(cfg)
	}

	return &Publisher{
		log: cfg.Log.With("component", "publisher"),
	}
}

// PublisherCfg represents publisher configuration
type PublisherCfg struct {
	Log *logger.Logger
}

// PublisherOption represents publisher configuration option
type PublisherOption func(PublisherCfg) PublisherCfg

// WithPublisherLogger sets the publisher logger
func WithPublisherLogger(l *logger.Logger) PublisherOption {
	return func(cfg PublisherCfg) PublisherCfg {
		cfg.Log = l

		return cfg
	}
}

// Publisher binds delivery of events to listeners to the aggregate's commit
type Publisher struct {
	mu       sync.RWMutex
	handlers []Handler
	log      *logger.Logger
}

// Subscribe registers handlers, they receive events in registration order
func (p *Publisher) Subscribe(handlers ...Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.handlers = append(p.handlers, handlers...)
}

// MergeObjectContext wraps the aggregate so that its Commit first delivers
// every uncommitted event to the subscribed handlers and then clears the
// events. The returned value has to be used in place of the original one.
//
// The caller must append the uncommitted events to the store before
// calling Commit, the publisher does not verify that.
func (p *Publisher) MergeObjectContext(a EventSourced) EventSourced {
	return &merged{EventSourced: a, publisher: p}
}

type merged struct {
	EventSourced

	publisher *Publisher
}

// Commit dispatches then delegates. Handler errors do not prevent the
// events from being cleared, they are returned as *DispatchError.
func (m *merged) Commit() error {
	dispatchErr := m.publisher.dispatch(context.Background(), m.EventSourced.UncommittedEvents())

	if err := m.EventSourced.Commit(); err != nil {
		return errors.Join(dispatchErr, err)
	}

	return dispatchErr
}

func (p *Publisher) dispatch(ctx context.Context, events []eventstore.Event) error {
	p.mu.RLock()
	handlers := append([]Handler(nil), p.handlers...)
	p.mu.RUnlock()

	var errs []error

	for _, evt := range events {
		for _, h := range handlers {
			if err := h.Handle(ctx, evt); err != nil {
				p.log.Error(
					"event handler failed",
					"stream_id", evt.AggregateID,
					"event_type", evt.Type,
					"event_version", evt.Version,
					"error", err,
				)

				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		return &DispatchError{Errs: errs}
	}

	return nil
}

// Recorder is a Handler that keeps every event it receives
type Recorder struct {
	mu     sync.Mutex
	events []eventstore.Event
}

// Handle records the event
func (r *Recorder) Handle(_ context.Context, evt eventstore.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, evt)

	return nil
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []eventstore.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]eventstore.Event{}, r.events...)
}
