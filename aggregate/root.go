package aggregate

import (
	"errors"
	"fmt"
	"reflect"
	"slices"

	"github.com/austere-albatross/eventstore"
)

var (
	// ErrMissingAggregateEventHandler is returned when aggregate event handler is missing
	// On{EventType} method
	ErrMissingAggregateEventHandler = errors.New("missing aggregate event handler")

	// ErrInvalidAggregateEventHandler is returned when On{EventType} cannot accept the event payload
	ErrInvalidAggregateEventHandler = errors.New("invalid aggregate event handler")

	// ErrAggregateRootNotAPointer is returned when supplied aggregate root is not a pointer
	ErrAggregateRootNotAPointer = errors.New("aggregate needs to be a pointer")

	// ErrAggregateRootNotRehydrated is returned when aggregate is not rehydrated (with Rehydrate method)
	ErrAggregateRootNotRehydrated = errors.New("aggregate needs to be rehydrated")

	// ErrVersionMismatch is returned when an applied event does not carry the next version in line
	ErrVersionMismatch = errors.New("event version mismatch")

	// ErrAggregateTypeMismatch is returned by Rehydrate when the history holds an event
	// the aggregate has no handler for, ie. the stream belongs to another aggregate type
	ErrAggregateTypeMismatch = errors.New("stream belongs to another aggregate type")
)

// EventSourced is the capability shared by every event sourced aggregate:
// record applied events, expose them and clear them once they are persisted
type EventSourced interface {
	// Apply records a new state transition
	Apply(evt eventstore.Event) error

	// UncommittedEvents returns the events applied since the last commit
	UncommittedEvents() []eventstore.Event

	// Commit clears the uncommitted events. It must only be called after
	// the events have been appended to the event store.
	Commit() error
}

// Root represents reusable event sourcing friendly aggregate base which is
// meant to be embedded. It keeps the version counter and the uncommitted events
// and dispatches every applied event to the embedding aggregate's handler.
type Root struct {
	streamID    string
	nextVersion int
	uncommitted []eventstore.Event

	ptr reflect.Value
}

var _ EventSourced = (*Root)(nil)

// Rehydrate binds the root to the embedding aggregate and replays its history.
// It has to be called (with no events for a brand new aggregate) before Apply.
func (r *Root) Rehydrate(aggregatePtr any, events ...eventstore.Event) error {
	r.ptr = reflect.ValueOf(aggregatePtr)

	if r.ptr.Kind() != reflect.Ptr {
		panic(ErrAggregateRootNotAPointer)
	}

	for _, evt := range events {
		if evt.Version != r.nextVersion {
			return fmt.Errorf("%w: history has version %d at position %d", ErrVersionMismatch, evt.Version, r.nextVersion)
		}

		if !r.ptr.MethodByName("On" + evt.Type).IsValid() {
			return fmt.Errorf("%w: no On%s handler on %s", ErrAggregateTypeMismatch, evt.Type, r.ptr.Type())
		}

		r.streamID = evt.AggregateID

		if err := r.mutate(evt); err != nil {
			return err
		}

		r.nextVersion++
	}

	return nil
}

// StreamID returns the id of the stream the aggregate's events belong to
func (r *Root) StreamID() string { return r.streamID }

// Version returns the committed version of the aggregate, ie. the stream
// version the store is expected to be at when the uncommitted events are appended
func (r *Root) Version() int { return r.nextVersion - len(r.uncommitted) }

// NextVersion returns the version the next applied event has to carry
func (r *Root) NextVersion() int { return r.nextVersion }

// UncommittedEvents returns a copy of the uncommitted domain events
func (r *Root) UncommittedEvents() []eventstore.Event {
	if r.uncommitted == nil {
		return []eventstore.Event{}
	}

	return slices.Clone(r.uncommitted)
}

// Commit clears the uncommitted events. Calling it again is a no-op.
func (r *Root) Commit() error {
	r.uncommitted = nil

	return nil
}

// Raise creates a new event at the next version and applies it
func (r *Root) Raise(aggregateID, eventType string, data any) error {
	return r.Apply(eventstore.NewEvent(aggregateID, eventType, r.nextVersion, data))
}

// Apply mutates aggregate (calls respective event handler) and
// appends event to the uncommitted events.
// In order for Apply to work the derived aggregate struct needs to implement
// an event handler method for all event types it produces eg:
//
// If it produces event of type: SomethingImportantHappened
// Derived aggregate should have the following method implemented:
// func (a *SomeAggregate) OnSomethingImportantHappened(payload SomethingImportantHappened)
//
// The handler may take the whole eventstore.Event instead of the payload and
// may return an error, which Apply returns without recording the event.
func (r *Root) Apply(evt eventstore.Event) error {
	if !r.ptr.IsValid() {
		panic(ErrAggregateRootNotRehydrated)
	}

	if evt.Version != r.nextVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, evt.Version, r.nextVersion)
	}

	if r.streamID != "" && evt.AggregateID != r.streamID {
		return fmt.Errorf("event for %q applied to aggregate %q", evt.AggregateID, r.streamID)
	}

	r.streamID = evt.AggregateID

	if err := r.mutate(evt); err != nil {
		return err
	}

	r.uncommitted = append(r.uncommitted, evt)
	r.nextVersion++

	return nil
}

var (
	eventType = reflect.TypeOf(eventstore.Event{})
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

func (r *Root) mutate(evt eventstore.Event) error {
	h := r.ptr.MethodByName("On" + evt.Type)

	if !h.IsValid() {
		panic(fmt.Errorf("%w: On%s", ErrMissingAggregateEventHandler, evt.Type))
	}

	if h.Type().NumIn() != 1 || h.Type().NumOut() > 1 ||
		(h.Type().NumOut() == 1 && h.Type().Out(0) != errorType) {
		panic(fmt.Errorf("%w: On%s", ErrInvalidAggregateEventHandler, evt.Type))
	}

	in := h.Type().In(0)

	var arg reflect.Value

	switch {
	case in == eventType:
		arg = reflect.ValueOf(evt)
	case evt.Data == nil:
		arg = reflect.Zero(in)
	case reflect.TypeOf(evt.Data).AssignableTo(in):
		arg = reflect.ValueOf(evt.Data)
	default:
		panic(fmt.Errorf("%w: On%s cannot accept %T", ErrInvalidAggregateEventHandler, evt.Type, evt.Data))
	}

	out := h.Call([]reflect.Value{arg})

	if len(out) == 1 && !out[0].IsNil() {
		return out[0].Interface().(error)
	}

	return nil
}
