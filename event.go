package eventstore

import (
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents an immutable domain event recorded in a stream
type Event struct {
	// AggregateID identifies the stream the event belongs to
	AggregateID string

	// Type is the event discriminator (eg. OrgCreated)
	Type string

	// Version is the zero-based position of the event within its stream
	Version int

	OccurredOn time.Time

	// Data is the payload, its shape depends on Type
	Data any

	// Optional
	ID                 string
	CausationEventID   string
	CorrelationEventID string
	Meta               map[string]string
}

// NewEvent constructs an event stamped with a new id and the current time.
// Timestamps never go backwards within a process.
func NewEvent(aggregateID, eventType string, version int, data any) Event {
	return Event{
		ID:          newEventID(),
		AggregateID: aggregateID,
		Type:        eventType,
		Version:     version,
		OccurredOn:  clock.now(),
		Data:        data,
	}
}

// Cloner is implemented by payloads holding reference types (slices, maps,
// pointers). Stores call Clone on the way in and out so that callers never
// share a payload with the stored log.
type Cloner interface {
	Clone() any
}

// clone returns a copy that shares no mutable state with evt
func (evt Event) clone() Event {
	if evt.Meta != nil {
		evt.Meta = maps.Clone(evt.Meta)
	}

	if c, ok := evt.Data.(Cloner); ok {
		evt.Data = c.Clone()
	}

	return evt
}

// StoredEvent is an event as read back from the global log,
// carrying its position across all streams
type StoredEvent struct {
	Event

	// Sequence is the global position of the event in the store
	Sequence uint64
}

func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

var clock monotonicClock

type monotonicClock struct {
	mu   sync.Mutex
	last time.Time
}

func (c *monotonicClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()

	if now.Before(c.last) {
		return c.last
	}

	c.last = now

	return now
}
