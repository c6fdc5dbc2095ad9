package eventstore

import "context"

// EventStore is an append-only, per-stream event log with optimistic concurrency.
// MemoryStore and SQLStore implement it.
type EventStore interface {
	// AppendEvents appends events to the stream in the given order. Either all
	// events are recorded and the stream version advances by len(events),
	// or nothing is written.
	//
	// ExpectVersion makes the append conditional on the stream version. Without
	// it the first event's Version must still equal the current stream version,
	// so a stale batch fails with ErrConcurrencyConflict as well.
	AppendEvents(ctx context.Context, streamID string, events []Event, opts ...AppendOpt) error

	// GetEvents returns a copy of the stream's events in version order.
	// An unknown stream yields an empty slice.
	GetEvents(ctx context.Context, streamID string, opts ...ReadOpt) ([]Event, error)
}

// AppendConfig (configure using AppendOpt)
type AppendConfig struct {
	expectedVersion int
	checkVersion    bool
}

// AppendOpt represents an AppendEvents option
type AppendOpt func(AppendConfig) AppendConfig

// ExpectVersion makes the append conditional on the stream currently being
// at version v (the number of events already appended to it)
func ExpectVersion(v int) AppendOpt {
	return func(cfg AppendConfig) AppendConfig {
		cfg.expectedVersion = v
		cfg.checkVersion = true

		return cfg
	}
}

// ReadConfig (configure using ReadOpt)
type ReadConfig struct {
	fromVersion int
}

// ReadOpt represents a GetEvents option
type ReadOpt func(ReadConfig) ReadConfig

// FromVersion skips all events with a version lower than v
func FromVersion(v int) ReadOpt {
	return func(cfg ReadConfig) ReadConfig {
		cfg.fromVersion = v

		return cfg
	}
}

func appendConfig(opts []AppendOpt) AppendConfig {
	var cfg AppendConfig

	for _, opt := range opts {
		cfg = opt(cfg)
	}

	return cfg
}

func readConfig(opts []ReadOpt) ReadConfig {
	var cfg ReadConfig

	for _, opt := range opts {
		cfg = opt(cfg)
	}

	return cfg
}

// validateAppend checks everything that does not depend on stored state
func validateAppend(stream string, events []Event, cfg AppendConfig) error {
	if len(stream) == 0 {
		return invalidAppend("stream name must be provided")
	}

	if cfg.checkVersion && cfg.expectedVersion < 0 {
		return invalidAppend("expected version cannot be less than 0")
	}

	for i, evt := range events {
		if evt.AggregateID != stream {
			return invalidAppend("event %d belongs to stream %q", i, evt.AggregateID)
		}

		if evt.Version != events[0].Version+i {
			return invalidAppend("event versions must be contiguous")
		}
	}

	return nil
}

// verifyVersion compares the current stream version against the expected
// version and against the version carried by the first event
func verifyVersion(stream string, current int, events []Event, cfg AppendConfig) error {
	if cfg.checkVersion && cfg.expectedVersion != current {
		return conflict(stream, cfg.expectedVersion, current)
	}

	if events[0].Version != current {
		return conflict(stream, events[0].Version, current)
	}

	return nil
}
