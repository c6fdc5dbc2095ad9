package eventstore

import (
	"context"
	"sync"

	"github.com/austere-albatross/eventstore/internal/logger"
)

// NewMemoryStore constructs an in-memory event store. The stream map is owned
// by the returned value, so every store instance has its own independent log.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	cfg := MemoryCfg{
		log: logger.Nop(),
	}

	for _, opt := range opts {
		cfg = opt(cfg)
	}

	return &MemoryStore{
		streams: make(map[string]*memoryStream),
		log:     cfg.log.With("store", "memory"),
	}
}

// MemoryCfg represents memory store configuration
type MemoryCfg struct {
	log *logger.Logger
}

// MemoryOption represents memory store configuration option
type MemoryOption func(MemoryCfg) MemoryCfg

// WithMemoryLogger sets the memory store logger
func WithMemoryLogger(l *logger.Logger) MemoryOption {
	return func(cfg MemoryCfg) MemoryCfg {
		cfg.log = l

		return cfg
	}
}

// MemoryStore is an EventStore keeping all streams in memory.
// Appends to the same stream are serialized by a per-stream lock,
// appends to different streams proceed independently.
type MemoryStore struct {
	mu      sync.Mutex
	streams map[string]*memoryStream
	log     *logger.Logger
}

type memoryStream struct {
	mu     sync.Mutex
	events []Event
}

var _ EventStore = (*MemoryStore)(nil)

func (s *MemoryStore) stream(id string) *memoryStream {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streams[id]
	if !ok {
		st = &memoryStream{}
		s.streams[id] = st
	}

	return st
}

func (s *MemoryStore) lookup(id string) (*memoryStream, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.streams[id]

	return st, ok
}

// AppendEvents appends events to the stream. See EventStore.
func (s *MemoryStore) AppendEvents(ctx context.Context, stream string, events []Event, opts ...AppendOpt) error {
	cfg := appendConfig(opts)

	if err := validateAppend(stream, events, cfg); err != nil {
		return err
	}

	if len(events) == 0 {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	st := s.stream(stream)

	st.mu.Lock()
	defer st.mu.Unlock()

	current := len(st.events)

	if err := verifyVersion(stream, current, events, cfg); err != nil {
		s.log.Warn("concurrency conflict", "stream_id", stream, "current_version", current, "error", err)

		return err
	}

	appended := make([]Event, len(st.events), len(st.events)+len(events))
	copy(appended, st.events)

	for _, evt := range events {
		appended = append(appended, evt.clone())
	}

	st.events = appended

	s.log.Debug("append", "stream_id", stream, "num_events", len(events), "version", len(appended))

	return nil
}

// GetEvents returns the stream's events. See EventStore.
func (s *MemoryStore) GetEvents(ctx context.Context, stream string, opts ...ReadOpt) ([]Event, error) {
	cfg := readConfig(opts)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st, ok := s.lookup(stream)
	if !ok {
		return []Event{}, nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	out := make([]Event, 0, len(st.events))

	for _, evt := range st.events {
		if evt.Version < cfg.fromVersion {
			continue
		}

		out = append(out, evt.clone())
	}

	return out, nil
}

// Version returns the current version of the stream (0 for unknown streams)
func (s *MemoryStore) Version(stream string) int {
	st, ok := s.lookup(stream)
	if !ok {
		return 0
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	return len(st.events)
}
