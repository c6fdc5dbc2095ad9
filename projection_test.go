package eventstore

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type projected struct {
	N int
}

// streamer replays evts after the requested offset, reports EOF and then
// ends the subscription as if the client closed it
type streamer struct {
	evts []StoredEvent
	err  error

	mu      sync.Mutex
	offsets []uint64
}

func (s *streamer) SubscribeAll(_ context.Context, opts ...SubAllOpt) (Subscription, error) {
	if s.err != nil {
		return Subscription{}, s.err
	}

	var cfg SubAllConfig

	for _, opt := range opts {
		cfg = opt(cfg)
	}

	s.mu.Lock()
	s.offsets = append(s.offsets, cfg.offset)
	s.mu.Unlock()

	sub := Subscription{
		Err:       make(chan error, 1),
		EventData: make(chan StoredEvent),
	}

	go func() {
		for _, evt := range s.evts {
			if evt.Sequence <= cfg.offset {
				continue
			}

			sub.EventData <- evt
		}

		sub.Err <- io.EOF
		sub.Err <- ErrSubscriptionClosedByClient
	}()

	return sub, nil
}

func (s *streamer) subscribedFrom() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]uint64(nil), s.offsets...)
}

func storedEvents(n int) []StoredEvent {
	out := make([]StoredEvent, n)

	for i := range out {
		out[i] = StoredEvent{
			Event:    NewEvent("stream-1", "Projected", i, projected{N: i}),
			Sequence: uint64(i + 1),
		}
	}

	return out
}

func TestShouldProjectEventsToProjections(t *testing.T) {
	s := streamer{evts: storedEvents(3)}

	p := NewProjector(&s)

	var mu sync.Mutex

	got := map[string][]int{}

	record := func(name string) Projection {
		return func(evt StoredEvent) error {
			mu.Lock()
			defer mu.Unlock()

			got[name] = append(got[name], evt.Data.(projected).N)

			return nil
		}
	}

	p.Add(record("one"), record("two"))

	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, map[string][]int{
		"one": {0, 1, 2},
		"two": {0, 1, 2},
	}, got)
}

func TestShouldRetryAndResumeFromLastOffset(t *testing.T) {
	s := streamer{evts: storedEvents(3)}

	p := NewProjector(&s, WithRetryDelay(time.Millisecond))

	var (
		got    []int
		failed bool
	)

	p.Add(func(evt StoredEvent) error {
		n := evt.Data.(projected).N

		if n == 1 && !failed {
			failed = true

			return errors.New("some transient error")
		}

		got = append(got, n)

		return nil
	})

	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, []int{0, 1, 2}, got)
	assert.Equal(t, []uint64{0, 1}, s.subscribedFrom())
}

func TestShouldPassSubscriptionOptions(t *testing.T) {
	var seen SubAllConfig

	s := streamFunc(func(_ context.Context, opts ...SubAllOpt) (Subscription, error) {
		for _, opt := range opts {
			seen = opt(seen)
		}

		return Subscription{}, errors.New("stop")
	})

	p := NewProjector(s, WithSubscriptionOpts(WithPollInterval(time.Second), WithBatchSize(7)))

	p.Add(func(StoredEvent) error { return nil })

	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, time.Second, seen.pollInterval)
	assert.Equal(t, 7, seen.batchSize)
}

type streamFunc func(ctx context.Context, opts ...SubAllOpt) (Subscription, error)

func (f streamFunc) SubscribeAll(ctx context.Context, opts ...SubAllOpt) (Subscription, error) {
	return f(ctx, opts...)
}

func TestShouldStopIfSubscribeFails(t *testing.T) {
	s := streamer{err: errors.New("some terminal error")}

	p := NewProjector(&s)

	p.Add(func(StoredEvent) error { return nil })

	assert.NoError(t, p.Run(context.Background()))
}

func TestShouldExitIfContextIsCanceled(t *testing.T) {
	s := streamFunc(func(context.Context, ...SubAllOpt) (Subscription, error) {
		return Subscription{
			Err:       make(chan error),
			EventData: make(chan StoredEvent),
		}, nil
	})

	p := NewProjector(s)

	p.Add(func(StoredEvent) error { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan struct{})

	go func() {
		_ = p.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("projector did not stop on context cancel")
	}
}

func TestShouldProjectFromSQLStore(t *testing.T) {
	es, err := New(
		NewJSONEncoder(projected{}),
		WithSQLiteDB("file:projector?mode=memory&cache=shared"),
	)
	require.NoError(t, err)

	defer es.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	evts := []Event{
		NewEvent("stream-1", "Projected", 0, projected{N: 10}),
		NewEvent("stream-1", "Projected", 1, projected{N: 20}),
	}

	require.NoError(t, es.AppendEvents(ctx, "stream-1", evts))

	got := make(chan int, len(evts))

	p := NewProjector(es, WithSubscriptionOpts(WithPollInterval(time.Millisecond)))

	p.Add(func(evt StoredEvent) error {
		got <- evt.Data.(projected).N

		return nil
	})

	go func() { _ = p.Run(ctx) }()

	for _, want := range []int{10, 20} {
		select {
		case n := <-got:
			assert.Equal(t, want, n)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for projection")
		}
	}
}
