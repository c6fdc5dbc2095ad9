package aggregate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/austere-albatross/eventstore"
	"github.com/austere-albatross/eventstore/aggregate"
)

// eventStore wraps a memory store, recording appends and optionally
// failing the first conflicts appends with a concurrency conflict
type eventStore struct {
	*eventstore.MemoryStore

	appends   int
	conflicts int
	wantErr   error
}

func newEventStore() *eventStore {
	return &eventStore{MemoryStore: eventstore.NewMemoryStore()}
}

func (e *eventStore) AppendEvents(ctx context.Context, stream string, evts []eventstore.Event, opts ...eventstore.AppendOpt) error {
	e.appends++

	if e.wantErr != nil {
		return e.wantErr
	}

	if e.conflicts > 0 {
		e.conflicts--

		// another writer got there first
		err := e.MemoryStore.AppendEvents(ctx, stream, []eventstore.Event{
			eventstore.NewEvent(stream, "nameUpdated", e.Version(stream), nameUpdated{NewName: "concurrent"}),
		})
		if err != nil {
			return err
		}
	}

	return e.MemoryStore.AppendEvents(ctx, stream, evts, opts...)
}

func TestShould_Save_Aggregate_Events(t *testing.T) {
	es := newEventStore()
	store := aggregate.NewStore[*testAggregate](es)
	ctx := context.Background()

	ta := newTestAggregate(t, "agg-1")

	require.NoError(t, store.Save(ctx, ta))

	assert.Empty(t, ta.UncommittedEvents())
	assert.Equal(t, 1, ta.Version())

	require.NoError(t, ta.Raise("agg-1", "nameUpdated", nameUpdated{NewName: "jane"}))
	require.NoError(t, store.Save(ctx, ta))

	got, err := es.GetEvents(ctx, "agg-1")

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, nameUpdated{NewName: "jane"}, got[1].Data)
}

func TestShould_Not_Append_Without_Events(t *testing.T) {
	es := newEventStore()
	store := aggregate.NewStore[*testAggregate](es)

	ta := newTestAggregate(t, "agg-1")
	require.NoError(t, ta.Commit())

	require.NoError(t, store.Save(context.Background(), ta))

	assert.Equal(t, 0, es.appends)
}

func TestShould_Keep_Events_When_Append_Fails(t *testing.T) {
	es := newEventStore()
	es.wantErr = errors.New("store unavailable")

	var rec aggregate.Recorder

	p := aggregate.NewPublisher()
	p.Subscribe(&rec)

	store := aggregate.NewStore[*testAggregate](es, aggregate.WithPublisher(p))

	ta := newTestAggregate(t, "agg-1")

	err := store.Save(context.Background(), ta)

	assert.ErrorIs(t, err, es.wantErr)
	assert.Len(t, ta.UncommittedEvents(), 1)
	assert.Empty(t, rec.Events())
}

func TestShould_Detect_Stale_Aggregate(t *testing.T) {
	es := newEventStore()
	store := aggregate.NewStore[*testAggregate](es)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, newTestAggregate(t, "agg-1")))

	var first, second testAggregate

	require.NoError(t, store.ByID(ctx, "agg-1", &first))
	require.NoError(t, store.ByID(ctx, "agg-1", &second))

	require.NoError(t, first.Raise("agg-1", "nameUpdated", nameUpdated{NewName: "first"}))
	require.NoError(t, second.Raise("agg-1", "nameUpdated", nameUpdated{NewName: "second"}))

	require.NoError(t, store.Save(ctx, &first))

	err := store.Save(ctx, &second)

	assert.ErrorIs(t, err, eventstore.ErrConcurrencyConflict)
	assert.Len(t, second.UncommittedEvents(), 1)
}

func TestShould_Publish_Saved_Events(t *testing.T) {
	var rec aggregate.Recorder

	p := aggregate.NewPublisher()
	p.Subscribe(&rec)

	store := aggregate.NewStore[*testAggregate](newEventStore(), aggregate.WithPublisher(p))

	require.NoError(t, store.Save(context.Background(), newTestAggregate(t, "agg-1")))

	require.Len(t, rec.Events(), 1)
	assert.Equal(t, "created", rec.Events()[0].Type)
}

func TestShould_Load_Aggregate(t *testing.T) {
	es := newEventStore()
	store := aggregate.NewStore[*testAggregate](es)
	ctx := context.Background()

	ta := newTestAggregate(t, "agg-1")
	require.NoError(t, ta.Raise("agg-1", "nameUpdated", nameUpdated{NewName: "jane"}))
	require.NoError(t, store.Save(ctx, ta))

	var loaded testAggregate

	require.NoError(t, store.ByID(ctx, "agg-1", &loaded))

	assert.Equal(t, "agg-1", loaded.id)
	assert.Equal(t, "jane", loaded.name)
	assert.Equal(t, 2, loaded.Version())
	assert.Empty(t, loaded.UncommittedEvents())
}

func TestShould_Return_Not_Found(t *testing.T) {
	store := aggregate.NewStore[*testAggregate](newEventStore())

	var ta testAggregate

	err := store.ByID(context.Background(), "nope", &ta)

	assert.ErrorIs(t, err, aggregate.ErrAggregateNotFound)
}
