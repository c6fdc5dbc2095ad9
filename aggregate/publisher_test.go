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

func TestMergedCommitDispatchesThenClears(t *testing.T) {
	ta := newTestAggregate(t, "agg-1")

	require.NoError(t, ta.Raise("agg-1", "nameUpdated", nameUpdated{NewName: "jane"}))

	var (
		rec     aggregate.Recorder
		cleared []bool
	)

	p := aggregate.NewPublisher()

	p.Subscribe(&rec, aggregate.HandlerFunc(func(context.Context, eventstore.Event) error {
		// the aggregate still holds its events while handlers run
		cleared = append(cleared, len(ta.UncommittedEvents()) == 0)

		return nil
	}))

	merged := p.MergeObjectContext(ta)

	assert.Len(t, merged.UncommittedEvents(), 2)

	require.NoError(t, merged.Commit())

	got := rec.Events()

	require.Len(t, got, 2)
	assert.Equal(t, "created", got[0].Type)
	assert.Equal(t, "nameUpdated", got[1].Type)
	assert.Equal(t, []bool{false, false}, cleared)

	assert.Empty(t, ta.UncommittedEvents())
	assert.Empty(t, merged.UncommittedEvents())
}

func TestMergedApplyReachesAggregate(t *testing.T) {
	ta := newTestAggregate(t, "agg-1")

	merged := aggregate.NewPublisher().MergeObjectContext(ta)

	require.NoError(t, merged.Apply(eventstore.NewEvent("agg-1", "nameUpdated", 1, nameUpdated{NewName: "jane"})))

	assert.Equal(t, "jane", ta.name)
	assert.Len(t, ta.UncommittedEvents(), 2)
}

func TestSecondCommitDispatchesNothing(t *testing.T) {
	ta := newTestAggregate(t, "agg-1")

	var rec aggregate.Recorder

	p := aggregate.NewPublisher()
	p.Subscribe(&rec)

	merged := p.MergeObjectContext(ta)

	require.NoError(t, merged.Commit())
	require.NoError(t, merged.Commit())

	assert.Len(t, rec.Events(), 1)
}

func TestHandlersRunInRegistrationOrder(t *testing.T) {
	ta := newTestAggregate(t, "agg-1")

	var order []string

	handler := func(name string) aggregate.Handler {
		return aggregate.HandlerFunc(func(context.Context, eventstore.Event) error {
			order = append(order, name)

			return nil
		})
	}

	p := aggregate.NewPublisher()
	p.Subscribe(handler("first"))
	p.Subscribe(handler("second"))

	require.NoError(t, p.MergeObjectContext(ta).Commit())

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestHandlerErrorsAreCollectedAndEventsCleared(t *testing.T) {
	ta := newTestAggregate(t, "agg-1")

	errBoom := errors.New("boom")

	var rec aggregate.Recorder

	p := aggregate.NewPublisher()
	p.Subscribe(
		aggregate.HandlerFunc(func(context.Context, eventstore.Event) error { return errBoom }),
		&rec,
	)

	err := p.MergeObjectContext(ta).Commit()

	var dispatchErr *aggregate.DispatchError

	require.ErrorAs(t, err, &dispatchErr)
	assert.ErrorIs(t, err, errBoom)
	assert.Len(t, dispatchErr.Errs, 1)

	assert.Len(t, rec.Events(), 1, "remaining handlers still receive the event")
	assert.Empty(t, ta.UncommittedEvents())
}

func TestPublisherWithoutHandlers(t *testing.T) {
	ta := newTestAggregate(t, "agg-1")

	require.NoError(t, aggregate.NewPublisher().MergeObjectContext(ta).Commit())

	assert.Empty(t, ta.UncommittedEvents())
}
