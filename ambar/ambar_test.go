package ambar_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/relvacode/iso8601"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/austere-albatross/eventstore"
	"github.com/austere-albatross/eventstore/ambar"
)

type anEvent struct {
	Foo string
	Bar string
}

var event = anEvent{
	Foo: "foo",
	Bar: "bar",
}

var ambarPayload = ambar.Payload{
	Data:               eventData(),
	DataType:           "anEvent",
	Meta:               nil,
	ID:                 "event-id",
	Sequence:           1,
	Type:               "SomethingHappened",
	CausationEventID:   nil,
	CorrelationEventID: nil,
	StreamID:           "stream-id",
	StreamVersion:      1,
	OccurredOn:         "2024-10-12T20:07:22.436271+00",
}

func TestShould_Project_Required_Data(t *testing.T) {
	var a = ambar.New(eventstore.NewJSONEncoder(anEvent{}))

	occurredOn, err := iso8601.ParseString(ambarPayload.OccurredOn)
	require.NoError(t, err)

	var got []eventstore.StoredEvent

	projection := func(data eventstore.StoredEvent) error {
		got = append(got, data)

		return nil
	}

	err = a.Project(context.Background(), projection, payload(t, ambarPayload))

	assert.NoError(t, err)
	assert.Equal(t, []eventstore.StoredEvent{
		{
			Event: eventstore.Event{
				AggregateID: ambarPayload.StreamID,
				Type:        "SomethingHappened",
				Version:     ambarPayload.StreamVersion,
				OccurredOn:  occurredOn,
				Data:        event,
				ID:          ambarPayload.ID,
			},
			Sequence: ambarPayload.Sequence,
		},
	}, got)
}

func TestShould_Retry_On_Bad_Date_Format(t *testing.T) {
	p := ambarPayload

	p.OccurredOn = "bad-date-time"

	var a = ambar.New(eventstore.NewJSONEncoder(anEvent{}))

	err := a.Project(context.Background(), nil, payload(t, p))

	assert.ErrorIs(t, err, ambar.ErrRetry)
}

func TestShould_Retry_On_Bad_Meta_Format(t *testing.T) {
	p := ambarPayload

	badMeta := "bad-meta"

	p.Meta = &badMeta

	var a = ambar.New(eventstore.NewJSONEncoder(anEvent{}))

	err := a.Project(context.Background(), nil, payload(t, p))

	assert.ErrorIs(t, err, ambar.ErrRetry)
}

func TestShould_Retry_On_Malformed_Request(t *testing.T) {
	var a = ambar.New(eventstore.NewJSONEncoder(anEvent{}))

	err := a.Project(context.Background(), nil, []byte("{not json"))

	assert.ErrorIs(t, err, ambar.ErrRetry)
}

func TestShould_Not_Retry_On_Unregistered_Event(t *testing.T) {
	var a = ambar.New(eventstore.NewJSONEncoder())

	err := a.Project(context.Background(), nil, payload(t, ambarPayload))

	assert.NoError(t, err)
}

func TestShould_Project_Optional_Data(t *testing.T) {
	p := ambarPayload

	meta := map[string]string{
		"foo": "bar",
	}

	metaData, err := json.Marshal(meta)
	require.NoError(t, err)

	metaStr := string(metaData)
	correlationEventID := "correlation-event-id"
	causationEventID := "causation-event-id"

	p.Meta = &metaStr
	p.CausationEventID = &causationEventID
	p.CorrelationEventID = &correlationEventID

	var a = ambar.New(eventstore.NewJSONEncoder(anEvent{}))

	var got eventstore.StoredEvent

	projection := func(data eventstore.StoredEvent) error {
		got = data

		return nil
	}

	err = a.Project(context.Background(), projection, payload(t, p))

	assert.NoError(t, err)
	assert.Equal(t, correlationEventID, got.CorrelationEventID)
	assert.Equal(t, causationEventID, got.CausationEventID)
	assert.Equal(t, meta, got.Meta)
}

func TestShould_Return_Projection_Error(t *testing.T) {
	var a = ambar.New(eventstore.NewJSONEncoder(anEvent{}))

	projection := func(eventstore.StoredEvent) error {
		return ambar.ErrKeepItGoing
	}

	err := a.Project(context.Background(), projection, payload(t, ambarPayload))

	assert.ErrorIs(t, err, ambar.ErrKeepItGoing)
}

func payload(t *testing.T, p ambar.Payload) []byte {
	t.Helper()

	data, err := json.Marshal(ambar.Req{
		Payload: p,
	})
	require.NoError(t, err)

	return data
}

func eventData() string {
	data, err := json.Marshal(event)
	if err != nil {
		panic(err)
	}

	return string(data)
}
