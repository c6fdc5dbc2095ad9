// Package ambar projects events delivered by an Ambar data destination
// (rows of the event table streamed over HTTP) into eventstore projections.
package ambar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/relvacode/iso8601"

	"github.com/austere-albatross/eventstore"
)

var (
	// ErrNoRetry is the error returned when we don't want to retry
	// projecting events in case of an error.
	// Wrap it to acknowledge an event that failed but should be skipped
	ErrNoRetry = errors.New("no retry")

	// ErrKeepItGoing is the error returned when we want to keep projecting
	// events in case of an error
	ErrKeepItGoing = errors.New("keep it going")

	// ErrRetry is returned when the request could not be decoded and
	// Ambar should deliver it again
	ErrRetry = errors.New("retry")
)

// SuccessResp is the success response
// https://docs.ambar.cloud/#Data%20Destinations
var SuccessResp = `{
  "result": {
    "success": {}
  }
}`

// RetryResp is the retry response
// https://docs.ambar.cloud/#Data%20Destinations
var RetryResp = `{
  "result": {
    "error": {
      "policy": "must_retry", 
      "class": "must retry it", 
      "description": "must retry it"
    }
  }
}`

// KeepGoingResp is the keep going response
// https://docs.ambar.cloud/#Data%20Destinations
var KeepGoingResp = `{
  "result": {
    "error": {
      "policy": "keep_going", 
      "class": "keep it going", 
      "description": "keep it going"
    }
  }
}`

// New constructs a new Ambar projection handler
func New(dec Decoder) *Ambar {
	return &Ambar{dec: dec}
}

// Decoder is an interface for decoding event payloads
type Decoder interface {
	Decode(*eventstore.EncodedEvt) (any, error)
}

// Ambar is a projection handler for ambar events
type Ambar struct {
	dec Decoder
}

// Req is the ambar projection request
type Req struct {
	Payload Payload `json:"payload"`
}

// Payload is the ambar projection request payload (a row of the event table)
type Payload struct {
	Data               string  `json:"data"`
	DataType           string  `json:"data_type"`
	Meta               *string `json:"meta"`
	ID                 string  `json:"id"`
	Sequence           uint64  `json:"sequence"`
	Type               string  `json:"type"`
	CausationEventID   *string `json:"causation_event_id"`
	CorrelationEventID *string `json:"correlation_event_id"`
	StreamID           string  `json:"stream_id"`
	StreamVersion      int     `json:"stream_version"`
	OccurredOn         string  `json:"occurred_on"`
}

// Project projects ambar event to provided projection
// Malformed requests produce ErrRetry, events with an unregistered payload
// type are skipped
func (a *Ambar) Project(_ context.Context, projection eventstore.Projection, data []byte) error {
	var req Req

	err := json.Unmarshal(data, &req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRetry, err)
	}

	p := req.Payload

	decoded, err := a.dec.Decode(&eventstore.EncodedEvt{
		Data: p.Data,
		Type: p.DataType,
	})
	if err != nil {
		if errors.Is(err, eventstore.ErrEventNotRegistered) {
			return nil
		}

		return fmt.Errorf("%w: %v", ErrRetry, err)
	}

	occurredOn, err := iso8601.ParseString(p.OccurredOn)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRetry, err)
	}

	var meta map[string]string

	if p.Meta != nil {
		err = json.Unmarshal([]byte(*p.Meta), &meta)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRetry, err)
		}
	}

	return projection(eventstore.StoredEvent{
		Event: eventstore.Event{
			AggregateID:        p.StreamID,
			Type:               p.Type,
			Version:            p.StreamVersion,
			OccurredOn:         occurredOn,
			Data:               decoded,
			ID:                 p.ID,
			CausationEventID:   deref(p.CausationEventID),
			CorrelationEventID: deref(p.CorrelationEventID),
			Meta:               meta,
		},
		Sequence: p.Sequence,
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
