package eventstore

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// EncodedEvt represents an event payload encoded by a specific encoder implementation
type EncodedEvt struct {
	Data string
	Type string
}

// Encoder is used by the SQL store in order to correctly marshal
// and unmarshal event payloads
type Encoder interface {
	Encode(any) (*EncodedEvt, error)
	Decode(*EncodedEvt) (any, error)
}

// NewJSONEncoder constructs json encoder. Every payload type that is
// going to be read back has to be registered here (eg. organization.OrgCreated{})
func NewJSONEncoder(payloads ...any) *JSONEncoder {
	enc := JSONEncoder{
		types: make(map[string]reflect.Type),
	}

	for _, p := range payloads {
		t := reflect.TypeOf(p)
		enc.types[t.Name()] = t
	}

	return &enc
}

// JSONEncoder provides default json Encoder implementation
// It will marshal and unmarshal payloads to/from json and store the type name
type JSONEncoder struct {
	types map[string]reflect.Type
}

// Encode marshals incoming payload to it's json representation
func (e *JSONEncoder) Encode(payload any) (*EncodedEvt, error) {
	if payload == nil {
		return &EncodedEvt{}, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &EncodedEvt{
		Type: reflect.TypeOf(payload).Name(),
		Data: string(data),
	}, nil
}

// Decode unmarshals incoming payload to it's corresponding go type
func (e *JSONEncoder) Decode(evt *EncodedEvt) (any, error) {
	if evt.Type == "" {
		return nil, nil
	}

	t, ok := e.types[evt.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEventNotRegistered, evt.Type)
	}

	v := reflect.New(t)

	err := json.Unmarshal([]byte(evt.Data), v.Interface())
	if err != nil {
		return nil, err
	}

	return v.Elem().Interface(), nil
}
