package eventstore

import (
	"errors"
	"fmt"
)

var (
	// ErrConcurrencyConflict indicates that the stream version differs from the
	// version the writer expected. Callers may re-read the stream and retry.
	ErrConcurrencyConflict = errors.New("optimistic concurrency check failed")

	// ErrInvalidAppend indicates a malformed append request (no events were written)
	ErrInvalidAppend = errors.New("invalid append")

	// ErrSubscriptionClosedByClient is produced by sub.Err if client cancels the subscription using sub.Close()
	ErrSubscriptionClosedByClient = errors.New("subscription closed by client")

	// ErrEventNotRegistered is returned by the encoder when decoding an unknown payload type
	ErrEventNotRegistered = errors.New("event not registered")
)

// ConflictError carries the details of a failed optimistic concurrency check
type ConflictError struct {
	StreamID string
	Expected int
	Actual   int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf(
		"%v: stream %q expected version %d, actual %d",
		ErrConcurrencyConflict, e.StreamID, e.Expected, e.Actual,
	)
}

// Unwrap makes errors.Is(err, ErrConcurrencyConflict) hold
func (e *ConflictError) Unwrap() error { return ErrConcurrencyConflict }

func conflict(stream string, expected, actual int) error {
	return &ConflictError{StreamID: stream, Expected: expected, Actual: actual}
}

func invalidAppend(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidAppend, fmt.Sprintf(format, args...))
}
