package aggregate

import (
	"context"
	"errors"

	"github.com/austere-albatross/eventstore"
)

// DefaultAttempts is the number of load-execute-save cycles an executor
// runs before giving up on concurrency conflicts
const DefaultAttempts = 3

// NewExecutor creates a new executor for the given aggregate store.
// newAggregate must return a fresh, zero aggregate on every call.
func NewExecutor[T Rooter](store *Store[T], newAggregate func() T, opts ...ExecOption) Executor[T] {
	cfg := ExecCfg{
		Attempts: DefaultAttempts,
	}

	for _, opt := range opts {
		cfg = opt(cfg)
	}

	return func(ctx context.Context, id string, f func(ctx context.Context, a T) error) error {
		return Exec(ctx, store, cfg.Attempts, newAggregate, id, f)
	}
}

// ExecCfg represents executor configuration
type ExecCfg struct {
	Attempts int
}

// ExecOption represents executor configuration option
type ExecOption func(ExecCfg) ExecCfg

// WithAttempts sets how many times a conflicting command is re-run
func WithAttempts(n int) ExecOption {
	return func(cfg ExecCfg) ExecCfg {
		if n > 0 {
			cfg.Attempts = n
		}

		return cfg
	}
}

// Executor loads an aggregate, executes a command against it and saves it back
type Executor[T Rooter] func(ctx context.Context, id string, f func(ctx context.Context, a T) error) error

// Exec loads the aggregate from the store, executes f and saves the aggregate
// back. When the save fails with a concurrency conflict the aggregate is
// re-read and f is executed again, up to attempts times.
func Exec[T Rooter](
	ctx context.Context,
	store *Store[T],
	attempts int,
	newAggregate func() T,
	id string,
	f func(ctx context.Context, a T) error) error {

	var err error

	for i := 0; i < attempts; i++ {
		a := newAggregate()

		err = store.ByID(ctx, id, a)
		if err != nil {
			return err
		}

		err = f(ctx, a)
		if err != nil {
			return err
		}

		err = store.Save(ctx, a)
		if !errors.Is(err, eventstore.ErrConcurrencyConflict) {
			return err
		}
	}

	return err
}
