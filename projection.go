package eventstore

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/austere-albatross/eventstore/internal/logger"
)

// EventStreamer represents an event stream that can be subscribed to
// This package offers SQLStore as EventStreamer implementation
type EventStreamer interface {
	SubscribeAll(context.Context, ...SubAllOpt) (Subscription, error)
}

// NewProjector constructs a Projector
func NewProjector(s EventStreamer, opts ...ProjectorOption) *Projector {
	cfg := ProjectorCfg{
		Log:        logger.Nop(),
		RetryDelay: 100 * time.Millisecond,
	}

	for _, opt := range opts {
		cfg = opt(cfg)
	}

	return &Projector{
		streamer: s,
		logger:   cfg.Log.With("component", "projector"),
		delay:    cfg.RetryDelay,
		subOpts:  cfg.SubOpts,
	}
}

// ProjectorCfg represents projector configuration
type ProjectorCfg struct {
	Log        *logger.Logger
	RetryDelay time.Duration
	SubOpts    []SubAllOpt
}

// ProjectorOption represents projector configuration option
type ProjectorOption func(ProjectorCfg) ProjectorCfg

// WithProjectorLogger sets the projector logger
func WithProjectorLogger(l *logger.Logger) ProjectorOption {
	return func(cfg ProjectorCfg) ProjectorCfg {
		cfg.Log = l

		return cfg
	}
}

// WithRetryDelay sets the delay before a failed projection is resubscribed
func WithRetryDelay(d time.Duration) ProjectorOption {
	return func(cfg ProjectorCfg) ProjectorCfg {
		cfg.RetryDelay = d

		return cfg
	}
}

// WithSubscriptionOpts sets options passed to every SubscribeAll call
// (eg. WithPollInterval). The offset is always managed by the projector.
func WithSubscriptionOpts(opts ...SubAllOpt) ProjectorOption {
	return func(cfg ProjectorCfg) ProjectorCfg {
		cfg.SubOpts = append(cfg.SubOpts, opts...)

		return cfg
	}
}

// Projector is an event projector which will subscribe to an
// event stream (event store) and project events to each
// individual projection in an asynchronous manner
type Projector struct {
	streamer    EventStreamer
	projections []Projection
	logger      *logger.Logger
	delay       time.Duration
	subOpts     []SubAllOpt
}

// Projection represents a projection that should be able to handle
// projected events
type Projection func(StoredEvent) error

// Add effectively registers a projection with the projector
// Make sure to add all of your projections before calling Run
func (p *Projector) Add(projections ...Projection) {
	p.projections = append(p.projections, projections...)
}

// Run will start the projector and block until every projection
// stops (the subscription is closed or ctx is done)
func (p *Projector) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	for _, projection := range p.projections {
		wg.Add(1)

		go func(projection Projection) {
			defer wg.Done()

			p.runProjection(ctx, projection)
		}(projection)
	}

	wg.Wait()

	return nil
}

func (p *Projector) runProjection(ctx context.Context, projection Projection) {
	var offset uint64

	for {
		opts := append(slices.Clone(p.subOpts), WithOffset(offset))

		sub, err := p.streamer.SubscribeAll(ctx, opts...)
		if err != nil {
			p.logger.Error("subscribe failed", "error", err)

			return
		}

		last, err := p.run(ctx, sub, projection, offset)

		sub.Close()

		if err == nil {
			return
		}

		offset = last

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.delay):
		}
	}
}

// run feeds the projection until the subscription ends. On projection failure
// it returns the sequence of the last successfully projected event
func (p *Projector) run(ctx context.Context, sub Subscription, projection Projection, offset uint64) (uint64, error) {
	for {
		select {
		case data := <-sub.EventData:
			if err := projection(data); err != nil {
				p.logger.Error(
					"projection failed",
					"stream_id", data.AggregateID,
					"event_type", data.Type,
					"sequence", data.Sequence,
					"error", err,
				)

				return offset, err
			}

			offset = data.Sequence

		case err := <-sub.Err:
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}

				if errors.Is(err, ErrSubscriptionClosedByClient) {
					return offset, nil
				}

				p.logger.Warn("subscription error", "error", err)

				return offset, err
			}

		case <-ctx.Done():
			return offset, nil
		}
	}
}
