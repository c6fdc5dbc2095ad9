// Package redisbus forwards events dispatched by the aggregate publisher
// to a redis pub/sub channel as JSON messages.
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/austere-albatross/eventstore"
	"github.com/austere-albatross/eventstore/aggregate"
	"github.com/austere-albatross/eventstore/internal/logger"
)

// DefaultChannel is the channel events are published on
const DefaultChannel = "austere:events"

// New constructs a redis publishing handler
func New(rdb redis.UniversalClient, opts ...Option) *Bus {
	cfg := Cfg{
		Channel: DefaultChannel,
		Timeout: 5 * time.Second,
		Log:     logger.Nop(),
	}

	for _, opt := range opts {
		cfg = opt(cfg)
	}

	return &Bus{
		rdb:     rdb,
		channel: cfg.Channel,
		timeout: cfg.Timeout,
		log:     cfg.Log,
	}
}

// Cfg represents bus configuration
type Cfg struct {
	Channel string
	Timeout time.Duration
	Log     *logger.Logger
}

// Option represents bus configuration option
type Option func(Cfg) Cfg

// WithChannel sets the channel name
func WithChannel(ch string) Option {
	return func(cfg Cfg) Cfg {
		cfg.Channel = ch

		return cfg
	}
}

// WithTimeout bounds every publish call
func WithTimeout(d time.Duration) Option {
	return func(cfg Cfg) Cfg {
		cfg.Timeout = d

		return cfg
	}
}

// WithLogger sets the logger reporting messages that could not be decoded
func WithLogger(l *logger.Logger) Option {
	return func(cfg Cfg) Cfg {
		cfg.Log = l

		return cfg
	}
}

// Bus publishes events to redis
type Bus struct {
	rdb     redis.UniversalClient
	channel string
	timeout time.Duration
	log     *logger.Logger
}

var _ aggregate.Handler = (*Bus)(nil)

// Message is the JSON shape of a published event
type Message struct {
	ID                 string            `json:"id"`
	AggregateID        string            `json:"aggregate_id"`
	Type               string            `json:"type"`
	Version            int               `json:"version"`
	OccurredOn         time.Time         `json:"occurred_on"`
	Data               json.RawMessage   `json:"data"`
	CausationEventID   string            `json:"causation_event_id,omitempty"`
	CorrelationEventID string            `json:"correlation_event_id,omitempty"`
	Meta               map[string]string `json:"meta,omitempty"`
}

// NewMessage converts the event to its published form
func NewMessage(evt eventstore.Event) (Message, error) {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		return Message{}, fmt.Errorf("encoding %s payload: %w", evt.Type, err)
	}

	return Message{
		ID:                 evt.ID,
		AggregateID:        evt.AggregateID,
		Type:               evt.Type,
		Version:            evt.Version,
		OccurredOn:         evt.OccurredOn,
		Data:               data,
		CausationEventID:   evt.CausationEventID,
		CorrelationEventID: evt.CorrelationEventID,
		Meta:               evt.Meta,
	}, nil
}

// Handle publishes the event
func (b *Bus) Handle(ctx context.Context, evt eventstore.Event) error {
	msg, err := NewMessage(evt)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// Subscribe forwards published messages to onMsg until ctx is done
func (b *Bus) Subscribe(ctx context.Context, onMsg func(Message)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)

	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()

		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()

		ch := sub.Channel()

		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}

				b.forward(m.Payload, onMsg)
			}
		}
	}()

	return nil
}

// forward decodes a received payload. Malformed payloads are logged and dropped.
func (b *Bus) forward(payload string, onMsg func(Message)) {
	var msg Message

	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		b.log.Warn(
			"malformed message",
			"channel", b.channel,
			"error", err,
		)

		return
	}

	onMsg(msg)
}
