// Package eventstore provides an append-only, per-stream event log with
// optimistic concurrency control. Two implementations are bundled: an
// in-memory store and a gorm backed store (sqlite or postgres).
// Apart from the stores, mechanisms for building projections are provided,
// while the aggregate package builds event sourced aggregates on top.
package eventstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/austere-albatross/eventstore/internal/logger"
)

// New constructs new gorm backed event store
// enc - a specific encoder implementation (see bundled JSONEncoder)
func New(enc Encoder, opts ...Option) (*SQLStore, error) {
	if enc == nil {
		return nil, fmt.Errorf("encoder implementation must be provided")
	}

	cfg := Cfg{
		Log: logger.Nop(),
	}

	for _, opt := range opts {
		cfg = opt(cfg)
	}

	if cfg.PostgresDSN == "" && cfg.SQLitePath == "" {
		return nil, fmt.Errorf("either postgres dsn or sqlite path must be provided")
	}

	var dial gorm.Dialector

	if cfg.PostgresDSN != "" {
		dial = postgres.Open(cfg.PostgresDSN)
	}

	if cfg.SQLitePath != "" {
		dial = sqlite.Open(cfg.SQLitePath)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if cfg.SQLitePath != "" {
		// sqlite allows a single writer, queue them in the pool instead of
		// failing with SQLITE_BUSY / SQLITE_LOCKED
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}

		sqlDB.SetMaxOpenConns(1)
	}

	return &SQLStore{
		db:  db,
		enc: enc,
		log: cfg.Log.With("store", "sql"),
	}, db.AutoMigrate(&gormEvent{})
}

// Cfg represents event store configuration
type Cfg struct {
	PostgresDSN string
	SQLitePath  string
	Log         *logger.Logger
}

// Option represents event store configuration option
type Option func(Cfg) Cfg

// WithPostgresDB is an event store option that can be used to configure
// the eventstore to use postgres as a backing storage (pgx driver)
func WithPostgresDB(dsn string) Option {
	return func(cfg Cfg) Cfg {
		cfg.PostgresDSN = dsn

		return cfg
	}
}

// WithSQLiteDB is an event store option that can be used to configure
// the eventstore to use sqlite as a backing storage
func WithSQLiteDB(path string) Option {
	return func(cfg Cfg) Cfg {
		cfg.SQLitePath = path

		return cfg
	}
}

// WithLogger sets the event store logger
func WithLogger(l *logger.Logger) Option {
	return func(cfg Cfg) Cfg {
		cfg.Log = l

		return cfg
	}
}

// SQLStore represents a gorm event store implementation
type SQLStore struct {
	db  *gorm.DB
	enc Encoder
	log *logger.Logger
}

var _ EventStore = (*SQLStore)(nil)

// DB exposes the underlying connection so that read models can share it
func (es *SQLStore) DB() *gorm.DB { return es.db }

// Close should be called as a part of cleanup process
// in order to close the underlying sql connection
func (es *SQLStore) Close() error {
	sqlDB, err := es.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

type gormEvent struct {
	ID                 string `gorm:"unique"`
	Sequence           uint64 `gorm:"autoIncrement;primaryKey"`
	Type               string
	DataType           string
	Data               string
	Meta               *string
	CausationEventID   *string
	CorrelationEventID *string
	StreamID           string `gorm:"index:idx_optimistic_check,unique;index"`
	StreamVersion      int    `gorm:"index:idx_optimistic_check,unique"`
	OccurredOn         time.Time
}

// TableName returns gorm table name
func (ge *gormEvent) TableName() string { return "event" }

// AppendEvents encodes the events and appends them to the stream inside a
// single transaction. The compound unique key (stream_id, stream_version)
// guarantees that of two concurrent writers at the same version only one
// commits, the other one gets ErrConcurrencyConflict.
func (es *SQLStore) AppendEvents(ctx context.Context, stream string, events []Event, opts ...AppendOpt) error {
	cfg := appendConfig(opts)

	if err := validateAppend(stream, events, cfg); err != nil {
		return err
	}

	if len(events) == 0 {
		return nil
	}

	rows := make([]gormEvent, len(events))

	for i, evt := range events {
		row, err := es.encode(evt)
		if err != nil {
			return err
		}

		rows[i] = row
	}

	err := es.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current int64

		if err := tx.Model(&gormEvent{}).Where("stream_id = ?", stream).Count(&current).Error; err != nil {
			return err
		}

		if err := verifyVersion(stream, int(current), events, cfg); err != nil {
			return err
		}

		if err := tx.Create(&rows).Error; err != nil {
			if isDuplicate(err) {
				return conflict(stream, events[0].Version, int(current))
			}

			return err
		}

		return nil
	})

	if errors.Is(err, ErrConcurrencyConflict) {
		es.log.Warn("concurrency conflict", "stream_id", stream, "error", err)
	}

	return err
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var sqliteErr sqlite3.Error

	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

func (es *SQLStore) encode(evt Event) (gormEvent, error) {
	encoded, err := es.enc.Encode(evt.Data)
	if err != nil {
		return gormEvent{}, err
	}

	row := gormEvent{
		ID:            evt.ID,
		Type:          evt.Type,
		DataType:      encoded.Type,
		Data:          encoded.Data,
		StreamID:      evt.AggregateID,
		StreamVersion: evt.Version,
		OccurredOn:    evt.OccurredOn,
	}

	if evt.CorrelationEventID != "" {
		row.CorrelationEventID = &evt.CorrelationEventID
	}

	if evt.CausationEventID != "" {
		row.CausationEventID = &evt.CausationEventID
	}

	if evt.Meta != nil {
		m, err := json.Marshal(evt.Meta)
		if err != nil {
			return gormEvent{}, err
		}

		ms := string(m)

		row.Meta = &ms
	}

	if row.ID == "" {
		row.ID = newEventID()
	}

	if row.OccurredOn.IsZero() {
		row.OccurredOn = clock.now()
	}

	return row, nil
}

// GetEvents reads the stream's events ordered by version
func (es *SQLStore) GetEvents(ctx context.Context, stream string, opts ...ReadOpt) ([]Event, error) {
	cfg := readConfig(opts)

	if len(stream) == 0 {
		return nil, fmt.Errorf("stream name must be provided")
	}

	var rows []gormEvent

	if err := es.db.
		WithContext(ctx).
		Where("stream_id = ? AND stream_version >= ?", stream, cfg.fromVersion).
		Order("stream_version asc").
		Find(&rows).Error; err != nil {

		return nil, err
	}

	decoded, err := es.decodeEvents(rows)
	if err != nil {
		return nil, err
	}

	out := make([]Event, len(decoded))

	for i, evt := range decoded {
		out[i] = evt.Event
	}

	return out, nil
}

// SubAllConfig (configure using SubAllOpt)
type SubAllConfig struct {
	offset       uint64
	batchSize    int
	pollInterval time.Duration
}

// SubAllOpt represents subscribe to all events option
type SubAllOpt func(SubAllConfig) SubAllConfig

// WithOffset is a subscription / read all option that indicates a global
// sequence from which to start reading events (exclusive)
func WithOffset(offset uint64) SubAllOpt {
	return func(cfg SubAllConfig) SubAllConfig {
		cfg.offset = offset

		return cfg
	}
}

// WithBatchSize is a subscription/read all option that specifies the read
// batch size (limit) when reading events from the event store
func WithBatchSize(size int) SubAllOpt {
	return func(cfg SubAllConfig) SubAllConfig {
		cfg.batchSize = size

		return cfg
	}
}

// WithPollInterval is a subscription/read all option that specifies the polling
// interval of the underlying database
func WithPollInterval(d time.Duration) SubAllOpt {
	return func(cfg SubAllConfig) SubAllConfig {
		cfg.pollInterval = d

		return cfg
	}
}

// Subscription represents SubscribeAll subscription that is used for streaming
// incoming events
type Subscription struct {
	// Err chan will produce any errors that might occur while reading events
	// If Err produces io.EOF error, that indicates that we have caught up
	// with the event store and that there are no more events to read after which
	// the subscription itself will continue polling the event store for new events
	// each time we empty the Err channel. This means that reading from Err (in
	// case of io.EOF) can be strategically used in order to achieve backpressure
	Err       chan error
	EventData chan StoredEvent

	close chan struct{}
}

// Close closes the subscription and halts the polling of the database
func (s Subscription) Close() {
	if s.close == nil {
		return
	}

	select {
	case s.close <- struct{}{}:
	default:
	}
}

// ReadAll will read all events from the event store by internally creating a
// a subscription and depleting it until io.EOF is encountered
// WARNING: Use with caution as this method will read the entire event store
// in a blocking fashion (probably best used in combination with offset option)
func (es *SQLStore) ReadAll(ctx context.Context, opts ...SubAllOpt) ([]StoredEvent, error) {
	sub, err := es.SubscribeAll(ctx, opts...)
	if err != nil {
		return nil, err
	}

	defer sub.Close()

	var events []StoredEvent

	for {
		select {
		case data := <-sub.EventData:
			events = append(events, data)

		case err := <-sub.Err:
			if errors.Is(err, io.EOF) {
				// drain whatever got buffered before EOF was produced
				for len(sub.EventData) > 0 {
					events = append(events, <-sub.EventData)
				}

				return events, nil
			}

			return nil, err
		}
	}
}

// SubscribeAll will create a subscription which can be used to stream all events in an
// orderly fashion (global sequence order). This mechanism is used for building projections
func (es *SQLStore) SubscribeAll(ctx context.Context, opts ...SubAllOpt) (Subscription, error) {
	cfg := SubAllConfig{
		offset:       0,
		batchSize:    100,
		pollInterval: 100 * time.Millisecond,
	}

	for _, opt := range opts {
		cfg = opt(cfg)
	}

	if cfg.batchSize < 1 {
		return Subscription{}, fmt.Errorf("batch size should be at least 1")
	}

	sub := Subscription{
		Err:       make(chan error, 1),
		EventData: make(chan StoredEvent, cfg.batchSize),
		close:     make(chan struct{}, 1),
	}

	go func() {
		var done error

		for {
			select {
			case <-sub.close:
				sub.Err <- ErrSubscriptionClosedByClient

				return
			case <-ctx.Done():
				sub.Err <- ctx.Err()

				return
			case <-time.After(cfg.pollInterval):
				// Make sure client reads all buffered events
				if done != nil {
					if len(sub.EventData) != 0 {
						break
					}

					sub.Err <- done

					return
				}

				var rows []gormEvent

				if err := es.db.
					WithContext(ctx).
					Where("sequence > ?", cfg.offset).
					Order("sequence asc").
					Limit(cfg.batchSize).
					Find(&rows).Error; err != nil {
					done = err

					break
				}

				if len(rows) == 0 {
					sub.Err <- io.EOF

					break
				}

				decoded, err := es.decodeEvents(rows)
				if err != nil {
					done = err

					break
				}

				cfg.offset = rows[len(rows)-1].Sequence

				for _, evt := range decoded {
					sub.EventData <- evt
				}
			}
		}
	}()

	return sub, nil
}

func (es *SQLStore) decodeEvents(rows []gormEvent) ([]StoredEvent, error) {
	out := make([]StoredEvent, len(rows))

	for i, row := range rows {
		data, err := es.enc.Decode(&EncodedEvt{
			Data: row.Data,
			Type: row.DataType,
		})
		if err != nil {
			return nil, err
		}

		var meta map[string]string

		if row.Meta != nil {
			err = json.Unmarshal([]byte(*row.Meta), &meta)
			if err != nil {
				return nil, err
			}
		}

		out[i] = StoredEvent{
			Event: Event{
				AggregateID:        row.StreamID,
				Type:               row.Type,
				Version:            row.StreamVersion,
				OccurredOn:         row.OccurredOn.UTC(),
				Data:               data,
				ID:                 row.ID,
				CausationEventID:   deref(row.CausationEventID),
				CorrelationEventID: deref(row.CorrelationEventID),
				Meta:               meta,
			},
			Sequence: row.Sequence,
		}
	}

	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
