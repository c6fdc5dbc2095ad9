// Package config loads the austere service configuration from a yaml file
// with AUSTERE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Default configuration constants.
const (
	DefaultHTTPAddr        = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultSQLitePath      = "file:austere.db?cache=shared"
	DefaultRedisChannel    = "austere:events"
	DefaultRedisNamesKey   = "austere:organization:names"
	DefaultPollInterval    = 200 * time.Millisecond
	DefaultRetryDelay      = time.Second
	DefaultCommandAttempts = 3
)

// Config holds the complete service configuration.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	HTTP       HTTPConfig       `yaml:"http"`
	Store      StoreConfig      `yaml:"store"`
	Redis      RedisConfig      `yaml:"redis"`
	Projection ProjectionConfig `yaml:"projection"`
	Commands   CommandsConfig   `yaml:"commands"`
}

// LogConfig holds logger configuration.
type LogConfig struct {
	// Mode is "prod" for json output, anything else logs for development
	Mode string `yaml:"mode"`
}

// HTTPConfig holds the projection endpoint configuration.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StoreConfig selects the event store backend. Exactly one of the two has to be set.
type StoreConfig struct {
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// RedisConfig holds redis configuration. An empty Addr disables redis:
// names are kept in the SQL read model and events are not published.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
	NamesKey string `yaml:"names_key"`
}

// Enabled reports whether redis is configured
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// ProjectionConfig holds projector configuration.
type ProjectionConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	RetryDelay   time.Duration `yaml:"retry_delay"`
}

// CommandsConfig holds command execution configuration.
type CommandsConfig struct {
	Attempts int `yaml:"attempts"`
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		Log: LogConfig{Mode: "dev"},
		HTTP: HTTPConfig{
			Addr:            DefaultHTTPAddr,
			ShutdownTimeout: DefaultShutdownTimeout,
		},
		Store: StoreConfig{
			SQLitePath: DefaultSQLitePath,
		},
		Redis: RedisConfig{
			Channel:  DefaultRedisChannel,
			NamesKey: DefaultRedisNamesKey,
		},
		Projection: ProjectionConfig{
			PollInterval: DefaultPollInterval,
			RetryDelay:   DefaultRetryDelay,
		},
		Commands: CommandsConfig{
			Attempts: DefaultCommandAttempts,
		},
	}
}

// Load reads the config file at path (skipped when path is empty), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	// a configured postgres dsn replaces the default sqlite path
	if cfg.Store.PostgresDSN != "" && cfg.Store.SQLitePath == DefaultSQLitePath {
		cfg.Store.SQLitePath = ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"AUSTERE_LOG_MODE":        &c.Log.Mode,
		"AUSTERE_HTTP_ADDR":       &c.HTTP.Addr,
		"AUSTERE_SQLITE_PATH":     &c.Store.SQLitePath,
		"AUSTERE_POSTGRES_DSN":    &c.Store.PostgresDSN,
		"AUSTERE_REDIS_ADDR":      &c.Redis.Addr,
		"AUSTERE_REDIS_PASSWORD":  &c.Redis.Password,
		"AUSTERE_REDIS_CHANNEL":   &c.Redis.Channel,
		"AUSTERE_REDIS_NAMES_KEY": &c.Redis.NamesKey,
	}

	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"AUSTERE_REDIS_DB":         &c.Redis.DB,
		"AUSTERE_COMMAND_ATTEMPTS": &c.Commands.Attempts,
	}

	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok {
			continue
		}

		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}

		*dst = n
	}

	durations := map[string]*time.Duration{
		"AUSTERE_HTTP_SHUTDOWN_TIMEOUT": &c.HTTP.ShutdownTimeout,
		"AUSTERE_POLL_INTERVAL":         &c.Projection.PollInterval,
		"AUSTERE_RETRY_DELAY":           &c.Projection.RetryDelay,
	}

	for key, dst := range durations {
		v, ok := lookup(key)
		if !ok {
			continue
		}

		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}

		*dst = d
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if (c.Store.SQLitePath == "") == (c.Store.PostgresDSN == "") {
		errs = append(errs, errors.New("store: exactly one of sqlite_path and postgres_dsn must be set"))
	}

	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http: addr is required"))
	}

	if c.Redis.Enabled() && c.Redis.Channel == "" {
		errs = append(errs, errors.New("redis: channel is required"))
	}

	if c.Redis.Enabled() && c.Redis.NamesKey == "" {
		errs = append(errs, errors.New("redis: names_key is required"))
	}

	if c.Projection.PollInterval <= 0 {
		errs = append(errs, errors.New("projection: poll_interval must be positive"))
	}

	if c.Commands.Attempts < 1 {
		errs = append(errs, errors.New("commands: attempts must be at least 1"))
	}

	return errors.Join(errs...)
}
