// Package config loads server configuration from a YAML file, a .env file
// and environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"ft-ledger/internal/domain"
)

// Storage backends.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendRedis      = "redis"
	BackendClickhouse = "clickhouse"
	BackendNone       = "none"
)

// Config is the server configuration.
type Config struct {
	ListenAddr  string  `yaml:"listen_addr"`
	MetricsAddr string  `yaml:"metrics_addr"` // empty serves /metrics on ListenAddr
	LogLevel    string  `yaml:"log_level"`
	LogFormat   string  `yaml:"log_format"` // json or console
	TraceSample float64 `yaml:"trace_sample"`

	Storage StorageConfig `yaml:"storage"`
	Archive ArchiveConfig `yaml:"archive"`
	AMQP    AMQPConfig    `yaml:"amqp"`
	Token   TokenConfig   `yaml:"token"`
}

// StorageConfig selects the ledger key-value backend.
type StorageConfig struct {
	Backend     string `yaml:"backend"`
	PostgresDSN string `yaml:"postgres_dsn"`
	MaxConns    int32  `yaml:"postgres_max_conns"` // 0 keeps the pgx default
	RedisURL    string `yaml:"redis_url"`
	RedisPrefix string `yaml:"redis_prefix"`
	Migrate     bool   `yaml:"migrate"`
}

// ArchiveConfig selects the event archive backend.
type ArchiveConfig struct {
	Backend       string `yaml:"backend"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
}

// AMQPConfig enables event publishing to RabbitMQ when URL is set.
type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// TokenConfig holds token metadata and optional auto-initialization.
type TokenConfig struct {
	Metadata      *domain.TokenMetadata `yaml:"metadata"`
	Owner         string                `yaml:"owner"`
	InitialSupply string                `yaml:"initial_supply"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ListenAddr:  ":8080",
		LogLevel:    "info",
		LogFormat:   "json",
		TraceSample: 0,
		Storage: StorageConfig{
			Backend:     BackendMemory,
			RedisPrefix: "ft:",
			Migrate:     true,
		},
		Archive: ArchiveConfig{
			Backend: BackendMemory,
		},
		AMQP: AMQPConfig{
			Exchange: "ft.events",
		},
	}
}

// Load builds a configuration: defaults, then the YAML file at path (if
// non-empty), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("FT_LISTEN_ADDR", &c.ListenAddr)
	str("FT_METRICS_ADDR", &c.MetricsAddr)
	str("FT_LOG_LEVEL", &c.LogLevel)
	str("FT_LOG_FORMAT", &c.LogFormat)
	str("FT_STORAGE", &c.Storage.Backend)
	str("POSTGRES_DSN", &c.Storage.PostgresDSN)
	str("REDIS_URL", &c.Storage.RedisURL)
	str("FT_REDIS_PREFIX", &c.Storage.RedisPrefix)
	str("FT_ARCHIVE", &c.Archive.Backend)
	str("CLICKHOUSE_DSN", &c.Archive.ClickhouseDSN)
	str("RABBITMQ_URL", &c.AMQP.URL)
	str("FT_AMQP_EXCHANGE", &c.AMQP.Exchange)
	str("FT_OWNER", &c.Token.Owner)
	str("FT_INITIAL_SUPPLY", &c.Token.InitialSupply)

	if v, ok := lookup("FT_TRACE_SAMPLE"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("FT_TRACE_SAMPLE: %w", err)
		}
		c.TraceSample = f
	}
	if v, ok := lookup("FT_PG_MAX_CONNS"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("FT_PG_MAX_CONNS: %w", err)
		}
		c.Storage.MaxConns = int32(n)
	}
	if v, ok := lookup("FT_MIGRATE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FT_MIGRATE: %w", err)
		}
		c.Storage.Migrate = b
	}
	return nil
}

// Metadata returns the configured token metadata, or the default.
func (c *Config) Metadata() domain.TokenMetadata {
	if c.Token.Metadata == nil {
		return domain.DefaultMetadata()
	}
	m := c.Token.Metadata.Clone()
	if m.Spec == "" {
		m.Spec = domain.FTMetadataSpec
	}
	return m
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr is required"))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q: expected debug, info, warn or error", c.LogLevel))
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("log_format %q: expected json or console", c.LogFormat))
	}
	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("trace_sample %v: must be within [0, 1]", c.TraceSample))
	}

	if c.Storage.MaxConns < 0 {
		errs = append(errs, fmt.Errorf("storage.postgres_max_conns %d: must not be negative", c.Storage.MaxConns))
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			errs = append(errs, errors.New("storage.postgres_dsn is required for the postgres backend"))
		}
	case BackendRedis:
		if c.Storage.RedisURL == "" {
			errs = append(errs, errors.New("storage.redis_url is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.backend %q: expected memory, postgres or redis", c.Storage.Backend))
	}

	switch c.Archive.Backend {
	case BackendNone, BackendMemory:
	case BackendClickhouse:
		if c.Archive.ClickhouseDSN == "" {
			errs = append(errs, errors.New("archive.clickhouse_dsn is required for the clickhouse archive"))
		}
	default:
		errs = append(errs, fmt.Errorf("archive.backend %q: expected none, memory or clickhouse", c.Archive.Backend))
	}

	// A memory ledger restarts at nonce 1, which would repeat event ids and
	// nonces in a durable archive.
	if c.Storage.Backend == BackendMemory && c.Archive.Backend == BackendClickhouse {
		errs = append(errs, errors.New("archive.backend clickhouse requires a persistent storage.backend (postgres or redis)"))
	}

	if c.AMQP.URL != "" {
		if u, err := url.Parse(c.AMQP.URL); err != nil || (u.Scheme != "amqp" && u.Scheme != "amqps") {
			errs = append(errs, fmt.Errorf("amqp.url %q: expected amqp:// or amqps://", c.AMQP.URL))
		}
		if c.AMQP.Exchange == "" {
			errs = append(errs, errors.New("amqp.exchange is required when amqp.url is set"))
		}
	}

	if (c.Token.Owner == "") != (c.Token.InitialSupply == "") {
		errs = append(errs, errors.New("token.owner and token.initial_supply must be set together"))
	}
	if c.Token.InitialSupply != "" {
		if _, err := domain.ParseAmount(c.Token.InitialSupply); err != nil {
			errs = append(errs, fmt.Errorf("token.initial_supply: %w", err))
		}
	}
	if m := c.Token.Metadata; m != nil {
		if m.Name == "" || m.Symbol == "" {
			errs = append(errs, errors.New("token.metadata requires name and symbol"))
		}
	}

	return errors.Join(errs...)
}

// LoadEnvFile loads environment variables from a .env file if it exists.
// Variables already set in the environment are not overridden.
func LoadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, set := os.LookupEnv(key); !set {
			os.Setenv(key, value)
		}
	}
}
