// Package config loads service configuration: built-in defaults, then an
// optional TOML file, then environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	platformstrings "regform/pkg/platform/strings"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendRemote   = "remote"
)

// Config is the full service configuration.
type Config struct {
	Server Server      `toml:"server"`
	Log    Log         `toml:"log"`
	Store  Store       `toml:"store"`
	Redis  RedisConfig `toml:"redis"`
	API    API         `toml:"api"`
	Kafka  Kafka       `toml:"kafka"`
	Form   Form        `toml:"form"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string   `toml:"addr"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	RequestTimeout  Duration `toml:"request_timeout"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Store selects where registrations are kept.
type Store struct {
	Backend     string `toml:"backend"`
	DatabaseURL string `toml:"database_url"`
	Table       string `toml:"table"`
	SQLitePath  string `toml:"sqlite_path"`
}

// RedisConfig configures the Redis client. An empty URL means Redis is not
// configured.
type RedisConfig struct {
	URL          string   `toml:"url"`
	Prefix       string   `toml:"prefix"`
	PoolSize     int      `toml:"pool_size"`
	MinIdleConns int      `toml:"min_idle_conns"`
	DialTimeout  Duration `toml:"dial_timeout"`
	ReadTimeout  Duration `toml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout"`
}

// API configures the remote users API backend.
type API struct {
	URL     string   `toml:"url"`
	Token   string   `toml:"token"`
	Timeout Duration `toml:"timeout"`
}

// Kafka configures the audit event topic. No brokers means audit events
// are only logged.
type Kafka struct {
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

type Form struct {
	SessionTTL Duration `toml:"session_ttl"`
	SubmitWait Duration `toml:"submit_wait"`
}

// Duration decodes "30s"-style strings.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the development configuration.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			ShutdownTimeout: Duration{10 * time.Second},
			RequestTimeout:  Duration{30 * time.Second},
		},
		Log:   Log{Level: "info", Format: "json"},
		Store: Store{Backend: BackendMemory, Table: "registrations", SQLitePath: "regform.db"},
		Redis: RedisConfig{
			Prefix:       "regform:",
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  Duration{5 * time.Second},
			ReadTimeout:  Duration{3 * time.Second},
			WriteTimeout: Duration{3 * time.Second},
		},
		API:   API{URL: "https://jsonplaceholder.typicode.com", Timeout: Duration{10 * time.Second}},
		Kafka: Kafka{Topic: "regform.audit"},
		Form:  Form{SessionTTL: Duration{30 * time.Minute}, SubmitWait: Duration{15 * time.Second}},
	}
}

// FromEnv builds a Config from defaults and environment variables so main
// stays lean.
func FromEnv() (Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// Load reads the TOML file at path over the defaults, then applies
// environment overrides. An empty path falls back to REGFORM_CONFIG, and to
// FromEnv when that is unset too.
func Load(path string) (Config, error) {
	if path == "" {
		path = os.Getenv("REGFORM_CONFIG")
	}
	if path == "" {
		return FromEnv()
	}

	cfg := Default()
	if _, err := toml.DecodeFile(os.ExpandEnv(path), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		if err := dst.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		return nil
	}

	str("REGFORM_ADDR", &c.Server.Addr)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("STORE_BACKEND", &c.Store.Backend)
	str("DATABASE_URL", &c.Store.DatabaseURL)
	str("DATABASE_TABLE", &c.Store.Table)
	str("SQLITE_PATH", &c.Store.SQLitePath)
	str("REDIS_URL", &c.Redis.URL)
	str("REDIS_PREFIX", &c.Redis.Prefix)
	str("API_URL", &c.API.URL)
	str("API_TOKEN", &c.API.Token)
	str("KAFKA_TOPIC", &c.Kafka.Topic)

	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = platformstrings.SplitList(v)
	}
	if v, ok := lookup("REDIS_POOL_SIZE"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REDIS_POOL_SIZE: %w", err)
		}
		c.Redis.PoolSize = n
	}

	for key, dst := range map[string]*Duration{
		"API_TIMEOUT":      &c.API.Timeout,
		"FORM_SESSION_TTL": &c.Form.SessionTTL,
		"SHUTDOWN_TIMEOUT": &c.Server.ShutdownTimeout,
	} {
		if err := dur(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate reports settings the selected backend cannot run without.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendRemote:
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("store backend %q requires DATABASE_URL", c.Store.Backend)
		}
	case BackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("store backend %q requires REDIS_URL", c.Store.Backend)
		}
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store backend %q requires SQLITE_PATH", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	return nil
}
