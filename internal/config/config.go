package config

import (
	"discord-baitchannel-bot/internal/cache"
	"discord-baitchannel-bot/internal/database"
	"discord-baitchannel-bot/internal/logging"
	"discord-baitchannel-bot/internal/redis"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Token    string          `json:"token" yaml:"token"`
	Database database.Config `json:"database" yaml:"database"`
	Redis    redis.Config    `json:"redis" yaml:"redis"`
	Cache    CacheConfig     `json:"cache" yaml:"cache"`
	Metrics  MetricsConfig   `json:"metrics" yaml:"metrics"`
	Log      logging.Config  `json:"log" yaml:"log"`
}

type CacheConfig struct {
	L1MaxEntries int64 `json:"l1_max_entries" yaml:"l1_max_entries"`
	L2TTLSeconds int   `json:"l2_ttl_seconds" yaml:"l2_ttl_seconds"`
}

type MetricsConfig struct {
	// Addr serves /metrics and /debug/pprof. Empty disables the server.
	Addr string `json:"addr" yaml:"addr"`
}

// Error describes an invalid configuration field.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// DefaultConfig returns the configuration used for fields a file leaves out.
func DefaultConfig() *Config {
	return &Config{
		Database: database.Config{
			Driver: database.DriverPostgres,
			Postgres: database.PostgresConfig{
				Host:    "localhost",
				Port:    5432,
				SSLMode: "disable",
			},
		},
		Redis: redis.Config{
			Addr: "localhost:6379",
		},
		Cache: CacheConfig{
			L1MaxEntries: 10000,
			L2TTLSeconds: 3600,
		},
		Metrics: MetricsConfig{
			Addr: "localhost:6060",
		},
		Log: logging.Config{
			Level: "info",
		},
	}
}

// Load reads a JSON or YAML (by extension) config file on top of the
// defaults, then applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation. Tools that only need the database
// section use it so a missing bot token is not fatal.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// Override with environment variables if present
func (c *Config) applyEnv() {
	if token := os.Getenv("DISCORD_TOKEN"); token != "" {
		c.Token = token
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
		c.Redis.Enabled = true
	}
}

// Validate reports the first invalid field as *Error.
func (c *Config) Validate() error {
	if c.Token == "" {
		return &Error{Field: "token", Message: "is required (or set DISCORD_TOKEN)"}
	}

	switch c.Database.Driver {
	case "", database.DriverPostgres:
		if c.Database.DSN == "" && c.Database.Postgres.Host == "" {
			return &Error{Field: "database.postgres.host", Message: "is required when no dsn is set"}
		}
	case database.DriverSQLite:
	default:
		return &Error{Field: "database.driver", Message: fmt.Sprintf("unknown driver %q", c.Database.Driver)}
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return &Error{Field: "redis.addr", Message: "is required when redis is enabled"}
	}
	if c.Cache.L1MaxEntries < 0 {
		return &Error{Field: "cache.l1_max_entries", Message: "must not be negative"}
	}
	if c.Cache.L2TTLSeconds < 0 {
		return &Error{Field: "cache.l2_ttl_seconds", Message: "must not be negative"}
	}
	return nil
}

// CacheOptions converts the cache section for cache.NewConfigCache.
func (c *Config) CacheOptions() cache.Config {
	return cache.Config{
		L1MaxEntries: c.Cache.L1MaxEntries,
		L2TTL:        time.Duration(c.Cache.L2TTLSeconds) * time.Second,
	}
}
