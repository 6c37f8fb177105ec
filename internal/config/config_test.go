package config

import (
	"discord-baitchannel-bot/internal/database"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_ADDR", "")
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_JSON(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.json", `{
		"token": "abc",
		"database": {"driver": "sqlite", "sqlite_path": "bait.db"},
		"cache": {"l2_ttl_seconds": 60}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.Token)
	assert.Equal(t, database.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "bait.db", cfg.Database.SQLitePath)
	assert.Equal(t, time.Minute, cfg.CacheOptions().L2TTL)

	// Untouched sections keep their defaults
	assert.Equal(t, "localhost:6060", cfg.Metrics.Addr)
	assert.Equal(t, int64(10000), cfg.Cache.L1MaxEntries)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.yaml", `
token: from-yaml
redis:
  enabled: true
  addr: /tmp/redis.sock
log:
  level: debug
  development: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-yaml", cfg.Token)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "/tmp/redis.sock", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Development)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DISCORD_TOKEN", "env-token")
	t.Setenv("DATABASE_URL", "postgres://bait@db/bait")
	t.Setenv("REDIS_ADDR", "redis:6379")
	path := writeFile(t, "config.json", `{"token": "file-token"}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Token)
	assert.Equal(t, "postgres://bait@db/bait", cfg.Database.DSN)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoad_InvalidJSON(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, "config.json", "not valid json")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing token", func(c *Config) { c.Token = "" }, "token"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"postgres without host", func(c *Config) { c.Database.Postgres.Host = "" }, "database.postgres.host"},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, "redis.addr"},
		{"negative ttl", func(c *Config) { c.Cache.L2TTLSeconds = -1 }, "cache.l2_ttl_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Token = "abc"
			tt.mutate(cfg)

			err := cfg.Validate()
			var cfgErr *Error
			require.True(t, errors.As(err, &cfgErr), "expected *Error, got %v", err)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}

	cfg := DefaultConfig()
	cfg.Token = "abc"
	assert.NoError(t, cfg.Validate())
}
