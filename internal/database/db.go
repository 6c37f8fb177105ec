package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Database struct {
	db     *sql.DB
	driver string
	logger *zap.Logger
}

type Config struct {
	Driver     string         `json:"driver" yaml:"driver"` // postgres or sqlite
	DSN        string         `json:"dsn" yaml:"dsn"`       // overrides Postgres fields when set
	Postgres   PostgresConfig `json:"postgres" yaml:"postgres"`
	SQLitePath string         `json:"sqlite_path" yaml:"sqlite_path"`
}

type PostgresConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database" yaml:"database"`
	SSLMode  string `json:"sslmode" yaml:"sslmode"`
}

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("database: unknown driver")

const schema = `
-- Bait channel configuration, one row per guild
CREATE TABLE IF NOT EXISTS bait_channel_configs (
    guild_id TEXT PRIMARY KEY,
    channel_id TEXT NOT NULL,
    enabled BOOLEAN DEFAULT TRUE,
    grace_period_seconds INTEGER DEFAULT 15,
    action_type TEXT DEFAULT 'ban',
    log_channel_id TEXT DEFAULT '',
    enable_smart_detection BOOLEAN DEFAULT TRUE,
    min_account_age_days INTEGER DEFAULT 7,
    min_membership_minutes INTEGER DEFAULT 5,
    min_message_count INTEGER DEFAULT 0,
    require_verification BOOLEAN DEFAULT FALSE,
    whitelisted_roles TEXT DEFAULT '[]', -- JSON array of role IDs
    whitelisted_users TEXT DEFAULT '[]', -- JSON array of user IDs
    disable_admin_whitelist BOOLEAN DEFAULT FALSE,
    ban_reason TEXT DEFAULT '',
    delete_user_messages BOOLEAN DEFAULT TRUE,
    delete_message_days INTEGER DEFAULT 1,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
);

-- Ordinary message activity per member
CREATE TABLE IF NOT EXISTS bait_user_activity (
    guild_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    message_count INTEGER DEFAULT 0,
    first_seen BIGINT NOT NULL,
    last_seen BIGINT NOT NULL,
    joined_at BIGINT DEFAULT 0,
    PRIMARY KEY (guild_id, user_id)
);

-- Append-only detection log
CREATE TABLE IF NOT EXISTS bait_channel_logs (
    id TEXT PRIMARY KEY,
    guild_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    username TEXT DEFAULT '',
    channel_id TEXT NOT NULL,
    message_id TEXT NOT NULL,
    message_content TEXT DEFAULT '',
    action TEXT NOT NULL,
    failure_reason TEXT DEFAULT '',
    detection_reason TEXT DEFAULT '',
    suspicion_score INTEGER DEFAULT 0,
    flags TEXT DEFAULT '{}', -- JSON object of fired signals
    reasons TEXT DEFAULT '[]', -- JSON array of reason strings
    account_age_days INTEGER DEFAULT 0,
    membership_minutes INTEGER DEFAULT 0,
    message_count INTEGER DEFAULT 0,
    has_verified_role BOOLEAN DEFAULT FALSE,
    created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_bait_logs_guild_time ON bait_channel_logs(guild_id, created_at);
CREATE INDEX IF NOT EXISTS idx_bait_logs_message ON bait_channel_logs(message_id);
`

// Open connects to the configured driver and applies the schema.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (*Database, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverPostgres
	}

	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverPostgres:
		db, err = openPostgres(cfg)
	case DriverSQLite:
		db, err = openSQLite(ctx, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	if err != nil {
		return nil, err
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	logger.Info("database ready", zap.String("driver", driver))

	return &Database{db: db, driver: driver, logger: logger}, nil
}

func openPostgres(cfg Config) (*sql.DB, error) {
	connStr := cfg.DSN
	if connStr == "" {
		pg := cfg.Postgres
		sslMode := pg.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		connStr = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			pg.Host, pg.Port, pg.User, pg.Password, pg.Database, sslMode)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(1 * time.Hour)

	return db, nil
}

func openSQLite(ctx context.Context, cfg Config) (*sql.DB, error) {
	path := cfg.SQLitePath
	if path == "" {
		path = cfg.DSN
	}
	if path == "" {
		path = "baitchannel.db"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: is its own database
	if path == ":memory:" || strings.Contains(path, "mode=memory") {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(8)
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, "PRAGMA synchronous=NORMAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Driver returns the name of the SQL driver in use.
func (d *Database) Driver() string {
	return d.driver
}
