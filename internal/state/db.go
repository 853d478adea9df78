// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Driver   string // "postgres" (default) or "sqlite"
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
	Path     string // sqlite file path, ":memory:" for an in-memory database
}

// Open opens and pings a connection pool for cfg.
func Open(cfg DBConfig) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.Driver {
	case DriverSQLite:
		db, err = sql.Open(DriverSQLite, cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		// a single connection keeps ":memory:" databases and write ordering consistent
		db.SetMaxOpenConns(1)
		if cfg.Path != ":memory:" {
			if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to set WAL mode: %w", err)
			}
		}
	case DriverPostgres, "":
		psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
		db, err = sql.Open(DriverPostgres, psqlInfo)
		if err != nil {
			return nil, fmt.Errorf("failed to open database connection: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// InitDB initializes the global database connection pool.
func InitDB(cfg DBConfig) error {
	db, err := Open(cfg)
	if err != nil {
		return err
	}
	DB = db
	log.Info().Str("driver", driverName(cfg.Driver)).Msg("Successfully connected to the database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS vault_kv (
		key VARCHAR(128) PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS operation_receipts (
		receipt_id VARCHAR(36) PRIMARY KEY,
		operation_type VARCHAR(50) NOT NULL,
		caller VARCHAR(42) NOT NULL,
		block_time BIGINT NOT NULL,
		recorded_at BIGINT NOT NULL,
		details TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_operation_receipts_block_time ON operation_receipts(block_time DESC);
	CREATE INDEX IF NOT EXISTS idx_operation_receipts_type ON operation_receipts(operation_type);
`

const dropSQL = `
	DROP TABLE IF EXISTS operation_receipts;
	DROP TABLE IF EXISTS vault_kv;
`

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	return ensureSchema(DB)
}

func ensureSchema(db *sql.DB) error {
	for _, stmt := range splitStatements(schemaSQL) {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema DDL: %w", err)
		}
	}
	log.Info().Msg("Database schema ensured (vault_kv, operation_receipts).")
	return nil
}

// ResetSchema drops every table and recreates the schema.
func ResetSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	for _, stmt := range splitStatements(dropSQL) {
		if _, err := DB.Exec(stmt); err != nil {
			return fmt.Errorf("failed to drop tables: %w", err)
		}
	}
	return ensureSchema(DB)
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	// Use a short timeout context for health checks
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

func driverName(driver string) string {
	if driver == "" {
		return DriverPostgres
	}
	return driver
}
