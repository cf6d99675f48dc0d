// Package database opens and bootstraps the helpdesk's SQL store.
// SQLite is the default for single-school deployments; Postgres and MySQL
// are supported for hosted installs.
package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Config selects the driver and data source.
type Config struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`

	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// Connect opens the database, verifies connectivity, and applies the schema.
func Connect(cfg Config) (*sqlx.DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite3"
	}
	dsn := cfg.DSN
	if dsn == "" && driver == "sqlite3" {
		dsn = "helpdesk.db?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS tickets (
		number INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		is_closed BOOLEAN NOT NULL DEFAULT FALSE,
		created TIMESTAMP NOT NULL,
		last_updated TIMESTAMP NOT NULL,
		waiting_since TIMESTAMP,
		assignee_email TEXT NOT NULL,
		assignee_name TEXT NOT NULL,
		parent_name TEXT,
		parent_email TEXT NOT NULL,
		parent_phone TEXT,
		parent_relationship TEXT,
		student_first_name TEXT,
		student_last_name TEXT,
		tutor_group TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_assignee ON tickets (assignee_email)`,
	`CREATE INDEX IF NOT EXISTS idx_tickets_parent_email ON tickets (parent_email)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		ticket_number INTEGER NOT NULL REFERENCES tickets (number),
		timestamp TIMESTAMP NOT NULL,
		author_name TEXT NOT NULL,
		is_employee BOOLEAN NOT NULL,
		is_private BOOLEAN NOT NULL DEFAULT FALSE,
		content TEXT NOT NULL,
		original_email TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_ticket ON messages (ticket_number)`,
	`CREATE TABLE IF NOT EXISTS attachments (
		id TEXT PRIMARY KEY,
		message_id TEXT NOT NULL REFERENCES messages (id),
		file_name TEXT NOT NULL,
		size INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS mail_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fingerprint TEXT UNIQUE,
		recipient TEXT NOT NULL,
		subject TEXT NOT NULL,
		heading TEXT NOT NULL,
		body TEXT NOT NULL,
		tag TEXT NOT NULL,
		thread_id TEXT,
		attempts INTEGER NOT NULL DEFAULT 0,
		due_time TIMESTAMP,
		last_error TEXT,
		create_time TIMESTAMP NOT NULL
	)`,
}

func applySchema(db *sqlx.DB) error {
	statements := schema
	if db.DriverName() != "sqlite3" {
		statements = portableSchema(statements)
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// portableSchema rewrites SQLite-specific spellings for other engines.
func portableSchema(statements []string) []string {
	out := make([]string, len(statements))
	for i, stmt := range statements {
		out[i] = strings.ReplaceAll(stmt, "INTEGER PRIMARY KEY AUTOINCREMENT", "SERIAL PRIMARY KEY")
	}
	return out
}
