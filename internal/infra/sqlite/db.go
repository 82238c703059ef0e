// Package sqlite is the local ledger: a single-file store that stands in
// for the finance REST API when moneytime runs offline.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// FileName is the database file created inside the storage directory.
const FileName = "moneytime.db"

// DB wraps the sqlite handle.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database in dir and applies migrations.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	// Transactions take the write lock at BEGIN so a read-then-write
	// transaction cannot interleave with another process's.
	dsn := filepath.Join(dir, FileName) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; sqlite serializes anyway.
	sqlDB.SetMaxOpenConns(1)

	db := &DB{db: sqlDB}
	if err := db.migrate(context.Background()); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database.
func (db *DB) Close() error {
	return db.db.Close()
}

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema statements, one per entry (sqlite executes
// one statement at a time). Amounts are stored as decimal text.
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS categories (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			description      TEXT NOT NULL,
			amount           TEXT NOT NULL,
			type             TEXT NOT NULL CHECK (type IN ('income', 'expense')),
			transaction_date TEXT NOT NULL,
			category_id      INTEGER REFERENCES categories(id) ON DELETE SET NULL,
			recurring_id     INTEGER REFERENCES recurring(id) ON DELETE SET NULL,
			created_at       TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(transaction_date)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(category_id)`,

		`CREATE TABLE IF NOT EXISTS recurring (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			description   TEXT NOT NULL,
			amount        TEXT NOT NULL,
			type          TEXT NOT NULL,
			frequency     TEXT NOT NULL,
			interval      INTEGER NOT NULL DEFAULT 1,
			start_date    TEXT NOT NULL,
			end_date      TEXT,
			weekday       INTEGER,
			day_of_month  INTEGER,
			category_id   INTEGER REFERENCES categories(id) ON DELETE SET NULL,
			next_run_date TEXT,
			created_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		)`,

		// Single row: the user's thresholds.
		`CREATE TABLE IF NOT EXISTS preferences (
			id             INTEGER PRIMARY KEY CHECK (id = 1),
			bad_threshold  TEXT NOT NULL,
			ok_threshold   TEXT NOT NULL,
			good_threshold TEXT NOT NULL,
			updated_at     TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		)`,
	}
}

func (db *DB) migrate(ctx context.Context) error {
	for _, stmt := range Migrations() {
		if _, err := db.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
