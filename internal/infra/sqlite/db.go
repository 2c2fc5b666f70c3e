// Package sqlite provides durable persistence for the budget ledger:
// the append-only entry store, pool additions, the activity log, and the
// item catalog. Pure-Go driver, no CGO.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection and exposes typed operations.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database under dir and runs migrations.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	path := filepath.Join(dir, "budgetpool.db")
	conn, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite writes serialize on a single connection; more only adds
	// SQLITE_BUSY churn.
	conn.SetMaxOpenConns(1)

	d := &DB{db: conn}
	if err := d.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error { return d.db.Close() }

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema statements. Each string is a single SQL
// statement (SQLite executes one at a time). Amounts are stored as decimal
// strings, never floats.
func Migrations() []string {
	return []string{
		// Append-only ledger. seq is dense per account starting at 1;
		// the primary key doubles as the optimistic-concurrency check.
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			account_id TEXT NOT NULL,
			seq        INTEGER NOT NULL,
			id         TEXT NOT NULL UNIQUE,
			kind       TEXT NOT NULL,
			amount     TEXT NOT NULL,
			ref_id     TEXT NOT NULL DEFAULT '',
			items_json TEXT NOT NULL DEFAULT '',
			actor_id   TEXT NOT NULL,
			actor_role TEXT NOT NULL,
			note       TEXT NOT NULL DEFAULT '',
			ts         TEXT NOT NULL,
			PRIMARY KEY (account_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_id ON ledger_entries(id)`,

		// Pool funding history, append-only.
		`CREATE TABLE IF NOT EXISTS pool_additions (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			amount     TEXT NOT NULL,
			actor_id   TEXT NOT NULL,
			actor_role TEXT NOT NULL,
			note       TEXT NOT NULL DEFAULT '',
			ts         TEXT NOT NULL
		)`,

		// Audit trail, write-only from the engine's perspective.
		`CREATE TABLE IF NOT EXISTS activity_logs (
			seq          INTEGER PRIMARY KEY AUTOINCREMENT,
			id           TEXT NOT NULL UNIQUE,
			action       TEXT NOT NULL,
			details_json TEXT NOT NULL DEFAULT '',
			actor_id     TEXT NOT NULL,
			actor_role   TEXT NOT NULL,
			ts           TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_action ON activity_logs(action)`,

		// Predefined purchasable items.
		`CREATE TABLE IF NOT EXISTS catalog_items (
			id    TEXT PRIMARY KEY,
			name  TEXT NOT NULL,
			price TEXT NOT NULL
		)`,
	}
}

func (d *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}
