// Package sqlite persists save slots, the ledger journal and offline reports
// in a single local SQLite file using the pure-Go modernc driver.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// FileName is the database file created inside the data directory.
const FileName = "shuffle.db"

// DB wraps the SQLite handle.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) dir/shuffle.db and applies migrations.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return OpenPath(filepath.Join(dir, FileName))
}

// OpenPath opens the database at an explicit path.
func OpenPath(path string) (*DB, error) {
	// The CLI and a running daemon may hold the file at the same time.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	db := &DB{db: sqlDB}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close releases the database handle.
func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema statements. Each string is a single SQL
// statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		// One row per save slot. Costs and rates are never stored.
		`CREATE TABLE IF NOT EXISTS save_state (
			slot           TEXT PRIMARY KEY,
			profile_id     TEXT NOT NULL DEFAULT '',
			balance        REAL NOT NULL DEFAULT 0,
			total_produced REAL NOT NULL DEFAULT 0,
			saved_at       INTEGER NOT NULL DEFAULT 0,
			updated_at     TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		// Item levels per slot
		`CREATE TABLE IF NOT EXISTS save_items (
			slot     TEXT NOT NULL REFERENCES save_state(slot) ON DELETE CASCADE,
			item_key TEXT NOT NULL,
			level    INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (slot, item_key)
		)`,

		// Append-only ledger journal
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			slot       TEXT NOT NULL,
			created_at TEXT NOT NULL,
			tx_type    TEXT NOT NULL,
			entry_type TEXT NOT NULL,
			item_key   TEXT NOT NULL DEFAULT '',
			level      INTEGER NOT NULL DEFAULT 0,
			amount     REAL NOT NULL DEFAULT 0,
			balance    REAL NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_slot ON ledger_entries(slot, id)`,

		// Offline progress reports
		`CREATE TABLE IF NOT EXISTS offline_reports (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			slot             TEXT NOT NULL,
			saved_at         TEXT NOT NULL,
			loaded_at        TEXT NOT NULL,
			away_seconds     REAL NOT NULL DEFAULT 0,
			credited_seconds REAL NOT NULL DEFAULT 0,
			capped           INTEGER NOT NULL DEFAULT 0,
			rate             REAL NOT NULL DEFAULT 0,
			gained           REAL NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_offline_slot ON offline_reports(slot, id)`,
	}
}
