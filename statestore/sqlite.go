package statestore

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS deferral_state (
	scope TEXT NOT NULL,
	key   TEXT NOT NULL,
	value BLOB NOT NULL,
	PRIMARY KEY (scope, key)
);
`

// Sqlite is a Store backed by a SQLite database file. One file can serve
// many scopes, so hosts that already keep workspace state in SQLite can
// point the carry slot at the same database.
type Sqlite struct {
	db *sql.DB
}

// OpenSqlite opens (creating if needed) a SQLite store at path and ensures
// the schema exists.
func OpenSqlite(path string) (*Sqlite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("statestore: sqlite path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("statestore: open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("statestore: ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("statestore: create schema: %w", err)
	}

	return &Sqlite{db: db}, nil
}

// Close releases the database handle.
func (s *Sqlite) Close() error {
	return s.db.Close()
}

func (s *Sqlite) Put(ctx context.Context, key string, blob []byte, scope string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO deferral_state (scope, key, value) VALUES (?1, ?2, ?3)
		 ON CONFLICT (scope, key) DO UPDATE SET value = excluded.value`,
		scope, key, blob)
	if err != nil {
		return fmt.Errorf("statestore: put %s/%s: %w", scope, key, err)
	}
	return nil
}

func (s *Sqlite) Get(ctx context.Context, key, scope string) ([]byte, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM deferral_state WHERE scope = ?1 AND key = ?2`,
		scope, key).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("statestore: get %s/%s: %w", scope, key, err)
	}
	return blob, nil
}

func (s *Sqlite) Remove(ctx context.Context, key, scope string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM deferral_state WHERE scope = ?1 AND key = ?2`,
		scope, key)
	if err != nil {
		return fmt.Errorf("statestore: remove %s/%s: %w", scope, key, err)
	}
	return nil
}
