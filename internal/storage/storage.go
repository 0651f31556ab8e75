// Package storage provides the SQLite persistence layer: conversation
// history, scheduled tasks, notes, and the tool call audit log share one
// database file.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// Store is a SQLite-backed store. All methods are safe for concurrent use;
// the pool is pinned to a single connection so pragmas hold for every query.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// Open opens (creating if needed) the database at path and applies the
// schema. An empty path opens an in-memory database.
func Open(path string, opts ...StoreOption) (*Store, error) {
	dsn := "file::memory:?_pragma=busy_timeout(5000)"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			message_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			ts INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			schedule TEXT NOT NULL,
			payload_json TEXT,
			enabled INTEGER NOT NULL DEFAULT 1,
			last_run INTEGER,
			next_run INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			ts INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tool_calls (
			call_id TEXT PRIMARY KEY,
			session_id TEXT,
			tool TEXT NOT NULL,
			args_json TEXT,
			result_json TEXT,
			ok INTEGER NOT NULL,
			elapsed_ms INTEGER NOT NULL,
			ts INTEGER NOT NULL
		)`,
	}
	for _, ddl := range tables {
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_conversations_session ON conversations(session_id, ts)",
		"CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(enabled, next_run)",
		"CREATE INDEX IF NOT EXISTS idx_notes_ts ON notes(ts)",
		"CREATE INDEX IF NOT EXISTS idx_tool_calls_ts ON tool_calls(ts)",
	}
	for _, idx := range indexes {
		if _, err := s.db.Exec(idx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
