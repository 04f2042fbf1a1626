// Package store is the persisted state layer for linkreach: settings,
// message templates, quota counters, the contact dedup ledger and the
// activity log, all in one SQLite database.
//
// The autopilot runtime is the only writer and runs single-threaded, so
// every accessor follows read-full-object → mutate → write-full-object
// without extra locking. Background tasks (warmup advance, sync sweep)
// funnel through the same runtime loop and never overlap a write.
//
// Usage:
//
//	import _ "modernc.org/sqlite"
//	st, err := store.Open("linkreach.db")
//
// In tests, storetest.Open provides an in-memory instance.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/linkreach/idgen"
)

// Store wraps the linkreach database.
type Store struct {
	DB *sql.DB

	// Now is the clock used for day/week keys and timestamps.
	// Overridable in tests to exercise rollover behavior.
	Now func() time.Time

	newTemplateID idgen.Generator
}

// Option customises Open behaviour.
type Option func(*config)

type config struct {
	busyTimeout int
	mkdirAll    bool
	ping        bool
}

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeout = ms } }

// WithMkdirAll creates parent directories of the database path before opening.
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

// WithoutPing skips the db.Ping() verification after opening.
func WithoutPing() Option { return func(c *config) { c.ping = false } }

// Open opens (or creates) the linkreach database at path with WAL and the
// other production pragmas applied, and ensures the schema exists. The
// caller must blank-import a "sqlite" driver (modernc.org/sqlite).
func Open(path string, opts ...Option) (*Store, error) {
	cfg := config{busyTimeout: 10_000, ping: true}
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.mkdirAll && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout),
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	if cfg.ping {
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: ping: %w", err)
		}
	}

	return &Store{
		DB:            db,
		Now:           time.Now,
		newTemplateID: idgen.Prefixed("tpl_", idgen.Default),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.DB.Close()
}
