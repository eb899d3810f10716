// Package dbopen opens the SQLite files backing the prompt store and the
// compile cache, with WAL, a busy timeout and NORMAL sync applied up front.
//
//	import _ "modernc.org/sqlite"
//	db, err := dbopen.Open("promptcap.db", dbopen.WithMkdirAll(), dbopen.WithSchema(kvstore.Schema))
//
// In tests:
//
//	db := dbopen.OpenMemory(t, dbopen.WithSchema(kvstore.Schema))
package dbopen

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"testing"
)

const memory = ":memory:"

type config struct {
	pragmas  []string
	mkdirAll bool
	schemas  []string
}

// Option customises Open behaviour.
type Option func(*config)

// WithPragma adds a connection pragma in the driver's name(value) form,
// e.g. "foreign_keys(1)". It is applied to every pooled connection.
func WithPragma(p string) Option { return func(c *config) { c.pragmas = append(c.pragmas, p) } }

// WithMkdirAll creates parent directories of the database path before opening.
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

// WithSchema queues inline SQL to execute once the database is open.
func WithSchema(s string) Option { return func(c *config) { c.schemas = append(c.schemas, s) } }

// dsn encodes the pragmas as _pragma query parameters so that the modernc
// driver runs them on each new connection, not only the first.
func dsn(path string, pragmas []string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return path + "?" + q.Encode()
}

// Open opens the SQLite database at path using the modernc "sqlite" driver,
// which the caller must blank-import. Every connection gets busy_timeout
// 10s and synchronous NORMAL; files also get WAL.
func Open(path string, opts ...Option) (*sql.DB, error) {
	cfg := config{pragmas: []string{"busy_timeout(10000)", "synchronous(NORMAL)"}}
	if path != memory {
		cfg.pragmas = append(cfg.pragmas, "journal_mode(WAL)")
	}
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.mkdirAll && path != memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("dbopen: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn(path, cfg.pragmas))
	if err != nil {
		return nil, fmt.Errorf("dbopen: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbopen: ping %s: %w", path, err)
	}
	for i, s := range cfg.schemas {
		if _, err := db.Exec(s); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: schema %d: %w", i, err)
		}
	}
	return db, nil
}

// OpenMemory opens an in-memory database for tests and closes it on
// cleanup. The pool is capped at one connection: each ":memory:"
// connection would otherwise be a separate, empty database.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(memory, opts...)
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}
