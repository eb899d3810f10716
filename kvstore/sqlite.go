package kvstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/promptcap/dbopen"
)

// SQLite is a Backend over a single SQLite table.
type SQLite struct {
	DB  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path and applies
// Schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("kvstore: open sqlite: %w", err)
	}
	return NewSQLite(db), nil
}

// NewSQLite wraps an already-open database that has Schema applied.
func NewSQLite(db *sql.DB) *SQLite {
	return &SQLite{DB: db, now: time.Now}
}

func (s *SQLite) Get(ctx context.Context, ns string, keys []string) (map[string][]byte, error) {
	query := `SELECT key, value FROM kv WHERE namespace = ?`
	args := []any{ns}
	if len(keys) > 0 {
		query += ` AND key IN (` + placeholders(len(keys)) + `)`
		for _, k := range keys {
			args = append(args, k)
		}
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("kvstore: get %s: %w", ns, err)
	}
	defer rows.Close()

	out := make(map[string][]byte)
	for rows.Next() {
		var k string
		var v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("kvstore: scan: %w", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (s *SQLite) Set(ctx context.Context, ns string, items map[string][]byte) error {
	now := s.now().UnixMilli()
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO kv (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
		if err != nil {
			return fmt.Errorf("kvstore: prepare set: %w", err)
		}
		defer stmt.Close()
		for k, v := range items {
			if _, err := stmt.ExecContext(ctx, ns, k, v, now); err != nil {
				return fmt.Errorf("kvstore: set %s/%s: %w", ns, k, err)
			}
		}
		return nil
	})
}

func (s *SQLite) Remove(ctx context.Context, ns string, keys []string) error {
	args := []any{ns}
	for _, k := range keys {
		args = append(args, k)
	}
	return dbopen.RunTx(ctx, s.DB, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM kv WHERE namespace = ? AND key IN (`+placeholders(len(keys))+`)`, args...)
		if err != nil {
			return fmt.Errorf("kvstore: remove %s: %w", ns, err)
		}
		return nil
	})
}

func (s *SQLite) Close() error { return s.DB.Close() }

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
