package kvstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a Backend over a pgx connection pool, for deployments that
// share the prompt store between several instances.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to databaseURL and ensures PostgresSchema exists.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("kvstore: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("kvstore: ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, PostgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("kvstore: apply schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Get(ctx context.Context, ns string, keys []string) (map[string][]byte, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if len(keys) == 0 {
		rows, err = p.pool.Query(ctx,
			`SELECT key, value FROM promptcap_kv WHERE namespace = $1`, ns)
	} else {
		rows, err = p.pool.Query(ctx,
			`SELECT key, value FROM promptcap_kv WHERE namespace = $1 AND key = ANY($2)`, ns, keys)
	}
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

func (p *Postgres) Set(ctx context.Context, ns string, items map[string][]byte) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("kvstore: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for k, v := range items {
		_, err := tx.Exec(ctx, `
			INSERT INTO promptcap_kv (namespace, key, value, updated_at) VALUES ($1, $2, $3, now())
			ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
			ns, k, string(v))
		if err != nil {
			return fmt.Errorf("kvstore: set %s/%s: %w", ns, k, err)
		}
	}
	return tx.Commit(ctx)
}

func (p *Postgres) Remove(ctx context.Context, ns string, keys []string) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM promptcap_kv WHERE namespace = $1 AND key = ANY($2)`, ns, keys)
	if err != nil {
		return fmt.Errorf("kvstore: remove %s: %w", ns, err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
