package kvstore

// Schema is the SQLite DDL for the key-value table.
const Schema = `
CREATE TABLE IF NOT EXISTS kv (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (namespace, key)
);
`

// PostgresSchema is the Postgres DDL for the key-value table.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS promptcap_kv (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (namespace, key)
);
`
