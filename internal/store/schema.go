// Package store provides SQLite-backed persistence for packages, media
// items, documents, and relationships.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS mags (
	id         TEXT PRIMARY KEY,
	file_name  TEXT NOT NULL,
	file_size  INTEGER NOT NULL DEFAULT 0,
	total_files INTEGER NOT NULL DEFAULT 0,
	checksum   TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS media_items (
	id              TEXT PRIMARY KEY,
	package_id      TEXT NOT NULL REFERENCES mags(id),
	file_name       TEXT NOT NULL,
	size            INTEGER NOT NULL DEFAULT 0,
	mime_type       TEXT NOT NULL DEFAULT '',
	storage_path    TEXT NOT NULL DEFAULT '',
	file_url        TEXT NOT NULL DEFAULT '',
	role            TEXT NOT NULL DEFAULT 'attachment',
	association_tag TEXT NOT NULL DEFAULT 'outros',
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS documents (
	id              TEXT PRIMARY KEY,
	package_id      TEXT NOT NULL REFERENCES mags(id),
	file_name       TEXT NOT NULL,
	title           TEXT NOT NULL DEFAULT '',
	content         TEXT NOT NULL DEFAULT '',
	association_tag TEXT NOT NULL DEFAULT 'outros',
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS relationships (
	id          TEXT PRIMARY KEY,
	source_id   TEXT NOT NULL,
	source_kind TEXT NOT NULL,
	target_id   TEXT NOT NULL,
	target_kind TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(source_id, target_id)
);

CREATE TABLE IF NOT EXISTS ingest_history (
	id             TEXT PRIMARY KEY,
	package_id     TEXT NOT NULL,
	file_name      TEXT NOT NULL,
	audio_count    INTEGER NOT NULL DEFAULT 0,
	markdown_count INTEGER NOT NULL DEFAULT 0,
	total_files    INTEGER NOT NULL DEFAULT 0,
	origin         TEXT NOT NULL DEFAULT 'server',
	saved_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_media_package ON media_items(package_id);
CREATE INDEX IF NOT EXISTS idx_documents_package ON documents(package_id);
CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_id);
CREATE INDEX IF NOT EXISTS idx_relationships_target ON relationships(target_id);
`

// DB wraps a sql.DB with store-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
