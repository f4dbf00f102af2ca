package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteBackend stores every document as a row of a single table.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (or creates) the SQLite database at path, ensures
// the data directory exists, and creates the documents table.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets the generator read while the API writes; busy_timeout makes
	// writers wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	b := &SQLiteBackend{db: db}
	if err := b.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

func (b *SQLiteBackend) ensureSchema() error {
	_, err := b.db.Exec(`
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    key TEXT NOT NULL,
    body BLOB NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (collection, key)
);
`)
	return err
}

// Get returns the document stored under key.
func (b *SQLiteBackend) Get(ctx context.Context, collection, key string) ([]byte, error) {
	if err := checkKey(collection, key); err != nil {
		return nil, err
	}
	var body []byte
	err := b.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE collection = ? AND key = ?`, collection, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return body, err
}

// Put upserts the document stored under key.
func (b *SQLiteBackend) Put(ctx context.Context, collection, key string, body []byte) error {
	if err := checkKey(collection, key); err != nil {
		return err
	}
	_, err := b.db.ExecContext(ctx, `INSERT OR REPLACE INTO documents (collection, key, body, updated_at) VALUES (?, ?, ?, ?)`,
		collection, key, body, time.Now().UTC().Format(time.RFC3339))
	return err
}

// Delete removes the document stored under key.
func (b *SQLiteBackend) Delete(ctx context.Context, collection, key string) error {
	if err := checkKey(collection, key); err != nil {
		return err
	}
	res, err := b.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND key = ?`, collection, key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns every document of collection ordered by key.
func (b *SQLiteBackend) List(ctx context.Context, collection string) ([]Document, error) {
	if err := ValidKey(collection); err != nil {
		return nil, err
	}
	rows, err := b.db.QueryContext(ctx, `SELECT key, body FROM documents WHERE collection = ? ORDER BY key`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.Key, &d.Body); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Close closes the underlying database connection.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
