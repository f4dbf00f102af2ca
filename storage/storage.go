// Package storage provides the document backends that hold pages, the theme
// and the settings. A backend is a flat key-value space split into
// collections; every value is an opaque JSON document.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a key does not exist in a collection.
var ErrNotFound = errors.New("storage: not found")

// Document is one stored value together with its key.
type Document struct {
	Key  string
	Body []byte
}

// Backend is the key-value abstraction every store is written against.
type Backend interface {
	Get(ctx context.Context, collection, key string) ([]byte, error)
	Put(ctx context.Context, collection, key string, body []byte) error
	Delete(ctx context.Context, collection, key string) error
	List(ctx context.Context, collection string) ([]Document, error)
	Close() error
}

// Drivers understood by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Open returns the backend selected by driver. The file backend stores
// documents under dataDir; the sqlite backend uses dbPath.
func Open(driver, dataDir, dbPath string) (Backend, error) {
	switch driver {
	case "", DriverFile:
		return NewFileBackend(dataDir)
	case DriverSQLite:
		return NewSQLiteBackend(dbPath)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", driver)
	}
}

// ValidKey reports whether key can be used as a document key. Keys become
// file names in the file backend, so anything that could escape the
// collection directory is rejected.
func ValidKey(key string) error {
	switch {
	case key == "":
		return errors.New("empty key")
	case key == "." || key == "..":
		return fmt.Errorf("invalid key %q", key)
	case strings.ContainsAny(key, `/\`):
		return fmt.Errorf("key %q contains a path separator", key)
	case strings.Contains(key, ".."):
		return fmt.Errorf("key %q contains \"..\"", key)
	}
	for _, r := range key {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("key %q contains a control character", key)
		}
	}
	return nil
}

func checkKey(collection, key string) error {
	if err := ValidKey(collection); err != nil {
		return fmt.Errorf("storage: collection: %w", err)
	}
	if err := ValidKey(key); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}
