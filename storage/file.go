package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const docExt = ".json"

// FileBackend keeps one JSON file per key at <root>/<collection>/<key>.json.
type FileBackend struct {
	root string
}

// NewFileBackend creates the root directory if needed.
func NewFileBackend(root string) (*FileBackend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}
	return &FileBackend{root: root}, nil
}

func (b *FileBackend) path(collection, key string) string {
	return filepath.Join(b.root, collection, key+docExt)
}

// Get reads the document stored under key.
func (b *FileBackend) Get(_ context.Context, collection, key string) ([]byte, error) {
	if err := checkKey(collection, key); err != nil {
		return nil, err
	}
	body, err := os.ReadFile(b.path(collection, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return body, err
}

// Put writes body under key, replacing any previous document. The file is
// written to a temporary name first and renamed into place.
func (b *FileBackend) Put(_ context.Context, collection, key string, body []byte) error {
	if err := checkKey(collection, key); err != nil {
		return err
	}
	dir := filepath.Join(b.root, collection)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: create %s: %w", collection, err)
	}
	tmp, err := os.CreateTemp(dir, "."+key+".*.tmp")
	if err != nil {
		return fmt.Errorf("storage: write %s/%s: %w", collection, key, err)
	}
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("storage: write %s/%s: %w", collection, key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("storage: write %s/%s: %w", collection, key, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), b.path(collection, key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("storage: write %s/%s: %w", collection, key, err)
	}
	return nil
}

// Delete removes the document stored under key.
func (b *FileBackend) Delete(_ context.Context, collection, key string) error {
	if err := checkKey(collection, key); err != nil {
		return err
	}
	err := os.Remove(b.path(collection, key))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

// List returns every document in collection in directory order. A
// collection that was never written to is empty.
func (b *FileBackend) List(_ context.Context, collection string) ([]Document, error) {
	if err := ValidKey(collection); err != nil {
		return nil, fmt.Errorf("storage: collection: %w", err)
	}
	dir := filepath.Join(b.root, collection)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []Document{}, nil
	}
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, docExt) || strings.HasPrefix(name, ".") {
			continue
		}
		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{Key: strings.TrimSuffix(name, docExt), Body: body})
	}
	return docs, nil
}

// Close is a no-op for the file backend.
func (b *FileBackend) Close() error {
	return nil
}
