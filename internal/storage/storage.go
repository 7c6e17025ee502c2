// Package storage provides directory-backed file stores for uploads and
// results, plus an optional S3 publisher for completed outputs.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a named file does not exist in a store.
var ErrNotFound = errors.New("storage: file not found")

// ErrUnsafeName is returned when a name would escape the store directory.
var ErrUnsafeName = errors.New("storage: unsafe filename")

// Store is a flat, name-addressed file store scoped to one directory.
type Store interface {
	// Save writes data under name, overwriting any existing file.
	// Returns the absolute path of the stored file.
	Save(ctx context.Context, name string, data io.Reader) (string, error)

	// Open returns a reader for the named file. The caller must close it.
	// Returns ErrNotFound if the file does not exist.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Remove deletes the named file. Removing a missing file is not an error.
	Remove(ctx context.Context, name string) error
}

// Publisher pushes a completed result to an external location and returns
// its public URL.
type Publisher interface {
	Publish(ctx context.Context, key string, data io.Reader) (url string, err error)
}
