package blobstore

import (
	"context"
	"errors"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// ErrTooLarge is matched by errors from stores that refuse a blob above their
// size limit. The blob exists; it is just not usable.
var ErrTooLarge = errors.New("blob exceeds size limit")

// Store is an abstraction for reading immutable blobs by name.
type Store interface {
	// Get returns the full content of the named blob.
	Get(ctx context.Context, name string) ([]byte, error)
}

// WritableStore is a Store that can also publish blobs.
type WritableStore interface {
	Store
	// Put writes a blob atomically, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error
}

// StoreFunc adapts a function to the Store interface.
type StoreFunc func(ctx context.Context, name string) ([]byte, error)

// Get calls f(ctx, name).
func (f StoreFunc) Get(ctx context.Context, name string) ([]byte, error) {
	return f(ctx, name)
}
