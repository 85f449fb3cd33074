package storage

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound is returned when no content exists under a key.
	ErrNotFound = errors.New("storage: content not found")
	// ErrInvalidKey is returned for empty keys or keys escaping the store.
	ErrInvalidKey = errors.New("storage: invalid key")
)

// Storage is byte addressable storage for version binaries. The pipeline
// does not assume atomic multi-key transactions here; consistency is
// enforced at the orchestration layer.
type Storage interface {
	// Exists reports whether content is stored under the key.
	Exists(ctx context.Context, key string) (bool, error)
	// Open returns a reader over the content stored under the key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Write stores the content read from r under the key, overwriting any
	// previous content. It returns the number of bytes written.
	Write(ctx context.Context, key string, r io.Reader) (int64, error)
	// Delete removes the content under the key. Deleting a missing key is
	// not an error.
	Delete(ctx context.Context, key string) error
	// Size returns the size in bytes of the content under the key.
	Size(ctx context.Context, key string) (int64, error)
}
