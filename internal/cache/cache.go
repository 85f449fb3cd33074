package cache

import (
	"context"
	"errors"
	"io"
)

// ErrMiss is returned by Get when no artifact exists under the name.
var ErrMiss = errors.New("cache: artifact not found")

// Writer is a scoped acquisition for a single artifact. The artifact
// becomes visible atomically on Close; an Abort, or a Close after a
// failed Write, guarantees the partial artifact is never visible.
type Writer interface {
	io.WriteCloser
	// Abort discards everything written so far. Safe to call after Close,
	// where it is a no-op.
	Abort() error
}

// Cache is a partitioned store of named, recreatable artifacts derived
// from version content. Losing a partition never loses information, only
// recomputation cost. Concurrent producers for the same artifact name are
// resolved last-writer-wins; readers never observe partial artifacts.
type Cache interface {
	// Get returns the artifact stored under name in the partition, or
	// ErrMiss when absent.
	Get(ctx context.Context, partition, name string) (io.ReadCloser, error)
	// Create starts writing the artifact stored under name in the
	// partition. The previous artifact, if any, stays visible until the
	// returned Writer is closed successfully.
	Create(ctx context.Context, partition, name string) (Writer, error)
	// Delete removes a single artifact. Removing a missing artifact is not
	// an error.
	Delete(ctx context.Context, partition, name string) error
	// Purge removes every artifact in the partition. Idempotent.
	Purge(ctx context.Context, partition string) error
	// Partitions lists the partitions currently holding artifacts.
	Partitions(ctx context.Context) ([]string, error)
}
