package hook

import (
	"context"
	"io"
	"sort"

	"github.com/docvault/docvault/internal/model"
	"github.com/docvault/docvault/internal/store"
)

// PreOpen wraps a version's content stream when it is opened for read,
// e.g. for transparent decryption. The returned stream replaces the
// input for the next hook in line.
type PreOpen func(rc io.ReadCloser, version *model.Version) (io.ReadCloser, error)

// PostSave runs after every successful metadata persistence of a version,
// inside the persisting transaction. A failing hook rolls the
// transaction back.
type PostSave func(ctx context.Context, tx store.Store, version *model.Version) error

type preOpenEntry struct {
	priority int
	seq      int
	fn       PreOpen
}

type postSaveEntry struct {
	priority int
	seq      int
	fn       PostSave
}

// Registry holds the pipeline's extension points. It is assembled at
// composition time and must not be mutated once the pipeline is running.
type Registry struct {
	preOpen  []preOpenEntry
	postSave []postSaveEntry
	seq      int
}

func NewRegistry() *Registry {
	return &Registry{}
}

// RegisterPreOpen adds a pre-open hook. Hooks run in ascending priority
// order; equal priorities keep registration order.
func (r *Registry) RegisterPreOpen(priority int, fn PreOpen) {
	r.seq++
	r.preOpen = append(r.preOpen, preOpenEntry{priority: priority, seq: r.seq, fn: fn})
	sort.Slice(r.preOpen, func(i, j int) bool {
		if r.preOpen[i].priority != r.preOpen[j].priority {
			return r.preOpen[i].priority < r.preOpen[j].priority
		}
		return r.preOpen[i].seq < r.preOpen[j].seq
	})
}

// RegisterPostSave adds a post-save hook. Ordering rules match
// RegisterPreOpen.
func (r *Registry) RegisterPostSave(priority int, fn PostSave) {
	r.seq++
	r.postSave = append(r.postSave, postSaveEntry{priority: priority, seq: r.seq, fn: fn})
	sort.Slice(r.postSave, func(i, j int) bool {
		if r.postSave[i].priority != r.postSave[j].priority {
			return r.postSave[i].priority < r.postSave[j].priority
		}
		return r.postSave[i].seq < r.postSave[j].seq
	})
}

// ApplyPreOpen threads the stream through every pre-open hook. On error
// the stream opened so far is closed.
func (r *Registry) ApplyPreOpen(rc io.ReadCloser, version *model.Version) (io.ReadCloser, error) {
	result := rc
	for _, entry := range r.preOpen {
		wrapped, err := entry.fn(result, version)
		if err != nil {
			result.Close()
			return nil, err
		}
		result = wrapped
	}

	return result, nil
}

// RunPostSave invokes every post-save hook. The first failure aborts and
// is returned to the caller, rolling back the enclosing transaction.
func (r *Registry) RunPostSave(ctx context.Context, tx store.Store, version *model.Version) error {
	for _, entry := range r.postSave {
		if err := entry.fn(ctx, tx, version); err != nil {
			return err
		}
	}

	return nil
}
