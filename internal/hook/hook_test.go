package hook

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/docvault/docvault/internal/model"
	"github.com/docvault/docvault/internal/store"
)

type recordingCloser struct {
	io.Reader
	closed bool
}

func (r *recordingCloser) Close() error {
	r.closed = true
	return nil
}

func TestRegistry_PostSaveOrdering(t *testing.T) {
	registry := NewRegistry()

	var order []string
	registry.RegisterPostSave(20, func(ctx context.Context, tx store.Store, v *model.Version) error {
		order = append(order, "late")
		return nil
	})
	registry.RegisterPostSave(10, func(ctx context.Context, tx store.Store, v *model.Version) error {
		order = append(order, "early")
		return nil
	})
	registry.RegisterPostSave(10, func(ctx context.Context, tx store.Store, v *model.Version) error {
		order = append(order, "early-second")
		return nil
	})

	err := registry.RunPostSave(context.TODO(), nil, &model.Version{})
	assert.NoError(t, err)
	assert.Equal(t, []string{"early", "early-second", "late"}, order)
}

func TestRegistry_PostSaveAbortsOnError(t *testing.T) {
	registry := NewRegistry()

	failure := errors.New("hook failed")
	ran := false
	registry.RegisterPostSave(1, func(ctx context.Context, tx store.Store, v *model.Version) error {
		return failure
	})
	registry.RegisterPostSave(2, func(ctx context.Context, tx store.Store, v *model.Version) error {
		ran = true
		return nil
	})

	err := registry.RunPostSave(context.TODO(), nil, &model.Version{})
	assert.ErrorIs(t, err, failure)
	assert.False(t, ran)
}

func TestRegistry_PreOpenWrapsInOrder(t *testing.T) {
	registry := NewRegistry()

	registry.RegisterPreOpen(2, func(rc io.ReadCloser, v *model.Version) (io.ReadCloser, error) {
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(strings.NewReader(string(data) + "-outer")), nil
	})
	registry.RegisterPreOpen(1, func(rc io.ReadCloser, v *model.Version) (io.ReadCloser, error) {
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(strings.NewReader(string(data) + "-inner")), nil
	})

	rc, err := registry.ApplyPreOpen(io.NopCloser(strings.NewReader("raw")), &model.Version{})
	assert.NoError(t, err)

	data, err := io.ReadAll(rc)
	assert.NoError(t, err)
	assert.Equal(t, "raw-inner-outer", string(data))
}

func TestRegistry_PreOpenClosesStreamOnError(t *testing.T) {
	registry := NewRegistry()

	failure := errors.New("pre-open failed")
	registry.RegisterPreOpen(1, func(rc io.ReadCloser, v *model.Version) (io.ReadCloser, error) {
		return nil, failure
	})

	src := &recordingCloser{Reader: strings.NewReader("raw")}
	rc, err := registry.ApplyPreOpen(src, &model.Version{})
	assert.ErrorIs(t, err, failure)
	assert.Nil(t, rc)
	assert.True(t, src.closed)
}

func TestRegistry_NoHooksPassThrough(t *testing.T) {
	registry := NewRegistry()

	src := io.NopCloser(strings.NewReader("raw"))
	rc, err := registry.ApplyPreOpen(src, &model.Version{})
	assert.NoError(t, err)

	data, err := io.ReadAll(rc)
	assert.NoError(t, err)
	assert.Equal(t, "raw", string(data))

	assert.NoError(t, registry.RunPostSave(context.TODO(), nil, &model.Version{}))
}
