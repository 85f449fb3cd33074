package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/docvault/docvault/internal/cache"
	"github.com/docvault/docvault/internal/convert"
	"github.com/docvault/docvault/internal/event"
	"github.com/docvault/docvault/internal/hook"
	"github.com/docvault/docvault/internal/model"
	"github.com/docvault/docvault/internal/storage"
	"github.com/docvault/docvault/internal/store"
	"github.com/docvault/docvault/internal/tester"
)

// fakeConverter paginates by fixed page count and renders a fixed pdf
// payload, standing in for pdfcpu in pipeline tests.
type fakeConverter struct {
	pages      int
	pdf        string
	toPDFCalls int
	officeOnly bool
}

func (f *fakeConverter) PageCount(ctx context.Context, r io.Reader, mimetype string) (int, error) {
	if mimetype == "" {
		return 0, convert.ErrPageCountUnsupported
	}
	return f.pages, nil
}

func (f *fakeConverter) ToPDF(ctx context.Context, r io.Reader, mimetype string) (io.ReadCloser, error) {
	f.toPDFCalls++
	if f.officeOnly {
		return nil, convert.ErrInvalidOfficeFormat
	}
	return io.NopCloser(strings.NewReader(f.pdf)), nil
}

// captureSink records every emitted event.
type captureSink struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *captureSink) Emit(ctx context.Context, ev event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *captureSink) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var names []string
	for _, ev := range c.events {
		names = append(names, ev.Name)
	}
	return names
}

type pipeline struct {
	store     store.Store
	blobs     storage.Storage
	artifacts cache.Cache
	converter *fakeConverter
	sink      *captureSink
	service   *VersionService
}

func newPipeline(t *testing.T, name string, opts ...Option) *pipeline {
	t.Helper()

	tester.RemoveDBFile()
	tester.Setup()

	blobs, err := storage.NewFilesystem(tester.ScratchDir("svc-content-" + name))
	assert.NoError(t, err)

	artifacts, err := cache.NewFilesystem(tester.ScratchDir("svc-cache-" + name))
	assert.NoError(t, err)

	converter := &fakeConverter{pages: 3, pdf: "normalized pdf bytes"}
	sink := &captureSink{}

	st := store.NewGormStore(tester.TestDB())
	opts = append([]Option{WithEvents(sink)}, opts...)
	svc := NewVersionService(st, blobs, artifacts, converter, opts...)

	return &pipeline{
		store:     st,
		blobs:     blobs,
		artifacts: artifacts,
		converter: converter,
		sink:      sink,
		service:   svc,
	}
}

func (p *pipeline) newDocument(t *testing.T, label string) *model.Document {
	t.Helper()

	doc := &model.Document{ID: uuid.New().String(), Label: label, IsStub: true}
	assert.NoError(t, p.store.CreateDocument(context.TODO(), doc))
	return doc
}

func TestVersionService_CreateVersion(t *testing.T) {
	p := newPipeline(t, "create")
	doc := p.newDocument(t, "")

	version, err := p.service.CreateVersion(context.TODO(), uuid.MustParse(doc.ID), "report.txt", strings.NewReader("plain text content"), "initial upload", "alice")
	assert.NoError(t, err)
	assert.NotNil(t, version)

	assert.Equal(t, doc.ID, version.DocumentID)
	assert.Equal(t, "initial upload", version.Comment)
	assert.NotEmpty(t, version.Checksum)
	assert.Equal(t, "text/plain", version.Mimetype)
	assert.Equal(t, "utf-8", version.Encoding)
	assert.Equal(t, 3, version.PageCount())

	pages, err := p.store.ListPages(context.TODO(), uuid.MustParse(version.ID))
	assert.NoError(t, err)
	assert.Len(t, pages, 3)
	for i, page := range pages {
		assert.Equal(t, i+1, page.PageNumber)
	}

	exists, err := p.service.Exists(context.TODO(), version)
	assert.NoError(t, err)
	assert.True(t, exists)

	// The first version finalizes the stub and titles it after the file.
	saved, err := p.store.GetDocument(context.TODO(), uuid.MustParse(doc.ID))
	assert.NoError(t, err)
	assert.False(t, saved.IsStub)
	assert.Equal(t, "report.txt", saved.Label)

	assert.Equal(t, []string{event.VersionCreated, event.VersionUploaded, event.DocumentCreated}, p.sink.names())
}

func TestVersionService_CreateSecondVersion(t *testing.T) {
	p := newPipeline(t, "second")
	doc := p.newDocument(t, "contract")

	_, err := p.service.CreateVersion(context.TODO(), uuid.MustParse(doc.ID), "v1.txt", strings.NewReader("first"), "", "alice")
	assert.NoError(t, err)

	_, err = p.service.CreateVersion(context.TODO(), uuid.MustParse(doc.ID), "v2.txt", strings.NewReader("second"), "", "alice")
	assert.NoError(t, err)

	saved, err := p.store.GetDocument(context.TODO(), uuid.MustParse(doc.ID))
	assert.NoError(t, err)
	assert.Equal(t, "contract", saved.Label)

	count, err := p.store.CountVersions(context.TODO(), uuid.MustParse(doc.ID))
	assert.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// DocumentCreated only fires for the first version.
	names := p.sink.names()
	created := 0
	for _, name := range names {
		if name == event.DocumentCreated {
			created++
		}
	}
	assert.Equal(t, 1, created)
}

func TestVersionService_CreateVersionUnknownDocument(t *testing.T) {
	p := newPipeline(t, "unknown-doc")

	_, err := p.service.CreateVersion(context.TODO(), uuid.New(), "f.txt", strings.NewReader("content"), "", "alice")
	assert.Error(t, err)
	assert.Empty(t, p.sink.names())
}

func TestVersionService_CreateVersionRollback(t *testing.T) {
	registry := hook.NewRegistry()
	failure := errors.New("post-save rejected")
	registry.RegisterPostSave(1, func(ctx context.Context, tx store.Store, v *model.Version) error {
		return failure
	})

	p := newPipeline(t, "rollback", WithHooks(registry))
	doc := p.newDocument(t, "contract")

	version, err := p.service.CreateVersion(context.TODO(), uuid.MustParse(doc.ID), "f.txt", strings.NewReader("content"), "", "alice")
	assert.Nil(t, version)

	var ingestErr *IngestionError
	assert.ErrorAs(t, err, &ingestErr)
	assert.ErrorIs(t, err, failure)
	assert.Equal(t, doc.ID, ingestErr.DocumentID)

	// Nothing durable survives: no rows, no binary, no events.
	count, err := p.store.CountVersions(context.TODO(), uuid.MustParse(doc.ID))
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)

	exists, err := p.blobs.Exists(context.TODO(), doc.ID+"/"+ingestErr.VersionID)
	assert.NoError(t, err)
	assert.False(t, exists)

	saved, err := p.store.GetDocument(context.TODO(), uuid.MustParse(doc.ID))
	assert.NoError(t, err)
	assert.True(t, saved.IsStub)

	assert.Empty(t, p.sink.names())
}

func TestVersionService_UnsniffableContent(t *testing.T) {
	p := newPipeline(t, "unsniffable", WithSniffer(func(r io.Reader) (string, string) {
		return "", ""
	}))
	doc := p.newDocument(t, "blob")

	version, err := p.service.CreateVersion(context.TODO(), uuid.MustParse(doc.ID), "blob.bin", strings.NewReader("opaque"), "", "alice")
	assert.NoError(t, err)

	// Detection degraded, blank values persisted, pagination falls back
	// to a single page.
	assert.Equal(t, "", version.Mimetype)
	assert.Equal(t, "", version.Encoding)
	assert.Equal(t, 1, version.PageCount())

	saved, err := p.store.GetVersion(context.TODO(), uuid.MustParse(version.ID))
	assert.NoError(t, err)
	assert.Equal(t, "", saved.Mimetype)
	assert.NotEmpty(t, saved.Checksum)
}

func TestVersionService_Open(t *testing.T) {
	registry := hook.NewRegistry()
	registry.RegisterPreOpen(1, func(rc io.ReadCloser, v *model.Version) (io.ReadCloser, error) {
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, err
		}
		rc.Close()
		return io.NopCloser(strings.NewReader("hooked:" + string(data))), nil
	})

	p := newPipeline(t, "open", WithHooks(registry))
	doc := p.newDocument(t, "contract")

	version, err := p.service.CreateVersion(context.TODO(), uuid.MustParse(doc.ID), "f.txt", strings.NewReader("content"), "", "alice")
	assert.NoError(t, err)

	rc, err := p.service.Open(context.TODO(), version, false)
	assert.NoError(t, err)
	data, err := io.ReadAll(rc)
	assert.NoError(t, err)
	rc.Close()
	assert.Equal(t, "hooked:content", string(data))

	rc, err = p.service.Open(context.TODO(), version, true)
	assert.NoError(t, err)
	data, err = io.ReadAll(rc)
	assert.NoError(t, err)
	rc.Close()
	assert.Equal(t, "content", string(data))

	assert.NoError(t, p.blobs.Delete(context.TODO(), version.StorageKey))
	_, err = p.service.Open(context.TODO(), version, false)
	assert.ErrorIs(t, err, ErrContentMissing)
}

func TestVersionService_IntermediateFile(t *testing.T) {
	p := newPipeline(t, "intermediate")
	doc := p.newDocument(t, "contract")

	version, err := p.service.CreateVersion(context.TODO(), uuid.MustParse(doc.ID), "f.txt", strings.NewReader("content"), "", "alice")
	assert.NoError(t, err)

	rc, err := p.service.IntermediateFile(context.TODO(), version)
	assert.NoError(t, err)
	data, err := io.ReadAll(rc)
	assert.NoError(t, err)
	rc.Close()
	assert.Equal(t, "normalized pdf bytes", string(data))
	assert.Equal(t, 1, p.converter.toPDFCalls)

	// Second read is served from the cache without converting again.
	rc, err = p.service.IntermediateFile(context.TODO(), version)
	assert.NoError(t, err)
	data, err = io.ReadAll(rc)
	assert.NoError(t, err)
	rc.Close()
	assert.Equal(t, "normalized pdf bytes", string(data))
	assert.Equal(t, 1, p.converter.toPDFCalls)

	// Invalidation forces recomputation.
	assert.NoError(t, p.service.InvalidateCache(context.TODO(), version))
	rc, err = p.service.IntermediateFile(context.TODO(), version)
	assert.NoError(t, err)
	rc.Close()
	assert.Equal(t, 2, p.converter.toPDFCalls)
}

func TestVersionService_IntermediateFileOfficeFallback(t *testing.T) {
	p := newPipeline(t, "intermediate-office")
	p.converter.officeOnly = true

	doc := p.newDocument(t, "contract")
	version, err := p.service.CreateVersion(context.TODO(), uuid.MustParse(doc.ID), "f.txt", strings.NewReader("content"), "", "alice")
	assert.NoError(t, err)

	// Unconvertible content degrades to the original binary.
	rc, err := p.service.IntermediateFile(context.TODO(), version)
	assert.NoError(t, err)
	data, err := io.ReadAll(rc)
	assert.NoError(t, err)
	rc.Close()
	assert.Equal(t, "content", string(data))
}

func TestVersionService_DeleteVersion(t *testing.T) {
	p := newPipeline(t, "delete")
	doc := p.newDocument(t, "contract")

	version, err := p.service.CreateVersion(context.TODO(), uuid.MustParse(doc.ID), "f.txt", strings.NewReader("content"), "", "alice")
	assert.NoError(t, err)

	// Warm the cache so deletion has a partition to purge.
	rc, err := p.service.IntermediateFile(context.TODO(), version)
	assert.NoError(t, err)
	rc.Close()

	assert.NoError(t, p.service.DeleteVersion(context.TODO(), version))

	_, err = p.store.GetVersion(context.TODO(), uuid.MustParse(version.ID))
	assert.Error(t, err)

	pages, err := p.store.ListPages(context.TODO(), uuid.MustParse(version.ID))
	assert.NoError(t, err)
	assert.Empty(t, pages)

	exists, err := p.blobs.Exists(context.TODO(), version.StorageKey)
	assert.NoError(t, err)
	assert.False(t, exists)

	_, err = p.artifacts.Get(context.TODO(), version.CachePartition(), "intermediate_file")
	assert.ErrorIs(t, err, cache.ErrMiss)
}

func TestVersionService_Revert(t *testing.T) {
	p := newPipeline(t, "revert")
	doc := p.newDocument(t, "contract")

	var versions []*model.Version
	for _, content := range []string{"first", "second", "third"} {
		version, err := p.service.CreateVersion(context.TODO(), uuid.MustParse(doc.ID), "f.txt", strings.NewReader(content), "", "alice")
		assert.NoError(t, err)
		versions = append(versions, version)
	}

	// Pin distinct timestamps so ordering is unambiguous.
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, version := range versions {
		row, err := p.store.GetVersion(context.TODO(), uuid.MustParse(version.ID))
		assert.NoError(t, err)
		row.Timestamp = base.Add(time.Duration(i) * time.Minute)
		assert.NoError(t, p.store.SaveVersion(context.TODO(), row))
	}

	assert.NoError(t, p.service.Revert(context.TODO(), uuid.MustParse(versions[1].ID), "alice"))

	remaining, err := p.store.ListVersions(context.TODO(), uuid.MustParse(doc.ID))
	assert.NoError(t, err)
	assert.Len(t, remaining, 2)
	assert.Equal(t, versions[0].ID, remaining[0].ID)
	assert.Equal(t, versions[1].ID, remaining[1].ID)

	// The newer version's binary is gone, the older ones stay readable.
	exists, err := p.blobs.Exists(context.TODO(), versions[2].StorageKey)
	assert.NoError(t, err)
	assert.False(t, exists)

	rc, err := p.service.Open(context.TODO(), versions[1], false)
	assert.NoError(t, err)
	assert.NoError(t, rc.Close())

	assert.Contains(t, p.sink.names(), event.VersionReverted)
}

func TestVersionService_FixOrientation(t *testing.T) {
	p := newPipeline(t, "orientation", WithOrientationDetector(rotatedFirstPage{}))
	p.converter.pages = 2

	doc := p.newDocument(t, "contract")
	version, err := p.service.CreateVersion(context.TODO(), uuid.MustParse(doc.ID), "f.txt", strings.NewReader("content"), "", "alice")
	assert.NoError(t, err)

	pages, err := p.store.ListPages(context.TODO(), uuid.MustParse(version.ID))
	assert.NoError(t, err)
	assert.Len(t, pages, 2)

	list, err := pages[0].TransformationList()
	assert.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, model.TransformationRotate, list[0].Name)
	assert.Equal(t, `{"degrees": 270}`, list[0].Arguments)

	list, err = pages[1].TransformationList()
	assert.NoError(t, err)
	assert.Empty(t, list)
}

// rotatedFirstPage reports page 1 rotated by 90 degrees, everything else
// upright.
type rotatedFirstPage struct{}

func (rotatedFirstPage) Detect(ctx context.Context, r io.Reader, pageNumber int) (int, error) {
	if pageNumber == 1 {
		return 90, nil
	}
	return 0, nil
}

func TestVersionService_UpdatePageCountReplacesSet(t *testing.T) {
	p := newPipeline(t, "repaginate")
	doc := p.newDocument(t, "contract")

	version, err := p.service.CreateVersion(context.TODO(), uuid.MustParse(doc.ID), "f.txt", strings.NewReader("content"), "", "alice")
	assert.NoError(t, err)
	assert.Equal(t, 3, version.PageCount())

	old, err := p.store.ListPages(context.TODO(), uuid.MustParse(version.ID))
	assert.NoError(t, err)
	assert.Len(t, old, 3)

	// Re-derivation on an existing version swaps the full set, reusing
	// the same page numbers.
	p.converter.pages = 2
	assert.NoError(t, p.service.UpdatePageCount(context.TODO(), version))

	pages, err := p.store.ListPages(context.TODO(), uuid.MustParse(version.ID))
	assert.NoError(t, err)
	assert.Len(t, pages, 2)

	oldIDs := make(map[string]bool, len(old))
	for _, page := range old {
		oldIDs[page.ID] = true
	}
	for i, page := range pages {
		assert.Equal(t, i+1, page.PageNumber)
		assert.False(t, oldIDs[page.ID])
	}

	// Idempotent: running again with the same count still succeeds.
	assert.NoError(t, p.service.UpdatePageCount(context.TODO(), version))
	pages, err = p.store.ListPages(context.TODO(), uuid.MustParse(version.ID))
	assert.NoError(t, err)
	assert.Len(t, pages, 2)
}

func TestVersionService_ConcurrentIngestion(t *testing.T) {
	p := newPipeline(t, "concurrent")
	doc := p.newDocument(t, "contract")

	var wg sync.WaitGroup
	results := make([]*model.Version, 2)
	errs := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = p.service.CreateVersion(
				context.TODO(),
				uuid.MustParse(doc.ID),
				fmt.Sprintf("f%d.txt", i),
				strings.NewReader(fmt.Sprintf("content %d", i)),
				"",
				"alice",
			)
		}(i)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.NotEqual(t, results[0].ID, results[1].ID)
	assert.NotEqual(t, results[0].Timestamp, results[1].Timestamp)

	versions, err := p.store.ListVersions(context.TODO(), uuid.MustParse(doc.ID))
	assert.NoError(t, err)
	assert.Len(t, versions, 2)
	assert.True(t, versions[0].Timestamp.Before(versions[1].Timestamp))

	// Page sets are disjoint per version.
	seen := map[string]bool{}
	for _, version := range results {
		pages, err := p.store.ListPages(context.TODO(), uuid.MustParse(version.ID))
		assert.NoError(t, err)
		assert.Len(t, pages, 3)
		for _, page := range pages {
			assert.False(t, seen[page.ID])
			seen[page.ID] = true
			assert.Equal(t, version.ID, page.VersionID)
		}
	}
}

func TestVersionService_UpdateChecksumMissingContent(t *testing.T) {
	p := newPipeline(t, "recompute")
	doc := p.newDocument(t, "contract")

	version, err := p.service.CreateVersion(context.TODO(), uuid.MustParse(doc.ID), "f.txt", strings.NewReader("content"), "", "alice")
	assert.NoError(t, err)

	assert.NoError(t, p.blobs.Delete(context.TODO(), version.StorageKey))

	// Recompute on desynchronized storage is a no-op, not an error.
	before := version.Checksum
	assert.NoError(t, p.service.UpdateChecksum(context.TODO(), version))
	assert.Equal(t, before, version.Checksum)

	assert.NoError(t, p.service.UpdateMimetype(context.TODO(), version))
}

func TestVersionService_SaveCopy(t *testing.T) {
	p := newPipeline(t, "savecopy")
	doc := p.newDocument(t, "contract")

	version, err := p.service.CreateVersion(context.TODO(), uuid.MustParse(doc.ID), "f.txt", strings.NewReader("exported content"), "", "alice")
	assert.NoError(t, err)

	path := tester.ScratchDir("svc-export") + "/copy.txt"
	assert.NoError(t, p.service.SaveCopy(context.TODO(), version, path))

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, "exported content", string(data))
}
