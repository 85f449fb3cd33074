package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/docvault/docvault/internal/cache"
	"github.com/docvault/docvault/internal/convert"
	"github.com/docvault/docvault/internal/event"
	"github.com/docvault/docvault/internal/fingerprint"
	"github.com/docvault/docvault/internal/hook"
	"github.com/docvault/docvault/internal/metrics"
	"github.com/docvault/docvault/internal/model"
	"github.com/docvault/docvault/internal/storage"
	"github.com/docvault/docvault/internal/store"
)

// intermediateArtifact is the fixed cache entry name of the normalized
// PDF rendering of a version.
const intermediateArtifact = "intermediate_file"

// Option configures optional collaborators of the VersionService.
type Option func(*VersionService)

// WithHooks sets the hook registry invoked on open and on save.
func WithHooks(r *hook.Registry) Option {
	return func(s *VersionService) {
		s.hooks = r
	}
}

// WithEvents sets the lifecycle event sink.
func WithEvents(sink event.Sink) Option {
	return func(s *VersionService) {
		s.events = sink
	}
}

// WithMetrics sets the pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *VersionService) {
		s.metrics = m
	}
}

// WithOrientationDetector enables the orientation correction stage using
// the given detector.
func WithOrientationDetector(d convert.OrientationDetector) Option {
	return func(s *VersionService) {
		s.orienter = d
		s.fixOrientation = true
	}
}

// WithHash overrides the content fingerprint function.
func WithHash(h fingerprint.Hash) Option {
	return func(s *VersionService) {
		s.hash = h
	}
}

// WithSniffer overrides the mimetype sniffer.
func WithSniffer(sniff fingerprint.Sniff) Option {
	return func(s *VersionService) {
		s.sniff = sniff
	}
}

// NewVersionService creates the version lifecycle manager.
func NewVersionService(st store.Store, blobs storage.Storage, artifacts cache.Cache, converter convert.Converter, opts ...Option) *VersionService {
	service := &VersionService{
		store:     st,
		blobs:     blobs,
		artifacts: artifacts,
		converter: converter,
		orienter:  convert.NullOrientationDetector{},
		hooks:     hook.NewRegistry(),
		events:    event.NewNopSink(),
		hash:      fingerprint.Checksum,
		sniff:     fingerprint.Detect,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// VersionService drives the version ingestion pipeline end-to-end and
// owns the atomicity boundary around version metadata.
type VersionService struct {
	store          store.Store
	blobs          storage.Storage
	artifacts      cache.Cache
	converter      convert.Converter
	orienter       convert.OrientationDetector
	hooks          *hook.Registry
	events         event.Sink
	metrics        *metrics.Metrics
	hash           fingerprint.Hash
	sniff          fingerprint.Sniff
	fixOrientation bool
}

// CreateVersion ingests an uploaded binary as a new version of the
// document. The binary is persisted to the content store first; all
// metadata derivation then happens inside one transaction. On any fatal
// error the transaction rolls back and the stored binary is removed, so
// no partial version survives.
func (s *VersionService) CreateVersion(ctx context.Context, documentID uuid.UUID, filename string, r io.Reader, comment, actor string) (*model.Version, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	version := &model.Version{
		ID:         uuid.New().String(),
		DocumentID: doc.ID,
		Comment:    comment,
	}
	version.StorageKey = doc.ID + "/" + version.ID

	logrus.Infof("creating new version for document: %s", doc.ID)

	if _, err := s.blobs.Write(ctx, version.StorageKey, r); err != nil {
		s.metrics.Ingest("failure")
		return nil, &IngestionError{DocumentID: doc.ID, VersionID: version.ID, Err: fmt.Errorf("write content: %w", err)}
	}

	first := false
	err = s.store.Transaction(ctx, func(tx store.Store) error {
		if err := tx.CreateVersion(ctx, version); err != nil {
			return err
		}
		if err := s.hooks.RunPostSave(ctx, tx, version); err != nil {
			return err
		}

		if err := s.updateChecksum(ctx, tx, version); err != nil {
			return err
		}

		if err := s.updateMimetype(ctx, tx, version); err != nil {
			return err
		}

		if err := s.updatePageCount(ctx, tx, version); err != nil {
			return err
		}

		if s.fixOrientation {
			s.fixPagesOrientation(ctx, tx, version)
		}

		count, err := tx.CountVersions(ctx, documentID)
		if err != nil {
			return err
		}
		first = count == 1

		if first {
			doc.IsStub = false
			if doc.Label == "" {
				doc.Label = filename
			}
			// Saved directly through the store so no document level
			// events re-fire.
			if err := tx.SaveDocument(ctx, doc); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		logrus.Errorf("error creating new version for document %s: %v", doc.ID, err)
		if derr := s.blobs.Delete(ctx, version.StorageKey); derr != nil {
			logrus.Errorf("orphaned content cleanup failed for key %s: %v", version.StorageKey, derr)
		}
		s.metrics.Ingest("failure")
		return nil, &IngestionError{DocumentID: doc.ID, VersionID: version.ID, Err: err}
	}

	logrus.Infof("new version %s created for document: %s", version.ID, doc.ID)
	s.metrics.Ingest("success")

	s.emit(ctx, event.Event{Name: event.VersionCreated, Actor: actor, Target: version.ID, Object: doc.ID})
	s.emit(ctx, event.Event{Name: event.VersionUploaded, Actor: actor, Target: version.ID, Object: doc.ID})
	if first {
		s.emit(ctx, event.Event{Name: event.DocumentCreated, Actor: actor, Target: doc.ID})
	}

	return version, nil
}

// Open returns a reader over the version's content. Unless raw is set,
// the stream is threaded through the registered pre-open hooks.
func (s *VersionService) Open(ctx context.Context, version *model.Version, raw bool) (io.ReadCloser, error) {
	rc, err := s.blobs.Open(ctx, version.StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrContentMissing
	}
	if err != nil {
		return nil, err
	}

	if raw {
		return rc, nil
	}

	return s.hooks.ApplyPreOpen(rc, version)
}

// Exists reports whether the version's binary is present in the content
// store. A false result indicates the storage has desynchronized.
func (s *VersionService) Exists(ctx context.Context, version *model.Version) (bool, error) {
	return s.blobs.Exists(ctx, version.StorageKey)
}

// Size returns the stored size of the version's binary.
func (s *VersionService) Size(ctx context.Context, version *model.Version) (int64, error) {
	return s.blobs.Size(ctx, version.StorageKey)
}

// SaveCopy writes a copy of the version's content to a local file path.
func (s *VersionService) SaveCopy(ctx context.Context, version *model.Version, path string) error {
	rc, err := s.Open(ctx, version, false)
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(path)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

// IntermediateFile returns the version's normalized PDF rendering,
// computing and caching it on first use. Content that cannot be
// normalized degrades to the original binary.
func (s *VersionService) IntermediateFile(ctx context.Context, version *model.Version) (io.ReadCloser, error) {
	partition := version.CachePartition()

	rc, err := s.artifacts.Get(ctx, partition, intermediateArtifact)
	if err == nil {
		logrus.Debug("intermediate file found in cache")
		s.metrics.CacheHit()
		return rc, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		return nil, err
	}

	logrus.Debug("intermediate file not found in cache")
	s.metrics.CacheMiss()

	src, err := s.Open(ctx, version, false)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	pdf, err := s.converter.ToPDF(ctx, src, version.Mimetype)
	if errors.Is(err, convert.ErrInvalidOfficeFormat) {
		s.metrics.Degraded("normalize")
		return s.Open(ctx, version, false)
	}
	if err != nil {
		logrus.Errorf("error creating intermediate file: %v", err)
		return nil, err
	}
	defer pdf.Close()

	w, err := s.artifacts.Create(ctx, partition, intermediateArtifact)
	if err != nil {
		return nil, err
	}

	if _, err := io.Copy(w, pdf); err != nil {
		w.Abort()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return s.artifacts.Get(ctx, partition, intermediateArtifact)
}

// InvalidateCache purges the version's cache partition and every page
// scoped partition beneath it.
func (s *VersionService) InvalidateCache(ctx context.Context, version *model.Version) error {
	partition := version.CachePartition()
	if err := s.artifacts.Purge(ctx, partition); err != nil {
		return err
	}

	pages, err := s.store.ListPages(ctx, uuid.MustParse(version.ID))
	if err != nil {
		return err
	}

	for _, page := range pages {
		if err := s.artifacts.Purge(ctx, page.CachePartition(partition)); err != nil {
			return err
		}
	}

	return nil
}

// DeleteVersion removes a version: pages first (best-effort), then the
// cache partition, then the binary, then the row.
func (s *VersionService) DeleteVersion(ctx context.Context, version *model.Version) error {
	id, err := uuid.Parse(version.ID)
	if err != nil {
		return err
	}

	partition := version.CachePartition()
	pages, err := s.store.ListPages(ctx, id)
	if err != nil {
		logrus.Warnf("listing pages of version %s failed: %v", version.ID, err)
		pages = nil
	}

	// Page cleanup failing must not block version deletion.
	if err := s.store.DeletePages(ctx, id); err != nil {
		logrus.Warnf("deleting pages of version %s failed: %v", version.ID, err)
	}

	if err := s.artifacts.Purge(ctx, partition); err != nil {
		return err
	}
	for _, page := range pages {
		if err := s.artifacts.Purge(ctx, page.CachePartition(partition)); err != nil {
			return err
		}
	}

	if err := s.blobs.Delete(ctx, version.StorageKey); err != nil {
		return err
	}

	return s.store.DeleteVersion(ctx, id)
}

// Revert deletes every version of the document newer than the target
// version. The deletion cascades per version and cannot be undone.
func (s *VersionService) Revert(ctx context.Context, versionID uuid.UUID, actor string) error {
	version, err := s.store.GetVersion(ctx, versionID)
	if err != nil {
		return err
	}

	logrus.Infof("reverting document %s to version %s", version.DocumentID, version.ID)

	newer, err := s.store.ListVersionsAfter(ctx, uuid.MustParse(version.DocumentID), version.Timestamp)
	if err != nil {
		return err
	}

	for _, v := range newer {
		if err := s.DeleteVersion(ctx, v); err != nil {
			return err
		}
	}

	s.metrics.Revert()
	s.emit(ctx, event.Event{Name: event.VersionReverted, Actor: actor, Target: version.DocumentID, Object: version.ID})

	return nil
}

// UpdateChecksum recomputes and persists the checksum of an existing
// version. Safe to re-run; a version whose content is missing from
// storage is left untouched.
func (s *VersionService) UpdateChecksum(ctx context.Context, version *model.Version) error {
	exists, err := s.Exists(ctx, version)
	if err != nil || !exists {
		return err
	}

	return s.store.Transaction(ctx, func(tx store.Store) error {
		return s.updateChecksum(ctx, tx, version)
	})
}

// UpdateMimetype re-runs format detection on an existing version. Safe to
// re-run; detection failure persists blank fields.
func (s *VersionService) UpdateMimetype(ctx context.Context, version *model.Version) error {
	exists, err := s.Exists(ctx, version)
	if err != nil || !exists {
		return err
	}

	return s.store.Transaction(ctx, func(tx store.Store) error {
		return s.updateMimetype(ctx, tx, version)
	})
}

// UpdatePageCount re-derives the page set of an existing version,
// replacing it wholesale.
func (s *VersionService) UpdatePageCount(ctx context.Context, version *model.Version) error {
	return s.store.Transaction(ctx, func(tx store.Store) error {
		return s.updatePageCount(ctx, tx, version)
	})
}

func (s *VersionService) saveVersion(ctx context.Context, tx store.Store, version *model.Version) error {
	if err := tx.SaveVersion(ctx, version); err != nil {
		return err
	}

	return s.hooks.RunPostSave(ctx, tx, version)
}

func (s *VersionService) updateChecksum(ctx context.Context, tx store.Store, version *model.Version) error {
	rc, err := s.Open(ctx, version, false)
	if err != nil {
		return err
	}
	defer rc.Close()

	sum, err := s.hash(rc)
	if err != nil {
		return err
	}

	version.Checksum = sum
	return s.saveVersion(ctx, tx, version)
}

func (s *VersionService) updateMimetype(ctx context.Context, tx store.Store, version *model.Version) error {
	// Detection is soft: a failure leaves blank fields, and the blank
	// values are still persisted exactly once.
	mimetype, encoding := "", ""

	rc, err := s.Open(ctx, version, false)
	if err != nil {
		logrus.Warnf("opening version %s for format detection failed: %v", version.ID, err)
	} else {
		mimetype, encoding = s.sniff(rc)
		rc.Close()
	}

	if mimetype == "" {
		logrus.Warnf("format detection degraded for version %s, storing blank mimetype", version.ID)
		s.metrics.Degraded("detect")
	}

	version.Mimetype = mimetype
	version.Encoding = encoding
	return s.saveVersion(ctx, tx, version)
}

func (s *VersionService) updatePageCount(ctx context.Context, tx store.Store, version *model.Version) error {
	rc, err := s.Open(ctx, version, false)
	if err != nil {
		return err
	}
	defer rc.Close()

	count, err := s.converter.PageCount(ctx, rc, version.Mimetype)
	if errors.Is(err, convert.ErrPageCountUnsupported) {
		// Pagination is best effort: unpaginatable content is one page.
		logrus.Infof("page count unsupported for version %s, assuming single page", version.ID)
		s.metrics.Degraded("paginate")
		count = 1
	} else if err != nil {
		return err
	}

	pages := make([]*model.Page, 0, count)
	for n := 1; n <= count; n++ {
		pages = append(pages, &model.Page{
			ID:         uuid.New().String(),
			VersionID:  version.ID,
			PageNumber: n,
		})
	}

	if err := tx.ReplacePages(ctx, uuid.MustParse(version.ID), pages); err != nil {
		return err
	}
	version.Pages = pages

	return s.saveVersion(ctx, tx, version)
}

func (s *VersionService) fixPagesOrientation(ctx context.Context, tx store.Store, version *model.Version) {
	pages, err := tx.ListPages(ctx, uuid.MustParse(version.ID))
	if err != nil {
		logrus.Warnf("listing pages for orientation fix failed: %v", err)
		return
	}

	for _, page := range pages {
		rc, err := s.Open(ctx, version, false)
		if err != nil {
			logrus.Warnf("opening version %s for orientation fix failed: %v", version.ID, err)
			return
		}

		degrees, err := s.orienter.Detect(ctx, rc, page.PageNumber)
		rc.Close()
		if err != nil {
			// Per-page failures skip the page, never the pipeline.
			logrus.Warnf("orientation detection failed for page %d of version %s: %v", page.PageNumber, version.ID, err)
			s.metrics.Degraded("orientation")
			continue
		}

		if degrees == 0 {
			continue
		}

		if err := page.AppendTransformation(model.RotateTransformation(degrees)); err != nil {
			logrus.Warnf("recording rotation for page %d of version %s failed: %v", page.PageNumber, version.ID, err)
			continue
		}

		if err := tx.SavePage(ctx, page); err != nil {
			logrus.Warnf("saving page %d of version %s failed: %v", page.PageNumber, version.ID, err)
		}
	}
}

func (s *VersionService) emit(ctx context.Context, ev event.Event) {
	if err := s.events.Emit(ctx, ev); err != nil {
		logrus.Errorf("emitting %s failed: %v", ev.Name, err)
	}
}
