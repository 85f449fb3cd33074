package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/docvault/docvault/internal/model"
	"github.com/docvault/docvault/internal/store"
)

// NewDocumentService creates a new DocumentService.
func NewDocumentService(st store.Store, versions *VersionService) *DocumentService {
	return &DocumentService{
		store:    st,
		versions: versions,
	}
}

// DocumentService manages the document aggregates owning versions.
type DocumentService struct {
	store    store.Store
	versions *VersionService
}

// CreateDocument creates a stub document. The stub flag stays set until
// the first version is ingested.
func (d *DocumentService) CreateDocument(ctx context.Context, label string) (*model.Document, error) {
	doc := &model.Document{
		ID:     uuid.New().String(),
		Label:  label,
		IsStub: true,
	}

	if err := d.store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// GetDocument retrieves a document by ID.
func (d *DocumentService) GetDocument(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	return d.store.GetDocument(ctx, id)
}

// ListDocuments retrieves all documents.
func (d *DocumentService) ListDocuments(ctx context.Context) ([]*model.Document, error) {
	return d.store.ListDocuments(ctx)
}

// ListVersions retrieves the versions of a document ordered by creation
// timestamp.
func (d *DocumentService) ListVersions(ctx context.Context, id uuid.UUID) ([]*model.Version, error) {
	return d.store.ListVersions(ctx, id)
}

// DeleteDocument deletes a document and every version it owns, each
// deletion following the version deletion contract.
func (d *DocumentService) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	versions, err := d.store.ListVersions(ctx, id)
	if err != nil {
		return err
	}

	for _, version := range versions {
		if err := d.versions.DeleteVersion(ctx, version); err != nil {
			logrus.Errorf("deleting version %s of document %s failed: %v", version.ID, id, err)
			return err
		}
	}

	return d.store.DeleteDocument(ctx, id)
}
