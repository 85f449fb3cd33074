package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/docvault/docvault/internal/model"
)

type Store interface {
	DocumentStore
	VersionStore
	PageStore
	Transaction(ctx context.Context, f func(tx Store) error) error
	Migrate() error
}

type DocumentStore interface {
	// CreateDocument creates a new document.
	CreateDocument(ctx context.Context, doc *model.Document) error
	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id uuid.UUID) (*model.Document, error)
	// ListDocuments retrieves all documents.
	ListDocuments(ctx context.Context) ([]*model.Document, error)
	// SaveDocument persists changes to an existing document.
	SaveDocument(ctx context.Context, doc *model.Document) error
	// DeleteDocument deletes a document by ID.
	DeleteDocument(ctx context.Context, id uuid.UUID) error
}

type VersionStore interface {
	// CreateVersion creates a new version row for a document.
	CreateVersion(ctx context.Context, version *model.Version) error
	// GetVersion retrieves a version by ID.
	GetVersion(ctx context.Context, id uuid.UUID) (*model.Version, error)
	// SaveVersion persists metadata changes to an existing version.
	SaveVersion(ctx context.Context, version *model.Version) error
	// DeleteVersion deletes a version row by ID.
	DeleteVersion(ctx context.Context, id uuid.UUID) error
	// ListVersions retrieves the versions of a document ordered by timestamp.
	ListVersions(ctx context.Context, documentID uuid.UUID) ([]*model.Version, error)
	// ListVersionsAfter retrieves the versions of a document with a creation
	// timestamp strictly greater than the given one.
	ListVersionsAfter(ctx context.Context, documentID uuid.UUID, after time.Time) ([]*model.Version, error)
	// ListAllVersions retrieves every version row. Used by maintenance jobs.
	ListAllVersions(ctx context.Context) ([]*model.Version, error)
	// CountVersions counts the versions of a document.
	CountVersions(ctx context.Context, documentID uuid.UUID) (int64, error)
}

type PageStore interface {
	// ReplacePages deletes the full page set of a version and creates the
	// given pages as one atomic unit. A partial page set is never observable.
	ReplacePages(ctx context.Context, versionID uuid.UUID, pages []*model.Page) error
	// ListPages retrieves the pages of a version ordered by page number.
	ListPages(ctx context.Context, versionID uuid.UUID) ([]*model.Page, error)
	// SavePage persists changes to a single page.
	SavePage(ctx context.Context, page *model.Page) error
	// DeletePages deletes all pages of a version.
	DeletePages(ctx context.Context, versionID uuid.UUID) error
}
