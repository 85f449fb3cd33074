package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/docvault/docvault/internal/model"
)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db: db,
	}
}

var _ Store = (*GormStore)(nil)

type GormStore struct {
	db *gorm.DB
}

func (g *GormStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	return g.db.WithContext(ctx).Create(doc).Error
}

func (g *GormStore) GetDocument(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	doc := &model.Document{}
	err := g.db.WithContext(ctx).Where("id = ?", id.String()).First(doc).Error
	if err != nil {
		return nil, err
	}

	return doc, nil
}

func (g *GormStore) ListDocuments(ctx context.Context) ([]*model.Document, error) {
	var docs []*model.Document
	err := g.db.WithContext(ctx).Order("created_at asc").Find(&docs).Error
	return docs, err
}

func (g *GormStore) SaveDocument(ctx context.Context, doc *model.Document) error {
	return g.db.WithContext(ctx).Save(doc).Error
}

func (g *GormStore) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	return g.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&model.Document{}).Error
}

func (g *GormStore) CreateVersion(ctx context.Context, version *model.Version) error {
	return g.db.WithContext(ctx).Create(version).Error
}

func (g *GormStore) GetVersion(ctx context.Context, id uuid.UUID) (*model.Version, error) {
	version := &model.Version{}
	err := g.db.WithContext(ctx).Where("id = ?", id.String()).First(version).Error
	if err != nil {
		return nil, err
	}

	return version, nil
}

func (g *GormStore) SaveVersion(ctx context.Context, version *model.Version) error {
	// Save with associations disabled so page rows are only ever touched
	// through ReplacePages.
	return g.db.WithContext(ctx).Omit("Pages", "Document").Save(version).Error
}

func (g *GormStore) DeleteVersion(ctx context.Context, id uuid.UUID) error {
	return g.db.WithContext(ctx).Where("id = ?", id.String()).Delete(&model.Version{}).Error
}

func (g *GormStore) ListVersions(ctx context.Context, documentID uuid.UUID) ([]*model.Version, error) {
	var versions []*model.Version
	err := g.db.WithContext(ctx).
		Where("document_id = ?", documentID.String()).
		Order("timestamp asc").
		Find(&versions).Error
	return versions, err
}

func (g *GormStore) ListVersionsAfter(ctx context.Context, documentID uuid.UUID, after time.Time) ([]*model.Version, error) {
	var versions []*model.Version
	err := g.db.WithContext(ctx).
		Where("document_id = ? AND timestamp > ?", documentID.String(), after).
		Order("timestamp asc").
		Find(&versions).Error
	return versions, err
}

func (g *GormStore) ListAllVersions(ctx context.Context) ([]*model.Version, error) {
	var versions []*model.Version
	err := g.db.WithContext(ctx).Find(&versions).Error
	return versions, err
}

func (g *GormStore) CountVersions(ctx context.Context, documentID uuid.UUID) (int64, error) {
	var count int64
	err := g.db.WithContext(ctx).
		Model(&model.Version{}).
		Where("document_id = ?", documentID.String()).
		Count(&count).Error
	return count, err
}

func (g *GormStore) ReplacePages(ctx context.Context, versionID uuid.UUID, pages []*model.Page) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Hard delete: soft-deleted rows would keep occupying the unique
		// (version_id, page_number) index and block the new set.
		if err := tx.Unscoped().Where("version_id = ?", versionID.String()).Delete(&model.Page{}).Error; err != nil {
			return err
		}

		for _, page := range pages {
			if err := tx.Create(page).Error; err != nil {
				return err
			}
		}

		return nil
	})
}

func (g *GormStore) ListPages(ctx context.Context, versionID uuid.UUID) ([]*model.Page, error) {
	var pages []*model.Page
	err := g.db.WithContext(ctx).
		Where("version_id = ?", versionID.String()).
		Order("page_number asc").
		Find(&pages).Error
	return pages, err
}

func (g *GormStore) SavePage(ctx context.Context, page *model.Page) error {
	return g.db.WithContext(ctx).Save(page).Error
}

func (g *GormStore) DeletePages(ctx context.Context, versionID uuid.UUID) error {
	return g.db.WithContext(ctx).Unscoped().Where("version_id = ?", versionID.String()).Delete(&model.Page{}).Error
}

func (g *GormStore) Migrate() error {
	return model.Migrate(g.db)
}

func (g *GormStore) Transaction(ctx context.Context, f func(tx Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return f(&GormStore{db: tx})
	})
}
