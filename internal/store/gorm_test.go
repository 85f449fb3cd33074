package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/docvault/docvault/internal/model"
	"github.com/docvault/docvault/internal/tester"
)

func newTestDocument(t *testing.T, st *GormStore) *model.Document {
	t.Helper()

	doc := &model.Document{
		ID:     uuid.New().String(),
		Label:  "test document",
		IsStub: true,
	}
	assert.NoError(t, st.CreateDocument(context.TODO(), doc))

	return doc
}

func newTestVersion(t *testing.T, st *GormStore, docID string, ts time.Time) *model.Version {
	t.Helper()

	version := &model.Version{
		ID:         uuid.New().String(),
		DocumentID: docID,
		Timestamp:  ts,
		StorageKey: docID + "/" + uuid.New().String(),
	}
	assert.NoError(t, st.CreateVersion(context.TODO(), version))

	return version
}

func TestGormStore_DocumentRoundTrip(t *testing.T) {
	tester.RemoveDBFile()
	tester.Setup()

	st := NewGormStore(tester.TestDB())
	doc := newTestDocument(t, st)

	got, err := st.GetDocument(context.TODO(), uuid.MustParse(doc.ID))
	assert.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.True(t, got.IsStub)

	got.IsStub = false
	got.Label = "renamed"
	assert.NoError(t, st.SaveDocument(context.TODO(), got))

	got, err = st.GetDocument(context.TODO(), uuid.MustParse(doc.ID))
	assert.NoError(t, err)
	assert.False(t, got.IsStub)
	assert.Equal(t, "renamed", got.Label)

	docs, err := st.ListDocuments(context.TODO())
	assert.NoError(t, err)
	assert.Len(t, docs, 1)

	assert.NoError(t, st.DeleteDocument(context.TODO(), uuid.MustParse(doc.ID)))
	_, err = st.GetDocument(context.TODO(), uuid.MustParse(doc.ID))
	assert.Error(t, err)
}

func TestGormStore_ListVersionsAfter(t *testing.T) {
	tester.RemoveDBFile()
	tester.Setup()

	st := NewGormStore(tester.TestDB())
	doc := newTestDocument(t, st)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	v1 := newTestVersion(t, st, doc.ID, base)
	v2 := newTestVersion(t, st, doc.ID, base.Add(time.Minute))
	v3 := newTestVersion(t, st, doc.ID, base.Add(2*time.Minute))

	all, err := st.ListVersions(context.TODO(), uuid.MustParse(doc.ID))
	assert.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, v1.ID, all[0].ID)
	assert.Equal(t, v3.ID, all[2].ID)

	newer, err := st.ListVersionsAfter(context.TODO(), uuid.MustParse(doc.ID), v1.Timestamp)
	assert.NoError(t, err)
	assert.Len(t, newer, 2)
	assert.Equal(t, v2.ID, newer[0].ID)
	assert.Equal(t, v3.ID, newer[1].ID)

	// Strictly greater: the reference version itself is excluded.
	newer, err = st.ListVersionsAfter(context.TODO(), uuid.MustParse(doc.ID), v3.Timestamp)
	assert.NoError(t, err)
	assert.Empty(t, newer)

	count, err := st.CountVersions(context.TODO(), uuid.MustParse(doc.ID))
	assert.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestGormStore_ReplacePages(t *testing.T) {
	tester.RemoveDBFile()
	tester.Setup()

	st := NewGormStore(tester.TestDB())
	doc := newTestDocument(t, st)
	version := newTestVersion(t, st, doc.ID, time.Now())
	versionID := uuid.MustParse(version.ID)

	first := []*model.Page{
		{ID: uuid.New().String(), VersionID: version.ID, PageNumber: 1},
		{ID: uuid.New().String(), VersionID: version.ID, PageNumber: 2},
		{ID: uuid.New().String(), VersionID: version.ID, PageNumber: 3},
	}
	assert.NoError(t, st.ReplacePages(context.TODO(), versionID, first))

	pages, err := st.ListPages(context.TODO(), versionID)
	assert.NoError(t, err)
	assert.Len(t, pages, 3)
	for i, page := range pages {
		assert.Equal(t, i+1, page.PageNumber)
	}

	// Replacement swaps the whole set, old pages never linger. Reusing
	// the same page numbers must not trip the unique index on rows from
	// the previous set.
	second := []*model.Page{
		{ID: uuid.New().String(), VersionID: version.ID, PageNumber: 1},
		{ID: uuid.New().String(), VersionID: version.ID, PageNumber: 2},
		{ID: uuid.New().String(), VersionID: version.ID, PageNumber: 3},
	}
	assert.NoError(t, st.ReplacePages(context.TODO(), versionID, second))

	pages, err = st.ListPages(context.TODO(), versionID)
	assert.NoError(t, err)
	assert.Len(t, pages, 3)
	assert.Equal(t, second[0].ID, pages[0].ID)

	third := []*model.Page{
		{ID: uuid.New().String(), VersionID: version.ID, PageNumber: 1},
	}
	assert.NoError(t, st.ReplacePages(context.TODO(), versionID, third))

	pages, err = st.ListPages(context.TODO(), versionID)
	assert.NoError(t, err)
	assert.Len(t, pages, 1)
	assert.Equal(t, third[0].ID, pages[0].ID)

	assert.NoError(t, st.DeletePages(context.TODO(), versionID))
	pages, err = st.ListPages(context.TODO(), versionID)
	assert.NoError(t, err)
	assert.Empty(t, pages)
}

func TestGormStore_SavePageTransformations(t *testing.T) {
	tester.RemoveDBFile()
	tester.Setup()

	st := NewGormStore(tester.TestDB())
	doc := newTestDocument(t, st)
	version := newTestVersion(t, st, doc.ID, time.Now())
	versionID := uuid.MustParse(version.ID)

	page := &model.Page{ID: uuid.New().String(), VersionID: version.ID, PageNumber: 1}
	assert.NoError(t, st.ReplacePages(context.TODO(), versionID, []*model.Page{page}))

	assert.NoError(t, page.AppendTransformation(model.RotateTransformation(90)))
	assert.NoError(t, st.SavePage(context.TODO(), page))

	pages, err := st.ListPages(context.TODO(), versionID)
	assert.NoError(t, err)
	assert.Len(t, pages, 1)

	list, err := pages[0].TransformationList()
	assert.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, model.TransformationRotate, list[0].Name)
}

func TestGormStore_TransactionRollback(t *testing.T) {
	tester.RemoveDBFile()
	tester.Setup()

	st := NewGormStore(tester.TestDB())
	doc := newTestDocument(t, st)

	failure := errors.New("abort")
	err := st.Transaction(context.TODO(), func(tx Store) error {
		version := &model.Version{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			StorageKey: "key",
		}
		if err := tx.CreateVersion(context.TODO(), version); err != nil {
			return err
		}
		return failure
	})
	assert.ErrorIs(t, err, failure)

	count, err := st.CountVersions(context.TODO(), uuid.MustParse(doc.ID))
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
