package model

import (
	"fmt"
	"path/filepath"
	"time"

	"gorm.io/gorm"
)

// Version is an immutable snapshot of a document's binary content.
// Fields:
// * StorageKey - opaque key of the binary in the content store.
// * Mimetype - file mimetype, e.g. "text/plain" or "image/jpeg". Used to
// decide how the content is converted and rendered.
// * Encoding - content encoding classification, e.g. "binary" or "utf-8".
// * Checksum - hash generated from the binary data. Only identical
// binaries produce the same checksum.
// Checksum, Mimetype and Encoding are blank until the ingestion pipeline
// computes them; they are written exactly once and never recomputed for
// an existing version.
type Version struct {
	gorm.Model
	ID         string    `gorm:"primaryKey;uuid;not null;"`
	DocumentID string    `gorm:"uuid;not null;index"`
	Document   *Document `gorm:"foreignKey:DocumentID;references:ID"`
	Timestamp  time.Time `gorm:"autoCreateTime;index;not null"`
	Comment    string
	StorageKey string `gorm:"not null"`
	Mimetype   string
	Encoding   string
	Checksum   string  `gorm:"index"`
	Pages      []*Page `gorm:"foreignKey:VersionID"`
}

func (Version) TableName() string {
	return "versions"
}

// CachePartition returns the derived-data cache partition key for this
// version. The key is a pure function of the owning document and the
// version identity, both of which never change after creation.
func (v *Version) CachePartition() string {
	return fmt.Sprintf("version-%s-%s", v.DocumentID, v.ID)
}

// PageCount reports the number of pages currently loaded on the version.
func (v *Version) PageCount() int {
	return len(v.Pages)
}

// RenderedString returns the display name of the version, a mix of the
// document label and the version timestamp.
func (v *Version) RenderedString() string {
	label := ""
	if v.Document != nil {
		label = v.Document.Label
	}
	return fmt.Sprintf("%s - %s", label, v.Timestamp.Format(time.RFC3339))
}

// RenderedName returns a file name for exported copies of the version.
// With preserveExtension the document label's extension is kept at the
// end so the exported file stays openable.
func (v *Version) RenderedName(preserveExtension bool) string {
	if !preserveExtension {
		return v.RenderedString()
	}
	label := ""
	if v.Document != nil {
		label = v.Document.Label
	}
	ext := filepath.Ext(label)
	name := label[:len(label)-len(ext)]
	return fmt.Sprintf("%s (%s)%s", name, v.Timestamp.Format(time.RFC3339), ext)
}
