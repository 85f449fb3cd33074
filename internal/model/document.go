package model

import (
	"gorm.io/gorm"
)

// Document is the parent aggregate for a set of immutable versions.
// A document starts out as a stub and stays one until its first version
// is ingested; the ingestion pipeline flips the flag and assigns a label
// derived from the uploaded file name when none was given.
type Document struct {
	gorm.Model
	ID       string `gorm:"primaryKey;uuid;not null;"`
	Label    string
	IsStub   bool       `gorm:"not null;default:true"`
	Versions []*Version `gorm:"foreignKey:DocumentID"`
}

func (Document) TableName() string {
	return "documents"
}
