package service

import (
	"errors"
	"fmt"
)

var (
	// ErrContentMissing is returned when a version's binary is not found
	// in the content store.
	ErrContentMissing = errors.New("version content missing from storage")
)

// IngestionError wraps a fatal failure of the version ingestion pipeline.
// By the time it is returned the atomic unit has been rolled back and no
// partial version is left durable.
type IngestionError struct {
	DocumentID string
	VersionID  string
	Err        error
}

func (e *IngestionError) Error() string {
	return fmt.Sprintf("ingestion failed for document %s version %s: %v", e.DocumentID, e.VersionID, e.Err)
}

func (e *IngestionError) Unwrap() error {
	return e.Err
}
