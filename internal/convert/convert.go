package convert

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrInvalidOfficeFormat signals content that cannot be normalized to
	// PDF. Callers fall back to the raw binary as the intermediate
	// representation.
	ErrInvalidOfficeFormat = errors.New("convert: format not supported for pdf normalization")
	// ErrPageCountUnsupported signals content the converter cannot
	// paginate. Callers treat the content as a single page.
	ErrPageCountUnsupported = errors.New("convert: format not supported for page counting")
)

// Converter turns version binaries into countable and normalized
// representations. Both operations may be long-running for large media,
// so they take a context for cancellation.
type Converter interface {
	// PageCount reports the number of pages in the content. Returns
	// ErrPageCountUnsupported when the format cannot be paginated.
	PageCount(ctx context.Context, r io.Reader, mimetype string) (int, error)
	// ToPDF returns the content normalized to a single-format PDF stream.
	// Returns ErrInvalidOfficeFormat when the format cannot be normalized.
	ToPDF(ctx context.Context, r io.Reader, mimetype string) (io.ReadCloser, error)
}

// OrientationDetector inspects a single page and reports its rotation in
// degrees, 0 when the page is already upright.
type OrientationDetector interface {
	Detect(ctx context.Context, r io.Reader, pageNumber int) (int, error)
}

// NullOrientationDetector reports every page as upright. Used when no
// detection backend is wired in.
type NullOrientationDetector struct{}

func (NullOrientationDetector) Detect(ctx context.Context, r io.Reader, pageNumber int) (int, error) {
	return 0, nil
}
