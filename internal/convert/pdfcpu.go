package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sirupsen/logrus"
)

const mimetypePDF = "application/pdf"

// officeMimetypes covers document formats that need an external rendering
// engine to normalize. The pipeline degrades to the raw binary for these.
var officeMimetypes = []string{
	"application/msword",
	"application/vnd.ms-excel",
	"application/vnd.ms-powerpoint",
	"application/vnd.openxmlformats-officedocument",
	"application/vnd.oasis.opendocument",
	"application/rtf",
}

// PDFConverter paginates and normalizes content with pdfcpu. PDFs are
// counted directly; raster images import into a single-page PDF;
// everything else is unsupported.
type PDFConverter struct {
	conf *pdfmodel.Configuration
}

var _ Converter = (*PDFConverter)(nil)

func NewPDFConverter() *PDFConverter {
	return &PDFConverter{conf: pdfmodel.NewDefaultConfiguration()}
}

func (c *PDFConverter) PageCount(ctx context.Context, r io.Reader, mimetype string) (int, error) {
	switch {
	case mimetype == mimetypePDF:
		data, err := io.ReadAll(r)
		if err != nil {
			return 0, err
		}

		count, err := api.PageCount(bytes.NewReader(data), c.conf)
		if err != nil {
			logrus.Warnf("pdf page count failed: %v", err)
			return 0, fmt.Errorf("%w: %v", ErrPageCountUnsupported, err)
		}

		return count, nil
	case isImage(mimetype):
		return 1, nil
	default:
		return 0, ErrPageCountUnsupported
	}
}

func (c *PDFConverter) ToPDF(ctx context.Context, r io.Reader, mimetype string) (io.ReadCloser, error) {
	switch {
	case mimetype == mimetypePDF:
		// Already normalized.
		return io.NopCloser(r), nil
	case isImage(mimetype):
		var buf bytes.Buffer
		if err := api.ImportImages(nil, &buf, []io.Reader{r}, nil, c.conf); err != nil {
			return nil, fmt.Errorf("import image: %w", err)
		}

		return io.NopCloser(bytes.NewReader(buf.Bytes())), nil
	case isOffice(mimetype):
		return nil, ErrInvalidOfficeFormat
	default:
		return nil, ErrInvalidOfficeFormat
	}
}

func isImage(mimetype string) bool {
	return strings.HasPrefix(mimetype, "image/")
}

func isOffice(mimetype string) bool {
	for _, prefix := range officeMimetypes {
		if strings.HasPrefix(mimetype, prefix) {
			return true
		}
	}
	return false
}
