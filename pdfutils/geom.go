package pdfutils

import (
	"io"
	"os"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
	"github.com/mgmeyers/unipdf/v3/model"
	"github.com/pkg/errors"
)

// PageSize is the MediaBox size of a page in PDF points.
type PageSize struct {
	Width  float64
	Height float64
}

// Rect returns the page rectangle with its origin at the lower left corner.
func (s PageSize) Rect() r2.Rect {
	return r2.Rect{
		X: r1.Interval{Lo: 0, Hi: s.Width},
		Y: r1.Interval{Lo: 0, Hi: s.Height},
	}
}

// Valid reports whether both dimensions are positive.
func (s PageSize) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// LoadPageSizesFile reads the page sizes of the PDF at path.
func LoadPageSizesFile(path string) ([]PageSize, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return LoadPageSizes(f)
}

// LoadPageSizes returns one entry per page, in page order.
func LoadPageSizes(rs io.ReadSeeker) ([]PageSize, error) {
	pdfReader, err := model.NewPdfReader(rs)
	if err != nil {
		return nil, errors.Wrap(err, "read pdf")
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return nil, errors.Wrap(err, "count pages")
	}

	sizes := make([]PageSize, 0, numPages)

	for i := 0; i < numPages; i++ {
		page, err := pdfReader.GetPage(i + 1)
		if err != nil {
			return nil, errors.Wrapf(err, "page %d", i+1)
		}

		sizes = append(sizes, GetPageSize(page))
	}

	return sizes, nil
}

// GetPageSize resolves the page's MediaBox, following inheritance from the
// page tree. A page without a usable box yields a zero size.
func GetPageSize(page *model.PdfPage) PageSize {
	mbox, err := page.GetMediaBox()
	if err != nil || mbox == nil {
		return PageSize{}
	}

	return PageSize{
		Width:  mbox.Width(),
		Height: mbox.Height(),
	}
}
