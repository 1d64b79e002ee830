// Package layout maps viewer coordinates onto PDF pages.
//
// The viewer exports positions in its own zoomed, top-down space. A
// marker's raw position divided by its scale gives document units measured
// from the top left corner of the page. Those are not always calibrated to
// the page's point size, so each page gets a uniform shrink factor that
// brings the farthest marker back onto the page edge. The factor never
// magnifies, and it preserves relative spacing between markers on a page.
package layout

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"github.com/mgmeyers/pdfmarkers/logging"
	"github.com/mgmeyers/pdfmarkers/markers"
	"github.com/mgmeyers/pdfmarkers/pdfutils"
)

// ErrInvalidScale is returned for markers whose scale is not positive.
// Such a marker is skipped, the rest of the batch continues.
var ErrInvalidScale = errors.New("scale must be positive to convert coordinates")

// ErrOutOfRange is returned for markers whose document position overflows
// to infinity, for example a huge coordinate over a tiny scale.
var ErrOutOfRange = errors.New("coordinates out of range")

// correctionThreshold is the factor above which a correction is logged.
const correctionThreshold = 1.01

// Normalization holds per-axis divisors, both at least 1.
type Normalization struct {
	ScaleX float64
	ScaleY float64
}

// Identity leaves coordinates unchanged.
var Identity = Normalization{ScaleX: 1, ScaleY: 1}

// IsIdentity reports whether n leaves positions unchanged.
func (n Normalization) IsIdentity() bool {
	return n.ScaleX == 1 && n.ScaleY == 1
}

// Normalizations maps a 1-based page number to its correction.
type Normalizations map[int]Normalization

// For returns the page's correction, or Identity when there is none.
func (n Normalizations) For(page int) Normalization {
	if norm, ok := n[page]; ok {
		return norm
	}
	return Identity
}

// Normalize computes the correction for one page from its markers. Markers
// with a non-positive scale do not take part.
func Normalize(ms []markers.Marker, size pdfutils.PageSize) Normalization {
	maxDocX := 0.0
	maxDocY := 0.0

	for _, m := range ms {
		if m.Scale <= 0 {
			continue
		}

		docX, docY := m.DocPoint()
		if !finite(docX, docY) {
			continue
		}

		maxDocX = math.Max(maxDocX, docX)
		maxDocY = math.Max(maxDocY, docY)
	}

	return Normalization{
		ScaleX: factor(maxDocX, size.Width),
		ScaleY: factor(maxDocY, size.Height),
	}
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func factor(maxDoc, extent float64) float64 {
	if extent <= 0 {
		return 1
	}
	return math.Max(1, maxDoc/extent)
}

// Derive computes the correction of every page that has markers. sizes is
// indexed by page number minus one. Pages outside the document are left
// out and reported in a single warning.
func Derive(grouped markers.Grouped, sizes []pdfutils.PageSize, sink logging.Sink) Normalizations {
	norms := Normalizations{}
	var missing []int

	for _, page := range grouped.Pages() {
		if page < 1 || page > len(sizes) {
			missing = append(missing, page)
			continue
		}

		size := sizes[page-1]
		if !size.Valid() {
			logging.Warnf(sink, "Page %d has no usable MediaBox (%gx%g); its markers collapse onto the origin", page, size.Width, size.Height)
		}

		norm := Normalize(grouped[page], size)

		if norm.ScaleX > correctionThreshold || norm.ScaleY > correctionThreshold {
			logging.Infof(sink,
				"Page %d: correcting coordinate scale (fx=%.3f, fy=%.3f) to fit page bounds",
				page, norm.ScaleX, norm.ScaleY,
			)
		}

		norms[page] = norm
	}

	if len(missing) > 0 {
		logging.Warnf(sink, "Markers reference pages outside the document: %v", missing)
	}

	return norms
}

// Transform converts a marker to a point in PDF space: origin at the lower
// left corner, y pointing up. The result always lies on the page.
func Transform(m markers.Marker, size pdfutils.PageSize, norm Normalization) (r2.Point, error) {
	if m.Scale <= 0 {
		return r2.Point{}, errors.Wrapf(ErrInvalidScale, "marker %d has scale %g", m.Index, m.Scale)
	}

	docX, docY := m.DocPoint()
	if !finite(docX, docY) {
		return r2.Point{}, errors.Wrapf(ErrOutOfRange, "marker %d at (%g, %g) with scale %g", m.Index, m.RawX, m.RawY, m.Scale)
	}

	docX /= norm.ScaleX
	docY /= norm.ScaleY

	return size.Rect().ClampPoint(r2.Point{X: docX, Y: size.Height - docY}), nil
}
