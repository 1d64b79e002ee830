// Package overlay draws the numbered bubbles onto blank pages and merges
// those pages onto the source document.
package overlay

import (
	"io"
	"strconv"
	"strings"

	"github.com/golang/geo/r2"
	"github.com/mgmeyers/unipdf/v3/contentstream"
	"github.com/mgmeyers/unipdf/v3/contentstream/draw"
	"github.com/mgmeyers/unipdf/v3/core"
	"github.com/mgmeyers/unipdf/v3/model"
	"github.com/pkg/errors"

	"github.com/mgmeyers/pdfmarkers/layout"
	"github.com/mgmeyers/pdfmarkers/logging"
	"github.com/mgmeyers/pdfmarkers/markers"
	"github.com/mgmeyers/pdfmarkers/pdfutils"
)

const (
	fontName     core.PdfObjectName = "MarkerFont"
	bubbleGSName core.PdfObjectName = "MarkerBubbleGS"
	textGSName   core.PdfObjectName = "MarkerTextGS"

	// Advance width of the Helvetica-Bold figures, in em. All ten digits
	// share it, so labels can be centred without font metrics.
	digitAdvance = 0.556

	// Baseline shift that puts digits visually in the middle of the bubble.
	baselineShift = 0.35
)

type Style struct {
	FontSize float64
	Radius   float64
	Bubble   pdfutils.Color
	Text     pdfutils.Color
}

func DefaultStyle() Style {
	return Style{
		FontSize: 16,
		Radius:   12,
		Bubble:   pdfutils.LightSkyBlue,
		Text:     pdfutils.Black,
	}
}

// ResolveColor parses value, falling back when it is empty or invalid. An
// invalid value is reported as a warning naming the option.
func ResolveColor(option, value string, fallback pdfutils.Color, sink logging.Sink) pdfutils.Color {
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	c, err := pdfutils.ParseColor(value)
	if err != nil {
		logging.Warnf(sink, "Invalid %s %q, using %s", option, value, fallback.Hex())
		return fallback
	}

	return c
}

// EffectiveRadius returns the bubble radius, derived from the font size
// when no positive radius is configured.
func (s Style) EffectiveRadius() float64 {
	if s.Radius <= 0 {
		return s.FontSize * 0.6
	}
	return s.Radius
}

// Renderer builds the overlay document.
type Renderer struct {
	style Style
	sink  logging.Sink
	font  *model.PdfFont
}

func NewRenderer(style Style, sink logging.Sink) (*Renderer, error) {
	if style.FontSize <= 0 {
		return nil, errors.Errorf("font size must be positive, got %g", style.FontSize)
	}

	font, err := model.NewStandard14Font(model.HelveticaBoldName)
	if err != nil {
		return nil, errors.Wrap(err, "load Helvetica-Bold")
	}

	return &Renderer{style: style, sink: sink, font: font}, nil
}

// Render writes a document with one page per entry of sizes, same size and
// order, carrying the bubbles of that page's markers. Markers that cannot
// be transformed are skipped with a warning. The returned placements list
// every bubble drawn, in drawing order.
func (r *Renderer) Render(
	w io.Writer,
	sizes []pdfutils.PageSize,
	grouped markers.Grouped,
	norms layout.Normalizations,
) ([]*pdfutils.Placement, error) {
	writer := model.NewPdfWriter()
	ids := map[string]bool{}
	placements := []*pdfutils.Placement{}

	for i, size := range sizes {
		pageNum := i + 1
		ms := grouped[pageNum]

		norm := norms.For(pageNum)

		if len(ms) > 0 {
			logging.Debugf(r.sink, "Drawing %d markers on page %d", len(ms), pageNum)
			if !norm.IsIdentity() {
				logging.Debugf(r.sink, "Page %d: dividing positions by (%.3f, %.3f)", pageNum, norm.ScaleX, norm.ScaleY)
			}
		}

		page, drawn, err := r.renderPage(pageNum, size, ms, norm, ids)
		if err != nil {
			return nil, errors.Wrapf(err, "page %d", pageNum)
		}

		if err := writer.AddPage(page); err != nil {
			return nil, errors.Wrapf(err, "add page %d", pageNum)
		}

		placements = append(placements, drawn...)
	}

	if err := writer.Write(w); err != nil {
		return nil, errors.Wrap(err, "write overlay")
	}

	return placements, nil
}

func (r *Renderer) renderPage(
	pageNum int,
	size pdfutils.PageSize,
	ms []markers.Marker,
	norm layout.Normalization,
	ids map[string]bool,
) (*model.PdfPage, []*pdfutils.Placement, error) {
	page := model.NewPdfPage()
	page.MediaBox = &model.PdfRectangle{Llx: 0, Lly: 0, Urx: size.Width, Ury: size.Height}
	page.Resources = model.NewPdfPageResources()

	var content strings.Builder
	content.WriteString("q\n")

	var drawn []*pdfutils.Placement

	for _, m := range ms {
		pt, err := layout.Transform(m, size, norm)
		if err != nil {
			logging.Warnf(r.sink, "Skipping marker %d: %v", m.Index, err)
			continue
		}

		bubble, err := r.bubble(pt)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "marker %d", m.Index)
		}

		content.Write(bubble)
		content.WriteString("\n")
		content.WriteString(r.label(pt, strconv.Itoa(m.Index)))
		content.WriteString("\n")

		drawn = append(drawn, &pdfutils.Placement{
			ID:            pdfutils.GetPlacementID(ids, pageNum, pt.X, pt.Y),
			Index:         m.Index,
			Page:          pageNum,
			X:             pt.X,
			Y:             pt.Y,
			Color:         r.style.Bubble.Hex(),
			ColorCategory: pdfutils.ColorCategory(r.style.Bubble),
		})
	}

	content.WriteString("Q\n")

	if len(drawn) > 0 {
		if err := r.addResources(page); err != nil {
			return nil, nil, err
		}
	}

	if err := page.SetContentStreams([]string{content.String()}, core.NewFlateEncoder()); err != nil {
		return nil, nil, errors.Wrap(err, "set content")
	}

	return page, drawn, nil
}

func (r *Renderer) addResources(page *model.PdfPage) error {
	if err := page.AddFont(fontName, r.font.ToPdfObject()); err != nil {
		return errors.Wrap(err, "add font")
	}

	if r.style.Bubble.Translucent() {
		if err := page.AddExtGState(bubbleGSName, alphaState(r.style.Bubble.Alpha)); err != nil {
			return errors.Wrap(err, "add bubble graphics state")
		}
	}

	if r.style.Text.Translucent() {
		if err := page.AddExtGState(textGSName, alphaState(r.style.Text.Alpha)); err != nil {
			return errors.Wrap(err, "add text graphics state")
		}
	}

	return nil
}

func alphaState(alpha float64) *core.PdfObjectDictionary {
	gs := core.MakeDict()
	gs.Set("ca", core.MakeFloat(alpha))
	gs.Set("CA", core.MakeFloat(alpha))
	return gs
}

// bubble returns the content operators of a filled circle centred on pt.
func (r *Renderer) bubble(pt r2.Point) ([]byte, error) {
	radius := r.style.EffectiveRadius()
	c := r.style.Bubble

	circle := draw.Circle{
		X:           pt.X - radius,
		Y:           pt.Y - radius,
		Width:       2 * radius,
		Height:      2 * radius,
		FillEnabled: true,
		FillColor:   model.NewPdfColorDeviceRGB(c.R, c.G, c.B),
		Opacity:     c.Alpha,
	}

	gsName := ""
	if c.Translucent() {
		gsName = string(bubbleGSName)
	}

	contents, _, err := circle.Draw(gsName)
	return contents, err
}

// label returns the content operators of text horizontally centred on pt,
// baseline shifted down so the digits sit in the middle of the bubble.
func (r *Renderer) label(pt r2.Point, text string) string {
	size := r.style.FontSize
	width := float64(len(text)) * digitAdvance * size
	c := r.style.Text

	cc := contentstream.NewContentCreator()
	cc.Add_q()
	if c.Translucent() {
		cc.Add_gs(textGSName)
	}
	cc.Add_rg(c.R, c.G, c.B)
	cc.Add_BT()
	cc.Add_Tf(fontName, size)
	cc.Add_Td(pt.X-width/2, pt.Y-baselineShift*size)
	cc.Add_Tj(*core.MakeString(text))
	cc.Add_ET()
	cc.Add_Q()

	return cc.String()
}
