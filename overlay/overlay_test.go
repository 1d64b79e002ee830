package overlay

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgmeyers/pdfmarkers/layout"
	"github.com/mgmeyers/pdfmarkers/logging"
	"github.com/mgmeyers/pdfmarkers/markers"
	"github.com/mgmeyers/pdfmarkers/pdftest"
	"github.com/mgmeyers/pdfmarkers/pdfutils"
)

var (
	portrait  = pdfutils.PageSize{Width: 200, Height: 300}
	landscape = pdfutils.PageSize{Width: 300, Height: 200}
)

func renderFile(t *testing.T, style Style, sizes []pdfutils.PageSize, lines ...string) (string, []*pdfutils.Placement, *logging.Recorder) {
	t.Helper()

	rec := &logging.Recorder{}
	grouped := markers.GroupByPage(markers.Parse(lines, logging.Discard))
	norms := layout.Derive(grouped, sizes, logging.Discard)

	r, err := NewRenderer(style, rec)
	require.NoError(t, err)

	var buf bytes.Buffer
	placements, err := r.Render(&buf, sizes, grouped, norms)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "overlay.pdf")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	return path, placements, rec
}

func TestStyleEffectiveRadius(t *testing.T) {
	assert.Equal(t, 12.0, DefaultStyle().EffectiveRadius())
	assert.InDelta(t, 4.8, Style{FontSize: 8}.EffectiveRadius(), 1e-9)
	assert.InDelta(t, 9.6, Style{FontSize: 16, Radius: -1}.EffectiveRadius(), 1e-9)
}

func TestResolveColor(t *testing.T) {
	rec := &logging.Recorder{}

	assert.Equal(t, pdfutils.Black, ResolveColor("text color", "", pdfutils.Black, rec))
	assert.Equal(t, "#ff000080", ResolveColor("bubble color", "#FF000080", pdfutils.LightSkyBlue, rec).Hex())
	assert.Empty(t, rec.Entries())

	c := ResolveColor("bubble color", "#12345", pdfutils.LightSkyBlue, rec)
	assert.Equal(t, pdfutils.LightSkyBlue, c)

	entries := rec.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, logrus.WarnLevel, entries[0].Level)
	assert.Equal(t, `Invalid bubble color "#12345", using #87cefa`, entries[0].Message)
}

func TestNewRendererRejectsFontSize(t *testing.T) {
	_, err := NewRenderer(Style{FontSize: 0}, logging.Discard)
	assert.Error(t, err)
}

func TestRenderMatchesSourcePages(t *testing.T) {
	sizes := []pdfutils.PageSize{portrait, landscape, portrait}

	path, placements, rec := renderFile(t, DefaultStyle(), sizes,
		"1 100 50 2",
		"3 10 10 0",
		"3 20 20 1",
	)

	assert.Equal(t, []pdftest.Size{{Width: 200, Height: 300}, {Width: 300, Height: 200}, {Width: 200, Height: 300}}, pdftest.Sizes(t, path))

	require.Len(t, placements, 2)
	assert.Equal(t, pdfutils.Placement{
		ID:            "marker-p1x50y275",
		Index:         1,
		Page:          1,
		X:             50,
		Y:             275,
		Color:         "#87cefa",
		ColorCategory: "Blue",
	}, *placements[0])
	assert.Equal(t, 3, placements[1].Index)
	assert.Equal(t, 3, placements[1].Page)
	assert.Equal(t, 20.0, placements[1].X)
	assert.Equal(t, 280.0, placements[1].Y)

	assert.Equal(t, 1, rec.Count(logrus.WarnLevel))

	page1 := pdftest.Content(t, path, 1)
	assert.Contains(t, page1, "(1) Tj")
	assert.Contains(t, page1, "/MarkerFont")
	assert.NotContains(t, page1, " gs")

	page2 := pdftest.Content(t, path, 2)
	assert.NotContains(t, page2, "Tj")

	page3 := pdftest.Content(t, path, 3)
	assert.Contains(t, page3, "(3) Tj")
	assert.NotContains(t, page3, "(2) Tj")
}

func TestRenderTranslucentColors(t *testing.T) {
	bubble, err := pdfutils.ParseColor("#FF000080")
	require.NoError(t, err)
	text, err := pdfutils.ParseColor("#00000040")
	require.NoError(t, err)

	style := Style{FontSize: 10, Bubble: bubble, Text: text}
	path, placements, _ := renderFile(t, style, []pdfutils.PageSize{portrait}, "1 10 10 1")

	require.Len(t, placements, 1)
	assert.Equal(t, "#ff000080", placements[0].Color)

	content := pdftest.Content(t, path, 1)
	assert.Contains(t, content, "/MarkerBubbleGS gs")
	assert.Contains(t, content, "/MarkerTextGS gs")
}

func TestRenderLogsCorrectedPages(t *testing.T) {
	sizes := []pdfutils.PageSize{portrait, portrait}

	_, placements, rec := renderFile(t, DefaultStyle(), sizes, "1 400 150 1", "2 100 50 2")

	require.Len(t, placements, 2)
	assert.Equal(t, 200.0, placements[0].X)

	var debug []string
	for _, e := range rec.Entries() {
		if e.Level == logrus.DebugLevel {
			debug = append(debug, e.Message)
		}
	}
	assert.Contains(t, debug, "Page 1: dividing positions by (2.000, 1.000)")
	for _, msg := range debug {
		assert.NotContains(t, msg, "Page 2: dividing")
	}
}

func TestRenderNoMarkers(t *testing.T) {
	sizes := []pdfutils.PageSize{portrait, landscape}

	path, placements, rec := renderFile(t, DefaultStyle(), sizes)

	assert.Empty(t, placements)
	assert.Empty(t, rec.Entries())
	assert.Equal(t, 2, pdftest.PageCount(t, path))
}

func TestRenderSkipsPagesOutsideDocument(t *testing.T) {
	path, placements, _ := renderFile(t, DefaultStyle(), []pdfutils.PageSize{portrait}, "4 10 10 1", "1 10 10 1")

	require.Len(t, placements, 1)
	assert.Equal(t, 2, placements[0].Index)
	assert.Equal(t, 1, pdftest.PageCount(t, path))
}

func TestLabelIsCentred(t *testing.T) {
	r, err := NewRenderer(Style{FontSize: 10}, logging.Discard)
	require.NoError(t, err)

	ops := r.label(r2.Point{X: 100, Y: 50}, "12")

	var td []string
	for _, line := range strings.Split(ops, "\n") {
		if strings.HasSuffix(line, " Td") {
			td = strings.Fields(line)
		}
	}
	require.Len(t, td, 3)

	x, err := strconv.ParseFloat(td[0], 64)
	require.NoError(t, err)
	y, err := strconv.ParseFloat(td[1], 64)
	require.NoError(t, err)

	// two digits of 5.56pt each, baseline 3.5pt below the centre
	assert.InDelta(t, 94.44, x, 1e-6)
	assert.InDelta(t, 46.5, y, 1e-6)
}

func writeInput(t *testing.T, sizes ...pdfutils.PageSize) string {
	t.Helper()

	var fixture []pdftest.Size
	for _, s := range sizes {
		fixture = append(fixture, pdftest.Size{Width: s.Width, Height: s.Height})
	}

	path := filepath.Join(t.TempDir(), "input.pdf")
	pdftest.Write(t, path, fixture...)
	return path
}

func TestMergeEngines(t *testing.T) {
	for _, engine := range Engines {
		t.Run(engine, func(t *testing.T) {
			input := writeInput(t, portrait, landscape, portrait, portrait, landscape)
			overlayPath, _, _ := renderFile(t, DefaultStyle(), []pdfutils.PageSize{portrait, landscape},
				"1 100 50 2",
				"2 10 10 1",
			)
			output := filepath.Join(t.TempDir(), "marked.pdf")
			rec := &logging.Recorder{}

			m, err := NewMerger(engine, rec)
			require.NoError(t, err)
			require.NoError(t, m.Merge(input, overlayPath, output))

			assert.Equal(t, pdftest.Sizes(t, input), pdftest.Sizes(t, output))

			require.Equal(t, 1, rec.Count(logrus.WarnLevel))
			assert.True(t, strings.HasPrefix(rec.Entries()[0].Message, "PageCountMismatch"))

			for page := 3; page <= 5; page++ {
				assert.NotContains(t, pdftest.Content(t, output, page), "MarkerFont")
			}
		})
	}
}

func TestMergeUnipdfDrawsOverlayOnTop(t *testing.T) {
	input := writeInput(t, portrait, portrait)
	overlayPath, _, _ := renderFile(t, DefaultStyle(), []pdfutils.PageSize{portrait, portrait}, "2 100 50 2")
	output := filepath.Join(t.TempDir(), "marked.pdf")
	rec := &logging.Recorder{}

	m, err := NewMerger(EngineUnipdf, rec)
	require.NoError(t, err)
	require.NoError(t, m.Merge(input, overlayPath, output))

	assert.Empty(t, rec.Entries())

	// the source page's text object ends before the label is drawn
	page2 := pdftest.Content(t, output, 2)
	original := strings.Index(page2, "ET")
	label := strings.Index(page2, "(1) Tj")
	require.NotEqual(t, -1, original)
	require.NotEqual(t, -1, label)
	assert.Less(t, original, label)

	assert.NotContains(t, pdftest.Content(t, output, 1), "(1) Tj")
}

func TestMergeWithoutMarkersKeepsPages(t *testing.T) {
	input := writeInput(t, portrait, landscape, portrait)
	overlayPath, _, _ := renderFile(t, DefaultStyle(), []pdfutils.PageSize{portrait, landscape, portrait})
	output := filepath.Join(t.TempDir(), "marked.pdf")

	m, err := NewMerger(EngineUnipdf, logging.Discard)
	require.NoError(t, err)
	require.NoError(t, m.Merge(input, overlayPath, output))

	assert.Equal(t, 3, pdftest.PageCount(t, output))
	assert.Equal(t, pdftest.Sizes(t, input), pdftest.Sizes(t, output))
	for page := 1; page <= 3; page++ {
		assert.NotContains(t, pdftest.Content(t, output, page), "Tf\n(")
	}
}

func TestMergeDoesNotModifyInputs(t *testing.T) {
	input := writeInput(t, portrait)
	overlayPath, _, _ := renderFile(t, DefaultStyle(), []pdfutils.PageSize{portrait}, "1 10 10 1")
	output := filepath.Join(t.TempDir(), "marked.pdf")

	before, err := os.ReadFile(input)
	require.NoError(t, err)
	overlayBefore, err := os.ReadFile(overlayPath)
	require.NoError(t, err)

	m, err := NewMerger(EngineUnipdf, logging.Discard)
	require.NoError(t, err)
	require.NoError(t, m.Merge(input, overlayPath, output))

	after, err := os.ReadFile(input)
	require.NoError(t, err)
	overlayAfter, err := os.ReadFile(overlayPath)
	require.NoError(t, err)

	assert.Equal(t, before, after)
	assert.Equal(t, overlayBefore, overlayAfter)
}

func TestNewMergerUnknownEngine(t *testing.T) {
	_, err := NewMerger("ghostscript", logging.Discard)
	assert.Error(t, err)

	m, err := NewMerger("", logging.Discard)
	require.NoError(t, err)
	assert.IsType(t, &unipdfMerger{}, m)
}
