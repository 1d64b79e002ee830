package pdfutils

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgmeyers/pdfmarkers/pdftest"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in    string
		hex   string
		alpha float64
	}{
		{"#87CEFA", "#87cefa", 1},
		{"87cefa", "#87cefa", 1},
		{"#000000", "#000000", 1},
		{"#FF000080", "#ff000080", 128.0 / 255},
		{" #00ff00ff ", "#00ff00", 1},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := ParseColor(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.hex, c.Hex())
			assert.InDelta(t, tt.alpha, c.Alpha, 1e-9)
		})
	}
}

func TestParseColorRejects(t *testing.T) {
	for _, in := range []string{"", "#fff", "#12345", "#1234567", "#GGGGGG", "#112233zz", "red"} {
		_, err := ParseColor(in)
		assert.Error(t, err, in)
	}
}

func TestColorDefaults(t *testing.T) {
	assert.Equal(t, "#87cefa", LightSkyBlue.Hex())
	assert.Equal(t, "#000000", Black.Hex())
	assert.False(t, LightSkyBlue.Translucent())
	assert.Equal(t, "Blue", ColorCategory(LightSkyBlue))
	assert.Equal(t, "Black", ColorCategory(Black))
}

func TestColorCategory(t *testing.T) {
	tests := map[string]string{
		"#ff0000": "Red",
		"#ffa500": "Orange",
		"#ffff00": "Yellow",
		"#00ff00": "Green",
		"#ffffff": "White",
		"#808080": "Gray",
	}

	for in, want := range tests {
		c, err := ParseColor(in)
		require.NoError(t, err)
		assert.Equal(t, want, ColorCategory(c), in)
	}
}

func TestPageSizeRect(t *testing.T) {
	s := PageSize{Width: 200, Height: 300}

	assert.True(t, s.Valid())
	assert.False(t, PageSize{Width: 0, Height: 10}.Valid())

	r := s.Rect()
	assert.Equal(t, r2.Point{X: 200, Y: 300}, r.Hi())
	assert.Equal(t, r2.Point{X: 200, Y: 0}, r.ClampPoint(r2.Point{X: 500, Y: -4}))
}

func TestLoadPageSizesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.pdf")
	pdftest.Write(t, path,
		pdftest.Size{Width: 200, Height: 300},
		pdftest.Size{Width: 612, Height: 792},
		pdftest.Size{Width: 300, Height: 200},
	)

	sizes, err := LoadPageSizesFile(path)
	require.NoError(t, err)
	require.Len(t, sizes, 3)

	assert.InDelta(t, 200, sizes[0].Width, 0.01)
	assert.InDelta(t, 300, sizes[0].Height, 0.01)
	assert.InDelta(t, 612, sizes[1].Width, 0.01)
	assert.InDelta(t, 792, sizes[1].Height, 0.01)
	assert.InDelta(t, 300, sizes[2].Width, 0.01)
	assert.InDelta(t, 200, sizes[2].Height, 0.01)
}

func TestLoadPageSizesRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o644))

	_, err := LoadPageSizesFile(path)
	assert.Error(t, err)
}

func TestGetPlacementID(t *testing.T) {
	ids := map[string]bool{}

	assert.Equal(t, "marker-p1x50y275", GetPlacementID(ids, 1, 50, 275))
	assert.Equal(t, "marker-p1x50y275-1", GetPlacementID(ids, 1, 50.2, 274.9))
	assert.Equal(t, "marker-p1x50y275-2", GetPlacementID(ids, 1, 50, 275))
	assert.Equal(t, "marker-p2x50y275", GetPlacementID(ids, 2, 50, 275))
}

func TestPlacementOrder(t *testing.T) {
	ps := []*Placement{
		{Index: 3, Page: 2, X: 10, Y: 10},
		{Index: 1, Page: 1, X: 50, Y: 100},
		{Index: 2, Page: 1, X: 10, Y: 100},
		{Index: 4, Page: 1, X: 10, Y: 200},
	}

	sort.Sort(ByPage(ps))
	assert.Equal(t, []int{4, 2, 1, 3}, indices(ps))

	sort.Sort(ByIndex(ps))
	assert.Equal(t, []int{1, 2, 3, 4}, indices(ps))
}

func indices(ps []*Placement) []int {
	out := make([]int, len(ps))
	for i, p := range ps {
		out[i] = p.Index
	}
	return out
}

func TestHelpers(t *testing.T) {
	assert.True(t, HasExt("a/b/In.PDF", ".pdf"))
	assert.False(t, HasExt("numbers.txt", ".pdf"))
	assert.Equal(t, "marked", BaseName("/tmp/out/marked.pdf"))
}

func TestWriteImage(t *testing.T) {
	dir := t.TempDir()
	rgba := image.NewRGBA(image.Rect(0, 0, 4, 4))
	rgba.Set(1, 1, color.RGBA{R: 255, A: 255})
	img := image.Image(rgba)

	require.NoError(t, WriteImage(&img, filepath.Join(dir, "a.png"), "png", 0))
	require.NoError(t, WriteImage(&img, filepath.Join(dir, "a.jpg"), "jpg", 80))

	for _, name := range []string{"a.png", "a.jpg"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.NotZero(t, info.Size())
	}
}

func TestWritePreviews(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.pdf")
	pdftest.Write(t, path, pdftest.Size{Width: 200, Height: 300}, pdftest.Size{Width: 300, Height: 200})

	paths, err := WritePreviews(PreviewArgs{
		PDFPath:   path,
		OutputDir: filepath.Join(dir, "previews"),
		BaseName:  "in",
		Format:    "png",
		DPI:       36,
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "previews", "in-1.png"),
		filepath.Join(dir, "previews", "in-2.png"),
	}, paths)

	for _, p := range paths {
		_, err := os.Stat(p)
		assert.NoError(t, err)
	}
}

func TestWritePreviewsRejectsFormat(t *testing.T) {
	_, err := WritePreviews(PreviewArgs{Format: "gif", DPI: 72})
	assert.Error(t, err)

	_, err = WritePreviews(PreviewArgs{Format: "png", DPI: 0})
	assert.Error(t, err)
}
