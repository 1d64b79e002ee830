// Package pdftest writes and inspects small PDF files for tests.
package pdftest

import (
	"fmt"
	"os"
	"testing"

	"github.com/mgmeyers/unipdf/v3/creator"
	"github.com/mgmeyers/unipdf/v3/model"
)

type Size struct {
	Width  float64
	Height float64
}

// Write creates a PDF at path with one page per size. Each page carries a
// short "page N" label so that it is not blank.
func Write(t testing.TB, path string, sizes ...Size) {
	t.Helper()

	c := creator.New()

	for i, s := range sizes {
		c.SetPageSize(creator.PageSize{s.Width, s.Height})
		c.NewPage()

		p := c.NewParagraph(fmt.Sprintf("page %d", i+1))
		p.SetPos(5, 5)

		if err := c.Draw(p); err != nil {
			t.Fatalf("draw label on page %d: %v", i+1, err)
		}
	}

	if err := c.WriteToFile(path); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Open loads the PDF at path with unipdf.
func Open(t testing.TB, path string) *model.PdfReader {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	t.Cleanup(func() { f.Close() })

	r, err := model.NewPdfReader(f)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}

	return r
}

// PageCount returns the number of pages in the PDF at path.
func PageCount(t testing.TB, path string) int {
	t.Helper()

	n, err := Open(t, path).GetNumPages()
	if err != nil {
		t.Fatalf("count pages of %s: %v", path, err)
	}

	return n
}

// Sizes returns the MediaBox size of every page in the PDF at path.
func Sizes(t testing.TB, path string) []Size {
	t.Helper()

	r := Open(t, path)
	n, err := r.GetNumPages()
	if err != nil {
		t.Fatalf("count pages of %s: %v", path, err)
	}

	sizes := make([]Size, 0, n)
	for i := 1; i <= n; i++ {
		page, err := r.GetPage(i)
		if err != nil {
			t.Fatalf("page %d of %s: %v", i, path, err)
		}

		mbox, err := page.GetMediaBox()
		if err != nil {
			t.Fatalf("media box of page %d of %s: %v", i, path, err)
		}

		sizes = append(sizes, Size{Width: mbox.Width(), Height: mbox.Height()})
	}

	return sizes
}

// Content returns the decoded content streams of a 1-based page.
func Content(t testing.TB, path string, page int) string {
	t.Helper()

	p, err := Open(t, path).GetPage(page)
	if err != nil {
		t.Fatalf("page %d of %s: %v", page, path, err)
	}

	content, err := p.GetAllContentStreams()
	if err != nil {
		t.Fatalf("content of page %d of %s: %v", page, path, err)
	}

	return content
}
