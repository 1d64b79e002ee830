package pdfutils

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type PreviewArgs struct {
	PDFPath   string
	OutputDir string
	BaseName  string
	Format    string
	Quality   int
	DPI       int
	Workers   int
}

// WritePreviews rasterises every page of a PDF and writes one image per
// page as <base>-<page>.<format>. Pages are rendered one at a time and
// encoded concurrently. It returns the written paths in page order.
func WritePreviews(args PreviewArgs) ([]string, error) {
	if args.Format != "jpg" && args.Format != "png" {
		return nil, errors.Errorf("unsupported preview format %q", args.Format)
	}
	if args.DPI <= 0 {
		return nil, errors.Errorf("preview dpi must be positive, got %d", args.DPI)
	}

	doc, err := fitz.New(args.PDFPath)
	if err != nil {
		return nil, errors.Wrap(err, "open for preview")
	}

	defer doc.Close()

	if err := os.MkdirAll(args.OutputDir, os.ModePerm); err != nil {
		return nil, err
	}

	workers := args.Workers
	if workers < 1 {
		workers = 4
	}

	var g errgroup.Group
	g.SetLimit(workers)

	paths := make([]string, doc.NumPage())

	for i := 0; i < doc.NumPage(); i++ {
		rendered, err := doc.ImageDPI(i, float64(args.DPI))
		if err != nil {
			g.Wait()
			return nil, errors.Wrapf(err, "render page %d", i+1)
		}

		pageImg := image.Image(rendered)
		imagePath := filepath.Join(
			args.OutputDir,
			fmt.Sprintf("%s-%d.%s", args.BaseName, i+1, args.Format),
		)
		paths[i] = imagePath

		g.Go(func() error {
			return WriteImage(&pageImg, imagePath, args.Format, args.Quality)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return paths, nil
}

func WriteImage(img *image.Image, name string, format string, quality int) error {
	if format == "jpg" {
		return writeJPGImage(img, name, quality)
	}

	return writePNGImage(img, name)
}

func writeJPGImage(img *image.Image, name string, quality int) error {
	fd, err := os.Create(name)
	if err != nil {
		return err
	}

	defer fd.Close()
	return jpeg.Encode(fd, *img, &jpeg.Options{Quality: quality})
}

func writePNGImage(img *image.Image, name string) error {
	fd, err := os.Create(name)
	if err != nil {
		return err
	}

	defer fd.Close()
	return png.Encode(fd, *img)
}
