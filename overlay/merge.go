package overlay

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/mgmeyers/unipdf/v3/creator"
	"github.com/mgmeyers/unipdf/v3/model"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	cpumodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/pkg/errors"

	"github.com/mgmeyers/pdfmarkers/logging"
)

const (
	EngineUnipdf = "unipdf"
	EnginePdfcpu = "pdfcpu"
)

// Engines lists the supported merge engines, default first.
var Engines = []string{EngineUnipdf, EnginePdfcpu}

// Merger composites overlay pages onto the source document. Page i of the
// overlay goes on top of page i of the input; input pages without an
// overlay page are copied unchanged. Neither source file is modified.
type Merger interface {
	Merge(inputPath, overlayPath, outputPath string) error
}

// NewMerger returns the merger for engine.
func NewMerger(engine string, sink logging.Sink) (Merger, error) {
	switch engine {
	case EngineUnipdf, "":
		return &unipdfMerger{sink: sink}, nil
	case EnginePdfcpu:
		conf := cpumodel.NewDefaultConfiguration()
		conf.ValidationMode = cpumodel.ValidationRelaxed
		return &pdfcpuMerger{sink: sink, conf: conf}, nil
	}

	engines := append([]string(nil), Engines...)
	sort.Strings(engines)
	return nil, errors.Errorf("unknown merge engine %q (supported: %v)", engine, engines)
}

func warnPageCount(sink logging.Sink, original, overlay int) {
	if original == overlay {
		return
	}

	logging.Warnf(sink,
		"PageCountMismatch: overlay has %d pages, original has %d; pages without an overlay are copied unchanged",
		overlay, original,
	)
}

type unipdfMerger struct {
	sink logging.Sink
}

func (m *unipdfMerger) Merge(inputPath, overlayPath, outputPath string) error {
	inFile, err := os.Open(inputPath)
	if err != nil {
		return err
	}
	defer inFile.Close()

	overlayFile, err := os.Open(overlayPath)
	if err != nil {
		return err
	}
	defer overlayFile.Close()

	original, err := model.NewPdfReader(inFile)
	if err != nil {
		return errors.Wrap(err, "read input")
	}

	overlay, err := model.NewPdfReader(overlayFile)
	if err != nil {
		return errors.Wrap(err, "read overlay")
	}

	numPages, err := original.GetNumPages()
	if err != nil {
		return err
	}

	overlayPages, err := overlay.GetNumPages()
	if err != nil {
		return err
	}

	warnPageCount(m.sink, numPages, overlayPages)

	c := creator.New()

	for i := 1; i <= numPages; i++ {
		page, err := original.GetPage(i)
		if err != nil {
			return errors.Wrapf(err, "input page %d", i)
		}

		mediaBox, err := page.GetMediaBox()
		if err != nil {
			return errors.Wrapf(err, "media box of page %d", i)
		}
		if page.MediaBox == nil {
			// inherited from the page tree
			page.MediaBox = mediaBox
		}

		if err := c.AddPage(page); err != nil {
			return errors.Wrapf(err, "add page %d", i)
		}

		if i > overlayPages {
			continue
		}

		overlayPage, err := overlay.GetPage(i)
		if err != nil {
			return errors.Wrapf(err, "overlay page %d", i)
		}

		block, err := creator.NewBlockFromPage(overlayPage)
		if err != nil {
			return errors.Wrapf(err, "overlay page %d", i)
		}
		block.SetPos(0, 0)

		if err := c.Draw(block); err != nil {
			return errors.Wrapf(err, "draw overlay on page %d", i)
		}
	}

	if outlines := original.GetOutlineTree(); outlines != nil {
		c.SetOutlineTree(outlines)
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}

	if err := c.Write(out); err != nil {
		out.Close()
		return errors.Wrap(err, "write output")
	}

	return out.Close()
}

// stampDescription places a PDF stamp at its natural size in the lower
// left corner, which lines an overlay page up with a page of equal size.
const stampDescription = "scalefactor:1 abs, rotation:0, position:bl, offset:0 0, opacity:1"

type pdfcpuMerger struct {
	sink logging.Sink
	conf *cpumodel.Configuration
}

func (m *pdfcpuMerger) Merge(inputPath, overlayPath, outputPath string) error {
	numPages, err := api.PageCountFile(inputPath)
	if err != nil {
		return errors.Wrap(err, "read input")
	}

	overlayPages, err := api.PageCountFile(overlayPath)
	if err != nil {
		return errors.Wrap(err, "read overlay")
	}

	warnPageCount(m.sink, numPages, overlayPages)

	stamps := map[int]*cpumodel.Watermark{}

	for i := 1; i <= numPages && i <= overlayPages; i++ {
		wm, err := api.PDFWatermark(fmt.Sprintf("%s:%d", overlayPath, i), stampDescription, true, false, types.POINTS)
		if err != nil {
			return errors.Wrapf(err, "overlay page %d", i)
		}
		stamps[i] = wm
	}

	if len(stamps) == 0 {
		return copyFile(inputPath, outputPath)
	}

	if err := api.AddWatermarksMapFile(inputPath, outputPath, stamps, m.conf); err != nil {
		return errors.Wrap(err, "stamp overlay")
	}

	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
