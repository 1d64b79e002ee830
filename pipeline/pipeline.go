// Package pipeline runs a marking job from input files to the marked PDF:
// parse markers, read page geometry, derive corrections, render the overlay
// into a temporary file and merge it onto the input.
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pkg/errors"

	"github.com/mgmeyers/pdfmarkers/layout"
	"github.com/mgmeyers/pdfmarkers/logging"
	"github.com/mgmeyers/pdfmarkers/markers"
	"github.com/mgmeyers/pdfmarkers/overlay"
	"github.com/mgmeyers/pdfmarkers/pdfutils"
)

type Options struct {
	InputPath   string
	NumbersPath string
	OutputPath  string

	Style  overlay.Style
	Engine string

	// TempDir holds the intermediate overlay. Empty means os.TempDir().
	TempDir string
}

type Result struct {
	Markers    int
	Pages      int
	Placements []*pdfutils.Placement
}

// ValidationError reports an input that cannot be processed at all.
type ValidationError struct {
	Path   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func invalid(path, format string, args ...interface{}) error {
	return &ValidationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

func relaxedConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Validate checks the input files and output location before any work is
// done. Every failure is a *ValidationError.
func Validate(opts Options) error {
	if err := checkFile(opts.InputPath, ".pdf"); err != nil {
		return err
	}

	if err := checkFile(opts.NumbersPath, ".txt"); err != nil {
		return err
	}

	if opts.OutputPath == "" {
		return invalid("", "output path is required")
	}

	if same, _ := samePath(opts.InputPath, opts.OutputPath); same {
		return invalid(opts.OutputPath, "output would overwrite the input")
	}

	dir := filepath.Dir(opts.OutputPath)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return invalid(dir, "output directory does not exist")
	}

	if err := api.ValidateFile(opts.InputPath, relaxedConfig()); err != nil {
		return invalid(opts.InputPath, "not a valid PDF: %v", err)
	}

	return nil
}

func checkFile(path, ext string) error {
	if path == "" {
		return invalid("", "a %s file is required", ext)
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return invalid(path, "file does not exist")
	}
	if err != nil {
		return invalid(path, "cannot stat file: %v", err)
	}

	if !info.Mode().IsRegular() {
		return invalid(path, "not a regular file")
	}

	if !pdfutils.HasExt(path, ext) {
		return invalid(path, "expected a %s file", ext)
	}

	if info.Size() == 0 {
		return invalid(path, "file is empty")
	}

	f, err := os.Open(path)
	if err != nil {
		return invalid(path, "file is not readable")
	}

	return f.Close()
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}

	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}

	return absA == absB, nil
}

// Run validates opts and writes the marked PDF to opts.OutputPath.
// Malformed lines and markers that cannot be placed are skipped with a
// warning; anything else that goes wrong aborts the run.
func Run(opts Options, sink logging.Sink) (*Result, error) {
	if err := Validate(opts); err != nil {
		return nil, err
	}

	renderer, err := overlay.NewRenderer(opts.Style, sink)
	if err != nil {
		return nil, err
	}

	merger, err := overlay.NewMerger(opts.Engine, sink)
	if err != nil {
		return nil, err
	}

	numPages, err := api.PageCountFile(opts.InputPath)
	if err != nil {
		return nil, errors.Wrap(err, "count pages")
	}
	logging.Debugf(sink, "%s has %d pages", opts.InputPath, numPages)

	ms, err := markers.ReadFile(opts.NumbersPath, sink)
	if err != nil {
		return nil, errors.Wrap(err, "read markers")
	}

	if len(ms) == 0 {
		logging.Warnf(sink, "No markers found in %s. The output will match the input.", opts.NumbersPath)
	} else {
		logging.Infof(sink, "Loaded %d markers from %s", len(ms), opts.NumbersPath)
	}

	sizes, err := pdfutils.LoadPageSizesFile(opts.InputPath)
	if err != nil {
		return nil, errors.Wrap(err, "read page sizes")
	}

	grouped := markers.GroupByPage(ms)
	logging.Debugf(sink, "%d markers across %d pages", grouped.Count(), len(grouped))
	norms := layout.Derive(grouped, sizes, sink)

	tmp, err := os.CreateTemp(opts.TempDir, "pdfmarkers-overlay-*.pdf")
	if err != nil {
		return nil, errors.Wrap(err, "create overlay file")
	}
	defer os.Remove(tmp.Name())

	placements, err := renderer.Render(tmp, sizes, grouped, norms)
	closeErr := tmp.Close()
	if err != nil {
		return nil, errors.Wrap(err, "render overlay")
	}
	if closeErr != nil {
		return nil, errors.Wrap(closeErr, "render overlay")
	}

	if err := merger.Merge(opts.InputPath, tmp.Name(), opts.OutputPath); err != nil {
		os.Remove(opts.OutputPath)
		return nil, errors.Wrap(err, "merge overlay")
	}

	logging.Infof(sink, "Saved marked PDF to %s", opts.OutputPath)

	return &Result{
		Markers:    len(ms),
		Pages:      numPages,
		Placements: placements,
	}, nil
}
