package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/mgmeyers/pdfmarkers/api"
	"github.com/mgmeyers/pdfmarkers/logging"
	"github.com/mgmeyers/pdfmarkers/overlay"
	"github.com/mgmeyers/pdfmarkers/pdfutils"
	"github.com/mgmeyers/pdfmarkers/pipeline"
)

const defaultConfigPath = "~/.config/pdfmarkers.json"

type CLI struct {
	LogLevel string          `default:"info" enum:"trace,debug,info,warn,error" env:"PDFMARKERS_LOG_LEVEL" help:"Log level. Logs go to stderr"`
	Config   kong.ConfigFlag `help:"JSON file with flag defaults, keyed by flag name with underscores (font_size)"`

	Mark  MarkCmd  `cmd:"" help:"Draw numbered markers onto a PDF"`
	Serve ServeCmd `cmd:"" help:"Serve the marker endpoint over HTTP"`
}

type MarkCmd struct {
	Input   string `short:"i" required:"" type:"path" env:"PDFMARKERS_INPUT" help:"Path to input PDF"`
	Numbers string `short:"n" required:"" type:"path" env:"PDFMARKERS_NUMBERS" help:"Path to the coordinates file (page x y scale per line)"`
	Output  string `short:"o" required:"" type:"path" env:"PDFMARKERS_OUTPUT" help:"Path of the marked PDF"`

	FontSize     float64 `default:"16" env:"PDFMARKERS_FONT_SIZE" help:"Label font size in points"`
	BubbleRadius float64 `default:"12" env:"PDFMARKERS_BUBBLE_RADIUS" help:"Bubble radius in points. 0 derives it from the font size"`
	BubbleColor  string  `default:"#87CEFA" env:"PDFMARKERS_BUBBLE_COLOR" help:"Bubble colour, #RRGGBB or #RRGGBBAA"`
	TextColor    string  `default:"#000000" env:"PDFMARKERS_TEXT_COLOR" help:"Label colour, #RRGGBB or #RRGGBBAA"`
	Engine       string  `default:"unipdf" enum:"unipdf,pdfcpu" env:"PDFMARKERS_ENGINE" help:"Merge engine. Supports unipdf and pdfcpu"`
	TempDir      string  `type:"path" env:"PDFMARKERS_TEMP_DIR" help:"Directory for the intermediate overlay"`

	JSON bool   `name:"json" env:"PDFMARKERS_JSON" help:"Print the placed markers as JSON to stdout"`
	Sort string `default:"index" enum:"index,page" env:"PDFMARKERS_SORT" help:"Order of the JSON report. Supports index and page"`

	PreviewDir     string `type:"path" env:"PDFMARKERS_PREVIEW_DIR" help:"Write an image of every output page to this directory"`
	PreviewFormat  string `default:"png" enum:"jpg,png" env:"PDFMARKERS_PREVIEW_FORMAT" help:"Preview format. Supports png and jpg"`
	PreviewDPI     int    `name:"preview-dpi" default:"72" env:"PDFMARKERS_PREVIEW_DPI" help:"Preview DPI"`
	PreviewQuality int    `default:"90" env:"PDFMARKERS_PREVIEW_QUALITY" help:"Preview quality. Only applies to jpg images"`
	PreviewWorkers int    `default:"4" env:"PDFMARKERS_PREVIEW_WORKERS" help:"Number of preview images encoded at once"`
}

type ServeCmd struct {
	Addr      string `default:"${default_addr}" env:"PDFMARKERS_ADDR" help:"Listen address"`
	MaxUpload int64  `default:"${default_max_upload}" env:"PDFMARKERS_MAX_UPLOAD" help:"Maximum size of each uploaded file, in bytes"`
	TempDir   string `type:"path" env:"PDFMARKERS_TEMP_DIR" help:"Directory for uploads and intermediate files"`
}

// runContext is bound into every command's Run method.
type runContext struct {
	sink     logging.Sink
	stdout   io.Writer
	logLevel string
}

func (cmd *MarkCmd) style(sink logging.Sink) overlay.Style {
	return overlay.Style{
		FontSize: cmd.FontSize,
		Radius:   cmd.BubbleRadius,
		Bubble:   overlay.ResolveColor("bubble color", cmd.BubbleColor, pdfutils.LightSkyBlue, sink),
		Text:     overlay.ResolveColor("text color", cmd.TextColor, pdfutils.Black, sink),
	}
}

func (cmd *MarkCmd) Run(rc *runContext) error {
	res, err := pipeline.Run(pipeline.Options{
		InputPath:   cmd.Input,
		NumbersPath: cmd.Numbers,
		OutputPath:  cmd.Output,
		Style:       cmd.style(rc.sink),
		Engine:      cmd.Engine,
		TempDir:     cmd.TempDir,
	}, rc.sink)
	if err != nil {
		return err
	}

	if cmd.PreviewDir != "" {
		paths, err := pdfutils.WritePreviews(pdfutils.PreviewArgs{
			PDFPath:   cmd.Output,
			OutputDir: cmd.PreviewDir,
			BaseName:  pdfutils.BaseName(cmd.Output),
			Format:    cmd.PreviewFormat,
			Quality:   cmd.PreviewQuality,
			DPI:       cmd.PreviewDPI,
			Workers:   cmd.PreviewWorkers,
		})
		if err != nil {
			return errors.Wrap(err, "write previews")
		}

		logging.Infof(rc.sink, "Wrote %d preview images to %s", len(paths), cmd.PreviewDir)
	}

	if !cmd.JSON {
		return nil
	}

	if cmd.Sort == "page" {
		sort.Stable(pdfutils.ByPage(res.Placements))
	} else {
		sort.Stable(pdfutils.ByIndex(res.Placements))
	}

	return logOutput(rc.stdout, res.Placements)
}

func (cmd *ServeCmd) Run(rc *runContext) error {
	if rc.logLevel != "debug" && rc.logLevel != "trace" {
		gin.SetMode(gin.ReleaseMode)
	}

	srv := api.NewServer(&api.Config{
		Addr:          cmd.Addr,
		MaxUploadSize: cmd.MaxUpload,
		TempDir:       cmd.TempDir,
	}, rc.sink)

	listenErr := make(chan error, 1)

	go func() {
		logging.Infof(rc.sink, "Server starting on %s", srv.Addr)
		logging.Infof(rc.sink, "Max upload size: %d bytes", cmd.MaxUpload)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			listenErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-listenErr:
		return errors.Wrap(err, "start server")
	case <-quit:
	}

	logging.Infof(rc.sink, "Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), api.GracefulShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "shutdown")
	}

	logging.Infof(rc.sink, "Server exited gracefully")
	return nil
}

func logOutput(w io.Writer, placements []*pdfutils.Placement) error {
	jsonPlacements, err := json.Marshal(placements)
	if err != nil {
		return err
	}

	oLog := log.New(w, "", 0)
	oLog.Println(string(jsonPlacements))

	return nil
}

func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("pdfmarkers"),
		kong.Description("Overlay numbered marker bubbles onto a PDF at viewer-exported coordinates."),
		kong.UsageOnError(),
		kong.Configuration(kong.JSON, defaultConfigPath),
		kong.Vars{
			"default_addr":       api.DefaultAddr,
			"default_max_upload": strconv.Itoa(api.DefaultMaxUploadSize),
		},
	}, options...)

	return kong.New(cli, options...)
}

func main() {
	var cli CLI

	parser, err := newParser(&cli)
	endIfErr(err)

	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	logger, err := logging.NewLogger(os.Stderr, cli.LogLevel)
	ctx.FatalIfErrorf(err)

	sink := logging.NewAsync(logging.NewLogrus(logger), 256)

	err = ctx.Run(&runContext{sink: sink, stdout: os.Stdout, logLevel: cli.LogLevel})

	// flush pending log lines before any exit
	sink.Close()
	ctx.FatalIfErrorf(err)
}

func endIfErr(e error) {
	if e != nil {
		eLog := log.New(os.Stderr, "", 0)
		eLog.Fatalln(e)
	}
}
