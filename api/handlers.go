package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mgmeyers/pdfmarkers/logging"
	"github.com/mgmeyers/pdfmarkers/overlay"
	"github.com/mgmeyers/pdfmarkers/pipeline"
)

// HandleMarkers runs the marking pipeline on an uploaded PDF and
// coordinates file and returns the marked PDF.
func HandleMarkers(c *gin.Context, config *Config, sink logging.Sink) {
	pdfFile, pdfHeader, err := c.Request.FormFile("pdf")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No PDF file provided"})
		return
	}
	defer pdfFile.Close()

	if err := validatePDFFile(pdfFile, pdfHeader, config.MaxUploadSize); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	numbersFile, numbersHeader, err := c.Request.FormFile("numbers")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No numbers file provided"})
		return
	}
	defer numbersFile.Close()

	if numbersHeader.Size > config.MaxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("file size %d exceeds maximum allowed %d bytes", numbersHeader.Size, config.MaxUploadSize),
		})
		return
	}

	// warnings go to the server log and are counted for the response
	rec := &logging.Recorder{}
	requestSink := logging.Tee(sink, rec)

	style, engine, err := formOptions(c, requestSink)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := ensureTempDir(config.TempDir); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create temp directory"})
		return
	}

	workDir, err := os.MkdirTemp(config.TempDir, "request-")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create temp directory"})
		return
	}
	defer os.RemoveAll(workDir)

	opts := pipeline.Options{
		InputPath:   filepath.Join(workDir, "input.pdf"),
		NumbersPath: filepath.Join(workDir, "numbers.txt"),
		OutputPath:  filepath.Join(workDir, "marked.pdf"),
		Style:       style,
		Engine:      engine,
		TempDir:     workDir,
	}

	if err := saveUpload(pdfFile, opts.InputPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save input file"})
		return
	}

	if err := saveUpload(numbersFile, opts.NumbersPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save numbers file"})
		return
	}

	res, err := pipeline.Run(opts, requestSink)
	if err != nil {
		var verr *pipeline.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Reason})
			return
		}

		logging.Errorf(sink, "Marking failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": truncate(err.Error(), 200)})
		return
	}

	c.Header("Content-Type", "application/pdf")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", markedFilename(pdfHeader.Filename)))
	c.Header("X-Marker-Count", strconv.Itoa(len(res.Placements)))
	c.Header("X-Marker-Warnings", strconv.Itoa(rec.Count(logrus.WarnLevel)))

	// served before the deferred cleanup runs
	c.File(opts.OutputPath)
}

func formOptions(c *gin.Context, sink logging.Sink) (overlay.Style, string, error) {
	style := overlay.DefaultStyle()

	if v := c.PostForm("font_size"); v != "" {
		size, err := strconv.ParseFloat(v, 64)
		if err != nil || size <= 0 {
			return style, "", errors.Errorf("invalid font_size %q", v)
		}
		style.FontSize = size
	}

	if v := c.PostForm("bubble_radius"); v != "" {
		radius, err := strconv.ParseFloat(v, 64)
		if err != nil || radius < 0 {
			return style, "", errors.Errorf("invalid bubble_radius %q", v)
		}
		style.Radius = radius
	}

	style.Bubble = overlay.ResolveColor("bubble_color", c.PostForm("bubble_color"), style.Bubble, sink)
	style.Text = overlay.ResolveColor("text_color", c.PostForm("text_color"), style.Text, sink)

	engine := c.DefaultPostForm("engine", overlay.EngineUnipdf)
	for _, e := range overlay.Engines {
		if e == engine {
			return style, engine, nil
		}
	}

	return style, "", errors.Errorf("unknown engine %q", engine)
}

func saveUpload(file multipart.File, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func markedFilename(original string) string {
	name := sanitizeFilename(original)
	if strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name = name[:len(name)-4]
	}
	return name + "_marked.pdf"
}

// ensureTempDir creates the temp directory if it doesn't exist
func ensureTempDir(tempDir string) error {
	if tempDir == "" {
		return nil
	}
	return os.MkdirAll(tempDir, DefaultFilePermissions)
}

// sanitizeFilename removes path traversal attempts and dangerous characters
func sanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "..", "")
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.TrimSpace(filepath.Base(filename))

	if filename == "" || filename == "." {
		filename = "document.pdf"
	}

	return filename
}

// validatePDFFile checks the upload size and the PDF header
func validatePDFFile(file multipart.File, header *multipart.FileHeader, maxSize int64) error {
	if header.Size > maxSize {
		return errors.Errorf("file size %d exceeds maximum allowed %d bytes", header.Size, maxSize)
	}

	buffer := make([]byte, 4)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return errors.Wrap(err, "failed to read file header")
	}

	if n < 4 || string(buffer[:4]) != "%PDF" {
		return errors.New("invalid PDF file: header does not match")
	}

	_, err = file.Seek(0, io.SeekStart)
	return err
}
