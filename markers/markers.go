// Package markers reads the coordinate files exported by the document
// viewer and turns them into numbered marker records.
package markers

import (
	"bufio"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/mgmeyers/pdfmarkers/logging"
)

// Marker is one numbered bubble. Index is 1-based and dense over the valid
// lines of the file.
type Marker struct {
	Index int
	Page  int
	RawX  float64
	RawY  float64
	Scale float64
}

// DocPoint divides the raw viewer coordinates by the marker's scale. The
// result is only meaningful when Scale > 0.
func (m Marker) DocPoint() (float64, float64) {
	return m.RawX / m.Scale, m.RawY / m.Scale
}

// ReadFile parses the coordinates file at path. UTF-8 and UTF-16 files with
// a byte order mark are decoded, anything else is read as UTF-8.
func ReadFile(path string, sink logging.Sink) ([]Marker, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open coordinates file")
	}
	defer f.Close()

	return Read(f, sink)
}

// Read parses a coordinates stream.
func Read(r io.Reader, sink logging.Sink) ([]Marker, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	var lines []string
	scanner := bufio.NewScanner(decoded)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read coordinates")
	}

	return Parse(lines, sink), nil
}

// Parse converts lines of the form "page x y scale" into markers. Blank
// lines and lines starting with '#' are ignored, invalid lines are skipped
// with a warning and do not consume an index.
func Parse(lines []string, sink logging.Sink) []Marker {
	markers := []Marker{}

	for i, raw := range lines {
		lineNo := i + 1
		line := strings.TrimSpace(raw)

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := tokenize(line)
		if len(parts) < 4 {
			logging.Warnf(sink, "Skipping malformed line %d: %s", lineNo, strings.TrimRight(raw, "\r\n"))
			continue
		}

		page, err := strconv.Atoi(parts[0])
		if err != nil {
			logging.Warnf(sink, "Skipping unparsable line %d: %s", lineNo, strings.TrimRight(raw, "\r\n"))
			continue
		}

		values, ok := parseFloats(parts[1:4])
		if !ok {
			logging.Warnf(sink, "Skipping unparsable line %d: %s", lineNo, strings.TrimRight(raw, "\r\n"))
			continue
		}

		if page <= 0 {
			logging.Warnf(sink, "Skipping line %d with invalid page index: %s", lineNo, strings.TrimRight(raw, "\r\n"))
			continue
		}

		if values[2] > 0 && !finiteQuotient(values[0], values[1], values[2]) {
			logging.Warnf(sink, "Skipping line %d with out of range coordinates: %s", lineNo, strings.TrimRight(raw, "\r\n"))
			continue
		}

		markers = append(markers, Marker{
			Index: len(markers) + 1,
			Page:  page,
			RawX:  values[0],
			RawY:  values[1],
			Scale: values[2],
		})
	}

	return markers
}

// tokenize splits a line on whitespace. When that yields at least four
// values, commas left inside a value are decimal commas ("12,5"); otherwise
// commas separate the values ("1,12.5,40,2").
func tokenize(line string) []string {
	var tokens []string
	for _, f := range strings.Fields(line) {
		if f = strings.Trim(f, ","); f != "" {
			tokens = append(tokens, f)
		}
	}

	if len(tokens) >= 4 {
		for i, t := range tokens {
			tokens[i] = strings.ReplaceAll(t, ",", ".")
		}
		return tokens
	}

	return strings.Fields(strings.ReplaceAll(line, ",", " "))
}

func parseFloats(parts []string) ([]float64, bool) {
	values := make([]float64, 0, len(parts))

	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
		values = append(values, v)
	}

	return values, true
}

// finiteQuotient reports whether x/scale and y/scale are both finite.
func finiteQuotient(x, y, scale float64) bool {
	return !math.IsInf(x/scale, 0) && !math.IsInf(y/scale, 0)
}

// Grouped maps a 1-based page number to the markers on that page, in file
// order. It is built once and only read afterwards.
type Grouped map[int][]Marker

// GroupByPage partitions markers by page.
func GroupByPage(markers []Marker) Grouped {
	grouped := Grouped{}

	for _, m := range markers {
		grouped[m.Page] = append(grouped[m.Page], m)
	}

	return grouped
}

// Pages returns the referenced page numbers in ascending order.
func (g Grouped) Pages() []int {
	pages := make([]int, 0, len(g))
	for p := range g {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	return pages
}

// Count returns the total number of markers across all pages.
func (g Grouped) Count() int {
	n := 0
	for _, ms := range g {
		n += len(ms)
	}
	return n
}
