package pdfutils

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

// GetPlacementID builds a stable id from the page and position, adding a
// numeric suffix when two bubbles round to the same spot.
func GetPlacementID(ids map[string]bool, page int, x float64, y float64) string {
	xInt := int(math.Round(x))
	yInt := int(math.Round(y))
	id := fmt.Sprintf("marker-p%dx%dy%d", page, xInt, yInt)
	_, ok := ids[id]

	for i := 1; ok; i++ {
		id = fmt.Sprintf("marker-p%dx%dy%d-%d", page, xInt, yInt, i)
		_, ok = ids[id]
	}

	ids[id] = true

	return id
}

// HasExt reports whether path ends in ext, ignoring case.
func HasExt(path, ext string) bool {
	return strings.EqualFold(filepath.Ext(path), ext)
}

// BaseName returns the file name without directory and extension.
func BaseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
