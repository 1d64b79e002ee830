package pdfutils

import (
	"fmt"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

// Color is an RGB colour with an alpha channel, all components in [0, 1].
type Color struct {
	colorful.Color
	Alpha float64
}

var (
	// LightSkyBlue is the default bubble colour.
	LightSkyBlue = Color{Color: colorful.Color{R: 0x87 / 255.0, G: 0xCE / 255.0, B: 0xFA / 255.0}, Alpha: 1}
	// Black is the default label colour.
	Black = Color{Alpha: 1}
)

// ParseColor accepts "#RRGGBB" or "#RRGGBBAA", with or without the leading
// '#'. The caller decides what to fall back to on error.
func ParseColor(value string) (Color, error) {
	hex := strings.TrimPrefix(strings.TrimSpace(value), "#")

	if len(hex) != 6 && len(hex) != 8 {
		return Color{}, errors.Errorf("invalid color %q: expected #RRGGBB or #RRGGBBAA", value)
	}

	c, err := colorful.Hex("#" + hex[:6])
	if err != nil {
		return Color{}, errors.Errorf("invalid color %q: %v", value, err)
	}

	alpha := 1.0
	if len(hex) == 8 {
		a, err := strconv.ParseUint(hex[6:], 16, 8)
		if err != nil {
			return Color{}, errors.Errorf("invalid color %q: bad alpha", value)
		}
		alpha = float64(a) / 255
	}

	return Color{Color: c, Alpha: alpha}, nil
}

// Translucent reports whether the colour needs an alpha graphics state.
func (c Color) Translucent() bool {
	return c.Alpha < 1
}

func toHEXStr(i int) string {
	s := fmt.Sprintf("%x", i)

	if len(s) == 1 {
		return "0" + s
	}

	return s
}

// Hex formats the colour as "#rrggbb", with an alpha byte appended when the
// colour is not opaque.
func (c Color) Hex() string {
	r, g, b := c.RGB255()
	s := "#" + toHEXStr(int(r)) + toHEXStr(int(g)) + toHEXStr(int(b))

	if c.Translucent() {
		s += toHEXStr(int(c.Alpha*255 + 0.5))
	}

	return s
}

// ColorCategory names the colour family, for the placement report.
func ColorCategory(c Color) string {
	h, s, l := c.Hsl()

	// define color category based on HSL
	if l < 0.12 {
		return "Black"
	}
	if l > 0.98 {
		return "White"
	}
	if s < 0.2 {
		return "Gray"
	}
	if h < 15 {
		return "Red"
	}
	if h < 45 {
		return "Orange"
	}
	if h < 65 {
		return "Yellow"
	}
	if h < 170 {
		return "Green"
	}
	if h < 190 {
		return "Cyan"
	}
	if h < 263 {
		return "Blue"
	}
	if h < 280 {
		return "Purple"
	}
	if h < 335 {
		return "Magenta"
	}
	return "Red"
}
