// Package colorutil derives readable text colors and tinted backgrounds from
// the base colors users assign to agenda items.
package colorutil

import (
	"fmt"
	"image/color"
	"regexp"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	// DarkText is used on light backgrounds.
	DarkText = "#111827"
	// LightText is used on dark backgrounds.
	LightText = "#ffffff"
	// NeutralFallback is returned by MixWithWhite for colors it cannot parse.
	NeutralFallback = "rgba(0, 0, 0, 0.06)"

	// DefaultMix is the share of white blended into item backgrounds.
	DefaultMix = 0.85

	contrastThreshold = 0.5
)

// RGBA is a parsed color with 8-bit channels and a fractional alpha.
type RGBA struct {
	R, G, B uint8
	A       float64
}

// String renders the color in CSS rgba() notation.
func (c RGBA) String() string {
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", c.R, c.G, c.B, strconv.FormatFloat(c.A, 'f', -1, 64))
}

// Hex renders the color channels as #rrggbb, dropping alpha.
func (c RGBA) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Color converts to a non-premultiplied image/color value.
func (c RGBA) Color() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(clampFloat(c.A, 0, 1)*255 + 0.5)}
}

func (c RGBA) colorful() colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

var funcPattern = regexp.MustCompile(`^rgba?\(\s*([^,\s]+)\s*,\s*([^,\s]+)\s*,\s*([^,\s)]+)\s*(?:,\s*([^,\s)]+)\s*)?\)$`)

// Parse accepts #rgb, #rrggbb (the # is optional), rgb(r, g, b) and
// rgba(r, g, b, a). Channels are clamped to 0-255 and alpha to 0-1.
func Parse(s string) (RGBA, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return RGBA{}, false
	}
	if strings.HasPrefix(s, "rgb") {
		return parseFunc(s)
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 3 && len(hex) != 6 {
		return RGBA{}, false
	}
	for _, r := range hex {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return RGBA{}, false
		}
	}
	c, err := colorful.Hex("#" + hex)
	if err != nil {
		return RGBA{}, false
	}
	r, g, b := c.Clamped().RGB255()
	return RGBA{R: r, G: g, B: b, A: 1}, true
}

func parseFunc(s string) (RGBA, bool) {
	m := funcPattern.FindStringSubmatch(s)
	if m == nil {
		return RGBA{}, false
	}
	var ch [3]uint8
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return RGBA{}, false
		}
		ch[i] = uint8(clampFloat(v, 0, 255) + 0.5)
	}
	a := 1.0
	if m[4] != "" {
		v, err := strconv.ParseFloat(m[4], 64)
		if err != nil {
			return RGBA{}, false
		}
		a = clampFloat(v, 0, 1)
	}
	return RGBA{R: ch[0], G: ch[1], B: ch[2], A: a}, true
}

// Luminance is the WCAG relative luminance of c.
func Luminance(c RGBA) float64 {
	r, g, b := c.colorful().LinearRgb()
	return 0.2126*r + 0.7152*g + 0.0722*b
}

// ContrastFor picks the text color for a background of luminance l.
func ContrastFor(l float64) string {
	if l >= contrastThreshold {
		return DarkText
	}
	return LightText
}

// ContrastText returns a text color that stays legible on s. Unparsable input
// gets dark text.
func ContrastText(s string) string {
	c, ok := Parse(s)
	if !ok {
		return DarkText
	}
	return ContrastFor(Luminance(c))
}

// MixWithWhite moves each channel of s toward 255 by t, keeping alpha.
func MixWithWhite(s string, t float64) string {
	c, ok := Mix(s, t)
	if !ok {
		return NeutralFallback
	}
	return c.String()
}

// Mix85 is MixWithWhite with the default blend.
func Mix85(s string) string {
	return MixWithWhite(s, DefaultMix)
}

// Mix is MixWithWhite returning the parsed result.
func Mix(s string, t float64) (RGBA, bool) {
	c, ok := Parse(s)
	if !ok {
		return RGBA{}, false
	}
	t = clampFloat(t, 0, 1)
	blended := c.colorful().BlendRgb(colorful.Color{R: 1, G: 1, B: 1}, t)
	r, g, b := blended.Clamped().RGB255()
	return RGBA{R: r, G: g, B: b, A: c.A}, true
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
