// Package overlay composites floating panels over a rendered screen.
package overlay

import (
	"strings"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/muesli/reflow/ansi"
)

const reset = "\x1b[0m"

// Point is a cell coordinate on the screen.
type Point struct {
	X, Y int
}

// Placement controls overlay alignment and sizing. When Anchor is set the
// overlay is placed next to it instead of being aligned.
type Placement struct {
	Horizontal lipgloss.Position
	Vertical   lipgloss.Position
	MarginX    int
	MarginY    int
	Width      int
	Height     int

	Anchor *Point
	// Gap is the horizontal distance kept between the anchor and the overlay.
	Gap int
}

// Rect is the area an overlay occupies.
type Rect struct {
	X, Y, Width, Height int
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.Width && p.Y >= r.Y && p.Y < r.Y+r.Height
}

// Empty reports whether r covers no cells.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Bounds computes where foreground lands on a width x height screen.
func Bounds(width, height int, foreground string, placement Placement) Rect {
	if foreground == "" || width <= 0 || height <= 0 {
		return Rect{}
	}
	fgLines := strings.Split(foreground, "\n")

	overlayWidth := placement.Width
	if overlayWidth <= 0 {
		for _, line := range fgLines {
			if w := lipgloss.Width(line); w > overlayWidth {
				overlayWidth = w
			}
		}
	}
	if overlayWidth <= 0 {
		return Rect{}
	}
	if overlayWidth > width {
		overlayWidth = width
	}

	overlayHeight := placement.Height
	if overlayHeight <= 0 {
		overlayHeight = len(fgLines)
	}
	if overlayHeight > height {
		overlayHeight = height
	}

	var offsetX, offsetY int
	if placement.Anchor != nil {
		offsetX, offsetY = anchoredOffsets(width, height, overlayWidth, overlayHeight, placement)
	} else {
		offsetX, offsetY = computeOffsets(width, height, overlayWidth, overlayHeight, placement)
	}
	return Rect{X: offsetX, Y: offsetY, Width: overlayWidth, Height: overlayHeight}
}

// Compose overlays the foreground view atop the background while preserving
// background content outside the overlay bounds.
func Compose(background string, width, height int, foreground string, placement Placement) string {
	bgLines := normalizeBackground(background, width, height)
	rect := Bounds(width, height, foreground, placement)
	if rect.Empty() {
		return strings.Join(bgLines, "\n")
	}
	fgLines := strings.Split(foreground, "\n")

	for row := 0; row < rect.Height; row++ {
		destY := rect.Y + row
		if destY < 0 || destY >= len(bgLines) {
			continue
		}
		fgLine := ""
		if row < len(fgLines) {
			fgLine = fgLines[row]
		}
		fgLine = padToWidth(fgLine, rect.Width)

		baseLine := bgLines[destY]
		prefix := sliceWidth(baseLine, 0, rect.X)
		suffix := sliceWidth(baseLine, rect.X+rect.Width, width)
		bgLines[destY] = prefix + reset + fgLine + reset + suffix
	}

	return strings.Join(bgLines, "\n")
}

func normalizeBackground(view string, width, height int) []string {
	lines := strings.Split(view, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	for i := range lines {
		lines[i] = padToWidth(lines[i], width)
	}
	return lines
}

func padToWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	currWidth := lipgloss.Width(s)
	if currWidth > width {
		return sliceWidth(s, 0, width)
	}
	return s + strings.Repeat(" ", width-currWidth)
}

// sliceWidth cuts the printable cells [start, end) out of s. Escape
// sequences are kept wherever they appear so styling carries over the cut.
func sliceWidth(s string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end <= start {
		return ""
	}

	var result strings.Builder
	widthSeen := 0
	inSeq := false
	for _, r := range s {
		if r == ansi.Marker {
			inSeq = true
			result.WriteRune(r)
			continue
		}
		if inSeq {
			result.WriteRune(r)
			if ansi.IsTerminator(r) {
				inSeq = false
			}
			continue
		}
		rw := ansi.PrintableRuneWidth(string(r))
		next := widthSeen + rw
		if next <= start {
			widthSeen = next
			continue
		}
		if next > end {
			break
		}
		if widthSeen >= start {
			result.WriteRune(r)
		}
		widthSeen = next
	}
	return result.String()
}

func computeOffsets(width, height, overlayWidth, overlayHeight int, placement Placement) (int, int) {
	h := placement.Horizontal
	if h == 0 {
		h = lipgloss.Center
	}
	v := placement.Vertical
	if v == 0 {
		v = lipgloss.Center
	}

	offsetX := placement.MarginX
	switch h {
	case lipgloss.Right:
		offsetX = width - overlayWidth - placement.MarginX
	case lipgloss.Center:
		offsetX = (width - overlayWidth) / 2
	}

	offsetY := placement.MarginY
	switch v {
	case lipgloss.Bottom:
		offsetY = height - overlayHeight - placement.MarginY
	case lipgloss.Center:
		offsetY = (height - overlayHeight) / 2
	}

	return clamp(offsetX, 0, width-overlayWidth), clamp(offsetY, 0, height-overlayHeight)
}

// anchoredOffsets puts the overlay to the right of the anchor, on its row,
// flipping to the left when it would run off screen.
func anchoredOffsets(width, height, overlayWidth, overlayHeight int, placement Placement) (int, int) {
	a := *placement.Anchor
	offsetX := a.X + placement.Gap
	if offsetX+overlayWidth > width {
		offsetX = a.X - placement.Gap - overlayWidth
	}
	offsetY := a.Y + placement.MarginY
	if offsetY+overlayHeight > height {
		offsetY = height - overlayHeight
	}
	return clamp(offsetX, 0, width-overlayWidth), clamp(offsetY, 0, height-overlayHeight)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
