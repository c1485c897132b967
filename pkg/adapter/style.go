package adapter

import (
	"tableflip.dev/agenda/pkg/calendar"
	"tableflip.dev/agenda/pkg/colorutil"
)

// NeutralTint is the background of items without a configured color.
const NeutralTint = "rgba(148, 163, 184, 0.18)"

// Style is the rendering color pair of an item.
type Style struct {
	Background string
	Foreground string
}

// StyleFor blends the item color toward white for the background and picks
// the text color against the unblended base, so text stays legible whatever
// the blend.
func StyleFor(it *calendar.Item) Style {
	if it == nil || it.Color == "" {
		return Style{Background: NeutralTint, Foreground: colorutil.DarkText}
	}
	return Style{
		Background: colorutil.Mix85(it.Color),
		Foreground: colorutil.ContrastText(it.Color),
	}
}
