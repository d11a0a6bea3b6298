package tui

import (
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/fbarrios/folio/panel"
)

// TerminalLimits are the panel limits in terminal cells.
func TerminalLimits() panel.Limits {
	return panel.Limits{
		Default: panel.Size{Width: 60, Height: 22},
		Min:     panel.Size{Width: 40, Height: 12},
		Max:     panel.Size{Width: 100, Height: 40},
		Presets: map[panel.Preset]panel.Size{
			panel.PresetCompact: {Width: 40, Height: 14},
			panel.PresetDefault: {Width: 60, Height: 22},
			panel.PresetLarge:   {Width: 90, Height: 32},
		},
		DefaultPosition: panel.Position{Bottom: 1, Right: 2},
		Margin:          1,
		Chrome:          2,
	}
}

// rect is a screen rectangle in cells, origin top-left.
type rect struct {
	X, Y, W, H int
}

func (r rect) contains(x, y int) bool {
	return x >= r.X && x < r.X+r.W && y >= r.Y && y < r.Y+r.H
}

// frame converts the bottom-right anchored geometry into a screen rectangle.
func frame(g panel.Geometry, screenW, screenH int) rect {
	w, h := g.Dimensions.Width, g.Dimensions.Height
	return rect{
		X: max(screenW-g.Position.Right-w, 0),
		Y: max(screenH-g.Position.Bottom-h, 0),
		W: w,
		H: h,
	}
}

// The panel's rows relative to its frame: border, header, body, input,
// border.
const (
	headerRow   = 1
	bodyTop     = 2
	chromeRows  = 4
	chromeCols  = 2
	inputOffset = 2 // rows above the bottom edge
)

func bodyHeight(r rect) int { return max(r.H-chromeRows, 1) }
func innerWidth(r rect) int { return max(r.W-chromeCols, 1) }

type zone int

const (
	zoneNone zone = iota
	zoneCorner
	zoneTop
	zoneLeft
	zoneHeader
	zoneButton
	zoneInput
	zoneBody
)

// headerButton is a clickable label at the right end of the header row.
type headerButton struct {
	label  string
	preset panel.Preset // empty for the clear button
}

var headerButtons = []headerButton{
	{label: "S", preset: panel.PresetCompact},
	{label: "M", preset: panel.PresetDefault},
	{label: "L", preset: panel.PresetLarge},
	{label: "clear"},
}

// buttonSpan is the column range of one button, relative to the inner area.
type buttonSpan struct {
	button     headerButton
	start, end int
}

func buttonsText() string {
	var b strings.Builder
	for _, btn := range headerButtons {
		b.WriteString("[" + btn.label + "]")
	}
	return b.String()
}

// buttonSpans lays the buttons out right-aligned in an inner width of iw,
// leaving one trailing blank.
func buttonSpans(iw int) []buttonSpan {
	col := iw - len(buttonsText()) - 1
	spans := make([]buttonSpan, 0, len(headerButtons))
	for _, btn := range headerButtons {
		n := len(btn.label) + 2
		spans = append(spans, buttonSpan{button: btn, start: col, end: col + n})
		col += n
	}
	return spans
}

// zoneAt hit-tests a screen cell against the panel frame r. The matching
// button is returned for zoneButton.
func zoneAt(r rect, x, y int) (zone, *headerButton) {
	if !r.contains(x, y) {
		return zoneNone, nil
	}
	dx, dy := x-r.X, y-r.Y
	switch {
	case dx == 0 && dy == 0:
		return zoneCorner, nil
	case dy == 0:
		return zoneTop, nil
	case dx == 0:
		return zoneLeft, nil
	case dy == headerRow:
		col := dx - 1
		for _, s := range buttonSpans(innerWidth(r)) {
			if col >= s.start && col < s.end {
				btn := s.button
				return zoneButton, &btn
			}
		}
		return zoneHeader, nil
	case dy == r.H-inputOffset:
		return zoneInput, nil
	default:
		return zoneBody, nil
	}
}

// overlay draws fg at r over the background rows. Rows and columns that fall
// off screen are cut.
func overlay(bg []string, fg []string, r rect, screenW int) []string {
	out := append([]string(nil), bg...)
	visibleW := min(r.W, screenW-r.X)
	if visibleW <= 0 {
		return out
	}
	for i, line := range fg {
		row := r.Y + i
		if row < 0 || row >= len(out) {
			continue
		}
		base := out[row]
		left := ansi.Truncate(base, r.X, "")
		if pad := r.X - ansi.StringWidth(left); pad > 0 {
			left += strings.Repeat(" ", pad)
		}
		mid := ansi.Truncate(line, visibleW, "")
		right := ansi.TruncateLeft(base, r.X+visibleW, "")
		out[row] = left + mid + "\x1b[0m" + right
	}
	return out
}

// fit pads or cuts s to exactly w cells.
func fit(s string, w int) string {
	if w <= 0 {
		return ""
	}
	s = ansi.Truncate(s, w, "")
	if pad := w - ansi.StringWidth(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}
