// Package panel controls the geometry of the floating chat panel: size and a
// position anchored to the viewport's bottom-right corner, driven by
// drag and resize gestures, clamped to limits, and persisted at gesture end.
package panel

// Size is a panel's width and height.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Position offsets the panel from the viewport's bottom-right corner.
type Position struct {
	Bottom int `json:"bottom"`
	Right  int `json:"right"`
}

// Geometry is the persisted panel state.
type Geometry struct {
	Dimensions Size     `json:"dimensions"`
	Position   Position `json:"position"`
}

// Viewport is the visible area the panel lives in.
type Viewport struct {
	Width  int
	Height int
}

// Point is a pointer location in viewport coordinates (origin top-left).
type Point struct {
	X int
	Y int
}

// Preset names a fixed panel size.
type Preset string

const (
	PresetCompact Preset = "compact"
	PresetDefault Preset = "default"
	PresetLarge   Preset = "large"
)

// Edge is the resize handle a gesture started on.
type Edge int

const (
	EdgeTop Edge = iota
	EdgeLeft
	EdgeCorner
)

func (e Edge) String() string {
	switch e {
	case EdgeTop:
		return "top"
	case EdgeLeft:
		return "left"
	case EdgeCorner:
		return "corner"
	default:
		return "unknown"
	}
}

// Target classifies what a drag-starting press landed on.
type Target int

const (
	TargetHandle Target = iota
	TargetButton
	TargetInput
	TargetTextArea
)

// Interactive reports whether the target consumes pointer presses itself.
func (t Target) Interactive() bool {
	return t == TargetButton || t == TargetInput || t == TargetTextArea
}

// Limits bounds the geometry. Units are whatever the binding uses: pixels in
// a browser, cells in a terminal.
type Limits struct {
	Default         Size
	Min             Size
	Max             Size
	Presets         map[Preset]Size
	DefaultPosition Position
	// Margin is the closest the panel may come to a viewport edge.
	Margin int
	// Chrome is the vertical space reserved outside the panel; the height is
	// capped at viewport height minus Chrome.
	Chrome int
}

// DefaultLimits are the pixel constants of the web panel.
func DefaultLimits() Limits {
	return Limits{
		Default: Size{Width: 500, Height: 600},
		Min:     Size{Width: 380, Height: 500},
		Max:     Size{Width: 600, Height: 800},
		Presets: map[Preset]Size{
			PresetCompact: {Width: 380, Height: 500},
			PresetDefault: {Width: 500, Height: 600},
			PresetLarge:   {Width: 600, Height: 700},
		},
		DefaultPosition: Position{Bottom: 90, Right: 20},
		Margin:          20,
		Chrome:          120,
	}
}

// DefaultGeometry is the geometry used when nothing valid is stored.
func (l Limits) DefaultGeometry() Geometry {
	return Geometry{Dimensions: l.Default, Position: l.DefaultPosition}
}

// ClampSize bounds s to [Min, Max] per axis, with the height further capped
// by the viewport. Min wins when the caps cross.
func (l Limits) ClampSize(s Size, vp Viewport) Size {
	maxH := l.Max.Height
	if vp.Height > 0 {
		maxH = min(maxH, vp.Height-l.Chrome)
	}
	return Size{
		Width:  max(l.Min.Width, min(l.Max.Width, s.Width)),
		Height: max(l.Min.Height, min(maxH, s.Height)),
	}
}

// ClampPosition keeps a panel of size s inside
// [Margin, viewport - size - Margin] on both axes. Margin wins when the
// viewport is too small.
func (l Limits) ClampPosition(p Position, s Size, vp Viewport) Position {
	return Position{
		Bottom: max(l.Margin, min(vp.Height-s.Height-l.Margin, p.Bottom)),
		Right:  max(l.Margin, min(vp.Width-s.Width-l.Margin, p.Right)),
	}
}
