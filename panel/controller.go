package panel

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/fbarrios/folio/logger"
)

type gestureKind int

const (
	gestureResize gestureKind = iota + 1
	gestureDrag
)

// gesture snapshots the pointer and geometry at gesture start.
type gesture struct {
	kind  gestureKind
	edge  Edge
	start Point
	from  Geometry
}

// Controller owns one panel's geometry. Pointer moves never touch the store;
// only gesture ends, presets and resets persist.
type Controller struct {
	mu       sync.Mutex
	store    Store
	limits   Limits
	viewport Viewport
	geo      Geometry
	active   *gesture
}

// NewController loads the stored geometry once, falling back to the default
// when nothing valid is stored, and clamps it to vp.
func NewController(store Store, limits Limits, vp Viewport) *Controller {
	c := &Controller{store: store, limits: limits, viewport: vp}
	geo, ok := c.load()
	if !ok {
		geo = limits.DefaultGeometry()
	}
	c.geo = c.clamp(geo)
	return c
}

func (c *Controller) load() (Geometry, bool) {
	if c.store == nil {
		return Geometry{}, false
	}
	raw, ok, err := c.store.Get(StorageKey)
	if err != nil {
		logger.Debug("panel preferences unreadable", "err", err)
		return Geometry{}, false
	}
	if !ok || !gjson.ValidBytes(raw) {
		return Geometry{}, false
	}

	doc := gjson.ParseBytes(raw)
	fields := []gjson.Result{
		doc.Get("dimensions.width"),
		doc.Get("dimensions.height"),
		doc.Get("position.bottom"),
		doc.Get("position.right"),
	}
	for _, f := range fields {
		if f.Type != gjson.Number {
			return Geometry{}, false
		}
	}
	return Geometry{
		Dimensions: Size{Width: int(fields[0].Int()), Height: int(fields[1].Int())},
		Position:   Position{Bottom: int(fields[2].Int()), Right: int(fields[3].Int())},
	}, true
}

func (c *Controller) persist() {
	if c.store == nil {
		return
	}
	data, err := json.Marshal(c.geo)
	if err != nil {
		return
	}
	if err := c.store.Set(StorageKey, data); err != nil {
		logger.Warn("failed to save panel preferences", "err", err)
	}
}

func (c *Controller) clamp(g Geometry) Geometry {
	g.Dimensions = c.limits.ClampSize(g.Dimensions, c.viewport)
	g.Position = c.limits.ClampPosition(g.Position, g.Dimensions, c.viewport)
	return g
}

// Geometry returns the current geometry.
func (c *Controller) Geometry() Geometry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.geo
}

// Viewport returns the viewport the geometry is clamped against.
func (c *Controller) Viewport() Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport
}

// Resizing reports whether a resize gesture is active.
func (c *Controller) Resizing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil && c.active.kind == gestureResize
}

// Dragging reports whether a drag gesture is active.
func (c *Controller) Dragging() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil && c.active.kind == gestureDrag
}

// StartResize begins a resize from edge at p.
func (c *Controller) StartResize(edge Edge, p Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = &gesture{kind: gestureResize, edge: edge, start: p, from: c.geo}
}

// StartDrag begins a move at p. Presses on interactive targets are ignored;
// it reports whether a drag started.
func (c *Controller) StartDrag(p Point, on Target) bool {
	if on.Interactive() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = &gesture{kind: gestureDrag, start: p, from: c.geo}
	return true
}

// Move applies the pointer at p to the active gesture. Deltas are measured
// toward the top-left because the panel is anchored bottom-right.
func (c *Controller) Move(p Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g := c.active
	if g == nil {
		return
	}
	dx := g.start.X - p.X
	dy := g.start.Y - p.Y

	next := c.geo
	switch g.kind {
	case gestureResize:
		size := g.from.Dimensions
		switch g.edge {
		case EdgeTop:
			size.Height += dy
		case EdgeLeft:
			size.Width += dx
		case EdgeCorner:
			size.Width += dx
			size.Height += dy
		}
		next.Dimensions = size
	case gestureDrag:
		next.Position = Position{
			Bottom: g.from.Position.Bottom + dy,
			Right:  g.from.Position.Right + dx,
		}
	}
	c.geo = c.clamp(next)
}

// End finishes the active gesture and persists the result. It reports
// whether a gesture was active.
func (c *Controller) End() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return false
	}
	c.active = nil
	c.persist()
	return true
}

// Resized re-clamps the position against a new viewport. The size is left
// as is.
func (c *Controller) Resized(vp Viewport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.viewport = vp
	c.geo.Position = c.limits.ClampPosition(c.geo.Position, c.geo.Dimensions, vp)
}

// SetPreset switches to a preset size and persists.
func (c *Controller) SetPreset(name Preset) error {
	size, ok := c.limits.Presets[name]
	if !ok {
		return fmt.Errorf("unknown panel preset %q", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.geo = c.clamp(Geometry{Dimensions: size, Position: c.geo.Position})
	c.persist()
	return nil
}

// Reset restores the default size and position and persists.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = nil
	c.geo = c.clamp(c.limits.DefaultGeometry())
	c.persist()
}
