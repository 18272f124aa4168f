// Package viewport owns the pan offset and zoom scale of a diagram canvas and
// converts between screen and diagram-local coordinates.
//
// The transform is screen = world*scale + offset.
package viewport

import (
	"math"

	"github.com/alfredjeanlab/storyweb/internal/geometry"
)

const (
	MinScale = 0.3
	MaxScale = 3.0

	// ZoomStep is the factor applied by ZoomIn and ZoomOut.
	ZoomStep = 1.2
	// WheelStep and FineWheelStep are applied per wheel notch; the fine step
	// is used while the zoom modifier is held.
	WheelStep     = 1.1
	FineWheelStep = 1.02
)

// State is a serializable copy of the viewport.
type State struct {
	Scale  float64        `json:"scale"`
	Offset geometry.Point `json:"offset"`
}

// Viewport is the pan/zoom state of one canvas. The zero value is not ready;
// use New.
type Viewport struct {
	scale  float64
	offset geometry.Point
}

// New returns a viewport at scale 1 with no offset.
func New() *Viewport {
	return &Viewport{scale: 1}
}

// Scale returns the current zoom factor, always within [MinScale, MaxScale].
func (v *Viewport) Scale() float64 { return v.scale }

// Offset returns the current pan offset in screen units.
func (v *Viewport) Offset() geometry.Point { return v.offset }

// State returns a copy of the viewport state.
func (v *Viewport) State() State {
	return State{Scale: v.scale, Offset: v.offset}
}

// Restore replaces the viewport state, clamping the scale.
func (v *Viewport) Restore(s State) {
	v.scale = clampScale(s.Scale)
	v.offset = s.Offset
}

// ZoomIn multiplies the scale by ZoomStep.
func (v *Viewport) ZoomIn() {
	v.scale = clampScale(v.scale * ZoomStep)
}

// ZoomOut divides the scale by ZoomStep.
func (v *Viewport) ZoomOut() {
	v.scale = clampScale(v.scale / ZoomStep)
}

// ZoomAtCursor applies one wheel notch. Negative delta zooms in, positive
// zooms out, zero is ignored. The diagram point under cursor (screen
// coordinates) stays under the cursor.
func (v *Viewport) ZoomAtCursor(delta float64, cursor geometry.Point, fine bool) {
	if delta == 0 || math.IsNaN(delta) {
		return
	}
	step := WheelStep
	if fine {
		step = FineWheelStep
	}
	next := v.scale * step
	if delta > 0 {
		next = v.scale / step
	}
	next = clampScale(next)
	if next == v.scale {
		return
	}

	world := v.ScreenToWorld(cursor)
	v.scale = next
	v.offset = geometry.Point{
		X: cursor.X - world.X*next,
		Y: cursor.Y - world.Y*next,
	}
}

// PanBy accumulates a screen-space delta into the offset.
func (v *Viewport) PanBy(dx, dy float64) {
	v.offset.X += dx
	v.offset.Y += dy
}

// Reset restores scale 1 and zero offset.
func (v *Viewport) Reset() {
	v.scale = 1
	v.offset = geometry.Point{}
}

// ScreenToWorld converts a screen point into diagram-local coordinates.
func (v *Viewport) ScreenToWorld(p geometry.Point) geometry.Point {
	return geometry.Point{
		X: (p.X - v.offset.X) / v.scale,
		Y: (p.Y - v.offset.Y) / v.scale,
	}
}

// WorldToScreen converts a diagram-local point into screen coordinates.
func (v *Viewport) WorldToScreen(p geometry.Point) geometry.Point {
	return geometry.Point{
		X: p.X*v.scale + v.offset.X,
		Y: p.Y*v.scale + v.offset.Y,
	}
}

// ScreenDeltaToWorld divides a pointer delta by the current scale.
func (v *Viewport) ScreenDeltaToWorld(dx, dy float64) (float64, float64) {
	return dx / v.scale, dy / v.scale
}

func clampScale(s float64) float64 {
	if math.IsNaN(s) {
		return 1
	}
	return math.Max(MinScale, math.Min(MaxScale, s))
}
