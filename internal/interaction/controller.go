// Package interaction turns pointer and keyboard input into diagram and
// viewport mutations. The Controller is a small state machine: at most one
// gesture (node drag, canvas pan, connection drawing) is active at a time.
//
// Controllers are not safe for concurrent use. Every mutation happens inside
// the input call that caused it.
package interaction

import (
	"github.com/alfredjeanlab/storyweb/internal/diagram"
	"github.com/alfredjeanlab/storyweb/internal/geometry"
	"github.com/alfredjeanlab/storyweb/internal/viewport"
)

// DragThreshold is how far, in screen pixels, the pointer must travel from
// its press position before a gesture counts as a drag rather than a click.
const DragThreshold = 3.0

// State is the controller's current gesture.
type State int

const (
	Idle State = iota
	DraggingNode
	PanningCanvas
	DrawingConnection
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case DraggingNode:
		return "dragging_node"
	case PanningCanvas:
		return "panning_canvas"
	case DrawingConnection:
		return "drawing_connection"
	default:
		return "unknown"
	}
}

// Button identifies a pointer button.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonSecondary
	ButtonMiddle
)

// Modifiers are the keyboard modifiers held during a pointer event.
type Modifiers struct {
	// Pan turns a primary-button press on empty canvas into a pan.
	Pan bool
	// Fine selects the finer wheel zoom step.
	Fine bool
}

// PointerEvent is a pointer press, move or release in screen coordinates.
type PointerEvent struct {
	Pos    geometry.Point
	Button Button
	Mods   Modifiers
}

// Key is a keyboard key the controller reacts to.
type Key int

const (
	// KeyPan is the held key that arms canvas panning (space bar).
	KeyPan Key = iota
	KeyEscape
	KeyDelete
)

// Controller drives one diagram through one viewport.
type Controller struct {
	diagram  *diagram.Diagram
	viewport *viewport.Viewport

	state    State
	active   string // dragged node or connection source
	selected string

	moveTool bool
	panKey   bool

	pressed      bool
	pressAt      geometry.Point
	last         geometry.Point
	moved        bool
	canvasPress  bool
	pointerWorld geometry.Point
}

// New returns an idle controller.
func New(d *diagram.Diagram, vp *viewport.Viewport) *Controller {
	return &Controller{diagram: d, viewport: vp}
}

// State returns the active gesture.
func (c *Controller) State() State { return c.state }

// ActiveNode returns the node being dragged, or the source of the connection
// being drawn. It is empty when idle or panning.
func (c *Controller) ActiveNode() string { return c.active }

// Selected returns the selected node id, or "".
func (c *Controller) Selected() string { return c.selected }

// Select marks a node as selected. Unknown ids clear the selection.
func (c *Controller) Select(id string) {
	if !c.diagram.HasNode(id) {
		c.selected = ""
		return
	}
	c.selected = id
}

// ClearSelection deselects any node.
func (c *Controller) ClearSelection() { c.selected = "" }

// MoveTool reports whether the move tool is on.
func (c *Controller) MoveTool() bool { return c.moveTool }

// SetMoveTool toggles the move tool. While on, primary-button presses on
// empty canvas pan.
func (c *Controller) SetMoveTool(on bool) { c.moveTool = on }

// PointerDown starts a gesture.
func (c *Controller) PointerDown(ev PointerEvent) {
	world := c.viewport.ScreenToWorld(ev.Pos)
	c.pointerWorld = world

	if c.state == DrawingConnection {
		c.finishConnection(world)
		return
	}
	if c.state != Idle || c.pressed {
		return
	}

	c.pressed = true
	c.pressAt = ev.Pos
	c.last = ev.Pos
	c.moved = false
	c.canvasPress = false

	hit, onNode := c.diagram.NodeAt(world)
	switch {
	case ev.Button == ButtonPrimary && onNode:
		c.state = DraggingNode
		c.active = hit
	case onNode:
		// Secondary presses on nodes are left to context menus.
	case ev.Button == ButtonSecondary || ev.Button == ButtonMiddle:
		c.state = PanningCanvas
	case ev.Mods.Pan || c.panKey || c.moveTool:
		c.state = PanningCanvas
	default:
		c.canvasPress = true
	}
}

// PointerMove continues the active gesture.
func (c *Controller) PointerMove(ev PointerEvent) {
	c.pointerWorld = c.viewport.ScreenToWorld(ev.Pos)
	if !c.pressed {
		return
	}
	if !c.moved && c.pressAt.Dist(ev.Pos) > DragThreshold {
		c.moved = true
	}

	switch c.state {
	case DraggingNode:
		if !c.moved {
			return
		}
		dx, dy := c.viewport.ScreenDeltaToWorld(ev.Pos.X-c.last.X, ev.Pos.Y-c.last.Y)
		c.diagram.MoveNode(c.active, dx, dy)
	case PanningCanvas:
		c.viewport.PanBy(ev.Pos.X-c.last.X, ev.Pos.Y-c.last.Y)
	}
	c.last = ev.Pos
}

// PointerUp ends the active gesture. A press and release that stayed within
// DragThreshold is a click: on a node it selects the node, on empty canvas
// it clears the selection.
func (c *Controller) PointerUp(ev PointerEvent) {
	c.pointerWorld = c.viewport.ScreenToWorld(ev.Pos)
	if !c.pressed {
		return
	}
	if !c.moved && c.pressAt.Dist(ev.Pos) > DragThreshold {
		c.moved = true
	}

	switch c.state {
	case DraggingNode:
		if !c.moved {
			c.selected = c.active
		}
	case Idle:
		if c.canvasPress && !c.moved {
			c.selected = ""
		}
	}
	c.endGesture()
}

// StartConnection begins drawing a connection from nodeID. It is only
// accepted while idle and for an existing node.
func (c *Controller) StartConnection(nodeID string) bool {
	if c.state != Idle || c.pressed || !c.diagram.HasNode(nodeID) {
		return false
	}
	c.state = DrawingConnection
	c.active = nodeID
	if n, ok := c.diagram.Node(nodeID); ok {
		c.pointerWorld = diagram.Bounds(n).Center()
	}
	return true
}

// PendingConnection returns the source node and the current pointer position
// (diagram units) while a connection is being drawn.
func (c *Controller) PendingConnection() (string, geometry.Point, bool) {
	if c.state != DrawingConnection {
		return "", geometry.Point{}, false
	}
	return c.active, c.pointerWorld, true
}

// Cancel aborts the active gesture without creating anything. A node already
// dragged stays where it was dropped.
func (c *Controller) Cancel() {
	c.endGesture()
}

// Wheel zooms around the cursor. It is accepted in every state.
func (c *Controller) Wheel(delta float64, cursor geometry.Point, mods Modifiers) {
	c.viewport.ZoomAtCursor(delta, cursor, mods.Fine)
}

// KeyDown handles a key press.
func (c *Controller) KeyDown(k Key) {
	switch k {
	case KeyPan:
		c.panKey = true
	case KeyEscape:
		c.Cancel()
	case KeyDelete:
		c.DeleteSelected()
	}
}

// KeyUp handles a key release.
func (c *Controller) KeyUp(k Key) {
	if k == KeyPan {
		c.panKey = false
	}
}

// DeleteSelected removes the selected node and its connections. Any gesture
// involving that node is cancelled.
func (c *Controller) DeleteSelected() bool {
	id := c.selected
	if id == "" {
		return false
	}
	if c.active == id {
		c.endGesture()
	}
	c.selected = ""
	return c.diagram.RemoveNode(id)
}

func (c *Controller) finishConnection(world geometry.Point) {
	source := c.active
	if target, ok := c.diagram.NodeAt(world); ok && target != source {
		c.diagram.AddConnection(source, target)
	}
	c.endGesture()
}

func (c *Controller) endGesture() {
	c.state = Idle
	c.active = ""
	c.pressed = false
	c.moved = false
	c.canvasPress = false
}
