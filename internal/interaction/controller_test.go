package interaction

import (
	"fmt"
	"math"
	"testing"

	"github.com/alfredjeanlab/storyweb/internal/diagram"
	"github.com/alfredjeanlab/storyweb/internal/geometry"
	"github.com/alfredjeanlab/storyweb/internal/model"
	"github.com/alfredjeanlab/storyweb/internal/viewport"
)

// newTestController returns a controller over nodes A at (0,0) and B at
// (300,0), both 100x50, with an identity viewport.
func newTestController(t *testing.T) (*Controller, *diagram.Diagram, *viewport.Viewport) {
	t.Helper()
	n := 0
	d := diagram.FromSnapshot(model.DiagramSnapshot{
		Nodes: []model.DiagramNode{
			{ID: "A", Name: "Ada", X: 0, Y: 0, Width: 100, Height: 50},
			{ID: "B", Name: "Bram", X: 300, Y: 0, Width: 100, Height: 50},
		},
	}, diagram.WithIDFunc(func() (string, error) {
		n++
		return fmt.Sprintf("cx-%d", n), nil
	}))
	vp := viewport.New()
	return New(d, vp), d, vp
}

func at(x, y float64) PointerEvent {
	return PointerEvent{Pos: geometry.Point{X: x, Y: y}}
}

func TestClickSelectsNode(t *testing.T) {
	c, d, _ := newTestController(t)
	c.PointerDown(at(50, 25))
	if c.State() != DraggingNode || c.ActiveNode() != "A" {
		t.Fatalf("state = %s active = %q", c.State(), c.ActiveNode())
	}
	c.PointerMove(at(52, 26)) // within threshold
	c.PointerUp(at(52, 26))

	if c.State() != Idle {
		t.Errorf("state after up = %s", c.State())
	}
	if c.Selected() != "A" {
		t.Errorf("selected = %q, want A", c.Selected())
	}
	if n, _ := d.Node("A"); n.X != 0 || n.Y != 0 {
		t.Errorf("sub-threshold motion moved node to (%v, %v)", n.X, n.Y)
	}
}

func TestDragMovesNodeWithoutSelecting(t *testing.T) {
	c, d, _ := newTestController(t)
	c.Select("B")

	c.PointerDown(at(50, 25))
	c.PointerMove(at(55, 25))
	c.PointerMove(at(70, 35))
	c.PointerUp(at(70, 35))

	n, _ := d.Node("A")
	if n.X != 20 || n.Y != 10 {
		t.Errorf("node at (%v, %v), want (20, 10)", n.X, n.Y)
	}
	if c.Selected() != "B" {
		t.Errorf("drag changed selection to %q", c.Selected())
	}
}

func TestDragDividesByScale(t *testing.T) {
	c, d, vp := newTestController(t)
	vp.Restore(viewport.State{Scale: 2})

	// Node A spans screen (0,0)-(200,100) at scale 2.
	c.PointerDown(at(100, 50))
	c.PointerMove(at(120, 30))
	c.PointerUp(at(120, 30))

	n, _ := d.Node("A")
	if n.X != 10 || n.Y != -10 {
		t.Errorf("node at (%v, %v), want (10, -10)", n.X, n.Y)
	}
}

func TestEmptyCanvasClickDeselects(t *testing.T) {
	c, _, _ := newTestController(t)
	c.Select("A")
	c.PointerDown(at(200, 300))
	if c.State() != Idle {
		t.Fatalf("plain press on canvas entered %s", c.State())
	}
	c.PointerUp(at(201, 300))
	if c.Selected() != "" {
		t.Errorf("selected = %q, want none", c.Selected())
	}
}

func TestEmptyCanvasDragKeepsSelection(t *testing.T) {
	c, _, vp := newTestController(t)
	c.Select("A")
	c.PointerDown(at(200, 300))
	c.PointerMove(at(260, 300))
	c.PointerUp(at(260, 300))
	if c.Selected() != "A" {
		t.Errorf("selection lost after canvas drag")
	}
	if vp.Offset() != (geometry.Point{}) {
		t.Errorf("plain canvas drag panned: %+v", vp.Offset())
	}
}

func TestPanningGates(t *testing.T) {
	for _, tc := range []struct {
		name  string
		setup func(c *Controller)
		ev    PointerEvent
	}{
		{"secondary button", func(*Controller) {}, PointerEvent{Pos: geometry.Point{X: 200, Y: 300}, Button: ButtonSecondary}},
		{"middle button", func(*Controller) {}, PointerEvent{Pos: geometry.Point{X: 200, Y: 300}, Button: ButtonMiddle}},
		{"pan modifier", func(*Controller) {}, PointerEvent{Pos: geometry.Point{X: 200, Y: 300}, Mods: Modifiers{Pan: true}}},
		{"pan key held", func(c *Controller) { c.KeyDown(KeyPan) }, at(200, 300)},
		{"move tool", func(c *Controller) { c.SetMoveTool(true) }, at(200, 300)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, _, vp := newTestController(t)
			tc.setup(c)
			c.PointerDown(tc.ev)
			if c.State() != PanningCanvas {
				t.Fatalf("state = %s, want panning", c.State())
			}
			move := tc.ev
			move.Pos = geometry.Point{X: 230, Y: 280}
			c.PointerMove(move)
			c.PointerUp(move)
			if vp.Offset() != (geometry.Point{X: 30, Y: -20}) {
				t.Errorf("offset = %+v, want (30, -20)", vp.Offset())
			}
			if c.State() != Idle {
				t.Errorf("state after up = %s", c.State())
			}
		})
	}
}

func TestPrimaryOnNodeDragsEvenWithMoveTool(t *testing.T) {
	c, _, _ := newTestController(t)
	c.SetMoveTool(true)
	c.PointerDown(at(350, 25))
	if c.State() != DraggingNode || c.ActiveNode() != "B" {
		t.Errorf("state = %s active = %q", c.State(), c.ActiveNode())
	}
}

func TestSecondaryOnNodeIsIgnored(t *testing.T) {
	c, _, _ := newTestController(t)
	c.PointerDown(PointerEvent{Pos: geometry.Point{X: 50, Y: 25}, Button: ButtonSecondary})
	if c.State() != Idle {
		t.Errorf("state = %s, want idle", c.State())
	}
}

func TestPanKeyRelease(t *testing.T) {
	c, _, _ := newTestController(t)
	c.KeyDown(KeyPan)
	c.KeyUp(KeyPan)
	c.PointerDown(at(200, 300))
	if c.State() != Idle {
		t.Errorf("released pan key still pans: %s", c.State())
	}
}

func TestDrawConnection(t *testing.T) {
	c, d, _ := newTestController(t)
	if !c.StartConnection("A") {
		t.Fatal("StartConnection(A) = false")
	}
	if c.State() != DrawingConnection {
		t.Fatalf("state = %s", c.State())
	}
	c.PointerMove(at(200, 10))
	src, p, ok := c.PendingConnection()
	if !ok || src != "A" || p != (geometry.Point{X: 200, Y: 10}) {
		t.Errorf("pending = (%q, %+v, %v)", src, p, ok)
	}

	c.PointerDown(at(350, 25))
	c.PointerUp(at(350, 25))

	if c.State() != Idle {
		t.Errorf("state = %s, want idle", c.State())
	}
	conns := d.Connections()
	if len(conns) != 1 || conns[0].FromNodeID != "A" || conns[0].ToNodeID != "B" {
		t.Fatalf("connections = %+v", conns)
	}
}

func TestDrawConnectionAborts(t *testing.T) {
	for _, tc := range []struct {
		name  string
		abort func(c *Controller)
	}{
		{"same node", func(c *Controller) { c.PointerDown(at(50, 25)) }},
		{"cancel", func(c *Controller) { c.Cancel() }},
		{"escape", func(c *Controller) { c.KeyDown(KeyEscape) }},
		{"empty canvas", func(c *Controller) { c.PointerDown(at(200, 300)) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, d, _ := newTestController(t)
			c.StartConnection("A")
			tc.abort(c)
			if c.State() != Idle {
				t.Errorf("state = %s, want idle", c.State())
			}
			if len(d.Connections()) != 0 {
				t.Errorf("connection created: %+v", d.Connections())
			}
		})
	}
}

func TestStartConnectionRejected(t *testing.T) {
	c, _, _ := newTestController(t)
	if c.StartConnection("missing") {
		t.Error("started from unknown node")
	}
	c.PointerDown(at(50, 25))
	if c.StartConnection("A") {
		t.Error("started while dragging")
	}
}

func TestWheelZoomsInAnyState(t *testing.T) {
	c, _, vp := newTestController(t)
	c.PointerDown(at(50, 25))
	c.Wheel(-1, geometry.Point{X: 10, Y: 10}, Modifiers{})
	if vp.Scale() != viewport.WheelStep {
		t.Errorf("scale = %v", vp.Scale())
	}
	c.Wheel(-1, geometry.Point{X: 10, Y: 10}, Modifiers{Fine: true})
	if want := viewport.WheelStep * viewport.FineWheelStep; math.Abs(vp.Scale()-want) > 1e-12 {
		t.Errorf("scale = %v, want %v", vp.Scale(), want)
	}
}

func TestDeleteSelected(t *testing.T) {
	c, d, _ := newTestController(t)
	d.AddConnection("A", "B")
	c.Select("A")
	c.KeyDown(KeyDelete)

	if d.HasNode("A") {
		t.Error("node A still present")
	}
	if len(d.Connections()) != 0 {
		t.Error("incident connection survived")
	}
	if c.Selected() != "" {
		t.Errorf("selected = %q", c.Selected())
	}
	if c.DeleteSelected() {
		t.Error("DeleteSelected with no selection = true")
	}
}

func TestSelectUnknownClears(t *testing.T) {
	c, _, _ := newTestController(t)
	c.Select("A")
	c.Select("nope")
	if c.Selected() != "" {
		t.Errorf("selected = %q", c.Selected())
	}
}
