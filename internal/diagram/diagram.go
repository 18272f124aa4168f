// Package diagram holds the mutable node/connection model of one relationship
// diagram. Connections reference nodes by id and are resolved on read, so
// removing a node can only leave a droppable reference behind.
//
// A Diagram is not safe for concurrent use; it is owned by a single editing
// session.
package diagram

import (
	"log/slog"

	"github.com/alfredjeanlab/storyweb/internal/geometry"
	"github.com/alfredjeanlab/storyweb/internal/idgen"
	"github.com/alfredjeanlab/storyweb/internal/model"
	"github.com/alfredjeanlab/storyweb/internal/relgraph"
)

// Diagram is an arena of nodes and connections with id lookup. Slice order
// is paint order: later nodes are drawn above earlier ones.
type Diagram struct {
	nodes     []model.DiagramNode
	nodeIndex map[string]int
	conns     []model.DiagramConnection
	connIndex map[string]int

	newID func() (string, error)
}

// Option configures a Diagram.
type Option func(*Diagram)

// WithIDFunc overrides the connection id generator.
func WithIDFunc(fn func() (string, error)) Option {
	return func(d *Diagram) { d.newID = fn }
}

// New returns an empty diagram.
func New(opts ...Option) *Diagram {
	d := &Diagram{
		nodeIndex: make(map[string]int),
		connIndex: make(map[string]int),
		newID:     idgen.NewConnectionID,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// FromSnapshot builds a diagram from a persisted snapshot. Duplicate ids keep
// the first occurrence. Dangling connections are kept so that a later save
// writes them back unchanged.
func FromSnapshot(s model.DiagramSnapshot, opts ...Option) *Diagram {
	d := New(opts...)
	d.Load(s)
	return d
}

// Load replaces the diagram contents with s.
func (d *Diagram) Load(s model.DiagramSnapshot) {
	d.nodes = d.nodes[:0]
	d.conns = d.conns[:0]
	clear(d.nodeIndex)
	clear(d.connIndex)
	for _, n := range s.Nodes {
		if _, dup := d.nodeIndex[n.ID]; dup {
			slog.Debug("diagram: duplicate node id dropped", "node", n.ID)
			continue
		}
		d.nodeIndex[n.ID] = len(d.nodes)
		d.nodes = append(d.nodes, n)
	}
	for _, c := range s.Connections {
		if _, dup := d.connIndex[c.ID]; dup {
			slog.Debug("diagram: duplicate connection id dropped", "connection", c.ID)
			continue
		}
		d.connIndex[c.ID] = len(d.conns)
		d.conns = append(d.conns, c)
	}
}

// Snapshot returns a deep copy of the diagram in persisted form.
func (d *Diagram) Snapshot() model.DiagramSnapshot {
	return model.DiagramSnapshot{Nodes: d.nodes, Connections: d.conns}.Clone()
}

// Nodes returns a copy of the nodes in paint order.
func (d *Diagram) Nodes() []model.DiagramNode {
	return append([]model.DiagramNode(nil), d.nodes...)
}

// Connections returns a copy of every connection, dangling ones included.
func (d *Diagram) Connections() []model.DiagramConnection {
	return append([]model.DiagramConnection(nil), d.conns...)
}

// Node looks up a node by id.
func (d *Diagram) Node(id string) (model.DiagramNode, bool) {
	i, ok := d.nodeIndex[id]
	if !ok {
		return model.DiagramNode{}, false
	}
	return d.nodes[i], true
}

// Connection looks up a connection by id.
func (d *Diagram) Connection(id string) (model.DiagramConnection, bool) {
	i, ok := d.connIndex[id]
	if !ok {
		return model.DiagramConnection{}, false
	}
	return d.conns[i], true
}

// HasNode reports whether a node with the given id exists.
func (d *Diagram) HasNode(id string) bool {
	_, ok := d.nodeIndex[id]
	return ok
}

// AddNode places el at pos with the default node size and returns the node
// id, which is the element id. If the element is already on the diagram the
// existing id is returned and nothing changes.
func (d *Diagram) AddNode(el model.CharacterStub, pos geometry.Point) string {
	if _, ok := d.nodeIndex[el.ID]; ok {
		return el.ID
	}
	d.nodeIndex[el.ID] = len(d.nodes)
	d.nodes = append(d.nodes, model.DiagramNode{
		ID:     el.ID,
		Type:   el.Category,
		Name:   el.Name,
		X:      pos.X,
		Y:      pos.Y,
		Width:  model.DefaultNodeWidth,
		Height: model.DefaultNodeHeight,
		Color:  el.Category.DefaultColor(),
	})
	return el.ID
}

// RemoveNode deletes the node and every connection incident to it. It
// reports whether the node existed.
func (d *Diagram) RemoveNode(id string) bool {
	i, ok := d.nodeIndex[id]
	if !ok {
		return false
	}
	d.nodes = append(d.nodes[:i], d.nodes[i+1:]...)
	d.reindexNodes()

	kept := d.conns[:0]
	for _, c := range d.conns {
		if from, to, ok := relgraph.ConnectionEndpoints(c); ok && (from == id || to == id) {
			continue
		}
		if c.FromNodeID == id || c.ToNodeID == id {
			continue
		}
		kept = append(kept, c)
	}
	d.conns = kept
	d.reindexConns()
	return true
}

// MoveNode translates a node by (dx, dy) in diagram-local units.
func (d *Diagram) MoveNode(id string, dx, dy float64) bool {
	i, ok := d.nodeIndex[id]
	if !ok {
		return false
	}
	d.nodes[i].X += dx
	d.nodes[i].Y += dy
	return true
}

// SetNodePosition places a node's top-left corner at (x, y).
func (d *Diagram) SetNodePosition(id string, x, y float64) bool {
	i, ok := d.nodeIndex[id]
	if !ok {
		return false
	}
	d.nodes[i].X = x
	d.nodes[i].Y = y
	return true
}

// BringToFront moves a node to the end of the paint order.
func (d *Diagram) BringToFront(id string) {
	i, ok := d.nodeIndex[id]
	if !ok || i == len(d.nodes)-1 {
		return
	}
	n := d.nodes[i]
	d.nodes = append(append(d.nodes[:i], d.nodes[i+1:]...), n)
	d.reindexNodes()
}

// NodeAt returns the topmost node whose bounds contain p (diagram units).
func (d *Diagram) NodeAt(p geometry.Point) (string, bool) {
	for i := len(d.nodes) - 1; i >= 0; i-- {
		if Bounds(d.nodes[i]).Contains(p) {
			return d.nodes[i].ID, true
		}
	}
	return "", false
}

// AddConnection joins two existing, distinct nodes with a new connection
// styled from the default relationship type. Self-loops and unknown
// endpoints are a no-op and report false.
func (d *Diagram) AddConnection(from, to string) (string, bool) {
	if from == to || !d.HasNode(from) || !d.HasNode(to) {
		return "", false
	}
	id, err := d.newID()
	if err != nil {
		slog.Warn("diagram: connection id generation failed", "error", err)
		return "", false
	}
	d.connIndex[id] = len(d.conns)
	d.conns = append(d.conns, model.DiagramConnection{
		ID:         id,
		FromNodeID: from,
		ToNodeID:   to,
		Type:       model.RelNeutral,
		Color:      model.RelNeutral.DefaultColor(),
		HasArrow:   true,
	})
	return id, true
}

// ConnectionPatch carries a partial update. Nil fields are left unchanged.
type ConnectionPatch struct {
	Label           *string                 `json:"label,omitempty"`
	Type            *model.RelationshipType `json:"type,omitempty"`
	Color           *string                 `json:"color,omitempty"`
	TextColor       *string                 `json:"textColor,omitempty"`
	HasArrow        *bool                   `json:"hasArrow,omitempty"`
	HasReverseArrow *bool                   `json:"hasReverseArrow,omitempty"`
	StrokeWidth     *float64                `json:"strokeWidth,omitempty"`
	StrokeDasharray *string                 `json:"strokeDasharray,omitempty"`
}

// UpdateConnection applies a patch. Endpoints cannot be changed; remove and
// re-add the connection instead.
func (d *Diagram) UpdateConnection(id string, p ConnectionPatch) bool {
	i, ok := d.connIndex[id]
	if !ok {
		return false
	}
	c := &d.conns[i]
	if p.Label != nil {
		c.Label = *p.Label
	}
	if p.Type != nil {
		c.Type = *p.Type
		if p.Color == nil {
			c.Color = p.Type.DefaultColor()
		}
	}
	if p.Color != nil {
		c.Color = *p.Color
	}
	if p.TextColor != nil {
		c.TextColor = *p.TextColor
	}
	if p.HasArrow != nil {
		c.HasArrow = *p.HasArrow
	}
	if p.HasReverseArrow != nil {
		c.HasReverseArrow = *p.HasReverseArrow
	}
	if p.StrokeWidth != nil && *p.StrokeWidth >= 0 {
		c.StrokeWidth = *p.StrokeWidth
	}
	if p.StrokeDasharray != nil {
		c.StrokeDasharray = *p.StrokeDasharray
	}
	return true
}

// RemoveConnection deletes a connection and reports whether it existed.
func (d *Diagram) RemoveConnection(id string) bool {
	i, ok := d.connIndex[id]
	if !ok {
		return false
	}
	d.conns = append(d.conns[:i], d.conns[i+1:]...)
	d.reindexConns()
	return true
}

// ResolvedConnection is a connection whose endpoints both exist.
type ResolvedConnection struct {
	model.DiagramConnection
	From model.DiagramNode
	To   model.DiagramNode
}

// ResolvedConnections returns connections whose endpoints resolve to nodes on
// this diagram. Connections without explicit endpoints fall back to the
// legacy composite id. Anything else is dangling and skipped.
func (d *Diagram) ResolvedConnections() []ResolvedConnection {
	out := make([]ResolvedConnection, 0, len(d.conns))
	for _, c := range d.conns {
		from, to, ok := relgraph.ConnectionEndpoints(c)
		if !ok || from == to {
			continue
		}
		fn, okFrom := d.Node(from)
		tn, okTo := d.Node(to)
		if !okFrom || !okTo {
			slog.Debug("diagram: dangling connection skipped", "connection", c.ID)
			continue
		}
		out = append(out, ResolvedConnection{DiagramConnection: c, From: fn, To: tn})
	}
	return out
}

// Route is a resolved connection with its computed curve.
type Route struct {
	Connection model.DiagramConnection `json:"connection"`
	Curve      geometry.Curve          `json:"curve"`
	Path       string                  `json:"path"`
	LabelAt    geometry.Point          `json:"label_at"`
}

// Routes computes a curve for every resolvable connection. Nothing is cached:
// routes always reflect current node positions.
func (d *Diagram) Routes() []Route {
	resolved := d.ResolvedConnections()
	out := make([]Route, 0, len(resolved))
	for _, rc := range resolved {
		curve := geometry.Path(Bounds(rc.From), Bounds(rc.To))
		out = append(out, Route{
			Connection: rc.DiagramConnection,
			Curve:      curve,
			Path:       curve.D(),
			LabelAt:    curve.Midpoint(),
		})
	}
	return out
}

// Bounds returns a node's rectangle in diagram-local units.
func Bounds(n model.DiagramNode) geometry.Rect {
	return geometry.Rect{X: n.X, Y: n.Y, W: n.Width, H: n.Height}
}

func (d *Diagram) reindexNodes() {
	clear(d.nodeIndex)
	for i, n := range d.nodes {
		d.nodeIndex[n.ID] = i
	}
}

func (d *Diagram) reindexConns() {
	clear(d.connIndex)
	for i, c := range d.conns {
		d.connIndex[c.ID] = i
	}
}
