package relgraph

import (
	"math"

	"github.com/alfredjeanlab/storyweb/internal/geometry"
	"github.com/alfredjeanlab/storyweb/internal/model"
)

const (
	// minOverviewRadius is the floor of the layout circle radius.
	minOverviewRadius = 80.0
	// overviewRadiusRatio is the share of the smaller viewport dimension used as radius.
	overviewRadiusRatio = 0.2
	// radiusJitter is the amplitude of the per-node radius offset.
	radiusJitter = 30.0
)

// OverviewNode is a character placed on the overview circle.
type OverviewNode struct {
	model.CharacterStub
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Degree int     `json:"degree"`
}

// Layout is a read-only circular placement of every character plus the
// edges between them. It is derived per request and never stored.
type Layout struct {
	Width  float64               `json:"width"`
	Height float64               `json:"height"`
	Center geometry.Point        `json:"center"`
	Radius float64               `json:"radius"`
	Nodes  []OverviewNode        `json:"nodes"`
	Edges  []model.CanonicalEdge `json:"edges"`
}

// Node returns the placed node for a character id.
func (l *Layout) Node(id string) (OverviewNode, bool) {
	for _, n := range l.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return OverviewNode{}, false
}

// Overview places characters on a circle centered in a width x height
// viewport. Character i sits at angle 2*pi*i/n with radius
// max(80, min(0.2w, 0.2h)) + sin(i*0.5)*30. Edges touching an unknown
// character are dropped; each node carries the number of kept edges
// touching it.
func Overview(characters []model.CharacterStub, edges []model.CanonicalEdge, width, height float64) Layout {
	center := geometry.Point{X: width / 2, Y: height / 2}
	radius := math.Max(minOverviewRadius, math.Min(overviewRadiusRatio*width, overviewRadiusRatio*height))

	l := Layout{
		Width:  width,
		Height: height,
		Center: center,
		Radius: radius,
		Nodes:  make([]OverviewNode, 0, len(characters)),
		Edges:  make([]model.CanonicalEdge, 0, len(edges)),
	}

	pos := make(map[string]int, len(characters))
	n := float64(len(characters))
	for i, c := range characters {
		if _, dup := pos[c.ID]; !dup {
			pos[c.ID] = i
		}
		angle := 2 * math.Pi * float64(i) / n
		r := radius + math.Sin(float64(i)*0.5)*radiusJitter
		l.Nodes = append(l.Nodes, OverviewNode{
			CharacterStub: c,
			X:             center.X + r*math.Cos(angle),
			Y:             center.Y + r*math.Sin(angle),
		})
	}

	for _, e := range edges {
		a, okA := pos[e.CharacterAID]
		b, okB := pos[e.CharacterBID]
		if !okA || !okB || a == b {
			continue
		}
		l.Edges = append(l.Edges, e)
		l.Nodes[a].Degree++
		l.Nodes[b].Degree++
	}
	return l
}
