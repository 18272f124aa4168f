// Package render draws relationship diagrams and overview layouts as SVG.
package render

import (
	"fmt"
	"io"
	"math"
	"regexp"
	"strings"

	svg "github.com/ajstarks/svgo"

	"github.com/alfredjeanlab/storyweb/internal/diagram"
	"github.com/alfredjeanlab/storyweb/internal/geometry"
	"github.com/alfredjeanlab/storyweb/internal/model"
	"github.com/alfredjeanlab/storyweb/internal/relgraph"
)

const (
	margin      = 40
	arrowLength = 10.0
	arrowWidth  = 5.0
	fontFamily  = "system-ui,sans-serif"

	defaultText = "#1f2937"
	background  = "#f8fafc"
)

var (
	colorPattern     = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|[a-zA-Z]+|rgba?\([0-9., %]+\))$`)
	dasharrayPattern = regexp.MustCompile(`^[0-9., ]+$`)
)

// Diagram writes d as a standalone SVG document. The view box is the node
// bounding box plus a margin; an empty diagram renders an empty canvas.
func Diagram(w io.Writer, d *diagram.Diagram) error {
	nodes := d.Nodes()
	canvas := svg.New(w)

	box, ok := bounds(nodes)
	if !ok {
		canvas.Start(2*margin, 2*margin)
		canvas.Rect(0, 0, 2*margin, 2*margin, "fill:"+background)
		canvas.End()
		return nil
	}
	minX := int(math.Floor(box.X)) - margin
	minY := int(math.Floor(box.Y)) - margin
	width := int(math.Ceil(box.W)) + 2*margin
	height := int(math.Ceil(box.H)) + 2*margin

	canvas.Startview(width, height, minX, minY, width, height)
	canvas.Rect(minX, minY, width, height, "fill:"+background)

	canvas.Gid("connections")
	for _, r := range d.Routes() {
		drawRoute(canvas, r)
	}
	canvas.Gend()

	canvas.Gid("nodes")
	for _, n := range nodes {
		drawNode(canvas, n)
	}
	canvas.Gend()

	canvas.End()
	return nil
}

func drawRoute(canvas *svg.SVG, r diagram.Route) {
	c := r.Connection
	stroke := safeColor(c.Color, c.Type.DefaultColor())
	width := c.StrokeWidth
	if width <= 0 {
		width = 2
	}
	style := fmt.Sprintf("fill:none;stroke:%s;stroke-width:%s", stroke, num(width))
	if c.StrokeDasharray != "" && dasharrayPattern.MatchString(c.StrokeDasharray) {
		style += ";stroke-dasharray:" + c.StrokeDasharray
	}
	canvas.Path(r.Path, style)

	if c.HasArrow {
		arrowhead(canvas, r.Curve.P1, r.Curve.EndAngle(), stroke)
	}
	if c.HasReverseArrow {
		arrowhead(canvas, r.Curve.P0, r.Curve.StartAngle(), stroke)
	}
	if label := strings.TrimSpace(c.Label); label != "" {
		at := r.LabelAt
		canvas.Text(round(at.X), round(at.Y)-4, label,
			fmt.Sprintf("fill:%s;font-size:12px;font-family:%s;text-anchor:middle",
				safeColor(c.TextColor, defaultText), fontFamily))
	}
}

// arrowhead draws a triangle with its tip at tip, pointing along angle.
func arrowhead(canvas *svg.SVG, tip geometry.Point, angle float64, fill string) {
	dir := geometry.Point{X: math.Cos(angle), Y: math.Sin(angle)}
	perp := geometry.Point{X: -dir.Y, Y: dir.X}
	base := tip.Sub(dir.Scale(arrowLength))
	left := base.Add(perp.Scale(arrowWidth))
	right := base.Sub(perp.Scale(arrowWidth))
	canvas.Polygon(
		[]int{round(tip.X), round(left.X), round(right.X)},
		[]int{round(tip.Y), round(left.Y), round(right.Y)},
		"fill:"+fill,
	)
}

func drawNode(canvas *svg.SVG, n model.DiagramNode) {
	fill := safeColor(n.Color, n.Type.DefaultColor())
	canvas.Roundrect(round(n.X), round(n.Y), round(n.Width), round(n.Height), 8, 8,
		fmt.Sprintf("fill:%s;stroke:#0f172a;stroke-opacity:0.25;stroke-width:1", fill))
	c := diagram.Bounds(n).Center()
	canvas.Text(round(c.X), round(c.Y)+5, n.Name,
		fmt.Sprintf("fill:#ffffff;font-size:14px;font-family:%s;font-weight:600;text-anchor:middle", fontFamily))
}

// Overview writes a circular overview layout as SVG. Node radius grows with
// degree so well-connected characters stand out.
func Overview(w io.Writer, l relgraph.Layout) error {
	width, height := round(l.Width), round(l.Height)
	if width <= 0 || height <= 0 {
		return fmt.Errorf("render: invalid overview size %vx%v", l.Width, l.Height)
	}
	canvas := svg.New(w)
	canvas.Start(width, height)
	canvas.Rect(0, 0, width, height, "fill:"+background)

	canvas.Gid("edges")
	for _, e := range l.Edges {
		a, okA := l.Node(e.CharacterAID)
		b, okB := l.Node(e.CharacterBID)
		if !okA || !okB {
			continue
		}
		canvas.Line(round(a.X), round(a.Y), round(b.X), round(b.Y),
			fmt.Sprintf("stroke:%s;stroke-width:1.5;stroke-opacity:0.7", e.Type.DefaultColor()))
	}
	canvas.Gend()

	canvas.Gid("characters")
	for _, n := range l.Nodes {
		r := nodeRadius(n.Degree)
		canvas.Circle(round(n.X), round(n.Y), r,
			fmt.Sprintf("fill:%s;stroke:#ffffff;stroke-width:2", n.Category.DefaultColor()))
		canvas.Text(round(n.X), round(n.Y)+r+14, n.Name,
			fmt.Sprintf("fill:%s;font-size:12px;font-family:%s;text-anchor:middle", defaultText, fontFamily))
	}
	canvas.Gend()

	canvas.End()
	return nil
}

func nodeRadius(degree int) int {
	return 8 + min(degree, 6)*2
}

func bounds(nodes []model.DiagramNode) (geometry.Rect, bool) {
	if len(nodes) == 0 {
		return geometry.Rect{}, false
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, n := range nodes {
		minX = math.Min(minX, n.X)
		minY = math.Min(minY, n.Y)
		maxX = math.Max(maxX, n.X+n.Width)
		maxY = math.Max(maxY, n.Y+n.Height)
	}
	return geometry.Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}, true
}

// safeColor returns c if it is a plain CSS color, otherwise fallback. Colors
// end up inside style attributes, so anything else is rejected.
func safeColor(c, fallback string) string {
	c = strings.TrimSpace(c)
	if c != "" && colorPattern.MatchString(c) {
		return c
	}
	return fallback
}

func round(v float64) int {
	return int(math.Round(v))
}

func num(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
