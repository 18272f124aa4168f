// Package geometry computes edge routing between rectangular diagram nodes.
// Everything here is pure and deterministic.
package geometry

import (
	"math"
	"strconv"
	"strings"
)

const (
	// controlRatio scales the endpoint distance into the control-point offset.
	controlRatio = 0.4
	// maxControlOffset caps how far a control point is pushed out from its side.
	maxControlOffset = 100.0
)

// Point is a 2D coordinate in diagram-local units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p + q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Scale returns p * k.
func (p Point) Scale(k float64) Point { return Point{p.X * k, p.Y * k} }

// Dist returns the straight-line distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Rect is an axis-aligned rectangle with its origin at the top-left corner.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// Center returns the rectangle's center point.
func (r Rect) Center() Point {
	return Point{r.X + r.W/2, r.Y + r.H/2}
}

// Contains reports whether p lies inside r or on its boundary.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.W && p.Y >= r.Y && p.Y <= r.Y+r.H
}

// OnBoundary reports whether p lies on one of r's four edges.
func (r Rect) OnBoundary(p Point) bool {
	if !r.Contains(p) {
		return false
	}
	return p.X == r.X || p.X == r.X+r.W || p.Y == r.Y || p.Y == r.Y+r.H
}

// Midpoint returns the midpoint of the given side.
func (r Rect) Midpoint(s Side) Point {
	switch s {
	case Top:
		return Point{r.X + r.W/2, r.Y}
	case Bottom:
		return Point{r.X + r.W/2, r.Y + r.H}
	case Left:
		return Point{r.X, r.Y + r.H/2}
	default:
		return Point{r.X + r.W, r.Y + r.H/2}
	}
}

// Side names one of a rectangle's four edges.
type Side string

const (
	Top    Side = "top"
	Bottom Side = "bottom"
	Left   Side = "left"
	Right  Side = "right"
)

// Outward returns the unit vector pointing away from the rectangle through s.
func (s Side) Outward() Point {
	switch s {
	case Top:
		return Point{0, -1}
	case Bottom:
		return Point{0, 1}
	case Left:
		return Point{-1, 0}
	default:
		return Point{1, 0}
	}
}

// Opposite returns the side facing s.
func (s Side) Opposite() Side {
	switch s {
	case Top:
		return Bottom
	case Bottom:
		return Top
	case Left:
		return Right
	default:
		return Left
	}
}

// Anchor is a connection endpoint: a point on a rectangle's side.
type Anchor struct {
	Point
	Side Side `json:"side"`
}

// ConnectionPoints picks, for each rectangle, the side that faces the other
// one and returns the midpoints of those sides. Horizontal sides are chosen
// when the centers differ more in x than in y. Coincident centers fall back
// to a's right side and b's left side.
func ConnectionPoints(a, b Rect) (Anchor, Anchor) {
	ca, cb := a.Center(), b.Center()
	dx, dy := cb.X-ca.X, cb.Y-ca.Y

	var sa, sb Side
	switch {
	case dx == 0 && dy == 0:
		sa, sb = Right, Left
	case math.Abs(dx) > math.Abs(dy):
		if dx > 0 {
			sa, sb = Right, Left
		} else {
			sa, sb = Left, Right
		}
	default:
		if dy > 0 {
			sa, sb = Bottom, Top
		} else {
			sa, sb = Top, Bottom
		}
	}
	return Anchor{a.Midpoint(sa), sa}, Anchor{b.Midpoint(sb), sb}
}

// ControlPoints projects each anchor outward from its side by
// min(distance*0.4, 100), where distance is between the two anchors.
func ControlPoints(from, to Anchor) (Point, Point) {
	offset := math.Min(from.Dist(to.Point)*controlRatio, maxControlOffset)
	return from.Add(from.Side.Outward().Scale(offset)), to.Add(to.Side.Outward().Scale(offset))
}

// Curve is a cubic bezier from P0 to P1 with control points C0 and C1.
type Curve struct {
	P0        Point `json:"p0"`
	C0        Point `json:"c0"`
	C1        Point `json:"c1"`
	P1        Point `json:"p1"`
	StartSide Side  `json:"start_side"`
	EndSide   Side  `json:"end_side"`
}

// Path routes a curve from rectangle a to rectangle b.
func Path(a, b Rect) Curve {
	from, to := ConnectionPoints(a, b)
	c0, c1 := ControlPoints(from, to)
	return Curve{P0: from.Point, C0: c0, C1: c1, P1: to.Point, StartSide: from.Side, EndSide: to.Side}
}

// At evaluates the curve at parameter t in [0, 1].
func (c Curve) At(t float64) Point {
	u := 1 - t
	a := u * u * u
	b := 3 * u * u * t
	d := 3 * u * t * t
	e := t * t * t
	return Point{
		X: a*c.P0.X + b*c.C0.X + d*c.C1.X + e*c.P1.X,
		Y: a*c.P0.Y + b*c.C0.Y + d*c.C1.Y + e*c.P1.Y,
	}
}

// Midpoint is where edge labels are placed.
func (c Curve) Midpoint() Point {
	return c.At(0.5)
}

// EndAngle is the direction, in radians, an arrowhead at P1 points: into the
// target node through its side.
func (c Curve) EndAngle() float64 {
	return inwardAngle(c.EndSide)
}

// StartAngle is the direction an arrowhead at P0 points: into the source node.
func (c Curve) StartAngle() float64 {
	return inwardAngle(c.StartSide)
}

func inwardAngle(s Side) float64 {
	o := s.Outward()
	// 0-v rather than -v keeps zero components positive, so atan2 never
	// flips between pi and -pi for the same side.
	return math.Atan2(0-o.Y, 0-o.X)
}

// D renders the curve as an SVG path: "M x0 y0 C cx0 cy0, cx1 cy1, x1 y1".
func (c Curve) D() string {
	var b strings.Builder
	b.WriteString("M ")
	writePoint(&b, c.P0)
	b.WriteString(" C ")
	writePoint(&b, c.C0)
	b.WriteString(", ")
	writePoint(&b, c.C1)
	b.WriteString(", ")
	writePoint(&b, c.P1)
	return b.String()
}

func writePoint(b *strings.Builder, p Point) {
	b.WriteString(formatFloat(p.X))
	b.WriteByte(' ')
	b.WriteString(formatFloat(p.Y))
}

func formatFloat(v float64) string {
	// Normalize negative zero so the same geometry always prints the same path.
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
