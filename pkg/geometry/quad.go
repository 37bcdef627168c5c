// Package geometry provides the quadrilateral math used by the document
// scanner: corner ordering, drift measurement, and overlap metrics.
package geometry

import (
	"fmt"
	"math"
	"sort"
)

// Point is a 2D point in frame pixel coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance to another point.
func (p Point) Distance(other Point) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Quadrilateral is a four-corner document boundary in canonical order:
// top-left, top-right, bottom-right, bottom-left.
type Quadrilateral struct {
	TopLeft     Point `json:"top_left"`
	TopRight    Point `json:"top_right"`
	BottomRight Point `json:"bottom_right"`
	BottomLeft  Point `json:"bottom_left"`
}

// NewQuadrilateral builds a canonical quadrilateral from four corners in
// any order.
func NewQuadrilateral(corners [4]Point) Quadrilateral {
	ordered := OrderCorners(corners)
	return Quadrilateral{
		TopLeft:     ordered[0],
		TopRight:    ordered[1],
		BottomRight: ordered[2],
		BottomLeft:  ordered[3],
	}
}

// Corners returns the corners in canonical order.
func (q Quadrilateral) Corners() [4]Point {
	return [4]Point{q.TopLeft, q.TopRight, q.BottomRight, q.BottomLeft}
}

// Centroid returns the average corner position.
func (q Quadrilateral) Centroid() Point {
	c := q.Corners()
	return Point{
		X: (c[0].X + c[1].X + c[2].X + c[3].X) / 4,
		Y: (c[0].Y + c[1].Y + c[2].Y + c[3].Y) / 4,
	}
}

// Area returns the polygon area via the shoelace formula.
func (q Quadrilateral) Area() float64 {
	c := q.Corners()
	var sum float64
	for i := 0; i < 4; i++ {
		j := (i + 1) % 4
		sum += c[i].X*c[j].Y - c[j].X*c[i].Y
	}
	return math.Abs(sum) / 2
}

// Bounds returns the axis-aligned bounding box as min and max points.
func (q Quadrilateral) Bounds() (min, max Point) {
	c := q.Corners()
	min, max = c[0], c[0]
	for _, p := range c[1:] {
		if p.X < min.X {
			min.X = p.X
		}
		if p.Y < min.Y {
			min.Y = p.Y
		}
		if p.X > max.X {
			max.X = p.X
		}
		if p.Y > max.Y {
			max.Y = p.Y
		}
	}
	return min, max
}

// MaxCornerDrift returns the largest distance between corresponding corners
// of two canonical quadrilaterals. This is the stability metric: small drift
// means the document has not moved.
func (q Quadrilateral) MaxCornerDrift(other Quadrilateral) float64 {
	a, b := q.Corners(), other.Corners()
	var worst float64
	for i := 0; i < 4; i++ {
		if d := a[i].Distance(b[i]); d > worst {
			worst = d
		}
	}
	return worst
}

// IsConvex reports whether the corners form a convex polygon. Detections
// with crossed edges are rejected upstream using this check.
func (q Quadrilateral) IsConvex() bool {
	c := q.Corners()
	var sign int
	for i := 0; i < 4; i++ {
		cross := crossProduct(c[i], c[(i+1)%4], c[(i+2)%4])
		if cross == 0 {
			continue
		}
		cur := 1
		if cross < 0 {
			cur = -1
		}
		if sign == 0 {
			sign = cur
		} else if cur != sign {
			return false
		}
	}
	return sign != 0
}

// String renders the quad compactly for logs.
func (q Quadrilateral) String() string {
	return fmt.Sprintf("[(%.0f,%.0f) (%.0f,%.0f) (%.0f,%.0f) (%.0f,%.0f)]",
		q.TopLeft.X, q.TopLeft.Y, q.TopRight.X, q.TopRight.Y,
		q.BottomRight.X, q.BottomRight.Y, q.BottomLeft.X, q.BottomLeft.Y)
}

// OrderCorners orders four corner points canonically: TL, TR, BR, BL.
// The top pair is separated from the bottom pair by Y, then each pair is
// ordered by X.
func OrderCorners(corners [4]Point) [4]Point {
	sorted := corners[:]
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Y < sorted[j].Y
	})

	top := sorted[:2]
	bottom := sorted[2:]
	if top[0].X > top[1].X {
		top[0], top[1] = top[1], top[0]
	}
	if bottom[0].X > bottom[1].X {
		bottom[0], bottom[1] = bottom[1], bottom[0]
	}

	return [4]Point{top[0], top[1], bottom[1], bottom[0]}
}

// crossProduct computes the cross product of vectors OA and OB.
func crossProduct(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}
