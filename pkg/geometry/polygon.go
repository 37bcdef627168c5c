package geometry

import "math"

// Intersect clips one convex quadrilateral against another using the
// Sutherland-Hodgman algorithm and returns the intersection polygon.
// Returns nil when the quads do not overlap.
func Intersect(subject, clip Quadrilateral) []Point {
	subjectCorners := subject.Corners()
	output := append([]Point(nil), subjectCorners[:]...)
	edges := clip.Corners()

	for i := 0; i < 4; i++ {
		if len(output) == 0 {
			return nil
		}
		output = clipByEdge(output, edges[i], edges[(i+1)%4])
	}

	if len(output) < 3 {
		return nil
	}
	return output
}

// IoU returns the intersection-over-union of two quadrilaterals in [0, 1].
// Used for detection diagnostics; stability gating uses MaxCornerDrift.
func IoU(a, b Quadrilateral) float64 {
	inter := polygonArea(Intersect(a, b))
	if inter == 0 {
		return 0
	}
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// polygonArea computes the shoelace area of an arbitrary simple polygon.
func polygonArea(poly []Point) float64 {
	if len(poly) < 3 {
		return 0
	}
	var sum float64
	for i := range poly {
		j := (i + 1) % len(poly)
		sum += poly[i].X*poly[j].Y - poly[j].X*poly[i].Y
	}
	return math.Abs(sum) / 2
}

// clipByEdge clips a polygon against a single directed edge.
func clipByEdge(poly []Point, edgeStart, edgeEnd Point) []Point {
	var clipped []Point

	for i := range poly {
		cur := poly[i]
		next := poly[(i+1)%len(poly)]

		curIn := insideEdge(cur, edgeStart, edgeEnd)
		nextIn := insideEdge(next, edgeStart, edgeEnd)

		if curIn {
			clipped = append(clipped, cur)
			if !nextIn {
				if p, ok := lineIntersection(cur, next, edgeStart, edgeEnd); ok {
					clipped = append(clipped, p)
				}
			}
		} else if nextIn {
			if p, ok := lineIntersection(cur, next, edgeStart, edgeEnd); ok {
				clipped = append(clipped, p)
			}
		}
	}

	return clipped
}

// insideEdge checks whether p lies on the inner side of the directed edge.
// Canonical corner order walks the quad clockwise in image coordinates
// (Y grows downward), so inside is the non-negative cross product side.
func insideEdge(p, edgeStart, edgeEnd Point) bool {
	return (edgeEnd.X-edgeStart.X)*(p.Y-edgeStart.Y)-
		(edgeEnd.Y-edgeStart.Y)*(p.X-edgeStart.X) >= 0
}

// lineIntersection returns the intersection of segment p1-p2 with the
// infinite line through e1-e2.
func lineIntersection(p1, p2, e1, e2 Point) (Point, bool) {
	denom := (p1.X-p2.X)*(e1.Y-e2.Y) - (p1.Y-p2.Y)*(e1.X-e2.X)
	if math.Abs(denom) < 1e-10 {
		return Point{}, false
	}
	t := ((p1.X-e1.X)*(e1.Y-e2.Y) - (p1.Y-e1.Y)*(e1.X-e2.X)) / denom
	return Point{
		X: p1.X + t*(p2.X-p1.X),
		Y: p1.Y + t*(p2.Y-p1.Y),
	}, true
}
