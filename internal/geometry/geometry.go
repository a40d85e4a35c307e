// Package geometry provides the planar primitives shared by the line
// extraction and homography stages.
//
// All coordinates are float64 pixels in image convention: origin at the
// top-left corner, X increasing rightward and Y increasing downward.
// Segment values are immutable; every operation that changes a segment
// returns a new value.
package geometry

import (
	"fmt"
	"math"
)

// parallelEpsilon is the smallest |sin| between two line directions that
// still counts as a proper crossing.
const parallelEpsilon = 1e-6

// Point is a 2D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is shorthand for Point{X: x, Y: y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Distance returns the Euclidean distance to q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// IsFinite reports whether both coordinates are finite numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}

func (p Point) String() string {
	return fmt.Sprintf("(%.1f,%.1f)", p.X, p.Y)
}

// Segment is a straight line piece between two pixel endpoints.
type Segment struct {
	A Point `json:"a"`
	B Point `json:"b"`
}

// Seg builds a segment from raw endpoint coordinates.
func Seg(x1, y1, x2, y2 float64) Segment {
	return Segment{A: Point{X: x1, Y: y1}, B: Point{X: x2, Y: y2}}
}

// Length returns the Euclidean length of the segment.
func (s Segment) Length() float64 {
	return s.A.Distance(s.B)
}

// Angle returns the orientation in degrees normalised to [0, 180).
// Direction is ambiguous, so (a,b) and (b,a) share the same angle.
func (s Segment) Angle() float64 {
	deg := math.Atan2(s.B.Y-s.A.Y, s.B.X-s.A.X) * 180 / math.Pi
	return NormalizeAngle(deg)
}

// Centroid returns the midpoint of the segment.
func (s Segment) Centroid() Point {
	return Point{X: (s.A.X + s.B.X) / 2, Y: (s.A.Y + s.B.Y) / 2}
}

func (s Segment) String() string {
	return fmt.Sprintf("%v-%v", s.A, s.B)
}

// NormalizeAngle folds an angle in degrees into [0, 180).
func NormalizeAngle(deg float64) float64 {
	a := math.Mod(deg, 180)
	if a < 0 {
		a += 180
	}
	if a >= 180 {
		a = 0
	}
	return a
}

// AngularDist is the circular distance between two undirected orientations
// in degrees. The result is symmetric and always lies in [0, 90].
func AngularDist(a, b float64) float64 {
	d := math.Abs(NormalizeAngle(a) - NormalizeAngle(b))
	if d > 90 {
		d = 180 - d
	}
	return d
}

// Intersect returns the crossing point of the infinite lines through s and t.
// ok is false when the lines are parallel (near-zero determinant) or the
// solution is not finite.
func Intersect(s, t Segment) (Point, bool) {
	d1x, d1y := s.B.X-s.A.X, s.B.Y-s.A.Y
	d2x, d2y := t.B.X-t.A.X, t.B.Y-t.A.Y

	// Solve A + u*d1 = C + v*d2 for u.
	det := d1x*(-d2y) - (-d2x)*d1y
	scale := math.Hypot(d1x, d1y) * math.Hypot(d2x, d2y)
	if scale == 0 || math.Abs(det) < parallelEpsilon*scale {
		return Point{}, false
	}

	rx, ry := t.A.X-s.A.X, t.A.Y-s.A.Y
	u := (rx*(-d2y) - (-d2x)*ry) / det

	p := Point{X: s.A.X + u*d1x, Y: s.A.Y + u*d1y}
	if !p.IsFinite() {
		return Point{}, false
	}
	return p, true
}

// QuadArea returns the signed shoelace area of the polygon visited in the
// given order. Callers compare the absolute value against a threshold.
func QuadArea(pts ...Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	var sum float64
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return sum / 2
}
