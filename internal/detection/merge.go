package detection

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/ironsheep/courtcal/internal/geometry"
)

// IsHorizontal reports whether s belongs to the near-horizontal bucket
// (angle below 45 or above 135 degrees).
func IsHorizontal(s geometry.Segment) bool {
	a := s.Angle()
	return a < 45 || a > 135
}

// MergeCollinear consolidates fragments of the same painted line.
//
// Segments are split into near-horizontal and near-vertical buckets. Within
// a bucket the longest unassigned segment seeds a cluster and collects every
// other unassigned segment whose centroid is within tolerance of the seed's
// along the perpendicular axis (Y for horizontal, X for vertical). Each
// cluster becomes one segment. Inputs are not modified.
func MergeCollinear(segments []geometry.Segment, tolerance float64) []geometry.Segment {
	var horizontal, vertical []geometry.Segment
	for _, s := range segments {
		if IsHorizontal(s) {
			horizontal = append(horizontal, s)
		} else {
			vertical = append(vertical, s)
		}
	}

	out := make([]geometry.Segment, 0, len(segments))
	out = append(out, mergeBucket(horizontal, tolerance, true)...)
	out = append(out, mergeBucket(vertical, tolerance, false)...)
	return out
}

func mergeBucket(bucket []geometry.Segment, tolerance float64, horizontal bool) []geometry.Segment {
	if len(bucket) == 0 {
		return nil
	}

	ordered := make([]geometry.Segment, len(bucket))
	copy(ordered, bucket)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Length() > ordered[j].Length()
	})

	axis := func(s geometry.Segment) float64 {
		if horizontal {
			return s.Centroid().Y
		}
		return s.Centroid().X
	}

	used := make([]bool, len(ordered))
	var merged []geometry.Segment
	for i, seed := range ordered {
		if used[i] {
			continue
		}
		used[i] = true
		cluster := []geometry.Segment{seed}
		for j := i + 1; j < len(ordered); j++ {
			if !used[j] && math.Abs(axis(ordered[j])-axis(seed)) < tolerance {
				used[j] = true
				cluster = append(cluster, ordered[j])
			}
		}
		merged = append(merged, orient(fitCluster(cluster), horizontal))
	}
	return merged
}

// fitCluster returns the segment spanning the cluster's endpoints along
// their total-least-squares line. The longest member wins when the fitted
// span falls more than a pixel short of it.
func fitCluster(cluster []geometry.Segment) geometry.Segment {
	if len(cluster) == 1 {
		return cluster[0]
	}

	pts := make([]geometry.Point, 0, 2*len(cluster))
	for _, s := range cluster {
		pts = append(pts, s.A, s.B)
	}
	fitted, ok := fitLine(pts)
	if !ok || fitted.Length()+1 < cluster[0].Length() {
		return cluster[0]
	}
	return fitted
}

// fitLine fits a line through pts by total least squares and returns the
// segment between the extreme projections of pts onto it.
func fitLine(pts []geometry.Point) (geometry.Segment, bool) {
	if len(pts) < 3 {
		return geometry.Segment{}, false
	}

	var mx, my float64
	for _, p := range pts {
		mx += p.X
		my += p.Y
	}
	n := float64(len(pts))
	mx, my = mx/n, my/n

	var sxx, sxy, syy float64
	for _, p := range pts {
		dx, dy := p.X-mx, p.Y-my
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}

	var es mat.EigenSym
	if !es.Factorize(mat.NewSymDense(2, []float64{sxx, sxy, sxy, syy}), true) {
		return geometry.Segment{}, false
	}
	var vecs mat.Dense
	es.VectorsTo(&vecs)
	// Eigenvalues are ascending; the principal direction is the last column.
	ux, uy := vecs.At(0, 1), vecs.At(1, 1)
	if ux == 0 && uy == 0 {
		return geometry.Segment{}, false
	}

	tMin, tMax := math.Inf(1), math.Inf(-1)
	for _, p := range pts {
		t := (p.X-mx)*ux + (p.Y-my)*uy
		tMin = math.Min(tMin, t)
		tMax = math.Max(tMax, t)
	}
	return geometry.Seg(mx+tMin*ux, my+tMin*uy, mx+tMax*ux, my+tMax*uy), true
}

// orient orders endpoints left-to-right for horizontal segments and
// top-to-bottom for vertical ones.
func orient(s geometry.Segment, horizontal bool) geometry.Segment {
	if (horizontal && s.A.X > s.B.X) || (!horizontal && s.A.Y > s.B.Y) {
		return geometry.Segment{A: s.B, B: s.A}
	}
	return s
}
