package homography

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/ironsheep/courtcal/internal/geometry"
)

// FitOptions tunes FitHomography.
type FitOptions struct {
	// Tolerance is the largest reprojection error, in destination units,
	// for a correspondence to count as an inlier.
	Tolerance float64
	// Iterations bounds the RANSAC sampling loop.
	Iterations int
	// Seed fixes the RANSAC sample order.
	Seed int64
}

// DefaultFitOptions returns the fitting parameters used by the estimator.
func DefaultFitOptions() FitOptions {
	return FitOptions{Tolerance: 5, Iterations: 500, Seed: 1}
}

// FitHomography solves for the matrix mapping src[i] to dst[i].
//
// Four correspondences are solved exactly by the normalised direct linear
// transform. With more, RANSAC samples minimal sets, keeps the model with
// the most inliers and refits on them. The returned indices are the inliers.
func FitHomography(src, dst []geometry.Point, opts FitOptions) (Matrix, []int, error) {
	if len(src) != len(dst) {
		return Matrix{}, nil, fmt.Errorf("%w: %d source points but %d destination points", ErrSolveFailed, len(src), len(dst))
	}
	if len(src) < 4 {
		return Matrix{}, nil, fmt.Errorf("%w: need 4 correspondences, got %d", ErrSolveFailed, len(src))
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultFitOptions().Tolerance
	}
	if opts.Iterations <= 0 {
		opts.Iterations = DefaultFitOptions().Iterations
	}

	if len(src) == 4 {
		if degenerateSample(src) || degenerateSample(dst) {
			return Matrix{}, nil, fmt.Errorf("%w: three of four points are collinear", ErrSolveFailed)
		}
		m, err := solveDLT(src, dst)
		if err != nil {
			return Matrix{}, nil, err
		}
		return m, []int{0, 1, 2, 3}, nil
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	var best []int
	for iter := 0; iter < opts.Iterations; iter++ {
		idx := rng.Perm(len(src))[:4]
		s := []geometry.Point{src[idx[0]], src[idx[1]], src[idx[2]], src[idx[3]]}
		d := []geometry.Point{dst[idx[0]], dst[idx[1]], dst[idx[2]], dst[idx[3]]}
		if degenerateSample(s) {
			continue
		}

		m, err := solveDLT(s, d)
		if err != nil {
			continue
		}
		if inliers := inliersOf(m, src, dst, opts.Tolerance); len(inliers) > len(best) {
			best = inliers
			if len(best) == len(src) {
				break
			}
		}
	}
	if len(best) < 4 {
		return Matrix{}, nil, fmt.Errorf("%w: RANSAC found %d inliers", ErrSolveFailed, len(best))
	}

	in := make([]geometry.Point, len(best))
	out := make([]geometry.Point, len(best))
	for i, k := range best {
		in[i], out[i] = src[k], dst[k]
	}
	m, err := solveDLT(in, out)
	if err != nil {
		return Matrix{}, nil, err
	}
	return m, best, nil
}

func inliersOf(m Matrix, src, dst []geometry.Point, tolerance float64) []int {
	var inliers []int
	for i := range src {
		p, err := m.Project(src[i])
		if err == nil && p.Distance(dst[i]) < tolerance {
			inliers = append(inliers, i)
		}
	}
	return inliers
}

// degenerateSample reports whether any three of four points are collinear.
func degenerateSample(pts []geometry.Point) bool {
	for i := 0; i < 4; i++ {
		a, b, c := pts[(i+1)%4], pts[(i+2)%4], pts[(i+3)%4]
		scale := math.Max(a.Distance(b), math.Max(b.Distance(c), a.Distance(c)))
		if scale == 0 || math.Abs(geometry.QuadArea(a, b, c)) < 1e-6*scale*scale {
			return true
		}
	}
	return false
}

// solveDLT fits a homography to n >= 4 correspondences by Hartley
// normalisation followed by the SVD null vector of the 2n x 9 system.
func solveDLT(src, dst []geometry.Point) (Matrix, error) {
	ts, ok := normalizer(src)
	if !ok {
		return Matrix{}, fmt.Errorf("%w: coincident source points", ErrSolveFailed)
	}
	td, ok := normalizer(dst)
	if !ok {
		return Matrix{}, fmt.Errorf("%w: coincident destination points", ErrSolveFailed)
	}

	n := len(src)
	rows := 2 * n
	if rows < 9 {
		// Pad with a zero row so the full V carries the null vector.
		rows = 9
	}
	a := mat.NewDense(rows, 9, nil)
	for i := 0; i < n; i++ {
		p, _ := ts.Project(src[i])
		q, _ := td.Project(dst[i])
		a.SetRow(2*i, []float64{-p.X, -p.Y, -1, 0, 0, 0, q.X * p.X, q.X * p.Y, q.X})
		a.SetRow(2*i+1, []float64{0, 0, 0, -p.X, -p.Y, -1, q.Y * p.X, q.Y * p.Y, q.Y})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return Matrix{}, fmt.Errorf("%w: SVD did not converge", ErrSolveFailed)
	}
	var v mat.Dense
	svd.VTo(&v)

	var hn Matrix
	for i := 0; i < 9; i++ {
		hn[i] = v.At(i, 8)
	}

	tdInv, err := td.Inverse()
	if err != nil {
		return Matrix{}, err
	}
	h := tdInv.Mul(hn).Mul(ts).Normalized()
	for _, x := range h {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return Matrix{}, fmt.Errorf("%w: non-finite solution", ErrSolveFailed)
		}
	}
	// Scale-free singularity test: det of h / ||h||.
	fro := mat.Norm(h.dense(), 2)
	if fro == 0 || math.Abs(h.Det())/(fro*fro*fro) < 1e-12 {
		return Matrix{}, fmt.Errorf("%w: singular solution", ErrSolveFailed)
	}
	return h, nil
}

// normalizer returns the similarity that moves pts to their centroid and
// scales their mean distance from it to sqrt(2).
func normalizer(pts []geometry.Point) (Matrix, bool) {
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	n := float64(len(pts))
	cx, cy = cx/n, cy/n

	var mean float64
	for _, p := range pts {
		mean += math.Hypot(p.X-cx, p.Y-cy)
	}
	mean /= n
	if mean == 0 || math.IsNaN(mean) || math.IsInf(mean, 0) {
		return Matrix{}, false
	}

	s := math.Sqrt2 / mean
	return Matrix{s, 0, -s * cx, 0, s, -s * cy, 0, 0, 1}, true
}
