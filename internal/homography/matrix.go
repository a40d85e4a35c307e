package homography

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ironsheep/courtcal/internal/geometry"
)

// relTolerance bounds |w| from below relative to the largest value the
// matrix could produce for the point, so uniformly rescaling a matrix never
// changes which points it rejects.
const relTolerance = 1e-12

// Matrix is a 3x3 projective transform in row-major order. It maps
// homogeneous (u, v, 1) to (X, Y, W) followed by division by W.
type Matrix [9]float64

// Identity returns the identity transform.
func Identity() Matrix {
	return Matrix{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Rows returns the matrix as nested rows, convenient for JSON output.
func (m Matrix) Rows() [3][3]float64 {
	return [3][3]float64{
		{m[0], m[1], m[2]},
		{m[3], m[4], m[5]},
		{m[6], m[7], m[8]},
	}
}

// Project maps p through m. A point whose homogeneous scale w is zero or
// negligible next to |third row| * |(u, v, 1)|, or whose result is not
// finite, returns a *ProjectionError.
func (m Matrix) Project(p geometry.Point) (geometry.Point, error) {
	w := m[6]*p.X + m[7]*p.Y + m[8]
	bound := math.Sqrt(m[6]*m[6]+m[7]*m[7]+m[8]*m[8]) * math.Sqrt(p.X*p.X+p.Y*p.Y+1)
	if math.IsNaN(w) || w == 0 || math.Abs(w) <= relTolerance*bound {
		return geometry.Point{}, &ProjectionError{Pixel: p, W: w}
	}
	out := geometry.Point{
		X: (m[0]*p.X + m[1]*p.Y + m[2]) / w,
		Y: (m[3]*p.X + m[4]*p.Y + m[5]) / w,
	}
	if !out.IsFinite() {
		return geometry.Point{}, &ProjectionError{Pixel: p, W: w}
	}
	return out, nil
}

// Mul returns m * n, the transform that applies n first.
func (m Matrix) Mul(n Matrix) Matrix {
	var out Matrix
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = m[r*3]*n[c] + m[r*3+1]*n[3+c] + m[r*3+2]*n[6+c]
		}
	}
	return out
}

// Det returns the determinant.
func (m Matrix) Det() float64 {
	return mat.Det(m.dense())
}

// Normalized scales m so the bottom-right entry is 1. Matrices whose
// bottom-right entry is negligible next to their Frobenius norm are scaled
// to unit norm instead.
func (m Matrix) Normalized() Matrix {
	norm := mat.Norm(m.dense(), 2)
	if norm == 0 {
		return m
	}
	s := m[8]
	if math.Abs(s) <= relTolerance*norm {
		s = norm
	}
	for i := range m {
		m[i] /= s
	}
	return m
}

// Inverse returns the inverse transform, normalized.
func (m Matrix) Inverse() (Matrix, error) {
	var inv mat.Dense
	if err := inv.Inverse(m.dense()); err != nil {
		return Matrix{}, errors.Join(ErrSolveFailed, err)
	}
	var out Matrix
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = inv.At(r, c)
		}
	}
	for _, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Matrix{}, ErrSolveFailed
		}
	}
	return out.Normalized(), nil
}

func (m Matrix) dense() *mat.Dense {
	data := make([]float64, 9)
	copy(data, m[:])
	return mat.NewDense(3, 3, data)
}

// ProjectPixelToWorld maps a pixel through a pixel-to-world matrix.
func ProjectPixelToWorld(m Matrix, pixel geometry.Point) (geometry.Point, error) {
	return m.Project(pixel)
}

// MeasureWorldDistance returns the world distance (metres for a court
// calibration) between two pixels.
func MeasureWorldDistance(m Matrix, a, b geometry.Point) (float64, error) {
	wa, err := m.Project(a)
	if err != nil {
		return 0, err
	}
	wb, err := m.Project(b)
	if err != nil {
		return 0, err
	}
	return wa.Distance(wb), nil
}
