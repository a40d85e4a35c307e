package detection

import (
	"math"
	"math/rand"

	"github.com/ironsheep/courtcal/internal/geometry"
	"github.com/ironsheep/courtcal/internal/imaging"
)

// HoughParams configures the probabilistic Hough transform.
type HoughParams struct {
	// Threshold is the minimum accumulator vote before a line is traced.
	Threshold int
	// MinLength is the shortest segment (pixels) that is reported.
	MinLength int
	// MaxGap is the longest run of missing edge pixels bridged while tracing.
	MaxGap int
	// Seed fixes the order in which edge points are visited.
	Seed int64
}

// Accumulator resolution: 1 pixel in rho, 1 degree in theta.
const numAngles = 180

// trigTable caches cos/sin for every theta bin.
var trigTable = func() (t [numAngles][2]float64) {
	for n := range t {
		theta := float64(n) * math.Pi / numAngles
		t[n] = [2]float64{math.Cos(theta), math.Sin(theta)}
	}
	return t
}()

// HoughSegments runs a progressive probabilistic Hough transform over m.
//
// Edge points are visited in a seeded random order. Each point votes in the
// (rho, theta) accumulator; when its best bin reaches the threshold the line
// is traced in both directions from the point, bridging gaps up to MaxGap.
// Pixels on the traced run are removed from the edge set, and the votes they
// already cast are withdrawn when the run is long enough to be reported.
// The result is in the edge map's local coordinates.
func HoughSegments(m *imaging.EdgeMap, p HoughParams) []geometry.Segment {
	if m == nil || m.Width == 0 || m.Height == 0 || p.Threshold <= 0 {
		return nil
	}

	width, height := m.Width, m.Height
	numRho := (width+height)*2 + 1
	rhoOffset := (numRho - 1) / 2

	mask := make([]bool, len(m.Pix))
	copy(mask, m.Pix)

	points := make([]int, 0, 1024)
	for i, e := range m.Pix {
		if e {
			points = append(points, i)
		}
	}
	if len(points) == 0 {
		return nil
	}

	rng := rand.New(rand.NewSource(p.Seed))
	rng.Shuffle(len(points), func(i, j int) { points[i], points[j] = points[j], points[i] })

	acc := make([]int32, numAngles*numRho)
	voted := make([]bool, len(m.Pix))
	rhoBin := func(x, y, n int) int {
		r := float64(x)*trigTable[n][0] + float64(y)*trigTable[n][1]
		return n*numRho + int(math.Round(r)) + rhoOffset
	}
	vote := func(x, y int, delta int32) {
		for n := 0; n < numAngles; n++ {
			acc[rhoBin(x, y, n)] += delta
		}
	}

	var segments []geometry.Segment
	for _, idx := range points {
		if !mask[idx] {
			continue
		}
		x0, y0 := idx%width, idx/width
		voted[idx] = true

		best, bestN := int32(0), 0
		for n := 0; n < numAngles; n++ {
			k := rhoBin(x0, y0, n)
			acc[k]++
			if acc[k] > best {
				best, bestN = acc[k], n
			}
		}
		if int(best) < p.Threshold {
			continue
		}

		// Walk along the line, perpendicular to its normal, one pixel per
		// step on the major axis.
		a, b := -trigTable[bestN][1], trigTable[bestN][0]
		var dx, dy float64
		if math.Abs(a) > math.Abs(b) {
			dx, dy = math.Copysign(1, a), b/math.Abs(a)
		} else {
			dx, dy = a/math.Abs(b), math.Copysign(1, b)
		}

		var ends [2][2]int
		for k := 0; k < 2; k++ {
			sx, sy := dx, dy
			if k == 1 {
				sx, sy = -dx, -dy
			}
			ends[k] = [2]int{x0, y0}
			gap := 0
			for fx, fy := float64(x0), float64(y0); ; fx, fy = fx+sx, fy+sy {
				px, py := int(math.Round(fx)), int(math.Round(fy))
				if px < 0 || py < 0 || px >= width || py >= height {
					break
				}
				if mask[py*width+px] {
					gap = 0
					ends[k] = [2]int{px, py}
				} else if gap++; gap > p.MaxGap {
					break
				}
			}
		}

		length := math.Hypot(float64(ends[1][0]-ends[0][0]), float64(ends[1][1]-ends[0][1]))
		good := length >= float64(p.MinLength)

		// Clear the run; withdraw its votes only when it is reported.
		for k := 0; k < 2; k++ {
			sx, sy := dx, dy
			if k == 1 {
				sx, sy = -dx, -dy
			}
			for fx, fy := float64(x0), float64(y0); ; fx, fy = fx+sx, fy+sy {
				px, py := int(math.Round(fx)), int(math.Round(fy))
				if px < 0 || py < 0 || px >= width || py >= height {
					break
				}
				j := py*width + px
				if mask[j] {
					if good && voted[j] {
						vote(px, py, -1)
					}
					mask[j] = false
				}
				if px == ends[k][0] && py == ends[k][1] {
					break
				}
			}
		}

		if good {
			segments = append(segments, geometry.Seg(
				float64(ends[1][0]), float64(ends[1][1]),
				float64(ends[0][0]), float64(ends[0][1]),
			))
		}
	}
	return segments
}
