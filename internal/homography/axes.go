package homography

import (
	"math"
	"sort"

	"github.com/ironsheep/courtcal/internal/geometry"
)

const (
	histogramBins = 180

	// minPeakSeparation is the closest two dominant directions may be
	// before the histogram is considered uninformative.
	minPeakSeparation = 8.0

	// maxHorizontalTilt is how far the horizontal axis may lean before the
	// axes are assumed swapped.
	maxHorizontalTilt = 15.0

	// peakRefineWindow gathers the segment angles that refine a peak bin.
	peakRefineWindow = 2.0
)

// Axes are the two dominant line directions in degrees, [0, 180).
type Axes struct {
	Horizontal float64 `json:"horizontal"`
	Vertical   float64 `json:"vertical"`
	// Fallback is set when the directions came from the longest segment
	// rather than the orientation histogram.
	Fallback bool `json:"fallback"`
}

// ResolveAxes finds the horizontal and vertical court directions.
//
// The two strongest local peaks of the smoothed orientation histogram are
// the candidates. When they are closer than minPeakSeparation, or there is
// only one, the longest segment and its perpendicular are used instead.
// The candidate closer to 0 degrees becomes horizontal; if it still leans
// more than maxHorizontalTilt the two are swapped.
func ResolveAxes(segments []geometry.Segment) Axes {
	if len(segments) == 0 {
		return Axes{Horizontal: 0, Vertical: 90, Fallback: true}
	}

	var a, b float64
	fallback := false
	peaks := histogramPeaks(segments)
	if len(peaks) >= 2 && geometry.AngularDist(peaks[0], peaks[1]) >= minPeakSeparation {
		a, b = peaks[0], peaks[1]
	} else {
		a = longest(segments).Angle()
		b = geometry.NormalizeAngle(a + 90)
		fallback = true
	}

	h, v := a, b
	if geometry.AngularDist(b, 0) < geometry.AngularDist(a, 0) {
		h, v = b, a
	}
	if geometry.AngularDist(h, 0) > maxHorizontalTilt {
		h, v = v, h
	}
	return Axes{Horizontal: h, Vertical: v, Fallback: fallback}
}

// histogramPeaks returns the refined angles of the local maxima of the
// smoothed orientation histogram, strongest first.
func histogramPeaks(segments []geometry.Segment) []float64 {
	var hist [histogramBins]float64
	angles := make([]float64, len(segments))
	for i, s := range segments {
		angles[i] = s.Angle()
		hist[int(angles[i])%histogramBins]++
	}

	var smooth [histogramBins]float64
	for i := range smooth {
		prev := hist[(i+histogramBins-1)%histogramBins]
		next := hist[(i+1)%histogramBins]
		smooth[i] = (prev + hist[i] + next) / 3
	}

	type peak struct {
		bin   int
		score float64
	}
	var found []peak
	for i, v := range smooth {
		if v == 0 {
			continue
		}
		prev := smooth[(i+histogramBins-1)%histogramBins]
		next := smooth[(i+1)%histogramBins]
		// Plateaus report their last bin.
		if v >= prev && v > next {
			found = append(found, peak{bin: i, score: v})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].score > found[j].score })

	out := make([]float64, 0, len(found))
	for _, p := range found {
		out = append(out, refinePeak(angles, float64(p.bin)+0.5))
	}
	return out
}

// refinePeak averages the angles within peakRefineWindow of center, taking
// the 0/180 wrap into account.
func refinePeak(angles []float64, center float64) float64 {
	var sum float64
	n := 0
	for _, a := range angles {
		d := math.Mod(a-center+270, 180) - 90
		if math.Abs(d) <= peakRefineWindow {
			sum += d
			n++
		}
	}
	if n == 0 {
		return geometry.NormalizeAngle(center)
	}
	return geometry.NormalizeAngle(center + sum/float64(n))
}

func longest(segments []geometry.Segment) geometry.Segment {
	best := segments[0]
	for _, s := range segments[1:] {
		if s.Length() > best.Length() {
			best = s
		}
	}
	return best
}

// Classify splits segments by their closest axis. Ties go horizontal.
func Classify(segments []geometry.Segment, axes Axes) (horizontal, vertical []geometry.Segment) {
	for _, s := range segments {
		a := s.Angle()
		if geometry.AngularDist(a, axes.Horizontal) <= geometry.AngularDist(a, axes.Vertical) {
			horizontal = append(horizontal, s)
		} else {
			vertical = append(vertical, s)
		}
	}
	return horizontal, vertical
}
