package detection

import (
	"image"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/courtcal/internal/court"
	"github.com/ironsheep/courtcal/internal/geometry"
)

// FilterROI keeps segments whose centroid lies strictly inside roi for a
// width x height frame. A nil roi keeps everything.
func FilterROI(segments []geometry.Segment, roi *court.ROI, width, height int) []geometry.Segment {
	if roi == nil {
		return segments
	}
	out := make([]geometry.Segment, 0, len(segments))
	for _, s := range segments {
		c := s.Centroid()
		if roi.Contains(c.X, c.Y, width, height) {
			out = append(out, s)
		}
	}
	return out
}

// FilterAngle keeps segments within tolerance degrees of horizontal or
// vertical. A tolerance of zero disables the filter.
func FilterAngle(segments []geometry.Segment, tolerance float64) []geometry.Segment {
	if tolerance <= 0 {
		return segments
	}
	out := make([]geometry.Segment, 0, len(segments))
	for _, s := range segments {
		a := s.Angle()
		if geometry.AngularDist(a, 0) <= tolerance || geometry.AngularDist(a, 90) <= tolerance {
			out = append(out, s)
		}
	}
	return out
}

// Sampling layout for the paint check.
const (
	paintStations = 9
	paintReach    = 3
)

// FilterPaint keeps segments that run alongside bright paint.
//
// Canny places a segment on the boundary between a painted line and the
// playing surface, so each of a few stations along the segment looks up to
// paintReach pixels to either side for a pixel whose HSL lightness reaches
// minLightness. A segment is kept when most stations see paint. The image is
// addressed in local coordinates (relative to its bounds Min). A zero
// minLightness disables the filter.
func FilterPaint(img image.Image, segments []geometry.Segment, minLightness float64) []geometry.Segment {
	if minLightness <= 0 {
		return segments
	}
	out := make([]geometry.Segment, 0, len(segments))
	for _, s := range segments {
		if paintFraction(img, s, minLightness) > 0.5 {
			out = append(out, s)
		}
	}
	return out
}

// paintFraction returns the share of stations along s that see paint.
func paintFraction(img image.Image, s geometry.Segment, minLightness float64) float64 {
	bounds := img.Bounds()
	length := s.Length()
	if length == 0 {
		return 0
	}
	nx, ny := -(s.B.Y-s.A.Y)/length, (s.B.X-s.A.X)/length

	hits := 0
	for i := 0; i < paintStations; i++ {
		t := (float64(i) + 0.5) / paintStations
		cx := s.A.X + t*(s.B.X-s.A.X)
		cy := s.A.Y + t*(s.B.Y-s.A.Y)
		for d := -paintReach; d <= paintReach; d++ {
			px := bounds.Min.X + int(math.Round(cx+float64(d)*nx))
			py := bounds.Min.Y + int(math.Round(cy+float64(d)*ny))
			if !(image.Point{X: px, Y: py}).In(bounds) {
				continue
			}
			c, ok := colorful.MakeColor(img.At(px, py))
			if !ok {
				continue
			}
			if _, _, l := c.Hsl(); l >= minLightness {
				hits++
				break
			}
		}
	}
	return float64(hits) / paintStations
}
