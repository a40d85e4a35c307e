package detection

import (
	"image"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/courtcal/internal/court"
	"github.com/ironsheep/courtcal/internal/geometry"
	"github.com/ironsheep/courtcal/internal/imaging"
)

// DefaultSeed fixes the Hough point order so repeated runs on the same frame
// return the same segments.
const DefaultSeed int64 = 0x7e4415

// Stats records how many items survived each extraction stage.
type Stats struct {
	EdgePixels int `json:"edge_pixels"`
	Raw        int `json:"raw_segments"`
	AfterROI   int `json:"after_roi"`
	AfterAngle int `json:"after_angle"`
	AfterPaint int `json:"after_paint"`
	Merged     int `json:"merged"`
}

// Extractor turns a frame into consolidated court line segments. It holds
// only read-only configuration and is safe for concurrent use.
type Extractor struct {
	profiles court.ProfileTable
	log      logrus.FieldLogger
	seed     int64
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for per-stage diagnostics.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Extractor) {
		if log != nil {
			e.log = log
		}
	}
}

// WithSeed overrides the Hough point-order seed.
func WithSeed(seed int64) Option {
	return func(e *Extractor) {
		e.seed = seed
	}
}

// NewExtractor builds an Extractor over profiles. A nil or empty table uses
// the built-in surface profiles. The table is copied.
func NewExtractor(profiles court.ProfileTable, opts ...Option) *Extractor {
	if len(profiles) == 0 {
		profiles = court.DefaultProfiles()
	}
	silent := logrus.New()
	silent.SetOutput(io.Discard)

	e := &Extractor{
		profiles: profiles.Clone(),
		log:      silent,
		seed:     DefaultSeed,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Profile returns the profile the extractor applies for surface.
func (e *Extractor) Profile(surface court.Surface) court.Profile {
	return e.profiles.Lookup(surface)
}

// Extract returns the court line candidates in img for surface.
// A nil or empty image yields an empty result.
func (e *Extractor) Extract(img image.Image, surface court.Surface) []geometry.Segment {
	segments, _ := e.ExtractWithStats(img, surface)
	return segments
}

// ExtractWithStats is Extract plus the per-stage counts. Segments are in
// the image's own coordinate space.
func (e *Extractor) ExtractWithStats(img image.Image, surface court.Surface) ([]geometry.Segment, Stats) {
	var stats Stats
	if img == nil || img.Bounds().Empty() {
		return []geometry.Segment{}, stats
	}

	profile := e.Profile(surface)
	log := e.log.WithField("surface", court.Normalize(string(surface)))

	edges := imaging.Canny(img, profile.CannyLow, profile.CannyHigh)
	stats.EdgePixels = edges.Count()
	if stats.EdgePixels == 0 {
		log.Debug("no edges detected")
		return []geometry.Segment{}, stats
	}

	segments := HoughSegments(edges, HoughParams{
		Threshold: profile.HoughThreshold,
		MinLength: profile.MinSegmentLength,
		MaxGap:    profile.MaxLinkGap,
		Seed:      e.seed,
	})
	stats.Raw = len(segments)
	if len(segments) == 0 {
		log.WithField("edge_pixels", stats.EdgePixels).Debug("no segments detected")
		return []geometry.Segment{}, stats
	}

	segments = FilterROI(segments, profile.ROI, edges.Width, edges.Height)
	stats.AfterROI = len(segments)
	segments = FilterAngle(segments, profile.AngleTolerance)
	stats.AfterAngle = len(segments)
	segments = FilterPaint(img, segments, profile.MinLineLightness)
	stats.AfterPaint = len(segments)
	if len(segments) == 0 {
		log.WithFields(logrus.Fields{
			"raw_segments": stats.Raw,
			"after_roi":    stats.AfterROI,
			"after_angle":  stats.AfterAngle,
		}).Debug("filters removed every segment")
		return []geometry.Segment{}, stats
	}

	segments = MergeCollinear(segments, profile.MergeGapTolerance)
	stats.Merged = len(segments)

	if origin := img.Bounds().Min; origin != (image.Point{}) {
		ox, oy := float64(origin.X), float64(origin.Y)
		for i, s := range segments {
			segments[i] = geometry.Seg(s.A.X+ox, s.A.Y+oy, s.B.X+ox, s.B.Y+oy)
		}
	}

	log.WithFields(logrus.Fields{
		"edge_pixels":  stats.EdgePixels,
		"raw_segments": stats.Raw,
		"after_roi":    stats.AfterROI,
		"after_angle":  stats.AfterAngle,
		"after_paint":  stats.AfterPaint,
		"merged":       stats.Merged,
	}).Debug("court lines extracted")
	return segments, stats
}

var defaultExtractor = NewExtractor(nil)

// ExtractCourtLines runs the default extractor over img.
func ExtractCourtLines(img image.Image, surface court.Surface) []geometry.Segment {
	return defaultExtractor.Extract(img, surface)
}
