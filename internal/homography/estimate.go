package homography

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/courtcal/internal/court"
	"github.com/ironsheep/courtcal/internal/geometry"
)

// DefaultMinQuadArea is the smallest |area| in square pixels accepted for
// the quadrilateral of intersection points.
const DefaultMinQuadArea = 100.0

// Lines are the four segments chosen for the court roles.
type Lines struct {
	Baseline      geometry.Segment `json:"baseline"`
	ServiceLine   geometry.Segment `json:"service_line"`
	LeftSideline  geometry.Segment `json:"left_sideline"`
	RightSideline geometry.Segment `json:"right_sideline"`
}

// Segments returns the lines in role order: baseline, service line, left
// sideline, right sideline.
func (l Lines) Segments() [4]geometry.Segment {
	return [4]geometry.Segment{l.Baseline, l.ServiceLine, l.LeftSideline, l.RightSideline}
}

// Result is a successful estimate.
type Result struct {
	// Matrix maps pixels to world metres.
	Matrix Matrix `json:"matrix"`
	Lines  Lines  `json:"lines"`
	// PixelPoints are the intersections in keypoint order: baseline with
	// left and right sideline, then service line with left and right.
	PixelPoints [4]geometry.Point `json:"pixel_points"`
	WorldPoints [4]geometry.Point `json:"world_points"`
	Axes        Axes              `json:"axes"`
	Horizontal  int               `json:"horizontal"`
	Vertical    int               `json:"vertical"`
	QuadArea    float64           `json:"quad_area"`
}

// Estimator fits a pixel-to-world homography to court line segments. It is
// stateless after construction and safe for concurrent use.
type Estimator struct {
	log         logrus.FieldLogger
	minQuadArea float64
	fit         FitOptions
	world       [4]geometry.Point
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithLogger sets the logger for per-stage diagnostics.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Estimator) {
		if log != nil {
			e.log = log
		}
	}
}

// WithMinQuadArea overrides DefaultMinQuadArea.
func WithMinQuadArea(area float64) Option {
	return func(e *Estimator) {
		if area > 0 {
			e.minQuadArea = area
		}
	}
}

// WithFitOptions overrides DefaultFitOptions.
func WithFitOptions(opts FitOptions) Option {
	return func(e *Estimator) {
		e.fit = opts
	}
}

// WithWorldPoints replaces the keypoint table. Only the first four entries
// are used; tables shorter than four are ignored.
func WithWorldPoints(pts []geometry.Point) Option {
	return func(e *Estimator) {
		if len(pts) >= 4 {
			copy(e.world[:], pts[:4])
		}
	}
}

// NewEstimator returns an Estimator using the ITF keypoint table.
func NewEstimator(opts ...Option) *Estimator {
	silent := logrus.New()
	silent.SetOutput(io.Discard)

	e := &Estimator{
		log:         silent,
		minQuadArea: DefaultMinQuadArea,
		fit:         DefaultFitOptions(),
	}
	copy(e.world[:], court.WorldPoints()[:4])
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimate classifies segments into court roles and fits the homography
// from their intersections to the first four world keypoints. surface is
// used for diagnostics only. Failures are *EstimateError values wrapping
// one of the package sentinels.
func (e *Estimator) Estimate(segments []geometry.Segment, surface court.Surface) (*Result, error) {
	surface = court.Normalize(string(surface))
	diag := &EstimateError{Surface: surface, Segments: len(segments)}
	fail := func(stage Stage, err error) (*Result, error) {
		diag.Stage, diag.Err = stage, err
		e.log.WithFields(logrus.Fields{
			"surface":    surface,
			"stage":      stage,
			"segments":   diag.Segments,
			"horizontal": diag.Horizontal,
			"vertical":   diag.Vertical,
			"area":       diag.Area,
		}).Debug(err.Error())
		return nil, diag
	}

	if len(segments) < 4 {
		return fail(StageSegments, ErrInsufficientSegments)
	}

	axes := ResolveAxes(segments)
	horizontal, vertical := Classify(segments, axes)
	diag.HorizontalAxis, diag.VerticalAxis, diag.Fallback = axes.Horizontal, axes.Vertical, axes.Fallback
	diag.Horizontal, diag.Vertical = len(horizontal), len(vertical)
	if len(horizontal) < 2 || len(vertical) < 2 {
		return fail(StageClassify, ErrInsufficientOrientedLines)
	}

	lines := SelectLines(horizontal, vertical)
	pixels, ok := Corners(lines)
	if !ok {
		return fail(StageIntersect, ErrDegenerateIntersection)
	}

	// Perimeter order: bottom-left, bottom-right, top-right, top-left.
	diag.Area = math.Abs(geometry.QuadArea(pixels[0], pixels[1], pixels[3], pixels[2]))
	if diag.Area < e.minQuadArea {
		return fail(StageQuad, ErrDegenerateQuadrilateral)
	}

	m, _, err := FitHomography(pixels[:], e.world[:], e.fit)
	if err != nil {
		return fail(StageSolve, err)
	}

	e.log.WithFields(logrus.Fields{
		"surface":         surface,
		"segments":        len(segments),
		"horizontal":      len(horizontal),
		"vertical":        len(vertical),
		"horizontal_axis": axes.Horizontal,
		"vertical_axis":   axes.Vertical,
		"fallback":        axes.Fallback,
		"area":            diag.Area,
	}).Debug("homography estimated")

	return &Result{
		Matrix:      m,
		Lines:       lines,
		PixelPoints: pixels,
		WorldPoints: e.world,
		Axes:        axes,
		Horizontal:  len(horizontal),
		Vertical:    len(vertical),
		QuadArea:    diag.Area,
	}, nil
}

// SelectLines picks the court roles by position: the lowest horizontal line
// in the frame is the baseline and the next lowest the service line; the
// leftmost and rightmost vertical lines are the sidelines. Both groups must
// hold at least two segments.
func SelectLines(horizontal, vertical []geometry.Segment) Lines {
	h := sortedBy(horizontal, func(s geometry.Segment) float64 { return -s.Centroid().Y })
	v := sortedBy(vertical, func(s geometry.Segment) float64 { return s.Centroid().X })
	return Lines{
		Baseline:      h[0],
		ServiceLine:   h[1],
		LeftSideline:  v[0],
		RightSideline: v[len(v)-1],
	}
}

func sortedBy(segments []geometry.Segment, key func(geometry.Segment) float64) []geometry.Segment {
	out := make([]geometry.Segment, len(segments))
	copy(out, segments)
	sort.SliceStable(out, func(i, j int) bool { return key(out[i]) < key(out[j]) })
	return out
}

// Corners intersects the role lines in keypoint order. ok is false when any
// pair is parallel or meets at a non-finite point.
func Corners(l Lines) (pts [4]geometry.Point, ok bool) {
	pairs := [4][2]geometry.Segment{
		{l.Baseline, l.LeftSideline},
		{l.Baseline, l.RightSideline},
		{l.ServiceLine, l.LeftSideline},
		{l.ServiceLine, l.RightSideline},
	}
	for i, p := range pairs {
		pts[i], ok = geometry.Intersect(p[0], p[1])
		if !ok {
			return [4]geometry.Point{}, false
		}
	}
	return pts, true
}

var defaultEstimator = NewEstimator()

// Estimate runs the default estimator.
func Estimate(segments []geometry.Segment, surface court.Surface) (*Result, error) {
	return defaultEstimator.Estimate(segments, surface)
}

// String summarises the result for logs and CLI output.
func (r *Result) String() string {
	return fmt.Sprintf("homography from %d horizontal / %d vertical lines, area %.0f px²", r.Horizontal, r.Vertical, r.QuadArea)
}
