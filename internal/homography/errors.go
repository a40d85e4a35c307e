package homography

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ironsheep/courtcal/internal/court"
	"github.com/ironsheep/courtcal/internal/geometry"
)

// Failure reasons. Every error returned by Estimate wraps exactly one of
// these, so callers branch with errors.Is.
var (
	ErrInsufficientSegments      = errors.New("insufficient segments")
	ErrInsufficientOrientedLines = errors.New("insufficient oriented lines")
	ErrDegenerateIntersection    = errors.New("degenerate intersection")
	ErrDegenerateQuadrilateral   = errors.New("degenerate quadrilateral")
	ErrSolveFailed               = errors.New("homography solve failed")
	ErrPointAtInfinity           = errors.New("point at infinity")
)

// Stage names the estimator step that failed.
type Stage string

const (
	StageSegments  Stage = "segments"
	StageClassify  Stage = "classify"
	StageIntersect Stage = "intersect"
	StageQuad      Stage = "quad"
	StageSolve     Stage = "solve"
)

// EstimateError carries the diagnostics gathered up to the failing stage.
type EstimateError struct {
	Stage          Stage         `json:"stage"`
	Surface        court.Surface `json:"surface"`
	Segments       int           `json:"segments"`
	Horizontal     int           `json:"horizontal"`
	Vertical       int           `json:"vertical"`
	HorizontalAxis float64       `json:"horizontal_axis"`
	VerticalAxis   float64       `json:"vertical_axis"`
	Fallback       bool          `json:"fallback"`
	Area           float64       `json:"area"`
	Err            error         `json:"-"`
}

func (e *EstimateError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "estimate homography (%s, stage %s): %v: %d segments", e.Surface, e.Stage, e.Err, e.Segments)
	if e.Stage != StageSegments {
		fmt.Fprintf(&b, ", %d horizontal @%.1f°, %d vertical @%.1f°", e.Horizontal, e.HorizontalAxis, e.Vertical, e.VerticalAxis)
	}
	if e.Stage == StageQuad || e.Stage == StageSolve {
		fmt.Fprintf(&b, ", area %.1f", e.Area)
	}
	return b.String()
}

func (e *EstimateError) Unwrap() error {
	return e.Err
}

// ProjectionError reports a pixel that maps to infinity under a matrix.
type ProjectionError struct {
	Pixel geometry.Point
	W     float64
}

func (e *ProjectionError) Error() string {
	return fmt.Sprintf("project %v: %v (w=%g)", e.Pixel, ErrPointAtInfinity, e.W)
}

func (e *ProjectionError) Unwrap() error {
	return ErrPointAtInfinity
}
