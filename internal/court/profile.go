package court

import (
	"errors"
	"fmt"
)

// ROI is a region of interest expressed as fractions of image width and
// height. A segment is kept when its centroid lies strictly inside it.
type ROI struct {
	XMin float64 `json:"x_min" yaml:"x_min" mapstructure:"x_min"`
	XMax float64 `json:"x_max" yaml:"x_max" mapstructure:"x_max"`
	YMin float64 `json:"y_min" yaml:"y_min" mapstructure:"y_min"`
	YMax float64 `json:"y_max" yaml:"y_max" mapstructure:"y_max"`
}

// Contains reports whether (x, y) lies inside the ROI of a width x height image.
func (r ROI) Contains(x, y float64, width, height int) bool {
	w, h := float64(width), float64(height)
	return x > w*r.XMin && x < w*r.XMax && y > h*r.YMin && y < h*r.YMax
}

// Validate checks the bounds are ordered fractions.
func (r ROI) Validate() error {
	for _, v := range []float64{r.XMin, r.XMax, r.YMin, r.YMax} {
		if v < 0 || v > 1 {
			return fmt.Errorf("roi bound %.3f outside [0,1]", v)
		}
	}
	if r.XMin >= r.XMax || r.YMin >= r.YMax {
		return errors.New("roi minimum must be below maximum")
	}
	return nil
}

// Profile bundles the detection thresholds tuned for one surface.
type Profile struct {
	// CannyLow and CannyHigh are the hysteresis thresholds applied to the
	// gradient magnitude of the 0-255 intensity image.
	CannyLow  float64 `json:"canny_low" yaml:"canny_low" mapstructure:"canny_low"`
	CannyHigh float64 `json:"canny_high" yaml:"canny_high" mapstructure:"canny_high"`

	// HoughThreshold is the minimum accumulator vote for a candidate line.
	HoughThreshold int `json:"hough_threshold" yaml:"hough_threshold" mapstructure:"hough_threshold"`

	// MinSegmentLength drops shorter Hough segments (pixels).
	MinSegmentLength int `json:"min_segment_length" yaml:"min_segment_length" mapstructure:"min_segment_length"`

	// MaxLinkGap is the largest run of missing edge pixels bridged while
	// tracing a segment. Occlusion by players and worn paint need this.
	MaxLinkGap int `json:"max_link_gap" yaml:"max_link_gap" mapstructure:"max_link_gap"`

	// MergeGapTolerance is the perpendicular centroid distance (pixels) under
	// which two same-orientation segments are merged into one line.
	MergeGapTolerance float64 `json:"merge_gap_tolerance" yaml:"merge_gap_tolerance" mapstructure:"merge_gap_tolerance"`

	// AngleTolerance keeps only segments within this many degrees of
	// horizontal or vertical. Zero disables the filter.
	AngleTolerance float64 `json:"angle_tolerance" yaml:"angle_tolerance" mapstructure:"angle_tolerance"`

	// MinLineLightness (HSL lightness, 0-1) requires a segment to run next to
	// bright paint. Zero disables the filter.
	MinLineLightness float64 `json:"min_line_lightness" yaml:"min_line_lightness" mapstructure:"min_line_lightness"`

	// ROI restricts segment centroids to part of the frame. Nil keeps all.
	ROI *ROI `json:"roi,omitempty" yaml:"roi,omitempty" mapstructure:"roi"`
}

// Validate rejects profiles the detector cannot run with.
func (p Profile) Validate() error {
	if p.CannyLow < 0 || p.CannyHigh <= 0 {
		return errors.New("canny thresholds must be positive")
	}
	if p.CannyLow > p.CannyHigh {
		return fmt.Errorf("canny low threshold %.1f exceeds high threshold %.1f", p.CannyLow, p.CannyHigh)
	}
	if p.HoughThreshold <= 0 {
		return errors.New("hough threshold must be positive")
	}
	if p.MinSegmentLength <= 0 {
		return errors.New("min segment length must be positive")
	}
	if p.MaxLinkGap < 0 {
		return errors.New("max link gap cannot be negative")
	}
	if p.MergeGapTolerance <= 0 {
		return errors.New("merge gap tolerance must be positive")
	}
	if p.AngleTolerance < 0 || p.AngleTolerance > 45 {
		return errors.New("angle tolerance must be within [0,45]")
	}
	if p.MinLineLightness < 0 || p.MinLineLightness > 1 {
		return errors.New("min line lightness must be within [0,1]")
	}
	if p.ROI != nil {
		if err := p.ROI.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// clone returns a copy that shares no pointers with p.
func (p Profile) clone() Profile {
	if p.ROI != nil {
		roi := *p.ROI
		p.ROI = &roi
	}
	return p
}

// Hough parameters shared by every surface.
const (
	DefaultMinSegmentLength  = 40
	DefaultMaxLinkGap        = 15
	DefaultMergeGapTolerance = 45.0
)

// DefaultProfiles returns a fresh copy of the built-in surface profiles.
//
// Clay carries a low vote threshold because its lines are broken up by loose
// surface material; grass and clay need higher Canny thresholds to reject
// texture edges.
func DefaultProfiles() ProfileTable {
	base := Profile{
		MinSegmentLength:  DefaultMinSegmentLength,
		MaxLinkGap:        DefaultMaxLinkGap,
		MergeGapTolerance: DefaultMergeGapTolerance,
	}

	hard := base
	hard.CannyLow, hard.CannyHigh, hard.HoughThreshold = 25, 100, 70
	hard.ROI = &ROI{XMin: 0.02, XMax: 0.98, YMin: 0.15, YMax: 0.99}

	grass := base
	grass.CannyLow, grass.CannyHigh, grass.HoughThreshold = 30, 120, 65
	grass.ROI = &ROI{XMin: 0.02, XMax: 0.98, YMin: 0.20, YMax: 0.99}

	clay := base
	clay.CannyLow, clay.CannyHigh, clay.HoughThreshold = 40, 180, 30
	clay.ROI = &ROI{XMin: 0.02, XMax: 0.98, YMin: 0.20, YMax: 0.99}

	return ProfileTable{Hard: hard, Grass: grass, Clay: clay}
}

// ProfileTable maps surfaces to their profiles.
type ProfileTable map[Surface]Profile

// Lookup returns the profile for s. Unknown surfaces, or surfaces missing
// from the table, fall back to the Hard profile and then to the built-in
// Hard defaults.
func (t ProfileTable) Lookup(s Surface) Profile {
	if p, ok := t[Normalize(string(s))]; ok {
		return p.clone()
	}
	if p, ok := t[Hard]; ok {
		return p.clone()
	}
	return DefaultProfiles()[Hard]
}

// Clone returns a deep copy of the table.
func (t ProfileTable) Clone() ProfileTable {
	out := make(ProfileTable, len(t))
	for s, p := range t {
		out[s] = p.clone()
	}
	return out
}

// Validate checks every profile in the table.
func (t ProfileTable) Validate() error {
	for _, s := range Surfaces() {
		p, ok := t[s]
		if !ok {
			continue
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("surface %s: %w", s, err)
		}
	}
	return nil
}
