// Package calibrate runs line extraction and homography estimation for one
// frame, or for many frames in parallel.
package calibrate

import (
	"context"
	"errors"
	"image"
	"io"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/courtcal/internal/court"
	"github.com/ironsheep/courtcal/internal/detection"
	"github.com/ironsheep/courtcal/internal/geometry"
	"github.com/ironsheep/courtcal/internal/homography"
	"github.com/ironsheep/courtcal/internal/metrics"
)

// Frame is one image to calibrate.
type Frame struct {
	ID      string
	Image   image.Image
	Surface court.Surface
}

// Result is the outcome for one frame. Err is nil on success; otherwise it
// is an *homography.EstimateError or the context error for frames that were
// never started.
type Result struct {
	ID         string             `json:"id,omitempty"`
	Surface    court.Surface      `json:"surface"`
	Segments   []geometry.Segment `json:"segments"`
	Stats      detection.Stats    `json:"stats"`
	Homography *homography.Result `json:"homography,omitempty"`
	Err        error              `json:"-"`
}

// OK reports whether a homography was produced.
func (r Result) OK() bool {
	return r.Err == nil && r.Homography != nil
}

// Calibrator wires the extraction and estimation stages together.
type Calibrator struct {
	extractor *detection.Extractor
	estimator *homography.Estimator
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
}

// Option configures a Calibrator.
type Option func(*Calibrator)

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Calibrator) {
		if log != nil {
			c.log = log
		}
	}
}

// WithMetrics records outcomes and timings on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Calibrator) {
		c.metrics = m
	}
}

// WithExtractor replaces the default extractor.
func WithExtractor(e *detection.Extractor) Option {
	return func(c *Calibrator) {
		if e != nil {
			c.extractor = e
		}
	}
}

// WithEstimator replaces the default estimator.
func WithEstimator(e *homography.Estimator) Option {
	return func(c *Calibrator) {
		if e != nil {
			c.estimator = e
		}
	}
}

// New returns a Calibrator with the built-in profiles and keypoints unless
// overridden by opts.
func New(opts ...Option) *Calibrator {
	silent := logrus.New()
	silent.SetOutput(io.Discard)

	c := &Calibrator{log: silent}
	for _, opt := range opts {
		opt(c)
	}
	if c.extractor == nil {
		c.extractor = detection.NewExtractor(nil, detection.WithLogger(c.log))
	}
	if c.estimator == nil {
		c.estimator = homography.NewEstimator(homography.WithLogger(c.log))
	}
	return c
}

// Extractor returns the extractor in use.
func (c *Calibrator) Extractor() *detection.Extractor {
	return c.extractor
}

// Calibrate extracts the court lines of img and estimates its homography.
func (c *Calibrator) Calibrate(img image.Image, surface court.Surface) Result {
	surface = court.Normalize(string(surface))
	c.metrics.FrameStarted()
	defer c.metrics.FrameDone()

	start := time.Now()
	segments, stats := c.extractor.ExtractWithStats(img, surface)
	c.metrics.ObserveStage("extract", time.Since(start))
	c.metrics.ObserveSegments(string(surface), len(segments))

	res := Result{Surface: surface, Segments: segments, Stats: stats}

	start = time.Now()
	res.Homography, res.Err = c.estimator.Estimate(segments, surface)
	c.metrics.ObserveStage("estimate", time.Since(start))

	c.metrics.ObserveCalibration(string(surface), outcome(res))
	return res
}

// CalibrateFrames calibrates frames on up to workers goroutines (NumCPU when
// workers <= 0). Results keep the input order. A failing frame never stops
// the batch; cancelling ctx stops dispatch, and frames not yet started carry
// the context error. The returned error is ctx.Err().
func (c *Calibrator) CalibrateFrames(ctx context.Context, frames []Frame, workers int) ([]Result, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]Result, len(frames))
	g := new(errgroup.Group)
	g.SetLimit(workers)

	for i, f := range frames {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(frames); j++ {
				results[j] = Result{ID: frames[j].ID, Surface: court.Normalize(string(frames[j].Surface)), Err: err}
				c.metrics.ObserveCalibration(string(results[j].Surface), metrics.OutcomeCanceled)
			}
			break
		}
		g.Go(func() error {
			r := c.Calibrate(f.Image, f.Surface)
			r.ID = f.ID
			results[i] = r
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	c.log.WithFields(logrus.Fields{
		"frames":  len(frames),
		"failed":  failed,
		"workers": workers,
	}).Info("batch calibrated")

	return results, ctx.Err()
}

// outcome is the metrics label for a finished frame.
func outcome(r Result) string {
	if r.Err == nil {
		return metrics.OutcomeOK
	}
	if len(r.Segments) == 0 {
		return metrics.OutcomeNoLines
	}
	var ee *homography.EstimateError
	if errors.As(r.Err, &ee) {
		return string(ee.Stage)
	}
	return "error"
}
