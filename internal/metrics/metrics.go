// Package metrics holds the prometheus collectors for court calibration.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeNoLines  = "no_lines"
	OutcomeCanceled = "canceled"
)

// Metrics groups the pipeline collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	calibrations     *prometheus.CounterVec
	segments         *prometheus.HistogramVec
	stageDuration    *prometheus.HistogramVec
	framesInProgress prometheus.Gauge
}

// New registers the collectors on reg. A nil reg uses a private registry,
// which keeps tests and embedded use free of global state.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		calibrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "courtcal_calibrations_total",
				Help: "Total number of frame calibrations",
			},
			[]string{"surface", "outcome"}, // outcome: ok, no_lines, canceled or a failing estimator stage
		),
		segments: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "courtcal_segments",
				Help:    "Number of court line segments after merging",
				Buckets: []float64{0, 2, 4, 6, 8, 12, 16, 24, 32, 64},
			},
			[]string{"surface"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "courtcal_stage_duration_seconds",
				Help:    "Pipeline stage duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"stage"}, // stage: extract, estimate
		),
		framesInProgress: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "courtcal_frames_in_progress",
				Help: "Number of frames currently being calibrated",
			},
		),
	}
}

// ObserveCalibration counts one finished frame.
func (m *Metrics) ObserveCalibration(surface, outcome string) {
	if m == nil {
		return
	}
	m.calibrations.WithLabelValues(surface, outcome).Inc()
}

// ObserveSegments records the merged segment count for a frame.
func (m *Metrics) ObserveSegments(surface string, n int) {
	if m == nil {
		return
	}
	m.segments.WithLabelValues(surface).Observe(float64(n))
}

// ObserveStage records how long a pipeline stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// FrameStarted and FrameDone track frames in flight.
func (m *Metrics) FrameStarted() {
	if m == nil {
		return
	}
	m.framesInProgress.Inc()
}

func (m *Metrics) FrameDone() {
	if m == nil {
		return
	}
	m.framesInProgress.Dec()
}
