package calibrate

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/courtcal/internal/court"
	"github.com/ironsheep/courtcal/internal/geometry"
	"github.com/ironsheep/courtcal/internal/homography"
	"github.com/ironsheep/courtcal/internal/metrics"
)

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			img.Set(x, y, c)
		}
	}
}

// courtFrame paints a blue hard court with white baseline (y=400), service
// line (y=250) and sidelines (x=100, x=540).
func courtFrame() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	fillRect(img, 0, 0, 640, 480, color.RGBA{40, 80, 140, 255})
	white := color.RGBA{245, 245, 245, 255}
	fillRect(img, 60, 398, 580, 402, white)
	fillRect(img, 60, 248, 580, 252, white)
	fillRect(img, 98, 160, 102, 460, white)
	fillRect(img, 538, 160, 542, 460, white)
	return img
}

func blankFrame() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	fillRect(img, 0, 0, 320, 240, color.RGBA{40, 80, 140, 255})
	return img
}

func TestCalibrate_SyntheticCourt(t *testing.T) {
	c := New()

	res := c.Calibrate(courtFrame(), court.Hard)
	require.NoError(t, res.Err)
	require.True(t, res.OK())
	assert.Equal(t, court.Hard, res.Surface)
	assert.GreaterOrEqual(t, len(res.Segments), 4)
	assert.Equal(t, len(res.Segments), res.Stats.Merged)

	h := res.Homography
	want := [4]geometry.Point{{X: 100, Y: 400}, {X: 540, Y: 400}, {X: 100, Y: 250}, {X: 540, Y: 250}}
	for i, p := range h.PixelPoints {
		assert.InDelta(t, want[i].X, p.X, 4, "corner %d x", i)
		assert.InDelta(t, want[i].Y, p.Y, 4, "corner %d y", i)
	}

	world := court.WorldPoints()
	for i, p := range h.PixelPoints {
		w, err := h.Matrix.Project(p)
		require.NoError(t, err)
		assert.InDelta(t, world[i].X, w.X, 0.05)
		assert.InDelta(t, world[i].Y, w.Y, 0.05)
	}
}

func TestCalibrate_NoLines(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	c := New(WithMetrics(m))

	res := c.Calibrate(blankFrame(), court.Clay)
	assert.False(t, res.OK())
	assert.Empty(t, res.Segments)
	assert.ErrorIs(t, res.Err, homography.ErrInsufficientSegments)

	var ee *homography.EstimateError
	require.ErrorAs(t, res.Err, &ee)
	assert.Equal(t, homography.StageSegments, ee.Stage)

	n, err := testutil.GatherAndCount(reg, "courtcal_calibrations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCalibrate_UnknownSurfaceNormalized(t *testing.T) {
	res := New().Calibrate(blankFrame(), court.Surface("carpet"))
	assert.Equal(t, court.Hard, res.Surface)
}

func TestCalibrateFrames_PreservesOrder(t *testing.T) {
	c := New()
	var frames []Frame
	for i := 0; i < 6; i++ {
		img := image.Image(courtFrame())
		if i%2 == 1 {
			img = blankFrame()
		}
		frames = append(frames, Frame{ID: fmt.Sprintf("f%d", i), Image: img, Surface: court.Hard})
	}

	results, err := c.CalibrateFrames(context.Background(), frames, 3)
	require.NoError(t, err)
	require.Len(t, results, len(frames))

	for i, r := range results {
		assert.Equal(t, frames[i].ID, r.ID)
		if i%2 == 0 {
			assert.True(t, r.OK(), "frame %d", i)
		} else {
			assert.ErrorIs(t, r.Err, homography.ErrInsufficientSegments, "frame %d", i)
		}
	}
}

func TestCalibrateFrames_Canceled(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(WithMetrics(metrics.New(reg)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	frames := []Frame{
		{ID: "a", Image: courtFrame(), Surface: court.Grass},
		{ID: "b", Image: courtFrame(), Surface: court.Grass},
	}
	results, err := c.CalibrateFrames(ctx, frames, 1)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 2)
	for i, r := range results {
		assert.Equal(t, frames[i].ID, r.ID)
		assert.ErrorIs(t, r.Err, context.Canceled)
		assert.Nil(t, r.Homography)
	}

	expected := `
# HELP courtcal_calibrations_total Total number of frame calibrations
# TYPE courtcal_calibrations_total counter
courtcal_calibrations_total{outcome="canceled",surface="GRASS"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "courtcal_calibrations_total"))
}

func TestCalibrateFrames_Empty(t *testing.T) {
	results, err := New().CalibrateFrames(context.Background(), nil, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCalibrateFrames_LogsSummary(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	_, err := New(WithLogger(log)).CalibrateFrames(context.Background(), []Frame{{ID: "x", Image: blankFrame()}}, 2)
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "batch calibrated", entry.Message)
	assert.Equal(t, 1, entry.Data["frames"])
	assert.Equal(t, 1, entry.Data["failed"])
	assert.Equal(t, 2, entry.Data["workers"])
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, metrics.OutcomeOK, outcome(Result{}))
	assert.Equal(t, metrics.OutcomeNoLines, outcome(Result{Err: homography.ErrInsufficientSegments}))

	segs := []geometry.Segment{geometry.Seg(0, 0, 10, 0)}
	err := &homography.EstimateError{Stage: homography.StageQuad, Err: homography.ErrDegenerateQuadrilateral}
	assert.Equal(t, "quad", outcome(Result{Segments: segs, Err: err}))
	assert.Equal(t, "error", outcome(Result{Segments: segs, Err: assert.AnError}))
}
