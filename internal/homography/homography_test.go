package homography

import (
	"errors"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/courtcal/internal/court"
	"github.com/ironsheep/courtcal/internal/geometry"
)

// scenario is a fronto-parallel court: baseline y=600, service line y=400,
// sidelines x=50 and x=950.
func scenario() []geometry.Segment {
	return []geometry.Segment{
		geometry.Seg(0, 400, 1000, 400),
		geometry.Seg(0, 600, 1000, 600),
		geometry.Seg(50, 100, 50, 700),
		geometry.Seg(950, 100, 950, 700),
	}
}

func assertPointNear(t *testing.T, want, got geometry.Point, tol float64, msgAndArgs ...interface{}) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, tol, msgAndArgs...)
	assert.InDelta(t, want.Y, got.Y, tol, msgAndArgs...)
}

func TestEstimate_Scenario(t *testing.T) {
	res, err := Estimate(scenario(), court.Hard)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Horizontal)
	assert.Equal(t, 2, res.Vertical)
	assert.False(t, res.Axes.Fallback)

	assert.Equal(t, geometry.Seg(0, 600, 1000, 600), res.Lines.Baseline)
	assert.Equal(t, geometry.Seg(0, 400, 1000, 400), res.Lines.ServiceLine)
	assert.Equal(t, geometry.Seg(50, 100, 50, 700), res.Lines.LeftSideline)
	assert.Equal(t, geometry.Seg(950, 100, 950, 700), res.Lines.RightSideline)

	want := []geometry.Point{{X: 50, Y: 600}, {X: 950, Y: 600}, {X: 50, Y: 400}, {X: 950, Y: 400}}
	for i, p := range want {
		assertPointNear(t, p, res.PixelPoints[i], 1e-6, "corner %d", i)
	}
	assert.InDelta(t, 180000, res.QuadArea, 1e-6)

	world := court.WorldPoints()
	for i, p := range res.PixelPoints {
		got, err := res.Matrix.Project(p)
		require.NoError(t, err)
		assertPointNear(t, world[i], got, 0.05, "keypoint %d", i)
		assert.Equal(t, world[i], res.WorldPoints[i])
	}
}

func TestEstimate_InteriorPointsMapAffinely(t *testing.T) {
	res, err := Estimate(scenario(), court.Clay)
	require.NoError(t, err)

	// Midway between the sidelines on the baseline is the centre mark.
	got, err := ProjectPixelToWorld(res.Matrix, geometry.Pt(500, 600))
	require.NoError(t, err)
	assertPointNear(t, geometry.Pt(court.SinglesWidth/2, 0), got, 0.01)

	d, err := MeasureWorldDistance(res.Matrix, geometry.Pt(50, 600), geometry.Pt(50, 400))
	require.NoError(t, err)
	assert.InDelta(t, court.ServiceLineToBaseline, d, 0.01)
}

func TestEstimate_RoundTripThroughInverse(t *testing.T) {
	res, err := Estimate(scenario(), court.Grass)
	require.NoError(t, err)

	inv, err := res.Matrix.Inverse()
	require.NoError(t, err)

	for _, p := range []geometry.Point{{X: 50, Y: 600}, {X: 123.4, Y: 456.7}, {X: 800, Y: 100}, {X: 999, Y: 699}} {
		w, err := res.Matrix.Project(p)
		require.NoError(t, err)
		back, err := inv.Project(w)
		require.NoError(t, err)
		assertPointNear(t, p, back, 1e-6)
	}
}

func TestEstimate_PerspectiveCourt(t *testing.T) {
	// Sidelines converge towards the far end as in a broadcast frame.
	segs := []geometry.Segment{
		geometry.Seg(100, 650, 1180, 650),
		geometry.Seg(250, 420, 1030, 420),
		geometry.Seg(140, 700, 330, 300),
		geometry.Seg(1140, 700, 950, 300),
		geometry.Seg(640, 420, 640, 330), // centre service line
	}

	res, err := Estimate(segs, court.Hard)
	require.NoError(t, err)
	assert.Equal(t, segs[0], res.Lines.Baseline)
	assert.Equal(t, segs[1], res.Lines.ServiceLine)
	assert.Equal(t, segs[2], res.Lines.LeftSideline)
	assert.Equal(t, segs[3], res.Lines.RightSideline)

	world := court.WorldPoints()
	for i, p := range res.PixelPoints {
		got, err := res.Matrix.Project(p)
		require.NoError(t, err)
		assertPointNear(t, world[i], got, 0.05, "keypoint %d", i)
	}
}

func TestEstimate_InsufficientSegments(t *testing.T) {
	for n := 0; n < 4; n++ {
		_, err := Estimate(scenario()[:n], court.Hard)
		require.ErrorIs(t, err, ErrInsufficientSegments, "n=%d", n)

		var ee *EstimateError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, StageSegments, ee.Stage)
		assert.Equal(t, n, ee.Segments)
	}
}

func TestEstimate_InsufficientOrientedLines(t *testing.T) {
	segs := []geometry.Segment{
		geometry.Seg(0, 100, 1000, 100),
		geometry.Seg(0, 200, 1000, 200),
		geometry.Seg(0, 300, 1000, 300),
		geometry.Seg(500, 0, 500, 800),
	}

	_, err := Estimate(segs, court.Hard)
	require.ErrorIs(t, err, ErrInsufficientOrientedLines)

	var ee *EstimateError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, StageClassify, ee.Stage)
	assert.Equal(t, 3, ee.Horizontal)
	assert.Equal(t, 1, ee.Vertical)
	assert.Contains(t, err.Error(), "insufficient oriented lines")
}

func TestCorners_ParallelPair(t *testing.T) {
	// A horizontal line filed as a sideline never meets the baseline.
	segs := []geometry.Segment{
		geometry.Seg(0, 400, 1000, 400),
		geometry.Seg(0, 600, 1000, 600),
		geometry.Seg(50, 100, 50, 700),
		geometry.Seg(950, 100, 950, 700),
	}
	lines := SelectLines(segs[:2], []geometry.Segment{segs[2], segs[0]})
	_, ok := Corners(lines)
	assert.False(t, ok)
}

func TestEstimate_DegenerateQuadrilateral(t *testing.T) {
	segs := []geometry.Segment{
		geometry.Seg(0, 400, 1000, 400),
		geometry.Seg(0, 401, 1000, 401),
		geometry.Seg(50, 100, 50, 700),
		geometry.Seg(52, 100, 52, 700),
	}

	_, err := Estimate(segs, court.Hard)
	require.ErrorIs(t, err, ErrDegenerateQuadrilateral)

	var ee *EstimateError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, StageQuad, ee.Stage)
	assert.InDelta(t, 2, ee.Area, 1e-6)

	_, err = NewEstimator(WithMinQuadArea(1)).Estimate(segs, court.Hard)
	assert.NoError(t, err)
}

func TestEstimate_Logging(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	e := NewEstimator(WithLogger(log))

	_, err := e.Estimate(scenario(), "GRASS")
	require.NoError(t, err)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "homography estimated", hook.LastEntry().Message)
	assert.Equal(t, court.Grass, hook.LastEntry().Data["surface"])

	_, err = e.Estimate(nil, "GRASS")
	require.Error(t, err)
	assert.Equal(t, StageSegments, hook.LastEntry().Data["stage"])
}

func TestEstimate_CustomWorldPoints(t *testing.T) {
	world := []geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 0, Y: 5}, {X: 10, Y: 5}}
	res, err := NewEstimator(WithWorldPoints(world)).Estimate(scenario(), court.Hard)
	require.NoError(t, err)

	got, err := res.Matrix.Project(geometry.Pt(950, 400))
	require.NoError(t, err)
	assertPointNear(t, geometry.Pt(10, 5), got, 1e-6)
}

func TestResolveAxes_Peaks(t *testing.T) {
	axes := ResolveAxes(scenario())
	assert.False(t, axes.Fallback)
	assert.InDelta(t, 0, geometry.AngularDist(axes.Horizontal, 0), 1e-9)
	assert.InDelta(t, 90, axes.Vertical, 1e-9)
}

func TestResolveAxes_PeaksAcrossWrap(t *testing.T) {
	segs := []geometry.Segment{
		geometry.Seg(0, 0, 1000, 10),  // ~0.57 deg
		geometry.Seg(0, 10, 1000, 0),  // ~179.43 deg
		geometry.Seg(0, 100, 1000, 100),
		geometry.Seg(0, 0, 5, 600),
		geometry.Seg(0, 0, -5, 600),
	}

	axes := ResolveAxes(segs)
	assert.False(t, axes.Fallback)
	assert.Less(t, geometry.AngularDist(axes.Horizontal, 0), 1.0)
	assert.Less(t, geometry.AngularDist(axes.Vertical, 90), 1.0)
}

func TestResolveAxes_FallbackToLongest(t *testing.T) {
	// Every segment shares one direction, so the histogram has one peak.
	segs := []geometry.Segment{
		geometry.Seg(0, 0, 1000, 20),
		geometry.Seg(0, 100, 500, 110),
		geometry.Seg(0, 200, 300, 206),
	}

	axes := ResolveAxes(segs)
	assert.True(t, axes.Fallback)
	assert.InDelta(t, segs[0].Angle(), axes.Horizontal, 1e-9)
	assert.InDelta(t, geometry.NormalizeAngle(segs[0].Angle()+90), axes.Vertical, 1e-9)
}

func TestResolveAxes_ClosePeaksFallBack(t *testing.T) {
	segs := []geometry.Segment{
		geometry.Seg(0, 0, 1000, 0),
		geometry.Seg(0, 50, 1000, 50),
		geometry.Seg(0, 0, 400, 36), // ~5.1 deg
		geometry.Seg(0, 0, 400, 37),
	}

	axes := ResolveAxes(segs)
	assert.True(t, axes.Fallback)
	assert.InDelta(t, 0, axes.Horizontal, 1e-9)
	assert.InDelta(t, 90, axes.Vertical, 1e-9)
}

func TestResolveAxes_LongestVerticalStillResolvesHorizontal(t *testing.T) {
	segs := []geometry.Segment{geometry.Seg(100, 0, 100, 900)}

	axes := ResolveAxes(segs)
	assert.True(t, axes.Fallback)
	assert.InDelta(t, 0, axes.Horizontal, 1e-9)
	assert.InDelta(t, 90, axes.Vertical, 1e-9)
}

func TestResolveAxes_SwapsTiltedHorizontal(t *testing.T) {
	// Peaks at 30 and 70 degrees: 30 is closer to horizontal but leans
	// beyond the tolerance, so the assignment is swapped.
	segs := []geometry.Segment{
		{A: geometry.Pt(0, 0), B: geometry.Pt(100*math.Cos(30*math.Pi/180), 100*math.Sin(30*math.Pi/180))},
		{A: geometry.Pt(0, 50), B: geometry.Pt(100*math.Cos(30*math.Pi/180), 50+100*math.Sin(30*math.Pi/180))},
		{A: geometry.Pt(0, 0), B: geometry.Pt(100*math.Cos(70*math.Pi/180), 100*math.Sin(70*math.Pi/180))},
		{A: geometry.Pt(50, 0), B: geometry.Pt(50+100*math.Cos(70*math.Pi/180), 100*math.Sin(70*math.Pi/180))},
	}

	axes := ResolveAxes(segs)
	assert.False(t, axes.Fallback)
	assert.InDelta(t, 70, axes.Horizontal, 1e-6)
	assert.InDelta(t, 30, axes.Vertical, 1e-6)
}

func TestClassify(t *testing.T) {
	h, v := Classify(scenario(), Axes{Horizontal: 0, Vertical: 90})
	assert.Len(t, h, 2)
	assert.Len(t, v, 2)

	// 45 degrees is equidistant and goes horizontal.
	h, v = Classify([]geometry.Segment{geometry.Seg(0, 0, 10, 10)}, Axes{Horizontal: 0, Vertical: 90})
	assert.Len(t, h, 1)
	assert.Empty(t, v)
}

func TestSelectLines_DoesNotReorderInput(t *testing.T) {
	h := []geometry.Segment{geometry.Seg(0, 100, 10, 100), geometry.Seg(0, 300, 10, 300), geometry.Seg(0, 200, 10, 200)}
	v := []geometry.Segment{geometry.Seg(70, 0, 70, 10), geometry.Seg(10, 0, 10, 10), geometry.Seg(40, 0, 40, 10)}
	hCopy := append([]geometry.Segment(nil), h...)

	lines := SelectLines(h, v)
	assert.Equal(t, h[1], lines.Baseline)
	assert.Equal(t, h[2], lines.ServiceLine)
	assert.Equal(t, v[1], lines.LeftSideline)
	assert.Equal(t, v[0], lines.RightSideline)
	assert.Equal(t, hCopy, h)
	assert.Equal(t, [4]geometry.Segment{h[1], h[2], v[1], v[0]}, lines.Segments())
}

func TestFitHomography_ExactFourPoints(t *testing.T) {
	src := []geometry.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 0, Y: 100}, {X: 100, Y: 100}}
	dst := []geometry.Point{{X: 10, Y: 20}, {X: 30, Y: 20}, {X: 10, Y: 60}, {X: 30, Y: 60}}

	m, inliers, err := FitHomography(src, dst, DefaultFitOptions())
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, inliers)
	assert.InDelta(t, 1, m[8], 1e-12)
	for i := range src {
		got, err := m.Project(src[i])
		require.NoError(t, err)
		assertPointNear(t, dst[i], got, 1e-9)
	}
}

func TestFitHomography_RANSACRejectsOutlier(t *testing.T) {
	truth := Matrix{0.8, 0.1, 5, -0.05, 1.1, -3, 0.0004, 0.0002, 1}
	var src, dst []geometry.Point
	for _, p := range []geometry.Point{{X: 0, Y: 0}, {X: 200, Y: 0}, {X: 0, Y: 150}, {X: 200, Y: 150}, {X: 100, Y: 75}, {X: 50, Y: 120}, {X: 170, Y: 30}} {
		q, err := truth.Project(p)
		require.NoError(t, err)
		src = append(src, p)
		dst = append(dst, q)
	}
	dst[4] = geometry.Pt(dst[4].X+80, dst[4].Y-60)

	m, inliers, err := FitHomography(src, dst, FitOptions{Tolerance: 1, Iterations: 200, Seed: 7})
	require.NoError(t, err)
	assert.NotContains(t, inliers, 4)
	assert.Len(t, inliers, 6)
	for i, k := range []int{0, 1, 2, 3} {
		got, err := m.Project(src[k])
		require.NoError(t, err)
		assertPointNear(t, dst[k], got, 1e-6, "point %d", i)
	}
}

func TestFitHomography_Errors(t *testing.T) {
	pts := []geometry.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}}
	_, _, err := FitHomography(pts, pts, DefaultFitOptions())
	assert.ErrorIs(t, err, ErrSolveFailed)

	_, _, err = FitHomography(pts, pts[:2], DefaultFitOptions())
	assert.ErrorIs(t, err, ErrSolveFailed)

	same := []geometry.Point{{X: 1, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 1}}
	_, _, err = FitHomography(same, same, DefaultFitOptions())
	assert.ErrorIs(t, err, ErrSolveFailed)

	collinear := []geometry.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}}
	square := []geometry.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}}
	_, _, err = FitHomography(collinear, square, DefaultFitOptions())
	assert.ErrorIs(t, err, ErrSolveFailed)
}

func TestMatrix_ProjectAtInfinity(t *testing.T) {
	m := Matrix{1, 0, 0, 0, 1, 0, 1, 0, -10}

	_, err := m.Project(geometry.Pt(10, 5))
	require.ErrorIs(t, err, ErrPointAtInfinity)

	var pe *ProjectionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, geometry.Pt(10, 5), pe.Pixel)

	_, err = m.Project(geometry.Pt(math.NaN(), 0))
	assert.ErrorIs(t, err, ErrPointAtInfinity)

	_, err = MeasureWorldDistance(m, geometry.Pt(0, 0), geometry.Pt(10, 0))
	assert.ErrorIs(t, err, ErrPointAtInfinity)
}

func TestMatrix_ProjectIgnoresOverallScale(t *testing.T) {
	base := Matrix{2, 0.5, 10, -0.3, 1.5, 4, 0.001, 0.002, 1}
	for _, scale := range []float64{1e-20, 1e-9, 1, 1e9} {
		var m Matrix
		for i, v := range base {
			m[i] = v * scale
		}
		for _, p := range []geometry.Point{geometry.Pt(0, 0), geometry.Pt(640, 480), geometry.Pt(-50, 1200)} {
			want, err := base.Project(p)
			require.NoError(t, err)
			got, err := m.Project(p)
			require.NoError(t, err, "scale %g point %v", scale, p)
			assert.InDelta(t, want.X, got.X, 1e-6*math.Max(1, math.Abs(want.X)))
			assert.InDelta(t, want.Y, got.Y, 1e-6*math.Max(1, math.Abs(want.Y)))
		}
		assert.InDelta(t, 1, m.Normalized()[8], 1e-12, "scale %g", scale)
	}

	tiny := Matrix{1e-20, 0, 0, 0, 1e-20, 0, 1e-20, 0, -1e-19}
	_, err := tiny.Project(geometry.Pt(10, 5))
	assert.ErrorIs(t, err, ErrPointAtInfinity)
}

func TestMatrix_InverseAndMul(t *testing.T) {
	m := Matrix{2, 0.5, 10, -0.3, 1.5, 4, 0.001, 0.002, 1}
	inv, err := m.Inverse()
	require.NoError(t, err)

	id := m.Mul(inv).Normalized()
	for i, v := range Identity() {
		assert.InDelta(t, v, id[i], 1e-9, "entry %d", i)
	}

	_, err = Matrix{}.Inverse()
	assert.ErrorIs(t, err, ErrSolveFailed)
}

func TestMatrix_Rows(t *testing.T) {
	m := Matrix{1, 2, 3, 4, 5, 6, 7, 8, 9}
	assert.Equal(t, [3][3]float64{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}, m.Rows())
}
