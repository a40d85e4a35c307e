package overlay

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/courtcal/internal/court"
	"github.com/ironsheep/courtcal/internal/geometry"
	"github.com/ironsheep/courtcal/internal/homography"
)

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func scenarioCalibration(t *testing.T) *homography.Result {
	t.Helper()
	res, err := homography.Estimate([]geometry.Segment{
		geometry.Seg(0, 600, 1000, 600),
		geometry.Seg(0, 400, 1000, 400),
		geometry.Seg(50, 300, 50, 700),
		geometry.Seg(950, 300, 950, 700),
	}, court.Hard)
	require.NoError(t, err)
	return res
}

func TestDraw_Segments(t *testing.T) {
	bg := color.RGBA{0, 0, 0, 255}
	img := solidImage(100, 100, bg)

	out, keypoints, err := Draw(img, Options{
		Segments:     []geometry.Segment{geometry.Seg(10, 50, 90, 50)},
		SegmentColor: "#00FF00",
		Thickness:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, keypoints)

	r, g, b, _ := out.At(50, 50).RGBA()
	assert.Equal(t, uint32(0), r)
	assert.Equal(t, uint32(0xffff), g)
	assert.Equal(t, uint32(0), b)

	r, g, b, _ = out.At(50, 20).RGBA()
	assert.Equal(t, [3]uint32{0, 0, 0}, [3]uint32{r, g, b})

	// The source frame is never modified.
	assert.Equal(t, bg, img.RGBAAt(50, 50))
}

func TestDraw_Calibration(t *testing.T) {
	img := solidImage(1000, 800, color.RGBA{40, 80, 140, 255})

	out, keypoints, err := Draw(img, Options{Calibration: scenarioCalibration(t), Thickness: 3, Labels: true})
	require.NoError(t, err)
	assert.Positive(t, keypoints)
	assert.LessOrEqual(t, keypoints, len(court.Keypoints()))

	// The left sideline is painted in its role colour.
	want := color.NRGBAModel.Convert(roleColor(2)).(color.NRGBA)
	got := out.NRGBAAt(50, 500)
	assert.Equal(t, want.R, got.R)
	assert.Equal(t, want.G, got.G)
	assert.Equal(t, want.B, got.B)
}

func TestDraw_SubImageOffset(t *testing.T) {
	frame := solidImage(200, 200, color.Black)
	sub := frame.SubImage(image.Rect(100, 100, 200, 200))

	out, _, err := Draw(sub, Options{Segments: []geometry.Segment{geometry.Seg(110, 150, 190, 150)}, SegmentColor: "#FFFFFF"})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 100), out.Bounds())
	assert.Equal(t, uint8(255), out.NRGBAAt(50, 50).R)
}

func TestDraw_BadColor(t *testing.T) {
	_, _, err := Draw(solidImage(10, 10, color.Black), Options{SegmentColor: "#12"})
	assert.ErrorContains(t, err, "segment color")
}

func TestRender(t *testing.T) {
	img := solidImage(1000, 800, color.RGBA{40, 80, 140, 255})
	segs := []geometry.Segment{geometry.Seg(0, 600, 1000, 600)}

	res, err := Render(img, Options{Segments: segs, Calibration: scenarioCalibration(t), Labels: true})
	require.NoError(t, err)
	assert.Equal(t, 1000, res.Width)
	assert.Equal(t, 800, res.Height)
	assert.Equal(t, "image/png", res.MimeType)
	assert.Equal(t, 1, res.Segments)

	data, err := base64.StdEncoding.DecodeString(res.ImageBase64)
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1000, 800), decoded.Bounds())
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.NRGBA
		wantErr bool
	}{
		{"#FF0000", color.NRGBA{255, 0, 0, 255}, false},
		{"00ff00", color.NRGBA{0, 255, 0, 255}, false},
		{"#0000FF80", color.NRGBA{0, 0, 255, 128}, false},
		{"", color.NRGBA{}, true},
		{"#GG0000", color.NRGBA{}, true},
		{"#FF00", color.NRGBA{}, true},
		{"#FF0000ZZ", color.NRGBA{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := parseHexColor(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, color.NRGBAModel.Convert(c))
		})
	}
}
