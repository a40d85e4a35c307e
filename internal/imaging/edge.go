package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/anthonynsimon/bild/effect"
)

// EdgeMap is a binary edge image in local coordinates: (0,0) is the
// top-left pixel of the source bounds regardless of the source's Min point.
type EdgeMap struct {
	Width  int
	Height int
	Pix    []bool
}

// At reports whether (x, y) is an edge pixel. Out-of-range coordinates are
// never edges.
func (m *EdgeMap) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pix[y*m.Width+x]
}

// Count returns the number of edge pixels.
func (m *EdgeMap) Count() int {
	n := 0
	for _, e := range m.Pix {
		if e {
			n++
		}
	}
	return n
}

// Gray renders the map as a grayscale image with edges in white (255).
func (m *EdgeMap) Gray() *image.Gray {
	out := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, e := range m.Pix {
		if e {
			out.Pix[(i/m.Width)*out.Stride+i%m.Width] = 255
		}
	}
	return out
}

// Intensity converts img to a row-major 0-255 intensity field.
//
// The grayscale conversion is delegated to bild, which returns an RGBA
// image carrying the gray level in all three colour channels; R is read
// back. The field is float64 so the blur and gradient stages keep
// sub-level precision.
func Intensity(img image.Image) (field []float64, width, height int) {
	bounds := img.Bounds()
	width, height = bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, width, height
	}

	gray := effect.Grayscale(img)
	gb := gray.Bounds()
	field = make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			field[y*width+x] = float64(gray.RGBAAt(gb.Min.X+x, gb.Min.Y+y).R)
		}
	}
	return field, width, height
}

// Canny runs the full edge pipeline on img: grayscale, 5x5 Gaussian blur,
// Sobel gradients, non-maximum suppression and hysteresis.
//
// Thresholds apply to the L1 gradient magnitude (|gx| + |gy|) of the 0-255 intensity
// image. Pixels at or above high are strong edges; pixels at or above low
// survive only when 8-connected (directly or through other weak pixels) to a
// strong edge.
//
// An empty image yields an empty map.
func Canny(img image.Image, low, high float64) *EdgeMap {
	field, width, height := Intensity(img)
	m := &EdgeMap{Width: width, Height: height, Pix: make([]bool, width*height)}
	if width < 3 || height < 3 {
		return m
	}

	blurred := gaussianBlur(field, width, height)
	magnitude, direction := sobel(blurred, width, height)
	suppressed := nonMaxSuppress(magnitude, direction, width, height)
	hysteresis(m, suppressed, low, high)
	return m
}

// sobel returns per-pixel L1 gradient magnitude and direction (radians).
func sobel(src []float64, width, height int) (magnitude, direction []float64) {
	sobelX := [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY := [3][3]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}

	magnitude = make([]float64, width*height)
	direction = make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var gx, gy float64
			for ky := -1; ky <= 1; ky++ {
				py := clamp(y+ky, 0, height-1)
				for kx := -1; kx <= 1; kx++ {
					px := clamp(x+kx, 0, width-1)
					v := src[py*width+px]
					gx += v * sobelX[ky+1][kx+1]
					gy += v * sobelY[ky+1][kx+1]
				}
			}
			magnitude[y*width+x] = math.Abs(gx) + math.Abs(gy)
			direction[y*width+x] = math.Atan2(gy, gx)
		}
	}
	return magnitude, direction
}

// nonMaxSuppress thins edges to one pixel by keeping local maxima along the
// gradient direction. The one-pixel border is always suppressed.
func nonMaxSuppress(magnitude, direction []float64, width, height int) []float64 {
	out := make([]float64, width*height)
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			i := y*width + x
			mag := magnitude[i]
			if mag == 0 {
				continue
			}

			angle := direction[i]
			var n1, n2 float64
			switch {
			case (angle >= -math.Pi/8 && angle < math.Pi/8) || angle >= 7*math.Pi/8 || angle < -7*math.Pi/8:
				n1, n2 = magnitude[i-1], magnitude[i+1]
			case (angle >= math.Pi/8 && angle < 3*math.Pi/8) || (angle >= -7*math.Pi/8 && angle < -5*math.Pi/8):
				n1, n2 = magnitude[i-width-1], magnitude[i+width+1]
			case (angle >= 3*math.Pi/8 && angle < 5*math.Pi/8) || (angle >= -5*math.Pi/8 && angle < -3*math.Pi/8):
				n1, n2 = magnitude[i-width], magnitude[i+width]
			default:
				n1, n2 = magnitude[i-width+1], magnitude[i+width-1]
			}

			if mag >= n1 && mag >= n2 {
				out[i] = mag
			}
		}
	}
	return out
}

// hysteresis marks strong pixels and grows them through connected weak ones.
func hysteresis(m *EdgeMap, suppressed []float64, low, high float64) {
	width, height := m.Width, m.Height
	stack := make([]int, 0, 1024)
	for i, v := range suppressed {
		if v >= high && v > 0 {
			m.Pix[i] = true
			stack = append(stack, i)
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%width, i/width
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= width || ny >= height {
					continue
				}
				j := ny*width + nx
				if m.Pix[j] || suppressed[j] < low || suppressed[j] == 0 {
					continue
				}
				m.Pix[j] = true
				stack = append(stack, j)
			}
		}
	}
}

// EdgeDetectResult contains an edge-detected image encoded as base64 PNG.
//
// The result is a grayscale image where white pixels (255) represent detected
// edges and black pixels (0) represent non-edges.
type EdgeDetectResult struct {
	// Width of the output image in pixels (same as input).
	Width int `json:"width"`

	// Height of the output image in pixels (same as input).
	Height int `json:"height"`

	// EdgePixels is the number of pixels marked as edges.
	EdgePixels int `json:"edge_pixels"`

	// ImageBase64 is the edge image encoded as base64 PNG.
	ImageBase64 string `json:"image_base64"`

	// MimeType is always "image/png" for edge detection results.
	MimeType string `json:"mime_type"`
}

// EdgeDetect runs Canny on img and encodes the edge map as a PNG.
//
// This is the diagnostic view of the first stage of court line extraction:
// the thresholds are usually taken from a surface profile so the caller sees
// exactly what the Hough stage will vote on.
func EdgeDetect(img image.Image, low, high float64) (*EdgeDetectResult, error) {
	m := Canny(img, low, high)

	var buf bytes.Buffer
	if err := png.Encode(&buf, m.Gray()); err != nil {
		return nil, fmt.Errorf("failed to encode edge image: %w", err)
	}

	return &EdgeDetectResult{
		Width:       m.Width,
		Height:      m.Height,
		EdgePixels:  m.Count(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// gaussianBlur applies a 5x5 Gaussian blur to reduce noise before edge detection.
//
// Uses a standard 5x5 Gaussian kernel with sigma ≈ 1.0:
//
//	1  4  7  4  1
//	4 16 26 16  4
//	7 26 41 26  7
//	4 16 26 16  4
//	1  4  7  4  1
//
// Total kernel sum = 273, used for normalization.
// Border pixels use clamped (replicated) edge values.
func gaussianBlur(src []float64, width, height int) []float64 {
	kernel := [5][5]float64{
		{1, 4, 7, 4, 1},
		{4, 16, 26, 16, 4},
		{7, 26, 41, 26, 7},
		{4, 16, 26, 16, 4},
		{1, 4, 7, 4, 1},
	}
	const kernelSum = 273.0

	out := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var sum float64
			for ky := -2; ky <= 2; ky++ {
				py := clamp(y+ky, 0, height-1)
				for kx := -2; kx <= 2; kx++ {
					px := clamp(x+kx, 0, width-1)
					sum += src[py*width+px] * kernel[ky+2][kx+2]
				}
			}
			out[y*width+x] = sum / kernelSum
		}
	}
	return out
}

// clamp constrains an integer value to the range [lo, hi].
func clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
