// Package overlay draws detected court lines and calibration results onto a
// copy of a frame for visual inspection.
package overlay

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ironsheep/courtcal/internal/court"
	"github.com/ironsheep/courtcal/internal/geometry"
	"github.com/ironsheep/courtcal/internal/homography"
)

// Options selects what to draw.
type Options struct {
	// Segments are drawn thin in SegmentColor.
	Segments     []geometry.Segment
	SegmentColor string // "#RRGGBB" or "#RRGGBBAA"

	// Calibration, when set, adds the four role lines, their labelled
	// intersections and the reprojected court keypoints.
	Calibration *homography.Result

	// Thickness of role lines in pixels. Segments use half of it.
	Thickness int
	Labels    bool
}

// DefaultOptions draws labelled lines three pixels wide in red.
func DefaultOptions() Options {
	return Options{SegmentColor: "#FF3030", Thickness: 3, Labels: true}
}

// Result contains the encoded overlay.
type Result struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
	Segments    int    `json:"segments"`
	Keypoints   int    `json:"keypoints"`
}

var roleNames = [4]string{"baseline", "service", "left", "right"}

// roleColor spaces the four role hues 90 degrees apart.
func roleColor(i int) color.Color {
	return colorful.Hsv(float64(i)*90+30, 0.85, 1)
}

// Draw returns a copy of img with the overlay applied. Coordinates are
// absolute, as produced by the extractor.
func Draw(img image.Image, opts Options) (*image.NRGBA, int, error) {
	if opts.SegmentColor == "" {
		opts.SegmentColor = DefaultOptions().SegmentColor
	}
	segColor, err := parseHexColor(opts.SegmentColor)
	if err != nil {
		return nil, 0, fmt.Errorf("segment color: %w", err)
	}
	if opts.Thickness <= 0 {
		opts.Thickness = DefaultOptions().Thickness
	}

	out := imaging.Clone(img)
	// imaging.Clone rebases to the origin.
	offset := geometry.Pt(float64(img.Bounds().Min.X), float64(img.Bounds().Min.Y))
	shift := func(p geometry.Point) geometry.Point { return geometry.Pt(p.X-offset.X, p.Y-offset.Y) }

	thin := max(1, opts.Thickness/2)
	for _, s := range opts.Segments {
		drawSegment(out, geometry.Segment{A: shift(s.A), B: shift(s.B)}, thin, segColor)
	}

	keypoints := 0
	if cal := opts.Calibration; cal != nil {
		for i, s := range cal.Lines.Segments() {
			s = geometry.Segment{A: shift(s.A), B: shift(s.B)}
			drawSegment(out, s, opts.Thickness, roleColor(i))
			if opts.Labels {
				c := s.Centroid()
				drawLabel(out, int(c.X)+4, int(c.Y)+4, roleNames[i])
			}
		}
		for i, p := range cal.PixelPoints {
			p = shift(p)
			drawCross(out, p, opts.Thickness*3, color.White)
			if opts.Labels {
				drawLabel(out, int(p.X)+6, int(p.Y)-16, court.Keypoints()[i].Name)
			}
		}
		keypoints = drawKeypoints(out, cal.Matrix, shift)
	}
	return out, keypoints, nil
}

// Render draws the overlay and encodes it as base64 PNG.
func Render(img image.Image, opts Options) (*Result, error) {
	out, keypoints, err := Draw(img, opts)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	return &Result{
		Width:       out.Bounds().Dx(),
		Height:      out.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
		Segments:    len(opts.Segments),
		Keypoints:   keypoints,
	}, nil
}

// drawKeypoints marks every court keypoint that maps back inside the frame
// and returns how many were drawn.
func drawKeypoints(img *image.NRGBA, m homography.Matrix, shift func(geometry.Point) geometry.Point) int {
	inv, err := m.Inverse()
	if err != nil {
		return 0
	}
	yellow := colorful.Hsv(55, 0.9, 1)
	bounds := img.Bounds()
	n := 0
	for _, k := range court.Keypoints() {
		p, err := inv.Project(k.World)
		if err != nil {
			continue
		}
		p = shift(p)
		if !image.Pt(int(p.X), int(p.Y)).In(bounds) {
			continue
		}
		drawCross(img, p, 5, yellow)
		n++
	}
	return n
}

// drawSegment stamps a square brush of the given width along s.
func drawSegment(img *image.NRGBA, s geometry.Segment, width int, c color.Color) {
	steps := int(math.Ceil(math.Max(math.Abs(s.B.X-s.A.X), math.Abs(s.B.Y-s.A.Y))))
	half := width / 2
	for i := 0; i <= steps; i++ {
		t := float64(i) / math.Max(float64(steps), 1)
		x := int(math.Round(s.A.X + t*(s.B.X-s.A.X)))
		y := int(math.Round(s.A.Y + t*(s.B.Y-s.A.Y)))
		for dy := -half; dy <= width-1-half; dy++ {
			for dx := -half; dx <= width-1-half; dx++ {
				setPixel(img, x+dx, y+dy, c)
			}
		}
	}
}

func drawCross(img *image.NRGBA, p geometry.Point, size int, c color.Color) {
	drawSegment(img, geometry.Seg(p.X-float64(size), p.Y, p.X+float64(size), p.Y), 1, c)
	drawSegment(img, geometry.Seg(p.X, p.Y-float64(size), p.X, p.Y+float64(size)), 1, c)
}

func setPixel(img *image.NRGBA, x, y int, c color.Color) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.Set(x, y, c)
	}
}

// drawLabel writes text with its top-left corner at (x, y) on a dark box.
func drawLabel(img *image.NRGBA, x, y int, text string) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	box := image.Rect(x-1, y-1, x+width+1, y+face.Height+1).Intersect(img.Bounds())
	draw.Draw(img, box, image.NewUniform(color.NRGBA{0, 0, 0, 180}), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(x, y+face.Ascent),
	}
	d.DrawString(text)
}

// parseHexColor parses "#RRGGBB" or "#RRGGBBAA".
func parseHexColor(hex string) (color.Color, error) {
	if hex == "" {
		return nil, fmt.Errorf("empty color string")
	}
	if hex[0] != '#' {
		hex = "#" + hex
	}

	switch len(hex) {
	case 7:
		c, err := colorful.Hex(hex)
		if err != nil {
			return nil, err
		}
		return c, nil
	case 9:
		c, err := colorful.Hex(hex[:7])
		if err != nil {
			return nil, err
		}
		a, err := strconv.ParseUint(hex[7:], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid alpha %q: %w", hex[7:], err)
		}
		r, g, b := c.RGB255()
		return color.NRGBA{R: r, G: g, B: b, A: uint8(a)}, nil
	default:
		return nil, fmt.Errorf("invalid hex color length")
	}
}
