// Package imaging resizes frames and draws recognition overlays.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DetectionScale is the factor frames are shrunk by before face detection.
const DetectionScale = 0.25

var (
	Green = color.RGBA{0, 200, 0, 255}
	Red   = color.RGBA{220, 0, 0, 255}
	White = color.RGBA{255, 255, 255, 255}
)

// Downscale returns img resized by factor. Factors >= 1 return img as is.
func Downscale(img image.Image, factor float64) image.Image {
	if factor <= 0 || factor >= 1 {
		return img
	}
	bounds := img.Bounds()
	w := int(float64(bounds.Dx()) * factor)
	h := int(float64(bounds.Dy()) * factor)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// ScaleRect maps a rectangle found on a downscaled frame back onto the
// original by multiplying every coordinate by 1/factor.
func ScaleRect(r image.Rectangle, factor float64) image.Rectangle {
	if factor <= 0 || factor >= 1 {
		return r
	}
	inv := 1 / factor
	return image.Rect(
		int(float64(r.Min.X)*inv),
		int(float64(r.Min.Y)*inv),
		int(float64(r.Max.X)*inv),
		int(float64(r.Max.Y)*inv),
	)
}

// Box is one face overlay.
type Box struct {
	Rect    image.Rectangle
	Label   string
	Granted bool
}

// Banner is the status line drawn along the top of the frame.
type Banner struct {
	Text    string
	Granted bool
}

const (
	borderWidth  = 2
	labelPadding = 4
	bannerHeight = 28
)

// Annotate copies img and draws each box with its label below it, then the
// banner. Granted boxes are green; everything else is red.
func Annotate(img image.Image, boxes []Box, banner *Banner) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(bounds)
	draw.Draw(dst, bounds, img, bounds.Min, draw.Src)

	for _, b := range boxes {
		c := Red
		if b.Granted {
			c = Green
		}
		drawRect(dst, b.Rect, borderWidth, c)
		if b.Label != "" {
			drawLabel(dst, b.Rect, b.Label, c)
		}
	}

	if banner != nil {
		c := Red
		if banner.Granted {
			c = Green
		}
		bar := image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Min.Y+bannerHeight).Intersect(bounds)
		draw.Draw(dst, bar, &image.Uniform{C: color.RGBA{0, 0, 0, 160}}, image.Point{}, draw.Over)
		drawText(dst, image.Pt(bar.Min.X+8, bar.Min.Y+bannerHeight/2+basicfont.Face7x13.Ascent/2), banner.Text, c)
	}

	return dst
}

// EncodeJPEG encodes img at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode decodes JPEG, PNG or BMP data.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func drawRect(dst *image.RGBA, r image.Rectangle, width int, c color.RGBA) {
	for w := 0; w < width; w++ {
		drawHLine(dst, r.Min.X, r.Max.X, r.Min.Y+w, c)
		drawHLine(dst, r.Min.X, r.Max.X, r.Max.Y-w, c)
		drawVLine(dst, r.Min.Y, r.Max.Y, r.Min.X+w, c)
		drawVLine(dst, r.Min.Y, r.Max.Y, r.Max.X-w, c)
	}
}

func drawHLine(dst *image.RGBA, x1, x2, y int, c color.RGBA) {
	b := dst.Bounds()
	if y < b.Min.Y || y >= b.Max.Y {
		return
	}
	for x := max(x1, b.Min.X); x <= x2 && x < b.Max.X; x++ {
		dst.SetRGBA(x, y, c)
	}
}

func drawVLine(dst *image.RGBA, y1, y2, x int, c color.RGBA) {
	b := dst.Bounds()
	if x < b.Min.X || x >= b.Max.X {
		return
	}
	for y := max(y1, b.Min.Y); y <= y2 && y < b.Max.Y; y++ {
		dst.SetRGBA(x, y, c)
	}
}

// drawLabel fills a strip under the box and writes the label on it.
func drawLabel(dst *image.RGBA, r image.Rectangle, label string, c color.RGBA) {
	face := basicfont.Face7x13
	textW := font.MeasureString(face, label).Ceil()
	strip := image.Rect(r.Min.X, r.Max.Y, max(r.Max.X, r.Min.X+textW+2*labelPadding), r.Max.Y+face.Height+2*labelPadding)
	draw.Draw(dst, strip.Intersect(dst.Bounds()), &image.Uniform{C: c}, image.Point{}, draw.Src)
	drawText(dst, image.Pt(strip.Min.X+labelPadding, strip.Min.Y+labelPadding+face.Ascent), label, White)
}

func drawText(dst *image.RGBA, dot image.Point, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(dot.X, dot.Y),
	}
	d.DrawString(text)
}
