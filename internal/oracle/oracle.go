// Package oracle defines the face detection and embedding capability the
// recognition pipeline depends on, and an HTTP client for an external
// embedding server that provides it.
package oracle

import (
	"context"
	"image"
)

// Face is one detected face: its bounding box in the coordinates of the image
// that was analysed, and its fixed-length descriptor.
type Face struct {
	Box       image.Rectangle
	Embedding []float64
	Score     float64
}

// Detector maps an image to zero or more faces. Zero faces is not an error.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Face, error)
}

// DetectorFunc adapts a plain function to Detector.
type DetectorFunc func(ctx context.Context, img image.Image) ([]Face, error)

func (f DetectorFunc) Detect(ctx context.Context, img image.Image) ([]Face, error) {
	return f(ctx, img)
}
