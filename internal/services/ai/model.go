// Package ai holds the detection model abstraction shared by the local
// OpenCV backend and the remote inference backend.
package ai

import (
	"context"
	"errors"
	"image"
)

// ErrNoModel is returned when no model variant could be loaded.
var ErrNoModel = errors.New("no detection model loaded")

// RawDetection is one object as reported by a model, before any
// confidence filtering.
type RawDetection struct {
	ClassID    int
	Label      string
	Confidence float64
	Box        [4]float64 // x1, y1, x2, y2 in pixels of the input image
}

// Model runs object detection on a decoded image.
type Model interface {
	// Predict returns the detections for img in model order.
	Predict(ctx context.Context, img image.Image) ([]RawDetection, error)
	// Name identifies the loaded variant in logs and metrics.
	Name() string
	Close() error
}
