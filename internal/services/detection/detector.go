// Package detection wraps the object detector that finds lesion regions in an image.
//
// Every Detector enforces the caller's minimum confidence itself: a detection is admitted only
// when its confidence is >= minConfidence. Callers never filter again.
package detection

import (
	"context"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"lsd-worker-go/internal/models"
)

// Detector finds objects in a canvas. An empty result is valid. Implementations are safe for
// concurrent use.
type Detector interface {
	Detect(ctx context.Context, img gocv.Mat, minConfidence float64) ([]models.Detection, error)
	Name() string
}

// ValidateCanvas rejects empty or zero-sized images
func ValidateCanvas(img gocv.Mat) error {
	if img.Empty() || img.Rows() <= 0 || img.Cols() <= 0 {
		return fmt.Errorf("%w: empty canvas", models.ErrInvalidImage)
	}
	return nil
}

// clipBox clamps a box to the canvas bounds and reports whether anything is left of it
func clipBox(box models.Box, bounds image.Rectangle) (models.Box, bool) {
	r := box.Rect().Intersect(bounds)
	clipped := models.Box{XMin: r.Min.X, YMin: r.Min.Y, XMax: r.Max.X, YMax: r.Max.Y}
	return clipped, clipped.Valid()
}

// admit applies the confidence threshold and canvas clipping shared by all detectors
func admit(dets []models.Detection, bounds image.Rectangle, minConfidence float64) []models.Detection {
	out := make([]models.Detection, 0, len(dets))
	for _, d := range dets {
		if d.Confidence < minConfidence {
			continue
		}
		box, ok := clipBox(d.Box, bounds)
		if !ok {
			continue
		}
		d.Box = box
		out = append(out, d)
	}
	return out
}

// Unavailable stands in for a detector that failed to load
type Unavailable struct {
	Reason error
}

func (u Unavailable) Detect(ctx context.Context, img gocv.Mat, minConfidence float64) ([]models.Detection, error) {
	return nil, fmt.Errorf("%w: detector: %v", models.ErrModelUnavailable, u.Reason)
}

func (u Unavailable) Name() string { return "unavailable" }
