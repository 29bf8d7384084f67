// Package annotation lays out case labels and bounding boxes on a raster canvas.
//
// Text metrics are not known ahead of time: each line is measured after it is drawn and the
// vertical cursor advances by the measured height.
package annotation

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Surface is the drawing target used by Renderer
type Surface interface {
	Rectangle(r image.Rectangle, c color.RGBA, thickness int)
	PutText(text string, org image.Point, scale float64, c color.RGBA, thickness int)
	TextSize(text string, scale float64, thickness int) image.Point
}

const fontFace = gocv.FontHersheySimplex

// MatSurface draws on a gocv.Mat owned by the caller
type MatSurface struct {
	mat *gocv.Mat
}

func NewMatSurface(mat *gocv.Mat) *MatSurface {
	return &MatSurface{mat: mat}
}

func (m *MatSurface) Rectangle(r image.Rectangle, c color.RGBA, thickness int) {
	gocv.Rectangle(m.mat, r, c, thickness)
}

func (m *MatSurface) PutText(text string, org image.Point, scale float64, c color.RGBA, thickness int) {
	gocv.PutTextWithParams(m.mat, text, org, fontFace, scale, c, thickness, gocv.LineAA, false)
}

func (m *MatSurface) TextSize(text string, scale float64, thickness int) image.Point {
	return gocv.GetTextSize(text, fontFace, scale, thickness)
}
