package annotation

import (
	"image"
	"strings"

	"lsd-worker-go/internal/models"
)

const (
	boxThickness  = 2
	textThickness = 1

	minFontScale     = 0.3
	maxFontScale     = 0.8
	fontScaleDivisor = 300.0

	textInsetX    = 5
	textInsetY    = 20
	lineSpacing   = 5
	bannerScale   = 0.7
	bannerX       = 20
	bannerY       = 40
	bannerSpacing = 10
	bannerStroke  = 2
)

// Renderer draws fused cases onto a Surface. Drawing is additive only.
type Renderer struct{}

func NewRenderer() *Renderer {
	return &Renderer{}
}

// FontScale returns the label scale for a box: min(w, h) / 300 clamped to [0.3, 0.8]
func FontScale(box models.Box) float64 {
	side := box.Width()
	if box.Height() < side {
		side = box.Height()
	}
	scale := float64(side) / fontScaleDivisor
	if scale < minFontScale {
		return minFontScale
	}
	if scale > maxFontScale {
		return maxFontScale
	}
	return scale
}

// Render draws the box outline in the case color and writes the label inside it, one line
// per line break, left-anchored 5 px inside the box and starting 20 px below its top edge.
func (r *Renderer) Render(s Surface, box models.Box, c models.Case) {
	s.Rectangle(box.Rect(), c.Color, boxThickness)

	scale := FontScale(box)
	x := box.XMin + textInsetX
	y := box.YMin + textInsetY
	for _, line := range splitLines(c.Label) {
		s.PutText(line, image.Pt(x, y), scale, c.Color, textThickness)
		y += s.TextSize(line, scale, textThickness).Y + lineSpacing
	}
}

// RenderBanner writes the no-detection label at the top-left corner of the canvas
func (r *Renderer) RenderBanner(s Surface, c models.Case) {
	y := bannerY
	for _, line := range splitLines(c.Label) {
		s.PutText(line, image.Pt(bannerX, y), bannerScale, c.Color, bannerStroke)
		y += s.TextSize(line, bannerScale, bannerStroke).Y + bannerSpacing
	}
}

// RenderFusion draws every decision, or the banner when there were no detections.
// Later boxes may overlap earlier ones.
func (r *Renderer) RenderFusion(s Surface, f models.Fusion) {
	if f.Banner != nil {
		r.RenderBanner(s, *f.Banner)
		return
	}
	for _, d := range f.Decisions {
		r.Render(s, d.Detection.Box, d.Case)
	}
}

func splitLines(label string) []string {
	return strings.Split(label, "\n")
}
