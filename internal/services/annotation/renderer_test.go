package annotation

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"lsd-worker-go/internal/models"
)

type rectCall struct {
	rect      image.Rectangle
	color     color.RGBA
	thickness int
}

type textCall struct {
	text      string
	org       image.Point
	scale     float64
	color     color.RGBA
	thickness int
}

// recordingSurface records draw calls. Every line measures lineHeight pixels tall.
type recordingSurface struct {
	lineHeight int
	rects      []rectCall
	texts      []textCall
}

func (s *recordingSurface) Rectangle(r image.Rectangle, c color.RGBA, thickness int) {
	s.rects = append(s.rects, rectCall{r, c, thickness})
}

func (s *recordingSurface) PutText(text string, org image.Point, scale float64, c color.RGBA, thickness int) {
	s.texts = append(s.texts, textCall{text, org, scale, c, thickness})
}

func (s *recordingSurface) TextSize(text string, scale float64, thickness int) image.Point {
	return image.Pt(len(text)*7, s.lineHeight)
}

func square(x, y, side int) models.Box {
	return models.Box{XMin: x, YMin: y, XMax: x + side, YMax: y + side}
}

func TestFontScale(t *testing.T) {
	assert.Equal(t, 0.8, FontScale(square(0, 0, 600)), "clamped to the upper bound")
	assert.Equal(t, 0.3, FontScale(square(0, 0, 30)), "clamped to the lower bound")
	assert.Equal(t, 0.5, FontScale(square(0, 0, 150)))
	assert.InDelta(t, 0.4, FontScale(models.Box{XMin: 0, YMin: 0, XMax: 400, YMax: 120}), 1e-9, "uses the shorter side")
}

func TestRender_BoxAndMultiLineLabel(t *testing.T) {
	s := &recordingSurface{lineHeight: 12}
	box := square(100, 50, 150)
	c := models.Case{Label: "Infected (High)\nY=0.90 R=0.87", Color: models.ColorRed}

	NewRenderer().Render(s, box, c)

	require.Len(t, s.rects, 1)
	assert.Equal(t, image.Rect(100, 50, 250, 200), s.rects[0].rect)
	assert.Equal(t, models.ColorRed, s.rects[0].color)
	assert.Equal(t, 2, s.rects[0].thickness)

	require.Len(t, s.texts, 2)
	assert.Equal(t, "Infected (High)", s.texts[0].text)
	assert.Equal(t, image.Pt(105, 70), s.texts[0].org)
	assert.Equal(t, "Y=0.90 R=0.87", s.texts[1].text)
	assert.Equal(t, image.Pt(105, 70+12+5), s.texts[1].org, "cursor advances by measured height + 5")
	for _, tc := range s.texts {
		assert.Equal(t, 0.5, tc.scale)
		assert.Equal(t, models.ColorRed, tc.color)
	}
}

func TestRender_LinesNeverOverlap(t *testing.T) {
	s := &recordingSurface{lineHeight: 9}
	NewRenderer().Render(s, square(0, 0, 40), models.Case{Label: "a\nb\nc\nd"})

	require.Len(t, s.texts, 4)
	for i := 1; i < len(s.texts); i++ {
		assert.GreaterOrEqual(t, s.texts[i].org.Y-s.texts[i-1].org.Y, 9+5)
	}
}

func TestRenderBanner(t *testing.T) {
	s := &recordingSurface{lineHeight: 15}
	c := models.Case{Label: "No LSD detection\nLow Risk\nR=0.12", Color: models.ColorGreen}

	NewRenderer().RenderBanner(s, c)

	assert.Empty(t, s.rects)
	require.Len(t, s.texts, 3)
	assert.Equal(t, image.Pt(20, 40), s.texts[0].org)
	assert.Equal(t, image.Pt(20, 65), s.texts[1].org)
	assert.Equal(t, image.Pt(20, 90), s.texts[2].org)
	for _, tc := range s.texts {
		assert.Equal(t, 0.7, tc.scale)
		assert.Equal(t, 2, tc.thickness)
		assert.Equal(t, models.ColorGreen, tc.color)
	}
}

func TestRenderFusion(t *testing.T) {
	s := &recordingSurface{lineHeight: 10}
	f := models.Fusion{Decisions: []models.Decision{
		{Detection: models.Detection{Box: square(0, 0, 50)}, Case: models.Case{Label: "x", Color: models.ColorRed}},
		{Detection: models.Detection{Box: square(20, 20, 50)}, Case: models.Case{Label: "y", Color: models.ColorGreen}},
	}}

	NewRenderer().RenderFusion(s, f)

	require.Len(t, s.rects, 2)
	assert.Equal(t, models.ColorRed, s.rects[0].color)
	assert.Equal(t, models.ColorGreen, s.rects[1].color)

	banner := models.Case{Label: "No LSD detection", Color: models.ColorRed}
	s = &recordingSurface{lineHeight: 10}
	NewRenderer().RenderFusion(s, models.Fusion{Banner: &banner})
	assert.Empty(t, s.rects)
	require.Len(t, s.texts, 1)
	assert.Equal(t, image.Pt(20, 40), s.texts[0].org)
}

func TestMatSurface_DrawsBoxColor(t *testing.T) {
	mat := gocv.NewMatWithSize(200, 200, gocv.MatTypeCV8UC3)
	defer mat.Close()

	box := square(20, 20, 100)
	NewRenderer().Render(NewMatSurface(&mat), box, models.Case{Label: "Infected (High)", Color: models.ColorRed})

	// left edge, below the label area; gocv stores BGR
	px := mat.GetVecbAt(100, 20)
	assert.Equal(t, uint8(0), px[0])
	assert.Equal(t, uint8(0), px[1])
	assert.Equal(t, uint8(255), px[2])

	size := NewMatSurface(&mat).TextSize("Infected (High)", 0.5, 1)
	assert.Greater(t, size.X, 0)
	assert.Greater(t, size.Y, 0)
}
