package raster

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/routecast/internal/core/domain"
	"github.com/samirrijal/routecast/internal/core/ports"
)

func white(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

func rgbAt(img image.Image, x, y int) domain.RGB {
	r, g, b, _ := img.At(x, y).RGBA()
	return domain.RGB{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)}
}

func TestCanvas_Size(t *testing.T) {
	cv := NewFactory().NewCanvas(white(64, 32))
	w, h := cv.Size()
	assert.Equal(t, 64, w)
	assert.Equal(t, 32, h)
}

func TestCanvas_FillRect(t *testing.T) {
	cv := NewFactory().NewCanvas(white(40, 40))
	cv.FillRect(10, 10, 20, 20, domain.ColorBlack.RGB())
	img := cv.Snapshot()
	assert.Equal(t, domain.ColorBlack.RGB(), rgbAt(img, 20, 20))
	assert.Equal(t, domain.ColorWhite.RGB(), rgbAt(img, 2, 2))
}

func TestCanvas_LineAndCircle(t *testing.T) {
	cv := NewFactory().NewCanvas(white(100, 100))
	cv.Line(domain.PixelPoint{X: 10, Y: 50}, domain.PixelPoint{X: 90, Y: 50}, 6, domain.ColorRed.RGB())
	cv.Circle(domain.PixelPoint{X: 50, Y: 20}, 8, domain.ColorGreen.RGB())
	img := cv.Snapshot()

	line := rgbAt(img, 50, 50)
	assert.Greater(t, line.R, uint8(200))
	assert.Less(t, line.G, uint8(60))

	dot := rgbAt(img, 50, 20)
	assert.Greater(t, dot.G, uint8(200))
	assert.Less(t, dot.R, uint8(60))

	assert.Equal(t, domain.ColorWhite.RGB(), rgbAt(img, 50, 90))
}

func TestCanvas_CloneIsIndependent(t *testing.T) {
	cv := NewFactory().NewCanvas(white(30, 30))
	clone := cv.Clone()
	clone.FillRect(0, 0, 30, 30, domain.ColorBlue.RGB())

	assert.Equal(t, domain.ColorWhite.RGB(), rgbAt(cv.Snapshot(), 15, 15))
	assert.Equal(t, domain.ColorBlue.RGB(), rgbAt(clone.Snapshot(), 15, 15))
}

func TestCanvas_BackgroundUntouched(t *testing.T) {
	bg := white(20, 20)
	cv := NewFactory().NewCanvas(bg)
	cv.FillRect(0, 0, 20, 20, domain.ColorBlack.RGB())
	assert.Equal(t, domain.ColorWhite.RGB(), rgbAt(bg, 10, 10))
}

func TestCanvas_MeasureTextScales(t *testing.T) {
	f := NewFactory()
	cv := f.NewCanvas(white(10, 10))
	small := ports.TextStyle{Font: domain.FontSimplex, Scale: 0.5, Thickness: 1}
	large := ports.TextStyle{Font: domain.FontSimplex, Scale: 1.0, Thickness: 1}

	ws, hs := cv.MeasureText("Pace: 5:00 min/km", small)
	wl, hl := cv.MeasureText("Pace: 5:00 min/km", large)
	require.Greater(t, ws, 0.0)
	require.Greater(t, hs, 0.0)
	assert.Greater(t, wl, ws)
	assert.Greater(t, hl, hs)
}

func TestFactory_EveryFontLoads(t *testing.T) {
	f := NewFactory()
	for _, font := range domain.Fonts() {
		for _, thick := range []int{1, 2} {
			face, err := f.face(ports.TextStyle{Font: font, Scale: 0.5, Thickness: thick})
			require.NoError(t, err, font)
			assert.NotNil(t, face)
		}
	}
}

func TestCanvas_ErrNilAfterDrawing(t *testing.T) {
	cv := NewFactory().NewCanvas(white(40, 40))
	cv.Line(domain.PixelPoint{X: 1, Y: 1}, domain.PixelPoint{X: 30, Y: 30}, 3, domain.ColorRed.RGB())
	cv.Text("5:30", 2, 20, ports.TextStyle{Font: domain.FontSimplex, Scale: 0.5, Thickness: 1})
	_ = cv.Snapshot()
	assert.NoError(t, cv.Err())
}

func TestCanvas_FontFailureIsKept(t *testing.T) {
	saved := ttfs["smallcaps"]
	ttfs["smallcaps"] = nil
	t.Cleanup(func() { ttfs["smallcaps"] = saved })

	cv := NewFactory().NewCanvas(white(40, 40))
	cv.Text("KM", 2, 20, ports.TextStyle{Font: domain.FontComplex, Scale: 0.5, Thickness: 1})
	require.Error(t, cv.Err())
	assert.Contains(t, cv.Err().Error(), "load font smallcaps")

	// Later successful drawing does not clear it, and clones inherit it.
	cv.FillRect(0, 0, 4, 4, domain.ColorBlack.RGB())
	assert.Error(t, cv.Clone().Err())
}
