// Package raster implements the drawing canvas on top of gogpu/gg.
package raster

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomediumitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/gofont/gosmallcaps"

	"github.com/samirrijal/routecast/internal/core/domain"
	"github.com/samirrijal/routecast/internal/core/ports"
)

// PixelsPerScale converts a font scale into a face size in pixels.
const PixelsPerScale = 32.0

var ttfs = map[string][]byte{
	"regular":      goregular.TTF,
	"medium":       gomedium.TTF,
	"bold":         gobold.TTF,
	"italic":       goitalic.TTF,
	"mediumitalic": gomediumitalic.TTF,
	"bolditalic":   gobolditalic.TTF,
	"smallcaps":    gosmallcaps.TTF,
}

type faceSpec struct {
	ttf      string
	bold     string // used when thickness >= 2
	relative float64
}

var faceSpecs = map[domain.Font]faceSpec{
	domain.FontSimplex:       {"regular", "bold", 1},
	domain.FontPlain:         {"regular", "bold", 0.8},
	domain.FontDuplex:        {"medium", "bold", 1},
	domain.FontComplex:       {"smallcaps", "bold", 1},
	domain.FontTriplex:       {"bold", "bold", 1},
	domain.FontComplexSmall:  {"smallcaps", "bold", 0.8},
	domain.FontScriptSimplex: {"italic", "bolditalic", 1},
	domain.FontScriptComplex: {"mediumitalic", "bolditalic", 1},
	domain.FontItalic:        {"italic", "bolditalic", 1},
}

type faceKey struct {
	font domain.Font
	bold bool
	size float64
}

// Factory creates gg canvases. Font sources are parsed once and faces are
// cached per style, so one Factory can serve concurrent jobs.
type Factory struct {
	mu      sync.Mutex
	sources map[string]*text.FontSource
	faces   map[faceKey]text.Face
}

// NewFactory returns a canvas factory using the bundled Go fonts.
func NewFactory() *Factory {
	return &Factory{
		sources: make(map[string]*text.FontSource),
		faces:   make(map[faceKey]text.Face),
	}
}

// NewCanvas implements ports.CanvasFactory.
func (f *Factory) NewCanvas(bg image.Image) ports.Canvas {
	return &Canvas{dc: gg.NewContextForImage(bg), fonts: f}
}

func (f *Factory) face(st ports.TextStyle) (text.Face, error) {
	spec, ok := faceSpecs[st.Font]
	if !ok {
		spec = faceSpecs[domain.FontSimplex]
	}
	bold := st.Thickness >= 2
	size := math.Round(st.Scale*PixelsPerScale*spec.relative*4) / 4
	key := faceKey{font: st.Font, bold: bold, size: size}

	f.mu.Lock()
	defer f.mu.Unlock()
	if face, ok := f.faces[key]; ok {
		return face, nil
	}
	name := spec.ttf
	if bold {
		name = spec.bold
	}
	src, ok := f.sources[name]
	if !ok {
		var err error
		src, err = text.NewFontSource(ttfs[name])
		if err != nil {
			return nil, fmt.Errorf("load font %s: %w", name, err)
		}
		f.sources[name] = src
	}
	face := src.Face(size)
	f.faces[key] = face
	return face, nil
}

// Canvas draws onto an RGBA pixmap.
type Canvas struct {
	dc    *gg.Context
	fonts *Factory
	err   error
}

func (c *Canvas) fail(op string, err error) {
	if err != nil && c.err == nil {
		c.err = fmt.Errorf("%s: %w", op, err)
	}
}

// Err returns the first drawing failure, nil if none.
func (c *Canvas) Err() error { return c.err }

func rgba(c domain.RGB) color.Color {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}

func (c *Canvas) Size() (int, int) { return c.dc.Width(), c.dc.Height() }

func (c *Canvas) Line(a, b domain.PixelPoint, width float64, col domain.RGB) {
	c.dc.SetColor(rgba(col))
	c.dc.SetStroke(gg.DefaultStroke().WithWidth(width).WithCap(gg.LineCapRound))
	c.dc.DrawLine(a.X, a.Y, b.X, b.Y)
	c.fail("stroke line", c.dc.Stroke())
}

func (c *Canvas) Circle(center domain.PixelPoint, radius float64, col domain.RGB) {
	c.dc.SetColor(rgba(col))
	c.dc.DrawCircle(center.X, center.Y, radius)
	c.fail("fill circle", c.dc.Fill())
}

func (c *Canvas) FillRect(x, y, w, h float64, col domain.RGB) {
	c.dc.SetColor(rgba(col))
	c.dc.DrawRectangle(x, y, w, h)
	c.fail("fill rect", c.dc.Fill())
}

func (c *Canvas) Text(s string, x, y float64, st ports.TextStyle) {
	face, err := c.fonts.face(st)
	if err != nil {
		c.fail("text", err)
		return
	}
	c.dc.SetFont(face)
	c.dc.SetColor(rgba(st.Color))
	c.dc.DrawString(s, x, y)
}

func (c *Canvas) MeasureText(s string, st ports.TextStyle) (float64, float64) {
	face, err := c.fonts.face(st)
	if err != nil {
		c.fail("measure text", err)
		return 0, 0
	}
	return text.Measure(s, face)
}

// Clone copies the current pixels into a new canvas.
func (c *Canvas) Clone() ports.Canvas {
	img := c.Snapshot()
	return &Canvas{dc: gg.NewContextForImage(img), fonts: c.fonts, err: c.err}
}

// Snapshot returns a copy of the current pixels.
func (c *Canvas) Snapshot() image.Image {
	c.fail("flush", c.dc.FlushGPU())
	return c.dc.Image()
}
