package sink

import (
	"errors"
	"image"
	"image/color"
	"image/gif"
	"io"
)

// MaxGIFFPS is the highest frame rate a GIF sink keeps. Faster input is
// decimated; the last frame is always kept. With the default fps divisor
// this bounds a video to about MaxGIFFPS*15 frames whatever the route
// length.
const MaxGIFFPS = 20

// webSafe is the 6x6x6 color cube, indexed r*36 + g*6 + b.
var webSafe = func() color.Palette {
	p := make(color.Palette, 0, 216)
	for r := range 6 {
		for g := range 6 {
			for b := range 6 {
				p = append(p, color.RGBA{R: uint8(r * 51), G: uint8(g * 51), B: uint8(b * 51), A: 0xff})
			}
		}
	}
	return p
}()

// GIF collects frames and encodes an animated GIF on Close. Frames are
// quantised to the web-safe cube as they arrive and only every stride-th
// one is retained.
type GIF struct {
	w      io.Writer
	stride int
	delay  int // hundredths of a second
	anim   gif.GIF
	order  order
	last   image.Image // most recent frame not yet retained
}

// NewGIF returns an animated GIF sink playing at fps frames per second.
func NewGIF(w io.Writer, fps int) *GIF {
	fps = max(fps, 1)
	stride := (fps + MaxGIFFPS - 1) / MaxGIFFPS
	return &GIF{w: w, stride: stride, delay: max(100*stride/fps, 2)}
}

func (s *GIF) WriteFrame(idx int, img image.Image) error {
	if err := s.order.accept(idx); err != nil {
		return err
	}
	if idx%s.stride != 0 {
		s.last = img
		return nil
	}
	s.keep(img)
	s.last = nil
	return nil
}

func (s *GIF) keep(img image.Image) {
	s.anim.Image = append(s.anim.Image, quantize(img))
	s.anim.Delay = append(s.anim.Delay, s.delay)
}

func (s *GIF) Close() error {
	if s.order.closed {
		return ErrClosed
	}
	s.order.closed = true
	if s.last != nil {
		s.keep(s.last)
		s.last = nil
	}
	if len(s.anim.Image) == 0 {
		return errors.New("no frames written")
	}
	err := gif.EncodeAll(s.w, &s.anim)
	s.anim = gif.GIF{}
	return err
}

func (s *GIF) Abort() {
	s.order.closed = true
	s.anim = gif.GIF{}
	s.last = nil
}

// quantize maps img onto the web-safe cube by rounding each channel,
// without dithering.
func quantize(img image.Image) *image.Paletted {
	b := img.Bounds()
	p := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), webSafe)
	if rgba, ok := img.(*image.RGBA); ok {
		for y := range b.Dy() {
			src := rgba.Pix[rgba.PixOffset(b.Min.X, b.Min.Y+y):]
			dst := p.Pix[y*p.Stride:]
			for x := range b.Dx() {
				i := 4 * x
				dst[x] = cubeIndex(src[i], src[i+1], src[i+2])
			}
		}
		return p
	}
	for y := range b.Dy() {
		for x := range b.Dx() {
			c := color.RGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.RGBA)
			p.Pix[y*p.Stride+x] = cubeIndex(c.R, c.G, c.B)
		}
	}
	return p
}

func cubeIndex(r, g, b uint8) uint8 {
	level := func(v uint8) int { return (int(v) + 25) / 51 }
	return uint8(level(r)*36 + level(g)*6 + level(b))
}
