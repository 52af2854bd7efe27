// Package background decodes and resizes background images.
package background

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ErrTooLarge is returned for images whose declared size exceeds the
// loader's pixel limit. Nothing is decoded.
var ErrTooLarge = errors.New("background image too large")

// DefaultMaxPixels is the decode limit of NewLoader, about 160 MB of RGBA.
const DefaultMaxPixels = 40_000_000

// Loader implements ports.BackgroundLoader.
type Loader struct {
	maxPixels int64
}

// Option configures a Loader.
type Option func(*Loader)

// WithMaxPixels caps width*height of accepted images. n <= 0 keeps the
// default.
func WithMaxPixels(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxPixels = int64(n)
		}
	}
}

// NewLoader returns a background loader for PNG, JPEG, GIF and WebP input.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{maxPixels: DefaultMaxPixels}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load decodes r and shrinks it so the longest side is at most maxSide.
// Images already within bounds are copied unscaled. maxSide <= 0 disables
// resizing. The header is checked against the pixel limit before the
// image is decoded.
func (l *Loader) Load(ctx context.Context, r io.Reader, maxSide int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var head bytes.Buffer
	cfg, format, err := image.DecodeConfig(io.TeeReader(r, &head))
	if err != nil {
		return nil, fmt.Errorf("decode background: %w", err)
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > l.maxPixels {
		return nil, fmt.Errorf("%w: %s %dx%d exceeds %d pixels", ErrTooLarge, format, cfg.Width, cfg.Height, l.maxPixels)
	}

	src, format, err := image.Decode(io.MultiReader(&head, r))
	if err != nil {
		return nil, fmt.Errorf("decode background: %w", err)
	}
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, fmt.Errorf("decode background: empty %s image", format)
	}
	w, h := FitWithin(b.Dx(), b.Dy(), maxSide)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst, nil
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst, nil
}

// FitWithin scales w×h down, preserving aspect ratio, so neither side
// exceeds maxSide. It never scales up.
func FitWithin(w, h, maxSide int) (int, int) {
	longest := max(w, h)
	if maxSide <= 0 || longest <= maxSide {
		return w, h
	}
	scale := float64(maxSide) / float64(longest)
	return max(int(float64(w)*scale), 1), max(int(float64(h)*scale), 1)
}
