package sink

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/samirrijal/routecast/internal/core/domain"
)

// Image writes a single still frame as PNG or JPEG on Close.
type Image struct {
	w       io.Writer
	format  domain.OutputFormat
	quality int
	buf     bytes.Buffer
	order   order
	wrote   bool
}

// NewImage returns a still image sink.
func NewImage(w io.Writer, format domain.OutputFormat, quality int) *Image {
	if quality <= 0 || quality > 100 {
		quality = 90
	}
	return &Image{w: w, format: format, quality: quality}
}

func (s *Image) WriteFrame(idx int, img image.Image) error {
	if s.wrote && !s.order.closed {
		return fmt.Errorf("%w: still image takes one frame", ErrOutOfOrder)
	}
	if err := s.order.accept(idx); err != nil {
		return err
	}
	var err error
	switch s.format {
	case domain.FormatJPEG:
		err = jpeg.Encode(&s.buf, img, &jpeg.Options{Quality: s.quality})
	default:
		err = png.Encode(&s.buf, img)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.format, err)
	}
	s.wrote = true
	return nil
}

func (s *Image) Close() error {
	if s.order.closed {
		return ErrClosed
	}
	s.order.closed = true
	if !s.wrote {
		return errors.New("no frame written")
	}
	_, err := s.buf.WriteTo(s.w)
	return err
}

func (s *Image) Abort() {
	s.order.closed = true
	s.buf.Reset()
}
