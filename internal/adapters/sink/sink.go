// Package sink encodes rendered frames into output artifacts.
package sink

import (
	"errors"
	"fmt"
	"io"

	"github.com/samirrijal/routecast/internal/core/domain"
	"github.com/samirrijal/routecast/internal/core/ports"
)

var (
	// ErrOutOfOrder is returned when a frame index skips or repeats.
	ErrOutOfOrder = errors.New("frame out of order")
	// ErrClosed is returned for writes after Close or Abort.
	ErrClosed = errors.New("sink closed")
)

// order tracks the next expected frame index.
type order struct {
	next   int
	closed bool
}

func (o *order) accept(idx int) error {
	if o.closed {
		return ErrClosed
	}
	if idx != o.next {
		return fmt.Errorf("%w: got %d, want %d", ErrOutOfOrder, idx, o.next)
	}
	o.next++
	return nil
}

// Options configures New.
type Options struct {
	FPS     int
	Quality int // JPEG quality
}

// New returns a sink for the given output format writing to w.
func New(format domain.OutputFormat, w io.Writer, opts Options) (ports.FrameSink, error) {
	switch format {
	case domain.FormatPNG:
		return NewImage(w, domain.FormatPNG, 0), nil
	case domain.FormatJPEG:
		return NewImage(w, domain.FormatJPEG, opts.Quality), nil
	case domain.FormatGIF:
		return NewGIF(w, opts.FPS), nil
	case domain.FormatFrameStream:
		return NewFrameStream(w, opts.FPS), nil
	}
	return nil, fmt.Errorf("unsupported output format %q", format)
}

// Factory implements ports.SinkFactory.
type Factory struct {
	// Quality is the JPEG quality, 1-100.
	Quality int
}

func (f Factory) NewSink(format domain.OutputFormat, w io.Writer, fps int) (ports.FrameSink, error) {
	return New(format, w, Options{FPS: fps, Quality: f.Quality})
}

func (Factory) ContentType(format domain.OutputFormat) string { return ContentType(format) }

func (Factory) Extension(format domain.OutputFormat) string { return Extension(format) }

// ContentType returns the MIME type of a format.
func ContentType(format domain.OutputFormat) string {
	switch format {
	case domain.FormatPNG:
		return "image/png"
	case domain.FormatJPEG:
		return "image/jpeg"
	case domain.FormatGIF:
		return "image/gif"
	case domain.FormatFrameStream:
		return "application/x-protobuf"
	}
	return "application/octet-stream"
}

// Extension returns the file extension of a format, without a dot.
func Extension(format domain.OutputFormat) string {
	switch format {
	case domain.FormatJPEG:
		return "jpg"
	case domain.FormatFrameStream:
		return "frames"
	}
	return string(format)
}
