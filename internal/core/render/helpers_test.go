package render

import (
	"errors"
	"image"
	"image/color"
	"time"

	"github.com/samirrijal/routecast/internal/core/domain"
	"github.com/samirrijal/routecast/internal/core/ports"
)

type op struct {
	kind string // line, circle, rect, text
	text string
	a, b domain.PixelPoint
	w, h float64
}

// recorder is a Canvas that records every command.
type recorder struct {
	w, h int
	ops  []op
	// failOn makes the first command of that kind fail.
	failOn string
	err    error
}

func (r *recorder) add(o op) {
	if r.err == nil && o.kind == r.failOn {
		r.err = errors.New(o.kind + " failed")
	}
	r.ops = append(r.ops, o)
}

func (r *recorder) Err() error { return r.err }

func (r *recorder) Size() (int, int) { return r.w, r.h }

func (r *recorder) Line(a, b domain.PixelPoint, width float64, c domain.RGB) {
	r.add(op{kind: "line", a: a, b: b, w: width})
}

func (r *recorder) Circle(center domain.PixelPoint, radius float64, c domain.RGB) {
	r.add(op{kind: "circle", a: center, w: radius})
}

func (r *recorder) FillRect(x, y, w, h float64, c domain.RGB) {
	r.add(op{kind: "rect", a: domain.PixelPoint{X: x, Y: y}, w: w, h: h})
}

func (r *recorder) Text(s string, x, y float64, st ports.TextStyle) {
	r.add(op{kind: "text", text: s, a: domain.PixelPoint{X: x, Y: y}})
}

func (r *recorder) MeasureText(s string, st ports.TextStyle) (float64, float64) {
	return float64(len(s)) * 10 * st.Scale, 20 * st.Scale
}

func (r *recorder) Clone() ports.Canvas {
	c := &recorder{w: r.w, h: r.h, ops: make([]op, len(r.ops)), failOn: r.failOn, err: r.err}
	copy(c.ops, r.ops)
	return c
}

// Snapshot encodes the op count in pixel (0,0) so sinks can inspect frames.
func (r *recorder) Snapshot() image.Image {
	img := image.NewGray16(image.Rect(0, 0, r.w, r.h))
	img.SetGray16(0, 0, color.Gray16{Y: uint16(len(r.ops))})
	return img
}

func (r *recorder) count(kind string) int {
	n := 0
	for _, o := range r.ops {
		if o.kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) texts() []string {
	var out []string
	for _, o := range r.ops {
		if o.kind == "text" {
			out = append(out, o.text)
		}
	}
	return out
}

type recorderFactory struct {
	last   *recorder
	failOn string
}

func (f *recorderFactory) NewCanvas(bg image.Image) ports.Canvas {
	b := bg.Bounds()
	f.last = &recorder{w: b.Dx(), h: b.Dy(), failOn: f.failOn}
	return f.last
}

// memSink keeps frames in memory.
type memSink struct {
	frames  []int
	ops     []int
	closed  bool
	aborted bool
	failAt  int
}

func newMemSink() *memSink { return &memSink{failAt: -1} }

func (s *memSink) WriteFrame(idx int, img image.Image) error {
	if idx == s.failAt {
		return errors.New("disk full")
	}
	s.frames = append(s.frames, idx)
	if g, ok := img.(*image.Gray16); ok {
		s.ops = append(s.ops, int(g.Gray16At(0, 0).Y))
	}
	return nil
}

func (s *memSink) Close() error { s.closed = true; return nil }
func (s *memSink) Abort()       { s.aborted = true }

func blank(w, h int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func ptr[T any](v T) *T { return &v }

var t0 = time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

// track builds n samples heading north-east at 1 sample per second, 3 m apart.
func track(n int) []domain.GeoSample {
	out := make([]domain.GeoSample, n)
	for i := range out {
		out[i] = domain.GeoSample{
			Lat:      43.0 + float64(i)*0.0001,
			Lon:      -2.9 + float64(i)*0.0001,
			Time:     t0.Add(time.Duration(i) * time.Second),
			Distance: float64(i) * 3,
		}
	}
	return out
}

func activity(n int, laps ...domain.Lap) *domain.Activity {
	return &domain.Activity{Samples: track(n), Laps: laps}
}
