package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/samirrijal/routecast/internal/core/domain"
	"github.com/samirrijal/routecast/internal/core/ports"
)

// State is a render driver lifecycle state.
type State int

const (
	StateStart State = iota
	StateProjected
	StateDrawn
	StateFrame
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateProjected:
		return "projected"
	case StateDrawn:
		return "drawn"
	case StateFrame:
		return "frame"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// FrameState is the per-run progress of a progressive render.
type FrameState struct {
	Revealed   int
	CurrentLap int
}

// FrameFunc is called after each emitted frame.
type FrameFunc func(idx, total int)

// ProgressInterval is how often the driver logs progressive frames.
const ProgressInterval = 100

// FrameRate returns the video frame rate for a route of n points:
// one second of video per divisor points, never below 1 fps.
func FrameRate(n, divisor int) int {
	if divisor <= 0 {
		divisor = domain.DefaultFPSDivisor
	}
	return max(1, n/divisor)
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the driver logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithFrameHook registers a callback invoked after each emitted frame.
func WithFrameHook(fn FrameFunc) Option {
	return func(d *Driver) { d.onFrame = fn }
}

// Driver runs one render job. It is not safe for concurrent use.
type Driver struct {
	cfg     domain.RenderConfig
	act     *domain.Activity
	bg      image.Image
	canvas  ports.CanvasFactory
	sink    ports.FrameSink
	logger  *slog.Logger
	onFrame FrameFunc

	state  State
	frame  FrameState
	points []domain.PixelPoint
	acc    *Accumulator
	comp   *Compositor
	path   ports.Canvas
	next   int
}

// NewDriver validates cfg and the activity before any drawing begins.
func NewDriver(cfg domain.RenderConfig, act *domain.Activity, bg image.Image, canvas ports.CanvasFactory, sink ports.FrameSink, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if act == nil || len(act.Samples) == 0 {
		return nil, domain.ErrEmptyRoute
	}
	if bg == nil {
		return nil, errors.New("render: nil background")
	}
	d := &Driver{
		cfg:    cfg,
		act:    act,
		bg:     bg,
		canvas: canvas,
		sink:   sink,
		logger: slog.Default(),
		frame:  FrameState{CurrentLap: -1},
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// State returns the current lifecycle state.
func (d *Driver) State() State { return d.state }

// FrameState returns the progressive render progress.
func (d *Driver) FrameState() FrameState { return d.frame }

// Points returns the projected route, nil before projection.
func (d *Driver) Points() []domain.PixelPoint { return d.points }

// Frames returns the number of frames a progressive render emits.
func (d *Driver) Frames() int { return len(d.act.Samples) }

// Project maps the activity into background pixel space.
func (d *Driver) Project() error {
	if d.state != StateStart {
		return fmt.Errorf("render: project in state %s", d.state)
	}
	b := d.bg.Bounds()
	pts, err := NewProjector(b.Dx(), b.Dy(), d.cfg.RouteScale).Project(d.act.Samples)
	if err != nil {
		return d.fail(err)
	}
	d.points = pts
	d.acc = NewAccumulator(pts)
	d.comp = NewCompositor(d.cfg, d.act, b.Dx(), b.Dy(), d.logger)
	d.path = d.canvas.NewCanvas(d.bg)
	d.state = StateProjected
	return nil
}

// RenderStatic draws the full route and final summaries as one frame.
func (d *Driver) RenderStatic() error {
	if d.state == StateStart {
		if err := d.Project(); err != nil {
			return err
		}
	}
	if d.state != StateProjected {
		return fmt.Errorf("render: static render in state %s", d.state)
	}
	cv := d.path
	if d.cfg.ShowRoute {
		d.comp.DrawRoute(cv, d.points)
		if len(d.points) == 1 {
			d.comp.DrawMarker(cv, d.points[0])
		}
	}
	last := len(d.points) - 1
	d.comp.DrawPaceDist(cv, last)
	d.comp.DrawLapPanel(cv, d.comp.LastLap())
	d.state = StateDrawn

	if err := d.emit(0, cv); err != nil {
		return err
	}
	return d.finish()
}

// Step emits the next progressive frame. After the last frame the sink is
// closed and the driver is done.
func (d *Driver) Step() error {
	if d.state == StateStart {
		if err := d.Project(); err != nil {
			return err
		}
	}
	if d.state != StateProjected && d.state != StateFrame {
		return fmt.Errorf("render: step in state %s", d.state)
	}
	i := d.next
	seg, err := d.acc.Reveal(i)
	if err != nil {
		return d.fail(err)
	}
	d.state = StateFrame
	d.frame = FrameState{Revealed: d.acc.Revealed(), CurrentLap: d.comp.CurrentLap(i)}

	if d.cfg.ShowRoute {
		d.comp.DrawRoute(d.path, seg)
	}
	cv := d.path.Clone()
	if d.cfg.ShowRoute {
		d.comp.DrawMarker(cv, d.points[i])
	}
	d.comp.DrawFrame(cv, i)

	if err := d.emit(i, cv); err != nil {
		return err
	}
	d.next++
	if (i+1)%ProgressInterval == 0 {
		d.logger.Info("rendering frames", "processed", i+1, "total", len(d.points))
	}
	if d.next == len(d.points) {
		return d.finish()
	}
	return nil
}

// RenderProgressive emits every frame in order. Cancelling ctx between
// frames aborts the sink.
func (d *Driver) RenderProgressive(ctx context.Context) error {
	for d.state != StateDone {
		if err := ctx.Err(); err != nil {
			d.sink.Abort()
			d.state = StateFailed
			return err
		}
		if err := d.Step(); err != nil {
			return err
		}
	}
	return nil
}

// emit snapshots cv and hands it to the sink. A frame with a drawing
// failure is never written.
func (d *Driver) emit(idx int, cv ports.Canvas) error {
	img := cv.Snapshot()
	if err := cv.Err(); err != nil {
		return d.fail(fmt.Errorf("%w: frame %d: %w", domain.ErrDraw, idx, err))
	}
	if err := d.sink.WriteFrame(idx, img); err != nil {
		return d.fail(fmt.Errorf("%w: frame %d: %w", domain.ErrSinkWrite, idx, err))
	}
	if d.onFrame != nil {
		d.onFrame(idx, d.total())
	}
	return nil
}

func (d *Driver) total() int {
	if d.state == StateDrawn {
		return 1
	}
	return len(d.points)
}

func (d *Driver) finish() error {
	if err := d.sink.Close(); err != nil {
		return d.fail(fmt.Errorf("%w: close: %w", domain.ErrSinkWrite, err))
	}
	d.state = StateDone
	return nil
}

func (d *Driver) fail(err error) error {
	d.sink.Abort()
	d.state = StateFailed
	return err
}
