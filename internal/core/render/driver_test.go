package render

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/routecast/internal/core/domain"
)

func newTestDriver(t *testing.T, cfg domain.RenderConfig, act *domain.Activity, sink *memSink, opts ...Option) (*Driver, *recorderFactory) {
	t.Helper()
	f := &recorderFactory{}
	d, err := NewDriver(cfg, act, blank(800, 600), f, sink, opts...)
	require.NoError(t, err)
	return d, f
}

func TestNewDriver_RejectsInvalidConfig(t *testing.T) {
	cfg := domain.DefaultVideoConfig()
	cfg.RouteScale.Scale = 0
	_, err := NewDriver(cfg, activity(3), blank(10, 10), &recorderFactory{}, newMemSink())
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	var ce *domain.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "route_scale.scale", ce.Field)
}

func TestNewDriver_RejectsEmptyRoute(t *testing.T) {
	_, err := NewDriver(domain.DefaultVideoConfig(), &domain.Activity{}, blank(10, 10), &recorderFactory{}, newMemSink())
	assert.ErrorIs(t, err, domain.ErrEmptyRoute)
}

func TestRenderStatic_States(t *testing.T) {
	sink := newMemSink()
	d, _ := newTestDriver(t, domain.DefaultImageConfig(), activity(20), sink)
	assert.Equal(t, StateStart, d.State())

	require.NoError(t, d.Project())
	assert.Equal(t, StateProjected, d.State())

	require.NoError(t, d.RenderStatic())
	assert.Equal(t, StateDone, d.State())
	assert.Equal(t, []int{0}, sink.frames)
	assert.True(t, sink.closed)
	assert.False(t, sink.aborted)
}

func TestRenderStatic_FullPolylineNoMarker(t *testing.T) {
	d, f := newTestDriver(t, domain.DefaultImageConfig(), activity(20), newMemSink())
	require.NoError(t, d.RenderStatic())
	assert.Equal(t, 19, f.last.count("line"))
	assert.Zero(t, f.last.count("circle"))
}

func TestRenderStatic_SingleSampleDrawsMarkerOnly(t *testing.T) {
	d, f := newTestDriver(t, domain.DefaultImageConfig(), activity(1), newMemSink())
	require.NoError(t, d.RenderStatic())
	assert.Zero(t, f.last.count("line"))
	assert.Equal(t, 1, f.last.count("circle"))
}

func TestRenderStatic_SummaryListsAllLaps(t *testing.T) {
	cfg := domain.DefaultVideoConfig()
	d, f := newTestDriver(t, cfg, activity(10, threeLaps()...), newMemSink())
	require.NoError(t, d.RenderStatic())
	texts := f.last.texts()
	assert.Contains(t, texts, " 1  5:00")
	assert.Contains(t, texts, " 2  5:30")
	assert.Contains(t, texts, " 3  0:00")
}

func TestRenderProgressive_EmitsFramesInOrder(t *testing.T) {
	sink := newMemSink()
	var hooked []int
	d, _ := newTestDriver(t, domain.DefaultVideoConfig(), activity(12, threeLaps()...), sink,
		WithFrameHook(func(idx, total int) {
			assert.Equal(t, 12, total)
			hooked = append(hooked, idx)
		}))

	require.NoError(t, d.RenderProgressive(context.Background()))
	want := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	assert.Equal(t, want, sink.frames)
	assert.Equal(t, want, hooked)
	assert.True(t, sink.closed)
	assert.Equal(t, StateDone, d.State())
	assert.Equal(t, 12, d.FrameState().Revealed)
	assert.Equal(t, 2, d.FrameState().CurrentLap)
}

func TestRenderProgressive_RevealIsMonotonic(t *testing.T) {
	sink := newMemSink()
	d, _ := newTestDriver(t, domain.DefaultVideoConfig(), activity(30), sink)

	prev := 0
	for d.State() != StateDone {
		require.NoError(t, d.Step())
		fs := d.FrameState()
		assert.GreaterOrEqual(t, fs.Revealed, prev)
		prev = fs.Revealed
	}
	assert.Equal(t, 30, prev)
}

func TestRenderProgressive_PathAccumulates(t *testing.T) {
	sink := newMemSink()
	cfg := domain.DefaultVideoConfig()
	cfg.ShowBottomBar = false
	d, f := newTestDriver(t, cfg, activity(5), sink)

	require.NoError(t, d.RenderProgressive(context.Background()))
	// The persistent path canvas holds every segment but no marker.
	assert.Equal(t, 4, f.last.count("line"))
	assert.Zero(t, f.last.count("circle"))
	// Each frame adds a marker to one more segment than the last.
	assert.Equal(t, []int{1, 2, 3, 4, 5}, sink.ops)
}

func TestRenderProgressive_SinkFailureAborts(t *testing.T) {
	sink := newMemSink()
	sink.failAt = 3
	d, _ := newTestDriver(t, domain.DefaultVideoConfig(), activity(10), sink)

	err := d.RenderProgressive(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSinkWrite)
	assert.True(t, sink.aborted)
	assert.False(t, sink.closed)
	assert.Equal(t, []int{0, 1, 2}, sink.frames)
	assert.Equal(t, StateFailed, d.State())

	assert.Error(t, d.Step())
}

func TestRenderStatic_DrawFailureAborts(t *testing.T) {
	sink := newMemSink()
	f := &recorderFactory{failOn: "line"}
	d, err := NewDriver(domain.DefaultImageConfig(), activity(20), blank(800, 600), f, sink)
	require.NoError(t, err)

	err = d.RenderStatic()
	assert.ErrorIs(t, err, domain.ErrDraw)
	assert.Empty(t, sink.frames, "a broken frame must not reach the sink")
	assert.True(t, sink.aborted)
	assert.False(t, sink.closed)
	assert.Equal(t, StateFailed, d.State())
}

func TestRenderProgressive_DrawFailureAborts(t *testing.T) {
	sink := newMemSink()
	f := &recorderFactory{failOn: "text"}
	d, err := NewDriver(domain.DefaultVideoConfig(), activity(10), blank(800, 600), f, sink)
	require.NoError(t, err)

	err = d.RenderProgressive(context.Background())
	assert.ErrorIs(t, err, domain.ErrDraw)
	assert.Empty(t, sink.frames)
	assert.True(t, sink.aborted)
	assert.Equal(t, StateFailed, d.State())
}

func TestRenderProgressive_Cancelled(t *testing.T) {
	sink := newMemSink()
	d, _ := newTestDriver(t, domain.DefaultVideoConfig(), activity(10), sink)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.RenderProgressive(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.True(t, sink.aborted)
	assert.Empty(t, sink.frames)
}

func TestRenderProgressive_HiddenRoute(t *testing.T) {
	cfg := domain.DefaultVideoConfig()
	cfg.ShowRoute = false
	cfg.ShowBottomBar = false
	cfg.ShowLapData = false
	sink := newMemSink()
	d, _ := newTestDriver(t, cfg, activity(4), sink)

	require.NoError(t, d.RenderProgressive(context.Background()))
	assert.Equal(t, []int{0, 0, 0, 0}, sink.ops)
}

func TestFrameRate(t *testing.T) {
	assert.Equal(t, 1, FrameRate(0, 15))
	assert.Equal(t, 1, FrameRate(14, 15))
	assert.Equal(t, 20, FrameRate(300, 15))
	assert.Equal(t, 20, FrameRate(300, 0))
}
