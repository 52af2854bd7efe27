package ports

import (
	"context"
	"image"
	"io"

	"github.com/samirrijal/routecast/internal/core/domain"
)

// ActivityDecoder parses an activity file into samples and laps.
type ActivityDecoder interface {
	Decode(ctx context.Context, r io.Reader) (*domain.Activity, error)
}

// BackgroundLoader decodes a background raster, shrinking it so its
// longest side does not exceed maxSide.
type BackgroundLoader interface {
	Load(ctx context.Context, r io.Reader, maxSide int) (image.Image, error)
}

// FrameSink receives rendered frames strictly in index order.
// Close is the done signal. Abort discards partial output.
type FrameSink interface {
	WriteFrame(idx int, img image.Image) error
	Close() error
	Abort()
}

// SinkFactory opens a frame sink encoding format into w.
type SinkFactory interface {
	NewSink(format domain.OutputFormat, w io.Writer, fps int) (FrameSink, error)
	ContentType(format domain.OutputFormat) string
	Extension(format domain.OutputFormat) string
}

// TextStyle describes how a string is drawn.
type TextStyle struct {
	Font      domain.Font
	Scale     float64
	Thickness int
	Color     domain.RGB
}

// Canvas is the drawing surface the compositor emits commands to.
// Text coordinates are the left end of the baseline. Drawing methods do
// not return errors; the first failure is kept and reported by Err.
type Canvas interface {
	Size() (w, h int)
	Line(a, b domain.PixelPoint, width float64, c domain.RGB)
	Circle(center domain.PixelPoint, radius float64, c domain.RGB)
	FillRect(x, y, w, h float64, c domain.RGB)
	Text(s string, x, y float64, st TextStyle)
	MeasureText(s string, st TextStyle) (w, h float64)
	Clone() Canvas
	Snapshot() image.Image
	Err() error
}

// CanvasFactory creates a canvas initialised with a copy of bg.
type CanvasFactory interface {
	NewCanvas(bg image.Image) Canvas
}

// EventPublisher publishes render job events to a message broker.
type EventPublisher interface {
	PublishJobEvent(ctx context.Context, ev *domain.JobEvent) error
}

// EventSubscriber subscribes to render job events.
type EventSubscriber interface {
	SubscribeJobEvents(ctx context.Context, handler func(ctx context.Context, ev *domain.JobEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// ChartRenderer draws lap statistics outside the video overlay.
type ChartRenderer interface {
	LapPacePNG(laps []domain.Lap, width, height int) ([]byte, error)
	LapPaceHTML(laps []domain.Lap) ([]byte, error)
}
