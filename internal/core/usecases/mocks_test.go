package usecases_test

import (
	"context"
	"image"
	"image/color"
	"io"
	"sync"
	"time"

	"github.com/samirrijal/routecast/internal/core/domain"
	"github.com/samirrijal/routecast/internal/core/ports"
)

// --- Mock ActivityDecoder ---

type mockDecoder struct {
	decodeFn func(ctx context.Context, r io.Reader) (*domain.Activity, error)
	calls    int
}

func (m *mockDecoder) Decode(ctx context.Context, r io.Reader) (*domain.Activity, error) {
	m.calls++
	if m.decodeFn != nil {
		return m.decodeFn(ctx, r)
	}
	return track(10), nil
}

// --- Mock BackgroundLoader ---

type mockBackgrounds struct {
	loadFn func(ctx context.Context, r io.Reader, maxSide int) (image.Image, error)
}

func (m *mockBackgrounds) Load(ctx context.Context, r io.Reader, maxSide int) (image.Image, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx, r, maxSide)
	}
	return image.NewRGBA(image.Rect(0, 0, 64, 48)), nil
}

// --- Canvas stub ---

type stubCanvas struct{ img *image.RGBA }

func (c *stubCanvas) Size() (int, int) { return c.img.Bounds().Dx(), c.img.Bounds().Dy() }
func (c *stubCanvas) Line(a, b domain.PixelPoint, width float64, col domain.RGB) {
	c.img.Set(int(b.X), int(b.Y), color.RGBA{R: col.R, G: col.G, B: col.B, A: 255})
}
func (c *stubCanvas) Circle(domain.PixelPoint, float64, domain.RGB)       {}
func (c *stubCanvas) FillRect(float64, float64, float64, float64, domain.RGB) {}
func (c *stubCanvas) Text(string, float64, float64, ports.TextStyle)      {}
func (c *stubCanvas) MeasureText(s string, st ports.TextStyle) (float64, float64) {
	return float64(len(s)) * 6, 10
}
func (c *stubCanvas) Clone() ports.Canvas {
	cp := image.NewRGBA(c.img.Bounds())
	copy(cp.Pix, c.img.Pix)
	return &stubCanvas{img: cp}
}
func (c *stubCanvas) Snapshot() image.Image { return c.Clone().(*stubCanvas).img }
func (c *stubCanvas) Err() error            { return nil }

type stubCanvasFactory struct{}

func (stubCanvasFactory) NewCanvas(bg image.Image) ports.Canvas {
	img := image.NewRGBA(bg.Bounds())
	return &stubCanvas{img: img}
}

// --- Sink factory ---

type countingSink struct {
	frames  int
	closed  bool
	aborted bool
	w       io.Writer
	failAt  int
}

func (s *countingSink) WriteFrame(idx int, img image.Image) error {
	if s.failAt > 0 && idx == s.failAt {
		return io.ErrShortWrite
	}
	s.frames++
	return nil
}

func (s *countingSink) Close() error {
	s.closed = true
	_, err := s.w.Write([]byte("artifact"))
	return err
}

func (s *countingSink) Abort() { s.aborted = true }

type mockSinks struct {
	last   *countingSink
	fps    int
	format domain.OutputFormat
	failAt int
}

func (m *mockSinks) NewSink(format domain.OutputFormat, w io.Writer, fps int) (ports.FrameSink, error) {
	m.fps = fps
	m.format = format
	m.last = &countingSink{w: w, failAt: m.failAt}
	return m.last, nil
}

func (m *mockSinks) ContentType(format domain.OutputFormat) string { return "test/" + string(format) }
func (m *mockSinks) Extension(format domain.OutputFormat) string   { return string(format) }

// --- Mock ArtifactStore ---

type mockArtifacts struct {
	mu    sync.Mutex
	items map[string]*domain.Artifact
	putFn func(ctx context.Context, a *domain.Artifact) error
}

func newMockArtifacts() *mockArtifacts {
	return &mockArtifacts{items: map[string]*domain.Artifact{}}
}

func (m *mockArtifacts) Put(ctx context.Context, a *domain.Artifact) error {
	if m.putFn != nil {
		return m.putFn(ctx, a)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[a.ID] = a
	return nil
}

func (m *mockArtifacts) Take(ctx context.Context, id string) (*domain.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	delete(m.items, id)
	return a, nil
}

func (m *mockArtifacts) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

// --- Mock JobRepository ---

type mockJobs struct {
	mu     sync.Mutex
	jobs   map[string]domain.RenderJob
	listFn func(ctx context.Context, limit, offset int) ([]domain.RenderJob, error)
}

func newMockJobs() *mockJobs { return &mockJobs{jobs: map[string]domain.RenderJob{}} }

func (m *mockJobs) Create(ctx context.Context, job *domain.RenderJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *mockJobs) Update(ctx context.Context, job *domain.RenderJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; !ok {
		return domain.ErrNotFound
	}
	m.jobs[job.ID] = *job
	return nil
}

func (m *mockJobs) GetByID(ctx context.Context, id string) (*domain.RenderJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &j, nil
}

func (m *mockJobs) List(ctx context.Context, limit, offset int) ([]domain.RenderJob, error) {
	if m.listFn != nil {
		return m.listFn(ctx, limit, offset)
	}
	return nil, nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.JobEvent
}

func (m *mockPublisher) PublishJobEvent(ctx context.Context, ev *domain.JobEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *ev)
	return nil
}

func (m *mockPublisher) types() []domain.JobEventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.JobEventType, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.Type
	}
	return out
}

// --- Mock CacheService ---

type mockCache struct {
	data map[string][]byte
	sets int
}

func newMockCache() *mockCache { return &mockCache{data: map[string][]byte{}} }

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	m.sets++
	m.data[key] = value
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

// --- Mock ChartRenderer ---

type mockCharts struct {
	pngFn  func(laps []domain.Lap, w, h int) ([]byte, error)
	htmlFn func(laps []domain.Lap) ([]byte, error)
}

func (m *mockCharts) LapPacePNG(laps []domain.Lap, w, h int) ([]byte, error) {
	if m.pngFn != nil {
		return m.pngFn(laps, w, h)
	}
	return []byte("png"), nil
}

func (m *mockCharts) LapPaceHTML(laps []domain.Lap) ([]byte, error) {
	if m.htmlFn != nil {
		return m.htmlFn(laps)
	}
	return []byte("<html>"), nil
}

// --- Fixtures ---

func track(n int, laps ...domain.Lap) *domain.Activity {
	t0 := time.Date(2024, 4, 7, 9, 0, 0, 0, time.UTC)
	act := &domain.Activity{Laps: laps}
	for i := range n {
		act.Samples = append(act.Samples, domain.GeoSample{
			Lat:      43.26 + float64(i)*0.0001,
			Lon:      -2.93 + float64(i)*0.0001,
			Time:     t0.Add(time.Duration(i) * time.Second),
			Distance: float64(i) * 3,
		})
	}
	return act
}
