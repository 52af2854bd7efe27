package workflows

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/routecast/internal/adapters/background"
	"github.com/samirrijal/routecast/internal/adapters/memstore"
	"github.com/samirrijal/routecast/internal/adapters/raster"
	"github.com/samirrijal/routecast/internal/adapters/sink"
	"github.com/samirrijal/routecast/internal/adapters/sqlite"
	"github.com/samirrijal/routecast/internal/core/domain"
	"github.com/samirrijal/routecast/internal/core/usecases"
	"github.com/samirrijal/routecast/internal/pkg/logging"
)

type memInputs struct {
	mu   sync.Mutex
	data map[string][]byte
	fail error
}

func newMemInputs() *memInputs { return &memInputs{data: map[string][]byte{}} }

func (m *memInputs) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, domain.ErrNotFound)
	}
	return v, nil
}

func (m *memInputs) Set(ctx context.Context, key string, value []byte, ttl int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.data[key] = value
	return nil
}

func (m *memInputs) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

type fakeStarter struct {
	opts  client.StartWorkflowOptions
	input RenderInput
	err   error
}

func (f *fakeStarter) ExecuteWorkflow(ctx context.Context, opts client.StartWorkflowOptions, wf interface{}, args ...interface{}) (client.WorkflowRun, error) {
	f.opts = opts
	if len(args) == 1 {
		f.input, _ = args[0].(RenderInput)
	}
	return nil, f.err
}

type stubDecoder struct{ act *domain.Activity }

func (d stubDecoder) Decode(ctx context.Context, r io.Reader) (*domain.Activity, error) {
	return d.act, nil
}

func route(n int) *domain.Activity {
	t0 := time.Date(2024, 4, 7, 9, 0, 0, 0, time.UTC)
	act := &domain.Activity{}
	for i := range n {
		act.Samples = append(act.Samples, domain.GeoSample{
			Lat: 43.26 + float64(i)*0.0001, Lon: -2.93, Time: t0.Add(time.Duration(i) * time.Second), Distance: float64(i) * 3,
		})
	}
	return act
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 80, 60))))
	return buf.Bytes()
}

func renderService(act *domain.Activity) *usecases.RenderService {
	return usecases.NewRenderService(stubDecoder{act: act}, background.NewLoader(), raster.NewFactory(),
		sink.Factory{Quality: 90}, memstore.New(time.Hour), nil, nil, usecases.RenderOptions{}, logging.Discard())
}

type failingArtifacts struct{ err error }

func (f failingArtifacts) Put(ctx context.Context, a *domain.Artifact) error { return f.err }
func (f failingArtifacts) Take(ctx context.Context, id string) (*domain.Artifact, error) {
	return nil, domain.ErrNotFound
}
func (f failingArtifacts) Delete(ctx context.Context, id string) error { return nil }

type eventLog struct {
	mu     sync.Mutex
	events []domain.JobEvent
}

func (l *eventLog) PublishJobEvent(ctx context.Context, ev *domain.JobEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, *ev)
	return nil
}

func (l *eventLog) types() []domain.JobEventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.JobEventType
	for _, ev := range l.events {
		out = append(out, ev.Type)
	}
	return out
}

func input(jobID string, kind domain.RenderKind) RenderInput {
	fitKey, bgKey := InputKeys(jobID)
	return RenderInput{JobID: jobID, Kind: kind, Config: domain.DefaultImageConfig(), FitKey: fitKey, BackgroundKey: bgKey}
}

// ---- Workflow ----

func TestRenderWorkflow_Success(t *testing.T) {
	var s testsuite.WorkflowTestSuite
	env := s.NewTestWorkflowEnvironment()
	env.RegisterActivity(&RenderActivities{})

	in := input("job-1", domain.RenderImage)
	env.OnActivity("RenderRoute", mock.Anything, mock.Anything).Return(&RenderOutput{ArtifactID: "a1", Frames: 1}, nil).Once()
	env.OnActivity("DiscardInputs", mock.Anything, mock.Anything).Return(nil).Once()

	env.ExecuteWorkflow(RenderWorkflow, in)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var out RenderOutput
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.Equal(t, "a1", out.ArtifactID)
	env.AssertExpectations(t)
}

func TestRenderWorkflow_RetriesTransientFailure(t *testing.T) {
	var s testsuite.WorkflowTestSuite
	env := s.NewTestWorkflowEnvironment()
	env.RegisterActivity(&RenderActivities{})

	in := input("job-6", domain.RenderVideo)
	env.OnActivity("RenderRoute", mock.Anything, mock.Anything).Return(nil, errors.New("store artifact: timeout")).Once()
	env.OnActivity("RenderRoute", mock.Anything, mock.Anything).Return(&RenderOutput{ArtifactID: "a6", Frames: 40}, nil).Once()
	env.OnActivity("DiscardInputs", mock.Anything, mock.Anything).Return(nil).Once()

	env.ExecuteWorkflow(RenderWorkflow, in)

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var out RenderOutput
	require.NoError(t, env.GetWorkflowResult(&out))
	assert.Equal(t, "a6", out.ArtifactID)
	env.AssertExpectations(t)
}

func TestRenderWorkflow_RejectedIsNotRetriedAndStillCleansUp(t *testing.T) {
	var s testsuite.WorkflowTestSuite
	env := s.NewTestWorkflowEnvironment()
	env.RegisterActivity(&RenderActivities{})

	in := input("job-2", domain.RenderVideo)
	rejectedErr := temporal.NewNonRetryableApplicationError("route has no samples", ErrTypeRejected, nil)
	env.OnActivity("RenderRoute", mock.Anything, mock.Anything).Return(nil, rejectedErr).Once()
	env.OnActivity("DiscardInputs", mock.Anything, mock.Anything).Return(nil).Once()

	env.ExecuteWorkflow(RenderWorkflow, in)

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, ErrTypeRejected, appErr.Type())
	env.AssertExpectations(t)
}

// ---- Activities ----

func TestRenderRoute_RendersStagedInputs(t *testing.T) {
	inputs := newMemInputs()
	in := input("job-3", domain.RenderImage)
	require.NoError(t, inputs.Set(context.Background(), in.FitKey, []byte("FIT"), 0))
	require.NoError(t, inputs.Set(context.Background(), in.BackgroundKey, pngBytes(t), 0))

	var s testsuite.WorkflowTestSuite
	env := s.NewTestActivityEnvironment()
	env.RegisterActivity(&RenderActivities{Render: renderService(route(8)), Inputs: inputs})

	val, err := env.ExecuteActivity("RenderRoute", in)
	require.NoError(t, err)
	var out RenderOutput
	require.NoError(t, val.Get(&out))
	assert.NotEmpty(t, out.ArtifactID)
	assert.Equal(t, 1, out.Frames)
}

func TestRenderRoute_EmptyRouteIsRejected(t *testing.T) {
	inputs := newMemInputs()
	in := input("job-4", domain.RenderImage)
	_ = inputs.Set(context.Background(), in.FitKey, []byte("FIT"), 0)
	_ = inputs.Set(context.Background(), in.BackgroundKey, pngBytes(t), 0)

	var s testsuite.WorkflowTestSuite
	env := s.NewTestActivityEnvironment()
	env.RegisterActivity(&RenderActivities{Render: renderService(&domain.Activity{}), Inputs: inputs})

	_, err := env.ExecuteActivity("RenderRoute", in)
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr), "got %v", err)
	assert.True(t, appErr.NonRetryable())
}

func TestRenderRoute_TransientFailure(t *testing.T) {
	tests := []struct {
		name        string
		maxAttempts int32
		wantStatus  domain.JobStatus
		wantFailed  bool
	}{
		{"attempts left keeps job running", 3, domain.JobRunning, false},
		{"last attempt fails job", 1, domain.JobFailed, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			jobs, err := sqlite.Open(filepath.Join(t.TempDir(), "jobs.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = jobs.Close() })
			events := &eventLog{}
			svc := usecases.NewRenderService(stubDecoder{act: route(8)}, background.NewLoader(), raster.NewFactory(),
				sink.Factory{Quality: 90}, failingArtifacts{err: errors.New("valkey write timeout")}, jobs, events,
				usecases.RenderOptions{}, logging.Discard())

			job, err := svc.Enqueue(ctx, domain.RenderImage, "")
			require.NoError(t, err)
			in := input(job.ID, domain.RenderImage)
			inputs := newMemInputs()
			require.NoError(t, inputs.Set(ctx, in.FitKey, []byte("FIT"), 0))
			require.NoError(t, inputs.Set(ctx, in.BackgroundKey, pngBytes(t), 0))

			var s testsuite.WorkflowTestSuite
			env := s.NewTestActivityEnvironment()
			env.RegisterActivity(&RenderActivities{Render: svc, Inputs: inputs, MaxAttempts: tt.maxAttempts})

			_, err = env.ExecuteActivity("RenderRoute", in)
			require.Error(t, err)
			var appErr *temporal.ApplicationError
			if errors.As(err, &appErr) {
				assert.False(t, appErr.NonRetryable())
			}

			got, err := jobs.GetByID(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.Contains(t, got.Error, "valkey write timeout")
			assert.Equal(t, tt.wantFailed, slices.Contains(events.types(), domain.EventFailed))
		})
	}
}

func TestRenderRoute_MissingInputsAreRejected(t *testing.T) {
	var s testsuite.WorkflowTestSuite
	env := s.NewTestActivityEnvironment()
	env.RegisterActivity(&RenderActivities{Render: renderService(route(3)), Inputs: newMemInputs()})

	_, err := env.ExecuteActivity("RenderRoute", input("gone", domain.RenderImage))
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr), "got %v", err)
	assert.True(t, appErr.NonRetryable())
}

func TestDiscardInputs(t *testing.T) {
	inputs := newMemInputs()
	in := input("job-5", domain.RenderImage)
	_ = inputs.Set(context.Background(), in.FitKey, []byte("FIT"), 0)

	a := &RenderActivities{Inputs: inputs}
	require.NoError(t, a.DiscardInputs(context.Background(), in))
	assert.Empty(t, inputs.data)
}

// ---- Dispatcher ----

func TestDispatcher_StagesAndStarts(t *testing.T) {
	inputs := newMemInputs()
	starter := &fakeStarter{}
	d := NewDispatcher(starter, inputs, "routecast-render", 0)

	job := &domain.RenderJob{ID: "j9", Kind: domain.RenderVideo, Format: domain.FormatGIF}
	cfg := domain.DefaultVideoConfig()
	require.NoError(t, d.Dispatch(context.Background(), job, domain.FormatGIF, cfg, []byte("FIT"), []byte("BG")))

	assert.Equal(t, "render-j9", starter.opts.ID)
	assert.Equal(t, "routecast-render", starter.opts.TaskQueue)
	assert.Equal(t, domain.FormatGIF, starter.input.Format)
	assert.Equal(t, cfg, starter.input.Config)

	fit, err := inputs.Get(context.Background(), starter.input.FitKey)
	require.NoError(t, err)
	assert.Equal(t, "FIT", string(fit))
}

func TestDispatcher_StartFailureRemovesInputs(t *testing.T) {
	inputs := newMemInputs()
	d := NewDispatcher(&fakeStarter{err: errors.New("temporal down")}, inputs, "q", 60)

	err := d.Dispatch(context.Background(), &domain.RenderJob{ID: "j1"}, "", domain.DefaultVideoConfig(), []byte("F"), []byte("B"))
	require.Error(t, err)
	assert.Empty(t, inputs.data)
}

func TestDispatcher_StageFailure(t *testing.T) {
	inputs := newMemInputs()
	inputs.fail = errors.New("valkey down")
	starter := &fakeStarter{}
	d := NewDispatcher(starter, inputs, "q", 60)

	err := d.Dispatch(context.Background(), &domain.RenderJob{ID: "j1"}, "", domain.DefaultVideoConfig(), []byte("F"), []byte("B"))
	require.ErrorContains(t, err, "stage activity")
	assert.Empty(t, starter.opts.ID, "workflow must not start")
}
