package usecases

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/routecast/internal/core/domain"
	"github.com/samirrijal/routecast/internal/core/ports"
	"github.com/samirrijal/routecast/internal/core/render"
	"github.com/samirrijal/routecast/internal/pkg/metrics"
	"github.com/samirrijal/routecast/internal/pkg/telemetry"
)

// RenderRequest is one render invocation. Activity is the raw FIT file and
// Background the raster the route is drawn on.
type RenderRequest struct {
	// JobID reuses a job created by Enqueue. Empty creates a new job.
	JobID string
	Kind  domain.RenderKind
	// Format empty picks the kind's default, or frames for videos of
	// more than StreamAbovePoints points.
	Format     domain.OutputFormat
	Config     domain.RenderConfig
	Activity   io.Reader
	Background io.Reader
	// MayRetry leaves a failed job running when the failure is not
	// Rejected, so the caller can try again.
	MayRetry bool
}

// RenderResult describes a finished render.
type RenderResult struct {
	Job      *domain.RenderJob
	Artifact *domain.Artifact
}

// RenderOptions tunes the render pipeline.
type RenderOptions struct {
	MaxBackgroundSide int
	FPSDivisor        int
	// StreamAbovePoints switches videos without an explicit format to
	// frames above this many points. Zero disables the switch.
	StreamAbovePoints int
}

// RenderService runs render jobs end to end.
type RenderService struct {
	decoder     ports.ActivityDecoder
	backgrounds ports.BackgroundLoader
	canvas      ports.CanvasFactory
	sinks       ports.SinkFactory
	artifacts   ports.ArtifactStore
	jobs        ports.JobRepository
	publisher   ports.EventPublisher
	opts        RenderOptions
	logger      *slog.Logger
	now         func() time.Time
}

// NewRenderService creates a new RenderService. jobs and publisher may be nil.
func NewRenderService(
	decoder ports.ActivityDecoder,
	backgrounds ports.BackgroundLoader,
	canvas ports.CanvasFactory,
	sinks ports.SinkFactory,
	artifacts ports.ArtifactStore,
	jobs ports.JobRepository,
	publisher ports.EventPublisher,
	opts RenderOptions,
	logger *slog.Logger,
) *RenderService {
	if opts.MaxBackgroundSide <= 0 {
		opts.MaxBackgroundSide = domain.DefaultMaxSide
	}
	if opts.FPSDivisor <= 0 {
		opts.FPSDivisor = domain.DefaultFPSDivisor
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RenderService{
		decoder:     decoder,
		backgrounds: backgrounds,
		canvas:      canvas,
		sinks:       sinks,
		artifacts:   artifacts,
		jobs:        jobs,
		publisher:   publisher,
		opts:        opts,
		logger:      logger,
		now:         time.Now,
	}
}

// ResolveConfig builds the config for a request: the kind's base config
// (or a named preset for video), overlaid with optional JSON.
func ResolveConfig(kind domain.RenderKind, preset string, override []byte) (domain.RenderConfig, error) {
	var base domain.RenderConfig
	switch {
	case preset != "":
		cfg, err := domain.PresetConfig(domain.Preset(preset))
		if err != nil {
			return domain.RenderConfig{}, err
		}
		base = cfg
	case kind == domain.RenderImage:
		base = domain.DefaultImageConfig()
	default:
		base = domain.DefaultVideoConfig()
	}
	if len(bytes.TrimSpace(override)) == 0 {
		return base, base.Validate()
	}
	cfg, err := domain.DecodeRenderConfig(base, override)
	if err != nil {
		return domain.RenderConfig{}, err
	}
	return cfg, cfg.Validate()
}

func (s *RenderService) checkFormat(kind domain.RenderKind, format domain.OutputFormat) (domain.OutputFormat, error) {
	if format == "" {
		format = kind.DefaultFormat()
	}
	if !kind.Supports(format) {
		return "", fmt.Errorf("%w: %s cannot be rendered as %q", domain.ErrUnsupportedFormat, kind, format)
	}
	return format, nil
}

// Enqueue records a pending job for a render that runs later.
func (s *RenderService) Enqueue(ctx context.Context, kind domain.RenderKind, format domain.OutputFormat) (*domain.RenderJob, error) {
	format, err := s.checkFormat(kind, format)
	if err != nil {
		return nil, err
	}
	job := &domain.RenderJob{
		ID:        uuid.NewString(),
		Kind:      kind,
		Format:    format,
		Status:    domain.JobPending,
		CreatedAt: s.now().UTC(),
	}
	if s.jobs != nil {
		if err := s.jobs.Create(ctx, job); err != nil {
			return nil, fmt.Errorf("create job: %w", err)
		}
	}
	return job, nil
}

// Render runs the request to completion and stores the artifact for a
// single download.
func (s *RenderService) Render(ctx context.Context, req RenderRequest) (*RenderResult, error) {
	format, err := s.checkFormat(req.Kind, req.Format)
	if err != nil {
		return nil, err
	}

	spanName := telemetry.SpanRenderImage
	if req.Kind == domain.RenderVideo {
		spanName = telemetry.SpanRenderVideo
	}
	ctx, span := telemetry.StartSpan(ctx, spanName, attribute.String("format", string(format)))
	defer span.End()

	job, err := s.startJob(ctx, req, format)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("job_id", job.ID))
	logger := s.logger.With("job_id", job.ID, "kind", job.Kind, "format", job.Format)
	logger.Info("render started")

	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	start := s.now()
	artifact, err := s.run(ctx, job, req, logger)
	elapsed := s.now().Sub(start)
	job.DurationMS = elapsed.Milliseconds()
	finished := s.now().UTC()
	job.FinishedAt = &finished
	metrics.JobDuration.WithLabelValues(string(job.Kind)).Observe(elapsed.Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if req.MayRetry && !Rejected(err) && !errors.Is(err, context.Canceled) {
			job.Error = err.Error()
			job.FinishedAt = nil
			s.saveJob(ctx, job, logger)
			logger.Warn("render attempt failed", "error", err, "duration", elapsed)
			return nil, err
		}
		s.fail(ctx, job, err, logger)
		logger.Error("render failed", "error", err, "duration", elapsed)
		return nil, err
	}

	job.Status = domain.JobSucceeded
	job.ArtifactID = artifact.ID
	s.saveJob(ctx, job, logger)
	s.publish(ctx, &domain.JobEvent{
		JobID: job.ID, Type: domain.EventCompleted, Kind: job.Kind,
		Frame: job.Frames, Total: job.Frames, ArtifactID: artifact.ID,
	})
	metrics.JobsTotal.WithLabelValues(string(job.Kind), string(job.Status)).Inc()
	logger.Info("render finished", "frames", job.Frames, "duration", elapsed, "bytes", len(artifact.Data))

	return &RenderResult{Job: job, Artifact: artifact}, nil
}

// Fail marks a job that could not be run as failed.
func (s *RenderService) Fail(ctx context.Context, job *domain.RenderJob, cause error) {
	finished := s.now().UTC()
	job.FinishedAt = &finished
	logger := s.logger.With("job_id", job.ID, "kind", job.Kind, "format", job.Format)
	s.fail(ctx, job, cause, logger)
	logger.Error("job failed", "error", cause)
}

func (s *RenderService) fail(ctx context.Context, job *domain.RenderJob, cause error, logger *slog.Logger) {
	job.Status = domain.JobFailed
	job.Error = cause.Error()
	s.saveJob(ctx, job, logger)
	s.publish(ctx, &domain.JobEvent{JobID: job.ID, Type: domain.EventFailed, Kind: job.Kind, Error: job.Error})
	metrics.JobsTotal.WithLabelValues(string(job.Kind), string(job.Status)).Inc()
}

// Rejected reports whether err comes from the request itself, so running
// it again cannot help.
func Rejected(err error) bool {
	return errors.Is(err, domain.ErrInvalidConfig) ||
		errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrUnsupportedFormat) ||
		errors.Is(err, domain.ErrEmptyRoute) ||
		errors.Is(err, domain.ErrDegenerateBoundingBox)
}

func (s *RenderService) startJob(ctx context.Context, req RenderRequest, format domain.OutputFormat) (*domain.RenderJob, error) {
	if req.JobID != "" && s.jobs != nil {
		job, err := s.jobs.GetByID(ctx, req.JobID)
		if err != nil {
			return nil, fmt.Errorf("load job: %w", err)
		}
		job.Status = domain.JobRunning
		job.Error = ""
		if err := s.jobs.Update(ctx, job); err != nil {
			return nil, fmt.Errorf("update job: %w", err)
		}
		s.publish(ctx, &domain.JobEvent{JobID: job.ID, Type: domain.EventStarted, Kind: job.Kind})
		return job, nil
	}

	job := &domain.RenderJob{
		ID:        req.JobID,
		Kind:      req.Kind,
		Format:    format,
		Status:    domain.JobRunning,
		CreatedAt: s.now().UTC(),
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if s.jobs != nil {
		if err := s.jobs.Create(ctx, job); err != nil {
			return nil, fmt.Errorf("create job: %w", err)
		}
	}
	s.publish(ctx, &domain.JobEvent{JobID: job.ID, Type: domain.EventStarted, Kind: job.Kind})
	return job, nil
}

func (s *RenderService) run(ctx context.Context, job *domain.RenderJob, req RenderRequest, logger *slog.Logger) (*domain.Artifact, error) {
	if req.Activity == nil {
		return nil, fmt.Errorf("%w: activity file is required", domain.ErrInvalidInput)
	}
	if req.Background == nil {
		return nil, fmt.Errorf("%w: background image is required", domain.ErrInvalidInput)
	}

	dctx, span := telemetry.StartSpan(ctx, telemetry.SpanDecode)
	act, err := s.decoder.Decode(dctx, req.Activity)
	span.End()
	if err != nil {
		return nil, fmt.Errorf("%w: decode activity: %w", domain.ErrInvalidInput, err)
	}
	job.Points = len(act.Samples)
	job.Laps = len(act.Laps)
	if req.Format == "" && job.Kind == domain.RenderVideo &&
		s.opts.StreamAbovePoints > 0 && job.Points > s.opts.StreamAbovePoints {
		job.Format = domain.FormatFrameStream
		logger.Info("streaming frames for a long route", "points", job.Points, "limit", s.opts.StreamAbovePoints)
	}

	bg, err := s.backgrounds.Load(ctx, req.Background, s.opts.MaxBackgroundSide)
	if err != nil {
		return nil, fmt.Errorf("%w: load background: %w", domain.ErrInvalidInput, err)
	}

	var buf bytes.Buffer
	fps := render.FrameRate(len(act.Samples), s.opts.FPSDivisor)
	sink, err := s.sinks.NewSink(job.Format, &buf, fps)
	if err != nil {
		return nil, err
	}

	kind := string(job.Kind)
	hook := func(idx, total int) {
		job.Frames = idx + 1
		metrics.FramesRendered.WithLabelValues(kind).Inc()
		if job.Kind == domain.RenderVideo && (idx%render.ProgressInterval == 0 || idx == total-1) {
			s.publish(ctx, &domain.JobEvent{JobID: job.ID, Type: domain.EventProgress, Kind: job.Kind, Frame: idx + 1, Total: total})
		}
	}
	driver, err := render.NewDriver(req.Config, act, bg, s.canvas, sink,
		render.WithLogger(logger), render.WithFrameHook(hook))
	if err != nil {
		sink.Abort()
		return nil, err
	}

	_, pspan := telemetry.StartSpan(ctx, telemetry.SpanProject, attribute.Int("points", len(act.Samples)))
	err = driver.Project()
	pspan.End()
	if err != nil {
		return nil, err
	}

	if job.Kind == domain.RenderVideo {
		err = driver.RenderProgressive(ctx)
	} else {
		err = driver.RenderStatic()
	}
	if err != nil {
		return nil, err
	}

	artifact := &domain.Artifact{
		ID:          uuid.NewString(),
		JobID:       job.ID,
		ContentType: s.sinks.ContentType(job.Format),
		Filename:    fmt.Sprintf("route_%s.%s", job.ID[:min(8, len(job.ID))], s.sinks.Extension(job.Format)),
		Data:        buf.Bytes(),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.artifacts.Put(ctx, artifact); err != nil {
		return nil, fmt.Errorf("store artifact: %w", err)
	}
	metrics.ArtifactsStored.Inc()
	return artifact, nil
}

func (s *RenderService) saveJob(ctx context.Context, job *domain.RenderJob, logger *slog.Logger) {
	if s.jobs == nil {
		return
	}
	// The request context may already be cancelled when a render is aborted.
	if err := s.jobs.Update(context.WithoutCancel(ctx), job); err != nil {
		logger.Warn("persist job failed", "error", err)
	}
}

func (s *RenderService) publish(ctx context.Context, ev *domain.JobEvent) {
	if s.publisher == nil {
		return
	}
	ev.Time = s.now().UTC()
	if err := s.publisher.PublishJobEvent(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Debug("publish job event failed", "job_id", ev.JobID, "type", ev.Type, "error", err)
	}
}

// Download returns a stored artifact and removes it. A second download of
// the same ID returns domain.ErrNotFound.
func (s *RenderService) Download(ctx context.Context, id string) (*domain.Artifact, error) {
	a, err := s.artifacts.Take(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.ArtifactDownloads.WithLabelValues("missing").Inc()
		} else {
			metrics.ArtifactDownloads.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	metrics.ArtifactDownloads.WithLabelValues("ok").Inc()
	return a, nil
}

// GetJob returns a job by ID.
func (s *RenderService) GetJob(ctx context.Context, id string) (*domain.RenderJob, error) {
	if s.jobs == nil {
		return nil, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	return s.jobs.GetByID(ctx, id)
}

// ListJobs returns jobs newest first.
func (s *RenderService) ListJobs(ctx context.Context, limit, offset int) ([]domain.RenderJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if s.jobs == nil {
		return nil, nil
	}
	return s.jobs.List(ctx, limit, offset)
}
