package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/routecast/internal/core/domain"
	"github.com/samirrijal/routecast/internal/core/usecases"
)

// Multipart field names of a render upload.
const (
	fieldFit        = "fit_file"
	fieldBackground = "background"
	fieldConfig     = "config"
	fieldPreset     = "preset"
	fieldFormat     = "format"
	fieldAsync      = "async"
)

// RenderResponse describes a finished or accepted render.
type RenderResponse struct {
	Success          bool             `json:"success"`
	Message          string           `json:"message"`
	JobID            string           `json:"job_id"`
	Status           domain.JobStatus `json:"status"`
	StatusURL        string           `json:"status_url"`
	ArtifactID       string           `json:"artifact_id,omitempty"`
	DownloadURL      string           `json:"download_url,omitempty"`
	Filename         string           `json:"filename,omitempty"`
	ContentType      string           `json:"content_type,omitempty"`
	Points           int              `json:"points,omitempty"`
	Frames           int              `json:"frames,omitempty"`
	GenerationTimeMS int64            `json:"generation_time_ms"`
}

type upload struct {
	fit        []byte
	background []byte
	cfg        domain.RenderConfig
	format     domain.OutputFormat
	async      bool
}

// formValue reads a multipart field, falling back to the query string.
func formValue(c *fiber.Ctx, key string) string {
	if v := c.FormValue(key); v != "" {
		return v
	}
	return c.Query(key)
}

func readFormFile(c *fiber.Ctx, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("%s is required", field)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", field, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s is empty", field)
	}
	return data, nil
}

func parseUpload(c *fiber.Ctx, kind domain.RenderKind, defaultPreset string) (*upload, error) {
	fit, err := readFormFile(c, fieldFit)
	if err != nil {
		return nil, err
	}
	bg, err := readFormFile(c, fieldBackground)
	if err != nil {
		return nil, err
	}

	preset := formValue(c, fieldPreset)
	if preset == "" && kind == domain.RenderVideo {
		preset = defaultPreset
	}
	cfg, err := usecases.ResolveConfig(kind, preset, []byte(c.FormValue(fieldConfig)))
	if err != nil {
		return nil, err
	}

	async := false
	if v := formValue(c, fieldAsync); v != "" {
		if async, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("async must be a boolean, got %q", v)
		}
	}

	return &upload{
		fit:        fit,
		background: bg,
		cfg:        cfg,
		format:     domain.OutputFormat(formValue(c, fieldFormat)),
		async:      async,
	}, nil
}

// RenderHandler renders an uploaded activity onto an uploaded background.
// Synchronous renders answer with a one-time download URL; async renders
// answer 202 with the job to poll.
func RenderHandler(deps *Dependencies, kind domain.RenderKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		up, err := parseUpload(c, kind, deps.DefaultPreset)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		ctx := c.UserContext()
		if up.async {
			return renderAsync(c, ctx, deps, kind, up)
		}

		res, err := deps.Render.Render(ctx, usecases.RenderRequest{
			Kind:       kind,
			Format:     up.format,
			Config:     up.cfg,
			Activity:   bytes.NewReader(up.fit),
			Background: bytes.NewReader(up.background),
		})
		if err != nil {
			return errFrom(c, err)
		}

		return c.JSON(RenderResponse{
			Success:          true,
			Message:          fmt.Sprintf("%s generated successfully", kindNoun(kind)),
			JobID:            res.Job.ID,
			Status:           res.Job.Status,
			StatusURL:        "/v1/jobs/" + res.Job.ID,
			ArtifactID:       res.Artifact.ID,
			DownloadURL:      "/v1/downloads/" + res.Artifact.ID,
			Filename:         res.Artifact.Filename,
			ContentType:      res.Artifact.ContentType,
			Points:           res.Job.Points,
			Frames:           res.Job.Frames,
			GenerationTimeMS: res.Job.DurationMS,
		})
	}
}

func renderAsync(c *fiber.Ctx, ctx context.Context, deps *Dependencies, kind domain.RenderKind, up *upload) error {
	if deps.Dispatcher == nil {
		return errUnavailable(c, "async rendering is not enabled")
	}
	job, err := deps.Render.Enqueue(ctx, kind, up.format)
	if err != nil {
		return errFrom(c, err)
	}
	if err := deps.Dispatcher.Dispatch(ctx, job, up.format, up.cfg, up.fit, up.background); err != nil {
		LoggerFromCtx(ctx).Error("dispatch render failed", "job_id", job.ID, "error", err)
		deps.Render.Fail(ctx, job, fmt.Errorf("schedule render: %w", err))
		return errInternal(c, "could not schedule render")
	}
	return c.Status(fiber.StatusAccepted).JSON(RenderResponse{
		Success:   true,
		Message:   fmt.Sprintf("%s render accepted", kind),
		JobID:     job.ID,
		Status:    job.Status,
		StatusURL: "/v1/jobs/" + job.ID,
	})
}

func kindNoun(kind domain.RenderKind) string {
	if kind == domain.RenderVideo {
		return "Video"
	}
	return "Image"
}

// DownloadHandler streams an artifact once and forgets it.
func DownloadHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "id is required")
		}
		a, err := deps.Render.Download(c.UserContext(), id)
		if err != nil {
			return errFrom(c, fmt.Errorf("artifact %s: %w", id, err))
		}
		c.Set(fiber.HeaderContentType, a.ContentType)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, a.Filename))
		return c.Send(a.Data)
	}
}

// ListJobsHandler returns the render history newest first.
func ListJobsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset, limit := pageParams(c, 20, 50)

		jobs, err := deps.Render.ListJobs(c.UserContext(), limit+1, offset)
		if err != nil {
			return errFrom(c, err)
		}
		pg := Pagination{Offset: offset, Limit: limit, HasMore: len(jobs) > limit}
		if pg.HasMore {
			jobs = jobs[:limit]
		}
		if jobs == nil {
			jobs = []domain.RenderJob{}
		}

		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: jobs, Pagination: pg})
	}
}

// GetJobHandler returns one render job.
func GetJobHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		job, err := deps.Render.GetJob(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(job)
	}
}
