package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/routecast/internal/core/domain"
)

// ErrTypeRejected marks render failures that no retry can fix.
const ErrTypeRejected = "RenderRejected"

const renderMaxAttempts = 3

// RenderInput is the input of the render workflow. The uploads travel
// through the input store, not the workflow history.
type RenderInput struct {
	JobID         string
	Kind          domain.RenderKind
	Format        domain.OutputFormat
	Config        domain.RenderConfig
	FitKey        string
	BackgroundKey string
}

// RenderOutput is the result of a finished render.
type RenderOutput struct {
	ArtifactID string
	Frames     int
	DurationMS int64
}

// RenderWorkflow renders one enqueued job on a worker, then discards the
// staged uploads whether or not the render succeeded.
func RenderWorkflow(ctx workflow.Context, input RenderInput) (*RenderOutput, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting render workflow", "jobID", input.JobID, "kind", input.Kind)

	renderCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        5 * time.Second,
			MaximumAttempts:        renderMaxAttempts,
			NonRetryableErrorTypes: []string{ErrTypeRejected},
		},
	})

	var out RenderOutput
	err := workflow.ExecuteActivity(renderCtx, "RenderRoute", input).Get(ctx, &out)

	cleanupCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})
	if cerr := workflow.ExecuteActivity(cleanupCtx, "DiscardInputs", input).Get(ctx, nil); cerr != nil {
		logger.Warn("discarding staged inputs failed", "jobID", input.JobID, "error", cerr)
	}

	if err != nil {
		logger.Error("Render failed", "jobID", input.JobID, "error", err)
		return nil, err
	}

	logger.Info("Render finished", "jobID", input.JobID, "artifactID", out.ArtifactID, "frames", out.Frames)
	return &out, nil
}
