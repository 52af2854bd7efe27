package workflows

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/routecast/internal/core/domain"
	"github.com/samirrijal/routecast/internal/core/ports"
	"github.com/samirrijal/routecast/internal/core/usecases"
)

// RenderActivities holds the activity implementations for the render workflow.
type RenderActivities struct {
	Render *usecases.RenderService
	Inputs ports.CacheService
	// MaxAttempts matches the workflow's retry policy. Zero means
	// renderMaxAttempts.
	MaxAttempts int32
}

// RenderRoute loads the staged uploads and runs the job to completion.
func (a *RenderActivities) RenderRoute(ctx context.Context, input RenderInput) (*RenderOutput, error) {
	fit, err := a.Inputs.Get(ctx, input.FitKey)
	if err != nil {
		return nil, rejectMissing(fmt.Errorf("load activity %s: %w", input.FitKey, err))
	}
	bg, err := a.Inputs.Get(ctx, input.BackgroundKey)
	if err != nil {
		return nil, rejectMissing(fmt.Errorf("load background %s: %w", input.BackgroundKey, err))
	}

	attempt := activity.GetInfo(ctx).Attempt
	maxAttempts := a.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = renderMaxAttempts
	}
	activity.GetLogger(ctx).Info("rendering", "jobID", input.JobID, "attempt", attempt)

	res, err := a.Render.Render(ctx, usecases.RenderRequest{
		JobID:      input.JobID,
		Kind:       input.Kind,
		Format:     input.Format,
		Config:     input.Config,
		Activity:   bytes.NewReader(fit),
		Background: bytes.NewReader(bg),
		MayRetry:   attempt < maxAttempts,
	})
	if err != nil {
		if usecases.Rejected(err) {
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeRejected, err)
		}
		return nil, err
	}

	return &RenderOutput{
		ArtifactID: res.Artifact.ID,
		Frames:     res.Job.Frames,
		DurationMS: res.Job.DurationMS,
	}, nil
}

// DiscardInputs removes the staged uploads of a job.
func (a *RenderActivities) DiscardInputs(ctx context.Context, input RenderInput) error {
	for _, key := range []string{input.FitKey, input.BackgroundKey} {
		if err := a.Inputs.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}

// rejectMissing makes a missing staged upload final: it expired or was
// already discarded.
func rejectMissing(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeRejected, err)
	}
	return err
}
