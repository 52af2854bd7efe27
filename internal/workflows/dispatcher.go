package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"

	"github.com/samirrijal/routecast/internal/core/domain"
	"github.com/samirrijal/routecast/internal/core/ports"
)

// WorkflowStarter is the part of client.Client the dispatcher uses.
type WorkflowStarter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
}

// Dispatcher stages uploads in the input store and starts a
// RenderWorkflow for an enqueued job.
type Dispatcher struct {
	starter   WorkflowStarter
	inputs    ports.CacheService
	taskQueue string
	inputTTL  int
}

// NewDispatcher creates a Dispatcher. inputTTL is in seconds.
func NewDispatcher(starter WorkflowStarter, inputs ports.CacheService, taskQueue string, inputTTL int) *Dispatcher {
	if inputTTL <= 0 {
		inputTTL = 3600
	}
	return &Dispatcher{starter: starter, inputs: inputs, taskQueue: taskQueue, inputTTL: inputTTL}
}

// InputKeys returns the store keys of a job's staged uploads.
func InputKeys(jobID string) (fit, background string) {
	return "render:input:" + jobID + ":fit", "render:input:" + jobID + ":background"
}

// WorkflowID is the workflow ID of a job's render.
func WorkflowID(jobID string) string { return "render-" + jobID }

// Dispatch implements the HTTP layer's RenderDispatcher. format is the
// requested format and may be empty.
func (d *Dispatcher) Dispatch(ctx context.Context, job *domain.RenderJob, format domain.OutputFormat, cfg domain.RenderConfig, fit, background []byte) error {
	fitKey, bgKey := InputKeys(job.ID)
	if err := d.inputs.Set(ctx, fitKey, fit, d.inputTTL); err != nil {
		return fmt.Errorf("stage activity: %w", err)
	}
	if err := d.inputs.Set(ctx, bgKey, background, d.inputTTL); err != nil {
		_ = d.inputs.Delete(ctx, fitKey)
		return fmt.Errorf("stage background: %w", err)
	}

	_, err := d.starter.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        WorkflowID(job.ID),
		TaskQueue: d.taskQueue,
	}, RenderWorkflow, RenderInput{
		JobID:         job.ID,
		Kind:          job.Kind,
		Format:        format,
		Config:        cfg,
		FitKey:        fitKey,
		BackgroundKey: bgKey,
	})
	if err != nil {
		_ = d.inputs.Delete(ctx, fitKey)
		_ = d.inputs.Delete(ctx, bgKey)
		return fmt.Errorf("start render workflow: %w", err)
	}
	return nil
}
