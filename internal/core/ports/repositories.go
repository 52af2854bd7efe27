package ports

import (
	"context"

	"github.com/samirrijal/routecast/internal/core/domain"
)

// JobRepository persists render job history.
type JobRepository interface {
	Create(ctx context.Context, job *domain.RenderJob) error
	Update(ctx context.Context, job *domain.RenderJob) error
	GetByID(ctx context.Context, id string) (*domain.RenderJob, error)
	List(ctx context.Context, limit, offset int) ([]domain.RenderJob, error)
}

// ArtifactStore holds finished renders until their single download.
// Take must return each artifact at most once.
type ArtifactStore interface {
	Put(ctx context.Context, a *domain.Artifact) error
	Take(ctx context.Context, id string) (*domain.Artifact, error)
	Delete(ctx context.Context, id string) error
}
