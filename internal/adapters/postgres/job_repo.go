package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/routecast/internal/core/domain"
)

// JobRepo implements ports.JobRepository.
type JobRepo struct {
	db *DB
}

func NewJobRepo(db *DB) *JobRepo {
	return &JobRepo{db: db}
}

const jobColumns = `id::text, kind, format, status, points, laps, frames,
	COALESCE(artifact_id, ''), COALESCE(error, ''), duration_ms, created_at, finished_at`

func (r *JobRepo) Create(ctx context.Context, job *domain.RenderJob) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO render_jobs (id, kind, format, status, points, laps, frames, artifact_id, error, duration_ms, created_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11, $12)
	`, job.ID, job.Kind, job.Format, job.Status, job.Points, job.Laps, job.Frames,
		job.ArtifactID, job.Error, job.DurationMS, job.CreatedAt, job.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert render job: %w", err)
	}
	return nil
}

func (r *JobRepo) Update(ctx context.Context, job *domain.RenderJob) error {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE render_jobs
		SET status = $2, points = $3, laps = $4, frames = $5,
		    artifact_id = NULLIF($6, ''), error = NULLIF($7, ''),
		    duration_ms = $8, finished_at = $9, format = $10
		WHERE id = $1
	`, job.ID, job.Status, job.Points, job.Laps, job.Frames,
		job.ArtifactID, job.Error, job.DurationMS, job.FinishedAt, job.Format)
	if err != nil {
		return fmt.Errorf("update render job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("render job %s: %w", job.ID, domain.ErrNotFound)
	}
	return nil
}

func (r *JobRepo) GetByID(ctx context.Context, id string) (*domain.RenderJob, error) {
	row := r.db.Pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM render_jobs WHERE id::text = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("render job %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *JobRepo) List(ctx context.Context, limit, offset int) ([]domain.RenderJob, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM render_jobs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.RenderJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanJob(row pgx.Row) (*domain.RenderJob, error) {
	var j domain.RenderJob
	err := row.Scan(&j.ID, &j.Kind, &j.Format, &j.Status, &j.Points, &j.Laps, &j.Frames,
		&j.ArtifactID, &j.Error, &j.DurationMS, &j.CreatedAt, &j.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}
