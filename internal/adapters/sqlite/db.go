// Package sqlite keeps render job history in a local SQLite file for the
// command-line renderer.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/samirrijal/routecast/internal/core/domain"
	"github.com/samirrijal/routecast/migrations"
)

// DB is a migrated SQLite database implementing ports.JobRepository.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies migrations.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	out := &DB{db: db}
	if err := out.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return out, nil
}

func (d *DB) migrateUp() error {
	src, err := iofs.New(migrations.SQLite, "sqlite")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(d.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	// m.Close would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Close closes the database.
func (d *DB) Close() error { return d.db.Close() }

// Fixed width so TEXT ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (d *DB) Create(ctx context.Context, job *domain.RenderJob) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO render_jobs (id, kind, format, status, points, laps, frames, artifact_id, error, duration_ms, created_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, string(job.Kind), string(job.Format), string(job.Status), job.Points, job.Laps, job.Frames,
		nullString(job.ArtifactID), nullString(job.Error), job.DurationMS, formatTime(&job.CreatedAt), formatTime(job.FinishedAt))
	if err != nil {
		return fmt.Errorf("insert render job: %w", err)
	}
	return nil
}

func (d *DB) Update(ctx context.Context, job *domain.RenderJob) error {
	res, err := d.db.ExecContext(ctx, `
		UPDATE render_jobs
		SET status = ?, points = ?, laps = ?, frames = ?, artifact_id = ?, error = ?, duration_ms = ?, finished_at = ?, format = ?
		WHERE id = ?
	`, string(job.Status), job.Points, job.Laps, job.Frames, nullString(job.ArtifactID), nullString(job.Error),
		job.DurationMS, formatTime(job.FinishedAt), string(job.Format), job.ID)
	if err != nil {
		return fmt.Errorf("update render job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("render job %s: %w", job.ID, domain.ErrNotFound)
	}
	return nil
}

const jobColumns = `id, kind, format, status, points, laps, frames,
	COALESCE(artifact_id, ''), COALESCE(error, ''), duration_ms, created_at, finished_at`

func (d *DB) GetByID(ctx context.Context, id string) (*domain.RenderJob, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM render_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("render job %s: %w", id, domain.ErrNotFound)
	}
	return job, err
}

func (d *DB) List(ctx context.Context, limit, offset int) ([]domain.RenderJob, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM render_jobs
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
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

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*domain.RenderJob, error) {
	var (
		j          domain.RenderJob
		kind       string
		format     string
		status     string
		createdAt  string
		finishedAt sql.NullString
	)
	if err := row.Scan(&j.ID, &kind, &format, &status, &j.Points, &j.Laps, &j.Frames,
		&j.ArtifactID, &j.Error, &j.DurationMS, &createdAt, &finishedAt); err != nil {
		return nil, err
	}
	j.Kind = domain.RenderKind(kind)
	j.Format = domain.OutputFormat(format)
	j.Status = domain.JobStatus(status)

	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	j.CreatedAt = t
	if finishedAt.Valid {
		t, err := time.Parse(timeLayout, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		j.FinishedAt = &t
	}
	return &j, nil
}
