package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/maritime-docflow/internal/core/domain"
)

const defaultListLimit = 20

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, job *domain.Job) error {
	var result []byte
	if job.Result != nil && len(job.Result.Raw) > 0 {
		result = job.Result.Raw
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO jobs (id, user_id, mode, filename, status, error_message, result, created_at, exported_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, job.ID, job.UserID, string(job.Mode), job.Filename, string(job.Status), job.Error, result, job.CreatedAt, job.ExportedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, user_id, mode, filename, status, error_message, result, created_at, exported_at
FROM jobs
WHERE id = $1
`, id)

	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get job", fmt.Errorf("job %s", id))
		}
		return nil, err
	}
	return &job, nil
}

func (r *JobRepository) MarkExported(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE jobs
SET exported_at = $2
WHERE id = $1
`, id, at)
	if err != nil {
		return fmt.Errorf("mark job exported: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark job exported rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "mark job exported", fmt.Errorf("job %s", id))
	}
	return nil
}

// ListRecent returns the user's jobs, newest first, without their results.
func (r *JobRepository) ListRecent(ctx context.Context, userID string, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, mode, filename, status, error_message, NULL::jsonb, created_at, exported_at
FROM jobs
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (domain.Job, error) {
	var (
		job        domain.Job
		mode       string
		status     string
		result     []byte
		exportedAt sql.NullTime
	)
	if err := row.Scan(&job.ID, &job.UserID, &mode, &job.Filename, &status, &job.Error, &result, &job.CreatedAt, &exportedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return job, err
		}
		return job, fmt.Errorf("scan job: %w", err)
	}
	job.Mode = domain.Mode(mode)
	job.Status = domain.JobStatus(status)
	if exportedAt.Valid {
		t := exportedAt.Time
		job.ExportedAt = &t
	}
	if len(result) > 0 {
		doc, err := domain.RestoreDocument(result)
		if err != nil {
			return job, fmt.Errorf("restore job %s result: %w", job.ID, err)
		}
		job.Result = doc
	}
	return job, nil
}
