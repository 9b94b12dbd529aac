package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository backed by PostgreSQL.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts the job and its units in one transaction.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin job tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
INSERT INTO batch_jobs (id, user_id, kind, cost_per_unit, status)
VALUES ($1, $2, $3, $4, $5);
`, job.ID, job.UserID, job.Kind, job.CostPerUnit, job.Status)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}

	for _, u := range job.Units {
		_, err = tx.Exec(ctx, `
INSERT INTO batch_units (job_id, position, ref, cost, status)
VALUES ($1, $2, $3, $4, $5);
`, job.ID, u.Position, u.Ref, u.Cost, u.Status)
		if err != nil {
			return fmt.Errorf("insert unit %d: %w", u.Position, err)
		}
	}

	return tx.Commit(ctx)
}

// GetByID fetches a job and its units, units ordered by position.
func (r *JobRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, user_id, kind, cost_per_unit, status, created_at, updated_at
FROM batch_jobs
WHERE id = $1;
`, id)

	var job domain.Job
	if err := row.Scan(&job.ID, &job.UserID, &job.Kind, &job.CostPerUnit, &job.Status, &job.CreatedAt, &job.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
SELECT position, ref, cost, status, COALESCE(failure_code, ''), COALESCE(error_message, '')
FROM batch_units
WHERE job_id = $1
ORDER BY position;
`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var u domain.Unit
		if err := rows.Scan(&u.Position, &u.Ref, &u.Cost, &u.Status, &u.FailureCode, &u.ErrorMessage); err != nil {
			return nil, err
		}
		job.Units = append(job.Units, u)
	}
	return &job, rows.Err()
}

// UpdateStatus updates the stored job status.
func (r *JobRepositoryPG) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE batch_jobs SET status = $2, updated_at = NOW() WHERE id = $1`, jobID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateUnit records a unit's state transition.
func (r *JobRepositoryPG) UpdateUnit(ctx context.Context, jobID string, position int, status domain.UnitStatus, failureCode, errMsg string) error {
	tag, err := r.pool.Exec(ctx, `
UPDATE batch_units
SET status = $3,
    failure_code = NULLIF($4, ''),
    error_message = NULLIF($5, '')
WHERE job_id = $1 AND position = $2;
`, jobID, position, status, failureCode, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
