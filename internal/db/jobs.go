package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/visara/reading-engine/internal/reading"
)

// Job statuses. Terminal statuses are final; the row is deleted once the
// caller has consumed the result.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Job is a persisted unit of asynchronous generation work.
type Job struct {
	ID           uuid.UUID
	Token        string
	SubjectID    uuid.UUID
	Kind         reading.Kind
	AccountID    *uuid.UUID
	Status       string
	Attempts     int
	ErrorCode    string
	ErrorMessage string
	ErrorData    []byte
	ReadingID    *uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Terminal reports whether the job reached a final status.
func (j *Job) Terminal() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}

const jobColumns = `id, token, subject_id, kind, account_id, status, attempts,
	error_code, error_message, error_data, reading_id, created_at, updated_at`

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.Token, &j.SubjectID, &j.Kind, &j.AccountID, &j.Status,
		&j.Attempts, &j.ErrorCode, &j.ErrorMessage, &j.ErrorData, &j.ReadingID,
		&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &j, nil
}

// CreateJobIfAbsent inserts a job unless a non-terminal job already exists
// for the same (subject, kind). The partial unique index on the natural key
// makes this the atomic insert-if-absent that gives create_job its
// idempotency without locking. Returns the winning job and whether this call
// created it.
func (db *DB) CreateJobIfAbsent(ctx context.Context, job *Job) (*Job, bool, error) {
	tag, err := db.pool.Exec(ctx,
		`INSERT INTO jobs (id, token, subject_id, kind, account_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (subject_id, kind) WHERE status IN ('queued', 'running') DO NOTHING`,
		job.ID, job.Token, job.SubjectID, job.Kind, job.AccountID, JobQueued,
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create job: %w", err)
	}

	if tag.RowsAffected() == 0 {
		existing, err := db.GetActiveJob(ctx, job.SubjectID, job.Kind)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			// The competing job went terminal between the insert and the
			// reread; retry once.
			return db.CreateJobIfAbsent(ctx, job)
		}
		return existing, false, nil
	}

	created, err := db.GetJob(ctx, job.ID)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// GetJob retrieves a job by id. Returns (nil, nil) when absent.
func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	job, err := scanJob(db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// GetActiveJob retrieves the non-terminal job for (subject, kind), if any.
func (db *DB) GetActiveJob(ctx context.Context, subjectID uuid.UUID, kind reading.Kind) (*Job, error) {
	job, err := scanJob(db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE subject_id = $1 AND kind = $2 AND status IN ('queued', 'running')`,
		subjectID, kind))
	if err != nil {
		return nil, fmt.Errorf("failed to get active job: %w", err)
	}
	return job, nil
}

// MarkJobRunning transitions a queued or running job to running and bumps
// the attempt counter.
func (db *DB) MarkJobRunning(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, attempts = attempts + 1, updated_at = NOW()
		 WHERE id = $2 AND status IN ('queued', 'running')`,
		JobRunning, id)
	if err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}
	return nil
}

// CompleteJob transitions a job to completed with its resulting reading.
func (db *DB) CompleteJob(ctx context.Context, id, readingID uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, reading_id = $2, updated_at = NOW() WHERE id = $3`,
		JobCompleted, readingID, id)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}

// FailJob transitions a job to failed, recording the error taxonomy.
func (db *DB) FailJob(ctx context.Context, id uuid.UUID, code, message string, data []byte) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, error_code = $2, error_message = $3, error_data = $4, updated_at = NOW()
		 WHERE id = $5`,
		JobFailed, code, message, data, id)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}
	return nil
}

// DeleteJob removes a terminal job after its result has been consumed.
func (db *DB) DeleteJob(ctx context.Context, id uuid.UUID) error {
	if _, err := db.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return nil
}
