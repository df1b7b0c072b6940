package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/davidolu/vision-worker/constants"
	"github.com/davidolu/vision-worker/internal/common"
	"github.com/davidolu/vision-worker/internal/entity"
)

// Completion carries everything a successful attempt writes back.
type Completion struct {
	ResultURL             string
	Detections            entity.DetectionList
	ProcessingTimeSeconds float64
	Now                   time.Time
}

// Failure carries everything a failed attempt writes back. RetryCount is the
// value the caller computed from the row it read at the start of the attempt.
type Failure struct {
	Message               string
	RetryCount            int
	ProcessingTimeSeconds float64
	Now                   time.Time
}

type JobRepository interface {
	Insert(ctx context.Context, job *entity.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	ListByStatus(ctx context.Context, status constants.JobStatus) ([]entity.Job, error)
	// MarkProcessing claims a job for one attempt. The update is guarded on the
	// previously-observed status so a future concurrent runner gets
	// at-most-one-claim; a missed guard returns common.ErrNotFound.
	MarkProcessing(ctx context.Context, id uuid.UUID, prev constants.JobStatus, now time.Time) error
	MarkCompleted(ctx context.Context, id uuid.UUID, res Completion) error
	MarkFailed(ctx context.Context, id uuid.UUID, res Failure) error
	MarkAbandoned(ctx context.Context, id uuid.UUID, now time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type jobRepo struct {
	db  *sqlx.DB
	log *slog.Logger
}

func NewJobRepository(db *sqlx.DB, log *slog.Logger) JobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &jobRepo{db: db, log: log}
}

const jobColumns = `id, filename, source_url, status, processed, result_url, detections,
	error_message, retry_count, processing_time_seconds, created_at, updated_at, processed_at`

func (r *jobRepo) Insert(ctx context.Context, job *entity.Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = constants.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	q := r.db.Rebind(`INSERT INTO vision_jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q,
		job.ID, job.Filename, job.SourceURL, job.Status, job.Processed,
		job.ResultURL, job.Detections, job.ErrorMessage, job.RetryCount,
		job.ProcessingTimeSeconds, job.CreatedAt, job.UpdatedAt, job.ProcessedAt)
	if err != nil {
		r.log.Error("job insert failed", "job_id", job.ID, "err", err)
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *jobRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	var job entity.Job
	q := r.db.Rebind(`SELECT ` + jobColumns + ` FROM vision_jobs WHERE id = ?`)
	if err := r.db.GetContext(ctx, &job, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return &job, nil
}

func (r *jobRepo) ListByStatus(ctx context.Context, status constants.JobStatus) ([]entity.Job, error) {
	var jobs []entity.Job
	q := r.db.Rebind(`SELECT ` + jobColumns + ` FROM vision_jobs
		WHERE status = ? ORDER BY created_at`)
	if err := r.db.SelectContext(ctx, &jobs, q, status); err != nil {
		r.log.Error("job list failed", "status", status, "err", err)
		return nil, fmt.Errorf("list jobs by status %s: %w", status, err)
	}
	return jobs, nil
}

func (r *jobRepo) MarkProcessing(ctx context.Context, id uuid.UUID, prev constants.JobStatus, now time.Time) error {
	q := r.db.Rebind(`UPDATE vision_jobs
		SET status = ?, processed = ?, updated_at = ?
		WHERE id = ? AND status = ?`)
	res, err := r.db.ExecContext(ctx, q, constants.JobStatusProcessing, false, now, id, prev)
	if err != nil {
		r.log.Error("job claim failed", "job_id", id, "err", err)
		return fmt.Errorf("mark processing: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrNotFound
	}
	r.log.Info("job claimed", "job_id", id, "from", prev)
	return nil
}

func (r *jobRepo) MarkCompleted(ctx context.Context, id uuid.UUID, res Completion) error {
	q := r.db.Rebind(`UPDATE vision_jobs
		SET status = ?, processed = ?, result_url = ?, detections = ?,
			error_message = NULL, retry_count = 0, processing_time_seconds = ?,
			updated_at = ?, processed_at = ?
		WHERE id = ?`)
	_, err := r.db.ExecContext(ctx, q,
		constants.JobStatusCompleted, true, res.ResultURL, res.Detections,
		res.ProcessingTimeSeconds, res.Now, res.Now, id)
	if err != nil {
		r.log.Error("job finish(completed) failed", "job_id", id, "err", err)
		return fmt.Errorf("mark completed: %w", err)
	}
	r.log.Info("job completed", "job_id", id, "detections", len(res.Detections))
	return nil
}

func (r *jobRepo) MarkFailed(ctx context.Context, id uuid.UUID, res Failure) error {
	q := r.db.Rebind(`UPDATE vision_jobs
		SET status = ?, processed = ?, error_message = ?, retry_count = ?,
			processing_time_seconds = ?, updated_at = ?
		WHERE id = ?`)
	_, err := r.db.ExecContext(ctx, q,
		constants.JobStatusFailed, false, res.Message, res.RetryCount,
		res.ProcessingTimeSeconds, res.Now, id)
	if err != nil {
		r.log.Error("job finish(failed) failed", "job_id", id, "err", err)
		return fmt.Errorf("mark failed: %w", err)
	}
	r.log.Warn("job failed", "job_id", id, "retry_count", res.RetryCount, "error", res.Message)
	return nil
}

func (r *jobRepo) MarkAbandoned(ctx context.Context, id uuid.UUID, now time.Time) error {
	q := r.db.Rebind(`UPDATE vision_jobs SET status = ?, updated_at = ? WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, q, constants.JobStatusAbandoned, now, id); err != nil {
		r.log.Error("job archive failed", "job_id", id, "err", err)
		return fmt.Errorf("mark abandoned: %w", err)
	}
	r.log.Info("job archived", "job_id", id)
	return nil
}

func (r *jobRepo) Delete(ctx context.Context, id uuid.UUID) error {
	q := r.db.Rebind(`DELETE FROM vision_jobs WHERE id = ?`)
	if _, err := r.db.ExecContext(ctx, q, id); err != nil {
		r.log.Error("job delete failed", "job_id", id, "err", err)
		return fmt.Errorf("delete job: %w", err)
	}
	r.log.Info("job deleted", "job_id", id)
	return nil
}
