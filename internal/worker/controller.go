package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/davidolu/vision-worker/internal/entity"
	"github.com/davidolu/vision-worker/internal/inference"
	"github.com/davidolu/vision-worker/internal/repository"
)

// Outcome is the result of one processing attempt. ProcessOne never returns
// an error: inference failures are recorded on the job, and only a failure to
// persist the terminal transition is surfaced here for the caller to log.
type Outcome struct {
	JobID      uuid.UUID
	Completed  bool
	Detections int
	Duration   time.Duration
	ProcessErr error
	PersistErr error
}

// Controller orchestrates one attempt for a single job: claim it, run
// inference, and write exactly one terminal transition.
type Controller struct {
	repo repository.JobRepository
	svc  inference.Service
	log  *slog.Logger
	now  func() time.Time
}

func NewController(repo repository.JobRepository, svc inference.Service, logger *slog.Logger, opts ...ControllerOption) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{repo: repo, svc: svc, log: logger, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ControllerOption func(*Controller)

// WithClock overrides the controller's clock, for tests.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// ProcessOne drives a single job through one attempt.
//
// The claim (status -> processing) is best effort: if it cannot be persisted
// the attempt still proceeds, since the terminal write is what the record's
// correctness depends on. The retry count written on failure is computed from
// the value read at the start of the attempt, not re-read.
func (c *Controller) ProcessOne(ctx context.Context, job entity.Job) Outcome {
	if err := c.repo.MarkProcessing(ctx, job.ID, job.Status, c.now()); err != nil {
		c.log.Warn("controller.claim_failed", "job_id", job.ID, "from", job.Status, "err", err)
	}

	start := c.now()
	res, err := c.svc.Process(ctx, job.SourceURL, job.Filename)
	elapsed := c.now().Sub(start)

	out := Outcome{JobID: job.ID, Duration: elapsed}

	if err != nil {
		out.ProcessErr = err
		failure := repository.Failure{
			Message:               err.Error(),
			RetryCount:            job.RetryCount + 1,
			ProcessingTimeSeconds: elapsed.Seconds(),
			Now:                   c.now(),
		}
		if perr := c.repo.MarkFailed(ctx, job.ID, failure); perr != nil {
			out.PersistErr = perr
		}
		c.log.Error("controller.attempt_failed",
			"job_id", job.ID,
			"filename", job.Filename,
			"retry_count", failure.RetryCount,
			"elapsed_ms", elapsed.Milliseconds(),
			"err", err,
		)
		return out
	}

	completion := repository.Completion{
		ResultURL:             res.ResultURL,
		Detections:            res.Detections,
		ProcessingTimeSeconds: elapsed.Seconds(),
		Now:                   c.now(),
	}
	if perr := c.repo.MarkCompleted(ctx, job.ID, completion); perr != nil {
		out.PersistErr = perr
		return out
	}

	out.Completed = true
	out.Detections = len(res.Detections)
	c.log.Info("controller.attempt_ok",
		"job_id", job.ID,
		"filename", job.Filename,
		"detections", out.Detections,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return out
}
