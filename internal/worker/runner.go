package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/davidolu/vision-worker/constants"
	"github.com/davidolu/vision-worker/internal/entity"
	"github.com/davidolu/vision-worker/internal/repository"
)

// Summary aggregates the result of one sweep (or a full pass).
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d/%d succeeded (%d failed, %d skipped)", s.Succeeded, s.Total, s.Failed, s.Skipped)
}

func (s *Summary) merge(o Summary) {
	s.Total += o.Total
	s.Succeeded += o.Succeeded
	s.Failed += o.Failed
	s.Skipped += o.Skipped
}

// Runner drives sweeps over status-filtered sets of jobs, processing each one
// sequentially through the controller. One job finishes before the next
// starts; there is exactly one writer.
type Runner struct {
	repo   repository.JobRepository
	ctrl   *Controller
	policy *RetryPolicy
	log    *slog.Logger
}

func NewRunner(repo repository.JobRepository, ctrl *Controller, policy *RetryPolicy, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{repo: repo, ctrl: ctrl, policy: policy, log: logger}
}

// RunPendingSweep processes every pending job. A store query failure aborts
// the sweep and is returned; per-job failures are recorded on the jobs and
// only counted.
func (r *Runner) RunPendingSweep(ctx context.Context) (Summary, error) {
	jobs, err := r.repo.ListByStatus(ctx, constants.JobStatusPending)
	if err != nil {
		return Summary{}, fmt.Errorf("pending sweep: %w", err)
	}
	r.log.Info("sweep.pending.start", "jobs", len(jobs))
	sum := r.processAll(ctx, jobs)
	r.log.Info("sweep.pending.done", "summary", sum.String())
	return sum, nil
}

// RunFailedSweep processes failed jobs that the retry policy lets through.
// Skipped jobs are logged with the reason they were held back.
func (r *Runner) RunFailedSweep(ctx context.Context) (Summary, error) {
	jobs, err := r.repo.ListByStatus(ctx, constants.JobStatusFailed)
	if err != nil {
		return Summary{}, fmt.Errorf("failed sweep: %w", err)
	}
	r.log.Info("sweep.retry.start", "jobs", len(jobs))

	eligible := make([]entity.Job, 0, len(jobs))
	skipped := 0
	for _, job := range jobs {
		d := r.policy.Decide(job)
		if !d.Eligible {
			skipped++
			r.log.Info("sweep.retry.skipped",
				"job_id", job.ID,
				"retry_count", job.RetryCount,
				"reason", d.Reason,
			)
			continue
		}
		eligible = append(eligible, job)
	}

	sum := r.processAll(ctx, eligible)
	sum.Total += skipped
	sum.Skipped = skipped
	r.log.Info("sweep.retry.done", "summary", sum.String())
	return sum, nil
}

// RunFull runs the pending sweep then the failed sweep; pending work takes
// priority over retries within one pass. A sweep-level failure (store
// unreachable) is logged and the pass continues with whatever remains.
func (r *Runner) RunFull(ctx context.Context) Summary {
	var sum Summary
	if p, err := r.RunPendingSweep(ctx); err != nil {
		r.log.Error("sweep.pending.aborted", "err", err)
	} else {
		sum.merge(p)
	}
	if f, err := r.RunFailedSweep(ctx); err != nil {
		r.log.Error("sweep.retry.aborted", "err", err)
	} else {
		sum.merge(f)
	}
	return sum
}

func (r *Runner) processAll(ctx context.Context, jobs []entity.Job) Summary {
	sum := Summary{Total: len(jobs)}
	for _, job := range jobs {
		out := r.ctrl.ProcessOne(ctx, job)
		if out.PersistErr != nil {
			r.log.Error("sweep.persist_failed", "job_id", job.ID, "err", out.PersistErr)
		}
		if out.Completed && out.PersistErr == nil {
			sum.Succeeded++
		} else {
			sum.Failed++
		}
	}
	return sum
}
