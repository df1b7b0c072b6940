package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/davidolu/vision-worker/constants"
	"github.com/davidolu/vision-worker/internal/repository"
)

// Cleaner removes (or archives) failed jobs that exhausted their retry budget
// and have been sitting untouched for longer than the staleness window.
type Cleaner struct {
	repo       repository.JobRepository
	maxRetries int
	// archive marks jobs abandoned instead of deleting them.
	archive bool
	log     *slog.Logger
	now     func() time.Time
}

func NewCleaner(repo repository.JobRepository, maxRetries int, archive bool, logger *slog.Logger, opts ...CleanerOption) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cleaner{repo: repo, maxRetries: maxRetries, archive: archive, log: logger, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type CleanerOption func(*Cleaner)

// WithCleanerClock overrides the clock, for tests.
func WithCleanerClock(now func() time.Time) CleanerOption {
	return func(c *Cleaner) { c.now = now }
}

// SweepStaleFailures removes every failed job whose retry budget is spent and
// whose updated_at is strictly older than now-maxAge. Jobs with no usable
// timestamp are skipped and logged; ambiguous data is never destroyed.
// Returns the number of jobs cleaned.
func (c *Cleaner) SweepStaleFailures(ctx context.Context, maxAge time.Duration) (int, error) {
	jobs, err := c.repo.ListByStatus(ctx, constants.JobStatusFailed)
	if err != nil {
		return 0, fmt.Errorf("cleanup sweep: %w", err)
	}

	cutoff := c.now().Add(-maxAge)
	cleaned := 0
	for _, job := range jobs {
		if job.RetryCount < c.maxRetries {
			continue
		}
		if job.UpdatedAt == nil || job.UpdatedAt.IsZero() {
			c.log.Warn("cleanup.skipped_no_timestamp", "job_id", job.ID)
			continue
		}
		if !job.UpdatedAt.Before(cutoff) {
			continue
		}

		if c.archive {
			err = c.repo.MarkAbandoned(ctx, job.ID, c.now())
		} else {
			err = c.repo.Delete(ctx, job.ID)
		}
		if err != nil {
			c.log.Error("cleanup.remove_failed", "job_id", job.ID, "err", err)
			continue
		}
		cleaned++
	}

	c.log.Info("cleanup.done", "examined", len(jobs), "cleaned", cleaned, "archive", c.archive)
	return cleaned, nil
}
