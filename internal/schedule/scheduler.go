package schedule

import (
	"context"
	"log/slog"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/davidolu/vision-worker/internal/worker"
)

// cronParser supports standard 5-field cron and descriptors like "@every 5m".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// Scheduler runs full passes (pending + retry sweeps, then cleanup) on a cron
// schedule. One pass runs at a time; cron's own serialization plus the
// sequential runner keeps the single-writer model intact.
type Scheduler struct {
	runner   *worker.Runner
	cleaner  *worker.Cleaner
	staleAge time.Duration
	log      *slog.Logger

	cron *cronlib.Cron
}

func New(runner *worker.Runner, cleaner *worker.Cleaner, staleAge time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:   runner,
		cleaner:  cleaner,
		staleAge: staleAge,
		log:      logger,
		cron:     cronlib.New(cronlib.WithParser(cronParser), cronlib.WithChain(cronlib.SkipIfStillRunning(cronlib.DiscardLogger))),
	}
}

// Start registers the pass under the given cron expression and starts the
// schedule. It returns once the schedule is running.
func (s *Scheduler) Start(ctx context.Context, expr string) error {
	_, err := s.cron.AddFunc(expr, func() { s.runPass(ctx) })
	if err != nil {
		return err
	}
	s.log.Info("scheduler started", "schedule", expr)
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) runPass(ctx context.Context) {
	start := time.Now()
	sum := s.runner.RunFull(ctx)

	cleaned, err := s.cleaner.SweepStaleFailures(ctx, s.staleAge)
	if err != nil {
		s.log.Error("scheduled cleanup aborted", "err", err)
	}

	s.log.Info("scheduled pass complete",
		"summary", sum.String(),
		"cleaned", cleaned,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}
