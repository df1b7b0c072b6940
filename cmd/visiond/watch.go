package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/davidolu/vision-worker/internal/schedule"
	"github.com/davidolu/vision-worker/internal/worker"
)

var (
	watchSchedule string
	watchArchive  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run full passes on a cron schedule until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.cleanup()

		expr := watchSchedule
		if expr == "" {
			expr = a.cfg.Worker.CronSchedule
		}

		cleaner := worker.NewCleaner(a.jobs, a.cfg.Worker.MaxRetryCount, watchArchive, a.log)
		sched := schedule.New(a.runner, cleaner, a.cfg.Worker.StaleCleanupAge, a.log)
		if err := sched.Start(ctx, expr); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}

		fmt.Printf("Watching on schedule %q. Ctrl+C to stop.\n", expr)
		<-ctx.Done()
		sched.Stop()
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchSchedule, "schedule", "", "cron expression (default SWEEP_SCHEDULE)")
	watchCmd.Flags().BoolVar(&watchArchive, "archive", false, "mark cleaned jobs abandoned instead of deleting them")
}
