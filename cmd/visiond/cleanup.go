package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/davidolu/vision-worker/internal/worker"
)

var (
	cleanupArchive bool
	cleanupMaxAge  time.Duration
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove failed jobs that exhausted retries and went stale",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.cleanup()

		maxAge := cleanupMaxAge
		if maxAge == 0 {
			maxAge = a.cfg.Worker.StaleCleanupAge
		}

		cleaner := worker.NewCleaner(a.jobs, a.cfg.Worker.MaxRetryCount, cleanupArchive, a.log)
		cleaned, err := cleaner.SweepStaleFailures(ctx, maxAge)
		if err != nil {
			return err
		}
		fmt.Printf("Cleanup complete: %d jobs removed\n", cleaned)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupArchive, "archive", false, "mark jobs abandoned instead of deleting them")
	cleanupCmd.Flags().DurationVar(&cleanupMaxAge, "max-age", 0, "staleness window override (default STALE_CLEANUP_AGE)")
}
