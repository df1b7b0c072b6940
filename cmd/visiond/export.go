package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/davidolu/vision-worker/constants"
	"github.com/davidolu/vision-worker/internal/export"
)

var (
	exportOut      string
	exportStatuses []string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a job report to XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.cleanup()

		statuses := make([]constants.JobStatus, 0, len(exportStatuses))
		for _, s := range exportStatuses {
			statuses = append(statuses, constants.JobStatus(s))
		}

		svc := export.NewService(a.jobs, a.log)
		data, err := svc.ExportJobsXLSX(ctx, statuses...)
		if err != nil {
			return err
		}
		if err := os.WriteFile(exportOut, data, 0644); err != nil {
			return fmt.Errorf("write output file: %w", err)
		}
		fmt.Printf("Report written to %s\n", exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "jobs.xlsx", "output XLSX file path")
	exportCmd.Flags().StringSliceVar(&exportStatuses, "status", nil, "statuses to include (default completed,failed)")
}
