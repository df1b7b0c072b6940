package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run a single sweep over pending jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.cleanup()

		sum, err := a.runner.RunPendingSweep(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Pending sweep complete: %s\n", sum.String())
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full pass: pending jobs, then retry-eligible failures",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, true)
		if err != nil {
			return err
		}
		defer a.cleanup()

		sum := a.runner.RunFull(ctx)
		fmt.Printf("Full pass complete: %s\n", sum.String())
		return nil
	},
}
