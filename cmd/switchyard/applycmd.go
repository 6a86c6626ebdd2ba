package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/veighnsche/switchyard/pkg/switchyard"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Plan, preflight, and apply --link/--restore requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := buildPlanInput()
		if err != nil {
			return err
		}
		sw, err := buildEngine(policyPath, lockPath)
		if err != nil {
			return err
		}

		mode := switchyard.Commit
		if dryRunFlag {
			mode = switchyard.DryRun
		}

		plan := sw.Plan(input, mode == switchyard.DryRun)
		report := sw.Apply(context.Background(), plan, mode)

		fmt.Printf("apply %s mode=%s executed=%d duration_ms=%d\n", plan.ID, mode, len(report.Executed), report.DurationMs)
		if len(report.Errors) > 0 {
			for _, e := range report.Errors {
				fmt.Println("  error:", e)
			}
			if report.RolledBack {
				fmt.Println("  rolled back")
			}
			return fmt.Errorf("apply failed: %s (exit %d)", report.ErrorID, report.ExitCode)
		}
		return nil
	},
}
