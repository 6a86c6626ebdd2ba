package main

import (
	"fmt"
	"os"

	"github.com/aquasecurity/table"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Evaluate policy gating for a plan without mutating the filesystem",
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := buildPlanInput()
		if err != nil {
			return err
		}
		sw, err := buildEngine(policyPath, lockPath)
		if err != nil {
			return err
		}
		plan := sw.Plan(input, true)
		report := sw.Preflight(plan, true)

		t := table.New(os.Stdout)
		t.SetHeaders("Path", "Planned", "Current", "Policy", "Restore Ready", "Notes")
		for _, row := range report.Rows {
			policyCell := renderPolicyOK(row.PolicyOK)
			t.AddRow(row.Path, row.PlannedKind, row.CurrentKind, policyCell, fmt.Sprintf("%v", row.RestoreReady), fmt.Sprintf("%v", row.Notes))
		}
		t.Render()

		if !report.OK {
			return fmt.Errorf("preflight: %d stop(s): %v", len(report.Stops), report.Stops)
		}
		return nil
	},
}

func renderPolicyOK(ok bool) string {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		if ok {
			return "ok"
		}
		return "stop"
	}
	if ok {
		return color.GreenString("ok")
	}
	return color.RedString("stop")
}
