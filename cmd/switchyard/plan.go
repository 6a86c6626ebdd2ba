package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/veighnsche/switchyard/pkg/switchyard"
)

var (
	linkPairs   []string
	restorePaths []string
	policyPath  string
	lockPath    string
	dryRunFlag  bool
)

func init() {
	rootCmd.AddCommand(planCmd, preflightCmd, applyCmd, rollbackCmd)

	for _, c := range []*cobra.Command{planCmd, preflightCmd, applyCmd} {
		c.Flags().StringArrayVar(&linkPairs, "link", nil, "source=target pair to ensure as a symlink (repeatable)")
		c.Flags().StringArrayVar(&restorePaths, "restore", nil, "target path to restore from backup (repeatable)")
		c.Flags().StringVar(&policyPath, "policy", "", "path to a TOML policy file (defaults to DefaultPolicy())")
		c.Flags().StringVar(&lockPath, "lock-file", "/var/run/switchyard.lock", "path to the process lock file")
	}
	applyCmd.Flags().BoolVar(&dryRunFlag, "dry-run", true, "analyze and emit facts without mutating (pass --dry-run=false to commit)")
}

func buildPlanInput() (switchyard.PlanInput, error) {
	var input switchyard.PlanInput
	for _, pair := range linkPairs {
		src, dst, err := splitPair(pair)
		if err != nil {
			return input, err
		}
		source, err := switchyard.NewSafePath("/", src)
		if err != nil {
			return input, err
		}
		target, err := switchyard.NewSafePath("/", dst)
		if err != nil {
			return input, err
		}
		input.Link = append(input.Link, switchyard.LinkRequest{Source: source, Target: target})
	}
	for _, r := range restorePaths {
		target, err := switchyard.NewSafePath("/", r)
		if err != nil {
			return input, err
		}
		input.Restore = append(input.Restore, switchyard.RestoreRequest{Target: target})
	}
	return input, nil
}

func splitPair(s string) (string, string, error) {
	for i := range s {
		if s[i] == '=' {
			return s[:i], s[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("invalid --link value %q, expected source=target", s)
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Build and print a deterministic plan from --link/--restore requests",
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
		fmt.Printf("plan %s (%d actions)\n", plan.ID, len(plan.Actions))
		for _, a := range plan.Actions {
			fmt.Printf("  %s %s\n", a.Kind, a.Target.AsPath())
		}
		return nil
	},
}
