package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/veighnsche/switchyard/pkg/switchyard"
)

var rollbackTargets []string

func init() {
	rollbackCmd.Flags().StringArrayVar(&rollbackTargets, "target", nil, "previously-applied symlink target to roll back (repeatable)")
	rollbackCmd.Flags().StringVar(&policyPath, "policy", "", "path to a TOML policy file (defaults to DefaultPolicy())")
	rollbackCmd.Flags().StringVar(&lockPath, "lock-file", "/var/run/switchyard.lock", "path to the process lock file")
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back previously-applied EnsureSymlink targets to their backed-up state",
	RunE: func(cmd *cobra.Command, args []string) error {
		sw, err := buildEngine(policyPath, lockPath)
		if err != nil {
			return err
		}

		planID := uuid.New()
		var executed []switchyard.Action
		for _, t := range rollbackTargets {
			target, err := switchyard.NewSafePath("/", t)
			if err != nil {
				return err
			}
			executed = append(executed, switchyard.EnsureSymlink(switchyard.SafePath{}, target))
		}

		result := sw.Rollback(switchyard.ApplyReport{PlanID: planID, Executed: executed})
		fmt.Printf("rollback %s recovered=%v\n", planID, result.Recovered)
		for _, e := range result.Errors {
			fmt.Println("  error:", e)
		}
		if !result.Recovered {
			return fmt.Errorf("rollback incomplete: %d error(s)", len(result.Errors))
		}
		return nil
	},
}
