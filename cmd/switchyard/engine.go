package main

import (
	"github.com/veighnsche/switchyard/internal/attestation"
	"github.com/veighnsche/switchyard/internal/lockfile"
	"github.com/veighnsche/switchyard/internal/metrics"
	"github.com/veighnsche/switchyard/internal/ownership"
	"github.com/veighnsche/switchyard/internal/rescue"
	"github.com/veighnsche/switchyard/internal/smoke"
	"github.com/veighnsche/switchyard/pkg/switchyard"

	"github.com/prometheus/client_golang/prometheus"
)

// buildEngine wires the reference collaborators into a Switchyard using
// policy loaded from policyPath (DefaultPolicy() if empty), and the lock file
// at lockPath. It's the CLI's composition root; library consumers wire
// their own collaborators directly via switchyard.NewSwitchyard.
func buildEngine(policyPath, lockPath string) (*switchyard.Switchyard, error) {
	policy := switchyard.DefaultPolicy()
	if policyPath != "" {
		p, err := switchyard.LoadPolicyFile(policyPath)
		if err != nil {
			return nil, err
		}
		policy = p
	}

	att, err := attestation.NewAttestor("switchyard-cli")
	if err != nil {
		return nil, err
	}

	opts := []switchyard.Option{
		switchyard.WithLockManager(lockfile.NewFileLockManager(lockPath)),
		switchyard.WithOwnershipOracle(ownership.FsOracle{}),
		switchyard.WithAttestor(att),
		switchyard.WithSmokeTestRunner(smoke.NoopRunner{}),
		switchyard.WithRescueChecker(rescue.Checker{}),
		switchyard.WithPerfObserver(metrics.NewObserver(prometheus.DefaultRegisterer)),
		switchyard.WithFacts("switchyard-cli", nil, nil, false),
	}
	return switchyard.NewSwitchyard(policy, opts...), nil
}
