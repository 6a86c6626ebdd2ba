// Package smoke implements a reference switchyard.SmokeTestRunner, grounded
// on original_source/src/adapters/smoke.rs's DefaultSmokeRunner.
package smoke

import (
	"context"

	"github.com/veighnsche/switchyard/pkg/switchyard"
)

// NoopRunner is a minimal placeholder smoke suite that always succeeds.
// Integrators wire a real SmokeTestRunner (invoking their own verification
// command set) behind the same interface; this exists so Commit-mode
// governance.smoke.require can be satisfied out of the box.
type NoopRunner struct{}

var _ switchyard.SmokeTestRunner = NoopRunner{}

// Run never fails.
func (NoopRunner) Run(_ context.Context, _ switchyard.Plan) error { return nil }
