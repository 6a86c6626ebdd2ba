package switchyard

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// lockPollMs mirrors LOCK_POLL_MS (internal/lockfile's poll interval) for
// the purposes of estimating lock_attempts on contended paths; it is an
// estimate only, since a LockManager need not poll at this exact cadence.
const lockPollMs = 25

func lockBackendLabel(lock LockManager) string {
	if lock == nil {
		return "none"
	}
	return fmt.Sprintf("%T", lock)
}

func lockAttempts(lockWaitMs int64) int64 {
	return 1 + lockWaitMs/lockPollMs
}

// ApplyReport is the outcome of one Apply call (spec.md §3).
type ApplyReport struct {
	Executed       []Action
	DurationMs     int64
	Errors         []string
	PlanID         uuid.UUID
	RolledBack     bool
	RollbackErrors []string
	ErrorID        ErrorId
	ExitCode       int
	Attestation    map[string]interface{}
}

// Apply runs the state machine in spec.md §4.9: Start → LockAcquired →
// GateOk → (ExecAction)* → Succeeded, with LockFailed/PolicyFailed/Failed
// branches into RollingBack → Recovered|PartiallyRecovered.
func (sw *Switchyard) Apply(ctx context.Context, plan Plan, mode ApplyMode) ApplyReport {
	start := time.Now()
	dry := mode == DryRun
	report := ApplyReport{PlanID: plan.ID}

	// --- Locking ---
	var lockGuard LockGuard
	var lockWaitMs int64
	lockBackend := lockBackendLabel(sw.lock)
	if sw.lock != nil {
		lt0 := time.Now()
		guard, err := sw.lock.AcquireProcessLock(ctx, sw.policy.LockTimeoutMs)
		lockWaitMs = time.Since(lt0).Milliseconds()
		if err != nil {
			sw.emitLockFailure(plan.ID, lockWaitMs, lockBackend, err, dry)
			report.Errors = append(report.Errors, "lock: "+err.Error())
			report.ErrorID, report.ExitCode = ErrLocking, ErrLocking.ExitCode()
			report.DurationMs = time.Since(start).Milliseconds()
			return report
		}
		lockGuard = guard
		defer lockGuard.Release()
	} else if !dry {
		mustFail := sw.policy.Governance.Locking == LockingRequired || !sw.policy.Governance.AllowUnlockedCommit
		if mustFail {
			sw.emitLockFailure(plan.ID, 0, lockBackend, nil, dry)
			report.Errors = append(report.Errors, "lock manager required in Commit mode")
			report.ErrorID, report.ExitCode = ErrLocking, ErrLocking.ExitCode()
			report.DurationMs = time.Since(start).Milliseconds()
			return report
		}
		sw.audit.Emit("apply.attempt", "warn", dry, map[string]interface{}{
			"plan_id":         plan.ID,
			"no_lock_manager": true,
			"lock_backend":    lockBackend,
		})
	} else {
		sw.audit.Emit("apply.attempt", "warn", dry, map[string]interface{}{
			"plan_id":         plan.ID,
			"no_lock_manager": true,
			"lock_backend":    lockBackend,
		})
	}

	sw.audit.Emit("apply.attempt", "success", dry, map[string]interface{}{
		"plan_id":       plan.ID,
		"lock_wait_ms":  lockWaitMs,
		"lock_attempts": lockAttempts(lockWaitMs),
		"lock_backend":  lockBackend,
	})

	// --- Gate (re-check unless overridden or dry-run) ---
	if !sw.policy.Apply.OverridePreflight && !dry {
		outcomes := sw.gatePlan(plan)
		var stops []string
		for _, o := range outcomes {
			stops = append(stops, o.Stops...)
		}
		if len(stops) > 0 {
			for i, a := range plan.Actions {
				aid := ActionID(plan.ID, a, i)
				sw.audit.Emit("apply.result", "failure", dry, map[string]interface{}{
					"plan_id":   plan.ID,
					"action_id": aid,
					"path":      a.Target.AsPath(),
					"error_id":  ErrPolicy,
				})
			}
			sw.audit.Emit("apply.result", "failure", dry, map[string]interface{}{
				"plan_id":  plan.ID,
				"error_id": ErrPolicy,
			})
			report.Errors = stops
			report.ErrorID, report.ExitCode = ErrPolicy, ErrPolicy.ExitCode()
			report.DurationMs = time.Since(start).Milliseconds()
			return report
		}
	}

	// --- Execute actions, rolling back on first failure ---
	var summaryErrIDs []ErrorId
	perf := PerfAgg{}
	for idx, a := range plan.Actions {
		res := sw.executeAction(plan, a, idx, dry)
		perf.Add(res.Perf)
		if res.Err != nil {
			id, _ := AsTagged(res.Err)
			summaryErrIDs = append(summaryErrIDs, id)
			report.Errors = append(report.Errors, res.Err.Error())
			if !dry {
				report.RolledBack = true
				report.RollbackErrors = append(report.RollbackErrors, sw.rollbackExecuted(plan.ID, report.Executed)...)
			}
			break
		}
		if res.Executed != nil {
			report.Executed = append(report.Executed, *res.Executed)
		}
	}

	// --- Smoke ---
	if len(report.Errors) == 0 && !dry {
		if sw.smoke != nil {
			if err := sw.smoke.Run(ctx, plan); err != nil {
				report.Errors = append(report.Errors, "smoke tests failed: "+err.Error())
				summaryErrIDs = append(summaryErrIDs, ErrSmoke)
				if sw.policy.Governance.Smoke.AutoRollback {
					report.RolledBack = true
					report.RollbackErrors = append(report.RollbackErrors, sw.rollbackExecuted(plan.ID, report.Executed)...)
				}
			}
		} else if sw.policy.Governance.Smoke.Require {
			report.Errors = append(report.Errors, "smoke runner missing")
			summaryErrIDs = append(summaryErrIDs, ErrSmoke)
			if sw.policy.Governance.Smoke.AutoRollback {
				report.RolledBack = true
				report.RollbackErrors = append(report.RollbackErrors, sw.rollbackExecuted(plan.ID, report.Executed)...)
			}
		}
	}

	// --- Attestation on clean Commit success ---
	if sw.metrics != nil {
		sw.metrics.Observe("apply", perf)
	}

	summaryFields := map[string]interface{}{
		"plan_id":       plan.ID,
		"lock_wait_ms":  lockWaitMs,
		"lock_attempts": lockAttempts(lockWaitMs),
		"lock_backend":  lockBackend,
		"perf":          perf,
	}
	if len(report.Errors) == 0 && !dry && sw.attest != nil {
		if att := sw.buildAttestation(plan.ID, len(report.Executed), report.RolledBack); att != nil {
			report.Attestation = att
			summaryFields["attestation"] = att
		}
	}

	decision := "success"
	if len(report.Errors) > 0 {
		decision = "failure"
		report.ErrorID = ErrPolicy
		for _, id := range summaryErrIDs {
			if id == ErrSmoke {
				report.ErrorID = ErrSmoke
				break
			}
		}
		report.ExitCode = report.ErrorID.ExitCode()
		summaryFields["error_id"] = report.ErrorID
		summaryFields["exit_code"] = report.ExitCode
		summaryFields["summary_error_ids"] = summaryErrIDs
	}
	sw.audit.Emit("apply.result", decision, dry, summaryFields)

	report.DurationMs = time.Since(start).Milliseconds()
	return report
}

func (sw *Switchyard) emitLockFailure(planID uuid.UUID, lockWaitMs int64, lockBackend string, err error, dry bool) {
	fields := map[string]interface{}{
		"plan_id":       planID,
		"lock_wait_ms":  lockWaitMs,
		"lock_attempts": lockAttempts(lockWaitMs),
		"lock_backend":  lockBackend,
		"error_id":      ErrLocking,
		"exit_code":     ErrLocking.ExitCode(),
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	sw.audit.Emit("apply.attempt", "failure", dry, fields)
	sw.audit.Emit("apply.result", "failure", dry, map[string]interface{}{
		"plan_id":      planID,
		"lock_backend": lockBackend,
		"error_id":     ErrLocking,
	})
}

// attestationBundle mirrors spec.md §4.9's "build a bundle {plan_id,
// executed_len, rolled_back}" instruction; field order is fixed by the
// struct tags so the marshaled bytes (and thus bundle_hash) are stable
// across equal inputs.
type attestationBundle struct {
	PlanID      string `json:"plan_id"`
	ExecutedLen int    `json:"executed_len"`
	RolledBack  bool   `json:"rolled_back"`
}

func (sw *Switchyard) buildAttestation(planID uuid.UUID, executedLen int, rolledBack bool) map[string]interface{} {
	bundle, err := json.Marshal(attestationBundle{
		PlanID:      planID.String(),
		ExecutedLen: executedLen,
		RolledBack:  rolledBack,
	})
	if err != nil {
		return nil
	}
	sig, err := sw.attest.Sign(bundle)
	if err != nil {
		return nil
	}
	return map[string]interface{}{
		"sig_alg":       sw.attest.Algorithm(),
		"signature":     string(sig),
		"bundle_hash":   hashBundleHex(bundle),
		"public_key_id": sw.attest.KeyID(),
	}
}
