package switchyard

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// RollbackReport is the outcome of rolling an executed plan prefix back
// (spec.md §4.10).
type RollbackReport struct {
	PlanID     uuid.UUID
	Restored   []Action
	Errors     []string
	Recovered  bool
}

// rollbackExecuted derives the inverse of executed (reverse order, each
// EnsureSymlink mapped to a RestoreFromBackup of the same target) and runs
// it through the restore executor. RestoreFromBackup actions have no
// defined inverse and are recorded as informational rollback errors rather
// than attempted (spec.md §4.10 Design Notes: "cyclic rollback plans are
// intentionally not generated").
func (sw *Switchyard) rollbackExecuted(planID uuid.UUID, executed []Action) []string {
	var errs []string
	for i := len(executed) - 1; i >= 0; i-- {
		a := executed[i]
		if a.Kind == ActionRestoreFromBackup {
			msg := "no inverse for restore of " + a.Target.AsPath() + "; left as-is"
			errs = append(errs, msg)
			sw.audit.Emit("rollback", "failure", false, map[string]interface{}{
				"plan_id": planID,
				"path":    a.Target.AsPath(),
				"error":   msg,
			})
			continue
		}
		inverse := RestoreFromBackup(a.Target)
		aid := ActionID(planID, inverse, i)
		res := sw.execRestoreFromBackup(Plan{ID: planID}, inverse, aid, false)
		if res.Err != nil {
			errs = append(errs, "rollback of "+a.Target.AsPath()+": "+res.Err.Error())
			sw.audit.Emit("rollback", "failure", false, map[string]interface{}{
				"plan_id":   planID,
				"action_id": aid,
				"path":      a.Target.AsPath(),
				"error":     res.Err.Error(),
			})
			continue
		}
		sw.audit.Emit("rollback", "success", false, map[string]interface{}{
			"plan_id":   planID,
			"action_id": aid,
			"path":      a.Target.AsPath(),
		})
	}

	decision := "success"
	fields := map[string]interface{}{"plan_id": planID, "restored_count": len(executed) - len(errs)}
	if len(errs) > 0 {
		decision = "failure"
		fields["summary_error_ids"] = []ErrorId{ErrRestoreFailed, ErrPolicy}
		fields["errors"] = errs
	}
	sw.audit.Emit("rollback.summary", decision, false, fields)

	return errs
}

// Rollback exposes the inverse-plan engine as a standalone operation over an
// already-produced ApplyReport, for callers that want to roll back a
// previously succeeded apply out of band.
func (sw *Switchyard) Rollback(report ApplyReport) RollbackReport {
	errs := sw.rollbackExecuted(report.PlanID, report.Executed)
	return RollbackReport{
		PlanID:    report.PlanID,
		Restored:  report.Executed,
		Errors:    errs,
		Recovered: len(errs) == 0,
	}
}

func hashBundleHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
