package switchyard

import (
	"time"

	"github.com/google/uuid"
	"github.com/veighnsche/switchyard/internal/fsops"
)

// fsyncWarnMs is the swap-duration threshold above which a successful
// EnsureSymlink result is annotated severity=warn (spec.md §4.9 executor
// bullet list).
const fsyncWarnMs = 50

// execResult is what an executor reports back to the apply state machine.
type execResult struct {
	Executed *Action
	Err      error // tagged via Tag(), carries an ErrorId
	Perf     PerfAgg
}

func (sw *Switchyard) executeAction(plan Plan, a Action, idx int, dryRun bool) execResult {
	aid := ActionID(plan.ID, a, idx)
	if a.Kind == ActionEnsureSymlink {
		return sw.execEnsureSymlink(plan, a, aid, dryRun)
	}
	return sw.execRestoreFromBackup(plan, a, aid, dryRun)
}

func (sw *Switchyard) execEnsureSymlink(plan Plan, a Action, aid uuid.UUID, dryRun bool) execResult {
	source, target := a.Source.AsPath(), a.Target.AsPath()
	targetPath := a.Target

	sw.audit.Emit("apply.attempt", "success", dryRun, map[string]interface{}{
		"plan_id":        plan.ID,
		"action_id":      aid,
		"path":           target,
		"backup_durable": sw.policy.Durability.BackupDurability,
	})

	beforeKind, _ := fsops.KindOf(target)

	hashStart := time.Now()
	beforeHash := hashCurrent(target)
	afterHash, _ := fsops.Sha256HexOf(source)
	hashMs := time.Since(hashStart).Milliseconds()

	if fsops.IsNoopSwap(source, target) || dryRun {
		perf := PerfAgg{HashMs: hashMs}
		sw.emitEnsureSuccess(plan.ID, aid, targetPath, beforeKind, false, false, 0, beforeHash, afterHash, perf)
		return execResult{Executed: actionPtr(a), Perf: perf}
	}

	if _, err := fsops.Snapshot(target, sw.policy.Backup.Tag); err != nil {
		tagged := Tag(ErrAtomicSwap, "snapshot before swap", err)
		sw.emitEnsureFailure(plan.ID, aid, targetPath, beforeKind, false, "", hashMs, 0, tagged, beforeHash, afterHash)
		return execResult{Err: tagged, Perf: PerfAgg{HashMs: hashMs}}
	}

	allowDegraded := sw.policy.Apply.Exdev == ExdevDegradedFallback
	res, err := fsops.AtomicSymlinkSwap(source, target, allowDegraded)
	if err != nil {
		id, reason := mapSwapError(err)
		tagged := Tag(id, "atomic swap", err)
		sw.emitEnsureFailure(plan.ID, aid, targetPath, beforeKind, false, reason, hashMs, res.SwapMs, tagged, beforeHash, afterHash)
		return execResult{Err: tagged, Perf: PerfAgg{HashMs: hashMs, SwapMs: res.SwapMs}}
	}

	perf := PerfAgg{HashMs: hashMs, SwapMs: res.SwapMs}
	sw.emitEnsureSuccess(plan.ID, aid, targetPath, beforeKind, res.Degraded, res.Degraded, res.SwapMs, beforeHash, afterHash, perf)
	return execResult{Executed: actionPtr(a), Perf: perf}
}

func hashCurrent(target string) string {
	if kind, _ := fsops.KindOf(target); kind == fsops.KindSymlink {
		if dest, err := fsops.ResolveSymlinkTarget(target); err == nil {
			h, _ := fsops.Sha256HexOf(dest)
			return h
		}
		return ""
	}
	h, _ := fsops.Sha256HexOf(target)
	return h
}

func (sw *Switchyard) emitEnsureSuccess(planID uuid.UUID, aid uuid.UUID, target SafePath, beforeKind fsops.Kind, degraded bool, degradedReason bool, swapMs int64, beforeHash, afterHash string, perf PerfAgg) {
	afterKind, _ := fsops.KindOf(target.AsPath())
	fields := map[string]interface{}{
		"plan_id":     planID,
		"action_id":   aid,
		"path":        target.AsPath(),
		"degraded":    degraded,
		"before_kind": string(beforeKind),
		"after_kind":  string(afterKind),
		"before_hash": beforeHash,
		"after_hash":  afterHash,
		"hash_alg":    "sha256",
		"perf":        perf,
	}
	if degradedReason {
		fields["degraded_reason"] = "exdev_fallback"
	}
	if swapMs > fsyncWarnMs {
		fields["severity"] = "warn"
	}
	if sw.owner != nil {
		if info, err := sw.owner.OwnerOf(target); err == nil {
			fields["provenance"] = map[string]interface{}{"uid": info.UID, "gid": info.GID, "pkg": info.Pkg}
		}
	}
	sw.audit.Emit("apply.result", "success", false, fields)
}

func (sw *Switchyard) emitEnsureFailure(planID uuid.UUID, aid uuid.UUID, target SafePath, beforeKind fsops.Kind, degraded bool, errDetail string, hashMs, swapMs int64, tagged *TaggedError, beforeHash, afterHash string) {
	afterKind, _ := fsops.KindOf(target.AsPath())
	fields := map[string]interface{}{
		"plan_id":     planID,
		"action_id":   aid,
		"path":        target.AsPath(),
		"degraded":    degraded,
		"before_kind": string(beforeKind),
		"after_kind":  string(afterKind),
		"before_hash": beforeHash,
		"after_hash":  afterHash,
		"hash_alg":    "sha256",
		"perf":        PerfAgg{HashMs: hashMs, SwapMs: swapMs},
		"error_id":    tagged.Id,
	}
	if errDetail != "" {
		fields["error_detail"] = errDetail
	}
	sw.audit.Emit("apply.result", "failure", false, fields)
}

// mapSwapError classifies an atomic-swap failure into a stable ErrorId per
// spec.md §4.9: EXDEV refusals map to E_EXDEV with an "exdev_fallback_failed"
// detail tag; anything else maps to E_ATOMIC_SWAP with no detail.
func mapSwapError(err error) (ErrorId, string) {
	if isExdev(err) {
		return ErrExdev, "exdev_fallback_failed"
	}
	return ErrAtomicSwap, ""
}

func (sw *Switchyard) execRestoreFromBackup(plan Plan, a Action, aid uuid.UUID, dryRun bool) execResult {
	target := a.Target.AsPath()
	tag := sw.policy.Backup.Tag

	sw.audit.Emit("apply.attempt", "success", dryRun, map[string]interface{}{
		"plan_id":   plan.ID,
		"action_id": aid,
		"path":      target,
	})

	selector := fsops.SelectLatest
	captureSnapshot := sw.policy.Apply.CaptureRestoreSnapshot
	if captureSnapshot {
		selector = fsops.SelectPrevious
		if _, err := fsops.Snapshot(target, tag); err != nil {
			tagged := Tag(ErrRestoreFailed, "capture restore snapshot", err)
			sw.emitRestoreFailure(plan.ID, aid, target, tagged)
			return execResult{Err: tagged}
		}
	}

	outcome, err := fsops.Restore(fsops.RestoreOptions{
		Target:          target,
		DryRun:          dryRun,
		ForceBestEffort: sw.policy.Apply.BestEffortRestore,
		Tag:             tag,
		Selector:        selector,
	})
	if err != nil {
		id := ErrRestoreFailed
		var fsErr *fsops.Error
		if asFsopsError(err, &fsErr) && fsErr.Id == fsops.IdBackupMissing {
			id = ErrBackupMissing
		}
		tagged := Tag(id, "restore", err)
		sw.emitRestoreFailure(plan.ID, aid, target, tagged)
		return execResult{Err: tagged}
	}

	fields := map[string]interface{}{
		"plan_id":    plan.ID,
		"action_id":  aid,
		"path":       target,
		"idempotent": outcome.Idempotent,
	}
	if outcome.SidecarIntegrityOK != nil {
		fields["sidecar_integrity_verified"] = *outcome.SidecarIntegrityOK
	}
	sw.audit.Emit("apply.result", "success", dryRun, fields)
	return execResult{Executed: actionPtr(a)}
}

func (sw *Switchyard) emitRestoreFailure(planID uuid.UUID, aid uuid.UUID, target string, tagged *TaggedError) {
	sw.audit.Emit("apply.result", "failure", false, map[string]interface{}{
		"plan_id":   planID,
		"action_id": aid,
		"path":      target,
		"error_id":  tagged.Id,
	})
}

func actionPtr(a Action) *Action { return &a }
