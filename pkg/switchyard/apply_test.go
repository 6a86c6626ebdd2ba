package switchyard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

type fakeLockGuard struct {
	released *bool
}

func (g fakeLockGuard) Release() error {
	*g.released = true
	return nil
}

type fakeLockManager struct {
	err      error
	released bool
}

func (m *fakeLockManager) AcquireProcessLock(ctx context.Context, timeoutMs int) (LockGuard, error) {
	if m.err != nil {
		return nil, m.err
	}
	return fakeLockGuard{released: &m.released}, nil
}

type fakeAttestor struct {
	sig []byte
	err error
}

func (a fakeAttestor) Sign(bundle []byte) (Signature, error) {
	if a.err != nil {
		return nil, a.err
	}
	if a.sig != nil {
		return Signature(a.sig), nil
	}
	return Signature("fake-signature"), nil
}
func (a fakeAttestor) KeyID() string    { return "test-key" }
func (a fakeAttestor) Algorithm() string { return "ed25519" }

type fakeSmokeRunner struct {
	err error
}

func (r fakeSmokeRunner) Run(ctx context.Context, p Plan) error { return r.err }

func TestApply_CommitWithoutLockManagerSucceedsByDefault(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "new-tool"), []byte("bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "old-tool"), []byte("legacy"), 0o755); err != nil {
		t.Fatal(err)
	}
	source, _ := NewSafePath(dir, "new-tool")
	target, _ := NewSafePath(dir, "old-tool")

	sw := NewSwitchyard(DefaultPolicy(), WithProbes(
		fakeMounts{rwExec: map[string]bool{target.AsPath(): true}},
		fakeImmutable{},
	))
	plan := BuildPlan(PlanInput{Link: []LinkRequest{{Source: source, Target: target}}})

	report := sw.Apply(context.Background(), plan, Commit)
	if len(report.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", report.Errors)
	}
	if len(report.Executed) != 1 {
		t.Fatalf("len(Executed) = %d, want 1", len(report.Executed))
	}
}

func TestApply_CommitRequiresLockManagerWhenGovernanceDemandsIt(t *testing.T) {
	target := tempSafePath(t, "old-tool")
	policy := DefaultPolicy()
	policy.Governance.Locking = LockingRequired
	sw := NewSwitchyard(policy)
	plan := Plan{ID: PlanID(nil), Actions: []Action{EnsureSymlink(target, target)}}

	report := sw.Apply(context.Background(), plan, Commit)
	if report.ErrorID != ErrLocking {
		t.Fatalf("ErrorID = %s, want %s", report.ErrorID, ErrLocking)
	}
	if report.ExitCode != ErrLocking.ExitCode() {
		t.Errorf("ExitCode = %d, want %d", report.ExitCode, ErrLocking.ExitCode())
	}
}

func TestApply_LockAcquireFailurePropagates(t *testing.T) {
	target := tempSafePath(t, "old-tool")
	lock := &fakeLockManager{err: errors.New("lock busy")}
	sw := NewSwitchyard(DefaultPolicy(), WithLockManager(lock))
	plan := Plan{ID: PlanID(nil), Actions: []Action{EnsureSymlink(target, target)}}

	report := sw.Apply(context.Background(), plan, Commit)
	if report.ErrorID != ErrLocking {
		t.Fatalf("ErrorID = %s, want %s", report.ErrorID, ErrLocking)
	}
	if lock.released {
		t.Error("a lock that failed to acquire must never be released")
	}
}

func TestApply_LockGuardReleasedOnSuccess(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "new-tool"), []byte("bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "old-tool"), []byte("legacy"), 0o755); err != nil {
		t.Fatal(err)
	}
	source, _ := NewSafePath(dir, "new-tool")
	target, _ := NewSafePath(dir, "old-tool")

	lock := &fakeLockManager{}
	sw := NewSwitchyard(DefaultPolicy(), WithLockManager(lock), WithProbes(
		fakeMounts{rwExec: map[string]bool{target.AsPath(): true}},
		fakeImmutable{},
	))
	plan := BuildPlan(PlanInput{Link: []LinkRequest{{Source: source, Target: target}}})

	sw.Apply(context.Background(), plan, Commit)
	if !lock.released {
		t.Error("the lock guard must be released after a successful apply")
	}
}

func TestApply_PolicyGateFailureStopsBeforeExecution(t *testing.T) {
	target := mustSafePath(t, "/usr", "bin/old-tool")
	src := mustSafePath(t, "/usr", "bin/new-tool")
	sw := NewSwitchyard(DefaultPolicy(), WithProbes(fakeMounts{rwExec: map[string]bool{}}, fakeImmutable{}))
	plan := BuildPlan(PlanInput{Link: []LinkRequest{{Source: src, Target: target}}})

	report := sw.Apply(context.Background(), plan, Commit)
	if report.ErrorID != ErrPolicy {
		t.Fatalf("ErrorID = %s, want %s", report.ErrorID, ErrPolicy)
	}
	if len(report.Executed) != 0 {
		t.Error("no action should execute once the gate re-check stops the plan")
	}
}

func TestApply_RollsBackOnFirstFailure(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "new-tool"), []byte("bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "old-tool"), []byte("legacy"), 0o755); err != nil {
		t.Fatal(err)
	}
	source, _ := NewSafePath(dir, "new-tool")
	target, _ := NewSafePath(dir, "old-tool")
	neverSnapshotted, _ := NewSafePath(dir, "never-snapshotted")

	policy := DefaultPolicy()
	policy.Apply.OverridePreflight = true // skip the gate re-check; we're testing execution rollback
	sw := NewSwitchyard(policy)
	plan := Plan{
		ID: PlanID(nil),
		Actions: []Action{
			EnsureSymlink(source, target),
			RestoreFromBackup(neverSnapshotted),
		},
	}

	report := sw.Apply(context.Background(), plan, Commit)
	if len(report.Errors) == 0 {
		t.Fatal("expected the second action's missing-backup failure to surface an error")
	}
	if !report.RolledBack {
		t.Fatal("expected RolledBack=true after the second action fails")
	}
	if len(report.RollbackErrors) != 0 {
		t.Errorf("expected a clean rollback, got errors: %v", report.RollbackErrors)
	}

	fi, err := os.Lstat(target.AsPath())
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		t.Error("the first action's symlink must be rolled back to its original file state")
	}
	got, err := os.ReadFile(target.AsPath())
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "legacy" {
		t.Errorf("restored content = %q, want %q", got, "legacy")
	}
}

func TestApply_SmokeFailureWithAutoRollback(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "new-tool"), []byte("bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "old-tool"), []byte("legacy"), 0o755); err != nil {
		t.Fatal(err)
	}
	source, _ := NewSafePath(dir, "new-tool")
	target, _ := NewSafePath(dir, "old-tool")

	policy := DefaultPolicy()
	policy.Governance.Smoke = SmokePolicy{Require: true, AutoRollback: true}
	sw := NewSwitchyard(policy,
		WithSmokeTestRunner(fakeSmokeRunner{err: errors.New("post-apply check failed")}),
		WithProbes(fakeMounts{rwExec: map[string]bool{target.AsPath(): true}}, fakeImmutable{}),
	)
	plan := BuildPlan(PlanInput{Link: []LinkRequest{{Source: source, Target: target}}})

	report := sw.Apply(context.Background(), plan, Commit)
	if report.ErrorID != ErrSmoke {
		t.Fatalf("ErrorID = %s, want %s", report.ErrorID, ErrSmoke)
	}
	if !report.RolledBack {
		t.Fatal("expected auto-rollback after a smoke failure")
	}
	got, err := os.ReadFile(target.AsPath())
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "legacy" {
		t.Errorf("restored content = %q, want %q", got, "legacy")
	}
}

func TestApply_AttestationAttachedOnCleanCommitSuccess(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "new-tool"), []byte("bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "old-tool"), []byte("legacy"), 0o755); err != nil {
		t.Fatal(err)
	}
	source, _ := NewSafePath(dir, "new-tool")
	target, _ := NewSafePath(dir, "old-tool")

	sw := NewSwitchyard(DefaultPolicy(),
		WithAttestor(fakeAttestor{}),
		WithProbes(fakeMounts{rwExec: map[string]bool{target.AsPath(): true}}, fakeImmutable{}),
	)
	plan := BuildPlan(PlanInput{Link: []LinkRequest{{Source: source, Target: target}}})

	report := sw.Apply(context.Background(), plan, Commit)
	if len(report.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", report.Errors)
	}
	if report.Attestation == nil {
		t.Fatal("expected an attestation bundle on clean Commit success")
	}
	if report.Attestation["sig_alg"] != "ed25519" {
		t.Errorf("sig_alg = %v, want ed25519", report.Attestation["sig_alg"])
	}
}

func TestLockBackendLabel(t *testing.T) {
	if got := lockBackendLabel(nil); got != "none" {
		t.Errorf("lockBackendLabel(nil) = %q, want none", got)
	}
	if got := lockBackendLabel(&fakeLockManager{}); got == "none" || got == "" {
		t.Errorf("lockBackendLabel(&fakeLockManager{}) = %q, want a concrete type name", got)
	}
}

func TestLockAttempts(t *testing.T) {
	if got := lockAttempts(0); got != 1 {
		t.Errorf("lockAttempts(0) = %d, want 1 (a single uncontended attempt)", got)
	}
	if got := lockAttempts(100); got != 1+100/lockPollMs {
		t.Errorf("lockAttempts(100) = %d, want %d", got, 1+100/lockPollMs)
	}
}

func TestApply_SummaryFactCarriesLockBackendAndAttempts(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "new-tool"), []byte("bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "old-tool"), []byte("legacy"), 0o755); err != nil {
		t.Fatal(err)
	}
	source, _ := NewSafePath(dir, "new-tool")
	target, _ := NewSafePath(dir, "old-tool")

	emitter := &fakeEmitter{}
	sw := NewSwitchyard(DefaultPolicy(),
		WithLockManager(&fakeLockManager{}),
		WithProbes(fakeMounts{rwExec: map[string]bool{target.AsPath(): true}}, fakeImmutable{}),
		WithFacts("seed", emitter, nil, false),
	)
	plan := BuildPlan(PlanInput{Link: []LinkRequest{{Source: source, Target: target}}})
	report := sw.Apply(context.Background(), plan, Commit)
	if len(report.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", report.Errors)
	}

	var sawSummary bool
	for _, e := range emitter.events {
		if e["event"] != "apply.result" {
			continue
		}
		// this is the aggregate summary, not a per-action failure record
		if _, isPerAction := e["action_id"]; isPerAction {
			continue
		}
		sawSummary = true
		if e["lock_backend"] == nil || e["lock_backend"] == "none" {
			t.Errorf("summary lock_backend = %v, want the configured LockManager's type name", e["lock_backend"])
		}
		if e["lock_attempts"] == nil {
			t.Error("summary fact is missing lock_attempts")
		}
	}
	if !sawSummary {
		t.Fatal("expected an apply.result summary fact")
	}
}

func TestBuildAttestation_BundleHashVariesWithExecutedLenAndRolledBack(t *testing.T) {
	sw := NewSwitchyard(DefaultPolicy(), WithAttestor(fakeAttestor{}))
	id := uuid.New()

	base := sw.buildAttestation(id, 1, false)
	diffLen := sw.buildAttestation(id, 2, false)
	diffRolledBack := sw.buildAttestation(id, 1, true)

	if base["bundle_hash"] == diffLen["bundle_hash"] {
		t.Error("bundle_hash must differ when executed_len differs")
	}
	if base["bundle_hash"] == diffRolledBack["bundle_hash"] {
		t.Error("bundle_hash must differ when rolled_back differs")
	}
}

func TestApply_NoAttestationOnDryRun(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "new-tool"), []byte("bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "old-tool"), []byte("legacy"), 0o755); err != nil {
		t.Fatal(err)
	}
	source, _ := NewSafePath(dir, "new-tool")
	target, _ := NewSafePath(dir, "old-tool")

	sw := NewSwitchyard(DefaultPolicy(), WithAttestor(fakeAttestor{}))
	plan := BuildPlan(PlanInput{Link: []LinkRequest{{Source: source, Target: target}}})

	report := sw.Apply(context.Background(), plan, DryRun)
	if report.Attestation != nil {
		t.Error("a DryRun apply must never produce an attestation bundle")
	}
}
