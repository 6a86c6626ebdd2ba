package switchyard

import "context"

// LockGuard represents an acquired process lock; releasing it defines the
// end of the mutual-exclusion interval for one apply() call.
type LockGuard interface {
	Release() error
}

// LockManager serializes concurrent apply() invocations on a single host.
// The engine only ever depends on this interface; concrete implementations
// (e.g. internal/lockfile.FileLockManager) are external collaborators.
type LockManager interface {
	AcquireProcessLock(ctx context.Context, timeoutMs int) (LockGuard, error)
}

// OwnershipInfo is the result of an OwnershipOracle lookup.
type OwnershipInfo struct {
	UID uint32
	GID uint32
	Pkg string
}

// OwnershipOracle resolves package/file ownership for strict-ownership
// gating. Left unconfigured, ownership_strict policy cannot be satisfied.
type OwnershipOracle interface {
	OwnerOf(p SafePath) (OwnershipInfo, error)
}

// Signature is the raw bytes an Attestor produced for a bundle.
type Signature []byte

// Attestor signs a summary bundle describing an apply's outcome. The engine
// never verifies signatures itself; verification is a consumer concern.
type Attestor interface {
	Sign(bundle []byte) (Signature, error)
	KeyID() string
	Algorithm() string // defaults to "ed25519" in reference implementations
}

// SmokeFailure is returned by a SmokeTestRunner to indicate the plan's
// post-apply state failed verification.
type SmokeFailure struct {
	Reason string
}

func (f *SmokeFailure) Error() string { return "smoke test failed: " + f.Reason }

// SmokeTestRunner runs an integrator-defined verification suite against the
// post-apply system state. The engine treats any non-nil error as failure.
type SmokeTestRunner interface {
	Run(ctx context.Context, p Plan) error
}

// RescueChecker reports whether a minimal rescue toolset (BusyBox or a
// GNU-subset) is available on the host, per the Rescue policy's ExecCheck
// and MinCount. Concrete detection is platform-specific and out of the
// engine's scope (spec.md §1); only this contract lives in the core.
type RescueChecker interface {
	Check(execCheck bool, minCount int) (available bool, found int)
}

// FactsEmitter receives one structured fact per engine-observable event.
// fields carries stage-specific, envelope-adjacent data (see audit.go);
// subsystem/event/decision select the fact's identity.
type FactsEmitter interface {
	Emit(subsystem, event, decision string, fields map[string]interface{})
}

// AuditSink receives free-form diagnostic log lines, distinct from the
// structured FactsEmitter stream.
type AuditSink interface {
	Log(level, msg string)
}
