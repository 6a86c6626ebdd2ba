package switchyard

import "time"

// RiskLevel governs how the gate reacts to a potentially dangerous
// condition (SUID/SGID bits, hardlinks on the swap target).
type RiskLevel int

const (
	RiskStop RiskLevel = iota
	RiskWarn
	RiskAllow
)

// ExdevPolicy controls the atomic swap's behavior when renameat refuses a
// cross-device rename.
type ExdevPolicy int

const (
	ExdevFail ExdevPolicy = iota
	ExdevDegradedFallback
)

// LockingPolicy controls whether a configured LockManager is mandatory.
type LockingPolicy int

const (
	LockingOptional LockingPolicy = iota
	LockingRequired
)

// PreservationPolicy controls whether metadata preservation is enforced.
type PreservationPolicy int

const (
	PreservationOff PreservationPolicy = iota
	PreservationRequireBasic
)

// SourceTrustPolicy controls how an EnsureSymlink's source path is vetted.
type SourceTrustPolicy int

const (
	SourceRequireTrusted SourceTrustPolicy = iota
	SourceWarnOnUntrusted
	SourceAllowUntrusted
)

// SmokePolicy controls whether and how a SmokeTestRunner gates Commit.
type SmokePolicy struct {
	Require      bool
	AutoRollback bool
}

// Scope restricts which targets the gate will accept.
type Scope struct {
	AllowRoots  []string
	ForbidPaths []string
}

// Rescue describes the production-safety rescue-toolset requirement.
type Rescue struct {
	Require   bool
	ExecCheck bool
	MinCount  int
}

// Risks bundles the per-action risk-handling toggles.
type Risks struct {
	SuidSgid        RiskLevel
	Hardlinks       RiskLevel
	SourceTrust     SourceTrustPolicy
	OwnershipStrict bool
}

// Durability bundles backup/preservation strength requirements.
type Durability struct {
	BackupDurability bool
	SidecarIntegrity bool
	Preservation     PreservationPolicy
}

// ApplyFlow bundles apply-stage behavior toggles.
type ApplyFlow struct {
	Exdev                  ExdevPolicy
	OverridePreflight      bool
	BestEffortRestore      bool
	ExtraMountChecks       []string
	CaptureRestoreSnapshot bool
}

// Governance bundles locking/smoke requirements.
type Governance struct {
	Locking             LockingPolicy
	Smoke               SmokePolicy
	AllowUnlockedCommit bool
}

// Backup bundles backup-store configuration not covered by Durability.
type Backup struct {
	Tag string
}

// Retention controls backup pruning: N is clamped to >= 1 by the pruner; Age
// of zero disables the age bound. The newest artifact is never pruned.
type Retention struct {
	Count int
	Age   time.Duration
}

// Policy is the full configuration record the gate and apply stage consult.
// Field grouping mirrors spec.md §3's partition so each sub-struct can be
// constructed, tested, and documented independently.
type Policy struct {
	Scope         Scope
	Risks         Risks
	Durability    Durability
	Apply         ApplyFlow
	Governance    Governance
	Backup        Backup
	Rescue        Rescue
	Retention     Retention
	LockTimeoutMs int
}

// DefaultPolicy returns the conservative defaults mirrored from
// original_source/src/policy/types.rs: fail-closed risk handling, required
// source trust, durable backups with integrity checks, EXDEV failing
// closed, optional locking, smoke off, unlocked commits allowed.
func DefaultPolicy() Policy {
	return Policy{
		Risks: Risks{
			SuidSgid:    RiskStop,
			Hardlinks:   RiskStop,
			SourceTrust: SourceRequireTrusted,
		},
		Durability: Durability{
			BackupDurability: true,
			SidecarIntegrity: true,
			Preservation:     PreservationOff,
		},
		Apply: ApplyFlow{
			Exdev: ExdevFail,
		},
		Governance: Governance{
			Locking:             LockingOptional,
			AllowUnlockedCommit: true,
		},
		Retention:     Retention{Count: 3},
		LockTimeoutMs: 0,
	}
}
