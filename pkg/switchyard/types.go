package switchyard

import "github.com/google/uuid"

// ApplyMode selects whether apply() mutates the filesystem or only analyzes
// and emits (redacted) facts.
type ApplyMode int

const (
	// DryRun performs analysis and emits redacted facts; it never mutates.
	DryRun ApplyMode = iota
	// Commit performs the plan's mutations and emits full facts.
	Commit
)

func (m ApplyMode) String() string {
	if m == Commit {
		return "commit"
	}
	return "dry_run"
}

// LinkRequest asks the engine to ensure target resolves to source.
type LinkRequest struct {
	Source SafePath
	Target SafePath
}

// RestoreRequest asks the engine to restore target from its backup history.
type RestoreRequest struct {
	Target SafePath
}

// PlanInput is the caller-supplied, unordered set of requests the Planner
// normalizes into a Plan.
type PlanInput struct {
	Link    []LinkRequest
	Restore []RestoreRequest
}

// ActionKind tags the two concrete action variants the engine can execute.
type ActionKind int

const (
	ActionEnsureSymlink ActionKind = iota
	ActionRestoreFromBackup
)

func (k ActionKind) tag() int { return int(k) } // ensure(0) sorts before restore(1)

func (k ActionKind) String() string {
	if k == ActionRestoreFromBackup {
		return "restore_from_backup"
	}
	return "ensure_symlink"
}

// Action is a tagged union: EnsureSymlink carries Source and Target; a
// RestoreFromBackup only carries Target (Source is the zero value).
// Equality is structural, matching spec.md §3.
type Action struct {
	Kind   ActionKind
	Source SafePath
	Target SafePath
}

// EnsureSymlink constructs an EnsureSymlink action.
func EnsureSymlink(source, target SafePath) Action {
	return Action{Kind: ActionEnsureSymlink, Source: source, Target: target}
}

// RestoreFromBackup constructs a RestoreFromBackup action.
func RestoreFromBackup(target SafePath) Action {
	return Action{Kind: ActionRestoreFromBackup, Target: target}
}

// Equal reports structural equality between two actions.
func (a Action) Equal(o Action) bool {
	if a.Kind != o.Kind || !a.Target.Equal(o.Target) {
		return false
	}
	if a.Kind == ActionEnsureSymlink {
		return a.Source.Equal(o.Source)
	}
	return true
}

// Plan is an ordered, deterministically-identified sequence of actions.
type Plan struct {
	ID      uuid.UUID
	Actions []Action
}
