package fsops

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Selector chooses which indexed backup pair a restore targets.
type Selector int

const (
	SelectLatest Selector = iota
	SelectPrevious
)

// RestoreOptions parameterizes one restore engine invocation (spec.md §4.4).
type RestoreOptions struct {
	Target          string
	DryRun          bool
	ForceBestEffort bool
	Tag             string
	Selector        Selector
}

// RestoreOutcome reports what the restore engine did or would do.
type RestoreOutcome struct {
	Mutated             bool
	Idempotent          bool
	PriorKind           Kind
	SidecarIntegrityOK  *bool // nil when no v2 sidecar was present to check
	LegacyRenameApplied bool
}

// Restore executes (or, under DryRun, analyzes without mutating) one
// restore cycle: select → read sidecar (or legacy-rename fallback) →
// idempotence short-circuit → integrity check → kind-specific step. The
// renames, unlinks and symlink swaps that change the target go through a
// parent dirfd opened O_NOFOLLOW; removing the consumed payload and sidecar
// uses path-based os.Remove.
func Restore(opts RestoreOptions) (RestoreOutcome, error) {
	var pair BackupPair
	var found bool
	var err error
	if opts.Selector == SelectPrevious {
		pair, found, err = FindPrevious(opts.Target, opts.Tag)
	} else {
		pair, found, err = FindLatest(opts.Target, opts.Tag)
	}
	if err != nil {
		return RestoreOutcome{}, err
	}
	if !found {
		if opts.ForceBestEffort {
			return RestoreOutcome{}, nil
		}
		return RestoreOutcome{}, tagged(IdBackupMissing, "no backup artifacts for "+opts.Target, nil)
	}

	sc, scErr := ReadSidecar(pair.SidecarPath())
	if scErr != nil {
		// Legacy-rename fallback: sidecar missing or unparseable, but a
		// payload exists. Rename it directly into place (spec.md §4.4 step
		// 2; SPEC_FULL.md §4 "legacy-rename restore fallback").
		if opts.DryRun {
			return RestoreOutcome{LegacyRenameApplied: true}, nil
		}
		if err := legacyRename(pair.PayloadPath, opts.Target); err != nil {
			return RestoreOutcome{}, tagged(IdRestoreFailed, "legacy rename", err)
		}
		return RestoreOutcome{Mutated: true, LegacyRenameApplied: true}, nil
	}

	// Idempotence short-circuit. Restore-to-previous must not skip (spec.md
	// §4.4 step 3).
	if opts.Selector != SelectPrevious {
		curKind, err := KindOf(opts.Target)
		if err != nil {
			return RestoreOutcome{}, err
		}
		if curKind == sc.PriorKind {
			if sc.PriorKind != KindSymlink {
				return RestoreOutcome{Idempotent: true, PriorKind: sc.PriorKind}, nil
			}
			curDest, err := ResolveSymlinkTarget(opts.Target)
			if err == nil && curDest == sc.PriorDest {
				return RestoreOutcome{Idempotent: true, PriorKind: sc.PriorKind}, nil
			}
		}
	}

	var integrityOK *bool
	if sc.Schema == SidecarSchemaV2 && sc.PayloadHash != "" {
		hash, err := Sha256HexOf(pair.PayloadPath)
		if err != nil {
			return RestoreOutcome{}, err
		}
		ok := hash == sc.PayloadHash
		integrityOK = &ok
		if !ok {
			if opts.ForceBestEffort {
				return RestoreOutcome{PriorKind: sc.PriorKind, SidecarIntegrityOK: integrityOK}, nil
			}
			return RestoreOutcome{}, tagged(IdRestoreFailed, "payload integrity mismatch", nil)
		}
	}

	if opts.DryRun {
		return RestoreOutcome{PriorKind: sc.PriorKind, SidecarIntegrityOK: integrityOK}, nil
	}

	if err := executeRestoreStep(sc, pair, opts.Target); err != nil {
		return RestoreOutcome{}, tagged(IdRestoreFailed, "restore step", err)
	}
	return RestoreOutcome{Mutated: true, PriorKind: sc.PriorKind, SidecarIntegrityOK: integrityOK}, nil
}

func executeRestoreStep(sc Sidecar, pair BackupPair, target string) error {
	parent := filepath.Dir(target)
	base := filepath.Base(target)

	switch sc.PriorKind {
	case KindFile:
		dirf, err := openDirNoFollow(parent)
		if err != nil {
			return err
		}
		defer dirf.Close()
		dfd := int(dirf.Fd())
		payloadName := filepath.Base(pair.PayloadPath)
		if err := unix.Renameat(dfd, payloadName, dfd, base); err != nil {
			return errors.Wrap(err, "renameat payload to target")
		}
		if mode, perr := strconv.ParseUint(sc.Mode, 8, 32); perr == nil {
			if err := unix.Fchmodat(dfd, base, uint32(mode), 0); err != nil {
				_ = os.Chmod(target, os.FileMode(mode))
			}
		}
		if err := fsyncDir(dirf); err != nil {
			return err
		}
		return os.Remove(pair.SidecarPath())
	case KindSymlink:
		if _, err := AtomicSymlinkSwap(sc.PriorDest, target, true); err != nil {
			return errors.Wrap(err, "restore symlink swap")
		}
		if err := os.Remove(pair.PayloadPath); err != nil && !os.IsNotExist(err) {
			return err
		}
		return os.Remove(pair.SidecarPath())
	case KindNone:
		dirf, err := openDirNoFollow(parent)
		if err != nil {
			return err
		}
		defer dirf.Close()
		dfd := int(dirf.Fd())
		if err := unix.Unlinkat(dfd, base, 0); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "unlinkat target for tombstone restore")
		}
		if err := fsyncDir(dirf); err != nil {
			return err
		}
		if err := os.Remove(pair.PayloadPath); err != nil && !os.IsNotExist(err) {
			return err
		}
		return os.Remove(pair.SidecarPath())
	default:
		return errors.Errorf("unknown prior_kind %q", sc.PriorKind)
	}
}

// legacyRename restores a payload whose sidecar is missing/unparseable by
// renaming it directly into place, inferring nothing about prior kind.
func legacyRename(payloadPath, target string) error {
	parent := filepath.Dir(target)
	dirf, err := openDirNoFollow(parent)
	if err != nil {
		return err
	}
	defer dirf.Close()
	dfd := int(dirf.Fd())
	if err := unix.Renameat(dfd, filepath.Base(payloadPath), dfd, filepath.Base(target)); err != nil {
		return errors.Wrap(err, "legacy renameat")
	}
	return fsyncDir(dirf)
}
