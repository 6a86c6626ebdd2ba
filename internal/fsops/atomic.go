package fsops

import (
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const tmpSuffix = ".oxidizr.tmp"

// SwapResult reports the outcome of an atomic symlink swap.
type SwapResult struct {
	Degraded bool
	SwapMs   int64
}

// IsNoopSwap reports whether target already resolves to source, in which
// case AtomicSymlinkSwap's caller should skip the syscall sequence entirely
// (spec.md §4.3 tie-break: source==target, or target is already a symlink
// canonically equal to source).
func IsNoopSwap(source, target string) bool {
	if filepath.Clean(source) == filepath.Clean(target) {
		return true
	}
	dest, err := ResolveSymlinkTarget(target)
	if err != nil {
		return false
	}
	absDest := dest
	if !filepath.IsAbs(absDest) {
		absDest = filepath.Join(filepath.Dir(target), dest)
	}
	absSource := source
	if !filepath.IsAbs(absSource) {
		absSource, _ = filepath.Abs(source)
	}
	return filepath.Clean(absDest) == filepath.Clean(absSource)
}

// AtomicSymlinkSwap creates a symlink at target resolving to source, visible
// to any concurrent reader as either the pre- or post-state, never absent.
// It follows spec.md §4.3 exactly: open parent(target) with
// O_DIRECTORY|O_NOFOLLOW, unlink any stale temp name, symlinkat the new
// link at the temp name, renameat it over target's basename, fsync parent.
//
// On EXDEV (cross-device rename refusal) with allowDegraded=true, it falls
// back to a best-effort non-atomic unlink+symlinkat sequence and reports
// Degraded=true. With allowDegraded=false the EXDEV error is returned
// unwrapped so the caller can map it to E_EXDEV.
func AtomicSymlinkSwap(source, target string, allowDegraded bool) (SwapResult, error) {
	start := time.Now()
	parent := filepath.Dir(target)
	base := filepath.Base(target)
	tmpName := "." + base + tmpSuffix

	dirf, err := openDirNoFollow(parent)
	if err != nil {
		return SwapResult{}, err
	}
	defer dirf.Close()
	dfd := int(dirf.Fd())

	// Step 2: best-effort removal of any stale temp name.
	_ = unix.Unlinkat(dfd, tmpName, 0)

	// Step 3: create the new symlink at the temp name.
	if err := unix.Symlinkat(source, dfd, tmpName); err != nil {
		return SwapResult{}, errors.Wrap(err, "symlinkat temp name")
	}

	// Step 4: rename the temp name over the final name, within the dirfd.
	if err := unix.Renameat(dfd, tmpName, dfd, base); err != nil {
		if errors.Is(err, unix.EXDEV) {
			if !allowDegraded {
				_ = unix.Unlinkat(dfd, tmpName, 0)
				return SwapResult{}, err
			}
			// Degraded fallback: unlink the final name, then symlinkat it
			// directly. Non-atomic: a concurrent reader may observe ENOENT
			// for the instant between the two calls.
			_ = unix.Unlinkat(dfd, base, 0)
			if err := unix.Symlinkat(source, dfd, base); err != nil {
				return SwapResult{}, errors.Wrap(err, "degraded symlinkat")
			}
			_ = unix.Unlinkat(dfd, tmpName, 0)
			if err := fsyncDir(dirf); err != nil {
				return SwapResult{}, err
			}
			return SwapResult{Degraded: true, SwapMs: time.Since(start).Milliseconds()}, nil
		}
		_ = unix.Unlinkat(dfd, tmpName, 0)
		return SwapResult{}, errors.Wrap(err, "renameat temp to final")
	}

	// Step 5: fsync the parent.
	if err := fsyncDir(dirf); err != nil {
		return SwapResult{}, err
	}
	return SwapResult{Degraded: false, SwapMs: time.Since(start).Milliseconds()}, nil
}
