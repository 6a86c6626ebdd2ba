// Package lockfile implements a reference switchyard.LockManager over a
// single flock'd file, mirroring original_source/src/adapters/lock/file.rs's
// poll-until-timeout discipline.
package lockfile

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/veighnsche/switchyard/pkg/switchyard"
	"golang.org/x/sys/unix"
)

// pollInterval mirrors LOCK_POLL_MS from the original constants module.
const pollInterval = 25 * time.Millisecond

// FileLockManager serializes apply() calls across processes via a single
// lock file, advisory-locked with flock(2).
type FileLockManager struct {
	Path string
}

// NewFileLockManager returns a FileLockManager rooted at path. The file is
// created on first AcquireProcessLock call if it doesn't already exist.
func NewFileLockManager(path string) *FileLockManager {
	return &FileLockManager{Path: path}
}

type fileGuard struct {
	f *os.File
}

var _ switchyard.LockGuard = (*fileGuard)(nil)
var _ switchyard.LockManager = (*FileLockManager)(nil)

func (g *fileGuard) Release() error {
	if err := unix.Flock(int(g.f.Fd()), unix.LOCK_UN); err != nil {
		g.f.Close()
		return errors.Wrap(err, "unlock")
	}
	return g.f.Close()
}

// AcquireProcessLock opens (creating if necessary) the lock file and polls
// LOCK_EX|LOCK_NB until either it succeeds, ctx is done, or timeoutMs
// elapses (a timeoutMs of 0 means "try once, no retry").
func (m *FileLockManager) AcquireProcessLock(ctx context.Context, timeoutMs int) (switchyard.LockGuard, error) {
	f, err := os.OpenFile(m.Path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "open lock file")
	}

	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &fileGuard{f: f}, nil
		}
		if err != unix.EWOULDBLOCK {
			f.Close()
			return nil, errors.Wrap(err, "flock")
		}
		select {
		case <-ctx.Done():
			f.Close()
			return nil, errors.Wrap(ctx.Err(), "E_LOCKING: context cancelled acquiring process lock")
		default:
		}
		if timeoutMs <= 0 || time.Now().After(deadline) {
			f.Close()
			return nil, errors.New("E_LOCKING: timeout acquiring process lock")
		}
		time.Sleep(pollInterval)
	}
}
