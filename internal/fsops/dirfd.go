// Package fsops implements the filesystem primitives the switchyard engine
// composes: the TOCTOU-safe atomic symlink swap, the timestamped
// backup/sidecar store, the restore engine, and the read-only mount/
// attribute probes. None of these types are exported outside the module;
// pkg/switchyard is their only caller.
package fsops

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// openDirNoFollow opens dir as an O_DIRECTORY|O_NOFOLLOW file descriptor so
// every subsequent *at syscall relative to it is immune to the parent
// component being swapped for a symlink between stat and use (spec.md §5).
func openDirNoFollow(dir string) (*os.File, error) {
	fd, err := unix.Open(dir, unix.O_DIRECTORY|unix.O_NOFOLLOW|unix.O_RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "open parent dir %s", dir)
	}
	return os.NewFile(uintptr(fd), dir), nil
}

// fsyncDir fsyncs an already-open directory file descriptor, committing any
// rename/symlink/unlink performed relative to it.
func fsyncDir(d *os.File) error {
	if err := unix.Fsync(int(d.Fd())); err != nil {
		return errors.Wrap(err, "fsync parent dir")
	}
	return nil
}
