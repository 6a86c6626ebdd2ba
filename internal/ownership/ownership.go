// Package ownership implements a reference switchyard.OwnershipOracle over
// raw filesystem metadata, grounded on
// original_source/src/adapters/ownership/fs.rs.
package ownership

import (
	"os"
	"syscall"

	"github.com/pkg/errors"
	"github.com/veighnsche/switchyard/pkg/switchyard"
)

// FsOracle resolves uid/gid from symlink_metadata-equivalent stat info. It
// never resolves a package name (Pkg is always empty); integrators with a
// package database wire their own OwnershipOracle for that.
type FsOracle struct{}

var _ switchyard.OwnershipOracle = FsOracle{}

// OwnerOf stats p.AsPath() without following a trailing symlink, mirroring
// std::fs::symlink_metadata's semantics in the original.
func (FsOracle) OwnerOf(p switchyard.SafePath) (switchyard.OwnershipInfo, error) {
	fi, err := os.Lstat(p.AsPath())
	if err != nil {
		return switchyard.OwnershipInfo{}, errors.Wrap(err, "stat")
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return switchyard.OwnershipInfo{}, errors.New("ownership not supported on this platform")
	}
	return switchyard.OwnershipInfo{UID: st.Uid, GID: st.Gid}, nil
}
