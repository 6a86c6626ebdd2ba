package fsops

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"syscall"

	"github.com/pkg/errors"
)

// Kind tags the three states a backup/restore target can be in.
type Kind string

const (
	KindFile    Kind = "file"
	KindSymlink Kind = "symlink"
	KindNone    Kind = "none"
)

// KindOf classifies the current on-disk state of path without following a
// terminal symlink.
func KindOf(path string) (Kind, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return KindNone, nil
		}
		return "", errors.Wrapf(err, "lstat %s", path)
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return KindSymlink, nil
	}
	return KindFile, nil
}

// ResolveSymlinkTarget reads the link text of a symlink at path.
func ResolveSymlinkTarget(path string) (string, error) {
	dest, err := os.Readlink(path)
	if err != nil {
		return "", errors.Wrapf(err, "readlink %s", path)
	}
	return dest, nil
}

// Sha256HexOf streams path's content (following symlinks) and returns the
// lowercase hex SHA-256 digest. Used for executor before/after hashes and
// for v2 sidecar payload integrity.
func Sha256HexOf(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "open %s for hashing", path)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrapf(err, "hash %s", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// FileMode returns path's permission bits, following symlinks.
func FileMode(path string) (os.FileMode, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, errors.Wrapf(err, "stat %s", path)
	}
	return fi.Mode().Perm(), nil
}

// HasHardlinkHazard reports whether the regular file at path has nlink > 1
// (spec.md §4.5 hardlink probe). Non-regular files and absent paths are not
// a hazard.
func HasHardlinkHazard(path string) (bool, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "lstat %s", path)
	}
	if fi.Mode()&os.ModeSymlink != 0 || !fi.Mode().IsRegular() {
		return false, nil
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return false, nil
	}
	return st.Nlink > 1, nil
}

// HasSuidSgidRisk reports whether the resolved target carries the setuid or
// setgid mode bits (spec.md §4.5 SUID/SGID probe).
func HasSuidSgidRisk(path string) (bool, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrapf(err, "stat %s", path)
	}
	mode := fi.Mode()
	return mode&os.ModeSetuid != 0 || mode&os.ModeSetgid != 0, nil
}

// PreservationCapabilities reports which metadata dimensions a restore on
// this host/privilege level can be expected to preserve. This is a
// best-effort, supplemental probe (SPEC_FULL.md §4, grounded on
// original_source/src/fs/meta.rs's detect_preservation_capabilities):
// ownership and ACL/xattr preservation typically require elevated
// privilege, while mode and timestamps are preservable by any owner.
type PreservationCapabilities struct {
	Owner      bool
	Mode       bool
	Timestamps bool
	Xattrs     bool
	ACLs       bool
	Caps       bool
}

// DetectPreservationCapabilities runs the best-effort probe described above.
// It never fails: an inconclusive dimension is reported as unsupported.
func DetectPreservationCapabilities() PreservationCapabilities {
	caps := PreservationCapabilities{Mode: true, Timestamps: true}
	if os.Geteuid() == 0 {
		caps.Owner = true
		caps.Xattrs = true
		caps.ACLs = true
		caps.Caps = true
	}
	return caps
}

// Supported reports whether every dimension in want is satisfied by caps.
func (caps PreservationCapabilities) Supported(want PreservationCapabilities) bool {
	if want.Owner && !caps.Owner {
		return false
	}
	if want.Mode && !caps.Mode {
		return false
	}
	if want.Timestamps && !caps.Timestamps {
		return false
	}
	if want.Xattrs && !caps.Xattrs {
		return false
	}
	if want.ACLs && !caps.ACLs {
		return false
	}
	if want.Caps && !caps.Caps {
		return false
	}
	return true
}
