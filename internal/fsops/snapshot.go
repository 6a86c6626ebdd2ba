package fsops

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// BackupPayloadName renders the canonical payload filename for a backup of
// basename tagged tag taken at tsMs (spec.md §6): `.{basename}.{tag}.{ts}.bak`.
func BackupPayloadName(basename, tag string, tsMs int64) string {
	return fmt.Sprintf(".%s.%s.%d.bak", basename, tag, tsMs)
}

// Snapshot captures the current state of target prior to mutation, always
// producing a payload+sidecar pair (a tombstone pair when target is
// absent). Timestamp collisions (multiple snapshots within the same
// millisecond) are resolved by incrementing until an unused name is found.
// Returns the created payload's path.
func Snapshot(target, tag string) (string, error) {
	parent := filepath.Dir(target)
	basename := filepath.Base(target)

	dirf, err := openDirNoFollow(parent)
	if err != nil {
		return "", err
	}
	defer dirf.Close()
	dfd := int(dirf.Fd())

	kind, err := KindOf(target)
	if err != nil {
		return "", err
	}

	ts := time.Now().UnixMilli()
	var payloadName string
	for {
		payloadName = BackupPayloadName(basename, tag, ts)
		if _, err := os.Lstat(filepath.Join(parent, payloadName)); os.IsNotExist(err) {
			break
		}
		ts++
	}
	payloadPath := filepath.Join(parent, payloadName)

	switch kind {
	case KindFile:
		if err := snapshotFile(dfd, target, basename, payloadPath); err != nil {
			return "", err
		}
	case KindSymlink:
		if err := snapshotSymlink(dfd, target, payloadName, payloadPath); err != nil {
			return "", err
		}
	case KindNone:
		if err := snapshotTombstone(dfd, payloadName, payloadPath); err != nil {
			return "", err
		}
	}

	if err := fsyncDir(dirf); err != nil {
		return "", err
	}
	return payloadPath, nil
}

func snapshotFile(dfd int, target, basename, payloadPath string) error {
	srcFd, err := unix.Openat(dfd, basename, unix.O_RDONLY|unix.O_NOFOLLOW, 0)
	if err != nil {
		return errors.Wrapf(err, "openat source %s", basename)
	}
	src := os.NewFile(uintptr(srcFd), target)
	defer src.Close()

	fi, err := src.Stat()
	if err != nil {
		return errors.Wrap(err, "stat source for snapshot")
	}

	payloadName := filepath.Base(payloadPath)
	dstFd, err := unix.Openat(dfd, payloadName, unix.O_WRONLY|unix.O_CREAT|unix.O_EXCL, 0o600)
	if err != nil {
		return errors.Wrapf(err, "openat payload %s", payloadName)
	}
	dst := os.NewFile(uintptr(dstFd), payloadPath)
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return errors.Wrap(err, "copy snapshot payload")
	}
	if err := dst.Chmod(fi.Mode().Perm()); err != nil {
		return errors.Wrap(err, "chmod snapshot payload")
	}
	if err := dst.Sync(); err != nil {
		return errors.Wrap(err, "fsync snapshot payload")
	}

	hash, err := Sha256HexOf(payloadPath)
	if err != nil {
		return err
	}
	sc := Sidecar{
		Schema:      SidecarSchemaV2,
		PriorKind:   KindFile,
		Mode:        fmt.Sprintf("%o", fi.Mode().Perm()),
		PayloadHash: hash,
	}
	return WriteSidecar(SidecarPath(payloadPath), sc)
}

func snapshotSymlink(dfd int, target, payloadName, payloadPath string) error {
	dest, err := ResolveSymlinkTarget(target)
	if err != nil {
		return err
	}
	if err := unix.Symlinkat(dest, dfd, payloadName); err != nil {
		return errors.Wrapf(err, "symlinkat snapshot %s", payloadName)
	}
	sc := Sidecar{
		Schema:    SidecarSchemaV1,
		PriorKind: KindSymlink,
		PriorDest: dest,
	}
	return WriteSidecar(SidecarPath(payloadPath), sc)
}

func snapshotTombstone(dfd int, payloadName, payloadPath string) error {
	fd, err := unix.Openat(dfd, payloadName, unix.O_WRONLY|unix.O_CREAT|unix.O_EXCL, 0o600)
	if err != nil {
		return errors.Wrapf(err, "openat tombstone %s", payloadName)
	}
	f := os.NewFile(uintptr(fd), payloadPath)
	defer f.Close()
	if err := f.Sync(); err != nil {
		return errors.Wrap(err, "fsync tombstone")
	}
	sc := Sidecar{Schema: SidecarSchemaV1, PriorKind: KindNone}
	return WriteSidecar(SidecarPath(payloadPath), sc)
}
