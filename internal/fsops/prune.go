package fsops

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// PruneBackups removes backup pairs older than retentionCount positions or
// maxAge, for target/tag. The newest pair is always retained regardless of
// count or age (spec.md §4.2 Prune). maxAge of zero disables the age bound.
// The parent directory is fsynced once after all removals.
func PruneBackups(target, tag string, retentionCount int, maxAge time.Duration) error {
	if retentionCount < 1 {
		retentionCount = 1
	}
	pairs, err := ListPairs(target, tag)
	if err != nil {
		return err
	}
	if len(pairs) <= 1 {
		return nil
	}

	now := time.Now()
	parent := filepath.Dir(target)
	var removedAny bool
	for i, p := range pairs {
		if i == 0 {
			continue // newest is never pruned
		}
		tooOld := maxAge > 0 && now.Sub(time.UnixMilli(p.TsMs)) > maxAge
		tooMany := i >= retentionCount
		if !tooOld && !tooMany {
			continue
		}
		if err := os.Remove(p.PayloadPath); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "remove payload %s", p.PayloadPath)
		}
		if err := os.Remove(p.SidecarPath()); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "remove sidecar %s", p.SidecarPath())
		}
		removedAny = true
	}
	if !removedAny {
		return nil
	}
	dirf, err := openDirNoFollow(parent)
	if err != nil {
		return err
	}
	defer dirf.Close()
	return fsyncDir(dirf)
}
