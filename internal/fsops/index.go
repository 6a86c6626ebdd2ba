package fsops

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// BackupPair names one indexed payload+sidecar on disk, along with the
// timestamp and tag parsed from the payload's filename.
type BackupPair struct {
	PayloadPath string
	Tag         string
	TsMs        int64
}

func (p BackupPair) SidecarPath() string { return SidecarPath(p.PayloadPath) }

// payloadPattern matches `.{basename}.{tag}.{ts}.bak`. tag has no dots by
// construction (BackupPayloadName never quotes one in), so `[^.]*` safely
// isolates it even for the wildcard (empty-tag) case.
func payloadPattern(basename string) *regexp.Regexp {
	return regexp.MustCompile(`^\.` + regexp.QuoteMeta(basename) + `\.([^.]*)\.(\d+)\.bak$`)
}

// ListPairs enumerates the parent directory of target for backup pairs
// matching basename and tag. An empty tag is a wildcard matching any tag —
// valid for audit/inspection selectors, never for a mutation selector
// (spec.md §4.2 Indexing).
func ListPairs(target, tag string) ([]BackupPair, error) {
	parent := filepath.Dir(target)
	basename := filepath.Base(target)
	entries, err := os.ReadDir(parent)
	if err != nil {
		return nil, errors.Wrapf(err, "readdir %s", parent)
	}
	pat := payloadPattern(basename)
	var out []BackupPair
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := pat.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		foundTag := m[1]
		if tag != "" && foundTag != tag {
			continue
		}
		ts, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			continue
		}
		out = append(out, BackupPair{
			PayloadPath: filepath.Join(parent, e.Name()),
			Tag:         foundTag,
			TsMs:        ts,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TsMs > out[j].TsMs })
	return out, nil
}

// FindLatest returns the most recent backup pair for target/tag.
func FindLatest(target, tag string) (BackupPair, bool, error) {
	pairs, err := ListPairs(target, tag)
	if err != nil {
		return BackupPair{}, false, err
	}
	if len(pairs) == 0 {
		return BackupPair{}, false, nil
	}
	return pairs[0], true, nil
}

// FindPrevious returns the second most recent backup pair for target/tag.
func FindPrevious(target, tag string) (BackupPair, bool, error) {
	pairs, err := ListPairs(target, tag)
	if err != nil {
		return BackupPair{}, false, err
	}
	if len(pairs) < 2 {
		return BackupPair{}, false, nil
	}
	return pairs[1], true, nil
}

// HasBackupArtifacts reports whether at least one backup pair exists for
// target/tag, used by the rescue/backup-presence gating check (spec.md
// §4.6 item 6).
func HasBackupArtifacts(target, tag string) (bool, error) {
	pairs, err := ListPairs(target, tag)
	if err != nil {
		return false, err
	}
	return len(pairs) > 0, nil
}
