package fsops

import (
	"bufio"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// PathUnder reports whether target is root itself or a descendant of root,
// comparing path components rather than raw byte prefixes — so that
// root="/usr" does not wrongly admit target="/usr2/bin/ls". root="/" always
// matches, since every absolute path is a descendant of the filesystem root.
func PathUnder(root, target string) bool {
	root = filepath.Clean(root)
	target = filepath.Clean(target)
	if root == "/" {
		return true
	}
	if target == root {
		return true
	}
	return strings.HasPrefix(target, root+string(filepath.Separator))
}

// MountInspector is the read-only rw+exec probe contract (spec.md §4.5).
// Unknown mount state is fail-closed: RWExec returns false rather than
// erroring so callers never have to distinguish "not writable" from
// "couldn't tell".
type MountInspector interface {
	RWExec(path string) bool
}

// ProcMountInspector implements MountInspector by reading /proc/self/mounts
// and matching the longest mount-point prefix of path.
type ProcMountInspector struct {
	MountsPath string // defaults to /proc/self/mounts when empty
}

type mountEntry struct {
	point  string
	opts   map[string]bool
	noexec bool
}

func (m ProcMountInspector) entries() ([]mountEntry, error) {
	path := m.MountsPath
	if path == "" {
		path = "/proc/self/mounts"
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	var out []mountEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 {
			continue
		}
		opts := map[string]bool{}
		noexec := false
		for _, o := range strings.Split(fields[3], ",") {
			opts[o] = true
			if o == "noexec" {
				noexec = true
			}
		}
		out = append(out, mountEntry{point: fields[1], opts: opts, noexec: noexec})
	}
	return out, sc.Err()
}

// RWExec reports whether the longest-prefix mount entry covering path has
// the rw option and lacks noexec. Any error reading the mount table is
// treated as unknown state and fails closed (false).
func (m ProcMountInspector) RWExec(path string) bool {
	entries, err := m.entries()
	if err != nil {
		return false
	}
	var best *mountEntry
	for i := range entries {
		e := &entries[i]
		if !PathUnder(e.point, path) {
			continue
		}
		if best == nil || len(e.point) > len(best.point) {
			best = e
		}
	}
	if best == nil {
		return false
	}
	return best.opts["rw"] && !best.noexec
}

// ImmutableChecker is the read-only immutable-attribute probe contract.
type ImmutableChecker interface {
	IsImmutable(path string) bool
}

// LsattrImmutableChecker shells out to lsattr, the way the original probe
// does, to read the filesystem's immutable (`i`) attribute bit. Absence of
// the tool is inconclusive and treated as "not immutable" (pass), per
// spec.md §4.5.
type LsattrImmutableChecker struct{}

func (LsattrImmutableChecker) IsImmutable(path string) bool {
	out, err := exec.Command("lsattr", "-d", path).Output()
	if err != nil {
		return false
	}
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return false
	}
	return strings.Contains(fields[0], "i")
}
