package fsops

import (
	"os"
	"path/filepath"
	"testing"
)

func writeMounts(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "mounts")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProcMountInspector_RWExec(t *testing.T) {
	mounts := "" +
		"tmpfs / tmpfs rw,relatime 0 0\n" +
		"tmpfs /run tmpfs ro,noexec,relatime 0 0\n" +
		"tmpfs /run/user tmpfs rw,noexec,relatime 0 0\n"
	inspector := ProcMountInspector{MountsPath: writeMounts(t, mounts)}

	if !inspector.RWExec("/home/user/bin") {
		t.Error("path under / (rw, no noexec) must report RWExec true")
	}
	if inspector.RWExec("/run/locks") {
		t.Error("path under /run (ro,noexec) must report RWExec false")
	}
	if inspector.RWExec("/run/user/1000") {
		t.Error("path under /run/user (rw but noexec) must report RWExec false")
	}
}

func TestProcMountInspector_LongestPrefixWins(t *testing.T) {
	mounts := "" +
		"tmpfs / tmpfs rw,relatime 0 0\n" +
		"tmpfs /mnt tmpfs ro,relatime 0 0\n"
	inspector := ProcMountInspector{MountsPath: writeMounts(t, mounts)}

	if inspector.RWExec("/mnt/data") {
		t.Error("/mnt/data should match the more specific ro /mnt entry, not /")
	}
	if !inspector.RWExec("/home") {
		t.Error("/home should match / (rw)")
	}
}

func TestProcMountInspector_UnreadableIsFailClosed(t *testing.T) {
	inspector := ProcMountInspector{MountsPath: filepath.Join(t.TempDir(), "does-not-exist")}
	if inspector.RWExec("/anything") {
		t.Error("an unreadable mount table must fail closed (false), never panic or report true")
	}
}

func TestPathUnder_ComponentAware(t *testing.T) {
	cases := []struct {
		root, target string
		want          bool
	}{
		{"/usr", "/usr/bin/ls", true},
		{"/usr", "/usr", true},
		{"/usr", "/usr2/bin/ls", false},
		{"/usr/bin", "/usr/bin-compat/ls", false},
		{"/", "/anything/at/all", true},
	}
	for _, c := range cases {
		if got := PathUnder(c.root, c.target); got != c.want {
			t.Errorf("PathUnder(%q, %q) = %v, want %v", c.root, c.target, got, c.want)
		}
	}
}

func TestProcMountInspector_AdjacentMountPointSibling(t *testing.T) {
	mounts := "" +
		"tmpfs / tmpfs rw,relatime 0 0\n" +
		"tmpfs /usr tmpfs ro,relatime 0 0\n"
	inspector := ProcMountInspector{MountsPath: writeMounts(t, mounts)}

	if !inspector.RWExec("/usr2/bin/ls") {
		t.Error("/usr2/bin/ls is a sibling of /usr, not a descendant; it must match / (rw), not /usr (ro)")
	}
	if inspector.RWExec("/usr/bin/ls") {
		t.Error("/usr/bin/ls is a true descendant of /usr (ro) and must not report rw")
	}
}

func TestProcMountInspector_NoMatchingEntry(t *testing.T) {
	mounts := "tmpfs /mnt tmpfs rw,relatime 0 0\n"
	inspector := ProcMountInspector{MountsPath: writeMounts(t, mounts)}
	if inspector.RWExec("/var/lib/something") {
		t.Error("a path with no covering mount entry must report false")
	}
}
