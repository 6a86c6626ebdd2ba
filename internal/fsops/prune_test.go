package fsops

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func snapshotN(t *testing.T, target, tag string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := os.WriteFile(target, []byte{byte('a' + i)}, 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Snapshot(target, tag); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPruneBackups_RetentionCount(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	snapshotN(t, target, "t", 5)

	if err := PruneBackups(target, "t", 2, 0); err != nil {
		t.Fatalf("PruneBackups: %v", err)
	}
	pairs, err := ListPairs(target, "t")
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 2 {
		t.Fatalf("len(pairs) = %d, want 2", len(pairs))
	}
}

func TestPruneBackups_NewestAlwaysRetained(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	snapshotN(t, target, "t", 3)

	latestBefore, _, err := FindLatest(target, "t")
	if err != nil {
		t.Fatal(err)
	}

	if err := PruneBackups(target, "t", 1, 0); err != nil {
		t.Fatalf("PruneBackups: %v", err)
	}
	pairs, err := ListPairs(target, "t")
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 1 {
		t.Fatalf("len(pairs) = %d, want 1 (newest retained regardless of count)", len(pairs))
	}
	if pairs[0].PayloadPath != latestBefore.PayloadPath {
		t.Errorf("retained pair = %s, want newest %s", pairs[0].PayloadPath, latestBefore.PayloadPath)
	}
}

func TestPruneBackups_RetentionCountClampedToOne(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	snapshotN(t, target, "t", 3)

	if err := PruneBackups(target, "t", 0, 0); err != nil {
		t.Fatalf("PruneBackups: %v", err)
	}
	pairs, err := ListPairs(target, "t")
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 1 {
		t.Fatalf("len(pairs) = %d, want 1 (retentionCount<1 clamps to 1)", len(pairs))
	}
}

func TestPruneBackups_AgeBound(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	snapshotN(t, target, "t", 2)

	// maxAge of zero disables the age bound entirely: a huge retention
	// count means nothing gets pruned on age grounds alone.
	if err := PruneBackups(target, "t", 10, 0); err != nil {
		t.Fatalf("PruneBackups: %v", err)
	}
	pairs, err := ListPairs(target, "t")
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 2 {
		t.Fatalf("len(pairs) = %d, want 2 (maxAge=0 must not prune)", len(pairs))
	}

	// A maxAge far in the past prunes everything but the newest pair.
	if err := PruneBackups(target, "t", 10, time.Nanosecond); err != nil {
		t.Fatalf("PruneBackups: %v", err)
	}
	pairs, err = ListPairs(target, "t")
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 1 {
		t.Fatalf("len(pairs) = %d, want 1 (age bound prunes all but newest)", len(pairs))
	}
}
