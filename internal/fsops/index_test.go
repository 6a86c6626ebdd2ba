package fsops

import (
	"os"
	"path/filepath"
	"testing"
)

func TestListPairs_OrderingAndTagFilter(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	if err := os.WriteFile(target, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Snapshot(target, "alpha"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(target, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Snapshot(target, "alpha"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(target, []byte("v3"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Snapshot(target, "beta"); err != nil {
		t.Fatal(err)
	}

	all, err := ListPairs(target, "")
	if err != nil {
		t.Fatalf("ListPairs wildcard: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(all) = %d, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].TsMs < all[i].TsMs {
			t.Errorf("pairs not sorted descending by timestamp: %+v", all)
		}
	}

	alpha, err := ListPairs(target, "alpha")
	if err != nil {
		t.Fatalf("ListPairs alpha: %v", err)
	}
	if len(alpha) != 2 {
		t.Fatalf("len(alpha) = %d, want 2", len(alpha))
	}
	for _, p := range alpha {
		if p.Tag != "alpha" {
			t.Errorf("tag filter leaked pair with tag %q", p.Tag)
		}
	}
}

func TestFindLatestAndFindPrevious(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	if err := os.WriteFile(target, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, found, err := FindLatest(target, "t"); err != nil || found {
		t.Fatalf("FindLatest on empty index: found=%v err=%v", found, err)
	}
	if _, found, err := FindPrevious(target, "t"); err != nil || found {
		t.Fatalf("FindPrevious on empty index: found=%v err=%v", found, err)
	}

	first, err := Snapshot(target, "t")
	if err != nil {
		t.Fatal(err)
	}
	latest, found, err := FindLatest(target, "t")
	if err != nil || !found {
		t.Fatalf("FindLatest after one snapshot: found=%v err=%v", found, err)
	}
	if latest.PayloadPath != first {
		t.Errorf("FindLatest = %s, want %s", latest.PayloadPath, first)
	}
	if _, found, err := FindPrevious(target, "t"); err != nil || found {
		t.Fatalf("FindPrevious with only one pair must report not-found: found=%v err=%v", found, err)
	}

	if err := os.WriteFile(target, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	second, err := Snapshot(target, "t")
	if err != nil {
		t.Fatal(err)
	}

	latest, found, err = FindLatest(target, "t")
	if err != nil || !found || latest.PayloadPath != second {
		t.Fatalf("FindLatest after two snapshots = %s found=%v err=%v, want %s", latest.PayloadPath, found, err, second)
	}
	previous, found, err := FindPrevious(target, "t")
	if err != nil || !found || previous.PayloadPath != first {
		t.Fatalf("FindPrevious after two snapshots = %s found=%v err=%v, want %s", previous.PayloadPath, found, err, first)
	}
}

func TestHasBackupArtifacts(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	if err := os.WriteFile(target, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	has, err := HasBackupArtifacts(target, "t")
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Error("HasBackupArtifacts must be false before any snapshot")
	}

	if _, err := Snapshot(target, "t"); err != nil {
		t.Fatal(err)
	}
	has, err = HasBackupArtifacts(target, "t")
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Error("HasBackupArtifacts must be true after a snapshot")
	}
}
