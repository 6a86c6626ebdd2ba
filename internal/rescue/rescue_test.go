package rescue

import (
	"os"
	"testing"
)

func writeExecutable(path string) error {
	return os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755)
}

func writeFile(path string, mode os.FileMode) error {
	return os.WriteFile(path, []byte("data"), mode)
}

func TestChecker_ForcedEnvOverridesYieldsOK(t *testing.T) {
	t.Setenv(forceEnv, "1")
	ok, found := (Checker{}).Check(true, 5)
	if !ok {
		t.Fatal("SWITCHYARD_FORCE_RESCUE_OK=1 must force Check to report available")
	}
	if found != 5 {
		t.Errorf("found = %d, want minCount (5) echoed back", found)
	}
}

func TestChecker_ForcedEnvOverrideYieldsFail(t *testing.T) {
	t.Setenv(forceEnv, "0")
	ok, found := (Checker{}).Check(true, 1)
	if ok {
		t.Fatal("SWITCHYARD_FORCE_RESCUE_OK=0 must force Check to report unavailable")
	}
	if found != 0 {
		t.Errorf("found = %d, want 0", found)
	}
}

func TestChecker_EmptyOverrideFallsThroughToRealProbe(t *testing.T) {
	t.Setenv(forceEnv, "")
	t.Setenv("PATH", "")
	ok, found := (Checker{}).Check(true, 1)
	if ok {
		t.Error("an empty PATH with no override must report unavailable")
	}
	if found != 0 {
		t.Errorf("found = %d, want 0 with an empty PATH", found)
	}
}

func TestChecker_MinCountZeroAlwaysSatisfied(t *testing.T) {
	t.Setenv(forceEnv, "")
	t.Setenv("PATH", "")
	ok, _ := (Checker{}).Check(true, 0)
	if !ok {
		t.Error("minCount=0 must always be satisfied, even with zero tools found")
	}
}

func TestWhichOnPath_FindsBinaryInDirectory(t *testing.T) {
	dir := t.TempDir()
	binPath := dir + "/mytool"
	if err := writeExecutable(binPath); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir)

	got, ok := whichOnPath("mytool")
	if !ok {
		t.Fatal("expected whichOnPath to find mytool on PATH")
	}
	if got != binPath {
		t.Errorf("whichOnPath = %q, want %q", got, binPath)
	}
}

func TestWhichOnPath_MissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	if _, ok := whichOnPath("does-not-exist-anywhere"); ok {
		t.Error("expected whichOnPath to report not-found for a missing binary")
	}
}

func TestIsExecutable(t *testing.T) {
	dir := t.TempDir()
	execPath := dir + "/exec"
	if err := writeExecutable(execPath); err != nil {
		t.Fatal(err)
	}
	nonExecPath := dir + "/nonexec"
	if err := writeFile(nonExecPath, 0o644); err != nil {
		t.Fatal(err)
	}

	if !isExecutable(execPath) {
		t.Error("expected the 0o755 file to be reported executable")
	}
	if isExecutable(nonExecPath) {
		t.Error("expected the 0o644 file to be reported non-executable")
	}
}
