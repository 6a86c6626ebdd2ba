// Package rescue implements a reference switchyard.RescueChecker that probes
// PATH for a minimal rescue toolset, grounded on
// original_source/src/policy/rescue.rs.
package rescue

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/veighnsche/switchyard/pkg/switchyard"
)

// rescueMustHave mirrors RESCUE_MUST_HAVE: the GNU-subset fallback profile
// consulted when busybox is absent from PATH.
var rescueMustHave = []string{"sh", "ls", "cp", "mv", "rm", "ln", "cat", "chmod"}

// forceEnv is the test override knob the original documents:
// SWITCHYARD_FORCE_RESCUE_OK=1|0 forces the result unconditionally.
const forceEnv = "SWITCHYARD_FORCE_RESCUE_OK"

// Checker implements switchyard.RescueChecker against the live PATH.
type Checker struct{}

var _ switchyard.RescueChecker = Checker{}

// Check reports whether a rescue profile is available: busybox on PATH
// (preferred, single-binary profile; counts as minCount when present), or at
// least minCount of the GNU-subset tools when busybox is absent.
func (Checker) Check(execCheck bool, minCount int) (bool, int) {
	if v := strings.TrimSpace(os.Getenv(forceEnv)); v != "" {
		if v == "1" {
			return true, minCount
		}
		if v == "0" {
			return false, 0
		}
	}

	if p, ok := whichOnPath("busybox"); ok {
		if !execCheck || isExecutable(p) {
			return true, minCount
		}
	}

	found := 0
	for _, bin := range rescueMustHave {
		p, ok := whichOnPath(bin)
		if !ok {
			continue
		}
		if !execCheck || isExecutable(p) {
			found++
		}
	}
	return found >= minCount, found
}

func whichOnPath(bin string) (string, bool) {
	path := os.Getenv("PATH")
	if path == "" {
		return "", false
	}
	for _, dir := range filepath.SplitList(path) {
		cand := filepath.Join(dir, bin)
		if _, err := os.Stat(cand); err == nil {
			return cand, true
		}
	}
	return "", false
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&0o111 != 0
}
