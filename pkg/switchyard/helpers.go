package switchyard

import (
	goerrors "errors"

	"github.com/veighnsche/switchyard/internal/fsops"
	"golang.org/x/sys/unix"
)

// asFsopsError recovers an *fsops.Error from an error chain, mirroring
// errors.As without requiring fsops to depend on this package.
func asFsopsError(err error, target **fsops.Error) bool {
	return goerrors.As(err, target)
}

// isExdev reports whether err (or a cause in its chain) is EXDEV, the
// cross-device rename refusal atomic swap maps to E_EXDEV.
func isExdev(err error) bool {
	return goerrors.Is(err, unix.EXDEV)
}
