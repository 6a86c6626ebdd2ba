package switchyard

import "github.com/pkg/errors"

// ErrorId is the stable error taxonomy emitted at every failure boundary.
// Values never change shape once published; add new ids, never repurpose one.
type ErrorId string

const (
	ErrPolicy        ErrorId = "E_POLICY"
	ErrOwnership     ErrorId = "E_OWNERSHIP"
	ErrLocking       ErrorId = "E_LOCKING"
	ErrAtomicSwap    ErrorId = "E_ATOMIC_SWAP"
	ErrExdev         ErrorId = "E_EXDEV"
	ErrBackupMissing ErrorId = "E_BACKUP_MISSING"
	ErrRestoreFailed ErrorId = "E_RESTORE_FAILED"
	ErrSmoke         ErrorId = "E_SMOKE"
	ErrGeneric       ErrorId = "E_GENERIC"
)

// exitCodes mirrors the id<->exit_code table in spec.md §6.
var exitCodes = map[ErrorId]int{
	ErrPolicy:        10,
	ErrOwnership:     20,
	ErrLocking:       30,
	ErrAtomicSwap:    40,
	ErrExdev:         50,
	ErrBackupMissing: 60,
	ErrRestoreFailed: 70,
	ErrSmoke:         80,
	ErrGeneric:       1,
}

// ExitCode returns the stable process-exit code for an ErrorId. Unknown ids
// (which should never occur for a value produced by this package) map to the
// generic code.
func (id ErrorId) ExitCode() int {
	if code, ok := exitCodes[id]; ok {
		return code
	}
	return exitCodes[ErrGeneric]
}

func (id ErrorId) String() string { return string(id) }

// TaggedError pairs an underlying cause with a stable ErrorId so executor and
// summary code can recover the taxonomy without re-classifying error text.
type TaggedError struct {
	Id     ErrorId
	Detail string
	cause  error
}

func (e *TaggedError) Error() string {
	if e.cause != nil {
		return string(e.Id) + ": " + e.cause.Error()
	}
	return string(e.Id) + ": " + e.Detail
}

func (e *TaggedError) Unwrap() error { return e.cause }

// Tag wraps cause (which may be nil) with a stable ErrorId, in the style of
// errors.Wrap so callers keep a full cause chain for logging while the
// taxonomy stays recoverable via AsTagged.
func Tag(id ErrorId, detail string, cause error) *TaggedError {
	if cause != nil {
		return &TaggedError{Id: id, Detail: detail, cause: errors.Wrap(cause, detail)}
	}
	return &TaggedError{Id: id, Detail: detail}
}

// AsTagged recovers the ErrorId carried by err, defaulting to E_GENERIC when
// err was not produced via Tag.
func AsTagged(err error) (ErrorId, string) {
	if err == nil {
		return "", ""
	}
	var t *TaggedError
	if errors.As(err, &t) {
		return t.Id, t.Detail
	}
	return ErrGeneric, err.Error()
}
