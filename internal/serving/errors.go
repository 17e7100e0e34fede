package serving

import (
	"fmt"
	"strconv"
)

// modelNotFoundError signals a name with no registry entry at all.
type modelNotFoundError struct{ name string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.name }

func ErrModelNotFound(name string) error { return modelNotFoundError{name: name} }

// IsModelNotFound reports whether err indicates an unknown model name.
func IsModelNotFound(err error) bool {
	_, ok := err.(modelNotFoundError)
	return ok
}

// versionNotAvailableError signals an explicit version that is absent or
// not in the available state.
type versionNotAvailableError struct {
	name    string
	version int64
}

func (e versionNotAvailableError) Error() string {
	return "version not available: " + e.name + "/" + strconv.FormatInt(e.version, 10)
}

func ErrVersionNotAvailable(name string, version int64) error {
	return versionNotAvailableError{name: name, version: version}
}

// IsVersionNotAvailable reports whether err indicates an explicit version
// that cannot serve.
func IsVersionNotAvailable(err error) bool {
	_, ok := err.(versionNotAvailableError)
	return ok
}

// noAvailableVersionError signals a name whose version set holds no
// available entry for latest-version selection.
type noAvailableVersionError struct{ name string }

func (e noAvailableVersionError) Error() string { return "no available version: " + e.name }

func ErrNoAvailableVersion(name string) error { return noAvailableVersionError{name: name} }

// IsNoAvailableVersion reports whether err indicates an empty available set.
func IsNoAvailableVersion(err error) bool {
	_, ok := err.(noAvailableVersionError)
	return ok
}

// duplicateVersionError signals a publish that collides with an existing
// (name, version) pair.
type duplicateVersionError struct{ id ServableID }

func (e duplicateVersionError) Error() string { return "duplicate version: " + e.id.String() }

func ErrDuplicateVersion(id ServableID) error { return duplicateVersionError{id: id} }

// IsDuplicateVersion reports whether err indicates a version collision.
func IsDuplicateVersion(err error) bool {
	_, ok := err.(duplicateVersionError)
	return ok
}

// unsupportedOperationError signals an operation tag outside the fixed
// dispatch table.
type unsupportedOperationError struct{ op Operation }

func (e unsupportedOperationError) Error() string {
	return "unsupported operation: " + string(e.op)
}

func ErrUnsupportedOperation(op Operation) error { return unsupportedOperationError{op: op} }

// IsUnsupportedOperation reports whether err indicates an unknown operation.
func IsUnsupportedOperation(err error) bool {
	_, ok := err.(unsupportedOperationError)
	return ok
}

// invalidArgumentError signals a malformed request payload, e.g. an
// unsupported metadata field or a payload of the wrong type for the
// operation.
type invalidArgumentError struct{ msg string }

func (e invalidArgumentError) Error() string { return e.msg }

func ErrInvalidArgument(format string, args ...any) error {
	return invalidArgumentError{msg: fmt.Sprintf(format, args...)}
}

// IsInvalidArgument reports whether err indicates a malformed request.
func IsInvalidArgument(err error) bool {
	_, ok := err.(invalidArgumentError)
	return ok
}

// stillInUseError signals an unload attempted while calls are still
// attributed to the servable. Returned only to lifecycle callers, never
// on the request path.
type stillInUseError struct {
	id       ServableID
	inflight int64
}

func (e stillInUseError) Error() string {
	return "still in use: " + e.id.String() + " (" + strconv.FormatInt(e.inflight, 10) + " in flight)"
}

func ErrStillInUse(id ServableID, inflight int64) error {
	return stillInUseError{id: id, inflight: inflight}
}

// IsStillInUse reports whether err indicates a blocked unload.
func IsStillInUse(err error) bool {
	_, ok := err.(stillInUseError)
	return ok
}

// runtimeError wraps an execution-engine failure verbatim. The engine's
// error is reachable through Unwrap; the core never reinterprets it.
type runtimeError struct {
	id  ServableID
	err error
}

func (e runtimeError) Error() string { return e.id.String() + ": " + e.err.Error() }

func (e runtimeError) Unwrap() error { return e.err }

func ErrRuntime(id ServableID, err error) error { return runtimeError{id: id, err: err} }

// IsRuntime reports whether err wraps an execution-engine failure.
func IsRuntime(err error) bool {
	_, ok := err.(runtimeError)
	return ok
}

// deadlineExceededError signals a call that outran its RunOptions deadline.
type deadlineExceededError struct{ id ServableID }

func (e deadlineExceededError) Error() string { return "deadline exceeded: " + e.id.String() }

func ErrDeadlineExceeded(id ServableID) error { return deadlineExceededError{id: id} }

// IsDeadlineExceeded reports whether err indicates an expired deadline.
func IsDeadlineExceeded(err error) bool {
	_, ok := err.(deadlineExceededError)
	return ok
}
