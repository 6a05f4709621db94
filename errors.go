package supervisor

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned by Run when neither Config.Command nor
// Config.Closure is set.
var ErrNotConfigured = errors.New("supervisor: neither command nor closure configured")

// ErrAmbiguousStrategy is returned by Run when both Config.Command and
// Config.Closure are set. spec.md §3 requires exactly one.
var ErrAmbiguousStrategy = errors.New("supervisor: both command and closure configured, exactly one required")

// ErrSpawnFailed wraps a failure to launch or fork a child.
var ErrSpawnFailed = errors.New("supervisor: spawn failed")

// ErrIPCSetupFailed wraps a failure to allocate the IPC channel (the
// fourth pipe for Command children, or the socketpair for Closure
// children). It is always wrapped by ErrSpawnFailed.
var ErrIPCSetupFailed = errors.New("supervisor: ipc setup failed")

// SpawnError carries the command line (when available) that failed to
// launch, alongside the underlying cause.
type SpawnError struct {
	Command string
	Cause   error
}

func (e *SpawnError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("supervisor: spawn failed: %v", e.Cause)
	}
	return fmt.Sprintf("supervisor: spawn failed for %q: %v", e.Command, e.Cause)
}

func (e *SpawnError) Unwrap() error { return e.Cause }

func (e *SpawnError) Is(target error) bool {
	return target == ErrSpawnFailed
}

func newSpawnError(command string, cause error) *SpawnError {
	return &SpawnError{Command: command, Cause: cause}
}
