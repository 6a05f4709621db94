package supervisor

import "time"

// ClosureFunc is the routine invoked in a Closure-strategy child. sock is
// the child's end of the connected stream socket; writes to it must be
// newline-delimited JSON to reach the master's onChildMessage callback.
// The child process exits with status 0 when fn returns.
type ClosureFunc func(sock *ChildSocket)

// ChildCreateFunc fires after a Child is inserted into the registry.
type ChildCreateFunc func(c *Child)

// ChildExitFunc fires after a Child is removed from the registry and its
// descriptors closed. Not guaranteed to fire for children reaped during
// shutdown (spec.md §4.10).
type ChildExitFunc func(c *Child, reason ExitReason)

// ChildSignalFunc fires once per live Child when user1/user2 is received
// by the master.
type ChildSignalFunc func(c *Child, signum int)

// ChildMessageFunc fires once per well-formed JSON line received on a
// Child's IPC channel. msg is the decoded value: object, array, or
// scalar.
type ChildMessageFunc func(c *Child, msg any)

// ChildOutputFunc fires with raw bytes read from a Child's stdout or
// stderr. No newline normalization is performed, and stdout/stderr bytes
// may interleave across calls.
type ChildOutputFunc func(c *Child, data []byte)

// HeartbeatFunc fires periodically per Config.HeartbeatInterval.
type HeartbeatFunc func()

// ShutdownFunc fires exactly once, before the terminate broadcast, with
// the registry still fully populated.
type ShutdownFunc func()

// Config describes a worker pool. Exactly one of Command or Closure must
// be set.
type Config struct {
	// Command, if non-empty, selects the Command strategy: a shell-style
	// command line exec'd with four inherited descriptors (stdin,
	// stdout, stderr, IPC).
	Command string

	// Closure, if non-nil, selects the Closure strategy: the current
	// binary is re-exec'd, and fn runs in the child with the connected
	// end of a unix-domain stream socket.
	Closure ClosureFunc

	// Min and Max bound registry cardinality, inclusive.
	Min int
	Max int

	// HeartbeatInterval enables the heartbeat callback when > 0.
	HeartbeatInterval time.Duration
	HeartbeatCallback HeartbeatFunc

	OnChildCreate  ChildCreateFunc
	OnChildExit    ChildExitFunc
	OnChildSignal  ChildSignalFunc
	OnChildMessage ChildMessageFunc
	OnChildOutput  ChildOutputFunc
	OnShutdown     ShutdownFunc
}

func (c *Config) validate() error {
	switch {
	case c.Command == "" && c.Closure == nil:
		return ErrNotConfigured
	case c.Command != "" && c.Closure != nil:
		return ErrAmbiguousStrategy
	}
	return nil
}
