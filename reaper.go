package supervisor

import (
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// reapAll drains every finished child without blocking. Grounded on
// process.go:supervise's cmd.Wait()+syscall.WaitStatus classification and
// on podman-rpc-supervisor/supervisor.go's decode_status three-way
// exited/signaled/other split, adapted to syscall.Wait4+WNOHANG to match
// spec.md §4.7's non-blocking drain requirement directly instead of the
// teacher's blocking cmd.Wait() call.
func (s *Supervisor) reapAll() {
	for {
		var ws syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &ws, syscall.WNOHANG, nil)
		if err != nil || pid <= 0 {
			return
		}

		c, ok := s.registry.get(pid)
		if !ok {
			continue // stale: not one of ours (spec.md §4.7)
		}

		s.finishChild(c, ws)
	}
}

// finishChild classifies the exit, closes descriptors, removes c from
// the registry, and invokes onChildExit with a snapshot.
func (s *Supervisor) finishChild(c *Child, ws syscall.WaitStatus) {
	switch {
	case ws.Exited():
		c.ExitReason = ExitNormal
		c.ExitCode = ws.ExitStatus()
	case ws.Signaled():
		c.ExitCode = 0
		if ws.Signal() == forceKillSignal {
			c.ExitReason = ExitKilled
		} else {
			c.ExitReason = ExitSignal
		}
	default:
		c.ExitReason = ExitUnknown
		c.ExitCode = 0
	}
	c.Running = false

	if err := closeChildStreams(c); err != nil {
		s.log.Warn("error closing child descriptors", zap.Int("pid", c.Pid), zap.Error(err))
	}

	s.registry.remove(c.Pid)
	s.logs.forget(c.Pid)

	snap := c.snapshot()
	s.log.Info("child exited",
		zap.Int("pid", c.Pid),
		zap.String("reason", snap.ExitReason.String()),
		zap.Int("exit_code", snap.ExitCode),
	)

	if s.cfg.OnChildExit != nil {
		s.cfg.OnChildExit(snap, snap.ExitReason)
	}
}

// closeChildStreams closes every descriptor a Child owns, aggregating
// independent close failures with multierr.Append rather than stopping
// at the first error — five independent resources (stdin/stdout/stderr/
// ipc/process handle) can each fail closing without affecting the
// others. Closing an already-nil descriptor is a no-op (spec.md §9:
// ownership teardown must be idempotent-safe).
func closeChildStreams(c *Child) error {
	var err error
	if c.stdin != nil {
		err = multierr.Append(err, c.stdin.Close())
		c.stdin = nil
	}
	if c.stdout != nil {
		err = multierr.Append(err, c.stdout.Close())
		c.stdout = nil
	}
	if c.stderr != nil {
		err = multierr.Append(err, c.stderr.Close())
		c.stderr = nil
	}
	if c.ipc != nil {
		err = multierr.Append(err, c.ipc.Close())
		c.ipc = nil
	}
	if c.proc != nil {
		err = multierr.Append(err, c.proc.Release())
		c.proc = nil
	}
	return err
}
