package supervisor

import (
	"syscall"
	"time"

	"go.uber.org/zap"
)

const shutdownDrainDeadline = 5 * time.Second

// shutdown implements spec.md §4.10: broadcast terminate, drain exits
// for up to five wall-clock seconds without blocking, then force-kill
// survivors and block until each is reaped. The registry is empty on
// return. onChildExit is NOT invoked for shutdown-reaped children (only
// for children that died during normal operation), per spec.md §4.10.
//
// Structurally this restructures process_manager.go:superviseProcess's
// per-process SIGTERM-then-timer-then-SIGKILL escalation from N
// concurrent goroutines into a single pass over the whole registry, as
// the single-threaded loop model requires.
func (s *Supervisor) shutdown() {
	if s.cfg.OnShutdown != nil {
		s.cfg.OnShutdown()
	}

	for _, c := range s.registry.all() {
		if err := s.signalChild(c, terminateSignal); err != nil {
			s.log.Warn("shutdown: terminate signal failed", zap.Int("pid", c.Pid), zap.Error(err))
		}
	}

	deadline := time.Now().Add(shutdownDrainDeadline)
	for time.Now().Before(deadline) && s.registry.size() > 0 {
		s.drainExitsNonBlocking()
		if s.registry.size() == 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	// Force-kill and block until every survivor is reaped.
	for _, c := range s.registry.all() {
		if err := s.signalChild(c, forceKillSignal); err != nil {
			s.log.Warn("shutdown: force-kill failed", zap.Int("pid", c.Pid), zap.Error(err))
		}
	}
	s.drainExitsBlocking()

	s.log.Info("shutdown complete")
}

// drainExitsNonBlocking reaps without blocking, closing streams and
// removing each reaped pid from the registry, without invoking
// onChildExit.
func (s *Supervisor) drainExitsNonBlocking() {
	for {
		var ws syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &ws, syscall.WNOHANG, nil)
		if err != nil || pid <= 0 {
			return
		}
		s.reapQuietly(pid)
	}
}

// drainExitsBlocking waits (blocking) for every remaining registered
// child to be reaped, per spec.md §4.10's final phase.
func (s *Supervisor) drainExitsBlocking() {
	for s.registry.size() > 0 {
		var ws syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &ws, 0, nil)
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			if err == syscall.ECHILD {
				return
			}
			continue
		}
		s.reapQuietly(pid)
	}
}

// reapQuietly closes a reaped child's streams and removes it from the
// registry without firing onChildExit, per the shutdown-callback
// ambiguity resolution in spec.md §4.10/§9.
func (s *Supervisor) reapQuietly(pid int) {
	c, ok := s.registry.get(pid)
	if !ok {
		return
	}
	if err := closeChildStreams(c); err != nil {
		s.log.Warn("shutdown: error closing child descriptors", zap.Int("pid", pid), zap.Error(err))
	}
	s.registry.remove(pid)
	s.logs.forget(pid)
}
