package supervisor

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"
)

// Signal roster grounded on podman-rpc-supervisor/supervisor.go's
// signal.Notify set and on the teleport WaitForSignals signal roster
// (other_examples/..., cited for the roster only — fanout/deferral logic
// below is spec.md's own).
const (
	terminateSignal = syscall.SIGTERM
	forceKillSignal = syscall.SIGKILL
	reloadSignal    = syscall.SIGHUP
	user1Signal     = syscall.SIGUSR1
	user2Signal     = syscall.SIGUSR2
)

// signalGate installs handlers that set flags or fan out read-only work
// immediately, per spec.md §4.9. Handlers must not mutate the registry
// or invoke callbacks that do more than a read-only traversal; deeper
// work is deferred to the loop body by flag. Uses atomic.Bool for
// handler-to-loop communication, matching processmgr/process.go's
// atomic.Bool/atomic.Int64 idiom for the same cross-goroutine purpose.
type signalGate struct {
	childExitPending atomic.Bool
	shutdownPending  atomic.Bool

	ch chan os.Signal
}

func newSignalGate() *signalGate {
	g := &signalGate{ch: make(chan os.Signal, 64)}
	signal.Notify(g.ch,
		syscall.SIGCHLD,
		syscall.SIGTERM,
		syscall.SIGINT,
		reloadSignal,
		user1Signal,
		user2Signal,
	)
	return g
}

func (g *signalGate) stop() { signal.Stop(g.ch) }

// drainSignals processes every signal queued since the last call, setting flags
// or fanning out inline, and returns without blocking.
func (s *Supervisor) drainSignals() {
	for {
		select {
		case sig := <-s.sig.ch:
			switch sig {
			case syscall.SIGCHLD:
				s.sig.childExitPending.Store(true)
			case syscall.SIGTERM, syscall.SIGINT:
				s.sig.shutdownPending.Store(true)
			case reloadSignal:
				s.forwardReload()
			case user1Signal:
				s.fanoutUserSignal(int(user1Signal))
			case user2Signal:
				s.fanoutUserSignal(int(user2Signal))
			}
		default:
			return
		}
	}
}

// forwardReload propagates SIGHUP to every registered child. Read-only
// traversal, safe to run inline per spec.md §4.9.
func (s *Supervisor) forwardReload() {
	for _, c := range s.registry.all() {
		if err := s.signalChild(c, reloadSignal); err != nil {
			s.log.Warn("reload forward failed", zap.Int("pid", c.Pid), zap.Error(err))
		}
	}
}

// fanoutUserSignal invokes OnChildSignal for every live child.
func (s *Supervisor) fanoutUserSignal(signum int) {
	if s.cfg.OnChildSignal == nil {
		return
	}
	for _, c := range s.registry.all() {
		s.cfg.OnChildSignal(c, signum)
	}
}

// Signal delivers sig to any pid, live or not ours to track; a failure
// (e.g. pid not found) is returned but never panics the loop.
func (s *Supervisor) Signal(pid int, sig syscall.Signal) error {
	c, ok := s.registry.get(pid)
	if !ok {
		return syscall.Kill(pid, sig)
	}
	return s.signalChild(c, sig)
}

// signalChild signals the whole process group when one was established
// (Command/Closure children are both started with Setpgid), falling back
// to the bare pid otherwise.
func (s *Supervisor) signalChild(c *Child, sig syscall.Signal) error {
	if err := syscall.Kill(-c.Pid, sig); err != nil {
		return syscall.Kill(c.Pid, sig)
	}
	return nil
}
