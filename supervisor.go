package supervisor

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

const idleSleep = 100 * time.Millisecond // spec.md §4.1 step 3

// Supervisor is the master-side event loop. Construct with New and block
// on Run; Run is the library's single blocking entry point.
type Supervisor struct {
	cfg Config
	log *zap.Logger

	registry *registry
	sig      *signalGate
	logs     *logManager

	limitsMu sync.Mutex
	min, max int

	lastHeartbeat time.Time
}

// New constructs a Supervisor from cfg. Validation of the
// command-xor-closure requirement happens in Run, matching spec.md §6:
// "Starting run() without either command or closure configured fails
// immediately with a configuration error."
func New(cfg Config, log *zap.Logger) *Supervisor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Supervisor{
		cfg:      cfg,
		log:      log.Named("supervisor"),
		registry: newRegistry(),
		logs:     newLogManager(),
		min:      cfg.Min,
		max:      cfg.Max,
	}
}

// Run is the single blocking entry point. It dispatches to the Closure
// child path if this process was re-exec'd for that purpose (see
// DESIGN.md "Fork/closure translation to Go"); otherwise it validates
// configuration, establishes the initial pool, and drives the event loop
// until a termination signal arrives, returning after ShutdownOrchestrator
// completes. The closure-child gate itself lives on the (*Supervisor).Run
// method below, so this is just a convenience constructor-and-run.
func Run(cfg Config) error {
	return New(cfg, nil).Run()
}

// RunWithLogger is Run with an explicit logger, for embedders that want
// supervisor log lines folded into their own zap tree.
func RunWithLogger(cfg Config, log *zap.Logger) error {
	return New(cfg, log).Run()
}

// Run blocks until the shutdown flag is raised, then runs the shutdown
// orchestrator and returns. Gated on isClosureChild(); the package-level
// Run/RunWithLogger reach the Closure child path only through this gate.
// A re-exec'd Closure child reaches this
// same method (the documented pattern for giving a callback access to
// its own Supervisor constructs one with New and calls sup.Run()
// directly), and without this check it would build a second Supervisor
// and start spawning its own children instead of running cfg.Closure.
func (s *Supervisor) Run() error {
	if isClosureChild() {
		if s.cfg.Closure == nil {
			return ErrNotConfigured
		}
		runClosureChild(s.cfg.Closure) // never returns
		return nil
	}

	if err := s.cfg.validate(); err != nil {
		return err
	}

	s.sig = newSignalGate()
	defer s.sig.stop()

	s.lastHeartbeat = time.Now()
	s.fillInitial() // establish the initial pool to Config.Min, reason Initial

	for {
		s.drainSignals()

		files := s.collectStreams()
		if len(files) > 0 {
			ready, err := pollReadable(files)
			if err != nil {
				s.log.Warn("poll error", zap.Error(err))
			}
			for _, f := range ready {
				s.dispatchReady(f)
			}
		} else {
			time.Sleep(idleSleep)
		}

		s.maybeHeartbeat()

		if s.sig.childExitPending.Load() {
			s.sig.childExitPending.Store(false)
			s.reapAll()
			s.replenish()
		}

		if s.sig.shutdownPending.Load() {
			break
		}
	}

	s.shutdown()
	return nil
}

func (s *Supervisor) collectStreams() []*os.File {
	var files []*os.File
	for _, c := range s.registry.all() {
		files = append(files, c.streams()...)
	}
	return files
}

func (s *Supervisor) maybeHeartbeat() {
	if s.cfg.HeartbeatInterval <= 0 || s.cfg.HeartbeatCallback == nil {
		return
	}
	if time.Since(s.lastHeartbeat) >= s.cfg.HeartbeatInterval {
		s.cfg.HeartbeatCallback()
		s.lastHeartbeat = time.Now()
	}
}

// SendInput writes to a Child's stdin if present; silently no-ops
// otherwise (spec.md §7).
func (s *Supervisor) SendInput(pid int, data []byte) {
	c, ok := s.registry.get(pid)
	if !ok || c.stdin == nil {
		return
	}
	if _, err := c.stdin.Write(data); err != nil {
		s.log.Warn("send child input failed", zap.Int("pid", pid), zap.Error(err))
	}
}

// Tail returns the last n output lines captured for pid, newest first.
// ok is false if pid is unknown (including already-reaped children).
func (s *Supervisor) Tail(pid int, n int) (lines []string, ok bool) {
	return s.logs.tail(pid, n)
}

// Snapshot returns a point-in-time list of live children.
func (s *Supervisor) Snapshot() []*Child {
	all := s.registry.all()
	out := make([]*Child, len(all))
	for i, c := range all {
		cp := *c
		out[i] = &cp
	}
	return out
}
