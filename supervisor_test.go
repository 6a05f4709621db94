package supervisor_test

import (
	"errors"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/procpool/supervisor"
)

// S1: run() without command/closure raises the configuration error.
func TestRunWithoutConfigurationFails(t *testing.T) {
	err := supervisor.Run(supervisor.Config{})
	if !errors.Is(err, supervisor.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

// runFor starts sup.Run() in a goroutine, lets the loop observe at least
// one tick, and terminates it via SIGTERM to the test process itself
// (the master registers SIGTERM on its own signal.Notify channel, same as
// any other deployment's termination path).
func runFor(t *testing.T, sup *supervisor.Supervisor, d time.Duration) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- sup.Run() }()

	time.Sleep(d)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("self-signal failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after shutdown signal")
	}
}

// S4: min=1, max=2; on Initial create, call scaleUp(); expect reasons
// exactly two create events with reasons [Initial, ScaleUp] in order.
func TestScaleUpOnInitialCreate(t *testing.T) {
	var (
		mu      sync.Mutex
		reasons []supervisor.CreateReason
		sup     *supervisor.Supervisor
	)

	cfg := supervisor.Config{
		Command: "sh -c 'sleep 30'",
		Min:     1,
		Max:     2,
		OnChildCreate: func(c *supervisor.Child) {
			mu.Lock()
			reasons = append(reasons, c.CreateReason)
			mu.Unlock()
			if c.CreateReason == supervisor.ReasonInitial {
				sup.ScaleUp()
			}
		},
	}
	sup = supervisor.New(cfg, nil)

	runFor(t, sup, 500*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(reasons) != 2 {
		t.Fatalf("expected exactly 2 create events, got %d: %v", len(reasons), reasons)
	}
	if reasons[0] != supervisor.ReasonInitial || reasons[1] != supervisor.ReasonScaleUp {
		t.Fatalf("expected [Initial, ScaleUp], got %v", reasons)
	}
}

// S5: min=1, max=3; on first create call scaleUp() twice; once size=3,
// call scaleDown() twice. Expect exit events for exactly 2 distinct pids.
func TestScaleDownTerminatesDistinctChildren(t *testing.T) {
	var (
		mu         sync.Mutex
		sup        *supervisor.Supervisor
		scaledUp   bool
		scaledDown bool
		exitedPid  = map[int]bool{}
	)

	cfg := supervisor.Config{
		Command: "sh -c 'sleep 30'",
		Min:     1,
		Max:     3,
		OnChildCreate: func(c *supervisor.Child) {
			mu.Lock()
			alreadyUp := scaledUp
			scaledUp = true
			mu.Unlock()
			if c.CreateReason == supervisor.ReasonInitial && !alreadyUp {
				sup.ScaleUp()
				sup.ScaleUp()
			}

			mu.Lock()
			alreadyDown := scaledDown
			if len(sup.Snapshot()) == 3 && !alreadyDown {
				scaledDown = true
			}
			mu.Unlock()
			if len(sup.Snapshot()) == 3 && !alreadyDown {
				sup.ScaleDown()
				sup.ScaleDown()
			}
		},
		OnChildExit: func(c *supervisor.Child, reason supervisor.ExitReason) {
			mu.Lock()
			exitedPid[c.Pid] = true
			mu.Unlock()
		},
	}
	sup = supervisor.New(cfg, nil)

	runFor(t, sup, 1*time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(exitedPid) != 2 {
		t.Fatalf("expected exactly 2 distinct exited pids, got %d: %v", len(exitedPid), exitedPid)
	}
}

// S6 (end-to-end via Closure): malformed line dropped, well-formed line
// delivered once.
//
// A Closure routine only ever runs after spawnClosure re-execs the
// current binary into a brand new process; an inline closure literal
// here cannot cross that boundary (the child doesn't share this
// process's memory, just its binary image). The actual routine the
// re-exec'd child runs comes from this test binary's TestMain, dispatched
// by the SUPERVISOR_TEST_CLOSURE env var (see spawner_test.go's
// closureUnderTest) — the Closure value set on cfg below is therefore
// only a non-nil marker that selects the Closure strategy; it is never
// itself invoked in this process.
func TestClosureMalformedIPCLineDropped(t *testing.T) {
	var (
		mu  sync.Mutex
		got []any
	)

	os.Setenv("SUPERVISOR_TEST_CLOSURE", "malformed")
	defer os.Unsetenv("SUPERVISOR_TEST_CLOSURE")

	cfg := supervisor.Config{
		Closure: func(sock *supervisor.ChildSocket) {},
		Min:     1,
		Max:     1,
		OnChildMessage: func(c *supervisor.Child, msg any) {
			mu.Lock()
			got = append(got, msg)
			mu.Unlock()
		},
	}
	sup := supervisor.New(cfg, nil)

	runFor(t, sup, 500*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("expected exactly one delivered message, got %#v", got)
	}
}

// Invariant 11: on graceful shutdown, the registry is empty and no child
// remains unreaped.
func TestShutdownEmptiesRegistry(t *testing.T) {
	sup := supervisor.New(supervisor.Config{
		Command: "sh -c 'sleep 30'",
		Min:     2,
		Max:     2,
	}, nil)

	runFor(t, sup, 300*time.Millisecond)

	if n := len(sup.Snapshot()); n != 0 {
		t.Fatalf("expected empty registry after shutdown, got %d children", n)
	}
}
