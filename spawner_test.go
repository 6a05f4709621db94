package supervisor

import (
	"bufio"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TestMain gives this test binary the same closure-child dispatch gate
// Run() has, so spawnClosure's re-exec of os.Executable() (which, under
// `go test`, is this compiled test binary) actually runs a registered
// ClosureFunc instead of re-running the whole test suite.
func TestMain(m *testing.M) {
	if isClosureChild() {
		fn, ok := closureUnderTest()
		if ok {
			runClosureChild(fn) // never returns
		}
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// closureUnderTest lets a re-exec'd child pick the routine to run via an
// env var set by the parent test, since a ClosureFunc can't cross the
// exec boundary any other way.
func closureUnderTest() (ClosureFunc, bool) {
	switch os.Getenv("SUPERVISOR_TEST_CLOSURE") {
	case "echo":
		return func(sock *ChildSocket) {
			sock.Write([]byte(`{"ok":true}` + "\n"))
		}, true
	case "malformed":
		return func(sock *ChildSocket) {
			sock.Write([]byte("bad\n{\"ok\":1}\n"))
		}, true
	}
	return nil, false
}

func TestSpawnCommandPipesAreNonBlocking(t *testing.T) {
	log := zap.NewNop()
	c, err := spawnCommand(log, "sh -c 'echo hello; echo world 1>&2'", ReasonInitial)
	if err != nil {
		t.Fatalf("spawnCommand: %v", err)
	}
	defer closeChildStreams(c)

	if c.Pid <= 0 {
		t.Fatalf("expected positive pid, got %d", c.Pid)
	}
	if !c.Running {
		t.Fatal("expected Running=true immediately after spawn")
	}
	if c.InstanceID == uuid.Nil {
		t.Fatal("expected a non-zero InstanceID")
	}
	if c.stdin == nil || c.stdout == nil || c.stderr == nil || c.ipc == nil {
		t.Fatal("expected all four descriptors to be populated")
	}

	// Give the child a moment to write, then read without blocking forever:
	// a non-blocking fd returns EAGAIN rather than hanging when empty.
	deadline := time.Now().Add(2 * time.Second)
	var gotStdout bool
	for time.Now().Before(deadline) {
		buf := make([]byte, 256)
		n, _ := c.stdout.Read(buf)
		if n > 0 && strings.Contains(string(buf[:n]), "hello") {
			gotStdout = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !gotStdout {
		t.Fatal("did not observe expected stdout content from child")
	}
}

func TestSpawnCommandEmptyCommandFails(t *testing.T) {
	_, err := spawnCommand(zap.NewNop(), "   ", ReasonInitial)
	if err == nil {
		t.Fatal("expected an error spawning an empty command line")
	}
}

func TestSpawnClosureRoundTrip(t *testing.T) {
	if os.Getenv("SUPERVISOR_SKIP_REEXEC_TESTS") != "" {
		t.Skip("re-exec disabled in this environment")
	}
	os.Setenv("SUPERVISOR_TEST_CLOSURE", "echo")
	defer os.Unsetenv("SUPERVISOR_TEST_CLOSURE")

	c, err := spawnClosure(zap.NewNop(), ReasonInitial)
	if err != nil {
		t.Fatalf("spawnClosure: %v", err)
	}
	defer closeChildStreams(c)

	if c.stdin != nil || c.stdout != nil || c.stderr != nil {
		t.Fatal("a Closure child must not populate stdin/stdout/stderr")
	}
	if c.ipc == nil {
		t.Fatal("a Closure child must populate ipc")
	}

	reader := bufio.NewReader(c.ipc)
	deadline := time.Now().Add(3 * time.Second)
	var line string
	for time.Now().Before(deadline) {
		l, err := reader.ReadString('\n')
		if err == nil {
			line = l
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !strings.Contains(line, `"ok":true`) {
		t.Fatalf("expected closure's JSON line on the socket, got %q", line)
	}
}
