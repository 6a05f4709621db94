package supervisor

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChildSocket is the opaque handle a Closure routine receives: the
// child's end of the connected unix-domain stream socket shared with the
// master. Writes must be newline-delimited JSON.
type ChildSocket struct {
	f *os.File
}

func (s *ChildSocket) Read(p []byte) (int, error)  { return s.f.Read(p) }
func (s *ChildSocket) Write(p []byte) (int, error) { return s.f.Write(p) }
func (s *ChildSocket) Close() error                { return s.f.Close() }

const (
	closureEnvKey = "SUPERVISOR_CLOSURE_CHILD"
	closureEnvVal = "1"
	closureSockFd = 3 // ExtraFiles[0] lands at fd 3, after 0/1/2
)

// isClosureChild reports whether this process was re-exec'd to run a
// Closure routine (see DESIGN.md "Fork/closure translation to Go").
func isClosureChild() bool {
	return os.Getenv(closureEnvKey) == closureEnvVal
}

// runClosureChild invokes fn with the inherited socket and never
// returns: it terminates the process when fn returns, mirroring the
// spec's "child exits when it returns" contract for a real fork.
func runClosureChild(fn ClosureFunc) {
	f := os.NewFile(uintptr(closureSockFd), "supervisor-closure-sock")
	sock := &ChildSocket{f: f}
	defer sock.Close()
	fn(sock)
	os.Exit(0)
}

// spawnCommand launches Config.Command with four inherited descriptors:
// 0=stdin, 1=stdout, 2=stderr, 3=IPC (newline-delimited JSON). Mirrors
// processmgr/process.go:pipes() — manual pipe allocation with
// atomic-on-error teardown, plus Setpgid/Pdeathsig on Linux.
func spawnCommand(log *zap.Logger, commandLine string, reason CreateReason) (*Child, error) {
	if strings.TrimSpace(commandLine) == "" {
		return nil, newSpawnError(commandLine, fmt.Errorf("empty command"))
	}

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return nil, newSpawnError(commandLine, fmt.Errorf("stdin pipe: %w", err))
	}
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		return nil, newSpawnError(commandLine, fmt.Errorf("stdout pipe: %w", err))
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		stdoutR.Close()
		stdoutW.Close()
		return nil, newSpawnError(commandLine, fmt.Errorf("stderr pipe: %w", err))
	}
	ipcR, ipcW, err := os.Pipe()
	if err != nil {
		stdinR.Close()
		stdinW.Close()
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		return nil, newSpawnError(commandLine, fmt.Errorf("%w: ipc pipe: %v", ErrIPCSetupFailed, err))
	}

	// commandLine is shell-style (spec.md §6: "a shell-style command
	// line"), so it is exec'd through a shell rather than hand-split on
	// whitespace — that would break any quoting the caller relies on.
	cmd := exec.Command("sh", "-c", commandLine)
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	cmd.ExtraFiles = []*os.File{ipcW}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}

	if err := cmd.Start(); err != nil {
		stdinR.Close()
		stdinW.Close()
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		ipcR.Close()
		ipcW.Close()
		return nil, newSpawnError(commandLine, err)
	}

	// The child now owns its ends; release the master's duplicate copies.
	stdinR.Close()
	stdoutW.Close()
	stderrW.Close()
	ipcW.Close()

	for _, f := range []*os.File{stdinW, stdoutR, stderrR, ipcR} {
		if err := syscall.SetNonblock(int(f.Fd()), true); err != nil {
			log.Warn("failed to set descriptor non-blocking", zap.Error(err))
		}
	}

	pid := cmd.Process.Pid
	log.Info("child spawned", zap.Int("pid", pid), zap.String("reason", reason.String()), zap.String("command", commandLine))

	return &Child{
		Pid:          pid,
		InstanceID:   uuid.New(),
		CreateReason: reason,
		Running:      true,
		ExitReason:   ExitUnknown,
		proc:         cmd.Process,
		stdin:        stdinW,
		stdout:       stdoutR,
		stderr:       stderrR,
		ipc:          ipcR,
	}, nil
}

// spawnClosure launches a Closure-strategy child by re-exec'ing the
// current binary with a socketpair end passed as ExtraFiles[0]. See
// DESIGN.md "Fork/closure translation to Go" for why this replaces a
// literal fork(2).
func spawnClosure(log *zap.Logger, reason CreateReason) (*Child, error) {
	fds, err := syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	if err != nil {
		return nil, newSpawnError("", fmt.Errorf("%w: socketpair: %v", ErrIPCSetupFailed, err))
	}
	parentEnd := os.NewFile(uintptr(fds[0]), "supervisor-closure-parent")
	childEnd := os.NewFile(uintptr(fds[1]), "supervisor-closure-child")

	self, err := os.Executable()
	if err != nil {
		parentEnd.Close()
		childEnd.Close()
		return nil, newSpawnError("", err)
	}

	cmd := exec.Command(self, os.Args[1:]...)
	cmd.Env = append(os.Environ(), closureEnvKey+"="+closureEnvVal)
	cmd.ExtraFiles = []*os.File{childEnd}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}

	if err := cmd.Start(); err != nil {
		parentEnd.Close()
		childEnd.Close()
		return nil, newSpawnError(self, err)
	}
	childEnd.Close()

	if err := syscall.SetNonblock(int(parentEnd.Fd()), true); err != nil {
		log.Warn("failed to set closure socket non-blocking", zap.Error(err))
	}

	pid := cmd.Process.Pid
	log.Info("closure child spawned", zap.Int("pid", pid), zap.String("reason", reason.String()))

	return &Child{
		Pid:          pid,
		InstanceID:   uuid.New(),
		CreateReason: reason,
		Running:      true,
		ExitReason:   ExitUnknown,
		proc:         cmd.Process,
		ipc:          parentEnd,
	}, nil
}

var _ io.ReadWriteCloser = (*ChildSocket)(nil)
