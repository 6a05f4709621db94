package supervisor

import (
	"os"

	"golang.org/x/sys/unix"
)

const pollTimeoutMillis = 1000 // spec.md §4.1 step 2: 1-second readiness deadline

// pollReadable blocks up to one second waiting for any of files to become
// readable, returning the ready subset. An empty input returns
// immediately with no error. A signal interruption (EINTR) or a spurious
// wakeup yields an empty result, never an error the loop need act on —
// per spec.md §4.4, interruptions must not terminate the loop.
func pollReadable(files []*os.File) ([]*os.File, error) {
	if len(files) == 0 {
		return nil, nil
	}

	fds := make([]unix.PollFd, len(files))
	for i, f := range files {
		fds[i] = unix.PollFd{Fd: int32(f.Fd()), Events: unix.POLLIN}
	}

	n, err := unix.Poll(fds, pollTimeoutMillis)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}

	ready := make([]*os.File, 0, n)
	for i, pfd := range fds {
		if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			ready = append(ready, files[i])
		}
	}
	return ready, nil
}
