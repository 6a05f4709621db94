package supervisor

import "os"

const readChunkSize = 8192 // spec.md §4.5

// dispatchReady reads up to one chunk from a ready descriptor and routes
// it to the output callback or the message parser, depending on whether
// the descriptor is the owning Child's IPC channel. Mirrors
// processmgr/process.go's handleStdout/handleStderr classify-and-route
// shape, adapted from blocking bufio.Scanner reads to a single
// non-blocking read per ready descriptor (spec.md §4.5).
func (s *Supervisor) dispatchReady(f *os.File) {
	c := s.registry.byDescriptor(f)
	if c == nil {
		return // child was reaped between poll and dispatch; nothing to do
	}

	buf := make([]byte, readChunkSize)
	n, err := f.Read(buf)
	if n == 0 || err != nil {
		// EOF/EAGAIN/closed: nothing to deliver this tick. The exit
		// itself is only ever observed through the reaper (spec.md §4.1).
		return
	}
	data := buf[:n]

	switch f {
	case c.ipc:
		s.feedMessages(c, data)
	case c.stdout, c.stderr:
		s.logs.get(c.Pid).feed(data)
		if s.cfg.OnChildOutput != nil {
			s.cfg.OnChildOutput(c, data)
		}
	}
}
