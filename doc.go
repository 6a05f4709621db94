// Package supervisor runs a pool of worker children under a single
// long-running master, keeps the pool at a configured size, relays their
// I/O and structured IPC messages, and shuts them down in an orderly
// fashion.
//
// Consumers embed it as a library: describe what a worker is (an external
// command, or an in-process routine invoked in a forked-and-reexec'd
// child), register lifecycle callbacks on a Config, and call Run to drive
// the master event loop until a termination signal arrives.
//
//	cfg := supervisor.Config{
//		Command: "worker --flag",
//		Min:     2,
//		Max:     8,
//		OnChildMessage: func(c *supervisor.Child, msg any) { ... },
//	}
//	if err := supervisor.Run(cfg); err != nil {
//		log.Fatal(err)
//	}
//
// The package is POSIX-only: it assumes fork/exec, pipes, non-blocking
// I/O readiness notification, and reliable delivery of child-exit and
// user signals to a single-threaded event loop.
package supervisor
