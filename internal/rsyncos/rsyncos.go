// Package rsyncos carries the process-level environment (standard streams,
// sandboxing preference) through the call chain instead of reaching for
// package-level os.Stdin/os.Stdout/os.Stderr directly, so that tests and
// nested invocations (anonymous SSH sessions, daemon-spawned subprocesses)
// can supply their own streams.
package rsyncos

import (
	"fmt"
	"io"
)

// Std is the lightweight, copyable form passed to code that only needs the
// three standard streams (the sender/receiver/client transfer path).
type Std struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Env is the fuller environment threaded through CLI/daemon entry points. It
// additionally knows whether the sandboxing restrictions (landlock/seccomp on
// Linux) should be skipped, and provides a logging helper so call sites don't
// need to import internal/log for a single diagnostic line.
type Env struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// DontRestrict disables the filesystem sandbox normally applied before
	// serving a module or command. Set for nested invocations that are
	// already running inside a parent process's sandbox.
	DontRestrict bool
}

// Logf writes a formatted diagnostic line to Stderr, terminated with a
// newline if the format string doesn't already end in one.
func (e *Env) Logf(format string, args ...interface{}) {
	if format == "" || format[len(format)-1] != '\n' {
		format += "\n"
	}
	fmt.Fprintf(e.Stderr, format, args...)
}

// Restrict reports whether the filesystem sandbox should be applied.
func (e *Env) Restrict() bool {
	return !e.DontRestrict
}
