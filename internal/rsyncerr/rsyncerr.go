// Package rsyncerr defines the stable exit-code taxonomy a session reports
// at the end of a run (spec.md §6 "Exit codes", §7 "Error handling design"),
// plus an Exit error type that carries one.
package rsyncerr

import (
	"errors"
	"fmt"
)

// ExitCode is one of rsync's stable exit-code integers.
type ExitCode int

const (
	OK               ExitCode = 0
	SyntaxError      ExitCode = 1
	Protocol         ExitCode = 2
	FileSelect       ExitCode = 3
	Unsupported      ExitCode = 4
	StartClient      ExitCode = 5
	DaemonConfig     ExitCode = 6
	SocketIO         ExitCode = 10
	FileIO           ExitCode = 11
	StreamIO         ExitCode = 12
	MessageIO        ExitCode = 13
	IPC              ExitCode = 14
	MaxAlloc         ExitCode = 22
	Partial          ExitCode = 23
	Vanished         ExitCode = 24
	DelLimit         ExitCode = 25
	Timeout          ExitCode = 30
	ConnTimeout      ExitCode = 35
	SpawnNoSuchFile  ExitCode = 127
	SpawnPermission  ExitCode = 126
	SpawnNotExecutable ExitCode = 125
	SpawnGeneric     ExitCode = 124
)

// Exit is a structured, severity-carrying error: lower layers surface one of
// these instead of a bare error when the session needs to report a specific
// exit code at the end of the run (spec.md §7: "a structured Exit(code,
// message) surfaced by lower layers").
type Exit struct {
	Code    ExitCode
	Message string
}

func (e *Exit) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// New constructs an Exit error.
func New(code ExitCode, format string, args ...interface{}) *Exit {
	return &Exit{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the ExitCode from err if it (or something it wraps) is an
// *Exit, otherwise returns StreamIO (12) as the fallback code.
func CodeOf(err error) ExitCode {
	if err == nil {
		return OK
	}
	var exit *Exit
	if errors.As(err, &exit) {
		return exit.Code
	}
	return StreamIO
}
