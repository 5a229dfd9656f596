// Package log provides the small, swappable logging sink every other
// package here calls through: a package-level default (wrapping the
// standard library's log.Logger, exactly as the teacher's own daemon code
// does) plus a Logger interface so a Server or Transfer can be pointed at a
// caller-supplied sink instead (rsyncd.WithLogger).
package log

import (
	"io"
	stdlog "log"
	"os"
)

// Logger is the minimal sink every package that logs depends on.
type Logger interface {
	Printf(format string, args ...interface{})
}

// New wraps w in a standard library *log.Logger satisfying Logger.
func New(w io.Writer) Logger {
	return stdlog.New(w, "", stdlog.LstdFlags)
}

var def Logger = New(os.Stderr)

// SetLogger replaces the package-level default used by Printf/Fatalf.
func SetLogger(l Logger) {
	if l == nil {
		return
	}
	def = l
}

// Printf logs through the package-level default logger.
func Printf(format string, args ...interface{}) {
	def.Printf(format, args...)
}

// Fatalf logs through the package-level default logger, then exits.
func Fatalf(format string, args ...interface{}) {
	def.Printf(format, args...)
	os.Exit(1)
}
