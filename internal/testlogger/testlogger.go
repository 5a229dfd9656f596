// Package testlogger adapts *testing.T into an io.Writer, so server
// components that take an io.Writer for diagnostics (rsyncd.WithStderr, for
// instance) can have their output attributed to the right subtest.
package testlogger

import (
	"strings"
	"testing"
)

type writer struct {
	t *testing.T
}

func (w *writer) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// New returns an io.Writer that forwards each Write to t.Log.
func New(t *testing.T) *writer {
	return &writer{t: t}
}
