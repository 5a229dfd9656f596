// Package rsynctest provides helpers shared by integration tests: spinning
// up an in-process rsync daemon (over TCP or the built-in anonymous SSH
// listener) and generating/verifying fixture files exercising the delta
// engine on data larger than one checksum block.
package rsynctest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/go-rsync/rsync/internal/anonssh"
	"github.com/go-rsync/rsync/internal/maincmd"
	"github.com/go-rsync/rsync/internal/rsyncdconfig"
	"github.com/go-rsync/rsync/internal/rsyncos"
	"github.com/go-rsync/rsync/internal/testlogger"
	"github.com/go-rsync/rsync/rsyncd"
)

// Server is a running test daemon.
type Server struct {
	// Port is the TCP port the daemon (or, for an anon-SSH-only config, its
	// SSH listener) is reachable on.
	Port string
}

type config struct {
	modules   []rsyncd.Module
	listeners []rsyncdconfig.Listener
}

// Option customizes the daemon started by New.
type Option func(*config)

// InteropModule adds a writable module named "interop" serving path, the
// name the teacher's own interop tests against the real rsync(1) use.
func InteropModule(path string) Option {
	return func(c *config) {
		c.modules = append(c.modules, rsyncd.Module{
			Name:     "interop",
			Path:     path,
			Writable: true,
		})
	}
}

// Listeners overrides the default plain-TCP listener, e.g. to test the
// built-in anonymous SSH listener instead.
func Listeners(ls []rsyncdconfig.Listener) Option {
	return func(c *config) {
		c.listeners = ls
	}
}

// New starts a daemon for the lifetime of the test and returns once it is
// accepting connections.
func New(t *testing.T, opts ...Option) *Server {
	t.Helper()

	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	stderr := testlogger.New(t)
	srv, err := rsyncd.NewServer(cfg.modules, rsyncd.WithStderr(stderr), rsyncd.DontRestrict())
	if err != nil {
		t.Fatalf("rsyncd.NewServer: %v", err)
	}

	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		ln.Close()
	})

	if len(cfg.listeners) > 0 && cfg.listeners[0].AnonSSH != "" {
		osenv := &rsyncos.Env{Stderr: stderr}
		sshListener, err := anonssh.ListenerFromConfig(osenv, cfg.listeners[0])
		if err != nil {
			t.Fatalf("anonssh.ListenerFromConfig: %v", err)
		}
		daemonCfg := &rsyncdconfig.Config{Modules: cfg.modules, Listeners: cfg.listeners}
		go anonssh.Serve(ctx, osenv, ln, sshListener, daemonCfg, func(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) error {
			sessionEnv := &rsyncos.Env{
				Stdin:        stdin,
				Stdout:       stdout,
				Stderr:       stderr,
				DontRestrict: true,
			}
			_, err := maincmd.Main(ctx, sessionEnv, args, daemonCfg)
			return err
		})
	} else {
		go srv.Serve(ctx, ln)
	}

	_, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("split host port: %v", err)
	}
	return &Server{Port: port}
}

// AnyRsync locates a real rsync(1) binary to exercise compatibility tests
// against, skipping the test if none is installed.
func AnyRsync(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("rsync")
	if err != nil {
		t.Skip("rsync(1) not installed")
	}
	return path
}

const largeFileSize = 3 * 1024 * 1024
const patternWindow = 4096

func largeFileContents(head, body, end []byte) []byte {
	buf := make([]byte, largeFileSize)
	for i := range buf {
		buf[i] = body[i%len(body)]
	}
	fillPattern(buf[:patternWindow], head)
	fillPattern(buf[len(buf)-patternWindow:], end)
	return buf
}

func fillPattern(dst, pattern []byte) {
	for i := range dst {
		dst[i] = pattern[i%len(pattern)]
	}
}

// WriteLargeDataFile writes a multi-megabyte fixture file under dir (named
// "large-data-file") whose head and tail windows are filled with head/end
// and whose body is filled with body, so a delta transfer exercises more
// than one checksum block.
func WriteLargeDataFile(t *testing.T, dir string, head, body, end []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "large-data-file"), largeFileContents(head, body, end), 0644); err != nil {
		t.Fatal(err)
	}
}

// DataFileMatches reports whether the file at path matches the content
// WriteLargeDataFile would have produced for the same patterns.
func DataFileMatches(path string, head, body, end []byte) error {
	got, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	want := largeFileContents(head, body, end)
	if !bytes.Equal(got, want) {
		return fmt.Errorf("content mismatch: got %d bytes, want %d bytes", len(got), len(want))
	}
	return nil
}
