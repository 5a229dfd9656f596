package transport

import (
	"io"
	"os/exec"
)

// Subprocess starts cmd and returns an io.ReadWriter wired to its
// stdin/stdout, the way the client spawns a remote-shell rsync peer and the
// daemon's remote-shell mode is itself spawned as a subprocess by sshd.
func Subprocess(cmd *exec.Cmd) (io.ReadWriter, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return Pipe(stdout, stdin), nil
}
