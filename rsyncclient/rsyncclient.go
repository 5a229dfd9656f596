// Package rsyncclient exposes the rsync client transfer as a library: given
// an already-established connection (a subprocess's stdin/stdout, an
// io.Pipe(), a TCP socket already past the daemon handshake), it runs one
// side of the wire protocol against it.
package rsyncclient

import (
	"context"
	"io"
	"os"

	"github.com/go-rsync/rsync/internal/maincmd"
	"github.com/go-rsync/rsync/internal/rsyncopts"
	"github.com/go-rsync/rsync/internal/rsyncos"
)

// Client runs one session of the client side of the rsync wire protocol,
// either as the receiver (default) or as the sender (WithSender).
type Client struct {
	opts *rsyncopts.Options
}

// Option customizes a Client returned by New.
type Option func(*Client)

// WithSender makes the client act as the sender instead of the receiver.
func WithSender() Option {
	return func(c *Client) {
		c.opts.SetSender()
	}
}

// New parses args the way the rsync(1) CLI would (flags only; paths are
// supplied to Run, not here) and returns a Client configured accordingly.
func New(args []string, opts ...Option) (*Client, error) {
	env := &rsyncos.Env{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
	pc, err := rsyncopts.ParseArguments(env, args)
	if err != nil {
		return nil, err
	}
	c := &Client{opts: pc.Options}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run executes the session over rw, receiving into (or sending from) paths.
// rw is expected to be positioned right at the start of the protocol
// handshake (rsync's protocol version exchange), which Run performs.
func (c *Client) Run(ctx context.Context, rw io.ReadWriter, paths []string) error {
	osenv := rsyncos.Std{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
	const negotiate = true
	_, err := maincmd.ClientRun(osenv, c.opts, rw, paths, negotiate)
	return err
}
