// Package anonssh implements the daemon's built-in SSH listener: instead of
// shelling out to sshd, the rsync daemon itself speaks just enough SSH to
// accept a client's "ssh host rsync --server ..." invocation and hand the
// command line and the session's stdin/stdout/stderr to a handler. Two modes
// are supported: anonymous (any client key is accepted, for convenience
// behind a trusted network boundary) and authorized (the client's public key
// must appear in a configured authorized_keys file).
package anonssh

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/go-rsync/rsync/internal/rsyncdconfig"
	"github.com/go-rsync/rsync/internal/rsyncos"
	"github.com/google/shlex"
	"golang.org/x/crypto/ssh"
)

// Listener holds the SSH server configuration (host key, client
// authentication policy) used to accept connections on a net.Listener.
type Listener struct {
	config *ssh.ServerConfig
}

// ListenerFromConfig builds a Listener for the given config-file listener
// entry. Exactly one of AnonSSH or AuthorizedSSH.Address is expected to be
// set by the caller (maincmd decides which listen address to use based on
// that).
func ListenerFromConfig(osenv *rsyncos.Env, cfg rsyncdconfig.Listener) (*Listener, error) {
	signer, err := newHostKey()
	if err != nil {
		return nil, fmt.Errorf("generating SSH host key: %v", err)
	}

	var config *ssh.ServerConfig
	if cfg.AuthorizedSSH.Address != "" {
		authorized, err := parseAuthorizedKeysFile(cfg.AuthorizedSSH.AuthorizedKeys)
		if err != nil {
			return nil, err
		}
		config = &ssh.ServerConfig{
			PublicKeyCallback: func(c ssh.ConnMetadata, pubKey ssh.PublicKey) (*ssh.Permissions, error) {
				marshaled := pubKey.Marshal()
				for _, allowed := range authorized {
					if bytes.Equal(allowed.Marshal(), marshaled) {
						return &ssh.Permissions{}, nil
					}
				}
				return nil, fmt.Errorf("unauthorized public key from %s", c.RemoteAddr())
			},
		}
	} else {
		config = &ssh.ServerConfig{
			// Anonymous listener: accept any key, rely on the daemon's
			// per-module ACLs and filesystem sandbox instead of SSH auth.
			PublicKeyCallback: func(c ssh.ConnMetadata, pubKey ssh.PublicKey) (*ssh.Permissions, error) {
				return &ssh.Permissions{}, nil
			},
		}
	}
	config.AddHostKey(signer)

	return &Listener{config: config}, nil
}

func newHostKey() (ssh.Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return ssh.NewSignerFromKey(priv)
}

func parseAuthorizedKeysFile(path string) ([]ssh.PublicKey, error) {
	if path == "" {
		return nil, fmt.Errorf("authorized_keys path must not be empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var keys []ssh.PublicKey
	for len(data) > 0 {
		pubKey, _, _, rest, err := ssh.ParseAuthorizedKey(data)
		if err != nil {
			break
		}
		keys = append(keys, pubKey)
		data = rest
	}
	return keys, nil
}

// CommandHandler runs one server-side rsync invocation: args is the
// command line the client requested (as parsed from the SSH "exec" request),
// stdin/stdout/stderr are the session's wire streams.
type CommandHandler func(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) error

// Serve accepts connections on ln, performs the SSH handshake using either
// anon or authorized (whichever sshListener was built from), and dispatches
// each session's "exec" request to handler. It blocks until ctx is canceled
// or ln.Accept fails.
func Serve(ctx context.Context, osenv *rsyncos.Env, ln net.Listener, sshListener *Listener, cfg *rsyncdconfig.Config, handler CommandHandler) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go func() {
			if err := serveConn(conn, sshListener.config, handler); err != nil {
				osenv.Logf("anonssh: %v", err)
			}
		}()
	}
}

func serveConn(conn net.Conn, config *ssh.ServerConfig, handler CommandHandler) error {
	defer conn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		return fmt.Errorf("SSH handshake: %v", err)
	}
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unsupported channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			return fmt.Errorf("accepting channel: %v", err)
		}
		go serveSession(channel, requests, handler)
	}
	return nil
}

func serveSession(channel ssh.Channel, requests <-chan *ssh.Request, handler CommandHandler) {
	defer channel.Close()

	for req := range requests {
		if req.Type != "exec" {
			if req.WantReply {
				req.Reply(false, nil)
			}
			continue
		}
		// exec payload: uint32 length-prefixed command string.
		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			req.Reply(false, nil)
			continue
		}
		req.Reply(true, nil)

		args, err := shlex.Split(payload.Command)
		if err != nil {
			fmt.Fprintf(channel.Stderr(), "parsing command: %v\n", err)
			sendExitStatus(channel, 1)
			return
		}

		err = handler(args, channel, channel, channel.Stderr())
		status := 0
		if err != nil {
			fmt.Fprintf(channel.Stderr(), "%v\n", err)
			status = 1
		}
		sendExitStatus(channel, status)
		return
	}
}

func sendExitStatus(channel ssh.Channel, status int) {
	var payload struct{ Status uint32 }
	payload.Status = uint32(status)
	channel.SendRequest("exit-status", false, ssh.Marshal(&payload))
}
