// Package rsyncd implements an rsync server (only), but note that this module
// contains a native Go rsync implementation that supports sending and receiving
// files as client or server, compatible with the original tridge rsync (from
// the samba project) or openrsync (used on OpenBSD and macOS 15+).
package rsyncd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/go-rsync/rsync"
	"github.com/go-rsync/rsync/internal/compress"
	"github.com/go-rsync/rsync/internal/log"
	"github.com/go-rsync/rsync/internal/receiver"
	"github.com/go-rsync/rsync/internal/rsyncchecksum"
	"github.com/go-rsync/rsync/internal/rsyncopts"
	"github.com/go-rsync/rsync/internal/rsyncos"
	"github.com/go-rsync/rsync/internal/rsyncstats"
	"github.com/go-rsync/rsync/internal/rsyncwire"
	"github.com/go-rsync/rsync/internal/sender"
	"github.com/go-rsync/rsync/internal/walk"
)

// allMatcher includes every path; filter-rule parsing is an external
// collaborator the core only consumes through walk.Matcher.
type allMatcher struct{}

func (allMatcher) Include(relPath string, isDir bool) walk.Decision {
	return walk.Decision{Include: true, Descend: true}
}

type Module struct {
	Name     string   `toml:"name"`
	Path     string   `toml:"path"`
	ACL      []string `toml:"acl"`
	Writable bool     `toml:"writable"`
}

// Option specifies the server options.
type Option interface {
	applyServer(*Server)
}

type serverOptionFunc func(server *Server)

func (f serverOptionFunc) applyServer(s *Server) {
	f(s)
}

// WithLogger specifies the logger to use for the server.
// It also sets the global logger used by the rsync package.
func WithLogger(logger log.Logger) Option {
	return serverOptionFunc(func(s *Server) {
		s.logger = logger

		// TODO: remove global logger usage once we remove
		//       the ad-hoc logger reference.
		log.SetLogger(logger)
	})
}

func WithStderr(stderr io.Writer) Option {
	return serverOptionFunc(func(s *Server) {
		s.stderr = stderr
	})
}

func NewServer(modules []Module, opts ...Option) (*Server, error) {
	for _, mod := range modules {
		if err := validateModule(mod); err != nil {
			return nil, err
		}
	}

	server := &Server{
		modules: modules,
	}

	for _, opt := range opts {
		opt.applyServer(server)
	}

	// Default to os.Stderr if no stderr was specified.
	// Explicitly use io.Discard if you do not want stderr.
	if server.stderr == nil {
		server.stderr = os.Stderr
	}

	if server.logger == nil {
		server.logger = log.New(server.stderr)
	}

	if !server.dontRestrict {
		if err := restrictToModules(modules); err != nil {
			return nil, fmt.Errorf("restricting filesystem access to modules: %v", err)
		}
	}

	return server, nil
}

type Server struct {
	stderr       io.Writer
	logger       log.Logger
	dontRestrict bool

	modules []Module
}

// DontRestrict disables the landlock/restrict sandbox NewServer otherwise
// applies to the configured modules' paths.
func DontRestrict() Option {
	return serverOptionFunc(func(s *Server) {
		s.dontRestrict = true
	})
}

func (s *Server) getModule(requestedModule string) (Module, error) {
	for _, mod := range s.modules {
		if mod.Name == requestedModule {
			return mod, nil
		}
	}

	return Module{}, fmt.Errorf("no such module: %s", requestedModule)
}

func (s *Server) formatModuleList() string {
	if len(s.modules) == 0 {
		return ""
	}
	var list strings.Builder
	for _, mod := range s.modules {
		comment := mod.Name // for now
		fmt.Fprintf(&list, "%s\t%s\n",
			mod.Name,
			comment)
	}
	return list.String()
}

func checkACL(acls []string, remoteAddr net.Addr) error {
	if len(acls) == 0 {
		return nil
	}
	host, _, err := net.SplitHostPort(remoteAddr.String())
	if err != nil {
		return fmt.Errorf("BUG: invalid remote address %q", remoteAddr.String())
	}
	remoteIP := net.ParseIP(host)
	if remoteIP == nil {
		return fmt.Errorf("BUG: invalid remote host %q", host)
	}
	for _, acl := range acls {
		// TODO(performance): move ACL parsing to config-time to make ACL checks
		// less expensive
		i := strings.Index(acl, " ")
		if i < 0 {
			return fmt.Errorf("invalid acl: %q (no space found)", acl)
		}
		action, who := acl[:i], acl[i+len(" "):]
		if action != "allow" && action != "deny" {
			return fmt.Errorf("invalid acl: %q (syntax: allow|deny <all|ipnet>)", acl)
		}
		if who == "all" {
			// The all keyword matches any remote IP address
		} else {
			_, net, err := net.ParseCIDR(who)
			if err != nil {
				return fmt.Errorf("invalid acl: %q (syntax: allow|deny <all|ipnet>)", acl)
			}
			if !net.Contains(remoteIP) {
				// Skip this instruction, the remote IP does not match
				continue
			}
		}
		switch action {
		case "allow":
			return nil
		case "deny":
			return fmt.Errorf("access denied (acl %q)", acl)
		default:
			return fmt.Errorf("invalid acl: %q (syntax: allow|deny <all|ipnet>)", acl)
		}
	}
	return nil
}

// FIXME: context cancellation not yet implemented
func (s *Server) HandleDaemonConn(ctx context.Context, osenv rsyncos.Std, conn io.ReadWriter, remoteAddr net.Addr) (err error) {
	_ = ctx // not implemented. what would be the best thing to do? wrap conn's reader part with cancelable reader?

	const terminationCommand = "@RSYNCD: OK\n"
	crd, cwr := rsyncwire.CounterPair(conn, conn)
	rd := bufio.NewReader(crd)
	// send server greeting

	fmt.Fprintf(cwr, "@RSYNCD: %d\n", rsync.ProtocolVersion)

	// read client greeting
	clientGreeting, err := rd.ReadString('\n')
	if err != nil {
		return err
	}
	if !strings.HasPrefix(clientGreeting, "@RSYNCD: ") {
		return fmt.Errorf("invalid client greeting: got %q", clientGreeting)
	}
	// TODO: protocol negotiation

	// read requested module(s), if any
	requestedModule, err := rd.ReadString('\n')
	if err != nil {
		return err
	}
	requestedModule = strings.TrimSpace(requestedModule)
	if requestedModule == "" || requestedModule == "#list" {
		s.logger.Printf("client %v requested rsync module listing", remoteAddr)
		io.WriteString(cwr, s.formatModuleList())
		io.WriteString(cwr, "@RSYNCD: EXIT\n")
		return nil
	}
	s.logger.Printf("client %v requested rsync module %q", remoteAddr, requestedModule)
	module, err := s.getModule(requestedModule)
	if err != nil {
		fmt.Fprintf(cwr, "@ERROR: Unknown module %q\n", requestedModule)
		return err
	}

	if err := checkACL(module.ACL, remoteAddr); err != nil {
		fmt.Fprintf(cwr, "@ERROR: %v\n", err)
		return err
	}

	io.WriteString(cwr, terminationCommand)

	// read requested flags
	var flags []string
	for {
		flag, err := rd.ReadString('\n')
		if err != nil {
			return err
		}
		flag = strings.TrimSpace(flag)
		s.logger.Printf("client sent: %q", flag)
		if flag == "" {
			break
		}
		flags = append(flags, flag)
	}

	s.logger.Printf("flags: %+v", flags)
	env := &rsyncos.Env{Stdin: osenv.Stdin, Stdout: osenv.Stdout, Stderr: osenv.Stderr}
	pc, err := rsyncopts.ParseArguments(env, flags)
	if err != nil {
		err = fmt.Errorf("parsing server args: %v", err)

		// terminate connection with an error about which flag is not supported
		c := &rsyncwire.Conn{
			Reader: rd,
			Writer: cwr,
		}

		const errorSeed = 0xee
		if err := c.WriteInt32(errorSeed); err != nil {
			return err
		}

		// Switch to multiplexing protocol, but only for server-side transmissions.
		// Transmissions received from the client are not multiplexed.
		mpx := &rsyncwire.MultiplexWriter{Writer: c.Writer}
		mpx.WriteMsg(rsyncwire.MsgError, fmt.Appendf(nil, "gokr-rsync [sender]: %v\n", err))

		return err
	}
	opts := pc.Options
	remaining := pc.RemainingArgs
	s.logger.Printf("remaining: %q", remaining)
	// remaining[0] is always "."
	// remaining[1] is the first directory
	if len(remaining) < 2 {
		return fmt.Errorf("invalid args: at least one directory required")
	}
	if got, want := remaining[0], "."; got != want {
		return fmt.Errorf("protocol error: got %q, expected %q", got, want)
	}
	paths := remaining[1:]
	s.logger.Printf("paths: %q", paths)

	// Strip the module_name/ prefix out of the paths,
	// see rsync/io.c:read_args, glob_expand_module().
	for idx, path := range paths {
		trimmed := strings.TrimPrefix(path, module.Name)
		if trimmed == "" {
			trimmed = "."
		}
		paths[idx] = trimmed
	}

	s.logger.Printf("trimmed paths: %q", paths)

	return s.HandleConn(&module, &Conn{crd, cwr, rd}, paths, opts, false)
}

type Conn struct {
	crd *rsyncwire.CountingReader
	cwr *rsyncwire.CountingWriter
	rd  *bufio.Reader
}

// RemoteShellAddr is a net.Addr stand-in for connections that arrived over a
// remote shell (SSH session stdin/stdout) rather than a real network socket:
// there is no IP to report, only a descriptive label. ACL checks are skipped
// for modules with no configured ACLs, which is the common case for this
// kind of connection.
type RemoteShellAddr string

func (a RemoteShellAddr) Network() string { return "remote-shell" }
func (a RemoteShellAddr) String() string  { return string(a) }

func (s *Server) NewConnection(r io.Reader, w io.Writer) *Conn {
	crd, cwr := rsyncwire.CounterPair(r, w)
	rd := bufio.NewReader(crd)
	return &Conn{
		crd: crd,
		cwr: cwr,
		rd:  rd,
	}
}

// handleConn is equivalent to rsync/main.c:start_server
func (s *Server) HandleConn(module *Module, conn *Conn, paths []string, opts *rsyncopts.Options, negotiate bool) (err error) {
	rd := conn.rd
	cwr := conn.cwr

	// “SHOULD be unique to each connection” as per
	// https://github.com/JohannesBuchner/Jarsync/blob/master/jarsync/rsync.txt
	//
	// TODO: random seed. tridge rsync uses time(NULL) ^ (getpid() << 6)
	const sessionChecksumSeed = 666

	c := &rsyncwire.Conn{
		Reader: rd,
		Writer: cwr,
	}

	if negotiate {
		remoteProtocol, err := c.ReadInt32()
		if err != nil {
			return err
		}
		if opts.Verbose() {
			s.logger.Printf("remote protocol: %d", remoteProtocol)
		}
		if err := c.WriteInt32(rsync.ProtocolVersion); err != nil {
			return err
		}
	}

	if err := c.WriteInt32(sessionChecksumSeed); err != nil {
		return err
	}

	// Switch to the framed multiplex protocol for both directions (spec.md
	// §4.4): a MultiplexWriter for what we send, a Demultiplexer for what we
	// receive.
	mpx := &rsyncwire.MultiplexWriter{Writer: c.Writer}
	c.Writer = mpx
	demux := rsyncwire.NewDemultiplexer(rd, 0)

	if opts.Sender() {
		// If returning an error, send the error to the client for display, too:
		defer func() {
			if err != nil {
				mpx.WriteMsg(rsyncwire.MsgError, fmt.Appendf(nil, "gokr-rsync [sender]: %v\n", err))
			}
		}()

		return s.handleConnSender(module, mpx, demux, paths, opts, sessionChecksumSeed)
	}

	// If returning an error, send the error to the client for display, too:
	defer func() {
		if err != nil {
			mpx.WriteMsg(rsyncwire.MsgError, fmt.Appendf(nil, "gokr-rsync [receiver]: %v\n", err))
		}
	}()
	return s.handleConnReceiver(module, mpx, demux, paths, opts, sessionChecksumSeed)
}

// handleConnReceiver is equivalent to rsync/main.c:do_server_recv
func (s *Server) handleConnReceiver(module *Module, mpx *rsyncwire.MultiplexWriter, demux *rsyncwire.Demultiplexer, paths []string, opts *rsyncopts.Options, sessionChecksumSeed int32) (err error) {
	if module == nil {
		if len(paths) != 1 {
			return fmt.Errorf("precisely one destination path required, got %q", paths)
		}
		module = &Module{
			Name:     "implicit",
			Path:     paths[0],
			Writable: true,
		}
	}
	if opts.Verbose() {
		s.logger.Printf("handleConnReceiver(module=%+v)", module)
	}

	if !module.Writable {
		return fmt.Errorf("ERROR: module is read only")
	}

	stats := &rsyncstats.Counters{}
	rt := &receiver.Transfer{
		Dest: module.Path,
		Opts: receiver.Opts{
			Verbose: opts.Verbose(),
			DryRun:  opts.DryRun(),
			Server:  opts.Server(),

			DeleteMode:        opts.DeleteMode(),
			MaxDelete:         opts.MaxDelete(),
			PreserveGid:       opts.PreserveGid(),
			PreserveUid:       opts.PreserveUid(),
			PreserveLinks:     opts.PreserveLinks(),
			PreservePerms:     opts.PreservePerms(),
			PreserveDevices:   opts.PreserveDevices(),
			PreserveSpecials:  opts.PreserveSpecials(),
			PreserveTimes:     opts.PreserveMTimes(),
			PreserveHardLinks: opts.PreserveHardLinks(),

			BackupDir:    opts.BackupDir(),
			BackupSuffix: opts.BackupSuffix(),
			PartialDir:   opts.PartialDir(),
			TempDir:      opts.TempDir(),

			LinkDest:    opts.LinkDest(),
			CopyDest:    opts.CopyDest(),
			CompareDest: opts.CompareDest(),
			Fuzzy:       opts.FuzzyBasis(),
		},
		Alg:      rsyncchecksum.MD5,
		Seed:     rsyncchecksum.Seed(sessionChecksumSeed),
		TruncLen: 16,
		BlockLen: opts.BlockLen(),
		Codec:    compress.None,
		Mpx:      mpx,
		Demux:    demux,
		Stats:    stats,
		Logger:   s.logger,
	}

	if opts.Verbose() {
		s.logger.Printf("receiving into module %+v", module)
	}
	result, err := rt.Run()
	if err != nil {
		return err
	}
	if opts.Verbose() { // TODO: InfoGTE(STATS, 1)
		s.logger.Printf("stats: %+v", result)
	}
	return nil
}

// handleConnSender is equivalent to rsync/main.c:do_server_sender
func (s *Server) handleConnSender(module *Module, mpx *rsyncwire.MultiplexWriter, demux *rsyncwire.Demultiplexer, paths []string, opts *rsyncopts.Options, sessionChecksumSeed int32) (err error) {
	if module == nil {
		module = &Module{
			Name: "implicit",
			Path: "/",
		}
	}

	stats := &rsyncstats.Counters{}
	st := &sender.Transfer{
		Root:    module.Path,
		Matcher: allMatcher{},
		Opts: sender.Options{
			Alg:       rsyncchecksum.MD5,
			Seed:      rsyncchecksum.Seed(sessionChecksumSeed),
			TruncLen:  16,
			WholeFile: opts.WholeFile(),
			Codec:     compress.None,
		},
		Mpx:   mpx,
		Demux: demux,
		Stats: stats,
	}

	if err := st.Run(); err != nil {
		return err
	}

	s.logger.Printf("handleConnSender done. stats: %+v", stats)

	return nil
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	osenv := rsyncos.Std{
		Stdin:  nil,
		Stdout: nil,
		Stderr: s.stderr,
	}

	go func() {
		<-ctx.Done()
		ln.Close() // unblocks Accept()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil // ignore expected 'use of closed network connection' error on context cancel
			default:
				return err
			}
		}
		remoteAddr := conn.RemoteAddr()
		s.logger.Printf("remote connection from %s", remoteAddr)
		go func() {
			defer conn.Close()
			if err := s.HandleDaemonConn(ctx, osenv, conn, remoteAddr); err != nil {
				s.logger.Printf("[%s] handle: %v", remoteAddr, err)
			}
		}()
	}
}

func validateModule(mod Module) error {
	if mod.Name == "" {
		return errors.New("module has no name")
	}
	if mod.Path == "" {
		return fmt.Errorf("module %q has empty path", mod.Name)
	}

	return nil
}
