package maincmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
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
	"github.com/go-rsync/rsync/internal/transport"
	"github.com/go-rsync/rsync/internal/walk"
	"github.com/google/shlex"
)

// allMatcher includes every path; filter-rule parsing is an external
// collaborator the core only consumes through walk.Matcher.
type allMatcher struct{}

func (allMatcher) Include(relPath string, isDir bool) walk.Decision {
	return walk.Decision{Include: true, Descend: true}
}

// rsync/main.c:start_client
func rsyncMain(ctx context.Context, osenv rsyncos.Std, opts *rsyncopts.Options, sources []string, dest string) (*rsyncstats.TransferStats, error) {
	if opts.Verbose() {
		log.Printf("dest: %q, sources: %q", dest, sources)
		log.Printf("opts: %+v", opts)
	}
	// Guaranteed to be non-empty by caller of rsyncMain().
	src := sources[0]

	if opts.Verbose() {
		log.Printf("processing src=%s", src)
	}
	daemonConnection := 0 // no daemon
	host, path, port, err := checkForHostspec(src)
	if opts.Verbose() {
		log.Printf("host=%q, path=%q, port=%d, err=%v", host, path, port, err)
	}
	if err != nil {
		// source is local, check dest arg
		opts.SetSender()
		// TODO: remote_argv == "."?
		host, path, port, err = checkForHostspec(dest)
		if opts.Verbose() {
			log.Printf("host=%q, path=%q, port=%d, err=%v", host, path, port, err)
		}
		if path == "" {
			if opts.Verbose() {
				log.Printf("source and dest are both local!")
			}
			host = ""
			port = 0
			path = dest
			opts.SetLocalServer()
		} else {
			// dest is remote
			if port != 0 {
				if opts.ShellCommand() != "" {
					daemonConnection = 1 // daemon via remote shell
				} else {
					daemonConnection = -1 // daemon via socket
				}
			}
		}
	} else {
		// source is remote
		if port != 0 {
			if opts.ShellCommand() != "" {
				daemonConnection = 1 // daemon via remote shell
			} else {
				daemonConnection = -1 // daemon via socket
			}
		}
	}

	// TODO: if opts.AmSender(), verify extra source args have no hostspec
	other := dest
	if opts.Sender() {
		other = src
	}

	module := path
	if idx := strings.IndexByte(module, '/'); idx > -1 {
		module = module[:idx]
	}
	if opts.Verbose() {
		log.Printf("module=%q, path=%q, other=%q", module, path, other)
	}

	if daemonConnection < 0 {
		stats, err := socketClient(ctx, osenv, opts, host, path, port, other)
		if err != nil {
			return nil, err
		}
		return stats, nil
	}

	machine := host
	user := ""
	if idx := strings.IndexByte(machine, '@'); idx > -1 {
		user = machine[:idx]
		machine = machine[idx+1:]
	}
	rc, wc, err := doCmd(osenv, opts, machine, user, path, daemonConnection)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	defer wc.Close()
	conn := transport.Pipe(rc, wc)
	negotiate := true
	if daemonConnection != 0 {
		done, err := startInbandExchange(osenv, opts, conn, module, path)
		if err != nil {
			return nil, err
		}
		if done {
			return nil, nil
		}
		negotiate = false // already done
	}
	stats, err := ClientRun(osenv, opts, conn, []string{other}, negotiate)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// rsync/main.c:do_cmd
func doCmd(osenv rsyncos.Std, opts *rsyncopts.Options, machine, user, path string, daemonConnection int) (io.ReadCloser, io.WriteCloser, error) {
	if opts.Verbose() {
		log.Printf("doCmd(machine=%q, user=%q, path=%q, daemonConnection=%d)",
			machine, user, path, daemonConnection)
	}
	var args []string
	if !opts.LocalServer() {
		cmd := opts.ShellCommand()
		if cmd == "" {
			cmd = "ssh"
			if e := os.Getenv("RSYNC_RSH"); e != "" {
				cmd = e
			}
		}

		// We use shlex.Split(), whereas rsync implements its own shell-style-like
		// parsing. The nuances likely don’t matter to any users, and if so, users
		// might prefer shell-style parsing.
		var err error
		args, err = shlex.Split(cmd)
		if err != nil {
			return nil, nil, err
		}

		if user != "" && daemonConnection == 0 /* && !dashlset */ {
			args = append(args, "-l", user)
		}

		args = append(args, machine)

		args = append(args, "rsync") // TODO: flag
	} else {
		// NOTE: tridge rsync will fork and run child_main(), but we create a
		// new process because that is much simpler/cleaner in Go.
		args = append(args, os.Args[0])
	}

	if daemonConnection > 0 {
		args = append(args, "--server", "--daemon")
	} else {
		args = append(args, serverOptions(opts)...)
	}
	args = append(args, ".")

	if daemonConnection == 0 {
		args = append(args, path)
	}

	if opts.Verbose() {
		log.Printf("args: %q", args)
	}

	ssh := exec.Command(args[0], args[1:]...)
	wc, err := ssh.StdinPipe()
	if err != nil {
		return nil, nil, err
	}
	rc, err := ssh.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}
	ssh.Stderr = osenv.Stderr
	if err := ssh.Start(); err != nil {
		return nil, nil, err
	}

	go func() {
		// TODO: correctly terminate the main process when the underlying SSH
		// process exits.
		if err := ssh.Wait(); err != nil {
			log.Printf("remote shell exited: %v", err)
		}
	}()

	return rc, wc, nil
}

// rsync/main.c:client_run
func ClientRun(osenv rsyncos.Std, opts *rsyncopts.Options, conn io.ReadWriter, paths []string, negotiate bool) (*rsyncstats.TransferStats, error) {
	crd := &rsyncwire.CountingReader{R: conn}
	cwr := &rsyncwire.CountingWriter{W: conn}
	c := &rsyncwire.Conn{
		Reader: crd,
		Writer: cwr,
	}

	if negotiate {
		if err := c.WriteInt32(rsync.ProtocolVersion); err != nil {
			return nil, err
		}
		remoteProtocol, err := c.ReadInt32()
		if err != nil {
			return nil, err
		}
		if opts.Verbose() {
			log.Printf("remote protocol: %d", remoteProtocol)
		}
	}

	seed, err := c.ReadInt32()
	if err != nil {
		return nil, fmt.Errorf("reading seed: %v", err)
	}

	// TODO: rearchitect such that our buffer can be smaller than the largest
	// rsync message size
	rd := bufio.NewReaderSize(crd, 256*1024)
	mpx := &rsyncwire.MultiplexWriter{Writer: cwr}
	demux := rsyncwire.NewDemultiplexer(rd, 0)

	if opts.Sender() {
		if len(paths) != 1 {
			// TODO: support more than one source
			return nil, fmt.Errorf("BUG: expected exactly one path, got %q", paths)
		}
		if opts.Verbose() {
			log.Printf("sender(paths=%q)", paths)
		}

		stats := &rsyncstats.Counters{}
		st := &sender.Transfer{
			Root:    paths[0],
			Matcher: allMatcher{},
			Opts: sender.Options{
				Alg:       rsyncchecksum.MD5,
				Seed:      rsyncchecksum.Seed(seed),
				TruncLen:  16,
				WholeFile: opts.WholeFile(),
				Codec:     compress.None,
			},
			Mpx:   mpx,
			Demux: demux,
			Stats: stats,
		}
		if err := st.Run(); err != nil {
			return nil, err
		}
		result := stats.Snapshot()
		return &result, nil
	}

	if len(paths) != 1 {
		return nil, fmt.Errorf("BUG: expected exactly one path, got %q", paths)
	}

	rt := &receiver.Transfer{
		Dest: paths[0],
		Opts: receiver.Opts{
			Verbose: opts.Verbose(),
			DryRun:  opts.DryRun(),

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
		Seed:     rsyncchecksum.Seed(seed),
		TruncLen: 16,
		BlockLen: opts.BlockLen(),
		Codec:    compress.None,
		Mpx:      mpx,
		Demux:    demux,
		Stats:    &rsyncstats.Counters{},
		Logger:   log.New(osenv.Stderr),
	}
	if opts.Verbose() {
		log.Printf("receiving to dest=%s", rt.Dest)
	}

	return rt.Run()
}

func clientMain(ctx context.Context, osenv *rsyncos.Env, opts *rsyncopts.Options, remaining []string) (*rsyncstats.TransferStats, error) {
	std := rsyncos.Std{Stdin: osenv.Stdin, Stdout: osenv.Stdout, Stderr: osenv.Stderr}
	if len(remaining) == 0 {
		// help goes to stderr when no arguments were specified
		fmt.Fprintln(osenv.Stderr, opts.Help())
		return nil, fmt.Errorf("rsync error: syntax or usage error")
	}
	if len(remaining) == 1 {
		// Usages with just one SRC arg and no DEST arg list the source files
		// instead of copying.
		dest := ""
		sources := remaining
		return rsyncMain(ctx, std, opts, sources, dest)
	}
	dest := remaining[len(remaining)-1]
	sources := remaining[:len(remaining)-1]
	return rsyncMain(ctx, std, opts, sources, dest)
}
