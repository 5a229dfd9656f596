// Package receiver implements the receiving side of a transfer (spec.md
// §4.5): the Idle → Applying → Finished state machine that reads the file
// list and, for each file, selects a basis, exchanges a block signature and
// delta ops with the sender, and applies the result to the destination
// tree.
//
// Its shape (a Transfer type carrying Mpx/Demux/Opts/Logger/Dest, a per-file
// dispatch loop, and a deleteFiles pass keyed off isTopDir) is grounded in
// the teacher's internal/receiver/receiver.go and do.go, even though the
// teacher's checked-out slice never defines the Transfer/File types those
// files reference — this package supplies them, generalized to the basis
// chain, hard-link grouping and deletion policy SPEC_FULL.md's receiver
// section requires instead of the teacher's whole-file-only transfer.
package receiver

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/go-rsync/rsync/internal/compress"
	"github.com/go-rsync/rsync/internal/filelist"
	"github.com/go-rsync/rsync/internal/rsyncchecksum"
	"github.com/go-rsync/rsync/internal/rsyncstats"
	"github.com/go-rsync/rsync/internal/rsyncwire"
	"golang.org/x/sync/errgroup"
)

// Logger is the minimal sink Transfer logs through, matching the call
// shape of the teacher's rt.Logger.Printf use in receiver.go/do.go.
type Logger interface {
	Printf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...interface{}) {}

// Opts mirrors the subset of rsyncopts.Options the receiver needs, the way
// the teacher's own rt.Opts.{Verbose,DryRun,Server,PreservePerms,DeleteMode}
// field accesses imply a small receiver-local options mirror rather than a
// dependency on the full CLI option surface.
type Opts struct {
	Verbose bool
	DryRun  bool
	Server  bool

	PreservePerms     bool
	PreserveTimes     bool
	PreserveUid       bool
	PreserveGid       bool
	NumericIDs        bool
	PreserveXattrs    bool
	PreserveACLs      bool
	PreserveDevices   bool
	PreserveSpecials  bool
	PreserveLinks     bool
	PreserveHardLinks bool
	ChecksumMode      bool // --checksum: verify content, never trust (size, mtime) alone

	DeleteMode     bool
	DeleteWhen     string // "before" | "during" | "after" (default "during")
	DeleteExcluded bool
	MaxDelete      int // <= 0 means unbounded

	Backup       bool
	BackupDir    string
	BackupSuffix string

	DelayUpdates bool
	PartialDir   string
	TempDir      string

	LinkDest    []string
	CopyDest    []string
	CompareDest []string
	Fuzzy       bool

	Preallocate bool
	FakeSuper   bool
	Super       bool
}

// Transfer drives one receiving session against Dest.
type Transfer struct {
	Dest string
	Opts Opts

	Alg      rsyncchecksum.Algorithm
	Seed     rsyncchecksum.Seed
	TruncLen int
	BlockLen int32
	Codec    compress.Codec

	Mpx   *rsyncwire.MultiplexWriter
	Demux *rsyncwire.Demultiplexer

	Stats    *rsyncstats.Counters
	Observer rsyncstats.Observer
	Logger   Logger

	hardlinks    map[uint32]string // hardlink group -> first member's dest path
	delayedFiles []delayedRename
}

type delayedRename struct {
	pending *pendingFile
	final   string
}

func (rt *Transfer) logger() Logger {
	if rt.Logger != nil {
		return rt.Logger
	}
	return nopLogger{}
}

// Run executes the full receiver protocol for one session: it reads the
// file list, applies the configured deletion policy, then fans the
// per-entry work out across a generator goroutine (basis selection,
// signature send) and an applier goroutine (delta op application,
// metadata, finalization) joined with errgroup, exactly as the teacher's
// internal/receiver/do.go splits GenerateFiles from RecvFiles. The two
// stay correctly paired without explicit sequence numbers because the
// sender answers signature requests in the order it received them
// (internal/sender.Transfer.Run), so the applier's wire reads always line
// up with the entry the generator most recently requested.
func (rt *Transfer) Run() (*rsyncstats.TransferStats, error) {
	entries, err := rt.recvFileList()
	if err != nil {
		return nil, fmt.Errorf("receiver: reading file list: %w", err)
	}

	if rt.Opts.DeleteMode && rt.Opts.DeleteWhen == "before" {
		if err := rt.deleteFiles(entries); err != nil {
			return nil, fmt.Errorf("receiver: delete-before: %w", err)
		}
	}
	if rt.Opts.DeleteMode && (rt.Opts.DeleteWhen == "" || rt.Opts.DeleteWhen == "during") {
		if err := rt.deleteFiles(entries); err != nil {
			return nil, fmt.Errorf("receiver: delete-during: %w", err)
		}
	}

	rt.hardlinks = make(map[uint32]string)

	eg, ctx := errgroup.WithContext(context.Background())
	jobs := make(chan *applyJob, 4)
	eg.Go(func() error {
		defer close(jobs)
		return rt.generateEntries(ctx, entries, jobs)
	})
	eg.Go(func() error {
		// Don't block on the applier when the generator returns an error
		// first; let ctx.Done() win the race instead.
		errChan := make(chan error, 1)
		go func() {
			errChan <- rt.applyJobs(jobs)
		}()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errChan:
			return err
		}
	})
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("receiver: %w", err)
	}

	if rt.Opts.DeleteMode && rt.Opts.DeleteWhen == "after" {
		if err := rt.deleteFiles(entries); err != nil {
			return nil, fmt.Errorf("receiver: delete-after: %w", err)
		}
	}

	if rt.Opts.DelayUpdates {
		for _, dr := range rt.delayedFiles {
			if err := rt.finalizeRename(dr); err != nil {
				return nil, fmt.Errorf("receiver: finalizing %s: %w", dr.final, err)
			}
		}
	}

	return rt.readStats()
}

// generateEntries is the generator side: it walks entries in order,
// settling non-regular kinds locally and handing each regular file's
// signature exchange off to the applier over jobs. It never waits on the
// applier, so it can request file N+1's signature while N's delta ops are
// still being drained and written to disk.
func (rt *Transfer) generateEntries(ctx context.Context, entries []filelist.Entry, jobs chan<- *applyJob) error {
	for _, entry := range entries {
		if rt.Stats != nil {
			rt.Stats.IncFilesTotal()
		}
		dest := filepath.Join(rt.Dest, entry.Path)
		switch entry.Kind {
		case filelist.Directory:
			if err := rt.applyDirectory(dest, entry); err != nil {
				return fmt.Errorf("%s: %w", entry.Path, err)
			}
		case filelist.Symlink:
			if err := rt.applySymlink(dest, entry); err != nil {
				return fmt.Errorf("%s: %w", entry.Path, err)
			}
		case filelist.Device, filelist.Fifo, filelist.Socket:
			if err := rt.applySpecial(dest, entry); err != nil {
				return fmt.Errorf("%s: %w", entry.Path, err)
			}
		case filelist.Regular:
			job, err := rt.generateRegular(dest, entry)
			if err != nil {
				return fmt.Errorf("%s: %w", entry.Path, err)
			}
			if job == nil {
				continue
			}
			select {
			case jobs <- job:
			case <-ctx.Done():
				return ctx.Err()
			}
		default:
			return fmt.Errorf("unknown entry kind %v", entry.Kind)
		}
	}
	return nil
}

// applyJobs is the applier side: it drains jobs in the order the generator
// produced them, applying each regular file's delta ops and finalizing it.
func (rt *Transfer) applyJobs(jobs <-chan *applyJob) error {
	for job := range jobs {
		if err := rt.finishRegular(job); err != nil {
			return fmt.Errorf("%s: %w", job.entry.Path, err)
		}
	}
	return nil
}

// recvFileList reads the paired MsgFileListEntry/MsgAttributes frames the
// sender emits (internal/sender.sendFileList) until MsgDone, merging each
// pair into one complete filelist.Entry.
func (rt *Transfer) recvFileList() ([]filelist.Entry, error) {
	var entries []filelist.Entry
	dec := filelist.NewDecoder(nil)
	for {
		f, err := rt.Demux.Next()
		if err != nil {
			return nil, err
		}
		switch f.Header.Msg {
		case rsyncwire.MsgDone:
			return entries, nil
		case rsyncwire.MsgFileListEntry:
			e, err := dec.DecodeFrom(bytes.NewReader(f.Payload))
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
		case rsyncwire.MsgAttributes:
			if len(entries) == 0 {
				return nil, fmt.Errorf("receiver: Attributes frame with no preceding file-list entry")
			}
			a, err := filelist.DecodeAttributes(bytes.NewReader(f.Payload))
			if err != nil {
				return nil, err
			}
			last := &entries[len(entries)-1]
			last.Kind = a.Kind
			last.Size = a.Size
			last.Mtime = a.Mtime
			last.Mode = a.Mode
			last.LinkTarget = a.LinkTarget
			last.DevMajor = a.DevMajor
			last.DevMinor = a.DevMinor
		default:
			return nil, fmt.Errorf("receiver: unexpected message %v while reading file list", f.Header.Msg)
		}
	}
}

// readStats reads the end-of-session MsgStats frame the sender writes after
// every file has been processed (rsync/main.c:report, adapted to this
// session's delta-op protocol instead of the teacher's int64-triple read).
func (rt *Transfer) readStats() (*rsyncstats.TransferStats, error) {
	f, err := rt.Demux.Next()
	if err != nil {
		return nil, err
	}
	if f.Header.Msg != rsyncwire.MsgStats {
		return nil, fmt.Errorf("receiver: expected MsgStats, got %v", f.Header.Msg)
	}
	stats, err := rsyncstats.DecodeStats(bytes.NewReader(f.Payload))
	if err != nil {
		return nil, err
	}
	rt.logger().Printf("server sent stats: read=%d, written=%d", stats.Read, stats.Written)
	return &stats, nil
}
