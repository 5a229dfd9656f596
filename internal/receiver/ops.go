package receiver

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-rsync/rsync/internal/compress"
	"github.com/go-rsync/rsync/internal/delta"
	"github.com/go-rsync/rsync/internal/filelist"
	"github.com/go-rsync/rsync/internal/rsyncchecksum"
	"github.com/go-rsync/rsync/internal/rsyncwire"
)

// applyJob is the handoff unit between the generator goroutine (basis
// selection and signature send) and the applier goroutine (delta op
// application and finalization) that Transfer.Run fans out via errgroup,
// mirroring the teacher's GenerateFiles/RecvFiles split in do.go. A nil
// *applyJob from generateRegular means the entry was fully settled during
// generation (skipped or hardlinked) and needs no further wire traffic.
type applyJob struct {
	entry     filelist.Entry
	dest      string
	dryRun    bool
	out       *pendingFile
	basisPath string
	basisData []byte
}

// generateRegular performs the generator half of the per-file exchange
// (spec.md §4.5 steps 1-3): hardlink short-circuit, basis selection, and
// signature send. It never reads from the wire beyond what basis selection
// itself requires locally, so it can run ahead of the applier goroutine
// draining the resulting delta ops for the previous file.
func (rt *Transfer) generateRegular(dest string, entry filelist.Entry) (*applyJob, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o777); err != nil {
		return nil, err
	}

	if entry.HasHardlinkGroup {
		if first, ok := rt.hardlinkTarget(entry.HardlinkGroup); ok {
			if err := rt.Mpx.WriteMsg(rsyncwire.MsgNoSend, nil); err != nil {
				return nil, err
			}
			if rt.Opts.DryRun {
				return nil, nil
			}
			if err := linkToFirst(first, dest); err != nil {
				return nil, fmt.Errorf("linking hardlink member: %w", err)
			}
			return nil, applyFileMetadata(dest, entry, rt.Opts)
		}
	}

	b := rt.selectBasis(dest, entry)
	if b.skip {
		if err := rt.Mpx.WriteMsg(rsyncwire.MsgNoSend, nil); err != nil {
			return nil, err
		}
		if rt.Stats != nil {
			rt.Stats.IncFilesUnchanged()
		}
		rt.registerHardlink(entry.HardlinkGroup, dest)
		return nil, nil
	}

	sig, basisData, err := rt.readBasis(b.path)
	if err != nil {
		return nil, fmt.Errorf("reading basis: %w", err)
	}

	var sigBuf bytes.Buffer
	if err := delta.EncodeSignature(&sigBuf, sig); err != nil {
		return nil, err
	}
	if err := rt.Mpx.WriteMsg(rsyncwire.MsgChecksums, sigBuf.Bytes()); err != nil {
		return nil, err
	}

	if rt.Opts.DryRun {
		return &applyJob{entry: entry, dest: dest, dryRun: true}, nil
	}

	if rt.Opts.Backup {
		if _, err := os.Lstat(dest); err == nil {
			if err := rt.backupPath(entry.Path, dest); err != nil {
				return nil, fmt.Errorf("backing up %s: %w", entry.Path, err)
			}
		}
	}

	out, err := newPendingFile(dest, rt.Opts.TempDir)
	if err != nil {
		return nil, err
	}

	return &applyJob{entry: entry, dest: dest, out: out, basisPath: b.path, basisData: basisData}, nil
}

// finishRegular performs the applier half of the per-file exchange
// (spec.md §4.5 steps 4-9): draining delta ops into the staged temp file,
// verifying the whole-file digest (retrying once via Redo on mismatch, per
// spec.md §4.5 step 6 and §7), and finalizing metadata/rename.
func (rt *Transfer) finishRegular(job *applyJob) error {
	if job.dryRun {
		if err := rt.drainOps(nil); err != nil {
			return err
		}
		if rt.Stats != nil {
			rt.Stats.IncFilesTransferred()
		}
		return nil
	}

	entry, dest, out := job.entry, job.dest, job.out
	abort := true
	defer func() {
		if abort {
			out.Cleanup()
		}
	}()

	var content bytes.Buffer
	basis := bytes.NewReader(job.basisData)
	if err := rt.applyOps(out, &content, basis); err != nil {
		return err
	}

	digestFrame, err := rt.Demux.Next()
	if err != nil {
		return err
	}
	if digestFrame.Header.Msg != rsyncwire.MsgChecksums {
		return fmt.Errorf("expected final MsgChecksums, got %v", digestFrame.Header.Msg)
	}
	gotDigest := rsyncchecksum.Sum(rt.Alg, rt.Seed, content.Bytes())
	if !bytes.Equal(gotDigest, digestFrame.Payload) {
		// One Redo retry before giving up on this file (spec.md §4.5 step 6,
		// §7): ask the sender to resend from scratch and discard the
		// partial attempt.
		if err := rt.Mpx.WriteMsg(rsyncwire.MsgRedo, nil); err != nil {
			return err
		}
		out.Cleanup()
		redoOut, err := newPendingFile(dest, rt.Opts.TempDir)
		if err != nil {
			return err
		}
		out = redoOut
		content.Reset()
		basis = bytes.NewReader(job.basisData)
		if err := rt.applyOps(out, &content, basis); err != nil {
			return err
		}
		redoFrame, err := rt.Demux.Next()
		if err != nil {
			return err
		}
		if redoFrame.Header.Msg != rsyncwire.MsgChecksums {
			return fmt.Errorf("expected final MsgChecksums after redo, got %v", redoFrame.Header.Msg)
		}
		gotDigest = rsyncchecksum.Sum(rt.Alg, rt.Seed, content.Bytes())
		if !bytes.Equal(gotDigest, redoFrame.Payload) {
			return fmt.Errorf("whole-file digest mismatch for %s after redo", entry.Path)
		}
	} else if err := rt.Mpx.WriteMsg(rsyncwire.MsgDone, nil); err != nil {
		return err
	}

	if err := applyFileMetadata(out.Name(), entry, rt.Opts); err != nil {
		return err
	}

	if rt.Opts.DelayUpdates {
		rt.delayedFiles = append(rt.delayedFiles, delayedRename{pending: out, final: dest})
	} else {
		if err := out.CloseAtomicallyReplace(); err != nil {
			return err
		}
	}
	abort = false

	if partial := rt.partialPath(entry.Path); job.basisPath == partial {
		os.Remove(partial)
	}

	rt.registerHardlink(entry.HardlinkGroup, dest)
	if rt.Stats != nil {
		rt.Stats.IncFilesTransferred()
		rt.Stats.AddSize(entry.Size)
	}
	return nil
}

// readBasis computes the block signature for path (or an empty signature
// when path is "", meaning no basis exists) and returns the basis bytes for
// later random-access Copy application.
func (rt *Transfer) readBasis(path string) (delta.Signature, []byte, error) {
	if path == "" {
		return delta.Signature{BlockLen: rt.blockLen(), Alg: rt.Alg, Seed: rt.Seed, TruncLen: rt.TruncLen}, nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return delta.Signature{}, nil, err
	}
	sig, err := delta.ComputeSignature(bytes.NewReader(data), rt.blockLen(), rt.Alg, rt.Seed, rt.TruncLen)
	if err != nil {
		return delta.Signature{}, nil, err
	}
	return sig, data, nil
}

func (rt *Transfer) blockLen() int32 {
	if rt.BlockLen > 0 {
		return rt.BlockLen
	}
	return 700
}

// applyOps reads MsgDeltaOp frames until MsgDone, writing each op's bytes
// to both out (the staged file) and content (kept for the whole-file
// digest check), mirroring sender.sendFile's symmetric framing.
func (rt *Transfer) applyOps(out *pendingFile, content *bytes.Buffer, basis *bytes.Reader) error {
	var w writeMulti
	if out != nil {
		w = writeMulti{targets: []writerAt{out, content}}
	} else {
		w = writeMulti{targets: []writerAt{content}}
	}
	return rt.drainOpsInto(&w, basis)
}

// drainOps reads and discards MsgDeltaOp frames until MsgDone, used for
// --dry-run where no file is actually staged.
func (rt *Transfer) drainOps(basis *bytes.Reader) error {
	for {
		f, err := rt.Demux.Next()
		if err != nil {
			return err
		}
		if f.Header.Msg == rsyncwire.MsgDone {
			// The sender still follows with a final digest frame even in
			// dry-run mode; consume it so the stream stays in sync.
			if _, err := rt.Demux.Next(); err != nil {
				return err
			}
			return nil
		}
		if f.Header.Msg != rsyncwire.MsgDeltaOp {
			return fmt.Errorf("expected MsgDeltaOp, got %v", f.Header.Msg)
		}
	}
}

func (rt *Transfer) drainOpsInto(w *writeMulti, basis *bytes.Reader) error {
	for {
		f, err := rt.Demux.Next()
		if err != nil {
			return err
		}
		if f.Header.Msg == rsyncwire.MsgDone {
			return nil
		}
		if f.Header.Msg != rsyncwire.MsgDeltaOp {
			return fmt.Errorf("expected MsgDeltaOp, got %v", f.Header.Msg)
		}
		if len(f.Payload) == 0 {
			return fmt.Errorf("empty MsgDeltaOp payload")
		}
		codec := compress.Codec(f.Payload[0])
		raw, err := compress.DecompressPayload(codec, f.Payload[1:])
		if err != nil {
			return err
		}
		op, err := delta.DecodeOp(bytes.NewReader(raw))
		if err != nil {
			return err
		}
		switch op.Kind {
		case delta.OpLiteral:
			if _, err := w.Write(op.Bytes); err != nil {
				return err
			}
			if rt.Stats != nil {
				rt.Stats.AddLiteralBytes(op.Len)
			}
		case delta.OpCopy:
			buf := make([]byte, op.Len)
			if basis != nil {
				if _, err := basis.ReadAt(buf, op.BasisOffset); err != nil {
					return fmt.Errorf("reading basis at %d: %w", op.BasisOffset, err)
				}
			}
			if _, err := w.Write(buf); err != nil {
				return err
			}
			if rt.Stats != nil {
				rt.Stats.AddMatchedBytes(op.Len)
			}
		}
	}
}

// writerAt is the subset of io.Writer every fan-out target in writeMulti
// needs; *pendingFile and *bytes.Buffer both satisfy it via Write.
type writerAt interface {
	Write(p []byte) (int, error)
}

// writeMulti fans every Write out to all targets, matching the shape of
// io.MultiWriter without pulling in its single-error-on-any-short-write
// semantics difference (not a concern here: both targets are in-process).
type writeMulti struct {
	targets []writerAt
}

func (w *writeMulti) Write(p []byte) (int, error) {
	for _, t := range w.targets {
		if _, err := t.Write(p); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// applyDirectory ensures dest exists as a directory and applies its
// metadata; directories are never staged through a temp file.
func (rt *Transfer) applyDirectory(dest string, entry filelist.Entry) error {
	if rt.Opts.DryRun {
		return nil
	}
	if err := os.MkdirAll(dest, 0o777); err != nil {
		return err
	}
	return applyFileMetadata(dest, entry, rt.Opts)
}

// applySymlink recreates a symlink atomically via renameio (as
// generatorsymlink.go already does for the teacher's whole-file transfer).
func (rt *Transfer) applySymlink(dest string, entry filelist.Entry) error {
	if !rt.Opts.PreserveLinks {
		return nil
	}
	if rt.Opts.DryRun {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o777); err != nil {
		return err
	}
	if err := symlink(entry.LinkTarget, dest); err != nil {
		return err
	}
	return applyFileMetadata(dest, entry, rt.Opts)
}

// applySpecial creates device nodes, FIFOs, and sockets when the
// corresponding preserve option is enabled; otherwise the entry is a no-op
// (spec.md's Non-goals exclude synthesizing these node kinds when the CLI
// did not ask for them).
func (rt *Transfer) applySpecial(dest string, entry filelist.Entry) error {
	switch entry.Kind {
	case filelist.Device:
		if !rt.Opts.PreserveDevices {
			return nil
		}
	default:
		if !rt.Opts.PreserveSpecials {
			return nil
		}
	}
	if rt.Opts.DryRun {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o777); err != nil {
		return err
	}
	if err := mknod(dest, entry); err != nil {
		return err
	}
	return applyFileMetadata(dest, entry, rt.Opts)
}

// finalizeRename completes one --delay-updates pending rename after every
// other file in the session has been staged successfully.
func (rt *Transfer) finalizeRename(dr delayedRename) error {
	return dr.pending.CloseAtomicallyReplace()
}
