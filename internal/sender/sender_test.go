package sender

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-rsync/rsync/internal/compress"
	"github.com/go-rsync/rsync/internal/delta"
	"github.com/go-rsync/rsync/internal/filelist"
	"github.com/go-rsync/rsync/internal/rsyncchecksum"
	"github.com/go-rsync/rsync/internal/rsyncstats"
	"github.com/go-rsync/rsync/internal/rsyncwire"
	"github.com/go-rsync/rsync/internal/walk"
)

type allMatcher struct{}

func (allMatcher) Include(relPath string, isDir bool) walk.Decision {
	return walk.Decision{Include: true, Descend: true}
}

// TestSenderSingleFileWholeLiteral drives a Transfer against a hand-rolled
// receiver harness that always reports an empty basis (forcing the whole
// file across as Literal ops), and checks the file list, ops, and
// whole-file digest all arrive in the expected shape.
func TestSenderSingleFileWholeLiteral(t *testing.T) {
	root := t.TempDir()
	content := []byte("hello world, this is the file sender sends across the wire")
	if err := os.WriteFile(filepath.Join(root, "a.txt"), content, 0o644); err != nil {
		t.Fatal(err)
	}

	toReceiver, fromSender := io.Pipe()
	toSender, fromReceiver := io.Pipe()

	xfer := &Transfer{
		Root:    root,
		Matcher: allMatcher{},
		Opts: Options{
			Alg:      rsyncchecksum.MD5,
			TruncLen: 16,
			Codec:    compress.None,
		},
		Mpx:   &rsyncwire.MultiplexWriter{Writer: fromSender},
		Demux: rsyncwire.NewDemultiplexer(toSender, 0),
		Stats: &rsyncstats.Counters{},
	}

	done := make(chan error, 1)
	go func() { done <- xfer.Run() }()

	// Fake receiver: drain file list entries + attributes until Done.
	var entries []filelist.Entry
	dec := filelist.NewDecoder(nil)
	for {
		f, err := rsyncwire.ReadFrame(toReceiver)
		if err != nil {
			t.Fatal(err)
		}
		if f.Header.Msg == rsyncwire.MsgDone {
			break
		}
		if f.Header.Msg == rsyncwire.MsgFileListEntry {
			e, err := dec.DecodeFrom(bytes.NewReader(f.Payload))
			if err != nil {
				t.Fatal(err)
			}
			entries = append(entries, e)
			continue
		}
		if f.Header.Msg == rsyncwire.MsgAttributes {
			a, err := filelist.DecodeAttributes(bytes.NewReader(f.Payload))
			if err != nil {
				t.Fatal(err)
			}
			entries[len(entries)-1].Kind = a.Kind
			entries[len(entries)-1].Size = a.Size
			continue
		}
	}

	// The walk visits the root directory itself first, then a.txt.
	if len(entries) != 2 || entries[0].Path != "." || entries[1].Path != "a.txt" {
		t.Fatalf("entries = %+v, want [. a.txt]", entries)
	}
	if entries[1].Size != int64(len(content)) {
		t.Errorf("Size = %d, want %d", entries[1].Size, len(content))
	}

	// Send an empty signature (no blocks) so the whole file comes across as
	// one Literal op.
	emptySig := delta.Signature{BlockLen: 64, Alg: rsyncchecksum.MD5, TruncLen: 16}
	var sigBuf bytes.Buffer
	if err := delta.EncodeSignature(&sigBuf, emptySig); err != nil {
		t.Fatal(err)
	}
	if err := rsyncwire.WriteFrame(fromReceiver, rsyncwire.Frame{
		Header:  rsyncwire.Header{Tag: rsyncwire.TagMessage, Msg: rsyncwire.MsgChecksums},
		Payload: sigBuf.Bytes(),
	}); err != nil {
		t.Fatal(err)
	}

	var gotBytes []byte
	for {
		f, err := rsyncwire.ReadFrame(toReceiver)
		if err != nil {
			t.Fatal(err)
		}
		if f.Header.Msg == rsyncwire.MsgDone {
			break
		}
		if f.Header.Msg != rsyncwire.MsgDeltaOp {
			t.Fatalf("unexpected msg %v while reading ops", f.Header.Msg)
		}
		codec := compress.Codec(f.Payload[0])
		raw, err := compress.DecompressPayload(codec, f.Payload[1:])
		if err != nil {
			t.Fatal(err)
		}
		op, err := delta.DecodeOp(bytes.NewReader(raw))
		if err != nil {
			t.Fatal(err)
		}
		if op.Kind != delta.OpLiteral {
			t.Fatalf("expected OpLiteral, got %v", op.Kind)
		}
		gotBytes = append(gotBytes, op.Bytes...)
	}
	if !bytes.Equal(gotBytes, content) {
		t.Errorf("reconstructed literal bytes = %q, want %q", gotBytes, content)
	}

	digestFrame, err := rsyncwire.ReadFrame(toReceiver)
	if err != nil {
		t.Fatal(err)
	}
	if digestFrame.Header.Msg != rsyncwire.MsgChecksums {
		t.Fatalf("expected final digest frame, got msg %v", digestFrame.Header.Msg)
	}
	wantDigest := rsyncchecksum.Sum(rsyncchecksum.MD5, 0, content)
	if !bytes.Equal(digestFrame.Payload, wantDigest) {
		t.Errorf("digest mismatch")
	}

	if err := rsyncwire.WriteFrame(fromReceiver, rsyncwire.Frame{
		Header: rsyncwire.Header{Tag: rsyncwire.TagMessage, Msg: rsyncwire.MsgDone},
	}); err != nil {
		t.Fatal(err)
	}

	statsFrame, err := rsyncwire.ReadFrame(toReceiver)
	if err != nil {
		t.Fatal(err)
	}
	if statsFrame.Header.Msg != rsyncwire.MsgStats {
		t.Fatalf("expected stats frame, got msg %v", statsFrame.Header.Msg)
	}

	if err := <-done; err != nil {
		t.Fatalf("Transfer.Run: %v", err)
	}
}
