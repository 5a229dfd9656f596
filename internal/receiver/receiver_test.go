package receiver

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-rsync/rsync/internal/compress"
	"github.com/go-rsync/rsync/internal/rsyncchecksum"
	"github.com/go-rsync/rsync/internal/rsyncstats"
	"github.com/go-rsync/rsync/internal/rsyncwire"
	"github.com/go-rsync/rsync/internal/sender"
	"github.com/go-rsync/rsync/internal/walk"
)

type allMatcher struct{}

func (allMatcher) Include(relPath string, isDir bool) walk.Decision {
	return walk.Decision{Include: true, Descend: true}
}

// runRoundTrip wires a sender.Transfer against a receiver.Transfer over a
// pair of io.Pipes, the way the two packages' wire protocols are designed
// to interlock (MsgFileListEntry/MsgAttributes/MsgDone for the file list,
// then per-file MsgChecksums/MsgNoSend/MsgDeltaOp/MsgChecksums), and
// returns once both sides finish.
func runRoundTrip(t *testing.T, srcRoot, destRoot string, opts Opts) {
	t.Helper()

	toReceiver, fromSender := io.Pipe()
	toSender, fromReceiver := io.Pipe()

	senderStats := &rsyncstats.Counters{}
	recvStats := &rsyncstats.Counters{}

	xfer := &sender.Transfer{
		Root:    srcRoot,
		Matcher: allMatcher{},
		Opts: sender.Options{
			Alg:      rsyncchecksum.MD5,
			TruncLen: 16,
			Codec:    compress.None,
		},
		Mpx:   &rsyncwire.MultiplexWriter{Writer: fromSender},
		Demux: rsyncwire.NewDemultiplexer(toSender, 0),
		Stats: senderStats,
	}

	rt := &Transfer{
		Dest:     destRoot,
		Opts:     opts,
		Alg:      rsyncchecksum.MD5,
		TruncLen: 16,
		BlockLen: 64,
		Codec:    compress.None,
		Mpx:      &rsyncwire.MultiplexWriter{Writer: fromReceiver},
		Demux:    rsyncwire.NewDemultiplexer(toReceiver, 0),
		Stats:    recvStats,
	}

	senderDone := make(chan error, 1)
	go func() { senderDone <- xfer.Run() }()

	recvDone := make(chan error, 1)
	go func() {
		_, err := rt.Run()
		recvDone <- err
	}()

	if err := <-senderDone; err != nil {
		t.Fatalf("sender.Run: %v", err)
	}
	if err := <-recvDone; err != nil {
		t.Fatalf("receiver.Run: %v", err)
	}
}

func TestRoundTripFreshDestination(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	dest := filepath.Join(tmp, "dest")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}

	content := []byte("the quick brown fox jumps over the lazy dog, repeatedly, for test data")
	if err := os.WriteFile(filepath.Join(src, "fox.txt"), content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(src, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(src, "sub", "nested.txt"), []byte("nested"), 0o644); err != nil {
		t.Fatal(err)
	}

	runRoundTrip(t, src, dest, Opts{PreservePerms: true, PreserveTimes: true})

	got, err := os.ReadFile(filepath.Join(dest, "fox.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Errorf("fox.txt content = %q, want %q", got, content)
	}

	gotNested, err := os.ReadFile(filepath.Join(dest, "sub", "nested.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(gotNested) != "nested" {
		t.Errorf("nested.txt content = %q, want %q", gotNested, "nested")
	}
}

func TestRoundTripUnchangedFileSkipped(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	dest := filepath.Join(tmp, "dest")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}

	content := []byte("identical on both sides")
	srcPath := filepath.Join(src, "same.txt")
	destPath := filepath.Join(dest, "same.txt")
	if err := os.WriteFile(srcPath, content, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(destPath, content, 0o644); err != nil {
		t.Fatal(err)
	}
	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(destPath, srcInfo.ModTime(), srcInfo.ModTime()); err != nil {
		t.Fatal(err)
	}

	runRoundTrip(t, src, dest, Opts{})

	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Errorf("same.txt content = %q, want %q", got, content)
	}
}

func TestRoundTripOverwritesChangedFile(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src")
	dest := filepath.Join(tmp, "dest")
	if err := os.MkdirAll(src, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(src, "changed.txt"), []byte("new content, much longer than the old one"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dest, "changed.txt"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	runRoundTrip(t, src, dest, Opts{})

	got, err := os.ReadFile(filepath.Join(dest, "changed.txt"))
	if err != nil {
		t.Fatal(err)
	}
	want := "new content, much longer than the old one"
	if string(got) != want {
		t.Errorf("changed.txt content = %q, want %q", got, want)
	}
}
