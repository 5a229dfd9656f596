package compress

import (
	"bytes"
	"io"
	"testing"
)

func TestNegotiatePicksFirstMutual(t *testing.T) {
	local := []Codec{Zstd, LZ4, Zlibx, Zlib}
	peer := []Codec{Zlib, LZ4}
	if got := Negotiate(local, peer); got != LZ4 {
		t.Errorf("Negotiate = %v, want LZ4", got)
	}
}

func TestNegotiateNoOverlap(t *testing.T) {
	if got := Negotiate([]Codec{Zstd}, []Codec{Zlib}); got != None {
		t.Errorf("Negotiate = %v, want None", got)
	}
}

func TestNegotiateEmptyDisablesCompression(t *testing.T) {
	if got := Negotiate(nil, []Codec{Zstd}); got != None {
		t.Errorf("Negotiate with empty local = %v, want None", got)
	}
}

func TestRoundtripAllCodecs(t *testing.T) {
	for _, codec := range []Codec{None, Zstd, Zlib, LZ4} {
		t.Run(codec.String(), func(t *testing.T) {
			input := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 200)

			var compressed bytes.Buffer
			wc, err := NewCompressor(codec, &compressed)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := wc.Write(input); err != nil {
				t.Fatal(err)
			}
			if err := wc.Close(); err != nil {
				t.Fatal(err)
			}

			rc, err := NewDecompressor(codec, bytes.NewReader(compressed.Bytes()))
			if err != nil {
				t.Fatal(err)
			}
			defer rc.Close()
			got, err := io.ReadAll(rc)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, input) {
				t.Errorf("roundtrip mismatch for codec %v", codec)
			}
		})
	}
}

func TestEmptyInputProducesWellFormedFrame(t *testing.T) {
	for _, codec := range []Codec{Zstd, Zlib, LZ4} {
		t.Run(codec.String(), func(t *testing.T) {
			var compressed bytes.Buffer
			wc, err := NewCompressor(codec, &compressed)
			if err != nil {
				t.Fatal(err)
			}
			if err := wc.Close(); err != nil {
				t.Fatal(err)
			}

			rc, err := NewDecompressor(codec, bytes.NewReader(compressed.Bytes()))
			if err != nil {
				t.Fatal(err)
			}
			defer rc.Close()
			got, err := io.ReadAll(rc)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 0 {
				t.Errorf("expected empty output, got %d bytes", len(got))
			}
		})
	}
}

func TestShouldSkipBuiltinDefaults(t *testing.T) {
	if !ShouldSkip("zip", nil) {
		t.Error("zip should be skipped by default")
	}
	if ShouldSkip("txt", nil) {
		t.Error("txt should not be skipped by default")
	}
	if !ShouldSkip("log", []string{"log"}) {
		t.Error("user-supplied extension should be skipped")
	}
}
