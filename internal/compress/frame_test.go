package compress

import (
	"bytes"
	"testing"
)

func TestCompressPayloadRoundtrip(t *testing.T) {
	for _, codec := range []Codec{None, Zstd, Zlib, Zlibx, LZ4} {
		data := bytes.Repeat([]byte("payload"), 50)
		comp, err := CompressPayload(codec, data)
		if err != nil {
			t.Fatalf("%v: compress: %v", codec, err)
		}
		got, err := DecompressPayload(codec, comp)
		if err != nil {
			t.Fatalf("%v: decompress: %v", codec, err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("%v: roundtrip mismatch", codec)
		}
	}
}

func TestCompressPayloadEmptyInput(t *testing.T) {
	for _, codec := range []Codec{None, Zstd, Zlib, Zlibx, LZ4} {
		comp, err := CompressPayload(codec, nil)
		if err != nil {
			t.Fatalf("%v: compress empty: %v", codec, err)
		}
		got, err := DecompressPayload(codec, comp)
		if err != nil {
			t.Fatalf("%v: decompress empty: %v", codec, err)
		}
		if len(got) != 0 {
			t.Errorf("%v: expected empty roundtrip, got %d bytes", codec, len(got))
		}
	}
}
