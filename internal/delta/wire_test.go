package delta

import (
	"bytes"
	"testing"

	"github.com/go-rsync/rsync/internal/rsyncchecksum"
)

func TestSignatureWireRoundtrip(t *testing.T) {
	basis := bytes.Repeat([]byte{0x42}, 200)
	sig, err := ComputeSignature(bytes.NewReader(basis), 64, rsyncchecksum.MD5, 0, 16)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := EncodeSignature(&buf, sig); err != nil {
		t.Fatal(err)
	}
	got, err := DecodeSignature(&buf)
	if err != nil {
		t.Fatal(err)
	}

	if got.BlockLen != sig.BlockLen || got.FinalLen != sig.FinalLen || got.Alg != sig.Alg || got.TruncLen != sig.TruncLen {
		t.Fatalf("header mismatch: got %+v, want %+v", got, sig)
	}
	if len(got.Blocks) != len(sig.Blocks) {
		t.Fatalf("blocks: got %d, want %d", len(got.Blocks), len(sig.Blocks))
	}
	for i := range sig.Blocks {
		if got.Blocks[i].Index != sig.Blocks[i].Index || got.Blocks[i].Weak != sig.Blocks[i].Weak ||
			!bytes.Equal(got.Blocks[i].Strong, sig.Blocks[i].Strong) {
			t.Errorf("block %d mismatch: got %+v, want %+v", i, got.Blocks[i], sig.Blocks[i])
		}
	}
}

func TestOpWireRoundtrip(t *testing.T) {
	ops := []Op{
		Copy(0, 128),
		Literal([]byte("hello world")),
		Copy(512, 64),
	}
	for _, op := range ops {
		var buf bytes.Buffer
		if err := EncodeOp(&buf, op); err != nil {
			t.Fatal(err)
		}
		got, err := DecodeOp(&buf)
		if err != nil {
			t.Fatal(err)
		}
		if got.Kind != op.Kind || got.BasisOffset != op.BasisOffset || got.Len != op.Len || !bytes.Equal(got.Bytes, op.Bytes) {
			t.Errorf("op roundtrip mismatch: got %+v, want %+v", got, op)
		}
	}
}
