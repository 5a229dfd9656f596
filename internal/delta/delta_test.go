package delta

import (
	"bytes"
	"testing"

	"github.com/go-rsync/rsync/internal/rsyncchecksum"
)

func computeSig(t *testing.T, basis []byte, blockLen int32) Signature {
	t.Helper()
	sig, err := ComputeSignature(bytes.NewReader(basis), blockLen, rsyncchecksum.MD5, 0, 16)
	if err != nil {
		t.Fatal(err)
	}
	return sig
}

func TestDeltaRoundtripIdenticalFiles(t *testing.T) {
	basis := bytes.Repeat([]byte("0123456789"), 200)
	sig := computeSig(t, basis, 64)

	ops, err := Compute(bytes.NewReader(basis), sig, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := LiteralBytes(ops); got != 0 {
		t.Errorf("identical files should transfer zero literal bytes, got %d", got)
	}

	var out bytes.Buffer
	if err := Apply(&out, bytes.NewReader(basis), ops); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out.Bytes(), basis) {
		t.Error("applying ops to basis did not reproduce the target")
	}
}

func TestDeltaRoundtripDirtyRegion(t *testing.T) {
	// Golden scenario from spec.md §8 item 3.
	basis := make([]byte, 2048)
	for i := 0; i < 1024; i++ {
		basis[i] = byte(i % 256)
	}
	target := append([]byte(nil), basis...)
	for i := 512; i < 1536; i++ {
		target[i] = 0xAA
	}

	sig := computeSig(t, basis, 1024)
	ops, err := Compute(bytes.NewReader(target), sig, Options{})
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := Apply(&out, bytes.NewReader(basis), ops); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out.Bytes(), target) {
		t.Fatal("applying ops to basis did not reproduce the target")
	}
	if got, want := LiteralBytes(ops), int64(2048); got != want {
		t.Errorf("LiteralBytes = %d, want %d (both blocks fully dirtied)", got, want)
	}
}

func TestDeltaRoundtripAppendedTail(t *testing.T) {
	basis := bytes.Repeat([]byte("abcdefgh"), 300)
	target := append(append([]byte(nil), basis...), []byte("new tail data appended at the end")...)

	sig := computeSig(t, basis, 128)
	ops, err := Compute(bytes.NewReader(target), sig, Options{})
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := Apply(&out, bytes.NewReader(basis), ops); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out.Bytes(), target) {
		t.Fatal("applying ops to basis did not reproduce the target")
	}
}

func TestDeltaWholeFileMode(t *testing.T) {
	basis := bytes.Repeat([]byte("x"), 4096)
	target := bytes.Repeat([]byte("y"), 4096)
	sig := computeSig(t, basis, 512)

	ops, err := Compute(bytes.NewReader(target), sig, Options{WholeFile: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 1 || ops[0].Kind != OpLiteral {
		t.Fatalf("whole-file mode should emit exactly one Literal op, got %+v", ops)
	}
}

func TestAdjacentCopiesMerge(t *testing.T) {
	// Distinct content per 64-byte block so weak checksums disambiguate
	// blocks; TestDeltaRoundtripIdenticalFiles already covers uniform content.
	basis := make([]byte, 256)
	for i := range basis {
		basis[i] = byte(i)
	}
	sig := computeSig(t, basis, 64)

	ops, err := Compute(bytes.NewReader(basis), sig, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 1 || ops[0].Kind != OpCopy || ops[0].Len != 256 {
		t.Fatalf("expected adjacent block matches to merge into one Copy spanning the whole file, got %+v", ops)
	}
}

func TestEmptyTarget(t *testing.T) {
	basis := []byte("some basis content")
	sig := computeSig(t, basis, 16)

	ops, err := Compute(bytes.NewReader(nil), sig, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 0 {
		t.Errorf("expected no ops for an empty target, got %+v", ops)
	}
}
