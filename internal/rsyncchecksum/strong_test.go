package rsyncchecksum

import (
	"encoding/hex"
	"testing"
)

func TestStrongDigestGoldenValues(t *testing.T) {
	data := []byte("hello world")

	tests := []struct {
		alg  Algorithm
		want string
	}{
		{MD5, "be4b47980f89d075f8f7e7a9fab84e29"},
		{SHA1, "1fb6475c524899f98b088f7608bdab8f1591e078"},
		{XXH64, "68691eb23467ab45"},
	}
	for _, tc := range tests {
		got := hex.EncodeToString(Sum(tc.alg, 0, data))
		if got != tc.want {
			t.Errorf("Sum(%s, seed=0, %q) = %s, want %s", tc.alg, data, got, tc.want)
		}
	}
}

func TestTruncationLengthTable(t *testing.T) {
	if got := TruncationLength(26, MD4); got != 2 {
		t.Errorf("protocol 26 MD4 truncation = %d, want 2", got)
	}
	if got := TruncationLength(27, MD4); got != 8 {
		t.Errorf("protocol 27 MD4 truncation = %d, want 8", got)
	}
	if got := TruncationLength(29, MD5); got != 16 {
		t.Errorf("protocol 29 MD5 truncation = %d, want 16", got)
	}
	if got := TruncationLength(27, XXH64); got != 8 {
		t.Errorf("XXH64 truncation should stay at natural width, got %d", got)
	}
}

func TestTruncatePreservesLeadingBytes(t *testing.T) {
	digest := []byte{0xde, 0xad, 0xbe, 0xef}
	got := Truncate(digest, 2)
	want := []byte{0xde, 0xad}
	if string(got) != string(want) {
		t.Errorf("Truncate = %x, want %x", got, want)
	}
}
