package rsyncchecksum

import "testing"

func TestRollingKnownValue(t *testing.T) {
	r := New([]byte("hello world"))
	if got, want := r.Digest(), uint32(436208732); got != want {
		t.Errorf("Digest() = %d, want %d", got, want)
	}
}

func TestRollingSlideMatchesRecompute(t *testing.T) {
	window := []byte("the quick brown fox jumps")
	extra := byte('!')

	r := New(window)
	r.Roll(window[0], extra)

	slid := append(append([]byte{}, window[1:]...), extra)
	recomputed := New(slid)

	if got, want := r.Digest(), recomputed.Digest(); got != want {
		t.Errorf("sliding digest = %d, recomputing from scratch = %d", got, want)
	}
}

func TestRollingSlideSequence(t *testing.T) {
	data := []byte("abcdefghijklmnopqrstuvwxyz0123456789")
	const n = 8

	r := New(data[:n])
	for i := n; i < len(data); i++ {
		r.Roll(data[i-n], data[i])
		want := New(data[i-n+1 : i+1]).Digest()
		if got := r.Digest(); got != want {
			t.Fatalf("at i=%d: rolling digest = %d, want %d", i, got, want)
		}
	}
}
