package delta

import (
	"bytes"
	"io"

	"github.com/go-rsync/rsync/internal/rsyncchecksum"
)

// Options tunes delta computation beyond the basis signature.
type Options struct {
	// MaxLiteral caps how many pending literal bytes are coalesced before
	// being flushed as one Op (spec.md §4.2, "Literal runs are coalesced").
	// Zero means "no cap" (coalesce until a match is found or EOF). The cap
	// is not applied when WholeFile is set or the signature has no blocks:
	// the target is then emitted as a single Literal.
	MaxLiteral int64

	// WholeFile bypasses block matching entirely and emits the whole target
	// as a single Literal (spec.md §4.2 step 5).
	WholeFile bool
}

// Compute reads target fully (spec.md's target is a sequential stream) and
// returns the ordered Copy/Literal ops that reproduce it when applied to
// the basis described by sig.
func Compute(target io.Reader, sig Signature, opts Options) ([]Op, error) {
	data, err := io.ReadAll(target)
	if err != nil {
		return nil, err
	}
	if opts.WholeFile || len(sig.Blocks) == 0 {
		if len(data) == 0 {
			return nil, nil
		}
		return []Op{Literal(data)}, nil
	}
	return computeBlocks(data, sig, opts)
}

func computeBlocks(data []byte, sig Signature, opts Options) ([]Op, error) {
	idx := newIndex(sig)
	blockLen := int(sig.BlockLen)
	var ops []Op

	literalStart := 0
	flushLiteral := func(end int) {
		if end > literalStart {
			ops = appendLiteral(ops, data[literalStart:end], opts.MaxLiteral)
		}
	}

	n := len(data)
	if n == 0 {
		return nil, nil
	}

	windowEnd := blockLen
	if windowEnd > n {
		windowEnd = n
	}
	var roll rsyncchecksum.Rolling
	roll.Reset(data[0:windowEnd])

	p := 0
	for p < n {
		end := p + blockLen
		if end > n {
			end = n
		}
		weak := roll.Digest()
		if matched, mlen := tryMatch(idx, data, p, end, weak, sig); matched >= 0 {
			flushLiteral(p)
			blen := sig.BlockLength(int32(matched))
			off := int64(matched) * int64(sig.BlockLen)
			ops = appendCopy(ops, off, int64(blen))
			p += mlen
			literalStart = p
			if p >= n {
				break
			}
			we := p + blockLen
			if we > n {
				we = n
			}
			roll.Reset(data[p:we])
			continue
		}
		// No match at this position: advance by one byte.
		if end >= n {
			// Window already reaches EOF and did not match; nothing more to
			// slide into, so drop its first byte and recompute the digest
			// over the shorter tail window.
			p++
			if p >= n {
				break
			}
			we := p + blockLen
			if we > n {
				we = n
			}
			if we > p {
				roll.Reset(data[p:we])
			}
			continue
		}
		roll.Roll(data[p], data[end])
		p++
	}
	flushLiteral(n)
	return ops, nil
}

// tryMatch checks whether the window data[p:end] matches any candidate
// block sharing weak. Returns the matched block index and the number of
// bytes consumed (mlen, normally end-p, i.e. the candidate's own block
// length), or (-1, 0) if nothing confirms.
func tryMatch(idx *index, data []byte, p, end int, weak uint32, sig Signature) (int, int) {
	candidates := idx.candidates(weak)
	if len(candidates) == 0 {
		return -1, 0
	}
	window := data[p:end]
	for _, c := range candidates {
		blen := int(sig.BlockLength(c.Index))
		if blen != len(window) {
			continue
		}
		strong := rsyncchecksum.Truncate(rsyncchecksum.Sum(sig.Alg, sig.Seed, window), sig.TruncLen)
		if bytes.Equal(strong, c.Strong) {
			return int(c.Index), len(window)
		}
	}
	return -1, 0
}

// appendLiteral appends b to ops, merging into a trailing Literal op when
// one is already pending (so consecutive literal flushes do not fragment
// into multiple ops). When limit > 0 no Literal grows beyond limit bytes;
// the remainder is flushed into a new Literal op.
func appendLiteral(ops []Op, b []byte, limit int64) []Op {
	for len(b) > 0 {
		n := len(ops)
		if n == 0 || ops[n-1].Kind != OpLiteral || (limit > 0 && ops[n-1].Len >= limit) {
			ops = append(ops, Op{Kind: OpLiteral})
			n++
		}
		take := int64(len(b))
		if limit > 0 && ops[n-1].Len+take > limit {
			take = limit - ops[n-1].Len
		}
		ops[n-1].Bytes = append(ops[n-1].Bytes, b[:take]...)
		ops[n-1].Len = int64(len(ops[n-1].Bytes))
		b = b[take:]
	}
	return ops
}

// appendCopy appends a Copy op, merging it into a trailing Copy when the
// two are contiguous in the basis (spec.md §4.2, "Copy spanning adjacent
// matched blocks MUST be merged into a single Copy op when their
// (basis_offset, len) are contiguous").
func appendCopy(ops []Op, offset, length int64) []Op {
	if n := len(ops); n > 0 && ops[n-1].Kind == OpCopy && ops[n-1].BasisOffset+ops[n-1].Len == offset {
		ops[n-1].Len += length
		return ops
	}
	return append(ops, Copy(offset, length))
}

// Apply writes the result of applying ops to basis into w, per spec.md §3's
// core invariant: the concatenation of Copy and Literal payloads applied to
// basis equals the target byte-for-byte.
func Apply(w io.Writer, basis io.ReaderAt, ops []Op) error {
	for _, op := range ops {
		switch op.Kind {
		case OpLiteral:
			if _, err := w.Write(op.Bytes); err != nil {
				return err
			}
		case OpCopy:
			buf := make([]byte, op.Len)
			if _, err := basis.ReadAt(buf, op.BasisOffset); err != nil && err != io.EOF {
				return err
			}
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
	}
	return nil
}

// LiteralBytes returns the total number of literal (non-copied) bytes
// across ops, used for statistics and for the §8 golden delta-roundtrip
// test.
func LiteralBytes(ops []Op) int64 {
	var n int64
	for _, op := range ops {
		if op.Kind == OpLiteral {
			n += op.Len
		}
	}
	return n
}
