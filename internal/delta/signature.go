package delta

import (
	"io"

	"github.com/go-rsync/rsync/internal/rsyncchecksum"
)

// BlockChecksum is the (weak, strong) pair computed for one basis block
// (spec.md §3, "Block-checksum pair").
type BlockChecksum struct {
	Index  int32
	Weak   uint32
	Strong []byte // truncated to the negotiated length
}

// Signature is the ordered list of block checksums for a basis file, plus
// the parameters needed to reproduce block boundaries (block size, the
// final block's true length, and the strong-digest algorithm/seed/
// truncation in effect for this session).
type Signature struct {
	BlockLen   int32
	FinalLen   int32 // length of the last block; 0 means "same as BlockLen"
	Alg        rsyncchecksum.Algorithm
	Seed       rsyncchecksum.Seed
	TruncLen   int
	Blocks     []BlockChecksum
}

// ComputeSignature reads basis in blockLen-sized chunks and returns the
// weak+truncated-strong checksum of each (spec.md §4.2 step 1 /
// §4.5 receiver step 3). basis must support sequential reads to EOF; it
// need not be seekable here (the sender side re-opens it for random access
// separately).
func ComputeSignature(basis io.Reader, blockLen int32, alg rsyncchecksum.Algorithm, seed rsyncchecksum.Seed, truncLen int) (Signature, error) {
	sig := Signature{BlockLen: blockLen, Alg: alg, Seed: seed, TruncLen: truncLen}
	buf := make([]byte, blockLen)
	var idx int32
	for {
		n, err := io.ReadFull(basis, buf)
		if n > 0 {
			block := buf[:n]
			weak := rsyncchecksum.New(block).Digest()
			strong := rsyncchecksum.Truncate(rsyncchecksum.Sum(alg, seed, block), truncLen)
			sig.Blocks = append(sig.Blocks, BlockChecksum{
				Index:  idx,
				Weak:   weak,
				Strong: append([]byte(nil), strong...),
			})
			if int32(n) != blockLen {
				sig.FinalLen = int32(n)
			}
			idx++
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return Signature{}, err
		}
	}
	return sig, nil
}

// BlockLength returns the true length of block idx: BlockLen for every
// block except possibly the last, which is FinalLen when set.
func (s Signature) BlockLength(idx int32) int32 {
	if int(idx) == len(s.Blocks)-1 && s.FinalLen != 0 {
		return s.FinalLen
	}
	return s.BlockLen
}

// index groups block checksums by weak digest for O(1) candidate lookup
// during delta computation (spec.md §4.2 step 1: "Sender builds a hashmap
// from weak-checksum to list of (block_index, strong)").
type index struct {
	buckets map[uint32][]BlockChecksum
}

func newIndex(sig Signature) *index {
	idx := &index{buckets: make(map[uint32][]BlockChecksum, len(sig.Blocks))}
	for _, b := range sig.Blocks {
		idx.buckets[b.Weak] = append(idx.buckets[b.Weak], b)
	}
	return idx
}

// candidates returns the blocks sharing weak, sorted by index so that
// ties prefer the lowest index (spec.md §4.2, "When multiple candidates
// match, prefer the lowest block index").
func (idx *index) candidates(weak uint32) []BlockChecksum {
	return idx.buckets[weak]
}
