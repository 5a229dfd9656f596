package rsyncchecksum

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/mmcloughlin/md4"
	"github.com/zeebo/xxh3"
)

// Algorithm identifies a strong (confirming) digest. The set is closed: new
// algorithms are added here, not via a plugin interface (spec.md §9,
// "Dynamic dispatch over codecs and strong hashes").
type Algorithm byte

const (
	MD4 Algorithm = iota
	MD5
	SHA1
	XXH64
	XXH3
	XXH128
)

func (a Algorithm) String() string {
	switch a {
	case MD4:
		return "md4"
	case MD5:
		return "md5"
	case SHA1:
		return "sha1"
	case XXH64:
		return "xxh64"
	case XXH3:
		return "xxh3"
	case XXH128:
		return "xxh128"
	default:
		return "unknown"
	}
}

// Seed is the 32-bit session-wide value mixed into every strong digest.
type Seed int32

// Sum computes the full (untruncated) strong digest of data under alg,
// keyed by seed. The seed is mixed in per rsync convention: MD4 appends the
// seed after the data, MD5/SHA1 prepend it before the data, and the XXH
// family uses the seed as the hash's native seed parameter.
func Sum(alg Algorithm, seed Seed, data []byte) []byte {
	switch alg {
	case MD4:
		h := md4.New()
		h.Write(data)
		var seedBytes [4]byte
		binary.LittleEndian.PutUint32(seedBytes[:], uint32(seed))
		h.Write(seedBytes[:])
		return h.Sum(nil)
	case MD5:
		h := md5.New()
		var seedBytes [4]byte
		binary.LittleEndian.PutUint32(seedBytes[:], uint32(seed))
		h.Write(seedBytes[:])
		h.Write(data)
		return h.Sum(nil)
	case SHA1:
		h := sha1.New()
		var seedBytes [4]byte
		binary.LittleEndian.PutUint32(seedBytes[:], uint32(seed))
		h.Write(seedBytes[:])
		h.Write(data)
		return h.Sum(nil)
	case XXH64:
		h := xxhash.NewWithSeed(uint64(uint32(seed)))
		h.Write(data)
		return u64ToBytes(h.Sum64())
	case XXH3:
		h := xxh3.NewSeed(uint64(uint32(seed)))
		h.Write(data)
		return u64ToBytes(h.Sum64())
	case XXH128:
		h := xxh3.NewSeed(uint64(uint32(seed)))
		h.Write(data)
		s := h.Sum128()
		out := make([]byte, 16)
		binary.BigEndian.PutUint64(out[:8], s.Hi)
		binary.BigEndian.PutUint64(out[8:], s.Lo)
		return out
	default:
		panic("rsyncchecksum: unknown algorithm")
	}
}

func u64ToBytes(v uint64) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, v)
	return out
}

// NaturalLength is the full (untruncated) digest width of alg, in bytes.
func NaturalLength(alg Algorithm) int {
	switch alg {
	case MD4, MD5:
		return 16
	case SHA1:
		return 20
	case XXH64, XXH3:
		return 8
	case XXH128:
		return 16
	default:
		panic("rsyncchecksum: unknown algorithm")
	}
}

// TruncationLength returns the number of low-order bytes of the strong
// digest that are actually sent on the wire for block checksums, as a
// function of the negotiated protocol version and algorithm. This mirrors
// upstream's version-dependent table (spec.md §9's open question): older
// protocol versions truncate hard to save bandwidth at the cost of
// collision resistance, while the XXH family (only negotiable on newer
// protocols to begin with) is always sent at its natural width.
func TruncationLength(protocolVersion int, alg Algorithm) int {
	switch alg {
	case XXH64, XXH3, XXH128:
		return NaturalLength(alg)
	}
	switch {
	case protocolVersion < 27:
		return 2
	case protocolVersion < 28:
		return 8
	default:
		return NaturalLength(alg)
	}
}

// Truncate returns the leading L bytes of digest, exactly as produced by
// Sum, with no byte reordering (spec.md §4.1: "taking the low-order L bytes
// of the digest in wire order; callers must not reorder").
func Truncate(digest []byte, l int) []byte {
	if l >= len(digest) {
		return digest
	}
	return digest[:l]
}
