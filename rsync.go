// Package rsync holds protocol-wide constants and wire types shared by the
// sender and receiver sides of a transfer: the supported protocol versions,
// the capability bitmask, and the block-checksum header (SumHead) that
// precedes every per-file delta exchange.
package rsync

import "github.com/go-rsync/rsync/internal/rsyncwire"

// ProtocolVersion is the protocol version this implementation speaks by
// default. SupportedProtocolVersions lists every version this implementation
// can still negotiate down to, newest first.
const ProtocolVersion = 29

var SupportedProtocolVersions = []int32{29, 28, 27}

// MinProtocolVersion is the oldest protocol version this implementation will
// ever negotiate.
const MinProtocolVersion = 27

// Capability bits exchanged during the handshake (§4.4). Each bit gates an
// optional protocol extension; the effective set is local & peer & supported.
const (
	CapCodecs uint32 = 1 << iota
	CapXattrs
	CapACLs
	CapHardlinks
	CapBatch
	CapFuzzy
)

// SupportedCapabilities is the full set this implementation can honor.
const SupportedCapabilities = CapCodecs | CapXattrs | CapACLs | CapHardlinks | CapBatch | CapFuzzy

// SumHead describes a basis file's block-checksum list: how many blocks,
// how long each (non-final) block is, how long the trailing remainder is,
// and how many bytes of strong checksum follow each weak checksum on the
// wire (see internal/rsyncchecksum for the version-dependent truncation
// table that determines ChecksumLength).
type SumHead struct {
	ChecksumCount   int32 // number of blocks, i.e. entries that follow
	BlockLength     int32 // block size used for all but the last block
	ChecksumLength  int32 // bytes of strong checksum per block on the wire
	RemainderLength int32 // length of the final, possibly-short block
}

// ReadFrom reads a SumHead off the wire, in the order sender and receiver
// both expect: count, block length, checksum length, remainder length.
func (sh *SumHead) ReadFrom(c *rsyncwire.Conn) error {
	count, err := c.ReadInt32()
	if err != nil {
		return err
	}
	blen, err := c.ReadInt32()
	if err != nil {
		return err
	}
	clen, err := c.ReadInt32()
	if err != nil {
		return err
	}
	rlen, err := c.ReadInt32()
	if err != nil {
		return err
	}
	sh.ChecksumCount = count
	sh.BlockLength = blen
	sh.ChecksumLength = clen
	sh.RemainderLength = rlen
	return nil
}

// WriteTo writes a SumHead to the wire in the same field order ReadFrom
// expects.
func (sh *SumHead) WriteTo(c *rsyncwire.Conn) error {
	if err := c.WriteInt32(sh.ChecksumCount); err != nil {
		return err
	}
	if err := c.WriteInt32(sh.BlockLength); err != nil {
		return err
	}
	if err := c.WriteInt32(sh.ChecksumLength); err != nil {
		return err
	}
	return c.WriteInt32(sh.RemainderLength)
}

// BlockLen returns the length of block idx (0-based) of the file sh
// describes: BlockLength for every block except possibly the last, which is
// RemainderLength when non-zero.
func (sh *SumHead) BlockLen(idx int32) int32 {
	if idx == sh.ChecksumCount-1 && sh.RemainderLength != 0 {
		return sh.RemainderLength
	}
	return sh.BlockLength
}

// BlockSize computes the block size B for a basis file of the given length,
// per spec.md §3: below ~500,000 bytes B=700; otherwise B grows with
// sqrt(length), capped at 2^17 and floored at 700.
func BlockSize(length int64) int32 {
	const (
		minBlockLength = 700
		maxBlockLength = 1 << 17
		sizeThreshold  = 500_000
	)
	if length <= sizeThreshold {
		return minBlockLength
	}
	// Grow with sqrt(length), rounded to a multiple of 8 as upstream does to
	// keep the checksum table reasonably aligned.
	b := int64(isqrt(uint64(length)))
	b -= b % 8
	if b < minBlockLength {
		b = minBlockLength
	}
	if b > maxBlockLength {
		b = maxBlockLength
	}
	return int32(b)
}

func isqrt(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	x := n
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + n/x) / 2
	}
	return x
}
