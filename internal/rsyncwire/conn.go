package rsyncwire

import (
	"encoding/binary"
	"io"
)

// Conn wraps the raw byte stream for a session, offering the small integer
// read/write helpers every higher layer (handshake, SumHead, file-list
// codec) builds on. Reader/Writer are exported so callers can swap Writer
// for a MultiplexWriter once the handshake has completed, exactly as the
// teacher's rsyncd.go does ("c.Writer = mpx").
type Conn struct {
	Reader io.Reader
	Writer io.Writer
}

func (c *Conn) ReadInt32() (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(c.Reader, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

func (c *Conn) WriteInt32(v int32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	_, err := c.Writer.Write(buf[:])
	return err
}

func (c *Conn) ReadInt64() (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(c.Reader, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

func (c *Conn) WriteInt64(v int64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	_, err := c.Writer.Write(buf[:])
	return err
}

// ReadUint32BE/WriteUint32BE read/write the big-endian 32-bit integers used
// by the handshake (protocol version, capability bitmask) and by frame
// headers, as distinct from the little-endian ints used elsewhere on the
// wire (spec.md §6: "Byte order is big-endian for framing; checksum-seed
// and id-table entries are little-endian as specified").
func (c *Conn) ReadUint32BE() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(c.Reader, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func (c *Conn) WriteUint32BE(v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := c.Writer.Write(buf[:])
	return err
}

// CountingReader and CountingWriter track the number of bytes that have
// passed through them, feeding internal/rsyncstats's Read/Written counters.
type CountingReader struct {
	R io.Reader
	N int64
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	c.N += int64(n)
	return n, err
}

type CountingWriter struct {
	W io.Writer
	N int64
}

func (c *CountingWriter) Write(p []byte) (int, error) {
	n, err := c.W.Write(p)
	c.N += int64(n)
	return n, err
}

// CounterPair wraps r and w with byte counters, returning both so callers
// can read back N after the transfer completes.
func CounterPair(r io.Reader, w io.Writer) (*CountingReader, *CountingWriter) {
	return &CountingReader{R: r}, &CountingWriter{W: w}
}
