// Package rsyncwire implements the framed, multiplexed wire protocol
// (spec.md §4.4): frame header encode/decode, the tagged message enum, a
// multiplexer/demultiplexer pair, and the version+capability handshake
// (with optional challenge-response auth).
//
// The Conn type and its ReadInt32/WriteInt32 helpers follow the shape the
// teacher's receiver and daemon code already call
// (rsyncwire.Conn.{Read,Write}Int32, rsyncwire.MultiplexWriter.WriteMsg,
// rsyncwire.CounterPair) even though the teacher's checked-out slice does
// not ship this package itself.
package rsyncwire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameLen is the frame-length ceiling (spec.md §4.4): implementations
// MUST reject frames whose declared length exceeds this, to prevent memory
// exhaustion from a malicious or corrupt peer.
const MaxFrameLen = 4 << 20 // 4 MiB

// Tag identifies the kind of a frame at the outermost level.
type Tag uint8

const (
	TagMessage Tag = iota
	TagKeepAlive
	TagData
)

func (t Tag) String() string {
	switch t {
	case TagMessage:
		return "Message"
	case TagKeepAlive:
		return "KeepAlive"
	case TagData:
		return "Data"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// MsgCode identifies the specific message within a Message-tagged frame.
type MsgCode uint8

const (
	MsgData MsgCode = iota
	MsgErrorXfer
	MsgInfo
	MsgError
	MsgWarning
	MsgErrorSocket
	MsgLog
	MsgClient
	MsgErrorUtf8
	MsgRedo
	MsgStats
	MsgIoError
	MsgIoTimeout
	MsgNoop
	MsgErrorExit
	MsgSuccess
	MsgDeleted
	MsgNoSend
	MsgVersion
	MsgDone
	MsgKeepAlive
	MsgFileListEntry
	MsgAttributes
	MsgProgress
	MsgCodecs
	MsgXattrs
	MsgChecksums
	MsgDeltaOp
)

// Header is the 8-byte, big-endian frame header preceding every frame's
// payload: {channel: u16, tag: u8, msg: u8, length: u32}.
type Header struct {
	Channel uint16
	Tag     Tag
	Msg     MsgCode
	Length  uint32
}

const headerLen = 8

// ReadHeader reads and validates one frame header from r. It rejects
// headers declaring a length beyond MaxFrameLen.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [headerLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return Header{}, err
	}
	h := Header{
		Channel: binary.BigEndian.Uint16(buf[0:2]),
		Tag:     Tag(buf[2]),
		Msg:     MsgCode(buf[3]),
		Length:  binary.BigEndian.Uint32(buf[4:8]),
	}
	if h.Length > MaxFrameLen {
		return Header{}, fmt.Errorf("rsyncwire: frame length %d exceeds ceiling %d", h.Length, MaxFrameLen)
	}
	return h, nil
}

// WriteHeader writes a frame header to w.
func WriteHeader(w io.Writer, h Header) error {
	if h.Length > MaxFrameLen {
		return fmt.Errorf("rsyncwire: refusing to write frame length %d exceeding ceiling %d", h.Length, MaxFrameLen)
	}
	var buf [headerLen]byte
	binary.BigEndian.PutUint16(buf[0:2], h.Channel)
	buf[2] = byte(h.Tag)
	buf[3] = byte(h.Msg)
	binary.BigEndian.PutUint32(buf[4:8], h.Length)
	_, err := w.Write(buf[:])
	return err
}

// Frame is a fully-read frame: its header plus payload bytes.
type Frame struct {
	Header  Header
	Payload []byte
}

// ReadFrame reads one complete frame (header + payload) from r.
func ReadFrame(r io.Reader) (Frame, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return Frame{}, err
	}
	payload := make([]byte, h.Length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, err
	}
	return Frame{Header: h, Payload: payload}, nil
}

// WriteFrame writes one complete frame (header + payload) to w. Frames are
// atomic at this layer: a KeepAlive can never be interleaved inside one
// (spec.md §5, "A KeepAlive never appears between fragments of a logical
// payload").
func WriteFrame(w io.Writer, f Frame) error {
	f.Header.Length = uint32(len(f.Payload))
	if err := WriteHeader(w, f.Header); err != nil {
		return err
	}
	_, err := w.Write(f.Payload)
	return err
}
