package rsyncwire

import (
	"bytes"
	"testing"
)

func TestFrameRoundtrip(t *testing.T) {
	var buf bytes.Buffer
	want := Frame{
		Header:  Header{Channel: 3, Tag: TagMessage, Msg: MsgInfo},
		Payload: []byte("hello"),
	}
	if err := WriteFrame(&buf, want); err != nil {
		t.Fatal(err)
	}
	got, err := ReadFrame(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Header.Channel != want.Header.Channel || got.Header.Tag != want.Header.Tag ||
		got.Header.Msg != want.Header.Msg || !bytes.Equal(got.Payload, want.Payload) {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", got, want)
	}
}

func TestReadHeaderRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHeader(&buf, Header{Length: MaxFrameLen}); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadHeader(&buf); err != nil {
		t.Fatalf("frame at the ceiling should be accepted: %v", err)
	}

	buf.Reset()
	// Hand-craft a header claiming a length beyond the ceiling; WriteHeader
	// itself would refuse, so we write raw bytes.
	hdr := Header{Channel: 0, Tag: TagData, Msg: MsgData, Length: MaxFrameLen + 1}
	raw := []byte{
		byte(hdr.Channel >> 8), byte(hdr.Channel),
		byte(hdr.Tag), byte(hdr.Msg),
		byte(hdr.Length >> 24), byte(hdr.Length >> 16), byte(hdr.Length >> 8), byte(hdr.Length),
	}
	buf.Write(raw)
	if _, err := ReadHeader(&buf); err == nil {
		t.Error("expected error for frame exceeding MaxFrameLen, got nil")
	}
}
