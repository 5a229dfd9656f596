package compress

import (
	"bytes"
	"io"
)

// CompressPayload compresses data as one self-contained codec stream,
// suitable for a single wire frame's payload (spec.md §4.6: "The codec MUST
// be deterministic enough that a zero-byte input produces a well-formed
// empty frame"). Used by the sender/receiver data plane to compress
// individual literal chunks independently, so that each frame decompresses
// on its own without needing cross-frame codec state.
func CompressPayload(codec Codec, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := NewCompressor(codec, &buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecompressPayload inverts CompressPayload.
func DecompressPayload(codec Codec, data []byte) ([]byte, error) {
	r, err := NewDecompressor(codec, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
