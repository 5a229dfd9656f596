// Package compress implements the pluggable compression layer (spec.md
// §4.6): a closed set of codecs, selected by intersecting the sender's and
// receiver's preference-ordered codec lists, streaming compress/decompress
// over io.Reader/io.Writer.
package compress

import (
	"bufio"
	"compress/flate"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies a compression algorithm. The set is closed (spec.md §9:
// "Dynamic dispatch over codecs and strong hashes... Do not expose a plugin
// interface; new codecs are added in the core").
type Codec byte

const (
	None Codec = iota
	Zstd
	Zlib
	Zlibx
	LZ4
)

func (c Codec) String() string {
	switch c {
	case None:
		return "none"
	case Zstd:
		return "zstd"
	case Zlib:
		return "zlib"
	case Zlibx:
		return "zlibx"
	case LZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Codec(%d)", byte(c))
	}
}

// DefaultPreference is this implementation's codec preference order,
// newest/best first, matching the order real rsync advertises since adding
// zstd support.
var DefaultPreference = []Codec{Zstd, LZ4, Zlibx, Zlib}

// Negotiate returns the first codec in local that also appears in peer,
// preserving local's preference order (spec.md §4.6: "the sender picks the
// first codec in its preference list that also appears in the peer
// list"). It returns None if the lists share nothing, or if either list is
// empty (compression disabled).
func Negotiate(local, peer []Codec) Codec {
	if len(local) == 0 || len(peer) == 0 {
		return None
	}
	peerSet := make(map[Codec]bool, len(peer))
	for _, c := range peer {
		peerSet[c] = true
	}
	for _, c := range local {
		if peerSet[c] {
			return c
		}
	}
	return None
}

// defaultSkipExtensions lists extensions that are already compressed and
// should bypass the codec, mirroring rsync's built-in --skip-compress
// defaults.
var defaultSkipExtensions = map[string]bool{
	"mp4": true, "zip": true, "zst": true, "gz": true, "tgz": true,
	"bz2": true, "xz": true, "7z": true, "rar": true, "jpg": true,
	"jpeg": true, "png": true, "mp3": true, "ogg": true, "mov": true,
	"avi": true, "mkv": true, "webm": true, "rpm": true, "deb": true,
}

// ShouldSkip reports whether ext (without the leading dot, lower-cased)
// should bypass compression, per the built-in defaults plus any
// user-supplied additions.
func ShouldSkip(ext string, extra []string) bool {
	if defaultSkipExtensions[ext] {
		return true
	}
	for _, e := range extra {
		if e == ext {
			return true
		}
	}
	return false
}

// NewCompressor wraps w so that writes are compressed with codec before
// reaching w. The caller MUST call Close to flush trailing codec state.
func NewCompressor(codec Codec, w io.Writer) (io.WriteCloser, error) {
	switch codec {
	case None:
		return nopWriteCloser{w}, nil
	case Zstd:
		return zstd.NewWriter(w)
	case Zlib, Zlibx:
		return flate.NewWriter(w, flate.DefaultCompression)
	case LZ4:
		zw := lz4.NewWriter(w)
		return zw, nil
	default:
		return nil, fmt.Errorf("compress: unknown codec %v", codec)
	}
}

// NewDecompressor wraps r so that reads are decompressed per codec.
func NewDecompressor(codec Codec, r io.Reader) (io.ReadCloser, error) {
	switch codec {
	case None:
		return io.NopCloser(bufio.NewReader(r)), nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	case Zlib, Zlibx:
		return flate.NewReader(r), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("compress: unknown codec %v", codec)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
