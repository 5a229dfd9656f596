package filelist

import (
	"encoding/binary"
	"io"
)

// Attributes carries the per-entry metadata that travels separately from
// the path-prefix-compressed stream Encode/Decode produce (spec.md §4.5:
// "Write per-file metadata (mode, mtime, uid/gid, symlink target, device
// majors/minors, xattrs, ACLs) as an Attributes message"). Uid/Gid and the
// xattr/ACL blobs already round-trip through Encode/Decode; Attributes
// carries the remainder: kind, size, mtime, mode, and kind-specific fields.
type Attributes struct {
	Kind       Kind
	Size       int64
	Mtime      int64
	Mode       uint32
	LinkTarget string
	DevMajor   uint32
	DevMinor   uint32
}

// EncodeAttributes writes a's fields in a fixed layout.
func EncodeAttributes(w io.Writer, a Attributes) error {
	if err := writeByte(w, byte(a.Kind)); err != nil {
		return err
	}
	if err := writeInt64LE(w, a.Size); err != nil {
		return err
	}
	if err := writeInt64LE(w, a.Mtime); err != nil {
		return err
	}
	if err := writeUint32LE(w, a.Mode); err != nil {
		return err
	}
	switch a.Kind {
	case Symlink:
		if err := writeUint32LE(w, uint32(len(a.LinkTarget))); err != nil {
			return err
		}
		if _, err := io.WriteString(w, a.LinkTarget); err != nil {
			return err
		}
	case Device:
		if err := writeUint32LE(w, a.DevMajor); err != nil {
			return err
		}
		if err := writeUint32LE(w, a.DevMinor); err != nil {
			return err
		}
	}
	return nil
}

// DecodeAttributes reads one Attributes value, inverting EncodeAttributes.
func DecodeAttributes(r io.Reader) (Attributes, error) {
	var a Attributes
	kb, err := readByte(r)
	if err != nil {
		return Attributes{}, wrapShort(err)
	}
	a.Kind = Kind(kb)

	size, err := readInt64LE(r)
	if err != nil {
		return Attributes{}, wrapShort(err)
	}
	a.Size = size

	mtime, err := readInt64LE(r)
	if err != nil {
		return Attributes{}, wrapShort(err)
	}
	a.Mtime = mtime

	mode, err := readUint32LE(r)
	if err != nil {
		return Attributes{}, wrapShort(err)
	}
	a.Mode = mode

	switch a.Kind {
	case Symlink:
		target, err := readBlob(r)
		if err != nil {
			return Attributes{}, wrapShort(err)
		}
		a.LinkTarget = string(target)
	case Device:
		major, err := readUint32LE(r)
		if err != nil {
			return Attributes{}, wrapShort(err)
		}
		minor, err := readUint32LE(r)
		if err != nil {
			return Attributes{}, wrapShort(err)
		}
		a.DevMajor, a.DevMinor = major, minor
	}
	return a, nil
}

func writeInt64LE(w io.Writer, v int64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	_, err := w.Write(buf[:])
	return err
}

func readInt64LE(r io.Reader) (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}
