package filelist

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Error kinds returned by Decoder.Decode (spec.md §4.3).
var (
	ErrShortInput = fmt.Errorf("filelist: short input")
)

// BadIDError reports an id-table index beyond the current table size.
type BadIDError struct {
	Table string // "uid" or "gid"
	Index int
}

func (e *BadIDError) Error() string {
	return fmt.Sprintf("filelist: bad %s index %d", e.Table, e.Index)
}

// Decoder deserializes entries written by Encoder, maintaining the same
// prevPath and id-table state.
type Decoder struct {
	r        io.Reader
	prevPath string
	uids     decodeTable
	gids     decodeTable
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// DecodeFrom decodes one entry from r instead of the Decoder's own reader,
// while still carrying prevPath/uid/gid table state across calls. This is
// what a frame-oriented transport uses: each wire frame already holds
// exactly one entry's bytes, so the caller hands the per-frame reader
// straight to DecodeFrom rather than threading every frame's payload
// through one continuous io.Reader.
func (d *Decoder) DecodeFrom(r io.Reader) (Entry, error) {
	d.r = r
	return d.Decode()
}

// Decode reads and returns the next entry's structural fields (path,
// uid/gid, hardlink group, xattrs, ACLs). Kind-specific fields (size,
// mtime, mode, symlink target, device numbers) travel in the separate
// Attributes message (spec.md §4.5) and are merged in by the caller; this
// keeps the codec itself focused on spec.md §4.3's exact wire shape.
func (d *Decoder) Decode() (Entry, error) {
	common, err := readByte(d.r)
	if err != nil {
		return Entry{}, wrapShort(err)
	}
	suffixLen, err := readByte(d.r)
	if err != nil {
		return Entry{}, wrapShort(err)
	}
	if int(common) > len(d.prevPath) {
		return Entry{}, fmt.Errorf("filelist: common prefix length %d exceeds previous path length %d", common, len(d.prevPath))
	}
	suffix := make([]byte, suffixLen)
	if _, err := io.ReadFull(d.r, suffix); err != nil {
		return Entry{}, wrapShort(err)
	}
	path := d.prevPath[:common] + string(suffix)

	uid, err := d.decodeID(&d.uids, "uid")
	if err != nil {
		return Entry{}, err
	}
	gid, err := d.decodeID(&d.gids, "gid")
	if err != nil {
		return Entry{}, err
	}

	hasGroup, err := readByte(d.r)
	if err != nil {
		return Entry{}, wrapShort(err)
	}
	var group uint32
	if hasGroup != 0 {
		group, err = d.decodeID(&d.gids, "gid")
		if err != nil {
			return Entry{}, err
		}
	}

	xattrCount, err := readByte(d.r)
	if err != nil {
		return Entry{}, wrapShort(err)
	}
	xattrs := make([]Xattr, 0, xattrCount)
	for i := 0; i < int(xattrCount); i++ {
		nameLen, err := readByte(d.r)
		if err != nil {
			return Entry{}, wrapShort(err)
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(d.r, name); err != nil {
			return Entry{}, wrapShort(err)
		}
		valueLen, err := readUint32LE(d.r)
		if err != nil {
			return Entry{}, wrapShort(err)
		}
		value := make([]byte, valueLen)
		if _, err := io.ReadFull(d.r, value); err != nil {
			return Entry{}, wrapShort(err)
		}
		xattrs = append(xattrs, Xattr{Name: string(name), Value: value})
	}

	acl, err := readBlob(d.r)
	if err != nil {
		return Entry{}, err
	}
	defaultACL, err := readBlob(d.r)
	if err != nil {
		return Entry{}, err
	}

	d.prevPath = path

	return Entry{
		Path:             path,
		Uid:              uid,
		Gid:              gid,
		HardlinkGroup:    group,
		HasHardlinkGroup: hasGroup != 0,
		Xattrs:           xattrs,
		ACL:              acl,
		DefaultACL:       defaultACL,
	}, nil
}

func (d *Decoder) decodeID(table *decodeTable, which string) (uint32, error) {
	marker, err := readByte(d.r)
	if err != nil {
		return 0, wrapShort(err)
	}
	if marker == idEscape {
		id, err := readUint32LE(d.r)
		if err != nil {
			return 0, wrapShort(err)
		}
		table.append(id)
		return id, nil
	}
	id, ok := table.at(int(marker))
	if !ok {
		return 0, &BadIDError{Table: which, Index: int(marker)}
	}
	return id, nil
}

func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func readUint32LE(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readBlob(r io.Reader) ([]byte, error) {
	n, err := readUint32LE(r)
	if err != nil {
		return nil, wrapShort(err)
	}
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, wrapShort(err)
	}
	return buf, nil
}

func wrapShort(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return ErrShortInput
	}
	return err
}
