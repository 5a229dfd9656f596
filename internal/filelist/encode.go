package filelist

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Encoder serializes a sequence of Entry values with path-prefix sharing
// and append-only uid/gid tables (spec.md §4.3).
type Encoder struct {
	w        io.Writer
	prevPath string
	uids     *encodeTable
	gids     *encodeTable
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w, uids: newEncodeTable(), gids: newEncodeTable()}
}

// Encode writes one entry, given the encoder's running prevPath state.
func (e *Encoder) Encode(entry Entry) error {
	common := commonPrefixLen(e.prevPath, entry.Path)
	if common > 255 {
		common = 255
	}
	suffix := entry.Path[common:]
	if len(suffix) > 255 {
		return fmt.Errorf("filelist: path suffix too long (%d bytes) for %q", len(suffix), entry.Path)
	}

	if err := writeByte(e.w, byte(common)); err != nil {
		return err
	}
	if err := writeByte(e.w, byte(len(suffix))); err != nil {
		return err
	}
	if _, err := e.w.Write([]byte(suffix)); err != nil {
		return err
	}

	if err := e.encodeID(e.uids, entry.Uid); err != nil {
		return err
	}
	if err := e.encodeID(e.gids, entry.Gid); err != nil {
		return err
	}

	if entry.HasHardlinkGroup {
		if err := writeByte(e.w, 1); err != nil {
			return err
		}
		if err := e.encodeID(e.gids, entry.HardlinkGroup); err != nil {
			return err
		}
	} else {
		if err := writeByte(e.w, 0); err != nil {
			return err
		}
	}

	if len(entry.Xattrs) > 255 {
		return fmt.Errorf("filelist: too many xattrs (%d) for %q", len(entry.Xattrs), entry.Path)
	}
	if err := writeByte(e.w, byte(len(entry.Xattrs))); err != nil {
		return err
	}
	for _, x := range entry.Xattrs {
		if len(x.Name) > 255 {
			return fmt.Errorf("filelist: xattr name too long (%d bytes)", len(x.Name))
		}
		if err := writeByte(e.w, byte(len(x.Name))); err != nil {
			return err
		}
		if _, err := e.w.Write([]byte(x.Name)); err != nil {
			return err
		}
		if err := writeUint32LE(e.w, uint32(len(x.Value))); err != nil {
			return err
		}
		if _, err := e.w.Write(x.Value); err != nil {
			return err
		}
	}

	if err := writeUint32LE(e.w, uint32(len(entry.ACL))); err != nil {
		return err
	}
	if _, err := e.w.Write(entry.ACL); err != nil {
		return err
	}
	if err := writeUint32LE(e.w, uint32(len(entry.DefaultACL))); err != nil {
		return err
	}
	if _, err := e.w.Write(entry.DefaultACL); err != nil {
		return err
	}

	e.prevPath = entry.Path
	return nil
}

func (e *Encoder) encodeID(table *encodeTable, id uint32) error {
	idx, known := table.indexOrEscape(id)
	if known && idx < idEscape {
		return writeByte(e.w, byte(idx))
	}
	if err := writeByte(e.w, idEscape); err != nil {
		return err
	}
	return writeUint32LE(e.w, id)
}

func commonPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func writeUint32LE(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}
