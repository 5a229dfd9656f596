package delta

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-rsync/rsync/internal/rsyncchecksum"
)

// EncodeSignature serializes sig as a single block (spec.md §4.5 receiver
// step 3: "send the list"), read back whole by DecodeSignature.
func EncodeSignature(w io.Writer, sig Signature) error {
	if err := writeInt32(w, sig.BlockLen); err != nil {
		return err
	}
	if err := writeInt32(w, sig.FinalLen); err != nil {
		return err
	}
	if err := writeByte(w, byte(sig.Alg)); err != nil {
		return err
	}
	if err := writeInt32(w, int32(sig.Seed)); err != nil {
		return err
	}
	if err := writeInt32(w, int32(sig.TruncLen)); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(sig.Blocks))); err != nil {
		return err
	}
	for _, b := range sig.Blocks {
		if err := writeInt32(w, b.Index); err != nil {
			return err
		}
		if err := writeUint32(w, b.Weak); err != nil {
			return err
		}
		if err := writeByte(w, byte(len(b.Strong))); err != nil {
			return err
		}
		if _, err := w.Write(b.Strong); err != nil {
			return err
		}
	}
	return nil
}

// DecodeSignature inverts EncodeSignature.
func DecodeSignature(r io.Reader) (Signature, error) {
	var sig Signature
	var err error
	if sig.BlockLen, err = readInt32(r); err != nil {
		return Signature{}, err
	}
	if sig.FinalLen, err = readInt32(r); err != nil {
		return Signature{}, err
	}
	alg, err := readByte(r)
	if err != nil {
		return Signature{}, err
	}
	sig.Alg = rsyncchecksum.Algorithm(alg)
	seed, err := readInt32(r)
	if err != nil {
		return Signature{}, err
	}
	sig.Seed = rsyncchecksum.Seed(seed)
	trunc, err := readInt32(r)
	if err != nil {
		return Signature{}, err
	}
	sig.TruncLen = int(trunc)

	n, err := readUint32(r)
	if err != nil {
		return Signature{}, err
	}
	sig.Blocks = make([]BlockChecksum, n)
	for i := range sig.Blocks {
		idx, err := readInt32(r)
		if err != nil {
			return Signature{}, err
		}
		weak, err := readUint32(r)
		if err != nil {
			return Signature{}, err
		}
		strongLen, err := readByte(r)
		if err != nil {
			return Signature{}, err
		}
		strong := make([]byte, strongLen)
		if _, err := io.ReadFull(r, strong); err != nil {
			return Signature{}, err
		}
		sig.Blocks[i] = BlockChecksum{Index: idx, Weak: weak, Strong: strong}
	}
	return sig, nil
}

// EncodeOp serializes one Op (spec.md §4.5 step 5: the sender streams ops
// one at a time, each boxed in its own wire frame by the caller).
func EncodeOp(w io.Writer, op Op) error {
	if err := writeByte(w, byte(op.Kind)); err != nil {
		return err
	}
	switch op.Kind {
	case OpCopy:
		if err := writeInt64(w, op.BasisOffset); err != nil {
			return err
		}
		return writeInt64(w, op.Len)
	case OpLiteral:
		if err := writeUint32(w, uint32(len(op.Bytes))); err != nil {
			return err
		}
		_, err := w.Write(op.Bytes)
		return err
	default:
		return fmt.Errorf("delta: unknown op kind %d", op.Kind)
	}
}

// DecodeOp inverts EncodeOp.
func DecodeOp(r io.Reader) (Op, error) {
	kind, err := readByte(r)
	if err != nil {
		return Op{}, err
	}
	switch OpKind(kind) {
	case OpCopy:
		off, err := readInt64(r)
		if err != nil {
			return Op{}, err
		}
		length, err := readInt64(r)
		if err != nil {
			return Op{}, err
		}
		return Copy(off, length), nil
	case OpLiteral:
		n, err := readUint32(r)
		if err != nil {
			return Op{}, err
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(r, b); err != nil {
			return Op{}, err
		}
		return Literal(b), nil
	default:
		return Op{}, fmt.Errorf("delta: unknown op kind %d on wire", kind)
	}
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	_, err := io.ReadFull(r, b[:])
	return b[0], err
}

func writeInt32(w io.Writer, v int32) error { return writeUint32(w, uint32(v)) }

func readInt32(r io.Reader) (int32, error) {
	v, err := readUint32(r)
	return int32(v), err
}

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func writeInt64(w io.Writer, v int64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	_, err := w.Write(buf[:])
	return err
}

func readInt64(r io.Reader) (int64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}
