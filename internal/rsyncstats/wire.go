package rsyncstats

import (
	"encoding/binary"
	"io"
)

// counterOrder fixes the wire order for EncodeStats/DecodeStats and doubles
// as the canonical key set a write-batch record validates against (see
// internal/batch, whose isCounterLine recognizes exactly these keys).
var counterOrder = []string{
	"files_total", "files_transferred", "files_unchanged", "files_deleted",
	"literal_bytes", "matched_bytes", "bytes_transferred",
}

// ToCounterMap flattens a TransferStats snapshot into the key set a batch
// Record validates against (spec.md §4.8).
func (t TransferStats) ToCounterMap() map[string]int64 {
	return map[string]int64{
		"files_total":       t.FilesTotal,
		"files_transferred": t.FilesTransferred,
		"files_unchanged":   t.FilesUnchanged,
		"files_deleted":     t.FilesDeleted,
		"literal_bytes":     t.LiteralBytes,
		"matched_bytes":     t.MatchedBytes,
		"bytes_transferred": t.Written,
	}
}

// EncodeStats serializes a final end-of-session statistics message.
func EncodeStats(w io.Writer, t TransferStats) error {
	m := t.ToCounterMap()
	for _, k := range counterOrder {
		if err := writeInt64(w, m[k]); err != nil {
			return err
		}
	}
	return writeInt64(w, t.Read)
}

// DecodeStats inverts EncodeStats.
func DecodeStats(r io.Reader) (TransferStats, error) {
	vals := make(map[string]int64, len(counterOrder))
	for _, k := range counterOrder {
		v, err := readInt64(r)
		if err != nil {
			return TransferStats{}, err
		}
		vals[k] = v
	}
	read, err := readInt64(r)
	if err != nil {
		return TransferStats{}, err
	}
	return TransferStats{
		Read:             read,
		Written:          vals["bytes_transferred"],
		FilesTotal:       vals["files_total"],
		FilesTransferred: vals["files_transferred"],
		FilesUnchanged:   vals["files_unchanged"],
		FilesDeleted:     vals["files_deleted"],
		LiteralBytes:     vals["literal_bytes"],
		MatchedBytes:     vals["matched_bytes"],
	}, nil
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
