// Package delta implements the rolling+strong checksum delta engine
// (spec.md §4.2): given a basis file's block-checksum signature and a
// target byte stream, it emits an ordered sequence of Copy/Literal
// operations such that applying them to the basis reproduces the target.
package delta

// OpKind distinguishes the two delta operation shapes. Modeled as a closed
// tagged struct rather than an interface (spec.md §9, "Inheritance: none
// required. Use tagged sum types for messages, ops, entries...").
type OpKind byte

const (
	OpCopy OpKind = iota
	OpLiteral
)

// Op is either a Copy{BasisOffset,Len} referring to a byte range of the
// basis, or a Literal carrying raw target bytes, per spec.md §3.
type Op struct {
	Kind        OpKind
	BasisOffset int64
	Len         int64
	Bytes       []byte
}

func Copy(offset, length int64) Op {
	return Op{Kind: OpCopy, BasisOffset: offset, Len: length}
}

func Literal(b []byte) Op {
	return Op{Kind: OpLiteral, Bytes: b, Len: int64(len(b))}
}
