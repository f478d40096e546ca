// Package header defines the contract every generated PPL header and
// struct type must satisfy, and carries the shared implementation of
// the struct serialization rule (spec §4.1) so generated code doesn't
// reimplement offset bookkeeping per type.
package header

import "github.com/netrack/ppl/bitvec"

// Header is the contract a generated header type implements: a fixed
// on-wire size, a validity flag, and the serialization/dump pair every
// generated header carries per spec.md §4.1.
type Header interface {
	// Size returns the header's constant on-wire size in bits.
	Size() int

	// Valid reports whether the header is currently populated.
	Valid() bool

	// SetValid toggles the header's validity flag. Toggling a header
	// invalid or valid is how control code adds or strips an
	// encapsulation layer without allocating.
	SetValid(bool)

	// ToBitVec serializes the header to exactly Size() bits, MSB0,
	// fields in declaration order.
	ToBitVec() bitvec.BitVec

	// Dump renders a multi-line field: value string for tests and logs.
	Dump() string
}

// Struct is the contract a generated top-level packet struct
// implements: an ordered aggregate of headers (and scalars generated
// code addresses directly) whose wire size tracks which headers are
// currently valid.
type Struct interface {
	// ValidHeaderSize returns the sum, in bits, of Size() over every
	// member header whose Valid() is true.
	ValidHeaderSize() int

	// ToBitVec concatenates the valid members' bits, in declaration
	// order, skipping invalid members entirely. len() == ValidHeaderSize().
	ToBitVec() bitvec.BitVec

	// Dump renders every member's Dump() output.
	Dump() string
}

// Pack implements the authoritative struct serialization rule: for each
// member in declaration order whose Valid() is true, append
// member.ToBitVec() at a running offset and advance the offset by
// member.Size(); invalid members contribute nothing and do not advance
// the offset. Generated structs call this from their ToBitVec method
// instead of repeating the bookkeeping.
func Pack(members ...Header) bitvec.BitVec {
	total := ValidHeaderSize(members...)
	out := bitvec.New(total)

	off := 0
	for _, m := range members {
		if !m.Valid() {
			continue
		}
		out.OrAssign(off, m.ToBitVec())
		off += m.Size()
	}
	return out
}

// ValidHeaderSize sums Size() over the members whose Valid() is true.
func ValidHeaderSize(members ...Header) int {
	var total int
	for _, m := range members {
		if m.Valid() {
			total += m.Size()
		}
	}
	return total
}

// ValidHeaderBytes is ValidHeaderSize expressed in whole bytes, the same
// conversion the pipeline executor applies to a struct's
// ValidHeaderSize to compute how much of the ingress frame the parser
// consumed (spec.md §4.3 step 4). Header sizes are always
// byte-aligned sums by construction, so no rounding is performed.
func ValidHeaderBytes(members ...Header) int {
	return ValidHeaderSize(members...) >> 3
}
