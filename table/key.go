// Package table implements the match-action table engine: key
// matching across the four PPL key kinds (exact, range, ternary, LPM),
// selector matching by deliberate linear scan, and entry ordering
// (longest-prefix-match pruning followed by descending priority).
package table

import (
	"fmt"
	"math/big"
	"net"
)

// KeyKind discriminates the variant held by a Key.
type KeyKind int

const (
	KeyExact KeyKind = iota
	KeyRange
	KeyTernary
	KeyLpm
)

func (k KeyKind) String() string {
	switch k {
	case KeyExact:
		return "exact"
	case KeyRange:
		return "range"
	case KeyTernary:
		return "ternary"
	case KeyLpm:
		return "lpm"
	default:
		return "unknown"
	}
}

// TernaryKind discriminates a Ternary value's variant.
type TernaryKind int

const (
	// TernaryDontCare matches any selector value unconditionally.
	TernaryDontCare TernaryKind = iota
	// TernaryValue matches a selector value for bit-exact equality.
	TernaryValue
	// TernaryMasked matches a selector value where Mask is set, ignoring
	// the selector's bits where Mask is clear.
	TernaryMasked
)

// Ternary is the value held by a Key of kind KeyTernary.
type Ternary struct {
	Kind  TernaryKind
	Value *big.Int
	Mask  *big.Int
}

// DontCare returns a Ternary matching any selector value.
func DontCare() Ternary {
	return Ternary{Kind: TernaryDontCare}
}

// Value returns a Ternary requiring bit-exact equality with v.
func Value(v *big.Int) Ternary {
	return Ternary{Kind: TernaryValue, Value: v}
}

// Masked returns a Ternary requiring (selector & mask) == (v & mask).
func Masked(v, mask *big.Int) Ternary {
	return Ternary{Kind: TernaryMasked, Value: v, Mask: mask}
}

// Prefix is an IP network prefix used by a Key of kind KeyLpm. Addr's
// byte length (4 or 16) fixes the address family the prefix matches
// against; Len is the number of significant leading bits.
type Prefix struct {
	Addr net.IP
	Len  int
}

// Key is one dimension of a TableEntry's match key. Exactly one of the
// variant-specific fields is meaningful, selected by Kind; the rest are
// the zero value. This mirrors a Rust sum type the way Go idiomatically
// encodes one: a kind tag plus the union of payload fields.
type Key struct {
	Kind    KeyKind
	Exact   *big.Int
	RangeLo *big.Int
	RangeHi *big.Int
	Ternary Ternary
	Lpm     Prefix
}

// ExactKey builds an exact-match dimension.
func ExactKey(v *big.Int) Key { return Key{Kind: KeyExact, Exact: v} }

// RangeKey builds an inclusive range-match dimension.
func RangeKey(lo, hi *big.Int) Key { return Key{Kind: KeyRange, RangeLo: lo, RangeHi: hi} }

// TernaryKey builds a ternary-match dimension.
func TernaryKey(t Ternary) Key { return Key{Kind: KeyTernary, Ternary: t} }

// LpmKey builds a longest-prefix-match dimension.
func LpmKey(p Prefix) Key { return Key{Kind: KeyLpm, Lpm: p} }

// String renders the key dimension for Table.Dump.
func (k Key) String() string {
	switch k.Kind {
	case KeyExact:
		return fmt.Sprintf("exact(%s)", k.Exact)
	case KeyRange:
		return fmt.Sprintf("range(%s..=%s)", k.RangeLo, k.RangeHi)
	case KeyTernary:
		switch k.Ternary.Kind {
		case TernaryDontCare:
			return "ternary(*)"
		case TernaryValue:
			return fmt.Sprintf("ternary(%s)", k.Ternary.Value)
		case TernaryMasked:
			return fmt.Sprintf("ternary(%s & %s)", k.Ternary.Value, k.Ternary.Mask)
		}
	case KeyLpm:
		return fmt.Sprintf("lpm(%s/%d)", k.Lpm.Addr, k.Lpm.Len)
	}
	return "invalid-key"
}

// Matches reports whether the selector value x satisfies this key
// dimension.
func (k Key) Matches(x *big.Int) bool {
	switch k.Kind {
	case KeyExact:
		return k.Exact.Cmp(x) == 0
	case KeyRange:
		return x.Cmp(k.RangeLo) >= 0 && x.Cmp(k.RangeHi) <= 0
	case KeyTernary:
		switch k.Ternary.Kind {
		case TernaryDontCare:
			return true
		case TernaryValue:
			return k.Ternary.Value.Cmp(x) == 0
		case TernaryMasked:
			var masked big.Int
			masked.And(x, k.Ternary.Mask)
			var want big.Int
			want.And(k.Ternary.Value, k.Ternary.Mask)
			return masked.Cmp(&want) == 0
		}
	case KeyLpm:
		return lpmMatches(k.Lpm, x)
	}
	return false
}

// lpmMatches reports whether x, interpreted as an address of the same
// byte width as p.Addr, shares p's leading Len bits with p.Addr.
func lpmMatches(p Prefix, x *big.Int) bool {
	width := len(p.Addr)
	if width == 0 {
		return false
	}
	xb := selectorBytes(x, width)
	pb := []byte(p.Addr)

	fullBytes := p.Len / 8
	rem := p.Len % 8
	for i := 0; i < fullBytes; i++ {
		if xb[i] != pb[i] {
			return false
		}
	}
	if rem == 0 {
		return true
	}
	mask := byte(0xff << uint(8-rem))
	return xb[fullBytes]&mask == pb[fullBytes]&mask
}

// selectorBytes renders x as a big-endian byte slice exactly width
// bytes long, truncating or zero-padding on the left as needed.
func selectorBytes(x *big.Int, width int) []byte {
	raw := x.Bytes()
	out := make([]byte, width)
	if len(raw) >= width {
		copy(out, raw[len(raw)-width:])
		return out
	}
	copy(out[width-len(raw):], raw)
	return out
}

// KeySet is the full ordered tuple of key dimensions a TableEntry
// matches against; Selector is the corresponding tuple of selector
// values presented at lookup time. Both must have the same length for
// a given Table, though Table does not itself fix or validate the
// dimension count: that invariant is the caller's to maintain, exactly
// as entries sharing a table must agree on dimension count and kind per
// dimension.
type KeySet []Key

// Selector is the tuple of values a lookup is performed against, one
// per key dimension. Values are unbounded-width integers so a single
// Table can match fields wider than any fixed machine integer (a
// 128-bit IPv6 address, a 48-bit MAC address, and so on).
type Selector []*big.Int

// Matches reports whether every dimension of ks matches the
// corresponding value in sel. len(ks) must equal len(sel).
func (ks KeySet) Matches(sel Selector) bool {
	if len(ks) != len(sel) {
		return false
	}
	for i, k := range ks {
		if !k.Matches(sel[i]) {
			return false
		}
	}
	return true
}

// String renders the key set for Table.Dump.
func (ks KeySet) String() string {
	s := "("
	for i, k := range ks {
		if i > 0 {
			s += ", "
		}
		s += k.String()
	}
	return s + ")"
}
