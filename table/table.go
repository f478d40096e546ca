package table

import (
	"errors"
	"fmt"
	"sort"
)

// ErrDuplicateKey is returned by Table.Insert when an entry with an
// identical key set already exists in the table.
var ErrDuplicateKey = errors.New("table: duplicate key")

// TableEntry is one row of a match-action table: an ordered key set to
// match a selector against, the action to invoke on a match, a
// priority used to break ties between multiple matching entries, and a
// name used for diagnostics and Dump output.
type TableEntry[A any] struct {
	Key      KeySet
	Action   A
	Priority int
	Name     string
}

func (e TableEntry[A]) String() string {
	return fmt.Sprintf("%s%s priority=%d", e.Name, e.Key, e.Priority)
}

// keyEqual reports whether two key sets are structurally identical,
// the sense in which Insert rejects duplicates: entries are considered
// equal by key alone, not by action, priority, or name, matching the
// original table's has/equality contract.
func keyEqual(a, b KeySet) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ka, kb := a[i], b[i]
		if ka.Kind != kb.Kind {
			return false
		}
		switch ka.Kind {
		case KeyExact:
			if ka.Exact.Cmp(kb.Exact) != 0 {
				return false
			}
		case KeyRange:
			if ka.RangeLo.Cmp(kb.RangeLo) != 0 || ka.RangeHi.Cmp(kb.RangeHi) != 0 {
				return false
			}
		case KeyTernary:
			if ka.Ternary.Kind != kb.Ternary.Kind {
				return false
			}
			switch ka.Ternary.Kind {
			case TernaryValue:
				if ka.Ternary.Value.Cmp(kb.Ternary.Value) != 0 {
					return false
				}
			case TernaryMasked:
				if ka.Ternary.Value.Cmp(kb.Ternary.Value) != 0 || ka.Ternary.Mask.Cmp(kb.Ternary.Mask) != 0 {
					return false
				}
			}
		case KeyLpm:
			if ka.Lpm.Len != kb.Lpm.Len || ka.Lpm.Addr.String() != kb.Lpm.Addr.String() {
				return false
			}
		}
	}
	return true
}

// Table is a match-action table: an unordered set of entries searched
// by linear scan on every lookup. This is a deliberate design choice,
// not an oversight — see MatchSelector.
type Table[A any] struct {
	entries []TableEntry[A]
}

// New returns an empty table.
func New[A any]() *Table[A] {
	return &Table[A]{}
}

// Insert adds e to the table. It returns ErrDuplicateKey if an entry
// with an identical key set is already present.
func (t *Table[A]) Insert(e TableEntry[A]) error {
	for _, existing := range t.entries {
		if keyEqual(existing.Key, e.Key) {
			return fmt.Errorf("%w: %s", ErrDuplicateKey, e.Key)
		}
	}
	t.entries = append(t.entries, e)
	return nil
}

// Remove deletes the entry with the given key set, if present. It
// reports whether an entry was removed.
func (t *Table[A]) Remove(key KeySet) bool {
	for i, e := range t.entries {
		if keyEqual(e.Key, key) {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveByName deletes the first entry whose Name equals name. It
// reports whether an entry was removed. Names aren't required to be
// unique at Insert time, so this only ever removes one entry; the
// control-plane API uses it for delete requests, where entries are
// addressed by name rather than by their full key set.
func (t *Table[A]) RemoveByName(name string) bool {
	for i, e := range t.entries {
		if e.Name == name {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of entries currently in the table.
func (t *Table[A]) Len() int {
	return len(t.entries)
}

// MatchSelector performs a linear scan of every entry against sel,
// collects every entry whose key set matches, and returns them all in
// ranked order via orderEntries: if any candidate has an LPM
// dimension, candidates are first pruned to the maximum prefix length
// at the first LPM dimension found, then the remainder (or, if no LPM
// dimension exists, all candidates) are sorted by descending priority.
// Callers that only care about the winning entry use index 0 of the
// returned slice; the full ordering is part of the contract since two
// entries can both match the same selector (e.g. an exact-value
// dimension alongside a lower-priority wildcard on that same
// dimension) and callers may need to see every match, not just the
// first.
//
// A full linear scan on every lookup is a deliberate simplicity
// tradeoff: a production dataplane table would use per-field index
// structures (tries for LPM, hash maps for exact) to avoid scanning
// every entry, but this engine favors one matching codepath that is
// obviously correct over one that is fast, and the table sizes PPL
// programs build in practice don't make the difference observable.
func (t *Table[A]) MatchSelector(sel Selector) []TableEntry[A] {
	var candidates []TableEntry[A]
	for _, e := range t.entries {
		if e.Key.Matches(sel) {
			candidates = append(candidates, e)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	return orderEntries(candidates)
}

// Dump renders every entry in the table, one per line, for
// diagnostics and `pplrun table dump`.
func (t *Table[A]) Dump() string {
	s := ""
	for _, e := range t.entries {
		s += e.String() + "\n"
	}
	return s
}

// Entries returns a snapshot of the table's current entries, used by
// the control-plane API to list table contents.
func (t *Table[A]) Entries() []TableEntry[A] {
	out := make([]TableEntry[A], len(t.entries))
	copy(out, t.entries)
	return out
}

// orderEntries implements the table's tie-break rule. It never
// mutates its input.
func orderEntries[A any](entries []TableEntry[A]) []TableEntry[A] {
	if dim, ok := firstLpmDimension(entries); ok {
		entries = pruneByLpmLength(entries, dim)
	}
	return sortByPriorityDesc(entries)
}

// firstLpmDimension scans entries in order and returns the index of
// the first key dimension, on the first entry that has one, whose kind
// is KeyLpm. All entries sharing a table are expected to agree on
// dimension count and per-dimension kind, so the first entry examined
// fixes the dimension for the whole set.
func firstLpmDimension[A any](entries []TableEntry[A]) (int, bool) {
	for _, e := range entries {
		for i, k := range e.Key {
			if k.Kind == KeyLpm {
				return i, true
			}
		}
	}
	return 0, false
}

// pruneByLpmLength keeps only the entries whose LPM key at dimension
// dim has the maximum prefix length among all entries in the slice,
// implementing the longest-prefix-match rule: a matching /24 entry
// outranks a matching /16 entry regardless of declared priority.
func pruneByLpmLength[A any](entries []TableEntry[A], dim int) []TableEntry[A] {
	maxLen := -1
	for _, e := range entries {
		if l := e.Key[dim].Lpm.Len; l > maxLen {
			maxLen = l
		}
	}
	var out []TableEntry[A]
	for _, e := range entries {
		if e.Key[dim].Lpm.Len == maxLen {
			out = append(out, e)
		}
	}
	return out
}

// sortByPriorityDesc returns entries sorted by descending Priority,
// the tie-break among candidates that survive LPM pruning (or the
// whole candidate set, when no LPM dimension is present).
func sortByPriorityDesc[A any](entries []TableEntry[A]) []TableEntry[A] {
	out := make([]TableEntry[A], len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}
