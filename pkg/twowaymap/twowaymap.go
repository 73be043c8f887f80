// Package twowaymap implements a bidirectional multimap used by the lookup
// subsystem to hold both a forward index (group-by key -> row ids) and its
// reverse (row id -> keys it's currently indexed under, needed so a row
// that changes its key can find and drop its old index entry). Grounded on
// original_source/sandbox/grist/twowaymap.py, translated from Python's
// dict-of-containers design into a generic Go type.
package twowaymap

import "fmt"

// BinKind selects how many values a single key maps to on one side of the
// map, mirroring twowaymap.py's left=/right= container arguments.
type BinKind int

const (
	// BinSet allows many values per key, unordered, deduplicated.
	BinSet BinKind = iota
	// BinList allows many values per key, insertion-ordered, deduplicated.
	BinList
	// BinSingle allows one value per key; a new insert overwrites the old one.
	BinSingle
	// BinStrict allows one value per key; a conflicting insert is rejected.
	BinStrict
)

// ErrOneToOneViolation is returned by Insert when a BinStrict side already
// holds a different value for the key.
type ErrOneToOneViolation struct {
	Key interface{}
}

func (e *ErrOneToOneViolation) Error() string {
	return fmt.Sprintf("twowaymap: one-to-one map violation for key %v", e.Key)
}

// bin holds the value(s) associated with one key, shaped by BinKind.
type bin[T comparable] struct {
	kind  BinKind
	order []T          // used by BinSet/BinList to preserve insertion order
	has   map[T]bool   // used by BinSet/BinList for O(1) membership
	one   *T           // used by BinSingle/BinStrict
}

func newBin[T comparable](kind BinKind) *bin[T] {
	b := &bin[T]{kind: kind}
	if kind == BinSet || kind == BinList {
		b.has = make(map[T]bool)
	}
	return b
}

// add returns (previousValue, replaced) for BinSingle/BinStrict, or the
// zero value and false for BinSet/BinList (which never replace).
func (b *bin[T]) add(v T) (prev T, replaced bool, err error) {
	switch b.kind {
	case BinSet, BinList:
		if !b.has[v] {
			b.has[v] = true
			b.order = append(b.order, v)
		}
		return prev, false, nil
	case BinSingle:
		if b.one == nil {
			b.one = &v
			return prev, false, nil
		}
		old := *b.one
		b.one = &v
		if old == v {
			return prev, false, nil
		}
		return old, true, nil
	case BinStrict:
		if b.one == nil {
			b.one = &v
			return prev, false, nil
		}
		if *b.one == v {
			return prev, false, nil
		}
		return prev, false, &ErrOneToOneViolation{Key: v}
	}
	return prev, false, nil
}

func (b *bin[T]) remove(v T) {
	switch b.kind {
	case BinSet, BinList:
		if b.has[v] {
			delete(b.has, v)
			for i, x := range b.order {
				if x == v {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		}
	case BinSingle, BinStrict:
		if b.one != nil && *b.one == v {
			b.one = nil
		}
	}
}

func (b *bin[T]) values() []T {
	switch b.kind {
	case BinSet, BinList:
		out := make([]T, len(b.order))
		copy(out, b.order)
		return out
	default:
		if b.one == nil {
			return nil
		}
		return []T{*b.one}
	}
}

func (b *bin[T]) empty() bool {
	switch b.kind {
	case BinSet, BinList:
		return len(b.order) == 0
	default:
		return b.one == nil
	}
}

// TwoWayMap maps left values to right values and back, with per-side
// cardinality determined by leftKind/rightKind.
type TwoWayMap[L comparable, R comparable] struct {
	leftKind  BinKind
	rightKind BinKind
	fwd       map[L]*bin[R]
	bwd       map[R]*bin[L]
}

// New constructs a TwoWayMap. rightKind governs how many rights a left value
// can map to (what LookupLeft returns); leftKind governs the reverse.
func New[L comparable, R comparable](leftKind, rightKind BinKind) *TwoWayMap[L, R] {
	return &TwoWayMap[L, R]{
		leftKind:  leftKind,
		rightKind: rightKind,
		fwd:       make(map[L]*bin[R]),
		bwd:       make(map[R]*bin[L]),
	}
}

// LookupLeft returns the right-side value(s) currently mapped from left.
func (m *TwoWayMap[L, R]) LookupLeft(left L) []R {
	b, ok := m.fwd[left]
	if !ok {
		return nil
	}
	return b.values()
}

// LookupRight returns the left-side value(s) currently mapped from right.
func (m *TwoWayMap[L, R]) LookupRight(right R) []L {
	b, ok := m.bwd[right]
	if !ok {
		return nil
	}
	return b.values()
}

// CountLeft returns the number of distinct left keys with at least one
// mapped value.
func (m *TwoWayMap[L, R]) CountLeft() int { return len(m.fwd) }

// CountRight returns the number of distinct right keys with at least one
// mapped value.
func (m *TwoWayMap[L, R]) CountRight() int { return len(m.bwd) }

// Insert adds the (left, right) pair, keeping both directions consistent.
// If a BinSingle bin on either side already held a different value, that
// old pairing is also removed from the other direction's map so the two
// sides never disagree (mirrors twowaymap.py's overwrite bookkeeping). A
// BinStrict bin that already holds a different value rejects the insert
// with ErrOneToOneViolation and the map is left as it was: a forward-side
// add already made is undone and a bin created for this call is dropped.
func (m *TwoWayMap[L, R]) Insert(left L, right R) error {
	fwdBin, ok := m.fwd[left]
	if !ok {
		fwdBin = newBin[R](m.rightKind)
		m.fwd[left] = fwdBin
	}
	bwdBin, ok := m.bwd[right]
	if !ok {
		bwdBin = newBin[L](m.leftKind)
		m.bwd[right] = bwdBin
	}

	prevRight, rightReplaced, err := fwdBin.add(right)
	if err != nil {
		if bwdBin.empty() {
			delete(m.bwd, right)
		}
		return err
	}
	prevLeft, leftReplaced, err := bwdBin.add(left)
	if err != nil {
		// roll back the forward-side add
		fwdBin.remove(right)
		if rightReplaced {
			fwdBin.add(prevRight)
		}
		if fwdBin.empty() {
			delete(m.fwd, left)
		}
		return err
	}

	if rightReplaced {
		if b, ok := m.bwd[prevRight]; ok {
			b.remove(left)
			if b.empty() {
				delete(m.bwd, prevRight)
			}
		}
	}
	if leftReplaced {
		if b, ok := m.fwd[prevLeft]; ok {
			b.remove(right)
			if b.empty() {
				delete(m.fwd, prevLeft)
			}
		}
	}
	return nil
}

// Remove deletes the (left, right) pair if present.
func (m *TwoWayMap[L, R]) Remove(left L, right R) {
	if b, ok := m.fwd[left]; ok {
		b.remove(right)
		if b.empty() {
			delete(m.fwd, left)
		}
	}
	if b, ok := m.bwd[right]; ok {
		b.remove(left)
		if b.empty() {
			delete(m.bwd, right)
		}
	}
}

// RemoveLeft deletes every pairing for left.
func (m *TwoWayMap[L, R]) RemoveLeft(left L) {
	b, ok := m.fwd[left]
	if !ok {
		return
	}
	rights := b.values()
	delete(m.fwd, left)
	for _, right := range rights {
		if rb, ok := m.bwd[right]; ok {
			rb.remove(left)
			if rb.empty() {
				delete(m.bwd, right)
			}
		}
	}
}

// RemoveRight deletes every pairing for right.
func (m *TwoWayMap[L, R]) RemoveRight(right R) {
	b, ok := m.bwd[right]
	if !ok {
		return
	}
	lefts := b.values()
	delete(m.bwd, right)
	for _, left := range lefts {
		if lb, ok := m.fwd[left]; ok {
			lb.remove(right)
			if lb.empty() {
				delete(m.fwd, left)
			}
		}
	}
}

// Clear empties the map.
func (m *TwoWayMap[L, R]) Clear() {
	m.fwd = make(map[L]*bin[R])
	m.bwd = make(map[R]*bin[L])
}
