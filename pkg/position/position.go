// Package position implements fractional position labeling for ordered row
// lists (spec.md §4.12): inserting a row normally picks the midpoint of its
// neighbors' position keys, with periodic rebalancing when floats get too
// close together to split further. Adapted from
// original_source/sandbox/grist/relabeling.py's amortized list-labeling
// algorithm (itself based on Bender et al.'s scapegoat-free list-labeling
// scheme), reworked onto a single sorted Go slice instead of Python's
// sortedcontainers SortedList/SortedListWithKey (none of the example repos
// pull in a sorted-container library, so this stays on a plain slice plus
// sort.Search, which is the teacher's own idiom for ordered data).
package position

import (
	"math"
	"sort"
)

// NextFloat returns the next representable float64 after x — used to place
// a new key strictly after an existing one. Ported bit-for-bit from
// relabeling.py's nextfloat (struct.pack/unpack('<q'/'<d') becomes
// math.Float64bits/Float64frombits here).
func NextFloat(x float64) float64 {
	n := int64(math.Float64bits(x))
	if n >= 0 {
		n++
	} else {
		n--
	}
	return math.Float64frombits(uint64(n))
}

// PrevFloat returns the previous representable float64 before x.
func PrevFloat(x float64) float64 {
	n := int64(math.Float64bits(x))
	if n >= 0 {
		n--
	} else {
		n++
	}
	return math.Float64frombits(uint64(n))
}

// RangeAroundFloat returns a half-open interval [min, max) containing 2^i
// representable floats, with x among them — used to widen the search for a
// sparse-enough interval to rebalance into. Ported from
// relabeling.py's range_around_float.
func RangeAroundFloat(x float64, i int) (lo, hi float64) {
	m, e := math.Frexp(x)
	mf := math.Floor(math.Ldexp(m, 53-i))
	exp := e + i - 53
	return math.Ldexp(mf, exp), math.Ldexp(mf+1, exp)
}

// GetRange returns count floats, equally spaced, strictly greater than
// start and strictly less than end.
func GetRange(start, end float64, count int) []float64 {
	step := (end - start) / float64(count+1)
	limit := PrevFloat(end)
	out := make([]float64, count)
	for k := 1; k <= count; k++ {
		v := start + step*float64(k)
		if v > limit {
			v = limit
		}
		out[k-1] = v
	}
	return out
}

// IsValidRange reports whether begin, every value in keys, and end are all
// pairwise distinct from their neighbor in sorted order (keys must already
// be sorted ascending and fall within (begin, end)).
func IsValidRange(begin float64, keys []float64, end float64) bool {
	prev := begin
	for _, k := range keys {
		if k == prev {
			return false
		}
		prev = k
	}
	return prev != end
}

// item is one entry in a Labeler's working set: either an original row
// (OrigIndex valid) or a new insertion produced during this PrepareInserts
// call (NewOrdinal valid).
type item struct {
	key        float64
	isNew      bool
	origIndex  int
	newOrdinal int
}

// Adjustment says that the row originally at Index in the slice passed to
// NewLabeler must be given NewKey to make room for an insertion. Applying
// adjustments before insertions (as spec.md §4.12 requires) avoids any
// transient reordering.
type Adjustment struct {
	Index  int
	NewKey float64
}

// Labeler prepares position-key adjustments and new keys for a batch of
// insertions against an existing sorted, distinct key list.
type Labeler struct {
	items []item // kept sorted by key at all times
}

// NewLabeler constructs a Labeler over existing, which must already be
// sorted ascending and contain no duplicates.
func NewLabeler(existing []float64) *Labeler {
	items := make([]item, len(existing))
	for i, k := range existing {
		items[i] = item{key: k, origIndex: i}
	}
	return &Labeler{items: items}
}

func (l *Labeler) keyAt(i int) float64 { return l.items[i].key }

// bisectLeft returns the index of the first item with key >= target.
func (l *Labeler) bisectLeft(target float64) int {
	return sort.Search(len(l.items), func(i int) bool { return l.items[i].key >= target })
}

func (l *Labeler) countRange(begin, end float64) int {
	return l.bisectLeft(end) - l.bisectLeft(begin)
}

// insertSorted inserts it at its correct sorted position.
func (l *Labeler) insertSorted(it item) {
	pos := l.bisectLeft(it.key)
	l.items = append(l.items, item{})
	copy(l.items[pos+1:], l.items[pos:])
	l.items[pos] = it
}

// redistribute evenly re-keys every item in [begin, end) across that
// interval, preserving relative order. Ported from relabeling.py's
// _do_adjust_range, collapsed onto the single working slice.
func (l *Labeler) redistribute(begin, end float64) {
	lo := l.bisectLeft(begin)
	hi := l.bisectLeft(end)
	count := hi - lo
	if count <= 0 {
		return
	}
	newKeys := GetRange(begin, end, count)
	for i := 0; i < count; i++ {
		l.items[lo+i].key = newKeys[i]
	}
}

// findSparseEnoughRange widens the interval around begin/end by doubling
// until the occupied-fraction drops below a threshold, per [Bender]'s
// variable-T approach. Ported from relabeling.py's _find_sparse_enough_range.
func (l *Labeler) findSparseEnoughRange(begin, end float64) (float64, float64) {
	for _, frac := range []float64{1.14, 1.3} {
		thresh := 1.0
		for i := 0; i < 64; i++ {
			rbegin, rend := RangeAroundFloat(begin, i)
			if end <= rend && float64(l.countRange(rbegin, rend)) < thresh {
				return rbegin, rend
			}
			thresh *= frac
		}
	}
	// Should not happen for any finite, well-formed key set; fall back to a
	// wide renumbering of everything.
	return math.Inf(-1), math.Inf(1)
}

// prepInsertAt places count new keys immediately before working-set
// position workIndex (0 if at the very start, len(l.items) if at the end),
// rebalancing first if there isn't room. Ported from relabeling.py's
// prep_inserts_at_index.
func (l *Labeler) prepInsertAt(workIndex, count int, ordinalBase int) {
	var begin, end float64
	if workIndex > 0 {
		begin = l.keyAt(workIndex - 1)
	} else {
		begin = 0.0
	}
	if workIndex < len(l.items) {
		end = l.keyAt(workIndex)
	} else {
		end = begin + float64(count) + 1
	}

	if begin < 0 || end <= 0 || math.IsInf(math.Max(begin, end), 0) {
		// Degenerate/invalid existing positions: renumber everything 1..n,
		// giving these insertions the `count` integers at workIndex.
		for i := range l.items {
			k := i + 1
			if i >= workIndex {
				k += count
			}
			l.items[i].key = float64(k)
		}
		for i := 0; i < count; i++ {
			l.insertSorted(item{key: float64(workIndex + 1 + i), isNew: true, newOrdinal: ordinalBase + i})
		}
		return
	}

	candidates := GetRange(begin, end, count)
	if !IsValidRange(begin, candidates, end) {
		minKey, maxKey := l.findSparseEnoughRange(begin, end)
		l.redistribute(minKey, maxKey)
		if workIndex > 0 {
			begin = l.keyAt(workIndex - 1)
		}
		candidates = GetRange(begin, l.boundedEnd(workIndex, end), count)
	}
	for i, k := range candidates {
		l.insertSorted(item{key: k, isNew: true, newOrdinal: ordinalBase + i})
	}
}

// boundedEnd re-reads the current end-of-interval key after a redistribute
// may have moved it (workIndex itself is stable across redistribute since
// redistribute never changes item count, only keys).
func (l *Labeler) boundedEnd(workIndex int, fallback float64) float64 {
	if workIndex < len(l.items) {
		return l.keyAt(workIndex)
	}
	return fallback
}

// PrepareInserts computes adjustments to existing rows and new keys for
// queryKeys, such that inserting at len(existing) positions found by
// bisecting existing against each query key yields a consistent, valid
// ordering. Returned new keys are in the same order as queryKeys.
func (l *Labeler) PrepareInserts(queryKeys []float64) ([]Adjustment, []float64) {
	type indexed struct {
		key      float64
		queryPos int
	}
	sorted := make([]indexed, len(queryKeys))
	for i, k := range queryKeys {
		sorted[i] = indexed{key: k, queryPos: i}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].key < sorted[j].key })

	// Group by the bisect position against the ORIGINAL existing items
	// (origIndex-tagged entries only), matching relabeling.py's
	// _group_insertions, which groups against the list as it was before any
	// insertion in this call.
	origKeys := make([]float64, 0, len(l.items))
	for _, it := range l.items {
		if !it.isNew {
			origKeys = append(origKeys, it.key)
		}
	}
	origBisect := func(k float64) int {
		return sort.Search(len(origKeys), func(i int) bool { return origKeys[i] >= k })
	}

	type group struct {
		origIndex int
		queryPos  []int
	}
	var groups []group
	for _, s := range sorted {
		idx := origBisect(s.key)
		if len(groups) > 0 && groups[len(groups)-1].origIndex == idx {
			groups[len(groups)-1].queryPos = append(groups[len(groups)-1].queryPos, s.queryPos)
		} else {
			groups = append(groups, group{origIndex: idx, queryPos: []int{s.queryPos}})
		}
	}

	newKeys := make([]float64, len(queryKeys))
	runningInserted := 0
	ordinal := 0
	for _, g := range groups {
		workIndex := g.origIndex + runningInserted
		count := len(g.queryPos)
		l.prepInsertAt(workIndex, count, ordinal)
		// Collect the keys just placed, in ascending order, and assign them
		// back to the original query positions (still ascending order, since
		// queryPos within a group was appended in ascending-key order).
		placed := l.collectNewByOrdinalRange(ordinal, ordinal+count)
		for i, qp := range g.queryPos {
			newKeys[qp] = placed[i]
		}
		ordinal += count
		runningInserted += count
	}

	adjustments := make([]Adjustment, 0)
	for _, it := range l.items {
		if !it.isNew && it.key != origKeys[it.origIndex] {
			adjustments = append(adjustments, Adjustment{Index: it.origIndex, NewKey: it.key})
		}
	}
	return adjustments, newKeys
}

func (l *Labeler) collectNewByOrdinalRange(lo, hi int) []float64 {
	out := make([]float64, hi-lo)
	for _, it := range l.items {
		if it.isNew && it.newOrdinal >= lo && it.newOrdinal < hi {
			out[it.newOrdinal-lo] = it.key
		}
	}
	return out
}
