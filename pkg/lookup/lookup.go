// Package lookup implements the lookup index subsystem from spec.md §4.2:
// per-index forward/reverse maps keyed by a tuple of column values, a
// contains-lookup variant for list-valued key columns, and an ordered
// variant with a sort_by/order_by comparator for range queries.
package lookup

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/kasuganosora/gridengine/pkg/cellvalue"
	"github.com/kasuganosora/gridengine/pkg/twowaymap"
)

// Key is the normalized tuple of key-column values for one lookup query or
// one indexed row, encoded as a comparable string so it can key a Go map
// (group-by values are themselves already hashable scalars/strings in this
// domain — Text/Numeric/Int/Bool/Ref/Date — so this never needs to hash an
// arbitrary Go value).
type Key string

// MakeKey builds a Key from ordered column values using a delimiter that
// cannot appear in any individual encoded field.
func MakeKey(values ...interface{}) Key {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return Key(strings.Join(parts, "\x1f"))
}

// Index is a single lookup index over one table, keyed by one or more
// column ids. It maintains the forward key->rows map and the reverse
// row->key map needed for O(1) removal on write (§4.2).
type Index struct {
	TableID string
	KeyCols []string

	fwd *twowaymap.TwoWayMap[Key, int64]
}

// NewIndex constructs an empty index over the given key columns.
func NewIndex(tableID string, keyCols []string) *Index {
	return &Index{
		TableID: tableID,
		KeyCols: keyCols,
		fwd:     twowaymap.New[Key, int64](twowaymap.BinSet, twowaymap.BinSet),
	}
}

// RowsForKey implements relation.Index: the rows currently indexed under
// key (key is expected to be a Key, built via MakeKey by the caller).
func (idx *Index) RowsForKey(key interface{}) []int64 {
	k, ok := key.(Key)
	if !ok {
		return nil
	}
	return idx.fwd.LookupLeft(k)
}

// Rows returns the rows currently indexed under key.
func (idx *Index) Rows(key Key) []int64 {
	return idx.fwd.LookupLeft(key)
}

// KeysForRow returns the key(s) a row is currently indexed under (normally
// exactly one, since a row has one value per key column at a time).
func (idx *Index) KeysForRow(rowID int64) []Key {
	return idx.fwd.LookupRight(rowID)
}

// Update performs the incremental maintenance described in §4.2: remove the
// row's old key entry (if any) and insert it under newKey, returning the old
// key so the caller can mark both old and new keys' relations dirty.
func (idx *Index) Update(rowID int64, newKey Key) (oldKey Key, hadOld bool) {
	olds := idx.fwd.LookupRight(rowID)
	if len(olds) > 0 {
		oldKey, hadOld = olds[0], true
		idx.fwd.Remove(oldKey, rowID)
	}
	_ = idx.fwd.Insert(newKey, rowID) // BinSet never errors
	return oldKey, hadOld
}

// Insert adds a freshly-added row under key (§4.2: "when a row is added,
// only the new key is dirtied").
func (idx *Index) Insert(rowID int64, key Key) {
	_ = idx.fwd.Insert(key, rowID)
}

// Remove drops a removed row's entry entirely (§4.2: "on remove, only the
// old [key is dirtied]").
func (idx *Index) Remove(rowID int64) (oldKey Key, hadOld bool) {
	olds := idx.fwd.LookupRight(rowID)
	if len(olds) == 0 {
		return "", false
	}
	oldKey = olds[0]
	idx.fwd.Remove(oldKey, rowID)
	return oldKey, true
}

// ContainsIndex is the "contains" lookup variant (§4.2): the key column
// holds a list (ChoiceList/RefList), and queries match rows where the query
// element is a member of that row's list. Stored as (element, row) pairs.
type ContainsIndex struct {
	TableID string
	KeyCol  string

	fwd            *twowaymap.TwoWayMap[Key, int64]
	matchEmptyList bool // rows with an empty list also match queries for the zero value
}

// NewContainsIndex constructs an empty contains-lookup index.
func NewContainsIndex(tableID, keyCol string, matchEmptyList bool) *ContainsIndex {
	return &ContainsIndex{
		TableID:        tableID,
		KeyCol:         keyCol,
		fwd:            twowaymap.New[Key, int64](twowaymap.BinSet, twowaymap.BinSet),
		matchEmptyList: matchEmptyList,
	}
}

// RowsForKey implements relation.Index.
func (idx *ContainsIndex) RowsForKey(key interface{}) []int64 {
	k, ok := key.(Key)
	if !ok {
		return nil
	}
	return idx.fwd.LookupLeft(k)
}

// KeysForRow returns the keys rowID is currently indexed under: one per
// list element it holds (or the empty-list sentinel key if matchEmptyList
// is set and the list is empty, or none at all otherwise).
func (idx *ContainsIndex) KeysForRow(rowID int64) []Key {
	return idx.fwd.LookupRight(rowID)
}

// Update replaces row's indexed elements with those in newElems.
func (idx *ContainsIndex) Update(rowID int64, newElems []interface{}) {
	idx.fwd.RemoveRight(rowID)
	if len(newElems) == 0 {
		if idx.matchEmptyList {
			_ = idx.fwd.Insert(MakeKey(nil), rowID)
		}
		return
	}
	for _, e := range newElems {
		_ = idx.fwd.Insert(MakeKey(e), rowID)
	}
}

// Remove drops row's entries entirely.
func (idx *ContainsIndex) Remove(rowID int64) {
	idx.fwd.RemoveRight(rowID)
}

// OrderSpec describes the comparator for an ordered lookup result, built
// from sort_by (legacy single field) or order_by (tuple, each optionally
// "-"-prefixed for descending), per §4.2's normalization rules.
type OrderSpec struct {
	Fields []OrderField
}

// OrderField is one column in an order spec.
type OrderField struct {
	ColID      string
	Descending bool
}

// NormalizeOrderBy builds an OrderSpec from order_by column specs, applying
// §4.2's rules: drop trailing fields starting with "id", append
// "manualSort" as a final tiebreaker if not already present and the spec is
// non-empty, and collapse to the empty tuple ("sort by row id") when no
// fields remain.
func NormalizeOrderBy(orderBy []string) OrderSpec {
	fields := make([]OrderField, 0, len(orderBy))
	for _, raw := range orderBy {
		desc := strings.HasPrefix(raw, "-")
		col := strings.TrimPrefix(raw, "-")
		fields = append(fields, OrderField{ColID: col, Descending: desc})
	}
	for len(fields) > 0 && strings.HasPrefix(fields[len(fields)-1].ColID, "id") {
		fields = fields[:len(fields)-1]
	}
	if len(fields) > 0 {
		hasManualSort := false
		for _, f := range fields {
			if f.ColID == "manualSort" {
				hasManualSort = true
				break
			}
		}
		if !hasManualSort {
			fields = append(fields, OrderField{ColID: "manualSort"})
		}
	}
	return OrderSpec{Fields: fields}
}

// NormalizeSortBy builds an OrderSpec from the legacy single-field sort_by.
func NormalizeSortBy(sortBy string) OrderSpec {
	if sortBy == "" {
		return OrderSpec{}
	}
	return NormalizeOrderBy([]string{sortBy})
}

// ValueGetter resolves a row id's value for a given column id, used by the
// ordered comparator; the lookup package does not import pkg/table to avoid
// a dependency cycle with pkg/engine, which owns live table access.
type ValueGetter func(rowID int64, colID string) interface{}

// collator is shared across ordered indexes for Text/Choice comparison,
// locale-aware rather than a naive byte comparison (§9 "Sorted containers").
var collator = collate.New(language.Und)

// SortTuple is a row's value for every field in an OrderSpec, precomputed
// once so repeated comparisons (sort, then binary search against a query
// value) don't re-fetch column values.
type SortTuple []interface{}

// TupleFor builds rowID's SortTuple for spec.
func TupleFor(rowID int64, spec OrderSpec, get ValueGetter) SortTuple {
	t := make(SortTuple, len(spec.Fields))
	for i, f := range spec.Fields {
		if f.ColID == "manualSort" {
			t[i] = float64(rowID)
			continue
		}
		t[i] = get(rowID, f.ColID)
	}
	return t
}

// CompareTuples orders a and b according to spec, breaking ties in field
// order. Text/Choice values use locale-aware collation; everything else
// compares numerically where possible, falling back to string comparison.
func CompareTuples(spec OrderSpec, a, b SortTuple) int {
	for i, f := range spec.Fields {
		c := compareValues(a[i], b[i])
		if f.Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

// Compare orders row ids a and b according to spec, breaking any remaining
// tie by row id so the ordering is total.
func Compare(spec OrderSpec, a, b int64, get ValueGetter) int {
	c := CompareTuples(spec, TupleFor(a, spec, get), TupleFor(b, spec, get))
	if c != 0 {
		return c
	}
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func compareValues(a, b interface{}) int {
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return collator.CompareString(as, bs)
		}
	}
	af, aok := asOrderedFloat(a)
	bf, bok := asOrderedFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as := fmt.Sprintf("%v", a)
	bs := fmt.Sprintf("%v", b)
	return strings.Compare(as, bs)
}

func asOrderedFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case cellvalue.RefValue:
		return float64(n), true
	case cellvalue.DateValue:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// SortRows sorts rowIDs in place according to spec.
func SortRows(rowIDs []int64, spec OrderSpec, get ValueGetter) {
	sort.SliceStable(rowIDs, func(i, j int) bool {
		return Compare(spec, rowIDs[i], rowIDs[j], get) < 0
	})
}

// FindOp selects which of find.lt/le/gt/ge/eq a FindOrdered call performs.
type FindOp int

const (
	FindLT FindOp = iota
	FindLE
	FindGT
	FindGE
	FindEQ
)

// FindOrdered performs a binary search over an already-sorted row list
// (sorted by spec, e.g. via SortRows) for the row satisfying op relative to
// a query value tuple, implementing find.lt/le/gt/ge/eq (§4.2).
// rowIDs[i] must correspond to tuples[i] (same length, same order).
func FindOrdered(rowIDs []int64, tuples []SortTuple, spec OrderSpec, query SortTuple, op FindOp) (int64, bool) {
	n := len(rowIDs)
	// idx is the first position where tuples[idx] >= query (per spec ordering).
	idx := sort.Search(n, func(i int) bool {
		return CompareTuples(spec, tuples[i], query) >= 0
	})
	switch op {
	case FindGE:
		if idx < n {
			return rowIDs[idx], true
		}
	case FindGT:
		for idx < n && CompareTuples(spec, tuples[idx], query) == 0 {
			idx++
		}
		if idx < n {
			return rowIDs[idx], true
		}
	case FindEQ:
		if idx < n && CompareTuples(spec, tuples[idx], query) == 0 {
			return rowIDs[idx], true
		}
	case FindLT:
		if idx > 0 {
			return rowIDs[idx-1], true
		}
	case FindLE:
		for idx < n && CompareTuples(spec, tuples[idx], query) == 0 {
			idx++
		}
		if idx > 0 {
			return rowIDs[idx-1], true
		}
	}
	return 0, false
}
