// Package relation implements the Relation data model from spec.md §3: an
// object with identity that maps a source row id to zero or more target row
// ids, used as the third component of a dependency edge so invalidation can
// propagate from a target row back to every source row whose formula read
// it through that relation.
package relation

import (
	"fmt"

	"github.com/kasuganosora/gridengine/pkg/cellvalue"
	"github.com/kasuganosora/gridengine/pkg/table"
)

// Relation maps a source row id to target row ids and carries enough
// identity to be used as (part of) a dependency-graph edge key — two
// relations with the same Key() are considered the same edge.
type Relation interface {
	Key() string
	Map(sourceRowID int64) []int64
}

// Identity is the trivial relation: a row depends on itself, used when a
// formula reads another column of its own row.
type Identity struct {
	TableID string
}

func (r Identity) Key() string { return "identity:" + r.TableID }

func (r Identity) Map(sourceRowID int64) []int64 { return []int64{sourceRowID} }

// Reference maps a source row id to the single target row id stored in one
// of its Ref columns (0 maps to the empty record, never "no target").
type Reference struct {
	SourceTable *table.Table
	ColID       string
}

func (r Reference) Key() string {
	return fmt.Sprintf("ref:%s.%s", r.SourceTable.TableID, r.ColID)
}

func (r Reference) Map(sourceRowID int64) []int64 {
	col := r.SourceTable.Column(r.ColID)
	if col == nil {
		return nil
	}
	v := col.Get(sourceRowID)
	ref, ok := v.(cellvalue.RefValue)
	if !ok {
		return nil
	}
	return []int64{int64(ref)}
}

// ReferenceList maps a source row id to every target row id stored in one
// of its RefList columns.
type ReferenceList struct {
	SourceTable *table.Table
	ColID       string
}

func (r ReferenceList) Key() string {
	return fmt.Sprintf("reflist:%s.%s", r.SourceTable.TableID, r.ColID)
}

func (r ReferenceList) Map(sourceRowID int64) []int64 {
	col := r.SourceTable.Column(r.ColID)
	if col == nil {
		return nil
	}
	v := col.Get(sourceRowID)
	list, ok := v.(cellvalue.RefList)
	if !ok {
		return nil
	}
	out := make([]int64, len(list))
	copy(out, list)
	return out
}

// Index is the narrow view of a lookup map that Lookup needs: resolve a
// group-by key to the row ids currently indexed under it. pkg/lookup
// implements this; defining it here (rather than importing pkg/lookup)
// keeps relation a leaf package with no dependency on the indexing layer.
type Index interface {
	RowsForKey(key interface{}) []int64
}

// Lookup is materialized by a lookup map: it maps a source row id to the
// target rows currently indexed under that source row's computed key.
type Lookup struct {
	IndexName string
	Idx       Index
	KeyFor    func(sourceRowID int64) interface{}
}

func (r Lookup) Key() string { return "lookup:" + r.IndexName }

func (r Lookup) Map(sourceRowID int64) []int64 {
	if r.Idx == nil || r.KeyFor == nil {
		return nil
	}
	return r.Idx.RowsForKey(r.KeyFor(sourceRowID))
}
