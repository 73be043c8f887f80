// Package column implements the per-column storage described in spec.md
// §4.1: a dense, row-id-indexed vector with type-specific default semantics,
// wrong-type verbatim storage, and a rich-value view for formulas.
package column

import (
	"fmt"
	"strings"

	"github.com/kasuganosora/gridengine/pkg/cellvalue"
)

// Resolver lets a Column translate a raw stored Ref/RefList value into the
// formula-facing rich value (a Record/RecordSet) without the column package
// needing to depend on the engine package. The engine implements Resolver.
type Resolver interface {
	ResolveRef(targetTable string, rowID int64) interface{}
	ResolveRefList(targetTable string, rowIDs []int64) interface{}
}

// Column is a single column's storage: belongs to one table, has one Type,
// and is either a plain data column or a formula column (§3).
type Column struct {
	TableID        string
	ColID          string
	Typ            cellvalue.Type
	IsFormula      bool
	FormulaSource  string
	DefaultFormula string
	IsPrivate      bool // helper column: lookup index, summary back-link, display column

	values []interface{}
	isSet  []bool
}

// New constructs an empty Column of the given type.
func New(tableID, colID string, typ cellvalue.Type) *Column {
	return &Column{TableID: tableID, ColID: colID, Typ: typ}
}

// IsHelper reports whether this is an engine-owned helper column (§3: "starts
// with # or a reserved prefix").
func (c *Column) IsHelper() bool {
	return strings.HasPrefix(c.ColID, "#") || strings.HasPrefix(c.ColID, "gristHelper_")
}

// GrowTo extends storage to cover row id indices up to size-1, leaving new
// slots unset (reading as the type default).
func (c *Column) GrowTo(size int64) {
	if size <= int64(len(c.values)) {
		return
	}
	grown := make([]interface{}, size)
	copy(grown, c.values)
	c.values = grown
	setGrown := make([]bool, size)
	copy(setGrown, c.isSet)
	c.isSet = setGrown
}

// Get returns the stored value for rowID, or the column's type default if
// the row was never explicitly set.
func (c *Column) Get(rowID int64) interface{} {
	if rowID < 0 || rowID >= int64(len(c.values)) || !c.isSet[rowID] {
		return c.Typ.Default()
	}
	return c.values[rowID]
}

// IsSet reports whether rowID has an explicitly stored value.
func (c *Column) IsSet(rowID int64) bool {
	return rowID >= 0 && rowID < int64(len(c.isSet)) && c.isSet[rowID]
}

// Set stores v verbatim for rowID, growing storage as needed. It does not
// validate v against the column's type — wrong-type values are stored as-is
// per spec.md §3.
func (c *Column) Set(rowID int64, v interface{}) {
	if rowID < 0 {
		return
	}
	c.GrowTo(rowID + 1)
	c.values[rowID] = v
	c.isSet[rowID] = true
}

// Unset restores rowID to the column default.
func (c *Column) Unset(rowID int64) {
	if rowID < 0 || rowID >= int64(len(c.values)) {
		return
	}
	c.values[rowID] = nil
	c.isSet[rowID] = false
}

// Convert coerces input through the column's Type and stores it for rowID.
func (c *Column) Convert(rowID int64, input interface{}) {
	c.Set(rowID, c.Typ.Convert(input))
}

// CopyFrom duplicates storage from src into c. Both columns must share the
// same Kind; the caller is responsible for that check (AddColumn/ModifyColumn
// in pkg/useraction enforce it before calling).
func (c *Column) CopyFrom(src *Column) error {
	if src.Typ.Kind() != c.Typ.Kind() {
		return fmt.Errorf("cannot copy column data: incompatible types %s -> %s", src.Typ.Kind(), c.Typ.Kind())
	}
	c.values = append([]interface{}(nil), src.values...)
	c.isSet = append([]bool(nil), src.isSet...)
	return nil
}

// RichValue returns the formula-visible view of rowID's stored value: Ref
// resolves to a Record via resolver, RefList to a RecordSet, and a value
// that fails IsRightType is wrapped as AltText (if stringifiable) so formulas
// can still inspect it without a hard failure (§3, §4.1).
func (c *Column) RichValue(rowID int64, resolver Resolver) interface{} {
	v := c.Get(rowID)

	if raised, ok := v.(*cellvalue.RaisedException); ok {
		return raised
	}

	switch t := c.Typ.(type) {
	case interface{ Target() string }:
		target := t.Target()
		switch c.Typ.Kind() {
		case cellvalue.KindRef:
			ref, ok := v.(cellvalue.RefValue)
			if !ok {
				return altTextOrRaw(v, string(c.Typ.Kind()))
			}
			return resolver.ResolveRef(target, int64(ref))
		case cellvalue.KindRefList:
			list, ok := v.(cellvalue.RefList)
			if !ok {
				return altTextOrRaw(v, string(c.Typ.Kind()))
			}
			return resolver.ResolveRefList(target, []int64(list))
		}
	}

	if !c.Typ.IsRightType(v) {
		return altTextOrRaw(v, string(c.Typ.Kind()))
	}
	return v
}

func altTextOrRaw(v interface{}, typeName string) interface{} {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return cellvalue.AltText{Text: s, RawType: typeName}
	}
	if s, ok := v.(fmt.Stringer); ok {
		return cellvalue.AltText{Text: s.String(), RawType: typeName}
	}
	return cellvalue.AltText{Text: fmt.Sprintf("%v", v), RawType: typeName}
}

// Len returns the current storage size (not the number of set rows).
func (c *Column) Len() int64 { return int64(len(c.values)) }

// SetRows returns the row ids that have an explicitly stored value, in
// ascending order.
func (c *Column) SetRows() []int64 {
	out := make([]int64, 0)
	for i, ok := range c.isSet {
		if ok {
			out = append(out, int64(i))
		}
	}
	return out
}
