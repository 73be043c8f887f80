package engine

import (
	"fmt"

	"github.com/kasuganosora/gridengine/pkg/cellvalue"
	"github.com/kasuganosora/gridengine/pkg/lookup"
)

// Record is the formula-facing handle for one row: `rec` inside a formula
// body, or the result of following a Ref attribute (§4.1 "rich value").
type Record struct {
	doc     *Document
	TableID string
	RowID   int64
}

// NewRecord wraps (tableID, rowID) as a formula-facing Record.
func (d *Document) NewRecord(tableID string, rowID int64) *Record {
	return &Record{doc: d, TableID: tableID, RowID: rowID}
}

// ResolveRef implements column.Resolver.
func (d *Document) ResolveRef(targetTable string, rowID int64) interface{} {
	return d.NewRecord(targetTable, rowID)
}

// ResolveRefList implements column.Resolver.
func (d *Document) ResolveRefList(targetTable string, rowIDs []int64) interface{} {
	return d.NewRecordSet(targetTable, rowIDs)
}

// RecordSet is the formula-facing handle for an ordered list of rows:
// the result of a RefList attribute, a `Table.lookupRecords` call, or
// `Table.All` (§4.1, §4.2).
type RecordSet struct {
	doc     *Document
	TableID string
	RowIDs  []int64
	order   lookup.OrderSpec
}

// NewRecordSet wraps rowIDs as a formula-facing RecordSet.
func (d *Document) NewRecordSet(tableID string, rowIDs []int64) *RecordSet {
	return &RecordSet{doc: d, TableID: tableID, RowIDs: append([]int64(nil), rowIDs...)}
}

// TableProxy is the formula-facing handle for a table referenced by its own
// id (`Purchases.lookupRecords(...)`, or the implicit `table` name).
type TableProxy struct {
	doc     *Document
	TableID string
}

// NewTableProxy wraps tableID as a formula-facing table namespace.
func (d *Document) NewTableProxy(tableID string) *TableProxy {
	return &TableProxy{doc: d, TableID: tableID}
}

// finder is the intermediate object returned by RecordSet.find, supporting
// `.find.lt/le/gt/ge/eq(value, **order_by)` (§4.2).
type finder struct {
	rs *RecordSet
}

func (d *Document) getAttrRecord(r *Record, name string) (interface{}, error) {
	tbl := d.Table(r.TableID)
	if tbl == nil {
		return nil, fmt.Errorf("engine: unknown table %s", r.TableID)
	}
	if name == "id" {
		return float64(r.RowID), nil
	}
	col := tbl.Column(name)
	if col == nil {
		return nil, fmt.Errorf("engine: table %s has no column %s", r.TableID, name)
	}
	d.recordCellDependency(r.TableID, name, r.RowID)
	if col.IsFormula {
		d.ensureComputed(r.TableID, name, r.RowID)
	}
	rv := col.RichValue(r.RowID, d)
	if raised, ok := rv.(*cellvalue.RaisedException); ok {
		if raised.IsCircular {
			return nil, raised
		}
		return nil, &cellvalue.CellError{Table: r.TableID, Col: name, Row: r.RowID, Inner: raised}
	}
	return rv, nil
}

func (d *Document) getAttrRecordSet(rs *RecordSet, name string) (interface{}, error) {
	switch name {
	case "find":
		return &finder{rs: rs}, nil
	}
	out := make([]interface{}, 0, len(rs.RowIDs))
	for _, row := range rs.RowIDs {
		rec := d.NewRecord(rs.TableID, row)
		v, err := d.getAttrRecord(rec, name)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
