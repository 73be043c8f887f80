package engine

import (
	"fmt"

	"github.com/kasuganosora/gridengine/pkg/action"
	"github.com/kasuganosora/gridengine/pkg/migrate"
	"github.com/kasuganosora/gridengine/pkg/table"
)

// FetchTable implements spec.md §6's fetch_table(table_id, formulas): the
// table's current values shaped like BulkAddRecord's args (row ids plus one
// parallel slice of values per column). With formulas false, only plain
// data columns are included — the shape an AddRecord-family action can
// actually replay, since formula columns are never settable through one
// (applyAddRecord skips col.IsFormula entirely). With formulas true, the
// formula columns' last-computed values are included too, for callers that
// want a full read of the live state rather than a replayable snapshot.
// Helper columns (lookup indexes, display columns) are never included.
func (d *Document) FetchTable(tableID string, formulas bool) (*migrate.TableData, error) {
	tbl := d.Table(tableID)
	if tbl == nil {
		return nil, fmt.Errorf("engine: unknown table %s", tableID)
	}
	rowIDs := append([]int64(nil), tbl.RowIDs()...)
	out := &migrate.TableData{
		TableID: tableID,
		RowIDs:  rowIDs,
		Columns: make(map[string][]interface{}),
	}
	for _, colID := range tbl.ColumnIDs() {
		col := tbl.Column(colID)
		if col.IsHelper() || col.IsPrivate {
			continue
		}
		if col.IsFormula && !formulas {
			continue
		}
		vals := make([]interface{}, len(rowIDs))
		for i, row := range rowIDs {
			vals[i] = col.Get(row)
		}
		out.Columns[colID] = vals
	}
	return out, nil
}

// FetchSnapshot implements spec.md §6's fetch_snapshot(): the sequence of
// data actions that rebuilds this document from empty, synthesized by
// walking the live schema and table contents rather than replaying a
// recorded history (pkg/snapshot's Sink only mirrors actions forward from
// whenever it was attached; it cannot answer for state that predates it).
// One AddTable carries each table's full column set (data and formula
// alike, so recalculated formula results end up byte-identical once
// replayed), followed by one BulkAddRecord of that table's stored data
// values, in schema order.
func (d *Document) FetchSnapshot() ([]action.Action, error) {
	var out []action.Action
	for _, tableID := range d.schema.TableIDs() {
		spec, ok := d.schema.Table(tableID)
		if !ok {
			continue
		}
		cols := make([]action.ColumnDef, 0, len(spec.ColumnIDs()))
		for _, colID := range spec.ColumnIDs() {
			colSpec, ok := spec.Column(colID)
			if !ok {
				continue
			}
			cols = append(cols, action.ColumnDef{ColID: colID, Spec: columnSpecFromType(colSpec)})
		}
		out = append(out, &action.AddTable{Table: tableID, Columns: cols})

		data, err := d.FetchTable(tableID, false)
		if err != nil {
			return nil, err
		}
		if len(data.RowIDs) > 0 {
			out = append(out, &action.BulkAddRecord{Table: tableID, RowIDs: data.RowIDs, Values: action.ColumnValues(data.Columns)})
		}
	}
	return out, nil
}

// columnSpecFromType reverses action.ColumnSpec.BuildType: given a live
// table.ColumnSpec, rebuilds the wire-level action.ColumnSpec an
// AddTable/AddColumn action needs to recreate the same column, recovering
// Target/Choices/TZ from whichever of cellvalue's Type implementations
// carries them.
func columnSpecFromType(ts table.ColumnSpec) action.ColumnSpec {
	spec := action.ColumnSpec{
		Kind:           ts.Type.Kind(),
		IsFormula:      ts.IsFormula,
		Formula:        ts.Formula,
		DefaultFormula: ts.DefaultFormula,
		IsPrivate:      ts.IsPrivate,
	}
	if target, ok := ts.Type.(interface{ Target() string }); ok {
		spec.Target = target.Target()
	}
	if choices, ok := ts.Type.(interface{ Choices() []string }); ok {
		spec.Choices = choices.Choices()
	}
	if tz, ok := ts.Type.(interface{ TZ() string }); ok {
		spec.TZ = tz.TZ()
	}
	return spec
}
