package engine

import (
	"fmt"
	"sort"

	"github.com/kasuganosora/gridengine/pkg/action"
	"github.com/kasuganosora/gridengine/pkg/actionsummary"
	"github.com/kasuganosora/gridengine/pkg/cellvalue"
	"github.com/kasuganosora/gridengine/pkg/column"
	"github.com/kasuganosora/gridengine/pkg/depgraph"
	"github.com/kasuganosora/gridengine/pkg/table"
)

// ApplyDataAction mutates the document for exactly one data action (§4.7),
// recording row-id rewrites and table/column label changes in sum (sum may
// be nil) and returning the inverse action a caller would need to undo it.
// The before/after values of the cells the action writes are not recorded
// in sum; Calculate records the formula cells it recomputes.
func (d *Document) ApplyDataAction(a action.Action, sum *actionsummary.Summary) (action.Action, error) {
	switch act := a.(type) {
	case *action.AddRecord:
		return d.applyAddRecord(act.Table, []int64{act.RowID}, singleColumnValues(act.Values), sum)
	case *action.BulkAddRecord:
		return d.applyAddRecord(act.Table, act.RowIDs, act.Values, sum)
	case *action.RemoveRecord:
		return d.applyRemoveRecord(act.Table, []int64{act.RowID}, sum)
	case *action.BulkRemoveRecord:
		return d.applyRemoveRecord(act.Table, act.RowIDs, sum)
	case *action.UpdateRecord:
		return d.applyUpdateRecord(act.Table, []int64{act.RowID}, singleColumnValues(act.Values), sum)
	case *action.BulkUpdateRecord:
		return d.applyUpdateRecord(act.Table, act.RowIDs, act.Values, sum)
	case *action.ReplaceTableData:
		return d.applyReplaceTableData(act.Table, act.RowIDs, act.Values, sum)
	case *action.AddColumn:
		return d.applyAddColumn(act.Table, act.ColID, act.Spec, sum)
	case *action.RemoveColumn:
		return d.applyRemoveColumn(act.Table, act.ColID, sum)
	case *action.RenameColumn:
		return d.applyRenameColumn(act.Table, act.OldColID, act.NewColID, sum)
	case *action.ModifyColumn:
		return d.applyModifyColumn(act.Table, act.ColID, act.Spec, sum)
	case *action.AddTable:
		return d.applyAddTable(act.Table, act.Columns, sum)
	case *action.RemoveTable:
		return d.applyRemoveTable(act.Table, sum)
	case *action.RenameTable:
		return d.applyRenameTable(act.OldTable, act.NewTable, sum)
	default:
		return nil, fmt.Errorf("engine: unknown action %T", a)
	}
}

func singleColumnValues(values map[string]interface{}) action.ColumnValues {
	out := make(action.ColumnValues, len(values))
	for k, v := range values {
		out[k] = []interface{}{v}
	}
	return out
}

func (d *Document) applyAddRecord(tableID string, rowIDs []int64, values action.ColumnValues, sum *actionsummary.Summary) (action.Action, error) {
	tbl := d.Table(tableID)
	if tbl == nil {
		return nil, fmt.Errorf("engine: unknown table %s", tableID)
	}
	finalIDs := make([]int64, len(rowIDs))
	for i, reqID := range rowIDs {
		var row int64
		if reqID <= 0 {
			row = tbl.AddRow()
			if sum != nil {
				sum.RecordRowRewrite(tableID, reqID, row)
			}
		} else {
			tbl.AddRowWithID(reqID)
			row = reqID
		}
		finalIDs[i] = row
		for _, colID := range tbl.ColumnIDs() {
			col := tbl.Column(colID)
			if col.IsFormula {
				continue
			}
			var v interface{}
			if slice, ok := values[colID]; ok && i < len(slice) {
				v = slice[i]
			} else {
				v = d.defaultValueFor(tableID, colID, row)
			}
			col.Set(row, v)
			d.updateLookupIndexesForWrite(tableID, colID, row)
		}
		d.insertRowIntoIndexes(tableID, row)
		d.scheduleRowFormulas(tableID, row)
	}
	return &action.BulkRemoveRecord{Table: tableID, RowIDs: finalIDs}, nil
}

func (d *Document) defaultValueFor(tableID, colID string, row int64) interface{} {
	tm := d.tableModule(tableID)
	if tm != nil {
		if cf, ok := tm.Defaults[colID]; ok {
			d.pushActive(depgraph.Node{TableID: tableID, ColID: "_default_" + colID}, row)
			v, err := cf.Run(d)
			d.popActive()
			if err == nil {
				return v
			}
		}
	}
	tbl := d.Table(tableID)
	col := tbl.Column(colID)
	return col.Typ.Default()
}

// scheduleRowFormulas schedules every formula column of tableID for row,
// seeding the recalc loop after a structural change (§4.4 step 1).
func (d *Document) scheduleRowFormulas(tableID string, row int64) {
	tm := d.tableModule(tableID)
	if tm == nil {
		return
	}
	for _, colID := range tm.ColOrder {
		if _, ok := tm.Formulas[colID]; !ok {
			continue
		}
		d.graph.Schedule(depgraph.Node{TableID: tableID, ColID: colID}, row)
	}
}

func (d *Document) applyRemoveRecord(tableID string, rowIDs []int64, sum *actionsummary.Summary) (action.Action, error) {
	tbl := d.Table(tableID)
	if tbl == nil {
		return nil, fmt.Errorf("engine: unknown table %s", tableID)
	}
	undoValues := make(action.ColumnValues)
	colIDs := tbl.ColumnIDs()
	for _, colID := range colIDs {
		undoValues[colID] = make([]interface{}, len(rowIDs))
	}
	for i, row := range rowIDs {
		for _, colID := range colIDs {
			col := tbl.Column(colID)
			undoValues[colID][i] = col.Get(row)
		}
		d.dropRowFromIndexes(tableID, row)
		if err := tbl.RemoveRow(row); err != nil {
			return nil, err
		}
	}
	return &action.BulkAddRecord{Table: tableID, RowIDs: append([]int64(nil), rowIDs...), Values: undoValues}, nil
}

func (d *Document) applyUpdateRecord(tableID string, rowIDs []int64, values action.ColumnValues, sum *actionsummary.Summary) (action.Action, error) {
	tbl := d.Table(tableID)
	if tbl == nil {
		return nil, fmt.Errorf("engine: unknown table %s", tableID)
	}
	colIDs := make([]string, 0, len(values))
	for colID := range values {
		colIDs = append(colIDs, colID)
	}
	sort.Strings(colIDs) // deterministic write/schedule order, per §8 "Determinism"

	undoValues := make(action.ColumnValues, len(values))
	for _, colID := range colIDs {
		undoValues[colID] = make([]interface{}, len(rowIDs))
	}
	for _, colID := range colIDs {
		slice := values[colID]
		col := tbl.Column(colID)
		if col == nil {
			return nil, fmt.Errorf("engine: table %s has no column %s", tableID, colID)
		}
		for i, row := range rowIDs {
			if i >= len(slice) {
				continue
			}
			undoValues[colID][i] = col.Get(row)
			col.Set(row, slice[i])
			d.updateLookupIndexesForWrite(tableID, colID, row)
			if !col.IsFormula {
				d.scheduleDependentsOfDataWrite(tableID, colID, row)
			}
		}
	}
	return &action.BulkUpdateRecord{Table: tableID, RowIDs: append([]int64(nil), rowIDs...), Values: undoValues}, nil
}

// scheduleDependentsOfDataWrite invalidates every formula that reads
// (tableID, colID) at row, including the row's own formula siblings via
// their recorded dependency edges (§4.3 "invalidate").
func (d *Document) scheduleDependentsOfDataWrite(tableID, colID string, row int64) {
	d.graph.Invalidate(depgraph.Node{TableID: tableID, ColID: colID}, []int64{row})
}

func (d *Document) applyReplaceTableData(tableID string, rowIDs []int64, values action.ColumnValues, sum *actionsummary.Summary) (action.Action, error) {
	tbl := d.Table(tableID)
	if tbl == nil {
		return nil, fmt.Errorf("engine: unknown table %s", tableID)
	}
	prevRows := nonZero(tbl.RowIDs())
	prevValues := snapshotValues(tbl, prevRows)
	if _, err := d.applyRemoveRecord(tableID, prevRows, sum); err != nil {
		return nil, err
	}
	if _, err := d.applyAddRecord(tableID, rowIDs, values, sum); err != nil {
		return nil, err
	}
	return &action.ReplaceTableData{Table: tableID, RowIDs: prevRows, Values: prevValues}, nil
}

func nonZero(rows []int64) []int64 {
	out := make([]int64, 0, len(rows))
	for _, r := range rows {
		if r != 0 {
			out = append(out, r)
		}
	}
	return out
}

// snapshotValues captures every column's current values for rows, used to
// build ReplaceTableData's undo before the rows underneath are discarded.
func snapshotValues(tbl *table.Table, rows []int64) action.ColumnValues {
	out := make(action.ColumnValues)
	for _, colID := range tbl.ColumnIDs() {
		col := tbl.Column(colID)
		slice := make([]interface{}, len(rows))
		for i, row := range rows {
			slice[i] = col.Get(row)
		}
		out[colID] = slice
	}
	return out
}

// toTableColumnSpec builds the live schema spec from a wire-level
// action.ColumnSpec plus its already-materialized Type.
func toTableColumnSpec(spec action.ColumnSpec, typ cellvalue.Type) table.ColumnSpec {
	return table.ColumnSpec{
		Type:           typ,
		IsFormula:      spec.IsFormula,
		Formula:        spec.Formula,
		DefaultFormula: spec.DefaultFormula,
		IsPrivate:      spec.IsPrivate,
	}
}

// fromTableColumnSpec reconstructs the wire-level action.ColumnSpec a
// schema spec was built from, recovering Target/Choices/TZ through the
// narrow accessor interfaces the corresponding cellvalue.Type implements.
func fromTableColumnSpec(ts table.ColumnSpec) action.ColumnSpec {
	spec := action.ColumnSpec{
		IsFormula:      ts.IsFormula,
		Formula:        ts.Formula,
		DefaultFormula: ts.DefaultFormula,
		IsPrivate:      ts.IsPrivate,
	}
	if ts.Type == nil {
		return spec
	}
	spec.Kind = ts.Type.Kind()
	if t, ok := ts.Type.(interface{ Target() string }); ok {
		spec.Target = t.Target()
	}
	if t, ok := ts.Type.(interface{ Choices() []string }); ok {
		spec.Choices = t.Choices()
	}
	if t, ok := ts.Type.(interface{ TZ() string }); ok {
		spec.TZ = t.TZ()
	}
	return spec
}

func (d *Document) applyAddColumn(tableID, colID string, spec action.ColumnSpec, sum *actionsummary.Summary) (action.Action, error) {
	tbl := d.Table(tableID)
	tblSpec, ok := d.schema.Table(tableID)
	if tbl == nil || !ok {
		return nil, fmt.Errorf("engine: unknown table %s", tableID)
	}
	typ, err := spec.BuildType()
	if err != nil {
		return nil, err
	}
	if _, err := tbl.AddColumn(colID, typ); err != nil {
		return nil, err
	}
	col := tbl.Column(colID)
	col.IsFormula = spec.IsFormula
	col.FormulaSource = spec.Formula
	col.DefaultFormula = spec.DefaultFormula
	col.IsPrivate = spec.IsPrivate
	tblSpec.SetColumn(colID, toTableColumnSpec(spec, typ))
	if err := d.rebuildModule(); err != nil {
		return nil, err
	}
	if sum != nil {
		sum.RecordColumnCreated(tableID, colID)
	}
	for _, row := range tbl.RowIDs() {
		d.scheduleRowFormulas(tableID, row)
	}
	return &action.RemoveColumn{Table: tableID, ColID: colID}, nil
}

func (d *Document) applyRemoveColumn(tableID, colID string, sum *actionsummary.Summary) (action.Action, error) {
	tbl := d.Table(tableID)
	tblSpec, ok := d.schema.Table(tableID)
	if tbl == nil || !ok {
		return nil, fmt.Errorf("engine: unknown table %s", tableID)
	}
	oldSpec, _ := tblSpec.Column(colID)
	if err := tbl.RemoveColumn(colID); err != nil {
		return nil, err
	}
	tblSpec.RemoveColumn(colID)
	if err := d.rebuildModule(); err != nil {
		return nil, err
	}
	if sum != nil {
		sum.RecordColumnRemoved(tableID, colID)
	}
	return &action.AddColumn{Table: tableID, ColID: colID, Spec: fromTableColumnSpec(oldSpec)}, nil
}

func (d *Document) applyRenameColumn(tableID, oldID, newID string, sum *actionsummary.Summary) (action.Action, error) {
	tbl := d.Table(tableID)
	tblSpec, ok := d.schema.Table(tableID)
	if tbl == nil || !ok {
		return nil, fmt.Errorf("engine: unknown table %s", tableID)
	}
	if err := tbl.RenameColumn(oldID, newID); err != nil {
		return nil, err
	}
	tblSpec.RenameColumn(oldID, newID)
	d.cache.Invalidate(tableID, oldID)
	if err := d.rebuildModule(); err != nil {
		return nil, err
	}
	if sum != nil {
		sum.RecordColumnRenamed(tableID, oldID, newID)
	}
	return &action.RenameColumn{Table: tableID, OldColID: newID, NewColID: oldID}, nil
}

func (d *Document) applyModifyColumn(tableID, colID string, spec action.ColumnSpec, sum *actionsummary.Summary) (action.Action, error) {
	tbl := d.Table(tableID)
	tblSpec, ok := d.schema.Table(tableID)
	if tbl == nil || !ok {
		return nil, fmt.Errorf("engine: unknown table %s", tableID)
	}
	oldSpec, _ := tblSpec.Column(colID)
	typ, err := spec.BuildType()
	if err != nil {
		return nil, err
	}
	oldCol := tbl.Column(colID)
	if oldCol == nil {
		return nil, fmt.Errorf("engine: table %s has no column %s", tableID, colID)
	}
	col := oldCol
	if oldCol.Typ.Kind() != typ.Kind() {
		col = d.retypeColumnValues(tableID, colID, typ, oldCol)
		d.replaceColumn(tbl, tblSpec, colID, col, typ)
	} else {
		tblSpec.SetColumn(colID, toTableColumnSpec(spec, typ))
	}
	col.IsFormula = spec.IsFormula
	col.FormulaSource = spec.Formula
	col.DefaultFormula = spec.DefaultFormula
	col.IsPrivate = spec.IsPrivate
	d.cache.Invalidate(tableID, colID)
	if err := d.rebuildModule(); err != nil {
		return nil, err
	}
	if sum != nil {
		sum.RecordColumnRemoved(tableID, colID)
		sum.RecordColumnCreated(tableID, colID)
	}
	for _, row := range tbl.RowIDs() {
		d.scheduleRowFormulas(tableID, row)
	}
	return &action.ModifyColumn{Table: tableID, ColID: colID, Spec: fromTableColumnSpec(oldSpec)}, nil
}

// retypeColumnValues builds a fresh column of typ, converting every
// explicitly set value from old through typ's own Convert (storing the
// result verbatim even if Convert leaves it the wrong type, per §3).
func (d *Document) retypeColumnValues(tableID, colID string, typ cellvalue.Type, old *column.Column) *column.Column {
	newCol := column.New(tableID, colID, typ)
	newCol.GrowTo(old.Len())
	for _, row := range old.SetRows() {
		newCol.Set(row, typ.Convert(old.Get(row)))
	}
	return newCol
}

func (d *Document) applyAddTable(tableID string, cols []action.ColumnDef, sum *actionsummary.Summary) (action.Action, error) {
	if err := d.createTable(tableID, cols); err != nil {
		return nil, err
	}
	if sum != nil {
		sum.RecordTableCreated(tableID)
	}
	return &action.RemoveTable{Table: tableID}, nil
}

func (d *Document) applyRemoveTable(tableID string, sum *actionsummary.Summary) (action.Action, error) {
	tblSpec, ok := d.schema.Table(tableID)
	if !ok {
		return nil, fmt.Errorf("engine: unknown table %s", tableID)
	}
	var cols []action.ColumnDef
	for _, colID := range tblSpec.ColumnIDs() {
		spec, _ := tblSpec.Column(colID)
		cols = append(cols, action.ColumnDef{ColID: colID, Spec: fromTableColumnSpec(spec)})
	}
	if err := d.removeTable(tableID); err != nil {
		return nil, err
	}
	if sum != nil {
		sum.RecordTableRemoved(tableID)
	}
	return &action.AddTable{Table: tableID, Columns: cols}, nil
}

func (d *Document) applyRenameTable(oldID, newID string, sum *actionsummary.Summary) (action.Action, error) {
	tbl, ok := d.tables[oldID]
	if !ok {
		return nil, fmt.Errorf("engine: unknown table %s", oldID)
	}
	tbl.TableID = newID
	d.tables[newID] = tbl
	delete(d.tables, oldID)
	d.schema.RenameTable(oldID, newID)
	if err := d.rebuildModule(); err != nil {
		return nil, err
	}
	if sum != nil {
		sum.RecordTableRenamed(oldID, newID)
	}
	return &action.RenameTable{OldTable: newID, NewTable: oldID}, nil
}
