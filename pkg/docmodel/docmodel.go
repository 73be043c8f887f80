package docmodel

import (
	"fmt"
	"sort"

	"github.com/kasuganosora/gridengine/pkg/action"
	"github.com/kasuganosora/gridengine/pkg/actionsummary"
	"github.com/kasuganosora/gridengine/pkg/cellvalue"
	"github.com/kasuganosora/gridengine/pkg/engine"
	"github.com/kasuganosora/gridengine/pkg/migrate"
	"github.com/kasuganosora/gridengine/pkg/position"
)

// DocModel is a thin record-oriented facade over a *engine.Document's
// metadata tables, grounded on original_source/sandbox/grist/docmodel.py's
// DocModel class. Every mutation goes through the document's own
// ApplyDataAction so metadata edits recalc and undo like any other action;
// DocModel adds record-lookup convenience (GetTableRec/GetColumnRec) and the
// auto-remove queue formulas use to mark rows obsolete without removing them
// mid-recalculation.
type DocModel struct {
	doc        *engine.Document
	autoRemove map[string]map[int64]bool
}

// New wraps doc. Call EnsureMetaTables once on a freshly constructed
// document before any user table is added.
func New(doc *engine.Document) *DocModel {
	return &DocModel{doc: doc, autoRemove: make(map[string]map[int64]bool)}
}

// EnsureMetaTables creates every metadata table named in MetaSchema that
// doc doesn't already have, via ordinary AddTable actions (§6: metadata
// lives in the same document, recalculated the same way as user data).
func (m *DocModel) EnsureMetaTables(sum *actionsummary.Summary) error {
	for _, mt := range MetaSchema {
		if m.doc.Table(mt.TableID) != nil {
			continue
		}
		if _, err := m.doc.ApplyDataAction(&action.AddTable{Table: mt.TableID, Columns: mt.Columns}, sum); err != nil {
			return fmt.Errorf("docmodel: creating %s: %w", mt.TableID, err)
		}
	}
	return nil
}

// Add inserts one record into tableID with the given column values,
// returning the allocated row id (§4.10 "add(record_set_or_table,
// **col_values)"). The row id is always auto-allocated.
func (m *DocModel) Add(tableID string, colValues map[string]interface{}, sum *actionsummary.Summary) (int64, error) {
	inv, err := m.doc.ApplyDataAction(&action.AddRecord{Table: tableID, RowID: 0, Values: colValues}, sum)
	if err != nil {
		return 0, err
	}
	rem, ok := inv.(*action.BulkRemoveRecord)
	if !ok || len(rem.RowIDs) != 1 {
		return 0, fmt.Errorf("docmodel: unexpected inverse for Add on %s", tableID)
	}
	return rem.RowIDs[0], nil
}

// BulkAdd inserts count records into tableID, one per entry in colValues,
// returning the allocated row ids in order.
func (m *DocModel) BulkAdd(tableID string, colValues action.ColumnValues, count int, sum *actionsummary.Summary) ([]int64, error) {
	rowIDs := make([]int64, count)
	inv, err := m.doc.ApplyDataAction(&action.BulkAddRecord{Table: tableID, RowIDs: rowIDs, Values: colValues}, sum)
	if err != nil {
		return nil, err
	}
	rem, ok := inv.(*action.BulkRemoveRecord)
	if !ok {
		return nil, fmt.Errorf("docmodel: unexpected inverse for BulkAdd on %s", tableID)
	}
	return rem.RowIDs, nil
}

// Update writes colValues onto an existing record (§4.10 "update(records,
// **col_values)").
func (m *DocModel) Update(tableID string, rowID int64, colValues map[string]interface{}, sum *actionsummary.Summary) error {
	_, err := m.doc.ApplyDataAction(&action.UpdateRecord{Table: tableID, RowID: rowID, Values: colValues}, sum)
	return err
}

// Remove deletes a record immediately. Formulas that merely want to mark a
// record obsolete (to be dropped once, after the triggering action
// finishes) should call QueueAutoRemove instead.
func (m *DocModel) Remove(tableID string, rowID int64, sum *actionsummary.Summary) error {
	_, err := m.doc.ApplyDataAction(&action.RemoveRecord{Table: tableID, RowID: rowID}, sum)
	return err
}

// InsertAfter inserts a new record into tableID, positioned in posCol just
// after afterRowID (or at the start if afterRowID is 0), following the
// fractional-position scheme in pkg/position (§4.10 "insert_after(record_set,
// position, **col_values)", grounded on docmodel.py's use of Record
// ordering plus grist_utils.pick_new_key for PositionNumber columns).
func (m *DocModel) InsertAfter(tableID, posCol string, afterRowID int64, colValues map[string]interface{}, sum *actionsummary.Summary) (int64, error) {
	tbl := m.doc.Table(tableID)
	if tbl == nil {
		return 0, fmt.Errorf("docmodel: unknown table %s", tableID)
	}
	col := tbl.Column(posCol)
	if col == nil {
		return 0, fmt.Errorf("docmodel: table %s has no column %s", tableID, posCol)
	}
	rows := append([]int64(nil), tbl.RowIDs()...)
	keys := make([]float64, len(rows))
	for i, r := range rows {
		v, _ := col.Get(r).(float64)
		keys[i] = v
	}
	sort.Float64s(keys)

	insertAt := len(keys)
	if afterRowID != 0 {
		afterKey, _ := col.Get(afterRowID).(float64)
		for i, k := range keys {
			if k == afterKey {
				insertAt = i + 1
				break
			}
		}
	} else {
		insertAt = 0
	}

	labeler := position.NewLabeler(keys)
	var queryKey float64
	switch {
	case len(keys) == 0:
		queryKey = 1.0
	case insertAt == 0:
		lo, _ := position.RangeAroundFloat(keys[0], -1)
		queryKey = lo
	case insertAt >= len(keys):
		_, hi := position.RangeAroundFloat(keys[len(keys)-1], 1)
		queryKey = hi
	default:
		queryKey = (keys[insertAt-1] + keys[insertAt]) / 2
	}
	_, newKeys := labeler.PrepareInserts([]float64{queryKey})

	values := make(map[string]interface{}, len(colValues)+1)
	for k, v := range colValues {
		values[k] = v
	}
	values[posCol] = newKeys[0]
	return m.Add(tableID, values, sum)
}

// QueueAutoRemove marks a record obsolete without removing it immediately
// (§4.10 "_auto_remove_set"); formulas call this while a recalculation is
// in progress, and ApplyAutoRemoves drains the queue once the triggering
// user action completes.
func (m *DocModel) QueueAutoRemove(tableID string, rowID int64) {
	set, ok := m.autoRemove[tableID]
	if !ok {
		set = make(map[int64]bool)
		m.autoRemove[tableID] = set
	}
	set[rowID] = true
}

// CancelAutoRemove undoes a QueueAutoRemove call if the record turned out
// not to be obsolete after all (docmodel.py's auto_remove_set.discard).
func (m *DocModel) CancelAutoRemove(tableID string, rowID int64) {
	if set, ok := m.autoRemove[tableID]; ok {
		delete(set, rowID)
	}
}

// ApplyAutoRemoves removes every record queued via QueueAutoRemove and
// clears the queue, returning the number of rows removed. Called once at
// the end of each top-level user action (§4.10).
func (m *DocModel) ApplyAutoRemoves(sum *actionsummary.Summary) (int, error) {
	tableIDs := make([]string, 0, len(m.autoRemove))
	for tableID := range m.autoRemove {
		tableIDs = append(tableIDs, tableID)
	}
	sort.Strings(tableIDs) // deterministic table order, per §8 "Determinism"

	removed := 0
	for _, tableID := range tableIDs {
		set := m.autoRemove[tableID]
		if len(set) == 0 {
			continue
		}
		ids := make([]int64, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		if _, err := m.doc.ApplyDataAction(&action.BulkRemoveRecord{Table: tableID, RowIDs: ids}, sum); err != nil {
			return removed, err
		}
		removed += len(ids)
		delete(m.autoRemove, tableID)
	}
	return removed, nil
}

// FetchTable returns tableID's current values shaped like BulkAddRecord's
// args (§6 fetch_table(table_id, formulas)).
func (m *DocModel) FetchTable(tableID string, formulas bool) (*migrate.TableData, error) {
	return m.doc.FetchTable(tableID, formulas)
}

// FetchSnapshot returns the action sequence that rebuilds this document
// from empty (§6 fetch_snapshot()).
func (m *DocModel) FetchSnapshot() ([]action.Action, error) {
	return m.doc.FetchSnapshot()
}

// GetTableRec finds the _grist_Tables row describing tableID.
func (m *DocModel) GetTableRec(tableID string) (int64, bool) {
	tbl := m.doc.Table(TablesTable)
	if tbl == nil {
		return 0, false
	}
	col := tbl.Column("tableId")
	for _, row := range tbl.RowIDs() {
		if s, _ := col.Get(row).(string); s == tableID {
			return row, true
		}
	}
	return 0, false
}

// GetColumnRec finds the _grist_Tables_column row describing tableID.colID.
func (m *DocModel) GetColumnRec(tableID, colID string) (int64, bool) {
	tableRec, ok := m.GetTableRec(tableID)
	if !ok {
		return 0, false
	}
	tbl := m.doc.Table(ColumnsTable)
	if tbl == nil {
		return 0, false
	}
	parentCol := tbl.Column("parentId")
	colIDCol := tbl.Column("colId")
	for _, row := range tbl.RowIDs() {
		parent, _ := parentCol.Get(row).(cellvalue.RefValue)
		id, _ := colIDCol.Get(row).(string)
		if int64(parent) == tableRec && id == colID {
			return row, true
		}
	}
	return 0, false
}
