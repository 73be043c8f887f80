// Package table implements the Table data model from spec.md §3: an ordered
// set of typed columns plus an implicit row-id sequence, with row id 0
// reserved for the "empty record".
package table

import (
	"fmt"
	"sort"

	"github.com/kasuganosora/gridengine/pkg/cellvalue"
	"github.com/kasuganosora/gridengine/pkg/column"
)

// ErrUnknownColumn is returned when an operation names a column that does
// not exist on the table.
type ErrUnknownColumn struct {
	TableID string
	ColID   string
}

func (e *ErrUnknownColumn) Error() string {
	return fmt.Sprintf("table %s: unknown column %s", e.TableID, e.ColID)
}

// ErrUnknownRow is returned when an operation names a row id that was never
// added to the table.
type ErrUnknownRow struct {
	TableID string
	RowID   int64
}

func (e *ErrUnknownRow) Error() string {
	return fmt.Sprintf("table %s: unknown row %d", e.TableID, e.RowID)
}

// EmptyRecordRowID is the row id reserved in every table for the "empty
// record" that unresolved references point to (§3 invariant).
const EmptyRecordRowID int64 = 0

// Table is a named collection of rows, carrying an ordered map of columns
// plus the implicit row-id sequence.
type Table struct {
	TableID string

	colOrder []string
	cols     map[string]*column.Column

	rowSet    map[int64]bool // live row ids, including 0
	nextRowID int64
}

// New constructs a table already containing the mandatory row id 0.
func New(tableID string) *Table {
	t := &Table{
		TableID:   tableID,
		cols:      make(map[string]*column.Column),
		rowSet:    map[int64]bool{EmptyRecordRowID: true},
		nextRowID: 1,
	}
	return t
}

// AddColumn appends a new column in schema order. Returns an error if a
// column with the same id already exists.
func (t *Table) AddColumn(colID string, typ cellvalue.Type) (*column.Column, error) {
	if _, ok := t.cols[colID]; ok {
		return nil, fmt.Errorf("table %s: column %s already exists", t.TableID, colID)
	}
	col := column.New(t.TableID, colID, typ)
	col.GrowTo(t.nextRowID)
	t.cols[colID] = col
	t.colOrder = append(t.colOrder, colID)
	return col, nil
}

// RemoveColumn drops a column from the table.
func (t *Table) RemoveColumn(colID string) error {
	if _, ok := t.cols[colID]; !ok {
		return &ErrUnknownColumn{TableID: t.TableID, ColID: colID}
	}
	delete(t.cols, colID)
	for i, id := range t.colOrder {
		if id == colID {
			t.colOrder = append(t.colOrder[:i], t.colOrder[i+1:]...)
			break
		}
	}
	return nil
}

// RenameColumn changes a column's external id while keeping its storage.
func (t *Table) RenameColumn(oldID, newID string) error {
	col, ok := t.cols[oldID]
	if !ok {
		return &ErrUnknownColumn{TableID: t.TableID, ColID: oldID}
	}
	if _, exists := t.cols[newID]; exists {
		return fmt.Errorf("table %s: column %s already exists", t.TableID, newID)
	}
	col.ColID = newID
	t.cols[newID] = col
	delete(t.cols, oldID)
	for i, id := range t.colOrder {
		if id == oldID {
			t.colOrder[i] = newID
			break
		}
	}
	return nil
}

// AdoptColumn installs col under colID, replacing whatever storage was there
// before while preserving colID's position in schema order (used when a
// column is retyped in place, e.g. Ref -> Int after its target table is
// removed).
func (t *Table) AdoptColumn(colID string, col *column.Column) {
	col.ColID = colID
	col.TableID = t.TableID
	t.cols[colID] = col
}

// Column returns the named column, or nil if it does not exist.
func (t *Table) Column(colID string) *column.Column {
	return t.cols[colID]
}

// Columns returns all columns in schema order.
func (t *Table) Columns() []*column.Column {
	out := make([]*column.Column, 0, len(t.colOrder))
	for _, id := range t.colOrder {
		out = append(out, t.cols[id])
	}
	return out
}

// ColumnIDs returns column ids in schema order.
func (t *Table) ColumnIDs() []string {
	out := make([]string, len(t.colOrder))
	copy(out, t.colOrder)
	return out
}

// HasColumn reports whether colID exists on the table.
func (t *Table) HasColumn(colID string) bool {
	_, ok := t.cols[colID]
	return ok
}

// HasRow reports whether rowID is live.
func (t *Table) HasRow(rowID int64) bool {
	return t.rowSet[rowID]
}

// RowIDs returns all live row ids, including 0, in ascending order.
func (t *Table) RowIDs() []int64 {
	out := make([]int64, 0, len(t.rowSet))
	for id := range t.rowSet {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AddRow allocates a fresh row id (auto-incrementing, never reusing a
// previously removed id) and grows every column's storage to cover it.
func (t *Table) AddRow() int64 {
	id := t.nextRowID
	t.nextRowID++
	t.rowSet[id] = true
	for _, col := range t.cols {
		col.GrowTo(id + 1)
	}
	return id
}

// AddRowWithID inserts a specific row id (used when replaying actions /
// undo, where the id must match what clients already saw).
func (t *Table) AddRowWithID(rowID int64) {
	t.rowSet[rowID] = true
	if rowID >= t.nextRowID {
		t.nextRowID = rowID + 1
	}
	for _, col := range t.cols {
		col.GrowTo(rowID + 1)
	}
}

// RemoveRow deletes rowID. Row id 0 can never be removed (§3 invariant).
func (t *Table) RemoveRow(rowID int64) error {
	if rowID == EmptyRecordRowID {
		return fmt.Errorf("table %s: row id 0 cannot be removed", t.TableID)
	}
	if !t.rowSet[rowID] {
		return &ErrUnknownRow{TableID: t.TableID, RowID: rowID}
	}
	delete(t.rowSet, rowID)
	for _, col := range t.cols {
		col.Unset(rowID)
	}
	return nil
}

// RowCount returns the number of live rows, including row 0.
func (t *Table) RowCount() int {
	return len(t.rowSet)
}
