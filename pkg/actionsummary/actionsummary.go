// Package actionsummary implements spec.md §4.8: batching fine-grained
// per-cell before/after changes across one user action, compressing them
// into bulk actions for the stored/undo lists and a computed-cell summary,
// and tracking the "label delta" bookkeeping renames/creates/removes need
// to survive multiple rename steps within the same batch.
package actionsummary

import (
	"fmt"
	"sort"

	"github.com/kasuganosora/gridengine/pkg/action"
	"github.com/kasuganosora/gridengine/pkg/cellvalue"
)

// CellKey identifies one cell for summary purposes.
type CellKey struct {
	Table string
	Col   string
	Row   int64
}

type cellChange struct {
	before   interface{}
	after    interface{}
	hasBefor bool
	isCalc   bool // true if this cell's change came from recalculation, not a data action
	seq      int
}

// LabelDelta describes a table/column rename/create/remove tracked by
// "latest name" so a batch containing several renames of the same entity
// still emits one coherent delta (§4.8).
type LabelDelta struct {
	Created bool
	Removed bool
	// Renames lists every name this entity held during the batch, oldest
	// first, ending with the latest (current) name.
	Renames []string
}

// Summary accumulates per-cell changes and label deltas for one user
// action. A fresh Summary is created per apply_user_actions call (§5).
type Summary struct {
	cells map[CellKey]*cellChange
	seq   int

	tableDeltas  map[string]*LabelDelta // keyed by latest table name
	columnDeltas map[string]*LabelDelta // keyed by "table\x1fLatestColID"

	// rowRewrite maps table -> temporary (negative) row id -> final row id,
	// so in-batch references to a just-added bulk row resolve correctly.
	rowRewrite map[string]map[int64]int64
}

// New constructs an empty Summary.
func New() *Summary {
	return &Summary{
		cells:        make(map[CellKey]*cellChange),
		tableDeltas:  make(map[string]*LabelDelta),
		columnDeltas: make(map[string]*LabelDelta),
		rowRewrite:   make(map[string]map[int64]int64),
	}
}

// RecordCell records a cell's value change. The first call for a given
// CellKey establishes "before"; every call updates "after". isCalc marks a
// change produced by formula recomputation rather than a direct data
// action, used when splitting stored actions from calc actions.
func (s *Summary) RecordCell(table, col string, row int64, before, after interface{}, isCalc bool) {
	key := CellKey{Table: table, Col: col, Row: row}
	c, ok := s.cells[key]
	if !ok {
		s.seq++
		c = &cellChange{before: before, hasBefor: true, seq: s.seq}
		s.cells[key] = c
	}
	c.after = after
	c.isCalc = c.isCalc || isCalc
}

// RecordRowRewrite notes that a temporary (negative) row id introduced by a
// bulk-add within this batch was finally assigned finalID, so later lookups
// of that placeholder resolve correctly (§4.8).
func (s *Summary) RecordRowRewrite(table string, tempID, finalID int64) {
	m, ok := s.rowRewrite[table]
	if !ok {
		m = make(map[int64]int64)
		s.rowRewrite[table] = m
	}
	m[tempID] = finalID
}

// ResolveRow rewrites a row id through any pending temp-id rewrite recorded
// for table, returning it unchanged if no rewrite applies.
func (s *Summary) ResolveRow(table string, rowID int64) int64 {
	if m, ok := s.rowRewrite[table]; ok {
		if final, ok := m[rowID]; ok {
			return final
		}
	}
	return rowID
}

// RecordTableCreated marks tableID as newly created in this batch.
func (s *Summary) RecordTableCreated(tableID string) {
	d := s.tableDelta(tableID)
	d.Created = true
}

// RecordTableRemoved marks tableID as removed in this batch.
func (s *Summary) RecordTableRemoved(tableID string) {
	d := s.tableDelta(tableID)
	d.Removed = true
}

// RecordTableRenamed moves a table delta from oldID to newID, preserving
// its Created/Removed flags and rename history.
func (s *Summary) RecordTableRenamed(oldID, newID string) {
	d := s.tableDelta(oldID)
	delete(s.tableDeltas, oldID)
	d.Renames = append(d.Renames, newID)
	s.tableDeltas[newID] = d
}

func (s *Summary) tableDelta(tableID string) *LabelDelta {
	d, ok := s.tableDeltas[tableID]
	if !ok {
		d = &LabelDelta{Renames: []string{tableID}}
		s.tableDeltas[tableID] = d
	}
	return d
}

func colDeltaKey(table, col string) string { return table + "\x1f" + col }

// RecordColumnCreated marks table.colID as newly created.
func (s *Summary) RecordColumnCreated(table, colID string) {
	d := s.columnDelta(table, colID)
	d.Created = true
}

// RecordColumnRemoved marks table.colID as removed.
func (s *Summary) RecordColumnRemoved(table, colID string) {
	d := s.columnDelta(table, colID)
	d.Removed = true
}

// RecordColumnRenamed moves a column delta to its new id within table.
func (s *Summary) RecordColumnRenamed(table, oldColID, newColID string) {
	d := s.columnDelta(table, oldColID)
	delete(s.columnDeltas, colDeltaKey(table, oldColID))
	d.Renames = append(d.Renames, newColID)
	s.columnDeltas[colDeltaKey(table, newColID)] = d
}

func (s *Summary) columnDelta(table, colID string) *LabelDelta {
	key := colDeltaKey(table, colID)
	d, ok := s.columnDeltas[key]
	if !ok {
		d = &LabelDelta{Renames: []string{colID}}
		s.columnDeltas[key] = d
	}
	return d
}

// TableDeltas returns the table label deltas keyed by latest name.
func (s *Summary) TableDeltas() map[string]*LabelDelta { return s.tableDeltas }

// ColumnDeltas returns the column label deltas keyed by "table\x1fLatestColID".
func (s *Summary) ColumnDeltas() map[string]*LabelDelta { return s.columnDeltas }

// bulkGroup accumulates one table's changed rows for BulkUpdateRecord
// compression, rows kept in first-seen order for determinism.
type bulkGroup struct {
	rowOrder []int64
	rowSeen  map[int64]bool
	cols     map[string]map[int64]interface{}
	colOrder []string
}

func newBulkGroup() *bulkGroup {
	return &bulkGroup{rowSeen: make(map[int64]bool), cols: make(map[string]map[int64]interface{})}
}

func (g *bulkGroup) add(row int64, col string, val interface{}) {
	if !g.rowSeen[row] {
		g.rowSeen[row] = true
		g.rowOrder = append(g.rowOrder, row)
	}
	m, ok := g.cols[col]
	if !ok {
		m = make(map[int64]interface{})
		g.cols[col] = m
		g.colOrder = append(g.colOrder, col)
	}
	m[row] = val
}

func (g *bulkGroup) toAction(table string) action.Action {
	sort.Slice(g.rowOrder, func(i, j int) bool { return g.rowOrder[i] < g.rowOrder[j] })
	if len(g.rowOrder) == 1 {
		row := g.rowOrder[0]
		values := make(map[string]interface{}, len(g.colOrder))
		for _, col := range g.colOrder {
			if v, ok := g.cols[col][row]; ok {
				values[col] = v
			}
		}
		return &action.UpdateRecord{Table: table, RowID: row, Values: values}
	}
	values := make(action.ColumnValues, len(g.colOrder))
	for _, col := range g.colOrder {
		slice := make([]interface{}, len(g.rowOrder))
		for i, row := range g.rowOrder {
			slice[i] = g.cols[col][row]
		}
		values[col] = slice
	}
	return &action.BulkUpdateRecord{Table: table, RowIDs: g.rowOrder, Values: values}
}

// compress builds bulk update actions from every cell that include accepts,
// skipping cells whose before/after are encoding_equal (§4.8 "filters out
// cells where before and after are encoding-equal").
func (s *Summary) compress(pick func(c *cellChange, val bool) interface{}, include func(c *cellChange) bool) []action.Action {
	type ordered struct {
		key CellKey
		c   *cellChange
	}
	var changed []ordered
	for key, c := range s.cells {
		if !include(c) {
			continue
		}
		if !c.hasBefor {
			continue
		}
		if cellvalue.EncodingEqual(c.before, c.after) {
			continue
		}
		changed = append(changed, ordered{key, c})
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i].c.seq < changed[j].c.seq })

	groups := make(map[string]*bulkGroup)
	var tableOrder []string
	for _, o := range changed {
		g, ok := groups[o.key.Table]
		if !ok {
			g = newBulkGroup()
			groups[o.key.Table] = g
			tableOrder = append(tableOrder, o.key.Table)
		}
		g.add(o.key.Row, o.key.Col, pick(o.c, true))
	}

	out := make([]action.Action, 0, len(tableOrder))
	for _, t := range tableOrder {
		out = append(out, groups[t].toAction(t))
	}
	return out
}

// StoredActions returns the bulk "after" actions to append to the stored
// action list: every directly-mutated cell (not calc-derived) that ended
// with a different value than it started with.
func (s *Summary) StoredActions() []action.Action {
	return s.compress(func(c *cellChange, after bool) interface{} { return c.after }, func(c *cellChange) bool { return !c.isCalc })
}

// CalcActions returns the bulk "after" actions representing formula
// recomputation results (§5 "Calc actions are emitted after all data
// actions... in the order the dependency graph yields"; this compression
// step happens after that ordering is already respected by the caller,
// since RecordCell preserves first-seen sequence).
func (s *Summary) CalcActions() []action.Action {
	return s.compress(func(c *cellChange, after bool) interface{} { return c.after }, func(c *cellChange) bool { return c.isCalc })
}

// UndoActions returns the inverse "before" actions for every changed cell
// (direct or calc), used to build the undo bundle (§5 "Inverse actions are
// accumulated in reverse order of application" — the caller is responsible
// for combining this with explicit structural-action inverses and overall
// batch ordering; this method only handles the per-cell data half).
func (s *Summary) UndoActions() []action.Action {
	return s.compress(func(c *cellChange, after bool) interface{} { return c.before }, func(c *cellChange) bool { return true })
}

// IsEmpty reports whether no cell ended with a value different from its
// start (§8 "Undo completeness": apply(a); apply(undo(a)) must net to an
// empty summary).
func (s *Summary) IsEmpty() bool {
	for _, c := range s.cells {
		if !cellvalue.EncodingEqual(c.before, c.after) {
			return false
		}
	}
	for _, d := range s.tableDeltas {
		if d.Created || d.Removed {
			return false
		}
	}
	for _, d := range s.columnDeltas {
		if d.Created || d.Removed {
			return false
		}
	}
	return true
}

// String renders a compact human-readable summary, useful for debug logs.
func (s *Summary) String() string {
	return fmt.Sprintf("actionsummary{cells=%d tables=%d cols=%d}", len(s.cells), len(s.tableDeltas), len(s.columnDeltas))
}
