package engine

import (
	"github.com/kasuganosora/gridengine/pkg/actionsummary"
	"github.com/kasuganosora/gridengine/pkg/cellvalue"
	"github.com/kasuganosora/gridengine/pkg/depgraph"
)

// Calculate drains the dependency graph's schedule to a fixed point (§4.4):
// repeatedly pops one (node, rows) pair and recomputes every row, which may
// itself schedule further work through newly-recorded dependency edges.
// sum, if non-nil, records every changed formula cell as a calc action
// (§4.8 "calc actions").
func (d *Document) Calculate(sum *actionsummary.Summary) {
	d.curSummary = sum
	defer func() { d.curSummary = nil }()
	for {
		node, rows, ok := d.graph.DrainOne()
		if !ok {
			return
		}
		for _, row := range rows {
			d.computeCell(node, row)
		}
	}
}

// ensureComputed recomputes (table, col, row) synchronously if it has never
// been computed, or if it's still marked stale in the schedule — handling
// demand-driven evaluation order within a single recalculation pass (a
// formula reading another formula column that hasn't run yet this batch).
func (d *Document) ensureComputed(tableID, colID string, row int64) {
	tbl := d.Table(tableID)
	if tbl == nil {
		return
	}
	col := tbl.Column(colID)
	if col == nil || !col.IsFormula {
		return
	}
	node := depgraph.Node{TableID: tableID, ColID: colID}
	if col.IsSet(row) && !d.graph.IsScheduled(node) {
		return
	}
	d.computeCell(node, row)
}

// computeCell runs node's compiled formula for row, pushing it onto the
// active stack for cycle detection (§4.3), clearing and re-recording its
// dependency edges, and storing the result verbatim (including a
// *cellvalue.RaisedException on error, per §4.3 "Partial-failure
// semantics").
func (d *Document) computeCell(node depgraph.Node, row int64) {
	tbl := d.Table(node.TableID)
	if tbl == nil {
		return
	}
	col := tbl.Column(node.ColID)
	if col == nil {
		return
	}

	if d.active.IsActive(node, row) {
		col.Set(row, cellvalue.CircularRefError())
		return
	}
	if d.active.Depth() >= d.Cfg.Recalc.MaxStackDepth {
		col.Set(row, &cellvalue.RaisedException{Name: "RecursionError", Message: "dependency chain too deep"})
		return
	}
	if !d.active.Push(node, row) {
		return
	}
	defer d.active.Pop()

	d.graph.ClearDependencies(node)
	d.clearLookupConsumers(node, row)
	d.pushActive(node, row)
	defer d.popActive()

	tm := d.tableModule(node.TableID)
	var result interface{}
	var err error
	if tm != nil {
		if cf, ok := tm.Formulas[node.ColID]; ok {
			result, err = cf.Run(d)
		}
	}

	before := col.Get(row)
	var after interface{}
	if err != nil {
		after = raiseToException(err)
	} else {
		after = result
	}
	col.Set(row, after)

	if d.curSummary != nil && !cellvalue.EncodingEqual(before, after) {
		d.curSummary.RecordCell(node.TableID, node.ColID, row, before, after, true)
	}
	d.updateLookupIndexesForWrite(node.TableID, node.ColID, row)
}

// raiseToException normalizes a Go error returned from a formula run into
// the *cellvalue.RaisedException stored in the cell (§4.3, §7).
func raiseToException(err error) *cellvalue.RaisedException {
	switch e := err.(type) {
	case *cellvalue.RaisedException:
		return e
	case *cellvalue.CellError:
		return e.Inner
	default:
		return &cellvalue.RaisedException{Name: "Error", Message: e.Error()}
	}
}
