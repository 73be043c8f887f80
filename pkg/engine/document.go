// Package engine implements spec.md §4.4 (the recalculation loop) and §4.7
// (the data-action executor): it owns the live tables, the schema, the
// dependency graph, the lookup indexes, and the compiled formula module,
// and is the sole place that mutates document state.
package engine

import (
	"fmt"
	"sort"

	"github.com/kasuganosora/gridengine/pkg/action"
	"github.com/kasuganosora/gridengine/pkg/actionsummary"
	"github.com/kasuganosora/gridengine/pkg/cellvalue"
	"github.com/kasuganosora/gridengine/pkg/codegen"
	"github.com/kasuganosora/gridengine/pkg/column"
	"github.com/kasuganosora/gridengine/pkg/config"
	"github.com/kasuganosora/gridengine/pkg/depgraph"
	"github.com/kasuganosora/gridengine/pkg/enginelog"
	"github.com/kasuganosora/gridengine/pkg/table"
)

// Document is one in-memory document instance: the engine handle passed
// explicitly everywhere instead of a process-wide singleton (§9 "Global
// state").
type Document struct {
	Cfg *config.Config
	Log *enginelog.Logger

	schema *table.Schema
	tables map[string]*table.Table

	graph  *depgraph.Graph
	active *depgraph.ActiveStack

	cache  *codegen.Cache
	module *codegen.Module

	indexes *indexRegistry

	// curStack/curRows track the cell currently being recomputed, for GetAttr
	// to know which node dependency edges should be attached to (§4.4 step 3).
	// runRec/runTable mirror the top entry as the `rec`/`table` values a
	// formula body's bare identifiers resolve to.
	curStack  []depgraph.Node
	curRows   []int64
	recStack []interface{}
	tblStack []interface{}
	runRec   interface{}
	runTable interface{}

	// curSummary, when non-nil, receives every formula cell computeCell
	// changes during Calculate, as a calc action (§4.8).
	curSummary *actionsummary.Summary
}

// New constructs an empty document using cfg (or config.Default() if nil).
func New(cfg *config.Config) *Document {
	if cfg == nil {
		cfg = config.Default()
	}
	d := &Document{
		Cfg:     cfg,
		Log:     enginelog.New(nil, cfg.Log.Level, cfg.Log.Prefix),
		schema:  table.NewSchema(),
		tables:  make(map[string]*table.Table),
		graph:   depgraph.New(),
		active:  depgraph.NewActiveStack(),
		cache:   codegen.NewCache(),
		indexes: newIndexRegistry(),
	}
	return d
}

// Table returns the live table, or nil.
func (d *Document) Table(tableID string) *table.Table { return d.tables[tableID] }

// Schema returns the document-wide schema.
func (d *Document) Schema() *table.Schema { return d.schema }

// TableIDs returns every live table id, in schema order.
func (d *Document) TableIDs() []string { return d.schema.TableIDs() }

// rebuildModule regenerates the compiled formula module from the current
// schema (§4.6 "rebuilds after any schema change"), reusing cache entries
// for unchanged formula sources.
func (d *Document) rebuildModule() error {
	mod, err := codegen.Generate(d.schema, d.cache)
	d.module = mod
	if err != nil {
		d.Log.Action().Warnf("schema compile error: %v", err)
	}
	return nil
}

func (d *Document) tableModule(tableID string) *codegen.TableModule {
	if d.module == nil {
		return nil
	}
	return d.module.Tables[tableID]
}

// createTable adds both the schema and live table entries for a new
// table, in the order AddTable/RemoveTable data actions expect.
func (d *Document) createTable(tableID string, cols []action.ColumnDef) error {
	if _, ok := d.schema.Table(tableID); ok {
		return fmt.Errorf("engine: table %s already exists", tableID)
	}
	spec := table.NewTableSpec(tableID)
	tbl := table.New(tableID)
	for _, cd := range cols {
		typ, err := cd.Spec.BuildType()
		if err != nil {
			return fmt.Errorf("engine: table %s column %s: %w", tableID, cd.ColID, err)
		}
		spec.SetColumn(cd.ColID, table.ColumnSpec{
			Type: typ, IsFormula: cd.Spec.IsFormula, Formula: cd.Spec.Formula,
			DefaultFormula: cd.Spec.DefaultFormula, IsPrivate: cd.Spec.IsPrivate,
		})
		col, err := tbl.AddColumn(cd.ColID, typ)
		if err != nil {
			return err
		}
		col.IsFormula = cd.Spec.IsFormula
		col.FormulaSource = cd.Spec.Formula
		col.DefaultFormula = cd.Spec.DefaultFormula
		col.IsPrivate = cd.Spec.IsPrivate
	}
	d.schema.AddTable(spec)
	d.tables[tableID] = tbl
	return d.rebuildModule()
}

func (d *Document) removeTable(tableID string) error {
	tbl, ok := d.tables[tableID]
	if !ok {
		return fmt.Errorf("engine: unknown table %s", tableID)
	}
	// Retype every column in every other table that referenced this one
	// (§3 invariant "Deleting a table removes all columns referencing it
	// through Ref/RefList; such columns are converted to Int").
	for _, otherID := range d.schema.TableIDs() {
		if otherID == tableID {
			continue
		}
		otherSpec, _ := d.schema.Table(otherID)
		otherTbl := d.tables[otherID]
		for _, colID := range otherSpec.ColumnIDs() {
			spec, _ := otherSpec.Column(colID)
			target := refTarget(spec.Type)
			if target != tableID {
				continue
			}
			d.retypeReferenceToInt(otherTbl, otherSpec, colID)
		}
	}
	delete(d.tables, tableID)
	d.schema.RemoveTable(tableID)
	_ = tbl
	return d.rebuildModule()
}

// refTarget returns the Ref/RefList target table id of typ, or "".
func refTarget(typ cellvalue.Type) string {
	if typ == nil {
		return ""
	}
	if t, ok := typ.(interface{ Target() string }); ok {
		switch typ.Kind() {
		case cellvalue.KindRef, cellvalue.KindRefList:
			return t.Target()
		}
	}
	return ""
}

// retypeReferenceToInt converts a Ref/RefList column whose target table
// was removed into an Int column, backfilling with the raw row id that was
// stored (§3 invariant, §8 scenario 6's simpler sibling: scenario 6's
// visible-column backfill is handled by useraction's RemoveTable, which
// retypes such columns itself around the table removal).
func (d *Document) retypeReferenceToInt(tbl *table.Table, spec *table.TableSpec, colID string) {
	oldCol := tbl.Column(colID)
	newTyp := cellvalue.NewInt()
	newCol := column.New(tbl.TableID, colID, newTyp)
	for _, row := range oldCol.SetRows() {
		v := oldCol.Get(row)
		switch rv := v.(type) {
		case cellvalue.RefValue:
			newCol.Set(row, int64(rv))
		case cellvalue.RefList:
			if len(rv) > 0 {
				newCol.Set(row, int64(rv[0]))
			}
		}
	}
	newCol.GrowTo(tbl.Column(colID).Len())
	d.replaceColumn(tbl, spec, colID, newCol, newTyp)
}

func (d *Document) replaceColumn(tbl *table.Table, spec *table.TableSpec, colID string, newCol *column.Column, newTyp cellvalue.Type) {
	tbl.AdoptColumn(colID, newCol)
	s, _ := spec.Column(colID)
	s.Type = newTyp
	spec.SetColumn(colID, s)
}

// rowIDsSorted is a small helper used by several action handlers.
func rowIDsSorted(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
