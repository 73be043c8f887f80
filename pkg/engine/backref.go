package engine

import (
	"fmt"
	"strings"

	"github.com/kasuganosora/gridengine/pkg/cellvalue"
	"github.com/kasuganosora/gridengine/pkg/depgraph"
	"github.com/kasuganosora/gridengine/pkg/lookup"
	"github.com/kasuganosora/gridengine/pkg/table"
	"github.com/kasuganosora/gridengine/pkg/twowaymap"
)

// cellRef identifies one (node, row) formula cell, used as the comparable
// value type for the lookup-consumer registry below.
type cellRef struct {
	Node depgraph.Node
	Row  int64
}

// cellRelation is a dependency-graph edge relation bound to one specific
// (dependency row -> dependent row) pairing, recorded the moment a formula
// reads another row's attribute (§4.3, §4.4 step 3). Unlike
// relation.Reference/relation.ReferenceList (which answer "what does this
// row's ref column currently point at", used below to maintain the lookup
// index and by useraction's back-reference scans) this answers the inverse
// question invalidation actually needs: "did the row that just changed
// affect this specific dependent cell".
type cellRelation struct {
	table, col string
	target     int64
	source     int64
}

func (r *cellRelation) Key() string {
	return fmt.Sprintf("cell:%s.%s@%d<-@%d", r.table, r.col, r.target, r.source)
}

func (r *cellRelation) Map(row int64) []int64 {
	if row == r.target {
		return []int64{r.source}
	}
	return nil
}

// recordCellDependency registers that the currently-active formula cell
// reads (table, col) at row. A no-op outside of formula evaluation (e.g.
// queries issued directly by the action executor).
func (d *Document) recordCellDependency(table, col string, row int64) {
	node, activeRow, ok := d.activeCell()
	if !ok {
		return
	}
	d.graph.AddEdge(node, depgraph.Node{TableID: table, ColID: col}, &cellRelation{table: table, col: col, target: row, source: activeRow})
}

func (d *Document) activeCell() (depgraph.Node, int64, bool) {
	if len(d.curStack) == 0 {
		return depgraph.Node{}, 0, false
	}
	return d.curStack[len(d.curStack)-1], d.curRows[len(d.curRows)-1], true
}

func (d *Document) pushActive(node depgraph.Node, row int64) {
	d.curStack = append(d.curStack, node)
	d.curRows = append(d.curRows, row)
	d.recStack = append(d.recStack, d.runRec)
	d.tblStack = append(d.tblStack, d.runTable)
	d.runRec = d.NewRecord(node.TableID, row)
	d.runTable = d.NewTableProxy(node.TableID)
}

func (d *Document) popActive() {
	d.curStack = d.curStack[:len(d.curStack)-1]
	d.curRows = d.curRows[:len(d.curRows)-1]
	n := len(d.recStack) - 1
	d.runRec, d.runTable = d.recStack[n], d.tblStack[n]
	d.recStack = d.recStack[:n]
	d.tblStack = d.tblStack[:n]
}

// indexRegistry holds the lazily-built lookup indexes used by
// Table.lookupOne/lookupRecords (§4.2), plus the consumer registry that
// lets a key-level change (a row entering or leaving a key, which a single
// cellRelation edge cannot express) reschedule every formula that queried
// that key.
type indexRegistry struct {
	indexes   map[string]*lookup.Index
	order     []string // creation order, so maintenance walks are deterministic (§8)

	// containsIndexes holds the §4.2 "contains" variant, built over a single
	// ChoiceList/RefList key column, selected by lookupRecords instead of a
	// plain equality Index when the query is a single list element.
	containsIndexes map[string]*lookup.ContainsIndex
	containsOrder   []string

	consumers *twowaymap.TwoWayMap[string, cellRef]
}

func newIndexRegistry() *indexRegistry {
	return &indexRegistry{
		indexes:         make(map[string]*lookup.Index),
		containsIndexes: make(map[string]*lookup.ContainsIndex),
		consumers:       twowaymap.New[string, cellRef](twowaymap.BinSet, twowaymap.BinSet),
	}
}

func indexName(tableID string, keyCols []string) string {
	return tableID + "\x1f" + strings.Join(keyCols, ",")
}

// containsIndexName names a contains-index, distinct from any equality
// index name (which never starts with this prefix, since indexName always
// begins with a table id) so the two namespaces can't collide in the shared
// consumers registry.
func containsIndexName(tableID, keyCol string) string {
	return "\x1fcontains\x1f" + tableID + "\x1f" + keyCol
}

// isListColumn reports whether tableID.colID holds a ChoiceList/RefList
// value, the column kinds §4.2's contains lookup applies to.
func (d *Document) isListColumn(tableID, colID string) bool {
	tbl := d.Table(tableID)
	if tbl == nil {
		return false
	}
	col := tbl.Column(colID)
	if col == nil {
		return false
	}
	switch col.Typ.Kind() {
	case cellvalue.KindChoiceList, cellvalue.KindRefList:
		return true
	default:
		return false
	}
}

// containsIndexFor returns the contains-lookup index over (tableID, keyCol)
// — keyCol must be a ChoiceList/RefList column — building and populating it
// from current table contents on first use.
func (d *Document) containsIndexFor(tableID, keyCol string) *lookup.ContainsIndex {
	name := containsIndexName(tableID, keyCol)
	if idx, ok := d.indexes.containsIndexes[name]; ok {
		return idx
	}
	idx := lookup.NewContainsIndex(tableID, keyCol, false)
	tbl := d.Table(tableID)
	if tbl != nil {
		col := tbl.Column(keyCol)
		if col != nil {
			for _, row := range tbl.RowIDs() {
				idx.Update(row, listElements(col.Get(row)))
			}
		}
	}
	d.indexes.containsIndexes[name] = idx
	d.indexes.containsOrder = append(d.indexes.containsOrder, name)
	return idx
}

// listElements converts a stored ChoiceList/RefList cell value into the
// element slice ContainsIndex.Update expects.
func listElements(v interface{}) []interface{} {
	switch lv := v.(type) {
	case cellvalue.ChoiceList:
		out := make([]interface{}, len(lv))
		for i, s := range lv {
			out[i] = s
		}
		return out
	case cellvalue.RefList:
		out := make([]interface{}, len(lv))
		for i, id := range lv {
			out[i] = cellvalue.RefValue(id)
		}
		return out
	default:
		return nil
	}
}

// indexFor returns the lookup index over (tableID, keyCols), building and
// populating it from current table contents on first use.
func (d *Document) indexFor(tableID string, keyCols []string) *lookup.Index {
	name := indexName(tableID, keyCols)
	if idx, ok := d.indexes.indexes[name]; ok {
		return idx
	}
	idx := lookup.NewIndex(tableID, keyCols)
	tbl := d.Table(tableID)
	if tbl != nil {
		for _, row := range tbl.RowIDs() {
			idx.Insert(row, d.keyForRow(tbl, keyCols, row))
		}
	}
	d.indexes.indexes[name] = idx
	d.indexes.order = append(d.indexes.order, name)
	return idx
}

func (d *Document) keyForRow(tbl *table.Table, keyCols []string, row int64) lookup.Key {
	vals := make([]interface{}, len(keyCols))
	for i, c := range keyCols {
		col := tbl.Column(c)
		if col == nil {
			vals[i] = nil
			continue
		}
		vals[i] = col.Get(row)
	}
	return lookup.MakeKey(vals...)
}

// recordLookupDependency registers that the active formula cell queried
// idxName for key, so a later dirtyLookupKey(idxName, key) reschedules it.
func (d *Document) recordLookupDependency(idxName string, key lookup.Key) {
	node, row, ok := d.activeCell()
	if !ok {
		return
	}
	_ = d.indexes.consumers.Insert(idxName+"#"+string(key), cellRef{Node: node, Row: row})
}

// clearLookupConsumers drops every lookup-key registration for (node, row),
// called in lockstep with graph.ClearDependencies at the start of a
// recompute (§4.4 step 2).
func (d *Document) clearLookupConsumers(node depgraph.Node, row int64) {
	d.indexes.consumers.RemoveRight(cellRef{Node: node, Row: row})
}

// dirtyLookupKey reschedules every formula currently registered against
// idxName/key (§4.2: "mark relations for old and new keys as dirty").
func (d *Document) dirtyLookupKey(idxName string, key lookup.Key) {
	for _, ref := range d.indexes.consumers.LookupLeft(idxName + "#" + string(key)) {
		d.graph.Schedule(ref.Node, ref.Row)
	}
}

// updateLookupIndexesForWrite runs Index.Update for every index built over
// tableID that includes colID among its key columns, dirtying old and new
// keys (§4.2). Called whenever a plain data column write lands.
func (d *Document) updateLookupIndexesForWrite(tableID, colID string, row int64) {
	tbl := d.Table(tableID)
	if tbl == nil {
		return
	}
	for _, name := range d.indexes.order {
		idx := d.indexes.indexes[name]
		if idx.TableID != tableID || !containsStr(idx.KeyCols, colID) {
			continue
		}
		newKey := d.keyForRow(tbl, idx.KeyCols, row)
		oldKey, had := idx.Update(row, newKey)
		if had && oldKey != newKey {
			d.dirtyLookupKey(name, oldKey)
		}
		d.dirtyLookupKey(name, newKey)
	}
	for _, name := range d.indexes.containsOrder {
		cidx := d.indexes.containsIndexes[name]
		if cidx.TableID != tableID || cidx.KeyCol != colID {
			continue
		}
		col := tbl.Column(colID)
		if col == nil {
			continue
		}
		oldKeys := cidx.KeysForRow(row)
		cidx.Update(row, listElements(col.Get(row)))
		d.dirtyContainsKeys(name, oldKeys, cidx.KeysForRow(row))
	}
}

// dirtyContainsKeys reschedules consumers of every key that entered or left
// a row's contains-index membership, deduping keys present in both sets.
func (d *Document) dirtyContainsKeys(name string, oldKeys, newKeys []lookup.Key) {
	seen := make(map[lookup.Key]bool, len(oldKeys)+len(newKeys))
	for _, k := range oldKeys {
		if !seen[k] {
			seen[k] = true
			d.dirtyLookupKey(name, k)
		}
	}
	for _, k := range newKeys {
		if !seen[k] {
			seen[k] = true
			d.dirtyLookupKey(name, k)
		}
	}
}

// dropRowFromIndexes removes rowID's entries from every index over
// tableID, dirtying its old key (§4.2 "on remove").
func (d *Document) dropRowFromIndexes(tableID string, row int64) {
	for _, name := range d.indexes.order {
		idx := d.indexes.indexes[name]
		if idx.TableID != tableID {
			continue
		}
		if oldKey, had := idx.Remove(row); had {
			d.dirtyLookupKey(name, oldKey)
		}
	}
	for _, name := range d.indexes.containsOrder {
		cidx := d.indexes.containsIndexes[name]
		if cidx.TableID != tableID {
			continue
		}
		oldKeys := cidx.KeysForRow(row)
		cidx.Remove(row)
		for _, k := range oldKeys {
			d.dirtyLookupKey(name, k)
		}
	}
}

// insertRowIntoIndexes adds a freshly added row to every index over
// tableID, dirtying its new key (§4.2 "on add").
func (d *Document) insertRowIntoIndexes(tableID string, row int64) {
	tbl := d.Table(tableID)
	if tbl == nil {
		return
	}
	for _, name := range d.indexes.order {
		idx := d.indexes.indexes[name]
		if idx.TableID != tableID {
			continue
		}
		key := d.keyForRow(tbl, idx.KeyCols, row)
		idx.Insert(row, key)
		d.dirtyLookupKey(name, key)
	}
	for _, name := range d.indexes.containsOrder {
		cidx := d.indexes.containsIndexes[name]
		if cidx.TableID != tableID {
			continue
		}
		col := tbl.Column(cidx.KeyCol)
		if col == nil {
			continue
		}
		cidx.Update(row, listElements(col.Get(row)))
		for _, k := range cidx.KeysForRow(row) {
			d.dirtyLookupKey(name, k)
		}
	}
}

func containsStr(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
