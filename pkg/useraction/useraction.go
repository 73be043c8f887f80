// Package useraction implements spec.md §4.9: the high-level user-facing
// action translator sitting above pkg/engine's data actions. A user action
// (AddRecord, UpdateRecord, RenameColumn, RemoveTable, ...) expands into
// one or more data actions plus, for schema edits, a rewrite pass over
// every affected formula's source text — the same split the retrieved
// source shows between a high-level "user action" layer and the
// lower-level doc actions docmodel.py/docactions.py apply, even though
// the user-action layer's own module wasn't among the retrieved files:
// ReferenceLookup resolution is grounded on spec.md §4's description of
// it, colId/label sanitization on import_actions.py's
// `identifiers.pick_col_ident` call site, and rename propagation on
// codebuilder.py's rewrite-on-rename behavior already implemented in
// pkg/formula.
package useraction

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kasuganosora/gridengine/pkg/action"
	"github.com/kasuganosora/gridengine/pkg/actionsummary"
	"github.com/kasuganosora/gridengine/pkg/cellvalue"
	"github.com/kasuganosora/gridengine/pkg/docmodel"
	"github.com/kasuganosora/gridengine/pkg/engine"
	"github.com/kasuganosora/gridengine/pkg/formula"
)

// UserActions translates user-facing intents into one or more data actions
// against doc, keeping the few pieces of bookkeeping (configured visible
// columns for ReferenceLookup resolution) that data actions alone don't
// carry.
type UserActions struct {
	doc *engine.Document
	dm  *docmodel.DocModel

	// visibleCols[table][col] names the column of Target(col) used to
	// resolve a ReferenceLookupInput supplied for table.col; "" means
	// resolve against the raw row id instead (§4 "the column's configured
	// visible column or id").
	visibleCols map[string]map[string]string
}

// New wraps doc with dm as its metadata facade.
func New(doc *engine.Document, dm *docmodel.DocModel) *UserActions {
	return &UserActions{doc: doc, dm: dm, visibleCols: make(map[string]map[string]string)}
}

// SetVisibleColumn records that table.col (a Ref/RefList column) resolves
// ReferenceLookup input against visibleColID in its target table.
func (u *UserActions) SetVisibleColumn(table, col, visibleColID string) {
	m, ok := u.visibleCols[table]
	if !ok {
		m = make(map[string]string)
		u.visibleCols[table] = m
	}
	m[col] = visibleColID
}

// AddRecord inserts one record, resolving any ReferenceLookup inputs first.
func (u *UserActions) AddRecord(tableID string, colValues map[string]interface{}, sum *actionsummary.Summary) (int64, error) {
	resolved, err := u.resolveLookups(tableID, colValues)
	if err != nil {
		return 0, err
	}
	return u.dm.Add(tableID, resolved, sum)
}

// BulkAddRecord inserts count records.
func (u *UserActions) BulkAddRecord(tableID string, colValues action.ColumnValues, count int, sum *actionsummary.Summary) ([]int64, error) {
	resolved, err := u.resolveLookupsBulk(tableID, colValues)
	if err != nil {
		return nil, err
	}
	return u.dm.BulkAdd(tableID, resolved, count, sum)
}

// UpdateRecord resolves ReferenceLookup inputs against each column's
// configured visible column, then writes the record (§4.9 "UpdateRecord:
// for each column, resolve ReferenceLookup inputs ... then update").
func (u *UserActions) UpdateRecord(tableID string, rowID int64, colValues map[string]interface{}, sum *actionsummary.Summary) error {
	resolved, err := u.resolveLookups(tableID, colValues)
	if err != nil {
		return err
	}
	return u.dm.Update(tableID, rowID, resolved, sum)
}

// RemoveRecord deletes one record, first clearing or shrinking every
// Ref/RefList column elsewhere in the document that points at it (§4.9
// "before removal, ask every back-referencing column for updates that
// clear or shrink lists"), so no stored reference is left dangling (§3
// invariant: every Ref/RefList value "either resolves to an existing row
// or is 0").
func (u *UserActions) RemoveRecord(tableID string, rowID int64, sum *actionsummary.Summary) error {
	if err := u.clearBackReferences(tableID, []int64{rowID}, sum); err != nil {
		return err
	}
	return u.dm.Remove(tableID, rowID, sum)
}

// BulkRemoveRecord deletes many records in one action, clearing back
// references the same way RemoveRecord does.
func (u *UserActions) BulkRemoveRecord(tableID string, rowIDs []int64, sum *actionsummary.Summary) error {
	if err := u.clearBackReferences(tableID, rowIDs, sum); err != nil {
		return err
	}
	_, err := u.doc.ApplyDataAction(&action.BulkRemoveRecord{Table: tableID, RowIDs: rowIDs}, sum)
	return err
}

// clearBackReferences scans every other table's non-formula Ref/RefList
// columns targeting tableID and, for each row that references one of
// removedRows, resets a Ref to 0 or drops the removed ids from a RefList
// (§4.9, §3). Formula columns are skipped: their values are recomputed, not
// directly mutated.
func (u *UserActions) clearBackReferences(tableID string, removedRows []int64, sum *actionsummary.Summary) error {
	if len(removedRows) == 0 {
		return nil
	}
	removed := make(map[int64]bool, len(removedRows))
	for _, r := range removedRows {
		removed[r] = true
	}

	schema := u.doc.Schema()
	for _, otherID := range schema.TableIDs() {
		otherSpec, ok := schema.Table(otherID)
		if !ok {
			continue
		}
		otherTbl := u.doc.Table(otherID)
		if otherTbl == nil {
			continue
		}
		for _, colID := range otherSpec.ColumnIDs() {
			colSpec, ok := otherSpec.Column(colID)
			if !ok || colSpec.IsFormula || refTarget(colSpec.Type) != tableID {
				continue
			}
			col := otherTbl.Column(colID)
			var rows []int64
			var values []interface{}
			for _, row := range otherTbl.RowIDs() {
				switch rv := col.Get(row).(type) {
				case cellvalue.RefValue:
					if removed[int64(rv)] {
						rows = append(rows, row)
						values = append(values, cellvalue.RefValue(0))
					}
				case cellvalue.RefList:
					if !refListHitsRemoved(rv, removed) {
						continue
					}
					kept := make(cellvalue.RefList, 0, len(rv))
					for _, id := range rv {
						if !removed[id] {
							kept = append(kept, id)
						}
					}
					rows = append(rows, row)
					values = append(values, kept)
				}
			}
			if len(rows) == 0 {
				continue
			}
			colValues := action.ColumnValues{colID: values}
			if _, err := u.doc.ApplyDataAction(&action.BulkUpdateRecord{Table: otherID, RowIDs: rows, Values: colValues}, sum); err != nil {
				return err
			}
		}
	}
	return nil
}

func refListHitsRemoved(ids cellvalue.RefList, removed map[int64]bool) bool {
	for _, id := range ids {
		if removed[id] {
			return true
		}
	}
	return false
}

func (u *UserActions) resolveLookups(tableID string, colValues map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(colValues))
	for col, v := range colValues {
		rv, err := u.resolveOne(tableID, col, v)
		if err != nil {
			return nil, err
		}
		out[col] = rv
	}
	return out, nil
}

func (u *UserActions) resolveLookupsBulk(tableID string, colValues action.ColumnValues) (action.ColumnValues, error) {
	out := make(action.ColumnValues, len(colValues))
	for col, slice := range colValues {
		resolved := make([]interface{}, len(slice))
		for i, v := range slice {
			rv, err := u.resolveOne(tableID, col, v)
			if err != nil {
				return nil, err
			}
			resolved[i] = rv
		}
		out[col] = resolved
	}
	return out, nil
}

func (u *UserActions) resolveOne(tableID, col string, v interface{}) (interface{}, error) {
	li, ok := v.(cellvalue.ReferenceLookupInput)
	if !ok {
		return v, nil
	}
	colT := u.doc.Table(tableID)
	if colT == nil {
		return nil, fmt.Errorf("useraction: unknown table %s", tableID)
	}
	c := colT.Column(col)
	if c == nil {
		return nil, fmt.Errorf("useraction: table %s has no column %s", tableID, col)
	}
	target := refTarget(c.Typ)
	if target == "" {
		return nil, fmt.Errorf("useraction: %s.%s is not a reference column", tableID, col)
	}
	visibleCol := u.visibleCols[tableID][col]
	row, found := u.findByVisibleValue(target, visibleCol, li.Value)
	if found {
		return cellvalue.RefValue(row), nil
	}
	if create, _ := li.Options["create"].(bool); create {
		values := map[string]interface{}{}
		if visibleCol != "" {
			values[visibleCol] = li.Value
		}
		newRow, err := u.dm.Add(target, values, nil)
		if err != nil {
			return nil, err
		}
		return cellvalue.RefValue(newRow), nil
	}
	return cellvalue.RefValue(0), nil
}

func (u *UserActions) findByVisibleValue(target, visibleCol string, want interface{}) (int64, bool) {
	tbl := u.doc.Table(target)
	if tbl == nil {
		return 0, false
	}
	if visibleCol == "" {
		switch n := want.(type) {
		case int64:
			if tbl.HasRow(n) {
				return n, true
			}
		case float64:
			if tbl.HasRow(int64(n)) {
				return int64(n), true
			}
		case string:
			if id, err := strconv.ParseInt(n, 10, 64); err == nil && tbl.HasRow(id) {
				return id, true
			}
		}
		return 0, false
	}
	col := tbl.Column(visibleCol)
	if col == nil {
		return 0, false
	}
	for _, row := range tbl.RowIDs() {
		if col.Get(row) == want {
			return row, true
		}
	}
	return 0, false
}

// refTarget returns the Ref/RefList target table id of typ, or "" if typ
// isn't a reference type. Mirrors pkg/engine's unexported helper of the
// same name; duplicated here since useraction has no access to engine's
// internals and the logic is two lines.
func refTarget(typ cellvalue.Type) string {
	if typ == nil {
		return ""
	}
	t, ok := typ.(interface{ Target() string })
	if !ok {
		return ""
	}
	switch typ.Kind() {
	case cellvalue.KindRef, cellvalue.KindRefList:
		return t.Target()
	}
	return ""
}

// AddColumn adds colID to tableID. If colID is empty, colID is sanitized
// from label (§4.9 "colId/label tie enforcement"); untieFromLabel is not
// consulted.
func (u *UserActions) AddColumn(tableID, colID, label string, spec action.ColumnSpec, untieFromLabel bool, sum *actionsummary.Summary) (string, error) {
	if colID == "" {
		colID = SanitizeIdent(label)
	}
	colID = u.uniqueColID(tableID, colID)
	if _, err := u.doc.ApplyDataAction(&action.AddColumn{Table: tableID, ColID: colID, Spec: spec}, sum); err != nil {
		return "", err
	}
	return colID, nil
}

// ModifyColumn changes colID's type/formula in place.
func (u *UserActions) ModifyColumn(tableID, colID string, spec action.ColumnSpec, sum *actionsummary.Summary) error {
	_, err := u.doc.ApplyDataAction(&action.ModifyColumn{Table: tableID, ColID: colID, Spec: spec}, sum)
	return err
}

// RemoveColumn drops colID from tableID.
func (u *UserActions) RemoveColumn(tableID, colID string, sum *actionsummary.Summary) error {
	_, err := u.doc.ApplyDataAction(&action.RemoveColumn{Table: tableID, ColID: colID}, sum)
	return err
}

// RenameColumn renames tableID.oldColID to newColID and rewrites every
// formula in the document that refers to it (§4.9). The rewrite is
// deliberately document-wide rather than scoped to formulas that provably
// reach tableID: `$oldColID`/`.oldColID`/keyword-argument/sort-spec
// patterns are syntactically indistinguishable from an unrelated column
// that happens to share the name, so every formula is re-lexed and patched
// the same way pkg/formula.RenameColumn documents.
func (u *UserActions) RenameColumn(tableID, oldColID, newColID string, sum *actionsummary.Summary) error {
	if _, err := u.doc.ApplyDataAction(&action.RenameColumn{Table: tableID, OldColID: oldColID, NewColID: newColID}, sum); err != nil {
		return err
	}
	return u.rewriteFormulas(func(src string) (string, bool) {
		return formula.RenameColumn(src, oldColID, newColID)
	}, sum)
}

// RenameTable renames oldTable to newTable and rewrites every formula's
// bare table references.
func (u *UserActions) RenameTable(oldTable, newTable string, sum *actionsummary.Summary) error {
	if _, err := u.doc.ApplyDataAction(&action.RenameTable{OldTable: oldTable, NewTable: newTable}, sum); err != nil {
		return err
	}
	return u.rewriteFormulas(func(src string) (string, bool) {
		return formula.RenameTableRef(src, oldTable, newTable)
	}, sum)
}

// rewriteFormulas applies rewrite to every formula and default-formula
// source in the schema, issuing a ModifyColumn for each one actually
// changed.
func (u *UserActions) rewriteFormulas(rewrite func(string) (string, bool), sum *actionsummary.Summary) error {
	schema := u.doc.Schema()
	for _, tableID := range schema.TableIDs() {
		spec, _ := schema.Table(tableID)
		for _, colID := range spec.ColumnIDs() {
			colSpec, _ := spec.Column(colID)
			newFormula, changedF := rewrite(colSpec.Formula)
			newDefault, changedD := rewrite(colSpec.DefaultFormula)
			if !changedF && !changedD {
				continue
			}
			actSpec := action.ColumnSpec{
				Kind:           colSpec.Type.Kind(),
				Target:         refTarget(colSpec.Type),
				IsFormula:      colSpec.IsFormula,
				Formula:        newFormula,
				DefaultFormula: newDefault,
				IsPrivate:      colSpec.IsPrivate,
			}
			if ct, ok := colSpec.Type.(interface{ Choices() []string }); ok {
				actSpec.Choices = ct.Choices()
			}
			if tt, ok := colSpec.Type.(interface{ TZ() string }); ok {
				actSpec.TZ = tt.TZ()
			}
			if err := u.ModifyColumn(tableID, colID, actSpec, sum); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddTable creates a new table, sanitizing and uniquifying tableID
// (§4.9 "AddTable: unique id sanitization"). If tableID is empty a fresh
// id is minted from a uuid, since unlike a row id there is no numeric
// counter to fall back on for a table's external identifier.
func (u *UserActions) AddTable(tableID string, cols []action.ColumnDef, sum *actionsummary.Summary) (string, error) {
	if tableID == "" {
		tableID = "Table_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	} else {
		tableID = SanitizeIdent(tableID)
	}
	tableID = u.uniqueTableID(tableID)
	if _, err := u.doc.ApplyDataAction(&action.AddTable{Table: tableID, Columns: cols}, sum); err != nil {
		return "", err
	}
	return tableID, nil
}

// RemoveTable deletes tableID. Every other table's Ref/RefList column
// pointing at it is retyped to Int by pkg/engine automatically; if
// visibleCols names a visible column for table.col, RemoveTable instead
// backfills with that column's values and retypes to Text (§8 scenario 6,
// spec.md §3 "or to the target's visible-column type if one was
// configured").
func (u *UserActions) RemoveTable(tableID string, sum *actionsummary.Summary) error {
	type backfill struct {
		table, col string
		rows       []int64
		values     []interface{}
	}
	var pending []backfill
	schema := u.doc.Schema()
	for _, otherID := range schema.TableIDs() {
		if otherID == tableID {
			continue
		}
		cols, ok := u.visibleCols[otherID]
		if !ok {
			continue
		}
		otherSpec, _ := schema.Table(otherID)
		colIDs := make([]string, 0, len(cols))
		for colID := range cols {
			colIDs = append(colIDs, colID)
		}
		sort.Strings(colIDs) // deterministic action order, per §8 "Determinism"
		for _, colID := range colIDs {
			visibleCol := cols[colID]
			if visibleCol == "" {
				continue
			}
			colSpec, ok := otherSpec.Column(colID)
			if !ok || refTarget(colSpec.Type) != tableID {
				continue
			}
			srcTbl := u.doc.Table(tableID)
			refCol := u.doc.Table(otherID).Column(colID)
			visCol := srcTbl.Column(visibleCol)
			if visCol == nil {
				continue
			}
			var rows []int64
			var values []interface{}
			for _, row := range u.doc.Table(otherID).RowIDs() {
				rv, ok := refCol.Get(row).(cellvalue.RefValue)
				if !ok || rv == 0 {
					continue
				}
				rows = append(rows, row)
				values = append(values, visCol.Get(int64(rv)))
			}
			pending = append(pending, backfill{otherID, colID, rows, values})
		}
	}

	if _, err := u.doc.ApplyDataAction(&action.RemoveTable{Table: tableID}, sum); err != nil {
		return err
	}

	for _, b := range pending {
		if err := u.ModifyColumn(b.table, b.col, action.ColumnSpec{Kind: cellvalue.KindText}, sum); err != nil {
			return err
		}
		colValues := action.ColumnValues{b.col: b.values}
		if _, err := u.doc.ApplyDataAction(&action.BulkUpdateRecord{Table: b.table, RowIDs: b.rows, Values: colValues}, sum); err != nil {
			return err
		}
	}
	return nil
}

func (u *UserActions) uniqueTableID(base string) string {
	if u.doc.Table(base) == nil {
		return base
	}
	for i := 2; ; i++ {
		cand := fmt.Sprintf("%s%d", base, i)
		if u.doc.Table(cand) == nil {
			return cand
		}
	}
}

func (u *UserActions) uniqueColID(tableID, base string) string {
	tbl := u.doc.Table(tableID)
	if tbl == nil || !tbl.HasColumn(base) {
		return base
	}
	for i := 2; ; i++ {
		cand := fmt.Sprintf("%s%d", base, i)
		if !tbl.HasColumn(cand) {
			return cand
		}
	}
}

// SanitizeIdent turns an arbitrary label into a legal bare identifier:
// letters, digits, and underscores only, never starting with a digit
// (§4.9 "colId/label tie enforcement"). Grounded on
// original_source/sandbox/grist/import_actions.py's
// `identifiers.pick_col_ident(c["label"])` call when a column's colId
// isn't given explicitly; the identifiers module itself isn't in the
// retrieved source, so only the character class its callers rely on
// (bare, ASCII, underscore-joined) is reproduced here.
func SanitizeIdent(label string) string {
	var b strings.Builder
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" {
		return "C"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "C" + out
	}
	return out
}
