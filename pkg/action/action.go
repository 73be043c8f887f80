// Package action implements the data-action types from spec.md §3: the
// only way document state is mutated. Every variant is invertible and
// composable; inversion itself is computed by pkg/engine's executor, which
// has access to prior column state, but the wire-shaped types live here so
// pkg/engine, pkg/actionsummary, pkg/useraction, and pkg/wire can all share
// one vocabulary without import cycles.
package action

import "github.com/kasuganosora/gridengine/pkg/cellvalue"

// Action is any data action. Variant returns the wire variant name used in
// the [variant_name, args...] encoding (§6).
type Action interface {
	Variant() string
}

// ColumnValues holds, for a bulk action, one slice of values per column id,
// each slice parallel to the action's RowIDs.
type ColumnValues map[string][]interface{}

// ColumnSpec is the wire/action-level description of a column's type and
// formula status, independent of the live table.ColumnSpec so this package
// does not need to import pkg/table.
type ColumnSpec struct {
	Kind           cellvalue.Kind
	Target         string   // Ref/RefList target table id
	Choices        []string // Choice valid set
	TZ             string   // DateTime zone name
	IsFormula      bool
	Formula        string
	DefaultFormula string
	IsPrivate      bool
}

// BuildType materializes a live cellvalue.Type from the spec.
func (s ColumnSpec) BuildType() (cellvalue.Type, error) {
	return cellvalue.NewByKind(s.Kind, s.Target, s.Choices, s.TZ)
}

// ColumnDef names a column within an AddTable action.
type ColumnDef struct {
	ColID string
	Spec  ColumnSpec
}

// AddRecord inserts one row with the given initial values (§3).
type AddRecord struct {
	Table  string
	RowID  int64
	Values map[string]interface{}
}

func (a *AddRecord) Variant() string { return "AddRecord" }

// BulkAddRecord inserts many rows in one action.
type BulkAddRecord struct {
	Table  string
	RowIDs []int64
	Values ColumnValues
}

func (a *BulkAddRecord) Variant() string { return "BulkAddRecord" }

// RemoveRecord deletes one row.
type RemoveRecord struct {
	Table string
	RowID int64
}

func (a *RemoveRecord) Variant() string { return "RemoveRecord" }

// BulkRemoveRecord deletes many rows in one action.
type BulkRemoveRecord struct {
	Table  string
	RowIDs []int64
}

func (a *BulkRemoveRecord) Variant() string { return "BulkRemoveRecord" }

// UpdateRecord overwrites some column values of one row.
type UpdateRecord struct {
	Table  string
	RowID  int64
	Values map[string]interface{}
}

func (a *UpdateRecord) Variant() string { return "UpdateRecord" }

// BulkUpdateRecord overwrites some column values across many rows.
type BulkUpdateRecord struct {
	Table  string
	RowIDs []int64
	Values ColumnValues
}

func (a *BulkUpdateRecord) Variant() string { return "BulkUpdateRecord" }

// ReplaceTableData discards a table's rows and replaces them wholesale,
// keeping row id 0 (used by fetch_snapshot()/import replay paths).
type ReplaceTableData struct {
	Table  string
	RowIDs []int64
	Values ColumnValues
}

func (a *ReplaceTableData) Variant() string { return "ReplaceTableData" }

// AddColumn adds a new column to an existing table.
type AddColumn struct {
	Table string
	ColID string
	Spec  ColumnSpec
}

func (a *AddColumn) Variant() string { return "AddColumn" }

// RemoveColumn drops a column from a table.
type RemoveColumn struct {
	Table string
	ColID string
}

func (a *RemoveColumn) Variant() string { return "RemoveColumn" }

// RenameColumn changes a column's id, preserving its data.
type RenameColumn struct {
	Table    string
	OldColID string
	NewColID string
}

func (a *RenameColumn) Variant() string { return "RenameColumn" }

// ModifyColumn changes a column's type/formula in place.
type ModifyColumn struct {
	Table string
	ColID string
	Spec  ColumnSpec
}

func (a *ModifyColumn) Variant() string { return "ModifyColumn" }

// AddTable creates a new table with the given initial columns.
type AddTable struct {
	Table   string
	Columns []ColumnDef
}

func (a *AddTable) Variant() string { return "AddTable" }

// RemoveTable deletes a table and every column.
type RemoveTable struct {
	Table string
}

func (a *RemoveTable) Variant() string { return "RemoveTable" }

// RenameTable changes a table's id, preserving its data.
type RenameTable struct {
	OldTable string
	NewTable string
}

func (a *RenameTable) Variant() string { return "RenameTable" }
