// Package docmodel implements spec.md §4.10: a thin record-oriented facade
// over the document's own metadata tables (tables, columns, views, view
// sections, fields, filters, pages, shares, cells, triggers, ACL
// resources/rules), plus the auto-remove queue formulas use to mark
// records obsolete. Grounded on
// original_source/sandbox/grist/docmodel.py's DocModel class: same
// add/update/remove/insert_after surface, same _auto_remove_set
// drained once per user action.
package docmodel

import (
	"github.com/kasuganosora/gridengine/pkg/action"
	"github.com/kasuganosora/gridengine/pkg/cellvalue"
)

// Metadata table ids, fixed per spec.md §6 ("_grist_*").
const (
	TablesTable       = "_grist_Tables"
	ColumnsTable      = "_grist_Tables_column"
	ViewsTable        = "_grist_Views"
	ViewSectionsTable = "_grist_Views_section"
	ViewFieldsTable   = "_grist_Views_section_field"
	FiltersTable      = "_grist_Filters"
	PagesTable        = "_grist_Pages"
	SharesTable       = "_grist_Shares"
	CellsTable        = "_grist_Cells"
	TriggersTable     = "_grist_Triggers"
	ACLResourcesTable = "_grist_ACLResources"
	ACLRulesTable     = "_grist_ACLRules"
	AttachmentsTable  = "_grist_Attachments"
)

// col is a shorthand column definition used to build MetaSchema below.
func col(id string, kind cellvalue.Kind) action.ColumnDef {
	return action.ColumnDef{ColID: id, Spec: action.ColumnSpec{Kind: kind}}
}

func refCol(id, target string) action.ColumnDef {
	return action.ColumnDef{ColID: id, Spec: action.ColumnSpec{Kind: cellvalue.KindRef, Target: target}}
}

// MetaTable names one metadata table and the columns it's created with.
type MetaTable struct {
	TableID string
	Columns []action.ColumnDef
}

// MetaSchema is every metadata table's initial column layout (§6). A fresh
// document's schema is seeded with these via AddTable actions before any
// user table is created.
var MetaSchema = []MetaTable{
	{TablesTable, []action.ColumnDef{
		col("tableId", cellvalue.KindText),
		col("primaryViewId", cellvalue.KindInt),
		col("summarySourceTable", cellvalue.KindInt),
		col("onDemand", cellvalue.KindBool),
	}},
	{ColumnsTable, []action.ColumnDef{
		refCol("parentId", TablesTable),
		col("parentPos", cellvalue.KindPositionNumber),
		col("colId", cellvalue.KindText),
		col("type", cellvalue.KindText),
		col("widgetOptions", cellvalue.KindText),
		col("isFormula", cellvalue.KindBool),
		col("formula", cellvalue.KindText),
		col("label", cellvalue.KindText),
		col("untieColIdFromLabel", cellvalue.KindBool),
		col("summarySourceCol", cellvalue.KindInt),
		col("displayCol", cellvalue.KindInt),
		col("visibleCol", cellvalue.KindInt),
		col("recalcWhen", cellvalue.KindInt),
		col("recalcDeps", cellvalue.KindText),
		col("rules", cellvalue.KindText),
		col("isPrivate", cellvalue.KindBool),
	}},
	{ViewsTable, []action.ColumnDef{
		col("name", cellvalue.KindText),
		col("type", cellvalue.KindText),
	}},
	{ViewSectionsTable, []action.ColumnDef{
		refCol("tableRef", TablesTable),
		refCol("parentId", ViewsTable),
		col("parentKey", cellvalue.KindText),
		col("title", cellvalue.KindText),
		col("defaultWidth", cellvalue.KindInt),
		col("sortColRefs", cellvalue.KindText),
	}},
	{ViewFieldsTable, []action.ColumnDef{
		refCol("parentId", ViewSectionsTable),
		col("parentPos", cellvalue.KindPositionNumber),
		refCol("colRef", ColumnsTable),
		col("widgetOptions", cellvalue.KindText),
	}},
	{FiltersTable, []action.ColumnDef{
		refCol("viewSectionRef", ViewSectionsTable),
		refCol("colRef", ColumnsTable),
		col("filter", cellvalue.KindText),
	}},
	{PagesTable, []action.ColumnDef{
		refCol("viewRef", ViewsTable),
		col("indentation", cellvalue.KindInt),
		col("pagePos", cellvalue.KindPositionNumber),
	}},
	{SharesTable, []action.ColumnDef{
		col("externalId", cellvalue.KindText),
		col("description", cellvalue.KindText),
		col("options", cellvalue.KindText),
	}},
	{CellsTable, []action.ColumnDef{
		col("tableRef", cellvalue.KindInt),
		col("colRef", cellvalue.KindInt),
		col("rowId", cellvalue.KindInt),
		col("type", cellvalue.KindInt),
		col("content", cellvalue.KindText),
	}},
	{TriggersTable, []action.ColumnDef{
		refCol("tableRef", TablesTable),
		refCol("colRef", ColumnsTable),
		col("eventTypes", cellvalue.KindChoiceList),
		col("isReadyColRef", cellvalue.KindInt),
		col("actions", cellvalue.KindText),
		col("memo", cellvalue.KindText),
		col("enabled", cellvalue.KindBool),
		col("name", cellvalue.KindText),
		col("condition", cellvalue.KindText),
	}},
	{ACLResourcesTable, []action.ColumnDef{
		col("tableId", cellvalue.KindText),
		col("colIds", cellvalue.KindText),
	}},
	{ACLRulesTable, []action.ColumnDef{
		refCol("resource", ACLResourcesTable),
		col("aclFormula", cellvalue.KindText),
		col("permissionsText", cellvalue.KindText),
		col("rulePos", cellvalue.KindPositionNumber),
	}},
	{AttachmentsTable, []action.ColumnDef{
		col("fileIdent", cellvalue.KindText),
		col("fileName", cellvalue.KindText),
		col("fileType", cellvalue.KindText),
		col("fileSize", cellvalue.KindInt),
		col("timeUploaded", cellvalue.KindDateTime),
	}},
}
