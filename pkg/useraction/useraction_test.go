package useraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/gridengine/pkg/action"
	"github.com/kasuganosora/gridengine/pkg/actionsummary"
	"github.com/kasuganosora/gridengine/pkg/cellvalue"
	"github.com/kasuganosora/gridengine/pkg/docmodel"
	"github.com/kasuganosora/gridengine/pkg/engine"
)

func newTestSetup(t *testing.T) (*engine.Document, *UserActions, *actionsummary.Summary) {
	t.Helper()
	d := engine.New(nil)
	dm := docmodel.New(d)
	sum := actionsummary.New()
	require.NoError(t, dm.EnsureMetaTables(sum))
	return d, New(d, dm), sum
}

func numericCol(f string) action.ColumnSpec {
	return action.ColumnSpec{Kind: cellvalue.KindNumeric, Formula: f, IsFormula: f != ""}
}

func textCol() action.ColumnSpec { return action.ColumnSpec{Kind: cellvalue.KindText} }

func TestRenameColumnRewritesDependentFormula(t *testing.T) {
	d, ua, sum := newTestSetup(t)
	_, err := d.ApplyDataAction(&action.AddTable{
		Table: "Items",
		Columns: []action.ColumnDef{
			{ColID: "Price", Spec: numericCol("")},
			{ColID: "Doubled", Spec: numericCol("$Price * 2")},
		},
	}, sum)
	require.NoError(t, err)

	require.NoError(t, ua.RenameColumn("Items", "Price", "Cost", sum))

	spec, _ := d.Schema().Table("Items")
	doubled, _ := spec.Column("Doubled")
	assert.Equal(t, "$Cost * 2", doubled.Formula)
}

func TestRenameTableRewritesLookupReference(t *testing.T) {
	d, ua, sum := newTestSetup(t)
	_, err := d.ApplyDataAction(&action.AddTable{
		Table: "Items",
		Columns: []action.ColumnDef{
			{ColID: "Name", Spec: textCol()},
		},
	}, sum)
	require.NoError(t, err)
	_, err = d.ApplyDataAction(&action.AddTable{
		Table: "Orders",
		Columns: []action.ColumnDef{
			{ColID: "Total", Spec: numericCol("LEN(Items.lookupRecords(Name=$Total).id)")},
		},
	}, sum)
	require.NoError(t, err)

	require.NoError(t, ua.RenameTable("Items", "Products", sum))

	spec, _ := d.Schema().Table("Orders")
	total, _ := spec.Column("Total")
	assert.Equal(t, "LEN(Products.lookupRecords(Name=$Total).id)", total.Formula)
}

func TestAddTableSanitizesAndUniquifiesID(t *testing.T) {
	_, ua, sum := newTestSetup(t)
	id, err := ua.AddTable("My Table!", nil, sum)
	require.NoError(t, err)
	assert.Equal(t, "My_Table_", id)

	id2, err := ua.AddTable("My Table!", nil, sum)
	require.NoError(t, err)
	assert.Equal(t, "My_Table_2", id2)
}

func TestAddColumnSanitizesLabelWhenColIDEmpty(t *testing.T) {
	d, ua, sum := newTestSetup(t)
	_, err := d.ApplyDataAction(&action.AddTable{Table: "Items"}, sum)
	require.NoError(t, err)

	colID, err := ua.AddColumn("Items", "", "Unit Price", textCol(), false, sum)
	require.NoError(t, err)
	assert.Equal(t, "Unit_Price", colID)
}

func TestUpdateRecordResolvesReferenceLookupByVisibleColumn(t *testing.T) {
	d, ua, sum := newTestSetup(t)
	_, err := d.ApplyDataAction(&action.AddTable{
		Table: "Items",
		Columns: []action.ColumnDef{
			{ColID: "Name", Spec: textCol()},
		},
	}, sum)
	require.NoError(t, err)
	_, err = d.ApplyDataAction(&action.AddTable{
		Table: "Orders",
		Columns: []action.ColumnDef{
			{ColID: "Item", Spec: action.ColumnSpec{Kind: cellvalue.KindRef, Target: "Items"}},
		},
	}, sum)
	require.NoError(t, err)
	ua.SetVisibleColumn("Orders", "Item", "Name")

	itemRow, err := ua.AddRecord("Items", map[string]interface{}{"Name": "Widget"}, sum)
	require.NoError(t, err)

	orderRow, err := ua.AddRecord("Orders", map[string]interface{}{}, sum)
	require.NoError(t, err)

	err = ua.UpdateRecord("Orders", orderRow, map[string]interface{}{
		"Item": cellvalue.ReferenceLookupInput{Value: "Widget"},
	}, sum)
	require.NoError(t, err)

	assert.Equal(t, cellvalue.RefValue(itemRow), d.Table("Orders").Column("Item").Get(orderRow))
}

func TestRemoveTableBackfillsVisibleColumnAsText(t *testing.T) {
	d, ua, sum := newTestSetup(t)
	_, err := d.ApplyDataAction(&action.AddTable{
		Table: "Address",
		Columns: []action.ColumnDef{
			{ColID: "city", Spec: textCol()},
		},
	}, sum)
	require.NoError(t, err)
	_, err = d.ApplyDataAction(&action.AddTable{
		Table: "People",
		Columns: []action.ColumnDef{
			{ColID: "address", Spec: action.ColumnSpec{Kind: cellvalue.KindRef, Target: "Address"}},
		},
	}, sum)
	require.NoError(t, err)
	ua.SetVisibleColumn("People", "address", "city")

	addrRow, err := ua.AddRecord("Address", map[string]interface{}{"city": "Albany"}, sum)
	require.NoError(t, err)
	personRow, err := ua.AddRecord("People", map[string]interface{}{"address": cellvalue.RefValue(addrRow)}, sum)
	require.NoError(t, err)

	require.NoError(t, ua.RemoveTable("Address", sum))

	assert.Equal(t, "Albany", d.Table("People").Column("address").Get(personRow))
}
