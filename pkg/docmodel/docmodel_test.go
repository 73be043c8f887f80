package docmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/gridengine/pkg/action"
	"github.com/kasuganosora/gridengine/pkg/actionsummary"
	"github.com/kasuganosora/gridengine/pkg/cellvalue"
	"github.com/kasuganosora/gridengine/pkg/engine"
)

func newTestDoc(t *testing.T) (*engine.Document, *DocModel) {
	t.Helper()
	d := engine.New(nil)
	dm := New(d)
	sum := actionsummary.New()
	require.NoError(t, dm.EnsureMetaTables(sum))
	return d, dm
}

func TestEnsureMetaTablesCreatesEveryMetaTable(t *testing.T) {
	d, _ := newTestDoc(t)
	for _, mt := range MetaSchema {
		assert.NotNil(t, d.Table(mt.TableID), "missing %s", mt.TableID)
	}
}

func TestEnsureMetaTablesIsIdempotent(t *testing.T) {
	d, dm := newTestDoc(t)
	sum := actionsummary.New()
	require.NoError(t, dm.EnsureMetaTables(sum))
	assert.NotNil(t, d.Table(TablesTable))
}

func TestGetTableRecAndColumnRec(t *testing.T) {
	_, dm := newTestDoc(t)
	sum := actionsummary.New()

	tableRow, err := dm.Add(TablesTable, map[string]interface{}{"tableId": "Orders"}, sum)
	require.NoError(t, err)

	found, ok := dm.GetTableRec("Orders")
	require.True(t, ok)
	assert.Equal(t, tableRow, found)

	_, ok = dm.GetTableRec("Nonexistent")
	assert.False(t, ok)

	colRow, err := dm.Add(ColumnsTable, map[string]interface{}{
		"parentId": cellvalue.RefValue(tableRow),
		"colId":    "Amount",
	}, sum)
	require.NoError(t, err)

	foundCol, ok := dm.GetColumnRec("Orders", "Amount")
	require.True(t, ok)
	assert.Equal(t, colRow, foundCol)

	_, ok = dm.GetColumnRec("Orders", "Missing")
	assert.False(t, ok)
}

func TestAddUpdateRemove(t *testing.T) {
	d, dm := newTestDoc(t)
	sum := actionsummary.New()

	_, err := d.ApplyDataAction(&action.AddTable{
		Table: "Items",
		Columns: []action.ColumnDef{
			{ColID: "Name", Spec: action.ColumnSpec{Kind: cellvalue.KindText}},
		},
	}, sum)
	require.NoError(t, err)

	row, err := dm.Add("Items", map[string]interface{}{"Name": "Widget"}, sum)
	require.NoError(t, err)
	assert.Equal(t, "Widget", d.Table("Items").Column("Name").Get(row))

	require.NoError(t, dm.Update("Items", row, map[string]interface{}{"Name": "Gadget"}, sum))
	assert.Equal(t, "Gadget", d.Table("Items").Column("Name").Get(row))

	require.NoError(t, dm.Remove("Items", row, sum))
	assert.False(t, d.Table("Items").HasRow(row))
}

func TestInsertAfterOrdersNewRecordBetweenNeighbors(t *testing.T) {
	d, dm := newTestDoc(t)
	sum := actionsummary.New()

	_, err := d.ApplyDataAction(&action.AddTable{
		Table: "Items",
		Columns: []action.ColumnDef{
			{ColID: "Name", Spec: action.ColumnSpec{Kind: cellvalue.KindText}},
			{ColID: "pos", Spec: action.ColumnSpec{Kind: cellvalue.KindPositionNumber}},
		},
	}, sum)
	require.NoError(t, err)

	first, err := dm.InsertAfter("Items", "pos", 0, map[string]interface{}{"Name": "First"}, sum)
	require.NoError(t, err)
	third, err := dm.InsertAfter("Items", "pos", first, map[string]interface{}{"Name": "Third"}, sum)
	require.NoError(t, err)
	second, err := dm.InsertAfter("Items", "pos", first, map[string]interface{}{"Name": "Second"}, sum)
	require.NoError(t, err)

	posCol := d.Table("Items").Column("pos")
	firstPos := posCol.Get(first).(float64)
	secondPos := posCol.Get(second).(float64)
	thirdPos := posCol.Get(third).(float64)
	assert.True(t, firstPos < secondPos)
	assert.True(t, secondPos < thirdPos)
}

func TestAutoRemoveQueueDrainsOnce(t *testing.T) {
	d, dm := newTestDoc(t)
	sum := actionsummary.New()

	_, err := d.ApplyDataAction(&action.AddTable{
		Table: "Items",
		Columns: []action.ColumnDef{
			{ColID: "Name", Spec: action.ColumnSpec{Kind: cellvalue.KindText}},
		},
	}, sum)
	require.NoError(t, err)

	row, err := dm.Add("Items", map[string]interface{}{"Name": "Stale"}, sum)
	require.NoError(t, err)

	dm.QueueAutoRemove("Items", row)
	n, err := dm.ApplyAutoRemoves(sum)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, d.Table("Items").HasRow(row))

	n, err = dm.ApplyAutoRemoves(sum)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCancelAutoRemoveKeepsRecord(t *testing.T) {
	d, dm := newTestDoc(t)
	sum := actionsummary.New()

	_, err := d.ApplyDataAction(&action.AddTable{
		Table: "Items",
		Columns: []action.ColumnDef{
			{ColID: "Name", Spec: action.ColumnSpec{Kind: cellvalue.KindText}},
		},
	}, sum)
	require.NoError(t, err)

	row, err := dm.Add("Items", map[string]interface{}{"Name": "Keep"}, sum)
	require.NoError(t, err)

	dm.QueueAutoRemove("Items", row)
	dm.CancelAutoRemove("Items", row)

	n, err := dm.ApplyAutoRemoves(sum)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.True(t, d.Table("Items").HasRow(row))
}
