package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/gridengine/pkg/cellvalue"
)

func TestNewTableHasRowZero(t *testing.T) {
	tbl := New("People")
	assert.True(t, tbl.HasRow(EmptyRecordRowID))
	assert.Equal(t, 1, tbl.RowCount())
}

func TestAddRowAllocatesIncrementingIDs(t *testing.T) {
	tbl := New("People")
	a := tbl.AddRow()
	b := tbl.AddRow()
	assert.Equal(t, int64(1), a)
	assert.Equal(t, int64(2), b)
	assert.Equal(t, []int64{0, 1, 2}, tbl.RowIDs())
}

func TestRemoveRowZeroFails(t *testing.T) {
	tbl := New("People")
	err := tbl.RemoveRow(EmptyRecordRowID)
	require.Error(t, err)
	assert.True(t, tbl.HasRow(EmptyRecordRowID))
}

func TestRemoveRowDoesNotReuseID(t *testing.T) {
	tbl := New("People")
	a := tbl.AddRow()
	require.NoError(t, tbl.RemoveRow(a))
	b := tbl.AddRow()
	assert.NotEqual(t, a, b)
	assert.Greater(t, b, a)
}

func TestAddColumnGrowsToExistingRows(t *testing.T) {
	tbl := New("People")
	tbl.AddRow()
	tbl.AddRow()
	col, err := tbl.AddColumn("Age", cellvalue.NewInt())
	require.NoError(t, err)
	assert.Equal(t, int64(3), col.Len())
}

func TestAddRowGrowsExistingColumns(t *testing.T) {
	tbl := New("People")
	col, err := tbl.AddColumn("Age", cellvalue.NewInt())
	require.NoError(t, err)
	tbl.AddRow()
	assert.Equal(t, int64(2), col.Len())
}

func TestRenameColumnPreservesStorage(t *testing.T) {
	tbl := New("People")
	row := tbl.AddRow()
	col, err := tbl.AddColumn("Age", cellvalue.NewInt())
	require.NoError(t, err)
	col.Set(row, int64(30))

	require.NoError(t, tbl.RenameColumn("Age", "YearsOld"))
	assert.Nil(t, tbl.Column("Age"))
	renamed := tbl.Column("YearsOld")
	require.NotNil(t, renamed)
	assert.Equal(t, int64(30), renamed.Get(row))
}

func TestRemoveColumnUnknown(t *testing.T) {
	tbl := New("People")
	err := tbl.RemoveColumn("Nope")
	require.Error(t, err)
}

func TestSchemaRenameTablePreservesSpec(t *testing.T) {
	schema := NewSchema()
	spec := NewTableSpec("People")
	spec.SetColumn("Age", ColumnSpec{Type: cellvalue.NewInt()})
	schema.AddTable(spec)

	schema.RenameTable("People", "Persons")
	_, stillThere := schema.Table("People")
	assert.False(t, stillThere)
	renamed, ok := schema.Table("Persons")
	require.True(t, ok)
	_, colOK := renamed.Column("Age")
	assert.True(t, colOK)
}
