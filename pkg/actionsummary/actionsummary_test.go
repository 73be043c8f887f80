package actionsummary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/gridengine/pkg/action"
)

func TestRecordCellCompressesSingleRowUpdate(t *testing.T) {
	s := New()
	s.RecordCell("Items", "Price", 1, 10.0, 20.0, false)

	stored := s.StoredActions()
	require.Len(t, stored, 1)
	upd, ok := stored[0].(*action.UpdateRecord)
	require.True(t, ok)
	assert.Equal(t, "Items", upd.Table)
	assert.Equal(t, int64(1), upd.RowID)
	assert.Equal(t, 20.0, upd.Values["Price"])
}

func TestRecordCellCompressesMultiRowUpdateToBulk(t *testing.T) {
	s := New()
	s.RecordCell("Items", "Price", 1, 10.0, 20.0, false)
	s.RecordCell("Items", "Price", 2, 11.0, 21.0, false)

	stored := s.StoredActions()
	require.Len(t, stored, 1)
	bulk, ok := stored[0].(*action.BulkUpdateRecord)
	require.True(t, ok)
	assert.ElementsMatch(t, []int64{1, 2}, bulk.RowIDs)
	assert.Equal(t, []interface{}{20.0, 21.0}, bulk.Values["Price"])
}

func TestNoChangeCellsAreFiltered(t *testing.T) {
	s := New()
	s.RecordCell("Items", "Price", 1, 10.0, 10.0, false)

	assert.Empty(t, s.StoredActions())
	assert.True(t, s.IsEmpty())
}

func TestCalcActionsSeparateFromStored(t *testing.T) {
	s := New()
	s.RecordCell("Items", "Price", 1, 10.0, 20.0, false)
	s.RecordCell("Items", "Doubled", 1, 20.0, 40.0, true)

	stored := s.StoredActions()
	require.Len(t, stored, 1)
	upd := stored[0].(*action.UpdateRecord)
	assert.Equal(t, "Price", firstKey(upd.Values))

	calc := s.CalcActions()
	require.Len(t, calc, 1)
	calcUpd := calc[0].(*action.UpdateRecord)
	assert.Equal(t, "Doubled", firstKey(calcUpd.Values))
}

func firstKey(m map[string]interface{}) string {
	for k := range m {
		return k
	}
	return ""
}

func TestUndoActionsCarryBeforeValues(t *testing.T) {
	s := New()
	s.RecordCell("Items", "Price", 1, 10.0, 20.0, false)

	undo := s.UndoActions()
	require.Len(t, undo, 1)
	upd := undo[0].(*action.UpdateRecord)
	assert.Equal(t, 10.0, upd.Values["Price"])
}

func TestRowRewriteResolvesTemporaryIDs(t *testing.T) {
	s := New()
	s.RecordRowRewrite("Items", -1, 5)

	assert.Equal(t, int64(5), s.ResolveRow("Items", -1))
	assert.Equal(t, int64(7), s.ResolveRow("Items", 7))
}

func TestTableDeltaTracksCreateAndRename(t *testing.T) {
	s := New()
	s.RecordTableCreated("Items")
	s.RecordTableRenamed("Items", "Products")

	deltas := s.TableDeltas()
	d, ok := deltas["Products"]
	require.True(t, ok)
	assert.True(t, d.Created)
	assert.Equal(t, []string{"Items", "Products"}, d.Renames)
	_, stillUnderOld := deltas["Items"]
	assert.False(t, stillUnderOld)
}

func TestColumnDeltaTracksRemove(t *testing.T) {
	s := New()
	s.RecordColumnRemoved("Items", "Price")

	deltas := s.ColumnDeltas()
	d, ok := deltas[colDeltaKey("Items", "Price")]
	require.True(t, ok)
	assert.True(t, d.Removed)
	assert.False(t, s.IsEmpty())
}
