package lookup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndexUpdateMovesRowBetweenKeys(t *testing.T) {
	idx := NewIndex("People", []string{"Dept"})
	east, west := MakeKey("east"), MakeKey("west")

	idx.Insert(1, east)
	assert.Equal(t, []int64{1}, idx.Rows(east))

	old, had := idx.Update(1, west)
	assert.True(t, had)
	assert.Equal(t, east, old)
	assert.Empty(t, idx.Rows(east))
	assert.Equal(t, []int64{1}, idx.Rows(west))
}

func TestIndexRemoveDropsRowEntirely(t *testing.T) {
	idx := NewIndex("People", []string{"Dept"})
	east := MakeKey("east")
	idx.Insert(1, east)
	old, had := idx.Remove(1)
	assert.True(t, had)
	assert.Equal(t, east, old)
	assert.Empty(t, idx.Rows(east))
}

func TestContainsIndexMatchesListMembership(t *testing.T) {
	idx := NewContainsIndex("Tasks", "Tags", false)
	idx.Update(1, []interface{}{"urgent", "billing"})
	idx.Update(2, []interface{}{"billing"})

	assert.ElementsMatch(t, []int64{1, 2}, idx.RowsForKey(MakeKey("billing")))
	assert.Equal(t, []int64{1}, idx.RowsForKey(MakeKey("urgent")))
}

func TestContainsIndexEmptyListOptIn(t *testing.T) {
	idx := NewContainsIndex("Tasks", "Tags", true)
	idx.Update(1, nil)
	assert.Equal(t, []int64{1}, idx.RowsForKey(MakeKey(nil)))

	idxNoMatch := NewContainsIndex("Tasks", "Tags", false)
	idxNoMatch.Update(1, nil)
	assert.Empty(t, idxNoMatch.RowsForKey(MakeKey(nil)))
}

func TestNormalizeOrderByDropsTrailingIDAndAppendsManualSort(t *testing.T) {
	spec := NormalizeOrderBy([]string{"Name", "-Age", "id"})
	assert.Equal(t, []OrderField{
		{ColID: "Name"},
		{ColID: "Age", Descending: true},
		{ColID: "manualSort"},
	}, spec.Fields)
}

func TestNormalizeOrderByEmptyIsEmptyTuple(t *testing.T) {
	spec := NormalizeOrderBy([]string{"id"})
	assert.Empty(t, spec.Fields)
}

func TestNormalizeOrderByDoesNotDuplicateManualSort(t *testing.T) {
	spec := NormalizeOrderBy([]string{"Name", "manualSort"})
	assert.Equal(t, []OrderField{{ColID: "Name"}, {ColID: "manualSort"}}, spec.Fields)
}

func TestSortRowsOrdersByFieldThenTiebreak(t *testing.T) {
	get := func(rowID int64, colID string) interface{} {
		values := map[int64]map[string]interface{}{
			1: {"Age": int64(30)},
			2: {"Age": int64(20)},
			3: {"Age": int64(20)},
		}
		return values[rowID][colID]
	}
	spec := NormalizeOrderBy([]string{"Age"})
	rows := []int64{1, 2, 3}
	SortRows(rows, spec, get)
	assert.Equal(t, []int64{2, 3, 1}, rows)
}

func TestFindOrderedGE(t *testing.T) {
	spec := OrderSpec{Fields: []OrderField{{ColID: "v"}}}
	tuples := []SortTuple{{int64(1)}, {int64(3)}, {int64(5)}}
	rows := []int64{10, 20, 30}
	got, ok := FindOrdered(rows, tuples, spec, SortTuple{int64(3)}, FindGE)
	assert.True(t, ok)
	assert.Equal(t, int64(20), got)

	got, ok = FindOrdered(rows, tuples, spec, SortTuple{int64(4)}, FindGT)
	assert.True(t, ok)
	assert.Equal(t, int64(30), got)

	_, ok = FindOrdered(rows, tuples, spec, SortTuple{int64(6)}, FindGT)
	assert.False(t, ok)

	got, ok = FindOrdered(rows, tuples, spec, SortTuple{int64(3)}, FindLT)
	assert.True(t, ok)
	assert.Equal(t, int64(10), got)
}
