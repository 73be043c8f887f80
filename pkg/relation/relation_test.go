package relation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/gridengine/pkg/cellvalue"
	"github.com/kasuganosora/gridengine/pkg/table"
)

func TestIdentityMapsToSelf(t *testing.T) {
	r := Identity{TableID: "People"}
	assert.Equal(t, []int64{5}, r.Map(5))
}

func TestReferenceMapsToStoredRef(t *testing.T) {
	tbl := table.New("People")
	row := tbl.AddRow()
	col, err := tbl.AddColumn("Manager", cellvalue.NewRef("People"))
	require.NoError(t, err)
	col.Set(row, cellvalue.RefValue(7))

	r := Reference{SourceTable: tbl, ColID: "Manager"}
	assert.Equal(t, []int64{7}, r.Map(row))
}

func TestReferenceListMapsToAllStoredRefs(t *testing.T) {
	tbl := table.New("People")
	row := tbl.AddRow()
	col, err := tbl.AddColumn("Reports", cellvalue.NewRefList("People"))
	require.NoError(t, err)
	col.Set(row, cellvalue.RefList{1, 2, 3})

	r := ReferenceList{SourceTable: tbl, ColID: "Reports"}
	assert.Equal(t, []int64{1, 2, 3}, r.Map(row))
}

type fakeIndex struct {
	byKey map[interface{}][]int64
}

func (f fakeIndex) RowsForKey(key interface{}) []int64 { return f.byKey[key] }

func TestLookupUsesKeyFuncAndIndex(t *testing.T) {
	idx := fakeIndex{byKey: map[interface{}][]int64{"east": {10, 11}}}
	r := Lookup{
		IndexName: "Region",
		Idx:       idx,
		KeyFor:    func(sourceRowID int64) interface{} { return "east" },
	}
	assert.Equal(t, []int64{10, 11}, r.Map(3))
}

func TestKeysDistinguishRelationKinds(t *testing.T) {
	tbl := table.New("People")
	assert.NotEqual(t,
		Reference{SourceTable: tbl, ColID: "Manager"}.Key(),
		ReferenceList{SourceTable: tbl, ColID: "Manager"}.Key(),
	)
}
