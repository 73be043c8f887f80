package column

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/gridengine/pkg/cellvalue"
)

type fakeResolver struct{}

func (fakeResolver) ResolveRef(table string, rowID int64) interface{} {
	return map[string]interface{}{"table": table, "id": rowID}
}

func (fakeResolver) ResolveRefList(table string, rowIDs []int64) interface{} {
	return map[string]interface{}{"table": table, "ids": rowIDs}
}

func TestGetDefaultOnUnsetRow(t *testing.T) {
	c := New("People", "Age", cellvalue.NewInt())
	assert.Equal(t, int64(0), c.Get(5))
	assert.False(t, c.IsSet(5))
}

func TestSetGrowsStorage(t *testing.T) {
	c := New("People", "Age", cellvalue.NewInt())
	c.Set(3, int64(42))
	assert.Equal(t, int64(4), c.Len())
	assert.Equal(t, int64(42), c.Get(3))
	assert.True(t, c.IsSet(3))
	assert.Equal(t, int64(0), c.Get(1))
	assert.False(t, c.IsSet(1))
}

func TestUnsetRestoresDefault(t *testing.T) {
	c := New("People", "Age", cellvalue.NewInt())
	c.Set(0, int64(10))
	c.Unset(0)
	assert.Equal(t, int64(0), c.Get(0))
	assert.False(t, c.IsSet(0))
}

func TestCopyFromRejectsMismatchedKind(t *testing.T) {
	dst := New("People", "Age", cellvalue.NewInt())
	src := New("People", "Name", cellvalue.NewText())
	err := dst.CopyFrom(src)
	require.Error(t, err)
}

func TestCopyFromDuplicatesStorage(t *testing.T) {
	src := New("People", "Age", cellvalue.NewInt())
	src.Set(0, int64(1))
	src.Set(2, int64(3))
	dst := New("People", "AgeCopy", cellvalue.NewInt())
	require.NoError(t, dst.CopyFrom(src))
	assert.Equal(t, int64(1), dst.Get(0))
	assert.Equal(t, int64(3), dst.Get(2))

	// mutating src afterwards must not affect dst
	src.Set(0, int64(99))
	assert.Equal(t, int64(1), dst.Get(0))
}

func TestRichValueResolvesRef(t *testing.T) {
	c := New("People", "Manager", cellvalue.NewRef("People"))
	c.Set(0, cellvalue.RefValue(7))
	got := c.RichValue(0, fakeResolver{})
	assert.Equal(t, map[string]interface{}{"table": "People", "id": int64(7)}, got)
}

func TestRichValueWrapsWrongTypeAsAltText(t *testing.T) {
	c := New("People", "Age", cellvalue.NewInt())
	c.Set(0, "not a number")
	got := c.RichValue(0, fakeResolver{})
	alt, ok := got.(cellvalue.AltText)
	require.True(t, ok)
	assert.Equal(t, "not a number", alt.Text)
	assert.Equal(t, "Int", alt.RawType)
}

func TestRichValuePassesThroughRaisedException(t *testing.T) {
	c := New("People", "Age", cellvalue.NewInt())
	raised := cellvalue.CircularRefError()
	c.Set(0, raised)
	got := c.RichValue(0, fakeResolver{})
	assert.Same(t, raised, got)
}

func TestSetRowsListsOnlyExplicitlySetRows(t *testing.T) {
	c := New("People", "Age", cellvalue.NewInt())
	c.Set(0, int64(1))
	c.Set(4, int64(2))
	assert.Equal(t, []int64{0, 4}, c.SetRows())
}

func TestIsHelperDetectsEngineColumns(t *testing.T) {
	c := New("People", "#lookup1", cellvalue.NewAny())
	assert.True(t, c.IsHelper())
	c2 := New("People", "Age", cellvalue.NewInt())
	assert.False(t, c2.IsHelper())
}
