package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/gridengine/pkg/cellvalue"
	"github.com/kasuganosora/gridengine/pkg/formula"
	"github.com/kasuganosora/gridengine/pkg/table"
)

type fakeCtx struct {
	rec     interface{}
	attrs   map[string]interface{}
	globals map[string]interface{}
}

func (f *fakeCtx) RecordSelf() interface{} { return f.rec }
func (f *fakeCtx) TableSelf() interface{}  { return nil }
func (f *fakeCtx) GetAttr(recv interface{}, name string) (interface{}, error) {
	return f.attrs[name], nil
}
func (f *fakeCtx) CallGlobal(name string, args []Arg) (interface{}, error) { return nil, nil }
func (f *fakeCtx) CallMethod(recv interface{}, name string, args []Arg) (interface{}, error) {
	return nil, nil
}
func (f *fakeCtx) ResolveName(name string) (interface{}, bool) {
	v, ok := f.globals[name]
	return v, ok
}

func TestInterpreterEqualityComparison(t *testing.T) {
	cf, err := NewCache().Compile("T", "Result", "$Stock == 0", &formula.NoneLit{})
	require.NoError(t, err)
	ctx := &fakeCtx{attrs: map[string]interface{}{"Stock": 0.0}}
	v, err := cf.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	ctx.attrs["Stock"] = 5.0
	v, err = cf.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, false, v)
}

func TestInterpreterIfLazyBranches(t *testing.T) {
	cf, err := NewCache().Compile("T", "C", "IF($A > 0, 1 / $A, 0)", &formula.NoneLit{})
	require.NoError(t, err)
	ctx := &fakeCtx{attrs: map[string]interface{}{"A": 0.0}}
	v, err := cf.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestCacheReusesUnchangedSource(t *testing.T) {
	cache := NewCache()
	cf1, err := cache.Compile("T", "C", "$A + 1", &formula.NoneLit{})
	require.NoError(t, err)
	cf2, err := cache.Compile("T", "C", "$A + 1", &formula.NoneLit{})
	require.NoError(t, err)
	assert.Same(t, cf1, cf2)
	assert.Equal(t, 1, cache.Size())
}

func TestGenerateCompilesSchema(t *testing.T) {
	schema := table.NewSchema()
	spec := table.NewTableSpec("Inventory")
	spec.SetColumn("Stock", table.ColumnSpec{Type: cellvalue.NewNumeric()})
	spec.SetColumn("IsEmpty", table.ColumnSpec{Type: cellvalue.NewBool(), IsFormula: true, Formula: "$Stock == 0"})
	schema.AddTable(spec)

	cache := NewCache()
	mod, err := Generate(schema, cache)
	require.NoError(t, err)
	tm := mod.Tables["Inventory"]
	require.NotNil(t, tm)
	require.Contains(t, tm.Formulas, "IsEmpty")

	ctx := &fakeCtx{attrs: map[string]interface{}{"Stock": 0.0}}
	v, err := tm.Formulas["IsEmpty"].Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestGenerateSurfacesSyntaxErrorAsRaisingFormula(t *testing.T) {
	schema := table.NewSchema()
	spec := table.NewTableSpec("T")
	spec.SetColumn("Bad", table.ColumnSpec{Type: cellvalue.NewAny(), IsFormula: true, Formula: "x ="})
	schema.AddTable(spec)

	mod, err := Generate(schema, NewCache())
	require.Error(t, err)
	cf := mod.Tables["T"].Formulas["Bad"]
	require.NotNil(t, cf)
	_, runErr := cf.Run(&fakeCtx{})
	assert.Error(t, runErr)
}
