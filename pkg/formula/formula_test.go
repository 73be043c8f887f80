package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDollarSugarDesugarsToRecordAttr(t *testing.T) {
	prog, err := Parse("$Age + 1")
	require.NoError(t, err)
	require.Len(t, prog.Stmts, 1)
	es := prog.Stmts[0].(*ExprStmt)
	bin := es.Expr.(*BinaryExpr)
	attr := bin.Left.(*RecordAttr)
	assert.Equal(t, "Age", attr.DollarName)
}

func TestEmptyBodyReturnsDefault(t *testing.T) {
	body, err := Transform("   \n# just a comment\n", &NoneLit{})
	require.NoError(t, err)
	assert.True(t, body.WasEmpty)
	require.Len(t, body.Stmts, 1)
	ret := body.Stmts[0].(*ReturnStmt)
	_, isNone := ret.Expr.(*NoneLit)
	assert.True(t, isNone)
}

func TestFinalExpressionGetsImplicitReturn(t *testing.T) {
	body, err := Transform("x = 1\n$Age * 2", &NoneLit{})
	require.NoError(t, err)
	require.Len(t, body.Stmts, 2)
	_, isAssign := body.Stmts[0].(*AssignStmt)
	assert.True(t, isAssign)
	ret, isReturn := body.Stmts[1].(*ReturnStmt)
	require.True(t, isReturn)
	assert.NotNil(t, ret.Expr)
}

func TestTrailingBareAssignmentIsAnError(t *testing.T) {
	_, err := Transform("x = 1\ny = 2", &NoneLit{})
	require.Error(t, err)
	synErr, ok := err.(*SyntaxError)
	require.True(t, ok)
	assert.Contains(t, synErr.Hint, "==")
}

func TestAssigningToRecIsForbidden(t *testing.T) {
	_, err := Transform("rec = 1\nreturn rec", &NoneLit{})
	require.Error(t, err)
}

func TestIfArgsAreLazyWrapped(t *testing.T) {
	body, err := Transform(`return IF($Age > 18, "adult", "minor")`, &NoneLit{})
	require.NoError(t, err)
	ret := body.Stmts[0].(*ReturnStmt)
	call := ret.Expr.(*CallExpr)
	require.Len(t, call.Args, 3)
	_, condIsThunk := call.Args[0].Value.(*Thunk)
	assert.False(t, condIsThunk)
	_, thenIsThunk := call.Args[1].Value.(*Thunk)
	assert.True(t, thenIsThunk)
	_, elseIsThunk := call.Args[2].Value.(*Thunk)
	assert.True(t, elseIsThunk)
}

func TestIserrWrapsItsSoleArg(t *testing.T) {
	body, err := Transform(`return ISERR($Total)`, &NoneLit{})
	require.NoError(t, err)
	ret := body.Stmts[0].(*ReturnStmt)
	call := ret.Expr.(*CallExpr)
	_, isThunk := call.Args[0].Value.(*Thunk)
	assert.True(t, isThunk)
}

func TestNestedIfWrapsFromInsideOut(t *testing.T) {
	body, err := Transform(`return IF($A, IF($B, 1, 2), 3)`, &NoneLit{})
	require.NoError(t, err)
	ret := body.Stmts[0].(*ReturnStmt)
	outer := ret.Expr.(*CallExpr)
	thunk := outer.Args[1].Value.(*Thunk)
	inner := thunk.Body.(*CallExpr)
	_, innerThenIsThunk := inner.Args[1].Value.(*Thunk)
	assert.True(t, innerThenIsThunk)
}

func TestSyntaxErrorReportsSourcePosition(t *testing.T) {
	_, err := Parse("1 +")
	require.Error(t, err)
	synErr, ok := err.(*SyntaxError)
	require.True(t, ok)
	assert.Equal(t, 3, synErr.Pos)
}

func TestAttributeChainParsesForRenamePass(t *testing.T) {
	prog, err := Parse("foo.Name")
	require.NoError(t, err)
	es := prog.Stmts[0].(*ExprStmt)
	attr := es.Expr.(*AttrExpr)
	assert.Equal(t, "Name", attr.Name)
	ident := attr.Object.(*Ident)
	assert.Equal(t, "foo", ident.Name)
}

func TestKeywordArgumentsParse(t *testing.T) {
	prog, err := Parse(`Table.lookupOne(x=1)`)
	require.NoError(t, err)
	es := prog.Stmts[0].(*ExprStmt)
	attr := es.Expr.(*CallExpr)
	assert.Equal(t, "x", attr.Args[0].Keyword)
}
