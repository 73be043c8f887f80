package formula

// Expr is any formula expression node. Every node carries its source rune
// offset (Pos) so later passes (lazy-wrapping, rename rewriting, error
// mapping) can report locations in the user's original text.
type Expr interface {
	exprPos() int
}

// Ident is a bare identifier reference (a local variable, a builtin
// function name, or a table name).
type Ident struct {
	Name string
	Pos  int
}

func (e *Ident) exprPos() int { return e.Pos }

// RecordAttr is the desugared form of `$Name`: attribute access on the
// formula's implicit `rec` variable (§4.5 step 2). DollarName preserves
// the original `$Name` spelling for rename-pass rewriting.
type RecordAttr struct {
	DollarName string
	Pos        int
}

func (e *RecordAttr) exprPos() int { return e.Pos }

// NumberLit is a numeric literal.
type NumberLit struct {
	Value float64
	Pos   int
}

func (e *NumberLit) exprPos() int { return e.Pos }

// StringLit is a string literal.
type StringLit struct {
	Value string
	Pos   int
}

func (e *StringLit) exprPos() int { return e.Pos }

// BoolLit is True/False.
type BoolLit struct {
	Value bool
	Pos   int
}

func (e *BoolLit) exprPos() int { return e.Pos }

// NoneLit is the None/null sentinel literal.
type NoneLit struct{ Pos int }

func (e *NoneLit) exprPos() int { return e.Pos }

// BinaryExpr is a binary operator application.
type BinaryExpr struct {
	Op          string
	Left, Right Expr
	Pos         int
}

func (e *BinaryExpr) exprPos() int { return e.Pos }

// UnaryExpr is a unary operator application (-, not).
type UnaryExpr struct {
	Op      string
	Operand Expr
	Pos     int
}

func (e *UnaryExpr) exprPos() int { return e.Pos }

// AttrExpr is attribute access `expr.Name` (e.g. `foo.Name`, a renamed
// reference target per §4.9, or a chained lookup result attribute).
type AttrExpr struct {
	Object Expr
	Name   string
	Pos    int
}

func (e *AttrExpr) exprPos() int { return e.Pos }

// CallArg is one positional or keyword argument to a CallExpr.
type CallArg struct {
	Keyword string // "" for positional
	Value   Expr
}

// CallExpr is a function/method call. The lazy-wrap pass in Transform
// (§4.5 step 3) replaces the Value of each lazily evaluated argument with a
// Thunk in place.
type CallExpr struct {
	Callee Expr
	Args   []CallArg
	Pos    int
}

func (e *CallExpr) exprPos() int { return e.Pos }

// Thunk wraps an expression so code generation emits it as a zero-argument
// closure instead of evaluating it eagerly — the Go equivalent of Python's
// `lambda: (...)` wrapping for IF/ISERR/ISERROR/IFERROR/PEEK branches.
type Thunk struct {
	Body Expr
	Pos  int
}

func (e *Thunk) exprPos() int { return e.Pos }

// Stmt is any top-level formula statement.
type Stmt interface {
	stmtPos() int
}

// ExprStmt evaluates an expression and discards the result, unless it's the
// final statement, in which case the transformer turns it into a
// ReturnStmt (§4.5 step 4).
type ExprStmt struct {
	Expr Expr
	Pos  int
}

func (s *ExprStmt) stmtPos() int { return s.Pos }

// AssignStmt binds Name to the result of Expr. Name must never be "rec"
// (§4.5 step 5); attribute-target assignment isn't representable in this
// grammar at all.
type AssignStmt struct {
	Name string
	Expr Expr
	Pos  int
}

func (s *AssignStmt) stmtPos() int { return s.Pos }

// ReturnStmt supplies the formula's result; Expr is nil for a bare `return`.
type ReturnStmt struct {
	Expr Expr
	Pos  int
}

func (s *ReturnStmt) stmtPos() int { return s.Pos }

// RaiseStmt is never produced by the parser. codegen substitutes it for a
// formula body that failed to compile, so the column still participates in
// the schema but raises the original error whenever it's evaluated (§4.5
// step 5, §7 "Syntax error in formula").
type RaiseStmt struct {
	Err error
	Pos int
}

func (s *RaiseStmt) stmtPos() int { return s.Pos }

// Program is a parsed, not-yet-transformed formula body.
type Program struct {
	Stmts []Stmt
}
