package formula

import "strings"

// lazyArgIndices lists, for each recognized lazy-aware function, which
// positional argument indices get wrapped in a Thunk so unselected
// branches never evaluate (§4.5 step 3).
var lazyArgIndices = map[string][]int{
	"IF":      {1, 2},
	"ISERR":   {0},
	"ISERROR": {0},
	"IFERROR": {0, 1},
	"PEEK":    {0},
}

// Body is the fully transformed, ready-to-generate formula: the parsed and
// rewritten statement list, plus whether the body was empty (meaning the
// caller should substitute the column's default-value expression).
type Body struct {
	Stmts    []Stmt
	WasEmpty bool
}

// Transform runs the full §4.5 pipeline over raw formula source:
// normalize, parse, lazy-wrap, and enforce the final-statement/assignment
// rules. emptyBodyDefault is the value returned when the source is empty.
func Transform(src string, emptyBodyDefault Expr) (*Body, error) {
	trimmed := strings.TrimSpace(stripCommentOnlyLines(src))
	if trimmed == "" {
		return &Body{Stmts: []Stmt{&ReturnStmt{Expr: emptyBodyDefault}}, WasEmpty: true}, nil
	}

	prog, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if len(prog.Stmts) == 0 {
		return &Body{Stmts: []Stmt{&ReturnStmt{Expr: emptyBodyDefault}}, WasEmpty: true}, nil
	}

	for _, s := range prog.Stmts {
		if assign, ok := s.(*AssignStmt); ok {
			walkExpr(assign.Expr, lazyWrapVisitor)
			if assign.Name == "rec" {
				return nil, &SyntaxError{Pos: assign.Pos, Message: "cannot assign to reserved name 'rec'"}
			}
		}
		if ret, ok := s.(*ReturnStmt); ok && ret.Expr != nil {
			walkExpr(ret.Expr, lazyWrapVisitor)
		}
		if es, ok := s.(*ExprStmt); ok {
			walkExpr(es.Expr, lazyWrapVisitor)
		}
	}

	last := prog.Stmts[len(prog.Stmts)-1]
	switch s := last.(type) {
	case *ExprStmt:
		prog.Stmts[len(prog.Stmts)-1] = &ReturnStmt{Expr: s.Expr, Pos: s.Pos}
	case *AssignStmt:
		return nil, &SyntaxError{
			Pos:     s.Pos,
			Message: "formula body must end with a value, not an assignment",
			Hint:    "did you mean '==' instead of '='?",
		}
	case *ReturnStmt:
		// already a return; nothing to do
	}

	return &Body{Stmts: prog.Stmts}, nil
}

// stripCommentOnlyLines removes lines that are entirely a comment so a
// body consisting only of comments is correctly treated as empty.
func stripCommentOnlyLines(src string) string {
	lines := strings.Split(src, "\n")
	var kept []string
	for _, line := range lines {
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// lazyWrapVisitor rewrites recognized calls in place, wrapping the
// designated argument expressions in Thunk nodes.
func lazyWrapVisitor(e Expr) Expr {
	call, ok := e.(*CallExpr)
	if !ok {
		return e
	}
	name, ok := calleeName(call.Callee)
	if !ok {
		return e
	}
	indices, ok := lazyArgIndices[name]
	if !ok {
		return e
	}
	wrap := make(map[int]bool, len(indices))
	for _, i := range indices {
		wrap[i] = true
	}
	for i := range call.Args {
		if wrap[i] {
			call.Args[i].Value = &Thunk{Body: call.Args[i].Value, Pos: call.Args[i].Value.exprPos()}
		}
	}
	return call
}

func calleeName(e Expr) (string, bool) {
	if id, ok := e.(*Ident); ok {
		return id.Name, true
	}
	return "", false
}

// walkExpr applies visit to every CallExpr reachable from e (post-order on
// children first so nested lazy-aware calls are wrapped from the inside
// out), mutating the tree in place via the pointers held in parent nodes.
func walkExpr(e Expr, visit func(Expr) Expr) {
	switch n := e.(type) {
	case *BinaryExpr:
		walkExpr(n.Left, visit)
		walkExpr(n.Right, visit)
	case *UnaryExpr:
		walkExpr(n.Operand, visit)
	case *AttrExpr:
		walkExpr(n.Object, visit)
	case *CallExpr:
		walkExpr(n.Callee, visit)
		for i := range n.Args {
			walkExpr(n.Args[i].Value, visit)
		}
		visit(n)
	case *Thunk:
		walkExpr(n.Body, visit)
	}
}
