// Package codegen implements spec.md §4.6: compiling a schema's formula
// columns into executable functions. Since the target language has no
// dynamic source-eval step (§9 "Dynamic formula execution"), compilation
// here means interpreting the §4.5-transformed AST through a small
// tree-walking evaluator and caching the resulting closure by
// (table, col, source) so unchanged formulas survive schema rebuilds.
package codegen

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kasuganosora/gridengine/pkg/formula"
)

// Arg is one evaluated call argument. Value holds a Thunk instead of a
// plain value when the formula AST marked this argument lazy (§4.5 step 3).
type Arg struct {
	Keyword string
	Value   interface{}
}

// Thunk defers evaluation of a lazy-wrapped argument until the callee
// (IF, ISERR, ...) decides to force it.
type Thunk func() (interface{}, error)

// Force evaluates a value that may be a Thunk, returning it unchanged
// otherwise.
func Force(v interface{}) (interface{}, error) {
	if t, ok := v.(Thunk); ok {
		return t()
	}
	return v, nil
}

// EvalContext is the narrow view the interpreter needs from the engine to
// run a formula: resolving `$col`/attribute access, and dispatching calls
// to table/record methods and document-level names (table ids, globals).
// pkg/engine implements this; codegen never imports pkg/engine.
type EvalContext interface {
	// RecordSelf returns the implicit `rec` value for the cell being
	// computed.
	RecordSelf() interface{}
	// TableSelf returns the implicit `table` value (the UserTable proxy).
	TableSelf() interface{}
	// GetAttr resolves `recv.name` (including `$name` desugared into a
	// RecordAttr on rec). Recording the resulting dependency edge is the
	// engine's responsibility inside this call.
	GetAttr(recv interface{}, name string) (interface{}, error)
	// CallGlobal resolves a call `name(args)` whose name is not one of the
	// interpreter's builtins: a table id used as a callable namespace, or a
	// document-level helper the engine provides beyond the interpreter's
	// fixed builtin set. (`Purchases.lookupRecords` arrives as CallMethod,
	// and a bare `Purchases` reference used as a value goes to ResolveName.)
	CallGlobal(name string, args []Arg) (interface{}, error)
	// CallMethod resolves `recv.name(args...)` for engine-owned receivers
	// (Record, RecordSet, Table proxies).
	CallMethod(recv interface{}, name string, args []Arg) (interface{}, error)
	// ResolveName resolves a bare identifier that isn't a local variable:
	// typically a table id referenced directly in formula source.
	ResolveName(name string) (interface{}, bool)
}

// scope is a single lexical frame for local (formula-body) variables.
type scope struct {
	vars map[string]interface{}
}

func newScope() *scope { return &scope{vars: make(map[string]interface{})} }

// Interpreter walks a transformed formula.Body against an EvalContext.
type Interpreter struct{}

// NewInterpreter constructs an Interpreter. Stateless; safe to share.
func NewInterpreter() *Interpreter { return &Interpreter{} }

// Run executes body's statements in order, returning the value of the
// (guaranteed present, per §4.5 step 4) final return statement.
func (ip *Interpreter) Run(body *formula.Body, ctx EvalContext) (interface{}, error) {
	env := newScope()
	var result interface{}
	for _, s := range body.Stmts {
		val, returned, err := ip.execStmt(s, env, ctx)
		if err != nil {
			return nil, err
		}
		if returned {
			result = val
		}
	}
	return result, nil
}

func (ip *Interpreter) execStmt(s formula.Stmt, env *scope, ctx EvalContext) (interface{}, bool, error) {
	switch st := s.(type) {
	case *formula.AssignStmt:
		v, err := ip.eval(st.Expr, env, ctx)
		if err != nil {
			return nil, false, err
		}
		v, err = Force(v)
		if err != nil {
			return nil, false, err
		}
		env.vars[st.Name] = v
		return nil, false, nil
	case *formula.ReturnStmt:
		if st.Expr == nil {
			return nil, true, nil
		}
		v, err := ip.eval(st.Expr, env, ctx)
		if err != nil {
			return nil, false, err
		}
		v, err = Force(v)
		return v, true, err
	case *formula.ExprStmt:
		_, err := ip.eval(st.Expr, env, ctx)
		return nil, false, err
	case *formula.RaiseStmt:
		return nil, false, st.Err
	default:
		return nil, false, fmt.Errorf("codegen: unsupported statement %T", s)
	}
}

func (ip *Interpreter) evalArgs(args []formula.CallArg, env *scope, ctx EvalContext, lazy map[int]bool) ([]Arg, error) {
	out := make([]Arg, len(args))
	for i, a := range args {
		if lazy[i] {
			expr := a.Value
			out[i] = Arg{Keyword: a.Keyword, Value: Thunk(func() (interface{}, error) {
				return ip.eval(expr, env, ctx)
			})}
			continue
		}
		v, err := ip.eval(a.Value, env, ctx)
		if err != nil {
			return nil, err
		}
		out[i] = Arg{Keyword: a.Keyword, Value: v}
	}
	return out, nil
}

func (ip *Interpreter) eval(e formula.Expr, env *scope, ctx EvalContext) (interface{}, error) {
	switch n := e.(type) {
	case *formula.NumberLit:
		return n.Value, nil
	case *formula.StringLit:
		return n.Value, nil
	case *formula.BoolLit:
		return n.Value, nil
	case *formula.NoneLit:
		return nil, nil
	case *formula.RecordAttr:
		return ctx.GetAttr(ctx.RecordSelf(), n.DollarName)
	case *formula.Thunk:
		body := n.Body
		return Thunk(func() (interface{}, error) { return ip.eval(body, env, ctx) }), nil
	case *formula.Ident:
		if v, ok := env.vars[n.Name]; ok {
			return v, nil
		}
		switch n.Name {
		case "rec":
			return ctx.RecordSelf(), nil
		case "table":
			return ctx.TableSelf(), nil
		}
		if v, ok := ctx.ResolveName(n.Name); ok {
			return v, nil
		}
		return nil, fmt.Errorf("codegen: undefined name %q", n.Name)
	case *formula.AttrExpr:
		obj, err := ip.eval(n.Object, env, ctx)
		if err != nil {
			return nil, err
		}
		obj, err = Force(obj)
		if err != nil {
			return nil, err
		}
		return ctx.GetAttr(obj, n.Name)
	case *formula.UnaryExpr:
		v, err := ip.eval(n.Operand, env, ctx)
		if err != nil {
			return nil, err
		}
		v, err = Force(v)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case "-":
			f, _ := asFloat(v)
			return -f, nil
		case "not":
			return !truthy(v), nil
		}
		return nil, fmt.Errorf("codegen: unknown unary op %q", n.Op)
	case *formula.BinaryExpr:
		return ip.evalBinary(n, env, ctx)
	case *formula.CallExpr:
		return ip.evalCall(n, env, ctx)
	default:
		return nil, fmt.Errorf("codegen: unsupported expression %T", e)
	}
}

func (ip *Interpreter) evalBinary(n *formula.BinaryExpr, env *scope, ctx EvalContext) (interface{}, error) {
	if n.Op == "and" || n.Op == "or" {
		l, err := ip.eval(n.Left, env, ctx)
		if err != nil {
			return nil, err
		}
		l, err = Force(l)
		if err != nil {
			return nil, err
		}
		if n.Op == "and" && !truthy(l) {
			return l, nil
		}
		if n.Op == "or" && truthy(l) {
			return l, nil
		}
		r, err := ip.eval(n.Right, env, ctx)
		if err != nil {
			return nil, err
		}
		return Force(r)
	}

	l, err := ip.eval(n.Left, env, ctx)
	if err != nil {
		return nil, err
	}
	l, err = Force(l)
	if err != nil {
		return nil, err
	}
	r, err := ip.eval(n.Right, env, ctx)
	if err != nil {
		return nil, err
	}
	r, err = Force(r)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case "==":
		return valuesEqual(l, r), nil
	case "!=":
		return !valuesEqual(l, r), nil
	case "<", "<=", ">", ">=":
		return compareOp(n.Op, l, r)
	case "+":
		if ls, ok := l.(string); ok {
			if rs, ok := r.(string); ok {
				return ls + rs, nil
			}
		}
		lf, lok := asFloat(l)
		rf, rok := asFloat(r)
		if lok && rok {
			return lf + rf, nil
		}
		return nil, fmt.Errorf("codegen: cannot add %T and %T", l, r)
	case "-", "*", "/", "%":
		lf, lok := asFloat(l)
		rf, rok := asFloat(r)
		if !lok || !rok {
			return nil, fmt.Errorf("codegen: non-numeric operand to %q", n.Op)
		}
		switch n.Op {
		case "-":
			return lf - rf, nil
		case "*":
			return lf * rf, nil
		case "/":
			if rf == 0 {
				return nil, fmt.Errorf("codegen: division by zero")
			}
			return lf / rf, nil
		case "%":
			return math.Mod(lf, rf), nil
		}
	}
	return nil, fmt.Errorf("codegen: unknown binary op %q", n.Op)
}

func (ip *Interpreter) evalCall(n *formula.CallExpr, env *scope, ctx EvalContext) (interface{}, error) {
	if attr, ok := n.Callee.(*formula.AttrExpr); ok {
		recv, err := ip.eval(attr.Object, env, ctx)
		if err != nil {
			return nil, err
		}
		recv, err = Force(recv)
		if err != nil {
			return nil, err
		}
		args, err := ip.evalArgs(n.Args, env, ctx, nil)
		if err != nil {
			return nil, err
		}
		return ctx.CallMethod(recv, attr.Name, args)
	}
	id, ok := n.Callee.(*formula.Ident)
	if !ok {
		return nil, fmt.Errorf("codegen: unsupported call target %T", n.Callee)
	}
	if fn, ok := builtins[id.Name]; ok {
		// formula.Transform already wrapped the lazy-aware arguments of
		// IF/ISERR/ISERROR/IFERROR/PEEK in *formula.Thunk nodes, so eval()
		// naturally yields a Thunk for those positions here.
		args, err := ip.evalArgs(n.Args, env, ctx, nil)
		if err != nil {
			return nil, err
		}
		return fn(args)
	}
	args, err := ip.evalArgs(n.Args, env, ctx, nil)
	if err != nil {
		return nil, err
	}
	return ctx.CallGlobal(id.Name, args)
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case int64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func valuesEqual(a, b interface{}) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func compareOp(op string, a, b interface{}) (interface{}, error) {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	var c int
	if aok && bok {
		switch {
		case af < bf:
			c = -1
		case af > bf:
			c = 1
		default:
			c = 0
		}
	} else if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			c = strings.Compare(as, bs)
		} else {
			return nil, fmt.Errorf("codegen: cannot compare %T and %T", a, b)
		}
	} else {
		return nil, fmt.Errorf("codegen: cannot compare %T and %T", a, b)
	}
	switch op {
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	}
	return nil, fmt.Errorf("codegen: unknown comparison %q", op)
}
