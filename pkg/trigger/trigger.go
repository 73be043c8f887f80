// Package trigger implements spec.md §4.11's trigger-condition handling:
// a trigger row carries a JSON-encoded {text, parsed} condition, which is
// re-parsed only when the text changes and cleared when the text becomes
// empty. Grounded on original_source/sandbox/grist/test_trigger_expression.py
// (the trigger-condition text is a formula-language boolean expression, so
// "parsed" reuses pkg/formula's parser rather than a bespoke grammar). The
// package has no reentrancy guard of its own.
package trigger

import (
	"encoding/json"
	"fmt"

	"github.com/kasuganosora/gridengine/pkg/formula"
)

// Condition is the stored, parsed form of a trigger's text: the raw
// expression text plus its AST serialized as JSON, matching the document's
// `{text, parsed}` wire shape for trigger rows (§4.11).
type Condition struct {
	Text   string          `json:"text"`
	Parsed json.RawMessage `json:"parsed,omitempty"`
}

// astNode is the JSON-serializable mirror of formula.Expr used only to
// round-trip the parsed condition to/from its wire JSON; it does not need
// to support re-evaluation since trigger conditions are re-parsed from
// Text whenever they must actually run.
type astNode struct {
	Kind  string          `json:"kind"`
	Value interface{}     `json:"value,omitempty"`
	Left  *astNode        `json:"left,omitempty"`
	Right *astNode        `json:"right,omitempty"`
	Op    string          `json:"op,omitempty"`
	Args  []astNode       `json:"args,omitempty"`
	Extra json.RawMessage `json:"extra,omitempty"`
}

// Parse compiles text into a Condition, populating Parsed with the AST's
// JSON encoding. Empty text produces a cleared Condition (§4.11 "clears the
// record when text becomes empty or null").
func Parse(text string) (*Condition, error) {
	if text == "" {
		return &Condition{}, nil
	}
	prog, err := formula.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("trigger: invalid condition: %w", err)
	}
	if len(prog.Stmts) != 1 {
		return nil, fmt.Errorf("trigger: condition must be a single expression")
	}
	es, ok := prog.Stmts[0].(*formula.ExprStmt)
	if !ok {
		return nil, fmt.Errorf("trigger: condition must be an expression, not a statement")
	}
	node := toASTNode(es.Expr)
	raw, err := json.Marshal(node)
	if err != nil {
		return nil, err
	}
	return &Condition{Text: text, Parsed: raw}, nil
}

// UpdateText returns cond unchanged when newText equals its stored text
// (§4.11 "re-parsed only when text changes"), and otherwise a freshly parsed
// Condition; cond itself is not modified.
func UpdateText(cond *Condition, newText string) (*Condition, error) {
	if cond != nil && cond.Text == newText {
		return cond, nil
	}
	return Parse(newText)
}

// Evaluate runs cond's Text through ctx.EvalBool, expecting a boolean
// result — trigger conditions gate whether a recalcWhen/recalcDeps-style
// side effect fires. The stored Parsed AST is not used; a nil or empty
// condition evaluates to true.
func Evaluate(cond *Condition, ctx interface{ EvalBool(src string) (bool, error) }) (bool, error) {
	if cond == nil || cond.Text == "" {
		return true, nil
	}
	return ctx.EvalBool(cond.Text)
}

// RenameColumn rewrites a column reference inside cond's text (§4.11 "On
// column/table renames the condition text is rewritten"), re-parsing the
// result so Parsed stays consistent with Text.
func RenameColumn(cond *Condition, oldCol, newCol string) (*Condition, error) {
	if cond == nil || cond.Text == "" {
		return cond, nil
	}
	newText, changed := formula.RenameColumn(cond.Text, oldCol, newCol)
	if !changed {
		return cond, nil
	}
	return Parse(newText)
}

// RenameTableRef rewrites a bare table-id reference inside cond's text.
func RenameTableRef(cond *Condition, oldTable, newTable string) (*Condition, error) {
	if cond == nil || cond.Text == "" {
		return cond, nil
	}
	newText, changed := formula.RenameTableRef(cond.Text, oldTable, newTable)
	if !changed {
		return cond, nil
	}
	return Parse(newText)
}

func toASTNode(e formula.Expr) astNode {
	switch n := e.(type) {
	case *formula.Ident:
		return astNode{Kind: "ident", Value: n.Name}
	case *formula.RecordAttr:
		return astNode{Kind: "dollar", Value: n.DollarName}
	case *formula.NumberLit:
		return astNode{Kind: "number", Value: n.Value}
	case *formula.StringLit:
		return astNode{Kind: "string", Value: n.Value}
	case *formula.BoolLit:
		return astNode{Kind: "bool", Value: n.Value}
	case *formula.NoneLit:
		return astNode{Kind: "none"}
	case *formula.BinaryExpr:
		l, r := toASTNode(n.Left), toASTNode(n.Right)
		return astNode{Kind: "binary", Op: n.Op, Left: &l, Right: &r}
	case *formula.UnaryExpr:
		l := toASTNode(n.Operand)
		return astNode{Kind: "unary", Op: n.Op, Left: &l}
	case *formula.AttrExpr:
		l := toASTNode(n.Object)
		return astNode{Kind: "attr", Op: n.Name, Left: &l}
	case *formula.CallExpr:
		args := make([]astNode, len(n.Args))
		for i, a := range n.Args {
			args[i] = toASTNode(a.Value)
		}
		callee := toASTNode(n.Callee)
		return astNode{Kind: "call", Left: &callee, Args: args}
	default:
		return astNode{Kind: "unknown"}
	}
}
