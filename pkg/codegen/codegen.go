package codegen

import (
	"fmt"
	"strings"
	"sync"

	"github.com/kasuganosora/gridengine/pkg/formula"
	"github.com/kasuganosora/gridengine/pkg/table"
)

// CompiledFormula is one column's executable body plus its source, cached
// so unchanged formulas survive schema rebuilds (§4.6).
type CompiledFormula struct {
	TableID string
	ColID   string
	Source  string
	Body    *formula.Body
}

// Run executes the compiled formula against ctx.
func (c *CompiledFormula) Run(ctx EvalContext) (interface{}, error) {
	return NewInterpreter().Run(c.Body, ctx)
}

// cacheKey identifies one compiled formula slot.
type cacheKey struct {
	table, col, source string
}

// Cache holds compiled formula bodies keyed by (table, col, source) so a
// schema rebuild that doesn't touch a given formula's text reuses the
// already-compiled closure instead of re-parsing (§4.6).
type Cache struct {
	mu      sync.Mutex
	entries map[cacheKey]*CompiledFormula
}

// NewCache constructs an empty compilation cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]*CompiledFormula)}
}

// Compile returns the cached CompiledFormula for (tableID, colID, source)
// if one already exists, otherwise transforms and parses source fresh and
// caches the result. emptyDefault is the expression substituted for an
// empty formula body (§4.5 step 1); columns pass their type's default as a
// literal when it is a string, bool or float64, and None otherwise.
func (c *Cache) Compile(tableID, colID, source string, emptyDefault formula.Expr) (*CompiledFormula, error) {
	key := cacheKey{tableID, colID, source}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cf, ok := c.entries[key]; ok {
		return cf, nil
	}
	body, err := formula.Transform(source, emptyDefault)
	if err != nil {
		return nil, fmt.Errorf("compiling %s.%s: %w", tableID, colID, err)
	}
	cf := &CompiledFormula{TableID: tableID, ColID: colID, Source: source, Body: body}
	c.entries[key] = cf
	return cf, nil
}

// Invalidate drops every cached entry for (tableID, colID), forcing the
// next Compile call to re-parse regardless of source text — used when a
// rename pass rewrites a formula in place and the caller wants to bypass
// the cache's source-equality check.
func (c *Cache) Invalidate(tableID, colID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.table == tableID && k.col == colID {
			delete(c.entries, k)
		}
	}
}

// Size reports the number of cached formula bodies, for diagnostics/tests.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// TableModule is the compiled view of one table's schema: every formula
// column's compiled body, plus any default-formula columns (§4.6: the
// sibling `_default_<colId>` function).
type TableModule struct {
	TableID   string
	Formulas  map[string]*CompiledFormula // colId -> compiled formula body
	Defaults  map[string]*CompiledFormula // colId -> compiled default-formula body
	ColOrder  []string
	IsSummary bool
}

// Module is the compiled form of an entire document schema (§4.6's "single
// module text", here a structured equivalent since there is no host-
// language source to emit and hot-eval).
type Module struct {
	Tables map[string]*TableModule
}

// Generate compiles every formula and default-formula column in schema,
// reusing cache entries whose (table, col, source) is unchanged. Returns
// the compiled Module. Compilation errors from one column do not abort the
// whole build: that column's CompiledFormula is replaced with a body that
// raises a syntax error at evaluation time (§4.5 step 5), matching the
// original engine's "formula columns with errors still participate in the
// schema" behavior, and the first such error is also returned so the
// caller can log it.
func Generate(schema *table.Schema, cache *Cache) (*Module, error) {
	mod := &Module{Tables: make(map[string]*TableModule)}
	var firstErr error
	for _, tableID := range schema.TableIDs() {
		spec, _ := schema.Table(tableID)
		tm := &TableModule{
			TableID:  tableID,
			Formulas: make(map[string]*CompiledFormula),
			Defaults: make(map[string]*CompiledFormula),
			ColOrder: spec.ColumnIDs(),
		}
		for _, colID := range spec.ColumnIDs() {
			colSpec, _ := spec.Column(colID)
			zero := zeroLiteral(colSpec)
			if colSpec.IsFormula {
				cf, err := cache.Compile(tableID, colID, colSpec.Formula, zero)
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
					cf = syntaxErrorFormula(tableID, colID, colSpec.Formula, err)
				}
				tm.Formulas[colID] = cf
			}
			if colSpec.DefaultFormula != "" {
				cf, err := cache.Compile(tableID, "_default_"+colID, colSpec.DefaultFormula, zero)
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
					cf = syntaxErrorFormula(tableID, colID, colSpec.DefaultFormula, err)
				}
				tm.Defaults[colID] = cf
			}
		}
		mod.Tables[tableID] = tm
	}
	return mod, firstErr
}

func zeroLiteral(spec table.ColumnSpec) formula.Expr {
	if spec.Type == nil {
		return &formula.NoneLit{}
	}
	switch spec.Type.Default().(type) {
	case string:
		return &formula.StringLit{Value: spec.Type.Default().(string)}
	case bool:
		return &formula.BoolLit{Value: spec.Type.Default().(bool)}
	case float64:
		return &formula.NumberLit{Value: spec.Type.Default().(float64)}
	default:
		return &formula.NoneLit{}
	}
}

// syntaxErrorFormula produces a CompiledFormula whose body unconditionally
// raises, used when compilation fails so the column still participates in
// the schema rather than being silently dropped (§4.5 step 5, §7 "Syntax
// error in formula").
func syntaxErrorFormula(tableID, colID, source string, compileErr error) *CompiledFormula {
	return &CompiledFormula{
		TableID: tableID,
		ColID:   colID,
		Source:  source,
		Body:    &formula.Body{Stmts: []formula.Stmt{&formula.RaiseStmt{Err: compileErr}}},
	}
}

// FullText renders a module as the "full" listing used internally (every
// helper and formula visible), mirroring §4.6's full-vs-user-visible text
// split even though nothing here is actually eval'd from text.
func (m *Module) FullText() string {
	var b strings.Builder
	for _, tm := range m.Tables {
		fmt.Fprintf(&b, "class %s:\n", tm.TableID)
		for _, colID := range tm.ColOrder {
			if cf, ok := tm.Formulas[colID]; ok {
				fmt.Fprintf(&b, "  def %s(rec, table):\n    # %s\n", colID, oneLine(cf.Source))
			}
			if cf, ok := tm.Defaults[colID]; ok {
				fmt.Fprintf(&b, "  def _default_%s(rec, table, value, user):\n    # %s\n", colID, oneLine(cf.Source))
			}
		}
	}
	return b.String()
}

// UserVisibleText renders the module text a client would display: formula
// columns only, private/helper columns omitted (§4.6).
func (m *Module) UserVisibleText() string {
	var b strings.Builder
	for _, tm := range m.Tables {
		fmt.Fprintf(&b, "class %s:\n", tm.TableID)
		for _, colID := range tm.ColOrder {
			if strings.HasPrefix(colID, "#") || strings.HasPrefix(colID, "gristHelper_") {
				continue
			}
			if cf, ok := tm.Formulas[colID]; ok {
				fmt.Fprintf(&b, "  def %s(rec, table):\n    # %s\n", colID, oneLine(cf.Source))
			}
		}
	}
	return b.String()
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
