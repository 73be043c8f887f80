package engine

import (
	"fmt"
	"sort"

	"github.com/kasuganosora/gridengine/pkg/cellvalue"
	"github.com/kasuganosora/gridengine/pkg/codegen"
	"github.com/kasuganosora/gridengine/pkg/lookup"
)

// Document implements codegen.EvalContext directly: formula bodies are run
// with the document itself as ctx, so GetAttr/CallMethod can both read
// table storage and record dependency edges in the same call.

// RecordSelf and TableSelf implement codegen.EvalContext: they answer the
// formula body's bare `rec`/`table` identifiers with whatever cell recalc
// pushed as active (pushActive/popActive in backref.go).
func (d *Document) RecordSelf() interface{} { return d.runRec }
func (d *Document) TableSelf() interface{}  { return d.runTable }

// GetAttr resolves `recv.name`: a Record's column, a RecordSet's per-row
// projection or find accessor, or a TableProxy's pseudo-attributes.
func (d *Document) GetAttr(recv interface{}, name string) (interface{}, error) {
	switch r := recv.(type) {
	case *Record:
		return d.getAttrRecord(r, name)
	case *RecordSet:
		if name == "All" {
			return r, nil
		}
		return d.getAttrRecordSet(r, name)
	case *TableProxy:
		if name == "All" {
			tbl := d.Table(r.TableID)
			if tbl == nil {
				return nil, fmt.Errorf("engine: unknown table %s", r.TableID)
			}
			return d.NewRecordSet(r.TableID, tbl.RowIDs()), nil
		}
		return nil, fmt.Errorf("engine: table %s has no attribute %s", r.TableID, name)
	case nil:
		return nil, fmt.Errorf("engine: attribute access %q on empty value", name)
	default:
		return nil, fmt.Errorf("engine: cannot access attribute %q on %T", name, recv)
	}
}

// CallGlobal resolves a bare call target that isn't a registered builtin:
// a table id called by name (`Purchases(...)`) returns that table's proxy.
func (d *Document) CallGlobal(name string, args []codegen.Arg) (interface{}, error) {
	if _, ok := d.schema.Table(name); ok {
		return d.NewTableProxy(name), nil
	}
	return nil, fmt.Errorf("engine: unknown function or table %q", name)
}

// CallMethod resolves `recv.name(args...)`: Table.lookupOne/lookupRecords,
// RecordSet.find.lt/le/gt/ge/eq (§4.2).
func (d *Document) CallMethod(recv interface{}, name string, args []codegen.Arg) (interface{}, error) {
	switch r := recv.(type) {
	case *TableProxy:
		switch name {
		case "lookupOne":
			rs, err := d.lookupRecords(r.TableID, args)
			if err != nil {
				return nil, err
			}
			if len(rs.RowIDs) == 0 {
				return d.NewRecord(r.TableID, 0), nil
			}
			return d.NewRecord(r.TableID, rs.RowIDs[0]), nil
		case "lookupRecords":
			return d.lookupRecords(r.TableID, args)
		}
		return nil, fmt.Errorf("engine: table %s has no method %s", r.TableID, name)
	case *finder:
		return d.findOrdered(r.rs, name, args)
	}
	return nil, fmt.Errorf("engine: cannot call method %q on %T", name, recv)
}

// ResolveName resolves a bare identifier that isn't a local variable:
// another table referenced directly by id in formula source.
func (d *Document) ResolveName(name string) (interface{}, bool) {
	if _, ok := d.schema.Table(name); ok {
		return d.NewTableProxy(name), true
	}
	return nil, false
}

// lookupRecords implements Table.lookupRecords(Col=value, ..., sort_by=,
// order_by=) (§4.2): keyword args (other than sort_by/order_by) name the key
// columns, queried by value equality — except a single ChoiceList/RefList
// key column queried with one scalar element, which uses contains-style
// membership instead. The result is ordered per sort_by or order_by,
// defaulting to row id order.
func (d *Document) lookupRecords(tableID string, args []codegen.Arg) (*RecordSet, error) {
	var keyCols []string
	var keyVals []interface{}
	var sortBy string
	var orderBy []string
	for _, a := range args {
		v, err := codegen.Force(a.Value)
		if err != nil {
			return nil, err
		}
		switch a.Keyword {
		case "sort_by":
			sortBy, _ = v.(string)
		case "order_by":
			orderBy = orderByList(v)
		case "":
			return nil, fmt.Errorf("engine: lookupRecords requires keyword arguments")
		default:
			keyCols = append(keyCols, a.Keyword)
			keyVals = append(keyVals, v)
		}
	}
	sort.Sort(&kvSorter{keyCols, keyVals})

	var rows []int64
	if len(keyCols) == 1 && !isListValue(keyVals[0]) && d.isListColumn(tableID, keyCols[0]) {
		// §4.2 step 1's "optional filter for contains/equality": a single
		// key column typed ChoiceList/RefList, queried with one scalar
		// element, matches rows whose list contains that element rather
		// than rows whose list equals a single-element list.
		name := containsIndexName(tableID, keyCols[0])
		cidx := d.containsIndexFor(tableID, keyCols[0])
		key := lookup.MakeKey(keyVals[0])
		d.recordLookupDependency(name, key)
		rows = cidx.RowsForKey(key)
	} else {
		idx := d.indexFor(tableID, keyCols)
		key := lookup.MakeKey(keyVals...)
		d.recordLookupDependency(indexName(tableID, keyCols), key)
		rows = idx.Rows(key)
	}

	var spec lookup.OrderSpec
	if len(orderBy) > 0 {
		spec = lookup.NormalizeOrderBy(orderBy)
	} else {
		spec = lookup.NormalizeSortBy(sortBy)
	}
	rows = append([]int64(nil), rows...)
	if len(spec.Fields) > 0 {
		lookup.SortRows(rows, spec, d.valueGetter(tableID))
	} else {
		sort.Slice(rows, func(i, j int) bool { return rows[i] < rows[j] })
	}
	rs := d.NewRecordSet(tableID, rows)
	rs.order = spec
	return rs, nil
}

func (d *Document) valueGetter(tableID string) lookup.ValueGetter {
	return func(rowID int64, colID string) interface{} {
		tbl := d.Table(tableID)
		if tbl == nil {
			return nil
		}
		col := tbl.Column(colID)
		if col == nil {
			return nil
		}
		return col.Get(rowID)
	}
}

// findOrdered implements RecordSet.find.lt/le/gt/ge/eq(value) (§4.2): binary
// search over the set's own ordering (falling back to row id order),
// comparing value against the first field of that ordering.
func (d *Document) findOrdered(rs *RecordSet, op string, args []codegen.Arg) (interface{}, error) {
	var opCode lookup.FindOp
	switch op {
	case "lt":
		opCode = lookup.FindLT
	case "le":
		opCode = lookup.FindLE
	case "gt":
		opCode = lookup.FindGT
	case "ge":
		opCode = lookup.FindGE
	case "eq":
		opCode = lookup.FindEQ
	default:
		return nil, fmt.Errorf("engine: unknown find operator %q", op)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("engine: find.%s requires a value", op)
	}
	queryVal, err := codegen.Force(args[0].Value)
	if err != nil {
		return nil, err
	}
	spec := rs.order
	byID := len(spec.Fields) == 0
	if byID {
		spec = lookup.OrderSpec{Fields: []lookup.OrderField{{ColID: "id"}}}
	}
	get := d.valueGetter(rs.TableID)
	tuples := make([]lookup.SortTuple, len(rs.RowIDs))
	for i, row := range rs.RowIDs {
		if byID {
			tuples[i] = lookup.SortTuple{row}
		} else {
			tuples[i] = lookup.TupleFor(row, spec, get)
		}
	}
	query := lookup.SortTuple{queryVal}
	first := lookup.OrderSpec{Fields: spec.Fields[:1]}
	rowID, found := lookup.FindOrdered(rs.RowIDs, tuples, first, query, opCode)
	if !found {
		return d.NewRecord(rs.TableID, 0), nil
	}
	return d.NewRecord(rs.TableID, rowID), nil
}

// isListValue reports whether v is itself a list-shaped query value (a
// whole ChoiceList/RefList passed as the key), as opposed to a single
// scalar element — the distinction lookupRecords uses to pick equality vs.
// contains lookup semantics.
func isListValue(v interface{}) bool {
	switch v.(type) {
	case cellvalue.ChoiceList, cellvalue.RefList, []interface{}:
		return true
	default:
		return false
	}
}

func orderByList(v interface{}) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// kvSorter keeps keyCols/keyVals paired while sorting by column name, so
// lookupRecords(B=1, A=2) and lookupRecords(A=2, B=1) build the same index
// (keyed by sorted column order) and the same query key.
type kvSorter struct {
	cols []string
	vals []interface{}
}

func (s *kvSorter) Len() int      { return len(s.cols) }
func (s *kvSorter) Swap(i, j int) {
	s.cols[i], s.cols[j] = s.cols[j], s.cols[i]
	s.vals[i], s.vals[j] = s.vals[j], s.vals[i]
}
func (s *kvSorter) Less(i, j int) bool { return s.cols[i] < s.cols[j] }
