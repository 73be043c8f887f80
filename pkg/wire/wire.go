// Package wire implements spec.md §6's action-bundle wire encoding: each
// data action becomes a fixed-shape [variant_name, args...] record, and
// cell values inside a `columns` map are tagged per the scalar/Record/
// DateTime/raised-exception/list/dict encoding rules. Grounded on
// original_source/sandbox/grist/objtypes.py's encode_object, which defines
// exactly this tag-prefixed-array scheme for the document's JSON wire
// format.
package wire

import (
	"fmt"
	"math"

	"github.com/kasuganosora/gridengine/pkg/action"
	"github.com/kasuganosora/gridengine/pkg/cellvalue"
)

// Value is the wire-encoded form of one cell value: either a bare scalar
// (string/float64/bool/nil) or a tagged []interface{} per §6.
type Value = interface{}

const (
	int32Min = math.MinInt32
	int32Max = math.MaxInt32
)

// EncodeValue converts a live cell value into its wire form.
func EncodeValue(v interface{}) Value {
	switch t := v.(type) {
	case nil, string, float64, bool:
		return t
	case int64:
		if !clampInt32(t) {
			return []interface{}{"U", fmt.Sprintf("%d", t)}
		}
		return float64(t)
	case int:
		return EncodeValue(int64(t))
	case cellvalue.RefValue:
		return encodeRef("", int64(t))
	case cellvalue.RefList:
		return []interface{}{"r", "", encodeRowIDs([]int64(t))}
	case cellvalue.DateValue:
		return []interface{}{"d", int64(t)}
	case cellvalue.DateTimeValue:
		return []interface{}{"D", t.Seconds, t.TZ}
	case cellvalue.ChoiceList:
		out := make([]interface{}, len(t))
		for i, s := range t {
			out[i] = s
		}
		return append([]interface{}{"L"}, out...)
	case *cellvalue.RaisedException:
		return encodeRaised(t)
	case cellvalue.Pending:
		return []interface{}{"P"}
	case cellvalue.Censored:
		return []interface{}{"C"}
	case cellvalue.AltText:
		return t.Text
	case cellvalue.Unmarshallable:
		return []interface{}{"U", t.Repr}
	case cellvalue.ReferenceLookupInput:
		return []interface{}{"l", EncodeValue(t.Value), t.Options}
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = EncodeValue(e)
		}
		return append([]interface{}{"L"}, out...)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = EncodeValue(e)
		}
		return []interface{}{"O", out}
	default:
		return []interface{}{"U", fmt.Sprintf("%#v", t)}
	}
}

// EncodeRef tags a row reference with its target table id (§6 "['R',
// table_id, row_id]"); RefValue alone doesn't carry the table id, so
// callers that know it (the action executor, which has the column's Type)
// use this instead of the bare EncodeValue case above.
func EncodeRef(tableID string, rowID int64) Value { return encodeRef(tableID, rowID) }

func encodeRef(tableID string, rowID int64) Value {
	return []interface{}{"R", tableID, rowID}
}

// EncodeRefList tags a row-id list with its target table id (§6 "['r',
// table_id, [row_ids...]]").
func EncodeRefList(tableID string, rowIDs []int64) Value {
	return []interface{}{"r", tableID, encodeRowIDs(rowIDs)}
}

func encodeRowIDs(ids []int64) []interface{} {
	out := make([]interface{}, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}

// encodeRaised builds the §6 "['E', name, message?, details?, {u:
// ...}?]" form, stripping trailing nils per spec.
func encodeRaised(r *cellvalue.RaisedException) []interface{} {
	parts := []interface{}{"E", r.Name}
	var message, details, userWrap interface{}
	if r.Message != "" {
		message = r.Message
	}
	if r.Traceback != "" {
		details = map[string]interface{}{"traceback": r.Traceback}
	}
	if r.UserInput != nil {
		userWrap = map[string]interface{}{"u": EncodeValue(r.UserInput)}
	}
	tail := []interface{}{message, details, userWrap}
	for len(tail) > 0 && tail[len(tail)-1] == nil {
		tail = tail[:len(tail)-1]
	}
	return append(parts, tail...)
}

// EncodeColumnValues converts a full action.ColumnValues map into its wire
// shape (every value slice passed through EncodeValue).
func EncodeColumnValues(values action.ColumnValues) map[string][]interface{} {
	out := make(map[string][]interface{}, len(values))
	for col, slice := range values {
		enc := make([]interface{}, len(slice))
		for i, v := range slice {
			enc[i] = EncodeValue(v)
		}
		out[col] = enc
	}
	return out
}

// Record is one [variant_name, args...] wire entry for a data action.
type Record []interface{}

// EncodeAction renders a into its wire Record. Every field is emitted in
// the action's declared struct order so the shape matches §6's
// [variant_name, args...] description exactly.
func EncodeAction(a action.Action) (Record, error) {
	switch act := a.(type) {
	case *action.AddRecord:
		return Record{act.Variant(), act.Table, act.RowID, encodeScalarMap(act.Values)}, nil
	case *action.BulkAddRecord:
		return Record{act.Variant(), act.Table, act.RowIDs, EncodeColumnValues(act.Values)}, nil
	case *action.RemoveRecord:
		return Record{act.Variant(), act.Table, act.RowID}, nil
	case *action.BulkRemoveRecord:
		return Record{act.Variant(), act.Table, act.RowIDs}, nil
	case *action.UpdateRecord:
		return Record{act.Variant(), act.Table, act.RowID, encodeScalarMap(act.Values)}, nil
	case *action.BulkUpdateRecord:
		return Record{act.Variant(), act.Table, act.RowIDs, EncodeColumnValues(act.Values)}, nil
	case *action.ReplaceTableData:
		return Record{act.Variant(), act.Table, act.RowIDs, EncodeColumnValues(act.Values)}, nil
	case *action.AddColumn:
		return Record{act.Variant(), act.Table, act.ColID, act.Spec}, nil
	case *action.RemoveColumn:
		return Record{act.Variant(), act.Table, act.ColID}, nil
	case *action.RenameColumn:
		return Record{act.Variant(), act.Table, act.OldColID, act.NewColID}, nil
	case *action.ModifyColumn:
		return Record{act.Variant(), act.Table, act.ColID, act.Spec}, nil
	case *action.AddTable:
		return Record{act.Variant(), act.Table, act.Columns}, nil
	case *action.RemoveTable:
		return Record{act.Variant(), act.Table}, nil
	case *action.RenameTable:
		return Record{act.Variant(), act.OldTable, act.NewTable}, nil
	default:
		return nil, fmt.Errorf("wire: unknown action type %T", a)
	}
}

func encodeScalarMap(values map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(values))
	for k, v := range values {
		out[k] = EncodeValue(v)
	}
	return out
}

// EncodeBundle renders every action in actions, in order, stopping at the
// first encoding error.
func EncodeBundle(actions []action.Action) ([]Record, error) {
	out := make([]Record, 0, len(actions))
	for _, a := range actions {
		rec, err := EncodeAction(a)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// UserActionBundle is the §6 "engine returns {stored, undo, calc,
// retValues}" response shape.
type UserActionBundle struct {
	Stored    []Record      `json:"stored"`
	Undo      []Record      `json:"undo"`
	Calc      []Record      `json:"calc"`
	RetValues []interface{} `json:"retValues"`
}

// clampInt32 reports whether n fits the wire format's plain-float encoding
// (§6 "Int out of the 32-bit signed range: encoded as ['U', ...]").
func clampInt32(n int64) bool { return n >= int32Min && n <= int32Max }
