// Package cellvalue implements Grist's typed-cell value domain (spec.md §3):
// the tagged value kinds a column may hold, their defaults, right-type
// checks, and coercions from arbitrary input. All coercion logic lives on
// the type descriptor (a ColumnType), never on the value itself, per
// spec.md §9 "Duck-typed cell values".
package cellvalue

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind identifies one of the legal column value kinds from spec.md §3.
type Kind string

const (
	KindText           Kind = "Text"
	KindNumeric        Kind = "Numeric"
	KindInt            Kind = "Int"
	KindBool           Kind = "Bool"
	KindDate           Kind = "Date"
	KindDateTime       Kind = "DateTime"
	KindChoice         Kind = "Choice"
	KindChoiceList     Kind = "ChoiceList"
	KindRef            Kind = "Ref"
	KindRefList        Kind = "RefList"
	KindAttachments    Kind = "Attachments"
	KindPositionNumber Kind = "PositionNumber"
	KindManualSortPos  Kind = "ManualSortPos"
	KindID             Kind = "Id"
	KindAny            Kind = "Any"
	KindBlob           Kind = "Blob"
)

// RefValue is the stored value of a Ref(table) column: a row id, 0 meaning
// the empty record.
type RefValue int64

// RefList is the stored value of a RefList(table) column.
type RefList []int64

// DateValue is a day-precision timestamp, stored as seconds since epoch at
// UTC midnight of the represented day.
type DateValue int64

// DateTimeValue is a seconds-since-epoch timestamp paired with a named zone.
type DateTimeValue struct {
	Seconds int64
	TZ      string
}

// ChoiceList is an immutable ordered sequence of Choice strings.
type ChoiceList []string

// ReferenceLookupInput is the input-side wrapper ('l', value, options) used
// when a caller supplies a value to resolve against a Ref/RefList column's
// configured visible column rather than a raw row id (§4.1).
type ReferenceLookupInput struct {
	Value   interface{}
	Options map[string]interface{}
}

// Type describes a column's value kind: its default, its right-type check,
// and its coercion from arbitrary input. Implementations are stateless other
// than configuration captured at construction (e.g. a Ref's target table,
// a Choice's valid set).
type Type interface {
	Kind() Kind
	// Default returns the value an unset cell of this type reads as.
	Default() interface{}
	// IsRightType reports whether v is a legitimately-typed value for this
	// column (not alt-text, not a sentinel).
	IsRightType(v interface{}) bool
	// Convert coerces arbitrary input into this type's legal value space.
	// It never returns an error for inputs it can't interpret; instead it
	// returns the input unchanged so the caller can store it verbatim as a
	// wrong-type cell (spec.md §3 "Computation never silently replaces bad
	// data").
	Convert(input interface{}) interface{}
}

// ---- Text ----

type textType struct{}

// NewText returns the Text column type.
func NewText() Type { return textType{} }

func (textType) Kind() Kind             { return KindText }
func (textType) Default() interface{}   { return "" }
func (textType) IsRightType(v interface{}) bool {
	_, ok := v.(string)
	return ok
}
func (textType) Convert(input interface{}) interface{} {
	switch v := input.(type) {
	case string:
		return v
	case nil:
		return ""
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ---- Numeric ----

type numericType struct{}

// NewNumeric returns the Numeric column type (normalizes int/float to float64).
func NewNumeric() Type { return numericType{} }

func (numericType) Kind() Kind           { return KindNumeric }
func (numericType) Default() interface{} { return 0.0 }
func (numericType) IsRightType(v interface{}) bool {
	_, ok := v.(float64)
	return ok
}
func (numericType) Convert(input interface{}) interface{} {
	switch v := input.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case bool:
		if v {
			return 1.0
		}
		return 0.0
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
		return input
	case nil:
		return 0.0
	default:
		return input
	}
}

// ---- Int ----

type intType struct{}

// NewInt returns the Int column type.
func NewInt() Type { return intType{} }

func (intType) Kind() Kind           { return KindInt }
func (intType) Default() interface{} { return int64(0) }
func (intType) IsRightType(v interface{}) bool {
	_, ok := v.(int64)
	return ok
}
func (intType) Convert(input interface{}) interface{} {
	switch v := input.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		if v == math.Trunc(v) {
			return int64(v)
		}
		return input
	case bool:
		if v {
			return int64(1)
		}
		return int64(0)
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
		return input
	case nil:
		return int64(0)
	default:
		return input
	}
}

// ---- Bool ----

type boolType struct{}

// NewBool returns the Bool column type. Per spec.md §9's open question, we
// coerce only input values passed through Convert (0/1, "true"/"false"); a
// formula-computed result is stored verbatim and checked by IsRightType —
// see DESIGN.md "Open Question decisions".
func NewBool() Type { return boolType{} }

func (boolType) Kind() Kind           { return KindBool }
func (boolType) Default() interface{} { return false }
func (boolType) IsRightType(v interface{}) bool {
	_, ok := v.(bool)
	return ok
}
func (boolType) Convert(input interface{}) interface{} {
	switch v := input.(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case int:
		return v != 0
	case float64:
		return v != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no", "":
			return false
		}
		return input
	case nil:
		return false
	default:
		return input
	}
}

// ---- Date / DateTime ----

type dateType struct{}

// NewDate returns the Date column type (day precision).
func NewDate() Type { return dateType{} }

func (dateType) Kind() Kind           { return KindDate }
func (dateType) Default() interface{} { return DateValue(0) }
func (dateType) IsRightType(v interface{}) bool {
	_, ok := v.(DateValue)
	return ok
}
func (dateType) Convert(input interface{}) interface{} {
	switch v := input.(type) {
	case DateValue:
		return v
	case int64:
		return DateValue(dayFloor(v))
	case float64:
		return DateValue(dayFloor(int64(v)))
	case string:
		if t, err := time.Parse("2006-01-02", strings.TrimSpace(v)); err == nil {
			return DateValue(t.Unix())
		}
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(v)); err == nil {
			return DateValue(dayFloor(t.Unix()))
		}
		return input
	case nil:
		return DateValue(0)
	default:
		return input
	}
}

func dayFloor(sec int64) int64 {
	const day = 24 * 60 * 60
	if sec >= 0 {
		return sec - sec%day
	}
	return sec - ((sec%day + day) % day)
}

type dateTimeType struct {
	tz string
}

// NewDateTime returns a DateTime column type fixed to the given named zone.
func NewDateTime(tz string) Type { return dateTimeType{tz: tz} }

// TZ returns the configured zone name.
func (t dateTimeType) TZ() string { return t.tz }

func (dateTimeType) Kind() Kind { return KindDateTime }
func (t dateTimeType) Default() interface{} {
	return DateTimeValue{Seconds: 0, TZ: t.tz}
}
func (dateTimeType) IsRightType(v interface{}) bool {
	_, ok := v.(DateTimeValue)
	return ok
}
func (t dateTimeType) Convert(input interface{}) interface{} {
	switch v := input.(type) {
	case DateTimeValue:
		if v.TZ == "" {
			v.TZ = t.tz
		}
		return v
	case int64:
		return DateTimeValue{Seconds: v, TZ: t.tz}
	case float64:
		return DateTimeValue{Seconds: int64(v), TZ: t.tz}
	case string:
		if parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(v)); err == nil {
			return DateTimeValue{Seconds: parsed.Unix(), TZ: t.tz}
		}
		return input
	case nil:
		return DateTimeValue{Seconds: 0, TZ: t.tz}
	default:
		return input
	}
}

// ---- Choice / ChoiceList ----

type choiceType struct {
	valid map[string]bool
	list  []string
}

// NewChoice returns a Choice column type constrained to the given set of
// legal text values (empty set means any text is accepted, same as a plain
// Text column, but still tagged Choice for UI purposes).
func NewChoice(valid []string) Type {
	m := make(map[string]bool, len(valid))
	for _, c := range valid {
		m[c] = true
	}
	return choiceType{valid: m, list: append([]string(nil), valid...)}
}

// Choices returns the configured valid set, in the order it was given to
// NewChoice (used when a column's spec needs to be reconstructed, e.g. for
// RemoveColumn's undo action).
func (t choiceType) Choices() []string { return append([]string(nil), t.list...) }

func (choiceType) Kind() Kind           { return KindChoice }
func (choiceType) Default() interface{} { return "" }
func (t choiceType) IsRightType(v interface{}) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	if len(t.valid) == 0 || s == "" {
		return true
	}
	return t.valid[s]
}
func (choiceType) Convert(input interface{}) interface{} {
	return NewText().Convert(input)
}

type choiceListType struct{}

// NewChoiceList returns the ChoiceList column type. It accepts either a Go
// []string/[]interface{} tuple or a JSON-encoded list string and stores it
// as an immutable ChoiceList sequence (§4.1).
func NewChoiceList() Type { return choiceListType{} }

func (choiceListType) Kind() Kind           { return KindChoiceList }
func (choiceListType) Default() interface{} { return ChoiceList(nil) }
func (choiceListType) IsRightType(v interface{}) bool {
	_, ok := v.(ChoiceList)
	return ok
}
func (choiceListType) Convert(input interface{}) interface{} {
	switch v := input.(type) {
	case ChoiceList:
		return v
	case []string:
		out := make(ChoiceList, len(v))
		copy(out, v)
		return out
	case []interface{}:
		out := make(ChoiceList, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	case string:
		if list, ok := parseJSONStringList(v); ok {
			return ChoiceList(list)
		}
		return input
	case nil:
		return ChoiceList(nil)
	default:
		return input
	}
}

// ---- Ref / RefList ----

type refType struct {
	target string
}

// NewRef returns a Ref(target) column type.
func NewRef(target string) Type { return refType{target: target} }

// Target returns the referenced table id.
func (t refType) Target() string { return t.target }

func (refType) Kind() Kind           { return KindRef }
func (refType) Default() interface{} { return RefValue(0) }
func (refType) IsRightType(v interface{}) bool {
	_, ok := v.(RefValue)
	return ok
}
func (refType) Convert(input interface{}) interface{} {
	switch v := input.(type) {
	case RefValue:
		return v
	case int64:
		return RefValue(v)
	case int:
		return RefValue(v)
	case float64:
		if v == math.Trunc(v) {
			return RefValue(int64(v))
		}
		return input
	case nil:
		return RefValue(0)
	default:
		return input
	}
}

type refListType struct {
	target string
}

// NewRefList returns a RefList(target) column type.
func NewRefList(target string) Type { return refListType{target: target} }

func (t refListType) Target() string { return t.target }

func (refListType) Kind() Kind           { return KindRefList }
func (refListType) Default() interface{} { return RefList(nil) }
func (refListType) IsRightType(v interface{}) bool {
	_, ok := v.(RefList)
	return ok
}
func (refListType) Convert(input interface{}) interface{} {
	switch v := input.(type) {
	case RefList:
		return v
	case []int64:
		out := make(RefList, len(v))
		copy(out, v)
		return out
	case []interface{}:
		out := make(RefList, 0, len(v))
		for _, item := range v {
			switch n := item.(type) {
			case int64:
				out = append(out, n)
			case float64:
				out = append(out, int64(n))
			default:
				return input
			}
		}
		return out
	case nil:
		return RefList(nil)
	default:
		return input
	}
}

// NewAttachments returns the Attachments type: a RefList fixed to the
// reserved attachments metadata table.
func NewAttachments() Type { return NewRefList("_grist_Attachments") }

// ---- PositionNumber / ManualSortPos ----

type positionNumberType struct{}

// NewPositionNumber returns the PositionNumber column type: a float-valued
// ordering key (§4.12).
func NewPositionNumber() Type { return positionNumberType{} }

func (positionNumberType) Kind() Kind           { return KindPositionNumber }
func (positionNumberType) Default() interface{} { return float64(0) }
func (positionNumberType) IsRightType(v interface{}) bool {
	_, ok := v.(float64)
	return ok
}
func (positionNumberType) Convert(input interface{}) interface{} {
	return NewNumeric().Convert(input)
}

// NewManualSortPos returns the ManualSortPos type, the PositionNumber used
// specifically for manual row ordering (§4.2 order_by tiebreak).
func NewManualSortPos() Type { return positionNumberType{} }

// ---- Id / Any / Blob ----

type idType struct{}

// NewID returns the Id column type (row id values).
func NewID() Type { return idType{} }

func (idType) Kind() Kind           { return KindID }
func (idType) Default() interface{} { return int64(0) }
func (idType) IsRightType(v interface{}) bool {
	_, ok := v.(int64)
	return ok
}
func (idType) Convert(input interface{}) interface{} { return NewInt().Convert(input) }

type anyType struct{}

// NewAny returns the Any column type: accepts and stores any value verbatim.
func NewAny() Type { return anyType{} }

func (anyType) Kind() Kind                          { return KindAny }
func (anyType) Default() interface{}                { return nil }
func (anyType) IsRightType(v interface{}) bool      { return true }
func (anyType) Convert(input interface{}) interface{} { return input }

type blobType struct{}

// NewBlob returns the Blob column type: opaque byte payloads.
func NewBlob() Type { return blobType{} }

func (blobType) Kind() Kind           { return KindBlob }
func (blobType) Default() interface{} { return []byte(nil) }
func (blobType) IsRightType(v interface{}) bool {
	_, ok := v.([]byte)
	return ok
}
func (blobType) Convert(input interface{}) interface{} {
	switch v := input.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	case nil:
		return []byte(nil)
	default:
		return input
	}
}

// NewByKind constructs a Type from a Kind name plus optional target (for
// Ref/RefList) or valid-set (for Choice), used by the schema/codegen layer
// when materializing ColumnSpec into a live Type.
func NewByKind(kind Kind, target string, choices []string, tz string) (Type, error) {
	switch kind {
	case KindText:
		return NewText(), nil
	case KindNumeric:
		return NewNumeric(), nil
	case KindInt:
		return NewInt(), nil
	case KindBool:
		return NewBool(), nil
	case KindDate:
		return NewDate(), nil
	case KindDateTime:
		return NewDateTime(tz), nil
	case KindChoice:
		return NewChoice(choices), nil
	case KindChoiceList:
		return NewChoiceList(), nil
	case KindRef:
		return NewRef(target), nil
	case KindRefList:
		return NewRefList(target), nil
	case KindAttachments:
		return NewAttachments(), nil
	case KindPositionNumber:
		return NewPositionNumber(), nil
	case KindManualSortPos:
		return NewManualSortPos(), nil
	case KindID:
		return NewID(), nil
	case KindAny:
		return NewAny(), nil
	case KindBlob:
		return NewBlob(), nil
	default:
		return nil, fmt.Errorf("unknown column kind: %s", kind)
	}
}
