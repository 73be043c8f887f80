package cellvalue

import "fmt"

// AltText represents a text value stored in a non-text column (§3
// "Wrong-type cells"). It lets formulas access the verbatim stored value
// even though it failed the column's IsRightType check. Grounded on
// original_source/sandbox/grist/objtypes.py's AltText wrapper.
type AltText struct {
	Text    string
	RawType string // the column type name the value was stored against
}

func (a AltText) String() string { return a.Text }

// InvalidTypedValue is raised when a formula attempts to use an AltText
// value as though it were the typed value (e.g. attribute access on a Ref
// cell holding stray text). Grounded on objtypes.py's InvalidTypedValue.
type InvalidTypedValue struct {
	TypeName string
	Value    string
}

func (e *InvalidTypedValue) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.TypeName, e.Value)
}

// RaisedException is the stored value of a formula cell whose computation
// raised (§4.3 "Partial-failure semantics", §7 "Cell error"). Dependents see
// it wrapped as a CellError carrying cell location.
type RaisedException struct {
	Name       string
	Message    string
	Traceback  string
	UserInput  interface{} // original user input, for trigger-formula reconsideration
	IsCircular bool        // true for CircularRefError, suppresses CellError wrapping
}

func (r *RaisedException) Error() string {
	if r.Message != "" {
		return fmt.Sprintf("%s: %s", r.Name, r.Message)
	}
	return r.Name
}

// CellError is what a dependent formula sees when it reads a cell whose
// stored value is a RaisedException: it carries the failing cell's location
// so the UI/caller can point at the source (§4.3, §7).
type CellError struct {
	Table string
	Col   string
	Row   int64
	Inner *RaisedException
}

func (e *CellError) Error() string {
	return fmt.Sprintf("error in %s.%s[%d]: %s", e.Table, e.Col, e.Row, e.Inner.Error())
}

func (e *CellError) Unwrap() error { return e.Inner }

// CircularRefError marks a RaisedException produced by cycle detection
// (§4.3, §7). It is distinguished from other raised exceptions so readers can
// show a cycle diagnostic instead of a generic CellError.
func CircularRefError() *RaisedException {
	return &RaisedException{
		Name:       "CircularRefError",
		Message:    "Circular Reference Error",
		IsCircular: true,
	}
}

// Pending marks a cell whose value hasn't been computed yet (e.g. a newly
// added formula column before the first recalculation pass).
type Pending struct{}

// Censored marks a cell whose value exists but is hidden from the current
// reader by an access-control rule (the rule engine itself is out of scope
// per spec.md §1; this is just the value-domain sentinel it produces).
type Censored struct{}

// Unmarshallable wraps a value that has no registered converter and so can
// only be represented by its Go %#v representation in the wire encoding
// (§6 "['U', <repr>]"). Grounded on objtypes.py's UnmarshallableValue.
type Unmarshallable struct {
	Repr string
}

// UnmarshallableError is raised when encoding such a value is attempted in a
// context that requires success.
type UnmarshallableError struct {
	Repr string
}

func (e *UnmarshallableError) Error() string {
	return fmt.Sprintf("cannot marshal value: %s", e.Repr)
}

// ConversionError indicates a failed coercion between Grist types. Per
// objtypes.py, this is not normally surfaced to the user — it results in
// silent alt-text — but is exposed here so callers (e.g. import pipelines)
// can choose to surface it.
type ConversionError struct {
	FromType string
	ToType   string
	Value    interface{}
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %v (%s) to %s", e.Value, e.FromType, e.ToType)
}
