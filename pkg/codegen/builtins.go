package codegen

import (
	"fmt"
	"math"
	"time"

	"github.com/kasuganosora/gridengine/pkg/cellvalue"
)

// builtinFunc is a language-level formula function: given already-ordered
// arguments (lazy ones arriving as Thunk), it returns the result (itself
// possibly a Thunk, left to the caller to Force).
type builtinFunc func(args []Arg) (interface{}, error)

// builtins is the fixed table of lazy-aware and eager language functions
// recognized by the formula transformer (§4.5) and evaluated here. This
// mirrors the original sandbox's small set of branch-control helpers plus
// the common scalar/aggregate functions formula authors reach for.
var builtins = map[string]builtinFunc{
	"IF":      biIf,
	"ISERR":   biIsErr,
	"ISERROR": biIsError,
	"IFERROR": biIfError,
	"PEEK":    biPeek,
	"AND":     biAnd,
	"OR":      biOr,
	"NOT":     biNot,
	"ABS":     biAbs,
	"ROUND":   biRound,
	"MAX":     biMax,
	"MIN":     biMin,
	"SUM":     biSum,
	"LEN":     biLen,
	"STR":     biStr,
	"FLOAT":   biFloat,
	"INT":     biInt,
	"BOOL":    biBool,
	"NOW":     biNow,
	"TODAY":   biToday,
}

func positional(args []Arg, i int) interface{} {
	if i < 0 || i >= len(args) {
		return nil
	}
	return args[i].Value
}

func biIf(args []Arg) (interface{}, error) {
	if len(args) != 3 {
		return nil, fmt.Errorf("IF: expected 3 arguments, got %d", len(args))
	}
	cond, err := Force(positional(args, 0))
	if err != nil {
		return nil, err
	}
	if truthy(cond) {
		return Force(positional(args, 1))
	}
	return Force(positional(args, 2))
}

func biIsErr(args []Arg) (interface{}, error) {
	_, err := Force(positional(args, 0))
	return err != nil, nil
}

func biIsError(args []Arg) (interface{}, error) {
	v, err := Force(positional(args, 0))
	if err != nil {
		return true, nil
	}
	if _, ok := v.(*cellvalue.RaisedException); ok {
		return true, nil
	}
	return false, nil
}

func biIfError(args []Arg) (interface{}, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("IFERROR: expected 2 arguments, got %d", len(args))
	}
	v, err := Force(positional(args, 0))
	if err == nil {
		if _, isErr := v.(*cellvalue.RaisedException); !isErr {
			return v, nil
		}
	}
	return Force(positional(args, 1))
}

func biPeek(args []Arg) (interface{}, error) {
	v, err := Force(positional(args, 0))
	if err != nil {
		return nil, nil
	}
	return v, nil
}

func biAnd(args []Arg) (interface{}, error) {
	for _, a := range args {
		v, err := Force(a.Value)
		if err != nil {
			return nil, err
		}
		if !truthy(v) {
			return false, nil
		}
	}
	return true, nil
}

func biOr(args []Arg) (interface{}, error) {
	for _, a := range args {
		v, err := Force(a.Value)
		if err != nil {
			return nil, err
		}
		if truthy(v) {
			return true, nil
		}
	}
	return false, nil
}

func biNot(args []Arg) (interface{}, error) {
	v, err := Force(positional(args, 0))
	if err != nil {
		return nil, err
	}
	return !truthy(v), nil
}

func biAbs(args []Arg) (interface{}, error) {
	v, err := Force(positional(args, 0))
	if err != nil {
		return nil, err
	}
	f, ok := asFloat(v)
	if !ok {
		return nil, fmt.Errorf("ABS: non-numeric argument")
	}
	return math.Abs(f), nil
}

func biRound(args []Arg) (interface{}, error) {
	v, err := Force(positional(args, 0))
	if err != nil {
		return nil, err
	}
	f, ok := asFloat(v)
	if !ok {
		return nil, fmt.Errorf("ROUND: non-numeric argument")
	}
	digits := 0
	if len(args) > 1 {
		dv, err := Force(positional(args, 1))
		if err != nil {
			return nil, err
		}
		if df, ok := asFloat(dv); ok {
			digits = int(df)
		}
	}
	mult := math.Pow(10, float64(digits))
	return math.Round(f*mult) / mult, nil
}

func forceAllFloats(args []Arg) ([]float64, error) {
	out := make([]float64, 0, len(args))
	for _, a := range args {
		v, err := Force(a.Value)
		if err != nil {
			return nil, err
		}
		if list, ok := asFloatList(v); ok {
			out = append(out, list...)
			continue
		}
		f, ok := asFloat(v)
		if !ok {
			return nil, fmt.Errorf("expected numeric argument, got %T", v)
		}
		out = append(out, f)
	}
	return out, nil
}

func asFloatList(v interface{}) ([]float64, bool) {
	switch list := v.(type) {
	case []float64:
		return list, true
	case []interface{}:
		out := make([]float64, 0, len(list))
		for _, item := range list {
			f, ok := asFloat(item)
			if !ok {
				return nil, false
			}
			out = append(out, f)
		}
		return out, true
	default:
		return nil, false
	}
}

func biMax(args []Arg) (interface{}, error) {
	vals, err := forceAllFloats(args)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return 0.0, nil
	}
	max := vals[0]
	for _, v := range vals[1:] {
		if v > max {
			max = v
		}
	}
	return max, nil
}

func biMin(args []Arg) (interface{}, error) {
	vals, err := forceAllFloats(args)
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return 0.0, nil
	}
	min := vals[0]
	for _, v := range vals[1:] {
		if v < min {
			min = v
		}
	}
	return min, nil
}

func biSum(args []Arg) (interface{}, error) {
	vals, err := forceAllFloats(args)
	if err != nil {
		return nil, err
	}
	total := 0.0
	for _, v := range vals {
		total += v
	}
	return total, nil
}

func biLen(args []Arg) (interface{}, error) {
	v, err := Force(positional(args, 0))
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case string:
		return float64(len(t)), nil
	case []interface{}:
		return float64(len(t)), nil
	case []float64:
		return float64(len(t)), nil
	case []int64:
		return float64(len(t)), nil
	case cellvalue.RefList:
		return float64(len(t)), nil
	case cellvalue.ChoiceList:
		return float64(len(t)), nil
	default:
		return nil, fmt.Errorf("LEN: unsupported argument type %T", v)
	}
}

func biStr(args []Arg) (interface{}, error) {
	v, err := Force(positional(args, 0))
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("%v", v), nil
}

func biFloat(args []Arg) (interface{}, error) {
	v, err := Force(positional(args, 0))
	if err != nil {
		return nil, err
	}
	f, ok := asFloat(v)
	if !ok {
		return nil, fmt.Errorf("FLOAT: cannot convert %T", v)
	}
	return f, nil
}

func biInt(args []Arg) (interface{}, error) {
	v, err := Force(positional(args, 0))
	if err != nil {
		return nil, err
	}
	f, ok := asFloat(v)
	if !ok {
		return nil, fmt.Errorf("INT: cannot convert %T", v)
	}
	return math.Trunc(f), nil
}

func biBool(args []Arg) (interface{}, error) {
	v, err := Force(positional(args, 0))
	if err != nil {
		return nil, err
	}
	return truthy(v), nil
}

func biNow(args []Arg) (interface{}, error) {
	return cellvalue.DateTimeValue{Seconds: nowFunc().Unix(), TZ: "UTC"}, nil
}

func biToday(args []Arg) (interface{}, error) {
	t := nowFunc()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return cellvalue.DateValue(midnight.Unix()), nil
}

// nowFunc is indirected so tests can freeze time; production code never
// overrides it.
var nowFunc = time.Now
