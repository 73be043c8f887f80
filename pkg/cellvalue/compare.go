package cellvalue

import (
	"encoding/json"
	"math"
	"reflect"
)

// parseJSONStringList tries to decode s as a JSON array of strings.
func parseJSONStringList(s string) ([]string, bool) {
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, false
	}
	return out, true
}

// EncodingEqual implements the "encoding_equal" comparison used by spec.md §8's
// round-trip and undo-completeness properties: NaNs compare equal to each
// other, and numeric values (float64, float32, int64, int, RefValue,
// DateValue) compare equal when they represent the same number, whatever
// their Go types. All other comparisons are structural equality.
func EncodingEqual(a, b interface{}) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			if math.IsNaN(af) && math.IsNaN(bf) {
				return true
			}
			return af == bf
		}
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case RefValue:
		return float64(n), true
	case DateValue:
		return float64(n), true
	default:
		return 0, false
	}
}
