package cellvalue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoolConvert(t *testing.T) {
	b := NewBool()
	assert.Equal(t, true, b.Convert(int64(1)))
	assert.Equal(t, false, b.Convert(int64(0)))
	assert.Equal(t, true, b.Convert("true"))
	assert.Equal(t, false, b.Convert("false"))
	assert.Equal(t, false, b.Default())
}

func TestBoolIsRightTypeDoesNotCoerceComputedInt(t *testing.T) {
	// Open-question decision: a formula returning a raw 1 is NOT coerced;
	// IsRightType must reject it so it surfaces as alt-text to dependents.
	b := NewBool()
	assert.False(t, b.IsRightType(int64(1)))
	assert.True(t, b.IsRightType(true))
}

func TestNumericConvert(t *testing.T) {
	n := NewNumeric()
	assert.Equal(t, 3.5, n.Convert("3.5"))
	assert.Equal(t, 4.0, n.Convert(int64(4)))
	assert.Equal(t, 0.0, n.Default())
}

func TestIntConvertRejectsFraction(t *testing.T) {
	i := NewInt()
	got := i.Convert(3.5)
	assert.Equal(t, 3.5, got) // stored verbatim, not coerced
	assert.False(t, i.IsRightType(got))
}

func TestDateDayFloor(t *testing.T) {
	d := NewDate()
	const day = 24 * 60 * 60
	got := d.Convert(int64(day + 3600)) // 01:00 on day 1
	assert.Equal(t, DateValue(day), got)
}

func TestChoiceRestrictsToValidSet(t *testing.T) {
	c := NewChoice([]string{"red", "green"})
	assert.True(t, c.IsRightType("red"))
	assert.True(t, c.IsRightType("")) // empty is always valid
	assert.False(t, c.IsRightType("blue"))
}

func TestChoiceListFromJSON(t *testing.T) {
	cl := NewChoiceList()
	got := cl.Convert(`["a","b"]`)
	assert.Equal(t, ChoiceList{"a", "b"}, got)
}

func TestRefConvertsSmallFloat(t *testing.T) {
	r := NewRef("People")
	assert.Equal(t, RefValue(5), r.Convert(5.0))
	assert.Equal(t, RefValue(0), r.Default())
}

func TestAnyAcceptsEverything(t *testing.T) {
	a := NewAny()
	assert.True(t, a.IsRightType(nil))
	assert.True(t, a.IsRightType(RaisedException{}))
}

func TestEncodingEqualNaNAndIntFloat(t *testing.T) {
	assert.True(t, EncodingEqual(math_NaN(), math_NaN()))
	assert.True(t, EncodingEqual(int64(3), 3.0))
	assert.False(t, EncodingEqual(int64(3), 4.0))
}

func math_NaN() float64 {
	var zero float64
	return zero / zero
}
