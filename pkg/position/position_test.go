package position

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextFloatPrevFloatAreInverses(t *testing.T) {
	x := 1.5
	assert.Equal(t, x, PrevFloat(NextFloat(x)))
	assert.Greater(t, NextFloat(x), x)
	assert.Less(t, PrevFloat(x), x)
}

func TestNextFloatHandlesZeroAndNegative(t *testing.T) {
	assert.Greater(t, NextFloat(0), 0.0)
	assert.Greater(t, NextFloat(-1.0), -1.0) // "next" is always greater, even for negatives
	assert.Less(t, PrevFloat(-1.0), -1.0)
}

func TestGetRangeProducesDistinctAscendingValues(t *testing.T) {
	r := GetRange(1.0, 2.0, 5)
	for i := 1; i < len(r); i++ {
		assert.Less(t, r[i-1], r[i])
	}
	assert.Greater(t, r[0], 1.0)
	assert.Less(t, r[len(r)-1], 2.0)
}

func TestIsValidRangeDetectsCollisionWithEndpoint(t *testing.T) {
	assert.False(t, IsValidRange(1.0, []float64{1.0, 1.5}, 2.0))
	assert.False(t, IsValidRange(1.0, []float64{1.2, 2.0}, 2.0))
	assert.True(t, IsValidRange(1.0, []float64{1.2, 1.5}, 2.0))
}

func TestPrepareInsertsSimpleMidpoint(t *testing.T) {
	l := NewLabeler([]float64{1.0, 2.0})
	adjustments, newKeys := l.PrepareInserts([]float64{1.5})
	assert.Empty(t, adjustments)
	assert.Len(t, newKeys, 1)
	assert.Greater(t, newKeys[0], 1.0)
	assert.Less(t, newKeys[0], 2.0)
}

func TestPrepareInsertsAtStartAndEnd(t *testing.T) {
	l := NewLabeler([]float64{5.0, 10.0})
	_, newKeys := l.PrepareInserts([]float64{1.0, 20.0})
	// 1.0 bisects before 5.0, 20.0 bisects after 10.0
	assert.Less(t, newKeys[0], 5.0)
	assert.Greater(t, newKeys[1], 10.0)
}

func TestPrepareInsertsManyIntoTinyGapTriggersRebalance(t *testing.T) {
	// Two keys so close together that no float fits strictly between them
	// without rebalancing a wider surrounding interval.
	a := 1.0
	b := NextFloat(a)
	l := NewLabeler([]float64{a, b})

	queries := make([]float64, 8)
	for i := range queries {
		// Querying with b itself bisects to the gap between a and b, which
		// (being adjacent floats) has no room at all without rebalancing.
		queries[i] = b
	}
	adjustments, newKeys := l.PrepareInserts(queries)

	assert.Len(t, newKeys, len(queries))
	all := append(append([]float64{}, newKeys...))
	seen := make(map[float64]bool)
	for _, k := range all {
		assert.False(t, seen[k], "new keys must be distinct")
		seen[k] = true
	}
	// At least one of the two original rows must have been adjusted to make
	// room, since they started with zero floats strictly between them.
	assert.NotEmpty(t, adjustments)
}

func TestPrepareInsertsOutputOrderMatchesQueryOrder(t *testing.T) {
	l := NewLabeler([]float64{0.0, 10.0})
	_, newKeys := l.PrepareInserts([]float64{9.0, 1.0, 5.0})
	// all three land in the same (0,10) gap; output order must mirror input
	// order, but ascending in value since that's how they were queried.
	assert.True(t, newKeys[1] < newKeys[2])
	assert.True(t, newKeys[2] < newKeys[0])
}

func TestRangeAroundFloatContainsX(t *testing.T) {
	lo, hi := RangeAroundFloat(3.0, 4)
	assert.LessOrEqual(t, lo, 3.0)
	assert.Greater(t, hi, 3.0)
	assert.False(t, math.IsNaN(lo))
}
