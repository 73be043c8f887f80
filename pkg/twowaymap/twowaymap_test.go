package twowaymap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleRightOverwritesAndCleansReverse(t *testing.T) {
	m := New[int, string](BinSet, BinSingle)
	require.NoError(t, m.Insert(1, "a"))
	require.NoError(t, m.Insert(1, "b"))

	assert.Equal(t, []string{"b"}, m.LookupLeft(1))
	assert.Empty(t, m.LookupRight("a"))
	assert.Equal(t, []int{1}, m.LookupRight("b"))
}

func TestStrictRightRejectsConflictingInsert(t *testing.T) {
	m := New[int, string](BinSet, BinStrict)
	require.NoError(t, m.Insert(1, "a"))
	err := m.Insert(1, "b")
	require.Error(t, err)
	assert.Equal(t, []string{"a"}, m.LookupLeft(1))
}

func TestSetRightAccumulatesManyValues(t *testing.T) {
	m := New[string, int](BinSet, BinSet)
	require.NoError(t, m.Insert("east", 1))
	require.NoError(t, m.Insert("east", 2))
	require.NoError(t, m.Insert("east", 1)) // duplicate, no-op

	vals := m.LookupLeft("east")
	assert.ElementsMatch(t, []int{1, 2}, vals)
	assert.ElementsMatch(t, []string{"east"}, m.LookupRight(1))
}

func TestRemoveLeftDropsReverseEntries(t *testing.T) {
	m := New[string, int](BinSet, BinSet)
	require.NoError(t, m.Insert("east", 1))
	require.NoError(t, m.Insert("east", 2))
	require.NoError(t, m.Insert("west", 2))

	m.RemoveLeft("east")
	assert.Empty(t, m.LookupLeft("east"))
	assert.Equal(t, []string{"west"}, m.LookupRight(2))
}

func TestRemoveRightDropsForwardEntries(t *testing.T) {
	m := New[string, int](BinSet, BinSet)
	require.NoError(t, m.Insert("east", 1))
	require.NoError(t, m.Insert("west", 1))

	m.RemoveRight(1)
	assert.Empty(t, m.LookupRight(1))
	assert.Empty(t, m.LookupLeft("east"))
	assert.Empty(t, m.LookupLeft("west"))
}

func TestListRightPreservesInsertionOrder(t *testing.T) {
	m := New[string, int](BinSet, BinList)
	require.NoError(t, m.Insert("q", 3))
	require.NoError(t, m.Insert("q", 1))
	require.NoError(t, m.Insert("q", 2))
	assert.Equal(t, []int{3, 1, 2}, m.LookupLeft("q"))
}

func TestClearEmptiesBothSides(t *testing.T) {
	m := New[string, int](BinSet, BinSet)
	require.NoError(t, m.Insert("east", 1))
	m.Clear()
	assert.Equal(t, 0, m.CountLeft())
	assert.Equal(t, 0, m.CountRight())
}
