package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kasuganosora/gridengine/pkg/relation"
)

func TestInvalidatePropagatesThroughRelation(t *testing.T) {
	g := New()
	dependent := Node{TableID: "Orders", ColID: "Total"}
	dependency := Node{TableID: "Items", ColID: "Price"}
	rel := relation.Identity{TableID: "Items"}

	g.AddEdge(dependent, dependency, rel)
	g.Invalidate(dependency, []int64{3})

	node, rows, ok := g.DrainOne()
	assert.True(t, ok)
	assert.Equal(t, dependent, node)
	assert.Equal(t, []int64{3}, rows)
}

func TestClearDependenciesRemovesOwnEdgesOnly(t *testing.T) {
	g := New()
	dependency := Node{TableID: "Items", ColID: "Price"}
	depA := Node{TableID: "Orders", ColID: "Total"}
	depB := Node{TableID: "Invoices", ColID: "Sum"}
	rel := relation.Identity{TableID: "Items"}

	g.AddEdge(depA, dependency, rel)
	g.AddEdge(depB, dependency, rel)
	g.ClearDependencies(depA)
	g.Invalidate(dependency, []int64{1})

	node, _, ok := g.DrainOne()
	assert.True(t, ok)
	assert.Equal(t, depB, node)

	_, _, ok = g.DrainOne()
	assert.False(t, ok)
}

func TestDrainOneEmptyReturnsFalse(t *testing.T) {
	g := New()
	_, _, ok := g.DrainOne()
	assert.False(t, ok)
}

func TestScheduleAccumulatesRowsPerNode(t *testing.T) {
	g := New()
	n := Node{TableID: "Orders", ColID: "Total"}
	g.Schedule(n, 1)
	g.Schedule(n, 2)
	g.Schedule(n, 1) // dedup
	assert.Equal(t, 2, g.PendingCount())
}

func TestDrainOneIsDeterministic(t *testing.T) {
	g := New()
	first := Node{TableID: "Orders", ColID: "Total"}
	second := Node{TableID: "Orders", ColID: "Count"}
	g.Schedule(first, 5)
	g.Schedule(first, 1)
	g.Schedule(second, 9)

	node, rows, ok := g.DrainOne()
	assert.True(t, ok)
	assert.Equal(t, first, node)
	assert.Equal(t, []int64{1, 5}, rows) // ascending within a node, per spec §5

	node, rows, ok = g.DrainOne()
	assert.True(t, ok)
	assert.Equal(t, second, node)
	assert.Equal(t, []int64{9}, rows)

	_, _, ok = g.DrainOne()
	assert.False(t, ok)
}

func TestActiveStackDetectsReentry(t *testing.T) {
	s := NewActiveStack()
	node := Node{TableID: "Orders", ColID: "Total"}
	assert.True(t, s.Push(node, 1))
	assert.False(t, s.Push(node, 1)) // circular
	s.Pop()
	assert.True(t, s.Push(node, 1)) // fine again after pop
}
