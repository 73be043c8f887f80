// Package depgraph implements the dependency graph and invalidation pass
// from spec.md §4.3: nodes are (table, column); edges carry a Relation that
// translates an invalidated target row id into the source row ids that must
// be rescheduled.
package depgraph

import (
	"fmt"
	"sort"

	"github.com/kasuganosora/gridengine/pkg/relation"
)

// Node identifies a column whose formula (if any) participates in the
// dependency graph. The zero value is not a valid node.
type Node struct {
	TableID string
	ColID   string
}

func (n Node) String() string { return fmt.Sprintf("%s.%s", n.TableID, n.ColID) }

// edge is one (dependency_node -> dependent_node) reverse-index entry.
type edge struct {
	dependent Node
	rel       relation.Relation
}

// Graph holds reverse edges keyed by dependency node, and the per-node
// invalidation schedule accumulated by Invalidate calls.
type Graph struct {
	// reverse[dependencyNode] holds every (dependent, relation) pair added via
	// AddEdge(dependent, dependencyNode, relation).
	reverse map[Node][]edge
	// forward[dependentNode] lists the dependency nodes it currently reads,
	// so ClearDependencies can remove exactly its own edges from reverse.
	forward map[Node][]Node

	// schedule maps a node scheduled for recomputation to the set of row ids
	// that need it recomputed.
	schedule map[Node]map[int64]bool
	// scheduleOrder preserves the order nodes were first scheduled in, so
	// DrainOne yields a deterministic sequence instead of Go's randomized map
	// iteration (§8 "Determinism").
	scheduleOrder []Node
}

// New constructs an empty dependency graph.
func New() *Graph {
	return &Graph{
		reverse:  make(map[Node][]edge),
		forward:  make(map[Node][]Node),
		schedule: make(map[Node]map[int64]bool),
	}
}

// AddEdge records that dependent reads dependency through rel. Called while
// a formula's attribute access records a new dependency during recompute.
func (g *Graph) AddEdge(dependent, dependency Node, rel relation.Relation) {
	g.reverse[dependency] = append(g.reverse[dependency], edge{dependent: dependent, rel: rel})
	g.forward[dependent] = append(g.forward[dependent], dependency)
}

// ClearDependencies removes every edge previously recorded for dependent.
// Called at the start of each recomputation of dependent, before its
// formula runs and records fresh edges (§4.4 step 2).
func (g *Graph) ClearDependencies(dependent Node) {
	deps := g.forward[dependent]
	delete(g.forward, dependent)
	for _, dep := range deps {
		edges := g.reverse[dep]
		kept := edges[:0]
		for _, e := range edges {
			if e.dependent != dependent {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(g.reverse, dep)
		} else {
			g.reverse[dep] = kept
		}
	}
}

// Invalidate walks the reverse index for dependencyNode: for every
// (dependent, relation) edge, translates rowIDs into source row ids via the
// relation and schedules dependent for those rows (§4.3 "invalidate").
func (g *Graph) Invalidate(dependencyNode Node, rowIDs []int64) {
	for _, e := range g.reverse[dependencyNode] {
		for _, targetRow := range rowIDs {
			for _, sourceRow := range e.rel.Map(targetRow) {
				g.schedule3(e.dependent, sourceRow)
			}
		}
	}
}

// Schedule directly schedules node for rowID, used by the action executor
// to seed the initial invalidation set from a data action (e.g. scheduling
// the node a newly-set data cell belongs to, for any formula that reads it).
func (g *Graph) Schedule(node Node, rowID int64) {
	g.schedule3(node, rowID)
}

func (g *Graph) schedule3(node Node, rowID int64) {
	rows, ok := g.schedule[node]
	if !ok {
		rows = make(map[int64]bool)
		g.schedule[node] = rows
		g.scheduleOrder = append(g.scheduleOrder, node)
	}
	rows[rowID] = true
}

// DrainOne removes and returns one scheduled (node, rowIDs) pair, or ok=false
// if the schedule is empty. The recalc loop calls this repeatedly until it
// drains (§4.4). Nodes are drained in the order they were first scheduled and
// row ids within a node are returned ascending, so repeated runs over the
// same mutation sequence yield byte-equal calc actions (§8 "Determinism").
func (g *Graph) DrainOne() (node Node, rowIDs []int64, ok bool) {
	for len(g.scheduleOrder) > 0 {
		n := g.scheduleOrder[0]
		g.scheduleOrder = g.scheduleOrder[1:]
		rows, exists := g.schedule[n]
		if !exists {
			continue
		}
		delete(g.schedule, n)
		ids := make([]int64, 0, len(rows))
		for id := range rows {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		return n, ids, true
	}
	return Node{}, nil, false
}

// IsScheduled reports whether node has any row ids pending recomputation.
func (g *Graph) IsScheduled(node Node) bool {
	rows, ok := g.schedule[node]
	return ok && len(rows) > 0
}

// PendingCount returns the total number of (node, row) pairs still scheduled.
func (g *Graph) PendingCount() int {
	total := 0
	for _, rows := range g.schedule {
		total += len(rows)
	}
	return total
}
