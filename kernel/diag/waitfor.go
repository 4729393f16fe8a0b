// Package diag provides off-hot-path diagnostic tooling over a running
// Kernel: deadlock detection via a mutex wait-for graph. None of this is
// consulted by the scheduling/synchronization core itself — spec §1
// excludes trace/logging tooling from the core, and this package is
// exactly that kind of external collaborator.
package diag

import (
	"github.com/heimdalr/dag"

	"github.com/rtcore/kernel/kernel"
)

// WaitForGraph is a directed graph with one vertex per task that
// appears as a mutex holder or waiter, and one edge per "waiter is
// blocked on a mutex held by holder" relationship.
//
// Grounded statement-for-statement on core/blockstm/dag.go's BuildDAG:
// the same "look up or AddVertex, then AddEdge, ignore/collect the
// error" shape, applied to mutex wait-for edges instead of transaction
// read/write dependency edges.
type WaitForGraph struct {
	*dag.DAG
	vertexID map[kernel.TaskID]string

	// Deadlocked holds every edge heimdalr/dag refused to add because it
	// would have closed a cycle back to an ancestor — i.e. a genuine
	// circular wait. The teacher's BuildDAG treats this refusal as a
	// warning-and-skip (a transaction dependency graph is expected to be
	// acyclic by construction); here the refusal itself *is* the
	// diagnostic signal we're building the graph to surface.
	Deadlocked []kernel.WaitForEdge
}

// BuildWaitForGraph constructs the wait-for graph from a kernel
// snapshot (kernel.Kernel.WaitForEdges).
func BuildWaitForGraph(edges []kernel.WaitForEdge) WaitForGraph {
	g := WaitForGraph{DAG: dag.NewDAG(), vertexID: make(map[kernel.TaskID]string)}
	for _, e := range edges {
		w := g.ensureVertex(e.Waiter)
		h := g.ensureVertex(e.Holder)
		if err := g.AddEdge(w, h); err != nil {
			g.Deadlocked = append(g.Deadlocked, e)
		}
	}
	return g
}

func (g *WaitForGraph) ensureVertex(id kernel.TaskID) string {
	if v, ok := g.vertexID[id]; ok {
		return v
	}
	v, _ := g.AddVertex(id)
	g.vertexID[id] = v
	return v
}

// HasDeadlock reports whether the graph contains a circular wait.
// Per spec §9's documented limitation ("nested inheritance across a
// chain of held mutexes is not supported"), this check is purely
// structural: it finds genuine cycles, it says nothing about how long a
// lower-priority holder may run boosted before one is found.
func (g WaitForGraph) HasDeadlock() bool { return len(g.Deadlocked) > 0 }
