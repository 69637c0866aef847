//Package contig keeps the continuation graph between runs and turns chains
//of runs (contigs) into single timelines.
package contig

import (
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/rmera/westore/internal/werr"
)

//Run is a run index as a graph node.
type Run int64

func (R Run) ID() int64 { return int64(R) }

//Continuation is the edge from a run to the run it continues.
type Continuation struct {
	Next, Base Run
}

func (C Continuation) From() graph.Node { return C.Next }
func (C Continuation) To() graph.Node   { return C.Base }

func (C Continuation) ReversedEdge() graph.Edge {
	return Continuation{Next: C.Base, Base: C.Next}
}

//Graph is the continuation graph. Edges go from the continuation to its
//base; a run has at most one base and the graph has no cycles.
type Graph struct {
	g     *simple.DirectedGraph
	pairs [][2]int
}

//NewGraph returns a graph with the given runs and no continuations.
func NewGraph(runs ...int) *Graph {
	G := &Graph{g: simple.NewDirectedGraph()}
	for _, r := range runs {
		G.AddRun(r)
	}
	return G
}

//FromPairs builds the graph of runs with the (continuation, base) pairs.
func FromPairs(runs []int, pairs [][2]int) (*Graph, error) {
	G := NewGraph(runs...)
	for _, p := range pairs {
		if err := G.Add(p[0], p[1]); err != nil {
			return nil, err
		}
	}
	return G, nil
}

//AddRun adds a run without continuations. Adding a known run is a no-op.
func (G *Graph) AddRun(run int) {
	if G.g.Node(int64(run)) == nil {
		G.g.AddNode(Run(run))
	}
}

//HasRun reports whether run is in the graph.
func (G *Graph) HasRun(run int) bool {
	return G.g.Node(int64(run)) != nil
}

//Runs returns every run, sorted.
func (G *Graph) Runs() []int {
	var out []int
	nodes := G.g.Nodes()
	for nodes.Next() {
		out = append(out, int(nodes.Node().ID()))
	}
	slices.Sort(out)
	return out
}

//Add records that continuation continues base. Both runs must be known,
//the continuation can't already have a base, and the edge can't close a
//cycle.
func (G *Graph) Add(continuation, base int) error {
	const caller = "contig.Graph.Add"
	for _, r := range []int{continuation, base} {
		if !G.HasRun(r) {
			return werr.New(werr.RunNotFound, "", caller, "run %d does not exist", r)
		}
	}
	if continuation == base {
		return werr.New(werr.InvalidContig, "", caller, "run %d can't continue itself", base)
	}
	if b, ok := G.Base(continuation); ok {
		return werr.New(werr.InvalidContig, "", caller, "run %d already continues run %d", continuation, b)
	}
	if topo.PathExistsIn(G.g, Run(base), Run(continuation)) {
		return werr.New(werr.InvalidContig, "", caller, "run %d continuing run %d would close a cycle", continuation, base)
	}
	G.g.SetEdge(Continuation{Next: Run(continuation), Base: Run(base)})
	G.pairs = append(G.pairs, [2]int{continuation, base})
	return nil
}

//Pairs returns the (continuation, base) pairs in the order they were added.
func (G *Graph) Pairs() [][2]int {
	return slices.Clone(G.pairs)
}

//Base returns the run that run continues.
func (G *Graph) Base(run int) (int, bool) {
	if !G.HasRun(run) {
		return 0, false
	}
	to := G.g.From(int64(run))
	for to.Next() {
		return int(to.Node().ID()), true
	}
	return 0, false
}

//Continuations returns the runs that continue run, sorted.
func (G *Graph) Continuations(run int) []int {
	if !G.HasRun(run) {
		return nil
	}
	var out []int
	from := G.g.To(int64(run))
	for from.Next() {
		out = append(out, int(from.Node().ID()))
	}
	slices.Sort(out)
	return out
}

//IsContig is true if each run in runs continues the one before it. A
//single run is a contig. Edges are directional, so reversing a contig
//does not give a contig.
func (G *Graph) IsContig(runs []int) bool {
	if len(runs) == 0 {
		return false
	}
	if !G.HasRun(runs[0]) {
		return false
	}
	for i := 1; i < len(runs); i++ {
		if !G.g.HasEdgeFromTo(int64(runs[i]), int64(runs[i-1])) {
			return false
		}
	}
	return true
}

//Validate returns an InvalidContig error if runs is not a contig.
func (G *Graph) Validate(runs []int) error {
	if !G.IsContig(runs) {
		return werr.New(werr.InvalidContig, "", "contig.Graph.Validate", "runs %v are not a contig", runs)
	}
	return nil
}

//Roots returns the runs that continue nothing, sorted.
func (G *Graph) Roots() []int {
	var out []int
	for _, r := range G.Runs() {
		if _, ok := G.Base(r); !ok {
			out = append(out, r)
		}
	}
	return out
}

//Lineage returns the contig from the root of run's tree down to run.
func (G *Graph) Lineage(run int) ([]int, error) {
	if !G.HasRun(run) {
		return nil, werr.New(werr.RunNotFound, "", "contig.Graph.Lineage", "run %d does not exist", run)
	}
	out := []int{run}
	for b, ok := G.Base(run); ok; b, ok = G.Base(b) {
		out = append(out, b)
	}
	slices.Reverse(out)
	return out, nil
}

//SpanningContigs returns every contig that goes from a root to a leaf, in
//order of their first run and then their leaf.
func (G *Graph) SpanningContigs() [][]int {
	var out [][]int
	var walk func(path []int)
	walk = func(path []int) {
		last := path[len(path)-1]
		next := G.Continuations(last)
		if len(next) == 0 {
			out = append(out, slices.Clone(path))
			return
		}
		for _, n := range next {
			walk(append(path, n))
		}
	}
	for _, r := range G.Roots() {
		walk([]int{r})
	}
	return out
}
