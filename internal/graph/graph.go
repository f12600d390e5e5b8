package graph

import (
	"sort"
)

// Graph is an in-memory directed multigraph of code-level entities for
// one repository snapshot.
//
// Nodes are keyed by canonical name; edges are held in insertion order
// with adjacency indexes on both endpoints, so queries by source, target,
// or kind are O(result) rather than O(graph).
//
// A Graph is built single-threaded by the construction pipeline and is
// immutable once returned, so it carries no lock: a finished graph is
// safe for any number of concurrent readers. Passes that extend a graph
// call Clone first and return the augmented copy, leaving the input
// untouched.
type Graph struct {
	snapshot string
	nodes    map[string]*Node
	edges    []Edge

	// Adjacency indexes: edge positions by endpoint name.
	out map[string][]int
	in  map[string][]int
}

// New creates an empty graph for the given snapshot identifier.
func New(snapshot string) *Graph {
	return &Graph{
		snapshot: snapshot,
		nodes:    make(map[string]*Node),
		out:      make(map[string][]int),
		in:       make(map[string][]int),
	}
}

// Snapshot returns the snapshot identifier this graph was built for.
func (g *Graph) Snapshot() string {
	return g.snapshot
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges, parallel edges included.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// AddNode inserts a node and returns it. When a node with the same
// canonical name already exists the existing node is returned unchanged:
// canonical names are identity, so a duplicate insert is a no-op, never
// an error.
func (g *Graph) AddNode(n *Node) *Node {
	if existing, ok := g.nodes[n.Name]; ok {
		return existing
	}
	g.nodes[n.Name] = n
	return n
}

// Node returns the node with the given canonical name, or nil.
func (g *Graph) Node(name string) *Node {
	return g.nodes[name]
}

// HasNode reports whether a node with the given canonical name exists.
func (g *Graph) HasNode(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// AddEdge inserts an edge and reports whether it was added. Directory,
// Import, and Inheritance edges are deduplicated per (source, target)
// pair; the remaining kinds may repeat, keeping the multigraph property
// (e.g. one Variable edge per recorded use).
func (g *Graph) AddEdge(e Edge) bool {
	if dedupedKind(e.Kind) && g.HasEdge(e.Kind, e.Source, e.Target) {
		return false
	}
	idx := len(g.edges)
	g.edges = append(g.edges, e)
	g.out[e.Source] = append(g.out[e.Source], idx)
	g.in[e.Target] = append(g.in[e.Target], idx)
	return true
}

func dedupedKind(k EdgeKind) bool {
	return k == EdgeDirectory || k == EdgeImport || k == EdgeInheritance
}

// HasEdge reports whether at least one edge of the given kind connects
// source to target.
func (g *Graph) HasEdge(kind EdgeKind, source, target string) bool {
	for _, idx := range g.out[source] {
		e := g.edges[idx]
		if e.Kind == kind && e.Target == target {
			return true
		}
	}
	return false
}

// Nodes returns all nodes sorted by canonical name.
func (g *Graph) Nodes() []*Node {
	result := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		result = append(result, n)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// NodesOfKind returns all nodes of the given kinds sorted by canonical name.
func (g *Graph) NodesOfKind(kinds ...NodeKind) []*Node {
	want := make(map[NodeKind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var result []*Node
	for _, n := range g.nodes {
		if want[n.Kind] {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Edges returns a copy of all edges in insertion order.
func (g *Graph) Edges() []Edge {
	result := make([]Edge, len(g.edges))
	copy(result, g.edges)
	return result
}

// EdgesOfKind returns all edges of the given kind in insertion order.
func (g *Graph) EdgesOfKind(kind EdgeKind) []Edge {
	var result []Edge
	for _, e := range g.edges {
		if e.Kind == kind {
			result = append(result, e)
		}
	}
	return result
}

// Out returns the edges originating at the named node, optionally
// filtered to one kind.
func (g *Graph) Out(name string, kind ...EdgeKind) []Edge {
	return g.adjacent(g.out[name], kind)
}

// In returns the edges targeting the named node, optionally filtered to
// one kind.
func (g *Graph) In(name string, kind ...EdgeKind) []Edge {
	return g.adjacent(g.in[name], kind)
}

func (g *Graph) adjacent(idxs []int, kind []EdgeKind) []Edge {
	var result []Edge
	for _, idx := range idxs {
		e := g.edges[idx]
		if len(kind) > 0 && kind[0] != "" && e.Kind != kind[0] {
			continue
		}
		result = append(result, e)
	}
	return result
}

// Successors returns the distinct nodes reachable over one outgoing edge
// of the given kind, sorted by canonical name.
func (g *Graph) Successors(name string, kind EdgeKind) []*Node {
	seen := make(map[string]bool)
	var result []*Node
	for _, e := range g.Out(name, kind) {
		if seen[e.Target] {
			continue
		}
		seen[e.Target] = true
		if n := g.nodes[e.Target]; n != nil {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Predecessors returns the distinct nodes with an edge of the given kind
// into the named node, sorted by canonical name.
func (g *Graph) Predecessors(name string, kind EdgeKind) []*Node {
	seen := make(map[string]bool)
	var result []*Node
	for _, e := range g.In(name, kind) {
		if seen[e.Source] {
			continue
		}
		seen[e.Source] = true
		if n := g.nodes[e.Source]; n != nil {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Clone returns an independent copy sharing the (immutable) node and
// edge values. Mutating the clone never affects the original.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		snapshot: g.snapshot,
		nodes:    make(map[string]*Node, len(g.nodes)),
		edges:    make([]Edge, len(g.edges)),
		out:      make(map[string][]int, len(g.out)),
		in:       make(map[string][]int, len(g.in)),
	}
	for name, n := range g.nodes {
		c.nodes[name] = n
	}
	copy(c.edges, g.edges)
	for name, idxs := range g.out {
		c.out[name] = append([]int(nil), idxs...)
	}
	for name, idxs := range g.in {
		c.in[name] = append([]int(nil), idxs...)
	}
	return c
}

// Stats summarizes node and edge counts by kind.
func (g *Graph) Stats() Stats {
	s := Stats{
		Nodes:       len(g.nodes),
		Edges:       len(g.edges),
		NodesByKind: make(map[NodeKind]int),
		EdgesByKind: make(map[EdgeKind]int),
	}
	for _, n := range g.nodes {
		s.NodesByKind[n.Kind]++
	}
	for _, e := range g.edges {
		s.EdgesByKind[e.Kind]++
	}
	return s
}

// Stats is a summary of graph size by kind.
type Stats struct {
	Nodes       int              `json:"nodes"`
	Edges       int              `json:"edges"`
	NodesByKind map[NodeKind]int `json:"nodes_by_kind"`
	EdgesByKind map[EdgeKind]int `json:"edges_by_kind"`
}
