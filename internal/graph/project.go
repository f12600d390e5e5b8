package graph

import (
	"fmt"
	"sort"
)

// Preset names a commonly used projection.
type Preset string

const (
	PresetFileDirectory      Preset = "file-directory"
	PresetClassInheritance   Preset = "class-inheritance"
	PresetFunctionDependency Preset = "function-dependency"
	PresetImportDependency   Preset = "import-dependency"
	PresetDefinitions        Preset = "definitions"
	PresetAll                Preset = "all"
)

// presetKinds maps each preset to its node and edge kind sets.
var presetKinds = map[Preset]struct {
	nodes []NodeKind
	edges []EdgeKind
}{
	PresetFileDirectory:      {[]NodeKind{NodeFolder, NodeFile}, []EdgeKind{EdgeDirectory}},
	PresetClassInheritance:   {[]NodeKind{NodeClass}, []EdgeKind{EdgeInheritance}},
	PresetFunctionDependency: {[]NodeKind{NodeFile, NodeFunction, NodeClass}, []EdgeKind{EdgeFunctionCall}},
	PresetImportDependency:   {[]NodeKind{NodeFolder, NodeFile}, []EdgeKind{EdgeImport}},
	PresetDefinitions:        {nil, []EdgeKind{EdgeDefinition}},
	PresetAll:                {nil, nil},
}

// Presets returns the known preset names in sorted order.
func Presets() []Preset {
	result := make([]Preset, 0, len(presetKinds))
	for p := range presetKinds {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// PresetKinds returns the node and edge kind sets for a preset. A nil
// kind set in the table means "all kinds".
func PresetKinds(p Preset) ([]NodeKind, []EdgeKind, error) {
	entry, ok := presetKinds[p]
	if !ok {
		return nil, nil, fmt.Errorf("unknown preset %q (known: %v)", p, Presets())
	}
	nodes := entry.nodes
	if nodes == nil {
		nodes = AllNodeKinds()
	}
	edges := entry.edges
	if edges == nil {
		edges = AllEdgeKinds()
	}
	return nodes, edges, nil
}

// Project returns the induced sub-multigraph of g containing exactly the
// nodes of an allowed kind and the edges of an allowed kind whose source
// and target both survive node filtering.
//
// Projection is pure (g is not touched) and idempotent: projecting twice
// with the same kind sets equals projecting once.
func Project(g *Graph, nodeKinds []NodeKind, edgeKinds []EdgeKind) *Graph {
	allowNode := make(map[NodeKind]bool, len(nodeKinds))
	for _, k := range nodeKinds {
		allowNode[k] = true
	}
	allowEdge := make(map[EdgeKind]bool, len(edgeKinds))
	for _, k := range edgeKinds {
		allowEdge[k] = true
	}

	sub := New(g.Snapshot())
	for _, n := range g.Nodes() {
		if allowNode[n.Kind] {
			sub.AddNode(n)
		}
	}
	for _, e := range g.edges {
		if !allowEdge[e.Kind] {
			continue
		}
		if !sub.HasNode(e.Source) || !sub.HasNode(e.Target) {
			continue
		}
		sub.addEdgeUnchecked(e)
	}
	return sub
}

// addEdgeUnchecked appends an edge without the per-kind dedup probe.
// Callers must copy from a graph whose dedup invariant already holds.
func (g *Graph) addEdgeUnchecked(e Edge) {
	idx := len(g.edges)
	g.edges = append(g.edges, e)
	g.out[e.Source] = append(g.out[e.Source], idx)
	g.in[e.Target] = append(g.in[e.Target], idx)
}

// ProjectPreset projects g using a named preset.
func ProjectPreset(g *Graph, p Preset) (*Graph, error) {
	nodes, edges, err := PresetKinds(p)
	if err != nil {
		return nil, err
	}
	return Project(g, nodes, edges), nil
}
