package ingestion

import (
	"github.com/Benny93/dendrite-go/internal/graph"
	"github.com/Benny93/dendrite-go/internal/parsers"
)

// ResolveInheritance adds Inheritance edges (base to subclass) for classes
// defined directly inside each File. Only single-base classes participate;
// classes declaring more than one base are skipped, as is a base that
// matches no class or more than one in its stage. Local classes are searched
// before the symbol table and the first stage with candidates decides.
// Returns an augmented copy.
func ResolveInheritance(g *graph.Graph, tables SymbolTables) *graph.Graph {
	out := g.Clone()
	for _, f := range out.NodesOfKind(graph.NodeFile) {
		if f.Tree == nil {
			continue
		}
		bases := collectClassBases(f.Tree)

		var local []*graph.Node
		for _, s := range out.Successors(f.Name, graph.EdgeDefinition) {
			if s.Kind == graph.NodeClass {
				local = append(local, s)
			}
		}

		for _, sub := range local {
			declared, ok := bases[sub.Tail()]
			if !ok || len(declared) != 1 || declared[0] == "" {
				continue
			}
			base := resolveBase(declared[0], local, tables[f.Name])
			if base == nil {
				continue
			}
			out.AddEdge(graph.Edge{Kind: graph.EdgeInheritance, Source: base.Name, Target: sub.Name})
		}
	}
	return out
}

// collectClassBases maps each class name found in the tree to its declared
// base list. The first declaration of a name wins.
func collectClassBases(n *parsers.Node) map[string][]string {
	bases := make(map[string][]string)
	var walk func(*parsers.Node)
	walk = func(n *parsers.Node) {
		if n == nil {
			return
		}
		if n.Kind == parsers.KindClassDef {
			if _, ok := bases[n.Name]; !ok {
				bases[n.Name] = n.Bases
			}
		}
		for _, ch := range n.Children {
			walk(ch)
		}
	}
	walk(n)
	return bases
}

// resolveBase finds the class a base name refers to: first among the file's
// local classes, then among imported symbols. An edge target exists only
// when the deciding stage holds exactly one match.
func resolveBase(name string, local, imported []*graph.Node) *graph.Node {
	var candidates []*graph.Node
	for _, c := range local {
		if c.Tail() == name {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		for _, s := range imported {
			if s.Kind == graph.NodeClass && s.Tail() == name {
				candidates = append(candidates, s)
			}
		}
	}
	if len(candidates) != 1 {
		return nil
	}
	return candidates[0]
}
