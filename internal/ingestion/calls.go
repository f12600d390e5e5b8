package ingestion

import (
	"github.com/Benny93/dendrite-go/internal/graph"
	"github.com/Benny93/dendrite-go/internal/parsers"
)

// ResolveCalls adds a FunctionCall edge from every symbol-table entry whose
// trailing segment matches a callee name used in a file. Plain calls and
// attribute calls contribute the same callee-name string, so foo() and
// mod.foo() both match an imported foo. Imported classes match as well,
// which records constructor calls. Returns an augmented copy.
func ResolveCalls(g *graph.Graph, tables SymbolTables) *graph.Graph {
	out := g.Clone()
	for _, f := range out.NodesOfKind(graph.NodeFile) {
		if f.Tree == nil {
			continue
		}
		symbols := tables[f.Name]
		if len(symbols) == 0 {
			continue
		}
		for _, callee := range collectCallees(f.Tree) {
			for _, sym := range symbols {
				if sym.Tail() == callee {
					out.AddEdge(graph.Edge{Kind: graph.EdgeFunctionCall, Source: sym.Name, Target: f.Name})
				}
			}
		}
	}
	return out
}

// collectCallees gathers the distinct callee names referenced anywhere in
// the tree, in first-use order.
func collectCallees(n *parsers.Node) []string {
	var callees []string
	seen := make(map[string]bool)
	var walk func(*parsers.Node)
	walk = func(n *parsers.Node) {
		if n == nil {
			return
		}
		if n.Kind == parsers.KindCall && n.Name != "" && !seen[n.Name] {
			seen[n.Name] = true
			callees = append(callees, n.Name)
		}
		for _, ch := range n.Children {
			walk(ch)
		}
	}
	walk(n)
	return callees
}
