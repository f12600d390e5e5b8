package analysis

import (
	"github.com/Benny93/dendrite-go/internal/graph"
)

// UncalledFunction is a defined function no analyzed file calls.
type UncalledFunction struct {
	Name string `json:"name"`
	File string `json:"file"`
}

// Uncalled returns the Function nodes with no outgoing call edge, in name
// order. Call edges originate at the called definition and point at the
// calling file, so a function without any was never resolved as a callee.
func Uncalled(g *graph.Graph) []UncalledFunction {
	var result []UncalledFunction
	for _, node := range g.NodesOfKind(graph.NodeFunction) {
		if len(g.Out(node.Name, graph.EdgeFunctionCall)) > 0 {
			continue
		}
		result = append(result, UncalledFunction{
			Name: node.Name,
			File: containingFile(g, node.Name),
		})
	}
	return result
}

// containingFile climbs the canonical name until it reaches a File node.
func containingFile(g *graph.Graph, name string) string {
	for cur := graph.Parent(name); cur != ""; cur = graph.Parent(cur) {
		if n := g.Node(cur); n != nil && n.Kind == graph.NodeFile {
			return cur
		}
	}
	return ""
}
