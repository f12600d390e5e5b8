package ingestion

import (
	"strconv"

	"github.com/Benny93/dendrite-go/internal/graph"
	"github.com/Benny93/dendrite-go/internal/parsers"
)

// WalkDefinitions runs the definition pass over every File node in sorted
// canonical-name order, minting Class, Function, Variable, Lambda and
// control-block nodes together with their Definition, Variable, and
// ControlFlow edges. The caller's graph is never mutated; the pass clones,
// augments, and returns.
func WalkDefinitions(g *graph.Graph) *graph.Graph {
	out := g.Clone()
	for _, f := range out.NodesOfKind(graph.NodeFile) {
		if f.Tree == nil {
			continue
		}
		w := &walker{g: out, file: f.Name}
		w.visitBody(f.Tree.Body, scope{name: f.Name, kind: graph.NodeFile})
	}
	return out
}

// scope identifies the node whose Definition edges represent "directly
// contains". It is passed by value through the recursion; substituting a
// control scope for one child statement leaves sibling visits untouched.
type scope struct {
	name string
	kind graph.NodeKind
}

type walker struct {
	g    *graph.Graph
	file string
}

func (w *walker) visitBody(stmts []*parsers.Node, sc scope) {
	for _, s := range stmts {
		w.visit(s, sc)
	}
}

// visit dispatches one statement or expression node. Kinds without a
// specialized rule recurse over their children under the same scope, which
// is what surfaces name loads inside calls, operators, and nested blocks.
func (w *walker) visit(n *parsers.Node, sc scope) {
	if n == nil {
		return
	}
	switch n.Kind {
	case parsers.KindClassDef:
		w.visitDef(n, sc, graph.NodeClass)
	case parsers.KindFunction:
		w.visitDef(n, sc, graph.NodeFunction)
	case parsers.KindAssign:
		w.visitAssign(n, sc)
	case parsers.KindIf, parsers.KindFor, parsers.KindWhile, parsers.KindTry:
		w.visitControl(n, sc)
	case parsers.KindLambda:
		w.mintLambda(n, sc)
	case parsers.KindName:
		w.resolveName(n.Name, sc)
	case parsers.KindImport, parsers.KindImportFrom:
		// resolved by the import pass
	default:
		for _, ch := range n.Children {
			w.visit(ch, sc)
		}
	}
}

func (w *walker) visitDef(n *parsers.Node, sc scope, kind graph.NodeKind) {
	name := graph.Join(sc.name, n.Name)
	w.g.AddNode(&graph.Node{Name: name, Kind: kind, Tree: n})
	w.g.AddEdge(graph.Edge{Kind: graph.EdgeDefinition, Source: sc.name, Target: name})
	w.visitBody(n.Body, scope{name: name, kind: kind})
}

// visitAssign handles each simple-identifier target of an assignment. A
// target whose identifier already resolves to an enclosing Variable while
// the current scope is a control block records a ControlFlow edge instead of
// minting; every other target mints (or rejoins) a Variable under the
// current scope and resolves the right-hand side beneath it.
func (w *walker) visitAssign(n *parsers.Node, sc scope) {
	for _, target := range n.Targets {
		if existing := w.lookupVariable(target.Name, sc); existing != nil && graph.IsControlKind(sc.kind) {
			w.g.AddEdge(graph.Edge{Kind: graph.EdgeControlFlow, Source: sc.name, Target: existing.Name})
			continue
		}
		name := graph.Join(sc.name, target.Name)
		w.g.AddNode(&graph.Node{Name: name, Kind: graph.NodeVariable, Tree: n.Value})
		w.g.AddEdge(graph.Edge{Kind: graph.EdgeDefinition, Source: sc.name, Target: name})
		if n.Value != nil {
			w.visit(n.Value, scope{name: name, kind: graph.NodeVariable})
		}
	}
}

// resolveName looks outward for a Variable matching a loaded identifier and
// records a Variable edge from the found node to the current scope. Only
// File, Class, Function, and control scopes record; Variable and lambda
// scopes resolve through their enclosing recursion without recording.
func (w *walker) resolveName(id string, sc scope) {
	found := w.lookupVariable(id, sc)
	if found == nil {
		return
	}
	if !recordsVariableUse(sc.kind) {
		return
	}
	w.g.AddEdge(graph.Edge{Kind: graph.EdgeVariable, Source: found.Name, Target: sc.name})
}

func recordsVariableUse(k graph.NodeKind) bool {
	switch k {
	case graph.NodeFile, graph.NodeClass, graph.NodeFunction,
		graph.NodeIf, graph.NodeFor, graph.NodeWhile, graph.NodeTry:
		return true
	}
	return false
}

// lookupVariable searches for a Variable named id by path-segment
// truncation: the candidate prefix starts at the current scope and is
// shortened one segment at a time, checking every prefix down to and
// including the file's canonical name. Truncation approximates popping
// scopes because canonical names encode nesting; sibling scopes sharing a
// prefix can collide, an accepted trade of name-based resolution.
func (w *walker) lookupVariable(id string, sc scope) *graph.Node {
	prefix := sc.name
	for {
		if n := w.g.Node(graph.Join(prefix, id)); n != nil && n.Kind == graph.NodeVariable {
			return n
		}
		if prefix == w.file {
			return nil
		}
		parent := graph.Parent(prefix)
		if parent == "" {
			return nil
		}
		prefix = parent
	}
}

// visitControl mints a disambiguated control node, then dispatches each
// immediate child statement with the control node substituted as scope for
// that child only. If and While resolve their test expression under the
// control scope before the body; else branches and try handlers arrive
// through Body and Orelse.
func (w *walker) visitControl(n *parsers.Node, sc scope) {
	kind := controlNodeKind(n.Kind)
	name := w.disambiguate(sc.name, string(kind))
	w.g.AddNode(&graph.Node{Name: name, Kind: kind})
	w.g.AddEdge(graph.Edge{Kind: graph.EdgeDefinition, Source: sc.name, Target: name})

	ctrl := scope{name: name, kind: kind}
	if (n.Kind == parsers.KindIf || n.Kind == parsers.KindWhile) && n.Test != nil {
		w.visit(n.Test, ctrl)
	}
	w.visitBody(n.Body, ctrl)
	w.visitBody(n.Orelse, ctrl)
}

func controlNodeKind(k parsers.Kind) graph.NodeKind {
	switch k {
	case parsers.KindIf:
		return graph.NodeIf
	case parsers.KindFor:
		return graph.NodeFor
	case parsers.KindWhile:
		return graph.NodeWhile
	default:
		return graph.NodeTry
	}
}

// mintLambda records an anonymous function definition. Its body is not
// walked for variable uses.
func (w *walker) mintLambda(n *parsers.Node, sc scope) {
	name := w.disambiguate(sc.name, string(graph.NodeLambda))
	w.g.AddNode(&graph.Node{Name: name, Kind: graph.NodeLambda, Tree: n})
	w.g.AddEdge(graph.Edge{Kind: graph.EdgeDefinition, Source: sc.name, Target: name})
}

// disambiguate appends the smallest unused positive integer to the kind tag,
// probed against current graph membership.
func (w *walker) disambiguate(scopeName, tag string) string {
	for i := 1; ; i++ {
		name := graph.Join(scopeName, tag+strconv.Itoa(i))
		if !w.g.HasNode(name) {
			return name
		}
	}
}
