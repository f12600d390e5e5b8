package ingestion

import (
	"strings"

	"github.com/Benny93/dendrite-go/internal/graph"
	"github.com/Benny93/dendrite-go/internal/parsers"
)

// SymbolTables records, per importing file's canonical name, the Class and
// Function nodes its resolved imports make available to the call and
// inheritance passes.
type SymbolTables map[string][]*graph.Node

// importDecl is one import statement flattened to what resolution needs:
// the dotted module path, the relative level (0 = absolute, n = n leading
// dots), and the explicitly imported names.
type importDecl struct {
	module string
	level  int
	names  []string
}

// ResolveImports maps each File's import statements to in-repository
// targets and builds the per-file symbol table of imported definitions.
// When explicitly imported names resolve to definitions inside the target,
// each definition gains an Import edge to the importing File; otherwise the
// resolved module node itself is the edge source. Unresolved imports are
// external dependencies and are dropped without error. Returns an augmented
// copy of the graph and the tables.
func ResolveImports(g *graph.Graph) (*graph.Graph, SymbolTables) {
	out := g.Clone()
	tables := make(SymbolTables)

	for _, f := range out.NodesOfKind(graph.NodeFile) {
		if f.Tree == nil {
			continue
		}
		for _, decl := range collectImports(f.Tree) {
			target := resolveImport(out, f, decl)
			if target == nil {
				continue
			}
			defs := importedDefinitions(out, target, decl.names)
			if len(defs) == 0 {
				out.AddEdge(graph.Edge{Kind: graph.EdgeImport, Source: target.Name, Target: f.Name})
				continue
			}
			for _, def := range defs {
				out.AddEdge(graph.Edge{Kind: graph.EdgeImport, Source: def.Name, Target: f.Name})
			}
			tables[f.Name] = append(tables[f.Name], defs...)
		}
	}
	return out, tables
}

// collectImports gathers import declarations from anywhere in the tree, so
// imports inside functions or conditional blocks count the same as
// module-level ones. `import a.b, c` yields one declaration per dotted path
// with no names; `from x import y, z` yields module x with names; aliases
// resolve under their original name.
func collectImports(n *parsers.Node) []importDecl {
	var decls []importDecl
	var walk func(*parsers.Node)
	walk = func(n *parsers.Node) {
		if n == nil {
			return
		}
		switch n.Kind {
		case parsers.KindImport:
			for _, a := range n.Names {
				decls = append(decls, importDecl{module: a.Name})
			}
		case parsers.KindImportFrom:
			d := importDecl{module: n.Module, level: n.Level}
			for _, a := range n.Names {
				d.names = append(d.names, a.Name)
			}
			decls = append(decls, d)
		default:
			// Children mirrors every nested statement, so one walk
			// covers bodies, branches, and expressions alike.
			for _, ch := range n.Children {
				walk(ch)
			}
		}
	}
	walk(n)
	return decls
}

func resolveImport(g *graph.Graph, file *graph.Node, decl importDecl) *graph.Node {
	if decl.level == 0 {
		return resolveAbsolute(g, decl.module)
	}
	return resolveRelative(g, file, decl)
}

// resolveAbsolute scans all nodes in sorted canonical-name order for one
// whose trailing segments equal the dotted path, either as a folder path or
// with .py appended to the last segment. The first match wins, which keeps
// resolution deterministic.
func resolveAbsolute(g *graph.Graph, module string) *graph.Node {
	if module == "" {
		return nil
	}
	asFolder, asFile := moduleSuffixes(module)
	for _, n := range g.Nodes() {
		if graph.HasSuffixSegments(n.Name, asFolder) || graph.HasSuffixSegments(n.Name, asFile) {
			return n
		}
	}
	return nil
}

// resolveRelative hops level Directory predecessors from the importing file
// to a base folder, then breadth-first-searches the base's Directory
// successors for a node whose trailing segments match the module path. An
// empty module path (from . import x) resolves to the base folder itself.
func resolveRelative(g *graph.Graph, file *graph.Node, decl importDecl) *graph.Node {
	base := file.Name
	for i := 0; i < decl.level; i++ {
		preds := g.Predecessors(base, graph.EdgeDirectory)
		if len(preds) == 0 {
			return nil
		}
		base = preds[0].Name
	}
	if decl.module == "" {
		return g.Node(base)
	}

	asFolder, asFile := moduleSuffixes(decl.module)
	queue := g.Successors(base, graph.EdgeDirectory)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if graph.HasSuffixSegments(n.Name, asFolder) || graph.HasSuffixSegments(n.Name, asFile) {
			return n
		}
		queue = append(queue, g.Successors(n.Name, graph.EdgeDirectory)...)
	}
	return nil
}

// moduleSuffixes translates a dotted module path into its two candidate
// trailing-segment forms: as a folder path and as a file path.
func moduleSuffixes(module string) (asFolder, asFile []string) {
	asFolder = strings.Split(module, ".")
	asFile = make([]string, len(asFolder))
	copy(asFile, asFolder)
	asFile[len(asFile)-1] += ".py"
	return asFolder, asFile
}

// importedDefinitions locates the Class and Function nodes inside a resolved
// import target whose trailing segment equals one of the imported names:
// direct Definition successors for File targets, recursive traversal over
// Directory and Definition edges for Folder targets.
func importedDefinitions(g *graph.Graph, target *graph.Node, names []string) []*graph.Node {
	if len(names) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	var defs []*graph.Node
	switch target.Kind {
	case graph.NodeFile:
		for _, s := range g.Successors(target.Name, graph.EdgeDefinition) {
			if wanted[s.Tail()] && isImportableDef(s.Kind) {
				defs = append(defs, s)
			}
		}
	case graph.NodeFolder:
		seen := map[string]bool{target.Name: true}
		queue := []*graph.Node{target}
		for len(queue) > 0 {
			n := queue[0]
			queue = queue[1:]
			if wanted[n.Tail()] && isImportableDef(n.Kind) {
				defs = append(defs, n)
			}
			for _, kind := range []graph.EdgeKind{graph.EdgeDirectory, graph.EdgeDefinition} {
				for _, s := range g.Successors(n.Name, kind) {
					if !seen[s.Name] {
						seen[s.Name] = true
						queue = append(queue, s)
					}
				}
			}
		}
	}
	return defs
}

func isImportableDef(k graph.NodeKind) bool {
	return k == graph.NodeClass || k == graph.NodeFunction
}
