// Package graph provides the relationship graph data model for Dendrite.
//
// It defines the node and edge kinds that represent code-level entities
// (folders, files, classes, functions, variables, control blocks) and the
// relationships between them (containment, definition, imports, calls,
// inheritance, variable use), together with the multigraph container,
// subgraph projection, and deterministic serialization.
package graph

import (
	"strings"

	"github.com/Benny93/dendrite-go/internal/parsers"
)

// NodeKind represents the kind of a graph node.
type NodeKind string

const (
	NodeFolder   NodeKind = "folder"
	NodeFile     NodeKind = "file"
	NodeClass    NodeKind = "class"
	NodeFunction NodeKind = "function"
	NodeVariable NodeKind = "variable"
	NodeLambda   NodeKind = "lambda"
	NodeIf       NodeKind = "if"
	NodeFor      NodeKind = "for"
	NodeWhile    NodeKind = "while"
	NodeTry      NodeKind = "try"
)

// EdgeKind represents the kind of a graph edge.
type EdgeKind string

const (
	EdgeDirectory    EdgeKind = "directory"
	EdgeDefinition   EdgeKind = "definition"
	EdgeImport       EdgeKind = "import"
	EdgeFunctionCall EdgeKind = "function_call"
	EdgeInheritance  EdgeKind = "inheritance"
	EdgeVariable     EdgeKind = "variable"
	EdgeControlFlow  EdgeKind = "control_flow"
)

// AllNodeKinds returns every node kind in display order.
func AllNodeKinds() []NodeKind {
	return []NodeKind{
		NodeFolder, NodeFile, NodeClass, NodeFunction, NodeVariable,
		NodeLambda, NodeIf, NodeFor, NodeWhile, NodeTry,
	}
}

// AllEdgeKinds returns every edge kind in display order.
func AllEdgeKinds() []EdgeKind {
	return []EdgeKind{
		EdgeDirectory, EdgeDefinition, EdgeImport, EdgeFunctionCall,
		EdgeInheritance, EdgeVariable, EdgeControlFlow,
	}
}

// IsControlKind reports whether k is a control-flow block kind.
func IsControlKind(k NodeKind) bool {
	return k == NodeIf || k == NodeFor || k == NodeWhile || k == NodeTry
}

// Node represents one entity in a snapshot's relationship graph.
//
// The canonical name is the node's sole identity: two nodes with equal
// names are the same node, regardless of where or when they were built.
// Equality and hashing never depend on the in-memory address, so graphs
// stay comparable across separately constructed or reloaded snapshots.
type Node struct {
	// Name is the canonical, path-like name of the entity, built by
	// joining the enclosing scope's name with a local identifier
	// (e.g. "repo/pkg/models.py/User/save").
	Name string

	// Kind is the node kind.
	Kind NodeKind

	// Tree is the syntax subtree this entity was minted from; later
	// resolution passes re-walk it. Nil for folders, control blocks,
	// and nodes reloaded from storage.
	Tree *parsers.Node
}

// Tail returns the node's local identifier (the last path segment).
func (n *Node) Tail() string {
	return Tail(n.Name)
}

// Edge represents one directed relationship between two nodes, referenced
// by canonical name.
//
// Directions follow each kind's recording convention: Directory points
// parent folder to child; Definition points scope to definition; Import
// points the imported node to the importing file; FunctionCall points the
// called function to the calling file; Inheritance points base class to
// subclass; Variable points the variable to the scope using it;
// ControlFlow points the control block to the outer variable it
// reassigns.
type Edge struct {
	Kind   EdgeKind
	Source string
	Target string
}

// Join builds the canonical name of a child entity of scope.
func Join(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "/" + name
}

// Tail returns the last path segment of a canonical name.
func Tail(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Parent returns the canonical name one segment up, or "" at the root.
func Parent(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[:i]
	}
	return ""
}

// Segments splits a canonical name into its path segments.
func Segments(name string) []string {
	if name == "" {
		return nil
	}
	return strings.Split(name, "/")
}

// HasSuffixSegments reports whether the trailing path segments of name
// equal suffix. Matching is segment-wise, so "b/c" matches "a/b/c" but
// not "a/ab/c".
func HasSuffixSegments(name string, suffix []string) bool {
	segs := Segments(name)
	if len(suffix) == 0 || len(segs) < len(suffix) {
		return false
	}
	offset := len(segs) - len(suffix)
	for i, s := range suffix {
		if segs[offset+i] != s {
			return false
		}
	}
	return true
}

// ParseNodeKind returns the NodeKind named by a user-supplied string.
func ParseNodeKind(s string) (NodeKind, bool) {
	k := NodeKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllNodeKinds() {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// ParseEdgeKind returns the EdgeKind named by a user-supplied string.
func ParseEdgeKind(s string) (EdgeKind, bool) {
	k := EdgeKind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllEdgeKinds() {
		if k == known {
			return k, true
		}
	}
	return "", false
}
