// Package parsers provides the tree-sitter based Python front end.
//
// It converts raw source into a compact statement/expression tree (the
// Node type) carrying exactly the fields the graph construction passes
// need: identifier names, import module paths with relative levels and
// imported name lists, callee names, and declared base classes. Files
// with syntax errors are rejected whole with ErrParse; the pipeline
// skips them.
package parsers

import (
	"context"
	"errors"
)

// ErrParse marks a file the front end refused to parse. Callers test
// with errors.Is and skip the file.
var ErrParse = errors.New("syntax error")

// Kind identifies the syntactic role of a Node.
type Kind string

const (
	KindModule     Kind = "module"
	KindClassDef   Kind = "class_def"
	KindFunction   Kind = "function_def"
	KindAssign     Kind = "assign"
	KindName       Kind = "name"
	KindImport     Kind = "import"
	KindImportFrom Kind = "import_from"
	KindCall       Kind = "call"
	KindLambda     Kind = "lambda"
	KindIf         Kind = "if"
	KindFor        Kind = "for"
	KindWhile      Kind = "while"
	KindTry        Kind = "try"
	KindExpr       Kind = "expr"
)

// Alias is one imported name with its optional rename. For a plain
// import statement Name holds the dotted module path; for an
// import-from it holds the imported identifier (or "*").
type Alias struct {
	Name   string
	AsName string
}

// Node is one node of the parsed syntax tree.
//
// Children holds every child in source order and drives generic
// traversal; the typed fields (Targets, Value, Test, Body, Orelse)
// reference subsets of the same nodes for the specialized statement
// visits. A Node is immutable after parsing and safe to share across
// goroutines.
type Node struct {
	// Kind is the syntactic role.
	Kind Kind

	// Name carries the local identifier: class/function name, the
	// referenced name for KindName, or the callee name for KindCall
	// ("" when the callee is not a plain name or attribute).
	Name string

	// Module is the dotted module path of an import-from statement
	// ("" for `from . import x` style imports).
	Module string

	// Level counts the leading dots of an import-from statement
	// (0 = absolute).
	Level int

	// Names lists the imported names of an import or import-from.
	Names []Alias

	// Bases lists the declared base classes of a class definition,
	// reduced to their trailing identifier ("" when unextractable).
	Bases []string

	// Line is the 1-based start line in the source file.
	Line uint32

	// Children holds every child node in source order.
	Children []*Node

	// Targets holds the simple-identifier assignment targets.
	Targets []*Node

	// Value is the assignment right-hand side.
	Value *Node

	// Test is the condition of an if or while statement.
	Test *Node

	// Body holds the statements of the main block. For a try statement
	// this includes handler, else, and finally blocks.
	Body []*Node

	// Orelse holds the statements of an else branch (an elif chain
	// appears here as a nested if node).
	Orelse []*Node
}

// Parser turns source bytes into a syntax tree.
type Parser interface {
	// Parse returns the module root, or an error wrapping ErrParse
	// when the source has syntax errors.
	Parse(ctx context.Context, content []byte) (*Node, error)

	// Language returns the language this parser handles.
	Language() string
}
