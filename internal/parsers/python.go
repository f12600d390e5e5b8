package parsers

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonParser parses Python source code using tree-sitter.
type PythonParser struct{}

// NewPythonParser creates a new Python parser.
func NewPythonParser() *PythonParser {
	return &PythonParser{}
}

// Language returns the language this parser handles.
func (p *PythonParser) Language() string {
	return "python"
}

// Parse parses Python source code into a syntax tree. Files that fail to
// parse return an error wrapping ErrParse.
func (p *PythonParser) Parse(ctx context.Context, content []byte) (*Node, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parsing python source: %w", err)
	}

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return nil, fmt.Errorf("parsing python source: %w", ErrParse)
	}

	c := &converter{src: content}
	return c.module(root), nil
}

// converter lowers a tree-sitter parse tree into the language-neutral Node
// form. Statement bodies land in the typed slices (Body, Orelse, Test, ...)
// and every converted child additionally lands in Children in source order,
// so full-tree scans only ever need to follow Children.
type converter struct {
	src []byte
}

func (c *converter) text(n *sitter.Node) string {
	return string(c.src[n.StartByte():n.EndByte()])
}

func line(n *sitter.Node) uint32 {
	return n.StartPoint().Row + 1
}

func (c *converter) module(n *sitter.Node) *Node {
	mod := &Node{Kind: KindModule, Line: line(n)}
	mod.Body = c.block(n)
	mod.Children = mod.Body
	return mod
}

// block converts the statements of a module or block node.
func (c *converter) block(n *sitter.Node) []*Node {
	var out []*Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if s := c.stmt(n.NamedChild(i)); s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (c *converter) bodyOf(n *sitter.Node, field string) []*Node {
	b := n.ChildByFieldName(field)
	if b == nil {
		return nil
	}
	return c.block(b)
}

func (c *converter) stmt(n *sitter.Node) *Node {
	switch n.Type() {
	case "class_definition":
		return c.classDef(n)
	case "function_definition":
		return c.functionDef(n)
	case "decorated_definition":
		if d := n.ChildByFieldName("definition"); d != nil {
			return c.stmt(d)
		}
		return nil
	case "import_statement":
		return c.importStmt(n)
	case "import_from_statement", "future_import_statement":
		return c.importFrom(n)
	case "if_statement":
		return c.ifStmt(n)
	case "for_statement":
		return c.forStmt(n)
	case "while_statement":
		return c.whileStmt(n)
	case "try_statement":
		return c.tryStmt(n)
	case "expression_statement":
		return c.exprStmt(n)
	case "global_statement", "nonlocal_statement", "pass_statement",
		"break_statement", "continue_statement", "comment":
		return nil
	default:
		// return, raise, assert, delete, with, match and anything else:
		// keep nested blocks as statements and everything else as
		// expressions so name loads and calls surface.
		children := c.mixed(n)
		if len(children) == 0 {
			return nil
		}
		return &Node{Kind: KindExpr, Line: line(n), Children: children}
	}
}

// mixed converts the named children of a statement that carries both
// expressions and nested blocks, such as with or match.
func (c *converter) mixed(n *sitter.Node) []*Node {
	var out []*Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "block" {
			out = append(out, c.block(child)...)
			continue
		}
		if e := c.expr(child); e != nil {
			out = append(out, e)
		}
	}
	return out
}

// exprStmt unwraps an expression statement into its underlying assignment,
// call, or bare expression.
func (c *converter) exprStmt(n *sitter.Node) *Node {
	if n.NamedChildCount() == 1 {
		inner := n.NamedChild(0)
		switch inner.Type() {
		case "assignment":
			return c.assign(inner)
		case "augmented_assignment":
			return c.augAssign(inner)
		}
		return c.expr(inner)
	}
	children := c.exprChildren(n)
	if len(children) == 0 {
		return nil
	}
	return &Node{Kind: KindExpr, Line: line(n), Children: children}
}

func (c *converter) classDef(n *sitter.Node) *Node {
	cls := &Node{Kind: KindClassDef, Line: line(n)}
	if name := n.ChildByFieldName("name"); name != nil {
		cls.Name = c.text(name)
	}
	if args := n.ChildByFieldName("superclasses"); args != nil {
		for i := 0; i < int(args.NamedChildCount()); i++ {
			arg := args.NamedChild(i)
			switch arg.Type() {
			case "keyword_argument", "list_splat", "dictionary_splat":
				// metaclass= and splats are not base classes
			default:
				cls.Bases = append(cls.Bases, c.baseName(arg))
			}
		}
	}
	cls.Body = c.bodyOf(n, "body")
	cls.Children = cls.Body
	return cls
}

// baseName extracts the trailing identifier of a superclass expression.
// Unrecognized shapes yield an empty name but still count as a base.
func (c *converter) baseName(n *sitter.Node) string {
	switch n.Type() {
	case "identifier":
		return c.text(n)
	case "attribute":
		if attr := n.ChildByFieldName("attribute"); attr != nil {
			return c.text(attr)
		}
	case "subscript":
		if v := n.ChildByFieldName("value"); v != nil {
			return c.baseName(v)
		}
	}
	return ""
}

func (c *converter) functionDef(n *sitter.Node) *Node {
	fn := &Node{Kind: KindFunction, Line: line(n)}
	if name := n.ChildByFieldName("name"); name != nil {
		fn.Name = c.text(name)
	}
	fn.Body = c.bodyOf(n, "body")
	fn.Children = fn.Body
	return fn
}

// assign converts an assignment, collecting every simple identifier target
// along a chain like a = b = expr. Non-identifier targets (tuples, attributes,
// subscripts) contribute no target; attribute and subscript bases still count
// as loads.
func (c *converter) assign(n *sitter.Node) *Node {
	a := &Node{Kind: KindAssign, Line: line(n)}
	cur := n
	for {
		if left := cur.ChildByFieldName("left"); left != nil {
			c.assignTarget(a, left)
		}
		right := cur.ChildByFieldName("right")
		if right == nil {
			break
		}
		if right.Type() == "assignment" {
			cur = right
			continue
		}
		a.Value = c.expr(right)
		break
	}
	for _, t := range a.Targets {
		a.Children = append(a.Children, t)
	}
	if a.Value != nil {
		a.Children = append(a.Children, a.Value)
	}
	return a
}

func (c *converter) assignTarget(a *Node, left *sitter.Node) {
	switch left.Type() {
	case "identifier":
		a.Targets = append(a.Targets, &Node{Kind: KindName, Name: c.text(left), Line: line(left)})
	case "pattern_list", "tuple_pattern", "list_pattern":
		// unpacking targets bind names rather than load them
	case "attribute", "subscript":
		if e := c.expr(left); e != nil {
			a.Children = append(a.Children, e)
		}
	}
}

// augAssign treats x += expr as a plain expression so the target reads as a
// load alongside the right-hand side.
func (c *converter) augAssign(n *sitter.Node) *Node {
	e := &Node{Kind: KindExpr, Line: line(n)}
	if left := n.ChildByFieldName("left"); left != nil {
		if le := c.expr(left); le != nil {
			e.Children = append(e.Children, le)
		}
	}
	if right := n.ChildByFieldName("right"); right != nil {
		if re := c.expr(right); re != nil {
			e.Children = append(e.Children, re)
		}
	}
	if len(e.Children) == 0 {
		return nil
	}
	return e
}

func (c *converter) importStmt(n *sitter.Node) *Node {
	imp := &Node{Kind: KindImport, Line: line(n)}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			imp.Names = append(imp.Names, Alias{Name: c.text(child)})
		case "aliased_import":
			imp.Names = append(imp.Names, c.aliasedImport(child))
		}
	}
	return imp
}

// importFrom converts a from-import. The module may be absolute (dotted_name)
// or relative (relative_import, whose import_prefix dots set Level). Names
// after the import keyword become aliases; a wildcard import yields the
// single name "*".
func (c *converter) importFrom(n *sitter.Node) *Node {
	imp := &Node{Kind: KindImportFrom, Line: line(n)}
	sawImport := false
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case "import":
			sawImport = true
		case "dotted_name":
			if sawImport {
				imp.Names = append(imp.Names, Alias{Name: c.text(child)})
			} else {
				imp.Module = c.text(child)
			}
		case "relative_import":
			c.relativeImport(imp, child)
		case "aliased_import":
			imp.Names = append(imp.Names, c.aliasedImport(child))
		case "wildcard_import":
			imp.Names = append(imp.Names, Alias{Name: "*"})
		}
	}
	return imp
}

func (c *converter) relativeImport(imp *Node, n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "import_prefix":
			imp.Level = strings.Count(c.text(child), ".")
		case "dotted_name":
			imp.Module = c.text(child)
		}
	}
}

func (c *converter) aliasedImport(n *sitter.Node) Alias {
	a := Alias{}
	if name := n.ChildByFieldName("name"); name != nil {
		a.Name = c.text(name)
	}
	if alias := n.ChildByFieldName("alias"); alias != nil {
		a.AsName = c.text(alias)
	}
	return a
}

// ifStmt converts an if statement. Tree-sitter keeps elif clauses as a flat
// list of alternatives; Python semantics nest them, so the chain is folded
// right to left into Orelse.
func (c *converter) ifStmt(n *sitter.Node) *Node {
	s := &Node{Kind: KindIf, Line: line(n)}
	if cond := n.ChildByFieldName("condition"); cond != nil {
		s.Test = c.expr(cond)
	}
	s.Body = c.bodyOf(n, "consequence")

	var elifs []*sitter.Node
	var elseStmts []*Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "elif_clause":
			elifs = append(elifs, child)
		case "else_clause":
			elseStmts = c.bodyOf(child, "body")
		}
	}
	orelse := elseStmts
	for i := len(elifs) - 1; i >= 0; i-- {
		e := elifs[i]
		nested := &Node{Kind: KindIf, Line: line(e)}
		if cond := e.ChildByFieldName("condition"); cond != nil {
			nested.Test = c.expr(cond)
		}
		nested.Body = c.bodyOf(e, "consequence")
		nested.Orelse = orelse
		nested.Children = ifChildren(nested)
		orelse = []*Node{nested}
	}
	s.Orelse = orelse
	s.Children = ifChildren(s)
	return s
}

func ifChildren(s *Node) []*Node {
	var out []*Node
	if s.Test != nil {
		out = append(out, s.Test)
	}
	out = append(out, s.Body...)
	out = append(out, s.Orelse...)
	return out
}

func (c *converter) forStmt(n *sitter.Node) *Node {
	s := &Node{Kind: KindFor, Line: line(n)}
	if right := n.ChildByFieldName("right"); right != nil {
		if e := c.expr(right); e != nil {
			s.Children = append(s.Children, e)
		}
	}
	s.Body = c.bodyOf(n, "body")
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "else_clause" {
			s.Orelse = c.bodyOf(child, "body")
		}
	}
	s.Children = append(s.Children, s.Body...)
	s.Children = append(s.Children, s.Orelse...)
	return s
}

func (c *converter) whileStmt(n *sitter.Node) *Node {
	s := &Node{Kind: KindWhile, Line: line(n)}
	if cond := n.ChildByFieldName("condition"); cond != nil {
		s.Test = c.expr(cond)
	}
	s.Body = c.bodyOf(n, "body")
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child.Type() == "else_clause" {
			s.Orelse = c.bodyOf(child, "body")
		}
	}
	if s.Test != nil {
		s.Children = append(s.Children, s.Test)
	}
	s.Children = append(s.Children, s.Body...)
	s.Children = append(s.Children, s.Orelse...)
	return s
}

// tryStmt flattens the try block, exception handlers, else, and finally into
// a single body in source order.
func (c *converter) tryStmt(n *sitter.Node) *Node {
	s := &Node{Kind: KindTry, Line: line(n)}
	s.Body = c.bodyOf(n, "body")
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "except_clause", "except_group_clause", "else_clause", "finally_clause":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				if inner := child.NamedChild(j); inner.Type() == "block" {
					s.Body = append(s.Body, c.block(inner)...)
				}
			}
		}
	}
	s.Children = s.Body
	return s
}

func (c *converter) call(n *sitter.Node) *Node {
	call := &Node{Kind: KindCall, Line: line(n)}
	if fn := n.ChildByFieldName("function"); fn != nil {
		switch fn.Type() {
		case "identifier":
			call.Name = c.text(fn)
			call.Children = append(call.Children, &Node{Kind: KindName, Name: call.Name, Line: line(fn)})
		case "attribute":
			if attr := fn.ChildByFieldName("attribute"); attr != nil {
				call.Name = c.text(attr)
			}
			if obj := fn.ChildByFieldName("object"); obj != nil {
				if e := c.expr(obj); e != nil {
					call.Children = append(call.Children, e)
				}
			}
		default:
			if e := c.expr(fn); e != nil {
				call.Children = append(call.Children, e)
			}
		}
	}
	if args := n.ChildByFieldName("arguments"); args != nil {
		for i := 0; i < int(args.NamedChildCount()); i++ {
			arg := args.NamedChild(i)
			if arg.Type() == "keyword_argument" {
				if v := arg.ChildByFieldName("value"); v != nil {
					arg = v
				}
			}
			if e := c.expr(arg); e != nil {
				call.Children = append(call.Children, e)
			}
		}
	}
	return call
}

// lambda mints an anonymous function node. The body is converted so call
// collection still sees it, but it contributes no nested scope walking.
func (c *converter) lambda(n *sitter.Node) *Node {
	l := &Node{Kind: KindLambda, Line: line(n)}
	if body := n.ChildByFieldName("body"); body != nil {
		if e := c.expr(body); e != nil {
			l.Children = append(l.Children, e)
		}
	}
	return l
}

// expr converts an arbitrary expression. Identifiers become name loads,
// calls and lambdas keep their kinds, and everything else collapses to a
// generic expression wrapping its interesting descendants. Literals vanish.
func (c *converter) expr(n *sitter.Node) *Node {
	switch n.Type() {
	case "identifier":
		return &Node{Kind: KindName, Name: c.text(n), Line: line(n)}
	case "call":
		return c.call(n)
	case "lambda":
		return c.lambda(n)
	case "attribute":
		// only the base object of a.b.c is a name load
		if obj := n.ChildByFieldName("object"); obj != nil {
			if e := c.expr(obj); e != nil {
				return &Node{Kind: KindExpr, Line: line(n), Children: []*Node{e}}
			}
		}
		return nil
	case "parenthesized_expression":
		if n.NamedChildCount() == 1 {
			return c.expr(n.NamedChild(0))
		}
	case "string", "concatenated_string":
		// f-string interpolations still carry name loads
		children := c.exprChildren(n)
		if len(children) == 0 {
			return nil
		}
		return &Node{Kind: KindExpr, Line: line(n), Children: children}
	case "integer", "float", "true", "false", "none", "ellipsis",
		"comment", "string_start", "string_content", "string_end":
		return nil
	case "case_clause", "with_clause", "with_item", "as_pattern":
		children := c.mixed(n)
		if len(children) == 0 {
			return nil
		}
		return &Node{Kind: KindExpr, Line: line(n), Children: children}
	}
	children := c.exprChildren(n)
	if len(children) == 0 {
		return nil
	}
	return &Node{Kind: KindExpr, Line: line(n), Children: children}
}

func (c *converter) exprChildren(n *sitter.Node) []*Node {
	var out []*Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if e := c.expr(n.NamedChild(i)); e != nil {
			out = append(out, e)
		}
	}
	return out
}
