package parser

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

type Parser struct {
	file string
}

type Option func(*Parser)

func WithFile(path string) Option {
	return func(p *Parser) {
		p.file = path
	}
}

// Parse parses Python source into a KindModule node. Syntax errors do not
// fail the parse; they surface as KindError nodes in the tree.
func Parse(ctx context.Context, src []byte, opts ...Option) (*Node, error) {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}

	ts := sitter.NewParser()
	defer ts.Close()
	ts.SetLanguage(python.GetLanguage())

	tree, err := ts.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", p.name(), err)
	}
	defer tree.Close()

	c := &converter{src: src, file: p.file}
	return c.module(tree.RootNode()), nil
}

func (p *Parser) name() string {
	if p.file == "" {
		return "<input>"
	}
	return p.file
}

type converter struct {
	src  []byte
	file string
}

func (c *converter) module(root *sitter.Node) *Node {
	n := c.newNode(KindModule, root)
	c.addNamedChildren(n, root)
	return n
}

func (c *converter) convert(ts *sitter.Node) *Node {
	if ts == nil || ts.IsMissing() {
		return nil
	}

	switch ts.Type() {
	case "comment", "line_continuation":
		return nil
	case "import_statement":
		return c.importStatement(ts)
	case "import_from_statement", "future_import_statement":
		return c.importFrom(ts)
	case "function_definition":
		return c.definition(KindFunctionDef, ts)
	case "class_definition":
		return c.definition(KindClassDef, ts)
	case "decorated_definition":
		def := c.convert(ts.ChildByFieldName("definition"))
		if def != nil {
			def.Span = c.span(ts)
		}
		return def
	case "expression_statement":
		if ts.NamedChildCount() == 1 {
			if child := ts.NamedChild(0); child.Type() == "assignment" {
				n := c.assignment(child)
				n.Span = c.span(ts)
				return n
			}
		}
		n := c.newNode(KindStatement, ts)
		n.Text = ts.Type()
		c.addNamedChildren(n, ts)
		return n
	case "assignment":
		return c.assignment(ts)
	case "identifier", "keyword_identifier":
		n := c.newNode(KindName, ts)
		n.Text = c.content(ts)
		return n
	case "attribute":
		n := c.newNode(KindAttribute, ts)
		n.Text = c.content(ts)
		c.addNamedChildren(n, ts)
		return n
	case "subscript":
		n := c.newNode(KindSubscript, ts)
		c.addNamedChildren(n, ts)
		return n
	case "pattern_list", "tuple_pattern", "list_pattern", "list_splat_pattern":
		n := c.newNode(KindPattern, ts)
		c.addNamedChildren(n, ts)
		return n
	case "list":
		n := c.newNode(KindList, ts)
		c.addNamedChildren(n, ts)
		return n
	case "string", "concatenated_string":
		n := c.newNode(KindString, ts)
		n.Text = c.content(ts)
		return n
	case "list_comprehension", "dictionary_comprehension", "set_comprehension", "generator_expression":
		n := c.newNode(KindComprehension, ts)
		c.addNamedChildren(n, ts)
		return n
	case "lambda":
		n := c.newNode(KindLambda, ts)
		c.addNamedChildren(n, ts)
		return n
	case "block":
		n := c.newNode(KindBlock, ts)
		c.addNamedChildren(n, ts)
		return n
	case "ERROR":
		n := c.newNode(KindError, ts)
		n.Error = "invalid syntax"
		c.addNamedChildren(n, ts)
		return n
	}

	kind := KindExpr
	if isStatementType(ts.Type()) {
		kind = KindStatement
	}
	n := c.newNode(kind, ts)
	n.Text = ts.Type()
	c.addNamedChildren(n, ts)
	return n
}

func isStatementType(typ string) bool {
	return strings.HasSuffix(typ, "_statement") || strings.HasSuffix(typ, "_clause") || typ == "case_block"
}

func (c *converter) importStatement(ts *sitter.Node) *Node {
	n := c.newNode(KindImport, ts)
	for i := 0; i < int(ts.NamedChildCount()); i++ {
		n.AddChild(c.importName(ts.NamedChild(i)))
	}
	return n
}

func (c *converter) importFrom(ts *sitter.Node) *Node {
	n := c.newNode(KindImportFrom, ts)
	if ts.Type() == "future_import_statement" {
		n.Text = "__future__"
	}
	if mod := ts.ChildByFieldName("module_name"); mod != nil {
		switch mod.Type() {
		case "relative_import":
			for i := 0; i < int(mod.NamedChildCount()); i++ {
				part := mod.NamedChild(i)
				switch part.Type() {
				case "import_prefix":
					n.Level = strings.Count(c.content(part), ".")
				case "dotted_name":
					n.Text = c.dottedName(part)
				}
			}
		default:
			n.Text = c.dottedName(mod)
		}
	}

	sawImport := false
	for i := 0; i < int(ts.ChildCount()); i++ {
		child := ts.Child(i)
		if child.Type() == "import" {
			sawImport = true
			continue
		}
		if !sawImport {
			continue
		}
		switch child.Type() {
		case "wildcard_import":
			n.AddChild(c.newNode(KindWildcard, child))
		case "dotted_name", "aliased_import", "identifier":
			n.AddChild(c.importName(child))
		}
	}
	return n
}

func (c *converter) importName(ts *sitter.Node) *Node {
	n := c.newNode(KindImportName, ts)
	switch ts.Type() {
	case "aliased_import":
		n.Text = c.dottedName(ts.ChildByFieldName("name"))
		if alias := ts.ChildByFieldName("alias"); alias != nil {
			n.Alias = c.content(alias)
		}
	case "dotted_name", "identifier":
		n.Text = c.dottedName(ts)
	default:
		return nil
	}
	return n
}

func (c *converter) dottedName(ts *sitter.Node) string {
	if ts == nil {
		return ""
	}
	if ts.Type() != "dotted_name" {
		return c.content(ts)
	}
	parts := make([]string, 0, ts.NamedChildCount())
	for i := 0; i < int(ts.NamedChildCount()); i++ {
		parts = append(parts, c.content(ts.NamedChild(i)))
	}
	return strings.Join(parts, ".")
}

func (c *converter) definition(kind NodeKind, ts *sitter.Node) *Node {
	n := c.newNode(kind, ts)
	if name := ts.ChildByFieldName("name"); name != nil {
		n.Text = c.content(name)
	}
	if params := ts.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			p := params.NamedChild(i)
			if p.Type() == "comment" {
				continue
			}
			n.Params = append(n.Params, Param{Text: c.content(p), Span: c.span(p)})
		}
	}
	if ret := ts.ChildByFieldName("return_type"); ret != nil {
		n.Returns = c.content(ret)
	}
	if body := ts.ChildByFieldName("body"); body != nil {
		c.addNamedChildren(n, body)
	}
	return n
}

// assignment flattens chained assignments so that a = b = 1 yields one
// Assign with targets [a, b].
func (c *converter) assignment(ts *sitter.Node) *Node {
	n := c.newNode(KindAssign, ts)
	n.AddChild(c.convert(ts.ChildByFieldName("left")))

	right := ts.ChildByFieldName("right")
	if right != nil && right.Type() == "assignment" {
		inner := c.assignment(right)
		n.Children = append(n.Children, inner.Children...)
		n.Value = inner.Value
		return n
	}
	n.Value = c.convert(right)
	return n
}

func (c *converter) addNamedChildren(n *Node, ts *sitter.Node) {
	for i := 0; i < int(ts.NamedChildCount()); i++ {
		n.AddChild(c.convert(ts.NamedChild(i)))
	}
}

func (c *converter) newNode(kind NodeKind, ts *sitter.Node) *Node {
	return &Node{Kind: kind, Span: c.span(ts)}
}

func (c *converter) content(ts *sitter.Node) string {
	return string(c.src[ts.StartByte():ts.EndByte()])
}

func (c *converter) span(ts *sitter.Node) Span {
	start, end := ts.StartPoint(), ts.EndPoint()
	return Span{
		Start: Position{File: c.file, Offset: int(ts.StartByte()), Line: int(start.Row) + 1, Column: int(start.Column) + 1},
		End:   Position{File: c.file, Offset: int(ts.EndByte()), Line: int(end.Row) + 1, Column: int(end.Column) + 1},
	}
}
