package parser

import (
	"fmt"
	"strings"
)

type NodeKind int

const (
	KindError NodeKind = iota

	// Module level
	KindModule
	KindImport
	KindImportFrom
	KindImportName
	KindWildcard

	// Definitions
	KindFunctionDef
	KindClassDef

	// Statements
	KindAssign
	KindBlock
	KindStatement

	// Targets and expressions
	KindName
	KindAttribute
	KindSubscript
	KindPattern
	KindList
	KindString
	KindComprehension
	KindLambda
	KindExpr
)

var nodeKindNames = map[NodeKind]string{
	KindError:         "Error",
	KindModule:        "Module",
	KindImport:        "Import",
	KindImportFrom:    "ImportFrom",
	KindImportName:    "ImportName",
	KindWildcard:      "Wildcard",
	KindFunctionDef:   "FunctionDef",
	KindClassDef:      "ClassDef",
	KindAssign:        "Assign",
	KindBlock:         "Block",
	KindStatement:     "Statement",
	KindName:          "Name",
	KindAttribute:     "Attribute",
	KindSubscript:     "Subscript",
	KindPattern:       "Pattern",
	KindList:          "List",
	KindString:        "String",
	KindComprehension: "Comprehension",
	KindLambda:        "Lambda",
	KindExpr:          "Expr",
}

func (k NodeKind) String() string {
	if name, ok := nodeKindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// NewScope reports whether names bound inside a node of this kind are
// invisible at the enclosing scope.
func (k NodeKind) NewScope() bool {
	switch k {
	case KindFunctionDef, KindClassDef, KindComprehension, KindLambda:
		return true
	}
	return false
}

type Position struct {
	File   string
	Offset int // byte offset
	Line   int // 1-based
	Column int // 1-based, in bytes
}

func (p Position) String() string {
	if p.File != "" {
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

type Span struct {
	Start Position
	End   Position
}

// Node is one element of the tagged syntax tree.
//
// Field use by kind:
//
//	Import       Children are ImportName
//	ImportFrom   Text is the dotted module path, Level the number of leading dots,
//	             Children are ImportName or a single Wildcard
//	ImportName   Text is the dotted path, Alias the "as" name if any
//	FunctionDef  Text is the name, Children the body statements, Params the parameter
//	             list in source order, Returns the return annotation if any
//	ClassDef     Text is the name, Children the body statements
//	Assign       Children are the targets in source order, Value the assigned expression
//	             (nil for a bare annotation)
//	Name         Text is the identifier
//	String       Text is the literal source including prefix and quotes
//	Pattern      Children are the destructured targets
type Node struct {
	Kind     NodeKind
	Span     Span
	Text     string
	Alias    string
	Level    int
	Value    *Node
	Children []*Node
	Error    string

	Params  []Param
	Returns string
}

// Param is one entry of a parameter list as written, including any
// annotation and default ("x: int = 0", "*args", "/").
type Param struct {
	Text string
	Span Span
}

func (n *Node) AddChild(child *Node) {
	if child != nil {
		n.Children = append(n.Children, child)
	}
}

func (n *Node) IsError() bool {
	return n.Kind == KindError
}

func (n *Node) FirstChildOfKind(kind NodeKind) *Node {
	for _, child := range n.Children {
		if child.Kind == kind {
			return child
		}
	}
	return nil
}

func (n *Node) ChildrenOfKind(kind NodeKind) []*Node {
	var result []*Node
	for _, child := range n.Children {
		if child.Kind == kind {
			result = append(result, child)
		}
	}
	return result
}

// BindingName returns the name an import binds: the alias when present,
// otherwise the full dotted path.
func (n *Node) BindingName() string {
	if n.Alias != "" {
		return n.Alias
	}
	return n.Text
}

func (n *Node) String() string {
	var b strings.Builder
	n.writeIndent(&b, 0)
	return b.String()
}

func (n *Node) writeIndent(b *strings.Builder, indent int) {
	b.WriteString(strings.Repeat("  ", indent))
	b.WriteString(n.Kind.String())
	if n.Text != "" {
		b.WriteString(" " + n.Text)
	}
	if n.Alias != "" {
		b.WriteString(" as " + n.Alias)
	}
	if n.Error != "" {
		b.WriteString(" ERROR: " + n.Error)
	}
	b.WriteString("\n")
	for _, child := range n.Children {
		child.writeIndent(b, indent+1)
	}
	if n.Value != nil {
		b.WriteString(strings.Repeat("  ", indent+1) + "=\n")
		n.Value.writeIndent(b, indent+2)
	}
}
