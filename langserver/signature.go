package langserver

import (
	"context"
	"regexp"
	"strings"

	"github.com/dhamidi/pyscope/python"
	"github.com/dhamidi/pyscope/python/parser"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

const maxImportHops = 8

var (
	calleeBefore = regexp.MustCompile(`([\p{L}_][\p{L}\p{N}_]*(?:\.[\p{L}_][\p{L}\p{N}_]*)*)\s*$`)
	keywordArg   = regexp.MustCompile(`^\s*([\p{L}_][\p{L}\p{N}_]*)\s*=(?:[^=]|$)`)
)

// definition is what a call resolves to: a function, or a class through
// its __init__.
type definition struct {
	name    string
	params  []parser.Param
	returns string
	doc     string
}

func (s *Server) textDocumentSignatureHelp(ctx *glsp.Context, params *protocol.SignatureHelpParams) (*protocol.SignatureHelp, error) {
	d := s.workspace.GetFile(params.TextDocument.URI)
	if d == nil {
		return nil, nil
	}
	bg := context.Background()
	a, err := s.analyze(bg, d)
	if err != nil {
		return nil, err
	}
	offset, ok := a.doc.PositionToOffset(params.Position)
	if !ok {
		return nil, nil
	}
	callee, arg, current, ok := callAt(a.doc.Slice(0, offset))
	if !ok {
		return nil, nil
	}
	def, ok := a.lookupCallee(bg, callee)
	if !ok {
		return nil, nil
	}

	info := def.signature()
	if active, ok := activeParameter(def.params, arg, current); ok {
		info.ActiveParameter = &active
	}
	first := protocol.UInteger(0)
	return &protocol.SignatureHelp{
		Signatures:      []protocol.SignatureInformation{info},
		ActiveSignature: &first,
		ActiveParameter: info.ActiveParameter,
	}, nil
}

// callAt finds the innermost unclosed call in text, which ends at the
// cursor. It returns the callee, the index of the argument being written
// and that argument's text so far. Brackets inside strings are not
// recognized.
func callAt(text string) (callee string, arg int, current string, ok bool) {
	depth := 0
	start := -1
	for i := len(text) - 1; i >= 0; i-- {
		switch text[i] {
		case ')', ']', '}':
			depth++
		case '[', '{':
			if depth == 0 {
				return "", 0, "", false
			}
			depth--
		case ',':
			if depth == 0 {
				if start < 0 {
					start = i + 1
				}
				arg++
			}
		case '(':
			if depth > 0 {
				depth--
				continue
			}
			m := calleeBefore.FindStringSubmatch(text[:i])
			if m == nil {
				return "", 0, "", false
			}
			if start < 0 {
				start = i + 1
			}
			return m[1], arg, text[start:], true
		}
	}
	return "", 0, "", false
}

func (a *analysis) lookupCallee(ctx context.Context, callee string) (definition, bool) {
	qualifier, name, dotted := cutLast(callee, ".")
	if !dotted {
		b, ok := a.binding(callee)
		if !ok {
			return definition{}, false
		}
		return a.resolve(ctx, a.tree, b, callee, 0)
	}
	b, ok := a.binding(qualifier)
	if !ok || b.Kind != python.BindingImport || b.Target != python.BindingImport {
		return definition{}, false
	}
	return a.resolveIn(ctx, b.From, name, name, 0)
}

// resolve follows b to a definition in tree, or through imports into other
// modules.
func (a *analysis) resolve(ctx context.Context, tree *parser.Node, b python.Binding, display string, hops int) (definition, bool) {
	switch b.Kind {
	case python.BindingFunction:
		if fn := lastDef(tree, parser.KindFunctionDef, b.Name); fn != nil {
			return definition{name: display, params: fn.Params, returns: fn.Returns, doc: docstring(fn)}, true
		}
	case python.BindingClass:
		cls := lastDef(tree, parser.KindClassDef, b.Name)
		if cls == nil {
			return definition{}, false
		}
		ctor := lastDef(cls, parser.KindFunctionDef, "__init__")
		if ctor == nil {
			return definition{name: display, doc: docstring(cls)}, true
		}
		def := definition{name: display, params: ctor.Params, doc: docstring(ctor)}
		if len(def.params) > 0 {
			def.params = def.params[1:]
		}
		if def.doc == "" {
			def.doc = docstring(cls)
		}
		return def, true
	case python.BindingImport:
		if b.Target == python.BindingImport || b.Imported == "" || hops >= maxImportHops {
			return definition{}, false
		}
		return a.resolveIn(ctx, b.From, b.Imported, display, hops+1)
	}
	return definition{}, false
}

func (a *analysis) resolveIn(ctx context.Context, module, name, display string, hops int) (definition, bool) {
	m, err := a.env.LoadModule(ctx, module)
	if err != nil {
		log.Debugf("signature help: %s", err)
		return definition{}, false
	}
	res, err := m.Names(ctx)
	if err != nil {
		log.Debugf("signature help: %s", err)
		return definition{}, false
	}
	b, ok := res.Bindings[name]
	if !ok {
		return definition{}, false
	}
	return a.resolve(ctx, m.Tree(), b, display, hops)
}

// signature renders "name(p1, p2) -> ret" with parameter label offsets in
// UTF-16 code units.
func (def definition) signature() protocol.SignatureInformation {
	var b strings.Builder
	b.WriteString(def.name)
	b.WriteString("(")
	info := protocol.SignatureInformation{Parameters: []protocol.ParameterInformation{}}
	for i, p := range def.params {
		if i > 0 {
			b.WriteString(", ")
		}
		from := utf16Len(b.String())
		b.WriteString(p.Text)
		info.Parameters = append(info.Parameters, protocol.ParameterInformation{
			Label: []protocol.UInteger{protocol.UInteger(from), protocol.UInteger(utf16Len(b.String()))},
		})
	}
	b.WriteString(")")
	if def.returns != "" {
		b.WriteString(" -> ")
		b.WriteString(def.returns)
	}
	info.Label = b.String()
	if def.doc != "" {
		info.Documentation = protocol.MarkupContent{Kind: protocol.MarkupKindPlainText, Value: def.doc}
	}
	return info
}

// activeParameter maps the argument being written to a parameter. Keyword
// arguments match by name, positional ones by position; *args takes every
// remaining positional argument.
func activeParameter(params []parser.Param, arg int, current string) (protocol.UInteger, bool) {
	if m := keywordArg.FindStringSubmatch(current); m != nil {
		for i, p := range params {
			if paramName(p.Text) == m[1] {
				return protocol.UInteger(i), true
			}
		}
		for i, p := range params {
			if strings.HasPrefix(p.Text, "**") {
				return protocol.UInteger(i), true
			}
		}
		return 0, false
	}

	n := 0
	for i, p := range params {
		switch {
		case p.Text == "/":
			continue
		case p.Text == "*", strings.HasPrefix(p.Text, "**"):
			return 0, false
		case strings.HasPrefix(p.Text, "*"):
			return protocol.UInteger(i), true
		}
		if n == arg {
			return protocol.UInteger(i), true
		}
		n++
	}
	return 0, false
}

func paramName(text string) string {
	name := strings.TrimLeft(text, "*")
	if i := strings.IndexAny(name, ":="); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}

// lastDef returns the last direct child of n of the given kind and name.
func lastDef(n *parser.Node, kind parser.NodeKind, name string) *parser.Node {
	var found *parser.Node
	for _, child := range n.Children {
		if child.Kind == kind && child.Text == name {
			found = child
		}
	}
	return found
}

// docstring returns the leading string literal of a definition body.
func docstring(def *parser.Node) string {
	if len(def.Children) == 0 {
		return ""
	}
	first := def.Children[0]
	if first.Kind != parser.KindStatement || first.Text != "expression_statement" ||
		len(first.Children) != 1 || first.Children[0].Kind != parser.KindString {
		return ""
	}
	lit := strings.TrimLeft(first.Children[0].Text, "rRuU")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(lit) >= 2*len(q) && strings.HasPrefix(lit, q) && strings.HasSuffix(lit, q) {
			return strings.TrimSpace(lit[len(q) : len(lit)-len(q)])
		}
	}
	return ""
}

func cutLast(s, sep string) (before, after string, found bool) {
	i := strings.LastIndex(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+len(sep):], true
}
