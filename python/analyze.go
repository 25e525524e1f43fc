package python

import (
	"context"

	"github.com/dhamidi/pyscope/python/parser"
)

// Result is the interface of one module: the names it binds at top level
// and the subset exported by a wildcard import.
type Result struct {
	Names         NameSet
	WildcardNames NameSet
	Bindings      map[string]Binding
	// All holds the literal __all__ entries in source order, nil when the
	// module has no literal __all__ assignment.
	All    []string
	Errors []ResolutionError
}

// Analyze returns the module's top-level interface. It is the same as
// m.Names(ctx).
func Analyze(ctx context.Context, m *Module) (*Result, error) {
	return m.Names(ctx)
}

type analyzer struct {
	ctx      context.Context
	module   *Module
	names    NameSet
	bindings map[string]Binding
	all      []string
	hasAll   bool
	errors   []ResolutionError
}

func analyzeModule(ctx context.Context, m *Module) (*Result, error) {
	a := &analyzer{
		ctx:      ctx,
		module:   m,
		names:    make(NameSet),
		bindings: make(map[string]Binding),
	}

	for _, stmt := range m.tree.Children {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := a.statement(stmt); err != nil {
			return nil, err
		}
	}

	res := &Result{
		Names:    a.names,
		Bindings: a.bindings,
		Errors:   a.errors,
	}
	if a.hasAll {
		res.All = a.all
		res.WildcardNames = a.names.Intersect(NewNameSet(a.all...))
	} else {
		res.WildcardNames = a.names.Clone()
	}
	return res, nil
}

func (a *analyzer) statement(n *parser.Node) error {
	switch n.Kind {
	case parser.KindImport:
		for _, name := range n.ChildrenOfKind(parser.KindImportName) {
			a.bind(Binding{Name: name.BindingName(), Kind: BindingImport, From: name.Text, Target: BindingImport, Span: name.Span})
		}
	case parser.KindImportFrom:
		return a.importFrom(n)
	case parser.KindFunctionDef:
		a.bind(Binding{Name: n.Text, Kind: BindingFunction, Span: n.Span})
	case parser.KindClassDef:
		a.bind(Binding{Name: n.Text, Kind: BindingClass, Span: n.Span})
	case parser.KindAssign:
		if all, ok := allLiteral(n); ok {
			a.all = all
			a.hasAll = true
			return nil
		}
		a.scan(n)
	default:
		a.scan(n)
	}
	return nil
}

func (a *analyzer) importFrom(n *parser.Node) error {
	// Relative imports are not resolved.
	if n.Level > 0 {
		return nil
	}

	mod, err := a.module.env.LoadModule(a.ctx, n.Text)
	if err != nil {
		log.Debugf("%s: %s", a.module.name, err)
		a.errors = append(a.errors, ResolutionError{Module: n.Text, Span: n.Span, Err: err})
		return nil
	}
	res, err := mod.Names(a.ctx)
	if err != nil {
		return err
	}

	if wildcard := n.FirstChildOfKind(parser.KindWildcard); wildcard != nil {
		for _, name := range res.WildcardNames.Sorted() {
			a.bind(a.imported(res, name, name, n.Text, wildcard.Span))
		}
		return nil
	}

	for _, name := range n.ChildrenOfKind(parser.KindImportName) {
		if !res.Names.Has(name.Text) {
			a.errors = append(a.errors, ResolutionError{Name: name.Text, Module: n.Text, Span: name.Span})
			continue
		}
		a.bind(a.imported(res, name.Text, name.BindingName(), n.Text, name.Span))
	}
	return nil
}

func (a *analyzer) imported(res *Result, source, local, module string, span parser.Span) Binding {
	b := Binding{Name: local, Kind: BindingImport, From: module, Imported: source, Target: BindingVariable, Span: span}
	if orig, ok := res.Bindings[source]; ok {
		b.Target = orig.Kind
		if orig.Kind == BindingImport {
			b.Target = orig.Target
		}
	}
	return b
}

// scan binds simple assignment targets found anywhere in n without entering
// nested scopes.
func (a *analyzer) scan(n *parser.Node) {
	if n == nil || n.Kind.NewScope() {
		return
	}
	if n.Kind == parser.KindAssign && n.Value != nil {
		for _, target := range n.Children {
			a.bindTarget(target)
		}
	}
	for _, child := range n.Children {
		a.scan(child)
	}
	a.scan(n.Value)
}

func (a *analyzer) bindTarget(n *parser.Node) {
	switch n.Kind {
	case parser.KindName:
		a.bind(Binding{Name: n.Text, Kind: BindingVariable, Span: n.Span})
	case parser.KindPattern:
		for _, child := range n.Children {
			a.bindTarget(child)
		}
	}
}

func (a *analyzer) bind(b Binding) {
	if b.Name == "" {
		return
	}
	a.names.Add(b.Name)
	a.bindings[b.Name] = b
}

// allLiteral recognizes __all__ = [...] and returns its string entries with
// the first and last character of each literal removed.
func allLiteral(n *parser.Node) ([]string, bool) {
	if len(n.Children) != 1 || n.Value == nil || n.Value.Kind != parser.KindList {
		return nil, false
	}
	target := n.Children[0]
	if target.Kind != parser.KindName || target.Text != "__all__" {
		return nil, false
	}

	all := []string{}
	for _, s := range n.Value.ChildrenOfKind(parser.KindString) {
		all = append(all, stripQuotes(s.Text))
	}
	return all, true
}

func stripQuotes(literal string) string {
	if len(literal) < 2 {
		return ""
	}
	return literal[1 : len(literal)-1]
}
