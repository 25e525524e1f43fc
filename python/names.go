package python

import (
	"sort"

	"github.com/dhamidi/pyscope/python/parser"
)

// NameSet is an unordered set of identifiers.
type NameSet map[string]struct{}

func NewNameSet(names ...string) NameSet {
	s := make(NameSet, len(names))
	for _, name := range names {
		s.Add(name)
	}
	return s
}

func (s NameSet) Add(name string) {
	s[name] = struct{}{}
}

func (s NameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Sorted returns the names in lexical order.
func (s NameSet) Sorted() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Intersect returns the names present in both s and other.
func (s NameSet) Intersect(other NameSet) NameSet {
	out := make(NameSet)
	for name := range s {
		if other.Has(name) {
			out.Add(name)
		}
	}
	return out
}

func (s NameSet) Clone() NameSet {
	out := make(NameSet, len(s))
	for name := range s {
		out.Add(name)
	}
	return out
}

type BindingKind int

const (
	BindingVariable BindingKind = iota
	BindingImport
	BindingFunction
	BindingClass
)

var bindingKindNames = map[BindingKind]string{
	BindingVariable: "variable",
	BindingImport:   "import",
	BindingFunction: "function",
	BindingClass:    "class",
}

func (k BindingKind) String() string {
	if name, ok := bindingKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Binding describes the last statement that bound a name at module scope.
type Binding struct {
	Name string
	Kind BindingKind
	// From is the module an imported name came from. For a plain
	// "import a.b" it is the imported module itself.
	From string
	// Imported is the name in the source module of a from-import.
	Imported string
	// Target is the kind of the name in the module it was imported from.
	// It is BindingImport for a plain "import a.b".
	Target BindingKind
	Span   parser.Span
}
