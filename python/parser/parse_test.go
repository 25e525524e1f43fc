package parser

import (
	"context"
	"testing"
)

func parse(t *testing.T, src string) *Node {
	t.Helper()
	mod, err := Parse(context.Background(), []byte(src), WithFile("test.py"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if mod.Kind != KindModule {
		t.Fatalf("root kind = %s, want Module", mod.Kind)
	}
	return mod
}

func TestParseImport(t *testing.T) {
	mod := parse(t, "import os.path, numpy as np\n")

	if len(mod.Children) != 1 {
		t.Fatalf("Expected 1 statement, got %d:\n%s", len(mod.Children), mod)
	}
	imp := mod.Children[0]
	if imp.Kind != KindImport {
		t.Fatalf("kind = %s, want Import", imp.Kind)
	}
	names := imp.ChildrenOfKind(KindImportName)
	if len(names) != 2 {
		t.Fatalf("Expected 2 import names, got %d", len(names))
	}
	if names[0].Text != "os.path" || names[0].Alias != "" {
		t.Errorf("first import = %q as %q, want os.path", names[0].Text, names[0].Alias)
	}
	if names[1].Text != "numpy" || names[1].Alias != "np" {
		t.Errorf("second import = %q as %q, want numpy as np", names[1].Text, names[1].Alias)
	}
}

func TestParseImportFrom(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		module   string
		level    int
		wildcard bool
		imported []string
	}{
		{"names", "from a.b import c, d as e\n", "a.b", 0, false, []string{"c", "e"}},
		{"parenthesized", "from m import (x,\n    y)\n", "m", 0, false, []string{"x", "y"}},
		{"wildcard", "from microbit import *\n", "microbit", 0, true, nil},
		{"relative", "from .. import x\n", "", 2, false, []string{"x"}},
		{"relative module", "from .pkg import y\n", "pkg", 1, false, []string{"y"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod := parse(t, tt.src)
			n := mod.FirstChildOfKind(KindImportFrom)
			if n == nil {
				t.Fatalf("no ImportFrom in:\n%s", mod)
			}
			if n.Text != tt.module {
				t.Errorf("module = %q, want %q", n.Text, tt.module)
			}
			if n.Level != tt.level {
				t.Errorf("level = %d, want %d", n.Level, tt.level)
			}
			if got := n.FirstChildOfKind(KindWildcard) != nil; got != tt.wildcard {
				t.Errorf("wildcard = %v, want %v", got, tt.wildcard)
			}
			var got []string
			for _, name := range n.ChildrenOfKind(KindImportName) {
				got = append(got, name.BindingName())
			}
			if len(got) != len(tt.imported) {
				t.Fatalf("imported = %v, want %v", got, tt.imported)
			}
			for i := range got {
				if got[i] != tt.imported[i] {
					t.Errorf("imported[%d] = %q, want %q", i, got[i], tt.imported[i])
				}
			}
		})
	}
}

func TestParseDefinitions(t *testing.T) {
	mod := parse(t, `@decorator
def foo(a, b):
    inner = 1

class Example(Base):
    attr = 2
`)

	fn := mod.FirstChildOfKind(KindFunctionDef)
	if fn == nil || fn.Text != "foo" {
		t.Fatalf("function = %v, want foo", fn)
	}
	if fn.Span.Start.Line != 1 {
		t.Errorf("decorated span starts at line %d, want 1", fn.Span.Start.Line)
	}
	if fn.FirstChildOfKind(KindAssign) == nil {
		t.Error("function body should hold the inner assignment")
	}

	cls := mod.FirstChildOfKind(KindClassDef)
	if cls == nil || cls.Text != "Example" {
		t.Fatalf("class = %v, want Example", cls)
	}
}

func TestParseAssignments(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		targets  []NodeKind
		hasValue bool
	}{
		{"simple", "x = 1\n", []NodeKind{KindName}, true},
		{"chained", "a = b = 1\n", []NodeKind{KindName, KindName}, true},
		{"destructuring", "a, b = 1, 2\n", []NodeKind{KindPattern}, true},
		{"attribute", "obj.attr = 1\n", []NodeKind{KindAttribute}, true},
		{"subscript", "d[k] = 1\n", []NodeKind{KindSubscript}, true},
		{"annotated", "x: int = 1\n", []NodeKind{KindName}, true},
		{"bare annotation", "x: int\n", []NodeKind{KindName}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod := parse(t, tt.src)
			n := mod.FirstChildOfKind(KindAssign)
			if n == nil {
				t.Fatalf("no Assign in:\n%s", mod)
			}
			if len(n.Children) != len(tt.targets) {
				t.Fatalf("targets = %d, want %d:\n%s", len(n.Children), len(tt.targets), n)
			}
			for i, kind := range tt.targets {
				if n.Children[i].Kind != kind {
					t.Errorf("target[%d] = %s, want %s", i, n.Children[i].Kind, kind)
				}
			}
			if got := n.Value != nil; got != tt.hasValue {
				t.Errorf("has value = %v, want %v", got, tt.hasValue)
			}
		})
	}
}

func TestParseListAndStrings(t *testing.T) {
	mod := parse(t, `__all__ = ["foo", 'bar', 3]`+"\n")

	n := mod.FirstChildOfKind(KindAssign)
	if n == nil || n.Value == nil || n.Value.Kind != KindList {
		t.Fatalf("expected list assignment:\n%s", mod)
	}
	strs := n.Value.ChildrenOfKind(KindString)
	if len(strs) != 2 {
		t.Fatalf("strings = %d, want 2", len(strs))
	}
	if strs[0].Text != `"foo"` || strs[1].Text != `'bar'` {
		t.Errorf("strings = %q, %q", strs[0].Text, strs[1].Text)
	}
}

func TestParseComprehensionIsScoped(t *testing.T) {
	mod := parse(t, "xs = [y for y in range(3)]\n")

	n := mod.FirstChildOfKind(KindAssign)
	if n == nil || n.Value == nil {
		t.Fatalf("expected assignment:\n%s", mod)
	}
	if n.Value.Kind != KindComprehension {
		t.Errorf("value kind = %s, want Comprehension", n.Value.Kind)
	}
}

func TestParseSyntaxErrorDoesNotFail(t *testing.T) {
	mod := parse(t, "x = 1\ndef (:\ny = 2\n")

	found := false
	Inspect(mod, func(n *Node) bool {
		if n != nil && n.IsError() {
			found = true
		}
		return n != nil
	})
	if !found {
		t.Errorf("expected an Error node in:\n%s", mod)
	}
}

func TestParseFunctionParameters(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		params  []string
		returns string
	}{
		{"none", "def f(): pass\n", nil, ""},
		{"plain", "def f(a, b): pass\n", []string{"a", "b"}, ""},
		{"annotated", "def f(a: int, b=1, *args, c: str = 'x', **kw) -> bool: pass\n",
			[]string{"a: int", "b=1", "*args", "c: str = 'x'", "**kw"}, "bool"},
		{"separators", "def f(a, /, b, *, c): pass\n", []string{"a", "/", "b", "*", "c"}, ""},
		{"decorated", "@d\ndef f(x): pass\n", []string{"x"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mod := parse(t, tt.src)
			fn := mod.FirstChildOfKind(KindFunctionDef)
			if fn == nil {
				t.Fatalf("no FunctionDef in:\n%s", mod)
			}
			var got []string
			for _, p := range fn.Params {
				got = append(got, p.Text)
			}
			if len(got) != len(tt.params) {
				t.Fatalf("params = %q, want %q", got, tt.params)
			}
			for i := range got {
				if got[i] != tt.params[i] {
					t.Errorf("param %d = %q, want %q", i, got[i], tt.params[i])
				}
			}
			if fn.Returns != tt.returns {
				t.Errorf("returns = %q, want %q", fn.Returns, tt.returns)
			}
		})
	}
}
