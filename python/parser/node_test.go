package parser

import (
	"testing"
)

func TestNodeKindString(t *testing.T) {
	tests := []struct {
		kind NodeKind
		want string
	}{
		{KindError, "Error"},
		{KindModule, "Module"},
		{KindImport, "Import"},
		{KindImportFrom, "ImportFrom"},
		{KindImportName, "ImportName"},
		{KindWildcard, "Wildcard"},
		{KindFunctionDef, "FunctionDef"},
		{KindClassDef, "ClassDef"},
		{KindAssign, "Assign"},
		{KindName, "Name"},
		{KindPattern, "Pattern"},
		{KindComprehension, "Comprehension"},
		{KindExpr, "Expr"},
		{NodeKind(9999), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("NodeKind(%d).String() = %q, want %q", tt.kind, got, tt.want)
			}
		})
	}
}

func TestNodeKindNewScope(t *testing.T) {
	scoped := map[NodeKind]bool{
		KindFunctionDef:   true,
		KindClassDef:      true,
		KindComprehension: true,
		KindLambda:        true,
	}
	for kind := range nodeKindNames {
		if got := kind.NewScope(); got != scoped[kind] {
			t.Errorf("%s.NewScope() = %v, want %v", kind, got, scoped[kind])
		}
	}
}

func TestNodeAddChild(t *testing.T) {
	parent := &Node{Kind: KindImport}
	child1 := &Node{Kind: KindImportName, Text: "os"}
	child2 := &Node{Kind: KindImportName, Text: "sys"}

	parent.AddChild(child1)
	parent.AddChild(child2)
	parent.AddChild(nil)

	if len(parent.Children) != 2 {
		t.Errorf("Expected 2 children, got %d", len(parent.Children))
	}
	if parent.Children[0] != child1 {
		t.Error("First child mismatch")
	}
	if parent.Children[1] != child2 {
		t.Error("Second child mismatch")
	}
}

func TestNodeChildrenOfKind(t *testing.T) {
	n := &Node{Kind: KindImportFrom, Children: []*Node{
		{Kind: KindImportName, Text: "a"},
		{Kind: KindError},
		{Kind: KindImportName, Text: "b"},
	}}

	names := n.ChildrenOfKind(KindImportName)
	if len(names) != 2 || names[0].Text != "a" || names[1].Text != "b" {
		t.Errorf("ChildrenOfKind(ImportName) = %v", names)
	}
	if got := n.FirstChildOfKind(KindError); got != n.Children[1] {
		t.Errorf("FirstChildOfKind(Error) = %v", got)
	}
	if got := n.FirstChildOfKind(KindWildcard); got != nil {
		t.Errorf("FirstChildOfKind(Wildcard) = %v, want nil", got)
	}
}

func TestBindingName(t *testing.T) {
	tests := []struct {
		node *Node
		want string
	}{
		{&Node{Kind: KindImportName, Text: "os.path"}, "os.path"},
		{&Node{Kind: KindImportName, Text: "numpy", Alias: "np"}, "np"},
	}
	for _, tt := range tests {
		if got := tt.node.BindingName(); got != tt.want {
			t.Errorf("BindingName() = %q, want %q", got, tt.want)
		}
	}
}

func TestInspectSkipsChildren(t *testing.T) {
	tree := &Node{Kind: KindModule, Children: []*Node{
		{Kind: KindFunctionDef, Text: "f", Children: []*Node{
			{Kind: KindAssign, Children: []*Node{{Kind: KindName, Text: "inner"}}},
		}},
		{Kind: KindAssign, Children: []*Node{{Kind: KindName, Text: "outer"}}, Value: &Node{Kind: KindName, Text: "v"}},
	}}

	var names []string
	Inspect(tree, func(n *Node) bool {
		if n == nil {
			return false
		}
		if n.Kind == KindName {
			names = append(names, n.Text)
		}
		return !n.Kind.NewScope()
	})

	want := []string{"outer", "v"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
