package parser

// A Visitor's Visit method is invoked for each node encountered by Walk.
// If the result visitor w is not nil, Walk visits each of the children of
// node with w, followed by a call of w.Visit(nil).
type Visitor interface {
	Visit(node *Node) (w Visitor)
}

// Walk traverses the tree in depth-first order: children in source order,
// then the assigned value of an Assign.
func Walk(v Visitor, node *Node) {
	if v = v.Visit(node); v == nil {
		return
	}
	for _, child := range node.Children {
		Walk(v, child)
	}
	if node.Value != nil {
		Walk(v, node.Value)
	}
	v.Visit(nil)
}

type inspector func(*Node) bool

func (f inspector) Visit(node *Node) Visitor {
	if f(node) {
		return f
	}
	return nil
}

// Inspect calls f for every node in the tree. If f returns false the
// children of that node are skipped. As with Walk, f is called with nil
// after the children of a visited node.
func Inspect(node *Node, f func(*Node) bool) {
	Walk(inspector(f), node)
}
