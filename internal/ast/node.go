// Package ast defines the generic syntax tree the index and the dataflow
// builder operate on. Trees are produced by a parser and never mutated
// afterwards; parent links live outside the tree, in the index.
package ast

// DocID identifies a document, normally by its file URI.
type DocID string

// Node is a named syntax element with a source span.
type Node struct {
	// Kind is the grammar type, e.g. "function_definition" or "identifier".
	Kind string `json:"kind"`

	// Field is the field name under which the parent holds this node, or
	// empty when the grammar does not name the slot.
	Field string `json:"field,omitempty"`

	// Text is the source text covered by the node.
	Text string `json:"-"`

	Span Span `json:"span"`

	// Synthetic marks nodes without a real source position, such as nodes
	// inserted by error recovery.
	Synthetic bool `json:"synthetic,omitempty"`

	Children []*Node `json:"children,omitempty"`
}

// ChildByField returns the first child stored under field, or nil.
func (n *Node) ChildByField(field string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Field == field {
			return c
		}
	}
	return nil
}

// ChildrenByField returns all children stored under field.
func (n *Node) ChildrenByField(field string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Field == field {
			out = append(out, c)
		}
	}
	return out
}

// FirstChildOfKind returns the first direct child with the given kind.
func (n *Node) FirstChildOfKind(kind string) *Node {
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		if c.Kind == kind {
			return c
		}
	}
	return nil
}

// Walk visits n and its descendants depth-first, pre-order. Returning false
// from fn skips the children of the visited node.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}
