// Package dataflow derives a dataflow graph from a workflow body: named
// values and operator invocations wired by the values that feed them, with
// one nested subgraph per conditional branch.
package dataflow

import (
	"fmt"
	"slices"
)

// NodeKind classifies graph nodes.
type NodeKind int

const (
	// Name is a user-visible value: an input, an output, or a variable read
	// where a condition consumes it.
	Name NodeKind = iota
	// Operator is an invoked unit of work, such as a process call.
	Operator
	// Control is a branch point.
	Control
)

func (k NodeKind) String() string {
	switch k {
	case Name:
		return "NAME"
	case Operator:
		return "OPERATOR"
	case Control:
		return "CONTROL"
	default:
		return fmt.Sprintf("NodeKind(%d)", int(k))
	}
}

// MarshalText renders the kind by name in JSON.
func (k NodeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Node is a vertex of the graph. Edges are implicit: every node lists the
// nodes whose values flow into it.
type Node struct {
	ID    int
	Label string
	Kind  NodeKind
	// SourceRef is the URI of the declaration behind an operator, if known.
	SourceRef string
	// Verbose nodes are detail-level and hidden unless rendering verbosely.
	Verbose bool
	Preds   NodeSet
}

// NodeSet is a set of nodes keyed by id.
type NodeSet map[int]*Node

// NewNodeSet returns a set holding nodes.
func NewNodeSet(nodes ...*Node) NodeSet {
	s := make(NodeSet, len(nodes))
	for _, n := range nodes {
		s.Add(n)
	}
	return s
}

// Add inserts n. Nil nodes are ignored.
func (s NodeSet) Add(n *Node) {
	if n != nil {
		s[n.ID] = n
	}
}

// AddAll inserts every node of other.
func (s NodeSet) AddAll(other NodeSet) {
	for id, n := range other {
		s[id] = n
	}
}

// Union returns a new set holding the nodes of s and other.
func (s NodeSet) Union(other NodeSet) NodeSet {
	out := make(NodeSet, len(s)+len(other))
	out.AddAll(s)
	out.AddAll(other)
	return out
}

// Clone returns a copy of s. The copy of a nil set is empty, not nil.
func (s NodeSet) Clone() NodeSet {
	out := make(NodeSet, len(s))
	out.AddAll(s)
	return out
}

// Has reports whether n is in s.
func (s NodeSet) Has(n *Node) bool {
	_, ok := s[n.ID]
	return ok
}

// Sorted returns the nodes in id order.
func (s NodeSet) Sorted() []*Node {
	out := make([]*Node, 0, len(s))
	for _, n := range s {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b *Node) int { return a.ID - b.ID })
	return out
}

// IDs returns the ids of s in ascending order.
func (s NodeSet) IDs() []int {
	out := make([]int, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Subgraph is one nested lexical scope, normally a branch body.
type Subgraph struct {
	ID int
	// Pred is the node that caused the scope, such as the CONTROL node of
	// the branch. It is nil for the root.
	Pred     *Node
	Nodes    NodeSet
	Children []*Subgraph
	Verbose  bool
}

// Graph is the dataflow graph of one workflow. The zero value is not
// usable; create graphs with NewGraph.
type Graph struct {
	// Name is the workflow name, empty for the entry workflow.
	Name    string
	Entry   bool
	Inputs  map[string]*Node
	Outputs map[string]*Node
	Nodes   map[int]*Node
	Root    *Subgraph

	stack     []*Subgraph
	nextNode  int
	nextScope int
}

// NewGraph creates an empty graph whose root subgraph is open.
func NewGraph(name string, entry bool) *Graph {
	g := &Graph{
		Name:    name,
		Entry:   entry,
		Inputs:  make(map[string]*Node),
		Outputs: make(map[string]*Node),
		Nodes:   make(map[int]*Node),
	}
	g.Root = g.newSubgraph(false)
	g.stack = []*Subgraph{g.Root}
	return g
}

func (g *Graph) newSubgraph(verbose bool) *Subgraph {
	s := &Subgraph{ID: g.nextScope, Nodes: make(NodeSet), Verbose: verbose}
	g.nextScope++
	return s
}

func (g *Graph) newNode(label string, kind NodeKind, preds NodeSet) *Node {
	n := &Node{ID: g.nextNode, Label: label, Kind: kind, Preds: preds.Clone()}
	g.nextNode++
	g.Nodes[n.ID] = n
	return n
}

// AddNode creates a node in the innermost open subgraph.
func (g *Graph) AddNode(label string, kind NodeKind, preds NodeSet) *Node {
	n := g.newNode(label, kind, preds)
	g.Current().Nodes.Add(n)
	return n
}

// AddInput returns the input node for name, creating it on first use.
// Inputs belong to no subgraph.
func (g *Graph) AddInput(name string) *Node {
	if n, ok := g.Inputs[name]; ok {
		return n
	}
	n := g.newNode(name, Name, nil)
	g.Inputs[name] = n
	return n
}

// AddOutput records name as an output fed by preds. A repeated name adds
// to the predecessors of the existing output.
func (g *Graph) AddOutput(name string, preds NodeSet) *Node {
	if n, ok := g.Outputs[name]; ok {
		n.Preds.AddAll(preds)
		return n
	}
	n := g.newNode(name, Name, preds)
	g.Outputs[name] = n
	return n
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id int) *Node {
	return g.Nodes[id]
}

// Current returns the innermost open subgraph.
func (g *Graph) Current() *Subgraph {
	return g.stack[len(g.stack)-1]
}

// PushSubgraph opens a nested subgraph.
func (g *Graph) PushSubgraph(verbose bool) *Subgraph {
	s := g.newSubgraph(verbose)
	g.stack = append(g.stack, s)
	return s
}

// PopSubgraph closes the innermost subgraph, records cause as the node
// that opened it and attaches it to its parent.
func (g *Graph) PopSubgraph(cause *Node) *Subgraph {
	if len(g.stack) == 1 {
		panic("dataflow: PopSubgraph on root")
	}
	s := g.Current()
	g.stack = g.stack[:len(g.stack)-1]
	s.Pred = cause
	parent := g.Current()
	parent.Children = append(parent.Children, s)
	return s
}
