// Package export renders dataflow graphs for clients: Mermaid flowchart text
// for previews and a JSON form for tool callers.
package export

import (
	"cmp"
	"slices"

	"github.com/dusk-indust/flowscope/internal/dataflow"
)

// Options controls the detail level of a rendering.
type Options struct {
	// Verbose shows detail-level nodes and subgraphs.
	Verbose bool
}

// Edge is a resolved edge between two visible nodes.
type Edge struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// view is the visible part of a graph at one detail level. Edges into a
// hidden node are re-routed through its predecessors.
type view struct {
	g      *dataflow.Graph
	hidden map[int]bool
	shown  map[*dataflow.Subgraph]bool
	// resolved memoizes, per node, the visible nodes standing in for it.
	resolved map[int][]*dataflow.Node
	visiting map[int]bool
}

func newView(g *dataflow.Graph, opts Options) *view {
	v := &view{
		g:        g,
		hidden:   make(map[int]bool),
		shown:    make(map[*dataflow.Subgraph]bool),
		resolved: make(map[int][]*dataflow.Node),
		visiting: make(map[int]bool),
	}
	for _, n := range g.Nodes {
		if n.Verbose && !opts.Verbose {
			v.hidden[n.ID] = true
		}
	}
	v.markSubgraph(g.Root, false, opts)
	return v
}

// markSubgraph hides the nodes of hidden subgraphs and records which
// subgraphs hold at least one visible node. It reports whether s is shown.
func (v *view) markSubgraph(s *dataflow.Subgraph, parentHidden bool, opts Options) bool {
	hidden := parentHidden || (s.Verbose && !opts.Verbose)
	hasVisible := false
	for id := range s.Nodes {
		if hidden {
			v.hidden[id] = true
		}
		if !v.hidden[id] {
			hasVisible = true
		}
	}
	for _, c := range s.Children {
		if v.markSubgraph(c, hidden, opts) {
			hasVisible = true
		}
	}
	shown := !hidden && hasVisible
	v.shown[s] = shown
	return shown
}

func (v *view) visible(n *dataflow.Node) bool {
	return n != nil && !v.hidden[n.ID]
}

// resolve returns the visible nodes that stand in for n as an edge source:
// n itself when visible, otherwise the resolution of its predecessors. A
// predecessor cycle through hidden nodes resolves to nothing.
func (v *view) resolve(n *dataflow.Node) []*dataflow.Node {
	if v.visible(n) {
		return []*dataflow.Node{n}
	}
	if r, ok := v.resolved[n.ID]; ok {
		return r
	}
	if v.visiting[n.ID] {
		return nil
	}
	v.visiting[n.ID] = true
	set := dataflow.NodeSet{}
	for _, p := range n.Preds.Sorted() {
		set.AddAll(dataflow.NewNodeSet(v.resolve(p)...))
	}
	delete(v.visiting, n.ID)
	r := set.Sorted()
	v.resolved[n.ID] = r
	return r
}

// sortedNodes returns the visible nodes of set in id order.
func (v *view) sortedNodes(set dataflow.NodeSet) []*dataflow.Node {
	var out []*dataflow.Node
	for _, n := range set.Sorted() {
		if v.visible(n) {
			out = append(out, n)
		}
	}
	return out
}

func byID(m map[string]*dataflow.Node) []*dataflow.Node {
	out := make([]*dataflow.Node, 0, len(m))
	for _, n := range m {
		out = append(out, n)
	}
	slices.SortFunc(out, func(a, b *dataflow.Node) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// edges returns the resolved edges into every visible node, sorted.
func (v *view) edges() []Edge {
	seen := make(map[Edge]bool)
	var out []Edge
	for _, n := range v.g.Nodes {
		if !v.visible(n) {
			continue
		}
		for _, p := range n.Preds.Sorted() {
			for _, r := range v.resolve(p) {
				e := Edge{From: r.ID, To: n.ID}
				if r.ID == n.ID || seen[e] {
					continue
				}
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	slices.SortFunc(out, func(a, b Edge) int {
		if c := cmp.Compare(a.From, b.From); c != 0 {
			return c
		}
		return cmp.Compare(a.To, b.To)
	})
	return out
}

// containment is an edge from the node that caused a subgraph to it.
type containment struct {
	From     int
	Subgraph int
}

// containments returns the cause edges of every shown nested subgraph in
// rendering order.
func (v *view) containments() []containment {
	var out []containment
	var walk func(s *dataflow.Subgraph)
	walk = func(s *dataflow.Subgraph) {
		for _, c := range s.Children {
			if !v.shown[c] {
				continue
			}
			if c.Pred != nil {
				for _, r := range v.resolve(c.Pred) {
					out = append(out, containment{From: r.ID, Subgraph: c.ID})
				}
			}
			walk(c)
		}
	}
	walk(v.g.Root)
	return out
}
