package export

import (
	"encoding/json"
	"fmt"

	"github.com/dusk-indust/flowscope/internal/dataflow"
)

// GraphExport is the JSON form of a rendered dataflow graph. Only visible
// nodes are listed; edges are already re-routed around hidden ones.
type GraphExport struct {
	Name      string           `json:"name"`
	Entry     bool             `json:"entry"`
	Nodes     []NodeExport     `json:"nodes"`
	Subgraphs []SubgraphExport `json:"subgraphs,omitempty"`
	Edges     []Edge           `json:"edges"`
}

// NodeExport describes one visible node.
type NodeExport struct {
	ID        int    `json:"id"`
	Label     string `json:"label"`
	Kind      string `json:"kind"`           // NAME, OPERATOR or CONTROL
	Role      string `json:"role,omitempty"` // "input" or "output"
	SourceRef string `json:"sourceRef,omitempty"`
	Subgraph  *int   `json:"subgraph,omitempty"`
}

// SubgraphExport describes one shown branch subgraph.
type SubgraphExport struct {
	ID     int   `json:"id"`
	Parent *int  `json:"parent,omitempty"`
	Causes []int `json:"causes,omitempty"`
	Nodes  []int `json:"nodes"`
}

// BuildGraphExport converts g into its JSON form.
func BuildGraphExport(g *dataflow.Graph, opts Options) *GraphExport {
	v := newView(g, opts)
	out := &GraphExport{Name: g.Name, Entry: g.Entry, Edges: v.edges()}
	if out.Edges == nil {
		out.Edges = []Edge{}
	}

	for _, n := range byID(g.Inputs) {
		out.Nodes = append(out.Nodes, nodeExport(n, "input", nil))
	}

	causes := make(map[int][]int)
	for _, c := range v.containments() {
		causes[c.Subgraph] = append(causes[c.Subgraph], c.From)
	}

	var walk func(s *dataflow.Subgraph, parent *int)
	walk = func(s *dataflow.Subgraph, parent *int) {
		var owner *int
		if s != g.Root {
			id := s.ID
			owner = &id
		}
		var ids []int
		for _, n := range v.sortedNodes(s.Nodes) {
			out.Nodes = append(out.Nodes, nodeExport(n, "", owner))
			ids = append(ids, n.ID)
		}
		if owner != nil {
			if ids == nil {
				ids = []int{}
			}
			out.Subgraphs = append(out.Subgraphs, SubgraphExport{
				ID:     s.ID,
				Parent: parent,
				Causes: causes[s.ID],
				Nodes:  ids,
			})
		}
		for _, c := range s.Children {
			if v.shown[c] {
				walk(c, owner)
			}
		}
	}
	walk(g.Root, nil)

	for _, n := range byID(g.Outputs) {
		out.Nodes = append(out.Nodes, nodeExport(n, "output", nil))
	}
	if out.Nodes == nil {
		out.Nodes = []NodeExport{}
	}
	return out
}

func nodeExport(n *dataflow.Node, role string, subgraph *int) NodeExport {
	return NodeExport{
		ID:        n.ID,
		Label:     n.Label,
		Kind:      n.Kind.String(),
		Role:      role,
		SourceRef: n.SourceRef,
		Subgraph:  subgraph,
	}
}

// RenderJSON marshals the JSON form of g with indentation.
func RenderJSON(g *dataflow.Graph, opts Options) ([]byte, error) {
	data, err := json.MarshalIndent(BuildGraphExport(g, opts), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal graph: %w", err)
	}
	return data, nil
}
