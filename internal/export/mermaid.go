package export

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/flowscope/internal/dataflow"
)

var labelEscaper = strings.NewReplacer("\n", "\\\n", `"`, `\"`)

// escapeLabel escapes a label for use inside Mermaid node text.
func escapeLabel(s string) string {
	return labelEscaper.Replace(s)
}

// RenderMermaid produces a Mermaid flowchart of g. Inputs and outputs are
// grouped in their own subgraphs (params/publish for the entry workflow,
// take/emit for named ones); every branch body becomes a nested subgraph.
// Edges follow all node declarations.
func RenderMermaid(g *dataflow.Graph, opts Options) string {
	v := newView(g, opts)
	w := &mermaidWriter{}

	w.line(0, "flowchart TB")
	name := g.Name
	if name == "" {
		name = `" "`
	}
	w.line(1, "subgraph %s", name)

	inBlock, outBlock := "take", "emit"
	if g.Entry {
		inBlock, outBlock = "params", "publish"
	}

	if len(g.Inputs) > 0 {
		w.line(2, "subgraph %s", inBlock)
		for _, n := range byID(g.Inputs) {
			w.line(3, "v%d[\"%s\"]", n.ID, escapeLabel(n.Label))
		}
		w.line(2, "end")
	}

	w.subgraphBody(v, g.Root, 2)

	if len(g.Outputs) > 0 {
		w.line(2, "subgraph %s", outBlock)
		for _, n := range byID(g.Outputs) {
			w.line(3, "v%d[\"%s\"]", n.ID, escapeLabel(n.Label))
		}
		w.line(2, "end")
	}

	for _, e := range v.edges() {
		w.line(2, "v%d --> v%d", e.From, e.To)
	}
	for _, c := range v.containments() {
		w.line(2, "v%d --> s%d", c.From, c.Subgraph)
	}

	clicks := dataflow.NodeSet{}
	for _, n := range g.Nodes {
		if n.SourceRef != "" && v.visible(n) {
			clicks.Add(n)
		}
	}
	for _, n := range clicks.Sorted() {
		w.line(2, "click v%d href \"%s\" _blank", n.ID, n.SourceRef)
	}

	w.line(1, "end")
	return w.sb.String()
}

type mermaidWriter struct {
	sb strings.Builder
}

func (w *mermaidWriter) line(depth int, format string, args ...any) {
	w.sb.WriteString(strings.Repeat("  ", depth))
	w.sb.WriteString(fmt.Sprintf(format, args...))
	w.sb.WriteByte('\n')
}

// subgraphBody writes the visible nodes of s in id order, then its shown
// child subgraphs.
func (w *mermaidWriter) subgraphBody(v *view, s *dataflow.Subgraph, depth int) {
	for _, n := range v.sortedNodes(s.Nodes) {
		w.node(n, depth)
	}
	for _, c := range s.Children {
		if !v.shown[c] {
			continue
		}
		w.line(depth, "subgraph s%d[\" \"]", c.ID)
		w.subgraphBody(v, c, depth+1)
		w.line(depth, "end")
	}
}

func (w *mermaidWriter) node(n *dataflow.Node, depth int) {
	switch n.Kind {
	case dataflow.Operator:
		w.line(depth, "v%d([%s])", n.ID, escapeLabel(n.Label))
	case dataflow.Control:
		w.line(depth, "v%d{ }", n.ID)
	default:
		w.line(depth, "v%d[\"%s\"]", n.ID, escapeLabel(n.Label))
	}
}
