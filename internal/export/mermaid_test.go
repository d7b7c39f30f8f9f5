package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dusk-indust/flowscope/internal/dataflow"
)

// twoBranch builds
//
//	if c: A(reads) else: B(reads)
//	publish(out=either)
func twoBranch() *dataflow.Graph {
	g := dataflow.NewGraph("", true)
	reads := g.AddInput("reads")
	ctrl := g.AddNode("c", dataflow.Control, nil)

	g.PushSubgraph(false)
	a := g.AddNode("A", dataflow.Operator, dataflow.NewNodeSet(reads))
	a.SourceRef = "file:///w/main.py"
	g.PopSubgraph(ctrl)

	g.PushSubgraph(false)
	b := g.AddNode("B", dataflow.Operator, dataflow.NewNodeSet(reads))
	g.PopSubgraph(ctrl)

	g.AddOutput("out", dataflow.NewNodeSet(a, b))
	return g
}

func TestRenderMermaid_TwoBranches(t *testing.T) {
	want := `flowchart TB
  subgraph " "
    subgraph params
      v0["reads"]
    end
    v1{ }
    subgraph s1[" "]
      v2([A])
    end
    subgraph s2[" "]
      v3([B])
    end
    subgraph publish
      v4["out"]
    end
    v0 --> v2
    v0 --> v3
    v2 --> v4
    v3 --> v4
    v1 --> s1
    v1 --> s2
    click v2 href "file:///w/main.py" _blank
  end
`
	assert.Equal(t, want, RenderMermaid(twoBranch(), Options{}))
}

func TestRenderMermaid_NamedWorkflowBlocks(t *testing.T) {
	g := dataflow.NewGraph("QC", false)
	in := g.AddInput("reads")
	g.AddOutput("report", dataflow.NewNodeSet(in))

	out := RenderMermaid(g, Options{})

	assert.Contains(t, out, "  subgraph QC\n")
	assert.Contains(t, out, "    subgraph take\n      v0[\"reads\"]\n    end\n")
	assert.Contains(t, out, "    subgraph emit\n      v1[\"report\"]\n    end\n")
	assert.Contains(t, out, "    v0 --> v1\n")
	assert.NotContains(t, out, "params")
}

func TestRenderMermaid_NoInputsNoOutputs(t *testing.T) {
	g := dataflow.NewGraph("", true)
	g.AddNode("A", dataflow.Operator, nil)

	want := "flowchart TB\n  subgraph \" \"\n    v0([A])\n  end\n"
	assert.Equal(t, want, RenderMermaid(g, Options{}))
}

// chain builds A -> flatten (verbose) -> B.
func chain() (*dataflow.Graph, *dataflow.Node, *dataflow.Node, *dataflow.Node) {
	g := dataflow.NewGraph("", true)
	a := g.AddNode("A", dataflow.Operator, nil)
	f := g.AddNode("flatten", dataflow.Operator, dataflow.NewNodeSet(a))
	f.Verbose = true
	b := g.AddNode("B", dataflow.Operator, dataflow.NewNodeSet(f))
	return g, a, f, b
}

func TestRenderMermaid_HiddenNodeRerouted(t *testing.T) {
	g, _, _, _ := chain()

	out := RenderMermaid(g, Options{})
	assert.Contains(t, out, "v0 --> v2\n")
	assert.NotContains(t, out, "v1")

	out = RenderMermaid(g, Options{Verbose: true})
	assert.Contains(t, out, "v1([flatten])")
	assert.Contains(t, out, "v0 --> v1\n")
	assert.Contains(t, out, "v1 --> v2\n")
	assert.NotContains(t, out, "v0 --> v2")
}

func TestRenderMermaid_HiddenChainAndCycle(t *testing.T) {
	g := dataflow.NewGraph("", true)
	a := g.AddNode("A", dataflow.Operator, nil)
	h1 := g.AddNode("h1", dataflow.Operator, dataflow.NewNodeSet(a))
	h2 := g.AddNode("h2", dataflow.Operator, dataflow.NewNodeSet(h1))
	h1.Verbose, h2.Verbose = true, true
	// A predecessor cycle among hidden nodes must still terminate.
	h1.Preds.Add(h2)
	b := g.AddNode("B", dataflow.Operator, dataflow.NewNodeSet(h2))
	c := g.AddNode("C", dataflow.Operator, dataflow.NewNodeSet(h1, h2))

	edges := newView(g, Options{}).edges()

	assert.Equal(t, []Edge{{From: a.ID, To: b.ID}, {From: a.ID, To: c.ID}}, edges)
}

func TestRenderMermaid_HiddenWithoutVisibleSourceDropsEdge(t *testing.T) {
	g := dataflow.NewGraph("", true)
	h := g.AddNode("h", dataflow.Operator, nil)
	h.Verbose = true
	g.AddNode("B", dataflow.Operator, dataflow.NewNodeSet(h))

	out := RenderMermaid(g, Options{})
	assert.NotContains(t, out, "-->")
}

func TestRenderMermaid_VerboseSubgraphHidden(t *testing.T) {
	// x = A(1) if c else B(2); C(x)
	g := dataflow.NewGraph("", true)
	ctrl := g.AddNode("c", dataflow.Control, nil)
	g.PushSubgraph(true)
	a := g.AddNode("A", dataflow.Operator, nil)
	g.PopSubgraph(ctrl)
	g.PushSubgraph(true)
	b := g.AddNode("B", dataflow.Operator, nil)
	g.PopSubgraph(ctrl)
	g.AddNode("C", dataflow.Operator, dataflow.NewNodeSet(a, b))

	out := RenderMermaid(g, Options{})
	assert.NotContains(t, out, "subgraph s")
	assert.NotContains(t, out, "v1([A])")
	assert.NotContains(t, out, "-->")

	out = RenderMermaid(g, Options{Verbose: true})
	assert.Equal(t, 2, strings.Count(out, `subgraph s`))
	assert.Contains(t, out, "v1 --> v3\n")
	assert.Contains(t, out, "v2 --> v3\n")
	assert.Contains(t, out, "v0 --> s1\n")
}

func TestRenderMermaid_EmptySubgraphOmitted(t *testing.T) {
	g := dataflow.NewGraph("", true)
	ctrl := g.AddNode("c", dataflow.Control, nil)
	g.PushSubgraph(false)
	h := g.AddNode("flatten", dataflow.Operator, nil)
	h.Verbose = true
	g.PopSubgraph(ctrl)
	g.PushSubgraph(false)
	g.PushSubgraph(false)
	g.PopSubgraph(ctrl)
	g.PopSubgraph(ctrl)

	out := RenderMermaid(g, Options{})
	assert.NotContains(t, out, "subgraph s")
	assert.NotContains(t, out, "--> s")
}

func TestRenderMermaid_NestedSubgraphs(t *testing.T) {
	g := dataflow.NewGraph("", true)
	outer := g.AddNode("c", dataflow.Control, nil)
	g.PushSubgraph(false) // s1
	inner := g.AddNode("d", dataflow.Control, nil)
	g.PushSubgraph(false) // s2
	g.AddNode("A", dataflow.Operator, nil)
	g.PopSubgraph(inner)
	g.PopSubgraph(outer)

	want := `flowchart TB
  subgraph " "
    v0{ }
    subgraph s1[" "]
      v1{ }
      subgraph s2[" "]
        v2([A])
      end
    end
    v0 --> s1
    v1 --> s2
  end
`
	assert.Equal(t, want, RenderMermaid(g, Options{}))
}

func TestEscapeLabel(t *testing.T) {
	assert.Equal(t, "say \\\"hi\\\"\\\nthere", escapeLabel("say \"hi\"\nthere"))
	assert.Equal(t, "plain", escapeLabel("plain"))

	g := dataflow.NewGraph("", true)
	g.AddInput("a\"b")
	assert.Contains(t, RenderMermaid(g, Options{}), `v0["a\"b"]`)
}
