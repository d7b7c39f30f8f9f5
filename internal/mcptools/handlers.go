package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dusk-indust/flowscope/internal/ast"
	"github.com/dusk-indust/flowscope/internal/workspace"
)

// Defaults are tool argument values applied when a call leaves them unset.
type Defaults struct {
	// Verbose makes preview_dag show detail-level nodes even when the call
	// does not ask for them.
	Verbose bool
}

// Tools holds the workspace service used by MCP tool handlers.
type Tools struct {
	svc      *workspace.Service
	defaults Defaults
}

// NewTools creates Tools over svc. The caller keeps ownership of svc.
func NewTools(svc *workspace.Service, defaults Defaults) *Tools {
	return &Tools{svc: svc, defaults: defaults}
}

// docID accepts a file URI or a filesystem path.
func docID(s string) (ast.DocID, error) {
	if s == "" {
		return "", fmt.Errorf("document is required")
	}
	if strings.Contains(s, "://") {
		return ast.DocID(s), nil
	}
	return workspace.URIFromPath(s)
}

// Update re-indexes the given documents and returns those whose
// diagnostics changed.
func (t *Tools) Update(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input UpdateInput,
) (*mcp.CallToolResult, UpdateOutput, error) {
	if len(input.Documents) == 0 {
		return nil, UpdateOutput{}, fmt.Errorf("documents is required")
	}
	ids := make([]ast.DocID, 0, len(input.Documents))
	for _, d := range input.Documents {
		id, err := docID(d)
		if err != nil {
			return nil, UpdateOutput{}, err
		}
		ids = append(ids, id)
	}

	changed := t.svc.Update(ctx, ids)
	out := UpdateOutput{Changed: make([]string, 0, len(changed))}
	for _, id := range changed {
		out.Changed = append(out.Changed, string(id))
	}
	return nil, out, nil
}

// Diagnostics returns the errors and warnings of a document once pending
// re-indexing has settled.
func (t *Tools) Diagnostics(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input DiagnosticsInput,
) (*mcp.CallToolResult, DiagnosticsOutput, error) {
	id, err := docID(input.Document)
	if err != nil {
		return nil, DiagnosticsOutput{}, err
	}
	t.svc.Settled()
	d := t.svc.Diagnostics(id)
	return nil, DiagnosticsOutput{Document: string(id), Errors: d.Errors, Warnings: d.Warnings}, nil
}

// NodeAt returns the innermost syntax node at a position and its parent.
func (t *Tools) NodeAt(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input NodeAtInput,
) (*mcp.CallToolResult, NodeAtOutput, error) {
	id, err := docID(input.Document)
	if err != nil {
		return nil, NodeAtOutput{}, err
	}
	if input.Line < 1 || input.Column < 1 {
		return nil, NodeAtOutput{}, fmt.Errorf("line and column are 1-based, got %d:%d", input.Line, input.Column)
	}
	if err := t.svc.Fresh(); err != nil {
		return nil, NodeAtOutput{}, fmt.Errorf("refresh index: %w", err)
	}

	n := t.svc.NodeAt(id, input.Line, input.Column)
	if n == nil {
		return nil, NodeAtOutput{}, nil
	}
	return nil, NodeAtOutput{
		Found:  true,
		Node:   summarize(n),
		Parent: summarize(t.svc.ParentOf(n)),
	}, nil
}

// PreviewDAG renders the dataflow graph of a workflow.
func (t *Tools) PreviewDAG(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input PreviewDAGInput,
) (*mcp.CallToolResult, PreviewDAGOutput, error) {
	id, err := docID(input.Document)
	if err != nil {
		return nil, PreviewDAGOutput{}, err
	}
	if err := t.svc.Fresh(); err != nil {
		return nil, PreviewDAGOutput{}, fmt.Errorf("refresh index: %w", err)
	}

	verbose := input.Verbose || t.defaults.Verbose
	switch strings.ToLower(input.Format) {
	case "", "mermaid":
		mmd, err := t.svc.Preview(id, input.Scope, verbose)
		if err != nil {
			return nil, PreviewDAGOutput{}, err
		}
		return nil, PreviewDAGOutput{Mermaid: mmd}, nil
	case "json":
		g, err := t.svc.PreviewJSON(id, input.Scope, verbose)
		if err != nil {
			return nil, PreviewDAGOutput{}, err
		}
		return nil, PreviewDAGOutput{Graph: g}, nil
	default:
		return nil, PreviewDAGOutput{}, fmt.Errorf("unknown format %q (want mermaid or json)", input.Format)
	}
}

// ListWorkflows returns the named workflows declared in a document.
func (t *Tools) ListWorkflows(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input WorkflowsInput,
) (*mcp.CallToolResult, WorkflowsOutput, error) {
	id, err := docID(input.Document)
	if err != nil {
		return nil, WorkflowsOutput{}, err
	}
	t.svc.Settled()
	names := t.svc.Workflows(id)
	if names == nil {
		names = []string{}
	}
	return nil, WorkflowsOutput{Workflows: names}, nil
}

func summarize(n *ast.Node) *NodeSummary {
	if n == nil {
		return nil
	}
	return &NodeSummary{Kind: n.Kind, Field: n.Field, Text: n.Text, Span: n.Span}
}
