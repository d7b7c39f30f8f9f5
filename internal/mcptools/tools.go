package mcptools

import (
	"github.com/dusk-indust/flowscope/internal/ast"
	"github.com/dusk-indust/flowscope/internal/export"
)

// --- MCP Tool Input/Output Types ---
// The MCP Go SDK generates each tool's JSON schema from these struct tags.
// Documents are named by file URI or by filesystem path.

// UpdateInput is the input for the update MCP tool.
type UpdateInput struct {
	Documents []string `json:"documents" jsonschema:"file URIs or paths of the documents to re-index"`
}

// UpdateOutput is the result of the update MCP tool.
type UpdateOutput struct {
	Changed []string `json:"changed"`
}

// DiagnosticsInput is the input for the diagnostics MCP tool.
type DiagnosticsInput struct {
	Document string `json:"document" jsonschema:"file URI or path of the document"`
}

// DiagnosticsOutput is the result of the diagnostics MCP tool.
type DiagnosticsOutput struct {
	Document string           `json:"document"`
	Errors   []ast.Diagnostic `json:"errors"`
	Warnings []ast.Diagnostic `json:"warnings"`
}

// NodeAtInput is the input for the node_at MCP tool.
type NodeAtInput struct {
	Document string `json:"document" jsonschema:"file URI or path of the document"`
	Line     int    `json:"line" jsonschema:"1-based line"`
	Column   int    `json:"column" jsonschema:"1-based column"`
}

// NodeSummary describes one syntax node.
type NodeSummary struct {
	Kind  string   `json:"kind"`
	Field string   `json:"field,omitempty"`
	Text  string   `json:"text"`
	Span  ast.Span `json:"span"`
}

// NodeAtOutput is the result of the node_at MCP tool.
type NodeAtOutput struct {
	Found  bool         `json:"found"`
	Node   *NodeSummary `json:"node,omitempty"`
	Parent *NodeSummary `json:"parent,omitempty"`
}

// PreviewDAGInput is the input for the preview_dag MCP tool.
type PreviewDAGInput struct {
	Document string `json:"document" jsonschema:"file URI or path of the document"`
	Scope    string `json:"scope,omitempty" jsonschema:"name of a @workflow to preview (default: the entry workflow)"`
	Verbose  bool   `json:"verbose,omitempty" jsonschema:"include helper calls and expression subgraphs"`
	Format   string `json:"format,omitempty" jsonschema:"mermaid or json (default: mermaid)"`
}

// PreviewDAGOutput is the result of the preview_dag MCP tool. Exactly one
// of Mermaid and Graph is set, according to the requested format.
type PreviewDAGOutput struct {
	Mermaid string              `json:"mermaid,omitempty"`
	Graph   *export.GraphExport `json:"graph,omitempty"`
}

// WorkflowsInput is the input for the list_workflows MCP tool.
type WorkflowsInput struct {
	Document string `json:"document" jsonschema:"file URI or path of the document"`
}

// WorkflowsOutput is the result of the list_workflows MCP tool.
type WorkflowsOutput struct {
	Workflows []string `json:"workflows"`
}
