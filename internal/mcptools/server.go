package mcptools

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewMCPServer creates an MCP server with the workflow analysis tools
// registered.
func NewMCPServer(tools *Tools) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "flowscope",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update",
		Description: "Re-index workflow documents from disk or open buffers. Returns the documents whose diagnostics changed, including importers of the updated documents.",
	}, tools.Update)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "diagnostics",
		Description: "Return the syntax errors and import warnings of a workflow document.",
	}, tools.Diagnostics)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "node_at",
		Description: "Return the innermost syntax node at a 1-based line and column, with its nearest parent.",
	}, tools.NodeAt)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "preview_dag",
		Description: "Render the dataflow graph of a workflow as a Mermaid flowchart, or as JSON nodes and edges. Without a scope the entry workflow of the document is rendered.",
	}, tools.PreviewDAG)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_workflows",
		Description: "List the named @workflow declarations of a document, for use as preview_dag scopes.",
	}, tools.ListWorkflows)

	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP starts an HTTP server exposing the MCP tools at addr.
func RunHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
