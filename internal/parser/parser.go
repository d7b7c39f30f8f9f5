// Package parser turns workflow documents into generic syntax trees.
package parser

import (
	"context"

	"github.com/dusk-indust/flowscope/internal/ast"
)

// Result holds the tree and syntax diagnostics produced for one document.
type Result struct {
	// Root is the module node. It is never nil for a successful Parse, but
	// may contain ERROR nodes when the source is malformed.
	Root   *ast.Node        `json:"root"`
	Errors []ast.Diagnostic `json:"errors"`
	LOC    int              `json:"loc"`
}

// Parser produces syntax trees from document sources.
// Implementations: TreeSitterParser (production), StubParser (testing).
type Parser interface {
	// Parse builds a best-effort tree for source. Malformed input is reported
	// through Result.Errors; an error return means no tree could be built.
	Parse(ctx context.Context, id ast.DocID, source []byte) (*Result, error)

	// Close releases parser resources.
	Close() error
}

// StubParser returns canned results keyed by document. Unknown documents
// yield an empty module.
type StubParser struct {
	Results map[ast.DocID]*Result
	Err     error
}

// Parse returns the canned result for id.
func (p *StubParser) Parse(_ context.Context, id ast.DocID, _ []byte) (*Result, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	if r, ok := p.Results[id]; ok {
		return r, nil
	}
	return &Result{Root: &ast.Node{Kind: "module"}}, nil
}

// Close is a no-op.
func (p *StubParser) Close() error { return nil }
