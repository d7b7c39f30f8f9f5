package index

import (
	"context"

	"github.com/dusk-indust/flowscope/internal/ast"
)

// DocumentProvider supplies document sources, typically open editor buffers
// falling back to the filesystem. Read returns an error wrapping
// fs.ErrNotExist for documents that no longer exist; the cache then drops
// them instead of recording a read failure.
type DocumentProvider interface {
	Read(ctx context.Context, id ast.DocID) ([]byte, error)
}

// ProviderFunc adapts a function to DocumentProvider.
type ProviderFunc func(ctx context.Context, id ast.DocID) ([]byte, error)

// Read calls f.
func (f ProviderFunc) Read(ctx context.Context, id ast.DocID) ([]byte, error) {
	return f(ctx, id)
}
