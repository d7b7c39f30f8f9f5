// Package depgraph stores the import graph between workflow documents.
package depgraph

import (
	"context"
	"io"
)

// Store is the interface for the document dependency graph backend.
// Implementations: KuzuStore (persistent, cgo), MemStore (default, testing).
type Store interface {
	io.Closer

	// Schema setup, called once before any data is inserted.
	InitSchema(ctx context.Context) error

	// Write operations.
	PutDocument(ctx context.Context, doc DocumentNode) error
	// SetImports replaces the outgoing IMPORTS edges of uri. Targets need
	// not be indexed documents yet.
	SetImports(ctx context.Context, uri string, targets []string) error
	// RemoveDocument drops uri's outgoing edges and marks it unindexed.
	// Edges from other documents into uri are kept.
	RemoveDocument(ctx context.Context, uri string) error

	// Read operations.
	GetDocument(ctx context.Context, uri string) (*DocumentNode, error)
	Imports(ctx context.Context, uri string) ([]string, error)

	// Graph traversal.
	Dependents(ctx context.Context, changed []string) (*Impact, error)

	// Stats.
	Stats(ctx context.Context) (*GraphStats, error)
}
