package depgraph

import (
	"context"
	"sort"
	"sync"
)

// Compile-time assertion: *MemStore satisfies Store.
var _ Store = (*MemStore)(nil)

// MemStore implements Store using Go maps. Thread-safe via sync.RWMutex.
type MemStore struct {
	mu      sync.RWMutex
	docs    map[string]DocumentNode
	imports map[string]map[string]bool // importer -> targets
}

// NewMemStore returns an initialized MemStore ready for use.
func NewMemStore() *MemStore {
	return &MemStore{
		docs:    make(map[string]DocumentNode),
		imports: make(map[string]map[string]bool),
	}
}

// InitSchema is a no-op for the in-memory store.
func (m *MemStore) InitSchema(_ context.Context) error {
	return nil
}

// PutDocument stores a document node keyed by its URI.
func (m *MemStore) PutDocument(_ context.Context, doc DocumentNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.URI] = doc
	return nil
}

// SetImports replaces the targets imported by uri.
func (m *MemStore) SetImports(_ context.Context, uri string, targets []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(targets) == 0 {
		delete(m.imports, uri)
		return nil
	}
	set := make(map[string]bool, len(targets))
	for _, t := range targets {
		set[t] = true
	}
	m.imports[uri] = set
	return nil
}

// RemoveDocument forgets uri and its outgoing edges.
func (m *MemStore) RemoveDocument(_ context.Context, uri string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, uri)
	delete(m.imports, uri)
	return nil
}

// GetDocument returns the document for uri, or nil if not found.
func (m *MemStore) GetDocument(_ context.Context, uri string) (*DocumentNode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[uri]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

// Imports returns the sorted targets imported by uri.
func (m *MemStore) Imports(_ context.Context, uri string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return setToSlice(m.imports[uri]), nil
}

// Dependents follows IMPORTS edges backwards from the changed documents.
// Changed documents never appear in the result.
func (m *MemStore) Dependents(_ context.Context, changed []string) (*Impact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	changedSet := make(map[string]bool, len(changed))
	for _, c := range changed {
		changedSet[c] = true
	}

	directSet := make(map[string]bool)
	for importer, targets := range m.imports {
		if changedSet[importer] {
			continue
		}
		for t := range targets {
			if changedSet[t] {
				directSet[importer] = true
				break
			}
		}
	}

	all := make(map[string]bool, len(directSet))
	frontier := make(map[string]bool, len(directSet))
	for k := range directSet {
		all[k] = true
		frontier[k] = true
	}
	for len(frontier) > 0 {
		next := make(map[string]bool)
		for importer, targets := range m.imports {
			if changedSet[importer] || all[importer] {
				continue
			}
			for t := range targets {
				if frontier[t] {
					all[importer] = true
					next[importer] = true
					break
				}
			}
		}
		frontier = next
	}

	return &Impact{
		Direct:     setToSlice(directSet),
		Transitive: setToSlice(all),
	}, nil
}

// Stats returns counts of documents and import edges.
func (m *MemStore) Stats(_ context.Context) (*GraphStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	edges := 0
	for _, targets := range m.imports {
		edges += len(targets)
	}
	return &GraphStats{
		DocumentCount: len(m.docs),
		ImportCount:   edges,
	}, nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error {
	return nil
}

// setToSlice converts a string bool map to a sorted slice.
func setToSlice(s map[string]bool) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
