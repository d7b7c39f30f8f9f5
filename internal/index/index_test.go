package index

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/flowscope/internal/ast"
	"github.com/dusk-indust/flowscope/internal/parser"
)

// ---------------------------------------------------------------------------
// Helpers shared by the index tests
// ---------------------------------------------------------------------------

const (
	mainDoc   ast.DocID = "file:///w/main.py"
	commonDoc ast.DocID = "file:///w/common.py"
	reportDoc ast.DocID = "file:///w/sub/report.py"
)

var discard = slog.New(slog.DiscardHandler)

// memDocs is a DocumentProvider over an in-memory map. Missing documents
// report fs.ErrNotExist.
type memDocs struct {
	mu   sync.Mutex
	docs map[ast.DocID]string
}

func newMemDocs(docs map[ast.DocID]string) *memDocs {
	if docs == nil {
		docs = map[ast.DocID]string{}
	}
	return &memDocs{docs: docs}
}

func (m *memDocs) Read(_ context.Context, id ast.DocID) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", id, fs.ErrNotExist)
	}
	return []byte(src), nil
}

func (m *memDocs) set(id ast.DocID, src string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id] = src
}

func (m *memDocs) remove(id ast.DocID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
}

func newTestCache(t *testing.T, opts Options) *Cache {
	t.Helper()
	opts.Logger = discard
	return NewCache(parser.NewTreeSitterParser(), opts)
}

// panicParser panics for one document and delegates the rest.
type panicParser struct {
	parser.Parser
	bad ast.DocID
}

func (p *panicParser) Parse(ctx context.Context, id ast.DocID, src []byte) (*parser.Result, error) {
	if id == p.bad {
		panic("unexpected node shape")
	}
	return p.Parser.Parse(ctx, id, src)
}

func requireNode(t *testing.T, n *ast.Node, kind, text string) {
	t.Helper()
	require.NotNil(t, n)
	require.Equal(t, kind, n.Kind)
	require.Equal(t, text, n.Text)
}
