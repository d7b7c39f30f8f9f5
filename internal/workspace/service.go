// Package workspace is the entry point protocol layers call into: it keeps
// the document index current under edit notifications and answers
// position, diagnostic and preview requests.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dusk-indust/flowscope/internal/ast"
	"github.com/dusk-indust/flowscope/internal/dataflow"
	"github.com/dusk-indust/flowscope/internal/depgraph"
	"github.com/dusk-indust/flowscope/internal/export"
	"github.com/dusk-indust/flowscope/internal/index"
	"github.com/dusk-indust/flowscope/internal/parser"
	"github.com/dusk-indust/flowscope/internal/scheduler"
)

// Sentinel errors returned by preview operations.
var (
	ErrUnknownDocument = errors.New("unknown document")
	ErrUnknownWorkflow = dataflow.ErrUnknownWorkflow
)

// DefaultDebounce is the quiet period used when Options.Debounce is unset.
const DefaultDebounce = 300 * time.Millisecond

// updateKey is the single debounce key: edits anywhere in the workspace are
// collected and re-indexed together.
const updateKey = "workspace"

// Diagnostics are the errors and warnings of one document.
type Diagnostics = index.Diagnostics

// Sink receives the diagnostics of every document whose diagnostics changed
// in an update. Calls are serialized in update order. A Sink must not call
// Service.Update.
type Sink interface {
	PublishDiagnostics(ctx context.Context, id ast.DocID, diags Diagnostics)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, id ast.DocID, diags Diagnostics)

// PublishDiagnostics calls f.
func (f SinkFunc) PublishDiagnostics(ctx context.Context, id ast.DocID, diags Diagnostics) {
	f(ctx, id, diags)
}

type nopSink struct{}

func (nopSink) PublishDiagnostics(context.Context, ast.DocID, Diagnostics) {}

// Options configures a Service. Zero fields get working defaults.
type Options struct {
	Parser parser.Parser
	// Store holds the import graph; nil uses a MemStore. The Service owns
	// the store and closes it.
	Store depgraph.Store
	// Base serves documents that have no open buffer; nil uses FileProvider.
	Base     index.DocumentProvider
	Sink     Sink
	Logger   *slog.Logger
	Debounce time.Duration
	Workers  int
}

// Service owns the index of one workspace.
type Service struct {
	cache     *index.Cache
	parser    parser.Parser
	store     depgraph.Store
	docs      *Overlay
	sink      Sink
	logger    *slog.Logger
	debouncer *scheduler.Debouncer[string]

	ctx    context.Context
	cancel context.CancelFunc

	// publishMu spans an update and its publishes, so the sink sees
	// updates in the order they were applied.
	publishMu sync.Mutex

	mu    sync.Mutex
	dirty map[ast.DocID]bool
}

// New creates a Service and initialises its store.
func New(opts Options) (*Service, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := opts.Parser
	if p == nil {
		p = parser.NewTreeSitterParser()
	}
	store := opts.Store
	if store == nil {
		store = depgraph.NewMemStore()
	}
	base := opts.Base
	if base == nil {
		base = FileProvider{}
	}
	sink := opts.Sink
	if sink == nil {
		sink = nopSink{}
	}
	delay := opts.Debounce
	if delay <= 0 {
		delay = DefaultDebounce
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := store.InitSchema(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("init store schema: %w", err)
	}

	s := &Service{
		parser: p,
		store:  store,
		docs:   NewOverlay(base),
		sink:   sink,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		dirty:  make(map[ast.DocID]bool),
	}
	s.cache = index.NewCache(p, index.Options{
		Analyzer: index.NewImportAnalyzer(store, logger),
		Logger:   logger,
		Workers:  opts.Workers,
	})
	s.debouncer = scheduler.NewDebouncer(delay, s.flush, logger)
	return s, nil
}

// Close cancels pending updates and releases the store.
func (s *Service) Close() error {
	s.debouncer.Shutdown()
	s.cancel()
	return errors.Join(s.store.Close(), s.parser.Close())
}

// Cache exposes the underlying index for read-only queries.
func (s *Service) Cache() *index.Cache { return s.cache }

// ---------- Indexing ----------

// Update re-indexes ids immediately, publishes the diagnostics of every
// document whose diagnostics changed and returns those documents.
func (s *Service) Update(ctx context.Context, ids []ast.DocID) []ast.DocID {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	snaps := s.cache.UpdateDiagnostics(ctx, ids, s.docs)
	changed := make([]ast.DocID, 0, len(snaps))
	for _, d := range snaps {
		s.sink.PublishDiagnostics(ctx, d.ID, normalize(d.Diagnostics))
		changed = append(changed, d.ID)
	}
	s.logger.Debug("workspace.update", "docs", len(ids), "changed", len(changed))
	return changed
}

// DidOpen records the buffer of an opened document and schedules indexing.
func (s *Service) DidOpen(id ast.DocID, text []byte) {
	s.docs.Set(id, text)
	s.markDirty(id)
}

// DidChange records new buffer text and schedules re-indexing after the
// quiet period.
func (s *Service) DidChange(id ast.DocID, text []byte) {
	s.docs.Set(id, text)
	s.markDirty(id)
}

// DidClose drops the buffer; the document is re-read from the base
// provider, or dropped when it no longer exists there.
func (s *Service) DidClose(id ast.DocID) {
	s.docs.Remove(id)
	s.markDirty(id)
}

// Changed schedules re-indexing of documents changed outside an editor,
// such as on disk.
func (s *Service) Changed(ids ...ast.DocID) {
	s.markDirty(ids...)
}

func (s *Service) markDirty(ids ...ast.DocID) {
	s.mu.Lock()
	for _, id := range ids {
		s.dirty[id] = true
	}
	s.mu.Unlock()
	s.debouncer.Submit(updateKey)
}

// flush is the debounced run: it re-indexes every document marked dirty
// since the previous run.
func (s *Service) flush(string) error {
	s.mu.Lock()
	ids := make([]ast.DocID, 0, len(s.dirty))
	for id := range s.dirty {
		ids = append(ids, id)
	}
	clear(s.dirty)
	s.mu.Unlock()

	if len(ids) == 0 {
		return nil
	}
	slices.Sort(ids)
	s.Update(s.ctx, ids)
	return s.ctx.Err()
}

// Fresh runs any pending re-indexing now, for requests that need an index
// reflecting every edit received so far.
func (s *Service) Fresh() error {
	return s.debouncer.ExecuteNow(updateKey)
}

// Settled waits, bounded by twice the debounce window, for pending
// re-indexing to finish. It reports whether the index settled; callers
// proceed with what is cached either way.
func (s *Service) Settled() bool {
	return s.debouncer.WaitIdle(updateKey, 2*s.debouncer.Delay())
}

// ---------- Queries ----------

// NodeAt returns the innermost node of id at the 1-based position, or nil.
func (s *Service) NodeAt(id ast.DocID, line, col int) *ast.Node {
	return s.cache.NodeAt(id, line, col)
}

// ParentOf returns the nearest non-synthetic ancestor of n, or nil.
func (s *Service) ParentOf(n *ast.Node) *ast.Node {
	return s.cache.Parent(n)
}

// Diagnostics returns the current diagnostics of id. Unknown documents
// have none.
func (s *Service) Diagnostics(id ast.DocID) Diagnostics {
	return normalize(s.cache.Diagnostics(id))
}

// normalize replaces nil lists with empty ones for clients.
func normalize(d Diagnostics) Diagnostics {
	if d.Errors == nil {
		d.Errors = []ast.Diagnostic{}
	}
	if d.Warnings == nil {
		d.Warnings = []ast.Diagnostic{}
	}
	return d
}

// Documents returns every indexed document.
func (s *Service) Documents() []ast.DocID {
	return s.cache.Documents()
}

// Workflows returns the names of the @workflow declarations of id.
func (s *Service) Workflows(id ast.DocID) []string {
	info := s.cache.Module(id)
	if info == nil {
		return nil
	}
	var out []string
	for _, d := range info.Declarations {
		if d.Kind == parser.DeclWorkflow {
			out = append(out, d.Name)
		}
	}
	return out
}

// ---------- Preview ----------

// Graph builds the dataflow graph of the workflow scope of id, or of its
// entry workflow when scope is empty.
func (s *Service) Graph(id ast.DocID, scope string) (*dataflow.Graph, error) {
	info := s.cache.Module(id)
	if info == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDocument, id)
	}
	g, err := dataflow.Build(info, scope, dataflow.ModuleResolver{Doc: id, Module: info})
	if err != nil {
		s.logger.Warn("workspace.preview", "doc", id, "scope", scope, "err", err)
		return nil, err
	}
	return g, nil
}

// Preview returns the Mermaid flowchart of a workflow of id.
func (s *Service) Preview(id ast.DocID, scope string, verbose bool) (string, error) {
	g, err := s.Graph(id, scope)
	if err != nil {
		return "", err
	}
	return export.RenderMermaid(g, export.Options{Verbose: verbose}), nil
}

// PreviewJSON returns the JSON form of a workflow graph of id.
func (s *Service) PreviewJSON(id ast.DocID, scope string, verbose bool) (*export.GraphExport, error) {
	g, err := s.Graph(id, scope)
	if err != nil {
		return nil, err
	}
	return export.BuildGraphExport(g, export.Options{Verbose: verbose}), nil
}
