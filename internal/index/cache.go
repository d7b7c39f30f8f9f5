// Package index keeps the per-document syntax trees of a workspace, their
// parent links and diagnostics, and answers position queries against them.
package index

import (
	"context"
	"encoding/binary"
	"log/slog"
	"slices"
	"sync"

	"github.com/zeebo/xxh3"

	"github.com/dusk-indust/flowscope/internal/ast"
	"github.com/dusk-indust/flowscope/internal/parser"
)

// DefaultWorkers bounds parallel parsing when Options.Workers is unset.
const DefaultWorkers = 4

// entry is the index record of one document. Entries are replaced
// wholesale, never mutated after insertion.
type entry struct {
	id       ast.DocID
	root     *ast.Node
	errors   []ast.Diagnostic
	warnings []ast.Diagnostic
	links    map[*ast.Node]Link
	nodes    []*ast.Node
	module   *parser.ModuleInfo
	loc      int
}

type parentEntry struct {
	doc ast.DocID
	Link
}

// Options configures a Cache.
type Options struct {
	// Analyzer runs after every merge; nil disables the second phase.
	Analyzer Analyzer
	Logger   *slog.Logger
	// Workers bounds concurrent parses; <= 0 means DefaultWorkers.
	Workers int
}

// Cache owns parse results, the identity-keyed parent map and diagnostics
// for every indexed document. Queries are safe for concurrent use with
// each other and with Update; Update and Invalidate calls are serialized.
type Cache struct {
	parser   parser.Parser
	analyzer Analyzer
	logger   *slog.Logger
	workers  int

	updateMu sync.Mutex // serializes Update and Invalidate

	mu      sync.RWMutex
	docs    map[ast.DocID]*entry
	parents map[*ast.Node]parentEntry
}

// NewCache creates an empty Cache parsing with p.
func NewCache(p parser.Parser, opts Options) *Cache {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	analyzer := opts.Analyzer
	if analyzer == nil {
		analyzer = NopAnalyzer{}
	}
	return &Cache{
		parser:   p,
		analyzer: analyzer,
		logger:   logger,
		workers:  workers,
		docs:     make(map[ast.DocID]*entry),
		parents:  make(map[*ast.Node]parentEntry),
	}
}

// Invalidate drops the tree, parent links and diagnostics of exactly the
// given documents.
func (c *Cache) Invalidate(ctx context.Context, ids []ast.DocID) {
	c.updateMu.Lock()
	defer c.updateMu.Unlock()

	c.mu.Lock()
	for _, id := range ids {
		c.dropLocked(id)
	}
	c.mu.Unlock()

	c.analyzer.Forget(ctx, ids)
}

// Diagnostics are the errors and warnings of one document.
type Diagnostics struct {
	Errors   []ast.Diagnostic `json:"errors"`
	Warnings []ast.Diagnostic `json:"warnings"`
}

// DocDiagnostics is the diagnostics of one document as left by an update.
type DocDiagnostics struct {
	ID ast.DocID
	Diagnostics
}

// Update re-analyses the given documents and returns, sorted, every
// document whose diagnostics changed, including documents outside ids that
// the analyzer re-checked. Parsing fans out; all map mutations happen in a
// single locked merge so readers see either the old or the new state of a
// document, never a mix. A cancelled ctx abandons the update before any
// state is replaced.
func (c *Cache) Update(ctx context.Context, ids []ast.DocID, src DocumentProvider) []ast.DocID {
	snaps := c.UpdateDiagnostics(ctx, ids, src)
	if len(snaps) == 0 {
		return nil
	}
	changed := make([]ast.DocID, 0, len(snaps))
	for _, d := range snaps {
		changed = append(changed, d.ID)
	}
	return changed
}

// UpdateDiagnostics is Update, returning the diagnostics of every changed
// document as captured in the merge itself, so they are exactly the result
// of this update.
func (c *Cache) UpdateDiagnostics(ctx context.Context, ids []ast.DocID, src DocumentProvider) []DocDiagnostics {
	c.updateMu.Lock()
	defer c.updateMu.Unlock()

	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil
	}

	results := c.parseAll(ctx, ids, src)
	if ctx.Err() != nil {
		c.logger.Info("index.update_cancelled", "docs", len(ids))
		return nil
	}

	staged := make(map[ast.DocID]*entry, len(results))
	for _, r := range results {
		staged[r.id] = r.entry
	}

	view := &stagedView{cache: c, staged: staged}
	warnings, err := c.analyzer.Analyze(ctx, view, ids)
	if err != nil {
		// Trees are still usable; only the cross-document checks are stale.
		c.logger.Warn("index.analyze", "docs", len(ids), "err", err)
	}

	candidates := slices.Clone(ids)
	for id := range warnings {
		candidates = append(candidates, id)
	}
	candidates = dedupe(candidates)

	c.mu.Lock()
	defer c.mu.Unlock()

	before := make(map[ast.DocID]uint64, len(candidates))
	for _, id := range candidates {
		before[id] = fingerprint(c.docs[id])
	}

	for _, id := range ids {
		c.dropLocked(id)
		if e := staged[id]; e != nil {
			c.insertLocked(e)
		}
	}
	for id, warns := range warnings {
		old := c.docs[id]
		if old == nil {
			continue
		}
		next := *old
		next.warnings = warns
		c.docs[id] = &next
	}

	var changed []DocDiagnostics
	for _, id := range candidates {
		e := c.docs[id]
		if fingerprint(e) != before[id] {
			changed = append(changed, DocDiagnostics{ID: id, Diagnostics: snapshot(e)})
		}
	}
	c.logger.Debug("index.updated", "docs", len(ids), "changed", len(changed))
	return changed
}

// snapshot copies the diagnostics of e; a missing entry has none.
func snapshot(e *entry) Diagnostics {
	if e == nil {
		return Diagnostics{}
	}
	return Diagnostics{Errors: slices.Clone(e.errors), Warnings: slices.Clone(e.warnings)}
}

func (c *Cache) dropLocked(id ast.DocID) {
	e, ok := c.docs[id]
	if !ok {
		return
	}
	for _, n := range e.nodes {
		delete(c.parents, n)
	}
	delete(c.docs, id)
}

func (c *Cache) insertLocked(e *entry) {
	c.docs[e.id] = e
	for n, l := range e.links {
		c.parents[n] = parentEntry{doc: e.id, Link: l}
	}
}

// NodeAt returns the most specific node of document id containing the
// 1-based position (line, col): the one starting latest, then ending
// earliest, then the deepest. Unknown documents yield nil.
func (c *Cache) NodeAt(id ast.DocID, line, col int) *ast.Node {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e := c.docs[id]
	if e == nil {
		return nil
	}
	var best *ast.Node
	for _, n := range e.nodes {
		if !n.Span.Contains(line, col) {
			continue
		}
		if best == nil || c.moreSpecific(e, n, best) {
			best = n
		}
	}
	return best
}

// moreSpecific reports whether a is a better match than b.
func (c *Cache) moreSpecific(e *entry, a, b *ast.Node) bool {
	if s := a.Span.CompareStart(b.Span); s != 0 {
		return s > 0
	}
	if s := a.Span.CompareEnd(b.Span); s != 0 {
		return s < 0
	}
	return e.links[a].Depth > e.links[b].Depth
}

// Parent returns the nearest non-synthetic ancestor of n, or nil for roots
// and nodes that are not indexed.
func (c *Cache) Parent(n *ast.Node) *ast.Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.parents[n].Parent
}

// DocumentOf returns the document that owns n.
func (c *Cache) DocumentOf(n *ast.Node) (ast.DocID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.parents[n]
	return p.doc, ok
}

// Nodes returns the non-synthetic nodes of document id in pre-order.
func (c *Cache) Nodes(id ast.DocID) []*ast.Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e := c.docs[id]; e != nil {
		return slices.Clone(e.nodes)
	}
	return nil
}

// Root returns the module node of document id, or nil.
func (c *Cache) Root(id ast.DocID) *ast.Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e := c.docs[id]; e != nil {
		return e.root
	}
	return nil
}

// Module returns the top-level summary of document id, or nil.
func (c *Cache) Module(id ast.DocID) *parser.ModuleInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e := c.docs[id]; e != nil {
		return e.module
	}
	return nil
}

// Diagnostics returns the errors and warnings of document id, read under
// one lock so they always belong to the same update.
func (c *Cache) Diagnostics(id ast.DocID) Diagnostics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return snapshot(c.docs[id])
}

// Errors returns the error diagnostics of document id.
func (c *Cache) Errors(id ast.DocID) []ast.Diagnostic {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e := c.docs[id]; e != nil {
		return slices.Clone(e.errors)
	}
	return nil
}

// Warnings returns the warning diagnostics of document id.
func (c *Cache) Warnings(id ast.DocID) []ast.Diagnostic {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e := c.docs[id]; e != nil {
		return slices.Clone(e.warnings)
	}
	return nil
}

// Has reports whether document id is indexed.
func (c *Cache) Has(id ast.DocID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.docs[id]
	return ok
}

// Documents returns the ids of all indexed documents, sorted.
func (c *Cache) Documents() []ast.DocID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]ast.DocID, 0, len(c.docs))
	for id := range c.docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// fingerprint hashes the diagnostics of e. A missing entry hashes like an
// entry without diagnostics.
func fingerprint(e *entry) uint64 {
	var errs, warns []ast.Diagnostic
	if e != nil {
		errs, warns = e.errors, e.warnings
	}
	h := xxh3.New()
	writeDiags(h, errs)
	writeDiags(h, warns)
	return h.Sum64()
}

func writeDiags(h *xxh3.Hasher, diags []ast.Diagnostic) {
	var buf [8]byte
	writeInt := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	for _, d := range diags {
		// Length prefixes keep field boundaries unambiguous.
		for _, f := range []string{string(d.Severity), d.Message, d.Source} {
			writeInt(len(f))
			h.WriteString(f)
		}
		for _, v := range []int{d.Span.StartLine, d.Span.StartCol, d.Span.EndLine, d.Span.EndCol} {
			writeInt(v)
		}
	}
	// Separator so diagnostics cannot migrate between lists unnoticed.
	h.WriteString("\x00")
}

func dedupe(ids []ast.DocID) []ast.DocID {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
