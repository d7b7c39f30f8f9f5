package index

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dusk-indust/flowscope/internal/ast"
	"github.com/dusk-indust/flowscope/internal/depgraph"
	"github.com/dusk-indust/flowscope/internal/parser"
)

// View is the read-only state an Analyzer sees: the documents of the
// running update layered on top of the current index.
type View interface {
	Has(id ast.DocID) bool
	Module(id ast.DocID) *parser.ModuleInfo
	Documents() []ast.DocID
}

// Analyzer is the second analysis phase of Cache.Update. It may re-check
// documents beyond the updated ones; the returned map holds the complete
// new warning list of every document it checked.
type Analyzer interface {
	Analyze(ctx context.Context, view View, updated []ast.DocID) (map[ast.DocID][]ast.Diagnostic, error)
	// Forget is called when documents are invalidated outside an update.
	Forget(ctx context.Context, ids []ast.DocID)
}

// NopAnalyzer checks nothing.
type NopAnalyzer struct{}

func (NopAnalyzer) Analyze(context.Context, View, []ast.DocID) (map[ast.DocID][]ast.Diagnostic, error) {
	return nil, nil
}

func (NopAnalyzer) Forget(context.Context, []ast.DocID) {}

// stagedView overlays the parse results of an update on the cache. A nil
// staged entry means the document is going away.
type stagedView struct {
	cache  *Cache
	staged map[ast.DocID]*entry
}

func (v *stagedView) lookup(id ast.DocID) *entry {
	if e, ok := v.staged[id]; ok {
		return e
	}
	v.cache.mu.RLock()
	defer v.cache.mu.RUnlock()
	return v.cache.docs[id]
}

func (v *stagedView) Has(id ast.DocID) bool {
	return v.lookup(id) != nil
}

func (v *stagedView) Module(id ast.DocID) *parser.ModuleInfo {
	if e := v.lookup(id); e != nil {
		return e.module
	}
	return nil
}

func (v *stagedView) Documents() []ast.DocID {
	set := make(map[ast.DocID]bool)
	for _, id := range v.cache.Documents() {
		set[id] = true
	}
	for id, e := range v.staged {
		set[id] = e != nil
	}
	var out []ast.DocID
	for id, ok := range set {
		if ok {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}

// ImportAnalyzer records import links in a dependency store and checks
// every updated document and every document importing one of them,
// directly or transitively.
type ImportAnalyzer struct {
	store  depgraph.Store
	logger *slog.Logger
}

// NewImportAnalyzer creates an ImportAnalyzer over store. The store schema
// must already be initialised.
func NewImportAnalyzer(store depgraph.Store, logger *slog.Logger) *ImportAnalyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportAnalyzer{store: store, logger: logger}
}

// Analyze implements Analyzer.
func (a *ImportAnalyzer) Analyze(ctx context.Context, view View, updated []ast.DocID) (map[ast.DocID][]ast.Diagnostic, error) {
	changed := make([]string, 0, len(updated))
	for _, id := range updated {
		changed = append(changed, string(id))
		if err := a.record(ctx, view, id); err != nil {
			return nil, fmt.Errorf("record imports of %s: %w", id, err)
		}
	}

	impact, err := a.store.Dependents(ctx, changed)
	if err != nil {
		return nil, fmt.Errorf("dependents: %w", err)
	}

	affected := slices.Clone(updated)
	for _, uri := range impact.Transitive {
		affected = append(affected, ast.DocID(uri))
	}

	out := make(map[ast.DocID][]ast.Diagnostic, len(affected))
	for _, id := range dedupe(affected) {
		info := view.Module(id)
		if info == nil {
			continue
		}
		out[id] = a.check(view, id, info)
	}
	return out, nil
}

// Forget implements Analyzer.
func (a *ImportAnalyzer) Forget(ctx context.Context, ids []ast.DocID) {
	for _, id := range ids {
		if err := a.store.RemoveDocument(ctx, string(id)); err != nil {
			a.logger.Warn("analyzer.forget", "doc", id, "err", err)
		}
	}
}

func (a *ImportAnalyzer) record(ctx context.Context, view View, id ast.DocID) error {
	info := view.Module(id)
	if !view.Has(id) {
		return a.store.RemoveDocument(ctx, string(id))
	}
	doc := depgraph.DocumentNode{URI: string(id)}
	var targets []string
	if info != nil {
		doc.Declarations = len(info.Declarations)
		for _, imp := range info.Imports {
			if target := parser.ResolveImport(id, imp); target != "" {
				targets = append(targets, string(target))
			}
		}
	}
	if err := a.store.PutDocument(ctx, doc); err != nil {
		return err
	}
	return a.store.SetImports(ctx, string(id), targets)
}

func (a *ImportAnalyzer) check(view View, id ast.DocID, info *parser.ModuleInfo) []ast.Diagnostic {
	var diags []ast.Diagnostic

	seen := make(map[string]parser.Declaration)
	for _, d := range info.Declarations {
		if prev, dup := seen[d.Name]; dup {
			diags = append(diags, warning(d.Def.Span,
				fmt.Sprintf("%s %q is already declared on line %d", d.Kind, d.Name, prev.Def.Span.StartLine)))
			continue
		}
		seen[d.Name] = d
	}

	for _, imp := range info.Imports {
		target := parser.ResolveImport(id, imp)
		if target == "" {
			continue
		}
		if !view.Has(target) {
			diags = append(diags, warning(imp.Node.Span, fmt.Sprintf("module %q is not indexed", imp.Module)))
			continue
		}
		tinfo := view.Module(target)
		if tinfo == nil {
			// Target exists but produced no tree; its own errors say why.
			continue
		}
		for _, name := range imp.Names {
			if _, ok := tinfo.Lookup(name.Name); !ok {
				diags = append(diags, warning(name.Node.Span,
					fmt.Sprintf("%q is not declared in module %q", name.Name, imp.Module)))
			}
		}
	}
	return diags
}

func warning(span ast.Span, msg string) ast.Diagnostic {
	return ast.Diagnostic{
		Severity: ast.SeverityWarning,
		Message:  msg,
		Span:     span,
		Source:   "imports",
	}
}
