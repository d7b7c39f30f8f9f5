package index

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"golang.org/x/sync/errgroup"

	"github.com/dusk-indust/flowscope/internal/ast"
	"github.com/dusk-indust/flowscope/internal/parser"
)

// parseResult is what one parse task hands back to the merge step. Tasks
// never touch the shared maps; each returns its own result.
type parseResult struct {
	id ast.DocID
	// entry is nil when the document no longer exists.
	entry *entry
}

// parseAll parses every id in parallel, at most c.workers at a time. The
// returned slice has one slot per id, in the order of ids. Per-document
// failures are folded into the results, so the group itself never fails.
func (c *Cache) parseAll(ctx context.Context, ids []ast.DocID, src DocumentProvider) []parseResult {
	results := make([]parseResult, len(ids))

	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = c.parseOne(ctx, id, src)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// parseOne reads, parses and links a single document. A panic anywhere in
// that pipeline is recovered and leaves the document without a tree.
func (c *Cache) parseOne(ctx context.Context, id ast.DocID, src DocumentProvider) (res parseResult) {
	res.id = id
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("index.parse_panic", "doc", id, "panic", r)
			res.entry = &entry{id: id}
		}
	}()

	text, err := src.Read(ctx, id)
	if errors.Is(err, fs.ErrNotExist) {
		c.logger.Debug("index.gone", "doc", id)
		return res
	}
	if err != nil {
		c.logger.Warn("index.read", "doc", id, "err", err)
		res.entry = &entry{id: id, errors: []ast.Diagnostic{failure(fmt.Sprintf("cannot read document: %v", err))}}
		return res
	}

	parsed, err := c.parser.Parse(ctx, id, text)
	if err != nil {
		c.logger.Warn("index.parse", "doc", id, "err", err)
		res.entry = &entry{id: id, errors: []ast.Diagnostic{failure(fmt.Sprintf("cannot parse document: %v", err))}}
		return res
	}

	links := ResolveParents(parsed.Root)
	res.entry = &entry{
		id:     id,
		root:   parsed.Root,
		errors: parsed.Errors,
		links:  links.Links,
		nodes:  links.Nodes,
		module: parser.Inspect(parsed.Root),
		loc:    parsed.LOC,
	}
	return res
}

func failure(msg string) ast.Diagnostic {
	return ast.Diagnostic{
		Severity: ast.SeverityError,
		Message:  msg,
		Span:     ast.Span{StartLine: 1, StartCol: 1, EndLine: 1, EndCol: 1},
		Source:   "index",
	}
}
