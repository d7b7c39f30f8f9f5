package parser

import (
	"bytes"
	"context"
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/dusk-indust/flowscope/internal/ast"
)

// TreeSitterParser implements Parser with the tree-sitter Python grammar,
// which is the surface syntax of the workflow DSL. A new tree-sitter parser
// is created per Parse call, so concurrent Parse calls are safe.
type TreeSitterParser struct {
	language *tree_sitter.Language
}

// NewTreeSitterParser creates a TreeSitterParser with the Python grammar.
func NewTreeSitterParser() *TreeSitterParser {
	return &TreeSitterParser{
		language: tree_sitter.NewLanguage(tree_sitter_python.Language()),
	}
}

// Parse converts the tree-sitter tree for source into an owned ast.Node
// tree. The tree-sitter tree is released before returning.
func (p *TreeSitterParser) Parse(ctx context.Context, id ast.DocID, source []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(p.language); err != nil {
		return nil, fmt.Errorf("set language: %w", err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter returned nil tree for %s", id)
	}
	defer tree.Close()

	c := &converter{src: string(source)}
	root := c.convert(tree.RootNode(), "")

	return &Result{
		Root:   root,
		Errors: c.diags,
		LOC:    countLOC(source),
	}, nil
}

// Close is a no-op because parsers are created per Parse call.
func (p *TreeSitterParser) Close() error {
	return nil
}

// converter copies named tree-sitter nodes into ast.Nodes. Anonymous tokens
// (keywords, punctuation) are dropped; comments too.
type converter struct {
	src   string
	diags []ast.Diagnostic
}

func (c *converter) convert(n *tree_sitter.Node, field string) *ast.Node {
	sp, ep := n.StartPosition(), n.EndPosition()
	span := ast.SpanFromPoints(sp.Row, sp.Column, ep.Row, ep.Column)

	out := &ast.Node{
		Kind:      n.Kind(),
		Field:     field,
		Text:      c.text(n.StartByte(), n.EndByte()),
		Span:      span,
		Synthetic: n.IsMissing() || !span.Valid(),
	}

	switch {
	case n.IsMissing():
		c.report(fmt.Sprintf("missing %s", n.Kind()), span)
	case n.IsError():
		c.report(errorMessage(out), span)
	}

	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child == nil {
			continue
		}
		if !child.IsNamed() {
			if child.IsMissing() {
				csp, cep := child.StartPosition(), child.EndPosition()
				c.report(fmt.Sprintf("missing %q", child.Kind()),
					ast.SpanFromPoints(csp.Row, csp.Column, cep.Row, cep.Column))
			}
			continue
		}
		if child.Kind() == "comment" {
			continue
		}
		out.Children = append(out.Children, c.convert(child, n.FieldNameForChild(uint32(i))))
	}
	return out
}

func (c *converter) text(start, end uint) string {
	if start > end || end > uint(len(c.src)) {
		return ""
	}
	// Slicing shares the backing array of src, so every node's Text costs
	// only a string header.
	return c.src[start:end]
}

func (c *converter) report(msg string, span ast.Span) {
	if !span.Valid() {
		span = pointSpan(span)
	}
	c.diags = append(c.diags, ast.Diagnostic{
		Severity: ast.SeverityError,
		Message:  msg,
		Span:     span,
		Source:   "parser",
	})
}

// errorMessage describes an ERROR node by its first offending line.
func errorMessage(n *ast.Node) string {
	text := n.Text
	if i := bytes.IndexByte([]byte(text), '\n'); i >= 0 {
		text = text[:i]
	}
	if len(text) > 40 {
		text = text[:40] + "..."
	}
	if text == "" {
		return "syntax error"
	}
	return fmt.Sprintf("syntax error near %q", text)
}

// pointSpan widens a zero-width span to the single column it sits on so
// editors can underline it.
func pointSpan(s ast.Span) ast.Span {
	col := s.StartCol
	return ast.Span{StartLine: s.StartLine, StartCol: col, EndLine: s.StartLine, EndCol: col}
}

// countLOC counts the number of lines in source by counting newline bytes
// and adding one for the final line if the source is non-empty.
func countLOC(source []byte) int {
	if len(source) == 0 {
		return 0
	}
	return bytes.Count(source, []byte{'\n'}) + 1
}
