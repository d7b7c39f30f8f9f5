package mcptools

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/flowscope/internal/workspace"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// fixturePath returns the absolute path of a workflow fixture. Tests run
// from internal/mcptools/, so the fixtures live in ../../testdata.
func fixturePath(t *testing.T, name string) string {
	t.Helper()
	abs, err := filepath.Abs(filepath.Join("..", "..", "testdata", "fixtures", "workflows", name))
	require.NoError(t, err)
	return abs
}

// newTestTools creates Tools over a Service reading the fixtures from disk.
func newTestTools(t *testing.T) *Tools {
	t.Helper()
	return newTestToolsWith(t, Defaults{})
}

func newTestToolsWith(t *testing.T, defaults Defaults) *Tools {
	t.Helper()
	svc, err := workspace.New(workspace.Options{Logger: slog.New(slog.DiscardHandler)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return NewTools(svc, defaults)
}

// indexFixtures runs the update tool over every fixture document.
func indexFixtures(t *testing.T, tools *Tools) UpdateOutput {
	t.Helper()
	_, out, err := tools.Update(context.Background(), nil, UpdateInput{Documents: []string{
		fixturePath(t, "main.py"),
		fixturePath(t, "common.py"),
		fixturePath(t, "sub/report.py"),
	}})
	require.NoError(t, err)
	return out
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestDocID(t *testing.T) {
	id, err := docID("file:///w/main.py")
	require.NoError(t, err)
	assert.Equal(t, "file:///w/main.py", string(id))

	id, err = docID("/w/main.py")
	require.NoError(t, err)
	assert.Equal(t, "file:///w/main.py", string(id))

	_, err = docID("")
	assert.Error(t, err)
}

func TestUpdate(t *testing.T) {
	tools := newTestTools(t)

	out := indexFixtures(t, tools)
	assert.Len(t, out.Changed, 3, "every new document changes")

	out = indexFixtures(t, tools)
	assert.Empty(t, out.Changed, "re-indexing unchanged files changes nothing")

	_, _, err := tools.Update(context.Background(), nil, UpdateInput{})
	assert.Error(t, err)
}

func TestDiagnostics(t *testing.T) {
	tools := newTestTools(t)
	indexFixtures(t, tools)

	_, out, err := tools.Diagnostics(context.Background(), nil, DiagnosticsInput{Document: fixturePath(t, "sub/report.py")})
	require.NoError(t, err)
	assert.Empty(t, out.Errors)
	require.Len(t, out.Warnings, 1)
	assert.Equal(t, `"MISSING" is not declared in module "common"`, out.Warnings[0].Message)

	_, out, err = tools.Diagnostics(context.Background(), nil, DiagnosticsInput{Document: fixturePath(t, "main.py")})
	require.NoError(t, err)
	assert.NotNil(t, out.Warnings)
	assert.Empty(t, out.Warnings)
}

func TestNodeAt(t *testing.T) {
	tools := newTestTools(t)
	indexFixtures(t, tools)

	// Line 16 is "index = BUILD_INDEX(params.genome)".
	_, out, err := tools.NodeAt(context.Background(), nil, NodeAtInput{
		Document: fixturePath(t, "main.py"),
		Line:     16,
		Column:   10,
	})
	require.NoError(t, err)
	require.True(t, out.Found)
	assert.Equal(t, "identifier", out.Node.Kind)
	assert.Equal(t, "BUILD_INDEX", out.Node.Text)
	require.NotNil(t, out.Parent)
	assert.Equal(t, "call", out.Parent.Kind)

	_, out, err = tools.NodeAt(context.Background(), nil, NodeAtInput{
		Document: fixturePath(t, "missing.py"),
		Line:     1,
		Column:   1,
	})
	require.NoError(t, err)
	assert.False(t, out.Found)

	_, _, err = tools.NodeAt(context.Background(), nil, NodeAtInput{
		Document: fixturePath(t, "main.py"),
	})
	assert.Error(t, err, "positions are 1-based")
}

func TestPreviewDAG(t *testing.T) {
	tools := newTestTools(t)
	indexFixtures(t, tools)
	main := fixturePath(t, "main.py")

	_, out, err := tools.PreviewDAG(context.Background(), nil, PreviewDAGInput{Document: main, Scope: "QC"})
	require.NoError(t, err)
	assert.Contains(t, out.Mermaid, "  subgraph QC\n")
	assert.Nil(t, out.Graph)

	_, out, err = tools.PreviewDAG(context.Background(), nil, PreviewDAGInput{Document: main, Format: "json"})
	require.NoError(t, err)
	assert.Empty(t, out.Mermaid)
	require.NotNil(t, out.Graph)
	assert.True(t, out.Graph.Entry)

	labels := make(map[string]string)
	for _, n := range out.Graph.Nodes {
		labels[n.Label] = n.Kind
	}
	assert.Equal(t, map[string]string{
		"genome":      "NAME",
		"reads":       "NAME",
		"BUILD_INDEX": "OPERATOR",
		"QC":          "OPERATOR",
		"out":         "NAME",
	}, labels)

	_, _, err = tools.PreviewDAG(context.Background(), nil, PreviewDAGInput{Document: main, Scope: "NOPE"})
	assert.ErrorIs(t, err, workspace.ErrUnknownWorkflow)

	_, _, err = tools.PreviewDAG(context.Background(), nil, PreviewDAGInput{Document: main, Format: "svg"})
	assert.Error(t, err)

	_, _, err = tools.PreviewDAG(context.Background(), nil, PreviewDAGInput{Document: fixturePath(t, "missing.py")})
	assert.ErrorIs(t, err, workspace.ErrUnknownDocument)
}

func TestPreviewDAG_VerboseDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flat.py")
	require.NoError(t, os.WriteFile(path, []byte(`@process
def ALIGN(reads):
    ...

aln = ALIGN(params.reads)
merged = flatten(aln)
publish(out=merged)
`), 0o644))
	ctx := context.Background()

	preview := func(tools *Tools, input PreviewDAGInput) string {
		t.Helper()
		_, _, err := tools.Update(ctx, nil, UpdateInput{Documents: []string{path}})
		require.NoError(t, err)
		input.Document = path
		_, out, err := tools.PreviewDAG(ctx, nil, input)
		require.NoError(t, err)
		return out.Mermaid
	}

	plain := newTestTools(t)
	assert.NotContains(t, preview(plain, PreviewDAGInput{}), "flatten")
	assert.Contains(t, preview(plain, PreviewDAGInput{Verbose: true}), "flatten")

	verbose := newTestToolsWith(t, Defaults{Verbose: true})
	assert.Contains(t, preview(verbose, PreviewDAGInput{}), "flatten",
		"the configured default applies when the call omits verbose")
}

func TestListWorkflows(t *testing.T) {
	tools := newTestTools(t)
	indexFixtures(t, tools)

	_, out, err := tools.ListWorkflows(context.Background(), nil, WorkflowsInput{Document: fixturePath(t, "main.py")})
	require.NoError(t, err)
	assert.Equal(t, []string{"QC"}, out.Workflows)

	_, out, err = tools.ListWorkflows(context.Background(), nil, WorkflowsInput{Document: fixturePath(t, "common.py")})
	require.NoError(t, err)
	assert.Equal(t, []string{}, out.Workflows)
}
