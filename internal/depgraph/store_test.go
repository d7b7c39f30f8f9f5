package depgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The functions below run the same checks against every Store backend.

func checkDocumentRoundTrip(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	doc := DocumentNode{URI: "file:///w/main.py", Declarations: 3}
	require.NoError(t, s.PutDocument(ctx, doc))

	got, err := s.GetDocument(ctx, doc.URI)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, doc, *got)

	missing, err := s.GetDocument(ctx, "file:///w/nope.py")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func checkSetImportsReplaces(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.PutDocument(ctx, DocumentNode{URI: "a"}))
	require.NoError(t, s.SetImports(ctx, "a", []string{"c", "b"}))

	got, err := s.Imports(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, got)

	require.NoError(t, s.SetImports(ctx, "a", []string{"d"}))
	got, err = s.Imports(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, got)

	require.NoError(t, s.SetImports(ctx, "a", nil))
	got, err = s.Imports(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, got)
}

// checkDependents builds
//
//	main -> qc -> common
//	lib  -> common
//
// and asks who is affected by a change to common.
func checkDependents(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	for _, uri := range []string{"main", "qc", "lib", "common"} {
		require.NoError(t, s.PutDocument(ctx, DocumentNode{URI: uri}))
	}
	require.NoError(t, s.SetImports(ctx, "main", []string{"qc"}))
	require.NoError(t, s.SetImports(ctx, "qc", []string{"common"}))
	require.NoError(t, s.SetImports(ctx, "lib", []string{"common"}))

	impact, err := s.Dependents(ctx, []string{"common"})
	require.NoError(t, err)
	assert.Equal(t, []string{"lib", "qc"}, impact.Direct)
	assert.Equal(t, []string{"lib", "main", "qc"}, impact.Transitive)

	// Changed documents never show up as their own dependents.
	impact, err = s.Dependents(ctx, []string{"common", "qc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"lib", "main"}, impact.Direct)
	assert.Equal(t, []string{"lib", "main"}, impact.Transitive)

	impact, err = s.Dependents(ctx, []string{"main"})
	require.NoError(t, err)
	assert.Empty(t, impact.Direct)
	assert.Empty(t, impact.Transitive)
}

// checkRemoveKeepsIncoming verifies that a removed document can still be
// found as an import target, so its importers get re-checked when it
// comes back.
func checkRemoveKeepsIncoming(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.PutDocument(ctx, DocumentNode{URI: "main"}))
	require.NoError(t, s.PutDocument(ctx, DocumentNode{URI: "common"}))
	require.NoError(t, s.SetImports(ctx, "main", []string{"common"}))
	require.NoError(t, s.SetImports(ctx, "common", []string{"base"}))

	require.NoError(t, s.RemoveDocument(ctx, "common"))

	got, err := s.GetDocument(ctx, "common")
	require.NoError(t, err)
	assert.Nil(t, got)

	out, err := s.Imports(ctx, "common")
	require.NoError(t, err)
	assert.Empty(t, out)

	impact, err := s.Dependents(ctx, []string{"common"})
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, impact.Direct)
}

func checkStats(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.PutDocument(ctx, DocumentNode{URI: "a"}))
	require.NoError(t, s.PutDocument(ctx, DocumentNode{URI: "b"}))
	require.NoError(t, s.SetImports(ctx, "a", []string{"b", "missing"}))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DocumentCount, "placeholder targets are not documents")
	assert.Equal(t, 2, stats.ImportCount)
}
