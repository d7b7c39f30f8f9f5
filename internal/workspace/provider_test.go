package workspace

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/flowscope/internal/ast"
)

func TestURIRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flows", "main.py")
	id, err := URIFromPath(path)
	require.NoError(t, err)
	assert.Contains(t, string(id), "file://")

	back, err := PathFromURI(id)
	require.NoError(t, err)
	assert.Equal(t, path, back)

	_, err = PathFromURI("untitled:Untitled-1")
	assert.Error(t, err)
}

func TestOverlay_BuffersShadowBase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.py")
	require.NoError(t, os.WriteFile(path, []byte("on disk\n"), 0o644))
	id, err := URIFromPath(path)
	require.NoError(t, err)
	ctx := context.Background()

	o := NewOverlay(FileProvider{})
	got, err := o.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "on disk\n", string(got))

	text := []byte("in editor\n")
	o.Set(id, text)
	text[0] = 'X'
	got, err = o.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "in editor\n", string(got), "Set copies the buffer")

	o.Remove(id)
	got, err = o.Read(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "on disk\n", string(got))
}

func TestOverlay_NilBase(t *testing.T) {
	o := NewOverlay(nil)
	_, err := o.Read(context.Background(), ast.DocID("file:///nowhere.py"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
