package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/dusk-indust/flowscope/internal/ast"
	"github.com/dusk-indust/flowscope/internal/index"
)

// URIFromPath returns the file URI of path, made absolute.
func URIFromPath(path string) (ast.DocID, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path of %s: %w", path, err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return ast.DocID(u.String()), nil
}

// PathFromURI returns the filesystem path of a file URI.
func PathFromURI(id ast.DocID) (string, error) {
	u, err := url.Parse(string(id))
	if err != nil {
		return "", fmt.Errorf("parse uri %s: %w", id, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("unsupported uri scheme %q in %s", u.Scheme, id)
	}
	return filepath.FromSlash(u.Path), nil
}

// FileProvider reads documents from the filesystem.
type FileProvider struct{}

// Read implements index.DocumentProvider. Missing files report an error
// wrapping fs.ErrNotExist.
func (FileProvider) Read(_ context.Context, id ast.DocID) ([]byte, error) {
	path, err := PathFromURI(id)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// Overlay serves open editor buffers and falls back to a base provider for
// every other document.
type Overlay struct {
	base index.DocumentProvider

	mu      sync.RWMutex
	buffers map[ast.DocID][]byte
}

var _ index.DocumentProvider = (*Overlay)(nil)

// NewOverlay creates an Overlay over base. A nil base knows no documents
// besides the open buffers.
func NewOverlay(base index.DocumentProvider) *Overlay {
	return &Overlay{base: base, buffers: make(map[ast.DocID][]byte)}
}

// Set stores the buffer text of id.
func (o *Overlay) Set(id ast.DocID, text []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.buffers[id] = slices.Clone(text)
}

// Remove drops the buffer of id so reads fall through to the base.
func (o *Overlay) Remove(id ast.DocID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.buffers, id)
}

// Read implements index.DocumentProvider.
func (o *Overlay) Read(ctx context.Context, id ast.DocID) ([]byte, error) {
	o.mu.RLock()
	buf, ok := o.buffers[id]
	o.mu.RUnlock()
	if ok {
		return slices.Clone(buf), nil
	}
	if o.base == nil {
		return nil, fmt.Errorf("read %s: %w", id, fs.ErrNotExist)
	}
	return o.base.Read(ctx, id)
}
