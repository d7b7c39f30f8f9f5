//go:build cgo

package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/dusk-indust/flowscope/internal/config"
	"github.com/dusk-indust/flowscope/internal/depgraph"
)

// newStore opens the import graph backend selected by cfg.
func newStore(cfg *config.ProjectConfig, root string, logger *slog.Logger) (depgraph.Store, error) {
	if cfg.Store != config.StoreKuzu {
		return depgraph.NewMemStore(), nil
	}
	if cfg.StorePath == "" {
		store, err := depgraph.NewKuzuStore()
		if err != nil {
			return nil, fmt.Errorf("open kuzu store: %w", err)
		}
		return store, nil
	}
	path := cfg.StorePath
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	store, err := depgraph.NewKuzuFileStore(path)
	if err != nil {
		return nil, fmt.Errorf("open kuzu store at %s: %w", path, err)
	}
	logger.Debug("store.open", "backend", config.StoreKuzu, "path", path)
	return store, nil
}
