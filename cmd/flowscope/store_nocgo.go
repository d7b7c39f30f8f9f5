//go:build !cgo

package main

import (
	"log/slog"

	"github.com/dusk-indust/flowscope/internal/config"
	"github.com/dusk-indust/flowscope/internal/depgraph"
)

// newStore returns a MemStore; the kuzu backend needs cgo.
func newStore(cfg *config.ProjectConfig, _ string, logger *slog.Logger) (depgraph.Store, error) {
	if cfg.Store == config.StoreKuzu {
		logger.Warn("store.open", "backend", config.StoreKuzu, "err", "built without cgo, using memory store")
	}
	return depgraph.NewMemStore(), nil
}
