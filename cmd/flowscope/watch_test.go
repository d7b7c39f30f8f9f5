package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/flowscope/internal/config"
)

func newWatchSession(t *testing.T, logs *bytes.Buffer) *session {
	t.Helper()
	root := t.TempDir()
	cfg, err := config.Load(root)
	require.NoError(t, err)
	return &session{root: root, cfg: cfg, logger: slog.New(slog.NewTextHandler(logs, nil))}
}

func TestWatchNewDir(t *testing.T) {
	var logs bytes.Buffer
	s := newWatchSession(t, &logs)
	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer watcher.Close()

	sub := filepath.Join(s.root, "flows", "nested")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	watchNewDir(watcher, s, filepath.Join(s.root, "flows"), "flows")
	assert.ElementsMatch(t, []string{filepath.Join(s.root, "flows"), sub}, watcher.WatchList())
	assert.Empty(t, logs.String())

	hidden := filepath.Join(s.root, ".cache")
	require.NoError(t, os.Mkdir(hidden, 0o755))
	watchNewDir(watcher, s, hidden, ".cache")
	assert.NotContains(t, watcher.WatchList(), hidden)
}

func TestWatchNewDir_LogsFailure(t *testing.T) {
	var logs bytes.Buffer
	s := newWatchSession(t, &logs)
	watcher, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer watcher.Close()

	gone := filepath.Join(s.root, "gone")
	watchNewDir(watcher, s, gone, "gone")
	assert.Contains(t, logs.String(), "msg=watch.add")
	assert.Contains(t, logs.String(), gone)
	assert.Empty(t, watcher.WatchList())
}
