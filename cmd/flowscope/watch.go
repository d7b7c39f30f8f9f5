package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/dusk-indust/flowscope/internal/ast"
	"github.com/dusk-indust/flowscope/internal/workspace"
)

func newWatchCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-check workflow documents as they change on disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printer := &diagnosticPrinter{w: cmd.OutOrStdout()}
			s, err := openSession(flags, printer)
			if err != nil {
				return err
			}
			defer s.Close()
			printer.name = s.rel

			if _, err := s.indexAll(cmd.Context()); err != nil {
				return err
			}
			return watchWithFSNotify(cmd.Context(), s)
		},
	}
	return cmd
}

// diagnosticPrinter is a workspace.Sink writing diagnostics as they are
// published.
type diagnosticPrinter struct {
	mu   sync.Mutex
	w    io.Writer
	name func(ast.DocID) string
}

func (p *diagnosticPrinter) PublishDiagnostics(_ context.Context, id ast.DocID, d workspace.Diagnostics) {
	p.mu.Lock()
	defer p.mu.Unlock()
	name := string(id)
	if p.name != nil {
		name = p.name(id)
	}
	if len(d.Errors)+len(d.Warnings) == 0 {
		fmt.Fprintf(p.w, "%s: ok\n", name)
		return
	}
	printDiagnostics(p.w, name, d)
}

// watchWithFSNotify feeds file events under the root to the workspace until
// ctx is cancelled. The workspace debounces and batches re-indexing.
func watchWithFSNotify(ctx context.Context, s *session) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addWatchRecursive(watcher, s, s.root); err != nil {
		return err
	}
	s.logger.Info("watch.start", "root", s.root)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			path := filepath.Clean(event.Name)

			if event.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
					watchNewDir(watcher, s, path, info.Name())
					continue
				}
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !s.isDocument(path) {
				continue
			}
			id, err := workspace.URIFromPath(path)
			if err != nil {
				s.logger.Warn("watch.event", "path", path, "err", err)
				continue
			}
			s.logger.Debug("watch.event", "path", path, "op", event.Op.String())
			s.svc.Changed(id)
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return watchErr
		}
	}
}

// watchNewDir starts watching a directory created while watching. A
// directory that cannot be watched is logged and skipped.
func watchNewDir(watcher *fsnotify.Watcher, s *session, path, name string) {
	if s.skipDir(path, name) {
		return
	}
	if err := addWatchRecursive(watcher, s, path); err != nil {
		s.logger.Warn("watch.add", "path", path, "err", err)
	}
}

func addWatchRecursive(watcher *fsnotify.Watcher, s *session, root string) error {
	root = filepath.Clean(root)
	return filepath.WalkDir(root, func(path string, entry os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !entry.IsDir() {
			return nil
		}
		if path != s.root && s.skipDir(path, entry.Name()) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
