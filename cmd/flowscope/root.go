package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/flowscope/internal/ast"
	"github.com/dusk-indust/flowscope/internal/config"
	"github.com/dusk-indust/flowscope/internal/workspace"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	Root     string
	LogLevel string
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:           "flowscope",
		Short:         "Live analysis and dataflow previews for workflow scripts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flags.Root, "root", ".", "workspace root containing flowscope.yml")
	cmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	cmd.AddCommand(
		newPreviewCmd(&flags),
		newCheckCmd(&flags),
		newNodeAtCmd(&flags),
		newWatchCmd(&flags),
		newServeMCPCmd(&flags),
		newVersionCmd(),
	)
	return cmd
}

// session is an opened workspace.
type session struct {
	root   string
	cfg    *config.ProjectConfig
	logger *slog.Logger
	svc    *workspace.Service
}

// openSession loads the workspace config and starts a Service over it.
func openSession(flags *globalFlags, sink workspace.Sink) (*session, error) {
	root, err := filepath.Abs(flags.Root)
	if err != nil {
		return nil, fmt.Errorf("workspace root: %w", err)
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	if flags.LogLevel != "" {
		cfg.LogLevel = flags.LogLevel
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store, err := newStore(cfg, root, logger)
	if err != nil {
		return nil, err
	}
	svc, err := workspace.New(workspace.Options{
		Store:    store,
		Sink:     sink,
		Logger:   logger,
		Debounce: cfg.Debounce(),
		Workers:  cfg.Workers,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	return &session{root: root, cfg: cfg, logger: logger, svc: svc}, nil
}

func (s *session) Close() error {
	return s.svc.Close()
}

// indexAll indexes every workflow document under the root.
func (s *session) indexAll(ctx context.Context) ([]ast.DocID, error) {
	ids, err := s.scan()
	if err != nil {
		return nil, err
	}
	s.svc.Update(ctx, ids)
	s.logger.Info("workspace.indexed", "root", s.root, "docs", len(ids))
	return ids, nil
}

// scan lists the workflow documents under the root, skipping hidden and
// excluded paths.
func (s *session) scan() ([]ast.DocID, error) {
	var ids []ast.DocID
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible paths
		}
		if d.IsDir() {
			if path != s.root && s.skipDir(path, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.isDocument(path) {
			return nil
		}
		id, err := workspace.URIFromPath(path)
		if err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.root, err)
	}
	return ids, nil
}

func (s *session) skipDir(path, name string) bool {
	if strings.HasPrefix(name, ".") || name == "__pycache__" || name == "node_modules" {
		return true
	}
	return s.excluded(path)
}

// isDocument reports whether path is a workflow document the workspace
// tracks.
func (s *session) isDocument(path string) bool {
	base := filepath.Base(path)
	if filepath.Ext(base) != ".py" || strings.HasPrefix(base, ".") {
		return false
	}
	return !s.excluded(path)
}

func (s *session) excluded(path string) bool {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return false
	}
	return s.cfg.Excluded(rel)
}

// rel returns id relative to the root for display, or id itself.
func (s *session) rel(id ast.DocID) string {
	path, err := workspace.PathFromURI(id)
	if err != nil {
		return string(id)
	}
	if r, err := filepath.Rel(s.root, path); err == nil {
		return r
	}
	return path
}

// resolve turns a command-line file argument into a document id.
func resolve(arg string) (ast.DocID, error) {
	if strings.Contains(arg, "://") {
		return ast.DocID(arg), nil
	}
	return workspace.URIFromPath(arg)
}
