package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends for the import graph.
const (
	StoreMemory = "memory"
	StoreKuzu   = "kuzu"
)

// Defaults applied by Load for unset fields.
const (
	DefaultDebounceMs = 300
	DefaultWorkers    = 4
	DefaultLogLevel   = "info"
)

// ProjectConfig holds workspace-level settings loaded from flowscope.yml.
type ProjectConfig struct {
	// DebounceMs is the quiet period before a changed document is re-indexed.
	DebounceMs int `yaml:"debounceMs,omitempty"`
	// Workers bounds parallel parsing.
	Workers int `yaml:"workers,omitempty"`
	// Store selects the import graph backend: "memory" or "kuzu".
	Store string `yaml:"store,omitempty"`
	// StorePath is the kuzu database directory; empty means in-memory.
	StorePath string `yaml:"storePath,omitempty"`
	LogLevel  string `yaml:"logLevel,omitempty"`
	// Verbose makes previews include detail-level nodes by default.
	Verbose bool `yaml:"verbose,omitempty"`
	// Exclude lists glob patterns of documents the watcher ignores.
	Exclude []string `yaml:"exclude,omitempty"`
}

// Load attempts to read flowscope.yml or flowscope.yaml from the given
// directory. Returns a default config (not an error) if no config file
// exists.
func Load(dir string) (*ProjectConfig, error) {
	cfg := &ProjectConfig{}
	for _, name := range []string{"flowscope.yml", "flowscope.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		break
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ProjectConfig) applyDefaults() {
	if c.DebounceMs <= 0 {
		c.DebounceMs = DefaultDebounceMs
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Store == "" {
		c.Store = StoreMemory
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Validate reports settings that cannot be used.
func (c *ProjectConfig) Validate() error {
	switch c.Store {
	case StoreMemory, StoreKuzu:
	default:
		return fmt.Errorf("config: unknown store %q (want %q or %q)", c.Store, StoreMemory, StoreKuzu)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Debounce returns DebounceMs as a duration.
func (c *ProjectConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// Level parses LogLevel.
func (c *ProjectConfig) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("config: log level: %w", err)
	}
	return l, nil
}

// Excluded reports whether the slash-separated relative path matches one of
// the Exclude patterns.
func (c *ProjectConfig) Excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range c.Exclude {
		if ok, _ := filepath.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, filepath.Base(rel)); ok {
			return true
		}
	}
	return false
}
