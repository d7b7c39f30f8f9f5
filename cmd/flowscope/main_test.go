package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixtureRoot(t *testing.T) string {
	t.Helper()
	abs, err := filepath.Abs(filepath.Join("..", "..", "testdata", "fixtures", "workflows"))
	require.NoError(t, err)
	return abs
}

// runCLI executes the root command with args and returns its stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_HasCommands(t *testing.T) {
	var names []string
	for _, c := range newRootCmd().Commands() {
		names = append(names, c.Name())
	}
	sort.Strings(names)
	for _, want := range []string{"check", "node-at", "preview", "serve-mcp", "version", "watch"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCmd_UnknownCommand(t *testing.T) {
	_, err := runCLI(t, "unknown-command")
	assert.Error(t, err)
}

func TestVersionCmd(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}

func TestPreviewCmd(t *testing.T) {
	root := fixtureRoot(t)

	out, err := runCLI(t, "--root", root, "preview", filepath.Join(root, "main.py"), "--scope", "QC")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "flowchart TB\n  subgraph QC\n"))
	assert.Contains(t, out, "v4 --> s1\n")

	out, err = runCLI(t, "--root", root, "preview", filepath.Join(root, "main.py"), "--json")
	require.NoError(t, err)
	var decoded struct {
		Entry bool `json:"entry"`
		Nodes []struct {
			Label string `json:"label"`
		} `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.True(t, decoded.Entry)
	assert.Len(t, decoded.Nodes, 5)

	_, err = runCLI(t, "--root", root, "preview", filepath.Join(root, "main.py"), "--scope", "NOPE")
	assert.Error(t, err)
}

func TestCheckCmd(t *testing.T) {
	root := fixtureRoot(t)

	out, err := runCLI(t, "--root", root, "check")
	require.NoError(t, err, "warnings alone do not fail")
	assert.Contains(t, out, filepath.Join("sub", "report.py")+`:1:`)
	assert.Contains(t, out, `warning: "MISSING" is not declared in module "common" [imports]`)
	assert.Contains(t, out, "3 documents, 0 errors, 1 warnings\n")

	_, err = runCLI(t, "--root", root, "check", "--strict")
	var exit exitCodeError
	require.True(t, errors.As(err, &exit))
	assert.Equal(t, 2, exit.ExitCode())
}

func TestCheckCmd_SyntaxErrorFails(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken.py"), []byte("x = (\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "skip.py"), []byte("y = [\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "flowscope.yml"), []byte("exclude:\n  - skip.py\n"), 0o644))

	out, err := runCLI(t, "--root", root, "check", "--json")
	var exit exitCodeError
	require.True(t, errors.As(err, &exit))

	var reports []checkReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1, "excluded documents are not checked")
	assert.Equal(t, "broken.py", reports[0].Document)
	assert.NotEmpty(t, reports[0].Errors)
}

func TestNodeAtCmd(t *testing.T) {
	root := fixtureRoot(t)

	out, err := runCLI(t, "--root", root, "node-at", filepath.Join(root, "main.py"), "16", "10")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], `identifier (function) 16:9-16:19 "BUILD_INDEX"`), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "  call (right) 16:9-16:34"), lines[1])

	_, err = runCLI(t, "--root", root, "node-at", filepath.Join(root, "main.py"), "x", "1")
	assert.Error(t, err)
}
