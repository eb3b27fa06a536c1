package cli

import (
	"bytes"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/modgraph/pkg/errors"
	"github.com/matzehuels/modgraph/pkg/modgraph"
	"github.com/matzehuels/modgraph/pkg/observability"
)

const sampleGraph = `example.com/app example.com/a@v1.0.0
example.com/app golang.org/x/mod@v0.18.0
example.com/a@v1.0.0 example.com/b@v1.2.0
example.com/a@v1.0.0 golang.org/x/mod@v0.17.0
`

// fakeGoModule creates a module directory and a config whose go command
// prints output to stdout and diag to stderr.
func fakeGoModule(t *testing.T, output, diag string) (dir, configPath string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake go command is a shell script")
	}

	tmp := t.TempDir()
	dir = filepath.Join(tmp, "app")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/app\n"), 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(tmp, "graph.txt"), []byte(output), 0o644))
	script := "#!/bin/sh\ncat '" + filepath.Join(tmp, "graph.txt") + "'\n"
	if diag != "" {
		script += "echo '" + diag + "' >&2\nexit 1\n"
	}
	goCmd := filepath.Join(tmp, "fakego")
	require.NoError(t, os.WriteFile(goCmd, []byte(script), 0o755))

	configPath = filepath.Join(tmp, "config.toml")
	cfg := "go_command = \"" + goCmd + "\"\n\n[cache]\nbackend = \"none\"\n\n[archive]\nbackend = \"memory\"\n"
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o644))
	return dir, configPath
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := captureStdout(t)
	t.Cleanup(observability.Reset)

	var logs bytes.Buffer
	root := New(&logs, LogInfo).RootCommand()
	root.SetArgs(args)
	root.SetOut(&logs)
	root.SetErr(&logs)
	err := root.Execute()
	return buf.String(), err
}

func TestGraphCommandPrintsDOT(t *testing.T) {
	dir, cfg := fakeGoModule(t, sampleGraph, "")

	out, err := runCommand(t, "--config", cfg, "graph", dir)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "digraph G{"), out)
	assert.Contains(t, out, `"example.com/app" -> "example.com/a"`)
	assert.Contains(t, out, "v0.17.0")
}

func TestGraphCommandSelection(t *testing.T) {
	dir, cfg := fakeGoModule(t, sampleGraph, "")

	out, err := runCommand(t, "--config", cfg, "graph", "-m", "example.com/b", dir)
	require.NoError(t, err)

	assert.Contains(t, out, `"example.com/a" -> "example.com/b"`)
	assert.Contains(t, out, `"example.com/app" -> "example.com/a"`)
	assert.NotContains(t, out, "golang.org/x/mod")
}

func TestGraphCommandWritesDOTFile(t *testing.T) {
	dir, cfg := fakeGoModule(t, sampleGraph, "")
	dest := filepath.Join(t.TempDir(), "deps.dot")

	out, err := runCommand(t, "--config", cfg, "graph", "-o", dest, dir)
	require.NoError(t, err)
	assert.Contains(t, out, dest)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "digraph G{"))
}

func TestGraphCommandRejectsBadOutput(t *testing.T) {
	dir, cfg := fakeGoModule(t, sampleGraph, "")

	_, err := runCommand(t, "--config", cfg, "graph", "-o", filepath.Join(t.TempDir(), "deps.jpg"), dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidFormat), "got %v", err)
}

func TestGraphCommandScanFailure(t *testing.T) {
	dir, cfg := fakeGoModule(t, "", "go: updates to go.mod needed")

	out, err := runCommand(t, "--config", cfg, "graph", dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeScanFailed), "got %v", err)
	assert.Contains(t, err.Error(), "updates to go.mod needed")
	assert.Contains(t, out, modgraph.NeedScanNotice)
}

func TestGraphCommandMissingDir(t *testing.T) {
	_, cfg := fakeGoModule(t, sampleGraph, "")

	_, err := runCommand(t, "--config", cfg, "graph", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeFileNotFound), "got %v", err)
}

func TestModulesCommandJSON(t *testing.T) {
	dir, cfg := fakeGoModule(t, sampleGraph, "")

	out, err := runCommand(t, "--config", cfg, "modules", "--json", dir)
	require.NoError(t, err)

	var infos []moduleInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 3)

	assert.Equal(t, "example.com/a", infos[0].Path)
	assert.Equal(t, "example.com/b", infos[1].Path)
	assert.Equal(t, moduleInfo{
		Path:       "golang.org/x/mod",
		Versions:   []string{"v0.17.0", "v0.18.0"},
		Dependents: 2,
	}, infos[2])
}

func TestModulesCommandText(t *testing.T) {
	dir, cfg := fakeGoModule(t, sampleGraph, "")

	out, err := runCommand(t, "--config", cfg, "modules", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "4 modules")
	assert.Contains(t, out, "golang.org/x/mod")
	assert.Contains(t, out, "(2 dependents)")
	assert.NotContains(t, out, modgraph.AllModules)
}

// useFileCache switches the config written by fakeGoModule to a file cache
// under a temporary directory.
func useFileCache(t *testing.T, configPath string) {
	t.Helper()
	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	cfg := strings.Replace(string(data), "backend = \"none\"", "backend = \"file\"\ndir = \""+t.TempDir()+"\"", 1)
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o644))
}

func TestGraphCommandReusesScan(t *testing.T) {
	dir, cfg := fakeGoModule(t, sampleGraph, "")
	useFileCache(t, cfg)

	first, err := runCommand(t, "--config", cfg, "graph", dir)
	require.NoError(t, err)

	// A changed graph with an unchanged go.mod is served from the cache.
	graphFile := filepath.Join(filepath.Dir(dir), "graph.txt")
	require.NoError(t, os.WriteFile(graphFile, []byte("example.com/app example.com/z@v9.0.0\n"), 0o644))
	second, err := runCommand(t, "--config", cfg, "graph", dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Editing go.mod invalidates it.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/app\n\ngo 1.22\n"), 0o644))
	third, err := runCommand(t, "--config", cfg, "graph", dir)
	require.NoError(t, err)
	assert.Contains(t, third, "example.com/z")

	// --no-cache always rescans.
	require.NoError(t, os.WriteFile(graphFile, []byte(sampleGraph), 0o644))
	fourth, err := runCommand(t, "--config", cfg, "graph", "--no-cache", dir)
	require.NoError(t, err)
	assert.NotContains(t, fourth, "example.com/z")
}

func TestCachePathCommand(t *testing.T) {
	_, cfg := fakeGoModule(t, sampleGraph, "")
	cacheHome := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", cacheHome)

	out, err := runCommand(t, "--config", cfg, "cache", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cacheHome, appName), strings.TrimSpace(out))
}

func TestCacheClearCommandEmpty(t *testing.T) {
	_, cfg := fakeGoModule(t, sampleGraph, "")
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	out, err := runCommand(t, "--config", cfg, "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Cache is empty")
}

func TestPreviewURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"127.0.0.1:7878", "http://127.0.0.1:7878/"},
		{"0.0.0.0:7878", "http://localhost:7878/"},
		{"[::]:9000", "http://localhost:9000/"},
		{"[::1]:9000", "http://[::1]:9000/"},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			addr, err := net.ResolveTCPAddr("tcp", tt.addr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, previewURL(addr))
		})
	}
}

func TestDescribeSelection(t *testing.T) {
	assert.Equal(t, "all-modules", describeSelection(modgraph.AllModules))
	assert.Equal(t, "example.com/a", describeSelection("example.com/a"))
}
