package modgraph

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/modgraph/pkg/cache"
	"github.com/matzehuels/modgraph/pkg/errors"
)

// countingScanner returns sample and counts its calls.
type countingScanner struct {
	calls int
	err   error
}

func (s *countingScanner) Scan(ctx context.Context, dir string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return sample, nil
}

func writeModule(t *testing.T, dir, gomod, gosum string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte(gomod), 0o644))
	if gosum != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "go.sum"), []byte(gosum), 0o644))
	}
}

func newFileCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)
	return c
}

func TestCachedScannerHit(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeModule(t, dir, "module modA\n", "")

	next := &countingScanner{}
	s := CachedScanner(next, newFileCache(t), nil, "go", 0)

	for i := 0; i < 3; i++ {
		got, err := s.Scan(ctx, dir)
		require.NoError(t, err)
		assert.Equal(t, sample, got)
	}
	assert.Equal(t, 1, next.calls)
}

func TestCachedScannerManifestChange(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeModule(t, dir, "module modA\n\nrequire modB v1.0\n", "modB v1.0 h1:aaa=\n")

	next := &countingScanner{}
	s := CachedScanner(next, newFileCache(t), nil, "go", 0)

	_, err := s.Scan(ctx, dir)
	require.NoError(t, err)

	writeModule(t, dir, "module modA\n\nrequire modB v1.0\n", "modB v1.0 h1:bbb=\n")
	_, err = s.Scan(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls, "go.sum edit must miss")

	writeModule(t, dir, "module modA\n\nrequire modB v1.1\n", "")
	_, err = s.Scan(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 3, next.calls, "go.mod edit must miss")

	_, err = s.Scan(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 3, next.calls)
}

func TestCachedScannerGoCommandInKey(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeModule(t, dir, "module modA\n", "")

	c := newFileCache(t)
	next := &countingScanner{}

	_, err := CachedScanner(next, c, nil, "go", 0).Scan(ctx, dir)
	require.NoError(t, err)
	_, err = CachedScanner(next, c, nil, "go1.22", 0).Scan(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestCachedScannerErrorsNotCached(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeModule(t, dir, "module modA\n", "")

	next := &countingScanner{err: errors.New(errors.ErrCodeScanFailed, "go: updates to go.mod needed")}
	s := CachedScanner(next, newFileCache(t), nil, "go", 0)

	for i := 0; i < 2; i++ {
		_, err := s.Scan(ctx, dir)
		assert.True(t, errors.Is(err, errors.ErrCodeScanFailed))
	}
	assert.Equal(t, 2, next.calls)

	next.err = nil
	got, err := s.Scan(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, sample, got)
}

func TestCachedScannerWithoutGoMod(t *testing.T) {
	ctx := context.Background()
	next := &countingScanner{}
	s := CachedScanner(next, newFileCache(t), nil, "go", 0)

	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		_, err := s.Scan(ctx, dir)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, next.calls)
}

func TestCachedScannerScopedKeyer(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeModule(t, dir, "module modA\n", "")

	c := newFileCache(t)
	next := &countingScanner{}

	plain := CachedScanner(next, c, cache.NewDefaultKeyer(), "go", 0)
	scoped := CachedScanner(next, c, cache.NewScopedKeyer(cache.NewDefaultKeyer(), "modgraph:"), "go", 0)

	_, err := plain.Scan(ctx, dir)
	require.NoError(t, err)
	_, err = scoped.Scan(ctx, dir)
	require.NoError(t, err)
	_, err = scoped.Scan(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls, "prefixed keys live beside unprefixed ones")
}

func TestLoadThroughCachedScanner(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeModule(t, dir, "module modA\n", "")

	next := &countingScanner{}
	s := CachedScanner(next, newFileCache(t), nil, "go", 0)

	first, err := Load(ctx, s, dir)
	require.NoError(t, err)
	second, err := Load(ctx, s, dir)
	require.NoError(t, err)

	assert.Equal(t, first.EdgeCount(), second.EdgeCount())
	assert.Equal(t, 1, next.calls)
}
