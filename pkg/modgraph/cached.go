package modgraph

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/matzehuels/modgraph/pkg/cache"
	"github.com/matzehuels/modgraph/pkg/observability"
)

// CachedScanner wraps next with a cache of its output. Entries are keyed by
// the absolute directory, goCommand and a hash of the module's go.mod and
// go.sum, so editing either file invalidates them.
//
// A directory without a readable go.mod is scanned uncached. Cache failures
// degrade to calling next, and failed scans are not stored.
func CachedScanner(next Scanner, c cache.Cache, keyer cache.Keyer, goCommand string, ttl time.Duration) Scanner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if goCommand == "" {
		goCommand = "go"
	}

	return ScannerFunc(func(ctx context.Context, dir string) (string, error) {
		key, ok := scanKey(keyer, dir, goCommand)
		if !ok {
			return next.Scan(ctx, dir)
		}

		if data, hit, err := c.Get(ctx, key); err == nil && hit {
			observability.Cache().OnCacheHit(ctx, "graph")
			return string(data), nil
		}
		observability.Cache().OnCacheMiss(ctx, "graph")

		text, err := next.Scan(ctx, dir)
		if err != nil {
			return "", err
		}
		if ctx.Err() == nil {
			if err := c.Set(ctx, key, []byte(text), ttl); err == nil {
				observability.Cache().OnCacheSet(ctx, "graph", len(text))
			}
		}
		return text, nil
	})
}

func scanKey(keyer cache.Keyer, dir, goCommand string) (string, bool) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	mod, err := os.ReadFile(filepath.Join(abs, "go.mod"))
	if err != nil {
		return "", false
	}
	// go.sum is optional; a module without requirements has none.
	sum, _ := os.ReadFile(filepath.Join(abs, "go.sum"))

	manifest := make([]byte, 0, len(mod)+len(sum)+1)
	manifest = append(manifest, mod...)
	manifest = append(manifest, 0)
	manifest = append(manifest, sum...)

	return keyer.GraphKey(abs, cache.GraphKeyOpts{
		ManifestHash: cache.Hash(manifest),
		GoCommand:    goCommand,
	}), true
}
