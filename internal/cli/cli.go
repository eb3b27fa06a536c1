package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/modgraph/internal/config"
	"github.com/matzehuels/modgraph/pkg/archive"
	"github.com/matzehuels/modgraph/pkg/cache"
	"github.com/matzehuels/modgraph/pkg/modgraph"
	"github.com/matzehuels/modgraph/pkg/render"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "modgraph"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	config     *config.Config
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// loadConfig reads the config file once. Commands apply their flags on top
// of the returned copy.
func (c *CLI) loadConfig() (config.Config, error) {
	if c.config != nil {
		return *c.config, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return cfg, err
	}
	c.config = &cfg
	return cfg, nil
}

// =============================================================================
// Backends
// =============================================================================

// newScanner returns `go mod graph` behind the scan cache.
func newScanner(cfg config.Config, c cache.Cache) modgraph.Scanner {
	return modgraph.CachedScanner(modgraph.NewGoModGraph(cfg.GoCommand), c, newKeyer(cfg.Cache), cfg.GoCommand, cfg.Cache.TTL.Duration)
}

// newKeyer prefixes keys stored in Redis, which other tools may share.
func newKeyer(cfg config.CacheConfig) cache.Keyer {
	if cfg.Backend == config.BackendRedis {
		return cache.NewScopedKeyer(cache.NewDefaultKeyer(), appName+":")
	}
	return cache.NewDefaultKeyer()
}

// newCache opens the configured scan and render cache. A file cache that
// cannot be created degrades to no caching.
func newCache(ctx context.Context, cfg config.CacheConfig, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch cfg.Backend {
	case config.BackendNone:
		return cache.NewNullCache(), nil
	case config.BackendRedis:
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return rc, nil
	default:
		dir := cfg.Dir
		if dir == "" {
			d, err := cacheDir()
			if err != nil {
				return cache.NewNullCache(), nil
			}
			dir = d
		}
		fc, err := cache.NewFileCache(dir)
		if err != nil {
			return cache.NewNullCache(), nil
		}
		return fc, nil
	}
}

// newRenderer returns the Graphviz renderer behind the render cache.
func newRenderer(cfg config.Config, c cache.Cache) render.Func {
	gv := render.NewGraphviz(render.Options{Layout: cfg.Layout})
	return render.Cached(gv, c, newKeyer(cfg.Cache), cache.RenderKeyOpts{Layout: cfg.Layout}, cfg.Cache.TTL.Duration)
}

// newArchiveStore opens the configured view-state store. Nil means view
// state is not kept.
func newArchiveStore(ctx context.Context, cfg config.ArchiveConfig) (archive.Store, error) {
	switch cfg.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendMemory:
		return archive.NewMemoryStore(), nil
	case config.BackendRedis:
		return openStore(archive.NewRedisStore(ctx, cfg.RedisURL, cfg.RedisPrefix))
	case config.BackendMongo:
		return openStore(archive.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase, ""))
	case config.BackendSQLite:
		path := cfg.SQLitePath
		if path == "" {
			dir, err := dataDir()
			if err != nil {
				return nil, err
			}
			path = filepath.Join(dir, "archives.db")
		}
		return openStore(archive.NewSQLiteStore(path))
	default:
		dir := cfg.Dir
		if dir == "" {
			d, err := dataDir()
			if err != nil {
				return nil, err
			}
			dir = filepath.Join(d, "archives")
		}
		store, err := archive.NewFileStore(dir)
		if err != nil {
			return nil, err
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = store.Cleanup(ctx)
		}()
		return store, nil
	}
}

// openStore keeps a failed constructor's typed nil out of the interface.
func openStore[S archive.Store](s S, err error) (archive.Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/modgraph/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// dataDir returns the state directory using XDG standard (~/.local/share/modgraph/).
func dataDir() (string, error) {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", appName), nil
}
