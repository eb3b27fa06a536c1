// Package config loads modgraph settings from a TOML file.
//
// The file lives at $XDG_CONFIG_HOME/modgraph/config.toml (or
// ~/.config/modgraph/config.toml) unless a path is given explicitly. Every
// setting is optional; command-line flags override the file.
//
//	listen = "127.0.0.1:7878"
//	go_command = "go"
//	max_nodes = 200
//	layout = "dot"
//	cancel_timeout = "10s"
//
//	[cache]
//	backend = "file"        # none, file, redis
//	ttl = "168h"
//
//	[archive]
//	backend = "sqlite"      # none, memory, file, redis, mongo, sqlite
//	sqlite_path = "/var/lib/modgraph/archives.db"
//	ttl = "720h"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/modgraph/pkg/errors"
)

const appName = "modgraph"

// Backend names.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
	BackendSQLite = "sqlite"
)

var (
	cacheBackends   = []string{BackendNone, BackendFile, BackendRedis}
	archiveBackends = []string{BackendNone, BackendMemory, BackendFile, BackendRedis, BackendMongo, BackendSQLite}
)

// Duration is a time.Duration written as a string ("1m30s") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the complete set of settings.
type Config struct {
	Listen        string   `toml:"listen"`
	GoCommand     string   `toml:"go_command"`
	MaxNodes      int      `toml:"max_nodes"`
	Layout        string   `toml:"layout"`
	CancelTimeout Duration `toml:"cancel_timeout"`

	Cache   CacheConfig   `toml:"cache"`
	Archive ArchiveConfig `toml:"archive"`
}

// CacheConfig selects where rendered images are cached.
type CacheConfig struct {
	Backend  string   `toml:"backend"`
	Dir      string   `toml:"dir"`
	RedisURL string   `toml:"redis_url"`
	TTL      Duration `toml:"ttl"`
}

// ArchiveConfig selects where preview view state is kept between sessions.
type ArchiveConfig struct {
	Backend       string   `toml:"backend"`
	Dir           string   `toml:"dir"`
	RedisURL      string   `toml:"redis_url"`
	RedisPrefix   string   `toml:"redis_prefix"`
	MongoURI      string   `toml:"mongo_uri"`
	MongoDatabase string   `toml:"mongo_database"`
	SQLitePath    string   `toml:"sqlite_path"`
	TTL           Duration `toml:"ttl"`
}

// Default returns the settings used when no file is present.
func Default() Config {
	return Config{
		Listen:        "127.0.0.1:7878",
		GoCommand:     "go",
		MaxNodes:      200,
		CancelTimeout: Duration{10 * time.Second},
		Cache: CacheConfig{
			Backend: BackendFile,
			TTL:     Duration{7 * 24 * time.Hour},
		},
		Archive: ArchiveConfig{
			Backend: BackendFile,
			TTL:     Duration{30 * 24 * time.Hour},
		},
	}
}

// DefaultPath returns the config file location following the XDG convention.
func DefaultPath() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// Load reads the config file at path on top of [Default]. An empty path uses
// [DefaultPath], where a missing file is not an error. Unknown keys are
// rejected so typos do not go unnoticed.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Default(), nil
		}
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "load %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, errors.New(errors.ErrCodeInvalidConfig, "%s: unknown settings: %s", path, strings.Join(keys, ", "))
	}
	return cfg, cfg.Validate()
}

// Validate checks that backends are known and have what they need.
func (c Config) Validate() error {
	if c.MaxNodes < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "max_nodes must not be negative")
	}
	if c.CancelTimeout.Duration < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "cancel_timeout must not be negative")
	}

	if !slices.Contains(cacheBackends, c.Cache.Backend) {
		return errors.New(errors.ErrCodeInvalidConfig, "unknown cache backend %q (want one of %s)",
			c.Cache.Backend, strings.Join(cacheBackends, ", "))
	}
	if c.Cache.Backend == BackendRedis && c.Cache.RedisURL == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "cache backend redis needs cache.redis_url")
	}

	a := c.Archive
	if !slices.Contains(archiveBackends, a.Backend) {
		return errors.New(errors.ErrCodeInvalidConfig, "unknown archive backend %q (want one of %s)",
			a.Backend, strings.Join(archiveBackends, ", "))
	}
	switch {
	case a.Backend == BackendRedis && a.RedisURL == "":
		return errors.New(errors.ErrCodeInvalidConfig, "archive backend redis needs archive.redis_url")
	case a.Backend == BackendMongo && a.MongoURI == "":
		return errors.New(errors.ErrCodeInvalidConfig, "archive backend mongo needs archive.mongo_uri")
	}
	return nil
}

// Write saves cfg to path as TOML, creating parent directories.
func Write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}
