// Package config loads yamlviz settings.
//
// Settings come from three layers, later ones winning:
//
//  1. built-in defaults
//  2. a yamlviz.toml file, found by walking up from the working directory
//     unless a path is given
//  3. YAMLVIZ_* environment variables, after loading .env files from the
//     working directory and the config file's directory
//
// A minimal yamlviz.toml:
//
//	[graph-types]
//	dirs = ["./graph-types"]
//
//	[cache]
//	backend = "file"
//
//	[server]
//	addr = ":8080"
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/matzehuels/yamlviz/pkg/cache"
	"github.com/matzehuels/yamlviz/pkg/transform"
)

// FileName is the config file looked up by Find.
const FileName = "yamlviz.toml"

// Config is the merged configuration.
type Config struct {
	GraphTypes GraphTypes `toml:"graph-types"`
	Transform  Transform  `toml:"transform"`
	Cache      Cache      `toml:"cache"`
	Server     Server     `toml:"server"`

	// File is the config file that was read, if any.
	File string `toml:"-"`
}

// GraphTypes configure where user graph types live.
type GraphTypes struct {
	Dirs []string `toml:"dirs"`
}

// Transform configures the snippet runtime.
type Transform struct {
	Timeout Duration `toml:"timeout"`
}

// Cache selects the pipeline cache backend.
type Cache struct {
	Backend  string `toml:"backend"`
	Dir      string `toml:"dir"`
	Entries  int    `toml:"entries"`
	RedisURL string `toml:"redis-url"`
	Prefix   string `toml:"prefix"`
}

// Server configures `yamlviz serve`.
type Server struct {
	Addr      string `toml:"addr"`
	Workspace string `toml:"workspace"`
}

// Duration is a time.Duration written as a string such as "250ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Transform: Transform{Timeout: Duration{transform.DefaultTimeout}},
		Cache: Cache{
			Backend: cache.BackendFile,
			Entries: cache.DefaultMemoryEntries,
			Prefix:  "yamlviz:",
		},
		Server: Server{Addr: "127.0.0.1:8080", Workspace: "."},
	}
}

// Find walks up from startDir looking for FileName.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("resolve %s: %w", startDir, err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !stderrors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("stat %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

// Load reads the configuration. An empty path searches for FileName from
// the working directory; a missing file then just means defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		found, ok, err := Find(".")
		if err != nil {
			return nil, err
		}
		if ok {
			path = found
		}
	}

	cfg := Default()
	loadDotEnv(".")
	if path != "" {
		if err := cfg.decodeFile(path); err != nil {
			return nil, err
		}
		loadDotEnv(filepath.Dir(path))
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads dir/.env without overriding variables already set.
func loadDotEnv(dir string) {
	name := filepath.Join(dir, ".env")
	if _, err := os.Stat(name); err != nil {
		return
	}
	_ = godotenv.Load(name)
}

func (c *Config) decodeFile(path string) error {
	meta, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("%s: parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}

	base := filepath.Dir(path)
	for i, dir := range c.GraphTypes.Dirs {
		c.GraphTypes.Dirs[i] = relativeTo(base, dir)
	}
	if meta.IsDefined("cache", "dir") {
		c.Cache.Dir = relativeTo(base, c.Cache.Dir)
	}
	if meta.IsDefined("server", "workspace") {
		c.Server.Workspace = relativeTo(base, c.Server.Workspace)
	}
	c.File = path
	return nil
}

func relativeTo(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides settings from YAMLVIZ_* variables.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup("YAMLVIZ_" + key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("GRAPH_TYPES"); ok {
		c.GraphTypes.Dirs = filepath.SplitList(v)
	}
	if v, ok := get("TRANSFORM_TIMEOUT"); ok {
		if err := c.Transform.Timeout.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("YAMLVIZ_TRANSFORM_TIMEOUT: %w", err)
		}
	}
	if v, ok := get("CACHE"); ok {
		c.Cache.Backend = v
	}
	if v, ok := get("CACHE_DIR"); ok {
		c.Cache.Dir = v
	}
	if v, ok := get("CACHE_ENTRIES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("YAMLVIZ_CACHE_ENTRIES: %w", err)
		}
		c.Cache.Entries = n
	}
	if v, ok := get("REDIS_URL"); ok {
		c.Cache.RedisURL = v
	}
	if v, ok := get("CACHE_PREFIX"); ok {
		c.Cache.Prefix = v
	}
	if v, ok := get("ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := get("WORKSPACE"); ok {
		c.Server.Workspace = v
	}
	return nil
}

// Validate checks the merged settings.
func (c *Config) Validate() error {
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	switch c.Cache.Backend {
	case "", cache.BackendNone, cache.BackendFile, cache.BackendMemory:
	case cache.BackendRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache backend redis needs a redis-url")
		}
	default:
		return fmt.Errorf("invalid cache backend %q (must be one of: none, file, memory, redis)", c.Cache.Backend)
	}
	if c.Cache.Entries < 0 {
		return fmt.Errorf("cache entries must not be negative")
	}
	if c.Transform.Timeout.Duration <= 0 {
		return fmt.Errorf("transform timeout must be positive")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr is required")
	}
	return nil
}

// CacheSettings converts the cache section for cache.Open.
func (c *Config) CacheSettings() cache.Settings {
	return cache.Settings{
		Backend:  c.Cache.Backend,
		Dir:      c.Cache.Dir,
		Entries:  c.Cache.Entries,
		RedisURL: c.Cache.RedisURL,
		Prefix:   c.Cache.Prefix,
	}
}
