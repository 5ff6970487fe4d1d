package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/yamlviz/pkg/cache"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 250*time.Millisecond, cfg.Transform.Timeout.Duration)
	assert.Equal(t, cache.BackendFile, cfg.Cache.Backend)
	assert.Empty(t, cfg.GraphTypes.Dirs)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	writeFile(t, path, `
[graph-types]
dirs = ["graph-types", "/opt/shared"]

[transform]
timeout = "1s"

[cache]
backend = "Memory"
entries = 64

[server]
addr = ":9090"
workspace = "docs"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, []string{filepath.Join(dir, "graph-types"), "/opt/shared"}, cfg.GraphTypes.Dirs)
	assert.Equal(t, time.Second, cfg.Transform.Timeout.Duration)
	assert.Equal(t, cache.BackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 64, cfg.Cache.Entries)
	assert.Equal(t, "yamlviz:", cfg.Cache.Prefix, "defaults survive")
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, filepath.Join(dir, "docs"), cfg.Server.Workspace)

	s := cfg.CacheSettings()
	assert.Equal(t, cache.Settings{Backend: "memory", Entries: 64, Prefix: "yamlviz:"}, s)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "[cache\n"},
		{"unknown key", "[cache]\nbackend = \"file\"\ncolour = \"red\"\n"},
		{"bad backend", "[cache]\nbackend = \"s3\"\n"},
		{"redis without url", "[cache]\nbackend = \"redis\"\n"},
		{"bad duration", "[transform]\ntimeout = \"soon\"\n"},
		{"zero timeout", "[transform]\ntimeout = \"0s\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".toml")
			writeFile(t, path, tt.content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"YAMLVIZ_GRAPH_TYPES":       "a" + string(os.PathListSeparator) + "b",
		"YAMLVIZ_TRANSFORM_TIMEOUT": "100ms",
		"YAMLVIZ_CACHE":             "redis",
		"YAMLVIZ_REDIS_URL":         "redis://localhost:6379/1",
		"YAMLVIZ_CACHE_ENTRIES":     "12",
		"YAMLVIZ_ADDR":              "  ",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"a", "b"}, cfg.GraphTypes.Dirs)
	assert.Equal(t, 100*time.Millisecond, cfg.Transform.Timeout.Duration)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "redis://localhost:6379/1", cfg.Cache.RedisURL)
	assert.Equal(t, 12, cfg.Cache.Entries)
	assert.Equal(t, Default().Server.Addr, cfg.Server.Addr, "blank values are ignored")

	env["YAMLVIZ_CACHE_ENTRIES"] = "many"
	assert.Error(t, Default().ApplyEnv(lookup))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	writeFile(t, path, "[cache]\nbackend = \"none\"\n")
	writeFile(t, filepath.Join(dir, ".env"), "YAMLVIZ_CACHE_PREFIX=dotenv:\n")
	t.Cleanup(func() { os.Unsetenv("YAMLVIZ_CACHE_PREFIX") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "none", cfg.Cache.Backend)
	assert.Equal(t, "dotenv:", cfg.Cache.Prefix)
}

func TestFind(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), "")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	path, ok, err := Find(nested)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(root, FileName), path)
}
