package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/yamlviz/pkg/buildinfo"
	"github.com/matzehuels/yamlviz/pkg/cache"
	"github.com/matzehuels/yamlviz/pkg/config"
	"github.com/matzehuels/yamlviz/pkg/engine"
	"github.com/matzehuels/yamlviz/pkg/graphtype"
	"github.com/matzehuels/yamlviz/pkg/pipeline"
	"github.com/matzehuels/yamlviz/pkg/render"
	"github.com/matzehuels/yamlviz/pkg/render/dot"
	"github.com/matzehuels/yamlviz/pkg/transform"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "yamlviz"

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
	cfg        *config.Config
}

// New creates a new CLI instance with a timestamped logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "yamlviz turns YAML documents into live diagrams",
		Long: `yamlviz converts YAML documents into Mermaid diagrams according to
pluggable graph types, validates them against the graph type's schema and
serves a live editing session over WebSocket.`,
		Version:       buildinfo.Resolved(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: nearest "+config.FileName+")")

	root.AddCommand(c.convertCommand())
	root.AddCommand(c.validateCommand())
	root.AddCommand(c.typesCommand())
	root.AddCommand(c.schemaCommand())
	root.AddCommand(c.editCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.browseCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Configuration
// =============================================================================

// loadConfig loads the configuration once per process.
func (c *CLI) loadConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.File != "" {
		c.Logger.Debug("loaded config", "file", cfg.File)
	}
	c.cfg = cfg
	return cfg, nil
}

// =============================================================================
// Runner Factory
// =============================================================================

// graphTypes loads the builtin graph types plus the configured folders.
func (c *CLI) graphTypes(ctx context.Context, extra []string) (*graphtype.Registry, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	dirs := append(append([]string(nil), cfg.GraphTypes.Dirs...), extra...)
	types, _, err := pipeline.LoadGraphTypes(ctx, dirs, c.Logger)
	return types, err
}

// newEngine creates a conversion engine honouring the configured transform
// timeout. The "dot" custom renderer lets graph types emit Graphviz source
// instead of Mermaid.
func (c *CLI) newEngine() (*engine.Engine, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	renderers := render.NewRegistry()
	if err := renderers.Register("dot", dot.Renderer{}); err != nil {
		return nil, err
	}
	return engine.New(
		engine.WithRuntime(transform.NewGojaRuntime(cfg.Transform.Timeout.Duration)),
		engine.WithRenderers(renderers),
		engine.WithLogger(c.Logger),
	), nil
}

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, types *graphtype.Registry, noCache bool) (*pipeline.Runner, error) {
	eng, err := c.newEngine()
	if err != nil {
		return nil, err
	}
	store, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(types, eng, store, nil, c.Logger), nil
}

// newCache opens the configured cache backend. A backend that cannot be
// opened degrades to no caching.
func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := cache.Open(ctx, cfg.CacheSettings())
	if err != nil {
		c.Logger.Warn("cache disabled", "backend", cfg.Cache.Backend, "err", err)
		return cache.NewNullCache(), nil
	}
	return store, nil
}

// cacheDir returns the file cache directory.
func (c *CLI) cacheDir() (string, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.Cache.Dir != "" {
		return cfg.Cache.Dir, nil
	}
	return cache.DefaultDir(), nil
}

// =============================================================================
// Options Helpers
// =============================================================================

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{pipeline.DefaultFormat}
	}
	var formats []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			formats = append(formats, f)
		}
	}
	return formats
}
