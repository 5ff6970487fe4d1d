package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/yamlviz/pkg/graphtype"
	"github.com/matzehuels/yamlviz/pkg/mapping"
	"github.com/matzehuels/yamlviz/pkg/observability"
)

// LoadGraphTypes builds a registry from the builtin graph types and every
// graph type root in dirs. A graph type in dirs replaces a builtin one
// with the same id and version; two dirs defining the same pair conflict.
// Non-fatal loader warnings are returned alongside the registry.
func LoadGraphTypes(ctx context.Context, dirs []string, logger *log.Logger) (*graphtype.Registry, []string, error) {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	start := time.Now()
	reg, warnings, err := loadGraphTypes(ctx, dirs, logger)
	n := 0
	if reg != nil {
		n = reg.Len()
	}
	observability.Pipeline().OnLoadComplete(ctx, n, time.Since(start), err)
	return reg, warnings, err
}

func loadGraphTypes(ctx context.Context, dirs []string, logger *log.Logger) (*graphtype.Registry, []string, error) {
	builtin, err := graphtype.LoadBuiltin(ctx, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("load builtin graph types: %w", err)
	}
	warnings := append([]string(nil), builtin.Warnings...)

	var user []*graphtype.GraphType
	userKeys := make(map[string]bool)
	for _, dir := range dirs {
		res, err := graphtype.LoadAll(ctx, os.DirFS(dir), ".", mapping.DefaultParsers(), logger)
		if err != nil {
			return nil, warnings, fmt.Errorf("load graph types from %s: %w", dir, err)
		}
		warnings = append(warnings, res.Warnings...)
		for _, gt := range res.Types {
			gt.Source = filepath.Join(dir, filepath.FromSlash(gt.Source))
			userKeys[gt.Key()] = true
		}
		user = append(user, res.Types...)
	}

	reg := graphtype.NewRegistry()
	for _, gt := range builtin.Types {
		if userKeys[gt.Key()] {
			logger.Debug("builtin graph type overridden", "graphType", gt.Key())
			continue
		}
		if err := reg.Register(gt); err != nil {
			return nil, warnings, err
		}
	}
	if err := reg.RegisterAll(user); err != nil {
		return nil, warnings, err
	}
	for _, w := range warnings {
		logger.Warn(w)
	}
	logger.Info("loaded graph types", "count", reg.Len(), "dirs", len(dirs))
	return reg, warnings, nil
}

// RefreshGraphTypes reloads the builtin graph types and dirs into reg in
// place. Conversions that already resolved a graph type keep using it.
// When loading fails reg keeps its previous contents.
func RefreshGraphTypes(ctx context.Context, reg *graphtype.Registry, dirs []string, logger *log.Logger) ([]string, error) {
	fresh, warnings, err := LoadGraphTypes(ctx, dirs, logger)
	if err != nil {
		return warnings, err
	}
	if err := reg.Replace(fresh.List()); err != nil {
		return warnings, err
	}
	return warnings, nil
}
