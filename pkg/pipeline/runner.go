package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/yamlviz/pkg/cache"
	"github.com/matzehuels/yamlviz/pkg/engine"
	"github.com/matzehuels/yamlviz/pkg/graph"
	"github.com/matzehuels/yamlviz/pkg/graphtype"
	"github.com/matzehuels/yamlviz/pkg/observability"
	"github.com/matzehuels/yamlviz/pkg/yamlcst"
)

// Runner executes the pipeline with caching. It keeps no per-run state, so
// one Runner can serve many goroutines.
type Runner struct {
	Types  *graphtype.Registry
	Engine *engine.Engine
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner. A nil engine, cache, keyer or logger is
// replaced by the default engine, a NullCache, the DefaultKeyer and a
// discard logger.
func NewRunner(types *graphtype.Registry, eng *engine.Engine, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if eng == nil {
		eng = engine.New()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Runner{Types: types, Engine: eng, Cache: c, Keyer: keyer, Logger: logger}
}

// Execute runs resolve → parse → convert → render.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	text, err := ReadSource(opts)
	if err != nil {
		return nil, err
	}
	gt, err := Resolve(r.Types, text, opts)
	if err != nil {
		return nil, err
	}

	result := &Result{GraphType: gt, ContentHash: cache.Hash(text)}

	parseStart := time.Now()
	doc, err := Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	result.Document = doc
	result.Stats.ParseTime = time.Since(parseStart)

	convertStart := time.Now()
	res, hit, err := r.ConvertWithCacheInfo(ctx, doc, gt, opts.Refresh)
	if err != nil {
		return nil, fmt.Errorf("convert: %w", err)
	}
	result.Conversion = res
	result.CacheInfo.ConvertHit = hit
	result.Stats.ConvertTime = time.Since(convertStart)
	result.Stats.NodeCount = len(res.Nodes)
	result.Stats.EdgeCount = len(res.Edges)
	result.Stats.ErrorCount = len(res.Errors)
	result.Stats.WarningCount = len(res.Warnings)

	opts.Logger.Info("converted document",
		"graphType", gt.Key(),
		"nodes", result.Stats.NodeCount,
		"edges", result.Stats.EdgeCount,
		"errors", result.Stats.ErrorCount,
		"cached", hit,
		"duration", result.Stats.ConvertTime)

	renderStart := time.Now()
	artifacts, renderHit, err := r.RenderWithCacheInfo(ctx, res, gt, opts)
	if err != nil {
		return nil, err
	}
	result.Artifacts = artifacts
	result.CacheInfo.RenderHit = renderHit
	result.Stats.RenderTime = time.Since(renderStart)

	opts.Logger.Debug("rendered outputs", "formats", opts.Formats, "cached", renderHit, "duration", result.Stats.RenderTime)
	return result, nil
}

// ConvertWithCacheInfo converts doc, serving the result from the cache when
// the same text was converted with the same graph type contents before.
func (r *Runner) ConvertWithCacheInfo(ctx context.Context, doc *yamlcst.Document, gt *graphtype.GraphType, refresh bool) (*graph.Result, bool, error) {
	key := r.Keyer.ResultKey(cache.Hash(doc.Serialize()), cache.ResultKeyOpts{
		GraphType: gt.Key(),
		Source:    gt.Source,
		Digest:    gt.Fingerprint(),
	})

	if !refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err != nil {
			r.Logger.Warn("cache read failed", "err", err)
		} else if hit {
			if res, err := graph.Decode(data); err == nil {
				observability.Cache().OnCacheHit(ctx, "result")
				return res, true, nil
			}
		}
		observability.Cache().OnCacheMiss(ctx, "result")
	}

	observability.Pipeline().OnConvertStart(ctx, gt.Key())
	start := time.Now()
	res, err := r.Engine.Convert(ctx, doc, gt)
	nodes := 0
	if res != nil {
		nodes = len(res.Nodes)
	}
	observability.Pipeline().OnConvertComplete(ctx, gt.Key(), nodes, time.Since(start), err)
	if err != nil {
		return nil, false, err
	}

	if data, err := graph.Encode(res); err == nil {
		if err := r.Cache.Set(ctx, key, data, cache.TTLResult); err != nil {
			r.Logger.Warn("cache write failed", "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "result", len(data))
		}
	}
	return res, false, nil
}

// Convert is ConvertWithCacheInfo without the hit flag.
func (r *Runner) Convert(ctx context.Context, doc *yamlcst.Document, gt *graphtype.GraphType) (*graph.Result, error) {
	res, _, err := r.ConvertWithCacheInfo(ctx, doc, gt, false)
	return res, err
}

// RenderWithCacheInfo renders the requested formats. Graphviz artifacts
// are cached by result hash; Mermaid text and JSON are cheaper to rebuild
// than to fetch. The hit flag is true when no Graphviz format had to be
// drawn.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, res *graph.Result, gt *graphtype.GraphType, opts Options) (map[string][]byte, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, err
	}
	encoded, err := graph.Encode(res)
	if err != nil {
		return nil, false, fmt.Errorf("encode result for cache key: %w", err)
	}
	resultHash := cache.Hash(encoded)
	key := func(format string) string {
		return r.Keyer.ArtifactKey(resultHash, opts.ArtifactKeyOpts(format))
	}

	artifacts := make(map[string][]byte, len(opts.Formats))
	var missing []string
	for _, format := range opts.Formats {
		if !cacheable(format) {
			missing = append(missing, format)
			continue
		}
		if !opts.Refresh {
			if data, hit, err := r.Cache.Get(ctx, key(format)); err == nil && hit {
				observability.Cache().OnCacheHit(ctx, "artifact")
				artifacts[format] = data
				continue
			}
			observability.Cache().OnCacheMiss(ctx, "artifact")
		}
		missing = append(missing, format)
	}

	hit := true
	if len(missing) > 0 {
		sub := opts
		sub.Formats = missing
		rendered, err := Render(ctx, res, gt, sub)
		if err != nil {
			return nil, false, err
		}
		for format, data := range rendered {
			artifacts[format] = data
			if !cacheable(format) {
				continue
			}
			hit = false
			if err := r.Cache.Set(ctx, key(format), data, cache.TTLArtifact); err == nil {
				observability.Cache().OnCacheSet(ctx, "artifact", len(data))
			}
		}
	}
	return artifacts, hit, nil
}

func cacheable(format string) bool {
	return format != FormatMermaid && format != FormatJSON
}

// Close releases the cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
