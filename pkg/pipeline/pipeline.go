// Package pipeline runs the resolve → parse → convert → render sequence
// shared by the CLI and the server.
//
// # Stages
//
//  1. Resolve: pick the graph type for a document (explicit id, the
//     document's graph-type key, or its file name)
//  2. Parse: read the YAML with source positions
//  3. Convert: validate, map, transform and render diagram text
//  4. Render: produce output artifacts (Mermaid, JSON, DOT, SVG, PNG, PDF)
//
// Conversion results and artifacts are cached by content hash, so an
// unchanged document is never converted twice.
//
// # Usage
//
//	types, _, err := pipeline.LoadGraphTypes(ctx, []string{"./graph-types"}, logger)
//	runner := pipeline.NewRunner(types, engine.New(), c, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Path:    "deploy.flow.yaml",
//	    Text:    text,
//	    Formats: []string{"mermaid", "svg"},
//	})
//	svg := result.Artifacts["svg"]
package pipeline

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/yamlviz/pkg/cache"
	"github.com/matzehuels/yamlviz/pkg/graph"
	"github.com/matzehuels/yamlviz/pkg/graphtype"
	"github.com/matzehuels/yamlviz/pkg/yamlcst"
)

// Output formats.
const (
	FormatMermaid = "mermaid"
	FormatJSON    = "json"
	FormatDOT     = "dot"
	FormatSVG     = "svg"
	FormatPNG     = "png"
	FormatPDF     = "pdf"
)

// DefaultFormat is used when Options.Formats is empty.
const DefaultFormat = FormatMermaid

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatMermaid: true,
	FormatJSON:    true,
	FormatDOT:     true,
	FormatSVG:     true,
	FormatPNG:     true,
	FormatPDF:     true,
}

// Options configure one pipeline run. The struct doubles as the body of
// the server's convert endpoint.
type Options struct {
	// Path is the document's file name. It is used for graph type
	// resolution by pattern and may be empty for in-memory documents.
	Path string `json:"path,omitempty"`

	// Text is the document source. When empty, Path is read from disk.
	Text []byte `json:"-"`

	// GraphType forces a graph type ("flowchart" or "flowchart@v1")
	// instead of resolving one from the document.
	GraphType string `json:"graphType,omitempty"`

	Formats  []string `json:"formats,omitempty"`
	Detailed bool     `json:"detailed,omitempty"` // DOT labels include annotations
	Scale    float64  `json:"scale,omitempty"`    // PNG scale factor
	Refresh  bool     `json:"refresh,omitempty"`  // bypass the cache

	Logger *log.Logger `json:"-"`

	validated bool
}

// Result is the outcome of a pipeline run.
type Result struct {
	Document    *yamlcst.Document
	GraphType   *graphtype.GraphType
	Conversion  *graph.Result
	ContentHash string
	Artifacts   map[string][]byte
	Stats       Stats
	CacheInfo   CacheInfo
}

// Stats hold timings and sizes of a run.
type Stats struct {
	NodeCount    int
	EdgeCount    int
	ErrorCount   int
	WarningCount int
	ParseTime    time.Duration
	ConvertTime  time.Duration
	RenderTime   time.Duration
}

// CacheInfo reports which stages were served from the cache.
type CacheInfo struct {
	ConvertHit bool `json:"convertHit"`
	RenderHit  bool `json:"renderHit"`
}

// ValidateFormat checks that format is supported.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return fmt.Errorf("invalid format: %q (must be one of: mermaid, json, dot, svg, png, pdf)", format)
	}
	return nil
}

// ValidateFormats checks every format.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

// ValidateAndSetDefaults checks required fields and fills in defaults. It is
// idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Path == "" && len(o.Text) == 0 {
		return fmt.Errorf("path or text is required")
	}
	for i, f := range o.Formats {
		o.Formats[i] = strings.ToLower(strings.TrimSpace(f))
	}
	if len(o.Formats) == 0 {
		o.Formats = []string{DefaultFormat}
	}
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if o.Scale <= 0 {
		o.Scale = 2
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// ArtifactKeyOpts returns the cache key options for one format.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	opts := cache.ArtifactKeyOpts{Format: format}
	switch format {
	case FormatDOT, FormatSVG, FormatPDF:
		opts.Detailed = o.Detailed
	case FormatPNG:
		opts.Detailed = o.Detailed
		opts.Format = fmt.Sprintf("%s@%g", format, o.Scale)
	}
	return opts
}
