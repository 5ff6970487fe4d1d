package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/matzehuels/yamlviz/pkg/engine"
	"github.com/matzehuels/yamlviz/pkg/graph"
	"github.com/matzehuels/yamlviz/pkg/graphtype"
	"github.com/matzehuels/yamlviz/pkg/observability"
	"github.com/matzehuels/yamlviz/pkg/render/dot"
)

// Render produces one artifact per requested format from a conversion
// result. Mermaid output is the diagram text the conversion already
// produced; the Graphviz formats are drawn from the same nodes and edges.
func Render(ctx context.Context, res *graph.Result, gt *graphtype.GraphType, opts Options) (map[string][]byte, error) {
	artifacts := make(map[string][]byte, len(opts.Formats))
	dotOpts := dot.Options{Detailed: opts.Detailed}

	var dotText string
	dotSource := func() string {
		if dotText == "" {
			dotText = dot.ToDOT(engine.Diagram(res, gt), dotOpts)
		}
		return dotText
	}

	for _, format := range opts.Formats {
		start := time.Now()
		var (
			data []byte
			err  error
		)
		switch format {
		case FormatMermaid:
			data = []byte(res.DiagramText)
		case FormatJSON:
			data, err = graph.Marshal(res)
		case FormatDOT:
			data = []byte(dotSource())
		case FormatSVG:
			data, err = dot.RenderSVG(ctx, dotSource())
		case FormatPNG:
			data, err = dot.RenderPNG(ctx, dotSource(), opts.Scale)
		case FormatPDF:
			data, err = dot.RenderPDF(ctx, dotSource())
		default:
			err = ValidateFormat(format)
		}
		observability.Pipeline().OnRenderComplete(ctx, format, time.Since(start), err)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}
	return artifacts, nil
}
