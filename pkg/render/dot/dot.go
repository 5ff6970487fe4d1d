// Package dot renders converted diagrams as Graphviz graphs.
//
// [ToDOT] writes DOT source for a [render.Diagram]; [RenderSVG] lays it out
// with the embedded Graphviz library. [Renderer] plugs DOT output into a
// [render.Registry] so mappings can select it as their custom renderer.
package dot

import (
	"bytes"
	"context"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/yamlviz/pkg/graph"
	"github.com/matzehuels/yamlviz/pkg/render"
)

// Options configures DOT generation.
type Options struct {
	// Detailed appends annotations and node metadata to labels.
	Detailed bool
}

// Renderer is a render.Renderer producing DOT source.
type Renderer struct {
	Options Options
}

// Render implements render.Renderer.
func (r Renderer) Render(_ context.Context, d *render.Diagram) (string, error) {
	return ToDOT(d, r.Options), nil
}

var graphvizShapes = map[string]string{
	"rect":       "box",
	"round":      "box",
	"stadium":    "box",
	"circle":     "circle",
	"diamond":    "diamond",
	"hexagon":    "hexagon",
	"subroutine": "component",
	"database":   "cylinder",
}

// ToDOT converts a diagram to Graphviz DOT format. Connector nodes become
// points, link styles map onto edge styles and style classes onto fill and
// stroke colors taken from the diagram's class definitions.
func ToDOT(d *render.Diagram, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	fmt.Fprintf(&buf, "  rankdir=%s;\n", rankdir(d.Direction))
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, n := range d.Nodes {
		attrs := fmtAttrs(n, fmtLabel(n, opts.Detailed), d.ClassDefs)
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	for _, e := range d.Edges {
		var attrs []string
		if e.Label != "" {
			attrs = append(attrs, fmt.Sprintf("label=%q", e.Label))
		}
		attrs = append(attrs, edgeStyle(e.Arrow)...)
		if len(attrs) == 0 {
			fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", e.From, e.To, strings.Join(attrs, ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func fmtLabel(n graph.Node, detailed bool) string {
	label := n.DisplayLabel()
	if !detailed {
		return label
	}
	var parts []string
	if n.Annotation != "" {
		parts = append(parts, n.Annotation)
	}
	for _, k := range slices.Sorted(maps.Keys(n.Metadata)) {
		parts = append(parts, fmt.Sprintf("%s: %v", k, n.Metadata[k]))
	}
	if len(parts) == 0 {
		return label
	}
	return label + "\n" + strings.Join(parts, "\n")
}

func fmtAttrs(n graph.Node, label string, classDefs map[string]string) []string {
	switch n.Kind {
	case graph.KindInitial:
		return []string{`label=""`, "shape=point", "width=0.2", "fillcolor=black"}
	case graph.KindFinal:
		return []string{`label=""`, "shape=doublecircle", "width=0.15", "fillcolor=black"}
	}

	attrs := []string{fmt.Sprintf("label=%q", label)}
	if shape, ok := graphvizShapes[n.Shape]; ok && shape != "box" {
		attrs = append(attrs, "shape="+shape, `style="filled"`)
	}
	if n.Shape == "rect" {
		attrs = append(attrs, `style="filled"`)
	}
	if props := classProps(classDefs[n.Style]); len(props) > 0 {
		if fill := props["fill"]; fill != "" {
			attrs = append(attrs, fmt.Sprintf("fillcolor=%q", fill))
		}
		if stroke := props["stroke"]; stroke != "" {
			attrs = append(attrs, fmt.Sprintf("color=%q", stroke))
		}
		if color := props["color"]; color != "" {
			attrs = append(attrs, fmt.Sprintf("fontcolor=%q", color))
		}
	}
	return attrs
}

// classProps splits a classDef body ("fill:#fff,stroke:#000") into its
// properties.
func classProps(def string) map[string]string {
	if def == "" {
		return nil
	}
	out := make(map[string]string)
	for _, part := range strings.Split(def, ",") {
		if k, v, ok := strings.Cut(part, ":"); ok {
			out[k] = strings.ReplaceAll(v, `\`, "")
		}
	}
	return out
}

func edgeStyle(arrow string) []string {
	switch {
	case strings.Contains(arrow, "."):
		return []string{"style=dashed"}
	case strings.Contains(arrow, "="):
		return []string{"penwidth=2"}
	case arrow == "---" || arrow == "--":
		return []string{"arrowhead=none"}
	}
	return nil
}

func rankdir(dir string) string {
	switch dir = strings.ToUpper(dir); dir {
	case "BT", "LR", "RL":
		return dir
	}
	return "TB"
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
// Returns the SVG bytes ready for display or further conversion with [render.ToPDF] or [render.ToPNG].
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root element so the SVG scales from the
// origin at its natural size.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(root))
}

// RenderPDF renders a DOT graph as PDF via SVG conversion.
func RenderPDF(ctx context.Context, dot string) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPDF(ctx, svg)
}

// RenderPNG renders a DOT graph as PNG via SVG conversion.
// A scale of 2.0 produces a 2x resolution image suitable for high-DPI displays.
func RenderPNG(ctx context.Context, dot string, scale float64) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPNG(ctx, svg, scale)
}
