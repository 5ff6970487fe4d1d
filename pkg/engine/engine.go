// Package engine converts YAML documents into diagrams and writes edits
// made on those diagrams back into the YAML text.
//
// An [Engine] is stateless: every call takes the current document and the
// graph type that governs it. [Engine.Convert] validates the document,
// extracts nodes and edges, applies style rules, annotations and transform
// snippets, renders diagram text and builds an outline. Conversion is
// best-effort; a document that fails validation still yields a diagram.
//
// The edit operations ([Engine.ApplyEdit], [Engine.AddNode],
// [Engine.RenameNode] and friends) locate their targets through the same
// extraction Convert uses, so node ids, not list positions, identify nodes.
// They return a new document and never modify the one passed in.
package engine

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/yamlviz/pkg/errors"
	"github.com/matzehuels/yamlviz/pkg/graph"
	"github.com/matzehuels/yamlviz/pkg/graphtype"
	"github.com/matzehuels/yamlviz/pkg/mapping"
	"github.com/matzehuels/yamlviz/pkg/observability"
	"github.com/matzehuels/yamlviz/pkg/render"
	"github.com/matzehuels/yamlviz/pkg/schema"
	"github.com/matzehuels/yamlviz/pkg/transform"
	"github.com/matzehuels/yamlviz/pkg/yamlcst"
)

// Engine runs conversions and edits. It is safe for concurrent use.
type Engine struct {
	runtime   transform.Runtime
	renderers *render.Registry
	logger    *log.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRuntime sets the snippet runtime used for mapping transforms.
func WithRuntime(rt transform.Runtime) Option { return func(e *Engine) { e.runtime = rt } }

// WithRenderers sets the registry consulted for custom renderers.
func WithRenderers(r *render.Registry) Option { return func(e *Engine) { e.renderers = r } }

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(e *Engine) { e.logger = l } }

// New creates an engine. Without options it runs transforms in a goja
// runtime with the default timeout, knows no custom renderers and discards
// log output.
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	if e.runtime == nil {
		e.runtime = transform.NewGojaRuntime(transform.DefaultTimeout)
	}
	if e.logger == nil {
		e.logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return e
}

// Convert turns doc into a diagram according to gt. Schema violations and
// unusable entries end up in the result's Errors; failing transforms and
// render problems in its Warnings. The error return is reserved for
// missing arguments and cancellation.
func (e *Engine) Convert(ctx context.Context, doc *yamlcst.Document, gt *graphtype.GraphType) (*graph.Result, error) {
	if doc == nil || gt == nil || gt.Mapping == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "convert needs a document and a graph type")
	}
	gm := gt.Mapping

	res := &graph.Result{
		GraphType:   gt.Key(),
		MermaidType: gm.Map.MermaidType,
		Direction:   direction(doc, gm),
		Nodes:       []graph.Node{},
		Edges:       []graph.Edge{},
		Errors:      []schema.ValidationError{},
	}

	// 1. validate, but keep going
	if gt.Schema != nil {
		res.Errors = append(res.Errors, schema.Validate(gt.Schema, doc)...)
	}

	// 2-3. nodes, connectors, edges
	x := extract(doc, gm)
	res.Errors = append(res.Errors, x.problems...)

	// 4-5. style rules and annotations
	for i := range x.nodes {
		decorate(&x.nodes[i], x.nodeItems[i], gm)
	}
	for i := range x.edges {
		if sr := gm.StyleRules; sr != nil {
			x.edges[i].Style = sr.Rules[scalarAt(x.edgeItems[i], sr.Field)]
		}
	}

	// 6. transforms
	if len(gm.Transforms) > 0 {
		results, failures := transform.Apply(ctx, e.runtime, gm.Transforms, doc, e.logger)
		res.Warnings = append(res.Warnings, merge(x, gm, results)...)
		for _, f := range failures {
			res.Warnings = append(res.Warnings, f.Error())
			observability.Pipeline().OnTransformFailure(ctx, res.GraphType)
		}
	}

	res.Nodes, res.Edges = connect(x, gm)

	// 7. render
	text, err := e.renderers.Render(ctx, gm.CustomRenderer, Diagram(res, gt))
	if err != nil {
		res.Warnings = append(res.Warnings, err.Error())
	}
	res.DiagramText = text

	// 8. outline
	res.TreeData = buildTree(doc, res.Nodes)

	schema.SortErrors(res.Errors)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.logger.Debug("converted", "graphType", res.GraphType, "nodes", len(res.Nodes), "edges", len(res.Edges),
		"errors", len(res.Errors), "warnings", len(res.Warnings))
	return res, nil
}

// decorate applies style rules and annotations to one node.
func decorate(n *graph.Node, item *yaml.Node, gm *mapping.GraphMapping) {
	if sr := gm.StyleRules; sr != nil {
		n.Style = sr.Rules[scalarAt(item, sr.Field)]
	}
	if an := gm.Annotations; an != nil {
		if v := yamlcst.Value(at(item, an.SourceField)); v != nil && v != "" {
			tmpl := an.Template
			if tmpl == "" {
				tmpl = "${value}"
			}
			n.Annotation = format(tmpl, item, v)
		}
	}
}

// merge folds transform results into the node or edge each one was
// computed for. A string result replaces the label; an object may set
// label, shape, style and annotation, and its other keys become metadata.
func merge(x *extraction, gm *mapping.GraphMapping, results []transform.Result) []string {
	nodes := make(map[string]*graph.Node, len(x.nodes))
	for i := range x.nodes {
		nodes[x.nodes[i].Path.String()] = &x.nodes[i]
	}
	edges := make(map[string]*graph.Edge, len(x.edges))
	for i := range x.edges {
		edges[x.edges[i].Path.String()] = &x.edges[i]
	}

	var warnings []string
	for _, r := range results {
		key := r.Path.String()
		switch {
		case nodes[key] != nil:
			n := nodes[key]
			n.Metadata = mergeValue(r, &n.Label, &n.Annotation, func(k string, v any) bool {
				switch k {
				case "shape":
					n.Shape = resolveShape(gm.NodeShapes, transform.Stringify(v))
				case "style":
					n.Style = transform.Stringify(v)
				default:
					return false
				}
				return true
			}, n.Metadata)
		case edges[key] != nil:
			ed := edges[key]
			ed.Metadata = mergeValue(r, &ed.Label, nil, func(k string, v any) bool {
				if k != "style" {
					return false
				}
				ed.Style = transform.Stringify(v)
				return true
			}, ed.Metadata)
		default:
			warnings = append(warnings, fmt.Sprintf("transform %d at %s: no node or edge at that path", r.Rule, key))
		}
	}
	return warnings
}

func mergeValue(r transform.Result, label, annotation *string, field func(string, any) bool, meta map[string]any) map[string]any {
	set := func(k string, v any) {
		if meta == nil {
			meta = make(map[string]any)
		}
		meta[k] = v
	}
	switch v := r.Value.(type) {
	case nil:
	case string:
		*label = v
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			switch {
			case k == "label":
				*label = transform.Stringify(v[k])
			case k == "annotation" && annotation != nil:
				*annotation = transform.Stringify(v[k])
			case field(k, v[k]):
			default:
				set(k, v[k])
			}
		}
	default:
		set(fmt.Sprintf("transform%d", r.Rule), v)
	}
	return meta
}

// connect adds the connector pseudo-nodes and their edges. The initial
// connector links to every node whose connector field is true, or to the
// first node when no field is declared; the final connector is linked from
// every node whose field is true.
func connect(x *extraction, gm *mapping.GraphMapping) ([]graph.Node, []graph.Edge) {
	ns := gm.NodeShapes
	nodes := make([]graph.Node, 0, len(x.nodes)+2)
	var edges []graph.Edge

	if c := ns.InitialConnector; c != nil {
		nodes = append(nodes, graph.Node{ID: c.ID, Label: c.Label, Shape: "circle", Kind: graph.KindInitial})
		for i, n := range x.nodes {
			if c.Field == "" && i > 0 {
				break
			}
			if c.Field == "" || flagged(x.nodeItems[i], c.Field) {
				edges = append(edges, connectorEdge(c.ID, n.ID, gm))
			}
		}
	}
	nodes = append(nodes, x.nodes...)
	edges = append(edges, x.edges...)
	if c := ns.FinalConnector; c != nil {
		nodes = append(nodes, graph.Node{ID: c.ID, Label: c.Label, Shape: "circle", Kind: graph.KindFinal})
		if c.Field != "" {
			for i, n := range x.nodes {
				if flagged(x.nodeItems[i], c.Field) {
					edges = append(edges, connectorEdge(n.ID, c.ID, gm))
				}
			}
		}
	}
	if edges == nil {
		edges = []graph.Edge{}
	}
	return nodes, edges
}

func connectorEdge(from, to string, gm *mapping.GraphMapping) graph.Edge {
	return graph.Edge{From: from, To: to, LinkStyle: "default", Arrow: gm.EdgeLinks.Arrow("default"), Kind: graph.KindConnector, Index: -1}
}

func flagged(item *yaml.Node, field string) bool {
	v, _ := yamlcst.Value(at(item, field)).(bool)
	return v
}

// direction reads the document's direction field, falling back to the
// mapping default.
func direction(doc *yamlcst.Document, gm *mapping.GraphMapping) string {
	if gm.Map.DirectionField != "" {
		if n, ok := doc.Lookup(yamlcst.ParsePath(gm.Map.DirectionField)); ok && n.Kind == yaml.ScalarNode {
			dir := strings.ToUpper(strings.TrimSpace(n.Value))
			if errors.ValidateDirection(dir) == nil {
				return dir
			}
		}
	}
	if gm.Map.DefaultDirection != "" {
		return gm.Map.DefaultDirection
	}
	return "TB"
}

// Diagram assembles the renderer input for a conversion result: its nodes
// and edges plus the class definitions the graph type's stylesheet gives
// the style classes in use.
func Diagram(res *graph.Result, gt *graphtype.GraphType) *render.Diagram {
	return &render.Diagram{
		Type:      res.MermaidType,
		Direction: res.Direction,
		Nodes:     res.Nodes,
		Edges:     res.Edges,
		ClassDefs: render.ClassDefs(gt.StyleSheet, styleClasses(res)),
	}
}

func styleClasses(res *graph.Result) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, n := range res.Nodes {
		add(n.Style)
	}
	for _, e := range res.Edges {
		add(e.Style)
	}
	return out
}

// format expands template against the fields of item, with value available
// as ${value}.
func format(template string, item *yaml.Node, value any) string {
	data, _ := yamlcst.Value(item).(map[string]any)
	if data == nil {
		data = make(map[string]any)
	}
	if value != nil {
		data["value"] = value
	}
	return transform.Format(template, data)
}
