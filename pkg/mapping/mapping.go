// Package mapping defines the declarative rules that turn a YAML document
// into a diagram, and the version-keyed parsers that read them.
//
// A mapping file (*.graph-map.yaml) names where nodes and edges live in a
// document, which fields carry ids, labels and shapes, how styles and
// annotations are derived, and which transform snippets run during
// conversion. Each mapping format version has its own [Parser]; a
// [ParserRegistry] dispatches on the version number and fails hard for
// versions nobody registered.
package mapping

import (
	"slices"
	"strings"

	"github.com/matzehuels/yamlviz/pkg/errors"
)

// Mermaid dialects a mapping can target.
const (
	MermaidFlowchart    = "flowchart"
	MermaidStateDiagram = "state-machine"
	MermaidERDiagram    = "er-diagram"
	MermaidClassDiagram = "class-diagram"
)

var mermaidAliases = map[string]string{
	"flowchart":       MermaidFlowchart,
	"graph":           MermaidFlowchart,
	"state-machine":   MermaidStateDiagram,
	"statediagram":    MermaidStateDiagram,
	"statediagram-v2": MermaidStateDiagram,
	"er-diagram":      MermaidERDiagram,
	"erdiagram":       MermaidERDiagram,
	"class-diagram":   MermaidClassDiagram,
	"classdiagram":    MermaidClassDiagram,
}

// GraphMapping is one parsed mapping specification.
type GraphMapping struct {
	Map            MapInfo         `json:"map"`
	NodeShapes     NodeShapes      `json:"nodeShapes"`
	EdgeLinks      EdgeLinks       `json:"edgeLinks"`
	StyleRules     *StyleRules     `json:"styleRules,omitempty"`
	Annotations    *Annotations    `json:"annotations,omitempty"`
	Transforms     []TransformRule `json:"transforms,omitempty"`
	CustomRenderer string          `json:"customRenderer,omitempty"`
}

// MapInfo identifies the graph type and its diagram dialect.
type MapInfo struct {
	ID               string `json:"id"`
	Version          int    `json:"version"`
	MermaidType      string `json:"mermaidType"`
	DirectionField   string `json:"directionField,omitempty"`
	DefaultDirection string `json:"defaultDirection"`
}

// NodeShapes describes how nodes are extracted.
type NodeShapes struct {
	SourcePath       string            `json:"sourcePath"`
	IDField          string            `json:"idField"`
	LabelField       string            `json:"labelField"`
	ShapeField       string            `json:"shapeField,omitempty"`
	DefaultShapes    string            `json:"defaultShapes,omitempty"`
	Shapes           map[string]string `json:"shapes,omitempty"`
	InitialConnector *Connector        `json:"initialConnector,omitempty"`
	FinalConnector   *Connector        `json:"finalConnector,omitempty"`
}

// Connector declares a pseudo-node such as the start or end state of a state
// machine. Nodes whose Field is true are linked to it.
type Connector struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
	Field string `json:"field,omitempty"`
}

// EdgeLinks describes how edges are extracted. With FromImplicit set, edges
// are nested below each node under SourcePath and take the node's id as
// their origin.
type EdgeLinks struct {
	SourcePath    string            `json:"sourcePath,omitempty"`
	FromField     string            `json:"fromField,omitempty"`
	FromImplicit  bool              `json:"fromImplicit,omitempty"`
	ToField       string            `json:"toField,omitempty"`
	LabelField    string            `json:"labelField,omitempty"`
	LinkStyles    map[string]string `json:"linkStyles,omitempty"`
	LabelTemplate string            `json:"labelTemplate,omitempty"`
}

// StyleRules maps values of one field to style classes.
type StyleRules struct {
	Field string            `json:"field"`
	Rules map[string]string `json:"rules"`
}

// Annotations derive supplementary label text from a field.
type Annotations struct {
	SourceField string `json:"sourceField"`
	Template    string `json:"template"`
}

// TransformRule is a user-authored derivation snippet. Scope selects a
// subtree, Match filters its items and Code computes the derived value.
type TransformRule struct {
	Scope string `json:"scope,omitempty"`
	Match string `json:"match,omitempty"`
	Code  string `json:"code"`
}

// HasEdges reports whether the mapping extracts edges at all.
func (m *GraphMapping) HasEdges() bool {
	return m.EdgeLinks.SourcePath != ""
}

// Arrow returns the link style registered for style, falling back to the
// "default" entry and then to a plain arrow.
func (e EdgeLinks) Arrow(style string) string {
	if a, ok := e.LinkStyles[style]; ok && style != "" {
		return a
	}
	if a, ok := e.LinkStyles["default"]; ok {
		return a
	}
	return "-->"
}

// NormalizeMermaidType maps dialect names, including Mermaid's own diagram
// keywords, onto the dialect constants. Unknown names are returned as-is.
func NormalizeMermaidType(t string) string {
	if n, ok := mermaidAliases[strings.ToLower(t)]; ok {
		return n
	}
	return t
}

// Validate checks the structural requirements every mapping version shares.
func (m *GraphMapping) Validate() error {
	if err := errors.ValidateGraphTypeID(m.Map.ID); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidMapping, err, "map.id")
	}
	if m.Map.Version < 1 {
		return errors.New(errors.ErrCodeInvalidMapping, "map.version must be a positive integer")
	}
	if m.CustomRenderer == "" {
		if _, ok := mermaidAliases[m.Map.MermaidType]; !ok {
			return errors.New(errors.ErrCodeInvalidMapping, "unsupported map.mermaid-type %q", m.Map.MermaidType)
		}
	}
	if err := errors.ValidateDirection(m.Map.DefaultDirection); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidMapping, err, "map.default-direction")
	}

	ns := m.NodeShapes
	if ns.SourcePath == "" {
		return errors.New(errors.ErrCodeInvalidMapping, "node-shapes.source-path is required")
	}
	if ns.IDField == "" {
		return errors.New(errors.ErrCodeInvalidMapping, "node-shapes.id-field is required")
	}
	for name, field := range map[string]string{
		"node-shapes.source-path": ns.SourcePath,
		"node-shapes.id-field":    ns.IDField,
		"node-shapes.label-field": ns.LabelField,
	} {
		if field == "" {
			continue
		}
		if err := errors.ValidateFieldPath(field); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidMapping, err, "%s", name)
		}
	}
	if ns.DefaultShapes != "" && len(ns.Shapes) > 0 {
		if _, ok := ns.Shapes[ns.DefaultShapes]; !ok && !isBuiltinShape(ns.DefaultShapes) {
			return errors.New(errors.ErrCodeInvalidMapping, "node-shapes.default-shapes %q is not a declared shape", ns.DefaultShapes)
		}
	}

	el := m.EdgeLinks
	if el.SourcePath != "" {
		if el.ToField == "" {
			return errors.New(errors.ErrCodeInvalidMapping, "edge-links.to-field is required")
		}
		if !el.FromImplicit && el.FromField == "" {
			return errors.New(errors.ErrCodeInvalidMapping, "edge-links.from-field is required unless from-implicit is set")
		}
	}

	if m.StyleRules != nil && m.StyleRules.Field == "" {
		return errors.New(errors.ErrCodeInvalidMapping, "style-rules.field is required")
	}
	if m.Annotations != nil && m.Annotations.SourceField == "" {
		return errors.New(errors.ErrCodeInvalidMapping, "annotations.source-field is required")
	}
	for i, t := range m.Transforms {
		if t.Code == "" {
			return errors.New(errors.ErrCodeInvalidMapping, "transforms[%d] has no code", i)
		}
	}
	return nil
}

// BuiltinShapes are the shape keys every renderer understands without a
// shapes table entry.
var BuiltinShapes = []string{"rect", "round", "stadium", "subroutine", "database", "circle", "diamond", "hexagon"}

func isBuiltinShape(s string) bool {
	return slices.Contains(BuiltinShapes, s)
}
