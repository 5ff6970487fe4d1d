package mapping

import (
	"bytes"
	stderrors "errors"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/yamlviz/pkg/errors"
)

// Connector ids used when a v1 mapping does not name them.
const (
	DefaultInitialID = "_start"
	DefaultFinalID   = "_end"
)

type v1Document struct {
	Map            v1Map         `yaml:"map"`
	NodeShapes     v1NodeShapes  `yaml:"node-shapes"`
	EdgeLinks      *v1EdgeLinks  `yaml:"edge-links"`
	StyleRules     *StyleRules   `yaml:"style-rules"`
	Annotations    *v1Annotation `yaml:"annotations"`
	Transforms     []v1Transform `yaml:"transforms"`
	CustomRenderer string        `yaml:"custom-renderer"`
}

type v1Map struct {
	ID               string `yaml:"id"`
	Version          int    `yaml:"version"`
	MermaidType      string `yaml:"mermaid-type"`
	DirectionField   string `yaml:"direction-field"`
	DefaultDirection string `yaml:"default-direction"`
}

type v1NodeShapes struct {
	SourcePath       string            `yaml:"source-path"`
	IDField          string            `yaml:"id-field"`
	LabelField       string            `yaml:"label-field"`
	ShapeField       string            `yaml:"shape-field"`
	DefaultShapes    string            `yaml:"default-shapes"`
	Shapes           map[string]string `yaml:"shapes"`
	InitialConnector *v1Connector      `yaml:"initial-connector"`
	FinalConnector   *v1Connector      `yaml:"final-connector"`
}

// v1Connector accepts either a mapping or a bare field name.
type v1Connector Connector

func (c *v1Connector) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		c.Field = value.Value
		return nil
	}
	var raw struct {
		ID    string `yaml:"id"`
		Label string `yaml:"label"`
		Field string `yaml:"field"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*c = v1Connector(raw)
	return nil
}

type v1EdgeLinks struct {
	SourcePath    string            `yaml:"source-path"`
	FromField     string            `yaml:"from-field"`
	FromImplicit  bool              `yaml:"from-implicit"`
	ToField       string            `yaml:"to-field"`
	LabelField    string            `yaml:"label-field"`
	LinkStyles    map[string]string `yaml:"link-styles"`
	LabelTemplate string            `yaml:"label-template"`
}

type v1Annotation struct {
	SourceField string `yaml:"source-field"`
	Template    string `yaml:"template"`
}

type v1Transform struct {
	Scope string `yaml:"scope"`
	Match string `yaml:"match"`
	JS    string `yaml:"js"`
	Code  string `yaml:"code"`
}

// ParseV1 parses a version 1 mapping. Unknown keys are rejected so typos in
// shared mapping files surface at load time.
func ParseV1(data []byte) (*GraphMapping, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc v1Document
	if err := dec.Decode(&doc); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, errors.New(errors.ErrCodeInvalidMapping, "mapping is empty")
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidMapping, err, "decode mapping")
	}

	m := &GraphMapping{
		Map: MapInfo{
			ID:               doc.Map.ID,
			Version:          doc.Map.Version,
			MermaidType:      NormalizeMermaidType(strings.TrimSpace(doc.Map.MermaidType)),
			DirectionField:   doc.Map.DirectionField,
			DefaultDirection: strings.ToUpper(strings.TrimSpace(doc.Map.DefaultDirection)),
		},
		NodeShapes: NodeShapes{
			SourcePath:    doc.NodeShapes.SourcePath,
			IDField:       doc.NodeShapes.IDField,
			LabelField:    doc.NodeShapes.LabelField,
			ShapeField:    doc.NodeShapes.ShapeField,
			DefaultShapes: doc.NodeShapes.DefaultShapes,
			Shapes:        doc.NodeShapes.Shapes,
		},
		StyleRules:     doc.StyleRules,
		CustomRenderer: doc.CustomRenderer,
	}

	if m.Map.MermaidType == "" {
		m.Map.MermaidType = MermaidFlowchart
	}
	if m.Map.DefaultDirection == "" {
		m.Map.DefaultDirection = "TB"
	}
	if m.NodeShapes.LabelField == "" {
		m.NodeShapes.LabelField = m.NodeShapes.IDField
	}
	if c := doc.NodeShapes.InitialConnector; c != nil {
		m.NodeShapes.InitialConnector = connector(c, DefaultInitialID)
	}
	if c := doc.NodeShapes.FinalConnector; c != nil {
		m.NodeShapes.FinalConnector = connector(c, DefaultFinalID)
	}

	if el := doc.EdgeLinks; el != nil {
		m.EdgeLinks = EdgeLinks{
			SourcePath:    el.SourcePath,
			FromField:     el.FromField,
			FromImplicit:  el.FromImplicit,
			ToField:       el.ToField,
			LabelField:    el.LabelField,
			LinkStyles:    el.LinkStyles,
			LabelTemplate: el.LabelTemplate,
		}
	}
	if a := doc.Annotations; a != nil {
		m.Annotations = &Annotations{SourceField: a.SourceField, Template: a.Template}
		if m.Annotations.Template == "" {
			m.Annotations.Template = "${value}"
		}
	}
	for _, t := range doc.Transforms {
		code := t.JS
		if code == "" {
			code = t.Code
		}
		m.Transforms = append(m.Transforms, TransformRule{Scope: t.Scope, Match: t.Match, Code: code})
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func connector(c *v1Connector, id string) *Connector {
	out := Connector(*c)
	if out.ID == "" {
		out.ID = id
	}
	return &out
}
