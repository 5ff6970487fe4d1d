package engine

import (
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/yamlviz/pkg/graph"
	"github.com/matzehuels/yamlviz/pkg/mapping"
	"github.com/matzehuels/yamlviz/pkg/schema"
	"github.com/matzehuels/yamlviz/pkg/yamlcst"
)

// extraction is the raw node and edge set read from a document, before
// styles, annotations and transforms are applied. Items holds the YAML
// mapping each node or edge was read from, by position.
type extraction struct {
	nodes     []graph.Node
	nodeItems []*yaml.Node
	edges     []graph.Edge
	edgeItems []*yaml.Node
	problems  []schema.ValidationError
}

// node returns the index of the extracted node with id, or -1.
func (x *extraction) node(id string) int {
	for i, n := range x.nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

// extract reads nodes and edges according to gm. It never fails: entries
// it cannot use are reported as warnings.
func extract(doc *yamlcst.Document, gm *mapping.GraphMapping) *extraction {
	x := &extraction{}
	ns := gm.NodeShapes
	seqPath := yamlcst.ParsePath(ns.SourcePath)

	seq, ok := doc.Lookup(seqPath)
	seq = yamlcst.Deref(seq)
	switch {
	case !ok || seq == nil || seq.Kind == yaml.ScalarNode && seq.Tag == "!!null":
		return x
	case seq.Kind != yaml.SequenceNode:
		x.warn(doc, seqPath, "%s is not a list; no nodes extracted", ns.SourcePath)
		return x
	}

	seen := make(map[string]bool)
	for i, raw := range seq.Content {
		item := yamlcst.Deref(raw)
		path := seqPath.Index(i)
		id := scalarAt(item, ns.IDField)
		if id == "" {
			id = fmt.Sprintf("%s-%d", ns.SourcePath, i)
			x.warn(doc, path, "entry has no %s; using %q as its id", ns.IDField, id)
		}
		if seen[id] {
			x.warn(doc, path, "duplicate node id %q", id)
		}
		seen[id] = true

		label := id
		if ns.LabelField != "" {
			if l := scalarAt(item, ns.LabelField); l != "" {
				label = l
			}
		}
		x.nodes = append(x.nodes, graph.Node{
			ID:    id,
			Label: label,
			Shape: resolveShape(ns, scalarAt(item, ns.ShapeField)),
			Path:  path,
			Range: doc.RangeOf(raw),
		})
		x.nodeItems = append(x.nodeItems, item)
	}

	el := gm.EdgeLinks
	if el.SourcePath == "" {
		return x
	}
	if el.FromImplicit {
		for i, n := range x.nodes {
			rel := yamlcst.ParsePath(el.SourcePath)
			x.edgeList(doc, gm, n.Path.Append(rel...), at(x.nodeItems[i], el.SourcePath), n.ID)
		}
		return x
	}
	edgePath := yamlcst.ParsePath(el.SourcePath)
	list, _ := doc.Lookup(edgePath)
	x.edgeList(doc, gm, edgePath, list, "")
	return x
}

// edgeList reads the edge entries of one sequence. from is the implicit
// origin, or "" when each entry names its own.
func (x *extraction) edgeList(doc *yamlcst.Document, gm *mapping.GraphMapping, path yamlcst.Path, list *yaml.Node, from string) {
	list = yamlcst.Deref(list)
	if list == nil || list.Kind != yaml.SequenceNode {
		if list != nil && !(list.Kind == yaml.ScalarNode && list.Tag == "!!null") {
			x.warn(doc, path, "%s is not a list; no edges extracted", path)
		}
		return
	}
	el := gm.EdgeLinks
	for j, raw := range list.Content {
		item := yamlcst.Deref(raw)
		p := path.Index(j)
		src := from
		if src == "" {
			src = scalarAt(item, el.FromField)
		}
		to := scalarAt(item, el.ToField)
		if src == "" || to == "" {
			x.warn(doc, p, "edge needs both ends; skipped")
			continue
		}

		label := ""
		switch {
		case el.LabelTemplate != "":
			label = format(el.LabelTemplate, item, nil)
		case el.LabelField != "":
			label = scalarAt(item, el.LabelField)
		}
		linkStyle := scalarAt(item, "style")
		if _, ok := el.LinkStyles[linkStyle]; !ok {
			linkStyle = "default"
		}
		x.edges = append(x.edges, graph.Edge{
			From:      src,
			To:        to,
			Label:     label,
			LinkStyle: linkStyle,
			Arrow:     el.Arrow(linkStyle),
			Index:     j,
			Path:      p,
			Range:     doc.RangeOf(raw),
		})
		x.edgeItems = append(x.edgeItems, item)
	}
}

func (x *extraction) warn(doc *yamlcst.Document, path yamlcst.Path, format string, args ...any) {
	x.problems = append(x.problems, schema.ValidationError{
		Path:     path.Pointer(),
		Message:  fmt.Sprintf(format, args...),
		Range:    doc.RangeOf(doc.Nearest(path)),
		Severity: schema.SeverityWarning,
	})
}

// resolveShape maps a shape field value through the shapes table, falling
// back to a built-in shape key and then to the default shape.
func resolveShape(ns mapping.NodeShapes, value string) string {
	if value != "" {
		if s, ok := ns.Shapes[value]; ok {
			return s
		}
		if slices.Contains(mapping.BuiltinShapes, value) {
			return value
		}
	}
	if ns.DefaultShapes == "" {
		return ""
	}
	if s, ok := ns.Shapes[ns.DefaultShapes]; ok {
		return s
	}
	return ns.DefaultShapes
}

// at resolves a dotted field path below n.
func at(n *yaml.Node, field string) *yaml.Node {
	if field == "" {
		return nil
	}
	for _, seg := range yamlcst.ParsePath(field) {
		n = yamlcst.MapValue(n, seg)
		if n == nil {
			return nil
		}
	}
	return yamlcst.Deref(n)
}

// scalarAt returns the scalar text at field below n, or "".
func scalarAt(n *yaml.Node, field string) string {
	v := at(n, field)
	if v == nil || v.Kind != yaml.ScalarNode || v.Tag == "!!null" {
		return ""
	}
	return v.Value
}
