package engine

import (
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/yamlviz/pkg/graph"
	"github.com/matzehuels/yamlviz/pkg/yamlcst"
)

// labelKeys are tried in order to name a list entry in the outline.
var labelKeys = []string{"name", "id", "title", "label"}

// buildTree mirrors the document structure as an outline. List entries
// that became diagram nodes carry the node id and are named by it.
func buildTree(doc *yamlcst.Document, nodes []graph.Node) []graph.TreeNode {
	ids := make(map[string]string, len(nodes))
	for _, n := range nodes {
		if n.Path != nil {
			ids[n.Path.String()] = n.ID
		}
	}
	t := &treeBuilder{doc: doc, ids: ids}
	out := t.children(doc.Root(), nil)
	if out == nil {
		out = []graph.TreeNode{}
	}
	return out
}

type treeBuilder struct {
	doc *yamlcst.Document
	ids map[string]string
}

func (t *treeBuilder) children(n *yaml.Node, path yamlcst.Path) []graph.TreeNode {
	n = yamlcst.Deref(n)
	if n == nil {
		return nil
	}
	var out []graph.TreeNode
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			p := path.Append(k.Value)
			r := t.doc.RangeOf(v)
			r.Start = t.doc.RangeOf(k).Start
			node := graph.TreeNode{Label: k.Value, Path: p, Range: r}
			if dv := yamlcst.Deref(v); dv.Kind == yaml.ScalarNode {
				node.Label += ": " + dv.Value
			} else {
				node.Children = t.children(v, p)
			}
			out = append(out, node)
		}
	case yaml.SequenceNode:
		for i, item := range n.Content {
			p := path.Index(i)
			node := graph.TreeNode{Label: t.itemLabel(item, i, p), Path: p, Range: t.doc.RangeOf(item)}
			node.NodeID = t.ids[p.String()]
			if yamlcst.Deref(item).Kind != yaml.ScalarNode {
				node.Children = t.children(item, p)
			}
			out = append(out, node)
		}
	}
	return out
}

func (t *treeBuilder) itemLabel(item *yaml.Node, i int, p yamlcst.Path) string {
	if id := t.ids[p.String()]; id != "" {
		return id
	}
	item = yamlcst.Deref(item)
	if item.Kind == yaml.ScalarNode {
		return item.Value
	}
	for _, k := range labelKeys {
		if s := yamlcst.ScalarString(item, k); s != "" {
			return s
		}
	}
	return "[" + strconv.Itoa(i) + "]"
}
