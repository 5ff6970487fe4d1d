package graph

import (
	"github.com/matzehuels/yamlviz/pkg/schema"
	"github.com/matzehuels/yamlviz/pkg/yamlcst"
)

// =============================================================================
// Constants
// =============================================================================

// Node and edge kinds.
const (
	KindInitial   = "initial"
	KindFinal     = "final"
	KindConnector = "connector"
)

// =============================================================================
// Node
// =============================================================================

// Node is one diagram node. ID comes from the mapping's id field, never
// from the entry's position, so it stays stable when siblings are
// reordered.
type Node struct {
	ID         string              `json:"id" msgpack:"id"`
	Label      string              `json:"label" msgpack:"label"`
	Shape      string              `json:"shape,omitempty" msgpack:"shape,omitempty"`
	Style      string              `json:"style,omitempty" msgpack:"style,omitempty"`
	Annotation string              `json:"annotation,omitempty" msgpack:"annotation,omitempty"`
	Kind       string              `json:"kind,omitempty" msgpack:"kind,omitempty"`
	Path       yamlcst.Path        `json:"path,omitempty" msgpack:"path,omitempty"`
	Range      yamlcst.SourceRange `json:"sourceRange" msgpack:"sourceRange"`
	Metadata   map[string]any      `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
}

// IsConnector reports whether n is a synthesized initial or final node.
func (n *Node) IsConnector() bool { return n.Kind == KindInitial || n.Kind == KindFinal }

// DisplayLabel returns the label if set, otherwise the ID.
func (n *Node) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// =============================================================================
// Edge
// =============================================================================

// Edge is a directed link between two nodes.
//
// Index is the edge's position inside the collection it was read from: the
// document-level edge list, or the owning node's nested list when edges are
// declared implicitly. Connector edges have no source and an Index of -1.
type Edge struct {
	From      string              `json:"from" msgpack:"from"`
	To        string              `json:"to" msgpack:"to"`
	Label     string              `json:"label,omitempty" msgpack:"label,omitempty"`
	Style     string              `json:"style,omitempty" msgpack:"style,omitempty"`
	LinkStyle string              `json:"linkStyle,omitempty" msgpack:"linkStyle,omitempty"`
	Arrow     string              `json:"arrow" msgpack:"arrow"`
	Kind      string              `json:"kind,omitempty" msgpack:"kind,omitempty"`
	Index     int                 `json:"index" msgpack:"index"`
	Path      yamlcst.Path        `json:"path,omitempty" msgpack:"path,omitempty"`
	Range     yamlcst.SourceRange `json:"sourceRange" msgpack:"sourceRange"`
	Metadata  map[string]any      `json:"metadata,omitempty" msgpack:"metadata,omitempty"`
}

// =============================================================================
// Outline
// =============================================================================

// TreeNode is one entry of the document outline. NodeID is set for entries
// that became diagram nodes.
type TreeNode struct {
	Label    string              `json:"label" msgpack:"label"`
	Path     yamlcst.Path        `json:"path,omitempty" msgpack:"path,omitempty"`
	NodeID   string              `json:"nodeId,omitempty" msgpack:"nodeId,omitempty"`
	Range    yamlcst.SourceRange `json:"range" msgpack:"range"`
	Children []TreeNode          `json:"children,omitempty" msgpack:"children,omitempty"`
}

// =============================================================================
// Result
// =============================================================================

// Result is everything one conversion produced. Errors holds schema
// problems; a result with errors still carries a best-effort diagram.
type Result struct {
	GraphType   string                   `json:"graphType" msgpack:"graphType"`
	MermaidType string                   `json:"mermaidType" msgpack:"mermaidType"`
	Direction   string                   `json:"direction" msgpack:"direction"`
	Nodes       []Node                   `json:"nodes" msgpack:"nodes"`
	Edges       []Edge                   `json:"edges" msgpack:"edges"`
	DiagramText string                   `json:"diagramText" msgpack:"diagramText"`
	TreeData    []TreeNode               `json:"treeData" msgpack:"treeData"`
	Errors      []schema.ValidationError `json:"errors" msgpack:"errors"`
	Warnings    []string                 `json:"warnings,omitempty" msgpack:"warnings,omitempty"`
}

// Node returns the node with the given id.
func (r *Result) Node(id string) (*Node, bool) {
	for i := range r.Nodes {
		if r.Nodes[i].ID == id {
			return &r.Nodes[i], true
		}
	}
	return nil, false
}

// EdgesFrom returns the edges leaving id that were read from the document,
// in source order.
func (r *Result) EdgesFrom(id string) []Edge {
	var out []Edge
	for _, e := range r.Edges {
		if e.From == id && e.Kind != KindConnector {
			out = append(out, e)
		}
	}
	return out
}

// HasErrors reports whether any validation error has error severity.
func (r *Result) HasErrors() bool {
	for _, e := range r.Errors {
		if e.Severity == schema.SeverityError {
			return true
		}
	}
	return false
}

// NodeAt returns the id of the innermost diagram node whose source range
// contains the given 1-based line, or "" when none does.
func (r *Result) NodeAt(line int) string {
	var (
		best string
		size = -1
	)
	for _, n := range r.Nodes {
		if n.Range.IsZero() || line < n.Range.Start.Line || line > n.Range.End.Line {
			continue
		}
		if s := n.Range.End.Offset - n.Range.Start.Offset; size < 0 || s < size {
			best, size = n.ID, s
		}
	}
	return best
}
