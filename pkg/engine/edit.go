package engine

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/matzehuels/yamlviz/pkg/errors"
	"github.com/matzehuels/yamlviz/pkg/graph"
	"github.com/matzehuels/yamlviz/pkg/graphtype"
	"github.com/matzehuels/yamlviz/pkg/mapping"
	"github.com/matzehuels/yamlviz/pkg/yamlcst"
)

// FieldEdit sets one field of a node. Path is relative to the node's entry,
// for example "label" or "meta.owner". Keys containing "." need the JSON
// pointer form, "/meta/v1.2".
type FieldEdit struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// ApplyEdit writes edits into the entry of the node with nodeID. Existing
// scalars are patched in place and missing fields are added; nothing else in
// the text changes. An unknown id fails with NODE_NOT_FOUND and any failing
// edit leaves the returned error without a document.
func (e *Engine) ApplyEdit(ctx context.Context, doc *yamlcst.Document, gt *graphtype.GraphType, nodeID string, edits []FieldEdit) (*yamlcst.Document, error) {
	x, idx, err := locate(doc, gt, nodeID)
	if err != nil {
		return nil, err
	}
	base := x.nodes[idx].Path

	out := doc
	for _, ed := range edits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := errors.ValidateFieldPath(ed.Path); err != nil {
			return nil, err
		}
		rel := yamlcst.ParsePath(ed.Path)
		path := base.Append(rel...)
		if _, ok := out.Lookup(path); ok {
			out, err = yamlcst.PatchScalar(out, path, ed.Value)
		} else {
			out, err = yamlcst.SetField(out, path.Parent(), path.Last(), ed.Value)
		}
		if err != nil {
			code := errors.GetCode(err)
			if code == "" {
				code = errors.ErrCodeInvalidInput
			}
			return nil, errors.Wrap(code, err, "edit %s of node %s", ed.Path, nodeID)
		}
	}
	e.logger.Debug("applied edit", "node", nodeID, "fields", len(edits))
	return out, nil
}

// AddNode appends a node entry. An empty id is replaced by a generated
// one; the id actually used is returned. An empty label omits the label
// field.
func (e *Engine) AddNode(ctx context.Context, doc *yamlcst.Document, gt *graphtype.GraphType, nodeID, label string) (*yamlcst.Document, string, error) {
	gm, err := mappingOf(doc, gt)
	if err != nil {
		return nil, "", err
	}
	ns := gm.NodeShapes
	if strings.Contains(ns.IDField, ".") || strings.Contains(ns.LabelField, ".") {
		return nil, "", errors.New(errors.ErrCodeUnsupported, "cannot add nodes when id or label live in nested fields")
	}

	x := extract(doc, gm)
	if nodeID == "" {
		nodeID = generateID(x)
	}
	if err := errors.ValidateNodeID(nodeID); err != nil {
		return nil, "", err
	}
	if x.node(nodeID) >= 0 {
		return nil, "", errors.New(errors.ErrCodeInvalidInput, "node %q already exists", nodeID)
	}

	fields := []yamlcst.Field{{Key: ns.IDField, Value: nodeID}}
	if label != "" && ns.LabelField != "" && ns.LabelField != ns.IDField {
		fields = append(fields, yamlcst.Field{Key: ns.LabelField, Value: label})
	}
	out, err := yamlcst.AppendItem(doc, yamlcst.ParsePath(ns.SourcePath), fields)
	if err != nil {
		return nil, "", err
	}
	e.logger.Debug("added node", "node", nodeID)
	return out, nodeID, nil
}

// DuplicateNode copies the entry of sourceID directly after it and gives
// the copy a fresh id derived from the original. The new id is returned.
func (e *Engine) DuplicateNode(ctx context.Context, doc *yamlcst.Document, gt *graphtype.GraphType, sourceID string) (*yamlcst.Document, string, error) {
	x, idx, err := locate(doc, gt, sourceID)
	if err != nil {
		return nil, "", err
	}
	ns := gt.Mapping.NodeShapes
	src := x.nodes[idx].Path
	index := mustIndex(src)

	out, err := yamlcst.DuplicateItem(doc, src.Parent(), index)
	if err != nil {
		return nil, "", err
	}
	newID := uniqueID(x, sourceID+"-copy")
	copyPath := src.Parent().Index(index + 1).Append(yamlcst.ParsePath(ns.IDField)...)
	out, err = yamlcst.PatchScalar(out, copyPath, newID)
	if err != nil {
		return nil, "", err
	}
	e.logger.Debug("duplicated node", "source", sourceID, "node", newID)
	return out, newID, nil
}

// DeleteNode removes the node's entry together with every edge that starts
// or ends at it.
func (e *Engine) DeleteNode(ctx context.Context, doc *yamlcst.Document, gt *graphtype.GraphType, nodeID string) (*yamlcst.Document, error) {
	if _, _, err := locate(doc, gt, nodeID); err != nil {
		return nil, err
	}
	gm := gt.Mapping

	out := doc
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		x := extract(out, gm)
		var target *graph.Edge
		// Remove from the back so earlier indexes stay valid.
		for i := len(x.edges) - 1; i >= 0; i-- {
			if x.edges[i].From == nodeID || x.edges[i].To == nodeID {
				if x.edges[i].From == nodeID && gm.EdgeLinks.FromImplicit {
					continue
				}
				target = &x.edges[i]
				break
			}
		}
		if target == nil {
			break
		}
		var err error
		if out, err = yamlcst.RemoveItem(out, target.Path.Parent(), target.Index); err != nil {
			return nil, err
		}
	}

	x, idx, err := locate(out, gt, nodeID)
	if err != nil {
		return nil, err
	}
	p := x.nodes[idx].Path
	out, err = yamlcst.RemoveItem(out, p.Parent(), mustIndex(p))
	if err != nil {
		return nil, err
	}
	e.logger.Debug("deleted node", "node", nodeID)
	return out, nil
}

// RenameNode changes a node's id and rewrites every edge that refers to it.
func (e *Engine) RenameNode(ctx context.Context, doc *yamlcst.Document, gt *graphtype.GraphType, oldID, newID string) (*yamlcst.Document, error) {
	x, idx, err := locate(doc, gt, oldID)
	if err != nil {
		return nil, err
	}
	if err := errors.ValidateNodeID(newID); err != nil {
		return nil, err
	}
	if oldID == newID {
		return doc, nil
	}
	if x.node(newID) >= 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "node %q already exists", newID)
	}
	gm := gt.Mapping
	el := gm.EdgeLinks

	patches := []yamlcst.Path{x.nodes[idx].Path.Append(yamlcst.ParsePath(gm.NodeShapes.IDField)...)}
	for _, ed := range x.edges {
		if ed.From == oldID && !el.FromImplicit {
			patches = append(patches, ed.Path.Append(yamlcst.ParsePath(el.FromField)...))
		}
		if ed.To == oldID {
			patches = append(patches, ed.Path.Append(yamlcst.ParsePath(el.ToField)...))
		}
	}

	out := doc
	for _, p := range patches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if out, err = yamlcst.PatchScalar(out, p, newID); err != nil {
			return nil, err
		}
	}
	e.logger.Debug("renamed node", "from", oldID, "to", newID, "references", len(patches)-1)
	return out, nil
}

// AddConnection appends an edge from one node to another. With implicit
// origins the edge is added to the source node's own edge list.
func (e *Engine) AddConnection(ctx context.Context, doc *yamlcst.Document, gt *graphtype.GraphType, from, to, label string) (*yamlcst.Document, error) {
	x, fromIdx, err := locate(doc, gt, from)
	if err != nil {
		return nil, err
	}
	if x.node(to) < 0 {
		return nil, errors.New(errors.ErrCodeNodeNotFound, "node %q not found", to)
	}
	el := gt.Mapping.EdgeLinks
	if el.SourcePath == "" {
		return nil, errors.New(errors.ErrCodeUnsupported, "graph type %s has no edges", gt.Key())
	}

	var (
		seq    yamlcst.Path
		fields []yamlcst.Field
	)
	if el.FromImplicit {
		seq = x.nodes[fromIdx].Path.Append(yamlcst.ParsePath(el.SourcePath)...)
	} else {
		seq = yamlcst.ParsePath(el.SourcePath)
		fields = append(fields, yamlcst.Field{Key: el.FromField, Value: from})
	}
	fields = append(fields, yamlcst.Field{Key: el.ToField, Value: to})
	if label != "" && el.LabelField != "" {
		fields = append(fields, yamlcst.Field{Key: el.LabelField, Value: label})
	}

	out, err := yamlcst.AppendItem(doc, seq, fields)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("added connection", "from", from, "to", to)
	return out, nil
}

// DeleteConnection removes the index-th edge leaving nodeID, counting in
// source order.
func (e *Engine) DeleteConnection(ctx context.Context, doc *yamlcst.Document, gt *graphtype.GraphType, nodeID string, index int) (*yamlcst.Document, error) {
	x, _, err := locate(doc, gt, nodeID)
	if err != nil {
		return nil, err
	}
	var outgoing []graph.Edge
	for _, ed := range x.edges {
		if ed.From == nodeID {
			outgoing = append(outgoing, ed)
		}
	}
	if index < 0 || index >= len(outgoing) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "node %q has no connection %d", nodeID, index)
	}
	target := outgoing[index]
	out, err := yamlcst.RemoveItem(doc, target.Path.Parent(), target.Index)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("deleted connection", "from", nodeID, "to", target.To)
	return out, nil
}

// ChangeDirection writes dir into the document's direction field.
func (e *Engine) ChangeDirection(ctx context.Context, doc *yamlcst.Document, gt *graphtype.GraphType, dir string) (*yamlcst.Document, error) {
	gm, err := mappingOf(doc, gt)
	if err != nil {
		return nil, err
	}
	dir = strings.ToUpper(strings.TrimSpace(dir))
	if err := errors.ValidateDirection(dir); err != nil {
		return nil, err
	}
	if gm.Map.DirectionField == "" {
		return nil, errors.New(errors.ErrCodeUnsupported, "graph type %s has no direction field", gt.Key())
	}
	p := yamlcst.ParsePath(gm.Map.DirectionField)
	out, err := yamlcst.SetField(doc, p.Parent(), p.Last(), dir)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("changed direction", "direction", dir)
	return out, nil
}

// =============================================================================
// helpers
// =============================================================================

func mappingOf(doc *yamlcst.Document, gt *graphtype.GraphType) (*mapping.GraphMapping, error) {
	if doc == nil || gt == nil || gt.Mapping == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "edit needs a document and a graph type")
	}
	return gt.Mapping, nil
}

// locate extracts doc and finds the node with id.
func locate(doc *yamlcst.Document, gt *graphtype.GraphType, id string) (*extraction, int, error) {
	gm, err := mappingOf(doc, gt)
	if err != nil {
		return nil, -1, err
	}
	x := extract(doc, gm)
	idx := x.node(id)
	if idx < 0 {
		return nil, -1, errors.New(errors.ErrCodeNodeNotFound, "node %q not found", id)
	}
	return x, idx, nil
}

// mustIndex returns the trailing sequence index of an extracted node path.
func mustIndex(p yamlcst.Path) int {
	i, _ := strconv.Atoi(p.Last())
	return i
}

func uniqueID(x *extraction, base string) string {
	id := base
	for n := 2; x.node(id) >= 0; n++ {
		id = base + "-" + strconv.Itoa(n)
	}
	return id
}

func generateID(x *extraction) string {
	for {
		id := "node-" + uuid.NewString()[:8]
		if x.node(id) < 0 {
			return id
		}
	}
}
