package yamlcst

import (
	"bytes"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/yamlviz/pkg/errors"
)

// Field is one key/value pair of a mapping written by [AppendItem].
type Field struct {
	Key   string
	Value any
}

type textEdit struct {
	start, end int
	text       string
}

// splice applies the edits to the source and parses the result. The
// receiver is left untouched if the new text does not parse.
func (d *Document) splice(edits ...textEdit) (*Document, error) {
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].start > edits[j].start })

	buf := bytes.Clone(d.src)
	for _, e := range edits {
		out := make([]byte, 0, len(buf)-(e.end-e.start)+len(e.text))
		out = append(out, buf[:e.start]...)
		out = append(out, e.text...)
		out = append(out, buf[e.end:]...)
		buf = out
	}

	nd, err := Parse(buf)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidYAML, err, "edit produced invalid yaml")
	}
	return nd, nil
}

// insertAfterLine returns where to insert whole lines after the line
// containing off, and the prefix needed when that line has no newline.
func (d *Document) insertAfterLine(off int) (int, string) {
	at := d.nextLine(off)
	if at == len(d.src) && len(d.src) > 0 && d.src[len(d.src)-1] != '\n' {
		return at, "\n"
	}
	return at, ""
}

func (d *Document) indentOf(n *yaml.Node) string {
	r := d.ranges[n]
	return strings.Repeat(" ", r.Start.Offset-d.lineStart(r.Start.Offset))
}

// PatchScalar returns a document in which the scalar at path holds value.
// Only the bytes of that scalar change.
func PatchScalar(d *Document, path Path, value any) (*Document, error) {
	n, ok := d.Lookup(path)
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidPath, "no node at %q", path.String())
	}
	if n.Kind != yaml.ScalarNode {
		return nil, errors.New(errors.ErrCodeInvalidInput, "node at %q is not a scalar", path.String())
	}

	r := d.ranges[n]
	text := FormatScalar(value, n)
	if r.Start.Offset == r.End.Offset {
		text = " " + text
	}
	return d.splice(textEdit{r.Start.Offset, r.End.Offset, text})
}

// SetField sets key in the mapping at mapPath. An existing scalar value is
// patched in place; a missing key is added as a new line after the last
// entry of the mapping.
func SetField(d *Document, mapPath Path, key string, value any) (*Document, error) {
	if v, ok := d.Lookup(mapPath.Append(key)); ok {
		if v.Kind != yaml.ScalarNode {
			return nil, errors.New(errors.ErrCodeInvalidInput, "field %q at %q is not a scalar", key, mapPath.String())
		}
		return PatchScalar(d, mapPath.Append(key), value)
	}

	m, ok := d.Lookup(mapPath)
	if !ok && len(mapPath) == 0 && d.root == nil {
		at, prefix := len(d.src), ""
		if len(d.src) > 0 && d.src[len(d.src)-1] != '\n' {
			prefix = "\n"
		}
		return d.splice(textEdit{at, at, prefix + FormatScalar(key, nil) + ": " + FormatScalar(value, nil) + "\n"})
	}
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidPath, "no node at %q", mapPath.String())
	}
	if m.Kind != yaml.MappingNode {
		return nil, errors.New(errors.ErrCodeInvalidInput, "node at %q is not a mapping", mapPath.String())
	}

	entry := FormatScalar(key, nil) + ": " + FormatScalar(value, nil)
	return d.splice(d.mappingInsert(m, entry))
}

// mappingInsert builds the edit adding one "key: value" entry to m.
func (d *Document) mappingInsert(m *yaml.Node, entry string) textEdit {
	r := d.ranges[m]
	if m.Style&yaml.FlowStyle != 0 {
		closing := r.End.Offset - 1
		if len(m.Content) > 0 {
			return textEdit{closing, closing, ", " + entry}
		}
		return textEdit{closing, closing, entry}
	}

	indent := d.indentOf(m.Content[0])
	at, prefix := d.insertAfterLine(r.End.Offset)
	return textEdit{at, at, prefix + indent + entry + "\n"}
}

// RemoveItem removes the index-th entry of the sequence at seqPath. A block
// sequence that loses its last entry becomes an empty flow sequence so the
// key keeps its array type.
func RemoveItem(d *Document, seqPath Path, index int) (*Document, error) {
	seq, item, err := d.sequenceItem(seqPath, index)
	if err != nil {
		return nil, err
	}
	r := d.ranges[item]

	if seq.Style&yaml.FlowStyle != 0 {
		start, end := r.Start.Offset, r.End.Offset
		switch {
		case index+1 < len(seq.Content):
			end = d.ranges[seq.Content[index+1]].Start.Offset
		case index > 0:
			start = d.ranges[seq.Content[index-1]].End.Offset
		}
		return d.splice(textEdit{start, end, ""})
	}

	start := d.lineStart(r.Start.Offset)
	end := d.nextLine(r.End.Offset)
	if len(seq.Content) > 1 {
		return d.splice(textEdit{start, end, ""})
	}

	// The sequence is emptied: keep the key with an explicit [].
	keyEnd := d.keyEndFor(seqPath)
	if keyEnd < 0 {
		return d.splice(textEdit{start, end, "[]\n"})
	}
	return d.splice(textEdit{start, end, ""}, textEdit{keyEnd, keyEnd, " []"})
}

// keyEndFor returns the offset just past the colon of the key holding the
// value at path, or -1 when the value is not held by a mapping key.
func (d *Document) keyEndFor(path Path) int {
	if len(path) == 0 {
		return -1
	}
	parent, ok := d.Lookup(path.Parent())
	if !ok {
		return -1
	}
	k := MapKey(parent, path.Last())
	if k == nil {
		return -1
	}
	return d.emptyValueRange(k).Start.Offset
}

// DuplicateItem inserts a copy of the index-th entry of the sequence at
// seqPath directly after it. The copy is textually identical, comments
// included; callers usually patch its id afterwards.
func DuplicateItem(d *Document, seqPath Path, index int) (*Document, error) {
	seq, item, err := d.sequenceItem(seqPath, index)
	if err != nil {
		return nil, err
	}
	r := d.ranges[item]

	if seq.Style&yaml.FlowStyle != 0 {
		text := string(d.src[r.Start.Offset:r.End.Offset])
		return d.splice(textEdit{r.End.Offset, r.End.Offset, ", " + text})
	}

	first := d.lineStart(r.Start.Offset)
	last := d.lineEnd(r.End.Offset)
	at, prefix := d.insertAfterLine(r.End.Offset)
	return d.splice(textEdit{at, at, prefix + string(d.src[first:last]) + "\n"})
}

// AppendItem appends a mapping built from fields to the sequence at seqPath.
// When the sequence does not exist yet (missing key or null value) it is
// created under its parent mapping.
func AppendItem(d *Document, seqPath Path, fields []Field) (*Document, error) {
	if len(seqPath) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidPath, "cannot append to the document root")
	}

	n, ok := d.Lookup(seqPath)
	if ok && n.Kind == yaml.SequenceNode {
		if n.Style&yaml.FlowStyle != 0 {
			closing := d.ranges[n].End.Offset - 1
			text := flowMapping(fields)
			if len(n.Content) > 0 {
				text = ", " + text
			}
			return d.splice(textEdit{closing, closing, text})
		}
		first := n.Content[0]
		dash := d.lineStart(d.ranges[first].Start.Offset)
		indent := strings.Repeat(" ", d.dashColumn(dash))
		at, prefix := d.insertAfterLine(d.ranges[n].End.Offset)
		return d.splice(textEdit{at, at, prefix + blockItem(indent, fields)})
	}
	if ok && !(n.Kind == yaml.ScalarNode && n.Tag == "!!null") {
		return nil, errors.New(errors.ErrCodeInvalidInput, "node at %q is not a sequence", seqPath.String())
	}

	parentPath := seqPath.Parent()
	key := seqPath.Last()

	if !ok && len(parentPath) == 0 && d.root == nil {
		at, prefix := len(d.src), ""
		if len(d.src) > 0 && d.src[len(d.src)-1] != '\n' {
			prefix = "\n"
		}
		return d.splice(textEdit{at, at, prefix + FormatScalar(key, nil) + ":\n" + blockItem("  ", fields)})
	}

	parent, pok := d.Lookup(parentPath)
	if !pok || parent.Kind != yaml.MappingNode {
		return nil, errors.New(errors.ErrCodeInvalidPath, "no mapping at %q", parentPath.String())
	}

	if ok {
		// key: (or key: null) becomes a block sequence below the key.
		k := MapKey(parent, key)
		indent := d.indentOf(k) + "  "
		at, prefix := d.insertAfterLine(d.ranges[k].End.Offset)
		edits := []textEdit{{at, at, prefix + blockItem(indent, fields)}}
		if r := d.ranges[n]; r.End.Offset > r.Start.Offset {
			edits = append(edits, textEdit{r.Start.Offset, r.End.Offset, ""})
		}
		return d.splice(edits...)
	}

	if parent.Style&yaml.FlowStyle != 0 {
		return d.splice(d.mappingInsert(parent, FormatScalar(key, nil)+": ["+flowMapping(fields)+"]"))
	}
	indent := d.indentOf(parent.Content[0])
	at, prefix := d.insertAfterLine(d.ranges[parent].End.Offset)
	text := prefix + indent + FormatScalar(key, nil) + ":\n" + blockItem(indent+"  ", fields)
	return d.splice(textEdit{at, at, text})
}

func (d *Document) sequenceItem(seqPath Path, index int) (*yaml.Node, *yaml.Node, error) {
	seq, ok := d.Lookup(seqPath)
	if !ok || seq.Kind != yaml.SequenceNode {
		return nil, nil, errors.New(errors.ErrCodeInvalidPath, "no sequence at %q", seqPath.String())
	}
	if index < 0 || index >= len(seq.Content) {
		return nil, nil, errors.New(errors.ErrCodeInvalidPath, "index %d out of range for %q", index, seqPath.String())
	}
	return seq, seq.Content[index], nil
}

// dashColumn returns the 0-based column of the first '-' on the line
// starting at lineStart.
func (d *Document) dashColumn(lineStart int) int {
	for i := lineStart; i < len(d.src) && d.src[i] != '\n'; i++ {
		if d.src[i] == '-' {
			return i - lineStart
		}
	}
	return 0
}

func blockItem(indent string, fields []Field) string {
	if len(fields) == 0 {
		return indent + "- {}\n"
	}
	var b strings.Builder
	for i, f := range fields {
		if i == 0 {
			b.WriteString(indent + "- ")
		} else {
			b.WriteString(indent + "  ")
		}
		b.WriteString(FormatScalar(f.Key, nil) + ": " + FormatScalar(f.Value, nil) + "\n")
	}
	return b.String()
}

func flowMapping(fields []Field) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, FormatScalar(f.Key, nil)+": "+FormatScalar(f.Value, nil))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
