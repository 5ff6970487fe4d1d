package yamlcst

import (
	"bytes"
	"sort"
	"strconv"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/yamlviz/pkg/errors"
)

// Position is a location in the source text. Line and Column are 1-based
// (Column counts characters, as YAML does); Offset is the 0-based byte offset.
type Position struct {
	Line   int `json:"line" msgpack:"line"`
	Column int `json:"column" msgpack:"column"`
	Offset int `json:"offset" msgpack:"offset"`
}

// SourceRange is the half-open span [Start, End) a node occupies.
type SourceRange struct {
	Start Position `json:"start" msgpack:"start"`
	End   Position `json:"end" msgpack:"end"`
}

// IsZero reports whether the range was never set.
func (r SourceRange) IsZero() bool {
	return r.Start.Line == 0 && r.End.Line == 0
}

// Document is a parsed YAML document together with the exact text it was
// parsed from. Documents are immutable; edit functions return new ones.
type Document struct {
	src        []byte
	root       *yaml.Node
	ranges     map[*yaml.Node]SourceRange
	lineStarts []int
}

// Parse parses text into a Document. Only the first YAML document of a
// stream is represented. Empty input yields a document with a nil root.
func Parse(text []byte) (*Document, error) {
	src := bytes.Clone(text)

	var top yaml.Node
	if err := yaml.Unmarshal(src, &top); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidYAML, err, "parse yaml")
	}

	d := &Document{
		src:        src,
		ranges:     make(map[*yaml.Node]SourceRange),
		lineStarts: lineStarts(src),
	}
	if top.Kind == yaml.DocumentNode && len(top.Content) > 0 {
		d.root = top.Content[0]
		d.measure(d.root, false)
	}
	return d, nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(text string) (*Document, error) {
	return Parse([]byte(text))
}

// Serialize returns the document text. Because edits are applied to the text
// itself, this is the identity on unmodified documents.
func (d *Document) Serialize() []byte {
	return bytes.Clone(d.src)
}

// String returns the document text.
func (d *Document) String() string {
	return string(d.src)
}

// Root returns the top-level node, or nil for an empty document.
func (d *Document) Root() *yaml.Node {
	return d.root
}

// RangeOf returns the recorded span of n. Nodes that do not belong to the
// document yield a zero range.
func (d *Document) RangeOf(n *yaml.Node) SourceRange {
	return d.ranges[n]
}

// Lookup resolves path against the document. Aliases along the way are
// followed; the final node is returned as written.
func (d *Document) Lookup(path Path) (*yaml.Node, bool) {
	n := d.root
	if n == nil {
		return nil, false
	}
	for _, seg := range path {
		n = Deref(n)
		switch n.Kind {
		case yaml.MappingNode:
			v := MapValue(n, seg)
			if v == nil {
				return nil, false
			}
			n = v
		case yaml.SequenceNode:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(n.Content) {
				return nil, false
			}
			n = n.Content[i]
		default:
			return nil, false
		}
	}
	return n, true
}

// Nearest resolves as much of path as exists and returns the deepest node
// found. It is used to attach diagnostics about missing nodes to their
// closest existing ancestor.
func (d *Document) Nearest(path Path) *yaml.Node {
	for i := len(path); i >= 0; i-- {
		if n, ok := d.Lookup(path[:i]); ok {
			return n
		}
	}
	return d.root
}

// Deref follows alias nodes to their anchors.
func Deref(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

// MapValue returns the value stored under key in mapping node m, or nil.
func MapValue(m *yaml.Node, key string) *yaml.Node {
	m = Deref(m)
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// MapKey returns the key node for key in mapping node m, or nil.
func MapKey(m *yaml.Node, key string) *yaml.Node {
	m = Deref(m)
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i]
		}
	}
	return nil
}

// ScalarString returns the scalar text stored under key in m, or "".
func ScalarString(m *yaml.Node, key string) string {
	v := Deref(MapValue(m, key))
	if v == nil || v.Kind != yaml.ScalarNode || v.Tag == "!!null" {
		return ""
	}
	return v.Value
}

// Value decodes n into plain Go values: map[string]any, []any, string,
// bool, int, float64 or nil.
func Value(n *yaml.Node) any {
	n = Deref(n)
	if n == nil {
		return nil
	}
	switch n.Kind {
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			out[n.Content[i].Value] = Value(n.Content[i+1])
		}
		return out
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			out = append(out, Value(c))
		}
		return out
	case yaml.ScalarNode:
		switch n.Tag {
		case "!!null":
			return nil
		case "!!bool", "!!int", "!!float":
			var v any
			if err := n.Decode(&v); err == nil {
				return v
			}
		}
		return n.Value
	}
	return nil
}

// =============================================================================
// Range computation
// =============================================================================

func lineStarts(src []byte) []int {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// offsetOf converts a 1-based line/column pair into a byte offset.
func (d *Document) offsetOf(line, col int) int {
	if line < 1 {
		return 0
	}
	if line > len(d.lineStarts) {
		return len(d.src)
	}
	off := d.lineStarts[line-1]
	for c := 1; c < col && off < len(d.src) && d.src[off] != '\n'; c++ {
		_, size := utf8.DecodeRune(d.src[off:])
		off += size
	}
	return off
}

// position converts a byte offset into a Position.
func (d *Document) position(off int) Position {
	line := sort.Search(len(d.lineStarts), func(i int) bool { return d.lineStarts[i] > off }) - 1
	if line < 0 {
		line = 0
	}
	col := utf8.RuneCount(d.src[d.lineStarts[line]:off]) + 1
	return Position{Line: line + 1, Column: col, Offset: off}
}

func (d *Document) span(start, end int) SourceRange {
	if end < start {
		end = start
	}
	return SourceRange{Start: d.position(start), End: d.position(end)}
}

// measure records the range of n and all of its descendants.
func (d *Document) measure(n *yaml.Node, flow bool) SourceRange {
	start := d.offsetOf(n.Line, n.Column)

	var r SourceRange
	switch n.Kind {
	case yaml.ScalarNode:
		s := d.skipProperties(start)
		r = d.span(s, d.scalarEnd(s, n, flow))

	case yaml.AliasNode:
		r = d.span(start, min(start+1+len(n.Value), len(d.src)))

	case yaml.MappingNode, yaml.SequenceNode:
		isFlow := flow || n.Style&yaml.FlowStyle != 0
		s := start
		if n.Style&yaml.FlowStyle != 0 {
			s = d.skipProperties(start)
		}
		end := s
		for i, c := range n.Content {
			cr := d.measure(c, isFlow)
			if n.Kind == yaml.MappingNode && i%2 == 1 && isEmptyNull(c) {
				cr = d.emptyValueRange(n.Content[i-1])
				d.ranges[c] = cr
			}
			end = max(end, cr.End.Offset)
		}
		if n.Style&yaml.FlowStyle != 0 {
			if closing := d.matchBracket(s); closing >= 0 {
				end = closing + 1
			}
		}
		r = d.span(s, end)
	}

	d.ranges[n] = r
	return r
}

func isEmptyNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null" && n.Value == "" && n.Style == 0
}

// emptyValueRange returns a zero-width range right after the colon that
// follows key. Empty values report the position of the next token, which
// would make patches land on the wrong line.
func (d *Document) emptyValueRange(key *yaml.Node) SourceRange {
	off := d.ranges[key].End.Offset
	for off < len(d.src) && (d.src[off] == ' ' || d.src[off] == '\t') {
		off++
	}
	if off < len(d.src) && d.src[off] == ':' {
		off++
	}
	return d.span(off, off)
}

// skipProperties skips anchors and tags in front of a node's content.
func (d *Document) skipProperties(off int) int {
	for off < len(d.src) && (d.src[off] == '&' || d.src[off] == '!') {
		for off < len(d.src) && !isBlank(d.src[off]) && d.src[off] != '\n' {
			off++
		}
		for off < len(d.src) && isBlank(d.src[off]) {
			off++
		}
	}
	return off
}

func (d *Document) scalarEnd(s int, n *yaml.Node, flow bool) int {
	if s >= len(d.src) {
		return s
	}
	switch {
	case n.Style&yaml.DoubleQuotedStyle != 0 && d.src[s] == '"':
		return d.quotedEnd(s, '"')
	case n.Style&yaml.SingleQuotedStyle != 0 && d.src[s] == '\'':
		return d.quotedEnd(s, '\'')
	case n.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0:
		return d.blockEnd(s)
	}
	return d.plainEnd(s, n.Value, flow)
}

func (d *Document) quotedEnd(s int, quote byte) int {
	for i := s + 1; i < len(d.src); i++ {
		switch {
		case quote == '"' && d.src[i] == '\\':
			i++
		case d.src[i] == quote:
			if quote == '\'' && i+1 < len(d.src) && d.src[i+1] == '\'' {
				i++
				continue
			}
			return i + 1
		}
	}
	return len(d.src)
}

// blockEnd finds the end of a literal or folded block scalar starting at the
// indicator character.
func (d *Document) blockEnd(s int) int {
	end := s
	for end < len(d.src) && !isBlank(d.src[end]) && d.src[end] != '\n' {
		end++
	}

	indent := -1
	line := d.nextLine(s)
	for line < len(d.src) {
		lineEnd := d.lineEnd(line)
		content := line
		for content < lineEnd && d.src[content] == ' ' {
			content++
		}
		if content == lineEnd || (content+1 == lineEnd && d.src[content] == '\r') {
			line = d.nextLine(line)
			continue
		}
		if indent < 0 {
			indent = content - line
		}
		if content-line < indent {
			break
		}
		end = lineEnd
		if end > line && d.src[end-1] == '\r' {
			end--
		}
		line = d.nextLine(line)
	}
	return end
}

func (d *Document) plainEnd(s int, value string, flow bool) int {
	i := d.plainLineEnd(s, flow)
	end := trimRight(d.src, s, i)

	// Multi-line plain scalars fold line breaks into spaces.
	folded := string(d.src[s:end])
	for len(folded) < len(value) {
		line := d.nextLine(end)
		if line >= len(d.src) {
			break
		}
		content := line
		for content < len(d.src) && isBlank(d.src[content]) {
			content++
		}
		lineEnd := trimRight(d.src, content, d.plainLineEnd(content, flow))
		if lineEnd <= content {
			break
		}
		candidate := folded + " " + string(d.src[content:lineEnd])
		if len(candidate) > len(value) || value[:len(candidate)] != candidate {
			break
		}
		folded, end = candidate, lineEnd
	}
	return end
}

func (d *Document) plainLineEnd(s int, flow bool) int {
	i := s
	for i < len(d.src) {
		c := d.src[i]
		if c == '\n' || c == '\r' {
			break
		}
		if c == ':' && (i+1 == len(d.src) || isBlank(d.src[i+1]) || d.src[i+1] == '\n' || d.src[i+1] == '\r' ||
			(flow && isFlowIndicator(d.src[i+1]))) {
			break
		}
		if c == '#' && i > s && isBlank(d.src[i-1]) {
			break
		}
		if flow && isFlowIndicator(c) {
			break
		}
		i++
	}
	return i
}

// matchBracket returns the offset of the bracket closing the flow collection
// opened at s, or -1.
func (d *Document) matchBracket(s int) int {
	if s >= len(d.src) || (d.src[s] != '[' && d.src[s] != '{') {
		return -1
	}
	depth := 0
	for i := s; i < len(d.src); i++ {
		switch d.src[i] {
		case '"':
			i = d.quotedEnd(i, '"') - 1
		case '\'':
			i = d.quotedEnd(i, '\'') - 1
		case '#':
			if i > 0 && isBlank(d.src[i-1]) {
				i = d.lineEnd(i) - 1
			}
		case '[', '{':
			depth++
		case ']', '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// lineEnd returns the offset of the newline ending the line containing off,
// or len(src).
func (d *Document) lineEnd(off int) int {
	for off < len(d.src) && d.src[off] != '\n' {
		off++
	}
	return off
}

// nextLine returns the offset of the first byte after the line containing off.
func (d *Document) nextLine(off int) int {
	off = d.lineEnd(off)
	if off < len(d.src) {
		off++
	}
	return off
}

// lineStart returns the offset of the first byte of the line containing off.
func (d *Document) lineStart(off int) int {
	for off > 0 && d.src[off-1] != '\n' {
		off--
	}
	return off
}

func isBlank(b byte) bool { return b == ' ' || b == '\t' }

func isFlowIndicator(b byte) bool {
	return b == ',' || b == '[' || b == ']' || b == '{' || b == '}'
}

func trimRight(src []byte, start, end int) int {
	for end > start && (isBlank(src[end-1]) || src[end-1] == '\r') {
		end--
	}
	return end
}
