package yamlcst

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/yamlviz/pkg/errors"
)

const orderFlow = `# Order flow
graph-type: flowchart
direction: LR

nodes:
  - id: start   # entry point
    label: Start
  - id: end
    label: End

edges:
  - from: start
    to: end
`

func mustParse(t *testing.T, text string) *Document {
	t.Helper()
	doc, err := ParseString(text)
	require.NoError(t, err)
	return doc
}

func TestRoundTrip(t *testing.T) {
	inputs := map[string]string{
		"flow document":   orderFlow,
		"empty":           "",
		"comments only":   "# nothing here\n",
		"no final eol":    "a: 1\nb: two",
		"anchors":         "base: &b\n  x: 1\nother: *b\n",
		"flow style":      "nodes: [{id: a, label: A}, {id: b}]\n",
		"block scalar":    "text: |\n  line one\n  line two\nnext: 2\n",
		"crlf":            "a: 1\r\nb: 2\r\n",
		"odd indentation": "a:\n      - x\n      -   y\n",
		"unicode":         "label: \"héllo wörld\"   # ✓\n",
	}

	for name, text := range inputs {
		t.Run(name, func(t *testing.T) {
			doc := mustParse(t, text)
			assert.Equal(t, text, string(doc.Serialize()))
		})
	}
}

func TestParseInvalid(t *testing.T) {
	_, err := ParseString("a: [1, 2\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidYAML))
}

func TestRangeOf(t *testing.T) {
	doc := mustParse(t, orderFlow)

	label, ok := doc.Lookup(ParsePath("nodes.0.label"))
	require.True(t, ok)
	r := doc.RangeOf(label)
	assert.Equal(t, 7, r.Start.Line)
	assert.Equal(t, 12, r.Start.Column)
	assert.Equal(t, 7, r.End.Line)
	assert.Equal(t, 17, r.End.Column)
	assert.Equal(t, "Start", orderFlow[r.Start.Offset:r.End.Offset])

	// Trailing comments are not part of a scalar.
	id, ok := doc.Lookup(ParsePath("nodes.0.id"))
	require.True(t, ok)
	r = doc.RangeOf(id)
	assert.Equal(t, "start", orderFlow[r.Start.Offset:r.End.Offset])

	item, ok := doc.Lookup(ParsePath("nodes.1"))
	require.True(t, ok)
	r = doc.RangeOf(item)
	assert.Equal(t, "id: end\n    label: End", orderFlow[r.Start.Offset:r.End.Offset])
}

func TestRangeOfScalarStyles(t *testing.T) {
	tests := []struct {
		name string
		text string
		path string
		want string
	}{
		{"double quoted", "a: \"x \\\" y\"  # c\n", "a", "\"x \\\" y\""},
		{"single quoted", "a: 'it''s'\n", "a", "'it''s'"},
		{"multi-line plain", "a: hello\n  world\nb: 1\n", "a", "hello\n  world"},
		{"literal block", "a: |\n  one\n  two\nb: 1\n", "a", "|\n  one\n  two"},
		{"anchored", "a: &x value\n", "a", "value"},
		{"flow item", "a: [one, two]\n", "a.1", "two"},
		{"flow sequence", "a: [one, two]  # c\n", "a", "[one, two]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, tt.text)
			n, ok := doc.Lookup(ParsePath(tt.path))
			require.True(t, ok)
			r := doc.RangeOf(n)
			assert.Equal(t, tt.want, tt.text[r.Start.Offset:r.End.Offset])
		})
	}
}

func TestLookupDottedKey(t *testing.T) {
	doc := mustParse(t, "meta:\n  v1.2: old\n  v1:\n    \"2\": other\n")
	n, ok := doc.Lookup(ParsePath("/meta/v1.2"))
	require.True(t, ok)
	assert.Equal(t, "old", n.Value)
	n, ok = doc.Lookup(ParsePath("meta.v1.2"))
	require.True(t, ok)
	assert.Equal(t, "other", n.Value)
}

func TestLookup(t *testing.T) {
	doc := mustParse(t, "base: &b\n  x: 1\nother: *b\nlist: [a, b]\n")

	n, ok := doc.Lookup(ParsePath("other.x"))
	require.True(t, ok)
	assert.Equal(t, "1", n.Value)

	n, ok = doc.Lookup(FromPointer("/list/1"))
	require.True(t, ok)
	assert.Equal(t, "b", n.Value)

	_, ok = doc.Lookup(ParsePath("list.5"))
	assert.False(t, ok)
	_, ok = doc.Lookup(ParsePath("missing.x"))
	assert.False(t, ok)

	assert.Equal(t, doc.Root(), doc.Nearest(ParsePath("missing.x")))
}

func TestValue(t *testing.T) {
	doc := mustParse(t, "a: 1\nb: [true, 2.5, ~]\nc: {d: text}\n")
	assert.Equal(t, map[string]any{
		"a": 1,
		"b": []any{true, 2.5, nil},
		"c": map[string]any{"d": "text"},
	}, Value(doc.Root()))
}

func TestPatchScalar(t *testing.T) {
	doc := mustParse(t, orderFlow)

	patched, err := PatchScalar(doc, ParsePath("nodes.0.label"), "Begin")
	require.NoError(t, err)

	want := `# Order flow
graph-type: flowchart
direction: LR

nodes:
  - id: start   # entry point
    label: Begin
  - id: end
    label: End

edges:
  - from: start
    to: end
`
	assert.Equal(t, want, patched.String())
	assert.Equal(t, orderFlow, doc.String(), "original document must not change")
}

func TestPatchScalarQuoting(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		value any
		want  string
	}{
		{"plain stays plain", "a: x\n", "y z", "a: y z\n"},
		{"keeps double quotes", "a: \"x\"\n", `say "hi"`, "a: \"say \\\"hi\\\"\"\n"},
		{"keeps single quotes", "a: 'x'\n", "it's", "a: 'it''s'\n"},
		{"bool-looking string", "a: x\n", "true", "a: \"true\"\n"},
		{"number-looking string", "a: x\n", "42", "a: \"42\"\n"},
		{"colon space", "a: x\n", "k: v", "a: \"k: v\"\n"},
		{"number", "a: 1\n", 2.5, "a: 2.5\n"},
		{"bool", "a: no\n", false, "a: false\n"},
		{"empty value", "a:\nb: 1\n", "set", "a: set\nb: 1\n"},
		{"multi-line plain", "a: hello\n  world\nb: 1\n", "x", "a: x\nb: 1\n"},
		{"literal block", "a: |\n  one\n  two\nb: 1\n", "z", "a: z\nb: 1\n"},
		{"keeps comment", "a: x # note\n", "y", "a: y # note\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, tt.text)
			got, err := PatchScalar(doc, ParsePath("a"), tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestPatchScalarErrors(t *testing.T) {
	doc := mustParse(t, orderFlow)

	_, err := PatchScalar(doc, ParsePath("nodes.9.label"), "x")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidPath))

	_, err = PatchScalar(doc, ParsePath("nodes"), "x")
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))

	assert.Equal(t, orderFlow, doc.String())
}

func TestSetField(t *testing.T) {
	t.Run("existing key is patched", func(t *testing.T) {
		doc := mustParse(t, orderFlow)
		got, err := SetField(doc, nil, "direction", "TB")
		require.NoError(t, err)
		assert.Contains(t, got.String(), "direction: TB\n")
	})

	t.Run("missing key in sequence item", func(t *testing.T) {
		doc := mustParse(t, "nodes:\n  - id: start\n    label: Start\n  - id: end\n")
		got, err := SetField(doc, ParsePath("nodes.1"), "label", "End")
		require.NoError(t, err)
		assert.Equal(t, "nodes:\n  - id: start\n    label: Start\n  - id: end\n    label: End\n", got.String())
	})

	t.Run("missing key without final newline", func(t *testing.T) {
		doc := mustParse(t, "a: 1")
		got, err := SetField(doc, nil, "b", 2)
		require.NoError(t, err)
		assert.Equal(t, "a: 1\nb: 2\n", got.String())
	})

	t.Run("flow mapping", func(t *testing.T) {
		doc := mustParse(t, "meta: {a: 1}\n")
		got, err := SetField(doc, ParsePath("meta"), "b", "two")
		require.NoError(t, err)
		assert.Equal(t, "meta: {a: 1, b: two}\n", got.String())
	})

	t.Run("empty document", func(t *testing.T) {
		doc := mustParse(t, "")
		got, err := SetField(doc, nil, "direction", "LR")
		require.NoError(t, err)
		assert.Equal(t, "direction: LR\n", got.String())
	})

	t.Run("non-scalar value", func(t *testing.T) {
		doc := mustParse(t, orderFlow)
		_, err := SetField(doc, nil, "nodes", "x")
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
	})
}

func TestRemoveItem(t *testing.T) {
	t.Run("block sequence", func(t *testing.T) {
		doc := mustParse(t, orderFlow)
		got, err := RemoveItem(doc, ParsePath("nodes"), 0)
		require.NoError(t, err)

		want := `# Order flow
graph-type: flowchart
direction: LR

nodes:
  - id: end
    label: End

edges:
  - from: start
    to: end
`
		assert.Equal(t, want, got.String())
	})

	t.Run("last entry keeps the key", func(t *testing.T) {
		doc := mustParse(t, "nodes:\n  - id: a\nedges: []\n")
		got, err := RemoveItem(doc, ParsePath("nodes"), 0)
		require.NoError(t, err)
		assert.Equal(t, "nodes: []\nedges: []\n", got.String())
	})

	t.Run("flow sequence", func(t *testing.T) {
		doc := mustParse(t, "a: [x, y, z]\n")
		got, err := RemoveItem(doc, ParsePath("a"), 1)
		require.NoError(t, err)
		assert.Equal(t, "a: [x, z]\n", got.String())

		got, err = RemoveItem(doc, ParsePath("a"), 2)
		require.NoError(t, err)
		assert.Equal(t, "a: [x, y]\n", got.String())
	})

	t.Run("out of range", func(t *testing.T) {
		doc := mustParse(t, orderFlow)
		_, err := RemoveItem(doc, ParsePath("nodes"), 2)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidPath))
	})
}

func TestDuplicateItem(t *testing.T) {
	doc := mustParse(t, "nodes:\n  - id: a   # first\n    label: A\n  - id: b\n")
	got, err := DuplicateItem(doc, ParsePath("nodes"), 0)
	require.NoError(t, err)
	assert.Equal(t, "nodes:\n  - id: a   # first\n    label: A\n  - id: a   # first\n    label: A\n  - id: b\n", got.String())

	flow := mustParse(t, "a: [{id: x}]\n")
	got, err = DuplicateItem(flow, ParsePath("a"), 0)
	require.NoError(t, err)
	assert.Equal(t, "a: [{id: x}, {id: x}]\n", got.String())
}

func TestAppendItem(t *testing.T) {
	fields := []Field{{"from", "start"}, {"to", "end"}}

	t.Run("block sequence", func(t *testing.T) {
		doc := mustParse(t, orderFlow)
		got, err := AppendItem(doc, ParsePath("nodes"), []Field{{"id", "review"}, {"label", "Needs review"}})
		require.NoError(t, err)
		assert.Contains(t, got.String(), "    label: End\n  - id: review\n    label: Needs review\n\nedges:")
	})

	t.Run("flow sequence", func(t *testing.T) {
		doc := mustParse(t, "edges: []\n")
		got, err := AppendItem(doc, ParsePath("edges"), fields)
		require.NoError(t, err)
		assert.Equal(t, "edges: [{from: start, to: end}]\n", got.String())
	})

	t.Run("missing key", func(t *testing.T) {
		doc := mustParse(t, "nodes:\n  - id: start\n")
		got, err := AppendItem(doc, ParsePath("edges"), fields)
		require.NoError(t, err)
		assert.Equal(t, "nodes:\n  - id: start\nedges:\n  - from: start\n    to: end\n", got.String())
	})

	t.Run("null value", func(t *testing.T) {
		doc := mustParse(t, "edges: # none yet\nnodes: []\n")
		got, err := AppendItem(doc, ParsePath("edges"), fields)
		require.NoError(t, err)
		assert.Equal(t, "edges: # none yet\n  - from: start\n    to: end\nnodes: []\n", got.String())
	})

	t.Run("explicit null", func(t *testing.T) {
		doc := mustParse(t, "edges: ~\n")
		got, err := AppendItem(doc, ParsePath("edges"), fields)
		require.NoError(t, err)
		n, ok := got.Lookup(ParsePath("edges.0.to"))
		require.True(t, ok)
		assert.Equal(t, "end", n.Value)
	})

	t.Run("not a sequence", func(t *testing.T) {
		doc := mustParse(t, "edges: text\n")
		_, err := AppendItem(doc, ParsePath("edges"), fields)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
	})
}

func TestFormatScalar(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{nil, "null"},
		{true, "true"},
		{12, "12"},
		{1.5, "1.5"},
		{"plain text", "plain text"},
		{"", `""`},
		{" padded", `" padded"`},
		{"null", `"null"`},
		{"a,b", `"a,b"`},
		{"- item", `"- item"`},
		{"line\nbreak", `"line\nbreak"`},
		{"x #y", `"x #y"`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatScalar(tt.value, nil), "FormatScalar(%#v)", tt.value)
	}

	single := &yaml.Node{Kind: yaml.ScalarNode, Style: yaml.SingleQuotedStyle}
	assert.Equal(t, `"two\nlines"`, FormatScalar("two\nlines", single))
}

func TestPath(t *testing.T) {
	p := ParsePath("nodes[0].label")
	assert.Equal(t, Path{"nodes", "0", "label"}, p)
	assert.Equal(t, "nodes.0.label", p.String())
	assert.Equal(t, "/nodes/0/label", p.Pointer())
	assert.Equal(t, Path{"a/b", "c~d"}, FromPointer("/a~1b/c~0d"))
	assert.Nil(t, ParsePath(""))

	assert.Equal(t, Path{"meta", "v1.2"}, ParsePath("/meta/v1.2"), "pointer form keeps dots in keys")
	assert.Equal(t, Path{"a[0]"}, ParsePath("/a[0]"))
	assert.Equal(t, Path{"a/b"}, ParsePath("/a~1b"))
	assert.Equal(t, Path{"meta", "v1", "2"}, ParsePath("meta.v1.2"))

	parent := p.Parent()
	x := parent.Append("x")
	y := parent.Append("y")
	assert.Equal(t, "nodes.0.x", x.String())
	assert.Equal(t, "nodes.0.y", y.String())
	assert.Equal(t, "label", p.Last())
	assert.Equal(t, "nodes.1", Path{"nodes"}.Index(1).String())
}
