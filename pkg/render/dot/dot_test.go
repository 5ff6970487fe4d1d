package dot

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/yamlviz/pkg/graph"
	"github.com/matzehuels/yamlviz/pkg/render"
)

func testDiagram() *render.Diagram {
	return &render.Diagram{
		Type:      "state-machine",
		Direction: "LR",
		Nodes: []graph.Node{
			{ID: "_start", Kind: graph.KindInitial},
			{ID: "idle", Label: "Idle", Shape: "round"},
			{ID: "db", Label: "Store", Shape: "database", Style: "done", Annotation: "@ops"},
			{ID: "_end", Kind: graph.KindFinal},
		},
		Edges: []graph.Edge{
			{From: "_start", To: "idle", Arrow: "-->"},
			{From: "idle", To: "db", Label: "save", Arrow: "-.->"},
			{From: "db", To: "_end", Arrow: "==>"},
		},
		ClassDefs: map[string]string{"done": "fill:#d3f9d8,stroke:#2b8a3e"},
	}
}

func TestToDOT(t *testing.T) {
	out := ToDOT(testDiagram(), Options{})

	assert.True(t, strings.HasPrefix(out, "digraph G {\n  rankdir=LR;\n"))
	assert.Contains(t, out, `"_start" [label="", shape=point, width=0.2, fillcolor=black];`)
	assert.Contains(t, out, `"idle" [label="Idle"];`)
	assert.Contains(t, out, `"db" [label="Store", shape=cylinder, style="filled", fillcolor="#d3f9d8", color="#2b8a3e"];`)
	assert.Contains(t, out, `"_start" -> "idle";`)
	assert.Contains(t, out, `"idle" -> "db" [label="save", style=dashed];`)
	assert.Contains(t, out, `"db" -> "_end" [penwidth=2];`)
	assert.True(t, strings.HasSuffix(out, "}\n"))
}

func TestToDOTDetailed(t *testing.T) {
	d := testDiagram()
	d.Nodes[1].Metadata = map[string]any{"b": 2, "a": 1}
	out := ToDOT(d, Options{Detailed: true})

	assert.Contains(t, out, `"idle" [label="Idle\na: 1\nb: 2"];`)
	assert.Contains(t, out, `label="Store\n@ops"`)
}

func TestRenderer(t *testing.T) {
	reg := render.NewRegistry()
	require.NoError(t, reg.Register("dot", Renderer{}))

	text, err := reg.Render(context.Background(), "dot", testDiagram())
	require.NoError(t, err)
	assert.Equal(t, ToDOT(testDiagram(), Options{}), text)
}

func TestNormalizeViewBox(t *testing.T) {
	svg := []byte(`<svg width="10pt" viewBox="0.00 0.00 120.50 80.00" xmlns="x"><g/></svg>`)
	out := string(normalizeViewBox(svg))
	assert.Equal(t, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 120.50 80.00" width="120" height="80"><g/></svg>`, out)

	plain := []byte(`<svg><g/></svg>`)
	assert.Equal(t, plain, normalizeViewBox(plain))
}
