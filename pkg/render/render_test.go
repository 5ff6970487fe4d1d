package render

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/yamlviz/pkg/errors"
	"github.com/matzehuels/yamlviz/pkg/graph"
	"github.com/matzehuels/yamlviz/pkg/mapping"
)

func TestFlowchart(t *testing.T) {
	d := &Diagram{
		Type:      mapping.MermaidFlowchart,
		Direction: "LR",
		Nodes: []graph.Node{
			{ID: "start", Label: "Start", Shape: "stadium"},
			{ID: "check", Label: `Is "ok"?`, Shape: "diamond", Style: "active"},
			{ID: "read", Label: "Read", Shape: "[/%s/]", Annotation: "@ops"},
			{ID: "end node", Label: "End", Shape: "unknown"},
		},
		Edges: []graph.Edge{
			{From: "start", To: "check", Arrow: "-->"},
			{From: "check", To: "read", Label: "yes", Arrow: "-.->"},
			{From: "read", To: "end node"},
		},
		ClassDefs: map[string]string{"active": "fill:#fff3bf,stroke:#e67700"},
	}

	text, err := Mermaid(d)
	require.NoError(t, err)
	assert.Equal(t, `flowchart LR
    start(["Start"])
    check{"Is #quot;ok#quot;?"}
    read[/"Read<br/>@ops"/]
    end_node["End"]
    start --> check
    check -.->|"yes"| read
    read --> end_node
    classDef active fill:#fff3bf,stroke:#e67700
    class check active
`, text)
}

func TestStateDiagram(t *testing.T) {
	d := &Diagram{
		Type:      "stateDiagram-v2",
		Direction: "TD",
		Nodes: []graph.Node{
			{ID: "_start", Kind: graph.KindInitial},
			{ID: "idle", Label: "idle"},
			{ID: "busy", Label: "Working", Annotation: "timeout 5s", Style: "waiting"},
			{ID: "_end", Kind: graph.KindFinal},
		},
		Edges: []graph.Edge{
			{From: "_start", To: "idle", Kind: graph.KindConnector},
			{From: "idle", To: "busy", Label: "start"},
			{From: "busy", To: "_end", Kind: graph.KindConnector},
		},
	}

	text, err := Mermaid(d)
	require.NoError(t, err)
	assert.Equal(t, `stateDiagram-v2
    direction TB
    idle
    state "Working" as busy
    busy : timeout 5s
    [*] --> idle
    idle --> busy : start
    busy --> [*]
    class busy waiting
`, text)
}

func TestERDiagram(t *testing.T) {
	d := &Diagram{
		Type: mapping.MermaidERDiagram,
		Nodes: []graph.Node{
			{ID: "CUSTOMER", Metadata: map[string]any{"attributes": []any{
				map[string]any{"type": "string", "name": "name", "key": "PK"},
				map[string]any{"type": "int"},
			}}},
			{ID: "ORDER"},
			{ID: "AUDIT"},
		},
		Edges: []graph.Edge{{From: "CUSTOMER", To: "ORDER", Label: "places", Arrow: "||--o{"}},
	}

	text, err := Mermaid(d)
	require.NoError(t, err)
	assert.Equal(t, `erDiagram
    CUSTOMER {
        string name PK
    }
    AUDIT
    CUSTOMER ||--o{ ORDER : "places"
`, text)
}

func TestClassDiagram(t *testing.T) {
	d := &Diagram{
		Type:      mapping.MermaidClassDiagram,
		Direction: "LR",
		Nodes: []graph.Node{
			{ID: "Animal", Label: "Animal", Style: "abstract", Metadata: map[string]any{"members": []any{"+name string", "+speak()"}}},
			{ID: "Dog", Label: "Good dog"},
		},
		Edges: []graph.Edge{{From: "Dog", To: "Animal", Arrow: "--|>", Label: "is a"}},
		ClassDefs: map[string]string{
			"abstract": "font-style:italic",
		},
	}

	text, err := Mermaid(d)
	require.NoError(t, err)
	assert.Equal(t, `classDiagram
    direction LR
    class Animal {
        +name string
        +speak()
    }
    class Dog["Good dog"]
    Dog --|> Animal : is a
    classDef abstract font-style:italic
    cssClass "Animal" abstract
`, text)
}

func TestMermaidUnsupported(t *testing.T) {
	_, err := Mermaid(&Diagram{Type: "gantt"})
	assert.True(t, errors.Is(err, errors.ErrCodeUnsupported))
}

func TestMermaidDeterministic(t *testing.T) {
	d := &Diagram{
		Type: mapping.MermaidFlowchart,
		Nodes: []graph.Node{
			{ID: "a", Style: "x"}, {ID: "b", Style: "y"}, {ID: "c", Style: "x"},
		},
		ClassDefs: map[string]string{"x": "fill:#000", "y": "fill:#fff", "z": "fill:#111"},
	}
	first, err := Mermaid(d)
	require.NoError(t, err)
	for range 10 {
		again, err := Mermaid(d)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Contains(t, first, "class a,c x\n")
}

func TestClassDefs(t *testing.T) {
	css := `
/* state colors */
.node.done rect { fill: #d3f9d8; stroke: #2b8a3e; }
.node.done-ish rect { fill: #000; }
.done, .other { stroke-width: 2px; cursor: pointer; }
.failure { fill: rgb(255, 0, 0); }
.done { fill: #eee }
`
	defs := ClassDefs(css, []string{"done", "failure", "missing"})
	assert.Equal(t, map[string]string{
		"done":    "fill:#eee,stroke:#2b8a3e,stroke-width:2px",
		"failure": `fill:rgb(255\, 0\, 0)`,
	}, defs)

	assert.Nil(t, ClassDefs("", []string{"done"}))
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	upper := RendererFunc(func(_ context.Context, d *Diagram) (string, error) {
		ids := make([]string, len(d.Nodes))
		for i, n := range d.Nodes {
			ids[i] = strings.ToUpper(n.ID)
		}
		return strings.Join(ids, " "), nil
	})
	require.NoError(t, reg.Register("upper", upper))
	assert.Error(t, reg.Register("upper", upper))
	assert.Error(t, reg.Register("", upper))
	assert.Equal(t, []string{"upper"}, reg.Names())

	d := &Diagram{Type: mapping.MermaidFlowchart, Nodes: []graph.Node{{ID: "a"}, {ID: "b"}}}
	text, err := reg.Render(context.Background(), "upper", d)
	require.NoError(t, err)
	assert.Equal(t, "A B", text)

	text, err = reg.Render(context.Background(), "", d)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "flowchart TB\n"))

	_, err = reg.Render(context.Background(), "missing", d)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))

	var none *Registry
	_, err = none.Render(context.Background(), "upper", d)
	assert.Error(t, err)
}

func TestSafeID(t *testing.T) {
	assert.Equal(t, "a_b", SafeID("a b"))
	assert.Equal(t, "ok-id_1", SafeID("ok-id_1"))
	assert.Equal(t, "_", SafeID(""))
	assert.Equal(t, "end_", SafeID("end"))
	assert.Equal(t, "End", SafeID("End"))
}

func TestCollidingIDsStayDistinct(t *testing.T) {
	d := &Diagram{
		Type: mapping.MermaidFlowchart,
		Nodes: []graph.Node{
			{ID: "a.b", Label: "First", Style: "active"},
			{ID: "a_b", Label: "Second"},
			{ID: "end", Label: "Stop"},
			{ID: "end_", Label: "After"},
			{ID: "c", Label: "c"},
		},
		Edges: []graph.Edge{
			{From: "a.b", To: "c"},
			{From: "a_b", To: "end"},
		},
	}

	text, err := Mermaid(d)
	require.NoError(t, err)
	assert.Equal(t, `flowchart TB
    a_b_2["First"]
    a_b["Second"]
    end__2["Stop"]
    end_["After"]
    c["c"]
    a_b_2 --> c
    a_b --> end__2
    class a_b_2 active
`, text)

	d.Type = "stateDiagram-v2"
	text, err = Mermaid(d)
	require.NoError(t, err)
	assert.Contains(t, text, `state "First" as a_b_2`)
	assert.Contains(t, text, "a_b_2 --> c\n")
}
