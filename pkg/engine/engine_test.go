package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/yamlviz/pkg/graph"
	"github.com/matzehuels/yamlviz/pkg/graphtype"
	"github.com/matzehuels/yamlviz/pkg/mapping"
	"github.com/matzehuels/yamlviz/pkg/render"
	"github.com/matzehuels/yamlviz/pkg/schema"
	"github.com/matzehuels/yamlviz/pkg/transform"
	"github.com/matzehuels/yamlviz/pkg/yamlcst"
)

const simpleMapping = `
map:
  id: simple
  version: 1
node-shapes:
  source-path: nodes
  id-field: id
  label-field: label
edge-links:
  source-path: edges
  from-field: from
  to-field: to
`

const simpleDoc = `# pipeline
nodes:
  - id: start
    label: Start
  - id: end
    label: End
edges:
  - from: start
    to: end
`

func simpleType(t *testing.T, extra string) *graphtype.GraphType {
	t.Helper()
	gm, err := mapping.ParseString(simpleMapping+extra, 1)
	require.NoError(t, err)
	return &graphtype.GraphType{ID: "simple", Version: 1, Mapping: gm}
}

func builtin(t *testing.T, id string) *graphtype.GraphType {
	t.Helper()
	res, err := graphtype.LoadBuiltin(context.Background(), nil)
	require.NoError(t, err)
	for _, gt := range res.Types {
		if gt.ID == id {
			return gt
		}
	}
	t.Fatalf("builtin graph type %s not found", id)
	return nil
}

func parse(t *testing.T, text string) *yamlcst.Document {
	t.Helper()
	doc, err := yamlcst.ParseString(text)
	require.NoError(t, err)
	return doc
}

func convert(t *testing.T, e *Engine, text string, gt *graphtype.GraphType) *graph.Result {
	t.Helper()
	res, err := e.Convert(context.Background(), parse(t, text), gt)
	require.NoError(t, err)
	return res
}

func nodeIDs(res *graph.Result) []string {
	ids := make([]string, len(res.Nodes))
	for i, n := range res.Nodes {
		ids[i] = n.ID
	}
	return ids
}

func TestConvertNodeExtraction(t *testing.T) {
	res := convert(t, New(), simpleDoc, simpleType(t, ""))

	require.Len(t, res.Nodes, 2)
	assert.Equal(t, "start", res.Nodes[0].ID)
	assert.Equal(t, "Start", res.Nodes[0].Label)
	assert.Equal(t, "end", res.Nodes[1].ID)
	assert.Equal(t, yamlcst.Path{"nodes", "1"}, res.Nodes[1].Path)
	assert.Equal(t, 5, res.Nodes[1].Range.Start.Line)

	require.Len(t, res.Edges, 1)
	assert.Equal(t, "start", res.Edges[0].From)
	assert.Equal(t, "end", res.Edges[0].To)
	assert.Equal(t, "-->", res.Edges[0].Arrow)

	assert.Empty(t, res.Errors)
	assert.Equal(t, "simple@v1", res.GraphType)
	assert.Equal(t, `flowchart TB
    start["Start"]
    end_["End"]
    start --> end_
`, res.DiagramText)
}

func TestConvertIdempotent(t *testing.T) {
	e := New()
	gt := builtin(t, "state-machine")
	doc := parse(t, stateDoc)

	first, err := e.Convert(context.Background(), doc, gt)
	require.NoError(t, err)
	second, err := e.Convert(context.Background(), doc, gt)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, stateDoc, doc.String())
}

const flowDoc = `graph-type: flowchart
direction: LR
nodes:
  - id: a
    label: Start
    shape: terminal
  - id: b
    label: Work
    status: done
    owner: ops
edges:
  - from: a
    to: b
    label: go
    style: dashed
`

func TestConvertBuiltinFlowchart(t *testing.T) {
	res := convert(t, New(), flowDoc, builtin(t, "flowchart"))

	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, "LR", res.Direction)

	require.Len(t, res.Nodes, 2)
	assert.Equal(t, "stadium", res.Nodes[0].Shape)
	assert.Equal(t, "rect", res.Nodes[1].Shape)
	assert.Equal(t, "done", res.Nodes[1].Style)
	assert.Equal(t, "@ops", res.Nodes[1].Annotation)

	require.Len(t, res.Edges, 1)
	assert.Equal(t, "dashed", res.Edges[0].LinkStyle)
	assert.Equal(t, "-.->", res.Edges[0].Arrow)
	assert.Equal(t, "go", res.Edges[0].Label)

	assert.Equal(t, `flowchart LR
    a(["Start"])
    b["Work<br/>@ops"]
    a -.->|"go"| b
    classDef done fill:#d3f9d8,stroke:#2b8a3e
    class b done
`, res.DiagramText)
}

const stateDoc = `graph-type: state-machine
states:
  - name: idle
    initial: true
    transitions:
      - to: busy
        event: start
  - name: busy
    title: Busy
    kind: error
    timeout: 5s
    final: true
`

func TestConvertBuiltinStateMachine(t *testing.T) {
	res := convert(t, New(), stateDoc, builtin(t, "state-machine"))

	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, []string{mapping.DefaultInitialID, "idle", "busy", mapping.DefaultFinalID}, nodeIDs(res))

	busy, ok := res.Node("busy")
	require.True(t, ok)
	assert.Equal(t, "⚠ Busy", busy.Label)
	assert.Equal(t, "failure", busy.Style)
	assert.Equal(t, "timeout 5s", busy.Annotation)

	require.Len(t, res.Edges, 3)
	assert.Equal(t, graph.KindConnector, res.Edges[0].Kind)
	assert.Equal(t, yamlcst.Path{"states", "0", "transitions", "0"}, res.Edges[1].Path)
	assert.Equal(t, "start", res.Edges[1].Label)
	assert.Equal(t, []graph.Edge{res.Edges[1]}, res.EdgesFrom("idle"))

	assert.Equal(t, `stateDiagram-v2
    direction LR
    idle
    state "⚠ Busy" as busy
    busy : timeout 5s
    [*] --> idle
    idle --> busy : start
    busy --> [*]
    classDef failure fill:#ffe3e3,stroke:#c92a2a,color:#c92a2a
    class busy failure
`, res.DiagramText)
}

func TestConvertBuiltinERAndClass(t *testing.T) {
	er := convert(t, New(), `entities:
  - name: CUSTOMER
    attributes:
      - {type: string, name: email, key: PK}
  - name: ORDER
relationships:
  - from: CUSTOMER
    to: ORDER
    label: places
    style: one-to-many
`, builtin(t, "er-diagram"))
	assert.Empty(t, er.Errors)
	assert.Empty(t, er.Warnings)
	assert.Contains(t, er.DiagramText, "        string email PK\n")
	assert.Contains(t, er.DiagramText, `CUSTOMER ||--o{ ORDER : "places"`)

	cls := convert(t, New(), `direction: LR
classes:
  - name: Animal
    kind: abstract
    members: ["+speak()"]
  - name: Dog
relations:
  - from: Dog
    to: Animal
    style: inherits
`, builtin(t, "class-diagram"))
	assert.Empty(t, cls.Errors)
	assert.Empty(t, cls.Warnings)
	assert.Contains(t, cls.DiagramText, "classDiagram\n    direction LR\n")
	assert.Contains(t, cls.DiagramText, "        +speak()\n")
	assert.Contains(t, cls.DiagramText, "Dog --|> Animal\n")
	assert.Contains(t, cls.DiagramText, `cssClass "Animal" abstract`)
}

func TestConvertInvalidDocumentStillRenders(t *testing.T) {
	text := `nodes:
  - id: a
    shape: blob
  - label: No id
`
	res := convert(t, New(), text, builtin(t, "flowchart"))

	assert.Equal(t, []string{"a", "nodes-1"}, nodeIDs(res))
	assert.NotEmpty(t, res.DiagramText)
	assert.True(t, res.HasErrors())

	var paths []string
	var warnings int
	for _, e := range res.Errors {
		paths = append(paths, e.Path)
		if e.Severity == schema.SeverityWarning {
			warnings++
			assert.Contains(t, e.Message, `"nodes-1"`)
			assert.Equal(t, 4, e.Range.Start.Line)
		}
	}
	assert.Equal(t, 1, warnings)
	assert.Contains(t, paths, "/nodes/0/shape")
	assert.Contains(t, paths, "/nodes/1")
}

func TestConvertEmptyDocument(t *testing.T) {
	res := convert(t, New(), "", builtin(t, "flowchart"))
	assert.Empty(t, res.Nodes)
	assert.Empty(t, res.Edges)
	assert.Equal(t, "flowchart TB\n", res.DiagramText)
	assert.Empty(t, res.TreeData)
}

func TestConvertTransformFaultIsolation(t *testing.T) {
	gt := simpleType(t, `transforms:
  - scope: nodes
    js: |
      if (value.id === "end") throw new Error("boom");
      return value.label.toUpperCase();
`)
	res := convert(t, New(), simpleDoc, gt)

	require.Len(t, res.Nodes, 2)
	assert.Equal(t, "START", res.Nodes[0].Label)
	assert.Equal(t, "End", res.Nodes[1].Label)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "boom")
	assert.Contains(t, res.DiagramText, `start["START"]`)
}

func TestConvertTransformMerge(t *testing.T) {
	gt := simpleType(t, `transforms:
  - scope: nodes
    match: id == start
    js: "({ shape: 'round', style: 'hot', weight: 3 })"
  - scope: edges
    js: "'via ' + value.to"
  - scope: nodes
    match: id == end
    js: "42"
`)
	calls := 0
	rt := transform.RuntimeFunc(func(ctx context.Context, code string, tc transform.Context) (any, error) {
		calls++
		return transform.NewGojaRuntime(0).Run(ctx, code, tc)
	})
	res := convert(t, New(WithRuntime(rt)), simpleDoc, gt)

	assert.Equal(t, 3, calls)
	assert.Equal(t, "round", res.Nodes[0].Shape)
	assert.Equal(t, "hot", res.Nodes[0].Style)
	assert.EqualValues(t, 3, res.Nodes[0].Metadata["weight"])
	assert.EqualValues(t, 42, res.Nodes[1].Metadata["transform2"])
	assert.Equal(t, "via end", res.Edges[0].Label)
	assert.Empty(t, res.Warnings)
}

func TestConvertCustomRenderer(t *testing.T) {
	reg := render.NewRegistry()
	require.NoError(t, reg.Register("ids", render.RendererFunc(func(_ context.Context, d *render.Diagram) (string, error) {
		var ids []string
		for _, n := range d.Nodes {
			ids = append(ids, n.ID)
		}
		return strings.Join(ids, ","), nil
	})))

	gt := simpleType(t, "custom-renderer: ids\n")
	res := convert(t, New(WithRenderers(reg)), simpleDoc, gt)
	assert.Equal(t, "start,end", res.DiagramText)

	res = convert(t, New(), simpleDoc, gt)
	assert.Empty(t, res.DiagramText)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "ids")
}

func TestConvertTreeData(t *testing.T) {
	res := convert(t, New(), flowDoc, builtin(t, "flowchart"))

	require.Len(t, res.TreeData, 4)
	assert.Equal(t, "graph-type: flowchart", res.TreeData[0].Label)
	nodes := res.TreeData[2]
	assert.Equal(t, "nodes", nodes.Label)
	require.Len(t, nodes.Children, 2)
	assert.Equal(t, "a", nodes.Children[0].NodeID)
	assert.Equal(t, "b", nodes.Children[1].Label)
	assert.Equal(t, yamlcst.Path{"nodes", "1"}, nodes.Children[1].Path)
	assert.Equal(t, 7, nodes.Children[1].Range.Start.Line)
	assert.Equal(t, "label: Work", nodes.Children[1].Children[1].Label)

	edges := res.TreeData[3]
	assert.Equal(t, "go", edges.Children[0].Label)
	assert.Empty(t, edges.Children[0].NodeID)
}

func TestConvertNilArguments(t *testing.T) {
	_, err := New().Convert(context.Background(), nil, simpleType(t, ""))
	assert.Error(t, err)
	_, err = New().Convert(context.Background(), parse(t, simpleDoc), nil)
	assert.Error(t, err)
}

func TestConvertCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Convert(ctx, parse(t, simpleDoc), simpleType(t, ""))
	assert.ErrorIs(t, err, context.Canceled)
}
