// Package render turns computed diagram elements into diagram source text.
//
// # Overview
//
// A conversion extracts [graph.Node] and [graph.Edge] values from a document;
// this package writes them out as Mermaid text in the dialect a mapping
// selects:
//
//   - flowchart: "flowchart <DIR>" with shape brackets per node
//   - state-machine: "stateDiagram-v2" with [*] for connector nodes
//   - er-diagram: "erDiagram" relationship lines and attribute blocks
//   - class-diagram: "classDiagram" with class labels and members
//
// Style classes attached by style rules become classDef lines whose bodies
// are taken from the graph type's stylesheet (see [ClassDefs]).
//
// # Custom Renderers
//
// A mapping may name a custom renderer. The name is looked up in a
// [Registry], and the registered [Renderer] receives the already computed
// nodes and edges in place of the built-in generator:
//
//	reg := render.NewRegistry()
//	reg.Register("dot", dot.Renderer{})
//	text, err := reg.Render(ctx, gm.CustomRenderer, diagram)
//
// # Format Conversion
//
// The [ToPDF] and [ToPNG] functions convert SVG (for example from the
// [dot] subpackage) to other formats using the external rsvg-convert tool.
//
// [dot]: github.com/matzehuels/yamlviz/pkg/render/dot
package render
