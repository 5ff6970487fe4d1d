// Package pkg provides the libraries behind yamlviz, a converter from YAML
// documents to Mermaid diagrams.
//
// # Overview
//
// A graph type tells yamlviz how one YAML dialect becomes a diagram. It is a
// folder of versioned specifications: a JSON Schema for the document, a
// graph mapping that names the node and edge collections, and an optional
// style sheet. Documents are validated against the schema, mapped onto
// nodes and edges, run through the mapping's transform snippets and
// rendered as Mermaid text. Edits go the other way: a node id plus field
// edits are located in the source text and patched in place, so comments
// and formatting survive.
//
// # Architecture
//
//	graph type folders (<id>/v<N>/)
//	         ↓
//	    [graphtype] loader + registry ([mapping], [schema])
//	         ↓
//	YAML text → [yamlcst] → [engine] ([transform], [render])
//	         ↓
//	    Mermaid / JSON / DOT / SVG / PNG / PDF
//
// [pipeline] orchestrates the flow with caching, [session] keeps the live
// state of an open document, and [server] exposes both over HTTP and
// WebSocket.
//
// # Quick Start
//
// Convert a document with the builtin graph types:
//
//	import (
//	    "context"
//	    "fmt"
//
//	    "github.com/matzehuels/yamlviz/pkg/cache"
//	    "github.com/matzehuels/yamlviz/pkg/engine"
//	    "github.com/matzehuels/yamlviz/pkg/pipeline"
//	)
//
//	ctx := context.Background()
//	types, _, _ := pipeline.LoadGraphTypes(ctx, nil, nil)
//	runner := pipeline.NewRunner(types, engine.New(), cache.NewNullCache(), cache.NewDefaultKeyer(), nil)
//	defer runner.Close()
//
//	res, _ := runner.Execute(ctx, pipeline.Options{
//	    Path:    "release.flow.yaml",
//	    Formats: []string{"mermaid"},
//	})
//	fmt.Print(string(res.Artifacts["mermaid"]))
//
// # Main Packages
//
// Document model:
//
//   - [yamlcst]: position-tracking YAML parsing, identity serialization and
//     text-span patching.
//   - [graph]: conversion results (nodes, edges, outline tree, errors).
//
// Graph types:
//
//   - [mapping]: graph mapping types and the version-keyed parser registry.
//   - [schema]: JSON Schema validation with source ranges, and field
//     schemas for editing forms.
//   - [graphtype]: folder loader, embedded builtin types and the registry
//     that resolves a document to its graph type.
//
// Conversion:
//
//   - [transform]: sandboxed JavaScript snippets applied to matched items.
//   - [render]: Mermaid dialects and custom renderers; [render/dot] exports
//     DOT and renders it with Graphviz.
//   - [engine]: conversion and the node editing operations.
//
// Orchestration and infrastructure:
//
//   - [pipeline]: Runner (resolve, parse, convert, render) with caching.
//   - [session]: shared per-document state for live editing surfaces.
//   - [server]: HTTP API and the WebSocket editing protocol.
//   - [cache]: null, file, in-memory LRU and Redis caches.
//   - [config]: yamlviz.toml, .env and YAMLVIZ_* overrides.
//   - [observability]: conversion and session hooks, Prometheus metrics.
//   - [errors]: coded errors shared by every package.
//
// # Testing
//
// Every package has table-driven tests next to its sources; none of them
// need network access or Graphviz beyond the bundled WebAssembly build.
//
//	go test ./...
//
// [yamlcst]: github.com/matzehuels/yamlviz/pkg/yamlcst
// [graph]: github.com/matzehuels/yamlviz/pkg/graph
// [mapping]: github.com/matzehuels/yamlviz/pkg/mapping
// [schema]: github.com/matzehuels/yamlviz/pkg/schema
// [graphtype]: github.com/matzehuels/yamlviz/pkg/graphtype
// [transform]: github.com/matzehuels/yamlviz/pkg/transform
// [render]: github.com/matzehuels/yamlviz/pkg/render
// [render/dot]: github.com/matzehuels/yamlviz/pkg/render/dot
// [engine]: github.com/matzehuels/yamlviz/pkg/engine
// [pipeline]: github.com/matzehuels/yamlviz/pkg/pipeline
// [session]: github.com/matzehuels/yamlviz/pkg/session
// [server]: github.com/matzehuels/yamlviz/pkg/server
// [cache]: github.com/matzehuels/yamlviz/pkg/cache
// [config]: github.com/matzehuels/yamlviz/pkg/config
// [observability]: github.com/matzehuels/yamlviz/pkg/observability
// [errors]: github.com/matzehuels/yamlviz/pkg/errors
package pkg
