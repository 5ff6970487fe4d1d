// Package graph provides the diagram model produced by a conversion and its
// serialization formats.
//
// This package defines the canonical wire format for yamlviz conversion
// results, used for JSON export, API responses, the WebSocket surface
// protocol and result caching.
//
// # Core Types
//
//   - [Node], [Edge]: diagram elements, each pointing back at the YAML
//     node it was extracted from
//   - [TreeNode]: outline of the source document
//   - [Result]: everything one conversion produced
//
// # Node Kinds
//
// Nodes extracted from the document have an empty kind. Connector
// pseudo-nodes synthesized from a mapping's initial or final connector use
// [KindInitial] and [KindFinal]; edges to and from them use
// [KindConnector].
//
// # Serialization
//
// Results use plain JSON for files and HTTP, and MessagePack for caches:
//
//	data, _ := graph.Marshal(res)          // Result → JSON
//	res, _ := graph.Unmarshal(data)        // JSON → Result
//	blob, _ := graph.Encode(res)           // Result → msgpack
//	res, _ = graph.Decode(blob)            // msgpack → Result
//
// # Concurrency
//
// All functions are safe for concurrent reads but not concurrent writes.
package graph
