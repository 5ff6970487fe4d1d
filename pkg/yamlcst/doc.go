// Package yamlcst parses YAML documents into a position-aware tree that
// round-trips byte for byte.
//
// The tree is a [gopkg.in/yaml.v3] node graph annotated with a [SourceRange]
// for every node. The original source bytes are kept next to the tree and are
// the single source of truth: [Document.Serialize] returns them unchanged, so
// serialize(parse(text)) == text for any well-formed input, comments and
// formatting included.
//
// # Editing
//
// Edits never re-marshal the data model. Each edit function locates the
// affected span through the recorded ranges, splices new text into the
// source and parses the result again:
//
//	doc, _ := yamlcst.Parse(src)
//	doc, err := yamlcst.PatchScalar(doc, yamlcst.ParsePath("nodes.0.label"), "Begin")
//
// Only the bytes of the targeted scalar change; every other line, comment and
// key order is preserved. [SetField], [AppendItem], [RemoveItem] and
// [DuplicateItem] follow the same rule for block mappings and sequences.
//
// # Paths
//
// A [Path] addresses a node by mapping keys and sequence indexes, written
// either dotted ("nodes.0.label") or as a JSON pointer ("/nodes/0/label").
package yamlcst
