// Package graphtype loads versioned graph type specifications and resolves
// which one applies to a document.
//
// A graph type lives in a folder with one subfolder per version:
//
//	flowchart/
//	  v1/
//	    flowchart.schema.json
//	    flowchart.graph-map.yaml
//	    style.css             (optional)
//	  v2/ ...
//
// A [Loader] turns such a folder into [GraphType] values. A [Registry] owns
// the loaded set and picks the graph type for a document, either from an
// explicit top-level "graph-type" key or from the document's file name.
package graphtype

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/matzehuels/yamlviz/pkg/mapping"
	"github.com/matzehuels/yamlviz/pkg/schema"
)

// GraphType is one registered version of a YAML dialect. It is immutable
// once registered.
type GraphType struct {
	ID           string                `json:"id"`
	Version      int                   `json:"version"`
	FilePatterns []string              `json:"filePatterns"`
	Schema       *schema.Schema        `json:"-"`
	Mapping      *mapping.GraphMapping `json:"mapping"`
	StyleSheet   string                `json:"styleSheet,omitempty"`
	// Source is the folder the graph type was loaded from.
	Source string `json:"source,omitempty"`
	// Digest fingerprints the mapping, schema and style sheet. The loader
	// fills it in; see Fingerprint.
	Digest string `json:"digest,omitempty"`
}

// Fingerprint returns Digest, computing it from the graph type's contents
// when the graph type was built by hand. Two graph types with the same key
// but different contents have different fingerprints.
func (g *GraphType) Fingerprint() string {
	if g.Digest != "" {
		return g.Digest
	}
	return digest(g)
}

func digest(g *GraphType) string {
	h := sha256.New()
	if g.Mapping != nil {
		m, _ := json.Marshal(g.Mapping)
		h.Write(m)
	}
	h.Write([]byte{0})
	if g.Schema != nil {
		h.Write(g.Schema.Source())
	}
	h.Write([]byte{0})
	h.Write([]byte(g.StyleSheet))
	return hex.EncodeToString(h.Sum(nil))
}

// Key returns the "id@vN" form used in pins, cache keys and logs.
func (g *GraphType) Key() string {
	return fmt.Sprintf("%s@v%d", g.ID, g.Version)
}

var knownPatterns = map[string][]string{
	"flowchart":     {"*.flow.yaml", "*.flowchart.yaml"},
	"state-machine": {"*.sm.yaml", "*.state.yaml", "*.state-machine.yaml"},
	"er-diagram":    {"*.er.yaml", "*.er-diagram.yaml"},
	"class-diagram": {"*.class.yaml", "*.class-diagram.yaml"},
}

// FilePatterns returns the file name globs documents of graph type id use.
func FilePatterns(id string) []string {
	if p, ok := knownPatterns[id]; ok {
		return append([]string(nil), p...)
	}
	return []string{"*." + id + ".yaml"}
}
