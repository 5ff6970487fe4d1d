package render

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/matzehuels/yamlviz/pkg/graph"
	"github.com/matzehuels/yamlviz/pkg/transform"
)

const indent = "    "

// shapeBrackets are the flowchart node syntaxes for the built-in shape keys.
var shapeBrackets = map[string]string{
	"rect":       "[%s]",
	"round":      "(%s)",
	"stadium":    "([%s])",
	"circle":     "((%s))",
	"diamond":    "{%s}",
	"hexagon":    "{{%s}}",
	"subroutine": "[[%s]]",
	"database":   "[(%s)]",
}

var unsafeID = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SafeID returns id in a form every Mermaid dialect accepts as an
// identifier. The keyword "end" closes subgraphs and gets a suffix.
func SafeID(id string) string {
	switch id {
	case "":
		return "_"
	case "end":
		return "end_"
	}
	return unsafeID.ReplaceAllString(id, "_")
}

// idTable maps node ids onto distinct Mermaid identifiers. SafeID alone is
// not injective ("a.b" and "a_b" both become "a_b"), so clashing ids get a
// numeric suffix. Ids that are already safe keep their name.
type idTable map[string]string

func newIDTable(d *Diagram) idTable {
	var ids []string
	seen := make(map[string]bool)
	add := func(id string) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, n := range d.Nodes {
		add(n.ID)
	}
	for _, e := range d.Edges {
		add(e.From)
		add(e.To)
	}

	t := make(idTable, len(ids))
	used := make(map[string]bool, len(ids))
	for _, id := range ids {
		if safe := SafeID(id); safe == id {
			t[id], used[id] = id, true
		}
	}
	for _, id := range ids {
		if _, ok := t[id]; ok {
			continue
		}
		base := SafeID(id)
		name := base
		for i := 2; used[name]; i++ {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		t[id], used[name] = name, true
	}
	return t
}

func (t idTable) of(id string) string {
	if name, ok := t[id]; ok {
		return name
	}
	return SafeID(id)
}

// quote returns label as a Mermaid string literal.
func quote(label string) string {
	label = strings.ReplaceAll(label, `"`, "#quot;")
	label = strings.ReplaceAll(label, "\n", "<br/>")
	return `"` + label + `"`
}

func nodeText(n graph.Node) string {
	label := n.DisplayLabel()
	if n.Annotation != "" {
		label += "\n" + n.Annotation
	}
	return label
}

func writeClassDefs(b *strings.Builder, defs map[string]string) {
	for _, name := range sortedKeys(defs) {
		if defs[name] == "" {
			continue
		}
		fmt.Fprintf(b, "%sclassDef %s %s\n", indent, SafeID(name), defs[name])
	}
}

// classAssignments groups node identifiers by style class.
func classAssignments(nodes []graph.Node, ids idTable) map[string][]string {
	out := make(map[string][]string)
	for _, n := range nodes {
		if n.Style != "" {
			out[n.Style] = append(out[n.Style], ids.of(n.ID))
		}
	}
	return out
}

// =============================================================================
// flowchart
// =============================================================================

func flowchart(d *Diagram) string {
	var b strings.Builder
	ids := newIDTable(d)
	fmt.Fprintf(&b, "flowchart %s\n", direction(d.Direction))

	for _, n := range d.Nodes {
		fmt.Fprintf(&b, "%s%s%s\n", indent, ids.of(n.ID), shapeSyntax(n.Shape, quote(nodeText(n))))
	}
	for _, e := range d.Edges {
		arrow := e.Arrow
		if arrow == "" {
			arrow = "-->"
		}
		if e.Label != "" {
			fmt.Fprintf(&b, "%s%s %s|%s| %s\n", indent, ids.of(e.From), arrow, quote(e.Label), ids.of(e.To))
		} else {
			fmt.Fprintf(&b, "%s%s %s %s\n", indent, ids.of(e.From), arrow, ids.of(e.To))
		}
	}

	writeClassDefs(&b, d.ClassDefs)
	classes := classAssignments(d.Nodes, ids)
	for _, class := range sortedKeys(classes) {
		fmt.Fprintf(&b, "%sclass %s %s\n", indent, strings.Join(classes[class], ","), SafeID(class))
	}
	return b.String()
}

// shapeSyntax wraps a quoted label in the brackets of shape. A shape
// containing %s is used as a literal directive.
func shapeSyntax(shape, label string) string {
	if strings.Contains(shape, "%s") {
		return strings.Replace(shape, "%s", label, 1)
	}
	if br, ok := shapeBrackets[shape]; ok {
		return fmt.Sprintf(br, label)
	}
	return fmt.Sprintf(shapeBrackets["rect"], label)
}

// =============================================================================
// stateDiagram-v2
// =============================================================================

func stateDiagram(d *Diagram) string {
	var b strings.Builder
	ids := newIDTable(d)
	b.WriteString("stateDiagram-v2\n")
	fmt.Fprintf(&b, "%sdirection %s\n", indent, stateDirection(d.Direction))

	pseudo := make(map[string]bool)
	for _, n := range d.Nodes {
		if n.IsConnector() {
			pseudo[n.ID] = true
			continue
		}
		id := ids.of(n.ID)
		if n.Label != "" && n.Label != n.ID {
			fmt.Fprintf(&b, "%sstate %s as %s\n", indent, quote(n.Label), id)
		} else {
			fmt.Fprintf(&b, "%s%s\n", indent, id)
		}
		if n.Annotation != "" {
			fmt.Fprintf(&b, "%s%s : %s\n", indent, id, oneLine(n.Annotation))
		}
	}

	ref := func(id string) string {
		if pseudo[id] {
			return "[*]"
		}
		return ids.of(id)
	}
	for _, e := range d.Edges {
		if e.Label != "" {
			fmt.Fprintf(&b, "%s%s --> %s : %s\n", indent, ref(e.From), ref(e.To), oneLine(e.Label))
		} else {
			fmt.Fprintf(&b, "%s%s --> %s\n", indent, ref(e.From), ref(e.To))
		}
	}

	writeClassDefs(&b, d.ClassDefs)
	for _, n := range d.Nodes {
		if n.Style != "" && !n.IsConnector() {
			fmt.Fprintf(&b, "%sclass %s %s\n", indent, ids.of(n.ID), SafeID(n.Style))
		}
	}
	return b.String()
}

// =============================================================================
// erDiagram
// =============================================================================

func erDiagram(d *Diagram) string {
	var b strings.Builder
	ids := newIDTable(d)
	b.WriteString("erDiagram\n")

	linked := make(map[string]bool)
	for _, e := range d.Edges {
		linked[e.From], linked[e.To] = true, true
	}

	for _, n := range d.Nodes {
		attrs := attributes(n.Metadata["attributes"])
		id := ids.of(n.ID)
		switch {
		case len(attrs) > 0:
			fmt.Fprintf(&b, "%s%s {\n", indent, id)
			for _, a := range attrs {
				fmt.Fprintf(&b, "%s%s%s\n", indent, indent, a)
			}
			fmt.Fprintf(&b, "%s}\n", indent)
		case !linked[n.ID]:
			fmt.Fprintf(&b, "%s%s\n", indent, id)
		}
	}
	for _, e := range d.Edges {
		arrow := e.Arrow
		if arrow == "" || arrow == "-->" {
			arrow = "||--||"
		}
		fmt.Fprintf(&b, "%s%s %s %s : %s\n", indent, ids.of(e.From), arrow, ids.of(e.To), quote(oneLine(e.Label)))
	}
	return b.String()
}

// attributes reads an entity attribute list ([{type, name, key}]) placed in
// node metadata by a transform.
func attributes(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		typ, name := transform.Stringify(m["type"]), transform.Stringify(m["name"])
		if typ == "" || name == "" {
			continue
		}
		line := SafeID(typ) + " " + SafeID(name)
		if key := transform.Stringify(m["key"]); key != "" {
			line += " " + key
		}
		out = append(out, line)
	}
	return out
}

// =============================================================================
// classDiagram
// =============================================================================

func classDiagram(d *Diagram) string {
	var b strings.Builder
	ids := newIDTable(d)
	b.WriteString("classDiagram\n")
	fmt.Fprintf(&b, "%sdirection %s\n", indent, stateDirection(d.Direction))

	for _, n := range d.Nodes {
		id := ids.of(n.ID)
		label := nodeText(n)
		members := memberLines(n.Metadata["members"])
		switch {
		case label != n.ID:
			fmt.Fprintf(&b, "%sclass %s[%s]", indent, id, quote(label))
		default:
			fmt.Fprintf(&b, "%sclass %s", indent, id)
		}
		if len(members) == 0 {
			b.WriteString("\n")
			continue
		}
		b.WriteString(" {\n")
		for _, m := range members {
			fmt.Fprintf(&b, "%s%s%s\n", indent, indent, m)
		}
		fmt.Fprintf(&b, "%s}\n", indent)
	}
	for _, e := range d.Edges {
		arrow := e.Arrow
		if arrow == "" {
			arrow = "-->"
		}
		if e.Label != "" {
			fmt.Fprintf(&b, "%s%s %s %s : %s\n", indent, ids.of(e.From), arrow, ids.of(e.To), oneLine(e.Label))
		} else {
			fmt.Fprintf(&b, "%s%s %s %s\n", indent, ids.of(e.From), arrow, ids.of(e.To))
		}
	}

	writeClassDefs(&b, d.ClassDefs)
	classes := classAssignments(d.Nodes, ids)
	for _, class := range sortedKeys(classes) {
		fmt.Fprintf(&b, "%scssClass %s %s\n", indent, quote(strings.Join(classes[class], ",")), SafeID(class))
	}
	return b.String()
}

func memberLines(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := oneLine(transform.Stringify(it)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// =============================================================================
// helpers
// =============================================================================

// direction normalizes a flowchart direction. TD is kept as written.
func direction(dir string) string {
	switch dir = strings.ToUpper(strings.TrimSpace(dir)); dir {
	case "TB", "TD", "BT", "LR", "RL":
		return dir
	}
	return "TB"
}

// stateDirection is direction for dialects that do not know TD.
func stateDirection(dir string) string {
	if d := direction(dir); d != "TD" {
		return d
	}
	return "TB"
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
