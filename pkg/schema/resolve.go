package schema

import (
	"encoding/json"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/matzehuels/yamlviz/pkg/yamlcst"
)

// FieldType is the editor-facing type of a field.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldEnum    FieldType = "enum"
	FieldArray   FieldType = "array"
	FieldObject  FieldType = "object"
)

// FieldSchema describes one editable field.
type FieldSchema struct {
	Name        string        `json:"name"`
	Path        string        `json:"path"`
	Label       string        `json:"label"`
	FieldType   FieldType     `json:"fieldType"`
	Required    bool          `json:"required"`
	Options     []any         `json:"options,omitempty"`
	ItemSchema  *FieldSchema  `json:"itemSchema,omitempty"`
	MinItems    *int          `json:"minItems,omitempty"`
	MaxItems    *int          `json:"maxItems,omitempty"`
	Properties  []FieldSchema `json:"properties,omitempty"`
	Description string        `json:"description,omitempty"`
	Default     any           `json:"default,omitempty"`
}

// maxRefDepth bounds $ref expansion for recursive schemas.
const maxRefDepth = 8

type resolver struct {
	root *object
}

// Resolve returns the fields of the schema's root object in the order they
// are declared in the schema file.
func Resolve(s *Schema) []FieldSchema {
	return resolveRoot(s).Properties
}

// ResolveAt returns the field schema describing the document node at path.
// Sequence indexes select the item schema.
func ResolveAt(s *Schema, path yamlcst.Path) (*FieldSchema, bool) {
	f := resolveRoot(s)
	for _, seg := range path {
		switch f.FieldType {
		case FieldObject:
			next := findProperty(f.Properties, seg)
			if next == nil {
				return nil, false
			}
			f = *next
		case FieldArray:
			if _, err := strconv.Atoi(seg); err != nil || f.ItemSchema == nil {
				return nil, false
			}
			f = *f.ItemSchema
		default:
			return nil, false
		}
	}
	return &f, true
}

func resolveRoot(s *Schema) FieldSchema {
	root, _ := s.raw.(*object)
	r := &resolver{root: root}
	return r.field(root, nil, "", false, 0)
}

func findProperty(props []FieldSchema, name string) *FieldSchema {
	for i := range props {
		if props[i].Name == name {
			return &props[i]
		}
	}
	return nil
}

func (r *resolver) field(node *object, path yamlcst.Path, name string, required bool, refs int) FieldSchema {
	node, followed := r.deref(node)
	refs += followed

	f := FieldSchema{
		Name:        name,
		Path:        path.String(),
		Label:       label(node.str("title"), name),
		Required:    required,
		Description: node.str("description"),
	}
	if v, ok := node.get("default"); ok {
		f.Default = plain(v)
	}

	if opts := enumOptions(node); opts != nil {
		f.FieldType = FieldEnum
		f.Options = opts
		return f
	}

	switch schemaType(node) {
	case "object":
		f.FieldType = FieldObject
		if refs > maxRefDepth {
			return f
		}
		req := make(map[string]bool)
		if list, ok := node.vals["required"].([]any); ok {
			for _, v := range list {
				if s, ok := v.(string); ok {
					req[s] = true
				}
			}
		}
		if props := node.obj("properties"); props != nil {
			for _, key := range props.keys {
				child, _ := props.vals[key].(*object)
				f.Properties = append(f.Properties, r.field(child, path.Append(key), key, req[key], refs))
			}
		}
	case "array":
		f.FieldType = FieldArray
		if items := node.obj("items"); items != nil && refs <= maxRefDepth {
			item := r.field(items, path.Append("*"), singular(name), false, refs)
			f.ItemSchema = &item
		}
		f.MinItems = intKeyword(node, "minItems")
		f.MaxItems = intKeyword(node, "maxItems")
	case "number", "integer":
		f.FieldType = FieldNumber
	case "boolean":
		f.FieldType = FieldBoolean
	default:
		f.FieldType = FieldString
	}
	return f
}

// deref follows local $refs and the first non-null anyOf/oneOf/allOf branch,
// returning the number of $refs followed.
func (r *resolver) deref(node *object) (*object, int) {
	if node == nil {
		return &object{vals: map[string]any{}}, 0
	}
	refs := 0
	for i := 0; i < maxRefDepth; i++ {
		if ref := node.str("$ref"); ref != "" {
			target := r.lookup(ref)
			if target == nil {
				break
			}
			refs++
			node = target
			continue
		}
		if schemaType(node) == "" && enumOptions(node) == nil {
			if branch := firstBranch(node); branch != nil {
				node = branch
				continue
			}
		}
		break
	}
	return node, refs
}

// lookup resolves a local JSON pointer reference such as "#/$defs/node".
func (r *resolver) lookup(ref string) *object {
	if !strings.HasPrefix(ref, "#") {
		return nil
	}
	var cur any = r.root
	for _, seg := range yamlcst.FromPointer(ref) {
		switch t := cur.(type) {
		case *object:
			cur = t.vals[seg]
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(t) {
				return nil
			}
			cur = t[i]
		default:
			return nil
		}
	}
	o, _ := cur.(*object)
	return o
}

func firstBranch(node *object) *object {
	for _, key := range []string{"anyOf", "oneOf", "allOf"} {
		list, _ := node.vals[key].([]any)
		for _, v := range list {
			b, ok := v.(*object)
			if ok && schemaType(b) != "null" {
				return b
			}
		}
	}
	return nil
}

func schemaType(node *object) string {
	switch t := node.vals["type"].(type) {
	case string:
		return t
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && s != "null" {
				return s
			}
		}
	}
	if node.obj("properties") != nil {
		return "object"
	}
	if _, ok := node.vals["items"]; ok {
		return "array"
	}
	return ""
}

func enumOptions(node *object) []any {
	if list, ok := node.vals["enum"].([]any); ok {
		out := make([]any, 0, len(list))
		for _, v := range list {
			out = append(out, plain(v))
		}
		return out
	}
	if v, ok := node.vals["const"]; ok {
		return []any{plain(v)}
	}
	return nil
}

func intKeyword(node *object, key string) *int {
	n, ok := node.vals[key].(json.Number)
	if !ok {
		return nil
	}
	i, err := strconv.Atoi(n.String())
	if err != nil {
		return nil
	}
	return &i
}

// plain converts ordered JSON values into ordinary Go values.
func plain(v any) any {
	switch t := v.(type) {
	case *object:
		out := make(map[string]any, len(t.keys))
		for _, k := range t.keys {
			out[k] = plain(t.vals[k])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plain(e)
		}
		return out
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	}
	return v
}

func label(title, name string) string {
	if title != "" {
		return title
	}
	if name == "" {
		return ""
	}
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	return cases.Title(language.English).String(strings.Join(words, " "))
}

func singular(name string) string {
	switch {
	case strings.HasSuffix(name, "ies"):
		return strings.TrimSuffix(name, "ies") + "y"
	case strings.HasSuffix(name, "s") && !strings.HasSuffix(name, "ss"):
		return strings.TrimSuffix(name, "s")
	}
	return name
}
