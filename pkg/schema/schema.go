// Package schema validates YAML documents against JSON Schema and derives
// editable field descriptions from a schema.
//
// A [Schema] is compiled once when a graph type is loaded. [Validate] turns
// every violation into a [ValidationError] that carries the source range of
// the offending YAML node, and [Resolve] walks the schema into an ordered
// [FieldSchema] tree that drives schema-agnostic editing forms.
package schema

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/matzehuels/yamlviz/pkg/errors"
)

const resourceBase = "https://yamlviz.local/schemas/"

// Schema is a compiled JSON Schema together with its raw, order-preserving
// definition.
type Schema struct {
	name     string
	source   []byte
	raw      any
	compiled *jsonschema.Schema
}

// Compile parses and compiles a JSON Schema document. name identifies the
// schema in error messages; it is usually the file name.
func Compile(name string, data []byte) (*Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSchema, err, "parse %s", name)
	}
	raw, err := decodeOrdered(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSchema, err, "parse %s", name)
	}

	url := resourceBase + name
	c := jsonschema.NewCompiler()
	c.DefaultDraft(jsonschema.Draft2020)
	if err := c.AddResource(url, doc); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSchema, err, "add %s", name)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSchema, err, "compile %s", name)
	}

	return &Schema{name: name, source: bytes.Clone(data), raw: raw, compiled: compiled}, nil
}

// Name returns the name the schema was compiled under.
func (s *Schema) Name() string { return s.name }

// Source returns the schema text.
func (s *Schema) Source() []byte { return bytes.Clone(s.source) }

// MarshalJSON emits the schema text unchanged.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return s.Source(), nil
}

// object is a JSON object that remembers its key order.
type object struct {
	keys []string
	vals map[string]any
}

func (o *object) get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.vals[key]
	return v, ok
}

func (o *object) obj(key string) *object {
	v, _ := o.get(key)
	m, _ := v.(*object)
	return m
}

func (o *object) str(key string) string {
	v, _ := o.get(key)
	s, _ := v.(string)
	return s
}

// decodeOrdered decodes JSON keeping object key order. Numbers are kept as
// json.Number.
func decodeOrdered(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New(errors.ErrCodeInvalidSchema, "trailing data after schema")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			o := &object{vals: make(map[string]any)}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, _ := kt.(string)
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				if _, dup := o.vals[key]; !dup {
					o.keys = append(o.keys, key)
				}
				o.vals[key] = v
			}
			_, err := dec.Token()
			return o, err
		case '[':
			var arr []any
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
			_, err := dec.Token()
			return arr, err
		}
	}
	return tok, nil
}
