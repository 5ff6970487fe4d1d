package schema

import (
	"encoding/json"
	stderrors "errors"
	"math"
	"sort"
	"strconv"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/matzehuels/yamlviz/pkg/yamlcst"
)

// Severity classifies a ValidationError.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationError is one problem found in a document. Path is a JSON
// pointer into the document; Range locates the offending node, or its
// closest existing ancestor when the node itself is missing.
type ValidationError struct {
	Path     string              `json:"path" msgpack:"path"`
	Message  string              `json:"message" msgpack:"message"`
	Range    yamlcst.SourceRange `json:"sourceRange" msgpack:"sourceRange"`
	Severity Severity            `json:"severity" msgpack:"severity"`
}

var printer = message.NewPrinter(language.English)

// Validate checks doc against s. Data problems never produce an error; the
// returned slice is empty for a valid document and otherwise sorted by
// position.
func Validate(s *Schema, doc *yamlcst.Document) []ValidationError {
	inst := Instance(yamlcst.Value(doc.Root()))

	err := s.compiled.Validate(inst)
	if err == nil {
		return nil
	}

	var ve *jsonschema.ValidationError
	if !stderrors.As(err, &ve) {
		return []ValidationError{{
			Message:  err.Error(),
			Range:    doc.RangeOf(doc.Root()),
			Severity: SeverityError,
		}}
	}

	seen := make(map[string]bool)
	var out []ValidationError
	for _, leaf := range leaves(ve) {
		path := yamlcst.Path(leaf.InstanceLocation)
		msg := leaf.ErrorKind.LocalizedString(printer)
		key := path.Pointer() + "\x00" + msg
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, ValidationError{
			Path:     path.Pointer(),
			Message:  msg,
			Range:    doc.RangeOf(doc.Nearest(path)),
			Severity: SeverityError,
		})
	}
	SortErrors(out)
	return out
}

// SortErrors orders errors by source position, then path and message.
func SortErrors(errs []ValidationError) {
	sort.SliceStable(errs, func(i, j int) bool {
		a, b := errs[i], errs[j]
		if a.Range.Start.Offset != b.Range.Start.Offset {
			return a.Range.Start.Offset < b.Range.Start.Offset
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Message < b.Message
	})
}

func leaves(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var out []*jsonschema.ValidationError
	for _, c := range ve.Causes {
		out = append(out, leaves(c)...)
	}
	return out
}

// Instance converts decoded YAML values into the JSON value model expected
// by the validator. Numbers become json.Number.
func Instance(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Instance(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Instance(val)
		}
		return out
	case int:
		return json.Number(strconv.Itoa(t))
	case int64:
		return json.Number(strconv.FormatInt(t, 10))
	case uint64:
		return json.Number(strconv.FormatUint(t, 10))
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return strconv.FormatFloat(t, 'g', -1, 64)
		}
		return json.Number(strconv.FormatFloat(t, 'g', -1, 64))
	}
	return v
}
