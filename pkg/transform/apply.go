package transform

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/yamlviz/pkg/mapping"
	"github.com/matzehuels/yamlviz/pkg/yamlcst"
)

// Result is the value one rule derived for one matched node.
type Result struct {
	Rule  int
	Path  yamlcst.Path
	Value any
}

// Failure records a rule invocation that threw, timed out or could not be
// prepared. Path is nil when the rule failed before matching any node.
type Failure struct {
	Rule int
	Path yamlcst.Path
	Err  error
}

func (f Failure) Error() string {
	if f.Path == nil {
		return fmt.Sprintf("transform %d: %v", f.Rule, f.Err)
	}
	return fmt.Sprintf("transform %d at %s: %v", f.Rule, f.Path, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Apply runs every rule against the nodes it targets. A rule's scope is a
// dotted path; when it points at a sequence each item is a candidate,
// otherwise the node itself is. Candidates are filtered by the rule's match
// expression and the snippet runs once per remaining candidate.
//
// Failures never stop the remaining invocations; they are logged as
// warnings and returned alongside the successful results. Results keep rule
// order, then document order.
func Apply(ctx context.Context, rt Runtime, rules []mapping.TransformRule, doc *yamlcst.Document, logger *log.Logger) ([]Result, []Failure) {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	var (
		results  []Result
		failures []Failure
	)
	fail := func(f Failure) {
		logger.Warn("transform failed", "rule", f.Rule, "path", f.Path.String(), "err", f.Err)
		failures = append(failures, f)
	}

	for i, rule := range rules {
		match, err := ParseMatch(rule.Match)
		if err != nil {
			fail(Failure{Rule: i, Err: err})
			continue
		}
		for _, c := range candidates(doc, yamlcst.ParsePath(rule.Scope)) {
			if err := ctx.Err(); err != nil {
				fail(Failure{Rule: i, Path: c.path, Err: err})
				return results, failures
			}
			value := yamlcst.Value(c.node)
			if !match.Matches(value) {
				continue
			}
			out, err := rt.Run(ctx, rule.Code, Context{
				Value:   value,
				Root:    yamlcst.Value(doc.Root()),
				Path:    c.path,
				Helpers: DefaultHelpers(),
			})
			if err != nil {
				fail(Failure{Rule: i, Path: c.path, Err: err})
				continue
			}
			results = append(results, Result{Rule: i, Path: c.path, Value: out})
		}
	}
	return results, failures
}

type candidate struct {
	path yamlcst.Path
	node *yaml.Node
}

func candidates(doc *yamlcst.Document, scope yamlcst.Path) []candidate {
	n, ok := doc.Lookup(scope)
	if !ok || n == nil {
		return nil
	}
	n = yamlcst.Deref(n)
	if n.Kind != yaml.SequenceNode {
		return []candidate{{path: scope, node: n}}
	}
	out := make([]candidate, 0, len(n.Content))
	for i, item := range n.Content {
		out = append(out, candidate{path: scope.Index(i), node: yamlcst.Deref(item)})
	}
	return out
}

// Match is a parsed match expression. The grammar is deliberately small:
//
//	""  or "*"          every candidate
//	field               field is truthy
//	field == value      field equals value
//	field != value      field differs from value
//
// Fields are dotted paths into the candidate; values may be quoted.
type Match struct {
	Field string
	Op    string
	Value string
}

// ParseMatch parses a match expression.
func ParseMatch(expr string) (Match, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" || expr == "*" {
		return Match{}, nil
	}
	for _, op := range []string{"==", "!="} {
		field, value, ok := strings.Cut(expr, op)
		if !ok {
			continue
		}
		field = strings.TrimSpace(field)
		if field == "" {
			return Match{}, fmt.Errorf("match %q: missing field", expr)
		}
		return Match{Field: field, Op: op, Value: unquote(strings.TrimSpace(value))}, nil
	}
	if strings.ContainsAny(expr, " =!<>") {
		return Match{}, fmt.Errorf("match %q: unsupported expression", expr)
	}
	return Match{Field: expr}, nil
}

// Matches reports whether v satisfies m.
func (m Match) Matches(v any) bool {
	if m.Field == "" {
		return true
	}
	got := Get(v, m.Field)
	switch m.Op {
	case "==":
		return got != nil && Stringify(got) == m.Value
	case "!=":
		return got == nil || Stringify(got) != m.Value
	}
	return truthy(got)
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}
