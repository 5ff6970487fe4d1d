package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Helpers are the functions exposed to snippets as helpers.<name>. Every
// helper is pure.
type Helpers map[string]any

// DefaultHelpers returns a fresh helper set.
func DefaultHelpers() Helpers {
	return Helpers{
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"title": func(s string) string {
			return cases.Title(language.English).String(s)
		},
		"trim": strings.TrimSpace,
		"join": func(items []any, sep string) string {
			parts := make([]string, len(items))
			for i, it := range items {
				parts[i] = Stringify(it)
			}
			return strings.Join(parts, sep)
		},
		"get":   Get,
		"count": Count,
		"default": func(v, fallback any) any {
			if v == nil || v == "" {
				return fallback
			}
			return v
		},
		"format": func(template string, data any) string {
			return Format(template, data)
		},
	}
}

// Get walks a dot-separated path through maps and slices. Numeric segments
// index slices. It returns nil when any segment is missing.
func Get(v any, path string) any {
	if path == "" {
		return v
	}
	for _, seg := range strings.Split(path, ".") {
		switch t := v.(type) {
		case map[string]any:
			v = t[seg]
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(t) {
				return nil
			}
			v = t[i]
		default:
			return nil
		}
	}
	return v
}

// Count returns the length of a list, map or string and 0 for anything else.
func Count(v any) int {
	switch t := v.(type) {
	case []any:
		return len(t)
	case map[string]any:
		return len(t)
	case string:
		return len(t)
	}
	return 0
}

var placeholder = regexp.MustCompile(`\$\{([^}]*)\}`)

// Format substitutes ${field} placeholders in template with values looked
// up in data via Get. A bare value is available as ${value} when data is not
// a map. Missing fields become empty strings.
func Format(template string, data any) string {
	return placeholder.ReplaceAllStringFunc(template, func(m string) string {
		key := strings.TrimSpace(m[2 : len(m)-1])
		if _, ok := data.(map[string]any); !ok && key == "value" {
			return Stringify(data)
		}
		return Stringify(Get(data, key))
	})
}

// Stringify renders a snippet or document value as label text.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'g', -1, 32)
	case []any:
		parts := make([]string, len(t))
		for i, it := range t {
			parts[i] = Stringify(it)
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprint(v)
}
