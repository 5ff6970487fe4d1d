package yamlcst

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// FormatScalar renders value as YAML scalar text. When prev is the scalar
// being replaced its quoting style is kept where possible; strings are left
// plain only when they read back as the same string.
func FormatScalar(value any, prev *yaml.Node) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return formatFloat(float64(v))
	case float64:
		return formatFloat(v)
	case string:
		return formatString(v, prev)
	case fmt.Stringer:
		return formatString(v.String(), prev)
	}
	return formatString(fmt.Sprint(value), prev)
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatString(s string, prev *yaml.Node) string {
	var style yaml.Style
	if prev != nil {
		style = prev.Style
	}
	switch {
	case style&yaml.DoubleQuotedStyle != 0:
		return strconv.Quote(s)
	case style&yaml.SingleQuotedStyle != 0 && !strings.ContainsAny(s, "\n\r"):
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	case plainSafe(s):
		return s
	}
	return strconv.Quote(s)
}

// plainSafe reports whether s can be written as a plain scalar, in block or
// flow context, and still decode to the string s.
func plainSafe(s string) bool {
	if s == "" || s != strings.TrimSpace(s) {
		return false
	}
	if strings.ContainsAny(s[:1], "-?:,[]{}#&*!|>'\"%@`") {
		return false
	}
	if strings.ContainsAny(s, ",[]{}") || strings.Contains(s, ": ") || strings.Contains(s, " #") ||
		strings.HasSuffix(s, ":") {
		return false
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	var decoded any
	if err := yaml.Unmarshal([]byte(s), &decoded); err != nil {
		return false
	}
	got, ok := decoded.(string)
	return ok && got == s
}
