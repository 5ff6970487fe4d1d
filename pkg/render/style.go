package render

import (
	"regexp"
	"strings"
)

var (
	cssComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	cssRule    = regexp.MustCompile(`([^{}]+)\{([^{}]*)\}`)
)

// classDefProps are the CSS properties Mermaid classDef lines accept.
var classDefProps = map[string]bool{
	"fill":             true,
	"stroke":           true,
	"stroke-width":     true,
	"stroke-dasharray": true,
	"color":            true,
	"font-weight":      true,
	"font-style":       true,
	"opacity":          true,
}

// ClassDefs derives Mermaid classDef bodies for classes from a graph type
// stylesheet. Every rule whose selector names .<class> contributes its
// declarations; later rules override earlier ones. Classes without a
// matching rule are omitted.
func ClassDefs(css string, classes []string) map[string]string {
	if css == "" || len(classes) == 0 {
		return nil
	}
	type decls struct {
		order []string
		vals  map[string]string
	}
	found := make(map[string]*decls)

	for _, m := range cssRule.FindAllStringSubmatch(cssComment.ReplaceAllString(css, ""), -1) {
		selectors, body := m[1], m[2]
		for _, class := range classes {
			if !selectsClass(selectors, class) {
				continue
			}
			d := found[class]
			if d == nil {
				d = &decls{vals: make(map[string]string)}
				found[class] = d
			}
			for _, decl := range strings.Split(body, ";") {
				prop, val, ok := strings.Cut(decl, ":")
				prop, val = strings.ToLower(strings.TrimSpace(prop)), strings.TrimSpace(val)
				if !ok || val == "" || !classDefProps[prop] {
					continue
				}
				if _, seen := d.vals[prop]; !seen {
					d.order = append(d.order, prop)
				}
				d.vals[prop] = strings.ReplaceAll(val, ",", `\,`)
			}
		}
	}

	out := make(map[string]string, len(found))
	for class, d := range found {
		parts := make([]string, 0, len(d.order))
		for _, p := range d.order {
			parts = append(parts, p+":"+d.vals[p])
		}
		if len(parts) > 0 {
			out[class] = strings.Join(parts, ",")
		}
	}
	return out
}

func selectsClass(selectors, class string) bool {
	token := "." + class
	for s := selectors; ; {
		i := strings.Index(s, token)
		if i < 0 {
			return false
		}
		s = s[i+len(token):]
		if s == "" || !isIdentByte(s[0]) {
			return true
		}
	}
}

func isIdentByte(b byte) bool {
	return b == '-' || b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}
