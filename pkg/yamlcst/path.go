package yamlcst

import (
	"strconv"
	"strings"
)

// Path addresses a node inside a document. Each segment is a mapping key or,
// when the parent is a sequence, a decimal index.
type Path []string

// ParsePath parses a dotted path such as "nodes.0.label". Bracketed indexes
// ("nodes[0].label") are accepted as well. The empty string is the root.
//
// A path starting with "/" is read as a JSON pointer, which is the only way
// to address keys that contain "." or brackets: "/meta/v1.2" is the key
// "v1.2" under "meta".
func ParsePath(s string) Path {
	if s == "" {
		return nil
	}
	if strings.HasPrefix(s, "/") {
		return FromPointer(s)
	}
	s = strings.ReplaceAll(s, "[", ".")
	s = strings.ReplaceAll(s, "]", "")

	var p Path
	for _, seg := range strings.Split(s, ".") {
		if seg != "" {
			p = append(p, seg)
		}
	}
	return p
}

// FromPointer converts a JSON pointer ("/nodes/0/id") into a Path.
func FromPointer(ptr string) Path {
	ptr = strings.TrimPrefix(ptr, "#")
	if ptr == "" || ptr == "/" {
		return nil
	}
	parts := strings.Split(strings.TrimPrefix(ptr, "/"), "/")
	p := make(Path, 0, len(parts))
	for _, part := range parts {
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		p = append(p, part)
	}
	return p
}

// String returns the dotted form of the path.
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Pointer returns the JSON pointer form of the path.
func (p Path) Pointer() string {
	if len(p) == 0 {
		return ""
	}
	var b strings.Builder
	for _, seg := range p {
		b.WriteByte('/')
		seg = strings.ReplaceAll(seg, "~", "~0")
		b.WriteString(strings.ReplaceAll(seg, "/", "~1"))
	}
	return b.String()
}

// Append returns a new path with the given segments added. The receiver is
// never modified, so sibling paths built from one parent do not alias.
func (p Path) Append(segs ...string) Path {
	out := make(Path, 0, len(p)+len(segs))
	out = append(out, p...)
	return append(out, segs...)
}

// Index returns a new path with a sequence index appended.
func (p Path) Index(i int) Path {
	return p.Append(strconv.Itoa(i))
}

// Parent returns the path without its last segment.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[: len(p)-1 : len(p)-1]
}

// Last returns the final segment, or "" for the root.
func (p Path) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}
