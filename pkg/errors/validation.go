package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// ValidateNodeID validates a node identifier supplied by the editing surface.
// Ids end up both in YAML scalars and in diagram source, so the rules are
// conservative:
//   - No empty ids
//   - No control characters or newlines
//   - Maximum length of 256 characters
func ValidateNodeID(id string) error {
	if strings.TrimSpace(id) == "" {
		return New(ErrCodeInvalidInput, "node id cannot be empty")
	}

	if len(id) > 256 {
		return New(ErrCodeInvalidInput, "node id too long (max 256 characters)")
	}

	for _, r := range id {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "node id contains invalid control characters")
		}
	}

	return nil
}

// graphTypeIDRegex matches graph type ids such as "flowchart" or "state-machine".
var graphTypeIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

// ValidateGraphTypeID validates a graph type id as declared in map.id.
func ValidateGraphTypeID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidMapping, "graph type id cannot be empty")
	}
	if !graphTypeIDRegex.MatchString(id) {
		return New(ErrCodeInvalidMapping, "invalid graph type id: %q", id)
	}
	return nil
}

// fieldPathRegex matches dotted document paths with optional numeric
// segments, e.g. "label", "meta.owner", "transitions.0.to".
var fieldPathRegex = regexp.MustCompile(`^[A-Za-z0-9_$-]+(\.[A-Za-z0-9_$-]+)*$`)

// pointerPathRegex matches JSON pointer paths with non-empty segments and
// only the ~0 and ~1 escapes, e.g. "/meta/v1.2".
var pointerPathRegex = regexp.MustCompile(`^(/([^/~\x00-\x1f]|~[01])+)+$`)

// ValidateFieldPath validates a field path used in edits, either dotted or,
// for keys containing ".", a JSON pointer.
func ValidateFieldPath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "field path cannot be empty")
	}
	if strings.HasPrefix(path, "/") {
		if !pointerPathRegex.MatchString(path) {
			return New(ErrCodeInvalidPath, "invalid field pointer: %q", path)
		}
		return nil
	}
	if !fieldPathRegex.MatchString(path) {
		return New(ErrCodeInvalidPath, "invalid field path: %q", path)
	}
	return nil
}

// validDirections lists the orientation keywords understood by every
// supported diagram dialect.
var validDirections = map[string]bool{
	"TB": true, "TD": true, "BT": true, "LR": true, "RL": true,
}

// ValidateDirection validates a diagram direction keyword.
func ValidateDirection(dir string) error {
	if !validDirections[dir] {
		return New(ErrCodeInvalidInput, "invalid direction: %q (must be one of TB, TD, BT, LR, RL)", dir)
	}
	return nil
}

// ValidatePath validates a document path relative to a workspace root.
// It prevents path traversal and ensures reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}
