package mapping

import (
	"sort"
	"sync"

	"github.com/matzehuels/yamlviz/pkg/errors"
)

// Parser reads one mapping format version.
type Parser interface {
	Parse(data []byte) (*GraphMapping, error)
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(data []byte) (*GraphMapping, error)

// Parse calls f(data).
func (f ParserFunc) Parse(data []byte) (*GraphMapping, error) { return f(data) }

// ParserRegistry maps mapping format versions to their parsers.
type ParserRegistry struct {
	mu      sync.RWMutex
	parsers map[int]Parser
}

// NewParserRegistry returns an empty registry.
func NewParserRegistry() *ParserRegistry {
	return &ParserRegistry{parsers: make(map[int]Parser)}
}

// DefaultParsers returns a registry with every built-in format version.
func DefaultParsers() *ParserRegistry {
	r := NewParserRegistry()
	_ = r.Register(1, ParserFunc(ParseV1))
	return r
}

// Register adds a parser for version. Registering a version twice fails.
func (r *ParserRegistry) Register(version int, p Parser) error {
	if version < 1 {
		return errors.New(errors.ErrCodeInvalidInput, "mapping version must be positive, got %d", version)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.parsers[version]; exists {
		return errors.New(errors.ErrCodeInvalidInput, "parser for mapping version %d already registered", version)
	}
	r.parsers[version] = p
	return nil
}

// Parse parses data with the parser registered for version.
func (r *ParserRegistry) Parse(version int, data []byte) (*GraphMapping, error) {
	r.mu.RLock()
	p, ok := r.parsers[version]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.ErrCodeUnsupportedMappingVersion, "no parser registered for mapping version %d (supported: %v)", version, r.Versions())
	}
	return p.Parse(data)
}

// Versions returns the registered versions in ascending order.
func (r *ParserRegistry) Versions() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int, 0, len(r.parsers))
	for v := range r.parsers {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// ParseString parses a mapping held in memory with the built-in parsers.
func ParseString(text string, version int) (*GraphMapping, error) {
	return DefaultParsers().Parse(version, []byte(text))
}
