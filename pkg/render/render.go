package render

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/matzehuels/yamlviz/pkg/errors"
	"github.com/matzehuels/yamlviz/pkg/graph"
	"github.com/matzehuels/yamlviz/pkg/mapping"
)

// Diagram is the renderer input: the nodes and edges a conversion computed,
// plus the dialect, direction and style classes to emit.
type Diagram struct {
	Type      string
	Direction string
	Nodes     []graph.Node
	Edges     []graph.Edge
	ClassDefs map[string]string
}

// Renderer turns a diagram into text. Mappings that declare a custom
// renderer are rendered by the Renderer registered under that name instead
// of the built-in Mermaid generator.
type Renderer interface {
	Render(ctx context.Context, d *Diagram) (string, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, d *Diagram) (string, error)

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, d *Diagram) (string, error) {
	return f(ctx, d)
}

// MermaidRenderer renders the built-in Mermaid dialects.
var MermaidRenderer Renderer = RendererFunc(func(_ context.Context, d *Diagram) (string, error) {
	return Mermaid(d)
})

// Registry maps custom renderer names to implementations. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	renderers map[string]Renderer
}

// NewRegistry creates an empty renderer registry.
func NewRegistry() *Registry {
	return &Registry{renderers: make(map[string]Renderer)}
}

// Register adds r under name. Names are unique.
func (r *Registry) Register(name string, rd Renderer) error {
	if name == "" || rd == nil {
		return errors.New(errors.ErrCodeInvalidInput, "renderer needs a name and an implementation")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.renderers[name]; ok {
		return errors.New(errors.ErrCodeInvalidInput, "renderer %q already registered", name)
	}
	r.renderers[name] = rd
	return nil
}

// Get returns the renderer registered under name.
func (r *Registry) Get(name string) (Renderer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rd, ok := r.renderers[name]
	return rd, ok
}

// Names returns the registered renderer names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.renderers))
	for name := range r.renderers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render renders d with the custom renderer named by custom, or with the
// built-in Mermaid generator when custom is empty. A nil registry only
// supports the built-in generator.
func (r *Registry) Render(ctx context.Context, custom string, d *Diagram) (string, error) {
	if custom == "" {
		return Mermaid(d)
	}
	if r == nil {
		return "", errors.New(errors.ErrCodeNotFound, "custom renderer %q is not registered", custom)
	}
	rd, ok := r.Get(custom)
	if !ok {
		return "", errors.New(errors.ErrCodeNotFound, "custom renderer %q is not registered", custom)
	}
	text, err := rd.Render(ctx, d)
	if err != nil {
		return "", fmt.Errorf("renderer %s: %w", custom, err)
	}
	return text, nil
}

// Mermaid renders d in the Mermaid dialect named by d.Type.
func Mermaid(d *Diagram) (string, error) {
	switch mapping.NormalizeMermaidType(d.Type) {
	case mapping.MermaidFlowchart:
		return flowchart(d), nil
	case mapping.MermaidStateDiagram:
		return stateDiagram(d), nil
	case mapping.MermaidERDiagram:
		return erDiagram(d), nil
	case mapping.MermaidClassDiagram:
		return classDiagram(d), nil
	}
	return "", errors.New(errors.ErrCodeUnsupported, "unsupported mermaid type %q", d.Type)
}
