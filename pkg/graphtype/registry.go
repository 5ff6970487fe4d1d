package graphtype

import (
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/yamlviz/pkg/errors"
)

// DeclarationKey is the top-level document key that names a graph type.
const DeclarationKey = "graph-type"

var pinPattern = regexp.MustCompile(`^([a-z0-9][a-z0-9._-]*?)(?:@v(\d+))?$`)

// DocumentRef identifies a document to resolve. Path may be empty when the
// document only exists in memory.
type DocumentRef struct {
	Path string
	Text []byte
}

// Registry holds registered graph types. It is safe for concurrent use;
// registered values are never modified.
type Registry struct {
	mu    sync.RWMutex
	types map[string]map[int]*GraphType
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]map[int]*GraphType)}
}

// Register adds gt. Registering an (id, version) pair twice fails with
// GRAPH_TYPE_CONFLICT.
func (r *Registry) Register(gt *GraphType) error {
	if gt == nil || gt.ID == "" || gt.Version < 1 || gt.Mapping == nil {
		return errors.New(errors.ErrCodeInvalidInput, "graph type needs an id, a positive version and a mapping")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return register(r.types, gt)
}

// RegisterAll registers each graph type in order, stopping at the first
// conflict.
func (r *Registry) RegisterAll(types []*GraphType) error {
	for _, gt := range types {
		if err := r.Register(gt); err != nil {
			return err
		}
	}
	return nil
}

// Replace swaps the registry contents for types. On conflict the registry
// is left unchanged.
func (r *Registry) Replace(types []*GraphType) error {
	next := make(map[string]map[int]*GraphType)
	for _, gt := range types {
		if err := register(next, gt); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.types = next
	r.mu.Unlock()
	return nil
}

func register(m map[string]map[int]*GraphType, gt *GraphType) error {
	versions := m[gt.ID]
	if versions == nil {
		versions = make(map[int]*GraphType)
		m[gt.ID] = versions
	}
	if existing, ok := versions[gt.Version]; ok {
		return errors.New(errors.ErrCodeGraphTypeConflict, "graph type %s already registered from %s", gt.Key(), existing.Source)
	}
	versions[gt.Version] = gt
	return nil
}

// Get returns one version of a graph type.
func (r *Registry) Get(id string, version int) (*GraphType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gt, ok := r.types[id][version]
	return gt, ok
}

// Latest returns the highest registered version of id.
func (r *Registry) Latest(id string) (*GraphType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return latest(r.types[id])
}

func latest(versions map[int]*GraphType) (*GraphType, bool) {
	var best *GraphType
	for _, gt := range versions {
		if best == nil || gt.Version > best.Version {
			best = gt
		}
	}
	return best, best != nil
}

// List returns every registered graph type sorted by id, then version.
func (r *Registry) List() []*GraphType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*GraphType
	for _, versions := range r.types {
		for _, gt := range versions {
			out = append(out, gt)
		}
	}
	sortTypes(out)
	return out
}

// Len returns the number of registered graph type versions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, versions := range r.types {
		n += len(versions)
	}
	return n
}

// ResolveForDocument picks the graph type for a document. A top-level
// "graph-type: <id>" or "graph-type: <id>@v<N>" key wins; otherwise the file
// name is matched against each graph type's patterns, the longest matching
// pattern winning. The highest version is used unless one is pinned.
func (r *Registry) ResolveForDocument(doc DocumentRef) (*GraphType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if decl := Declared(doc.Text); decl != "" {
		m := pinPattern.FindStringSubmatch(decl)
		if m == nil {
			return nil, errors.New(errors.ErrCodeDomainNotFound, "invalid %s declaration %q", DeclarationKey, decl)
		}
		versions, ok := r.types[m[1]]
		if !ok {
			return nil, errors.New(errors.ErrCodeDomainNotFound, "graph type %q is not registered", m[1])
		}
		if m[2] == "" {
			gt, _ := latest(versions)
			return gt, nil
		}
		v, _ := strconv.Atoi(m[2])
		if gt, ok := versions[v]; ok {
			return gt, nil
		}
		return nil, errors.New(errors.ErrCodeDomainNotFound, "graph type %q has no version %d", m[1], v)
	}

	if doc.Path == "" {
		return nil, errors.New(errors.ErrCodeDomainNotFound, "document has no %s key and no file name", DeclarationKey)
	}
	base := path.Base(strings.ReplaceAll(doc.Path, "\\", "/"))

	ids := make([]string, 0, len(r.types))
	for id := range r.types {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var (
		best    *GraphType
		bestLen int
	)
	for _, id := range ids {
		gt, ok := latest(r.types[id])
		if !ok {
			continue
		}
		for _, pattern := range gt.FilePatterns {
			if ok, _ := path.Match(pattern, base); ok && len(pattern) > bestLen {
				best, bestLen = gt, len(pattern)
			}
		}
	}
	if best == nil {
		return nil, errors.New(errors.ErrCodeDomainNotFound, "no graph type matches %s", base)
	}
	return best, nil
}

// Declared returns the value of the document's top-level graph-type key,
// or "" when there is none or the text does not parse.
func Declared(text []byte) string {
	var head struct {
		GraphType string `yaml:"graph-type"`
	}
	if err := yaml.Unmarshal(text, &head); err != nil {
		return ""
	}
	return strings.TrimSpace(head.GraphType)
}
