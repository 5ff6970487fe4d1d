package session

import (
	"context"
	"sort"
	"sync"

	"github.com/matzehuels/yamlviz/pkg/errors"
	"github.com/matzehuels/yamlviz/pkg/graphtype"
)

// Manager shares one Document per path among all clients that open it.
type Manager struct {
	types *graphtype.Registry
	opts  Options

	mu     sync.Mutex
	byPath map[string]*entry
	byID   map[string]*entry
}

type entry struct {
	doc  *Document
	refs int
}

// NewManager creates a manager resolving graph types from types. Options
// must carry a Store.
func NewManager(types *graphtype.Registry, opts Options) *Manager {
	return &Manager{
		types:  types,
		opts:   opts.withDefaults(),
		byPath: make(map[string]*entry),
		byID:   make(map[string]*entry),
	}
}

// Open returns the document for path, loading it on first use. Every Open
// must be paired with a Release.
func (m *Manager) Open(ctx context.Context, path string) (*Document, error) {
	if m.opts.Store == nil {
		return nil, errors.New(errors.ErrCodeUnsupported, "session manager has no store")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.byPath[path]; ok {
		e.refs++
		return e.doc, nil
	}

	text, err := m.opts.Store.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	gt, err := m.types.ResolveForDocument(graphtype.DocumentRef{Path: path, Text: text})
	if err != nil {
		return nil, err
	}
	doc, err := New(path, text, gt, m.opts)
	if err != nil {
		return nil, err
	}
	e := &entry{doc: doc, refs: 1}
	m.byPath[path] = e
	m.byID[doc.ID] = e
	m.opts.Logger.Debug("opened document", "path", path, "graphType", gt.Key(), "id", doc.ID)
	return doc, nil
}

// Get returns an open document by id.
func (m *Manager) Get(id string) (*Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byID[id]
	if !ok {
		return nil, false
	}
	return e.doc, true
}

// Release drops one reference to doc and forgets it after the last one.
func (m *Manager) Release(doc *Document) {
	if doc == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byID[doc.ID]
	if !ok {
		return
	}
	e.refs--
	if e.refs > 0 {
		return
	}
	delete(m.byID, doc.ID)
	delete(m.byPath, doc.Path)
	m.opts.Logger.Debug("closed document", "path", doc.Path, "id", doc.ID)
}

// Paths lists the open documents.
func (m *Manager) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.byPath))
	for p := range m.byPath {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
