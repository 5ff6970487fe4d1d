// Package session holds the live state of documents open in a rendering
// surface.
//
// A [Document] owns the current text of one YAML file and the latest
// conversion result. Every inbound surface message maps to one method that
// edits the text through the engine, writes it back to the [Store] and
// re-runs the conversion. Outbound messages are always derived from the
// latest result.
//
// # Generations
//
// Each change bumps the document's generation. A conversion captures the
// generation it started from; if a newer change landed before it finished,
// its result is discarded with STALE_GENERATION instead of being shown.
// Conversions of one document run one at a time.
//
// # Usage
//
//	store, err := session.NewFileStore(workspace)
//	mgr := session.NewManager(types, session.Options{Store: store, Converter: runner})
//	doc, err := mgr.Open(ctx, "deploy.flow.yaml")
//	defer mgr.Release(doc)
//
//	update, err := doc.ApplyEdit(ctx, "build", []engine.FieldEdit{{Path: "label", Value: "Build"}})
package session

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/yamlviz/pkg/engine"
	"github.com/matzehuels/yamlviz/pkg/errors"
	"github.com/matzehuels/yamlviz/pkg/graph"
	"github.com/matzehuels/yamlviz/pkg/graphtype"
	"github.com/matzehuels/yamlviz/pkg/observability"
	"github.com/matzehuels/yamlviz/pkg/yamlcst"
)

// Converter turns a parsed document into a conversion result.
// *engine.Engine and *pipeline.Runner both satisfy it.
type Converter interface {
	Convert(ctx context.Context, doc *yamlcst.Document, gt *graphtype.GraphType) (*graph.Result, error)
}

// Options configure documents. Nil fields select the default engine, the
// engine itself as converter, no write-back and a discard logger.
type Options struct {
	Engine    *engine.Engine
	Converter Converter
	Store     Store
	Logger    *log.Logger
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if o.Engine == nil {
		o.Engine = engine.New(engine.WithLogger(o.Logger))
	}
	if o.Converter == nil {
		o.Converter = o.Engine
	}
	return o
}

// Document is one open YAML document. It is safe for concurrent use.
type Document struct {
	ID        string
	Path      string
	GraphType *graphtype.GraphType
	CreatedAt time.Time

	opts Options

	mu         sync.Mutex
	doc        *yamlcst.Document
	generation uint64
	result     *graph.Result
	subs       map[int]chan *UpdateAll
	nextSub    int

	convertMu sync.Mutex
}

// New opens a document from text. No conversion runs until Update or
// the first change.
func New(path string, text []byte, gt *graphtype.GraphType, opts Options) (*Document, error) {
	if gt == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "document %s has no graph type", path)
	}
	doc, err := yamlcst.Parse(text)
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	return &Document{
		ID:        uuid.NewString(),
		Path:      path,
		GraphType: gt,
		CreatedAt: time.Now(),
		opts:      opts,
		doc:       doc,
		subs:      make(map[int]chan *UpdateAll),
	}, nil
}

// Text returns the current document text.
func (d *Document) Text() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.String()
}

// Generation returns the current generation.
func (d *Document) Generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generation
}

// Result returns the latest conversion result, or nil before the first
// conversion.
func (d *Document) Result() *graph.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.result
}

// Update converts the current text and returns the full surface state.
func (d *Document) Update(ctx context.Context) (*UpdateAll, error) {
	d.mu.Lock()
	doc, gen := d.doc, d.generation
	d.mu.Unlock()
	return d.convert(ctx, doc, gen)
}

// SetText replaces the whole text, as when the file changed outside the
// surface. The text is not written back.
func (d *Document) SetText(ctx context.Context, text []byte) (*UpdateAll, error) {
	doc, err := yamlcst.Parse(text)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.doc = doc
	d.generation++
	gen := d.generation
	d.mu.Unlock()
	return d.convert(ctx, doc, gen)
}

// Reload reads the text back from the store.
func (d *Document) Reload(ctx context.Context) (*UpdateAll, error) {
	if d.opts.Store == nil {
		return nil, errors.New(errors.ErrCodeUnsupported, "document %s has no store", d.Path)
	}
	text, err := d.opts.Store.Load(ctx, d.Path)
	if err != nil {
		return nil, err
	}
	return d.SetText(ctx, text)
}

// ApplyEdit handles applyEdit.
func (d *Document) ApplyEdit(ctx context.Context, nodeID string, edits []engine.FieldEdit) (*UpdateAll, error) {
	return d.change(ctx, func(doc *yamlcst.Document) (*yamlcst.Document, error) {
		return d.opts.Engine.ApplyEdit(ctx, doc, d.GraphType, nodeID, edits)
	})
}

// AddNode handles addNode and returns the id of the new node.
func (d *Document) AddNode(ctx context.Context, nodeID, label string) (*UpdateAll, string, error) {
	var id string
	u, err := d.change(ctx, func(doc *yamlcst.Document) (*yamlcst.Document, error) {
		out, newID, err := d.opts.Engine.AddNode(ctx, doc, d.GraphType, nodeID, label)
		id = newID
		return out, err
	})
	return u, id, err
}

// DuplicateNode handles duplicateNode and returns the id of the copy.
func (d *Document) DuplicateNode(ctx context.Context, sourceNodeID string) (*UpdateAll, string, error) {
	var id string
	u, err := d.change(ctx, func(doc *yamlcst.Document) (*yamlcst.Document, error) {
		out, newID, err := d.opts.Engine.DuplicateNode(ctx, doc, d.GraphType, sourceNodeID)
		id = newID
		return out, err
	})
	return u, id, err
}

// DeleteNode handles deleteNode.
func (d *Document) DeleteNode(ctx context.Context, nodeID string) (*UpdateAll, error) {
	return d.change(ctx, func(doc *yamlcst.Document) (*yamlcst.Document, error) {
		return d.opts.Engine.DeleteNode(ctx, doc, d.GraphType, nodeID)
	})
}

// RenameNode handles renameNode.
func (d *Document) RenameNode(ctx context.Context, oldID, newID string) (*UpdateAll, error) {
	return d.change(ctx, func(doc *yamlcst.Document) (*yamlcst.Document, error) {
		return d.opts.Engine.RenameNode(ctx, doc, d.GraphType, oldID, newID)
	})
}

// AddConnection handles addConnection.
func (d *Document) AddConnection(ctx context.Context, from, to, label string) (*UpdateAll, error) {
	return d.change(ctx, func(doc *yamlcst.Document) (*yamlcst.Document, error) {
		return d.opts.Engine.AddConnection(ctx, doc, d.GraphType, from, to, label)
	})
}

// DeleteConnection handles deleteConnection. Index counts the edges
// leaving nodeID in source order.
func (d *Document) DeleteConnection(ctx context.Context, nodeID string, index int) (*UpdateAll, error) {
	return d.change(ctx, func(doc *yamlcst.Document) (*yamlcst.Document, error) {
		return d.opts.Engine.DeleteConnection(ctx, doc, d.GraphType, nodeID, index)
	})
}

// ChangeDirection handles changeDirection.
func (d *Document) ChangeDirection(ctx context.Context, dir string) (*UpdateAll, error) {
	return d.change(ctx, func(doc *yamlcst.Document) (*yamlcst.Document, error) {
		return d.opts.Engine.ChangeDirection(ctx, doc, d.GraphType, dir)
	})
}

// SelectNode handles selectNode from the surface. It answers with a
// highlightNode carrying the node's source range, so the host can reveal
// it in the editor.
func (d *Document) SelectNode(nodeID string) (*NodeMessage, error) {
	res := d.Result()
	if res == nil {
		return nil, errors.New(errors.ErrCodeNodeNotFound, "node %q not found", nodeID)
	}
	n, ok := res.Node(nodeID)
	if !ok {
		return nil, errors.New(errors.ErrCodeNodeNotFound, "node %q not found", nodeID)
	}
	r := n.Range
	return &NodeMessage{Type: MsgHighlightNode, NodeID: n.ID, Range: &r}, nil
}

// CursorMoved maps an editor cursor line to the node under it. It returns
// nil when no node covers the line.
func (d *Document) CursorMoved(line int) *NodeMessage {
	res := d.Result()
	if res == nil {
		return nil
	}
	id := res.NodeAt(line)
	if id == "" {
		return nil
	}
	return &NodeMessage{Type: MsgSelectNode, NodeID: id}
}

// Handle dispatches one inbound message and returns the messages to send
// back. Node creating messages are followed by a selectNode for the new
// node.
func (d *Document) Handle(ctx context.Context, msg *Inbound) ([]Outbound, error) {
	out, err := d.handle(ctx, msg)
	observability.Session().OnMessage(ctx, msg.Type, err)
	if err != nil {
		d.opts.Logger.Debug("message failed", "type", msg.Type, "doc", d.Path, "err", err)
	}
	return out, err
}

func (d *Document) handle(ctx context.Context, msg *Inbound) ([]Outbound, error) {
	var (
		u     *UpdateAll
		newID string
		err   error
	)
	switch msg.Type {
	case MsgApplyEdit:
		u, err = d.ApplyEdit(ctx, msg.NodeID, msg.Edits)
	case MsgAddNode:
		u, newID, err = d.AddNode(ctx, msg.NodeID, msg.Label)
	case MsgDuplicateNode:
		u, newID, err = d.DuplicateNode(ctx, msg.SourceNodeID)
	case MsgDeleteNode:
		u, err = d.DeleteNode(ctx, msg.NodeID)
	case MsgRenameNode:
		u, err = d.RenameNode(ctx, msg.OldID, msg.NewID)
	case MsgAddConnection:
		u, err = d.AddConnection(ctx, msg.From, msg.To, msg.Label)
	case MsgDeleteConnection:
		u, err = d.DeleteConnection(ctx, msg.NodeID, msg.Index)
	case MsgChangeDirection:
		u, err = d.ChangeDirection(ctx, msg.Direction)
	case MsgSelectNode:
		hl, err := d.SelectNode(msg.NodeID)
		if err != nil {
			return nil, err
		}
		return []Outbound{hl}, nil
	case MsgCursor:
		if sel := d.CursorMoved(msg.Line); sel != nil {
			return []Outbound{sel}, nil
		}
		return nil, nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown message type %q", msg.Type)
	}
	if err != nil {
		return nil, err
	}
	out := []Outbound{u}
	if newID != "" {
		out = append(out, &NodeMessage{Type: MsgSelectNode, NodeID: newID})
	}
	return out, nil
}

// change applies edit to the current text, stores the new text under a new
// generation, writes it back and converts it.
func (d *Document) change(ctx context.Context, edit func(*yamlcst.Document) (*yamlcst.Document, error)) (*UpdateAll, error) {
	d.mu.Lock()
	next, err := edit(d.doc)
	if err != nil {
		d.mu.Unlock()
		return nil, err
	}
	if d.opts.Store != nil {
		if err := d.opts.Store.Save(ctx, d.Path, next.Serialize()); err != nil {
			d.mu.Unlock()
			return nil, err
		}
	}
	d.doc = next
	d.generation++
	gen := d.generation
	d.mu.Unlock()

	return d.convert(ctx, next, gen)
}

func (d *Document) convert(ctx context.Context, doc *yamlcst.Document, gen uint64) (*UpdateAll, error) {
	d.convertMu.Lock()
	defer d.convertMu.Unlock()

	if cur := d.Generation(); cur != gen {
		return nil, d.stale(ctx, gen, cur)
	}
	res, err := d.opts.Converter.Convert(ctx, doc, d.GraphType)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.generation != gen {
		return nil, d.stale(ctx, gen, d.generation)
	}
	d.result = res
	u := newUpdateAll(doc, res, gen)
	d.publish(u)
	return u, nil
}

// Subscribe delivers every accepted UpdateAll, whichever client caused it.
// A slow subscriber only sees the newest pending update. Call cancel to
// stop and close the channel.
func (d *Document) Subscribe() (updates <-chan *UpdateAll, cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextSub
	d.nextSub++
	ch := make(chan *UpdateAll, 1)
	d.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.subs, id)
			close(ch)
		})
	}
}

// publish must be called with d.mu held.
func (d *Document) publish(u *UpdateAll) {
	for _, ch := range d.subs {
		select {
		case ch <- u:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- u
		}
	}
}

func (d *Document) stale(ctx context.Context, gen, cur uint64) error {
	observability.Session().OnStaleResult(ctx)
	d.opts.Logger.Debug("discarded stale conversion", "doc", d.Path, "generation", gen, "current", cur)
	return errors.New(errors.ErrCodeStaleGeneration, "generation %d superseded by %d", gen, cur)
}
