package session

import (
	"encoding/json"

	"github.com/matzehuels/yamlviz/pkg/engine"
	"github.com/matzehuels/yamlviz/pkg/errors"
	"github.com/matzehuels/yamlviz/pkg/graph"
	"github.com/matzehuels/yamlviz/pkg/schema"
	"github.com/matzehuels/yamlviz/pkg/yamlcst"
)

// Inbound message types sent by the rendering surface.
const (
	MsgApplyEdit        = "applyEdit"
	MsgAddNode          = "addNode"
	MsgDuplicateNode    = "duplicateNode"
	MsgDeleteNode       = "deleteNode"
	MsgRenameNode       = "renameNode"
	MsgAddConnection    = "addConnection"
	MsgDeleteConnection = "deleteConnection"
	MsgChangeDirection  = "changeDirection"
	MsgSelectNode       = "selectNode"
)

// MsgCursor is sent by the editor host when the cursor moves. It is
// answered with a selectNode for the node under the cursor.
const MsgCursor = "cursor"

// Outbound message types. MsgSelectNode is used in both directions.
const (
	MsgUpdateAll     = "updateAll"
	MsgHighlightNode = "highlightNode"
	MsgError         = "error"
)

var inboundTypes = map[string]bool{
	MsgApplyEdit:        true,
	MsgAddNode:          true,
	MsgDuplicateNode:    true,
	MsgDeleteNode:       true,
	MsgRenameNode:       true,
	MsgAddConnection:    true,
	MsgDeleteConnection: true,
	MsgChangeDirection:  true,
	MsgSelectNode:       true,
	MsgCursor:           true,
}

// Inbound is a message from the surface. Type selects which of the other
// fields are meaningful.
type Inbound struct {
	Type         string             `json:"type"`
	NodeID       string             `json:"nodeId,omitempty"`
	Edits        []engine.FieldEdit `json:"edits,omitempty"`
	Label        string             `json:"label,omitempty"`
	SourceNodeID string             `json:"sourceNodeId,omitempty"`
	OldID        string             `json:"oldId,omitempty"`
	NewID        string             `json:"newId,omitempty"`
	From         string             `json:"from,omitempty"`
	To           string             `json:"to,omitempty"`
	Index        int                `json:"index,omitempty"`
	Direction    string             `json:"direction,omitempty"`
	Line         int                `json:"line,omitempty"`
}

// DecodeInbound parses one surface message.
func DecodeInbound(data []byte) (*Inbound, error) {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode message")
	}
	if !inboundTypes[msg.Type] {
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown message type %q", msg.Type)
	}
	return &msg, nil
}

// Outbound is a message for the surface.
type Outbound interface {
	MessageType() string
}

// UpdateAll replaces everything the surface shows.
type UpdateAll struct {
	Type          string                   `json:"type"`
	YAMLText      string                   `json:"yamlText"`
	DiagramSource string                   `json:"diagramSource"`
	TreeData      []graph.TreeNode         `json:"treeData"`
	Errors        []schema.ValidationError `json:"errors"`
	Warnings      []string                 `json:"warnings,omitempty"`
	Generation    uint64                   `json:"generation"`
}

func (*UpdateAll) MessageType() string { return MsgUpdateAll }

// NodeMessage is a selectNode or highlightNode message.
type NodeMessage struct {
	Type   string               `json:"type"`
	NodeID string               `json:"nodeId"`
	Range  *yamlcst.SourceRange `json:"range,omitempty"`
}

func (m *NodeMessage) MessageType() string { return m.Type }

// ErrorMessage reports a failed inbound message.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

func (*ErrorMessage) MessageType() string { return MsgError }

// NewErrorMessage converts err for the surface.
func NewErrorMessage(err error) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgError,
		Code:    string(errors.GetCode(err)),
		Message: errors.UserMessage(err),
	}
}

func newUpdateAll(doc *yamlcst.Document, res *graph.Result, gen uint64) *UpdateAll {
	u := &UpdateAll{
		Type:          MsgUpdateAll,
		YAMLText:      doc.String(),
		DiagramSource: res.DiagramText,
		TreeData:      res.TreeData,
		Errors:        res.Errors,
		Warnings:      res.Warnings,
		Generation:    gen,
	}
	if u.TreeData == nil {
		u.TreeData = []graph.TreeNode{}
	}
	if u.Errors == nil {
		u.Errors = []schema.ValidationError{}
	}
	return u
}
