package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/yamlviz/pkg/engine"
	"github.com/matzehuels/yamlviz/pkg/pipeline"
	"github.com/matzehuels/yamlviz/pkg/session"
)

// editOpts holds the flags of the edit command. Exactly one action is
// allowed per invocation.
type editOpts struct {
	node       string
	set        []string
	addNode    string
	label      string
	duplicate  string
	deleteNode string
	rename     string
	connect    string
	disconnect string
	direction  string
	graphType  string
	graphTypes []string
	dryRun     bool
}

func (c *CLI) editCommand() *cobra.Command {
	var opts editOpts

	cmd := &cobra.Command{
		Use:   "edit <file>",
		Short: "Edit a document the way the diagram surface does",
		Long: `Edit a document through the same operations the live diagram surface
uses. Only the touched text changes; comments, ordering and formatting of the
rest of the file are kept.`,
		Example: `  yamlviz edit deploy.flow.yaml --node build --set label=Build --set meta.owner=ci
  yamlviz edit deploy.flow.yaml --add-node review --label "Code review"
  yamlviz edit deploy.flow.yaml --rename build=compile
  yamlviz edit deploy.flow.yaml --connect build=test --label ok
  yamlviz edit deploy.flow.yaml --disconnect build:0
  yamlviz edit deploy.flow.yaml --direction LR --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := opts.message()
			if err != nil {
				return err
			}
			return c.runEdit(cmd.Context(), cmd.OutOrStdout(), args[0], msg, &opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.node, "node", "", "node to edit with --set")
	f.StringArrayVar(&opts.set, "set", nil, "field=value to write into --node (repeatable)")
	f.StringVar(&opts.addNode, "add-node", "", "append a node with this id")
	f.StringVar(&opts.label, "label", "", "label for --add-node or --connect")
	f.StringVar(&opts.duplicate, "duplicate", "", "duplicate the node with this id")
	f.StringVar(&opts.deleteNode, "delete-node", "", "delete a node and its edges")
	f.StringVar(&opts.rename, "rename", "", "old=new node id")
	f.StringVar(&opts.connect, "connect", "", "from=to edge to add")
	f.StringVar(&opts.disconnect, "disconnect", "", "node:index edge to delete")
	f.StringVar(&opts.direction, "direction", "", "diagram direction (TB, BT, LR, RL)")
	f.StringVarP(&opts.graphType, "graph-type", "g", "", "force a graph type (id or id@vN)")
	f.StringSliceVar(&opts.graphTypes, "graph-types", nil, "additional graph type folder(s)")
	f.BoolVar(&opts.dryRun, "dry-run", false, "print the edited document instead of saving it")

	return cmd
}

// message translates the flags into the surface message they stand for.
func (o *editOpts) message() (*session.Inbound, error) {
	var msgs []*session.Inbound

	if len(o.set) > 0 || o.node != "" {
		if o.node == "" || len(o.set) == 0 {
			return nil, fmt.Errorf("--node and --set go together")
		}
		edits, err := parseSets(o.set)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, &session.Inbound{Type: session.MsgApplyEdit, NodeID: o.node, Edits: edits})
	}
	if o.addNode != "" {
		msgs = append(msgs, &session.Inbound{Type: session.MsgAddNode, NodeID: o.addNode, Label: o.label})
	}
	if o.duplicate != "" {
		msgs = append(msgs, &session.Inbound{Type: session.MsgDuplicateNode, SourceNodeID: o.duplicate})
	}
	if o.deleteNode != "" {
		msgs = append(msgs, &session.Inbound{Type: session.MsgDeleteNode, NodeID: o.deleteNode})
	}
	if o.rename != "" {
		oldID, newID, ok := strings.Cut(o.rename, "=")
		if !ok {
			return nil, fmt.Errorf("--rename wants old=new, got %q", o.rename)
		}
		msgs = append(msgs, &session.Inbound{Type: session.MsgRenameNode, OldID: oldID, NewID: newID})
	}
	if o.connect != "" {
		from, to, ok := strings.Cut(o.connect, "=")
		if !ok {
			return nil, fmt.Errorf("--connect wants from=to, got %q", o.connect)
		}
		msgs = append(msgs, &session.Inbound{Type: session.MsgAddConnection, From: from, To: to, Label: o.label})
	}
	if o.disconnect != "" {
		node, idx, ok := strings.Cut(o.disconnect, ":")
		i, err := strconv.Atoi(idx)
		if !ok || err != nil {
			return nil, fmt.Errorf("--disconnect wants node:index, got %q", o.disconnect)
		}
		msgs = append(msgs, &session.Inbound{Type: session.MsgDeleteConnection, NodeID: node, Index: i})
	}
	if o.direction != "" {
		msgs = append(msgs, &session.Inbound{Type: session.MsgChangeDirection, Direction: strings.ToUpper(o.direction)})
	}

	switch len(msgs) {
	case 0:
		return nil, fmt.Errorf("nothing to do: pass one of --set, --add-node, --duplicate, --delete-node, --rename, --connect, --disconnect, --direction")
	case 1:
		return msgs[0], nil
	}
	return nil, fmt.Errorf("only one edit per invocation")
}

// parseSets turns field=value pairs into field edits. Values are read as
// YAML scalars, so "3" becomes a number and "true" a boolean; quote them
// ('"3"') to keep a string.
func parseSets(sets []string) ([]engine.FieldEdit, error) {
	edits := make([]engine.FieldEdit, 0, len(sets))
	for _, s := range sets {
		path, raw, ok := strings.Cut(s, "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("--set wants field=value, got %q", s)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("--set %s: %w", path, err)
		}
		switch value.(type) {
		case nil:
			value = raw
		case map[string]any, []any:
			return nil, fmt.Errorf("--set %s: only scalar values can be set", path)
		}
		edits = append(edits, engine.FieldEdit{Path: path, Value: value})
	}
	return edits, nil
}

func (c *CLI) runEdit(ctx context.Context, out io.Writer, file string, msg *session.Inbound, opts *editOpts) error {
	logger := loggerFromContext(ctx)

	types, err := c.graphTypes(ctx, opts.graphTypes)
	if err != nil {
		return err
	}
	eng, err := c.newEngine()
	if err != nil {
		return err
	}

	store, err := session.NewFileStore(filepath.Dir(file))
	if err != nil {
		return err
	}
	name := filepath.Base(file)
	text, err := store.Load(ctx, name)
	if err != nil {
		return err
	}
	gt, err := pipeline.Resolve(types, text, pipeline.Options{Path: name, GraphType: opts.graphType})
	if err != nil {
		return err
	}

	sopts := session.Options{Engine: eng, Logger: logger}
	if !opts.dryRun {
		sopts.Store = store
	}
	doc, err := session.New(name, text, gt, sopts)
	if err != nil {
		return err
	}

	outputs, err := doc.Handle(ctx, msg)
	if err != nil {
		return err
	}

	if opts.dryRun {
		_, err := io.WriteString(out, doc.Text())
		return err
	}

	printSuccess("Applied %s to %s", msg.Type, StyleHighlight.Render(file))
	for _, o := range outputs {
		switch m := o.(type) {
		case *session.UpdateAll:
			res := doc.Result()
			printStats(len(res.Nodes), len(res.Edges), len(m.Errors), false)
			if len(m.Errors) > 0 {
				printValidationErrors(file, m.Errors)
			}
		case *session.NodeMessage:
			printKeyValue("node", m.NodeID)
		}
	}
	return nil
}
