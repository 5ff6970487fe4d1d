package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/yamlviz/pkg/graph"
	"github.com/matzehuels/yamlviz/pkg/pipeline"
)

func (c *CLI) browseCommand() *cobra.Command {
	var (
		graphType  string
		graphTypes []string
	)

	cmd := &cobra.Command{
		Use:   "browse <file>",
		Short: "Browse a document's outline interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBrowse(cmd.Context(), args[0], graphType, graphTypes)
		},
	}

	cmd.Flags().StringVarP(&graphType, "graph-type", "g", "", "force a graph type (id or id@vN)")
	cmd.Flags().StringSliceVar(&graphTypes, "graph-types", nil, "additional graph type folder(s)")

	return cmd
}

func (c *CLI) runBrowse(ctx context.Context, file, graphType string, graphTypes []string) error {
	types, err := c.graphTypes(ctx, graphTypes)
	if err != nil {
		return err
	}
	runner, err := c.newRunner(ctx, types, false)
	if err != nil {
		return err
	}
	defer runner.Close()

	res, err := runner.Execute(ctx, pipeline.Options{
		Path:      file,
		GraphType: graphType,
		Formats:   []string{pipeline.FormatMermaid},
		Logger:    loggerFromContext(ctx),
	})
	if err != nil {
		return err
	}

	title := fmt.Sprintf("%s (%s)", file, res.GraphType.Key())
	final, err := tea.NewProgram(NewOutlineModel(title, res.Conversion.TreeData), tea.WithContext(ctx)).Run()
	if err != nil {
		return err
	}
	m, ok := final.(OutlineModel)
	if !ok || m.Selected == nil {
		printDetail("No selection made")
		return nil
	}
	printEntry(file, m.Selected, res.Conversion)
	return nil
}

// printEntry describes a picked outline entry, including the diagram node
// and the edges it owns.
func printEntry(file string, entry *graph.TreeNode, res *graph.Result) {
	printKeyValue("entry", entry.Label)
	printKeyValue("path", entry.Path.String())
	printKeyValue("location", fmt.Sprintf("%s:%d:%d", file, entry.Range.Start.Line, entry.Range.Start.Column))
	if entry.NodeID == "" {
		return
	}
	printKeyValue("node", entry.NodeID)
	n, ok := res.Node(entry.NodeID)
	if !ok {
		return
	}
	if n.Shape != "" {
		printKeyValue("shape", n.Shape)
	}
	if n.Annotation != "" {
		printKeyValue("annotation", n.Annotation)
	}
	for _, e := range res.EdgesFrom(n.ID) {
		label := e.To
		if e.Label != "" {
			label += " (" + e.Label + ")"
		}
		printDetail("%s %s", iconArrow, label)
	}
}
