package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/matzehuels/yamlviz/pkg/graphtype"
	"github.com/matzehuels/yamlviz/pkg/pipeline"
	"github.com/matzehuels/yamlviz/pkg/schema"
	"github.com/matzehuels/yamlviz/pkg/yamlcst"
)

// =============================================================================
// types
// =============================================================================

func (c *CLI) typesCommand() *cobra.Command {
	var (
		graphTypes []string
		dump       bool
	)

	cmd := &cobra.Command{
		Use:   "types",
		Short: "List the registered graph types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := c.graphTypes(cmd.Context(), graphTypes)
			if err != nil {
				return err
			}
			if dump {
				return dumpTypes(cmd.OutOrStdout(), types.List())
			}
			printTypes(types.List())
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&graphTypes, "graph-types", nil, "additional graph type folder(s)")
	cmd.Flags().BoolVar(&dump, "dump", false, "dump the parsed mappings (debug)")

	return cmd
}

func printTypes(list []*graphtype.GraphType) {
	rows := make([][]string, 0, len(list))
	for _, gt := range list {
		source := gt.Source
		if gt.Mapping.CustomRenderer != "" {
			source += " (renderer: " + gt.Mapping.CustomRenderer + ")"
		}
		rows = append(rows, []string{
			gt.Key(),
			gt.Mapping.Map.MermaidType,
			strings.Join(gt.FilePatterns, " "),
			source,
		})
	}
	printTable([]string{"Graph type", "Diagram", "Files", "Source"}, rows)
}

// dumpTypes prints every mapping with go-spew. Schemas are skipped; they
// are large and printed by the schema command instead.
func dumpTypes(w io.Writer, list []*graphtype.GraphType) error {
	cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true, SortKeys: true}
	for _, gt := range list {
		if _, err := fmt.Fprintf(w, "# %s\n", gt.Key()); err != nil {
			return err
		}
		cfg.Fdump(w, gt.Mapping)
	}
	return nil
}

// =============================================================================
// schema
// =============================================================================

func (c *CLI) schemaCommand() *cobra.Command {
	var (
		graphTypes []string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "schema <graph-type> [path]",
		Short: "Show the editable fields of a graph type",
		Long: `Show the fields the graph type's schema defines, in schema order.

An optional dotted path ("nodes.0") narrows the output to the field at that
document location.`,
		Example: `  yamlviz schema flowchart
  yamlviz schema state-machine@v1 states.0 --json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := c.graphTypes(cmd.Context(), graphTypes)
			if err != nil {
				return err
			}
			path := ""
			if len(args) == 2 {
				path = args[1]
			}
			return runSchema(cmd.Context(), cmd.OutOrStdout(), types, args[0], path, asJSON)
		},
	}

	cmd.Flags().StringSliceVar(&graphTypes, "graph-types", nil, "additional graph type folder(s)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the field schemas as JSON")

	return cmd
}

func runSchema(_ context.Context, w io.Writer, types *graphtype.Registry, id, path string, asJSON bool) error {
	gt, err := pipeline.Resolve(types, nil, pipeline.Options{GraphType: id})
	if err != nil {
		return err
	}

	fields := schema.Resolve(gt.Schema)
	if path != "" {
		f, ok := schema.ResolveAt(gt.Schema, yamlcst.ParsePath(path))
		if !ok {
			return fmt.Errorf("%s has no field at %s", gt.Key(), path)
		}
		fields = []schema.FieldSchema{*f}
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(fields)
	}

	fmt.Fprintln(w, StyleTitle.Render(gt.Key()))
	for _, f := range fields {
		writeField(w, f, 1)
	}
	return nil
}

// writeField prints f and its nested fields as an indented tree.
func writeField(w io.Writer, f schema.FieldSchema, depth int) {
	indent := strings.Repeat("  ", depth)
	name := f.Name
	if f.Required {
		name += "*"
	}
	line := indent + StyleHighlight.Render(name) + " " + StyleDim.Render(string(f.FieldType))
	if len(f.Options) > 0 {
		opts := make([]string, len(f.Options))
		for i, o := range f.Options {
			opts[i] = fmt.Sprint(o)
		}
		line += StyleDim.Render(" [" + strings.Join(opts, "|") + "]")
	}
	if f.Description != "" {
		line += "  " + f.Description
	}
	fmt.Fprintln(w, line)

	for _, p := range f.Properties {
		writeField(w, p, depth+1)
	}
	if f.ItemSchema != nil {
		for _, p := range f.ItemSchema.Properties {
			writeField(w, p, depth+1)
		}
	}
}
