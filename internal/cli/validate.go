package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/matzehuels/yamlviz/pkg/pipeline"
	"github.com/matzehuels/yamlviz/pkg/schema"
)

type validateOpts struct {
	graphType  string
	graphTypes []string
	json       bool
}

// validateReport is the --json output for one file.
type validateReport struct {
	File      string                   `json:"file"`
	GraphType string                   `json:"graphType,omitempty"`
	Errors    []schema.ValidationError `json:"errors"`
	Warnings  []string                 `json:"warnings,omitempty"`
	Failure   string                   `json:"failure,omitempty"`
}

func (c *CLI) validateCommand() *cobra.Command {
	var opts validateOpts

	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check documents against their graph type's schema",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runValidate(cmd.Context(), cmd.OutOrStdout(), args, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.graphType, "graph-type", "g", "", "force a graph type (id or id@vN)")
	cmd.Flags().StringSliceVar(&opts.graphTypes, "graph-types", nil, "additional graph type folder(s)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print a JSON report")

	return cmd
}

func (c *CLI) runValidate(ctx context.Context, out io.Writer, files []string, opts *validateOpts) error {
	types, err := c.graphTypes(ctx, opts.graphTypes)
	if err != nil {
		return err
	}
	runner, err := c.newRunner(ctx, types, false)
	if err != nil {
		return err
	}
	defer runner.Close()

	reports := make([]validateReport, 0, len(files))
	failed := 0
	for _, file := range files {
		r := validateFile(ctx, runner, file, opts.graphType)
		if r.Failure != "" || hasErrorSeverity(r.Errors) {
			failed++
		}
		reports = append(reports, r)
	}

	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			switch {
			case r.Failure != "":
				printError("%s %s", StyleHighlight.Render(r.File), r.Failure)
			case len(r.Errors) == 0:
				printSuccess("%s %s", StyleHighlight.Render(r.File), StyleDim.Render(r.GraphType))
			default:
				printWarning("%s has %d problem(s)", r.File, len(r.Errors))
				printValidationErrors(r.File, r.Errors)
			}
			for _, w := range r.Warnings {
				printDetail("%s", w)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d document(s) failed validation", failed, len(files))
	}
	return nil
}

func validateFile(ctx context.Context, runner *pipeline.Runner, file, graphType string) validateReport {
	r := validateReport{File: file, Errors: []schema.ValidationError{}}
	opts := pipeline.Options{Path: file, GraphType: graphType}

	text, err := pipeline.ReadSource(opts)
	if err != nil {
		r.Failure = err.Error()
		return r
	}
	gt, err := pipeline.Resolve(runner.Types, text, opts)
	if err != nil {
		r.Failure = err.Error()
		return r
	}
	r.GraphType = gt.Key()
	doc, err := pipeline.Parse(text)
	if err != nil {
		r.Failure = err.Error()
		return r
	}
	res, err := runner.Convert(ctx, doc, gt)
	if err != nil {
		r.Failure = err.Error()
		return r
	}
	if len(res.Errors) > 0 {
		r.Errors = res.Errors
	}
	r.Warnings = res.Warnings
	return r
}

func hasErrorSeverity(errs []schema.ValidationError) bool {
	for _, e := range errs {
		if e.Severity != schema.SeverityWarning {
			return true
		}
	}
	return false
}
