package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/yamlviz/pkg/pipeline"
)

// convertOpts holds the flags of the convert command.
type convertOpts struct {
	output     string   // output file (single format) or base path (several)
	formats    []string // mermaid, json, dot, svg, png, pdf
	graphType  string   // forced graph type, "id" or "id@vN"
	graphTypes []string // extra graph type folders
	detailed   bool     // DOT labels include annotations
	scale      float64  // PNG scale factor
	noCache    bool
	refresh    bool
	strict     bool // fail when the document has schema errors
}

// extensions maps output formats to file extensions.
var extensions = map[string]string{
	pipeline.FormatMermaid: ".mmd",
	pipeline.FormatJSON:    ".json",
	pipeline.FormatDOT:     ".dot",
	pipeline.FormatSVG:     ".svg",
	pipeline.FormatPNG:     ".png",
	pipeline.FormatPDF:     ".pdf",
}

// binaryFormats never go to a terminal.
var binaryFormats = map[string]bool{pipeline.FormatPNG: true, pipeline.FormatPDF: true}

func (c *CLI) convertCommand() *cobra.Command {
	var formatsStr string
	var opts convertOpts

	cmd := &cobra.Command{
		Use:   "convert <file|->",
		Short: "Convert a YAML document into a diagram",
		Long: `Convert a YAML document into a diagram.

The graph type is taken from --graph-type, the document's graph-type key or
its file name, in that order. A single text format without --output is
written to stdout; everything else is written next to the input file.`,
		Example: `  yamlviz convert deploy.flow.yaml
  yamlviz convert deploy.flow.yaml -f svg,png -o build/deploy
  cat states.yaml | yamlviz convert - --graph-type state-machine`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.formats = parseFormats(formatsStr)
			if err := pipeline.ValidateFormats(opts.formats); err != nil {
				return err
			}
			return c.runConvert(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): mermaid (default), json, dot, svg, png, pdf (comma-separated)")
	cmd.Flags().StringVarP(&opts.graphType, "graph-type", "g", "", "force a graph type (id or id@vN)")
	cmd.Flags().StringSliceVar(&opts.graphTypes, "graph-types", nil, "additional graph type folder(s)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "include annotations in DOT labels")
	cmd.Flags().Float64Var(&opts.scale, "scale", 2, "PNG scale factor")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached results")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "fail if the document has schema errors")

	return cmd
}

func (c *CLI) runConvert(ctx context.Context, stdin io.Reader, out io.Writer, input string, opts *convertOpts) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	popts := pipeline.Options{
		Path:      input,
		GraphType: opts.graphType,
		Formats:   opts.formats,
		Detailed:  opts.detailed,
		Scale:     opts.scale,
		Refresh:   opts.refresh,
		Logger:    logger,
	}
	if input == "-" {
		text, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		popts.Path = ""
		popts.Text = text
	}

	types, err := c.graphTypes(ctx, opts.graphTypes)
	if err != nil {
		return err
	}
	runner, err := c.newRunner(ctx, types, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	toStdout := opts.output == "" && len(opts.formats) == 1 && !binaryFormats[opts.formats[0]]

	var spin *Spinner
	if !toStdout && needsGraphviz(opts.formats) {
		spin = newSpinner(ctx, "Rendering with Graphviz...")
		spin.Start()
	}
	res, err := runner.Execute(ctx, popts)
	if spin != nil {
		spin.Stop()
	}
	if err != nil {
		return err
	}

	conv := res.Conversion
	for _, w := range conv.Warnings {
		logger.Warn(w)
	}
	if len(conv.Errors) > 0 {
		logger.Warnf("%d schema problem(s) in %s", len(conv.Errors), displayName(input))
	}
	if opts.strict && conv.HasErrors() {
		if !toStdout {
			printValidationErrors(displayName(input), conv.Errors)
		}
		return fmt.Errorf("%s has %d schema error(s)", displayName(input), len(conv.Errors))
	}

	if toStdout {
		_, err := out.Write(res.Artifacts[opts.formats[0]])
		return err
	}

	base := basePath(opts.output, input)
	paths, err := writeArtifacts(res.Artifacts, base, opts.output, len(opts.formats) == 1)
	if err != nil {
		return err
	}
	prog.done(fmt.Sprintf("Converted %s as %s", displayName(input), res.GraphType.Key()))

	printSuccess("Converted %s", StyleHighlight.Render(displayName(input)))
	for _, p := range paths {
		printFile(p)
	}
	printStats(res.Stats.NodeCount, res.Stats.EdgeCount, res.Stats.ErrorCount, res.CacheInfo.ConvertHit)
	return nil
}

// writeArtifacts writes one file per format and returns the paths in
// format order. With a single format an explicit output path is used as is.
func writeArtifacts(artifacts map[string][]byte, base, output string, single bool) ([]string, error) {
	formats := make([]string, 0, len(artifacts))
	for f := range artifacts {
		formats = append(formats, f)
	}
	sort.Strings(formats)

	paths := make([]string, 0, len(formats))
	for _, f := range formats {
		path := base + extensions[f]
		if single && output != "" {
			path = output
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create %s: %w", dir, err)
			}
		}
		if err := os.WriteFile(path, artifacts[f], 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// basePath derives the output path without extension. Without an explicit
// output the input name loses its ".yaml"/".yml" suffix; stdin becomes
// "diagram".
func basePath(output, input string) string {
	if output == "" {
		if input == "-" {
			return "diagram"
		}
		for _, ext := range []string{".yaml", ".yml"} {
			if strings.HasSuffix(input, ext) {
				return strings.TrimSuffix(input, ext)
			}
		}
		return input
	}
	ext := filepath.Ext(output)
	for _, known := range extensions {
		if ext == known {
			return strings.TrimSuffix(output, ext)
		}
	}
	return output
}

func needsGraphviz(formats []string) bool {
	for _, f := range formats {
		switch f {
		case pipeline.FormatSVG, pipeline.FormatPNG, pipeline.FormatPDF:
			return true
		}
	}
	return false
}

func displayName(input string) string {
	if input == "-" {
		return "<stdin>"
	}
	return input
}
