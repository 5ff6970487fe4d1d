package cli

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/matzehuels/yamlviz/pkg/observability"
	"github.com/matzehuels/yamlviz/pkg/server"
	"github.com/matzehuels/yamlviz/pkg/session"
)

type serveOpts struct {
	addr       string
	workspace  string
	graphTypes []string
	noMetrics  bool
	noCache    bool
}

func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and live document sessions",
		Long: `Serve the HTTP API and live document sessions.

Documents are opened relative to the workspace directory; every client
connected to the same document shares its state, and edits are written back
to the file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), cmd, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default from config, 127.0.0.1:8080)")
	cmd.Flags().StringVarP(&opts.workspace, "workspace", "w", "", "workspace directory (default from config, .)")
	cmd.Flags().StringSliceVar(&opts.graphTypes, "graph-types", nil, "additional graph type folder(s)")
	cmd.Flags().BoolVar(&opts.noMetrics, "no-metrics", false, "disable /metrics")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, cmd *cobra.Command, opts *serveOpts) error {
	logger := loggerFromContext(ctx)
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	addr := cfg.Server.Addr
	if cmd.Flags().Changed("addr") {
		addr = opts.addr
	}
	workspace := cfg.Server.Workspace
	if cmd.Flags().Changed("workspace") {
		workspace = opts.workspace
	}

	var gatherer prometheus.Gatherer
	if !opts.noMetrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		observability.NewPrometheus(reg).Install()
		defer observability.Reset()
		gatherer = reg
	}

	dirs := append(append([]string(nil), cfg.GraphTypes.Dirs...), opts.graphTypes...)
	types, err := c.graphTypes(ctx, opts.graphTypes)
	if err != nil {
		return err
	}
	runner, err := c.newRunner(ctx, types, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	store, err := session.NewFileStore(workspace)
	if err != nil {
		return err
	}
	sessions := session.NewManager(types, session.Options{
		Engine:    runner.Engine,
		Converter: runner,
		Store:     store,
		Logger:    logger,
	})

	srv := server.New(server.Options{
		Types:         types,
		Runner:        runner,
		Sessions:      sessions,
		Gatherer:      gatherer,
		GraphTypeDirs: dirs,
		Logger:        logger,
	})

	printSuccess("Serving %s on %s", StyleHighlight.Render(store.Path()), StyleHighlight.Render("http://"+addr))
	printDetail("%d graph types, cache: %s", types.Len(), cfg.Cache.Backend)
	printNextStep("Open a document", "ws://"+addr+"/ws?path=<file>")
	return srv.ListenAndServe(ctx, addr)
}
