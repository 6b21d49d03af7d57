package main

import (
	"github.com/spf13/cobra"
	"github.com/zero-day-ai/graphqa/internal/server"
)

var serveAddress string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the question-answering HTTP API",
	Long: `Start the HTTP API:

  POST /query     {"question": "..."}
  POST /feedback  {"trace_id": "...", "span_id": "...", "score": 1, "comment": "..."}
  GET  /health
  GET  /metrics   (when metrics are enabled)

The server shuts down gracefully on SIGINT or SIGTERM and waits for
in-flight answer scoring before exiting.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddress, "address", "", "Listen address (overrides server.address)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sc := cfg.Server
	if serveAddress != "" {
		sc.Address = serveAddress
	}

	deps := server.Dependencies{
		Asker:    a.pipeline,
		Feedback: a.feedback,
		Components: map[string]server.HealthChecker{
			"graph": a.graph,
			"notes": a.retriever,
			"llm":   a.router,
		},
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = a.meters.Handler()
	}
	if a.scheduler != nil {
		deps.Background = a.scheduler
	}

	srv, err := server.New(deps, sc,
		server.WithLogger(a.logger),
		server.WithTracer(a.tracer))
	if err != nil {
		return err
	}

	a.logger.Info("graphqa listening", "address", sc.Address)
	return srv.Run(ctx)
}
