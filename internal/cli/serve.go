package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/matzehuels/vpsc/internal/server"
	"github.com/matzehuels/vpsc/pkg/observability"
	"github.com/matzehuels/vpsc/pkg/observability/prom"
)

type serveOpts struct {
	addr         string
	maxBodyBytes int64
	solveTimeout time.Duration
	maxBatch     int
	noCache      bool
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	opts := serveOpts{
		addr:         server.DefaultAddr,
		maxBodyBytes: server.DefaultMaxBodyBytes,
		solveTimeout: server.DefaultSolveTimeout,
		maxBatch:     server.DefaultMaxBatch,
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the solver over HTTP",
		Long: `Serve the solver over HTTP.

Endpoints:
  POST /v1/solve   solve a problem (JSON, TOML or YAML by Content-Type)
  POST /v1/batch   solve {"problems": [...]} concurrently
  POST /v1/graph   draw the constraint graph (?format=svg|png|dot)
  GET  /healthz    liveness and build info
  GET  /metrics    Prometheus metrics

The server uses the configured cache backend and shuts down gracefully on
SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", opts.addr, "listen address")
	cmd.Flags().Int64Var(&opts.maxBodyBytes, "max-body", opts.maxBodyBytes, "request body limit in bytes")
	cmd.Flags().DurationVar(&opts.solveTimeout, "timeout", opts.solveTimeout, "per-request solve timeout")
	cmd.Flags().IntVar(&opts.maxBatch, "max-batch", opts.maxBatch, "problems allowed in one batch request")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")

	return cmd
}

// newMetrics registers the Prometheus hooks and runtime collectors on a
// fresh registry.
func newMetrics() (*prometheus.Registry, *prom.Hooks) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, prom.New(reg)
}

func (c *CLI) runServe(ctx context.Context, opts serveOpts) error {
	logger := loggerFromContext(ctx)

	reg, hooks := newMetrics()
	observability.SetSolveHooks(hooks)
	observability.SetCacheHooks(hooks)
	observability.SetHTTPHooks(hooks)
	defer observability.Reset()

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	backend := c.config.Cache.Backend
	if opts.noCache {
		backend = "none"
	}
	logger.Info("starting server", "addr", opts.addr, "cache", backend)

	srv := server.New(runner, logger, server.Config{
		Addr:         opts.addr,
		MaxBodyBytes: opts.maxBodyBytes,
		SolveTimeout: opts.solveTimeout,
		MaxBatch:     opts.maxBatch,
		Gatherer:     reg,
	})
	return srv.ListenAndServe(ctx)
}
