// Package server exposes the solver pipeline over HTTP.
//
// Routes:
//
//	POST /v1/solve   problem (JSON, TOML or YAML by Content-Type) -> result JSON
//	POST /v1/batch   {"problems": [...]} -> batch result JSON
//	POST /v1/graph   problem -> constraint graph (?format=svg|png|dot)
//	GET  /healthz    liveness and build info
//	GET  /metrics    Prometheus metrics
//
// Every response carries an X-Request-ID header; a client-supplied id is
// kept, otherwise a random UUID is assigned.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/vpsc/pkg/pipeline"
)

// Defaults for Config.
const (
	DefaultAddr         = ":8080"
	DefaultMaxBodyBytes = 8 << 20
	DefaultSolveTimeout = 30 * time.Second
	DefaultMaxBatch     = 256
)

// Config configures a Server.
type Config struct {
	Addr         string
	MaxBodyBytes int64

	// SolveTimeout bounds each request's solve. A solve still running at
	// the deadline fails with 504 Gateway Timeout.
	SolveTimeout time.Duration

	// MaxBatch bounds the number of problems in one batch request.
	MaxBatch int

	// Gatherer backs /metrics; nil selects prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.SolveTimeout <= 0 {
		c.SolveTimeout = DefaultSolveTimeout
	}
	if c.MaxBatch <= 0 {
		c.MaxBatch = DefaultMaxBatch
	}
	if c.Gatherer == nil {
		c.Gatherer = prometheus.DefaultGatherer
	}
}

// Server serves the HTTP API.
type Server struct {
	runner *pipeline.Runner
	logger *log.Logger
	cfg    Config
	router chi.Router
}

// New creates a server around runner.
func New(runner *pipeline.Runner, logger *log.Logger, cfg Config) *Server {
	cfg.setDefaults()
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{runner: runner, logger: logger, cfg: cfg}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.limitBody)
		r.Post("/solve", s.handleSolve)
		r.Post("/batch", s.handleBatch)
		r.Post("/graph", s.handleGraph)
	})
	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
