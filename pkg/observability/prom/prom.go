// Package prom implements the observability hooks with Prometheus metrics.
package prom

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/matzehuels/vpsc/pkg/observability"
)

const namespace = "vpsc"

// Hooks records solver, cache and HTTP events. It satisfies all three
// hook interfaces.
type Hooks struct {
	solvesInFlight  prometheus.Gauge
	solveDuration   *prometheus.HistogramVec
	solveResults    *prometheus.CounterVec
	outerIterations prometheus.Histogram
	unsatisfiable   prometheus.Counter
	problemSize     *prometheus.HistogramVec

	cacheLookups *prometheus.CounterVec
	cacheBytes   *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers the metrics with reg (prometheus.DefaultRegisterer when nil).
func New(reg prometheus.Registerer) *Hooks {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Hooks{
		solvesInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "in_flight",
			Help:      "Solves currently running",
		}),
		solveDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "duration_seconds",
			Help:      "Solve latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"algorithm"}),
		// Labels: algorithm, status (ok, error, limit, cached)
		solveResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "solves_total",
			Help:      "Finished solves by algorithm and status",
		}, []string{"algorithm", "status"}),
		outerIterations: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "outer_iterations",
			Help:      "Outer project iterations per solve",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		unsatisfiable: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "unsatisfiable_constraints_total",
			Help:      "Constraints reported unsatisfiable",
		}),
		problemSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "problem_size",
			Help:      "Variables and constraints per solve",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"kind"}),

		// Labels: key_type (solution, graph), result (hit, miss)
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by key type and result",
		}, []string{"key_type", "result"}),
		cacheBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "written_bytes_total",
			Help:      "Bytes written to the cache",
		}, []string{"key_type"}),

		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"method", "route", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// OnSolveStart implements observability.SolveHooks.
func (h *Hooks) OnSolveStart(_ context.Context, variables, constraints int) {
	h.solvesInFlight.Inc()
	h.problemSize.WithLabelValues("variables").Observe(float64(variables))
	h.problemSize.WithLabelValues("constraints").Observe(float64(constraints))
}

// OnSolveComplete implements observability.SolveHooks.
func (h *Hooks) OnSolveComplete(_ context.Context, s observability.SolveStats, err error) {
	if !s.Cached {
		h.solvesInFlight.Dec()
	}
	algorithm := s.Algorithm
	if algorithm == "" {
		algorithm = "unknown"
	}
	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case s.Cached:
		status = "cached"
	case s.LimitExceeded:
		status = "limit"
	}
	h.solveResults.WithLabelValues(algorithm, status).Inc()
	if err != nil || s.Cached {
		return
	}
	h.solveDuration.WithLabelValues(algorithm).Observe(s.Duration.Seconds())
	h.outerIterations.Observe(float64(s.OuterIterations))
	h.unsatisfiable.Add(float64(s.Unsatisfiable))
}

// OnCacheHit implements observability.CacheHooks.
func (h *Hooks) OnCacheHit(_ context.Context, keyType string) {
	h.cacheLookups.WithLabelValues(keyType, "hit").Inc()
}

// OnCacheMiss implements observability.CacheHooks.
func (h *Hooks) OnCacheMiss(_ context.Context, keyType string) {
	h.cacheLookups.WithLabelValues(keyType, "miss").Inc()
}

// OnCacheSet implements observability.CacheHooks.
func (h *Hooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

// OnRequest implements observability.HTTPHooks.
func (h *Hooks) OnRequest(_ context.Context, method, route string, status int, d time.Duration) {
	h.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	h.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

var (
	_ observability.SolveHooks = (*Hooks)(nil)
	_ observability.CacheHooks = (*Hooks)(nil)
	_ observability.HTTPHooks  = (*Hooks)(nil)
)
