package prom

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/matzehuels/vpsc/pkg/observability"
)

func TestHooks_Solve(t *testing.T) {
	h := New(prometheus.NewRegistry())
	ctx := context.Background()

	h.OnSolveStart(ctx, 10, 9)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.solvesInFlight))

	h.OnSolveComplete(ctx, observability.SolveStats{
		Algorithm:       "project",
		OuterIterations: 3,
		Unsatisfiable:   2,
		Duration:        time.Millisecond,
	}, nil)
	assert.Equal(t, 0.0, testutil.ToFloat64(h.solvesInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.solveResults.WithLabelValues("project", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.unsatisfiable))

	h.OnSolveStart(ctx, 1, 0)
	h.OnSolveComplete(ctx, observability.SolveStats{}, errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.solveResults.WithLabelValues("unknown", "error")))

	h.OnSolveStart(ctx, 1, 0)
	h.OnSolveComplete(ctx, observability.SolveStats{Algorithm: "qpsc", LimitExceeded: true}, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.solveResults.WithLabelValues("qpsc", "limit")))
}

func TestHooks_Cache(t *testing.T) {
	h := New(prometheus.NewRegistry())
	ctx := context.Background()

	h.OnCacheHit(ctx, "solution")
	h.OnCacheMiss(ctx, "solution")
	h.OnCacheMiss(ctx, "solution")
	h.OnCacheSet(ctx, "solution", 512)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.cacheLookups.WithLabelValues("solution", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(h.cacheLookups.WithLabelValues("solution", "miss")))
	assert.Equal(t, 512.0, testutil.ToFloat64(h.cacheBytes.WithLabelValues("solution")))
}

func TestHooks_HTTP(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := New(reg)
	h.OnRequest(context.Background(), "POST", "/v1/solve", 200, 5*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.httpRequests.WithLabelValues("POST", "/v1/solve", "200")))

	n, err := testutil.GatherAndCount(reg, "vpsc_http_requests_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNew_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
