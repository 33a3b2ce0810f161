package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/vpsc/pkg/cache"
	"github.com/matzehuels/vpsc/pkg/observability"
	"github.com/matzehuels/vpsc/pkg/problem"
	"github.com/matzehuels/vpsc/pkg/render"
	"github.com/matzehuels/vpsc/pkg/shell"
	"github.com/matzehuels/vpsc/pkg/solver"
)

// Runner executes pipeline stages with caching. It holds no per-call
// state, so one Runner may serve many goroutines.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner. A nil cache disables caching, a nil keyer
// selects DefaultKeyer and a nil logger selects log.Default().
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{Cache: c, Keyer: keyer, Logger: logger}
}

// Solve solves p, serving the result from the cache when possible.
// Results cut short by a limit are returned but not cached; a canceled
// solve fails with the context's error.
func (r *Runner) Solve(ctx context.Context, p *problem.Problem, opts Options) (*problem.Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	params := opts.EffectiveParameters(p)
	key := r.Keyer.SolutionKey(p.Hash(), problem.HashParameters(params))

	if res, ok := r.lookupResult(ctx, key, opts); ok {
		res.Name = p.Name
		hooks := observability.Solve()
		hooks.OnSolveStart(ctx, len(p.Variables), len(p.Constraints))
		hooks.OnSolveComplete(ctx, observability.SolveStats{
			Algorithm:   res.Solution.AlgorithmUsed.String(),
			Variables:   len(p.Variables),
			Constraints: len(p.Constraints),
			Cached:      true,
		}, nil)
		r.Logger.Debug("solution from cache", "problem", p.Name)
		return res, nil
	}

	sh, err := p.Build()
	if err != nil {
		return nil, err
	}
	res, err := r.solveShell(ctx, p, sh, &params)
	if err != nil {
		return nil, err
	}

	if !opts.NoCache && !res.Solution.ExecutionLimitExceeded() {
		if data, err := json.Marshal(res); err == nil {
			if err := r.Cache.Set(ctx, key, data, cache.TTLSolution); err != nil {
				r.Logger.Warn("cache write failed", "error", err)
			} else {
				observability.Cache().OnCacheSet(ctx, keyTypeSolution, len(data))
			}
		}
	}
	return res, nil
}

func (r *Runner) solveShell(ctx context.Context, p *problem.Problem, sh *shell.Shell, params *solver.Parameters) (*problem.Result, error) {
	sh.Logger = r.Logger
	sh.Solver().Logger = r.Logger

	hooks := observability.Solve()
	hooks.OnSolveStart(ctx, len(p.Variables), len(p.Constraints))
	start := time.Now()
	sol, err := sh.Solve(ctx, params)
	elapsed := time.Since(start)
	if err == nil && sol.Canceled {
		if err = ctx.Err(); err == nil {
			err = context.Canceled
		}
	}
	hooks.OnSolveComplete(ctx, observability.SolveStats{
		Algorithm:              sol.AlgorithmUsed.String(),
		Variables:              len(p.Variables),
		Constraints:            len(p.Constraints),
		OuterIterations:        sol.OuterProjectIterations,
		InnerIterations:        sol.InnerProjectIterationsTotal,
		Unsatisfiable:          sol.NumberOfUnsatisfiableConstraints,
		LimitExceeded:          sol.ExecutionLimitExceeded(),
		Duration:               elapsed,
		MaxConstraintTreeDepth: sol.MaxConstraintTreeDepth,
	}, err)
	if err != nil {
		return nil, fmt.Errorf("solve %s: %w", p.Name, err)
	}

	r.Logger.Info("solved",
		"problem", p.Name,
		"variables", len(p.Variables),
		"constraints", len(p.Constraints),
		"algorithm", sol.AlgorithmUsed,
		"unsatisfiable", sol.NumberOfUnsatisfiableConstraints,
		"duration", elapsed)
	if sol.ExecutionLimitExceeded() {
		r.Logger.Warn("solve stopped at a limit", "problem", p.Name,
			"time", sol.TimeLimitExceeded,
			"outer", sol.OuterProjectIterationsLimitExceeded,
			"inner", sol.InnerProjectIterationsLimitExceeded)
	}
	return problem.NewResult(p, sh), nil
}

// lookupResult returns a cached result for key, if any.
func (r *Runner) lookupResult(ctx context.Context, key string, opts Options) (*problem.Result, bool) {
	if opts.NoCache || opts.Refresh {
		return nil, false
	}
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("cache read failed", "error", err)
		return nil, false
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, keyTypeSolution)
		return nil, false
	}
	var res problem.Result
	if err := json.Unmarshal(data, &res); err != nil {
		observability.Cache().OnCacheMiss(ctx, keyTypeSolution)
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, keyTypeSolution)
	res.Cached = true
	return &res, true
}

// SolveBatch solves independent problems concurrently, at most
// opts.Concurrency at a time. A failing problem is reported in its item and
// does not stop the others; only context cancellation fails the batch.
func (r *Runner) SolveBatch(ctx context.Context, problems []*problem.Problem, opts Options) (*BatchResult, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	batch := &BatchResult{
		ID:    uuid.NewString(),
		Items: make([]BatchItem, len(problems)),
	}
	start := time.Now()

	var g errgroup.Group
	g.SetLimit(opts.Concurrency)
	for i, p := range problems {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			item := BatchItem{Name: p.Name}
			item.Result, item.Err = r.Solve(ctx, p, opts)
			if item.Err != nil {
				item.Error = item.Err.Error()
			}
			batch.Items[i] = item
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch.Duration = time.Since(start)
	for _, item := range batch.Items {
		switch {
		case item.Err != nil:
			batch.Failed++
		case item.Result.Cached:
			batch.Cached++
		}
	}
	r.Logger.Info("batch finished",
		"id", batch.ID,
		"problems", len(problems),
		"failed", batch.Failed,
		"cached", batch.Cached,
		"duration", batch.Duration)
	return batch, nil
}

// Graph solves p and renders its constraint graph in opts.GraphFormat.
func (r *Runner) Graph(ctx context.Context, p *problem.Problem, opts Options) ([]byte, error) {
	out, _, err := r.GraphWithCacheInfo(ctx, p, opts)
	return out, err
}

// GraphWithCacheInfo is Graph that also reports whether the artifact came
// from the cache.
func (r *Runner) GraphWithCacheInfo(ctx context.Context, p *problem.Problem, opts Options) ([]byte, bool, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, false, fmt.Errorf("invalid options: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, false, err
	}

	key := r.Keyer.GraphKey(p.Hash(), opts.GraphKeyOpts(p))
	if !opts.NoCache && !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			observability.Cache().OnCacheHit(ctx, keyTypeGraph)
			return data, true, nil
		}
		observability.Cache().OnCacheMiss(ctx, keyTypeGraph)
	}

	sh, err := p.Build()
	if err != nil {
		return nil, false, err
	}
	params := opts.EffectiveParameters(p)
	res, err := r.solveShell(ctx, p, sh, &params)
	if err != nil {
		return nil, false, err
	}

	dot := render.ToDOT(sh.Solver(), opts.Graph)
	out, err := render.Render(ctx, dot, opts.GraphFormat)
	if err != nil {
		return nil, false, err
	}
	r.Logger.Debug("rendered graph", "problem", p.Name, "format", opts.GraphFormat, "bytes", len(out))

	if !opts.NoCache && len(out) > 0 && !res.Solution.ExecutionLimitExceeded() {
		if err := r.Cache.Set(ctx, key, out, cache.TTLGraph); err == nil {
			observability.Cache().OnCacheSet(ctx, keyTypeGraph, len(out))
		}
	}
	return out, false, nil
}

// Close releases the cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}
