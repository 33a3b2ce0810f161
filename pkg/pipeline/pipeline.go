// Package pipeline runs problems through the solver with caching.
//
// The CLI and the HTTP server share this package so that both key, cache
// and instrument solves the same way.
//
// # Stages
//
//  1. Solve: build the problem, run the solver, collect a [problem.Result]
//  2. Graph: draw the solved constraint graph as DOT, SVG or PNG
//
// Each stage looks up its output in the cache first. Keys combine the
// problem's content hash with the hash of the effective parameters, so a
// renamed problem still hits and a changed parameter misses.
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	res, err := runner.Solve(ctx, p, pipeline.Options{})
//
//	batch, err := runner.SolveBatch(ctx, problems, pipeline.Options{Concurrency: 8})
//	for _, item := range batch.Items {
//	    // item.Result or item.Err
//	}
//
//	svg, err := runner.Graph(ctx, p, pipeline.Options{GraphFormat: "svg"})
package pipeline

import (
	"fmt"
	"runtime"
	"time"

	"github.com/matzehuels/vpsc/pkg/cache"
	"github.com/matzehuels/vpsc/pkg/problem"
	"github.com/matzehuels/vpsc/pkg/render"
	"github.com/matzehuels/vpsc/pkg/solver"
)

// Cache key types reported to observability hooks.
const (
	keyTypeSolution = "solution"
	keyTypeGraph    = "graph"
)

// DefaultGraphFormat is the graph output format when none is given.
const DefaultGraphFormat = render.FormatSVG

// DefaultConcurrency bounds SolveBatch when Options.Concurrency is zero.
func DefaultConcurrency() int { return runtime.GOMAXPROCS(0) }

// Options configures one pipeline call. It is JSON-serializable for API
// requests.
type Options struct {
	// Parameters overrides the problem's own parameters when set.
	Parameters *solver.Parameters `json:"parameters,omitempty"`

	// Refresh skips the cache lookup but still stores the new result.
	Refresh bool `json:"refresh,omitempty"`

	// NoCache neither reads nor writes the cache.
	NoCache bool `json:"no_cache,omitempty"`

	// Concurrency bounds SolveBatch; zero means DefaultConcurrency.
	Concurrency int `json:"concurrency,omitempty"`

	// GraphFormat selects the Graph output (dot, svg or png).
	GraphFormat string `json:"graph_format,omitempty"`

	// Graph configures DOT generation.
	Graph render.Options `json:"-"`

	validated bool
}

// ValidateAndSetDefaults checks the options and fills in defaults. It is
// idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Parameters != nil {
		if err := o.Parameters.Validate(); err != nil {
			return err
		}
	}
	if o.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", o.Concurrency)
	}
	if o.Concurrency == 0 {
		o.Concurrency = DefaultConcurrency()
	}
	if o.GraphFormat == "" {
		o.GraphFormat = DefaultGraphFormat
	}
	if err := render.ValidateFormat(o.GraphFormat); err != nil {
		return err
	}
	o.validated = true
	return nil
}

// EffectiveParameters returns the parameters a solve of p will use.
func (o *Options) EffectiveParameters(p *problem.Problem) solver.Parameters {
	if o.Parameters != nil {
		return *o.Parameters
	}
	return p.Params()
}

// GraphKeyOpts returns cache key options for a graph of p.
func (o *Options) GraphKeyOpts(p *problem.Problem) cache.GraphKeyOpts {
	return cache.GraphKeyOpts{
		Format:     o.GraphFormat,
		ParamsHash: problem.HashParameters(o.EffectiveParameters(p)),
		Detailed:   o.Graph.Detailed,
		Goals:      o.Graph.Goals,
		Clusters:   o.Graph.Clusters,
	}
}

// BatchItem is the outcome of one problem in a batch.
type BatchItem struct {
	Name   string          `json:"name,omitempty"`
	Result *problem.Result `json:"result,omitempty"`
	Err    error           `json:"-"`
	Error  string          `json:"error,omitempty"`
}

// BatchResult collects the items of a SolveBatch call in input order.
type BatchResult struct {
	ID       string        `json:"id"`
	Items    []BatchItem   `json:"items"`
	Duration time.Duration `json:"duration_ns"`
	Failed   int           `json:"failed"`
	Cached   int           `json:"cached"`
}
