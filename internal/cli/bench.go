package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/vpsc/pkg/problem"
)

const (
	benchRandom = "random"
	benchChain  = "chain"
)

type benchOpts struct {
	kind    string
	sizes   string
	density float64
	seed    uint64
	repeat  int
	gap     float64
}

// benchRow is one line of bench output.
type benchRow struct {
	size        int
	constraints int
	result      *problem.Result
	best        time.Duration
	mean        time.Duration
}

// benchCommand creates the bench command.
func (c *CLI) benchCommand() *cobra.Command {
	opts := benchOpts{
		kind:    benchRandom,
		sizes:   "100,1000,10000",
		density: 2,
		seed:    1,
		repeat:  3,
		gap:     1,
	}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time the solver on generated problems",
		Long: `Time the solver on generated problems of increasing size.

random problems have n variables with random desired positions and about
density·n constraints between random pairs. chain problems stack n
variables at the same desired position, each gap apart from the next.
Each size is solved --repeat times without caching.`,
		Example: `  vpsc bench
  vpsc bench --kind chain --sizes 1000,5000 --repeat 5`,
		Args: cobra.NoArgs,
	}
	pf := addParamFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		sizes, err := parseSizes(opts.sizes)
		if err != nil {
			return err
		}
		if opts.kind != benchRandom && opts.kind != benchChain {
			return fmt.Errorf("invalid kind: %s (must be '%s' or '%s')", opts.kind, benchRandom, benchChain)
		}
		if opts.repeat < 1 {
			return fmt.Errorf("repeat must be at least 1, got %d", opts.repeat)
		}
		return c.runBench(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), sizes, opts, pf)
	}

	cmd.Flags().StringVar(&opts.kind, "kind", opts.kind, "problem generator: random, chain")
	cmd.Flags().StringVar(&opts.sizes, "sizes", opts.sizes, "comma-separated variable counts")
	cmd.Flags().Float64Var(&opts.density, "density", opts.density, "constraints per variable (random)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", opts.seed, "random seed")
	cmd.Flags().IntVar(&opts.repeat, "repeat", opts.repeat, "solves per size")
	cmd.Flags().Float64Var(&opts.gap, "gap", opts.gap, "separation between neighbors (chain)")

	return cmd
}

// parseSizes parses "100,1000" into positive counts.
func parseSizes(s string) ([]int, error) {
	var sizes []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid size %q", part)
		}
		sizes = append(sizes, n)
	}
	if len(sizes) == 0 {
		return nil, fmt.Errorf("no sizes given")
	}
	return sizes, nil
}

func (c *CLI) generate(n int, opts benchOpts) *problem.Problem {
	var p *problem.Problem
	if opts.kind == benchChain {
		p = problem.Chain(n, opts.gap)
	} else {
		p = problem.Random(opts.seed, n, int(opts.density*float64(n)))
	}
	params := c.config.baseParameters()
	p.Parameters = &params
	return p
}

func (c *CLI) runBench(ctx context.Context, w, status io.Writer, sizes []int, opts benchOpts, pf *paramFlags) error {
	logger := loggerFromContext(ctx)

	rows := make([]benchRow, 0, len(sizes))
	for _, n := range sizes {
		p := c.generate(n, opts)
		c.override(p, pf)

		spinner := newSpinner(ctx, status, fmt.Sprintf("Solving %s (%d variables, %d constraints)...", p.Name, n, len(p.Constraints)))
		spinner.Start()
		row, err := benchOne(ctx, p, opts.repeat)
		spinner.Stop()
		if err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
		logger.Debug("bench", "problem", p.Name, "best", row.best, "mean", row.mean)
		rows = append(rows, row)
	}

	fmt.Fprintln(w, StyleTitle.Render("vpsc bench · "+opts.kind))
	fmt.Fprintln(w, benchTable(rows))
	return nil
}

func benchOne(ctx context.Context, p *problem.Problem, repeat int) (benchRow, error) {
	row := benchRow{size: len(p.Variables), constraints: len(p.Constraints)}
	var total time.Duration
	for i := range repeat {
		if err := ctx.Err(); err != nil {
			return row, err
		}
		start := time.Now()
		res, err := p.Solve(ctx, nil)
		elapsed := time.Since(start)
		if err != nil {
			return row, err
		}
		total += elapsed
		if i == 0 || elapsed < row.best {
			row.best = elapsed
		}
		row.result = res
	}
	row.mean = total / time.Duration(repeat)
	return row, nil
}

func benchTable(rows []benchRow) string {
	data := make([][]string, len(rows))
	for i, r := range rows {
		sol := r.result.Solution
		data[i] = []string{
			strconv.Itoa(r.size),
			strconv.Itoa(r.constraints),
			sol.AlgorithmUsed.String(),
			strconv.Itoa(sol.OuterProjectIterations),
			strconv.FormatInt(sol.InnerProjectIterationsTotal, 10),
			r.best.Round(time.Microsecond).String(),
			r.mean.Round(time.Microsecond).String(),
		}
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Vars", "Constraints", "Algorithm", "Outer", "Inner", "Best", "Mean").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return base.Inherit(styleHeader)
			}
			if col >= 5 {
				return base.Inherit(StyleNumber)
			}
			return base
		}).
		String()
}
