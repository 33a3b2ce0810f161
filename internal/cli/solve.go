package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/vpsc/pkg/pipeline"
	"github.com/matzehuels/vpsc/pkg/problem"
)

// printTable is the --format value for human-readable output.
const printTable = "table"

type solveOpts struct {
	output  string
	format  string
	noCache bool
	refresh bool
}

// solveCommand creates the solve command.
func (c *CLI) solveCommand() *cobra.Command {
	var opts solveOpts

	cmd := &cobra.Command{
		Use:   "solve [problem file]",
		Short: "Solve a problem and print the positions",
		Long: `Solve a problem and print the positions.

The problem file is JSON, TOML or YAML, selected by extension. Results are
cached by problem content and parameters; use --refresh to force a new
solve. With -o the result is also written to a file whose extension picks
its format.`,
		Example: `  vpsc solve boxes.yaml
  vpsc solve boxes.yaml -o boxes.result.json
  vpsc solve boxes.toml --format json --outer-limit 50`,
		Args: cobra.ExactArgs(1),
	}
	pf := addParamFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return c.runSolve(cmd.Context(), cmd.OutOrStdout(), args[0], opts, pf)
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the result to this file (.json, .toml, .yaml)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", printTable, "stdout format: table, json, toml, yaml")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached results")

	return cmd
}

func (c *CLI) runSolve(ctx context.Context, w io.Writer, input string, opts solveOpts, pf *paramFlags) error {
	logger := loggerFromContext(ctx)

	var outFormat problem.Format
	if opts.format != printTable {
		f, err := problem.ParseFormat(opts.format)
		if err != nil {
			return err
		}
		outFormat = f
	}

	p, err := c.loadProblem(input, pf)
	if err != nil {
		return err
	}
	logger.Debug("loaded problem", "file", input, "variables", len(p.Variables), "constraints", len(p.Constraints), "goals", len(p.Goals))

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	start := time.Now()
	res, err := runner.Solve(ctx, p, pipeline.Options{Refresh: opts.refresh, NoCache: opts.noCache})
	if err != nil {
		return fmt.Errorf("solve %s: %w", input, err)
	}
	elapsed := time.Since(start)

	if opts.output != "" {
		if err := res.WriteFile(opts.output); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
		logger.Debug("wrote result", "file", opts.output)
	}

	if outFormat != "" {
		return res.Write(w, outFormat)
	}

	fmt.Fprintln(w, StyleTitle.Render(res.Name))
	fmt.Fprintln(w, positionTable(res))
	printStats(w, res, elapsed)
	printWarnings(w, res)
	if opts.output != "" {
		printFile(w, opts.output)
	}
	return nil
}
