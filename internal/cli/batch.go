package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/vpsc/pkg/pipeline"
	"github.com/matzehuels/vpsc/pkg/problem"
)

type batchOpts struct {
	concurrency int
	outputDir   string
	format      string
	noCache     bool
	refresh     bool
}

// batchCommand creates the batch command.
func (c *CLI) batchCommand() *cobra.Command {
	var opts batchOpts

	cmd := &cobra.Command{
		Use:   "batch [problem files...]",
		Short: "Solve several problems concurrently",
		Long: `Solve several independent problems concurrently.

A problem that fails does not stop the others; the command reports every
failure and exits non-zero if any occurred. With --output-dir each result
is written as <name>.result.<format>.`,
		Example: `  vpsc batch problems/*.json -j 8
  vpsc batch a.yaml b.yaml --output-dir results --format yaml`,
		Args: cobra.MinimumNArgs(1),
	}
	pf := addParamFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return c.runBatch(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args, opts, pf)
	}

	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "j", pipeline.DefaultConcurrency(), "problems solved at once")
	cmd.Flags().StringVar(&opts.outputDir, "output-dir", "", "write one result file per problem into this directory")
	cmd.Flags().StringVarP(&opts.format, "format", "f", string(problem.FormatJSON), "result file format: json, toml, yaml")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached results")

	return cmd
}

func (c *CLI) runBatch(ctx context.Context, w, status io.Writer, inputs []string, opts batchOpts, pf *paramFlags) error {
	logger := loggerFromContext(ctx)

	format, err := problem.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	if opts.outputDir != "" {
		if err := os.MkdirAll(opts.outputDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	problems := make([]*problem.Problem, len(inputs))
	for i, input := range inputs {
		p, err := c.loadProblem(input, pf)
		if err != nil {
			return err
		}
		problems[i] = p
	}

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	spinner := newSpinner(ctx, status, fmt.Sprintf("Solving %d problems...", len(problems)))
	spinner.Start()
	batch, err := runner.SolveBatch(ctx, problems, pipeline.Options{
		Concurrency: opts.concurrency,
		NoCache:     opts.noCache,
		Refresh:     opts.refresh,
	})
	spinner.Stop()
	if err != nil {
		return err
	}
	logger.Debug("batch done", "id", batch.ID, "duration", batch.Duration)

	if opts.outputDir != "" {
		for i, item := range batch.Items {
			if item.Result == nil {
				continue
			}
			path := resultPath(opts.outputDir, inputs[i], format)
			if err := item.Result.WriteFile(path); err != nil {
				return fmt.Errorf("write result: %w", err)
			}
		}
	}

	fmt.Fprintln(w, batchTable(inputs, batch))
	solved := len(batch.Items) - batch.Failed
	printSuccess(w, "Solved %d of %d problems (%d cached) in %s", solved, len(batch.Items), batch.Cached, batch.Duration)
	if opts.outputDir != "" {
		printFile(w, opts.outputDir)
	}
	if batch.Failed > 0 {
		for i, item := range batch.Items {
			if item.Err != nil {
				printError(w, "%s: %s", inputs[i], item.Error)
			}
		}
		return fmt.Errorf("%d of %d problems failed", batch.Failed, len(batch.Items))
	}
	return nil
}

// resultPath maps dir + "a/b/boxes.yaml" to dir/boxes.result.<format>.
func resultPath(dir, input string, format problem.Format) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(dir, base+".result."+string(format))
}

func batchTable(inputs []string, batch *pipeline.BatchResult) string {
	rows := make([][]string, len(batch.Items))
	for i, item := range batch.Items {
		if item.Result == nil {
			rows[i] = []string{inputs[i], "", "", "", "", iconError}
			continue
		}
		res := item.Result
		state := iconFresh
		if res.Cached {
			state = iconCached
		}
		rows[i] = []string{
			inputs[i],
			strconv.Itoa(len(res.Positions)),
			res.Solution.AlgorithmUsed.String(),
			strconv.Itoa(res.Solution.OuterProjectIterations),
			strconv.Itoa(len(res.Unsatisfiable)),
			state,
		}
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("File", "Vars", "Algorithm", "Outer", "Unsat", "").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return base.Inherit(styleHeader)
			}
			if row < 0 || row >= len(batch.Items) {
				return base
			}
			item := batch.Items[row]
			switch {
			case item.Result == nil:
				return base.Inherit(styleIconError)
			case col == 4 && len(item.Result.Unsatisfiable) > 0:
				return base.Inherit(styleIconWarning)
			case col == 5 && item.Result.Cached:
				return base.Inherit(styleCached)
			case col == 5:
				return base.Inherit(styleComputed)
			}
			return base
		}).
		String()
}
