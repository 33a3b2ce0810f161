package cli

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/vpsc/pkg/pipeline"
	"github.com/matzehuels/vpsc/pkg/problem"
)

// viewCommand creates the view command.
func (c *CLI) viewCommand() *cobra.Command {
	var (
		isResult bool
		noCache  bool
	)

	cmd := &cobra.Command{
		Use:   "view [file]",
		Short: "Browse a solution interactively",
		Long: `Browse a solution interactively.

The file is solved first unless --result is given, in which case it is read
as a result file written by 'solve -o' or 'batch --output-dir'.`,
		Args: cobra.ExactArgs(1),
	}
	pf := addParamFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var (
			res *problem.Result
			err error
		)
		if isResult {
			res, err = problem.ReadResultFile(args[0])
		} else {
			res, err = c.solveForView(ctx, args[0], noCache, pf)
		}
		if err != nil {
			return err
		}
		return runViewer(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), res)
	}

	cmd.Flags().BoolVar(&isResult, "result", false, "read a result file instead of solving")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) solveForView(ctx context.Context, input string, noCache bool, pf *paramFlags) (*problem.Result, error) {
	p, err := c.loadProblem(input, pf)
	if err != nil {
		return nil, err
	}
	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return nil, fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()
	return runner.Solve(ctx, p, pipeline.Options{NoCache: noCache})
}

func runViewer(ctx context.Context, in io.Reader, out io.Writer, res *problem.Result) error {
	prog := tea.NewProgram(NewResultModel(res),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
		tea.WithAltScreen(),
	)
	_, err := prog.Run()
	return err
}
