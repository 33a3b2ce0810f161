package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/vpsc/pkg/pipeline"
	"github.com/matzehuels/vpsc/pkg/render"
)

type graphOpts struct {
	output     string
	format     string
	detailed   bool
	noGoals    bool
	noClusters bool
	noCache    bool
	refresh    bool
}

// graphCommand creates the graph command.
func (c *CLI) graphCommand() *cobra.Command {
	opts := graphOpts{format: render.FormatSVG}

	cmd := &cobra.Command{
		Use:   "graph [problem file]",
		Short: "Draw the solved constraint graph",
		Long: `Solve a problem and draw its constraint graph.

Variables are ordered left to right by position and grouped by the block
they ended up in. Active constraints are solid, inactive ones dashed and
unsatisfiable ones red. Use -o - to write to stdout.`,
		Example: `  vpsc graph boxes.yaml
  vpsc graph boxes.yaml -f png -o boxes.png
  vpsc graph boxes.yaml -f dot -o - | dot -Tpdf > boxes.pdf`,
		Args: cobra.ExactArgs(1),
	}
	pf := addParamFlags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := render.ValidateFormat(opts.format); err != nil {
			return err
		}
		return c.runGraph(cmd.Context(), cmd.OutOrStdout(), args[0], opts, pf)
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default <input>.<format>, - for stdout)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: dot, svg, png")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "label active constraints with their multipliers")
	cmd.Flags().BoolVar(&opts.noGoals, "no-goals", false, "omit goal edges")
	cmd.Flags().BoolVar(&opts.noClusters, "no-clusters", false, "do not group variables by block")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "ignore cached output")

	return cmd
}

func (c *CLI) runGraph(ctx context.Context, w io.Writer, input string, opts graphOpts, pf *paramFlags) error {
	logger := loggerFromContext(ctx)

	p, err := c.loadProblem(input, pf)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	prog := newProgress(logger)
	data, cached, err := runner.GraphWithCacheInfo(ctx, p, pipeline.Options{
		GraphFormat: opts.format,
		NoCache:     opts.noCache,
		Refresh:     opts.refresh,
		Graph: render.Options{
			Detailed: opts.detailed,
			Goals:    !opts.noGoals,
			Clusters: !opts.noClusters,
		},
	})
	if err != nil {
		return fmt.Errorf("graph %s: %w", input, err)
	}
	prog.done("rendered graph", "file", input, "format", opts.format, "cached", cached)

	if opts.output == "-" {
		_, err := w.Write(data)
		return err
	}

	path := opts.output
	if path == "" {
		path = strings.TrimSuffix(input, filepath.Ext(input)) + "." + opts.format
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	printSuccess(w, "Rendered %s", opts.format)
	printFile(w, path)
	return nil
}
