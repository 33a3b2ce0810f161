package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/vpsc/pkg/problem"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorRed    = lipgloss.Color("167") // Soft red - errors
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Styles
// =============================================================================

var (
	StyleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	StyleDim     = lipgloss.NewStyle().Foreground(colorDim)
	StyleValue   = lipgloss.NewStyle().Foreground(colorWhite)
	StyleNumber  = lipgloss.NewStyle().Foreground(colorCyan)
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)
)

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleCached   = lipgloss.NewStyle().Foreground(colorGreen)
	styleComputed = lipgloss.NewStyle().Foreground(colorGray)
	styleHeader   = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	styleMoved    = lipgloss.NewStyle().Foreground(colorYellow)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
	iconCached  = "cached"
	iconFresh   = "fresh"
)

// =============================================================================
// Status Output
// =============================================================================

func printSuccess(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

func printError(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconError.Render(iconError)+" "+fmt.Sprintf(format, args...))
}

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconWarning.Render(iconWarning)+" "+StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, styleIconInfo.Render(iconInfo)+" "+fmt.Sprintf(format, args...))
}

// printDetail prints an indented, dimmed line.
func printDetail(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile prints a file output line.
func printFile(w io.Writer, path string) {
	fmt.Fprintln(w, "  "+StyleDim.Render(iconArrow)+" "+StyleValue.Render(path))
}

// =============================================================================
// Solution Display
// =============================================================================

// printStats prints a one-line summary of a result.
func printStats(w io.Writer, res *problem.Result, elapsed time.Duration) {
	sol := res.Solution
	parts := []string{
		fmt.Sprintf("%d variables", len(res.Positions)),
		sol.AlgorithmUsed.String(),
		fmt.Sprintf("%d outer iterations", sol.OuterProjectIterations),
	}
	if elapsed > 0 {
		parts = append(parts, elapsed.Round(time.Microsecond).String())
	}

	status := styleComputed.Render(iconFresh)
	if res.Cached {
		status = styleCached.Render(iconCached)
	}

	var b strings.Builder
	b.WriteString("  ")
	for i, part := range parts {
		if i > 0 {
			b.WriteString(StyleDim.Render(" · "))
		}
		b.WriteString(StyleDim.Render(part))
	}
	b.WriteString(StyleDim.Render(" · ") + status)
	fmt.Fprintln(w, b.String())
}

// printWarnings reports unsatisfiable constraints and hit limits.
func printWarnings(w io.Writer, res *problem.Result) {
	sol := res.Solution
	if n := len(res.Unsatisfiable); n > 0 {
		printWarning(w, "%d unsatisfiable constraint(s)", n)
		for _, c := range res.Unsatisfiable {
			printDetail(w, "%d + %s <= %d", c.Left, formatFloat(c.Gap), c.Right)
		}
	}
	switch {
	case sol.TimeLimitExceeded:
		printWarning(w, "time limit exceeded")
	case sol.OuterProjectIterationsLimitExceeded:
		printWarning(w, "outer iteration limit exceeded")
	case sol.InnerProjectIterationsLimitExceeded:
		printWarning(w, "inner iteration limit exceeded")
	}
}

// positionTable renders the positions of res as a bordered table.
func positionTable(res *problem.Result) string {
	rows := make([][]string, 0, len(res.Positions))
	for _, p := range res.Positions {
		fixed := ""
		if p.Fixed {
			fixed = "fixed"
		}
		rows = append(rows, []string{
			strconv.Itoa(p.ID),
			formatFloat(p.Desired),
			formatFloat(p.Position),
			formatFloat(p.Position - p.Desired),
			fixed,
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("ID", "Desired", "Position", "Offset", "").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			base := lipgloss.NewStyle().Padding(0, 1)
			if row == table.HeaderRow {
				return base.Inherit(styleHeader)
			}
			if col == 3 && row >= 0 && row < len(res.Positions) {
				p := res.Positions[row]
				if !nearlyEqual(p.Position, p.Desired) {
					return base.Inherit(styleMoved)
				}
			}
			if col == 0 {
				return base.Inherit(StyleNumber)
			}
			return base
		}).
		String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}

func nearlyEqual(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
