package cli

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/vpsc/pkg/problem"
)

var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// sortMode orders the rows of a ResultModel.
type sortMode int

const (
	sortInput sortMode = iota
	sortPosition
	sortOffset
)

func (m sortMode) String() string {
	switch m {
	case sortPosition:
		return "position"
	case sortOffset:
		return "offset"
	}
	return "input"
}

// =============================================================================
// ResultModel - Interactive solution browser
// =============================================================================

// ResultModel is the bubbletea model for browsing a solved problem.
type ResultModel struct {
	Result *problem.Result

	Cursor    int
	Offset    int
	Height    int
	Sort      sortMode
	MovedOnly bool

	// rows indexes Result.Positions in display order.
	rows []int
}

// NewResultModel creates a browser over res.
func NewResultModel(res *problem.Result) ResultModel {
	m := ResultModel{Result: res, Height: 15}
	m.rebuild()
	return m
}

// rebuild recomputes the row order after a sort or filter change.
func (m *ResultModel) rebuild() {
	pos := m.Result.Positions
	m.rows = m.rows[:0]
	for i, p := range pos {
		if m.MovedOnly && nearlyEqual(p.Position, p.Desired) {
			continue
		}
		m.rows = append(m.rows, i)
	}
	switch m.Sort {
	case sortPosition:
		slices.SortStableFunc(m.rows, func(a, b int) int {
			return cmp.Compare(pos[a].Position, pos[b].Position)
		})
	case sortOffset:
		slices.SortStableFunc(m.rows, func(a, b int) int {
			return cmp.Compare(math.Abs(pos[b].Position-pos[b].Desired), math.Abs(pos[a].Position-pos[a].Desired))
		})
	}
	m.Cursor = min(m.Cursor, max(len(m.rows)-1, 0))
	m.clampOffset()
}

func (m *ResultModel) clampOffset() {
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
	if m.Cursor >= m.Offset+m.Height {
		m.Offset = m.Cursor - m.Height + 1
	}
	m.Offset = max(m.Offset, 0)
}

// Selected returns the position under the cursor.
func (m ResultModel) Selected() (problem.Position, bool) {
	if len(m.rows) == 0 {
		return problem.Position{}, false
	}
	return m.Result.Positions[m.rows[m.Cursor]], true
}

func (m ResultModel) Init() tea.Cmd {
	return nil
}

func (m ResultModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		last := len(m.rows) - 1
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
			}
		case "down", "j":
			if m.Cursor < last {
				m.Cursor++
			}
		case "pgup":
			m.Cursor = max(m.Cursor-m.Height, 0)
		case "pgdown":
			m.Cursor = max(min(m.Cursor+m.Height, last), 0)
		case "home", "g":
			m.Cursor = 0
		case "end", "G":
			m.Cursor = max(last, 0)
		case "s":
			m.Sort = (m.Sort + 1) % 3
			m.rebuild()
		case "m":
			m.MovedOnly = !m.MovedOnly
			m.rebuild()
		}
		m.clampOffset()
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-9, 5)
		m.clampOffset()
	}
	return m, nil
}

func (m ResultModel) View() string {
	var b strings.Builder

	title := m.Result.Name
	if title == "" {
		title = "solution"
	}
	b.WriteString(StyleTitle.Render(title))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  s sort  m moved only  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.rows))
	rows := make([][]string, 0, end-m.Offset)
	for i := m.Offset; i < end; i++ {
		p := m.Result.Positions[m.rows[i]]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		fixed := ""
		if p.Fixed {
			fixed = "fixed"
		}
		rows = append(rows, []string{
			cursor,
			strconv.Itoa(p.ID),
			formatFloat(p.Desired),
			formatFloat(p.Position),
			formatFloat(p.Position - p.Desired),
			fixed,
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "ID", "Desired", "Position", "Offset", "").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			if m.Offset+row == m.Cursor {
				return listSelectedStyle
			}
			if col == 4 && row < len(rows) && rows[row][4] != formatFloat(0) {
				return styleMoved
			}
			return lipgloss.NewStyle()
		})
	b.WriteString(t.Render())
	b.WriteString("\n\n")

	sol := m.Result.Solution
	footer := fmt.Sprintf("  [%d/%d] sort: %s · %s · %d outer iterations · goal %s",
		min(m.Cursor+1, len(m.rows)), len(m.rows), m.Sort, sol.AlgorithmUsed,
		sol.OuterProjectIterations, formatFloat(sol.GoalFunctionValue))
	b.WriteString(listDimStyle.Render(footer))
	if n := len(m.Result.Unsatisfiable); n > 0 {
		b.WriteString("\n")
		b.WriteString(StyleWarning.Render(fmt.Sprintf("  %d unsatisfiable constraint(s)", n)))
	}
	return b.String()
}
