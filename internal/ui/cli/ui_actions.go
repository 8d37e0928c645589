package cli

import (
	"fmt"
	"strings"

	"depmatrix/internal/engine/matrix"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

func handleKeyActions(msg tea.KeyMsg, m model) (tea.Model, tea.Cmd) {
	if m.mode == panelIssues && m.issueList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.issueList, cmd = m.issueList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Panel):
		if m.mode == panelMatrix {
			m.mode = panelIssues
		} else {
			m.mode = panelMatrix
		}
		return m, nil
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.Deeper):
		if m.maxDepth == 0 || m.depth < m.maxDepth {
			m.depth++
			return m.reload(), nil
		}
		return m, nil
	case key.Matches(msg, m.keys.Shallower):
		if m.depth > 1 {
			m.depth--
			return m.reload(), nil
		}
		return m, nil
	case key.Matches(msg, m.keys.Sort):
		m.criterion = (m.criterion + 1) % len(matrix.Criteria)
		return m.reload(), nil
	case key.Matches(msg, m.keys.Reverse):
		m.reverse = !m.reverse
		return m.reload(), nil
	}

	if m.mode == panelIssues {
		var cmd tea.Cmd
		m.issueList, cmd = m.issueList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.matrix != nil && m.cursor < m.matrix.Size()-1 {
			m.cursor++
		}
	}
	return m, nil
}

// renderMatrixPanel draws the grid with the cursor row highlighted, then
// the selected node's details.
func renderMatrixPanel(m model) string {
	if m.matrix == nil {
		return statusStyle.Render("Waiting for the first build...")
	}
	if m.matrix.Size() == 0 {
		return statusStyle.Render("No modules found.")
	}

	inCycle := make(map[string]bool)
	for _, c := range m.report.Cycles {
		for _, name := range c {
			inCycle[name] = true
		}
	}

	width := 2
	nameWidth := 4
	for i, name := range m.matrix.Keys {
		nameWidth = max(nameWidth, len(name))
		for _, v := range m.matrix.Cells[i] {
			width = max(width, len(fmt.Sprint(v)))
		}
	}
	width = max(width, len(fmt.Sprint(m.matrix.Size())))

	var b strings.Builder
	b.WriteString(strings.Repeat(" ", nameWidth+width+3))
	for j := range m.matrix.Keys {
		fmt.Fprintf(&b, " %*d", width, j+1)
	}
	b.WriteString("\n")

	for i, name := range m.matrix.Keys {
		var row strings.Builder
		fmt.Fprintf(&row, "%*d %-*s │", width, i+1, nameWidth, name)
		for j, v := range m.matrix.Cells[i] {
			cell := fmt.Sprintf(" %*s", width, "")
			if v != 0 {
				cell = fmt.Sprintf(" %*d", width, v)
			}
			switch {
			case i == j:
				cell = diagonalStyle.Render(cell)
			case v != 0 && inCycle[name] && inCycle[m.matrix.Keys[j]]:
				cell = cycleStyle.Render(cell)
			}
			row.WriteString(cell)
		}
		line := row.String()
		if i == m.cursor {
			line = cursorStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}

	selected := m.matrix.Keys[m.cursor]
	node := m.matrix.Nodes[selected]
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Selected: %s\n", selected))
	if node != nil {
		b.WriteString(fmt.Sprintf("  Imports: %d  Exports: %d  Group: %s\n", node.Cardinal.Imports, node.Cardinal.Exports, node.Group.Name))
	}
	if mt, ok := m.report.Metrics[selected]; ok {
		b.WriteString(fmt.Sprintf("  Fan-in: %d  Fan-out: %d  Score: %d\n", mt.FanIn, mt.FanOut, mt.Score))
	}
	if inCycle[selected] {
		b.WriteString(cycleStyle.Render("  Part of a dependency cycle") + "\n")
	}
	return b.String()
}
