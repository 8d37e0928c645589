package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	coreapp "depmatrix/internal/core/app"
	"depmatrix/internal/core/config"
	"depmatrix/internal/core/ports"
	"depmatrix/internal/engine/analysis"
	"depmatrix/internal/engine/matrix"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	cycleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)

	cursorStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#1E3A8A")).
			Foreground(lipgloss.Color("#F8FAFC"))

	diagonalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#94A3B8"))
)

// matrixSource is the part of the application the viewer reads from.
type matrixSource interface {
	Matrix(ctx context.Context, req ports.MatrixRequest) (*matrix.Matrix, error)
	Analyze(ctx context.Context, depth int) (analysis.Report, error)
}

type item struct {
	title, desc string
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + i.desc }

type panelMode int

const (
	panelMatrix panelMode = iota
	panelIssues
)

type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	Deeper    key.Binding
	Shallower key.Binding
	Sort      key.Binding
	Reverse   key.Binding
	Panel     key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Deeper, k.Shallower, k.Sort, k.Reverse, k.Panel, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Deeper, k.Shallower},
		{k.Sort, k.Reverse, k.Panel, k.Help, k.Quit},
	}
}

var defaultKeys = keyMap{
	Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Deeper:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "deeper")),
	Shallower: key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "shallower")),
	Sort:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "next order")),
	Reverse:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reverse")),
	Panel:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "panel")),
	Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type model struct {
	source matrixSource
	keys   keyMap
	help   help.Model

	mode      panelMode
	issueList list.Model

	depth     int
	maxDepth  int
	criterion int
	reverse   bool
	cursor    int

	matrix     *matrix.Matrix
	report     analysis.Report
	err        error
	lastUpdate time.Time
	summary    string
}

// updateMsg tells the viewer a rebuild finished.
type updateMsg struct {
	maxDepth int
	summary  string
	err      error
}

func initialModel(source matrixSource, out config.Output) model {
	issueList := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	issueList.Title = "Findings"
	issueList.SetShowStatusBar(false)
	issueList.SetFilteringEnabled(true)

	criterion := 0
	for i, c := range matrix.Criteria {
		if strings.EqualFold(string(c), out.Sort) {
			criterion = i
		}
	}

	return model{
		source:     source,
		keys:       defaultKeys,
		help:       help.New(),
		mode:       panelMatrix,
		issueList:  issueList,
		depth:      out.Depth,
		criterion:  criterion,
		reverse:    out.Reverse,
		lastUpdate: time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return handleKeyActions(msg, m)
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		height := max(msg.Height-v-8, 5)
		m.issueList.SetSize(msg.Width-h, height)
		m.help.Width = msg.Width - h
	case updateMsg:
		m.maxDepth = msg.maxDepth
		m.summary = msg.summary
		m.lastUpdate = time.Now()
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m = m.reload()
	}

	var cmd tea.Cmd
	if m.mode == panelIssues {
		m.issueList, cmd = m.issueList.Update(msg)
	}
	return m, cmd
}

// reload fetches the matrix and report for the current view settings.
func (m model) reload() model {
	if m.source == nil {
		return m
	}
	ctx := context.Background()
	mat, err := m.source.Matrix(ctx, ports.MatrixRequest{
		Depth:   m.depth,
		Sort:    matrix.Criteria[m.criterion],
		Reverse: m.reverse,
	})
	if err != nil {
		m.err = err
		return m
	}
	rep, err := m.source.Analyze(ctx, mat.Depth)
	if err != nil {
		m.err = err
		return m
	}

	m.err = nil
	m.matrix = mat
	m.report = rep
	m.depth = mat.Depth
	m.cursor = min(m.cursor, max(mat.Size()-1, 0))

	items := []list.Item{}
	for _, c := range rep.Cycles {
		items = append(items, item{title: "Circular Dependency", desc: strings.Join(c, " -> ")})
	}
	for _, v := range rep.Violations {
		items = append(items, item{title: "Layer Violation", desc: v.String()})
	}
	for _, g := range rep.GodModules {
		items = append(items, item{title: "God Module", desc: fmt.Sprintf("%s score=%d", g.Name, g.Metrics.Score)})
	}
	m.issueList.SetItems(items)
	return m
}

func (m model) View() string {
	depth := "-"
	if m.matrix != nil {
		depth = fmt.Sprintf("%d/%d", m.matrix.Depth, m.maxDepth)
	}
	order := string(matrix.Criteria[m.criterion])
	if m.reverse {
		order += " desc"
	}
	status := statusStyle.Render(fmt.Sprintf("Last update: %s | depth %s | order %s",
		m.lastUpdate.Format("15:04:05"), depth, order))

	var summary string
	switch {
	case m.err != nil:
		summary = cycleStyle.Render(fmt.Sprintf("error: %v", m.err))
	case m.report.Clean():
		summary = successStyle.Render("No findings")
	default:
		summary = fmt.Sprintf("%s | %s | %s",
			cycleStyle.Render(fmt.Sprintf("%d cycles", len(m.report.Cycles))),
			warnStyle.Render(fmt.Sprintf("%d violations", len(m.report.Violations))),
			warnStyle.Render(fmt.Sprintf("%d god modules", len(m.report.GodModules))))
	}

	header := fmt.Sprintf("%s\n%s | %s\n", titleStyle("Dependency Matrix"), status, summary)

	body := renderMatrixPanel(m)
	if m.mode == panelIssues {
		body = m.issueList.View()
	}
	return docStyle.Render(header + "\n" + m.help.View(m.keys) + "\n\n" + body)
}

func runUI(ctx context.Context, a *coreapp.App, out config.Output) error {
	m := initialModel(a, out)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	send := func(update coreapp.Update) {
		p.Send(updateMsg{maxDepth: update.MaxDepth, summary: update.Summary, err: update.Err})
	}
	a.SetUpdateHandler(send)
	go send(a.CurrentUpdate())

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
