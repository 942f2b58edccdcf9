// Package tui renders the page as an interactive bubbletea program. The
// monitor keeps writing into a view.Page; the model re-reads it on a short
// tick, so the monitor loop never blocks on the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/JakeFAU/runwatch/internal/view"
)

const refreshPeriod = 100 * time.Millisecond

// Source is read on every refresh.
type Source interface {
	Snapshot() view.Snapshot
}

// ClickFunc activates the next-step control.
type ClickFunc func(ctx context.Context) (string, error)

type refreshMsg time.Time

type clickedMsg struct {
	dest string
	err  error
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	readyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("76")).Bold(true)
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

// Model is the bubbletea model for one monitor.
type Model struct {
	title  string
	source Source
	click  ClickFunc

	snap    view.Snapshot
	bar     progress.Model
	spinner spinner.Model
	logs    viewport.Model
	width   int
	height  int
	notice  string
	logSize int
}

// New builds a model titled title that reads source and clicks through click.
func New(title string, source Source, click ClickFunc) Model {
	return Model{
		title:  title,
		source: source,
		click:  click,
		bar:    progress.New(progress.WithSolidFill(string(view.BarColor(""))), progress.WithoutPercentage()),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))),
		),
		logs:  viewport.New(80, 10),
		width: 80,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, refresh())
}

func refresh() tea.Cmd {
	return tea.Tick(refreshPeriod, func(at time.Time) tea.Msg {
		return refreshMsg(at)
	})
}

func clickCmd(click ClickFunc) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		dest, err := click(ctx)
		return clickedMsg{dest: dest, err: err}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m = m.resize()
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "n", "enter":
			if !m.snap.NextStep.Enabled || m.click == nil {
				m.notice = "next step is not available yet"
				return m, nil
			}
			return m, clickCmd(m.click)
		}
		var cmd tea.Cmd
		m.logs, cmd = m.logs.Update(msg)
		return m, cmd
	case refreshMsg:
		m = m.sync(m.source.Snapshot())
		return m, refresh()
	case clickedMsg:
		if msg.err != nil {
			m.notice = msg.err.Error()
		} else {
			m.notice = "→ " + msg.dest
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// sync adopts a new snapshot, following the log tail when entries arrive.
func (m Model) sync(snap view.Snapshot) Model {
	grew := len(snap.Logs) != m.logSize
	atBottom := m.logs.AtBottom()
	m.snap = snap
	m.logSize = len(snap.Logs)
	m.bar.FullColor = string(view.BarColor(snap.Bar.Color))
	if grew {
		m.logs.SetContent(renderLogs(snap))
		if atBottom || snap.Loading {
			m.logs.GotoBottom()
		}
	}
	return m
}

func renderLogs(snap view.Snapshot) string {
	lines := make([]string, 0, len(snap.Logs))
	for _, e := range snap.Logs {
		lines = append(lines, view.LogStyle(e.Class).Render(e.Text))
	}
	return strings.Join(lines, "\n")
}

func (m Model) resize() Model {
	w := m.width
	if w <= 0 {
		w = 80
	}
	m.bar.Width = max(10, w-4)
	m.logs.Width = w
	m.logs.Height = max(3, m.height-8)
	return m
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	status := idleStyle.Render("○")
	if m.snap.Loading {
		status = m.spinner.View()
	}
	b.WriteString(status + " " + titleStyle.Render(m.title) + "\n\n")

	if !m.snap.Bar.Hidden {
		b.WriteString(m.bar.ViewAs(m.snap.Bar.Width / 100))
		b.WriteString(fmt.Sprintf(" %3.0f%%\n", m.snap.Bar.Width))
		b.WriteString(m.snap.Bar.Message + "\n\n")
	}

	b.WriteString(m.logs.View() + "\n")

	if m.snap.NextStep.Visible {
		if m.snap.NextStep.Enabled {
			b.WriteString(readyStyle.Render("[n] next step") + "\n")
		} else {
			b.WriteString(idleStyle.Render("[n] next step") + "\n")
		}
	}
	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice) + "\n")
	}
	b.WriteString(helpStyle.Render("↑/↓ scroll • n next step • q quit"))
	return b.String()
}

// Run shows the model until the user quits or ctx is cancelled.
func Run(ctx context.Context, m Model, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
