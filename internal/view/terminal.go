package view

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/JakeFAU/runwatch/internal/logpane"
)

// Palette, kept close to the ANSI classes the log levels are named after.
var (
	purple = lipgloss.Color("99")
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	yellow = lipgloss.Color("214")
	dim    = lipgloss.Color("243")
	faint  = lipgloss.Color("238")
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(red)
	successStyle = lipgloss.NewStyle().Foreground(green)
	warnStyle    = lipgloss.NewStyle().Foreground(yellow)
	traceStyle   = lipgloss.NewStyle().Foreground(dim)
	plainStyle   = lipgloss.NewStyle()
	emptyStyle   = lipgloss.NewStyle().Foreground(faint)
	accentStyle  = lipgloss.NewStyle().Foreground(purple)
)

var namedColors = map[string]lipgloss.Color{
	"red":    red,
	"green":  green,
	"yellow": yellow,
	"orange": yellow,
	"gray":   dim,
	"grey":   dim,
}

const defaultBarCells = 30

// LogStyle maps a log class to its terminal style.
func LogStyle(c logpane.Class) lipgloss.Style {
	switch c {
	case logpane.ClassError:
		return errorStyle
	case logpane.ClassSuccess:
		return successStyle
	case logpane.ClassWarning:
		return warnStyle
	case logpane.ClassTrace:
		return traceStyle
	default:
		return plainStyle
	}
}

// Terminal is a Page that also prints every change to w. Bar changes are
// batched and printed as one line on Flush.
type Terminal struct {
	*Page

	mu       sync.Mutex
	w        io.Writer
	cells    int
	barDirty bool
}

// NewTerminal wraps page and prints to w.
func NewTerminal(w io.Writer, page *Page) *Terminal {
	return &Terminal{Page: page, w: w, cells: defaultBarCells}
}

// SetBarWidth implements the monitor view.
func (t *Terminal) SetBarWidth(pct float64) {
	t.Page.SetBarWidth(pct)
	t.markBar()
}

// SetBarMessage implements the monitor view.
func (t *Terminal) SetBarMessage(msg string) {
	t.Page.SetBarMessage(msg)
	t.markBar()
}

// SetBarColor implements the monitor view.
func (t *Terminal) SetBarColor(color string) {
	t.Page.SetBarColor(color)
	t.markBar()
}

// AppendLog prints the styled entry.
func (t *Terminal) AppendLog(e logpane.Entry) {
	t.Page.AppendLog(e)
	t.println(LogStyle(e.Class).Render(e.Text))
}

// ReplaceLogs prints the replacement history.
func (t *Terminal) ReplaceLogs(entries []logpane.Entry) {
	t.Page.ReplaceLogs(entries)
	for _, e := range entries {
		t.println(LogStyle(e.Class).Render(e.Text))
	}
}

// ClearLogs prints a separator since a terminal cannot unprint lines.
func (t *Terminal) ClearLogs() {
	t.Page.ClearLogs()
	t.println(emptyStyle.Render(strings.Repeat("─", t.cells+10)))
}

// SetLoading prints loading transitions.
func (t *Terminal) SetLoading(on bool) {
	was := t.Page.Snapshot().Loading
	t.Page.SetLoading(on)
	if was == on {
		return
	}
	if on {
		t.println(accentStyle.Render("●") + " run in progress")
	} else {
		t.println(traceStyle.Render("○") + " idle")
	}
}

// SetNextStepEnabled prints when the next step becomes available.
func (t *Terminal) SetNextStepEnabled(on bool) {
	t.Page.SetNextStepEnabled(on)
	if on {
		t.println(successStyle.Render("✓") + " next step available")
	}
}

// Navigate prints the destination.
func (t *Terminal) Navigate(dest string) {
	t.Page.Navigate(dest)
	t.println(accentStyle.Render("→") + " " + dest)
}

// Flush prints the bar if it changed since the last flush.
func (t *Terminal) Flush() {
	t.mu.Lock()
	dirty := t.barDirty
	t.barDirty = false
	t.mu.Unlock()
	if !dirty {
		return
	}
	snap := t.Page.Snapshot()
	if snap.Bar.Hidden {
		return
	}
	t.println(RenderBar(snap.Bar, t.cells))
}

// RenderBar draws a text progress bar of the given cell width.
func RenderBar(b Bar, cells int) string {
	if cells <= 0 {
		cells = defaultBarCells
	}
	filled := int(b.Width / 100 * float64(cells))
	if filled > cells {
		filled = cells
	}
	if filled < 0 {
		filled = 0
	}
	fill := lipgloss.NewStyle().Foreground(BarColor(b.Color))
	bar := fill.Render(strings.Repeat("█", filled)) + emptyStyle.Render(strings.Repeat("░", cells-filled))
	return fmt.Sprintf("%s %3.0f%%  %s", bar, b.Width, b.Message)
}

func (t *Terminal) markBar() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.barDirty = true
}

func (t *Terminal) println(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w, line)
}
