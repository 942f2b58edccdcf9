package view

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/runwatch/internal/logpane"
)

// TestPageSnapshotIsCopy ensures readers cannot mutate the page through a snapshot.
func TestPageSnapshotIsCopy(t *testing.T) {
	t.Parallel()

	p := NewPage(0)
	p.SetBarWidth(40)
	p.SetBarMessage("(2/4)  working")
	p.SetBarColor("red")
	p.SetLoading(true)
	p.AppendLog(logpane.Entry{Text: "a"})
	p.ShowNextStep()
	p.SetNextStepEnabled(true)
	p.RevealNextStep()
	p.Navigate("/next?toolName=x&imageURL=y")

	snap := p.Snapshot()
	snap.Logs[0].Text = "mutated"

	again := p.Snapshot()
	require.Equal(t, "a", again.Logs[0].Text)
	require.Equal(t, Bar{Width: 40, Message: "(2/4)  working", Color: "red"}, again.Bar)
	require.True(t, again.Loading)
	require.Equal(t, NextStep{Visible: true, Enabled: true, Revealed: true}, again.NextStep)
	require.Equal(t, "/next?toolName=x&imageURL=y", again.Navigation)
}

// TestPageLogLimit verifies the page keeps only the newest entries.
func TestPageLogLimit(t *testing.T) {
	t.Parallel()

	p := NewPage(2)
	for _, s := range []string{"1", "2", "3"} {
		p.AppendLog(logpane.Entry{Text: s})
	}
	require.Equal(t, []logpane.Entry{{Text: "2"}, {Text: "3"}}, p.Snapshot().Logs)

	p.ClearLogs()
	require.Empty(t, p.Snapshot().Logs)
}

// TestRenderBar checks the fill proportion and message.
func TestRenderBar(t *testing.T) {
	t.Parallel()

	out := RenderBar(Bar{Width: 50, Message: "(1/1)  half"}, 10)
	require.Contains(t, out, "(1/1)  half")
	require.Contains(t, out, " 50%")
	require.Equal(t, 5, strings.Count(out, "█"))
	require.Equal(t, 5, strings.Count(out, "░"))

	full := RenderBar(Bar{Width: 140, Color: "#00ff00"}, 4)
	require.Equal(t, 4, strings.Count(full, "█"))
}

// TestTerminalFlushPrintsBarOnce batches bar changes into one line.
func TestTerminalFlushPrintsBarOnce(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	term := NewTerminal(&buf, NewPage(0))
	term.SetBarWidth(25)
	term.SetBarMessage("(1/3)  tool")
	term.SetBarColor("")
	term.Flush()
	term.Flush()

	require.Equal(t, 1, strings.Count(buf.String(), "(1/3)  tool"))
}

// TestTerminalPrintsLogsAndTransitions covers the non-bar output.
func TestTerminalPrintsLogsAndTransitions(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	term := NewTerminal(&buf, NewPage(0))
	term.AppendLog(logpane.Entry{Text: "run | ERROR | boom", Class: logpane.ClassError})
	term.SetLoading(true)
	term.SetLoading(true)
	term.SetNextStepEnabled(true)
	term.Navigate("/tools?toolName=a&imageURL=b")

	out := buf.String()
	require.Contains(t, out, "run | ERROR | boom")
	require.Equal(t, 1, strings.Count(out, "run in progress"))
	require.Contains(t, out, "next step available")
	require.Contains(t, out, "/tools?toolName=a&imageURL=b")
	require.Len(t, term.Snapshot().Logs, 1)
}

// TestBarColor resolves backend color names and passes unknown values through.
func TestBarColor(t *testing.T) {
	t.Parallel()

	require.Equal(t, red, BarColor("Red"))
	require.Equal(t, purple, BarColor(""))
	require.Equal(t, lipgloss.Color("#00ff00"), BarColor("#00ff00"))
}
