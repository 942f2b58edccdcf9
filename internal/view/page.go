// Package view renders monitor state. Page is the in-memory page model that
// the HTTP surface reads; Terminal prints every change to a terminal.
package view

import (
	"sync"

	"github.com/JakeFAU/runwatch/internal/logpane"
)

// Bar is the progress bar's visible state.
type Bar struct {
	Hidden  bool    `json:"hidden"`
	Width   float64 `json:"width"`
	Message string  `json:"message"`
	Color   string  `json:"color,omitempty"`
}

// NextStep is the follow-up control's visible state.
type NextStep struct {
	Visible  bool `json:"visible"`
	Enabled  bool `json:"enabled"`
	Revealed bool `json:"revealed"`
}

// Snapshot is a point-in-time copy of the page.
type Snapshot struct {
	Bar        Bar             `json:"bar"`
	Loading    bool            `json:"loading"`
	Logs       []logpane.Entry `json:"logs"`
	NextStep   NextStep        `json:"nextStep"`
	Navigation string          `json:"navigation,omitempty"`
}

// Page is safe for one writer and many concurrent readers.
type Page struct {
	mu       sync.RWMutex
	state    Snapshot
	logLimit int
}

// NewPage returns an empty page keeping at most logLimit log entries
// (unlimited when <= 0).
func NewPage(logLimit int) *Page {
	return &Page{logLimit: logLimit}
}

// HideBar hides the progress bar.
func (p *Page) HideBar() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Bar.Hidden = true
}

// SetBarWidth sets the fill percentage.
func (p *Page) SetBarWidth(pct float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Bar.Width = pct
}

// SetBarMessage sets the text shown in the bar.
func (p *Page) SetBarMessage(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Bar.Message = msg
}

// SetBarColor sets the bar color; "" restores the default.
func (p *Page) SetBarColor(color string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Bar.Color = color
}

// SetLoading toggles the loading indicator.
func (p *Page) SetLoading(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Loading = on
}

// AppendLog adds a rendered entry.
func (p *Page) AppendLog(e logpane.Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Logs = append(p.state.Logs, e)
	if p.logLimit > 0 && len(p.state.Logs) > p.logLimit {
		drop := len(p.state.Logs) - p.logLimit
		p.state.Logs = append([]logpane.Entry(nil), p.state.Logs[drop:]...)
	}
}

// ReplaceLogs swaps the whole log pane, e.g. with pre-rendered history.
func (p *Page) ReplaceLogs(entries []logpane.Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Logs = append([]logpane.Entry(nil), entries...)
}

// ClearLogs empties the log pane.
func (p *Page) ClearLogs() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Logs = nil
}

// ShowNextStep makes the next-step control visible.
func (p *Page) ShowNextStep() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.NextStep.Visible = true
}

// SetNextStepEnabled enables or disables the control.
func (p *Page) SetNextStepEnabled(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.NextStep.Enabled = on
}

// RevealNextStep scrolls the control into view.
func (p *Page) RevealNextStep() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.NextStep.Revealed = true
}

// Navigate records a navigation request.
func (p *Page) Navigate(dest string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Navigation = dest
}

// Snapshot returns a deep copy of the page.
func (p *Page) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.state
	s.Logs = append([]logpane.Entry(nil), p.state.Logs...)
	return s
}
