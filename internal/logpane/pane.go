// Package logpane holds the append-only log pane: severity styling and
// collapsing of consecutive duplicate lines.
package logpane

import "strings"

// Class is the visual style applied to an entry.
type Class string

// Style classes, named after the ANSI colors they resemble.
const (
	ClassNone    Class = ""
	ClassError   Class = "ansi91"
	ClassSuccess Class = "ansi92"
	ClassWarning Class = "ansi93"
	ClassTrace   Class = "ansi90"
)

// Severity tokens recognized between the first and second '|'.
const (
	SeverityError   = "ERROR"
	SeveritySuccess = "SUCCESS"
	SeverityWarning = "WARNING"
	SeverityInfo    = "INFO"
	SeverityTrace   = "TRACE"
)

// Entry is one rendered log line.
type Entry struct {
	Text  string `json:"text"`
	Class Class  `json:"class,omitempty"`
}

// Severity extracts the trimmed token between the first and second '|'.
// It returns false when the text carries no delimiter.
func Severity(text string) (string, bool) {
	_, rest, ok := strings.Cut(text, "|")
	if !ok {
		return "", false
	}
	token, _, _ := strings.Cut(rest, "|")
	return strings.TrimSpace(token), true
}

// Classify maps a log line to its style class.
func Classify(text string) Class {
	level, ok := Severity(text)
	if !ok {
		return ClassNone
	}
	switch level {
	case SeverityError:
		return ClassError
	case SeveritySuccess:
		return ClassSuccess
	case SeverityWarning:
		return ClassWarning
	case SeverityTrace:
		return ClassTrace
	default:
		return ClassNone
	}
}

// Pane is the ordered list of rendered entries. It is not safe for concurrent
// use; the monitor loop is its only writer.
type Pane struct {
	entries []Entry
	limit   int
}

// NewPane seeds the pane with previously rendered history, styling every line
// once. A limit <= 0 keeps every entry.
func NewPane(history []string, limit int) *Pane {
	p := &Pane{limit: limit}
	for _, line := range history {
		p.push(Entry{Text: line, Class: Classify(line)})
	}
	return p
}

// Append renders text as a new entry unless it repeats the last entry
// verbatim. The boolean reports whether an entry was added.
func (p *Pane) Append(text string) (Entry, bool) {
	if n := len(p.entries); n > 0 && p.entries[n-1].Text == text {
		return Entry{}, false
	}
	e := Entry{Text: text, Class: Classify(text)}
	p.push(e)
	return e, true
}

// Clear drops every entry.
func (p *Pane) Clear() {
	p.entries = nil
}

// Len returns the number of entries.
func (p *Pane) Len() int {
	return len(p.entries)
}

// Entries returns a copy of the rendered entries in order.
func (p *Pane) Entries() []Entry {
	return append([]Entry(nil), p.entries...)
}

func (p *Pane) push(e Entry) {
	p.entries = append(p.entries, e)
	if p.limit > 0 && len(p.entries) > p.limit {
		drop := len(p.entries) - p.limit
		p.entries = append(p.entries[:0:0], p.entries[drop:]...)
	}
}
