// Package seed loads what the page is rendered with before any stream
// message arrives: the initial progress snapshot and the log history.
package seed

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/JakeFAU/runwatch/internal/progress"
)

// ErrUnknownCategory signals a category other than run or imageBuild.
var ErrUnknownCategory = errors.New("category must be run or imageBuild")

// Category selects which backend activity is monitored.
type Category string

// Monitored activities.
const (
	CategoryRun        Category = "run"
	CategoryImageBuild Category = "imageBuild"
)

// ParseCategory validates a category name.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.TrimSpace(s)); c {
	case CategoryRun, CategoryImageBuild:
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
}

// Channels returns the logs, progress and heartbeats channel names.
func (c Category) Channels() (logs, prog, heartbeats string) {
	return string(c) + "_logs", string(c) + "_progress", string(c) + "_heartbeats"
}

// DefaultProgress is the snapshot used when nothing has been executed yet.
func DefaultProgress() progress.Update {
	return progress.Update{
		Status:         progress.StatusNoRun,
		CurrentMessage: "No run has been executed yet.",
		IsExecuted:     false,
	}
}

// InitialProgress parses the initial snapshot from inline JSON or, when
// inline is empty, from the file at path. With neither it returns
// DefaultProgress.
func InitialProgress(inline, path string) (progress.Update, error) {
	raw := strings.TrimSpace(inline)
	if raw == "" && path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return progress.Update{}, fmt.Errorf("read initial progress: %w", err)
		}
		raw = strings.TrimSpace(string(data))
	}
	if raw == "" {
		return DefaultProgress(), nil
	}
	u, err := progress.Decode([]byte(raw))
	if err != nil {
		return progress.Update{}, fmt.Errorf("initial progress: %w", err)
	}
	return u, nil
}

// History returns the lines of the log file at path. A missing path or file
// yields a single placeholder line.
func History(path string, category Category) ([]string, error) {
	placeholder := []string{fmt.Sprintf("No %s has been executed yet.", category)}
	if path == "" {
		return placeholder, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return placeholder, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open log history: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read log history: %w", err)
	}
	return lines, nil
}
