// Package system provides the wall-clock implementation of clock.Clock.
package system

import (
	"time"

	"github.com/JakeFAU/runwatch/internal/clock"
)

// Clock implements clock.Clock using the time package.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now()
}

// NewTicker wraps time.NewTicker.
func (Clock) NewTicker(d time.Duration) clock.Ticker {
	return &ticker{t: time.NewTicker(d)}
}

type ticker struct {
	t *time.Ticker
}

func (t *ticker) C() <-chan time.Time {
	return t.t.C
}

func (t *ticker) Stop() {
	t.t.Stop()
}
