// Package watchdog judges backend liveness from heartbeat arrival times.
//
// The watchdog does not run its own goroutine. The owner selects on C() and
// calls Check on every tick, which keeps all liveness state on the owner's
// loop. Start and Stop are idempotent and pair with the owner's lifetime.
package watchdog

import (
	"time"

	"github.com/JakeFAU/runwatch/internal/clock"
)

// Defaults match the backend's one-second heartbeat cadence.
const (
	DefaultPollInterval = time.Second
	DefaultTimeout      = 2 * time.Second
)

// Transition is the edge reported by Check.
type Transition int

// Possible Check results.
const (
	None Transition = iota
	Lost
	Recovered
)

func (t Transition) String() string {
	switch t {
	case Lost:
		return "lost"
	case Recovered:
		return "recovered"
	default:
		return "none"
	}
}

// Config controls polling.
//   - PollInterval: how often C() ticks while running (default 1s).
//   - Timeout: silence longer than this counts as lost liveness (default 2s).
type Config struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

// Watchdog tracks the last heartbeat and reports liveness edges. It is not
// safe for concurrent use.
type Watchdog struct {
	cfg      Config
	clock    clock.Clock
	ticker   clock.Ticker
	lastBeat time.Time
	alive    bool
}

// New creates a stopped Watchdog that considers the backend alive as of now.
func New(cfg Config, clk clock.Clock) *Watchdog {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Watchdog{
		cfg:      cfg,
		clock:    clk,
		lastBeat: clk.Now(),
		alive:    true,
	}
}

// Start begins polling. It returns false if polling was already active.
func (w *Watchdog) Start() bool {
	if w.ticker != nil {
		return false
	}
	w.ticker = w.clock.NewTicker(w.cfg.PollInterval)
	return true
}

// Stop ends polling. It returns false if polling was not active.
func (w *Watchdog) Stop() bool {
	if w.ticker == nil {
		return false
	}
	w.ticker.Stop()
	w.ticker = nil
	return true
}

// Running reports whether polling is active.
func (w *Watchdog) Running() bool {
	return w.ticker != nil
}

// C returns the poll channel, or nil while stopped so a select on it blocks.
func (w *Watchdog) C() <-chan time.Time {
	if w.ticker == nil {
		return nil
	}
	return w.ticker.C()
}

// Beat records a heartbeat arrival.
func (w *Watchdog) Beat() {
	w.lastBeat = w.clock.Now()
}

// LastBeat returns the arrival time of the most recent heartbeat.
func (w *Watchdog) LastBeat() time.Time {
	return w.lastBeat
}

// Alive reports the current liveness verdict.
func (w *Watchdog) Alive() bool {
	return w.alive
}

// Check compares the clock against the last heartbeat. It reports Lost or
// Recovered only on the poll where the verdict changes.
func (w *Watchdog) Check() Transition {
	silent := w.clock.Now().Sub(w.lastBeat) > w.cfg.Timeout
	switch {
	case silent && w.alive:
		w.alive = false
		return Lost
	case !silent && !w.alive:
		w.alive = true
		return Recovered
	default:
		return None
	}
}
