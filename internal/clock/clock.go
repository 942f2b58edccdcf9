// Package clock declares the time source used by timing-sensitive components.
package clock

import "time"

// Clock returns the current time and creates tickers (useful for testing).
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}
