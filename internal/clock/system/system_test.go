// Package system exercises the wall-clock adapter.
package system

import (
	"testing"
	"time"
)

// TestClockNowMonotonic checks successive timestamps are non-decreasing.
func TestClockNowMonotonic(t *testing.T) {
	t.Parallel()

	clk := New()
	first := clk.Now()
	second := clk.Now()
	if second.Before(first) {
		t.Fatalf("expected second call %v to be >= first %v", second, first)
	}
}

// TestTickerDeliversAndStops ensures the ticker fires and can be stopped.
func TestTickerDeliversAndStops(t *testing.T) {
	t.Parallel()

	tk := New().NewTicker(5 * time.Millisecond)
	defer tk.Stop()

	select {
	case <-tk.C():
	case <-time.After(time.Second):
		t.Fatal("expected a tick within one second")
	}
}
