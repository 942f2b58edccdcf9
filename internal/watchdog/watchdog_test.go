package watchdog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/runwatch/internal/clock/fake"
)

func newTestWatchdog() (*Watchdog, *fake.Clock) {
	clk := fake.New(time.Unix(1_700_000_000, 0))
	return New(Config{}, clk), clk
}

// TestStartStopIdempotent verifies repeated Start/Stop calls are no-ops.
func TestStartStopIdempotent(t *testing.T) {
	t.Parallel()

	w, clk := newTestWatchdog()
	require.Nil(t, w.C())
	require.False(t, w.Stop())

	require.True(t, w.Start())
	require.False(t, w.Start())
	require.NotNil(t, w.C())
	require.Equal(t, 1, clk.Active())

	require.True(t, w.Stop())
	require.False(t, w.Stop())
	require.Nil(t, w.C())
	require.Zero(t, clk.Active())
}

// TestCheckEdgeTriggered ensures loss and recovery are each reported once.
func TestCheckEdgeTriggered(t *testing.T) {
	t.Parallel()

	w, clk := newTestWatchdog()
	require.True(t, w.Start())

	clk.Advance(time.Second)
	require.Equal(t, None, w.Check())
	clk.Advance(time.Second)
	require.Equal(t, None, w.Check(), "exactly the timeout is still alive")

	clk.Advance(time.Second)
	require.Equal(t, Lost, w.Check())
	for i := 0; i < 5; i++ {
		clk.Advance(time.Second)
		require.Equal(t, None, w.Check())
	}
	require.False(t, w.Alive())

	w.Beat()
	clk.Advance(500 * time.Millisecond)
	require.Equal(t, Recovered, w.Check())
	require.Equal(t, None, w.Check())
	require.True(t, w.Alive())
}

// TestTickerFollowsPollInterval checks C() ticks on the configured interval.
func TestTickerFollowsPollInterval(t *testing.T) {
	t.Parallel()

	clk := fake.New(time.Unix(0, 0))
	w := New(Config{PollInterval: 250 * time.Millisecond, Timeout: time.Second}, clk)
	w.Start()

	clk.Advance(100 * time.Millisecond)
	select {
	case <-w.C():
		t.Fatal("tick before interval elapsed")
	default:
	}

	clk.Advance(150 * time.Millisecond)
	select {
	case <-w.C():
	default:
		t.Fatal("expected a tick after the interval")
	}
}

// TestTransitionString keeps log labels stable.
func TestTransitionString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "none", None.String())
	require.Equal(t, "lost", Lost.String())
	require.Equal(t, "recovered", Recovered.String())
}
