package timer

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

type capture struct {
	ticks    chan Tick
	expiries chan int
}

func startEngine(t *testing.T, cfg Config) (*Engine, *capture, *clockwork.FakeClock) {
	t.Helper()

	fc := clockwork.NewFakeClock()
	cap := &capture{
		ticks:    make(chan Tick, 256),
		expiries: make(chan int, 16),
	}
	eng := NewEngine(cfg, fc,
		func(tick Tick) { cap.ticks <- tick },
		func(pick int) { cap.expiries <- pick },
	)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go eng.Run(ctx)

	return eng, cap, fc
}

func waitTick(t *testing.T, c *capture) Tick {
	t.Helper()
	select {
	case tick := <-c.ticks:
		return tick
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tick")
		return Tick{}
	}
}

func waitExpiry(t *testing.T, c *capture) int {
	t.Helper()
	select {
	case pick := <-c.expiries:
		return pick
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for expiry")
		return 0
	}
}

func requireNoExpiry(t *testing.T, c *capture) {
	t.Helper()
	select {
	case pick := <-c.expiries:
		t.Fatalf("unexpected expiry for pick %d", pick)
	case <-time.After(100 * time.Millisecond):
	}
}

func drainTicks(c *capture) {
	for {
		select {
		case <-c.ticks:
		default:
			return
		}
	}
}

// waitGraceTick advances one second at a time until the grace tick
// arrives, so the clock is never advanced past the start of grace.
func waitGraceTick(t *testing.T, c *capture, fc *clockwork.FakeClock, maxSeconds int) {
	t.Helper()
	for i := 0; i <= maxSeconds; i++ {
		fc.Advance(time.Second)
		deadline := time.After(500 * time.Millisecond)
	recv:
		for {
			select {
			case tick := <-c.ticks:
				if tick.IsGracePeriod {
					return
				}
			case <-deadline:
				break recv
			}
		}
	}
	t.Fatal("never reached grace period")
}

func TestEngineCountsDown(t *testing.T) {
	eng, c, fc := startEngine(t, Config{Budget: 5 * time.Second, Grace: 600 * time.Millisecond})

	eng.Reset(1)
	first := waitTick(t, c)
	require.Equal(t, 1, first.PickNumber)
	require.Equal(t, 5, first.SecondsRemaining)
	require.False(t, first.IsGracePeriod)

	fc.Advance(time.Second)
	tick := waitTick(t, c)
	require.Equal(t, 4, tick.SecondsRemaining)

	fc.Advance(time.Second)
	tick = waitTick(t, c)
	require.Equal(t, 3, tick.SecondsRemaining)
}

func TestEngineEntersGraceThenExpires(t *testing.T) {
	eng, c, fc := startEngine(t, Config{Budget: 3 * time.Second, Grace: 600 * time.Millisecond})

	eng.Reset(7)
	waitTick(t, c)

	waitGraceTick(t, c, fc, 5)

	// Grace entered, but no expiry until graceMillis elapses.
	requireNoExpiry(t, c)

	fc.Advance(600 * time.Millisecond)
	require.Equal(t, 7, waitExpiry(t, c))
}

func TestEngineResetDuringGraceCancelsAutoPick(t *testing.T) {
	eng, c, fc := startEngine(t, Config{Budget: 3 * time.Second, Grace: 600 * time.Millisecond})

	eng.Reset(1)
	waitTick(t, c)
	waitGraceTick(t, c, fc, 5)

	// A pick resolved in the last instant of grace resets the clock for
	// the next turn; the pending expiry must never fire.
	eng.Reset(2)
	tick := waitTick(t, c)
	require.Equal(t, 2, tick.PickNumber)
	require.False(t, tick.IsGracePeriod)
	require.Equal(t, 3, tick.SecondsRemaining)

	fc.Advance(600 * time.Millisecond)
	requireNoExpiry(t, c)
}

func TestEnginePauseResumePreservesRemaining(t *testing.T) {
	eng, c, fc := startEngine(t, Config{Budget: 10 * time.Second, Grace: 600 * time.Millisecond})

	eng.Reset(3)
	waitTick(t, c)

	fc.Advance(4 * time.Second)
	eng.Pause()

	st := eng.Status()
	require.True(t, st.Paused)
	require.Equal(t, 6, st.SecondsRemaining)
	require.Equal(t, 3, st.PickNumber)

	// Time passing while paused changes nothing and fires nothing.
	drainTicks(c)
	fc.Advance(time.Minute)
	requireNoExpiry(t, c)

	eng.Resume()
	tick := waitTick(t, c)
	require.Equal(t, 6, tick.SecondsRemaining)
	require.Equal(t, 3, tick.PickNumber)
}

func TestEnginePauseMidGraceResumesGrace(t *testing.T) {
	eng, c, fc := startEngine(t, Config{Budget: 2 * time.Second, Grace: time.Second})

	eng.Reset(4)
	waitTick(t, c)
	waitGraceTick(t, c, fc, 4)

	eng.Pause()
	drainTicks(c)
	fc.Advance(time.Minute)
	requireNoExpiry(t, c)

	eng.Resume()
	fc.Advance(time.Second)
	require.Equal(t, 4, waitExpiry(t, c))
}

func TestEngineStatusWhileRunning(t *testing.T) {
	eng, c, fc := startEngine(t, Config{Budget: 8 * time.Second, Grace: 600 * time.Millisecond})

	eng.Reset(2)
	waitTick(t, c)

	fc.Advance(3 * time.Second)
	waitTick(t, c)

	st := eng.Status()
	require.True(t, st.Running)
	require.False(t, st.Paused)
	require.Equal(t, 5, st.SecondsRemaining)
}
