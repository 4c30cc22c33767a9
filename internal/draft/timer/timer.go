// Package timer runs the per-room pick clock: a state machine
// Idle -> Running -> Grace -> expiry, decoupled from any rendering and
// driven by a single authoritative clock per room. Presentation layers
// are pure subscribers of its ticks.
package timer

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

type phase int

const (
	phaseIdle phase = iota
	phaseRunning
	phaseGrace
	phasePaused
)

// Tick is one emission of the clock, at least once per second while
// Running or Grace.
type Tick struct {
	PickNumber       int
	SecondsRemaining int
	IsGracePeriod    bool
	TickedAt         time.Time
}

// Status is a point-in-time view of the clock for snapshots.
type Status struct {
	PickNumber       int
	SecondsRemaining int
	IsGracePeriod    bool
	Paused           bool
	Running          bool
}

// Config holds the timing parameters for one room.
type Config struct {
	Budget       time.Duration // per-pick budget
	Grace        time.Duration // extra window after the budget hits zero
	TickInterval time.Duration // defaults to one second
}

type ctrlKind int

const (
	ctrlReset ctrlKind = iota
	ctrlPause
	ctrlResume
	ctrlStop
)

type ctrl struct {
	kind ctrlKind
	pick int
}

// Engine is one room's pick clock. It never blocks on pick resolution:
// expiry hands the pick number to the expire callback on its own
// goroutine, and a resolve that lands in the meantime simply wins the
// append race.
type Engine struct {
	clock    clockwork.Clock
	cfg      Config
	onTick   func(Tick)
	onExpire func(pickNumber int) // budget + grace fully elapsed

	ctrlCh chan ctrl
	done   chan struct{}

	mu sync.Mutex
	st engineState
}

type engineState struct {
	ph       phase
	pick     int
	deadline time.Time
	frozen   time.Duration
}

// NewEngine creates a stopped engine; Run starts its loop.
func NewEngine(cfg Config, clock clockwork.Clock, onTick func(Tick), onExpire func(pickNumber int)) *Engine {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	return &Engine{
		clock:    clock,
		cfg:      cfg,
		onTick:   onTick,
		onExpire: onExpire,
		ctrlCh:   make(chan ctrl),
		done:     make(chan struct{}),
	}
}

// Reset starts (or restarts) the full budget for pickNumber, cancelling
// any pending grace or expiry for the previous pick.
func (e *Engine) Reset(pickNumber int) { e.send(ctrl{kind: ctrlReset, pick: pickNumber}) }

// Pause freezes the remaining time, including mid-grace.
func (e *Engine) Pause() { e.send(ctrl{kind: ctrlPause}) }

// Resume continues from the frozen remaining time.
func (e *Engine) Resume() { e.send(ctrl{kind: ctrlResume}) }

// Stop shuts the engine down; it cannot be restarted.
func (e *Engine) Stop() { e.send(ctrl{kind: ctrlStop}) }

func (e *Engine) send(c ctrl) {
	select {
	case e.ctrlCh <- c:
	case <-e.done:
	}
}

// Status reports the clock's current state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	st := e.st
	e.mu.Unlock()

	out := Status{PickNumber: st.pick}
	switch st.ph {
	case phaseRunning, phaseGrace:
		out.Running = true
		out.IsGracePeriod = st.ph == phaseGrace
		out.SecondsRemaining = secondsLeft(st.deadline.Sub(e.clock.Now()))
		if st.ph == phaseGrace {
			out.SecondsRemaining = 0
		}
	case phasePaused:
		out.Paused = true
		out.SecondsRemaining = secondsLeft(st.frozen)
	}
	return out
}

// Run drives the clock until ctx is cancelled or Stop is called.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.done)

	ticker := e.clock.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	phaseTimer := e.clock.NewTimer(time.Hour)
	stopAndDrainTimer(phaseTimer)
	defer phaseTimer.Stop()

	var (
		ph          = phaseIdle
		pick        int
		deadline    time.Time
		frozen      time.Duration
		frozenGrace bool
	)

	mirror := func() {
		e.mu.Lock()
		e.st = engineState{ph: ph, pick: pick, deadline: deadline, frozen: frozen}
		e.mu.Unlock()
	}

	emit := func(now time.Time) {
		t := Tick{
			PickNumber:    pick,
			IsGracePeriod: ph == phaseGrace,
			TickedAt:      now,
		}
		if ph == phaseRunning {
			t.SecondsRemaining = secondsLeft(deadline.Sub(now))
		}
		if e.onTick != nil {
			e.onTick(t)
		}
	}

	for {
		select {
		case <-ctx.Done():
			mirror()
			return

		case c := <-e.ctrlCh:
			switch c.kind {
			case ctrlReset:
				pick = c.pick
				ph = phaseRunning
				frozenGrace = false
				deadline = e.clock.Now().Add(e.cfg.Budget)
				stopAndDrainTimer(phaseTimer)
				phaseTimer.Reset(e.cfg.Budget)
				mirror()
				emit(e.clock.Now())

			case ctrlPause:
				if ph == phaseRunning || ph == phaseGrace {
					frozen = deadline.Sub(e.clock.Now())
					if frozen < 0 {
						frozen = 0
					}
					frozenGrace = ph == phaseGrace
					ph = phasePaused
					stopAndDrainTimer(phaseTimer)
					mirror()
					log.Debug().Int("pick_number", pick).Dur("remaining", frozen).Msg("pick clock paused")
				}

			case ctrlResume:
				if ph == phasePaused {
					deadline = e.clock.Now().Add(frozen)
					phaseTimer.Reset(frozen)
					ph = phaseRunning
					if frozenGrace {
						ph = phaseGrace
					}
					mirror()
					emit(e.clock.Now())
					log.Debug().Int("pick_number", pick).Dur("remaining", frozen).Msg("pick clock resumed")
				}

			case ctrlStop:
				ph = phaseIdle
				stopAndDrainTimer(phaseTimer)
				mirror()
				return
			}

		case now := <-ticker.Chan():
			if ph == phaseRunning || ph == phaseGrace {
				emit(now)
			}

		case <-phaseTimer.Chan():
			switch ph {
			case phaseRunning:
				// Budget elapsed: enter grace exactly once for this pick.
				ph = phaseGrace
				deadline = e.clock.Now().Add(e.cfg.Grace)
				phaseTimer.Reset(e.cfg.Grace)
				mirror()
				emit(e.clock.Now())

			case phaseGrace:
				// Grace elapsed with no resolve; hand off for auto-pick.
				// The callback runs on its own goroutine so a resolve
				// racing back into Reset never deadlocks the loop.
				ph = phaseIdle
				mirror()
				expired := pick
				log.Info().Int("pick_number", expired).Msg("pick clock expired, requesting auto-pick")
				if e.onExpire != nil {
					go e.onExpire(expired)
				}
			}
		}
	}
}

func secondsLeft(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

func stopAndDrainTimer(t clockwork.Timer) {
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
}
