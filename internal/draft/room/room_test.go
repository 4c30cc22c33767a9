package room

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/draftroom/internal/catalog"
	"github.com/mcdev12/draftroom/internal/draft/ledger"
	"github.com/mcdev12/draftroom/internal/draft/resolver"
	"github.com/mcdev12/draftroom/internal/events"
	"github.com/mcdev12/draftroom/internal/models"
)

type fixture struct {
	room    *Room
	store   *ledger.MemoryStore
	fc      *clockwork.FakeClock
	evs     <-chan events.Event
	players []models.Player
	cfg     models.RoomConfig
}

func newFixture(t *testing.T, participants int, slots []models.Slot) *fixture {
	t.Helper()
	return newFixtureWith(t, participants, slots, nil)
}

func newFixtureWith(t *testing.T, participants int, slots []models.Slot, wrap func(catalog.Catalog) catalog.Catalog) *fixture {
	t.Helper()

	cfg := models.RoomConfig{
		ID:                 uuid.New(),
		ParticipantCount:   participants,
		RosterSlots:        slots,
		PickBudgetSec:      10,
		GraceMillis:        600,
		UrgentThresholdSec: 9,
	}

	positions := []models.Position{
		models.PositionQB, models.PositionRB, models.PositionWR,
		models.PositionTE, models.PositionK, models.PositionDST,
	}
	var players []models.Player
	for i := 0; i < cfg.TotalPicks()*2; i++ {
		players = append(players, models.Player{
			ID:       uuid.New(),
			Name:     "Player " + string(rune('A'+i%26)),
			Position: positions[i%len(positions)],
			Rank:     i + 1,
		})
	}

	seats := make([]models.Participant, participants)
	for i := range seats {
		seats[i] = models.Participant{Index: i, DisplayName: "Seat " + string(rune('A'+i))}
	}

	store := ledger.NewMemoryStore()
	bus := events.NewBus()
	evs := bus.Subscribe()
	fc := clockwork.NewFakeClock()

	var cat catalog.Catalog = catalog.NewMemory(players)
	if wrap != nil {
		cat = wrap(cat)
	}

	r, err := New(cfg, seats, store, cat, bus, fc)
	require.NoError(t, err)

	return &fixture{room: r, store: store, fc: fc, evs: evs, players: players, cfg: cfg}
}

func waitEvent(t *testing.T, evs <-chan events.Event, match func(events.Event) bool) events.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-evs:
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for event")
			return events.Event{}
		}
	}
}

func waitEventType(t *testing.T, evs <-chan events.Event, typ events.EventType) events.Event {
	t.Helper()
	return waitEvent(t, evs, func(ev events.Event) bool { return ev.Type == typ })
}

// advanceToGrace steps the clock one second at a time until the grace
// tick shows up on the bus, so the clock never overshoots into expiry.
func advanceToGrace(t *testing.T, f *fixture) {
	t.Helper()
	for i := 0; i <= f.cfg.PickBudgetSec+1; i++ {
		f.fc.Advance(time.Second)
		deadline := time.After(300 * time.Millisecond)
	recv:
		for {
			select {
			case ev := <-f.evs:
				if ev.Type != events.EventTypeTimerTick {
					continue
				}
				var tick events.TimerTickPayload
				require.NoError(t, json.Unmarshal(ev.Data, &tick))
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

func TestRoomSnakeOrderEndToEnd(t *testing.T) {
	f := newFixture(t, 2, []models.Slot{models.SlotQB, models.SlotBench})
	ctx := context.Background()

	require.NoError(t, f.room.Start(ctx))
	require.Equal(t, models.DraftStatusActive, f.room.Status())

	// 2 seats x 2 slots: snake order is 0, 1, 1, 0.
	order := []int{0, 1, 1, 0}
	for i, seat := range order {
		pick, err := f.room.SubmitPick(ctx, seat, i+1, f.players[i].ID)
		require.NoError(t, err)
		require.Equal(t, seat, pick.ParticipantIndex)
		require.Equal(t, models.ResolvedByHuman, pick.ResolvedBy)

		if i == 0 {
			snap, err := f.room.Snapshot(ctx)
			require.NoError(t, err)
			require.Equal(t, 2, snap.CurrentPickNumber)
			require.Equal(t, 1, snap.OnClock)
		}
	}

	require.Equal(t, models.DraftStatusComplete, f.room.Status())
	waitEvent(t, f.evs, func(ev events.Event) bool {
		if ev.Type != events.EventTypeDraftStatusChanged {
			return false
		}
		var p events.DraftStatusChangedPayload
		require.NoError(t, json.Unmarshal(ev.Data, &p))
		return p.Status == models.DraftStatusComplete
	})

	snap, err := f.room.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Rosters[0], 2)
	require.Len(t, snap.Rosters[1], 2)
}

func TestRoomTimeoutAutoPicksQueuedPlayer(t *testing.T) {
	f := newFixture(t, 2, []models.Slot{models.SlotQB, models.SlotBench})
	ctx := context.Background()

	queued := f.players[5].ID
	require.NoError(t, f.room.EnqueuePlayer(ctx, 0, queued))

	require.NoError(t, f.room.Start(ctx))
	advanceToGrace(t, f)
	f.fc.Advance(600 * time.Millisecond)

	ev := waitEventType(t, f.evs, events.EventTypePickResolved)
	var p events.PickResolvedPayload
	require.NoError(t, json.Unmarshal(ev.Data, &p))
	require.Equal(t, 1, p.Pick.PickNumber)
	require.Equal(t, 0, p.Pick.ParticipantIndex)
	require.Equal(t, queued, p.Pick.PlayerID)
	require.Equal(t, models.ResolvedByAuto, p.Pick.ResolvedBy)

	n, err := f.store.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// The resolved player is gone from every queue.
	q, err := f.room.QueueFor(0)
	require.NoError(t, err)
	require.Empty(t, q)
}

func TestRoomStaleSubmitLeavesLedgerUntouched(t *testing.T) {
	f := newFixture(t, 2, []models.Slot{models.SlotQB, models.SlotBench})
	ctx := context.Background()

	require.NoError(t, f.room.Start(ctx))

	_, err := f.room.SubmitPick(ctx, 0, 2, f.players[0].ID)
	require.ErrorIs(t, err, resolver.ErrStalePick)

	n, err := f.store.Len(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestRoomRejectsOutOfTurnSubmit(t *testing.T) {
	f := newFixture(t, 2, []models.Slot{models.SlotQB, models.SlotBench})
	ctx := context.Background()

	require.NoError(t, f.room.Start(ctx))

	_, err := f.room.SubmitPick(ctx, 1, 1, f.players[0].ID)
	require.ErrorIs(t, err, resolver.ErrNotYourTurn)

	_, err = f.room.SubmitPick(ctx, 7, 1, f.players[0].ID)
	require.ErrorIs(t, err, ErrUnknownParticipant)
}

func TestRoomHumanPickDuringGraceWins(t *testing.T) {
	f := newFixture(t, 2, []models.Slot{models.SlotQB, models.SlotBench})
	ctx := context.Background()

	require.NoError(t, f.room.Start(ctx))
	advanceToGrace(t, f)

	// The pick lands inside grace; the pending expiry must not produce a
	// second resolution for the same slot.
	pick, err := f.room.SubmitPick(ctx, 0, 1, f.players[0].ID)
	require.NoError(t, err)
	require.Equal(t, models.ResolvedByHuman, pick.ResolvedBy)

	f.fc.Advance(600 * time.Millisecond)
	time.Sleep(100 * time.Millisecond)

	snap, err := f.store.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Picks, 1)
	require.Equal(t, models.ResolvedByHuman, snap.Picks[0].ResolvedBy)
}

func TestRoomPauseBlocksPicksAndExpiry(t *testing.T) {
	f := newFixture(t, 2, []models.Slot{models.SlotQB, models.SlotBench})
	ctx := context.Background()

	require.NoError(t, f.room.Start(ctx))
	require.NoError(t, f.room.Pause(ctx))
	require.Equal(t, models.DraftStatusPaused, f.room.Status())

	_, err := f.room.SubmitPick(ctx, 0, 1, f.players[0].ID)
	require.ErrorIs(t, err, resolver.ErrNotActive)

	// A frozen clock never expires, no matter how long the pause lasts.
	f.fc.Advance(time.Minute)
	time.Sleep(100 * time.Millisecond)
	n, err := f.store.Len(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	require.NoError(t, f.room.Resume(ctx))
	_, err = f.room.SubmitPick(ctx, 0, 1, f.players[0].ID)
	require.NoError(t, err)
}

func TestRoomLifecycleTransitions(t *testing.T) {
	f := newFixture(t, 2, []models.Slot{models.SlotQB, models.SlotBench})
	ctx := context.Background()

	require.ErrorIs(t, f.room.Pause(ctx), ErrInvalidTransition)
	require.ErrorIs(t, f.room.Resume(ctx), ErrInvalidTransition)

	require.NoError(t, f.room.Start(ctx))
	require.ErrorIs(t, f.room.Start(ctx), ErrInvalidTransition)
	require.ErrorIs(t, f.room.Resume(ctx), ErrInvalidTransition)
}

func TestRoomQueueValidation(t *testing.T) {
	f := newFixture(t, 2, []models.Slot{models.SlotQB, models.SlotBench})
	ctx := context.Background()

	require.ErrorIs(t, f.room.EnqueuePlayer(ctx, 9, f.players[0].ID), ErrUnknownParticipant)

	err := f.room.EnqueuePlayer(ctx, 0, uuid.New())
	require.ErrorIs(t, err, catalog.ErrPlayerNotFound)

	require.NoError(t, f.room.EnqueuePlayer(ctx, 0, f.players[3].ID))
	require.NoError(t, f.room.EnqueuePlayer(ctx, 0, f.players[4].ID))
	q, err := f.room.QueueFor(0)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{f.players[3].ID, f.players[4].ID}, q)

	require.NoError(t, f.room.DequeuePlayer(0, f.players[3].ID))
	q, err = f.room.QueueFor(0)
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{f.players[4].ID}, q)
}

// gatedCatalog holds ListUndrafted open until released, so a test can
// pin an in-flight auto-pick selection while the room changes state.
type gatedCatalog struct {
	inner   catalog.Catalog
	entered chan struct{}
	release chan struct{}
}

func (g *gatedCatalog) GetPlayer(ctx context.Context, id uuid.UUID) (models.Player, error) {
	return g.inner.GetPlayer(ctx, id)
}

func (g *gatedCatalog) ListUndrafted(ctx context.Context, exclude map[uuid.UUID]bool) ([]models.Player, error) {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.release
	return g.inner.ListUndrafted(ctx, exclude)
}

func TestRoomResumeReArmsClockAfterPauseRacesExpiry(t *testing.T) {
	gate := &gatedCatalog{entered: make(chan struct{}, 1), release: make(chan struct{})}
	f := newFixtureWith(t, 2, []models.Slot{models.SlotQB, models.SlotBench}, func(c catalog.Catalog) catalog.Catalog {
		gate.inner = c
		return gate
	})
	ctx := context.Background()

	require.NoError(t, f.room.Start(ctx))
	advanceToGrace(t, f)
	f.fc.Advance(600 * time.Millisecond)

	// The expiry hand-off is now in flight, held open inside selection.
	select {
	case <-gate.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("auto-pick selection never started")
	}

	require.NoError(t, f.room.Pause(ctx))
	close(gate.release)

	// The held selection resolves against a paused room and is discarded.
	time.Sleep(100 * time.Millisecond)
	n, err := f.store.Len(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	// Resume must restart the stalled pick's clock, not just unfreeze an
	// idle engine; the turn still has to terminate in an auto-pick.
	require.NoError(t, f.room.Resume(ctx))
	advanceToGrace(t, f)
	f.fc.Advance(600 * time.Millisecond)

	ev := waitEventType(t, f.evs, events.EventTypePickResolved)
	var p events.PickResolvedPayload
	require.NoError(t, json.Unmarshal(ev.Data, &p))
	require.Equal(t, 1, p.Pick.PickNumber)
	require.Equal(t, models.ResolvedByAuto, p.Pick.ResolvedBy)
}

// flakyCatalog fails ListUndrafted a fixed number of times before
// recovering, imitating a briefly unreachable backing store.
type flakyCatalog struct {
	inner catalog.Catalog
	mu    sync.Mutex
	fails int
}

func (c *flakyCatalog) GetPlayer(ctx context.Context, id uuid.UUID) (models.Player, error) {
	return c.inner.GetPlayer(ctx, id)
}

func (c *flakyCatalog) ListUndrafted(ctx context.Context, exclude map[uuid.UUID]bool) ([]models.Player, error) {
	c.mu.Lock()
	if c.fails > 0 {
		c.fails--
		c.mu.Unlock()
		return nil, errors.New("catalog temporarily unavailable")
	}
	c.mu.Unlock()
	return c.inner.ListUndrafted(ctx, exclude)
}

func TestRoomSelectorErrorReArmsClock(t *testing.T) {
	flaky := &flakyCatalog{fails: 1}
	f := newFixtureWith(t, 2, []models.Slot{models.SlotQB, models.SlotBench}, func(c catalog.Catalog) catalog.Catalog {
		flaky.inner = c
		return flaky
	})
	ctx := context.Background()

	require.NoError(t, f.room.Start(ctx))

	// First expiry hits the transient selection failure; the pick must
	// get a fresh clock rather than stalling forever.
	advanceToGrace(t, f)
	f.fc.Advance(600 * time.Millisecond)

	advanceToGrace(t, f)
	f.fc.Advance(600 * time.Millisecond)

	ev := waitEventType(t, f.evs, events.EventTypePickResolved)
	var p events.PickResolvedPayload
	require.NoError(t, json.Unmarshal(ev.Data, &p))
	require.Equal(t, 1, p.Pick.PickNumber)
	require.Equal(t, models.ResolvedByAuto, p.Pick.ResolvedBy)

	n, err := f.store.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestManagerRegistry(t *testing.T) {
	f := newFixture(t, 2, []models.Slot{models.SlotQB, models.SlotBench})
	m := NewManager()

	require.NoError(t, m.Add(f.room))
	require.ErrorIs(t, m.Add(f.room), ErrRoomExists)

	got, err := m.Get(f.room.ID())
	require.NoError(t, err)
	require.Same(t, f.room, got)

	_, err = m.Get(uuid.New())
	require.ErrorIs(t, err, ErrRoomNotFound)

	m.Remove(f.room.ID())
	_, err = m.Get(f.room.ID())
	require.ErrorIs(t, err, ErrRoomNotFound)
}
