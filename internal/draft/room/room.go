// Package room is the aggregate behind one live draft: it owns the
// status lifecycle, wires the pick clock to the resolver, and emits the
// events presentation layers consume. All cross-component coordination
// for a room happens here; rooms never touch each other's state.
package room

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/internal/catalog"
	"github.com/mcdev12/draftroom/internal/draft/autopick"
	"github.com/mcdev12/draftroom/internal/draft/ledger"
	"github.com/mcdev12/draftroom/internal/draft/queue"
	"github.com/mcdev12/draftroom/internal/draft/resolver"
	"github.com/mcdev12/draftroom/internal/draft/timer"
	"github.com/mcdev12/draftroom/internal/draft/turn"
	"github.com/mcdev12/draftroom/internal/events"
	"github.com/mcdev12/draftroom/internal/models"
)

var (
	// ErrInvalidTransition means the requested lifecycle change is not
	// legal from the room's current status.
	ErrInvalidTransition = errors.New("invalid draft status transition")

	// ErrUnknownParticipant means the participant index is out of range
	// for this room.
	ErrUnknownParticipant = errors.New("unknown participant index")
)

// autoPickAttempts bounds the reselect loop after a timeout. Each retry
// only happens when the drafted set changed underneath the selector, so
// the loop terminates long before this in practice.
const autoPickAttempts = 8

// Room runs one draft end to end.
type Room struct {
	cfg          models.RoomConfig
	participants []models.Participant

	store    ledger.Store
	catalog  catalog.Catalog
	queues   *queue.Manager
	selector *autopick.Selector
	resolver *resolver.Resolver
	engine   *timer.Engine
	sink     events.Sink
	clock    clockwork.Clock

	mu     sync.RWMutex
	status models.DraftStatus

	runCtx context.Context
}

// Snapshot is the full read-side view of a room, assembled on demand so
// late joiners and reconnecting clients can resync in one request.
type Snapshot struct {
	Config            models.RoomConfig    `json:"config"`
	Participants      []models.Participant `json:"participants"`
	Status            models.DraftStatus   `json:"status"`
	Picks             []models.Pick        `json:"picks"`
	CurrentPickNumber int                  `json:"current_pick_number"`
	OnClock           int                  `json:"on_clock"`
	SecondsRemaining  int                  `json:"seconds_remaining"`
	IsGracePeriod     bool                 `json:"is_grace_period"`
	Rosters           map[int][]uuid.UUID  `json:"rosters"`
}

// New assembles a room over its ledger and catalog. The room starts in
// WAITING; Start moves it to ACTIVE and arms the first pick clock.
func New(cfg models.RoomConfig, participants []models.Participant, store ledger.Store, cat catalog.Catalog, sink events.Sink, clock clockwork.Clock) (*Room, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid room config: %w", err)
	}
	if len(participants) != cfg.ParticipantCount {
		return nil, fmt.Errorf("expected %d participants, got %d", cfg.ParticipantCount, len(participants))
	}
	if sink == nil {
		sink = events.NopSink{}
	}

	r := &Room{
		cfg:          cfg,
		participants: participants,
		store:        store,
		catalog:      cat,
		queues:       queue.NewManager(),
		sink:         sink,
		clock:        clock,
		status:       models.DraftStatusWaiting,
	}
	r.selector = autopick.NewSelector(cfg, store, cat, r.queues)
	r.resolver = resolver.New(cfg, store, cat, r.Status, clock)
	r.engine = timer.NewEngine(timer.Config{
		Budget: time.Duration(cfg.PickBudgetSec) * time.Second,
		Grace:  time.Duration(cfg.GraceMillis) * time.Millisecond,
	}, clock, r.onTick, r.onExpire)

	return r, nil
}

// ID returns the room id.
func (r *Room) ID() uuid.UUID { return r.cfg.ID }

// Config returns the immutable room config.
func (r *Room) Config() models.RoomConfig { return r.cfg }

// Status returns the room's current draft status.
func (r *Room) Status() models.DraftStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Start moves the room from WAITING to ACTIVE and arms the clock for
// the next uncommitted pick. A room whose ledger is already full goes
// straight to COMPLETE, so restarting over a durable ledger is safe.
func (r *Room) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.status != models.DraftStatusWaiting {
		r.mu.Unlock()
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidTransition, r.status)
	}
	r.status = models.DraftStatusActive
	r.runCtx = ctx
	r.mu.Unlock()

	committed, err := r.store.Len(ctx)
	if err != nil {
		return fmt.Errorf("failed to read ledger length: %w", err)
	}

	go r.engine.Run(ctx)

	if committed >= r.cfg.TotalPicks() {
		r.complete(ctx, committed)
		return nil
	}

	next := committed + 1
	r.emitStatusChanged(ctx, models.DraftStatusActive, next)
	r.engine.Reset(next)

	log.Info().
		Str("room_id", r.cfg.ID.String()).
		Int("pick_number", next).
		Int("total_picks", r.cfg.TotalPicks()).
		Msg("draft started")
	return nil
}

// Pause freezes the pick clock with its remaining time intact.
func (r *Room) Pause(ctx context.Context) error {
	r.mu.Lock()
	if r.status != models.DraftStatusActive {
		r.mu.Unlock()
		return fmt.Errorf("%w: cannot pause from %s", ErrInvalidTransition, r.status)
	}
	r.status = models.DraftStatusPaused
	r.mu.Unlock()

	r.engine.Pause()

	committed, _ := r.store.Len(ctx)
	r.emitStatusChanged(ctx, models.DraftStatusPaused, committed+1)
	return nil
}

// Resume continues a paused room from the frozen remaining time. A
// pause that raced the expiry hand-off leaves the clock idle with the
// pick uncommitted; that pick gets a fresh budget here instead of a
// dead clock.
func (r *Room) Resume(ctx context.Context) error {
	committed, err := r.store.Len(ctx)
	if err != nil {
		return fmt.Errorf("failed to read ledger length: %w", err)
	}
	next := committed + 1

	r.mu.Lock()
	if r.status != models.DraftStatusPaused {
		r.mu.Unlock()
		return fmt.Errorf("%w: cannot resume from %s", ErrInvalidTransition, r.status)
	}
	r.status = models.DraftStatusActive
	r.mu.Unlock()

	if st := r.engine.Status(); st.Paused {
		r.engine.Resume()
	} else if next <= r.cfg.TotalPicks() {
		r.engine.Reset(next)
	}

	r.emitStatusChanged(ctx, models.DraftStatusActive, next)
	return nil
}

// SubmitPick resolves a human pick submission and, on success, advances
// the draft to the next turn.
func (r *Room) SubmitPick(ctx context.Context, participantIndex, pickNumber int, playerID uuid.UUID) (models.Pick, error) {
	if participantIndex < 0 || participantIndex >= r.cfg.ParticipantCount {
		return models.Pick{}, ErrUnknownParticipant
	}

	pick, err := r.resolver.Resolve(ctx, resolver.Request{
		PickNumber:       pickNumber,
		PlayerID:         playerID,
		ParticipantIndex: participantIndex,
	})
	if err != nil {
		return models.Pick{}, err
	}

	r.advance(ctx, pick)
	return pick, nil
}

// EnqueuePlayer adds a player to a participant's queue.
func (r *Room) EnqueuePlayer(ctx context.Context, participantIndex int, playerID uuid.UUID) error {
	if participantIndex < 0 || participantIndex >= r.cfg.ParticipantCount {
		return ErrUnknownParticipant
	}
	if _, err := r.catalog.GetPlayer(ctx, playerID); err != nil {
		return fmt.Errorf("failed to look up player: %w", err)
	}
	r.queues.Enqueue(participantIndex, playerID)
	return nil
}

// DequeuePlayer removes a player from a participant's queue.
func (r *Room) DequeuePlayer(participantIndex int, playerID uuid.UUID) error {
	if participantIndex < 0 || participantIndex >= r.cfg.ParticipantCount {
		return ErrUnknownParticipant
	}
	r.queues.Dequeue(participantIndex, playerID)
	return nil
}

// QueueFor returns a participant's queue in order.
func (r *Room) QueueFor(participantIndex int) ([]uuid.UUID, error) {
	if participantIndex < 0 || participantIndex >= r.cfg.ParticipantCount {
		return nil, ErrUnknownParticipant
	}
	return r.queues.ListFor(participantIndex), nil
}

// Snapshot assembles the room's full read-side state.
func (r *Room) Snapshot(ctx context.Context) (Snapshot, error) {
	ls, err := r.store.Snapshot(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to snapshot ledger: %w", err)
	}

	snap := Snapshot{
		Config:            r.cfg,
		Participants:      r.participants,
		Status:            r.Status(),
		Picks:             ls.Picks,
		CurrentPickNumber: ls.CurrentPickNumber,
		Rosters:           make(map[int][]uuid.UUID, r.cfg.ParticipantCount),
	}
	for i := 0; i < r.cfg.ParticipantCount; i++ {
		snap.Rosters[i] = ls.RosterFor(i)
	}

	if snap.Status == models.DraftStatusActive || snap.Status == models.DraftStatusPaused {
		snap.OnClock = turn.For(ls.CurrentPickNumber, r.cfg.ParticipantCount).ParticipantIndex
		ts := r.engine.Status()
		snap.SecondsRemaining = ts.SecondsRemaining
		snap.IsGracePeriod = ts.IsGracePeriod
	}
	return snap, nil
}

// Stop shuts the room's clock down without changing status. Used on
// process shutdown; a durable ledger lets the draft resume elsewhere.
func (r *Room) Stop() {
	r.mu.RLock()
	started := r.runCtx != nil
	r.mu.RUnlock()

	// The engine loop only exists once Start ran.
	if started {
		r.engine.Stop()
	}
}

// advance runs the post-commit side of a resolved pick: prune queues,
// announce the pick, then either finish the draft or arm the next turn.
func (r *Room) advance(ctx context.Context, pick models.Pick) {
	r.queues.RemovePlayer(pick.PlayerID)

	payload := events.PickResolvedPayload{Pick: pick}
	if p, err := r.catalog.GetPlayer(ctx, pick.PlayerID); err == nil {
		payload.PlayerName = p.Name
	}
	r.emit(ctx, events.EventTypePickResolved, payload)

	if pick.PickNumber >= r.cfg.TotalPicks() {
		r.complete(ctx, pick.PickNumber)
		return
	}
	r.engine.Reset(pick.PickNumber + 1)
}

func (r *Room) complete(ctx context.Context, lastPick int) {
	r.mu.Lock()
	r.status = models.DraftStatusComplete
	r.mu.Unlock()

	r.engine.Stop()
	r.emitStatusChanged(ctx, models.DraftStatusComplete, lastPick)

	log.Info().
		Str("room_id", r.cfg.ID.String()).
		Int("total_picks", lastPick).
		Msg("draft complete")
}

// onExpire is the clock's expiry callback: budget and grace elapsed with
// no resolve, so draft on the participant's behalf. A human pick that
// lands between expiry and the auto append simply wins the race and the
// stale auto attempt is discarded.
func (r *Room) onExpire(pickNumber int) {
	ctx := r.runCtx
	if ctx == nil {
		return
	}

	participant := turn.For(pickNumber, r.cfg.ParticipantCount).ParticipantIndex

	for attempt := 0; attempt < autoPickAttempts; attempt++ {
		playerID, err := r.selector.SelectFor(ctx, participant)
		if err != nil {
			if errors.Is(err, autopick.ErrPoolExhausted) {
				// Unreachable with a correct totalPicks bound. Freeze the
				// room so an operator sees it instead of looping.
				log.Error().
					Str("room_id", r.cfg.ID.String()).
					Int("pick_number", pickNumber).
					Msg("auto-pick found no undrafted players; pausing room")
				if perr := r.Pause(ctx); perr != nil {
					log.Error().Err(perr).Str("room_id", r.cfg.ID.String()).Msg("failed to pause wedged room")
				}
				return
			}
			log.Error().Err(err).
				Str("room_id", r.cfg.ID.String()).
				Int("pick_number", pickNumber).
				Msg("auto-pick selection failed, granting a fresh clock")
			r.rearm(pickNumber)
			return
		}

		pick, err := r.resolver.Resolve(ctx, resolver.Request{
			PickNumber: pickNumber,
			PlayerID:   playerID,
			Auto:       true,
		})
		switch {
		case err == nil:
			r.advance(ctx, pick)
			return
		case errors.Is(err, resolver.ErrPlayerUnavailable), errors.Is(err, resolver.ErrDuplicatePlayer):
			// Lost the player between select and append; pick again.
			continue
		case errors.Is(err, resolver.ErrStalePick), errors.Is(err, resolver.ErrNotActive):
			// A human resolve or a pause beat us; nothing to do.
			return
		default:
			log.Error().Err(err).
				Str("room_id", r.cfg.ID.String()).
				Int("pick_number", pickNumber).
				Msg("auto-pick resolve failed, granting a fresh clock")
			r.rearm(pickNumber)
			return
		}
	}

	log.Error().
		Str("room_id", r.cfg.ID.String()).
		Int("pick_number", pickNumber).
		Msg("auto-pick gave up after repeated selection races, granting a fresh clock")
	r.rearm(pickNumber)
}

// rearm restarts the clock for a pick whose auto-resolution failed, so
// a transient fault never leaves the turn stuck. A room that went
// inactive in the meantime skips it; Resume re-arms on its own.
func (r *Room) rearm(pickNumber int) {
	if r.Status() != models.DraftStatusActive {
		return
	}
	r.engine.Reset(pickNumber)
}

// onTick forwards clock ticks to subscribers with the turn and urgency
// context presentation layers need.
func (r *Room) onTick(tick timer.Tick) {
	ctx := r.runCtx
	if ctx == nil {
		return
	}
	r.emit(ctx, events.EventTypeTimerTick, events.TimerTickPayload{
		CurrentPickNumber:  tick.PickNumber,
		ParticipantIndex:   turn.For(tick.PickNumber, r.cfg.ParticipantCount).ParticipantIndex,
		SecondsRemaining:   tick.SecondsRemaining,
		IsGracePeriod:      tick.IsGracePeriod,
		UrgentThresholdSec: r.cfg.UrgentThresholdSec,
		TickedAt:           tick.TickedAt,
	})
}

func (r *Room) emitStatusChanged(ctx context.Context, status models.DraftStatus, currentPick int) {
	r.emit(ctx, events.EventTypeDraftStatusChanged, events.DraftStatusChangedPayload{
		Status:            status,
		CurrentPickNumber: currentPick,
		ChangedAt:         r.clock.Now().UTC(),
	})
}

func (r *Room) emit(ctx context.Context, eventType events.EventType, payload any) {
	ev, err := events.NewEvent(r.cfg.ID, eventType, r.clock.Now().UTC(), payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to build event")
		return
	}
	if err := r.sink.Publish(ctx, ev); err != nil {
		log.Warn().Err(err).Str("event_type", string(eventType)).Msg("failed to publish event")
	}
}
