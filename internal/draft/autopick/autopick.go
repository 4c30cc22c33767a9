// Package autopick chooses a player when a participant fails to act
// within budget plus grace. Selection is deterministic: identical ledger
// and queue state always produces the same player, so outcomes are
// reproducible under test and across replicas.
package autopick

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/internal/catalog"
	"github.com/mcdev12/draftroom/internal/draft/ledger"
	"github.com/mcdev12/draftroom/internal/models"
)

// ErrPoolExhausted means no undrafted player remains. Given a correct
// totalPicks bound this is unreachable; it is fatal to the room, not a
// retryable pick error.
var ErrPoolExhausted = errors.New("undrafted player pool is exhausted")

// Queues is what the selector needs from the queue manager.
type Queues interface {
	ListFor(participantIndex int) []uuid.UUID
}

// Selector picks for a participant who ran out of time.
type Selector struct {
	cfg     models.RoomConfig
	store   ledger.Store
	catalog catalog.Catalog
	queues  Queues
}

// NewSelector creates a selector over the room's ledger, catalog and
// queues.
func NewSelector(cfg models.RoomConfig, store ledger.Store, cat catalog.Catalog, queues Queues) *Selector {
	return &Selector{
		cfg:     cfg,
		store:   store,
		catalog: cat,
		queues:  queues,
	}
}

// SelectFor returns the player to draft for participantIndex:
//
//  1. the first queue entry naming an undrafted player, else
//  2. the best-ranked undrafted player at a position still needed for
//     the participant's unfilled required (non-bench) slots, else
//  3. the best-ranked undrafted player overall.
//
// Rank ties break on player id via the catalog's stable ordering.
func (s *Selector) SelectFor(ctx context.Context, participantIndex int) (uuid.UUID, error) {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to snapshot ledger: %w", err)
	}

	for _, queued := range s.queues.ListFor(participantIndex) {
		if !snap.DraftedPlayers[queued] {
			log.Debug().
				Int("participant", participantIndex).
				Str("player_id", queued.String()).
				Msg("auto-pick taking queued player")
			return queued, nil
		}
	}

	pool, err := s.catalog.ListUndrafted(ctx, snap.DraftedPlayers)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to list undrafted players: %w", err)
	}
	if len(pool) == 0 {
		return uuid.Nil, ErrPoolExhausted
	}

	needs, err := s.openRequiredSlots(ctx, snap.RosterFor(participantIndex))
	if err != nil {
		return uuid.Nil, err
	}

	if len(needs) > 0 {
		for _, p := range pool {
			if slotAccepts(needs, p.Position) {
				return p.ID, nil
			}
		}
		// Nothing left at a needed position; fall through to best available.
	}

	return pool[0].ID, nil
}

// openRequiredSlots returns the required roster slots the participant
// has not yet filled. Drafted players fill slots greedily in pick order,
// each taking the first open required slot that accepts its position and
// overflowing to the bench otherwise.
func (s *Selector) openRequiredSlots(ctx context.Context, roster []uuid.UUID) ([]models.Slot, error) {
	var open []models.Slot
	for _, slot := range s.cfg.RosterSlots {
		if slot.Required() {
			open = append(open, slot)
		}
	}

	for _, playerID := range roster {
		p, err := s.catalog.GetPlayer(ctx, playerID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up rostered player %s: %w", playerID, err)
		}
		for i, slot := range open {
			if slot.Accepts(p.Position) {
				open = append(open[:i], open[i+1:]...)
				break
			}
		}
	}

	return open, nil
}

func slotAccepts(slots []models.Slot, pos models.Position) bool {
	for _, slot := range slots {
		if slot.Accepts(pos) {
			return true
		}
	}
	return false
}
