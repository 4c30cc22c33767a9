// Package resolver commits picks against the ledger. It is the sole
// entry point for both human submissions and auto-picks, so no path can
// bypass the validation chain or the ledger's append contract.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/internal/catalog"
	"github.com/mcdev12/draftroom/internal/draft/ledger"
	"github.com/mcdev12/draftroom/internal/draft/turn"
	"github.com/mcdev12/draftroom/internal/models"
)

// StatusFunc reports the room's current draft status.
type StatusFunc func() models.DraftStatus

// Request is one attempt to resolve a pick. Auto requests skip the
// turn-ownership check; everything else is validated identically.
type Request struct {
	PickNumber       int
	PlayerID         uuid.UUID
	ParticipantIndex int
	Auto             bool
}

// Resolver validates and commits pick requests for one room.
type Resolver struct {
	cfg     models.RoomConfig
	store   ledger.Store
	catalog catalog.Catalog
	status  StatusFunc
	clock   clockwork.Clock
}

// New creates a resolver over the room's ledger and catalog.
func New(cfg models.RoomConfig, store ledger.Store, cat catalog.Catalog, status StatusFunc, clock clockwork.Clock) *Resolver {
	return &Resolver{
		cfg:     cfg,
		store:   store,
		catalog: cat,
		status:  status,
		clock:   clock,
	}
}

// Resolve runs the validation chain in order (first failure wins) and
// commits via the ledger's conditional append. Steps 1-4 are
// check-then-act; atomicity comes entirely from the append, so a request
// that loses the race between validation and commit gets ErrStalePick
// and must not be retried without re-reading state.
func (r *Resolver) Resolve(ctx context.Context, req Request) (models.Pick, error) {
	if r.status() != models.DraftStatusActive {
		return models.Pick{}, ErrNotActive
	}

	committed, err := r.store.Len(ctx)
	if err != nil {
		return models.Pick{}, fmt.Errorf("failed to read ledger length: %w", err)
	}
	if req.PickNumber != committed+1 {
		return models.Pick{}, ErrStalePick
	}

	tr := turn.For(req.PickNumber, r.cfg.ParticipantCount)
	if !req.Auto && req.ParticipantIndex != tr.ParticipantIndex {
		return models.Pick{}, ErrNotYourTurn
	}

	if _, err := r.catalog.GetPlayer(ctx, req.PlayerID); err != nil {
		if errors.Is(err, catalog.ErrPlayerNotFound) {
			return models.Pick{}, ErrPlayerUnavailable
		}
		return models.Pick{}, fmt.Errorf("failed to look up player: %w", err)
	}
	drafted, err := r.store.IsPlayerDrafted(ctx, req.PlayerID)
	if err != nil {
		return models.Pick{}, fmt.Errorf("failed to check drafted player: %w", err)
	}
	if drafted {
		return models.Pick{}, ErrPlayerUnavailable
	}

	resolvedBy := models.ResolvedByHuman
	if req.Auto {
		resolvedBy = models.ResolvedByAuto
	}

	pick := models.Pick{
		ID:               uuid.New(),
		RoomID:           r.cfg.ID,
		PickNumber:       req.PickNumber,
		Round:            tr.Round,
		SlotInRound:      tr.SlotInRound,
		ParticipantIndex: tr.ParticipantIndex,
		PlayerID:         req.PlayerID,
		ResolvedBy:       resolvedBy,
		ResolvedAt:       r.clock.Now().UTC(),
	}

	pick, err = r.store.Append(ctx, pick)
	if err != nil {
		if errors.Is(err, ledger.ErrStaleAppend) {
			return models.Pick{}, ErrStalePick
		}
		if errors.Is(err, ledger.ErrDuplicatePlayer) {
			return models.Pick{}, ErrDuplicatePlayer
		}
		return models.Pick{}, fmt.Errorf("failed to append pick: %w", err)
	}

	log.Info().
		Str("room_id", r.cfg.ID.String()).
		Int("pick_number", pick.PickNumber).
		Int("participant", pick.ParticipantIndex).
		Str("player_id", pick.PlayerID.String()).
		Str("resolved_by", string(pick.ResolvedBy)).
		Msg("pick resolved")

	return pick, nil
}
