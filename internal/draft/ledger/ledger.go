// Package ledger is the authoritative, append-only record of resolved
// picks for one room. Append is the single serialization point for the
// whole draft: it commits a pick only when the pick number is exactly
// the next one and the player is still unclaimed, so two racing resolve
// attempts for the same slot get exactly one success.
package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mcdev12/draftroom/internal/models"
)

var (
	// ErrStaleAppend means the pick number was not the next one: the
	// turn already advanced between validation and commit.
	ErrStaleAppend = errors.New("pick number is not the next pick")

	// ErrDuplicatePlayer means the player already appears in the ledger.
	ErrDuplicatePlayer = errors.New("player already drafted")
)

// Store is the pick ledger behind a single-writer discipline. All
// implementations must make Append an atomic conditional write; callers
// never rely on external locking for correctness.
type Store interface {
	// Append commits pick iff pick.PickNumber == Len+1 and the player is
	// not already drafted; otherwise ErrStaleAppend or ErrDuplicatePlayer.
	Append(ctx context.Context, pick models.Pick) (models.Pick, error)

	// Len returns the number of committed picks.
	Len(ctx context.Context) (int, error)

	// RosterFor returns the player ids drafted by a participant, in pick
	// order.
	RosterFor(ctx context.Context, participantIndex int) ([]uuid.UUID, error)

	// IsPlayerDrafted reports whether playerID appears in the ledger.
	IsPlayerDrafted(ctx context.Context, playerID uuid.UUID) (bool, error)

	// Snapshot returns an immutable view for read-side consumers.
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Snapshot is a point-in-time copy of the ledger. It shares no memory
// with the store, so presentation readers never hold a lock.
type Snapshot struct {
	Picks             []models.Pick
	CurrentPickNumber int
	DraftedPlayers    map[uuid.UUID]bool
}

// RosterFor derives a participant's roster from the snapshot.
func (s Snapshot) RosterFor(participantIndex int) []uuid.UUID {
	var roster []uuid.UUID
	for _, p := range s.Picks {
		if p.ParticipantIndex == participantIndex {
			roster = append(roster, p.PlayerID)
		}
	}
	return roster
}
