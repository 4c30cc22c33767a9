package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mcdev12/draftroom/internal/models"
)

// MemoryStore is an in-process ledger. The mutex makes Append a
// compare-and-append: the pick-number check, the player-uniqueness check
// and the write are one atomic step.
type MemoryStore struct {
	mu      sync.RWMutex
	picks   []models.Pick
	drafted map[uuid.UUID]bool
}

// NewMemoryStore creates an empty ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		drafted: make(map[uuid.UUID]bool),
	}
}

func (s *MemoryStore) Append(_ context.Context, pick models.Pick) (models.Pick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pick.PickNumber != len(s.picks)+1 {
		return models.Pick{}, ErrStaleAppend
	}
	if s.drafted[pick.PlayerID] {
		return models.Pick{}, ErrDuplicatePlayer
	}

	s.picks = append(s.picks, pick)
	s.drafted[pick.PlayerID] = true
	return pick, nil
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.picks), nil
}

func (s *MemoryStore) RosterFor(_ context.Context, participantIndex int) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var roster []uuid.UUID
	for _, p := range s.picks {
		if p.ParticipantIndex == participantIndex {
			roster = append(roster, p.PlayerID)
		}
	}
	return roster, nil
}

func (s *MemoryStore) IsPlayerDrafted(_ context.Context, playerID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.drafted[playerID], nil
}

func (s *MemoryStore) Snapshot(_ context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	picks := make([]models.Pick, len(s.picks))
	copy(picks, s.picks)

	drafted := make(map[uuid.UUID]bool, len(s.drafted))
	for id := range s.drafted {
		drafted[id] = true
	}

	return Snapshot{
		Picks:             picks,
		CurrentPickNumber: len(picks) + 1,
		DraftedPlayers:    drafted,
	}, nil
}
