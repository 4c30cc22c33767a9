package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/mcdev12/draftroom/internal/models"
)

// Memory is an in-memory catalog backed by a fixed player list. It is
// used by tests and by single-process rooms seeded from fixtures.
type Memory struct {
	byID   map[uuid.UUID]models.Player
	ranked []models.Player
}

// NewMemory builds a catalog from players, pre-sorting by rank with the
// player id as the stable tiebreak.
func NewMemory(players []models.Player) *Memory {
	ranked := make([]models.Player, len(players))
	copy(ranked, players)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Rank != ranked[j].Rank {
			return ranked[i].Rank < ranked[j].Rank
		}
		return strings.Compare(ranked[i].ID.String(), ranked[j].ID.String()) < 0
	})

	byID := make(map[uuid.UUID]models.Player, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}

	return &Memory{byID: byID, ranked: ranked}
}

func (m *Memory) GetPlayer(_ context.Context, id uuid.UUID) (models.Player, error) {
	p, ok := m.byID[id]
	if !ok {
		return models.Player{}, ErrPlayerNotFound
	}
	return p, nil
}

func (m *Memory) ListUndrafted(_ context.Context, exclude map[uuid.UUID]bool) ([]models.Player, error) {
	out := make([]models.Player, 0, len(m.ranked))
	for _, p := range m.ranked {
		if exclude[p.ID] {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
