// Package catalog exposes the read-only player catalog this subsystem
// consumes. Rank, ADP and projections are supplied by an external data
// pipeline; nothing here computes or mutates them.
package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mcdev12/draftroom/internal/models"
)

// ErrPlayerNotFound is returned for ids the catalog does not know.
var ErrPlayerNotFound = errors.New("player not found in catalog")

// Catalog defines what the draft engine needs from the player catalog.
type Catalog interface {
	// GetPlayer returns the player for id, or ErrPlayerNotFound.
	GetPlayer(ctx context.Context, id uuid.UUID) (models.Player, error)

	// ListUndrafted returns all players not in exclude, sorted by rank
	// ascending with ties broken by player id. The ordering is stable
	// across calls so auto-pick stays deterministic.
	ListUndrafted(ctx context.Context, exclude map[uuid.UUID]bool) ([]models.Player, error)
}
