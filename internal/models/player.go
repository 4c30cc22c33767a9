package models

import (
	"github.com/google/uuid"
)

// Position defines a player's position.
type Position string

const (
	PositionQB  Position = "QB"
	PositionRB  Position = "RB"
	PositionWR  Position = "WR"
	PositionTE  Position = "TE"
	PositionK   Position = "K"
	PositionDST Position = "DST"
)

// Player is a read-only entity supplied by the external catalog. Rank,
// ADP and projections are never computed or mutated here.
type Player struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Team            string    `json:"team"`
	Position        Position  `json:"position"`
	Rank            int       `json:"rank"`
	ADP             float64   `json:"adp,omitempty"`
	ProjectedPoints float64   `json:"projected_points,omitempty"`
}
