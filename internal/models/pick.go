package models

import (
	"time"

	"github.com/google/uuid"
)

// ResolvedBy records which path committed a pick.
type ResolvedBy string

const (
	ResolvedByHuman ResolvedBy = "HUMAN"
	ResolvedByAuto  ResolvedBy = "AUTO"
)

// Pick is one resolved pick in a room's ledger. Picks are created exactly
// once and never updated or deleted; ParticipantIndex is always derived
// from PickNumber via the turn calculator, never set independently.
type Pick struct {
	ID               uuid.UUID  `json:"id"`
	RoomID           uuid.UUID  `json:"room_id"`
	PickNumber       int        `json:"pick_number"` // 1-indexed overall pick
	Round            int        `json:"round"`
	SlotInRound      int        `json:"slot_in_round"` // 0-indexed slot within the round
	ParticipantIndex int        `json:"participant_index"`
	PlayerID         uuid.UUID  `json:"player_id"`
	ResolvedBy       ResolvedBy `json:"resolved_by"`
	ResolvedAt       time.Time  `json:"resolved_at"`
}
