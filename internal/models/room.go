package models

import (
	"fmt"

	"github.com/google/uuid"
)

// DraftStatus defines the status of a draft room.
type DraftStatus string

const (
	DraftStatusWaiting  DraftStatus = "WAITING"
	DraftStatusActive   DraftStatus = "ACTIVE"
	DraftStatusPaused   DraftStatus = "PAUSED"
	DraftStatusComplete DraftStatus = "COMPLETE"
)

// RoomConfig holds the immutable per-room draft parameters. It is created
// once when the room is opened and never mutated afterwards.
type RoomConfig struct {
	ID                 uuid.UUID `json:"id"`
	ParticipantCount   int       `json:"participant_count"`
	RosterSlots        []Slot    `json:"roster_slots"`
	PickBudgetSec      int       `json:"pick_budget_sec"`
	GraceMillis        int       `json:"grace_millis"`
	UrgentThresholdSec int       `json:"urgent_threshold_sec"`
}

// TotalPicks returns the number of picks in the draft.
func (c RoomConfig) TotalPicks() int {
	return c.ParticipantCount * len(c.RosterSlots)
}

// Validate checks the config invariants before a room is opened.
func (c RoomConfig) Validate() error {
	if c.ID == uuid.Nil {
		return fmt.Errorf("id is required")
	}
	if c.ParticipantCount < 2 {
		return fmt.Errorf("participant_count must be at least 2, got %d", c.ParticipantCount)
	}
	if len(c.RosterSlots) == 0 {
		return fmt.Errorf("roster_slots is required")
	}
	for i, slot := range c.RosterSlots {
		if !slot.Valid() {
			return fmt.Errorf("invalid roster slot at index %d: %s", i, slot)
		}
	}
	if c.PickBudgetSec <= 0 {
		return fmt.Errorf("pick_budget_sec must be greater than 0")
	}
	if c.GraceMillis < 0 {
		return fmt.Errorf("grace_millis cannot be negative")
	}
	return nil
}

// Participant is a seat in the draft. Index is fixed for the room's
// lifetime; rosters are always derived from the pick ledger.
type Participant struct {
	Index       int    `json:"index"`
	DisplayName string `json:"display_name"`
}
