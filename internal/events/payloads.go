// Package events defines the payloads this subsystem emits for
// presentation and telemetry collaborators, and the sinks that carry
// them. Consumers subscribe and render; they never call back into the
// resolver except through the normal pick-submission API.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/draftroom/internal/models"
)

// EventType identifies a draft event on the wire.
type EventType string

const (
	EventTypeTimerTick          EventType = "TimerTick"
	EventTypePickResolved       EventType = "PickResolved"
	EventTypeDraftStatusChanged EventType = "DraftStatusChanged"
)

// Event is the envelope every sink carries.
type Event struct {
	ID        string          `json:"id"`
	RoomID    string          `json:"room_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// TimerTickPayload is emitted at least once per second while a pick
// clock runs. The urgency threshold is presentation data: the urgent
// visual transition belongs to consumers, not to the timer engine.
type TimerTickPayload struct {
	CurrentPickNumber  int       `json:"current_pick_number"`
	ParticipantIndex   int       `json:"participant_index"`
	SecondsRemaining   int       `json:"seconds_remaining"`
	IsGracePeriod      bool      `json:"is_grace_period"`
	UrgentThresholdSec int       `json:"urgent_threshold_sec"`
	TickedAt           time.Time `json:"ticked_at"`
}

// PickResolvedPayload is emitted exactly once per committed pick.
type PickResolvedPayload struct {
	Pick       models.Pick `json:"pick"`
	PlayerName string      `json:"player_name,omitempty"`
}

// DraftStatusChangedPayload is emitted on every room status transition.
type DraftStatusChangedPayload struct {
	Status            models.DraftStatus `json:"status"`
	CurrentPickNumber int                `json:"current_pick_number"`
	ChangedAt         time.Time          `json:"changed_at"`
}

// NewEvent wraps a payload in the envelope.
func NewEvent(roomID uuid.UUID, eventType EventType, at time.Time, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.New().String(),
		RoomID:    roomID.String(),
		Type:      eventType,
		Timestamp: at,
		Data:      data,
	}, nil
}
