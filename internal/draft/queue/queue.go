// Package queue holds each participant's ordered list of preferred next
// picks. Queues are advisory: the auto-pick selector and presentation
// layers read them, but a queue never resolves a pick by itself.
package queue

import (
	"sync"

	"github.com/google/uuid"
)

// Manager owns all per-participant queues for one room. Mutations are
// per-participant and need no cross-participant coordination; the mutex
// only guards the map itself.
type Manager struct {
	mu     sync.RWMutex
	queues map[int][]uuid.UUID
}

// NewManager creates an empty queue set.
func NewManager() *Manager {
	return &Manager{
		queues: make(map[int][]uuid.UUID),
	}
}

// Enqueue appends playerID to the participant's queue. A player already
// queued by that participant is a no-op so replayed requests are safe.
func (m *Manager) Enqueue(participantIndex int, playerID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.queues[participantIndex] {
		if id == playerID {
			return
		}
	}
	m.queues[participantIndex] = append(m.queues[participantIndex], playerID)
}

// Dequeue removes playerID from the participant's queue, preserving the
// order of the remaining entries.
func (m *Manager) Dequeue(participantIndex int, playerID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[participantIndex] = remove(m.queues[participantIndex], playerID)
}

// ListFor returns a copy of the participant's queue in order.
func (m *Manager) ListFor(participantIndex int) []uuid.UUID {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := m.queues[participantIndex]
	out := make([]uuid.UUID, len(q))
	copy(out, q)
	return out
}

// RemovePlayer prunes playerID from every queue. Called eagerly on each
// PickResolved so a stale entry is never offered to the auto-pick
// selector as available.
func (m *Manager) RemovePlayer(playerID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for idx, q := range m.queues {
		m.queues[idx] = remove(q, playerID)
	}
}

func remove(q []uuid.UUID, playerID uuid.UUID) []uuid.UUID {
	out := q[:0]
	for _, id := range q {
		if id != playerID {
			out = append(out, id)
		}
	}
	return out
}
