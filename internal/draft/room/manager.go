package room

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrRoomExists means a room with that id is already registered.
	ErrRoomExists = errors.New("room already exists")

	// ErrRoomNotFound means no room with that id is registered.
	ErrRoomNotFound = errors.New("room not found")
)

// Manager is the process-wide registry of live rooms. It only guards
// the registry map; each room synchronizes itself, so no operation in
// one room ever waits on another.
type Manager struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*Room
}

// NewManager creates an empty registry.
func NewManager() *Manager {
	return &Manager{rooms: make(map[uuid.UUID]*Room)}
}

// Add registers a room under its id.
func (m *Manager) Add(r *Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[r.ID()]; ok {
		return ErrRoomExists
	}
	m.rooms[r.ID()] = r
	return nil
}

// Get returns the room with the given id.
func (m *Manager) Get(id uuid.UUID) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// Remove unregisters the room and stops its clock.
func (m *Manager) Remove(id uuid.UUID) {
	m.mu.Lock()
	r, ok := m.rooms[id]
	delete(m.rooms, id)
	m.mu.Unlock()

	if ok {
		r.Stop()
	}
}

// List returns all registered rooms.
func (m *Manager) List() []*Room {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		out = append(out, r)
	}
	return out
}

// StopAll stops every room's clock. Used on shutdown.
func (m *Manager) StopAll() {
	for _, r := range m.List() {
		r.Stop()
	}
}
