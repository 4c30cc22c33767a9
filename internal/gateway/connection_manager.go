// Package gateway exposes draft rooms over HTTP and fans room events out
// to websocket subscribers. It is a pure consumer of the room API: every
// mutation goes through the same submission path, so a websocket client
// can never bypass pick validation.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/internal/events"
)

// ConnectionConfig holds websocket tuning for the gateway.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns the default websocket configuration.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development; restrict in production.
			return true
		},
	}
}

type broadcast struct {
	roomID uuid.UUID
	data   []byte
}

// ConnectionManager owns all websocket connections, pooled per room.
// Clients are strictly read-side: the gateway writes events to them and
// ignores everything but control frames coming back.
type ConnectionManager struct {
	mu    sync.RWMutex
	pools map[uuid.UUID]map[*connection]bool

	upgrader    websocket.Upgrader
	config      ConnectionConfig
	broadcastCh chan broadcast
}

type connection struct {
	id     string
	roomID uuid.UUID
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	mgr    *ConnectionManager
}

// NewConnectionManager creates a manager with no connections.
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		pools: make(map[uuid.UUID]map[*connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcast, 1000),
	}
}

// Run processes broadcasts until ctx is cancelled.
func (cm *ConnectionManager) Run(ctx context.Context) {
	log.Info().Msg("connection manager started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			return
		case msg := <-cm.broadcastCh:
			cm.deliver(msg)
		}
	}
}

// Bridge forwards every event from the bus to the room's websocket pool.
func (cm *ConnectionManager) Bridge(ctx context.Context, bus *events.Bus) {
	sub := bus.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sub:
			cm.Broadcast(ev)
		}
	}
}

// Broadcast queues an event for delivery to the room's connections. A
// full broadcast queue drops the event rather than stalling the caller.
func (cm *ConnectionManager) Broadcast(ev events.Event) {
	roomID, err := uuid.Parse(ev.RoomID)
	if err != nil {
		log.Error().Err(err).Str("room_id", ev.RoomID).Msg("event with unparseable room id")
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	select {
	case cm.broadcastCh <- broadcast{roomID: roomID, data: data}:
	default:
		log.Warn().Str("room_id", ev.RoomID).Msg("broadcast queue full, dropping event")
	}
}

// Upgrade converts the request into a websocket subscription to roomID.
func (cm *ConnectionManager) Upgrade(w http.ResponseWriter, r *http.Request, roomID uuid.UUID) error {
	ws, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &connection{
		id:     uuid.New().String(),
		roomID: roomID,
		conn:   ws,
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
		mgr:    cm,
	}
	cm.register(c)

	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.id).
		Str("room_id", roomID.String()).
		Msg("websocket connection established")
	return nil
}

func (cm *ConnectionManager) register(c *connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.pools[c.roomID] == nil {
		cm.pools[c.roomID] = make(map[*connection]bool)
	}
	cm.pools[c.roomID][c] = true
}

func (cm *ConnectionManager) unregister(c *connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	pool, ok := cm.pools[c.roomID]
	if !ok {
		return
	}
	if _, ok := pool[c]; !ok {
		return
	}
	delete(pool, c)
	// The send channel stays open: a broadcast that snapshotted this
	// connection before removal may still queue into it harmlessly.
	// Closing done is what tells the write pump to stop.
	close(c.done)
	if len(pool) == 0 {
		delete(cm.pools, c.roomID)
	}

	log.Info().
		Str("connection_id", c.id).
		Str("room_id", c.roomID.String()).
		Msg("websocket connection closed")
}

func (cm *ConnectionManager) deliver(msg broadcast) {
	cm.mu.RLock()
	targets := make([]*connection, 0, len(cm.pools[msg.roomID]))
	for c := range cm.pools[msg.roomID] {
		targets = append(targets, c)
	}
	cm.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- msg.data:
		default:
			// Slow consumer; evict rather than back up the room.
			log.Warn().
				Str("connection_id", c.id).
				Str("room_id", c.roomID.String()).
				Msg("send buffer full, evicting connection")
			cm.unregister(c)
			c.conn.Close()
		}
	}
}

// Stats reports active connection counts per room.
func (cm *ConnectionManager) Stats() map[string]int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	out := make(map[string]int, len(cm.pools))
	for roomID, pool := range cm.pools {
		out[roomID.String()] = len(pool)
	}
	return out
}

func (c *connection) writePump() {
	ticker := time.NewTicker(c.mgr.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.mgr.unregister(c)
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.mgr.config.WriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.mgr.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("websocket write failed")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.mgr.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) readPump() {
	defer func() {
		c.mgr.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.mgr.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.mgr.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.mgr.config.ReadTimeout))
		return nil
	})

	for {
		// Subscriptions are read-only; client payloads are discarded.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("unexpected websocket close")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.mgr.config.ReadTimeout))
	}
}
