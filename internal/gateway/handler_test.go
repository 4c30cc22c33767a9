package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/draftroom/internal/catalog"
	"github.com/mcdev12/draftroom/internal/draft/ledger"
	"github.com/mcdev12/draftroom/internal/draft/room"
	"github.com/mcdev12/draftroom/internal/events"
	"github.com/mcdev12/draftroom/internal/models"
)

type testServer struct {
	srv     *httptest.Server
	players []models.Player
	bus     *events.Bus
	conns   *ConnectionManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	positions := []models.Position{
		models.PositionQB, models.PositionRB, models.PositionWR, models.PositionTE,
	}
	var players []models.Player
	for i := 0; i < 20; i++ {
		players = append(players, models.Player{
			ID:       uuid.New(),
			Name:     fmt.Sprintf("Player %d", i),
			Position: positions[i%len(positions)],
			Rank:     i + 1,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	bus := events.NewBus()
	conns := NewConnectionManager(DefaultConnectionConfig())
	go conns.Run(ctx)
	go conns.Bridge(ctx, bus)

	rooms := room.NewManager()
	t.Cleanup(rooms.StopAll)

	h := NewHandler(ctx, rooms, catalog.NewMemory(players), bus, clockwork.NewFakeClock(),
		func(uuid.UUID) ledger.Store { return ledger.NewMemoryStore() }, conns,
		Defaults{PickBudgetSec: 30, GraceMillis: 600, UrgentThresholdSec: 10})

	mux := http.NewServeMux()
	h.Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, players: players, bus: bus, conns: conns}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)

	resp, err := ts.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func (ts *testServer) createRoom(t *testing.T) room.Snapshot {
	t.Helper()

	resp, body := ts.do(t, http.MethodPost, "/rooms", createRoomRequest{
		Participants:       []string{"Alice", "Bob"},
		RosterSlots:        []models.Slot{models.SlotQB, models.SlotBench},
		PickBudgetSec:      30,
		GraceMillis:        600,
		UrgentThresholdSec: 10,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var snap room.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	return snap
}

func TestCreateRoomAndSnapshot(t *testing.T) {
	ts := newTestServer(t)
	snap := ts.createRoom(t)

	require.Equal(t, models.DraftStatusWaiting, snap.Status)
	require.Equal(t, 2, snap.Config.ParticipantCount)
	require.Equal(t, 4, snap.Config.TotalPicks())

	resp, body := ts.do(t, http.MethodGet, "/rooms/"+snap.Config.ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got room.Snapshot
	require.NoError(t, json.Unmarshal(body, &got))
	require.Equal(t, snap.Config.ID, got.Config.ID)
}

func TestCreateRoomRejectsBadConfig(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodPost, "/rooms", createRoomRequest{
		Participants: []string{"Only One"},
		RosterSlots:  []models.Slot{models.SlotQB},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitPickFlow(t *testing.T) {
	ts := newTestServer(t)
	snap := ts.createRoom(t)
	base := "/rooms/" + snap.Config.ID.String()

	resp, _ := ts.do(t, http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Starting twice is a conflict.
	resp, _ = ts.do(t, http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body := ts.do(t, http.MethodPost, base+"/picks", submitPickRequest{
		ParticipantIndex: 0,
		PickNumber:       1,
		PlayerID:         ts.players[0].ID,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pick models.Pick
	require.NoError(t, json.Unmarshal(body, &pick))
	require.Equal(t, 1, pick.PickNumber)
	require.Equal(t, models.ResolvedByHuman, pick.ResolvedBy)

	// Out of turn is forbidden; a replay of pick 1 is a conflict.
	resp, _ = ts.do(t, http.MethodPost, base+"/picks", submitPickRequest{
		ParticipantIndex: 0, PickNumber: 2, PlayerID: ts.players[1].ID,
	})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, base+"/picks", submitPickRequest{
		ParticipantIndex: 0, PickNumber: 1, PlayerID: ts.players[1].ID,
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestUnknownRoomIs404(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodGet, "/rooms/"+uuid.New().String(), nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/rooms/not-a-uuid", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQueueEndpoints(t *testing.T) {
	ts := newTestServer(t)
	snap := ts.createRoom(t)
	base := "/rooms/" + snap.Config.ID.String() + "/participants/0/queue"

	resp, _ := ts.do(t, http.MethodPost, base, queueRequest{PlayerID: ts.players[2].ID})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodPost, base, queueRequest{PlayerID: uuid.New()})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := ts.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		Queue []uuid.UUID `json:"queue"`
	}
	require.NoError(t, json.Unmarshal(body, &got))
	require.Equal(t, []uuid.UUID{ts.players[2].ID}, got.Queue)

	resp, _ = ts.do(t, http.MethodDelete, base+"/"+ts.players[2].ID.String(), nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestWebsocketReceivesRoomEvents(t *testing.T) {
	ts := newTestServer(t)
	snap := ts.createRoom(t)

	wsURL := strings.Replace(ts.srv.URL, "http://", "ws://", 1) +
		"/rooms/" + snap.Config.ID.String() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the read/write pumps a beat to register before publishing.
	require.Eventually(t, func() bool {
		return ts.conns.Stats()[snap.Config.ID.String()] == 1
	}, 2*time.Second, 10*time.Millisecond)

	ev, err := events.NewEvent(snap.Config.ID, events.EventTypeDraftStatusChanged, time.Now(), events.DraftStatusChangedPayload{
		Status: models.DraftStatusActive,
	})
	require.NoError(t, err)
	require.NoError(t, ts.bus.Publish(context.Background(), ev))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got events.Event
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, events.EventTypeDraftStatusChanged, got.Type)
	require.Equal(t, snap.Config.ID.String(), got.RoomID)
}
