package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/internal/catalog"
	"github.com/mcdev12/draftroom/internal/draft/ledger"
	"github.com/mcdev12/draftroom/internal/draft/resolver"
	"github.com/mcdev12/draftroom/internal/draft/room"
	"github.com/mcdev12/draftroom/internal/events"
	"github.com/mcdev12/draftroom/internal/models"
)

// StoreFactory creates the pick ledger for a new room.
type StoreFactory func(roomID uuid.UUID) ledger.Store

// Defaults fill in timing fields a create-room request omits.
type Defaults struct {
	PickBudgetSec      int
	GraceMillis        int
	UrgentThresholdSec int
}

// Handler serves the draft room HTTP API.
type Handler struct {
	rooms    *room.Manager
	catalog  catalog.Catalog
	sink     events.Sink
	clock    clockwork.Clock
	stores   StoreFactory
	conns    *ConnectionManager
	defaults Defaults

	// baseCtx outlives individual requests; started rooms run on it.
	baseCtx context.Context
}

// NewHandler creates the API handler.
func NewHandler(baseCtx context.Context, rooms *room.Manager, cat catalog.Catalog, sink events.Sink, clock clockwork.Clock, stores StoreFactory, conns *ConnectionManager, defaults Defaults) *Handler {
	return &Handler{
		rooms:    rooms,
		catalog:  cat,
		sink:     sink,
		clock:    clock,
		stores:   stores,
		conns:    conns,
		defaults: defaults,
		baseCtx:  baseCtx,
	}
}

// Register mounts all routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /rooms", h.createRoom)
	mux.HandleFunc("GET /rooms/{roomID}", h.getSnapshot)
	mux.HandleFunc("POST /rooms/{roomID}/start", h.startDraft)
	mux.HandleFunc("POST /rooms/{roomID}/pause", h.pauseDraft)
	mux.HandleFunc("POST /rooms/{roomID}/resume", h.resumeDraft)
	mux.HandleFunc("POST /rooms/{roomID}/picks", h.submitPick)
	mux.HandleFunc("GET /rooms/{roomID}/participants/{participantIndex}/queue", h.getQueue)
	mux.HandleFunc("POST /rooms/{roomID}/participants/{participantIndex}/queue", h.enqueuePlayer)
	mux.HandleFunc("DELETE /rooms/{roomID}/participants/{participantIndex}/queue/{playerID}", h.dequeuePlayer)
	mux.HandleFunc("GET /rooms/{roomID}/ws", h.subscribe)
	mux.HandleFunc("GET /healthz", h.healthz)
}

type createRoomRequest struct {
	Participants       []string      `json:"participants"`
	RosterSlots        []models.Slot `json:"roster_slots"`
	PickBudgetSec      int           `json:"pick_budget_sec"`
	GraceMillis        int           `json:"grace_millis"`
	UrgentThresholdSec int           `json:"urgent_threshold_sec"`
}

func (h *Handler) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.PickBudgetSec == 0 {
		req.PickBudgetSec = h.defaults.PickBudgetSec
	}
	if req.GraceMillis == 0 {
		req.GraceMillis = h.defaults.GraceMillis
	}
	if req.UrgentThresholdSec == 0 {
		req.UrgentThresholdSec = h.defaults.UrgentThresholdSec
	}

	cfg := models.RoomConfig{
		ID:                 uuid.New(),
		ParticipantCount:   len(req.Participants),
		RosterSlots:        req.RosterSlots,
		PickBudgetSec:      req.PickBudgetSec,
		GraceMillis:        req.GraceMillis,
		UrgentThresholdSec: req.UrgentThresholdSec,
	}
	participants := make([]models.Participant, len(req.Participants))
	for i, name := range req.Participants {
		participants[i] = models.Participant{Index: i, DisplayName: name}
	}

	rm, err := room.New(cfg, participants, h.stores(cfg.ID), h.catalog, h.sink, h.clock)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.rooms.Add(rm); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	log.Info().
		Str("room_id", cfg.ID.String()).
		Int("participants", cfg.ParticipantCount).
		Int("total_picks", cfg.TotalPicks()).
		Msg("room created")

	snap, err := rm.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (h *Handler) getSnapshot(w http.ResponseWriter, r *http.Request) {
	rm, ok := h.roomFrom(w, r)
	if !ok {
		return
	}
	snap, err := rm.Snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) startDraft(w http.ResponseWriter, r *http.Request) {
	rm, ok := h.roomFrom(w, r)
	if !ok {
		return
	}
	// The room's clock must keep running after this request returns.
	if err := rm.Start(h.baseCtx); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(rm.Status())})
}

func (h *Handler) pauseDraft(w http.ResponseWriter, r *http.Request) {
	rm, ok := h.roomFrom(w, r)
	if !ok {
		return
	}
	if err := rm.Pause(r.Context()); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(rm.Status())})
}

func (h *Handler) resumeDraft(w http.ResponseWriter, r *http.Request) {
	rm, ok := h.roomFrom(w, r)
	if !ok {
		return
	}
	if err := rm.Resume(r.Context()); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(rm.Status())})
}

type submitPickRequest struct {
	ParticipantIndex int       `json:"participant_index"`
	PickNumber       int       `json:"pick_number"`
	PlayerID         uuid.UUID `json:"player_id"`
}

func (h *Handler) submitPick(w http.ResponseWriter, r *http.Request) {
	rm, ok := h.roomFrom(w, r)
	if !ok {
		return
	}
	var req submitPickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pick, err := rm.SubmitPick(r.Context(), req.ParticipantIndex, req.PickNumber, req.PlayerID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pick)
}

type queueRequest struct {
	PlayerID uuid.UUID `json:"player_id"`
}

func (h *Handler) getQueue(w http.ResponseWriter, r *http.Request) {
	rm, idx, ok := h.participantFrom(w, r)
	if !ok {
		return
	}
	q, err := rm.QueueFor(idx)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"queue": q})
}

func (h *Handler) enqueuePlayer(w http.ResponseWriter, r *http.Request) {
	rm, idx, ok := h.participantFrom(w, r)
	if !ok {
		return
	}
	var req queueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := rm.EnqueuePlayer(r.Context(), idx, req.PlayerID); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) dequeuePlayer(w http.ResponseWriter, r *http.Request) {
	rm, idx, ok := h.participantFrom(w, r)
	if !ok {
		return
	}
	playerID, err := uuid.Parse(r.PathValue("playerID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid player id")
		return
	}
	if err := rm.DequeuePlayer(idx, playerID); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	rm, ok := h.roomFrom(w, r)
	if !ok {
		return
	}
	if err := h.conns.Upgrade(w, r, rm.ID()); err != nil {
		log.Error().Err(err).Str("room_id", rm.ID().String()).Msg("websocket upgrade failed")
	}
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"connections": h.conns.Stats(),
	})
}

func (h *Handler) roomFrom(w http.ResponseWriter, r *http.Request) (*room.Room, bool) {
	roomID, err := uuid.Parse(r.PathValue("roomID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid room id")
		return nil, false
	}
	rm, err := h.rooms.Get(roomID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return nil, false
	}
	return rm, true
}

func (h *Handler) participantFrom(w http.ResponseWriter, r *http.Request) (*room.Room, int, bool) {
	rm, ok := h.roomFrom(w, r)
	if !ok {
		return nil, 0, false
	}
	idx, err := strconv.Atoi(r.PathValue("participantIndex"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid participant index")
		return nil, 0, false
	}
	return rm, idx, true
}

// statusFor maps domain errors onto HTTP statuses. Contention outcomes
// (stale pick, taken player) are conflicts the client resolves by
// resyncing, not server faults.
func statusFor(err error) int {
	switch {
	case errors.Is(err, room.ErrRoomNotFound),
		errors.Is(err, room.ErrUnknownParticipant),
		errors.Is(err, catalog.ErrPlayerNotFound):
		return http.StatusNotFound
	case errors.Is(err, resolver.ErrNotYourTurn):
		return http.StatusForbidden
	case errors.Is(err, resolver.ErrNotActive),
		errors.Is(err, resolver.ErrStalePick),
		errors.Is(err, resolver.ErrPlayerUnavailable),
		errors.Is(err, resolver.ErrDuplicatePlayer),
		errors.Is(err, room.ErrInvalidTransition),
		errors.Is(err, room.ErrRoomExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
