package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mcdev12/draftroom/internal/engine"
	"github.com/mcdev12/draftroom/internal/models"
	"github.com/mcdev12/draftroom/internal/store"
	"github.com/rs/zerolog/log"
)

// handleRoomConnection upgrades to WebSocket and opens the feed with a
// full snapshot. Events are buffered from the moment the socket registers
// until the snapshot frame is queued, so the first frame is always the
// snapshot and the pick feed after it is gapless and duplicate-free, even
// for picks that commit mid-handshake.
func (s *Service) handleRoomConnection(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room_id")
	if roomID == "" {
		http.Error(w, "room_id is required", http.StatusBadRequest)
		return
	}
	if _, err := s.eng.Snapshot(roomID); err != nil {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	conn, err := s.connectionManager.UpgradeConnection(w, r, roomID)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to upgrade WebSocket connection")
		return
	}

	snap, err := s.eng.Snapshot(roomID)
	if err != nil {
		conn.Conn.Close()
		return
	}
	frame, err := marshalMessage(MessageSnapshot, snap)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to marshal snapshot")
		conn.Conn.Close()
		return
	}
	conn.openFeed(snap.CurrentPick-1, frame)
}

// createRoomRequest is the REST shape for room creation. Durations come in
// as integer seconds (milliseconds for the bot delay).
type createRoomRequest struct {
	Seats              []models.Seat  `json:"seats"`
	Rounds             int            `json:"rounds"`
	PickClockSeconds   int            `json:"pick_clock_seconds"`
	GracePeriodSeconds int            `json:"grace_period_seconds"`
	CountdownSeconds   int            `json:"countdown_seconds"`
	BotPickDelayMillis int            `json:"bot_pick_delay_millis"`
	PositionLimits     map[string]int `json:"position_limits"`
}

func (s *Service) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeMalformed, "invalid JSON body")
		return
	}

	cfg := models.RoomConfig{
		Seats:          req.Seats,
		Rounds:         req.Rounds,
		PickClock:      time.Duration(req.PickClockSeconds) * time.Second,
		GracePeriod:    time.Duration(req.GracePeriodSeconds) * time.Second,
		CountdownDelay: time.Duration(req.CountdownSeconds) * time.Second,
		BotPickDelay:   time.Duration(req.BotPickDelayMillis) * time.Millisecond,
		PositionLimits: req.PositionLimits,
	}

	room, err := s.eng.CreateRoom(r.Context(), cfg)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room.Snapshot())
}

func (s *Service) handleListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.eng.ListRooms())
}

func (s *Service) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.eng.Snapshot(r.PathValue("id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type pauseRequest struct {
	Reason string `json:"reason"`
}

func (s *Service) handlePause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if r.Body != nil {
		// Reason is optional; an empty body is fine.
		json.NewDecoder(r.Body).Decode(&req)
	}
	if err := s.eng.Pause(r.Context(), r.PathValue("id"), req.Reason); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.eng.Resume(r.Context(), r.PathValue("id")); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	total, rooms := s.connectionManager.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"total_connections": total,
		"room_connections":  rooms,
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, errorBody{Code: code, Detail: detail})
}

func writeEngineError(w http.ResponseWriter, err error) {
	status := http.StatusConflict
	switch {
	case errors.Is(err, store.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrConfiguration):
		status = http.StatusBadRequest
	}
	writeError(w, status, errorCode(err), err.Error())
}
