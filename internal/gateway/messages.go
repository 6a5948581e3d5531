package gateway

import (
	"encoding/json"
	"errors"

	"github.com/mcdev12/draftroom/internal/engine"
	"github.com/mcdev12/draftroom/internal/store"
)

// Client commands arriving over the WebSocket.
const (
	ActionSubmitPick  = "submit_pick"
	ActionUpdateQueue = "update_queue"
	ActionQueueAdd    = "queue_add"
	ActionQueueRemove = "queue_remove"
	ActionReady       = "ready"
)

// ClientCommand is the single wire shape for client-to-server messages;
// Action decides which fields matter.
type ClientCommand struct {
	Action     string   `json:"action"`
	PickNumber int      `json:"pick_number,omitempty"`
	SeatIndex  int      `json:"seat_index"`
	PlayerID   string   `json:"player_id,omitempty"`
	PlayerIDs  []string `json:"player_ids,omitempty"`
}

// Server-to-client message kinds.
const (
	MessageSnapshot = "snapshot"
	MessageEvent    = "event"
	MessageAck      = "ack"
	MessageError    = "error"
)

// ServerMessage is the envelope for everything the gateway sends.
type ServerMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func marshalMessage(kind string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(ServerMessage{Type: kind, Data: raw})
}

// errorBody is the payload of an error message.
type errorBody struct {
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

// ackBody confirms a command that has no other response.
type ackBody struct {
	Action     string `json:"action"`
	PickNumber int    `json:"pick_number,omitempty"`
}

// Wire error codes for the engine's rejection reasons.
const (
	CodeStaleRequest     = "stale_request"
	CodeWrongTurn        = "wrong_turn"
	CodeUnavailable      = "player_unavailable"
	CodeRosterLimit      = "roster_limit_exceeded"
	CodeConfiguration    = "configuration_error"
	CodeRoomNotFound     = "room_not_found"
	CodeMalformed        = "malformed_request"
	CodeInvalidLifecycle = "invalid_lifecycle"
)

// errorCode maps an engine error to its wire code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, engine.ErrStaleRequest):
		return CodeStaleRequest
	case errors.Is(err, engine.ErrWrongTurn):
		return CodeWrongTurn
	case errors.Is(err, engine.ErrPlayerUnavailable):
		return CodeUnavailable
	case errors.Is(err, engine.ErrRosterLimitExceeded):
		return CodeRosterLimit
	case errors.Is(err, engine.ErrConfiguration):
		return CodeConfiguration
	case errors.Is(err, store.ErrRoomNotFound):
		return CodeRoomNotFound
	default:
		return CodeInvalidLifecycle
	}
}
