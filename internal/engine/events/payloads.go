// Package events holds the payload structs shared between the engine and
// the gateway, kept separate to avoid cyclic imports.
package events

import (
	"time"

	"github.com/mcdev12/draftroom/internal/models"
)

// Event type names carried on the bus envelope.
const (
	TypeDraftStarted   = "DraftStarted"
	TypePickStarted    = "PickStarted"
	TypePickMade       = "PickMade"
	TypeDraftPaused    = "DraftPaused"
	TypeDraftResumed   = "DraftResumed"
	TypeDraftCompleted = "DraftCompleted"
)

// DraftStartedPayload is emitted when a room leaves Countdown.
type DraftStartedPayload struct {
	RoomID     string    `json:"room_id"`
	StartedAt  time.Time `json:"started_at"`
	TotalPicks int       `json:"total_picks"`
	Rounds     int       `json:"rounds"`
	SeatCount  int       `json:"seat_count"`
}

// PickStartedPayload is emitted when a pick goes on the clock. Deadline is
// the user-visible end of the countdown; the grace window is internal and
// deliberately absent.
type PickStartedPayload struct {
	RoomID      string    `json:"room_id"`
	PickNumber  int       `json:"pick_number"`
	Round       int       `json:"round"`
	SlotInRound int       `json:"slot_in_round"`
	SeatIndex   int       `json:"seat_index"`
	StartedAt   time.Time `json:"started_at"`
	Deadline    time.Time `json:"deadline"`
}

// PickMadePayload is emitted for every committed pick, manual or automatic.
type PickMadePayload struct {
	RoomID      string            `json:"room_id"`
	PickNumber  int               `json:"pick_number"`
	Round       int               `json:"round"`
	SlotInRound int               `json:"slot_in_round"`
	SeatIndex   int               `json:"seat_index"`
	PlayerID    string            `json:"player_id"`
	Origin      models.PickOrigin `json:"origin"`
	PickedAt    time.Time         `json:"picked_at"`
	NextPick    int               `json:"next_pick"` // N*R+1 once the room is complete
}

// DraftPausedPayload is emitted on an administrative pause.
type DraftPausedPayload struct {
	RoomID   string    `json:"room_id"`
	PausedAt time.Time `json:"paused_at"`
	Reason   string    `json:"reason,omitempty"`
}

// DraftResumedPayload is emitted when a paused room goes active again.
type DraftResumedPayload struct {
	RoomID    string    `json:"room_id"`
	ResumedAt time.Time `json:"resumed_at"`
}

// DraftCompletedPayload is emitted once, when the last pick commits.
type DraftCompletedPayload struct {
	RoomID      string    `json:"room_id"`
	CompletedAt time.Time `json:"completed_at"`
	TotalPicks  int       `json:"total_picks"`
}
