package models

import (
	"time"

	"github.com/google/uuid"
)

// PickOrigin records how a pick was selected.
type PickOrigin string

const (
	PickOriginManual        PickOrigin = "manual"
	PickOriginQueue         PickOrigin = "queue"
	PickOriginBestAvailable PickOrigin = "best-available"
)

// Pick is a single committed pick. Immutable once written to the log.
type Pick struct {
	RoomID      uuid.UUID  `json:"room_id"`
	PickNumber  int        `json:"pick_number"` // 1-based, contiguous
	Round       int        `json:"round"`
	SlotInRound int        `json:"slot_in_round"` // 1-based position within the round
	SeatIndex   int        `json:"seat_index"`
	PlayerID    string     `json:"player_id"`
	Origin      PickOrigin `json:"origin"`
	PickedAt    time.Time  `json:"picked_at"`
}
