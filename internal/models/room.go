package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomStatus defines the lifecycle state of a draft room.
type RoomStatus string

const (
	RoomStatusWaiting   RoomStatus = "WAITING"
	RoomStatusCountdown RoomStatus = "COUNTDOWN"
	RoomStatusActive    RoomStatus = "ACTIVE"
	RoomStatusPaused    RoomStatus = "PAUSED"
	RoomStatusComplete  RoomStatus = "COMPLETE"
)

// Seat is one participant slot in a draft room. Seats are fixed at room
// creation; index matches position in RoomConfig.Seats.
type Seat struct {
	ID             string         `json:"id"`
	Index          int            `json:"index"`
	IsBot          bool           `json:"is_bot"`
	QueueSeed      []string       `json:"queue_seed,omitempty"`
	LimitOverrides map[string]int `json:"limit_overrides,omitempty"` // position -> max, overrides room limits
}

// RoomConfig holds the immutable configuration of a draft room.
type RoomConfig struct {
	ID             uuid.UUID      `json:"id"`
	Seats          []Seat         `json:"seats"`
	Rounds         int            `json:"rounds"`
	PickClock      time.Duration  `json:"pick_clock"`
	GracePeriod    time.Duration  `json:"grace_period"`
	CountdownDelay time.Duration  `json:"countdown_delay"`
	PositionLimits map[string]int `json:"position_limits"` // position -> max per roster
	BotPickDelay   time.Duration  `json:"bot_pick_delay,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// SeatCount returns the number of seats N.
func (c RoomConfig) SeatCount() int { return len(c.Seats) }

// TotalPicks returns N*R, the size of a finished pick log.
func (c RoomConfig) TotalPicks() int { return len(c.Seats) * c.Rounds }

// Roster maps position to the player ids a seat has drafted there.
// It only grows; entries are permanent once committed.
type Roster map[string][]string

// Count returns how many players the roster holds at position.
func (r Roster) Count(position string) int { return len(r[position]) }

// Size returns the total number of players on the roster.
func (r Roster) Size() int {
	n := 0
	for _, ids := range r {
		n += len(ids)
	}
	return n
}

// Clone returns a deep copy of the roster.
func (r Roster) Clone() Roster {
	out := make(Roster, len(r))
	for pos, ids := range r {
		cp := make([]string, len(ids))
		copy(cp, ids)
		out[pos] = cp
	}
	return out
}

// TimerState tracks the clock for the pick currently on the board.
// The displayed countdown runs to Deadline; the system treats the pick as
// expired only after GraceEnd. GraceEnd stays server-internal: clients only
// ever see Deadline.
type TimerState struct {
	PickNumber int       `json:"pick_number"`
	Deadline   time.Time `json:"deadline"`
	GraceEnd   time.Time `json:"-"`
	Expired    bool      `json:"expired"`
}
