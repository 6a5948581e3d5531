package engine

import (
	"fmt"
	"time"

	"github.com/mcdev12/draftroom/internal/models"
)

// Snapshot is a consistent full copy of a room's public state. A client
// that reconstructs from a snapshot and then follows the incremental feed
// from Snapshot.CurrentPick onward sees every pick exactly once.
type Snapshot struct {
	Config      models.RoomConfig  `json:"config"`
	Status      models.RoomStatus  `json:"status"`
	CurrentPick int                `json:"current_pick"`
	OnClockSeat int                `json:"on_clock_seat"` // -1 when no pick is on the clock
	Picks       []models.Pick      `json:"picks"`
	Rosters     []models.Roster    `json:"rosters"`
	Queues      [][]string         `json:"queues"`
	Timer       *models.TimerState `json:"timer,omitempty"`
	StartedAt   *time.Time         `json:"started_at,omitempty"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	TakenAt     time.Time          `json:"taken_at"`
}

// Snapshot returns the room's full state under the same lock commits take,
// so it can never observe a half-applied pick.
func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	picks := make([]models.Pick, len(r.picks))
	copy(picks, r.picks)

	rosters := make([]models.Roster, len(r.rosters))
	for i, roster := range r.rosters {
		rosters[i] = roster.Clone()
	}

	var timer *models.TimerState
	if r.timer != nil {
		t := *r.timer
		timer = &t
	}

	onClock := -1
	if r.status == models.RoomStatusActive && r.currentPick <= r.cfg.TotalPicks() {
		onClock = SeatOnClock(r.currentPick, r.cfg.SeatCount())
	}

	return Snapshot{
		Config:      r.cfg,
		Status:      r.status,
		CurrentPick: r.currentPick,
		OnClockSeat: onClock,
		Picks:       picks,
		Rosters:     rosters,
		Queues:      r.queues.Snapshot(),
		Timer:       timer,
		StartedAt:   r.startedAt,
		CompletedAt: r.completedAt,
		TakenAt:     r.clock.Now(),
	}
}

// view is what the runner needs per loop iteration.
type view struct {
	status       models.RoomStatus
	currentPick  int
	totalPicks   int
	timer        *models.TimerState
	onClockSeat  int
	onClockBot   bool
	countdownEnd time.Time
}

func (r *Room) inspect() view {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := view{
		status:       r.status,
		currentPick:  r.currentPick,
		totalPicks:   r.cfg.TotalPicks(),
		countdownEnd: r.countdownEnd,
		onClockSeat:  -1,
	}
	if r.timer != nil {
		t := *r.timer
		v.timer = &t
	}
	if r.status == models.RoomStatusActive && r.currentPick <= v.totalPicks {
		seat := SeatOnClock(r.currentPick, r.cfg.SeatCount())
		v.onClockSeat = seat
		v.onClockBot = r.cfg.Seats[seat].IsBot
	}
	return v
}

// Restore rebuilds the room's mutable state purely from a committed pick
// log, for crash recovery. The log must be contiguous from pick 1. An
// incomplete room restores to Paused so an operator (or the process boot
// path) resumes it explicitly with a fresh clock.
func (r *Room) Restore(picks []models.Pick) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != models.RoomStatusWaiting || len(r.picks) > 0 {
		return fmt.Errorf("room %s is not freshly created", r.ID())
	}

	for i, pick := range picks {
		if pick.PickNumber != i+1 {
			return fmt.Errorf("pick log gap: position %d holds pick number %d", i+1, pick.PickNumber)
		}
		if _, ok := r.available[pick.PlayerID]; !ok {
			return fmt.Errorf("pick %d references unavailable player %s", pick.PickNumber, pick.PlayerID)
		}
		r.applyPickLocked(pick)
	}

	// applyPickLocked flips the room to Complete on the last pick; an
	// incomplete log lands in Paused awaiting an explicit resume.
	if r.status != models.RoomStatusComplete {
		if len(picks) > 0 {
			r.status = models.RoomStatusPaused
			now := r.clock.Now()
			r.startedAt = &now
		}
		r.timer = nil
	}
	return nil
}
