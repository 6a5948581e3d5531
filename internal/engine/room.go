package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/internal/catalog"
	"github.com/mcdev12/draftroom/internal/models"
	"github.com/mcdev12/draftroom/internal/queue"
	"github.com/mcdev12/draftroom/internal/rules"
	"github.com/mcdev12/draftroom/internal/store"
	"github.com/rs/zerolog/log"
)

// Room is the arena for one draft: it owns the pick log, the rosters, the
// available pool, and the lifecycle state, and it is the only place any of
// them change. Every mutation goes through the room's mutex; everything a
// reader gets out is a copy.
type Room struct {
	cfg    models.RoomConfig
	cat    catalog.Catalog
	queues *queue.Manager
	st     store.Store
	clock  clockwork.Clock

	mu           sync.Mutex
	status       models.RoomStatus
	currentPick  int
	picks        []models.Pick
	rosters      []models.Roster
	available    map[string]models.Player
	timer        *models.TimerState
	ready        []bool
	countdownEnd time.Time
	startedAt    *time.Time
	completedAt  *time.Time
}

// NewRoom validates cfg and creates a room in the Waiting state. Bot seats
// count as ready from the start.
func NewRoom(cfg models.RoomConfig, cat catalog.Catalog, st store.Store, clock clockwork.Clock) (*Room, error) {
	if err := validateConfig(cfg, cat); err != nil {
		return nil, err
	}

	r := &Room{
		cfg:         cfg,
		cat:         cat,
		queues:      queue.NewManager(len(cfg.Seats)),
		st:          st,
		clock:       clock,
		status:      models.RoomStatusWaiting,
		currentPick: 1,
		rosters:     make([]models.Roster, len(cfg.Seats)),
		available:   make(map[string]models.Player, len(cat.All())),
		ready:       make([]bool, len(cfg.Seats)),
	}
	for i := range r.rosters {
		r.rosters[i] = models.Roster{}
	}
	for _, p := range cat.All() {
		r.available[p.ID] = p
	}
	for _, seat := range cfg.Seats {
		if seat.IsBot {
			r.ready[seat.Index] = true
		}
		if len(seat.QueueSeed) > 0 {
			if err := r.queues.Seed(seat.Index, seat.QueueSeed); err != nil {
				return nil, fmt.Errorf("%w: seat %d queue seed: %v", ErrConfiguration, seat.Index, err)
			}
		}
	}
	return r, nil
}

func validateConfig(cfg models.RoomConfig, cat catalog.Catalog) error {
	if len(cfg.Seats) < 2 {
		return fmt.Errorf("%w: need at least 2 seats, got %d", ErrConfiguration, len(cfg.Seats))
	}
	if cfg.Rounds < 1 {
		return fmt.Errorf("%w: rounds must be at least 1, got %d", ErrConfiguration, cfg.Rounds)
	}
	if cfg.PickClock <= 0 {
		return fmt.Errorf("%w: pick clock must be positive", ErrConfiguration)
	}
	if cfg.GracePeriod < 0 {
		return fmt.Errorf("%w: grace period cannot be negative", ErrConfiguration)
	}
	seen := make(map[string]bool, len(cfg.Seats))
	for i, seat := range cfg.Seats {
		if seat.ID == "" {
			return fmt.Errorf("%w: seat %d has empty id", ErrConfiguration, i)
		}
		if seat.Index != i {
			return fmt.Errorf("%w: seat %q index %d does not match position %d", ErrConfiguration, seat.ID, seat.Index, i)
		}
		if seen[seat.ID] {
			return fmt.Errorf("%w: seat id %q listed twice", ErrConfiguration, seat.ID)
		}
		seen[seat.ID] = true
		for pos, max := range seat.LimitOverrides {
			if max < 0 {
				return fmt.Errorf("%w: seat %q override for %s is negative", ErrConfiguration, seat.ID, pos)
			}
		}
	}
	for pos, max := range cfg.PositionLimits {
		if max < 0 {
			return fmt.Errorf("%w: position limit for %s is negative", ErrConfiguration, pos)
		}
	}
	if total := cfg.TotalPicks(); len(cat.All()) < total {
		return fmt.Errorf("%w: catalog has %d players for %d picks", ErrConfiguration, len(cat.All()), total)
	}
	return nil
}

// ID returns the room id.
func (r *Room) ID() string { return r.cfg.ID.String() }

// Config returns the immutable room configuration.
func (r *Room) Config() models.RoomConfig { return r.cfg }

// Queues returns the room's queue manager.
func (r *Room) Queues() *queue.Manager { return r.queues }

// SeatReady marks a seat as confirmed. When every seat is ready the room
// moves Waiting -> Countdown and the countdown deadline is fixed. Returns
// true if the transition happened on this call.
func (r *Room) SeatReady(seat int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if seat < 0 || seat >= len(r.ready) {
		return false, fmt.Errorf("seat %d out of range", seat)
	}
	if r.status != models.RoomStatusWaiting {
		return false, nil
	}
	r.ready[seat] = true
	for _, ok := range r.ready {
		if !ok {
			return false, nil
		}
	}
	r.status = models.RoomStatusCountdown
	r.countdownEnd = r.clock.Now().Add(r.cfg.CountdownDelay)
	log.Info().Str("room_id", r.ID()).Time("countdown_end", r.countdownEnd).Msg("all seats ready, countdown started")
	return true, nil
}

// Activate moves Countdown -> Active and puts pick 1 on the clock. Returns
// the initial timer state. Called by the runner when the countdown expires.
func (r *Room) Activate() (models.TimerState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != models.RoomStatusCountdown {
		return models.TimerState{}, fmt.Errorf("cannot activate room in status %s", r.status)
	}
	r.status = models.RoomStatusActive
	now := r.clock.Now()
	r.startedAt = &now
	r.startTimerLocked()
	log.Info().Str("room_id", r.ID()).Int("total_picks", r.cfg.TotalPicks()).Msg("draft active")
	return *r.timer, nil
}

// StartPickTimer arms the clock for the current pick if the room is active
// and no timer is running. Returns the timer state and whether it armed.
func (r *Room) StartPickTimer() (models.TimerState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != models.RoomStatusActive || r.timer != nil || r.currentPick > r.cfg.TotalPicks() {
		return models.TimerState{}, false
	}
	r.startTimerLocked()
	return *r.timer, true
}

func (r *Room) startTimerLocked() {
	now := r.clock.Now()
	deadline := now.Add(r.cfg.PickClock)
	r.timer = &models.TimerState{
		PickNumber: r.currentPick,
		Deadline:   deadline,
		GraceEnd:   deadline.Add(r.cfg.GracePeriod),
	}
}

// MarkExpired flags the timer for pickNumber as expired. Returns false if
// that pick is no longer on the clock, which makes a late-firing timeout a
// no-op.
func (r *Room) MarkExpired(pickNumber int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != models.RoomStatusActive || r.timer == nil || r.timer.PickNumber != pickNumber {
		return false
	}
	r.timer.Expired = true
	return true
}

// AttemptCommit is the pick commit arbiter: the four preconditions and the
// append are checked and applied under one lock, so among concurrent
// attempts for the same pick number exactly one succeeds and the rest see
// ErrStaleRequest once the winner's append is visible.
func (r *Room) AttemptCommit(ctx context.Context, pickNumber, seatIndex int, playerID string, origin models.PickOrigin) (models.Pick, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != models.RoomStatusActive || pickNumber != r.currentPick {
		return models.Pick{}, ErrStaleRequest
	}
	n := r.cfg.SeatCount()
	if seatIndex != SeatOnClock(pickNumber, n) {
		return models.Pick{}, ErrWrongTurn
	}
	player, ok := r.available[playerID]
	if !ok {
		return models.Pick{}, ErrPlayerUnavailable
	}
	limits := rules.ForSeat(r.cfg.PositionLimits, r.cfg.Seats[seatIndex])
	if !rules.CanAdd(r.rosters[seatIndex], player.Position, limits) {
		// Autopick's last-resort tier may commit past the caps, but only
		// when no available player is legal for this seat; a draft must
		// never stall on a pathological limit configuration.
		if origin == models.PickOriginManual || r.anyLegalLocked(seatIndex, limits) {
			return models.Pick{}, ErrRosterLimitExceeded
		}
	}

	pick := models.Pick{
		RoomID:      r.cfg.ID,
		PickNumber:  pickNumber,
		Round:       RoundOf(pickNumber, n),
		SlotInRound: SlotInRound(pickNumber, n),
		SeatIndex:   seatIndex,
		PlayerID:    playerID,
		Origin:      origin,
		PickedAt:    r.clock.Now(),
	}

	if r.st != nil {
		if err := r.st.AppendPick(ctx, pick); err != nil {
			if errors.Is(err, store.ErrDuplicatePick) {
				return models.Pick{}, ErrStaleRequest
			}
			return models.Pick{}, fmt.Errorf("append pick: %w", err)
		}
	}

	r.applyPickLocked(pick)

	log.Info().
		Str("room_id", r.ID()).
		Int("pick", pick.PickNumber).
		Int("seat", pick.SeatIndex).
		Str("player_id", pick.PlayerID).
		Str("origin", string(pick.Origin)).
		Msg("pick committed")

	return pick, nil
}

// applyPickLocked folds a committed pick into the in-memory state.
func (r *Room) applyPickLocked(pick models.Pick) {
	player := r.available[pick.PlayerID]
	r.picks = append(r.picks, pick)
	roster := r.rosters[pick.SeatIndex]
	roster[player.Position] = append(roster[player.Position], pick.PlayerID)
	delete(r.available, pick.PlayerID)
	r.queues.DropDrafted(pick.PlayerID)
	r.timer = nil
	r.currentPick++

	if r.currentPick > r.cfg.TotalPicks() {
		r.status = models.RoomStatusComplete
		now := r.clock.Now()
		r.completedAt = &now
		log.Info().Str("room_id", r.ID()).Msg("draft complete")
	}
}

func (r *Room) anyLegalLocked(seatIndex int, limits rules.Limits) bool {
	for _, p := range r.available {
		if rules.CanAdd(r.rosters[seatIndex], p.Position, limits) {
			return true
		}
	}
	return false
}

// Pause halts an active room administratively. The running timer is
// discarded; the paused duration is not counted against the drafter.
func (r *Room) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != models.RoomStatusActive {
		return fmt.Errorf("cannot pause room in status %s", r.status)
	}
	r.status = models.RoomStatusPaused
	r.timer = nil
	log.Info().Str("room_id", r.ID()).Int("current_pick", r.currentPick).Msg("draft paused")
	return nil
}

// Resume moves a paused room back to Active. The runner arms a fresh full
// clock for the same pick number.
func (r *Room) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != models.RoomStatusPaused {
		return fmt.Errorf("cannot resume room in status %s", r.status)
	}
	r.status = models.RoomStatusActive
	log.Info().Str("room_id", r.ID()).Int("current_pick", r.currentPick).Msg("draft resumed")
	return nil
}

// AutopickView returns a consistent copy of what the resolver needs for a
// seat: the available pool, the seat's roster, and its effective limits.
func (r *Room) AutopickView(seatIndex int) (map[string]models.Player, models.Roster, rules.Limits) {
	r.mu.Lock()
	defer r.mu.Unlock()

	available := make(map[string]models.Player, len(r.available))
	for id, p := range r.available {
		available[id] = p
	}
	return available, r.rosters[seatIndex].Clone(), rules.ForSeat(r.cfg.PositionLimits, r.cfg.Seats[seatIndex])
}
