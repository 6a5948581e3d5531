package engine

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/internal/autopick"
	"github.com/mcdev12/draftroom/internal/engine/events"
	"github.com/mcdev12/draftroom/internal/eventbus"
	"github.com/mcdev12/draftroom/internal/models"
	"github.com/rs/zerolog/log"
)

// Runner drives one room's clock: the pre-draft countdown, each pick's
// deadline and grace window, and the timeout path into autopick. It is the
// single writer of timer-driven commits; manual commits also route through
// it so every committed pick is published exactly once.
type Runner struct {
	room     *Room
	resolver *autopick.Resolver
	bus      eventbus.Bus
	clock    clockwork.Clock
	wakeCh   chan struct{}
}

// NewRunner creates a runner for room.
func NewRunner(room *Room, resolver *autopick.Resolver, bus eventbus.Bus, clock clockwork.Clock) *Runner {
	return &Runner{
		room:     room,
		resolver: resolver,
		bus:      bus,
		clock:    clock,
		wakeCh:   make(chan struct{}, 1),
	}
}

// Wake nudges the run loop to re-inspect room state, e.g. after a manual
// commit cancelled the pending deadline or a seat became ready.
func (r *Runner) Wake() {
	select {
	case r.wakeCh <- struct{}{}:
	default:
	}
}

// Run loops until the draft completes or ctx is cancelled. The timer is
// the only intentional wait; every firing re-validates against room state,
// so a timeout that lost a race is a no-op rather than a fault.
func (r *Runner) Run(ctx context.Context) error {
	timer := r.clock.NewTimer(time.Hour)
	stopAndDrainTimer(timer)

	for {
		v := r.room.inspect()

		switch v.status {
		case models.RoomStatusWaiting, models.RoomStatusPaused:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-r.wakeCh:
			}

		case models.RoomStatusCountdown:
			if fired := r.waitUntil(ctx, timer, v.countdownEnd); !fired {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			}
			ts, err := r.room.Activate()
			if err != nil {
				// A concurrent transition beat the countdown; re-inspect.
				continue
			}
			r.publishDraftStarted(ctx)
			r.publishPickStarted(ctx, ts)

		case models.RoomStatusActive:
			if v.timer == nil {
				ts, armed := r.room.StartPickTimer()
				if armed {
					r.publishPickStarted(ctx, ts)
				}
				continue
			}
			fireAt := v.timer.GraceEnd
			if v.onClockBot {
				// Bots do not run out their clock; they pick after a
				// short hold so the room still sees the turn change.
				fireAt = v.timer.Deadline.Add(-r.room.cfg.PickClock).Add(r.room.cfg.BotPickDelay)
			}
			if fired := r.waitUntil(ctx, timer, fireAt); !fired {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			}
			r.handleTimeout(ctx, v)

		case models.RoomStatusComplete:
			r.publishDraftCompleted(ctx)
			return nil
		}
	}
}

// waitUntil sleeps until t, a wake, or cancellation. Returns true only if
// the deadline fired.
func (r *Runner) waitUntil(ctx context.Context, timer clockwork.Timer, t time.Time) bool {
	wait := t.Sub(r.clock.Now())
	if wait <= 0 {
		return true
	}
	timer.Reset(wait)
	select {
	case <-timer.Chan():
		return true
	case <-r.wakeCh:
		stopAndDrainTimer(timer)
		return false
	case <-ctx.Done():
		stopAndDrainTimer(timer)
		return false
	}
}

// stopAndDrainTimer stops a timer and drains its channel so a stale firing
// cannot leak into the next wait.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

// handleTimeout runs the autopick path for the pick that just expired.
func (r *Runner) handleTimeout(ctx context.Context, v view) {
	if !r.room.MarkExpired(v.currentPick) {
		// A manual commit (or pause) beat the deadline. Nothing to do.
		return
	}

	available, roster, limits := r.room.AutopickView(v.onClockSeat)
	playerID, origin, err := r.resolver.Resolve(v.onClockSeat, available, roster, limits)
	if err != nil {
		log.Error().Err(err).Str("room_id", r.room.ID()).Int("seat", v.onClockSeat).Msg("autopick failed")
		return
	}

	pick, err := r.room.AttemptCommit(ctx, v.currentPick, v.onClockSeat, playerID, origin)
	if errors.Is(err, ErrStaleRequest) {
		// Lost the race to a last-second manual pick. Expected.
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("room_id", r.room.ID()).Int("pick", v.currentPick).Msg("autopick commit rejected")
		return
	}
	r.publishPickMade(ctx, pick)
}

// CommitManual routes a client's pick through the arbiter and, on success,
// publishes it and wakes the loop so the next pick goes on the clock.
func (r *Runner) CommitManual(ctx context.Context, pickNumber, seatIndex int, playerID string) (models.Pick, error) {
	pick, err := r.room.AttemptCommit(ctx, pickNumber, seatIndex, playerID, models.PickOriginManual)
	if err != nil {
		return models.Pick{}, err
	}
	r.publishPickMade(ctx, pick)
	r.Wake()
	return pick, nil
}

// Pause halts the room and cancels the pending deadline.
func (r *Runner) Pause(ctx context.Context, reason string) error {
	if err := r.room.Pause(); err != nil {
		return err
	}
	r.publish(ctx, events.TypeDraftPaused, events.DraftPausedPayload{
		RoomID:   r.room.ID(),
		PausedAt: r.clock.Now(),
		Reason:   reason,
	})
	r.Wake()
	return nil
}

// Resume reactivates a paused room; the current pick gets a fresh clock.
func (r *Runner) Resume(ctx context.Context) error {
	if err := r.room.Resume(); err != nil {
		return err
	}
	r.publish(ctx, events.TypeDraftResumed, events.DraftResumedPayload{
		RoomID:    r.room.ID(),
		ResumedAt: r.clock.Now(),
	})
	r.Wake()
	return nil
}

func (r *Runner) publishDraftStarted(ctx context.Context) {
	cfg := r.room.Config()
	r.publish(ctx, events.TypeDraftStarted, events.DraftStartedPayload{
		RoomID:     r.room.ID(),
		StartedAt:  r.clock.Now(),
		TotalPicks: cfg.TotalPicks(),
		Rounds:     cfg.Rounds,
		SeatCount:  cfg.SeatCount(),
	})
}

func (r *Runner) publishPickStarted(ctx context.Context, ts models.TimerState) {
	n := r.room.Config().SeatCount()
	r.publish(ctx, events.TypePickStarted, events.PickStartedPayload{
		RoomID:      r.room.ID(),
		PickNumber:  ts.PickNumber,
		Round:       RoundOf(ts.PickNumber, n),
		SlotInRound: SlotInRound(ts.PickNumber, n),
		SeatIndex:   SeatOnClock(ts.PickNumber, n),
		StartedAt:   ts.Deadline.Add(-r.room.Config().PickClock),
		Deadline:    ts.Deadline,
	})
}

func (r *Runner) publishPickMade(ctx context.Context, pick models.Pick) {
	r.publish(ctx, events.TypePickMade, events.PickMadePayload{
		RoomID:      pick.RoomID.String(),
		PickNumber:  pick.PickNumber,
		Round:       pick.Round,
		SlotInRound: pick.SlotInRound,
		SeatIndex:   pick.SeatIndex,
		PlayerID:    pick.PlayerID,
		Origin:      pick.Origin,
		PickedAt:    pick.PickedAt,
		NextPick:    pick.PickNumber + 1,
	})
}

func (r *Runner) publishDraftCompleted(ctx context.Context) {
	cfg := r.room.Config()
	r.publish(ctx, events.TypeDraftCompleted, events.DraftCompletedPayload{
		RoomID:      r.room.ID(),
		CompletedAt: r.clock.Now(),
		TotalPicks:  cfg.TotalPicks(),
	})
}

func (r *Runner) publish(ctx context.Context, eventType string, payload any) {
	event, err := eventbus.NewEvent(r.room.Config().ID, eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to build event")
		return
	}
	if err := r.bus.Publish(ctx, event); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Str("room_id", r.room.ID()).Msg("failed to publish event")
	}
}
