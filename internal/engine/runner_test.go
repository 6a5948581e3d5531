package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/internal/autopick"
	"github.com/mcdev12/draftroom/internal/catalog"
	"github.com/mcdev12/draftroom/internal/eventbus"
	"github.com/mcdev12/draftroom/internal/models"
	"github.com/mcdev12/draftroom/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// eventRecorder collects bus events for assertion.
type eventRecorder struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (r *eventRecorder) record(e eventbus.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *eventRecorder) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type runnerFixture struct {
	room   *Room
	runner *Runner
	clock  *clockwork.FakeClock
	rec    *eventRecorder
	done   chan error
	cancel context.CancelFunc
}

func startRunner(t *testing.T, cfg models.RoomConfig, cat catalog.Catalog) *runnerFixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	bus := eventbus.NewInProc()
	rec := &eventRecorder{}
	unsub, err := bus.Subscribe(cfg.ID.String(), rec.record)
	require.NoError(t, err)
	t.Cleanup(unsub)

	room, err := NewRoom(cfg, cat, store.NewMemory(), clock)
	require.NoError(t, err)
	runner := NewRunner(room, autopick.NewResolver(cat, room.Queues()), bus, clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()
	t.Cleanup(cancel)

	return &runnerFixture{room: room, runner: runner, clock: clock, rec: rec, done: done, cancel: cancel}
}

// fire waits for the runner to be parked on its timer, then advances the
// fake clock past the deadline.
func (f *runnerFixture) fire(t *testing.T, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
	f.clock.Advance(d)
}

func (f *runnerFixture) waitForPick(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.room.Snapshot().CurrentPick == n
	}, 5*time.Second, time.Millisecond, "room never reached pick %d", n)
}

// ready marks every seat ready and wakes the runner into the countdown.
func (f *runnerFixture) ready(t *testing.T) {
	t.Helper()
	for i := range f.room.Config().Seats {
		_, err := f.room.SeatReady(i)
		require.NoError(t, err)
	}
	f.runner.Wake()
}

func TestRunnerCountdownActivates(t *testing.T) {
	cat := testCatalog(t, map[string]int{"QB": 10})
	cfg := testConfig(2, 2)
	f := startRunner(t, cfg, cat)

	f.ready(t)
	f.fire(t, cfg.CountdownDelay)

	require.Eventually(t, func() bool {
		return f.room.Snapshot().Status == models.RoomStatusActive
	}, 5*time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		return f.rec.count("DraftStarted") == 1 && f.rec.count("PickStarted") == 1
	}, 5*time.Second, time.Millisecond)
}

func TestRunnerTimeoutAutopicksBestAvailable(t *testing.T) {
	cat := testCatalog(t, map[string]int{"QB": 10})
	cfg := testConfig(2, 1)
	f := startRunner(t, cfg, cat)

	f.ready(t)
	f.fire(t, cfg.CountdownDelay)
	f.fire(t, cfg.PickClock+cfg.GracePeriod)
	f.waitForPick(t, 2)

	snap := f.room.Snapshot()
	require.Len(t, snap.Picks, 1)
	// No queue, so the best-ranked available player goes.
	assert.Equal(t, "QB01", snap.Picks[0].PlayerID)
	assert.Equal(t, models.PickOriginBestAvailable, snap.Picks[0].Origin)
}

func TestRunnerTimeoutTakesQueuedPlayer(t *testing.T) {
	cat := testCatalog(t, map[string]int{"QB": 10})
	cfg := testConfig(2, 1)
	cfg.Seats[0].QueueSeed = []string{"QB07", "QB03"}
	f := startRunner(t, cfg, cat)

	f.ready(t)
	f.fire(t, cfg.CountdownDelay)
	f.fire(t, cfg.PickClock+cfg.GracePeriod)
	f.waitForPick(t, 2)

	snap := f.room.Snapshot()
	assert.Equal(t, "QB07", snap.Picks[0].PlayerID)
	assert.Equal(t, models.PickOriginQueue, snap.Picks[0].Origin)
}

func TestRunnerManualPickCancelsTimeout(t *testing.T) {
	cat := testCatalog(t, map[string]int{"QB": 10})
	cfg := testConfig(2, 2)
	f := startRunner(t, cfg, cat)

	f.ready(t)
	f.fire(t, cfg.CountdownDelay)
	require.Eventually(t, func() bool {
		return f.room.Snapshot().Status == models.RoomStatusActive
	}, 5*time.Second, time.Millisecond)

	pick, err := f.runner.CommitManual(context.Background(), 1, 0, "QB05")
	require.NoError(t, err)
	assert.Equal(t, models.PickOriginManual, pick.Origin)

	// The runner re-arms for pick 2; the stale pick 1 deadline is gone.
	require.Eventually(t, func() bool {
		return f.rec.count("PickStarted") == 2
	}, 5*time.Second, time.Millisecond)
	f.fire(t, cfg.PickClock+cfg.GracePeriod)
	f.waitForPick(t, 3)

	snap := f.room.Snapshot()
	assert.Equal(t, "QB05", snap.Picks[0].PlayerID)
	assert.NotEqual(t, "QB05", snap.Picks[1].PlayerID)
}

func TestRunnerBotPicksAfterShortDelay(t *testing.T) {
	cat := testCatalog(t, map[string]int{"QB": 10})
	cfg := testConfig(2, 1)
	cfg.Seats[0].IsBot = true
	cfg.Seats[0].QueueSeed = []string{"QB09"}
	cfg.BotPickDelay = time.Second
	f := startRunner(t, cfg, cat)

	f.ready(t)
	f.fire(t, cfg.CountdownDelay)

	// One second, not a full pick clock, moves the bot.
	f.fire(t, cfg.BotPickDelay)
	f.waitForPick(t, 2)

	snap := f.room.Snapshot()
	assert.Equal(t, "QB09", snap.Picks[0].PlayerID)
	assert.Equal(t, models.PickOriginQueue, snap.Picks[0].Origin)
}

func TestRunnerTwelveSeatTimeoutAutopicksSilentSeat(t *testing.T) {
	ctx := context.Background()
	cat := testCatalog(t, map[string]int{"QB": 60, "RB": 60, "WR": 60, "TE": 60})
	cfg := testConfig(12, 18)
	f := startRunner(t, cfg, cat)

	f.ready(t)
	f.fire(t, cfg.CountdownDelay)

	// Picks 1 through 3 come in manually, well inside the clock.
	for p := 1; p <= 3; p++ {
		require.Eventually(t, func() bool {
			return f.rec.count("PickStarted") == p
		}, 5*time.Second, time.Millisecond)
		_, err := f.runner.CommitManual(ctx, p, SeatOnClock(p, 12), fmt.Sprintf("QB%02d", p))
		require.NoError(t, err)
		f.waitForPick(t, p+1)
	}

	// Seat 3 goes silent on pick 4: the full clock and the grace window
	// run out and the engine picks on its behalf.
	require.Eventually(t, func() bool {
		return f.rec.count("PickStarted") == 4
	}, 5*time.Second, time.Millisecond)
	f.fire(t, cfg.PickClock+cfg.GracePeriod)
	f.waitForPick(t, 5)

	snap := f.room.Snapshot()
	require.Len(t, snap.Picks, 4)
	pick := snap.Picks[3]
	assert.Equal(t, 4, pick.PickNumber)
	assert.Equal(t, 3, pick.SeatIndex)
	assert.Equal(t, 1, pick.Round)
	assert.Equal(t, 4, pick.SlotInRound)
	assert.Equal(t, models.PickOriginBestAvailable, pick.Origin)
	assert.Equal(t, "QB04", pick.PlayerID, "best remaining by rank")
	assert.Equal(t, models.RoomStatusActive, snap.Status)
	assert.Equal(t, 4, snap.OnClockSeat, "pick 5 belongs to the next seat in round 1")
}

func TestRunnerRunsDraftToCompletion(t *testing.T) {
	cat := testCatalog(t, map[string]int{"QB": 10})
	cfg := testConfig(2, 2)
	f := startRunner(t, cfg, cat)

	f.ready(t)
	f.fire(t, cfg.CountdownDelay)
	for p := 1; p <= 4; p++ {
		f.fire(t, cfg.PickClock+cfg.GracePeriod)
		f.waitForPick(t, p+1)
	}

	select {
	case err := <-f.done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not exit after completion")
	}

	assert.Equal(t, models.RoomStatusComplete, f.room.Snapshot().Status)
	assert.Equal(t, 1, f.rec.count("DraftCompleted"))
	assert.Equal(t, 4, f.rec.count("PickMade"))
	assert.Equal(t, []string{
		"DraftStarted", "PickStarted", "PickMade", "PickStarted", "PickMade",
		"PickStarted", "PickMade", "PickStarted", "PickMade", "DraftCompleted",
	}, f.rec.types())
}

func TestRunnerPauseFreezesClock(t *testing.T) {
	ctx := context.Background()
	cat := testCatalog(t, map[string]int{"QB": 10})
	cfg := testConfig(2, 2)
	f := startRunner(t, cfg, cat)

	f.ready(t)
	f.fire(t, cfg.CountdownDelay)
	require.Eventually(t, func() bool {
		return f.room.Snapshot().Status == models.RoomStatusActive
	}, 5*time.Second, time.Millisecond)

	require.NoError(t, f.runner.Pause(ctx, "commissioner"))
	require.Eventually(t, func() bool {
		return f.rec.count("DraftPaused") == 1
	}, 5*time.Second, time.Millisecond)

	// Time passing while paused commits nothing.
	f.clock.Advance(10 * cfg.PickClock)
	assert.Equal(t, 1, f.room.Snapshot().CurrentPick)

	require.NoError(t, f.runner.Resume(ctx))
	require.Eventually(t, func() bool {
		return f.rec.count("DraftResumed") == 1 && f.rec.count("PickStarted") == 2
	}, 5*time.Second, time.Millisecond)

	// Pick 1 still pending, now on a fresh full clock.
	f.fire(t, cfg.PickClock+cfg.GracePeriod)
	f.waitForPick(t, 2)
	assert.Equal(t, 1, f.room.Snapshot().Picks[0].PickNumber)
}
