package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/internal/catalog"
	"github.com/mcdev12/draftroom/internal/models"
	"github.com/mcdev12/draftroom/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testCatalog builds n players per position, ranked in listing order.
func testCatalog(t *testing.T, positions map[string]int) *catalog.Static {
	t.Helper()
	var players []models.Player
	rank := 1.0
	for _, pos := range []string{"QB", "RB", "WR", "TE"} {
		for i := 1; i <= positions[pos]; i++ {
			players = append(players, models.Player{
				ID:       fmt.Sprintf("%s%02d", pos, i),
				Name:     fmt.Sprintf("%s Player %d", pos, i),
				Position: pos,
				Rank:     rank,
			})
			rank++
		}
	}
	cat, err := catalog.NewStatic(players)
	require.NoError(t, err)
	return cat
}

func testConfig(seats, rounds int) models.RoomConfig {
	cfg := models.RoomConfig{
		ID:             uuid.New(),
		Rounds:         rounds,
		PickClock:      30 * time.Second,
		GracePeriod:    2 * time.Second,
		CountdownDelay: 5 * time.Second,
	}
	for i := 0; i < seats; i++ {
		cfg.Seats = append(cfg.Seats, models.Seat{ID: fmt.Sprintf("seat-%d", i), Index: i})
	}
	return cfg
}

// activeRoom readies every seat and runs the countdown so the room is
// Active with pick 1 on the clock.
func activeRoom(t *testing.T, cfg models.RoomConfig, cat catalog.Catalog, st store.Store, clock clockwork.Clock) *Room {
	t.Helper()
	room, err := NewRoom(cfg, cat, st, clock)
	require.NoError(t, err)
	for i := range cfg.Seats {
		_, err := room.SeatReady(i)
		require.NoError(t, err)
	}
	_, err = room.Activate()
	require.NoError(t, err)
	return room
}

func TestNewRoomValidation(t *testing.T) {
	cat := testCatalog(t, map[string]int{"QB": 10, "RB": 10, "WR": 10, "TE": 10})
	clock := clockwork.NewFakeClock()

	tests := []struct {
		name   string
		mutate func(*models.RoomConfig)
	}{
		{"one seat", func(c *models.RoomConfig) { c.Seats = c.Seats[:1] }},
		{"zero rounds", func(c *models.RoomConfig) { c.Rounds = 0 }},
		{"zero pick clock", func(c *models.RoomConfig) { c.PickClock = 0 }},
		{"negative grace", func(c *models.RoomConfig) { c.GracePeriod = -time.Second }},
		{"duplicate seat id", func(c *models.RoomConfig) { c.Seats[1].ID = c.Seats[0].ID }},
		{"seat index mismatch", func(c *models.RoomConfig) { c.Seats[1].Index = 5 }},
		{"empty seat id", func(c *models.RoomConfig) { c.Seats[0].ID = "" }},
		{"negative position limit", func(c *models.RoomConfig) { c.PositionLimits = map[string]int{"QB": -1} }},
		{"negative override", func(c *models.RoomConfig) { c.Seats[0].LimitOverrides = map[string]int{"RB": -2} }},
		{"catalog too small", func(c *models.RoomConfig) { c.Rounds = 50 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(4, 3)
			tt.mutate(&cfg)
			_, err := NewRoom(cfg, cat, store.NewMemory(), clock)
			require.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestSeatReadyStartsCountdown(t *testing.T) {
	cat := testCatalog(t, map[string]int{"QB": 10, "RB": 10, "WR": 10, "TE": 10})
	clock := clockwork.NewFakeClock()
	cfg := testConfig(3, 2)
	cfg.Seats[2].IsBot = true

	room, err := NewRoom(cfg, cat, store.NewMemory(), clock)
	require.NoError(t, err)

	started, err := room.SeatReady(0)
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, models.RoomStatusWaiting, room.Snapshot().Status)

	// Seat 2 is a bot and was ready from creation, so seat 1 is the last.
	started, err = room.SeatReady(1)
	require.NoError(t, err)
	assert.True(t, started)
	assert.Equal(t, models.RoomStatusCountdown, room.Snapshot().Status)
}

func TestSeatReadyOutOfRange(t *testing.T) {
	cat := testCatalog(t, map[string]int{"QB": 10, "RB": 10, "WR": 10, "TE": 10})
	room, err := NewRoom(testConfig(2, 2), cat, store.NewMemory(), clockwork.NewFakeClock())
	require.NoError(t, err)
	_, err = room.SeatReady(7)
	require.Error(t, err)
}

func TestAttemptCommitPreconditions(t *testing.T) {
	ctx := context.Background()
	cat := testCatalog(t, map[string]int{"QB": 10, "RB": 10, "WR": 10, "TE": 10})
	clock := clockwork.NewFakeClock()
	cfg := testConfig(4, 3)
	cfg.PositionLimits = map[string]int{"QB": 1}
	room := activeRoom(t, cfg, cat, store.NewMemory(), clock)

	t.Run("wrong pick number is stale", func(t *testing.T) {
		_, err := room.AttemptCommit(ctx, 2, 0, "QB01", models.PickOriginManual)
		require.ErrorIs(t, err, ErrStaleRequest)
	})

	t.Run("wrong seat", func(t *testing.T) {
		_, err := room.AttemptCommit(ctx, 1, 2, "QB01", models.PickOriginManual)
		require.ErrorIs(t, err, ErrWrongTurn)
	})

	t.Run("unknown player", func(t *testing.T) {
		_, err := room.AttemptCommit(ctx, 1, 0, "nope", models.PickOriginManual)
		require.ErrorIs(t, err, ErrPlayerUnavailable)
	})

	t.Run("drafted player unavailable and pick does not advance", func(t *testing.T) {
		_, err := room.AttemptCommit(ctx, 1, 0, "QB01", models.PickOriginManual)
		require.NoError(t, err)
		_, err = room.AttemptCommit(ctx, 2, 1, "QB01", models.PickOriginManual)
		require.ErrorIs(t, err, ErrPlayerUnavailable)
		assert.Equal(t, 2, room.Snapshot().CurrentPick)
	})

	t.Run("roster limit", func(t *testing.T) {
		// Seat 0 already has QB01 and the room caps QB at 1. The snake
		// brings seat 0 back at pick 8.
		for p, pick := range []struct {
			seat   int
			player string
		}{
			{1, "RB01"}, {2, "RB02"}, {3, "RB03"}, {3, "RB04"}, {2, "RB05"}, {1, "RB06"},
		} {
			_, err := room.AttemptCommit(ctx, p+2, pick.seat, pick.player, models.PickOriginManual)
			require.NoError(t, err)
		}
		_, err := room.AttemptCommit(ctx, 8, 0, "QB02", models.PickOriginManual)
		require.ErrorIs(t, err, ErrRosterLimitExceeded)
	})
}

func TestAttemptCommitRaceHasOneWinner(t *testing.T) {
	ctx := context.Background()
	cat := testCatalog(t, map[string]int{"QB": 10, "RB": 10, "WR": 10, "TE": 10})
	room := activeRoom(t, testConfig(4, 2), cat, store.NewMemory(), clockwork.NewFakeClock())

	const contenders = 16
	errs := make([]error, contenders)
	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			player := fmt.Sprintf("RB%02d", i%10+1)
			_, errs[i] = room.AttemptCommit(ctx, 1, 0, player, models.PickOriginManual)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			require.ErrorIs(t, err, ErrStaleRequest)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 2, room.Snapshot().CurrentPick)
}

func TestLastResortMayExceedLimits(t *testing.T) {
	ctx := context.Background()
	cat := testCatalog(t, map[string]int{"QB": 10})
	cfg := testConfig(2, 2)
	cfg.PositionLimits = map[string]int{"QB": 0}
	room := activeRoom(t, cfg, cat, store.NewMemory(), clockwork.NewFakeClock())

	// Manually the cap binds even when nothing else is legal.
	_, err := room.AttemptCommit(ctx, 1, 0, "QB01", models.PickOriginManual)
	require.ErrorIs(t, err, ErrRosterLimitExceeded)

	// The autopick fallback may break the cap because no legal player
	// exists; the draft must not stall.
	pick, err := room.AttemptCommit(ctx, 1, 0, "QB01", models.PickOriginBestAvailable)
	require.NoError(t, err)
	assert.Equal(t, "QB01", pick.PlayerID)
}

func TestAutopickRespectsLimitsWhenLegalPlayersExist(t *testing.T) {
	ctx := context.Background()
	cat := testCatalog(t, map[string]int{"QB": 5, "RB": 5})
	cfg := testConfig(2, 2)
	cfg.PositionLimits = map[string]int{"QB": 0}
	room := activeRoom(t, cfg, cat, store.NewMemory(), clockwork.NewFakeClock())

	// RBs are still legal, so even an automatic pick cannot break the cap.
	_, err := room.AttemptCommit(ctx, 1, 0, "QB01", models.PickOriginBestAvailable)
	require.ErrorIs(t, err, ErrRosterLimitExceeded)
}

func TestDraftRunsToCompletion(t *testing.T) {
	ctx := context.Background()
	cat := testCatalog(t, map[string]int{"QB": 4, "RB": 4})
	clock := clockwork.NewFakeClock()
	st := store.NewMemory()
	cfg := testConfig(2, 2)
	room := activeRoom(t, cfg, cat, st, clock)

	players := []string{"QB01", "QB02", "QB03", "QB04"}
	for p := 1; p <= 4; p++ {
		seat := SeatOnClock(p, 2)
		_, err := room.AttemptCommit(ctx, p, seat, players[p-1], models.PickOriginManual)
		require.NoError(t, err)
	}

	snap := room.Snapshot()
	assert.Equal(t, models.RoomStatusComplete, snap.Status)
	assert.Equal(t, 5, snap.CurrentPick)
	assert.Equal(t, -1, snap.OnClockSeat)
	require.NotNil(t, snap.CompletedAt)
	assert.Len(t, snap.Picks, 4)

	// Snake order: seat 0 got picks 1 and 4, seat 1 got 2 and 3.
	assert.Equal(t, []string{"QB01", "QB04"}, snap.Rosters[0]["QB"])
	assert.Equal(t, []string{"QB02", "QB03"}, snap.Rosters[1]["QB"])

	// Further commits are stale.
	_, err := room.AttemptCommit(ctx, 5, 0, "RB01", models.PickOriginManual)
	require.ErrorIs(t, err, ErrStaleRequest)
}

func TestPauseResume(t *testing.T) {
	ctx := context.Background()
	cat := testCatalog(t, map[string]int{"QB": 10})
	room := activeRoom(t, testConfig(2, 2), cat, store.NewMemory(), clockwork.NewFakeClock())

	require.NoError(t, room.Pause())
	snap := room.Snapshot()
	assert.Equal(t, models.RoomStatusPaused, snap.Status)
	assert.Nil(t, snap.Timer)

	// Commits are rejected while paused.
	_, err := room.AttemptCommit(ctx, 1, 0, "QB01", models.PickOriginManual)
	require.ErrorIs(t, err, ErrStaleRequest)

	require.Error(t, room.Pause(), "double pause")
	require.NoError(t, room.Resume())
	require.Error(t, room.Resume(), "double resume")

	// Same pick back on a fresh clock.
	ts, armed := room.StartPickTimer()
	require.True(t, armed)
	assert.Equal(t, 1, ts.PickNumber)

	_, err = room.AttemptCommit(ctx, 1, 0, "QB01", models.PickOriginManual)
	require.NoError(t, err)
}

func TestMarkExpiredStale(t *testing.T) {
	ctx := context.Background()
	cat := testCatalog(t, map[string]int{"QB": 10})
	room := activeRoom(t, testConfig(2, 2), cat, store.NewMemory(), clockwork.NewFakeClock())

	_, err := room.AttemptCommit(ctx, 1, 0, "QB01", models.PickOriginManual)
	require.NoError(t, err)

	// The timeout for pick 1 fires after the manual commit landed.
	assert.False(t, room.MarkExpired(1))
}

func TestRestoreFromPickLog(t *testing.T) {
	ctx := context.Background()
	cat := testCatalog(t, map[string]int{"QB": 10})
	clock := clockwork.NewFakeClock()
	st := store.NewMemory()
	cfg := testConfig(2, 3)

	original := activeRoom(t, cfg, cat, st, clock)
	for p := 1; p <= 3; p++ {
		seat := SeatOnClock(p, 2)
		_, err := original.AttemptCommit(ctx, p, seat, fmt.Sprintf("QB%02d", p), models.PickOriginManual)
		require.NoError(t, err)
	}

	picks, err := st.Picks(ctx, cfg.ID)
	require.NoError(t, err)

	restored, err := NewRoom(cfg, cat, st, clock)
	require.NoError(t, err)
	require.NoError(t, restored.Restore(picks))

	snap := restored.Snapshot()
	assert.Equal(t, models.RoomStatusPaused, snap.Status, "incomplete log restores paused")
	assert.Equal(t, 4, snap.CurrentPick)
	assert.Len(t, snap.Picks, 3)
	assert.Equal(t, original.Snapshot().Rosters, snap.Rosters)

	// Drafted players stay off the board after restore.
	require.NoError(t, restored.Resume())
	_, err = restored.AttemptCommit(ctx, 4, SeatOnClock(4, 2), "QB02", models.PickOriginManual)
	require.ErrorIs(t, err, ErrPlayerUnavailable)
}

func TestRestoreCompleteLog(t *testing.T) {
	ctx := context.Background()
	cat := testCatalog(t, map[string]int{"QB": 10})
	clock := clockwork.NewFakeClock()
	st := store.NewMemory()
	cfg := testConfig(2, 2)

	original := activeRoom(t, cfg, cat, st, clock)
	for p := 1; p <= 4; p++ {
		_, err := original.AttemptCommit(ctx, p, SeatOnClock(p, 2), fmt.Sprintf("QB%02d", p), models.PickOriginManual)
		require.NoError(t, err)
	}

	picks, err := st.Picks(ctx, cfg.ID)
	require.NoError(t, err)

	restored, err := NewRoom(cfg, cat, st, clock)
	require.NoError(t, err)
	require.NoError(t, restored.Restore(picks))
	assert.Equal(t, models.RoomStatusComplete, restored.Snapshot().Status)
}

func TestRestoreRejectsGappedLog(t *testing.T) {
	cat := testCatalog(t, map[string]int{"QB": 10})
	cfg := testConfig(2, 2)
	room, err := NewRoom(cfg, cat, store.NewMemory(), clockwork.NewFakeClock())
	require.NoError(t, err)

	err = room.Restore([]models.Pick{
		{RoomID: cfg.ID, PickNumber: 1, SeatIndex: 0, PlayerID: "QB01"},
		{RoomID: cfg.ID, PickNumber: 3, SeatIndex: 1, PlayerID: "QB02"},
	})
	require.Error(t, err)
}

func TestSnapshotHidesGraceWindow(t *testing.T) {
	cat := testCatalog(t, map[string]int{"QB": 10})
	room := activeRoom(t, testConfig(2, 2), cat, store.NewMemory(), clockwork.NewFakeClock())

	snap := room.Snapshot()
	require.NotNil(t, snap.Timer)
	require.False(t, snap.Timer.GraceEnd.IsZero(), "grace window still drives timeouts internally")

	raw, err := json.Marshal(snap.Timer)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "deadline")
	assert.NotContains(t, string(raw), "grace_end", "clients only ever see the deadline")
}

func TestSnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	cat := testCatalog(t, map[string]int{"QB": 10})
	room := activeRoom(t, testConfig(2, 2), cat, store.NewMemory(), clockwork.NewFakeClock())

	snap := room.Snapshot()
	snap.Rosters[0]["QB"] = append(snap.Rosters[0]["QB"], "injected")
	snap.Picks = append(snap.Picks, models.Pick{PickNumber: 99})

	_, err := room.AttemptCommit(ctx, 1, 0, "QB01", models.PickOriginManual)
	require.NoError(t, err)
	fresh := room.Snapshot()
	assert.Equal(t, []string{"QB01"}, fresh.Rosters[0]["QB"])
	assert.Len(t, fresh.Picks, 1)
}
