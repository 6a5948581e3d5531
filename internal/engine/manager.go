package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/internal/autopick"
	"github.com/mcdev12/draftroom/internal/catalog"
	"github.com/mcdev12/draftroom/internal/eventbus"
	"github.com/mcdev12/draftroom/internal/models"
	"github.com/mcdev12/draftroom/internal/store"
	"github.com/rs/zerolog/log"
)

// Manager owns every live room in the process: it creates rooms, runs one
// runner goroutine per room, routes client operations to the right room,
// and restores rooms from the store on boot.
type Manager struct {
	cat   catalog.Catalog
	st    store.Store
	bus   eventbus.Bus
	clock clockwork.Clock

	mu    sync.RWMutex
	rooms map[string]*roomHandle

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type roomHandle struct {
	room   *Room
	runner *Runner
}

// RoomSummary is the list-view projection of a room.
type RoomSummary struct {
	RoomID      string            `json:"room_id"`
	Status      models.RoomStatus `json:"status"`
	CurrentPick int               `json:"current_pick"`
	TotalPicks  int               `json:"total_picks"`
	SeatCount   int               `json:"seat_count"`
}

// NewManager creates a manager with no rooms.
func NewManager(cat catalog.Catalog, st store.Store, bus eventbus.Bus, clock clockwork.Clock) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cat:    cat,
		st:     st,
		bus:    bus,
		clock:  clock,
		rooms:  make(map[string]*roomHandle),
		runCtx: ctx,
		cancel: cancel,
	}
}

// CreateRoom validates cfg, persists it, and starts the room's runner. A
// zero cfg.ID gets a fresh one assigned; an explicit id must not collide
// with a stored room.
func (m *Manager) CreateRoom(ctx context.Context, cfg models.RoomConfig) (*Room, error) {
	if cfg.ID == uuid.Nil {
		cfg.ID = uuid.New()
	} else if _, err := m.st.LoadRoom(ctx, cfg.ID); err == nil {
		return nil, fmt.Errorf("room %s already exists", cfg.ID)
	} else if !errors.Is(err, store.ErrRoomNotFound) {
		return nil, fmt.Errorf("check room id: %w", err)
	}
	if cfg.CreatedAt.IsZero() {
		cfg.CreatedAt = m.clock.Now()
	}

	room, err := NewRoom(cfg, m.cat, m.st, m.clock)
	if err != nil {
		return nil, err
	}
	if err := m.st.SaveRoom(ctx, cfg); err != nil {
		return nil, fmt.Errorf("save room: %w", err)
	}

	m.register(room, true)
	log.Info().Str("room_id", room.ID()).Int("seats", cfg.SeatCount()).Int("rounds", cfg.Rounds).Msg("room created")
	return room, nil
}

// register adds the room and, if runnable, starts its runner goroutine.
// Completed rooms are registered for snapshot access only.
func (m *Manager) register(room *Room, run bool) {
	resolver := autopick.NewResolver(m.cat, room.Queues())
	h := &roomHandle{
		room:   room,
		runner: NewRunner(room, resolver, m.bus, m.clock),
	}

	m.mu.Lock()
	m.rooms[room.ID()] = h
	m.mu.Unlock()

	if !run {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := h.runner.Run(m.runCtx); err != nil && m.runCtx.Err() == nil {
			log.Error().Err(err).Str("room_id", room.ID()).Msg("room runner exited")
		}
	}()
}

func (m *Manager) handle(roomID string) (*roomHandle, error) {
	m.mu.RLock()
	h, ok := m.rooms[roomID]
	m.mu.RUnlock()
	if !ok {
		return nil, store.ErrRoomNotFound
	}
	return h, nil
}

// Snapshot returns a consistent full-state snapshot for roomID.
func (m *Manager) Snapshot(roomID string) (Snapshot, error) {
	h, err := m.handle(roomID)
	if err != nil {
		return Snapshot{}, err
	}
	return h.room.Snapshot(), nil
}

// ListRooms summarizes every registered room.
func (m *Manager) ListRooms() []RoomSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]RoomSummary, 0, len(m.rooms))
	for _, h := range m.rooms {
		v := h.room.inspect()
		out = append(out, RoomSummary{
			RoomID:      h.room.ID(),
			Status:      v.status,
			CurrentPick: v.currentPick,
			TotalPicks:  v.totalPicks,
			SeatCount:   h.room.Config().SeatCount(),
		})
	}
	return out
}

// SubmitPick routes a manual pick to the room's arbiter.
func (m *Manager) SubmitPick(ctx context.Context, roomID string, pickNumber, seatIndex int, playerID string) (models.Pick, error) {
	h, err := m.handle(roomID)
	if err != nil {
		return models.Pick{}, err
	}
	return h.runner.CommitManual(ctx, pickNumber, seatIndex, playerID)
}

// UpdateQueue replaces a seat's queue and persists it.
func (m *Manager) UpdateQueue(ctx context.Context, roomID string, seatIndex int, playerIDs []string) error {
	h, err := m.handle(roomID)
	if err != nil {
		return err
	}
	if err := h.room.Queues().Set(seatIndex, playerIDs); err != nil {
		return err
	}
	return m.saveQueue(ctx, h, seatIndex)
}

// AppendToQueue adds one player to the end of a seat's queue and persists
// the result.
func (m *Manager) AppendToQueue(ctx context.Context, roomID string, seatIndex int, playerID string) error {
	h, err := m.handle(roomID)
	if err != nil {
		return err
	}
	if err := h.room.Queues().Append(seatIndex, playerID); err != nil {
		return err
	}
	return m.saveQueue(ctx, h, seatIndex)
}

// RemoveFromQueue deletes one player from a seat's queue and persists the
// result.
func (m *Manager) RemoveFromQueue(ctx context.Context, roomID string, seatIndex int, playerID string) error {
	h, err := m.handle(roomID)
	if err != nil {
		return err
	}
	if err := h.room.Queues().Remove(seatIndex, playerID); err != nil {
		return err
	}
	return m.saveQueue(ctx, h, seatIndex)
}

func (m *Manager) saveQueue(ctx context.Context, h *roomHandle, seatIndex int) error {
	if err := m.st.SaveQueue(ctx, h.room.Config().ID, seatIndex, h.room.Queues().List(seatIndex)); err != nil {
		return fmt.Errorf("save queue: %w", err)
	}
	return nil
}

// SetReady marks a seat ready; the countdown starts once all seats are.
func (m *Manager) SetReady(ctx context.Context, roomID string, seatIndex int) error {
	h, err := m.handle(roomID)
	if err != nil {
		return err
	}
	started, err := h.room.SeatReady(seatIndex)
	if err != nil {
		return err
	}
	if started {
		h.runner.Wake()
	}
	return nil
}

// Pause halts an active room.
func (m *Manager) Pause(ctx context.Context, roomID, reason string) error {
	h, err := m.handle(roomID)
	if err != nil {
		return err
	}
	return h.runner.Pause(ctx, reason)
}

// Resume reactivates a paused room with a fresh clock on the current pick.
func (m *Manager) Resume(ctx context.Context, roomID string) error {
	h, err := m.handle(roomID)
	if err != nil {
		return err
	}
	return h.runner.Resume(ctx)
}

// RestoreRooms reloads every stored room, replays its pick log, and starts
// runners for the ones that are not finished. Restored in-progress rooms
// come back Paused and need an explicit Resume.
func (m *Manager) RestoreRooms(ctx context.Context) error {
	configs, err := m.st.LoadRooms(ctx)
	if err != nil {
		return fmt.Errorf("load rooms: %w", err)
	}

	for _, cfg := range configs {
		room, err := NewRoom(cfg, m.cat, m.st, m.clock)
		if err != nil {
			log.Error().Err(err).Str("room_id", cfg.ID.String()).Msg("skipping unrestorable room")
			continue
		}
		picks, err := m.st.Picks(ctx, cfg.ID)
		if err != nil {
			return fmt.Errorf("load picks for room %s: %w", cfg.ID, err)
		}
		if err := room.Restore(picks); err != nil {
			log.Error().Err(err).Str("room_id", cfg.ID.String()).Msg("skipping room with corrupt pick log")
			continue
		}
		queues, err := m.st.Queues(ctx, cfg.ID)
		if err != nil {
			return fmt.Errorf("load queues for room %s: %w", cfg.ID, err)
		}
		for seat, ids := range queues {
			if err := room.Queues().Set(seat, ids); err != nil {
				log.Warn().Err(err).Str("room_id", cfg.ID.String()).Int("seat", seat).Msg("dropping unrestorable queue")
			}
		}

		complete := room.Snapshot().Status == models.RoomStatusComplete
		m.register(room, !complete)
		log.Info().Str("room_id", room.ID()).Int("picks_replayed", len(picks)).Bool("complete", complete).Msg("room restored")
	}
	return nil
}

// Shutdown stops every runner and waits for them to exit.
func (m *Manager) Shutdown() {
	m.cancel()
	m.wg.Wait()
}
