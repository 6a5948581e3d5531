package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/internal/models"
)

// Memory is an in-process Store. It is the default for single-node
// deployments and the test double everywhere else.
type Memory struct {
	mu     sync.Mutex
	rooms  map[uuid.UUID]models.RoomConfig
	picks  map[uuid.UUID][]models.Pick
	byNum  map[uuid.UUID]map[int]bool
	byPlay map[uuid.UUID]map[string]bool
	queues map[uuid.UUID]map[int][]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		rooms:  make(map[uuid.UUID]models.RoomConfig),
		picks:  make(map[uuid.UUID][]models.Pick),
		byNum:  make(map[uuid.UUID]map[int]bool),
		byPlay: make(map[uuid.UUID]map[string]bool),
		queues: make(map[uuid.UUID]map[int][]string),
	}
}

func (m *Memory) SaveRoom(ctx context.Context, cfg models.RoomConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[cfg.ID] = cfg
	return nil
}

func (m *Memory) LoadRoom(ctx context.Context, roomID uuid.UUID) (models.RoomConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.rooms[roomID]
	if !ok {
		return models.RoomConfig{}, ErrRoomNotFound
	}
	return cfg, nil
}

func (m *Memory) LoadRooms(ctx context.Context) ([]models.RoomConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.RoomConfig, 0, len(m.rooms))
	for _, cfg := range m.rooms {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) AppendPick(ctx context.Context, pick models.Pick) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	nums := m.byNum[pick.RoomID]
	if nums == nil {
		nums = make(map[int]bool)
		m.byNum[pick.RoomID] = nums
	}
	players := m.byPlay[pick.RoomID]
	if players == nil {
		players = make(map[string]bool)
		m.byPlay[pick.RoomID] = players
	}

	if nums[pick.PickNumber] || players[pick.PlayerID] {
		return ErrDuplicatePick
	}

	nums[pick.PickNumber] = true
	players[pick.PlayerID] = true
	m.picks[pick.RoomID] = append(m.picks[pick.RoomID], pick)
	return nil
}

func (m *Memory) Picks(ctx context.Context, roomID uuid.UUID) ([]models.Pick, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	picks := m.picks[roomID]
	out := make([]models.Pick, len(picks))
	copy(out, picks)
	sort.Slice(out, func(i, j int) bool { return out[i].PickNumber < out[j].PickNumber })
	return out, nil
}

func (m *Memory) SaveQueue(ctx context.Context, roomID uuid.UUID, seat int, playerIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seats := m.queues[roomID]
	if seats == nil {
		seats = make(map[int][]string)
		m.queues[roomID] = seats
	}
	cp := make([]string, len(playerIDs))
	copy(cp, playerIDs)
	seats[seat] = cp
	return nil
}

func (m *Memory) Queues(ctx context.Context, roomID uuid.UUID) (map[int][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[int][]string, len(m.queues[roomID]))
	for seat, ids := range m.queues[roomID] {
		cp := make([]string, len(ids))
		copy(cp, ids)
		out[seat] = cp
	}
	return out, nil
}
