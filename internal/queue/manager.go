// Package queue holds each seat's ranked wish-list of players, consulted by
// autopick before it falls back to best-available.
package queue

import (
	"fmt"
	"sync"

	"github.com/mcdev12/draftroom/internal/models"
	"github.com/mcdev12/draftroom/internal/rules"
)

// Manager owns the per-seat queues for one room. Queue edits may arrive
// concurrently from multiple devices, so all access is serialized here.
type Manager struct {
	mu     sync.RWMutex
	queues [][]string // seat index -> ordered player ids
}

// NewManager creates queues for seatCount seats, applying any seeds.
func NewManager(seatCount int) *Manager {
	return &Manager{queues: make([][]string, seatCount)}
}

// Seed installs the initial queue for a seat, typically from the room
// creation request.
func (m *Manager) Seed(seat int, playerIDs []string) error {
	return m.Set(seat, playerIDs)
}

// Set replaces a seat's queue with orderedIDs, dropping duplicate entries
// while preserving first occurrence order.
func (m *Manager) Set(seat int, orderedIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if seat < 0 || seat >= len(m.queues) {
		return fmt.Errorf("queue: seat %d out of range", seat)
	}

	seen := make(map[string]bool, len(orderedIDs))
	deduped := make([]string, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		deduped = append(deduped, id)
	}
	m.queues[seat] = deduped
	return nil
}

// Append adds playerID to the end of a seat's queue if not already present.
func (m *Manager) Append(seat int, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if seat < 0 || seat >= len(m.queues) {
		return fmt.Errorf("queue: seat %d out of range", seat)
	}
	for _, id := range m.queues[seat] {
		if id == playerID {
			return nil
		}
	}
	m.queues[seat] = append(m.queues[seat], playerID)
	return nil
}

// Remove deletes playerID from a seat's queue if present.
func (m *Manager) Remove(seat int, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if seat < 0 || seat >= len(m.queues) {
		return fmt.Errorf("queue: seat %d out of range", seat)
	}
	q := m.queues[seat]
	for i, id := range q {
		if id == playerID {
			m.queues[seat] = append(q[:i:i], q[i+1:]...)
			return nil
		}
	}
	return nil
}

// List returns a copy of a seat's queue.
func (m *Manager) List(seat int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if seat < 0 || seat >= len(m.queues) {
		return nil
	}
	out := make([]string, len(m.queues[seat]))
	copy(out, m.queues[seat])
	return out
}

// NextValidCandidate scans a seat's queue in order and returns the first
// player that is still available and legal for the roster under limits.
// The queue is not mutated; drafted entries are removed only via
// DropDrafted once a commit lands. Returns "" if no entry qualifies.
func (m *Manager) NextValidCandidate(seat int, available map[string]models.Player, roster models.Roster, limits rules.Limits) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if seat < 0 || seat >= len(m.queues) {
		return ""
	}
	for _, id := range m.queues[seat] {
		player, ok := available[id]
		if !ok {
			continue
		}
		if !rules.CanAdd(roster, player.Position, limits) {
			continue
		}
		return id
	}
	return ""
}

// DropDrafted removes playerID from every seat's queue. Called after each
// commit so queues never offer a drafted player again.
func (m *Manager) DropDrafted(playerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for seat, q := range m.queues {
		for i, id := range q {
			if id == playerID {
				m.queues[seat] = append(q[:i:i], q[i+1:]...)
				break
			}
		}
	}
}

// Snapshot returns a copy of every seat's queue, for persistence and the
// sync layer.
func (m *Manager) Snapshot() [][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([][]string, len(m.queues))
	for i, q := range m.queues {
		cp := make([]string, len(q))
		copy(cp, q)
		out[i] = cp
	}
	return out
}
