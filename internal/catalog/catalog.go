package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/mcdev12/draftroom/internal/models"
)

// Catalog is the read-only player reference data consumed by the engine.
// Implementations must be safe for concurrent reads and static for the
// duration of a draft.
type Catalog interface {
	Player(id string) (models.Player, bool)
	All() []models.Player
}

// Static is an in-memory Catalog backed by a fixed player list.
type Static struct {
	byID    map[string]models.Player
	ordered []models.Player // sorted by (rank asc, id asc)
}

// NewStatic builds a Static catalog from players, validating uniqueness.
func NewStatic(players []models.Player) (*Static, error) {
	byID := make(map[string]models.Player, len(players))
	for _, p := range players {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog player with empty id")
		}
		if p.Position == "" {
			return nil, fmt.Errorf("catalog player %s has empty position", p.ID)
		}
		if _, dup := byID[p.ID]; dup {
			return nil, fmt.Errorf("catalog player %s listed twice", p.ID)
		}
		byID[p.ID] = p
	}

	ordered := make([]models.Player, len(players))
	copy(ordered, players)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Rank != ordered[j].Rank {
			return ordered[i].Rank < ordered[j].Rank
		}
		return ordered[i].ID < ordered[j].ID
	})

	return &Static{byID: byID, ordered: ordered}, nil
}

// LoadFile reads a JSON array of players from path.
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var players []models.Player
	if err := json.Unmarshal(data, &players); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}

	return NewStatic(players)
}

// Player returns the player with the given id.
func (s *Static) Player(id string) (models.Player, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// All returns every player ordered by (rank asc, id asc). Callers must not
// mutate the returned slice.
func (s *Static) All() []models.Player {
	return s.ordered
}

// Size returns the number of players in the catalog.
func (s *Static) Size() int { return len(s.byID) }
