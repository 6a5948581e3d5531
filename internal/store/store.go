// Package store persists room configuration, the append-only pick log, and
// per-seat queues. The pick log is the authoritative draft history: rosters
// and the available pool are always derivable from it.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mcdev12/draftroom/internal/models"
)

// ErrDuplicatePick is returned by AppendPick when the pick number (or the
// player) is already present in the room's log. The engine relies on this
// to keep commits exactly-once even across process restarts.
var ErrDuplicatePick = errors.New("store: pick already committed")

// ErrRoomNotFound is returned when a room id is unknown.
var ErrRoomNotFound = errors.New("store: room not found")

// Store is the persistence boundary for one deployment. Implementations
// must make AppendPick atomic with respect to concurrent appends for the
// same pick number.
type Store interface {
	SaveRoom(ctx context.Context, cfg models.RoomConfig) error
	LoadRoom(ctx context.Context, roomID uuid.UUID) (models.RoomConfig, error)
	LoadRooms(ctx context.Context) ([]models.RoomConfig, error)

	AppendPick(ctx context.Context, pick models.Pick) error
	Picks(ctx context.Context, roomID uuid.UUID) ([]models.Pick, error)

	SaveQueue(ctx context.Context, roomID uuid.UUID, seat int, playerIDs []string) error
	Queues(ctx context.Context, roomID uuid.UUID) (map[int][]string, error)
}
