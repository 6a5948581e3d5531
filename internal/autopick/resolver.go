// Package autopick selects a player on behalf of a seat that ran out the
// clock (or is bot-controlled). Selection is deterministic so timeouts are
// reproducible: given the same pool and roster, the same player comes back.
package autopick

import (
	"errors"

	"github.com/mcdev12/draftroom/internal/catalog"
	"github.com/mcdev12/draftroom/internal/models"
	"github.com/mcdev12/draftroom/internal/queue"
	"github.com/mcdev12/draftroom/internal/rules"
	"github.com/rs/zerolog/log"
)

// ErrPoolEmpty is returned only when there are no available players at all,
// which a correctly sized room never reaches.
var ErrPoolEmpty = errors.New("autopick: no available players")

// Resolver picks for a seat in three tiers: the seat's queue, then the
// best-available player the roster can legally take, then best-available
// outright so a pathological limit configuration can never stall the draft.
type Resolver struct {
	catalog catalog.Catalog
	queues  *queue.Manager
}

// NewResolver creates a Resolver over the room's catalog and queues.
func NewResolver(cat catalog.Catalog, queues *queue.Manager) *Resolver {
	return &Resolver{catalog: cat, queues: queues}
}

// Resolve returns the player to draft for seat and the origin tag to commit
// with. The available map and roster must be a consistent snapshot taken by
// the caller; Resolve itself has no side effects.
func (r *Resolver) Resolve(seat int, available map[string]models.Player, roster models.Roster, limits rules.Limits) (string, models.PickOrigin, error) {
	if id := r.queues.NextValidCandidate(seat, available, roster, limits); id != "" {
		return id, models.PickOriginQueue, nil
	}

	// catalog.All is ordered by (rank asc, id asc), which fixes the
	// tie-break: lowest id wins among equal ranks.
	var fallback string
	for _, p := range r.catalog.All() {
		if _, ok := available[p.ID]; !ok {
			continue
		}
		if fallback == "" {
			fallback = p.ID
		}
		if rules.CanAdd(roster, p.Position, limits) {
			return p.ID, models.PickOriginBestAvailable, nil
		}
	}

	if fallback != "" {
		log.Warn().
			Int("seat", seat).
			Str("player_id", fallback).
			Msg("no player satisfies position limits, taking best available regardless")
		return fallback, models.PickOriginBestAvailable, nil
	}

	return "", "", ErrPoolEmpty
}
