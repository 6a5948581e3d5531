// Package rules validates roster moves against configured position limits.
// Everything here is pure so the same checks can run for manual picks and
// inside autopick candidate filtering.
package rules

import "github.com/mcdev12/draftroom/internal/models"

// Limits maps position to the maximum number of players a roster may hold
// there. A position absent from the map is uncapped.
type Limits map[string]int

// Merge returns base with overrides applied on top. Neither input is
// mutated. A nil overrides map returns base unchanged.
func (l Limits) Merge(overrides map[string]int) Limits {
	if len(overrides) == 0 {
		return l
	}
	merged := make(Limits, len(l)+len(overrides))
	for pos, max := range l {
		merged[pos] = max
	}
	for pos, max := range overrides {
		merged[pos] = max
	}
	return merged
}

// CanAdd reports whether a player at position may be added to roster under
// limits. Configured caps are strict: the current count must be below the
// maximum.
func CanAdd(roster models.Roster, position string, limits Limits) bool {
	max, capped := limits[position]
	if !capped {
		return true
	}
	return roster.Count(position) < max
}

// ForSeat resolves the effective limits for a seat, applying any per-seat
// overrides on top of the room-wide limits.
func ForSeat(room map[string]int, seat models.Seat) Limits {
	return Limits(room).Merge(seat.LimitOverrides)
}
