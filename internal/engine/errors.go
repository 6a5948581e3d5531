package engine

import "errors"

// Commit rejection taxonomy. All four are recoverable by the caller and
// never crash a room; ErrConfiguration is fatal at room creation only.
var (
	// ErrStaleRequest means the pick number is no longer current. Expected
	// under races (a timeout firing after a manual commit, duplicate
	// submissions from multiple devices); callers should discard it.
	ErrStaleRequest = errors.New("pick number is not current")

	// ErrWrongTurn means the seat is not on the clock for that pick.
	ErrWrongTurn = errors.New("seat is not on the clock")

	// ErrPlayerUnavailable means the player has already been drafted.
	ErrPlayerUnavailable = errors.New("player is not available")

	// ErrRosterLimitExceeded means the pick would push a position count
	// past its configured maximum.
	ErrRosterLimitExceeded = errors.New("roster position limit exceeded")

	// ErrConfiguration rejects an invalid room configuration.
	ErrConfiguration = errors.New("invalid room configuration")
)
