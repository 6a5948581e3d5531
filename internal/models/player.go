package models

// Player is read-only reference data from the external catalog.
type Player struct {
	ID       string  `json:"id"`
	Name     string  `json:"name,omitempty"`
	Position string  `json:"position"`
	Rank     float64 `json:"rank"` // ADP-style value, lower is better
}
