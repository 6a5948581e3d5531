package engine

// Snake-order turn math. Picks are 1-based; seats are 0-based. Odd rounds
// run seats 0..N-1, even rounds run N-1..0, so average draft position is
// symmetric across every round pair.

// RoundOf returns the 1-based round of pick p among n seats.
func RoundOf(p, n int) int {
	return (p-1)/n + 1
}

// SlotInRound returns the 1-based position of pick p within its round.
func SlotInRound(p, n int) int {
	return (p-1)%n + 1
}

// SeatOnClock returns the seat index drafting at pick p among n seats.
func SeatOnClock(p, n int) int {
	slot := SlotInRound(p, n)
	if RoundOf(p, n)%2 == 1 {
		return slot - 1
	}
	return n - slot
}
