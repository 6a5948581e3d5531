package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeatOnClockSnakeOrder(t *testing.T) {
	// 4 seats: round 1 goes 0,1,2,3 and round 2 comes back 3,2,1,0.
	want := []int{0, 1, 2, 3, 3, 2, 1, 0, 0, 1, 2, 3}
	for i, seat := range want {
		assert.Equal(t, seat, SeatOnClock(i+1, 4), "pick %d", i+1)
	}
}

func TestRoundAndSlot(t *testing.T) {
	tests := []struct {
		pick, seats, round, slot int
	}{
		{1, 4, 1, 1},
		{4, 4, 1, 4},
		{5, 4, 2, 1},
		{8, 4, 2, 4},
		{9, 4, 3, 1},
		{13, 12, 2, 1},
		{24, 12, 2, 12},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.round, RoundOf(tt.pick, tt.seats), "round of pick %d with %d seats", tt.pick, tt.seats)
		assert.Equal(t, tt.slot, SlotInRound(tt.pick, tt.seats), "slot of pick %d with %d seats", tt.pick, tt.seats)
	}
}

func TestSeatThreeTurnsTwelveSeats(t *testing.T) {
	// 12 seats, 18 rounds: seat 3 is on the clock at pick 4, then 21, 28, ...
	var got []int
	for p := 1; p <= 12*18; p++ {
		if SeatOnClock(p, 12) == 3 {
			got = append(got, p)
		}
	}
	require.Len(t, got, 18)
	assert.Equal(t, 4, got[0])
	assert.Equal(t, 21, got[1])
	assert.Equal(t, 28, got[2])
	assert.Equal(t, 45, got[3])
}

func TestEverySeatPicksOncePerRound(t *testing.T) {
	for seats := 2; seats <= 20; seats++ {
		for rounds := 1; rounds <= 30; rounds++ {
			counts := make([]int, seats)
			for p := 1; p <= seats*rounds; p++ {
				seat := SeatOnClock(p, seats)
				require.GreaterOrEqual(t, seat, 0)
				require.Less(t, seat, seats)
				counts[seat]++

				round := RoundOf(p, seats)
				slot := SlotInRound(p, seats)
				require.Equal(t, (round-1)*seats+slot, p, "round/slot must reconstruct the pick number")
			}
			for seat, n := range counts {
				require.Equal(t, rounds, n, "seat %d with %d seats, %d rounds", seat, seats, rounds)
			}
		}
	}
}

func TestAdjacentRoundsShareBoundarySeat(t *testing.T) {
	// The last seat of one round opens the next (back-to-back picks).
	for seats := 2; seats <= 16; seats++ {
		for round := 1; round < 10; round++ {
			last := SeatOnClock(round*seats, seats)
			first := SeatOnClock(round*seats+1, seats)
			assert.Equal(t, last, first, "%d seats, boundary of round %d", seats, round)
		}
	}
}
