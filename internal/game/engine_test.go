package game

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/diceforbots/diceforbots/internal/randutil"
)

func newTestGame(t *testing.T, players, dice int, dropWilds bool) *Game {
	t.Helper()
	return New(Config{Players: players, DiceCount: dice, DropWilds: dropWilds}, randutil.New(42))
}

func bid(count, face int) *Response {
	return &Response{ResponseType: ResponseBid, Bid: &[2]int{count, face}}
}

func call() *Response {
	return &Response{ResponseType: ResponseCall}
}

func TestSentinelBidAcceptsAnyOpeningBid(t *testing.T) {
	t.Parallel()
	g := newTestGame(t, 3, 5, false)

	require.Equal(t, [2]int{0, 6}, g.View().Bid, "round not started sentinel")
	require.Nil(t, g.ApplyResponse(bid(1, 1)), "any opening bid is legal")
	require.Equal(t, [2]int{1, 1}, g.View().Bid)
	require.Equal(t, 1, g.Turn())
}

func TestBidLegalityOrdering(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		standing *Response
		next     *Response
		want     ResultKind
	}{
		{"lower count", bid(3, 4), bid(2, 6), ErrLowerCount},
		{"equal count equal face", bid(3, 4), bid(3, 4), ErrIncreaseCount},
		{"equal count lower face", bid(3, 4), bid(3, 2), ErrIncreaseCount},
		{"count above dice in play", bid(3, 4), bid(16, 2), ErrOverflow},
		{"face out of range", bid(3, 4), bid(3, 7), ErrBadResponse},
		{"zero count", bid(3, 4), bid(0, 2), ErrBadResponse},
		{"negative count", bid(3, 4), bid(-1, 2), ErrBadResponse},
		{"missing bid", bid(3, 4), &Response{ResponseType: ResponseBid}, ErrBadResponse},
		{"unknown response type", bid(3, 4), &Response{ResponseType: "raise"}, ErrBadResponse},
		{"nil response", bid(3, 4), nil, ErrBadResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := newTestGame(t, 3, 5, false)
			require.Nil(t, g.ApplyResponse(tt.standing))

			record := g.ApplyResponse(tt.next)
			require.NotNil(t, record, "illegal response must end the round")
			require.Equal(t, tt.want, record.Result)
			require.Equal(t, 1, record.LosingPlayer, "offender is charged")
			require.Equal(t, 1, record.CallingPlayer)
		})
	}
}

func TestAcceptedBidsStrictlyIncrease(t *testing.T) {
	t.Parallel()
	g := newTestGame(t, 3, 5, false)

	sequence := []*Response{bid(1, 2), bid(1, 3), bid(2, 2), bid(2, 6), bid(4, 1), bid(4, 5)}
	prev := NoBid
	for _, resp := range sequence {
		require.Nil(t, g.ApplyResponse(resp))
		current := Bid{Count: resp.Bid[0], Face: resp.Bid[1]}
		require.True(t, prev.Less(current), "standing bid must be strictly increasing")
		prev = current
	}

	view := g.View()
	require.Len(t, view.BidHistory, len(sequence))
}

func TestIllegalBidAppearsInRoundHistory(t *testing.T) {
	t.Parallel()
	g := newTestGame(t, 2, 5, false)
	require.Nil(t, g.ApplyResponse(bid(2, 3)))

	record := g.ApplyResponse(bid(1, 6))
	require.NotNil(t, record)
	require.Equal(t, ErrLowerCount, record.Result)
	require.Len(t, record.BidHistory, 2, "the illegal bid is still recorded")
	require.Equal(t, BidEntry{1, 6, 1}, record.BidHistory[1])
}

func TestRoundChargesExactlyOneDie(t *testing.T) {
	t.Parallel()
	g := newTestGame(t, 3, 5, false)
	before := g.DiceCounts()

	require.Nil(t, g.ApplyResponse(bid(2, 3)))
	record := g.ApplyResponse(bid(1, 1))
	require.NotNil(t, record)

	after := g.DiceCounts()
	delta := 0
	for i := range before {
		delta += before[i] - after[i]
		require.GreaterOrEqual(t, before[i], after[i], "die counts never increase")
	}
	require.Equal(t, 1, delta, "exactly one die charged per round")
	require.Equal(t, 4, after[record.LosingPlayer])
}

func TestCallResolutionWithWildOnes(t *testing.T) {
	t.Parallel()

	// Seat 0 holds two 1s, seat 1 holds three 3s. With wild ones the
	// true count for face 3 is 3 + 2 = 5, so a call against (5,3) is
	// wrong and the caller is charged.
	g := New(Config{Players: 2, DiceCount: 3, DropWilds: false}, randutil.New(1))
	g.SetHands([]Hand{{2, 1, 0, 0, 0, 0}, {0, 0, 3, 0, 0, 0}})

	require.Nil(t, g.ApplyResponse(bid(5, 3)))
	require.Equal(t, 5, g.TrueCount(3))

	record := g.ApplyResponse(call())
	require.NotNil(t, record)
	require.Equal(t, BadCall, record.Result)
	require.Equal(t, 1, record.LosingPlayer, "caller loses a die")
	require.Equal(t, 1, record.CallingPlayer)
}

func TestCallAgainstFalseBidChargesLastBidder(t *testing.T) {
	t.Parallel()
	g := New(Config{Players: 2, DiceCount: 3, DropWilds: false}, randutil.New(1))
	g.SetHands([]Hand{{0, 3, 0, 0, 0, 0}, {0, 0, 3, 0, 0, 0}})

	// True count for face 6 is zero, so any positive bid is false.
	require.Nil(t, g.ApplyResponse(bid(2, 6)))
	record := g.ApplyResponse(call())
	require.NotNil(t, record)
	require.Equal(t, GoodCall, record.Result)
	require.Equal(t, 0, record.LosingPlayer, "last bidder loses a die")
	require.Equal(t, 1, record.CallingPlayer)
}

func TestCallOnTiedCountIsBadCall(t *testing.T) {
	t.Parallel()
	g := New(Config{Players: 2, DiceCount: 3, DropWilds: false}, randutil.New(1))
	g.SetHands([]Hand{{0, 0, 2, 1, 0, 0}, {0, 0, 1, 0, 2, 0}})

	// True count for face 3 is exactly 3: a call is only correct when
	// the true count is strictly below the bid.
	require.Nil(t, g.ApplyResponse(bid(3, 3)))
	record := g.ApplyResponse(call())
	require.NotNil(t, record)
	require.Equal(t, BadCall, record.Result)
}

func TestCallWithNoStandingBidChargesCaller(t *testing.T) {
	t.Parallel()
	g := newTestGame(t, 2, 5, false)

	record := g.ApplyResponse(call())
	require.NotNil(t, record)
	require.Equal(t, BadCall, record.Result)
	require.Equal(t, 0, record.LosingPlayer)
}

func TestDropWildsOnOpeningOnesBid(t *testing.T) {
	t.Parallel()
	g := newTestGame(t, 3, 5, true)

	require.True(t, g.View().WildOnes)
	require.Nil(t, g.ApplyResponse(bid(2, 1)))
	require.False(t, g.View().WildOnes, "opening bid of face 1 drops wild ones")

	// A later bid of face 1 in the same round has no further effect,
	// and the flag resets at the next round.
	require.Nil(t, g.ApplyResponse(bid(3, 1)))
	record := g.ApplyResponse(&Response{ResponseType: "junk"})
	require.NotNil(t, record)
	require.True(t, g.View().WildOnes, "wild ones resets each round")
}

func TestNonOpeningOnesBidKeepsWilds(t *testing.T) {
	t.Parallel()
	g := newTestGame(t, 3, 5, true)

	require.Nil(t, g.ApplyResponse(bid(1, 2)))
	require.Nil(t, g.ApplyResponse(bid(2, 1)))
	require.True(t, g.View().WildOnes)
}

func TestTimeoutEndsRound(t *testing.T) {
	t.Parallel()
	g := newTestGame(t, 3, 5, false)
	require.Nil(t, g.ApplyResponse(bid(2, 2)))

	record := g.ApplyTimeout()
	require.NotNil(t, record)
	require.Equal(t, ErrTimeout, record.Result)
	require.Equal(t, 1, record.LosingPlayer)
}

func TestRoundRecordRevealsAllHands(t *testing.T) {
	t.Parallel()
	g := newTestGame(t, 4, 5, false)
	require.Nil(t, g.ApplyResponse(bid(2, 2)))

	record := g.ApplyResponse(call())
	require.NotNil(t, record)
	require.Len(t, record.FaceCounts, 4)
	for _, hand := range record.FaceCounts {
		require.Equal(t, 5, hand.Total())
	}
}

func TestLoserLeadsNextRound(t *testing.T) {
	t.Parallel()
	g := newTestGame(t, 3, 5, false)
	require.Nil(t, g.ApplyResponse(bid(2, 2)))

	record := g.ApplyResponse(bid(1, 1))
	require.NotNil(t, record)
	require.Equal(t, 1, record.LosingPlayer)
	require.Equal(t, 1, g.Turn(), "loser holding dice leads the next round")

	view := g.View()
	require.Equal(t, [2]int{0, 6}, view.Bid, "standing bid resets to sentinel")
	require.Empty(t, view.BidHistory)
	require.Equal(t, 1, view.RoundCount)
}

// TestGameRunsToSingleHolder drives a full game with a trivially
// illegal strategy so every round charges the active participant, and
// checks the terminal invariants along the way.
func TestGameRunsToSingleHolder(t *testing.T) {
	t.Parallel()
	g := newTestGame(t, 4, 3, false)

	prevTotal := 4 * 3
	for rounds := 0; !g.Done(); rounds++ {
		require.Less(t, rounds, 1000, "game must terminate")

		record := g.ApplyResponse(&Response{ResponseType: "junk"})
		require.NotNil(t, record)

		total := 0
		max := 0
		for _, n := range g.DiceCounts() {
			require.GreaterOrEqual(t, n, 0)
			total += n
			if n > max {
				max = n
			}
		}
		require.LessOrEqual(t, total, prevTotal, "dice in play never increase")
		prevTotal = total

		if g.Done() {
			require.Equal(t, max, total, "game ends exactly when one seat holds all dice")
		} else {
			require.Greater(t, g.DiceCounts()[g.Turn()], 0, "active seat always holds dice")
		}
	}

	rankings := g.Rankings()
	require.Len(t, rankings, 4)
	require.Greater(t, g.DiceCounts()[rankings[0]], 0, "winner holds the remaining dice")
	seen := map[int]bool{}
	for _, seat := range rankings {
		require.False(t, seen[seat], "each seat ranked once")
		seen[seat] = true
	}
}

func TestRankingsWinnerFirst(t *testing.T) {
	t.Parallel()
	g := newTestGame(t, 2, 1, false)

	// One die each: a single round decides the game.
	record := g.ApplyResponse(&Response{ResponseType: "junk"})
	require.NotNil(t, record)
	require.True(t, g.Done())
	require.Equal(t, []int{1, 0}, g.Rankings())
}
