package game

import (
	"fmt"

	rand "math/rand/v2"
)

// Config holds the rule parameters for a single game.
type Config struct {
	Players   int
	DiceCount int  // starting dice per participant
	DropWilds bool // first bid of face 1 disables wild ones for the round
}

// RoundRecord is the immutable snapshot taken when a round ends.
type RoundRecord struct {
	LosingPlayer  int        `json:"losing_player"`
	CallingPlayer int        `json:"calling_player"`
	Result        ResultKind `json:"result"`
	BidHistory    []BidEntry `json:"bid_history"`
	FaceCounts    []Hand     `json:"face_counts"`
}

// View is the per-turn state serialized for the active participant.
// Dice is the active participant's own hand; other hands stay hidden
// until the round-end reveal in RoundHistory.
type View struct {
	Bid          [2]int        `json:"bid"`
	Dice         Hand          `json:"dice"`
	DiceCounts   []int         `json:"dice_counts"`
	PlayerCount  int           `json:"player_count"`
	BotIndex     int           `json:"bot_index"`
	WildOnes     bool          `json:"wild_ones"`
	FirstRound   bool          `json:"first_round"`
	BidHistory   []BidEntry    `json:"bid_history"`
	RoundCount   int           `json:"round_count"`
	RoundHistory []RoundRecord `json:"round_history"`
}

// Game is the authoritative state machine for one dice-bidding game.
// It is purely computational: all I/O, timing and identity mapping
// happen in the server's game runner.
type Game struct {
	cfg        Config
	rng        *rand.Rand
	hands      []Hand
	diceCounts []int
	turn       int
	bid        Bid
	bidHistory []BidEntry
	wildOnes   bool
	firstRound bool
	roundCount int
	rounds     []RoundRecord
	eliminated []int // seat indexes, first eliminated first; winner appended last
	done       bool
}

// New creates a game with every participant holding cfg.DiceCount dice
// and seat 0 to act first.
func New(cfg Config, rng *rand.Rand) *Game {
	g := &Game{
		cfg:        cfg,
		rng:        rng,
		hands:      make([]Hand, cfg.Players),
		diceCounts: make([]int, cfg.Players),
		bid:        NoBid,
		wildOnes:   true,
		firstRound: true,
	}
	for i := range g.diceCounts {
		g.diceCounts[i] = cfg.DiceCount
	}
	g.rollHands()
	return g
}

// Turn returns the seat index of the active participant.
func (g *Game) Turn() int { return g.turn }

// Done reports whether the game has reached its terminal state.
func (g *Game) Done() bool { return g.done }

// RoundCount returns the number of completed rounds.
func (g *Game) RoundCount() int { return g.roundCount }

// Rounds returns the completed round history.
func (g *Game) Rounds() []RoundRecord { return g.rounds }

// DiceCounts returns the remaining die count per seat.
func (g *Game) DiceCounts() []int {
	out := make([]int, len(g.diceCounts))
	copy(out, g.diceCounts)
	return out
}

// View returns the state snapshot to serialize for the active
// participant. Slices are copied so the caller may hold the view
// across later moves.
func (g *Game) View() View {
	return View{
		Bid:          g.bid.Pair(),
		Dice:         g.hands[g.turn],
		DiceCounts:   g.DiceCounts(),
		PlayerCount:  g.cfg.Players,
		BotIndex:     g.turn,
		WildOnes:     g.wildOnes,
		FirstRound:   g.firstRound,
		BidHistory:   append([]BidEntry(nil), g.bidHistory...),
		RoundCount:   g.roundCount,
		RoundHistory: append([]RoundRecord(nil), g.rounds...),
	}
}

// Rankings returns seat indexes ordered by final placement, winner
// first. Only valid once the game is done.
func (g *Game) Rankings() []int {
	out := make([]int, len(g.eliminated))
	for i, seat := range g.eliminated {
		out[len(out)-1-i] = seat
	}
	return out
}

// ApplyTimeout resolves the active participant failing to respond
// within the move timeout. It always ends the round.
func (g *Game) ApplyTimeout() *RoundRecord {
	return g.endRound(ErrTimeout, g.turn, g.turn)
}

// ApplyResponse validates and applies the active participant's
// response. It returns the round record when the response ended the
// round (call, violation) and nil when a legal bid advanced the turn.
func (g *Game) ApplyResponse(resp *Response) *RoundRecord {
	seat := g.turn

	switch {
	case resp == nil:
		return g.endRound(ErrBadResponse, seat, seat)
	case resp.ResponseType == ResponseCall:
		return g.resolveCall(seat)
	case resp.ResponseType != ResponseBid:
		return g.endRound(ErrBadResponse, seat, seat)
	case resp.Bid == nil:
		return g.endRound(ErrBadResponse, seat, seat)
	}

	bid := Bid{Count: resp.Bid[0], Face: resp.Bid[1]}
	if bid.Count <= 0 || bid.Face < 1 || bid.Face > Faces {
		return g.endRound(ErrBadResponse, seat, seat)
	}

	// The very first bid of a round naming face 1 disables wild ones
	// for the rest of the round when configured.
	if g.cfg.DropWilds && len(g.bidHistory) == 0 && bid.Face == 1 {
		g.wildOnes = false
	}

	// Once the turn has wrapped back to an earlier bidder the opening
	// pass of the round is over.
	if len(g.bidHistory) > 0 && g.bidHistory[len(g.bidHistory)-1].Seat() == seat {
		g.firstRound = false
	}

	// Illegal bids still appear in the round's history.
	g.bidHistory = append(g.bidHistory, BidEntry{bid.Count, bid.Face, seat})

	switch {
	case bid.Count < g.bid.Count:
		return g.endRound(ErrLowerCount, seat, seat)
	case bid.Count == g.bid.Count && bid.Face <= g.bid.Face:
		return g.endRound(ErrIncreaseCount, seat, seat)
	case bid.Count > g.totalDice():
		return g.endRound(ErrOverflow, seat, seat)
	}

	g.bid = bid
	g.turn = g.nextEligible(seat + 1)
	return nil
}

// resolveCall reveals all hands and compares the true total for the
// standing bid's face against the bid count. A true total strictly
// below the count makes the call correct and charges the last bidder;
// otherwise the caller is charged.
func (g *Game) resolveCall(caller int) *RoundRecord {
	lastBidder := caller
	if n := len(g.bidHistory); n > 0 {
		lastBidder = g.bidHistory[n-1].Seat()
	}

	if g.TrueCount(g.bid.Face) < g.bid.Count {
		return g.endRound(GoodCall, lastBidder, caller)
	}
	return g.endRound(BadCall, caller, caller)
}

// TrueCount returns the total dice showing face across all hands,
// counting ones toward every other face while wild ones is active.
func (g *Game) TrueCount(face int) int {
	if face < 1 || face > Faces {
		return 0
	}
	total := 0
	for _, h := range g.hands {
		total += h[face-1]
		if g.wildOnes && face != 1 {
			total += h[0]
		}
	}
	return total
}

// endRound charges the losing participant one die, records the round,
// and either terminates the game or resets for the next round.
func (g *Game) endRound(result ResultKind, loser, caller int) *RoundRecord {
	record := RoundRecord{
		LosingPlayer:  loser,
		CallingPlayer: caller,
		Result:        result,
		BidHistory:    g.bidHistory,
		FaceCounts:    append([]Hand(nil), g.hands...),
	}

	g.diceCounts[loser]--
	if g.diceCounts[loser] == 0 {
		g.eliminated = append(g.eliminated, loser)
	}

	g.rounds = append(g.rounds, record)
	g.roundCount++
	g.bid = NoBid
	g.bidHistory = nil
	g.wildOnes = true
	g.firstRound = true

	// One participant holding every remaining die ends the game.
	if g.totalDice() == g.maxDice() {
		g.done = true
		g.eliminated = append(g.eliminated, g.nextEligible(loser))
		return &g.rounds[len(g.rounds)-1]
	}

	// Loser leads the next round; if they were just eliminated the
	// lead passes to the next seat holding dice.
	g.turn = g.nextEligible(loser)
	g.rollHands()
	return &g.rounds[len(g.rounds)-1]
}

// nextEligible finds the first seat at or after from (wrapping) that
// still holds dice. Reaching a full wrap without finding one is an
// invariant violation: the termination check guarantees at least one
// seat holds dice whenever the game continues.
func (g *Game) nextEligible(from int) int {
	seat := from % len(g.diceCounts)
	if seat < 0 {
		seat += len(g.diceCounts)
	}
	for i := 0; i <= len(g.diceCounts); i++ {
		if g.diceCounts[seat] > 0 {
			return seat
		}
		seat = (seat + 1) % len(g.diceCounts)
	}
	panic(fmt.Sprintf("game: no seat holds dice (counts=%v)", g.diceCounts))
}

func (g *Game) totalDice() int {
	total := 0
	for _, n := range g.diceCounts {
		total += n
	}
	return total
}

func (g *Game) maxDice() int {
	max := 0
	for _, n := range g.diceCounts {
		if n > max {
			max = n
		}
	}
	return max
}

func (g *Game) rollHands() {
	for i := range g.hands {
		g.hands[i] = Hand{}
		for range g.diceCounts[i] {
			g.hands[i][g.rng.IntN(Faces)]++
		}
	}
}

// SetHands overrides the current hands. Test hook for deterministic
// call resolution; die counts must match the held totals.
func (g *Game) SetHands(hands []Hand) {
	if len(hands) != len(g.hands) {
		panic("game: hand count mismatch")
	}
	copy(g.hands, hands)
}
