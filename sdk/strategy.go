package sdk

import (
	"math/rand/v2"

	"github.com/diceforbots/diceforbots/internal/game"
	"github.com/diceforbots/diceforbots/internal/protocol"
)

// ThresholdMove returns a baseline strategy: it estimates how many
// dice plausibly show the bid face and calls when the standing bid
// exceeds that, otherwise it raises minimally. Useful as a starting
// point and as a sparring partner for stronger bots.
func ThresholdMove(rng *rand.Rand) MoveFunc {
	return func(state *protocol.GameState) game.Response {
		total := 0
		for _, n := range state.DiceCounts {
			total += n
		}
		unknown := total - state.Dice.Total()

		bid := game.Bid{Count: state.Bid[0], Face: state.Bid[1]}
		if bid == game.NoBid {
			return openingBid(state, rng)
		}

		expected := float64(countFor(state.Dice, bid.Face, state.WildOnes)) +
			float64(unknown)*chancePerDie(bid.Face, state.WildOnes)
		if float64(bid.Count) > expected+1 {
			return game.Response{ResponseType: game.ResponseCall}
		}

		next := nextBid(bid)
		if next.Count > total {
			return game.Response{ResponseType: game.ResponseCall}
		}
		pair := next.Pair()
		return game.Response{ResponseType: game.ResponseBid, Bid: &pair}
	}
}

// openingBid bids the bot's strongest non-one face at a count its own
// hand alone supports.
func openingBid(state *protocol.GameState, rng *rand.Rand) game.Response {
	bestFace, bestCount := 2+rng.IntN(game.Faces-1), 0
	for face := 2; face <= game.Faces; face++ {
		if n := countFor(state.Dice, face, state.WildOnes); n > bestCount {
			bestFace, bestCount = face, n
		}
	}
	if bestCount < 1 {
		bestCount = 1
	}
	pair := [2]int{bestCount, bestFace}
	return game.Response{ResponseType: game.ResponseBid, Bid: &pair}
}

// countFor counts dice in the hand supporting a bid on face, wilds
// included.
func countFor(hand game.Hand, face int, wildOnes bool) int {
	n := hand[face-1]
	if wildOnes && face != 1 {
		n += hand[0]
	}
	return n
}

// chancePerDie is the probability an unseen die supports the face.
func chancePerDie(face int, wildOnes bool) float64 {
	if wildOnes && face != 1 {
		return 2.0 / float64(game.Faces)
	}
	return 1.0 / float64(game.Faces)
}

// nextBid returns the smallest legal raise over the standing bid.
func nextBid(bid game.Bid) game.Bid {
	if bid.Face < game.Faces {
		return game.Bid{Count: bid.Count, Face: bid.Face + 1}
	}
	return game.Bid{Count: bid.Count + 1, Face: 2}
}
