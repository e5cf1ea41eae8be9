package server

import (
	"github.com/diceforbots/diceforbots/internal/protocol"
)

// placementScore converts a final placement into points. Rank 0 is
// the winner; n is the number of seats in the game.
func placementScore(method string, rank, n int) float64 {
	switch method {
	case ScoringEven:
		if n <= 1 {
			return 0
		}
		return float64(n-1-rank) / float64(n-1)
	default: // Scoring531
		switch rank {
		case 0:
			return 5
		case 1:
			return 3
		case 2:
			return 1
		}
		return 0
	}
}

// scoreGames accumulates per-bot scores from completed game records.
// Rankings list seats winner first, so a seat's index is its rank.
func scoreGames(logs []*protocol.GameLog, method string, scale float64) map[string]float64 {
	scores := make(map[string]float64)
	for _, gl := range logs {
		n := gl.BotCount
		for rank, seat := range gl.BotRankings {
			id := gl.BotUUIDs[seat]
			scores[id] += placementScore(method, rank, n) * scale
		}
	}
	return scores
}

// playerScores collapses bot scores to one score per player name. A
// player's score is their best bot's score, unless they entered more
// bots than allowed, in which case they score zero. The returned
// overLimit lists the offending players.
func playerScores(botScores map[string]float64, bots map[string]protocol.BotMetadata, maxBotsPerPlayer int) (scores map[string]float64, overLimit []string) {
	botsByPlayer := make(map[string]int)
	for _, meta := range bots {
		botsByPlayer[meta.Player]++
	}

	scores = make(map[string]float64)
	for id, score := range botScores {
		meta, ok := bots[id]
		if !ok {
			continue
		}
		if botsByPlayer[meta.Player] > maxBotsPerPlayer {
			scores[meta.Player] = 0
			continue
		}
		if cur, ok := scores[meta.Player]; !ok || score > cur {
			scores[meta.Player] = score
		}
	}

	for player, count := range botsByPlayer {
		if count > maxBotsPerPlayer {
			overLimit = append(overLimit, player)
		}
	}
	return scores, overLimit
}
