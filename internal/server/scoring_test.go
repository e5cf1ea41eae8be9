package server

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/diceforbots/diceforbots/internal/protocol"
)

func TestPlacementScore531(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 5.0, placementScore(Scoring531, 0, 6))
	assert.Equal(t, 3.0, placementScore(Scoring531, 1, 6))
	assert.Equal(t, 1.0, placementScore(Scoring531, 2, 6))
	assert.Equal(t, 0.0, placementScore(Scoring531, 3, 6))
	assert.Equal(t, 0.0, placementScore(Scoring531, 5, 6))
}

func TestPlacementScoreEven(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, placementScore(ScoringEven, 0, 4))
	assert.InDelta(t, 2.0/3.0, placementScore(ScoringEven, 1, 4), 1e-9)
	assert.InDelta(t, 1.0/3.0, placementScore(ScoringEven, 2, 4), 1e-9)
	assert.Equal(t, 0.0, placementScore(ScoringEven, 3, 4))
}

func TestScoreGamesAccumulates(t *testing.T) {
	t.Parallel()

	logs := []*protocol.GameLog{
		{
			BotCount:    3,
			BotUUIDs:    []string{"a", "b", "c"},
			BotRankings: []int{1, 0, 2}, // b wins, a second, c third
		},
		{
			BotCount:    2,
			BotUUIDs:    []string{"a", "c"},
			BotRankings: []int{0, 1}, // a wins
		},
	}

	scores := scoreGames(logs, Scoring531, 1)
	assert.Equal(t, 3.0+5.0, scores["a"])
	assert.Equal(t, 5.0, scores["b"])
	assert.Equal(t, 1.0+3.0, scores["c"])

	scaled := scoreGames(logs, Scoring531, 10)
	assert.Equal(t, 80.0, scaled["a"])
}

func TestPlayerScoresBestBot(t *testing.T) {
	t.Parallel()

	bots := map[string]protocol.BotMetadata{
		"a1": {Player: "alice"},
		"a2": {Player: "alice"},
		"b1": {Player: "bob"},
	}
	botScores := map[string]float64{"a1": 3, "a2": 8, "b1": 5}

	scores, overLimit := playerScores(botScores, bots, 3)
	assert.Empty(t, overLimit)
	assert.Equal(t, 8.0, scores["alice"], "player scores their best bot")
	assert.Equal(t, 5.0, scores["bob"])
}

func TestPlayerScoresOverLimit(t *testing.T) {
	t.Parallel()

	bots := map[string]protocol.BotMetadata{
		"a1": {Player: "alice"},
		"a2": {Player: "alice"},
		"b1": {Player: "bob"},
	}
	botScores := map[string]float64{"a1": 3, "a2": 8, "b1": 5}

	scores, overLimit := playerScores(botScores, bots, 1)
	assert.Equal(t, []string{"alice"}, overLimit)
	assert.Equal(t, 0.0, scores["alice"], "over-limit players score zero")
	assert.Equal(t, 5.0, scores["bob"])
}

func TestPlayerScoresIgnoresUnknownBots(t *testing.T) {
	t.Parallel()

	scores, overLimit := playerScores(
		map[string]float64{"ghost": 9},
		map[string]protocol.BotMetadata{},
		3,
	)
	assert.Empty(t, scores)
	assert.Empty(t, overLimit)
}
