package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/diceforbots/diceforbots/internal/game"
)

func TestDecodeBotFrame(t *testing.T) {
	t.Parallel()

	t.Run("register_bot", func(t *testing.T) {
		t.Parallel()
		data, err := Encode(TypeRegisterBot, BotMetadata{
			Player:  "alice",
			Name:    "raise-machine",
			Version: "1.2",
		})
		require.NoError(t, err)

		frame, err := DecodeBotFrame(data)
		require.NoError(t, err)

		reg, ok := frame.(RegisterBot)
		require.True(t, ok)
		require.Equal(t, "alice", reg.Metadata.Player)
		require.Equal(t, "raise-machine", reg.Metadata.Name)
	})

	t.Run("ping", func(t *testing.T) {
		t.Parallel()
		data, err := Encode(TypePing, nil)
		require.NoError(t, err)

		frame, err := DecodeBotFrame(data)
		require.NoError(t, err)
		require.IsType(t, Ping{}, frame)
	})

	t.Run("move keeps response payload raw", func(t *testing.T) {
		t.Parallel()
		// The inner payload is garbage on purpose: envelope decoding
		// must succeed so the runner can charge the offending bot.
		data := []byte(`{"type":"move","data":{"game_uuid":"g1","response":{"response_type":42}}}`)

		frame, err := DecodeBotFrame(data)
		require.NoError(t, err)

		move, ok := frame.(Move)
		require.True(t, ok)
		require.Equal(t, "g1", move.GameUUID)

		var resp game.Response
		require.Error(t, json.Unmarshal(move.Response, &resp))
	})

	t.Run("unknown type is a recoverable error", func(t *testing.T) {
		t.Parallel()
		_, err := DecodeBotFrame([]byte(`{"type":"teleport","data":{}}`))
		require.ErrorIs(t, err, ErrUnknownMessageType)
	})
}

func TestGameStateWireShape(t *testing.T) {
	t.Parallel()

	state := GameState{
		GameUUID: "game-1",
		View: game.View{
			Bid:         [2]int{4, 5},
			Dice:        game.Hand{1, 2, 0, 0, 1, 1},
			DiceCounts:  []int{2, 4, 3, 5},
			PlayerCount: 4,
			BotIndex:    3,
			WildOnes:    true,
			BidHistory:  []game.BidEntry{{1, 4, 0}, {2, 2, 1}, {4, 5, 2}},
			RoundCount:  6,
		},
	}

	data, err := Encode(TypeGameState, state)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "game_state", decoded["type"])

	payload, ok := decoded["data"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{
		"game_uuid", "bid", "dice", "dice_counts", "player_count",
		"bot_index", "wild_ones", "bid_history", "round_count",
	} {
		require.Contains(t, payload, key)
	}
}

func TestGameLogWireShape(t *testing.T) {
	t.Parallel()

	log := GameLog{
		GameHistory: [][]game.RoundRecord{{
			{
				LosingPlayer:  0,
				CallingPlayer: 1,
				Result:        game.GoodCall,
				BidHistory:    []game.BidEntry{{1, 2, 0}, {2, 2, 1}},
				FaceCounts:    []game.Hand{{0, 3, 0, 0, 0, 0}, {1, 0, 2, 0, 1, 0}},
			},
		}},
		BotRankings:  []int{1, 0},
		BotCount:     2,
		DiceCount:    5,
		WildOnesDrop: true,
		BotUUIDs:     []string{"a", "b"},
		GameUUID:     "game-1",
		TourneyUUID:  "tourney-1",
		StartTime:    "2026-08-29 10:00:00",
		EndTime:      "2026-08-29 10:00:04",
		PingAvgMS:    []float64{3.5, 8.1},
		PingMaxMS:    []float64{9.0, 20.2},
	}

	data, err := json.Marshal(log)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{
		"game_history", "bot_rankings", "bot_count", "dice_count",
		"wild_ones_drop", "bot_uuids", "game_uuid", "tourney_uuid",
		"start_time", "end_time", "ping_averages_mS", "ping_maximums_mS",
	} {
		require.Contains(t, decoded, key)
	}
}
