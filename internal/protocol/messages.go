// Package protocol defines the wire contract between bots, the
// tournament server and broadcast subscribers. Frames are JSON
// envelopes of the form {"type": ..., "data": ...}; the GameLog and
// TourneyLog shapes are the published records external log tooling
// consumes and must stay stable.
package protocol

import (
	"encoding/json"

	"github.com/diceforbots/diceforbots/internal/game"
)

// MessageType identifies the type of a frame.
type MessageType string

const (
	// Bot -> Server
	TypeRegisterBot MessageType = "register_bot"
	TypePing        MessageType = "ping"
	TypeMove        MessageType = "move"

	// Server -> Bot
	TypeGameState MessageType = "game_state"
	TypePrint     MessageType = "print"

	// Broadcast stream (register_bot is reused for registrations)
	TypeGameLog    MessageType = "game_log"
	TypeTourneyLog MessageType = "tourney_log"
)

// TimeLayout is the timestamp format used in published records.
const TimeLayout = "2006-01-02 15:04:05"

// Message is the envelope every frame travels in.
type Message struct {
	Type MessageType     `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// BotMetadata is the self-declared identity a bot registers with.
type BotMetadata struct {
	Player           string `json:"player"`
	Name             string `json:"name"`
	Version          string `json:"version"`
	Stateless        bool   `json:"stateless"`
	SoftwareEngineer bool   `json:"software_engineer"`
	MachineLearning  bool   `json:"machine_learning"`
	Internet         bool   `json:"internet"`
	SessionUUID      string `json:"session_uuid,omitempty"`
	FullTitle        string `json:"full_title,omitempty"`
}

// Move carries a bot's response for one in-flight game. The response
// payload stays raw here: the game runner decodes it and charges the
// bot when it does not parse.
type Move struct {
	GameUUID string          `json:"game_uuid"`
	Response json.RawMessage `json:"response"`
}

// GameState is the per-turn view sent to the active participant.
type GameState struct {
	GameUUID string `json:"game_uuid"`
	game.View
}

// Print is a human-readable notice to a bot.
type Print struct {
	Text string `json:"text"`
}

// GameLog is the published record of one completed game.
//
// GameHistory nests the round list inside a single-element list; the
// downstream log tooling expects that wrapping.
type GameLog struct {
	GameHistory  [][]game.RoundRecord `json:"game_history"`
	BotRankings  []int                `json:"bot_rankings"`
	BotCount     int                  `json:"bot_count"`
	DiceCount    int                  `json:"dice_count"`
	WildOnesDrop bool                 `json:"wild_ones_drop"`
	BotUUIDs     []string             `json:"bot_uuids"`
	GameUUID     string               `json:"game_uuid"`
	TourneyUUID  string               `json:"tourney_uuid"`
	StartTime    string               `json:"start_time"`
	EndTime      string               `json:"end_time"`
	PingAvgMS    []float64            `json:"ping_averages_mS"`
	PingMaxMS    []float64            `json:"ping_maximums_mS"`
}

// TourneyLog is the aggregated record of one tournament cycle.
type TourneyLog struct {
	TourneyUUID   string                 `json:"tourney_uuid"`
	TourneyIndex  int                    `json:"tourney_index"`
	StartTime     string                 `json:"start_time"`
	EndTime       string                 `json:"end_time"`
	Bots          map[string]BotMetadata `json:"bots"` // session uuid -> metadata
	GameUUIDs     []string               `json:"game_uuids"`
	ScoringMethod string                 `json:"scoring_method"`
	BotScores     map[string]float64     `json:"bot_scores"`    // session uuid -> score
	PlayerScores  map[string]float64     `json:"player_scores"` // player name -> score
}

// BotFrame is the closed set of frames a bot may send. Decoding
// returns one of RegisterBot, Ping or Move so handling stays
// exhaustive at compile time.
type BotFrame interface{ botFrame() }

// RegisterBot is the registration/liveness frame.
type RegisterBot struct {
	Metadata BotMetadata
}

// Ping is a bare liveness frame, valid in both directions.
type Ping struct{}

func (RegisterBot) botFrame() {}
func (Ping) botFrame()        {}
func (Move) botFrame()        {}
