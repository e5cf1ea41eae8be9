package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Scoring method names.
const (
	Scoring531  = "531"
	ScoringEven = "even"
)

// Config is the resolved runtime configuration for the tournament
// server.
type Config struct {
	BotAddress       string
	BroadcastAddress string
	LogLevel         string

	TourneyPeriod time.Duration // gap between tournament starts
	PrePingGap    time.Duration // proactive ping lead before cycle start
	MoveTimeout   time.Duration // per-move response deadline
	GameBudget    time.Duration // wall-clock budget per game

	DiceCount    int
	DropWildOnes bool

	MinPlayers       int
	MaxPlayers       int
	GamesPerBot      float64
	ScoringMethod    string
	ScoreScale       float64
	MaxBotsPerPlayer int

	Seed int64
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		BotAddress:       ":5555",
		BroadcastAddress: ":5556",
		LogLevel:         "info",
		TourneyPeriod:    60 * time.Second,
		PrePingGap:       5 * time.Second,
		MoveTimeout:      2 * time.Second,
		GameBudget:       2 * time.Minute,
		DiceCount:        5,
		DropWildOnes:     false,
		MinPlayers:       2,
		MaxPlayers:       6,
		GamesPerBot:      3,
		ScoringMethod:    Scoring531,
		ScoreScale:       1,
		MaxBotsPerPlayer: 3,
	}
}

// Validate checks the configuration for values the server cannot run
// with.
func (c Config) Validate() error {
	if c.MinPlayers < 2 {
		return fmt.Errorf("min_players must be at least 2, got %d", c.MinPlayers)
	}
	if c.MaxPlayers < c.MinPlayers {
		return fmt.Errorf("max_players (%d) must be at least min_players (%d)", c.MaxPlayers, c.MinPlayers)
	}
	if c.DiceCount < 1 {
		return fmt.Errorf("dice_count must be positive, got %d", c.DiceCount)
	}
	if c.GamesPerBot <= 0 {
		return fmt.Errorf("games_per_bot must be positive, got %v", c.GamesPerBot)
	}
	if c.MoveTimeout <= 0 {
		return fmt.Errorf("move_timeout must be positive, got %v", c.MoveTimeout)
	}
	if c.GameBudget <= 0 {
		return fmt.Errorf("game_budget must be positive, got %v", c.GameBudget)
	}
	if c.TourneyPeriod <= 0 {
		return fmt.Errorf("tourney_period must be positive, got %v", c.TourneyPeriod)
	}
	if c.PrePingGap <= 0 || c.PrePingGap >= c.TourneyPeriod {
		return fmt.Errorf("pre_ping_gap (%v) must be positive and below the tournament period (%v)", c.PrePingGap, c.TourneyPeriod)
	}
	if c.MaxBotsPerPlayer < 1 {
		return fmt.Errorf("max_bots_per_player must be at least 1, got %d", c.MaxBotsPerPlayer)
	}
	switch c.ScoringMethod {
	case Scoring531, ScoringEven:
	default:
		return fmt.Errorf("unknown scoring method %q", c.ScoringMethod)
	}
	return nil
}

// fileConfig mirrors the HCL layout of the config file.
type fileConfig struct {
	Server     *serverBlock     `hcl:"server,block"`
	Tournament *tournamentBlock `hcl:"tournament,block"`
	Game       *gameBlock       `hcl:"game,block"`
}

type serverBlock struct {
	BotAddress       string `hcl:"bot_address,optional"`
	BroadcastAddress string `hcl:"broadcast_address,optional"`
	LogLevel         string `hcl:"log_level,optional"`
}

type tournamentBlock struct {
	PeriodSeconds    int     `hcl:"period_s,optional"`
	PrePingGapSec    int     `hcl:"pre_ping_gap_s,optional"`
	MoveTimeoutMs    int     `hcl:"move_timeout_ms,optional"`
	GameBudgetSec    int     `hcl:"game_budget_s,optional"`
	MinPlayers       int     `hcl:"min_players,optional"`
	MaxPlayers       int     `hcl:"max_players,optional"`
	GamesPerBot      float64 `hcl:"games_per_bot,optional"`
	Scoring          string  `hcl:"scoring,optional"`
	ScoreScale       float64 `hcl:"score_scale,optional"`
	MaxBotsPerPlayer int     `hcl:"max_bots_per_player,optional"`
}

type gameBlock struct {
	DiceCount    int  `hcl:"dice_count,optional"`
	DropWildOnes bool `hcl:"drop_wild_ones,optional"`
}

// LoadConfig reads an HCL config file and overlays it on the
// defaults. A missing file yields the defaults.
func LoadConfig(filename string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return cfg, nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return Config{}, fmt.Errorf("parse config %s: %s", filename, diags.Error())
	}

	var fc fileConfig
	if diags := gohcl.DecodeBody(file.Body, nil, &fc); diags.HasErrors() {
		return Config{}, fmt.Errorf("decode config %s: %s", filename, diags.Error())
	}

	if s := fc.Server; s != nil {
		if s.BotAddress != "" {
			cfg.BotAddress = s.BotAddress
		}
		if s.BroadcastAddress != "" {
			cfg.BroadcastAddress = s.BroadcastAddress
		}
		if s.LogLevel != "" {
			cfg.LogLevel = s.LogLevel
		}
	}
	if tb := fc.Tournament; tb != nil {
		if tb.PeriodSeconds > 0 {
			cfg.TourneyPeriod = time.Duration(tb.PeriodSeconds) * time.Second
		}
		if tb.PrePingGapSec > 0 {
			cfg.PrePingGap = time.Duration(tb.PrePingGapSec) * time.Second
		}
		if tb.MoveTimeoutMs > 0 {
			cfg.MoveTimeout = time.Duration(tb.MoveTimeoutMs) * time.Millisecond
		}
		if tb.GameBudgetSec > 0 {
			cfg.GameBudget = time.Duration(tb.GameBudgetSec) * time.Second
		}
		if tb.MinPlayers > 0 {
			cfg.MinPlayers = tb.MinPlayers
		}
		if tb.MaxPlayers > 0 {
			cfg.MaxPlayers = tb.MaxPlayers
		}
		if tb.GamesPerBot > 0 {
			cfg.GamesPerBot = tb.GamesPerBot
		}
		if tb.Scoring != "" {
			cfg.ScoringMethod = tb.Scoring
		}
		if tb.ScoreScale > 0 {
			cfg.ScoreScale = tb.ScoreScale
		}
		if tb.MaxBotsPerPlayer > 0 {
			cfg.MaxBotsPerPlayer = tb.MaxBotsPerPlayer
		}
	}
	if g := fc.Game; g != nil {
		if g.DiceCount > 0 {
			cfg.DiceCount = g.DiceCount
		}
		cfg.DropWildOnes = g.DropWildOnes
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", filename, err)
	}
	return cfg, nil
}
