package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"github.com/diceforbots/diceforbots/internal/game"
	"github.com/diceforbots/diceforbots/internal/protocol"
)

// Seat binds one game seat to a registered bot.
type Seat struct {
	BotID    string
	Metadata protocol.BotMetadata
}

// RunnerConfig carries the per-game parameters a runner needs.
type RunnerConfig struct {
	GameUUID    string
	TourneyUUID string
	MoveTimeout time.Duration
	GameBudget  time.Duration
	DiceCount   int
	DropWilds   bool
}

// GameRunner drives a single game to completion: it requests a move
// from the seat on turn, enforces the move timeout, tracks response
// latency and produces the published game record.
type GameRunner struct {
	cfg       RunnerConfig
	seats     []Seat
	g         *game.Game
	transport GameTransport
	moves     <-chan MoveEnvelope
	clock     quartz.Clock
	logger    zerolog.Logger

	latTotal []time.Duration
	latMax   []time.Duration
	latCount []int
}

// NewGameRunner creates a runner for one game over an already-opened
// move channel.
func NewGameRunner(cfg RunnerConfig, seats []Seat, g *game.Game, transport GameTransport, moves <-chan MoveEnvelope, clock quartz.Clock, logger zerolog.Logger) *GameRunner {
	return &GameRunner{
		cfg:       cfg,
		seats:     seats,
		g:         g,
		transport: transport,
		moves:     moves,
		clock:     clock,
		logger: logger.With().
			Str("component", "runner").
			Str("game_uuid", cfg.GameUUID).
			Logger(),
		latTotal: make([]time.Duration, len(seats)),
		latMax:   make([]time.Duration, len(seats)),
		latCount: make([]int, len(seats)),
	}
}

// Run plays the game to completion and returns its record. It returns
// nil when the game was aborted, either by context cancellation or by
// running past its wall-clock budget; aborted games publish nothing.
func (r *GameRunner) Run(ctx context.Context) *protocol.GameLog {
	start := r.clock.Now()
	r.logger.Info().Int("bot_count", len(r.seats)).Msg("Game started")

	for !r.g.Done() {
		if r.clock.Since(start) > r.cfg.GameBudget {
			r.logger.Warn().
				Dur("budget", r.cfg.GameBudget).
				Int("round_count", r.g.RoundCount()).
				Msg("Game exceeded time budget, aborting")
			return nil
		}
		if err := r.playTurn(ctx); err != nil {
			r.logger.Warn().Err(err).Msg("Game aborted")
			return nil
		}
	}

	end := r.clock.Now()
	log := r.buildLog(start, end)
	r.logger.Info().
		Int("round_count", r.g.RoundCount()).
		Ints("bot_rankings", log.BotRankings).
		Msg("Game finished")
	return log
}

// playTurn requests one move from the seat on turn and applies the
// outcome. Moves from other seats are discarded without consuming the
// timeout.
func (r *GameRunner) playTurn(ctx context.Context) error {
	seat := r.g.Turn()
	botID := r.seats[seat].BotID

	state := protocol.GameState{GameUUID: r.cfg.GameUUID, View: r.g.View()}
	if err := r.transport.SendToBot(botID, protocol.TypeGameState, state); err != nil {
		// The seat stays charged on timeout, keeping a crashed bot
		// from stalling the game.
		r.logger.Debug().Err(err).Str("bot_id", botID).Msg("Failed to deliver game state")
	}

	asked := r.clock.Now()
	timer := r.clock.NewTimer(r.cfg.MoveTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timer.C:
			r.recordLatency(seat, r.cfg.MoveTimeout)
			rec := r.g.ApplyTimeout()
			r.logger.Debug().
				Str("bot_id", botID).
				Int("seat", seat).
				Msg("Move timed out")
			r.notifyViolation(rec)
			return nil

		case env, ok := <-r.moves:
			if !ok {
				return fmt.Errorf("move channel closed")
			}
			if env.BotID != botID {
				r.logger.Debug().
					Str("bot_id", env.BotID).
					Str("expected", botID).
					Msg("Move from bot not on turn, ignoring")
				continue
			}
			r.recordLatency(seat, r.clock.Since(asked))
			rec := r.g.ApplyResponse(parseResponse(env.Move.Response))
			r.notifyViolation(rec)
			return nil
		}
	}
}

// parseResponse decodes a raw response payload. Anything that does not
// parse becomes a nil response, which the engine charges as a bad
// response.
func parseResponse(raw json.RawMessage) *game.Response {
	if len(raw) == 0 {
		return nil
	}
	var resp game.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil
	}
	return &resp
}

// notifyViolation tells the charged bot why it lost a die. Delivery is
// best effort; the game moves on regardless.
func (r *GameRunner) notifyViolation(rec *game.RoundRecord) {
	if rec == nil || !rec.Result.Violation() {
		return
	}
	botID := r.seats[rec.LosingPlayer].BotID
	notice := protocol.Print{
		Text: fmt.Sprintf("You lost a die in game %s: %s", r.cfg.GameUUID, rec.Result),
	}
	if err := r.transport.SendToBot(botID, protocol.TypePrint, notice); err != nil {
		r.logger.Debug().Err(err).Str("bot_id", botID).Msg("Failed to deliver violation notice")
	}
}

func (r *GameRunner) recordLatency(seat int, d time.Duration) {
	r.latTotal[seat] += d
	if d > r.latMax[seat] {
		r.latMax[seat] = d
	}
	r.latCount[seat]++
}

func (r *GameRunner) buildLog(start, end time.Time) *protocol.GameLog {
	uuids := make([]string, len(r.seats))
	avgMS := make([]float64, len(r.seats))
	maxMS := make([]float64, len(r.seats))
	for i, seat := range r.seats {
		uuids[i] = seat.BotID
		if r.latCount[i] > 0 {
			avgMS[i] = float64(r.latTotal[i].Milliseconds()) / float64(r.latCount[i])
		}
		maxMS[i] = float64(r.latMax[i].Milliseconds())
	}

	return &protocol.GameLog{
		GameHistory:  [][]game.RoundRecord{r.g.Rounds()},
		BotRankings:  r.g.Rankings(),
		BotCount:     len(r.seats),
		DiceCount:    r.cfg.DiceCount,
		WildOnesDrop: r.cfg.DropWilds,
		BotUUIDs:     uuids,
		GameUUID:     r.cfg.GameUUID,
		TourneyUUID:  r.cfg.TourneyUUID,
		StartTime:    start.Format(protocol.TimeLayout),
		EndTime:      end.Format(protocol.TimeLayout),
		PingAvgMS:    avgMS,
		PingMaxMS:    maxMS,
	}
}
