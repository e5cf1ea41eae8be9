package server

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/diceforbots/diceforbots/internal/game"
	"github.com/diceforbots/diceforbots/internal/protocol"
	"github.com/diceforbots/diceforbots/internal/randutil"
)

// Publisher is the broadcast side the orchestrator reports to.
type Publisher interface {
	Publish(msgType protocol.MessageType, data any)
}

// pollInterval bounds how long the orchestrator sleeps between clock
// checks while waiting for the next cycle, keeping shutdown prompt.
const pollInterval = 100 * time.Millisecond

// Orchestrator runs the tournament loop: every period it freezes the
// roster, forms games, drives them concurrently, scores the results
// and publishes the tournament record.
type Orchestrator struct {
	cfg       Config
	registry  *Registry
	router    *Router
	publisher Publisher
	standings *Standings
	rng       *rand.Rand
	clock     quartz.Clock
	logger    zerolog.Logger

	tourneyIndex int
}

// NewOrchestrator wires an orchestrator over the shared registry,
// router, publisher and leaderboard.
func NewOrchestrator(cfg Config, registry *Registry, router *Router, publisher Publisher, standings *Standings, rng *rand.Rand, clock quartz.Clock, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		registry:  registry,
		router:    router,
		publisher: publisher,
		standings: standings,
		rng:       rng,
		clock:     clock,
		logger:    logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Run executes tournament cycles until the context is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		cycleStart := o.clock.Now()
		o.runTournament(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.waitNextCycle(ctx, cycleStart); err != nil {
			return err
		}
	}
}

// waitNextCycle sleeps out the remainder of the tournament period in
// bounded polls. Shortly before the next cycle it pings every
// registered bot once so liveness eviction at cycle start only drops
// bots that failed to answer.
func (o *Orchestrator) waitNextCycle(ctx context.Context, cycleStart time.Time) error {
	deadline := cycleStart.Add(o.cfg.TourneyPeriod)
	pingAt := deadline.Add(-o.cfg.PrePingGap)
	pinged := false

	for {
		now := o.clock.Now()
		if !pinged && !now.Before(pingAt) {
			o.pingAll()
			pinged = true
		}
		if !now.Before(deadline) {
			return nil
		}

		wait := pollInterval
		if remaining := deadline.Sub(now); remaining < wait {
			wait = remaining
		}
		timer := o.clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (o *Orchestrator) pingAll() {
	for _, info := range o.registry.Snapshot() {
		if err := o.router.SendToBot(info.ID, protocol.TypePing, nil); err != nil {
			o.logger.Debug().Err(err).Str("bot_id", info.ID).Msg("Ping delivery failed")
		}
	}
}

// runTournament plays one full cycle. Too few bots means the cycle is
// skipped quietly.
func (o *Orchestrator) runTournament(ctx context.Context) {
	now := o.clock.Now()
	for _, info := range o.registry.EvictStale(now, o.cfg.PrePingGap) {
		o.logger.Info().
			Str("bot_id", info.ID).
			Str("bot_name", info.Metadata.Name).
			Msg("Evicted unresponsive bot")
	}

	roster := o.registry.Snapshot()
	if len(roster) < o.cfg.MinPlayers {
		o.logger.Debug().
			Int("bot_count", len(roster)).
			Int("min_players", o.cfg.MinPlayers).
			Msg("Not enough bots, skipping tournament cycle")
		return
	}

	tourneyUUID := uuid.NewString()
	start := o.clock.Now()
	logger := o.logger.With().Str("tourney_uuid", tourneyUUID).Logger()
	logger.Info().
		Int("tourney_index", o.tourneyIndex).
		Int("bot_count", len(roster)).
		Msg("Tournament started")

	games := o.formGames(roster)
	logs, gameUUIDs := o.playGames(ctx, tourneyUUID, games, logger)
	if len(logs) < len(games) {
		logger.Warn().
			Int("aborted", len(games)-len(logs)).
			Int("total", len(games)).
			Msg("Some games did not finish and are excluded from scoring")
	}
	if ctx.Err() != nil {
		return
	}

	o.scoreAndPublish(tourneyUUID, start, roster, logs, gameUUIDs, logger)
	o.tourneyIndex++
}

// formGames draws random seatings from the roster. The number of games
// targets each bot playing GamesPerBot games on average; bots may
// appear in several games but never twice in one.
func (o *Orchestrator) formGames(roster []BotInfo) [][]Seat {
	avgSize := float64(o.cfg.MinPlayers+o.cfg.MaxPlayers) / 2
	target := int(math.Ceil(float64(len(roster)) * o.cfg.GamesPerBot / avgSize))
	if target < 1 {
		target = 1
	}

	games := make([][]Seat, 0, target)
	for i := 0; i < target; i++ {
		size := randutil.IntBetween(o.rng, o.cfg.MinPlayers, o.cfg.MaxPlayers)
		if size > len(roster) {
			size = len(roster)
		}
		seats := make([]Seat, size)
		for j, k := range randutil.SampleDistinct(o.rng, len(roster), size) {
			seats[j] = Seat{BotID: roster[k].ID, Metadata: roster[k].Metadata}
		}
		games = append(games, seats)
	}
	return games
}

// playGames runs all games of the cycle concurrently and collects the
// records of those that finished. Each finished game is broadcast as
// it completes.
func (o *Orchestrator) playGames(ctx context.Context, tourneyUUID string, games [][]Seat, logger zerolog.Logger) ([]*protocol.GameLog, []string) {
	results := make(chan *protocol.GameLog, len(games))
	gameUUIDs := make([]string, len(games))

	var wg sync.WaitGroup
	for i, seats := range games {
		gameUUID := uuid.NewString()
		gameUUIDs[i] = gameUUID
		moves := o.router.OpenGame(gameUUID)

		g := game.New(game.Config{
			Players:   len(seats),
			DiceCount: o.cfg.DiceCount,
			DropWilds: o.cfg.DropWildOnes,
		}, randutil.New(o.rng.Int64()))

		runner := NewGameRunner(RunnerConfig{
			GameUUID:    gameUUID,
			TourneyUUID: tourneyUUID,
			MoveTimeout: o.cfg.MoveTimeout,
			GameBudget:  o.cfg.GameBudget,
			DiceCount:   o.cfg.DiceCount,
			DropWilds:   o.cfg.DropWildOnes,
		}, seats, g, o.router, moves, o.clock, logger)

		wg.Add(1)
		go func(gameUUID string) {
			defer wg.Done()
			defer o.router.CloseGame(gameUUID)
			if gl := runner.Run(ctx); gl != nil {
				o.publisher.Publish(protocol.TypeGameLog, gl)
				results <- gl
			}
		}(gameUUID)
	}
	wg.Wait()
	close(results)

	logs := make([]*protocol.GameLog, 0, len(games))
	for gl := range results {
		logs = append(logs, gl)
	}
	return logs, gameUUIDs
}

// scoreAndPublish turns game records into bot and player scores,
// notifies every bot of its placement and broadcasts the tournament
// record.
func (o *Orchestrator) scoreAndPublish(tourneyUUID string, start time.Time, roster []BotInfo, logs []*protocol.GameLog, gameUUIDs []string, logger zerolog.Logger) {
	bots := make(map[string]protocol.BotMetadata, len(roster))
	for _, info := range roster {
		bots[info.ID] = info.Metadata
	}

	botScores := scoreGames(logs, o.cfg.ScoringMethod, o.cfg.ScoreScale)
	for _, info := range roster {
		if _, ok := botScores[info.ID]; !ok {
			botScores[info.ID] = 0
		}
	}
	pScores, overLimit := playerScores(botScores, bots, o.cfg.MaxBotsPerPlayer)
	o.standings.RecordTournament(pScores)

	o.notifyPlacements(roster, botScores, overLimit, tourneyUUID)

	end := o.clock.Now()
	record := &protocol.TourneyLog{
		TourneyUUID:   tourneyUUID,
		TourneyIndex:  o.tourneyIndex,
		StartTime:     start.Format(protocol.TimeLayout),
		EndTime:       end.Format(protocol.TimeLayout),
		Bots:          bots,
		GameUUIDs:     gameUUIDs,
		ScoringMethod: o.cfg.ScoringMethod,
		BotScores:     botScores,
		PlayerScores:  pScores,
	}
	o.publisher.Publish(protocol.TypeTourneyLog, record)

	logger.Info().
		Int("game_count", len(logs)).
		Int("bot_count", len(roster)).
		Msg("Tournament finished")
}

// notifyPlacements sends each bot its rank and score. Players over the
// bot limit get a warning instead of a placement.
func (o *Orchestrator) notifyPlacements(roster []BotInfo, botScores map[string]float64, overLimit []string, tourneyUUID string) {
	overLimitSet := make(map[string]bool, len(overLimit))
	for _, player := range overLimit {
		overLimitSet[player] = true
	}

	ranked := make([]string, 0, len(botScores))
	for id := range botScores {
		ranked = append(ranked, id)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if botScores[ranked[i]] != botScores[ranked[j]] {
			return botScores[ranked[i]] > botScores[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	rankOf := make(map[string]int, len(ranked))
	for i, id := range ranked {
		rankOf[id] = i
	}

	for _, info := range roster {
		var text string
		if overLimitSet[info.Metadata.Player] {
			text = fmt.Sprintf("Player %s exceeded the limit of %d bots; player score withheld for tournament %s",
				info.Metadata.Player, o.cfg.MaxBotsPerPlayer, tourneyUUID)
		} else {
			text = fmt.Sprintf("Tournament %s complete: placed %d of %d with score %.2f",
				tourneyUUID, rankOf[info.ID]+1, len(ranked), botScores[info.ID])
		}
		if err := o.router.SendToBot(info.ID, protocol.TypePrint, protocol.Print{Text: text}); err != nil {
			o.logger.Debug().Err(err).Str("bot_id", info.ID).Msg("Placement notice delivery failed")
		}
	}
}
