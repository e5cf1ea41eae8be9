package main

import (
	"context"
	"errors"
	"time"

	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/diceforbots/diceforbots/cmd/diceforbots/shared"
	"github.com/diceforbots/diceforbots/internal/broadcast"
	"github.com/diceforbots/diceforbots/internal/randutil"
	"github.com/diceforbots/diceforbots/internal/server"
)

// ServeCmd runs the tournament server.
type ServeCmd struct {
	Config         string `kong:"default='diceforbots.hcl',help='HCL config file (defaults apply when missing)'"`
	BotAddr        string `kong:"help='Bot endpoint address, overrides config'"`
	BroadcastAddr  string `kong:"help='Broadcast endpoint address, overrides config'"`
	LogLevel       string `kong:"help='Log level: trace, debug, info, warn, error'"`
	StructuredLogs bool   `kong:"help='Emit JSON logs instead of console output'"`
	Seed           *int64 `kong:"help='Deterministic RNG seed (optional)'"`
}

func (c *ServeCmd) Run() error {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	if c.BotAddr != "" {
		cfg.BotAddress = c.BotAddr
	}
	if c.BroadcastAddr != "" {
		cfg.BroadcastAddress = c.BroadcastAddr
	}
	if c.LogLevel != "" {
		cfg.LogLevel = c.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var logger = shared.SetupLogger(cfg.LogLevel)
	if c.StructuredLogs {
		logger = shared.SetupStructuredLogger(cfg.LogLevel)
	}

	seed := time.Now().UnixNano()
	if c.Seed != nil {
		seed = *c.Seed
		logger.Info().Int64("seed", seed).Msg("Using deterministic seed")
	}
	cfg.Seed = seed
	rng := randutil.New(seed)

	clock := quartz.NewReal()
	registry := server.NewRegistry(clock)
	router := server.NewRouter(logger)
	hub := broadcast.NewHub(logger)
	standings := server.NewStandings()
	srv := server.NewServer(cfg, registry, router, hub, standings, logger)
	orch := server.NewOrchestrator(cfg, registry, router, hub, standings, rng, clock, logger)

	logger.Info().
		Str("bot_address", cfg.BotAddress).
		Str("broadcast_address", cfg.BroadcastAddress).
		Dur("tourney_period", cfg.TourneyPeriod).
		Dur("move_timeout", cfg.MoveTimeout).
		Int("dice_count", cfg.DiceCount).
		Bool("drop_wild_ones", cfg.DropWildOnes).
		Str("scoring", cfg.ScoringMethod).
		Msg("Starting diceforbots server")

	ctx := shared.SetupSignalHandler(logger)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error { return orch.Run(ctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("Server stopped")
	return nil
}
